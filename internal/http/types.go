package http

// FixRequest is the request body for POST /local_fix and /api/v1/fix.
// An absent use_rag means true.
type FixRequest struct {
	Language string `json:"language"`
	CWE      string `json:"cwe"`
	Code     string `json:"code"`
	UseRAG   *bool  `json:"use_rag,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	ModelLoaded   bool   `json:"model_loaded"`
	Recipes       int    `json:"recipes"`
	EmbedderReady bool   `json:"embedder_ready"`
}

// InfoResponse is the response body for GET /.
type InfoResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version,omitempty"`
	Model     string            `json:"model"`
	Endpoints map[string]string `json:"endpoints"`
}
