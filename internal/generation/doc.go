// Package generation wraps the generative model used to produce fixes and
// explanations.
//
// A Generator owns one Model and one Tokenizer. Calls are serialized: at
// most one generation runs per Generator at a time, and a hung call holds
// the slot until it returns. There is no timeout and no retry; a failed
// call returns a *GenerationFailedError.
//
// Two Model backends are provided: LangchainModel (ollama or an
// OpenAI-compatible server through langchaingo) and OpenAIModel (the
// openai-go SDK, usable against vLLM or Ollama via a base URL).
package generation
