package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var catalogTracer = otel.Tracer("fixd.vectorstore.catalog")

// errNoEmbedder is returned if chromem ever asks the catalog to embed; every
// document is stored with a precomputed vector.
var errNoEmbedder = errors.New("catalog does not embed documents")

var collectionNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CatalogConfig configures the persisted embedding catalog.
type CatalogConfig struct {
	// Path is the chromem database directory. "~" is expanded.
	Path string
	// Model is the embedding model name; each model gets its own collection.
	Model string
	// Compress enables gzip for persisted documents.
	Compress bool
}

// Catalog maps recipe content hashes to stored embeddings.
//
// chromem normalizes stored vectors, so only vectors that are already unit
// length are cached. Others are always recomputed.
type Catalog struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger
}

// OpenCatalog opens (or creates) the catalog at cfg.Path.
func OpenCatalog(cfg CatalogConfig, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, errors.New("catalog path required")
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	name := CollectionName(cfg.Model)
	collection, err := db.GetOrCreateCollection(name, map[string]string{"model": cfg.Model}, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", name, err)
	}

	logger.Info("recipe embedding catalog opened",
		zap.String("path", path),
		zap.String("collection", name),
		zap.Int("entries", collection.Count()),
	)

	return &Catalog{db: db, collection: collection, logger: logger}, nil
}

// CollectionName derives a collection name from a model id.
func CollectionName(model string) string {
	name := collectionNameSanitizer.ReplaceAllString(strings.ToLower(model), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "default"
	}
	return "recipes_" + name
}

// ContentKey returns the catalog key for a recipe text.
func ContentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the stored vector for text, if any.
func (c *Catalog) Get(ctx context.Context, text string) ([]float32, bool) {
	if c.collection.Count() == 0 {
		return nil, false
	}
	doc, err := c.collection.GetByID(ctx, ContentKey(text))
	if err != nil || len(doc.Embedding) == 0 {
		return nil, false
	}
	out := make([]float32, len(doc.Embedding))
	copy(out, doc.Embedding)
	return out, true
}

// Put stores the vector for text. Vectors that are not unit length are
// skipped and reported as not stored.
func (c *Catalog) Put(ctx context.Context, text, category string, vector []float32) (bool, error) {
	ctx, span := catalogTracer.Start(ctx, "Catalog.Put")
	defer span.End()
	span.SetAttributes(attribute.String("category", category))

	if !isNormalized(vector) {
		c.logger.Debug("skipping catalog entry for non-normalized vector", zap.String("category", category))
		return false, nil
	}

	doc := chromem.Document{
		ID:        ContentKey(text),
		Content:   text,
		Metadata:  map[string]string{"category": category},
		Embedding: vector,
	}
	if err := c.collection.AddDocument(ctx, doc); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("storing embedding for %s: %w", category, err)
	}
	return true, nil
}

// Len returns the number of stored entries.
func (c *Catalog) Len() int {
	return c.collection.Count()
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

func isNormalized(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Abs(sum-1) < 1e-4
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
