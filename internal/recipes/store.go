package recipes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/fixd/internal/cwe"
	"github.com/fyrsmithlabs/fixd/internal/vectorstore"
)

const (
	embedBatchSize   = 16
	embedConcurrency = 4
)

// LoadWarning describes a corpus document that was skipped.
type LoadWarning struct {
	Path string
	Err  error
}

func (w LoadWarning) Error() string {
	return fmt.Sprintf("skipping recipe %s: %v", w.Path, w.Err)
}

func (w LoadWarning) Unwrap() error { return w.Err }

// Embedder embeds corpus passages in batches.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Catalog caches recipe vectors across restarts.
type Catalog interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Put(ctx context.Context, text, category string, vector []float32) (bool, error)
}

// Store is the loaded corpus and, after Embed, its vector index.
type Store struct {
	recipes    []Recipe
	byCategory map[string]int
	index      *vectorstore.FlatIndex
	warnings   []LoadWarning
	logger     *zap.Logger
}

// Option configures Load.
type Option func(*Store)

// WithLogger sets the logger used for load warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Load reads every *.txt and *.md document in dir, in file name order.
//
// Unreadable or empty documents are skipped and reported through
// Warnings. A missing directory yields an empty store and one warning.
// Only a failure to list an existing directory is returned as an error.
func Load(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	s := &Store{
		byCategory: make(map[string]int),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		s.warn(LoadWarning{Path: dir, Err: errors.New("corpus directory not found")})
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !isRecipeFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			s.warn(LoadWarning{Path: path, Err: err})
			continue
		}
		category, body, err := parse(entry.Name(), data)
		if err != nil {
			s.warn(LoadWarning{Path: path, Err: fmt.Errorf("parsing front matter: %w", err)})
			continue
		}
		if body == "" {
			s.warn(LoadWarning{Path: path, Err: errors.New("empty document")})
			continue
		}
		if prev, dup := s.byCategory[category]; dup {
			s.logger.Warn("duplicate recipe category, keeping first",
				zap.String("category", category),
				zap.String("kept", s.recipes[prev].Source),
				zap.String("ignored_for_lookup", path),
			)
		} else {
			s.byCategory[category] = len(s.recipes)
		}

		s.recipes = append(s.recipes, Recipe{
			ID:       len(s.recipes),
			Category: category,
			Text:     body,
			Source:   path,
		})
	}

	s.logger.Info("recipe corpus loaded",
		zap.String("dir", dir),
		zap.Int("recipes", len(s.recipes)),
		zap.Int("skipped", len(s.warnings)),
	)
	return s, nil
}

// Embed computes a vector for every recipe and builds the index. Vectors
// found in catalog are reused; catalog may be nil.
func (s *Store) Embed(ctx context.Context, embedder Embedder, catalog Catalog) error {
	vectors := make([][]float32, len(s.recipes))

	var missing []int
	for i, r := range s.recipes {
		if catalog != nil {
			if v, ok := catalog.Get(ctx, r.Text); ok {
				vectors[i] = v
				continue
			}
		}
		missing = append(missing, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(missing); start += embedBatchSize {
		batch := missing[start:min(start+embedBatchSize, len(missing))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, id := range batch {
				texts[j] = s.recipes[id].Text
			}
			out, err := embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding recipes: %w", err)
			}
			if len(out) != len(batch) {
				return fmt.Errorf("embedding recipes: got %d vectors for %d texts", len(out), len(batch))
			}
			for j, id := range batch {
				vectors[id] = out[j]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	index, err := vectorstore.Build(vectors)
	if err != nil {
		return fmt.Errorf("building recipe index: %w", err)
	}

	stored := 0
	for _, id := range missing {
		if catalog == nil {
			break
		}
		ok, err := catalog.Put(ctx, s.recipes[id].Text, s.recipes[id].Category, vectors[id])
		if err != nil {
			s.logger.Warn("failed to persist recipe embedding", zap.String("category", s.recipes[id].Category), zap.Error(err))
			continue
		}
		if ok {
			stored++
		}
	}

	for i := range s.recipes {
		s.recipes[i].Embedding = vectors[i]
	}
	s.index = index

	s.logger.Info("recipe index built",
		zap.Int("recipes", index.Len()),
		zap.Int("dimension", index.Dimension()),
		zap.Int("embedded", len(missing)),
		zap.Int("reused", len(s.recipes)-len(missing)),
		zap.Int("persisted", stored),
	)
	return nil
}

// ByCategory returns the recipe whose category equals the canonical form of tag.
func (s *Store) ByCategory(tag string) (*Recipe, bool) {
	id, ok := s.byCategory[canonicalCategory(cwe.Normalize(tag))]
	if !ok {
		return nil, false
	}
	r := s.recipes[id]
	return &r, true
}

// Get returns the recipe with the given id.
func (s *Store) Get(id int) (*Recipe, bool) {
	if id < 0 || id >= len(s.recipes) {
		return nil, false
	}
	r := s.recipes[id]
	return &r, true
}

// Len returns the number of loaded recipes.
func (s *Store) Len() int {
	return len(s.recipes)
}

// All returns a copy of the loaded recipes.
func (s *Store) All() []Recipe {
	out := make([]Recipe, len(s.recipes))
	copy(out, s.recipes)
	return out
}

// Index returns the vector index, or nil before Embed succeeds.
func (s *Store) Index() *vectorstore.FlatIndex {
	return s.index
}

// Warnings returns the documents skipped during Load.
func (s *Store) Warnings() []LoadWarning {
	out := make([]LoadWarning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

func (s *Store) warn(w LoadWarning) {
	s.warnings = append(s.warnings, w)
	s.logger.Warn("corpus load warning", zap.String("path", w.Path), zap.Error(w.Err))
}

func isRecipeFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	}
	return false
}
