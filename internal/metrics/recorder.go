package metrics

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Columns is the CSV header of the request log.
var Columns = []string{
	"timestamp",
	"language",
	"cwe",
	"input_tokens",
	"output_tokens",
	"latency_ms",
	"model_used",
	"used_rag",
}

// Record is one request log entry.
type Record struct {
	// Timestamp defaults to the time of Record when zero.
	Timestamp    time.Time
	Language     string
	CWE          string
	InputTokens  int
	OutputTokens int
	LatencyMS    int64
	ModelUsed    string
	UsedRAG      bool
}

func (r Record) row() []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Language,
		r.CWE,
		strconv.Itoa(r.InputTokens),
		strconv.Itoa(r.OutputTokens),
		strconv.FormatInt(r.LatencyMS, 10),
		r.ModelUsed,
		strconv.FormatBool(r.UsedRAG),
	}
}

// Summary aggregates the records written since the Recorder was created.
// Averages are rounded to two decimals.
type Summary struct {
	Count           int64   `json:"total_requests"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
	AvgInputTokens  float64 `json:"avg_input_tokens"`
	AvgOutputTokens float64 `json:"avg_output_tokens"`
	MinLatencyMS    int64   `json:"min_latency_ms"`
	MaxLatencyMS    int64   `json:"max_latency_ms"`
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegisterer registers the Prometheus collectors with reg instead of
// the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Recorder) {
		r.registerer = reg
	}
}

// Recorder appends records to a CSV file. It is safe for concurrent use.
type Recorder struct {
	path       string
	logger     *zap.Logger
	registerer prometheus.Registerer
	collectors *collectors
	now        func() time.Time

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	agg    aggregate
}

// NewRecorder opens (or creates) the log at path. The header row is written
// when the file is new or empty.
func NewRecorder(path string, opts ...Option) (*Recorder, error) {
	if path == "" {
		return nil, fmt.Errorf("metrics log path required")
	}

	r := &Recorder{
		path:       path,
		logger:     zap.NewNop(),
		registerer: prometheus.DefaultRegisterer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating metrics log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening metrics log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat metrics log: %w", err)
	}

	r.file = f
	r.writer = csv.NewWriter(f)
	if info.Size() == 0 {
		if err := r.writeRow(Columns); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing metrics log header: %w", err)
		}
	}

	r.collectors, err = newCollectors(r.registerer)
	if err != nil {
		f.Close()
		return nil, err
	}

	r.logger.Info("metrics log opened", zap.String("path", path))
	return r, nil
}

// Record appends rec to the log and updates the aggregate and collectors.
func (r *Recorder) Record(_ context.Context, rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return fmt.Errorf("metrics log %s is closed", r.path)
	}
	if err := r.writeRow(rec.row()); err != nil {
		return fmt.Errorf("appending metrics record: %w", err)
	}

	r.agg.add(rec)
	r.collectors.observe(rec)
	return nil
}

// Summary returns the aggregate of records written so far.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agg.summary()
}

// Path returns the log file path.
func (r *Recorder) Path() string {
	return r.path
}

// Close flushes and closes the log.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	r.collectors.unregister(r.registerer)
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *Recorder) writeRow(row []string) error {
	if err := r.writer.Write(row); err != nil {
		return err
	}
	r.writer.Flush()
	return r.writer.Error()
}

// aggregate is a running summary.
type aggregate struct {
	count        int64
	latencySum   int64
	inputSum     int64
	outputSum    int64
	minLatencyMS int64
	maxLatencyMS int64
}

func (a *aggregate) add(rec Record) {
	if a.count == 0 || rec.LatencyMS < a.minLatencyMS {
		a.minLatencyMS = rec.LatencyMS
	}
	if a.count == 0 || rec.LatencyMS > a.maxLatencyMS {
		a.maxLatencyMS = rec.LatencyMS
	}
	a.count++
	a.latencySum += rec.LatencyMS
	a.inputSum += int64(rec.InputTokens)
	a.outputSum += int64(rec.OutputTokens)
}

func (a *aggregate) summary() Summary {
	if a.count == 0 {
		return Summary{}
	}
	n := float64(a.count)
	return Summary{
		Count:           a.count,
		AvgLatencyMS:    round2(float64(a.latencySum) / n),
		AvgInputTokens:  round2(float64(a.inputSum) / n),
		AvgOutputTokens: round2(float64(a.outputSum) / n),
		MinLatencyMS:    a.minLatencyMS,
		MaxLatencyMS:    a.maxLatencyMS,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
