package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/fixd/internal/telemetry"
)

// wordTokenizer treats whitespace-separated words as tokens.
type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func (wordTokenizer) Truncate(text string, maxTokens int) string {
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}

type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	// usage is reported alongside response.
	promptTokens int
	outputTokens int
	// block holds the call until closed.
	block    chan struct{}
	prompts  []string
	params   []Params
	inFlight int32
	maxSeen  int32
	closed   bool
}

func (m *fakeModel) Call(_ context.Context, prompt string, params Params) (Completion, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&m.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&m.maxSeen, seen, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.params = append(m.params, params)
	if m.err != nil {
		return Completion{}, m.err
	}
	return Completion{Text: m.response, PromptTokens: m.promptTokens, OutputTokens: m.outputTokens}, nil
}

func (m *fakeModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeModel) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestNew(t *testing.T) {
	_, err := New(nil, wordTokenizer{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&fakeModel{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	g, err := New(&fakeModel{}, wordTokenizer{}, WithModelName("Qwen/Qwen2.5-Coder-1.5B-Instruct"))
	require.NoError(t, err)
	assert.Equal(t, "Qwen2.5-Coder-1.5B-Instruct", g.ModelName())
}

func TestGenerator_Generate(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	tel.Install(t)

	model := &fakeModel{response: "  python\nquery = 'SELECT ?'\n```  \n"}
	g, err := New(model, wordTokenizer{}, WithModelName("coder"))
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "fix this code please", DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, model.response, out.RawText)
	assert.Equal(t, "python\nquery = 'SELECT ?'\n```", out.DecodedText)
	assert.Equal(t, 4, out.InputTokens)
	assert.Equal(t, 5, out.OutputTokens)
	assert.False(t, out.UsageReported)
	assert.GreaterOrEqual(t, out.WallClockMS, int64(0))

	require.Len(t, model.params, 1)
	assert.Equal(t, Params{MaxNewTokens: 512, Temperature: 0.2, TopP: 0.95}, model.params[0])

	tel.AssertSpanExists(t, "generation.Generate")
	tel.AssertSpanAttribute(t, "generation.Generate", "model", "coder")
}

func TestGenerator_BackendUsage(t *testing.T) {
	tests := []struct {
		name         string
		promptTokens int
		outputTokens int
		wantIn       int
		wantOut      int
		wantReported bool
	}{
		{name: "reported usage wins", promptTokens: 37, outputTokens: 12, wantIn: 37, wantOut: 12, wantReported: true},
		{name: "no usage falls back to tokenizer", wantIn: 4, wantOut: 2},
		{name: "partial usage falls back to tokenizer", outputTokens: 12, wantIn: 4, wantOut: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{response: "fixed code", promptTokens: tt.promptTokens, outputTokens: tt.outputTokens}
			g, err := New(model, wordTokenizer{})
			require.NoError(t, err)

			out, err := g.Generate(context.Background(), "fix this code please", DefaultParams())
			require.NoError(t, err)
			assert.Equal(t, tt.wantIn, out.InputTokens)
			assert.Equal(t, tt.wantOut, out.OutputTokens)
			assert.Equal(t, tt.wantReported, out.UsageReported)
			assert.Equal(t, 4, out.EstimatedInputTokens)
			assert.Equal(t, 2, out.EstimatedOutputTokens)
		})
	}
}

func TestGenerator_TruncatesInput(t *testing.T) {
	model := &fakeModel{response: "ok"}
	g, err := New(model, wordTokenizer{}, WithMaxInputTokens(3))
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "one two three four five", DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "one two three", model.prompts[0])
	assert.Equal(t, 3, out.InputTokens)
}

func TestGenerator_WallClockCoversModelCall(t *testing.T) {
	model := &fakeModel{response: "ok", delay: 20 * time.Millisecond}
	g, err := New(model, wordTokenizer{})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "prompt", DefaultParams())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.WallClockMS, int64(20))
}

func TestGenerator_Failure(t *testing.T) {
	model := &fakeModel{err: errors.New("CUDA out of memory")}
	g, err := New(model, wordTokenizer{}, WithModelName("coder"))
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "prompt", DefaultParams())
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	var gfe *GenerationFailedError
	require.ErrorAs(t, err, &gfe)
	assert.Equal(t, "coder", gfe.Model)
	assert.Contains(t, err.Error(), "CUDA out of memory")
	assert.Len(t, model.prompts, 1, "failed calls are not retried")
}

func TestGenerator_SerializesCalls(t *testing.T) {
	model := &fakeModel{response: "ok", delay: 5 * time.Millisecond}
	g, err := New(model, wordTokenizer{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(context.Background(), "prompt", DefaultParams())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&model.maxSeen))
	assert.Len(t, model.prompts, 8)
}

func TestGenerator_CanceledWhileWaitingForSlot(t *testing.T) {
	model := &fakeModel{response: "ok", delay: 50 * time.Millisecond}
	g, err := New(model, wordTokenizer{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = g.Generate(context.Background(), "first", DefaultParams())
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, "second", DefaultParams())
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	<-done
}

func TestGenerator_Close(t *testing.T) {
	model := &fakeModel{response: "ok"}
	g, err := New(model, wordTokenizer{})
	require.NoError(t, err)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
	assert.True(t, model.isClosed())

	_, err = g.Generate(context.Background(), "prompt", DefaultParams())
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGenerator_ShutdownBoundedByContext(t *testing.T) {
	model := &fakeModel{response: "ok", block: make(chan struct{})}
	g, err := New(model, wordTokenizer{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = g.Generate(context.Background(), "prompt", DefaultParams())
	}()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&model.inFlight) == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = g.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, model.isClosed(), "model is released even when a call hangs")

	close(model.block)
	<-done
}

func TestModelName(t *testing.T) {
	tests := map[string]string{
		"Qwen/Qwen2.5-Coder-1.5B-Instruct": "Qwen2.5-Coder-1.5B-Instruct",
		"deepseek-ai/deepseek-coder-1.3b/": "deepseek-coder-1.3b",
		"qwen2.5-coder:1.5b":               "qwen2.5-coder:1.5b",
		"":                                 "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, ModelName(in), in)
	}
}
