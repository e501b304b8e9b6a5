package openai

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/pkg/tokencount"
)

// ChatCompletionChunk is one event of a streamed chat completion.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one candidate's delta inside a chunk.
type ChunkChoice struct {
	Index int        `json:"index"`
	Delta ChunkDelta `json:"delta"`
}

// ChunkDelta is the incremental content of a chunk.
type ChunkDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ChunkReader yields stream chunks until it returns io.EOF.
type ChunkReader interface {
	Recv() (*ChatCompletionChunk, error)
}

// StreamInference accumulates a streamed completion and logs it once the
// stream is complete. Tokens are counted locally since streams report no
// usage.
//
// A StreamInference is safe for concurrent use.
type StreamInference struct {
	client  *athina.Client
	req     *ChatRequest
	start   time.Time
	counter TokenCounter

	mu       sync.Mutex
	response strings.Builder
	logged   bool
}

// NewStreamInference starts timing a streamed request.
func NewStreamInference(client *athina.Client, req *ChatRequest) *StreamInference {
	return &StreamInference{
		client:  client,
		req:     req,
		start:   time.Now(),
		counter: tokencount.Default(),
	}
}

// SetTokenCounter replaces the local token counter; nil disables counting.
func (s *StreamInference) SetTokenCounter(c TokenCounter) {
	s.mu.Lock()
	s.counter = c
	s.mu.Unlock()
}

// AddChunk appends the first choice's delta content.
func (s *StreamInference) AddChunk(chunk *ChatCompletionChunk) {
	if chunk == nil || len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return
	}
	s.mu.Lock()
	s.response.WriteString(*chunk.Choices[0].Delta.Content)
	s.mu.Unlock()
}

// Collect drains r, adding every chunk. It returns nil at io.EOF.
func (s *StreamInference) Collect(r ChunkReader) error {
	for {
		chunk, err := r.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		s.AddChunk(chunk)
	}
}

// Response returns the text collected so far.
func (s *StreamInference) Response() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response.String()
}

// Log queues the collected completion for delivery. Meta is read from ctx.
// Logging twice is a no-op.
func (s *StreamInference) Log(ctx context.Context) error {
	s.mu.Lock()
	if s.logged {
		s.mu.Unlock()
		return nil
	}
	s.logged = true
	text := s.response.String()
	counter := s.counter
	s.mu.Unlock()

	if s.req == nil {
		return athina.ErrNilRequest
	}
	if s.client == nil {
		return athina.ErrClientClosed
	}

	meta, _ := MetaFromContext(ctx)
	in := meta.inference(s.req)
	in.Response = text
	elapsed := time.Since(s.start).Milliseconds()
	in.ResponseTime = &elapsed
	if in.Environment == "" {
		in.Environment = s.client.Environment()
	}
	countUsage(counter, in, s.req, text)

	return s.client.LogInference(ctx, in)
}
