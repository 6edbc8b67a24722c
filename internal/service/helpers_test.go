package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/timmy/mockup-studio/internal/domain"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []GenerateRequest
	fn    func(ctx context.Context, n int, req GenerateRequest) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	n := len(g.calls)
	g.mu.Unlock()

	if g.fn == nil {
		return fmt.Sprintf("data:image/png;base64,img%d", n), nil
	}
	return g.fn(ctx, n, req)
}

func (g *fakeGenerator) Calls() []GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GenerateRequest(nil), g.calls...)
}

type fakeResolver struct {
	err   error
	calls int
}

func (r *fakeResolver) Resolve(ctx context.Context, artwork string, samples []string) (*ResolvedReferences, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &ResolvedReferences{Artwork: artwork, Samples: samples}, nil
}

type fakeSink struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	err     error
}

func (s *fakeSink) Append(ctx context.Context, entry domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeSink) Entries() []domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LogEntry(nil), s.entries...)
}

// publisherFunc adapts a function to UpdatePublisher.
type publisherFunc func(domain.JobUpdate)

func (f publisherFunc) Publish(u domain.JobUpdate) { f(u) }

type staticSamples []string

func (s staticSamples) Samples() []string { return s }

// newTestQueue returns a queue with sequential ids job-1, job-2, ...
func newTestQueue() *JobQueue {
	q := NewJobQueue()
	var mu sync.Mutex
	n := 0
	q.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("job-%d", n)
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	q.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return q
}

func testPrompts(texts ...string) []domain.Prompt {
	out := make([]domain.Prompt, len(texts))
	for i, t := range texts {
		out[i] = domain.Prompt{ID: fmt.Sprintf("p%d", i+1), Text: t}
	}
	return out
}

func enqueueReq(count int, texts ...string) EnqueueRequest {
	return EnqueueRequest{
		Prompts:     testPrompts(texts...),
		Count:       count,
		AspectRatio: "1:1",
		SKU:         "SKU-1",
		ArtworkURL:  "data:image/png;base64,YXJ0",
	}
}
