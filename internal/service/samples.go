package service

import "sync"

// SampleStore holds the product reference images applied to every job.
type SampleStore struct {
	mu      sync.RWMutex
	samples []string
}

// NewSampleStore creates a store seeded with samples.
func NewSampleStore(samples []string) *SampleStore {
	s := &SampleStore{}
	s.Set(samples)
	return s
}

// Set replaces the current samples. Empty entries are dropped.
func (s *SampleStore) Set(samples []string) {
	kept := make([]string, 0, len(samples))
	for _, sample := range samples {
		if sample != "" {
			kept = append(kept, sample)
		}
	}
	s.mu.Lock()
	s.samples = kept
	s.mu.Unlock()
}

// Samples returns a copy of the current samples.
func (s *SampleStore) Samples() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.samples...)
}
