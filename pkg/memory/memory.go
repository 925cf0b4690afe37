// Package memory holds the optional long-term store of per-repository
// learned profiles. Agents consult it before running and write back after a
// successful stage; every failure here is non-fatal to the pipeline.
package memory

import (
	"sync"
	"time"
)

// Profile is what the system has learned about a repository across runs.
// Last-write-wins between concurrent sessions is acceptable.
type Profile struct {
	Repository       string         `json:"repository"`
	Runs             int            `json:"runs"`
	SuccessfulStages map[string]int `json:"successful_stages"`
	LastQualityScore float64        `json:"last_quality_score"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewProfile returns an empty profile for a repository.
func NewProfile(repository string) *Profile {
	return &Profile{
		Repository:       repository,
		SuccessfulStages: make(map[string]int),
	}
}

// RecordStage bumps the success counter for one stage.
func (p *Profile) RecordStage(stage string) {
	if p.SuccessfulStages == nil {
		p.SuccessfulStages = make(map[string]int)
	}
	p.SuccessfulStages[stage]++
	p.UpdatedAt = time.Now()
}

// Store is the keyed profile store. Get returns (nil, nil) when no profile
// exists for the repository.
type Store interface {
	Get(repository string) (*Profile, error)
	Put(p *Profile) error
	Close() error
}

// inMemoryStore is a map-backed Store for tests and single-process use.
type inMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewInMemoryStore returns a Store that keeps profiles in process memory.
func NewInMemoryStore() Store {
	return &inMemoryStore{profiles: make(map[string]Profile)}
}

func (s *inMemoryStore) Get(repository string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[repository]
	if !ok {
		return nil, nil
	}
	cp := p
	cp.SuccessfulStages = make(map[string]int, len(p.SuccessfulStages))
	for k, v := range p.SuccessfulStages {
		cp.SuccessfulStages[k] = v
	}
	return &cp, nil
}

func (s *inMemoryStore) Put(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Repository] = *p
	return nil
}

func (s *inMemoryStore) Close() error {
	return nil
}
