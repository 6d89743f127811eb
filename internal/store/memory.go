package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

// MemoryStore keeps jobs in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]domain.Job)}
}

func (s *MemoryStore) Create(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.JobID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, job.JobID)
	}
	s.jobs[job.JobID] = copyJob(*job)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, jobID string, update domain.JobUpdate) (*domain.Job, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if job.Status != update.From {
		return nil, fmt.Errorf("%w: job %s is %s, expected %s", domain.ErrInvalidTransition, jobID, job.Status, update.From)
	}

	job = copyJob(update.Apply(job))
	s.jobs[jobID] = job

	out := copyJob(job)
	return &out, nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyJob(job)
	return &out, nil
}

// copyJob detaches a record from any pointers the caller still holds
func copyJob(job domain.Job) domain.Job {
	job.ExtractedData = job.ExtractedData.Clone()
	if job.UpdatedAt != nil {
		updatedAt := *job.UpdatedAt
		job.UpdatedAt = &updatedAt
	}
	if job.ErrorMessage != nil {
		msg := *job.ErrorMessage
		job.ErrorMessage = &msg
	}
	return job
}
