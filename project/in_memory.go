package project

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// InMemoryStore is a volatile project, scene, image job and credit store.
// It is safe for concurrent access; returned records are copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	projects map[string]core.Project
	scenes   map[string]core.Scene
	jobs     map[string]core.ImageJob
	credits  map[string]int
}

var (
	_ core.ProjectStore = (*InMemoryStore)(nil)
	_ core.CreditStore  = (*InMemoryStore)(nil)
)

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		projects: map[string]core.Project{},
		scenes:   map[string]core.Scene{},
		jobs:     map[string]core.ImageJob{},
		credits:  map[string]int{},
	}
}

// SaveProject inserts or replaces a project, generating an ID when empty.
func (s *InMemoryStore) SaveProject(_ context.Context, p core.Project) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = core.NewID()
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}

	p.UpdatedAt = now
	s.projects[p.ID] = p

	return p, nil
}

// GetProject returns a project or core.ErrNotFound.
func (s *InMemoryStore) GetProject(_ context.Context, id string) (core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return core.Project{}, fmt.Errorf("project %s: %w", id, core.ErrNotFound)
	}

	return p, nil
}

// UpdateProjectScript stores the full script of a project.
func (s *InMemoryStore) UpdateProjectScript(_ context.Context, projectID, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, core.ErrNotFound)
	}

	p.FullScript = script
	p.UpdatedAt = time.Now().UTC()
	s.projects[projectID] = p

	return nil
}

// SaveScene inserts or replaces a scene, generating an ID when empty.
func (s *InMemoryStore) SaveScene(_ context.Context, sc core.Scene) (core.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc.ID == "" {
		sc.ID = core.NewID()
	}

	sc.UpdatedAt = time.Now().UTC()
	s.scenes[sc.ID] = sc

	return sc, nil
}

// GetScene returns a scene or core.ErrNotFound.
func (s *InMemoryStore) GetScene(_ context.Context, id string) (core.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scenes[id]
	if !ok {
		return core.Scene{}, fmt.Errorf("scene %s: %w", id, core.ErrNotFound)
	}

	return sc, nil
}

// ListScenes returns the scenes of a project ordered by SceneOrder.
func (s *InMemoryStore) ListScenes(_ context.Context, projectID string) ([]core.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Scene

	for _, sc := range s.scenes {
		if sc.ProjectID == projectID {
			out = append(out, sc)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SceneOrder < out[j].SceneOrder })

	return out, nil
}

func (s *InMemoryStore) updateScene(id string, fn func(sc *core.Scene)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scenes[id]
	if !ok {
		return fmt.Errorf("scene %s: %w", id, core.ErrNotFound)
	}

	fn(&sc)
	sc.UpdatedAt = time.Now().UTC()
	s.scenes[id] = sc

	return nil
}

// UpdateSceneScript stores a scene's script.
func (s *InMemoryStore) UpdateSceneScript(_ context.Context, sceneID, script string) error {
	return s.updateScene(sceneID, func(sc *core.Scene) { sc.Script = script })
}

// UpdateSceneDescription stores a scene's description.
func (s *InMemoryStore) UpdateSceneDescription(_ context.Context, sceneID, description string) error {
	return s.updateScene(sceneID, func(sc *core.Scene) { sc.Description = description })
}

// UpdateImagePrompt stores a scene's image prompt.
func (s *InMemoryStore) UpdateImagePrompt(_ context.Context, sceneID, prompt string) error {
	return s.updateScene(sceneID, func(sc *core.Scene) { sc.ImagePrompt = prompt })
}

// CreateImageJob records a queued image job.
func (s *InMemoryStore) CreateImageJob(_ context.Context, job core.ImageJob) (core.ImageJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = core.NewID()
	}

	if job.Status == "" {
		job.Status = core.ImageJobQueued
	}

	job.CreatedAt = time.Now().UTC()
	job.Parameters = maps.Clone(job.Parameters)
	s.jobs[job.ID] = job

	return job, nil
}

// ImageJobs returns every job of a user, oldest first.
func (s *InMemoryStore) ImageJobs(userID string) []core.ImageJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.ImageJob

	for _, j := range s.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out
}

// SetCredits sets a user's balance.
func (s *InMemoryStore) SetCredits(userID string, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credits[userID] = amount
}

// Balance returns a user's balance (zero when unknown).
func (s *InMemoryStore) Balance(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.credits[userID], nil
}

// Deduct removes amount credits or fails with core.ErrInsufficientCredits.
func (s *InMemoryStore) Deduct(_ context.Context, userID string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal := s.credits[userID]
	if bal < amount {
		return bal, core.ErrInsufficientCredits
	}

	bal -= amount
	s.credits[userID] = bal

	return bal, nil
}
