package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientCredits is returned by a CreditStore when a deduction would
// overdraw the user's balance.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Project is a video project owning an ordered set of scenes.
type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	FullScript  string    `json:"fullScript,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Scene is one scene of a project.
type Scene struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	SceneOrder  int       `json:"sceneOrder"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Script      string    `json:"script,omitempty"`
	ImagePrompt string    `json:"imagePrompt,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ImageJobStatus is the lifecycle state of a queued image generation job.
type ImageJobStatus string

const (
	ImageJobQueued     ImageJobStatus = "queued"
	ImageJobProcessing ImageJobStatus = "processing"
	ImageJobCompleted  ImageJobStatus = "completed"
	ImageJobFailed     ImageJobStatus = "failed"
)

// ImageJob is an image generation request handed to an external provider.
type ImageJob struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	ProjectID  string         `json:"projectId,omitempty"`
	SceneID    string         `json:"sceneId,omitempty"`
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     ImageJobStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ProjectStore is the persistent project/scene store handlers write to as a
// side effect of a turn. Writes are not transactional relative to the
// conversational result; concurrent writers to one scene are last-write-wins.
type ProjectStore interface {
	SaveProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	UpdateProjectScript(ctx context.Context, projectID, script string) error

	SaveScene(ctx context.Context, s Scene) (Scene, error)
	GetScene(ctx context.Context, id string) (Scene, error)
	// ListScenes returns the scenes of a project ordered by SceneOrder.
	ListScenes(ctx context.Context, projectID string) ([]Scene, error)
	UpdateSceneScript(ctx context.Context, sceneID, script string) error
	UpdateSceneDescription(ctx context.Context, sceneID, description string) error
	UpdateImagePrompt(ctx context.Context, sceneID, prompt string) error

	CreateImageJob(ctx context.Context, job ImageJob) (ImageJob, error)
}

// CreditStore tracks user credit balances consumed by paid tools.
type CreditStore interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Deduct removes amount credits and returns the new balance, or
	// ErrInsufficientCredits without changing the balance.
	Deduct(ctx context.Context, userID string, amount int) (int, error)
}
