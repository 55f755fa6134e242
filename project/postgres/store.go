package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rvndrmann/mannmediaagency-sub000/core"
)

// Store implements core.ProjectStore and core.CreditStore on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.ProjectStore = (*Store)(nil)
	_ core.CreditStore  = (*Store)(nil)
)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Projects ---

func (s *Store) SaveProject(ctx context.Context, p core.Project) (core.Project, error) {
	if p.ID == "" {
		p.ID = core.NewID()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO projects (id, user_id, title, description, full_script)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   user_id = EXCLUDED.user_id, title = EXCLUDED.title,
		   description = EXCLUDED.description, full_script = EXCLUDED.full_script,
		   updated_at = now()
		 RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Title, p.Description, p.FullScript)

	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return core.Project{}, fmt.Errorf("save project %s: %w", p.ID, err)
	}

	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (core.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, description, full_script, created_at, updated_at
		 FROM projects WHERE id = $1`, id)

	var p core.Project
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.FullScript, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return core.Project{}, notFoundWrap(err, "get project %s", id)
	}

	return p, nil
}

func (s *Store) UpdateProjectScript(ctx context.Context, projectID, script string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET full_script = $2, updated_at = now() WHERE id = $1`, projectID, script)

	return execExpectOne(tag, err, "update project script %s", projectID)
}

// --- Scenes ---

const sceneColumns = `id, project_id, scene_order, title, description, script, image_prompt, image_url, updated_at`

func scanScene(row scannable) (core.Scene, error) {
	var sc core.Scene
	err := row.Scan(&sc.ID, &sc.ProjectID, &sc.SceneOrder, &sc.Title, &sc.Description,
		&sc.Script, &sc.ImagePrompt, &sc.ImageURL, &sc.UpdatedAt)

	return sc, err
}

func (s *Store) SaveScene(ctx context.Context, sc core.Scene) (core.Scene, error) {
	if sc.ID == "" {
		sc.ID = core.NewID()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO scenes (id, project_id, scene_order, title, description, script, image_prompt, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   project_id = EXCLUDED.project_id, scene_order = EXCLUDED.scene_order,
		   title = EXCLUDED.title, description = EXCLUDED.description,
		   script = EXCLUDED.script, image_prompt = EXCLUDED.image_prompt,
		   image_url = EXCLUDED.image_url, updated_at = now()
		 RETURNING updated_at`,
		sc.ID, sc.ProjectID, sc.SceneOrder, sc.Title, sc.Description, sc.Script, sc.ImagePrompt, sc.ImageURL)

	if err := row.Scan(&sc.UpdatedAt); err != nil {
		return core.Scene{}, fmt.Errorf("save scene %s: %w", sc.ID, err)
	}

	return sc, nil
}

func (s *Store) GetScene(ctx context.Context, id string) (core.Scene, error) {
	sc, err := scanScene(s.pool.QueryRow(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE id = $1`, id))
	if err != nil {
		return core.Scene{}, notFoundWrap(err, "get scene %s", id)
	}

	return sc, nil
}

func (s *Store) ListScenes(ctx context.Context, projectID string) ([]core.Scene, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE project_id = $1 ORDER BY scene_order, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list scenes %s: %w", projectID, err)
	}
	defer rows.Close()

	var scenes []core.Scene

	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}

		scenes = append(scenes, sc)
	}

	return scenes, rows.Err()
}

func (s *Store) updateSceneColumn(ctx context.Context, column, sceneID, value string) error {
	// column is one of the fixed names below, never caller input.
	tag, err := s.pool.Exec(ctx,
		`UPDATE scenes SET `+column+` = $2, updated_at = now() WHERE id = $1`, sceneID, value)

	return execExpectOne(tag, err, "update scene %s %s", sceneID, column)
}

func (s *Store) UpdateSceneScript(ctx context.Context, sceneID, script string) error {
	return s.updateSceneColumn(ctx, "script", sceneID, script)
}

func (s *Store) UpdateSceneDescription(ctx context.Context, sceneID, description string) error {
	return s.updateSceneColumn(ctx, "description", sceneID, description)
}

func (s *Store) UpdateImagePrompt(ctx context.Context, sceneID, prompt string) error {
	return s.updateSceneColumn(ctx, "image_prompt", sceneID, prompt)
}

// --- Image jobs ---

func (s *Store) CreateImageJob(ctx context.Context, job core.ImageJob) (core.ImageJob, error) {
	if job.ID == "" {
		job.ID = core.NewID()
	}

	if job.Status == "" {
		job.Status = core.ImageJobQueued
	}

	params := job.Parameters
	if params == nil {
		params = map[string]any{}
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return core.ImageJob{}, fmt.Errorf("marshal image job parameters: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO image_jobs (id, user_id, project_id, scene_id, prompt, parameters, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		job.ID, job.UserID, job.ProjectID, job.SceneID, job.Prompt, paramsJSON, string(job.Status))

	if err := row.Scan(&job.CreatedAt); err != nil {
		return core.ImageJob{}, fmt.Errorf("create image job: %w", err)
	}

	return job, nil
}

// ListImageJobs returns the jobs of a user, oldest first.
func (s *Store) ListImageJobs(ctx context.Context, userID string) ([]core.ImageJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, project_id, scene_id, prompt, parameters, status, created_at
		 FROM image_jobs WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list image jobs: %w", err)
	}
	defer rows.Close()

	var jobs []core.ImageJob

	for rows.Next() {
		var (
			j      core.ImageJob
			raw    []byte
			status string
		)

		if err := rows.Scan(&j.ID, &j.UserID, &j.ProjectID, &j.SceneID, &j.Prompt, &raw, &status, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image job: %w", err)
		}

		j.Status = core.ImageJobStatus(status)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &j.Parameters); err != nil {
				return nil, fmt.Errorf("unmarshal image job parameters: %w", err)
			}
		}

		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

// --- Credits ---

// SetCredits upserts a user's balance.
func (s *Store) SetCredits(ctx context.Context, userID string, amount int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_credits (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("set credits %s: %w", userID, err)
	}

	return nil
}

func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	var bal int

	err := s.pool.QueryRow(ctx, `SELECT balance FROM user_credits WHERE user_id = $1`, userID).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", userID, err)
	}

	return bal, nil
}

// Deduct subtracts amount in one conditional UPDATE so concurrent
// deductions cannot overdraw the balance.
func (s *Store) Deduct(ctx context.Context, userID string, amount int) (int, error) {
	var bal int

	err := s.pool.QueryRow(ctx,
		`UPDATE user_credits SET balance = balance - $2, updated_at = now()
		 WHERE user_id = $1 AND balance >= $2
		 RETURNING balance`, userID, amount).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		current, berr := s.Balance(ctx, userID)
		if berr != nil {
			return 0, berr
		}

		return current, core.ErrInsufficientCredits
	}

	if err != nil {
		return 0, fmt.Errorf("deduct credits %s: %w", userID, err)
	}

	return bal, nil
}
