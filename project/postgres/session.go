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

// SessionStore implements core.SessionStore on PostgreSQL. Events are kept
// as JSONB rows in insertion order.
type SessionStore struct {
	pool *pgxpool.Pool
}

var _ core.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore backed by the given pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, id string) (*core.Session, error) {
	sess := core.NewSession(id)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, created_at, updated_at) VALUES ($1, $2, $2)
		 ON CONFLICT (id) DO UPDATE SET state = '{}', last_agent = '', updated_at = EXCLUDED.updated_at`,
		id, sess.Created)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM session_events WHERE session_id = $1`, id); err != nil {
		return nil, fmt.Errorf("reset session %s: %w", id, err)
	}

	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*core.Session, error) {
	var (
		stateJSON []byte
		lastAgent string
	)

	sess := core.NewSession(id)

	err := s.pool.QueryRow(ctx,
		`SELECT state, last_agent, created_at, updated_at FROM sessions WHERE id = $1`, id).
		Scan(&stateJSON, &lastAgent, &sess.Created, &sess.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}

		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &sess.State); err != nil {
			return nil, fmt.Errorf("unmarshal session state: %w", err)
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT event FROM session_events WHERE session_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list session events %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}

		var ev core.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal session event: %w", err)
		}

		sess.Events = append(sess.Events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	sess.LastAgent = core.AgentType(lastAgent)

	return sess, nil
}

// AppendEvent inserts the event, creating the session row lazily. A final
// assistant answer also records its author as the session's last agent.
func (s *SessionStore) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	lastAgent := ""
	if ev.IsFinalResponse() && ev.Message.Role == core.RoleAssistant {
		lastAgent = string(ev.Message.AgentType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO sessions (id, last_agent) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET
		   last_agent = CASE WHEN EXCLUDED.last_agent <> '' THEN EXCLUDED.last_agent ELSE sessions.last_agent END,
		   updated_at = now()`,
		sessionID, lastAgent); err != nil {
		return fmt.Errorf("touch session %s: %w", sessionID, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO session_events (session_id, event) VALUES ($1, $2)`, sessionID, raw); err != nil {
		return fmt.Errorf("append event %s: %w", sessionID, err)
	}

	return tx.Commit(ctx)
}
