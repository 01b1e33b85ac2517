package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"wayfarer/internal/domain"
	"wayfarer/internal/persistence"
)

// NewConversationStore returns a Postgres-backed ConversationStore when pool
// is non-nil, otherwise an in-memory one; callers never branch on this
// themselves.
func NewConversationStore(pool *pgxpool.Pool) persistence.ConversationStore {
	if pool == nil {
		return newMemConversationStore()
	}
	return &pgConversationStore{pool: pool}
}

type pgConversationStore struct {
	pool *pgxpool.Pool
}

func (s *pgConversationStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS conversation_turns (
    id UUID PRIMARY KEY,
    session_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    query TEXT NOT NULL,
    response TEXT NOT NULL,
    intent TEXT NOT NULL,
    model TEXT NOT NULL,
    processing_time_ms BIGINT NOT NULL,
    input_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    estimated_cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    extra_metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS conversation_turns_session_created_idx
    ON conversation_turns(session_id, created_at);
`)
	return err
}

func (s *pgConversationStore) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	id := turn.ID
	if id == "" {
		id = uuid.NewString()
	}
	meta, err := json.Marshal(turn.ExtraMetadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO conversation_turns
    (id, session_id, user_id, query, response, intent, model, processing_time_ms,
     input_tokens, output_tokens, estimated_cost_usd, created_at, extra_metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, turn.SessionID, turn.UserID, turn.Query, turn.Response, string(turn.Intent), turn.Model,
		turn.ProcessingTime.Milliseconds(), turn.InputTokens, turn.OutputTokens, turn.EstimatedCost,
		turn.CreatedAt, meta)
	return err
}

func (s *pgConversationStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, session_id, user_id, query, response, intent, model, processing_time_ms,
       input_tokens, output_tokens, estimated_cost_usd, created_at, extra_metadata
FROM (
    SELECT * FROM conversation_turns
    WHERE session_id = $1
    ORDER BY created_at DESC
    LIMIT $2
) sub
ORDER BY created_at ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

func (s *pgConversationStore) AllTurns(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, session_id, user_id, query, response, intent, model, processing_time_ms,
       input_tokens, output_tokens, estimated_cost_usd, created_at, extra_metadata
FROM conversation_turns
WHERE session_id = $1
ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTurns(rows)
}

type turnRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTurns(rows turnRows) ([]domain.ConversationTurn, error) {
	var out []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		var intent string
		var processingMS int64
		var meta []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserID, &t.Query, &t.Response, &intent, &t.Model,
			&processingMS, &t.InputTokens, &t.OutputTokens, &t.EstimatedCost, &t.CreatedAt, &meta); err != nil {
			return nil, err
		}
		t.Intent = domain.Intent(intent)
		t.ProcessingTime = msToDuration(processingMS)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &t.ExtraMetadata); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	if out == nil {
		out = make([]domain.ConversationTurn, 0)
	}
	return out, rows.Err()
}
