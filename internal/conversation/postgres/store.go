// Package postgres provides a PostgreSQL-backed conversation store.
//
// It persists conversations and their message logs across restarts, which the
// in-memory default store does not. Wire it by setting storage.postgres_dsn in
// the server config.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ColinWang98/Intercultural-Town/internal/conversation"
	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// Schema is the SQL DDL for the conversation tables. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id          TEXT PRIMARY KEY,
    persona_ids JSONB NOT NULL DEFAULT '[]',
    profiles    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS conversation_messages (
    seq             BIGSERIAL PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role            TEXT NOT NULL,
    name            TEXT NOT NULL DEFAULT '',
    content         TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversation_messages_conversation
    ON conversation_messages(conversation_id, seq);
CREATE INDEX IF NOT EXISTS idx_conversations_created_at
    ON conversations(created_at DESC);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a [conversation.Store] backed by a PostgreSQL database. Persona
// ids and dynamic profiles are serialised as JSONB; messages live in their
// own table ordered by insertion sequence.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ conversation.Store = (*Store)(nil)

// NewStore creates a [Store] that uses the given database connection or
// pool. The caller is responsible for calling [Store.Migrate] to ensure the
// schema exists before issuing queries.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// conversation tables and indexes if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Create implements [conversation.Store].
func (s *Store) Create(ctx context.Context, conv *conversation.Conversation) error {
	if conv.ID == "" {
		return errors.New("postgres: conversation id must not be empty")
	}

	idsJSON, err := json.Marshal(emptySlice(conv.PersonaIDs))
	if err != nil {
		return fmt.Errorf("postgres: marshal persona_ids: %w", err)
	}
	profilesJSON, err := json.Marshal(emptyProfiles(conv.Profiles))
	if err != nil {
		return fmt.Errorf("postgres: marshal profiles: %w", err)
	}

	const query = `
		INSERT INTO conversations (id, persona_ids, profiles, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err = s.db.QueryRow(ctx, query, conv.ID, idsJSON, profilesJSON, conv.CreatedAt).
		Scan(&conv.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("postgres: conversation %q already exists", conv.ID)
		}
		return fmt.Errorf("postgres: create: %w", err)
	}

	if len(conv.Messages) > 0 {
		return s.AppendMessages(ctx, conv.ID, conv.Messages...)
	}
	return nil
}

// Get implements [conversation.Store].
func (s *Store) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	const query = `
		SELECT id, persona_ids, profiles, created_at
		FROM conversations
		WHERE id = $1`

	var (
		conv         conversation.Conversation
		idsJSON      []byte
		profilesJSON []byte
	)
	err := s.db.QueryRow(ctx, query, id).
		Scan(&conv.ID, &idsJSON, &profilesJSON, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("conversation %q: %w", id, conversation.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: get %q: %w", id, err)
	}

	if err := json.Unmarshal(idsJSON, &conv.PersonaIDs); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal persona_ids: %w", err)
	}
	if err := json.Unmarshal(profilesJSON, &conv.Profiles); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal profiles: %w", err)
	}

	msgs, _, err := s.Messages(ctx, id, 0, -1)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return &conv, nil
}

// List implements [conversation.Store]. Internal fallback sessions are
// filtered out in SQL so they never leave the database.
func (s *Store) List(ctx context.Context) ([]conversation.Summary, error) {
	const query = `
		SELECT c.id, c.persona_ids, c.created_at,
		       (SELECT count(*) FROM conversation_messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE NOT starts_with(c.id, $1)
		ORDER BY c.created_at DESC, c.id`

	rows, err := s.db.Query(ctx, query, persona.DefaultSessionPrefix)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	var sums []conversation.Summary
	for rows.Next() {
		var (
			sum     conversation.Summary
			idsJSON []byte
		)
		if err := rows.Scan(&sum.ID, &idsJSON, &sum.CreatedAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("postgres: list scan: %w", err)
		}
		if err := json.Unmarshal(idsJSON, &sum.PersonaIDs); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal persona_ids: %w", err)
		}
		sums = append(sums, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return sums, nil
}

// AppendMessages implements [conversation.Store].
func (s *Store) AppendMessages(ctx context.Context, id string, msgs ...conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}

	const query = `
		INSERT INTO conversation_messages (conversation_id, role, name, content)
		VALUES ($1, $2, $3, $4)`

	for _, m := range msgs {
		if _, err := s.db.Exec(ctx, query, id, m.Role, m.Name, m.Content); err != nil {
			return fmt.Errorf("postgres: append message: %w", err)
		}
	}
	return nil
}

// Messages implements [conversation.Store].
func (s *Store) Messages(ctx context.Context, id string, offset, limit int) ([]conversation.Message, int, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, 0, err
	}

	var total int
	const countQuery = `SELECT count(*) FROM conversation_messages WHERE conversation_id = $1`
	if err := s.db.QueryRow(ctx, countQuery, id).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count messages: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	const query = `
		SELECT role, name, content
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY seq
		OFFSET $2 LIMIT $3`

	// NULL limit means no limit in Postgres.
	var limitArg any
	if limit >= 0 {
		limitArg = limit
	}
	rows, err := s.db.Query(ctx, query, id, offset, limitArg)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]conversation.Message, 0, total)
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.Role, &m.Name, &m.Content); err != nil {
			return nil, 0, fmt.Errorf("postgres: messages scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: messages: %w", err)
	}
	return msgs, total, nil
}

// Delete implements [conversation.Store]. Messages go with the conversation
// via ON DELETE CASCADE; deleting a non-existent conversation is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM conversations WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("postgres: delete %q: %w", id, err)
	}
	return nil
}

// exists returns [conversation.ErrNotFound] when no conversation row has the
// given id.
func (s *Store) exists(ctx context.Context, id string) error {
	const query = `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`
	var ok bool
	if err := s.db.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return fmt.Errorf("postgres: exists %q: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("conversation %q: %w", id, conversation.ErrNotFound)
	}
	return nil
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// emptySlice normalises a nil slice to an empty one so it serialises as []
// instead of null.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// emptyProfiles normalises a nil map to an empty one so it serialises as {}
// instead of null.
func emptyProfiles(m map[string]persona.Profile) map[string]persona.Profile {
	if m == nil {
		return map[string]persona.Profile{}
	}
	return m
}
