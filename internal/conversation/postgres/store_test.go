package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ColinWang98/Intercultural-Town/internal/conversation"
	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// ---------------------------------------------------------------------------
// Test helpers — mock DB types
// ---------------------------------------------------------------------------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

// scanInto assigns src values into dest pointers for mockRow scan funcs.
func scanInto(dest []any, src ...any) error {
	if len(dest) != len(src) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(src), len(dest))
	}
	for i, v := range src {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *int:
			*d = v.(int)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMigrate_ExecutesSchema(t *testing.T) {
	t.Parallel()

	var executed string
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			executed = sql
			return pgconn.CommandTag{}, nil
		},
	}

	if err := NewStore(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !strings.Contains(executed, "CREATE TABLE IF NOT EXISTS conversations") {
		t.Error("schema DDL missing conversations table")
	}
	if !strings.Contains(executed, "conversation_messages") {
		t.Error("schema DDL missing messages table")
	}
}

func TestCreate_DuplicateKey(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(_ ...any) error {
				return &pgconn.PgError{Code: "23505"}
			}}
		},
	}

	err := NewStore(db).Create(context.Background(), &conversation.Conversation{ID: "conv1"})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %v, want duplicate-key message", err)
	}
}

func TestCreate_EmptyID(t *testing.T) {
	t.Parallel()

	err := NewStore(&mockDB{}).Create(context.Background(), &conversation.Conversation{})
	if err == nil || !strings.Contains(err.Error(), "must not be empty") {
		t.Errorf("error = %v, want empty-id message", err)
	}
}

func TestCreate_PersistsOpeningMessages(t *testing.T) {
	t.Parallel()

	created := time.Now().UTC()
	var inserted []string
	db := &mockDB{
		queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
			if strings.Contains(sql, "INSERT INTO conversations") {
				return &mockRow{scanFunc: func(dest ...any) error {
					return scanInto(dest, created)
				}}
			}
			// exists check from AppendMessages.
			return &mockRow{scanFunc: func(dest ...any) error {
				return scanInto(dest, true)
			}}
		},
		execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			if strings.Contains(sql, "INSERT INTO conversation_messages") {
				inserted = append(inserted, args[3].(string))
			}
			return pgconn.CommandTag{}, nil
		},
	}

	conv := &conversation.Conversation{
		ID:        "conv1",
		CreatedAt: created,
		Messages: []conversation.Message{
			{Role: conversation.RoleModel, Name: "Mikko", Content: "Moi!"},
			{Role: conversation.RoleModel, Name: "Aino", Content: "Selvä!"},
		},
	}
	if err := NewStore(db).Create(context.Background(), conv); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(inserted) != 2 || inserted[0] != "Moi!" || inserted[1] != "Selvä!" {
		t.Errorf("inserted message contents = %v", inserted)
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	_, err := NewStore(&mockDB{}).Get(context.Background(), "missing")
	if !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGet_UnmarshalsStoredConversation(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	db := &mockDB{
		queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
			switch {
			case strings.Contains(sql, "FROM conversations"):
				if strings.Contains(sql, "EXISTS") {
					return &mockRow{scanFunc: func(dest ...any) error {
						return scanInto(dest, true)
					}}
				}
				return &mockRow{scanFunc: func(dest ...any) error {
					return scanInto(dest,
						"conv1",
						[]byte(`["mikko","aino"]`),
						[]byte(`{"mikko":{"id":"mikko","name":"米科"}}`),
						created,
					)
				}}
			default:
				// message count.
				return &mockRow{scanFunc: func(dest ...any) error {
					return scanInto(dest, 1)
				}}
			}
		},
		queryFunc: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return &mockRows{data: [][]any{{"user", "", "你好"}}}, nil
		},
	}

	conv, err := NewStore(db).Get(context.Background(), "conv1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(conv.PersonaIDs) != 2 || conv.PersonaIDs[0] != "mikko" {
		t.Errorf("PersonaIDs = %v", conv.PersonaIDs)
	}
	if conv.Profiles["mikko"].Name != "米科" {
		t.Errorf("profile name = %q, want 米科", conv.Profiles["mikko"].Name)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Content != "你好" {
		t.Errorf("Messages = %+v", conv.Messages)
	}
	if !conv.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", conv.CreatedAt, created)
	}
}

func TestList_FiltersInternalSessionsInSQL(t *testing.T) {
	t.Parallel()

	var gotPrefix any
	db := &mockDB{
		queryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
			if !strings.Contains(sql, "starts_with") {
				t.Errorf("list query does not filter internal sessions: %s", sql)
			}
			gotPrefix = args[0]
			return &mockRows{data: [][]any{
				{"conv1", []byte(`["mikko","aino"]`), time.Now().UTC(), 4},
			}}, nil
		},
	}

	sums, err := NewStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotPrefix != persona.DefaultSessionPrefix {
		t.Errorf("filter prefix = %v, want %q", gotPrefix, persona.DefaultSessionPrefix)
	}
	if len(sums) != 1 || sums[0].MessageCount != 4 {
		t.Errorf("summaries = %+v", sums)
	}
}

func TestAppendMessages_UnknownConversation(t *testing.T) {
	t.Parallel()

	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				return scanInto(dest, false)
			}}
		},
	}

	err := NewStore(db).AppendMessages(context.Background(), "missing",
		conversation.Message{Role: conversation.RoleUser, Content: "hi"})
	if !errors.Is(err, conversation.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMessages_PassesPagingArguments(t *testing.T) {
	t.Parallel()

	var gotOffset, gotLimit any
	db := &mockDB{
		queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
			if strings.Contains(sql, "EXISTS") {
				return &mockRow{scanFunc: func(dest ...any) error {
					return scanInto(dest, true)
				}}
			}
			return &mockRow{scanFunc: func(dest ...any) error {
				return scanInto(dest, 10)
			}}
		},
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotOffset, gotLimit = args[1], args[2]
			return &mockRows{}, nil
		},
	}

	_, total, err := NewStore(db).Messages(context.Background(), "conv1", 2, 5)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if total != 10 {
		t.Errorf("total = %d, want 10", total)
	}
	if gotOffset != 2 || gotLimit != 5 {
		t.Errorf("paging args = (%v, %v), want (2, 5)", gotOffset, gotLimit)
	}

	// A negative limit is sent as NULL, meaning no limit.
	if _, _, err := NewStore(db).Messages(context.Background(), "conv1", 0, -1); err != nil {
		t.Fatalf("Messages unlimited: %v", err)
	}
	if gotLimit != nil {
		t.Errorf("unlimited limit arg = %v, want nil", gotLimit)
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	t.Parallel()

	if !isDuplicateKeyError(&pgconn.PgError{Code: "23505"}) {
		t.Error("SQLSTATE 23505 not recognised")
	}
	if isDuplicateKeyError(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign-key violation misclassified as duplicate")
	}
	if isDuplicateKeyError(errors.New("plain")) {
		t.Error("plain error misclassified as duplicate")
	}
}
