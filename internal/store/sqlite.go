package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

var _ QuestionStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS questions (
        id TEXT PRIMARY KEY, -- UUID
        question TEXT NOT NULL CHECK (question <> ''),
        type TEXT NOT NULL,
        difficulty TEXT NOT NULL,
        category TEXT NOT NULL DEFAULT '',
        tags_json TEXT NOT NULL DEFAULT '[]',
        answer TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_questions_lookup ON questions (category, difficulty, type);
    CREATE INDEX IF NOT EXISTS idx_questions_text ON questions (question);
    `
	_, err := s.db.Exec(schema)
	return err
}

const questionColumns = "id, question, type, difficulty, category, tags_json, answer, created_at"

// buildWhere translates a Filter into a WHERE clause. Enum columns are always
// restricted to their valid values so malformed rows never surface.
func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	conds = append(conds, "type IN ("+placeholders(len(validKinds))+")")
	for _, k := range validKinds {
		args = append(args, k)
	}
	conds = append(conds, "difficulty IN ("+placeholders(len(validDifficulties))+")")
	for _, d := range validDifficulties {
		args = append(args, d)
	}

	if f.Kind != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Kind))
	}
	if f.Difficulty != "" {
		conds = append(conds, "difficulty = ?")
		args = append(args, string(f.Difficulty))
	}
	if len(f.Categories) > 0 {
		conds = append(conds, "category IN ("+placeholders(len(f.Categories))+")")
		for _, c := range f.Categories {
			args = append(args, c)
		}
	}
	if f.Text != "" {
		conds = append(conds, "question = ?")
		args = append(args, f.Text)
	}
	if len(f.Tags) > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(questions.tags_json) WHERE json_each.value IN ("+placeholders(len(f.Tags))+"))")
		for _, t := range f.Tags {
			args = append(args, t)
		}
	}
	if f.WithReferenceAnswer {
		conds = append(conds, "TRIM(answer) <> ''")
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *SQLiteStore) Find(ctx context.Context, filter Filter) ([]QuestionRecord, error) {
	if filter.impossible() {
		return []QuestionRecord{}, nil
	}

	where, args := buildWhere(filter)
	query := "SELECT " + questionColumns + " FROM questions" + where + " ORDER BY created_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("find", fmt.Errorf("failed to query questions: %w", err))
	}
	defer rows.Close()

	records := []QuestionRecord{}
	for rows.Next() {
		record, err := scanQuestion(rows)
		if err != nil {
			return nil, storeErr("find", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find", fmt.Errorf("failed to iterate question rows: %w", err))
	}
	return records, nil
}

func (s *SQLiteStore) FindOne(ctx context.Context, filter Filter) (*QuestionRecord, error) {
	filter.Limit = 1
	records, err := s.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil // Not found
	}
	return &records[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*QuestionRecord, error) {
	var (
		record   QuestionRecord
		kind     string
		diff     string
		tagsJSON string
	)
	if err := row.Scan(&record.ID, &record.Text, &kind, &diff, &record.Category, &tagsJSON, &record.ReferenceAnswer, &record.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan question row: %w", err)
	}
	record.Kind = Kind(kind)
	record.Difficulty = Difficulty(diff)
	if err := json.Unmarshal([]byte(tagsJSON), &record.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for question %s: %w", record.ID, err)
	}
	if record.Tags == nil {
		record.Tags = []string{}
	}
	return &record, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(b), nil
}

// Create assigns ID and CreatedAt and inserts the record.
func (s *SQLiteStore) Create(ctx context.Context, record *QuestionRecord) error {
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO questions ("+questionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return storeErr("create", fmt.Errorf("failed to prepare question insert: %w", err))
	}
	defer stmt.Close()

	if err := insertQuestion(ctx, stmt, record); err != nil {
		return storeErr("create", err)
	}
	return nil
}

func insertQuestion(ctx context.Context, stmt *sql.Stmt, record *QuestionRecord) error {
	tagsJSON, err := marshalTags(record.Tags)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, record.ID, record.Text, string(record.Kind), string(record.Difficulty),
		record.Category, tagsJSON, record.ReferenceAnswer, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute question insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, update QuestionUpdate) error {
	if update.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	if update.Text != nil {
		sets = append(sets, "question = ?")
		args = append(args, *update.Text)
	}
	if update.Kind != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*update.Kind))
	}
	if update.Difficulty != nil {
		sets = append(sets, "difficulty = ?")
		args = append(args, string(*update.Difficulty))
	}
	if update.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *update.Category)
	}
	if update.Tags != nil {
		tagsJSON, err := marshalTags(update.Tags)
		if err != nil {
			return storeErr("update", err)
		}
		sets = append(sets, "tags_json = ?")
		args = append(args, tagsJSON)
	}
	if update.ReferenceAnswer != nil {
		sets = append(sets, "answer = ?")
		args = append(args, *update.ReferenceAnswer)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE questions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return storeErr("update", fmt.Errorf("failed to execute question update: %w", err))
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		return storeErr("delete", fmt.Errorf("failed to execute question delete: %w", err))
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts all records in one transaction, preserving their order.
func (s *SQLiteStore) Seed(ctx context.Context, records []QuestionRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("seed", fmt.Errorf("failed to begin seed transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO questions ("+questionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, storeErr("seed", fmt.Errorf("failed to prepare seed insert: %w", err))
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range records {
		records[i].ID = uuid.NewString()
		records[i].CreatedAt = now
		if err := insertQuestion(ctx, stmt, &records[i]); err != nil {
			return 0, storeErr("seed", fmt.Errorf("record %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("seed", fmt.Errorf("failed to commit seed transaction: %w", err))
	}
	return len(records), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions").Scan(&n); err != nil {
		return 0, storeErr("count", fmt.Errorf("failed to count questions: %w", err))
	}
	return n, nil
}
