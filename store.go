package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"groups/grouper"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCase = errors.New("case already exists")
	ErrNoName        = errors.New("name is required")
	ErrNoPreferences = errors.New("at least one preference is required")
)

var defaultCases = []string{
	"Marketing Strategy",
	"Financial Analysis",
	"Operations Management",
	"Product Launch",
	"Sustainability Initiative",
}

// roster is the persistence surface the HTTP handlers depend on.
type roster interface {
	ListStudents(ctx context.Context) ([]grouper.Student, error)
	AddStudent(ctx context.Context, name string, prefs []string) (grouper.Student, error)
	RemoveStudent(ctx context.Context, id string) error
	ClearStudents(ctx context.Context) (int64, error)
	ListCases(ctx context.Context) ([]string, error)
	AddCase(ctx context.Context, name string) error
	RemoveCase(ctx context.Context, name string) error
}

type rosterStore struct {
	db *sql.DB
}

func newRosterStore(db *sql.DB) *rosterStore {
	return &rosterStore{db: db}
}

// normalizeStudent trims the name and preference labels and drops blank or
// repeated labels, keeping each label's first rank.
func normalizeStudent(name string, prefs []string) (string, []string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, ErrNoName
	}
	var clean []string
	for _, p := range prefs {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(clean, p) {
			continue
		}
		clean = append(clean, p)
	}
	if len(clean) == 0 {
		return "", nil, ErrNoPreferences
	}
	return name, clean, nil
}

func (s *rosterStore) ListStudents(ctx context.Context) ([]grouper.Student, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, preferences FROM students ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	students := []grouper.Student{}
	for rows.Next() {
		var st grouper.Student
		if err := rows.Scan(&st.ID, &st.Name, pq.Array(&st.Preferences)); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		if st.Preferences == nil {
			st.Preferences = []string{}
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func (s *rosterStore) AddStudent(ctx context.Context, name string, prefs []string) (grouper.Student, error) {
	name, prefs, err := normalizeStudent(name, prefs)
	if err != nil {
		return grouper.Student{}, err
	}
	st := grouper.Student{ID: uuid.New().String(), Name: name, Preferences: prefs}
	_, err = s.db.ExecContext(ctx, "INSERT INTO students (id, name, preferences) VALUES ($1, $2, $3)",
		st.ID, st.Name, pq.Array(st.Preferences))
	if err != nil {
		return grouper.Student{}, fmt.Errorf("insert student: %w", err)
	}
	return st, nil
}

func (s *rosterStore) RemoveStudent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *rosterStore) ClearStudents(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM students")
	if err != nil {
		return 0, fmt.Errorf("clear students: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// ListCases returns case labels in creation order. An empty table is seeded
// with the default cases first.
func (s *rosterStore) ListCases(ctx context.Context) ([]string, error) {
	cases, err := s.queryCases(ctx)
	if err != nil || len(cases) > 0 {
		return cases, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("seed cases: %w", err)
	}
	defer tx.Rollback()
	for _, name := range defaultCases {
		if _, err := tx.ExecContext(ctx, "INSERT INTO cases (name) VALUES ($1) ON CONFLICT (name) DO NOTHING", name); err != nil {
			return nil, fmt.Errorf("seed case %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("seed cases: %w", err)
	}
	return s.queryCases(ctx)
}

func (s *rosterStore) queryCases(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM cases ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	cases := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, name)
	}
	return cases, rows.Err()
}

func (s *rosterStore) AddCase(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoName
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO cases (name) VALUES ($1)", name)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateCase
	}
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *rosterStore) RemoveCase(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM cases WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
