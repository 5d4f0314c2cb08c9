package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/fact"
)

// AddSubject creates and persists a new subject of the given kind with a
// fresh UUID.
func (s *Store) AddSubject(ctx context.Context, kind fact.SubjectKind) (fact.Subject, error) {
	return s.AddSubjectWithID(ctx, uuid.New(), kind)
}

// AddSubjectWithID creates a subject with a caller-chosen UUID. CardDAV PUT
// uses this so the subject id equals the uuid in the resource URL.
func (s *Store) AddSubjectWithID(ctx context.Context, id uuid.UUID, kind fact.SubjectKind) (fact.Subject, error) {
	subject := fact.Subject{
		SubjectID: id,
		CreatedAt: s.nextRecordedAt(),
		Kind:      kind,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subjects (subject_id, created_at, kind)
		VALUES (?, ?, ?)
	`,
		encodeUUID(subject.SubjectID),
		encodeTime(subject.CreatedAt),
		string(subject.Kind),
	)
	if err != nil {
		return fact.Subject{}, fmt.Errorf("add subject: %w", err)
	}

	return subject, nil
}

// GetSubject retrieves a subject by UUID. Returns (nil, nil) if not found.
func (s *Store) GetSubject(ctx context.Context, id uuid.UUID) (*fact.Subject, error) {
	var row subjectRow
	err := s.db.QueryRowContext(ctx, `
		SELECT subject_id, created_at, kind
		FROM subjects
		WHERE subject_id = ?
	`, encodeUUID(id)).Scan(&row.subjectID, &row.createdAt, &row.kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}

	subject, err := row.decode()
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &subject, nil
}

// ListSubjects returns all subjects, optionally filtered by kind (empty kind
// means all). Ordering is deterministic: created_at ASC, subject_id ASC.
func (s *Store) ListSubjects(ctx context.Context, kind fact.SubjectKind) ([]fact.Subject, error) {
	query := `
		SELECT subject_id, created_at, kind
		FROM subjects
		ORDER BY created_at ASC, subject_id ASC
	`
	args := []any{}
	if kind != "" {
		query = `
			SELECT subject_id, created_at, kind
			FROM subjects
			WHERE kind = ?
			ORDER BY created_at ASC, subject_id ASC
		`
		args = append(args, string(kind))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	subjects := []fact.Subject{}
	for rows.Next() {
		var row subjectRow
		if err := rows.Scan(&row.subjectID, &row.createdAt, &row.kind); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subject, err := row.decode()
		if err != nil {
			return nil, fmt.Errorf("list subjects: %w", err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}

	return subjects, nil
}

// SubjectQuery filters Search. Zero values mean "no constraint".
type SubjectQuery struct {
	// Text is matched with SQL LIKE against serialised fact payloads.
	Text string
	Kind fact.SubjectKind
	// Limit defaults to 100 when zero.
	Limit  int
	Offset int
}

// Search returns subjects with at least one fact whose payload matches the
// query text. Full-text search proper is deferred; this is the LIKE-based
// variant backing the CLI list command.
func (s *Store) Search(ctx context.Context, q SubjectQuery) ([]fact.Subject, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 100
	}

	where := ""
	args := []any{}
	if q.Text != "" {
		where += " AND f.value_json LIKE ?"
		args = append(args, "%"+q.Text+"%")
	}
	if q.Kind != "" {
		where += " AND s.kind = ?"
		args = append(args, string(q.Kind))
	}
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT s.subject_id, s.created_at, s.kind
		FROM subjects s
		LEFT JOIN facts f ON f.subject_id = s.subject_id
		WHERE 1=1`+where+`
		ORDER BY s.created_at ASC, s.subject_id ASC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("search subjects: %w", err)
	}
	defer rows.Close()

	subjects := []fact.Subject{}
	for rows.Next() {
		var row subjectRow
		if err := rows.Scan(&row.subjectID, &row.createdAt, &row.kind); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subject, err := row.decode()
		if err != nil {
			return nil, fmt.Errorf("search subjects: %w", err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}

	return subjects, nil
}
