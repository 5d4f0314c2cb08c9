package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/fact"
)

// GetFacts returns the facts of a subject recorded at or before asOf (zero
// time means now), each with its lifecycle status resolved as of that same
// instant. When includeInactive is false only active facts are returned.
//
// Point-in-time correctness: the lifecycle joins are themselves bounded by
// asOf, so materialising at an earlier instant shows facts that were active
// then even if they were later superseded or retracted.
//
// Ordering is deterministic: recorded_at ASC, fact_id ASC.
func (s *Store) GetFacts(ctx context.Context, subjectID uuid.UUID, asOf time.Time, includeInactive bool) ([]fact.ResolvedFact, error) {
	if asOf.IsZero() {
		asOf = s.nowUTC()
	}
	asOfStr := encodeTime(asOf)

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			f.fact_id, f.subject_id, f.fact_type, f.value_json,
			f.recorded_at, f.effective_at, f.effective_until,
			f.source, f.confidence, f.recording_context, f.tags,
			s.new_fact_id AS superseded_by,
			s.recorded_at AS superseded_at,
			r.reason      AS retraction_reason,
			r.recorded_at AS retracted_at
		FROM facts f
		LEFT JOIN supersessions s
			ON s.old_fact_id = f.fact_id AND s.recorded_at <= ?2
		LEFT JOIN retractions r
			ON r.fact_id = f.fact_id AND r.recorded_at <= ?2
		WHERE f.subject_id = ?1
		  AND f.recorded_at <= ?2
		ORDER BY f.recorded_at ASC, f.fact_id ASC
	`, encodeUUID(subjectID), asOfStr)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := []fact.ResolvedFact{}
	for rows.Next() {
		var row factRow
		err := rows.Scan(
			&row.factID, &row.subjectID, &row.factType, &row.valueJSON,
			&row.recordedAt, &row.effectiveAt, &row.effectiveUntil,
			&row.source, &row.confidence, &row.recordingContext, &row.tags,
			&row.supersededBy, &row.supersededAt,
			&row.retractedReason, &row.retractedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		rf, err := row.resolve()
		if err != nil {
			return nil, fmt.Errorf("resolve fact: %w", err)
		}
		if !includeInactive && !rf.Status.IsActive() {
			continue
		}
		facts = append(facts, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}

	return facts, nil
}

// Materialize computes the ContactView for a subject as of the given instant
// (zero time means now). Returns (nil, nil) when the subject does not exist.
func (s *Store) Materialize(ctx context.Context, subjectID uuid.UUID, asOf time.Time) (*fact.ContactView, error) {
	subject, err := s.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, nil
	}

	if asOf.IsZero() {
		asOf = s.nowUTC()
	}
	active, err := s.GetFacts(ctx, subjectID, asOf, false)
	if err != nil {
		return nil, err
	}

	return &fact.ContactView{
		Subject:     *subject,
		AsOf:        asOf,
		ActiveFacts: active,
	}, nil
}
