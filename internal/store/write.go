package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/fact"
)

// RecordFact appends a new fact. The fact_id and recorded_at are assigned
// here; the caller's subject must already exist.
func (s *Store) RecordFact(ctx context.Context, input fact.NewFact) (fact.Fact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fact.Fact{}, fmt.Errorf("record fact: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stored, err := s.insertFact(ctx, tx, input)
	if err != nil {
		return fact.Fact{}, fmt.Errorf("record fact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fact.Fact{}, fmt.Errorf("record fact: commit: %w", err)
	}
	return stored, nil
}

// Supersede atomically replaces an active fact: it verifies old_id is active,
// inserts the replacement fact, and links them with a supersession row — all
// in one transaction.
func (s *Store) Supersede(ctx context.Context, oldID uuid.UUID, replacement fact.NewFact) (fact.Supersession, fact.Fact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fact.Supersession{}, fact.Fact{}, fmt.Errorf("supersede: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkActive(ctx, tx, oldID); err != nil {
		return fact.Supersession{}, fact.Fact{}, fmt.Errorf("supersede: %w", err)
	}

	newFact, err := s.insertFact(ctx, tx, replacement)
	if err != nil {
		return fact.Supersession{}, fact.Fact{}, fmt.Errorf("supersede: %w", err)
	}
	if newFact.FactID == oldID {
		return fact.Supersession{}, fact.Fact{}, fmt.Errorf("supersede: %w", ErrSelfSupersession)
	}

	sup := fact.Supersession{
		SupersessionID: uuid.New(),
		OldFactID:      oldID,
		NewFactID:      newFact.FactID,
		RecordedAt:     s.nextRecordedAt(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO supersessions (supersession_id, old_fact_id, new_fact_id, recorded_at)
		VALUES (?, ?, ?, ?)
	`,
		encodeUUID(sup.SupersessionID),
		encodeUUID(sup.OldFactID),
		encodeUUID(sup.NewFactID),
		encodeTime(sup.RecordedAt),
	)
	if err != nil {
		return fact.Supersession{}, fact.Fact{}, fmt.Errorf("supersede: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fact.Supersession{}, fact.Fact{}, fmt.Errorf("supersede: commit: %w", err)
	}
	return sup, newFact, nil
}

// Retract atomically withdraws an active fact with no replacement.
func (s *Store) Retract(ctx context.Context, factID uuid.UUID, reason string) (fact.Retraction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fact.Retraction{}, fmt.Errorf("retract: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkActive(ctx, tx, factID); err != nil {
		return fact.Retraction{}, fmt.Errorf("retract: %w", err)
	}

	ret := fact.Retraction{
		RetractionID: uuid.New(),
		FactID:       factID,
		Reason:       reason,
		RecordedAt:   s.nextRecordedAt(),
	}

	var reasonCol sql.NullString
	if reason != "" {
		reasonCol = sql.NullString{String: reason, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO retractions (retraction_id, fact_id, reason, recorded_at)
		VALUES (?, ?, ?, ?)
	`,
		encodeUUID(ret.RetractionID),
		encodeUUID(ret.FactID),
		reasonCol,
		encodeTime(ret.RecordedAt),
	)
	if err != nil {
		return fact.Retraction{}, fmt.Errorf("retract: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fact.Retraction{}, fmt.Errorf("retract: commit: %w", err)
	}
	return ret, nil
}

// insertFact builds the stored Fact and inserts it within tx.
func (s *Store) insertFact(ctx context.Context, tx *sql.Tx, input fact.NewFact) (fact.Fact, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM subjects WHERE subject_id = ?",
		encodeUUID(input.SubjectID),
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fact.Fact{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, input.SubjectID)
	}
	if err != nil {
		return fact.Fact{}, fmt.Errorf("check subject: %w", err)
	}

	stored := fact.Fact{
		FactID:           uuid.New(),
		SubjectID:        input.SubjectID,
		Value:            input.Value,
		RecordedAt:       s.nextRecordedAt(),
		EffectiveAt:      input.EffectiveAt,
		EffectiveUntil:   input.EffectiveUntil,
		Source:           input.Source,
		Confidence:       input.Confidence,
		RecordingContext: input.RecordingContext,
		Tags:             input.Tags,
	}
	if stored.Confidence == "" {
		stored.Confidence = fact.Certain
	}
	if stored.RecordingContext.Kind == "" {
		stored.RecordingContext = fact.Manual()
	}

	factType, payload, err := fact.EncodeValue(stored.Value)
	if err != nil {
		return fact.Fact{}, err
	}
	effectiveAt, err := encodeEffectiveDate(stored.EffectiveAt)
	if err != nil {
		return fact.Fact{}, err
	}
	effectiveUntil, err := encodeEffectiveDate(stored.EffectiveUntil)
	if err != nil {
		return fact.Fact{}, err
	}
	ctxJSON, err := json.Marshal(stored.RecordingContext)
	if err != nil {
		return fact.Fact{}, fmt.Errorf("encode recording context: %w", err)
	}
	tags := stored.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fact.Fact{}, fmt.Errorf("encode tags: %w", err)
	}

	var sourceCol sql.NullString
	if stored.Source != "" {
		sourceCol = sql.NullString{String: stored.Source, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO facts (
			fact_id, subject_id, fact_type, value_json, recorded_at,
			effective_at, effective_until, source,
			confidence, recording_context, tags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		encodeUUID(stored.FactID),
		encodeUUID(stored.SubjectID),
		factType,
		string(payload),
		encodeTime(stored.RecordedAt),
		effectiveAt,
		effectiveUntil,
		sourceCol,
		string(stored.Confidence),
		string(ctxJSON),
		string(tagsJSON),
	)
	if err != nil {
		return fact.Fact{}, fmt.Errorf("insert fact: %w", err)
	}

	return stored, nil
}

// checkActive verifies a fact exists and has no lifecycle event yet.
func checkActive(ctx context.Context, tx *sql.Tx, factID uuid.UUID) error {
	id := encodeUUID(factID)

	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM facts WHERE fact_id = ?", id,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrFactNotFound, factID)
	}
	if err != nil {
		return fmt.Errorf("check fact: %w", err)
	}

	var superseded bool
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM supersessions WHERE old_fact_id = ?", id,
	).Scan(&superseded)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadySuperseded, factID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check supersessions: %w", err)
	}

	var retracted bool
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM retractions WHERE fact_id = ?", id,
	).Scan(&retracted)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyRetracted, factID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check retractions: %w", err)
	}

	return nil
}
