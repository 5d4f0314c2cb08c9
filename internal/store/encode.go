package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/fact"
)

// Timestamps are stored as fixed-width UTC strings with six fractional
// digits so lexicographic TEXT comparison in SQL equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func encodeUUID(id uuid.UUID) string { return id.String() }

func decodeUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse uuid %q: %w", s, err)
	}
	return id, nil
}

func encodeEffectiveDate(e *fact.EffectiveDate) (sql.NullString, error) {
	if e == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode effective date: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeEffectiveDate(s sql.NullString) (*fact.EffectiveDate, error) {
	if !s.Valid {
		return nil, nil
	}
	var e fact.EffectiveDate
	if err := json.Unmarshal([]byte(s.String), &e); err != nil {
		return nil, fmt.Errorf("decode effective date: %w", err)
	}
	return &e, nil
}

// factRow holds the raw columns of a facts row joined with both lifecycle
// tables, before decoding into domain types.
type factRow struct {
	factID           string
	subjectID        string
	factType         string
	valueJSON        string
	recordedAt       string
	effectiveAt      sql.NullString
	effectiveUntil   sql.NullString
	source           sql.NullString
	confidence       string
	recordingContext string
	tags             string

	supersededBy    sql.NullString
	supersededAt    sql.NullString
	retractedReason sql.NullString
	retractedAt     sql.NullString
}

func (r *factRow) resolve() (fact.ResolvedFact, error) {
	var rf fact.ResolvedFact

	factID, err := decodeUUID(r.factID)
	if err != nil {
		return rf, err
	}
	subjectID, err := decodeUUID(r.subjectID)
	if err != nil {
		return rf, err
	}
	recordedAt, err := decodeTime(r.recordedAt)
	if err != nil {
		return rf, err
	}
	value, err := fact.DecodeValue(r.factType, []byte(r.valueJSON))
	if err != nil {
		return rf, err
	}
	effectiveAt, err := decodeEffectiveDate(r.effectiveAt)
	if err != nil {
		return rf, err
	}
	effectiveUntil, err := decodeEffectiveDate(r.effectiveUntil)
	if err != nil {
		return rf, err
	}
	confidence, err := fact.ParseConfidence(r.confidence)
	if err != nil {
		return rf, err
	}

	var ctx fact.RecordingContext
	if err := json.Unmarshal([]byte(r.recordingContext), &ctx); err != nil {
		return rf, fmt.Errorf("decode recording context: %w", err)
	}
	var tags []string
	if err := json.Unmarshal([]byte(r.tags), &tags); err != nil {
		return rf, fmt.Errorf("decode tags: %w", err)
	}

	rf.Fact = fact.Fact{
		FactID:           factID,
		SubjectID:        subjectID,
		Value:            value,
		RecordedAt:       recordedAt,
		EffectiveAt:      effectiveAt,
		EffectiveUntil:   effectiveUntil,
		Source:           r.source.String,
		Confidence:       confidence,
		RecordingContext: ctx,
		Tags:             tags,
	}

	switch {
	case r.supersededBy.Valid:
		by, err := decodeUUID(r.supersededBy.String)
		if err != nil {
			return rf, err
		}
		at, err := decodeTime(r.supersededAt.String)
		if err != nil {
			return rf, err
		}
		rf.Status = fact.Status{Kind: fact.StatusSuperseded, SupersededBy: by, At: at}
	case r.retractedAt.Valid:
		at, err := decodeTime(r.retractedAt.String)
		if err != nil {
			return rf, err
		}
		rf.Status = fact.Status{Kind: fact.StatusRetracted, Reason: r.retractedReason.String, At: at}
	default:
		rf.Status = fact.Active()
	}

	return rf, nil
}

// subjectRow holds raw subjects columns.
type subjectRow struct {
	subjectID string
	createdAt string
	kind      string
}

func (r *subjectRow) decode() (fact.Subject, error) {
	id, err := decodeUUID(r.subjectID)
	if err != nil {
		return fact.Subject{}, err
	}
	at, err := decodeTime(r.createdAt)
	if err != nil {
		return fact.Subject{}, err
	}
	kind, err := fact.ParseSubjectKind(r.kind)
	if err != nil {
		return fact.Subject{}, err
	}
	return fact.Subject{SubjectID: id, CreatedAt: at, Kind: kind}, nil
}
