package fact

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EffectiveDateKind discriminates the three shapes of an EffectiveDate.
type EffectiveDateKind string

const (
	EffectiveInstant  EffectiveDateKind = "instant"
	EffectiveDateOnly EffectiveDateKind = "date_only"
	EffectiveUnknown  EffectiveDateKind = "unknown"
)

// EffectiveDate is a temporal claim about when a fact is (or was) true in the
// real world — distinct from when it was recorded. It is either an instant, a
// calendar date, or an explicit "true at some unknown time" marker.
type EffectiveDate struct {
	Kind    EffectiveDateKind
	Instant time.Time // set when Kind == EffectiveInstant
	Date    Date      // set when Kind == EffectiveDateOnly
}

// EffectiveAtInstant builds an instant-shaped EffectiveDate.
func EffectiveAtInstant(t time.Time) *EffectiveDate {
	return &EffectiveDate{Kind: EffectiveInstant, Instant: t.UTC()}
}

// EffectiveAtDate builds a date-shaped EffectiveDate.
func EffectiveAtDate(d Date) *EffectiveDate {
	return &EffectiveDate{Kind: EffectiveDateOnly, Date: d}
}

// EffectiveAtUnknown builds the unknown marker.
func EffectiveAtUnknown() *EffectiveDate {
	return &EffectiveDate{Kind: EffectiveUnknown}
}

type effectiveDateJSON struct {
	Kind  EffectiveDateKind `json:"kind"`
	Value string            `json:"value,omitempty"`
}

// MarshalJSON encodes as {"kind":"instant","value":"…"} and friends.
func (e EffectiveDate) MarshalJSON() ([]byte, error) {
	out := effectiveDateJSON{Kind: e.Kind}
	switch e.Kind {
	case EffectiveInstant:
		out.Value = e.Instant.UTC().Format(time.RFC3339Nano)
	case EffectiveDateOnly:
		out.Value = e.Date.String()
	case EffectiveUnknown:
	default:
		return nil, fmt.Errorf("unknown effective date kind %q", e.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *EffectiveDate) UnmarshalJSON(data []byte) error {
	var in effectiveDateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case EffectiveInstant:
		t, err := time.Parse(time.RFC3339Nano, in.Value)
		if err != nil {
			return fmt.Errorf("effective date instant: %w", err)
		}
		*e = EffectiveDate{Kind: EffectiveInstant, Instant: t.UTC()}
	case EffectiveDateOnly:
		d, err := ParseDate(in.Value)
		if err != nil {
			return fmt.Errorf("effective date: %w", err)
		}
		*e = EffectiveDate{Kind: EffectiveDateOnly, Date: d}
	case EffectiveUnknown:
		*e = EffectiveDate{Kind: EffectiveUnknown}
	default:
		return fmt.Errorf("unknown effective date kind %q", in.Kind)
	}
	return nil
}

// Confidence expresses how certain the author is about a fact.
type Confidence string

const (
	Certain  Confidence = "certain"
	Probable Confidence = "probable"
	Rumored  Confidence = "rumored"
)

// ParseConfidence validates a confidence string from storage.
func ParseConfidence(s string) (Confidence, error) {
	switch Confidence(s) {
	case Certain, Probable, Rumored:
		return Confidence(s), nil
	}
	return "", fmt.Errorf("unknown confidence %q", s)
}

// RecordingContext captures how a fact entered the store.
type RecordingContext struct {
	Kind string `json:"kind"` // "manual" | "imported"
	// SourceName is a human-readable name for the source, e.g.
	// "carddav-put" or "Google Contacts 2024-01". Imported only.
	SourceName string `json:"source_name,omitempty"`
	// OriginalUID is the UID of the originating vCard, if any. Imported only.
	OriginalUID string `json:"original_uid,omitempty"`
}

// Manual is the context for facts typed in by the user directly.
func Manual() RecordingContext {
	return RecordingContext{Kind: "manual"}
}

// Imported is the context for facts ingested from an external system.
func Imported(sourceName, originalUID string) RecordingContext {
	return RecordingContext{Kind: "imported", SourceName: sourceName, OriginalUID: originalUID}
}

// Fact is an immutable claim about a subject. Once written, no field ever
// changes; lifecycle events live in separate tables.
type Fact struct {
	FactID     uuid.UUID `json:"fact_id"`
	SubjectID  uuid.UUID `json:"subject_id"`
	Value      Value     `json:"-"`
	// RecordedAt is assigned by the store at write time and is strictly
	// non-decreasing within a process.
	RecordedAt       time.Time        `json:"recorded_at"`
	EffectiveAt      *EffectiveDate   `json:"effective_at,omitempty"`
	EffectiveUntil   *EffectiveDate   `json:"effective_until,omitempty"`
	Source           string           `json:"source,omitempty"`
	Confidence       Confidence       `json:"confidence"`
	RecordingContext RecordingContext `json:"recording_context"`
	Tags             []string         `json:"tags,omitempty"`
}

// NewFact is the input to Store.RecordFact. RecordedAt is always assigned by
// the store and is not accepted from callers.
type NewFact struct {
	SubjectID        uuid.UUID
	Value            Value
	EffectiveAt      *EffectiveDate
	EffectiveUntil   *EffectiveDate
	Source           string
	Confidence       Confidence
	RecordingContext RecordingContext
	Tags             []string
}

// New builds a NewFact with defaults: certain confidence, manual context.
func New(subjectID uuid.UUID, v Value) NewFact {
	return NewFact{
		SubjectID:        subjectID,
		Value:            v,
		Confidence:       Certain,
		RecordingContext: Manual(),
	}
}
