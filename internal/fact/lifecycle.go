package fact

import (
	"time"

	"github.com/google/uuid"
)

// Supersession records that an old fact has been replaced by a newer,
// corrected version. A fact can be superseded at most once (UNIQUE on
// old_fact_id) and never by itself.
type Supersession struct {
	SupersessionID uuid.UUID `json:"supersession_id"`
	OldFactID      uuid.UUID `json:"old_fact_id"`
	NewFactID      uuid.UUID `json:"new_fact_id"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Retraction records that a fact has been withdrawn entirely, with no
// replacement. A fact can be retracted at most once.
type Retraction struct {
	RetractionID uuid.UUID `json:"retraction_id"`
	FactID       uuid.UUID `json:"fact_id"`
	Reason       string    `json:"reason,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// StatusKind enumerates the computed lifecycle states of a fact.
type StatusKind string

const (
	StatusActive     StatusKind = "active"
	StatusSuperseded StatusKind = "superseded"
	StatusRetracted  StatusKind = "retracted"
)

// Status is the lifecycle status of a fact, computed at query time from the
// two event tables. The disjointness invariant guarantees a fact is never
// both superseded and retracted.
type Status struct {
	Kind StatusKind `json:"status"`
	// SupersededBy and At are set when Kind == StatusSuperseded.
	SupersededBy uuid.UUID `json:"by,omitempty"`
	// Reason is set (possibly empty) when Kind == StatusRetracted.
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at,omitzero"`
}

// Active is the status of a fact with no lifecycle events.
func Active() Status { return Status{Kind: StatusActive} }

// IsActive reports whether the fact is neither superseded nor retracted.
func (s Status) IsActive() bool { return s.Kind == StatusActive }

// ResolvedFact bundles a fact with its computed lifecycle status.
type ResolvedFact struct {
	Fact   Fact   `json:"fact"`
	Status Status `json:"status"`
}

// ContactView is the computed read model for a subject — never stored,
// always derived. ActiveFacts holds only facts whose status is Active as of
// AsOf, ordered by recorded_at then fact_id.
type ContactView struct {
	Subject     Subject        `json:"subject"`
	AsOf        time.Time      `json:"as_of"`
	ActiveFacts []ResolvedFact `json:"active_facts"`
}
