package fact

import (
	"time"

	"github.com/google/uuid"
)

// SubjectKind is the kind of entity a subject represents.
type SubjectKind string

const (
	KindPerson       SubjectKind = "person"
	KindOrganization SubjectKind = "organization"
	KindGroup        SubjectKind = "group"
)

// ParseSubjectKind validates a kind string from storage or user input.
func ParseSubjectKind(s string) (SubjectKind, error) {
	switch SubjectKind(s) {
	case KindPerson, KindOrganization, KindGroup:
		return SubjectKind(s), nil
	}
	return "", &UnknownKindError{Kind: s}
}

// Subject is the thin identity envelope that aggregates facts. It holds no
// contact information itself; everything meaningful lives in facts. Subjects
// are created on demand and never destroyed — deleting a "contact" retracts
// its facts but keeps the envelope.
type Subject struct {
	SubjectID uuid.UUID   `json:"subject_id"`
	CreatedAt time.Time   `json:"created_at"`
	Kind      SubjectKind `json:"kind"`
}
