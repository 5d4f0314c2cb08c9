package carddav

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/johnbchron/kith/internal/fact"
	"github.com/johnbchron/kith/internal/vcard"
)

// DiffResult is the minimal set of append operations that makes the store's
// projection for a subject equal the incoming vCard's facts.
type DiffResult struct {
	NewFacts      []fact.NewFact
	Supersessions []SupersessionOp
	Retractions   []uuid.UUID
}

// SupersessionOp pairs the fact to replace with its replacement.
type SupersessionOp struct {
	OldFactID   uuid.UUID
	Replacement fact.NewFact
}

// Diff parses the incoming vCard and matches its facts against the current
// view. Each incoming fact either matches an active fact exactly (no-op) or
// matches by key with different fields (supersession). An incoming fact whose
// key matches nothing supersedes a leftover active fact of the same variant
// if one remains, and is a new fact otherwise. Active facts matched by
// nothing incoming are retracted.
//
// currentView is nil for a brand-new or empty subject, in which case every
// parsed fact is new.
func Diff(incomingVcard string, subjectID uuid.UUID, sourceName string, currentView *fact.ContactView) (DiffResult, error) {
	parsed, err := vcard.Parse(incomingVcard, sourceName)
	if err != nil {
		return DiffResult{}, err
	}

	incoming := make([]fact.NewFact, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		f.SubjectID = subjectID
		f.Confidence = fact.Certain
		f.RecordingContext = fact.Imported(sourceName, parsed.UID)
		incoming = append(incoming, f)
	}

	if currentView == nil {
		return DiffResult{NewFacts: incoming}, nil
	}

	var result DiffResult
	matched := map[uuid.UUID]bool{}

	var unmatched []fact.NewFact
	for _, in := range incoming {
		oldID, oldValue, ok := findMatch(in.Value, currentView.ActiveFacts, matched)
		switch {
		case !ok:
			unmatched = append(unmatched, in)
		case fact.ValuesEqual(in.Value, oldValue):
			matched[oldID] = true // unchanged — no-op
		default:
			matched[oldID] = true
			result.Supersessions = append(result.Supersessions, SupersessionOp{
				OldFactID: oldID, Replacement: in,
			})
		}
	}

	// Key-less pairing pass: an incoming fact whose key matches nothing still
	// supersedes a leftover active fact of the same variant, in insertion
	// order. A client editing the one email address on a contact means
	// "correct this email", and the log should link the two versions rather
	// than record an unrelated retract-and-add.
	for _, in := range unmatched {
		oldID, ok := findVariantMatch(in.Value, currentView.ActiveFacts, matched)
		if ok {
			matched[oldID] = true
			result.Supersessions = append(result.Supersessions, SupersessionOp{
				OldFactID: oldID, Replacement: in,
			})
		} else {
			result.NewFacts = append(result.NewFacts, in)
		}
	}

	for _, rf := range currentView.ActiveFacts {
		if !matched[rf.Fact.FactID] {
			result.Retractions = append(result.Retractions, rf.Fact.FactID)
		}
	}

	return result, nil
}

// findVariantMatch locates the first unclaimed active fact of the same
// variant as in, ignoring match keys.
func findVariantMatch(in fact.Value, active []fact.ResolvedFact, claimed map[uuid.UUID]bool) (uuid.UUID, bool) {
	for _, rf := range active {
		if claimed[rf.Fact.FactID] {
			continue
		}
		if rf.Fact.Value.Discriminant() == in.Discriminant() {
			return rf.Fact.FactID, true
		}
	}
	return uuid.Nil, false
}

// findMatch locates the first active fact with the same variant and match
// key that has not already been claimed by an earlier incoming fact.
// Matching is 1:1 within a variant; ties break by insertion order.
func findMatch(in fact.Value, active []fact.ResolvedFact, claimed map[uuid.UUID]bool) (uuid.UUID, fact.Value, bool) {
	for _, rf := range active {
		if claimed[rf.Fact.FactID] {
			continue
		}
		if sameKey(in, rf.Fact.Value) {
			return rf.Fact.FactID, rf.Fact.Value, true
		}
	}
	return uuid.Nil, nil, false
}

// sameKey reports whether two values name the same logical piece of
// information: same variant, same match key.
func sameKey(in, existing fact.Value) bool {
	switch a := in.(type) {
	case fact.Name:
		_, ok := existing.(fact.Name)
		return ok // singleton per subject
	case fact.Birthday:
		_, ok := existing.(fact.Birthday)
		return ok
	case fact.Anniversary:
		_, ok := existing.(fact.Anniversary)
		return ok
	case fact.Gender:
		_, ok := existing.(fact.Gender)
		return ok

	case fact.Email:
		b, ok := existing.(fact.Email)
		return ok && foldKey(a.Address) == foldKey(b.Address)

	case fact.Phone:
		b, ok := existing.(fact.Phone)
		return ok && normalizePhone(a.Number) == normalizePhone(b.Number)

	case fact.Address:
		b, ok := existing.(fact.Address)
		return ok &&
			foldKey(a.Street) == foldKey(b.Street) &&
			foldKey(a.Locality) == foldKey(b.Locality) &&
			foldKey(a.PostalCode) == foldKey(b.PostalCode)

	case fact.OrgMembership:
		b, ok := existing.(fact.OrgMembership)
		return ok && foldKey(a.OrgName) == foldKey(b.OrgName)

	case fact.Alias:
		b, ok := existing.(fact.Alias)
		return ok && a.Name == b.Name

	case fact.URL:
		b, ok := existing.(fact.URL)
		return ok && a.URL == b.URL

	case fact.IM:
		b, ok := existing.(fact.IM)
		return ok && foldKey(a.Service) == foldKey(b.Service) && a.Handle == b.Handle

	case fact.Social:
		b, ok := existing.(fact.Social)
		return ok && foldKey(a.Platform) == foldKey(b.Platform) && a.Handle == b.Handle

	case fact.Note:
		b, ok := existing.(fact.Note)
		return ok && a == b

	case fact.GroupMembership:
		b, ok := existing.(fact.GroupMembership)
		if !ok {
			return false
		}
		if a.GroupID != uuid.Nil && b.GroupID != uuid.Nil {
			return a.GroupID == b.GroupID
		}
		return foldKey(a.GroupName) == foldKey(b.GroupName)

	case fact.Relationship:
		b, ok := existing.(fact.Relationship)
		return ok && a.Relation == b.Relation && a.OtherID == b.OtherID

	case fact.Meeting:
		// Incoming vCard meetings carry no effective_at, so the summary is
		// the whole key.
		b, ok := existing.(fact.Meeting)
		return ok && a.Summary == b.Summary

	case fact.Introduction:
		b, ok := existing.(fact.Introduction)
		return ok && a == b

	case fact.Custom:
		b, ok := existing.(fact.Custom)
		return ok && a.Key == b.Key

	case fact.Photo:
		b, ok := existing.(fact.Photo)
		return ok && a.Path == b.Path
	}
	return false
}

// foldKey case-folds and NFC-normalizes a match key. Different clients send
// the same text in different Unicode normal forms; without NFC folding a
// sync round-trip would retract and re-add equal facts forever.
func foldKey(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// normalizePhone strips whitespace and hyphens for comparison.
func normalizePhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		if c == '-' || unicode.IsSpace(c) {
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
