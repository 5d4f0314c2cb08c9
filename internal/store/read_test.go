package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnbchron/kith/internal/fact"
	"github.com/johnbchron/kith/internal/testutil"
)

func TestGetFacts_OrderedByRecordedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	subject, err := s.AddSubject(ctx, fact.KindPerson)
	require.NoError(t, err)

	notes := []string{"first", "second", "third"}
	for _, n := range notes {
		_, err := s.RecordFact(ctx, fact.New(subject.SubjectID, fact.Note(n)))
		require.NoError(t, err)
	}

	facts, err := s.GetFacts(ctx, subject.SubjectID, time.Time{}, false)
	require.NoError(t, err)
	require.Len(t, facts, 3)
	for i, rf := range facts {
		assert.Equal(t, fact.Note(notes[i]), rf.Fact.Value)
		if i > 0 {
			assert.True(t, rf.Fact.RecordedAt.After(facts[i-1].Fact.RecordedAt))
		}
	}
}

func TestGetFacts_PointInTimeSeesLaterSupersessionAsActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	clk := testutil.NewSteppingClock(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), time.Second)
	s.SetNowFunc(clk.Now)

	subject, err := s.AddSubject(ctx, fact.KindPerson)
	require.NoError(t, err)

	old, err := s.RecordFact(ctx, fact.New(subject.SubjectID,
		fact.Email{Address: "a@old.com", Label: fact.LabelWork, Preference: fact.PrefUnspecified}))
	require.NoError(t, err)

	// A snapshot instant after the fact but before its supersession.
	t0 := old.RecordedAt.Add(500 * time.Millisecond)

	_, _, err = s.Supersede(ctx, old.FactID, fact.New(subject.SubjectID,
		fact.Email{Address: "a@new.com", Label: fact.LabelWork, Preference: fact.PrefUnspecified}))
	require.NoError(t, err)

	// Now: only the replacement is active.
	now, err := s.GetFacts(ctx, subject.SubjectID, time.Time{}, false)
	require.NoError(t, err)
	require.Len(t, now, 1)
	assert.Equal(t, "a@new.com", now[0].Fact.Value.(fact.Email).Address)

	// At t0 the original was still active.
	then, err := s.GetFacts(ctx, subject.SubjectID, t0, false)
	require.NoError(t, err)
	require.Len(t, then, 1)
	assert.Equal(t, old.FactID, then[0].Fact.FactID)
	assert.True(t, then[0].Status.IsActive())
}

func TestMaterialize_AbsentSubjectReturnsNil(t *testing.T) {
	s := openTestStore(t)

	view, err := s.Materialize(context.Background(), uuid.New(), time.Time{})
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestMaterialize_OnlyActiveFacts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	subject, err := s.AddSubject(ctx, fact.KindPerson)
	require.NoError(t, err)

	keep, err := s.RecordFact(ctx, fact.New(subject.SubjectID, fact.Note("keep")))
	require.NoError(t, err)
	drop, err := s.RecordFact(ctx, fact.New(subject.SubjectID, fact.Note("drop")))
	require.NoError(t, err)
	_, err = s.Retract(ctx, drop.FactID, "")
	require.NoError(t, err)

	view, err := s.Materialize(ctx, subject.SubjectID, time.Time{})
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Len(t, view.ActiveFacts, 1)
	assert.Equal(t, keep.FactID, view.ActiveFacts[0].Fact.FactID)
	assert.Equal(t, subject.SubjectID, view.Subject.SubjectID)
	assert.False(t, view.AsOf.IsZero())
}

func TestSearch_TextAndKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alice, err := s.AddSubject(ctx, fact.KindPerson)
	require.NoError(t, err)
	_, err = s.RecordFact(ctx, fact.New(alice.SubjectID,
		fact.Email{Address: "alice@example.com", Label: fact.LabelWork, Preference: 1}))
	require.NoError(t, err)

	acme, err := s.AddSubject(ctx, fact.KindOrganization)
	require.NoError(t, err)
	_, err = s.RecordFact(ctx, fact.New(acme.SubjectID, fact.Note("acme hq")))
	require.NoError(t, err)

	byText, err := s.Search(ctx, SubjectQuery{Text: "alice@example"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, alice.SubjectID, byText[0].SubjectID)

	byKind, err := s.Search(ctx, SubjectQuery{Kind: fact.KindOrganization})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, acme.SubjectID, byKind[0].SubjectID)

	none, err := s.Search(ctx, SubjectQuery{Text: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
