package vcard

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnbchron/kith/internal/fact"
)

// makeView builds a ContactView from fact values, for serializer tests.
func makeView(values ...fact.Value) *fact.ContactView {
	return makeViewAt(uuid.New(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), values...)
}

func makeViewAt(subjectID uuid.UUID, asOf time.Time, values ...fact.Value) *fact.ContactView {
	view := &fact.ContactView{
		Subject: fact.Subject{
			SubjectID: subjectID,
			CreatedAt: asOf,
			Kind:      fact.KindPerson,
		},
		AsOf: asOf,
	}
	for _, v := range values {
		view.ActiveFacts = append(view.ActiveFacts, fact.ResolvedFact{
			Fact: fact.Fact{
				FactID:           uuid.New(),
				SubjectID:        subjectID,
				Value:            v,
				RecordedAt:       asOf,
				Confidence:       fact.Certain,
				RecordingContext: fact.Manual(),
			},
			Status: fact.Active(),
		})
	}
	return view
}

// ── Envelope ───────────────────────────────────────────────────────────────

func TestEnvelopeContainsRequiredLines(t *testing.T) {
	out := Serialize(makeView())
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCARD\r\n"))
	assert.Contains(t, out, "VERSION:4.0\r\n")
	assert.Contains(t, out, "UID:")
	assert.Contains(t, out, "PRODID:-//Kith//Kith vCard//EN\r\n")
	assert.Contains(t, out, "REV:")
	assert.Contains(t, out, "KIND:individual\r\n")
	assert.True(t, strings.HasSuffix(out, "END:VCARD\r\n"))
}

func TestGoldenSerializeBasic(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	view := makeViewAt(id, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		fact.Name{Given: "Alice", Family: "Smith", Full: "Alice Smith"},
		fact.Email{Address: "alice@example.com", Label: fact.LabelWork, Preference: 1},
	)

	g := goldie.New(t)
	g.Assert(t, "serialize_basic", []byte(Serialize(view)))
}

// ── Name ───────────────────────────────────────────────────────────────────

func TestNameEmitsFnAndN(t *testing.T) {
	out := Serialize(makeView(fact.Name{
		Given: "Alice", Family: "Smith", Full: "Alice Smith",
	}))
	assert.Contains(t, out, "FN:Alice Smith\r\n")
	assert.Contains(t, out, "N:Smith;Alice;;;\r\n")
}

// ── PREF handling ──────────────────────────────────────────────────────────

func TestEmailWithTypeAndPref(t *testing.T) {
	out := Serialize(makeView(fact.Email{
		Address: "alice@example.com", Label: fact.LabelWork, Preference: 1,
	}))
	assert.Contains(t, out, "EMAIL;TYPE=WORK;PREF=1:alice@example.com\r\n")
}

func TestNoPrefWhenUnspecified(t *testing.T) {
	out := Serialize(makeView(
		fact.Email{Address: "alice@example.com", Label: fact.LabelWork, Preference: fact.PrefUnspecified},
		fact.Phone{Number: "+15555551234", Label: fact.LabelHome, Kind: fact.PhoneVoice, Preference: fact.PrefUnspecified},
	))
	assert.NotContains(t, out, "PREF")
	assert.Contains(t, out, "EMAIL;TYPE=WORK:alice@example.com\r\n")
	assert.Contains(t, out, "TEL;TYPE=HOME,VOICE:+15555551234\r\n")
}

// ── Folding ────────────────────────────────────────────────────────────────

func TestLongNoteIsFolded(t *testing.T) {
	out := Serialize(makeView(fact.Note(strings.Repeat("A", 200))))
	for _, physical := range strings.Split(out, "\r\n") {
		assert.LessOrEqual(t, len(physical), 75,
			"physical line too long: %q", physical)
	}
}

func TestFoldingPreservesContent(t *testing.T) {
	note := strings.Repeat("word ", 50)
	out := Serialize(makeView(fact.Note(note)))

	card, err := Parse(out, "roundtrip")
	require.NoError(t, err)
	notes := valuesOf[fact.Note](card)
	require.Len(t, notes, 1)
	assert.Equal(t, note, string(notes[0]))
}

func TestFoldLineMultibyteBoundary(t *testing.T) {
	// é is two octets; a fold must never split it.
	out := foldLine("NOTE:" + strings.Repeat("é", 100))
	for _, physical := range strings.Split(out, "\r\n") {
		assert.LessOrEqual(t, len(physical), 75)
		assert.True(t, utf8.ValidString(physical), "fold split a rune: %q", physical)
	}
}

// ── Escaping ───────────────────────────────────────────────────────────────

func TestSemicolonsInAddressAreEscaped(t *testing.T) {
	out := Serialize(makeView(fact.Address{
		Label:  fact.LabelWork,
		Street: "123 Main; Suite 4",
	}))
	assert.Contains(t, out, `123 Main\; Suite 4`)
}

func TestCommasEscapedInValues(t *testing.T) {
	out := Serialize(makeView(fact.Note("a, b; c")))
	assert.Contains(t, out, `NOTE:a\, b\; c`)
}

// ── Org group prefixes ─────────────────────────────────────────────────────

func TestTwoOrgMembershipsGetPrefixes(t *testing.T) {
	out := Serialize(makeView(
		fact.OrgMembership{OrgName: "Acme Corp", Title: "Engineer"},
		fact.OrgMembership{OrgName: "OSF", Title: "Board Member"},
	))
	assert.Contains(t, out, "ORG1.ORG:Acme Corp\r\n")
	assert.Contains(t, out, "ORG1.TITLE:Engineer\r\n")
	assert.Contains(t, out, "ORG2.ORG:OSF\r\n")
	assert.Contains(t, out, "ORG2.TITLE:Board Member\r\n")
}

func TestSingleOrgHasNoPrefix(t *testing.T) {
	out := Serialize(makeView(fact.OrgMembership{OrgName: "Acme"}))
	assert.Contains(t, out, "ORG:Acme\r\n")
	assert.NotContains(t, out, "ORG1.")
}

// ── X-props ────────────────────────────────────────────────────────────────

func TestSocialEmitted(t *testing.T) {
	out := Serialize(makeView(fact.Social{Platform: "Twitter", Handle: "@alice"}))
	assert.Contains(t, out, "X-KITH-SOCIAL;PLATFORM=Twitter:@alice\r\n")
}

// ── vCard 3.0 skew ─────────────────────────────────────────────────────────

func TestV3AnniversaryBecomesXAnniversary(t *testing.T) {
	out := SerializeV3(makeView(fact.Anniversary{
		Date: fact.Date{Year: 2020, Month: 6, Day: 15},
	}))
	assert.Contains(t, out, "X-ANNIVERSARY:20200615\r\n")
	assert.NotContains(t, out, "\r\nANNIVERSARY:")
}

func TestV3KindAndGenderOmitted(t *testing.T) {
	out := SerializeV3(makeView(fact.Gender("M")))
	assert.NotContains(t, out, "KIND:")
	assert.NotContains(t, out, "GENDER:")
}

func TestV3PrefInTypeList(t *testing.T) {
	out := SerializeV3(makeView(fact.Email{
		Address: "a@b.com", Label: fact.LabelWork, Preference: 1,
	}))
	assert.Contains(t, out, "EMAIL;TYPE=WORK,PREF:a@b.com\r\n")
}

func TestV3ImUsesLegacyXProps(t *testing.T) {
	out := SerializeV3(makeView(fact.IM{Handle: "bob@jabber.org", Service: "XMPP"}))
	assert.Contains(t, out, "X-JABBER:bob@jabber.org\r\n")
	assert.NotContains(t, out, "IMPP:")
}

func TestV3EmitsBlankNameWhenNoNameFact(t *testing.T) {
	out := SerializeV3(makeView(fact.Note("no name")))
	assert.Contains(t, out, "FN:\r\n")
	assert.Contains(t, out, "N:;;;;\r\n")
}

func TestV4ImUsesImpp(t *testing.T) {
	out := Serialize(makeView(fact.IM{Handle: "bob@jabber.org", Service: "XMPP"}))
	assert.Contains(t, out, "IMPP:xmpp:bob@jabber.org\r\n")
}

// ── Round-trip ─────────────────────────────────────────────────────────────

func TestFullRoundTrip(t *testing.T) {
	otherID := uuid.New()
	in := []fact.Value{
		fact.Name{Given: "Alice", Family: "Smith", Full: "Alice Smith"},
		fact.Email{Address: "alice@example.com", Label: fact.LabelWork, Preference: 1},
		fact.Phone{Number: "+15555551234", Label: fact.LabelHome, Kind: fact.PhoneCell, Preference: 2},
		fact.Address{Label: fact.LabelWork, Street: "123 Main St", Locality: "Springfield", Region: "IL", PostalCode: "62701", Country: "USA"},
		fact.OrgMembership{OrgName: "Acme Corp", Title: "Engineer", Role: "IC"},
		fact.Note("First met at conference."),
		fact.Social{Platform: "Twitter", Handle: "@alice"},
		fact.Relationship{Relation: "colleague", OtherID: otherID, OtherName: "Bob"},
	}

	out := Serialize(makeView(in...))
	card, err := Parse(out, "roundtrip")
	require.NoError(t, err)

	names := valuesOf[fact.Name](card)
	require.Len(t, names, 1)
	assert.Equal(t, "Alice Smith", names[0].Full)
	assert.Equal(t, "Smith", names[0].Family)

	emails := valuesOf[fact.Email](card)
	require.Len(t, emails, 1)
	assert.Equal(t, "alice@example.com", emails[0].Address)
	assert.Equal(t, 1, emails[0].Preference)

	phones := valuesOf[fact.Phone](card)
	require.Len(t, phones, 1)
	assert.Equal(t, "+15555551234", phones[0].Number)
	assert.Equal(t, fact.PhoneCell, phones[0].Kind)

	addrs := valuesOf[fact.Address](card)
	require.Len(t, addrs, 1)
	assert.Equal(t, "123 Main St", addrs[0].Street)
	assert.Equal(t, "Springfield", addrs[0].Locality)

	orgs := valuesOf[fact.OrgMembership](card)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Acme Corp", orgs[0].OrgName)
	assert.Equal(t, "Engineer", orgs[0].Title)
	assert.Equal(t, "IC", orgs[0].Role)

	notes := valuesOf[fact.Note](card)
	require.Len(t, notes, 1)
	assert.Equal(t, "First met at conference.", string(notes[0]))

	socials := valuesOf[fact.Social](card)
	require.Len(t, socials, 1)
	assert.Equal(t, "@alice", socials[0].Handle)

	rels := valuesOf[fact.Relationship](card)
	require.Len(t, rels, 1)
	assert.Equal(t, "colleague", rels[0].Relation)
	assert.Equal(t, otherID, rels[0].OtherID)
}
