package fact

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Value is a sealed interface over the fact taxonomy. Only the variant types
// in this file implement it. The taxonomy is deliberately closed: the vCard
// codec and the diff pipeline exhaustively switch on it, so adding a variant
// is a reviewable change touching all three.
type Value interface {
	// Discriminant is the stable type tag stored in the fact_type column.
	Discriminant() string
	isValue()
}

// Label mirrors the vCard TYPE parameter for contact methods. Known values
// are LabelWork, LabelHome and LabelOther; anything else is a custom label.
type Label string

const (
	LabelWork  Label = "work"
	LabelHome  Label = "home"
	LabelOther Label = "other"
)

// PhoneKind is the mode of a telephone number.
type PhoneKind string

const (
	PhoneVoice PhoneKind = "voice"
	PhoneFax   PhoneKind = "fax"
	PhoneCell  PhoneKind = "cell"
	PhonePager PhoneKind = "pager"
	PhoneText  PhoneKind = "text"
	PhoneVideo PhoneKind = "video"
)

// URLContext is the semantic context of a URL fact. Known values below;
// anything else is carried through as a custom context.
type URLContext string

const (
	URLHomepage URLContext = "homepage"
	URLLinkedIn URLContext = "linkedin"
	URLGitHub   URLContext = "github"
	URLMastodon URLContext = "mastodon"
)

// PrefUnspecified is the PREF value meaning "no stated preference".
// vCard PREF ranks 1 (most preferred) through 255.
const PrefUnspecified = 255

// ── Identity variants ──────────────────────────────────────────────────────

// Name is a structured personal name (vCard N + FN). Empty strings mean the
// component is absent; Full is always set.
type Name struct {
	Given      string `json:"given,omitempty"`
	Family     string `json:"family,omitempty"`
	Additional string `json:"additional,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
	Full       string `json:"full"`
}

// Alias is an alternative or former name (vCard NICKNAME).
type Alias struct {
	Name    string `json:"name"`
	Context string `json:"context,omitempty"`
}

// Photo references an image on disk; no binary data lives in the store.
type Photo struct {
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	MediaType   string `json:"media_type"`
}

// Birthday is a calendar-date birthday (vCard BDAY).
type Birthday struct {
	Date Date `json:"date"`
}

// Anniversary is a calendar-date anniversary (vCard ANNIVERSARY).
type Anniversary struct {
	Date Date `json:"date"`
}

// Gender is the first component of the vCard 4.0 GENDER property.
type Gender string

// ── Contact-method variants ────────────────────────────────────────────────

// Email is an email address (vCard EMAIL).
type Email struct {
	Address    string `json:"address"`
	Label      Label  `json:"label"`
	Preference int    `json:"preference"`
}

// Phone is a telephone number (vCard TEL).
type Phone struct {
	Number     string    `json:"number"`
	Label      Label     `json:"label"`
	Kind       PhoneKind `json:"kind"`
	Preference int       `json:"preference"`
}

// Address is a postal address (vCard ADR). The ADR pobox and extended-address
// components are not modelled.
type Address struct {
	Label      Label  `json:"label"`
	Street     string `json:"street,omitempty"`
	Locality   string `json:"locality,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// URL is a web address with a semantic context (vCard URL).
type URL struct {
	URL     string     `json:"url"`
	Context URLContext `json:"context"`
}

// IM is an instant-messaging handle (vCard IMPP or legacy X-props).
type IM struct {
	Handle  string `json:"handle"`
	Service string `json:"service"`
}

// Social is a social-media handle (X-KITH-SOCIAL).
type Social struct {
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
}

// ── Relationship variants ──────────────────────────────────────────────────

// Relationship is a named directional relation to another party. OtherID is
// uuid.Nil when the other party is not itself a subject.
type Relationship struct {
	Relation  string    `json:"relation"`
	OtherID   uuid.UUID `json:"other_id,omitempty"`
	OtherName string    `json:"other_name,omitempty"`
}

// OrgMembership is membership in an organisation (vCard ORG + TITLE + ROLE).
type OrgMembership struct {
	OrgName string    `json:"org_name"`
	OrgID   uuid.UUID `json:"org_id,omitempty"`
	Title   string    `json:"title,omitempty"`
	Role    string    `json:"role,omitempty"`
}

// GroupMembership is membership in a user-defined group (X-KITH-GROUP).
type GroupMembership struct {
	GroupName string    `json:"group_name"`
	GroupID   uuid.UUID `json:"group_id,omitempty"`
}

// ── Context variants ───────────────────────────────────────────────────────

// Note is free-form text about the subject (vCard NOTE).
type Note string

// Meeting is a logged interaction (X-KITH-MEETING). The time of the meeting
// lives in the outer fact's EffectiveAt field.
type Meeting struct {
	Summary  string `json:"summary"`
	Location string `json:"location,omitempty"`
}

// Introduction records how the subject was first met (X-KITH-INTRODUCTION).
type Introduction string

// Custom is the escape hatch for facts outside the taxonomy. The payload is
// opaque structured JSON.
type Custom struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ── Sealing and discriminants ──────────────────────────────────────────────

func (Name) isValue()            {}
func (Alias) isValue()           {}
func (Photo) isValue()           {}
func (Birthday) isValue()        {}
func (Anniversary) isValue()     {}
func (Gender) isValue()          {}
func (Email) isValue()           {}
func (Phone) isValue()           {}
func (Address) isValue()         {}
func (URL) isValue()             {}
func (IM) isValue()              {}
func (Social) isValue()          {}
func (Relationship) isValue()    {}
func (OrgMembership) isValue()   {}
func (GroupMembership) isValue() {}
func (Note) isValue()            {}
func (Meeting) isValue()         {}
func (Introduction) isValue()    {}
func (Custom) isValue()          {}

func (Name) Discriminant() string            { return "name" }
func (Alias) Discriminant() string           { return "alias" }
func (Photo) Discriminant() string           { return "photo" }
func (Birthday) Discriminant() string        { return "birthday" }
func (Anniversary) Discriminant() string     { return "anniversary" }
func (Gender) Discriminant() string          { return "gender" }
func (Email) Discriminant() string           { return "email" }
func (Phone) Discriminant() string           { return "phone" }
func (Address) Discriminant() string         { return "address" }
func (URL) Discriminant() string             { return "url" }
func (IM) Discriminant() string              { return "im" }
func (Social) Discriminant() string          { return "social" }
func (Relationship) Discriminant() string    { return "relationship" }
func (OrgMembership) Discriminant() string   { return "org_membership" }
func (GroupMembership) Discriminant() string { return "group_membership" }
func (Note) Discriminant() string            { return "note" }
func (Meeting) Discriminant() string         { return "meeting" }
func (Introduction) Discriminant() string    { return "introduction" }
func (Custom) Discriminant() string          { return "custom" }

// EncodeValue serialises a Value into its discriminant string and an opaque
// JSON payload, the two columns the store persists. The projection indexes by
// discriminant without interpreting the payload.
func EncodeValue(v Value) (discriminant string, payload []byte, err error) {
	payload, err = json.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s value: %w", v.Discriminant(), err)
	}
	return v.Discriminant(), payload, nil
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(discriminant string, payload []byte) (Value, error) {
	var (
		v   Value
		err error
	)
	switch discriminant {
	case "name":
		v, err = decodeInto[Name](payload)
	case "alias":
		v, err = decodeInto[Alias](payload)
	case "photo":
		v, err = decodeInto[Photo](payload)
	case "birthday":
		v, err = decodeInto[Birthday](payload)
	case "anniversary":
		v, err = decodeInto[Anniversary](payload)
	case "gender":
		v, err = decodeInto[Gender](payload)
	case "email":
		v, err = decodeInto[Email](payload)
	case "phone":
		v, err = decodeInto[Phone](payload)
	case "address":
		v, err = decodeInto[Address](payload)
	case "url":
		v, err = decodeInto[URL](payload)
	case "im":
		v, err = decodeInto[IM](payload)
	case "social":
		v, err = decodeInto[Social](payload)
	case "relationship":
		v, err = decodeInto[Relationship](payload)
	case "org_membership":
		v, err = decodeInto[OrgMembership](payload)
	case "group_membership":
		v, err = decodeInto[GroupMembership](payload)
	case "note":
		v, err = decodeInto[Note](payload)
	case "meeting":
		v, err = decodeInto[Meeting](payload)
	case "introduction":
		v, err = decodeInto[Introduction](payload)
	case "custom":
		v, err = decodeInto[Custom](payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactType, discriminant)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", discriminant, err)
	}
	return v, nil
}

func decodeInto[T Value](payload []byte) (Value, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValuesEqual reports whether two values are structurally identical.
// Comparison goes through the JSON encoding so it stays exhaustive as the
// taxonomy grows.
func ValuesEqual(a, b Value) bool {
	if a.Discriminant() != b.Discriminant() {
		return false
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}
