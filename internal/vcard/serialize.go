package vcard

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/fact"
)

type version int

const (
	version30 version = iota
	version40
)

// ── RFC 6350 line folding ──────────────────────────────────────────────────

// foldLine emits one logical line, folding at 75 octets with CRLF + SP
// continuation. Folds land on UTF-8 character boundaries.
func foldLine(s string) string {
	if len(s) <= 75 {
		return s + "\r\n"
	}

	var b strings.Builder
	pos := 0
	first := true
	for pos < len(s) {
		limit := 74 // continuation lines start with a space
		if first {
			limit = 75
		}
		end := pos + limit
		if end >= len(s) {
			end = len(s)
		} else {
			for end > pos && !utf8.RuneStart(s[end]) {
				end--
			}
			if end == pos {
				end = pos + 1
			}
		}
		if !first {
			b.WriteByte(' ')
		}
		b.WriteString(s[pos:end])
		b.WriteString("\r\n")
		pos = end
		first = false
	}
	return b.String()
}

// ── Value escaping ─────────────────────────────────────────────────────────

// escapeValue escapes a full property value: \ , ; and newline.
func escapeValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ",", `\,`, ";", `\;`, "\n", `\n`)
	return r.Replace(s)
}

// escapeComponent escapes one semicolon-delimited component (N / ADR field).
// Commas are list separators within a component and stay unescaped.
func escapeComponent(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ";", `\;`, "\n", `\n`)
	return r.Replace(s)
}

// ── TYPE / PREF helpers ────────────────────────────────────────────────────

func labelTypeString(l fact.Label) string {
	switch l {
	case fact.LabelWork:
		return "WORK"
	case fact.LabelHome:
		return "HOME"
	default:
		return "OTHER"
	}
}

func phoneKindString(k fact.PhoneKind) string {
	switch k {
	case fact.PhoneFax:
		return "FAX"
	case fact.PhoneCell:
		return "CELL"
	case fact.PhonePager:
		return "PAGER"
	case fact.PhoneText:
		return "TEXT"
	case fact.PhoneVideo:
		return "VIDEO"
	case fact.PhoneVoice:
		return "VOICE"
	default:
		return "OTHER"
	}
}

func urlContextType(ctx fact.URLContext) string {
	switch ctx {
	case fact.URLHomepage:
		return "HOME"
	case fact.URLLinkedIn:
		return "LINKEDIN"
	case fact.URLGitHub:
		return "GITHUB"
	case fact.URLMastodon:
		return "MASTODON"
	default:
		return strings.ToUpper(string(ctx))
	}
}

func serviceToScheme(service string) string {
	switch strings.ToLower(service) {
	case "xmpp", "jabber":
		return "xmpp"
	case "sip":
		return "sip"
	case "aim":
		return "aim"
	case "yahoo":
		return "ymsgr"
	case "msn":
		return "msnim"
	case "google talk":
		return "gtalk"
	case "skype":
		return "skype"
	case "irc":
		return "irc"
	case "matrix":
		return "matrix"
	default:
		return "x-unknown"
	}
}

func serviceToXProp(service string) string {
	switch strings.ToLower(service) {
	case "xmpp", "jabber":
		return "X-JABBER"
	case "aim":
		return "X-AIM"
	case "yahoo":
		return "X-YAHOO"
	case "msn":
		return "X-MSN"
	case "skype":
		return "X-SKYPE"
	case "icq":
		return "X-ICQ"
	case "google talk":
		return "X-GOOGLE-TALK"
	default:
		return "X-IM"
	}
}

// prefParam renders the PREF parameter for the two dialects: a dedicated
// PREF=N parameter in 4.0, the literal PREF inside the TYPE list in 3.0.
func prefParam(v version, preference int) string {
	if preference >= fact.PrefUnspecified || preference < 1 {
		return ""
	}
	if v == version40 {
		return fmt.Sprintf(";PREF=%d", preference)
	}
	return ",PREF"
}

// ── Serializer ─────────────────────────────────────────────────────────────

func serialize(view *fact.ContactView, v version) string {
	var b strings.Builder

	b.WriteString("BEGIN:VCARD\r\n")
	if v == version40 {
		b.WriteString("VERSION:4.0\r\n")
	} else {
		b.WriteString("VERSION:3.0\r\n")
	}
	b.WriteString(foldLine("UID:" + view.Subject.SubjectID.String()))
	b.WriteString("PRODID:-//Kith//Kith vCard//EN\r\n")
	b.WriteString(foldLine("REV:" + view.AsOf.UTC().Format("20060102T150405Z")))
	if v == version40 {
		b.WriteString(foldLine("KIND:" + kindString(view.Subject.Kind)))
	}
	b.WriteString(serializeBody(view, v))
	b.WriteString("END:VCARD\r\n")

	return b.String()
}

func kindString(k fact.SubjectKind) string {
	switch k {
	case fact.KindOrganization:
		return "org"
	case fact.KindGroup:
		return "group"
	default:
		return "individual"
	}
}

func serializeBody(view *fact.ContactView, v version) string {
	var lines []string

	// Org memberships are collected separately: with more than one, each
	// gets an RFC 6350 group prefix (ORG1., ORG2., …) so TITLE/ROLE lines
	// stay attached to the right membership.
	var orgs []fact.OrgMembership
	hasName := false
	for _, rf := range view.ActiveFacts {
		switch val := rf.Fact.Value.(type) {
		case fact.OrgMembership:
			orgs = append(orgs, val)
		case fact.Name:
			hasName = true
		}
	}

	// vCard 3.0 requires FN and N; emit blanks when there is no Name fact.
	if v == version30 && !hasName {
		lines = append(lines, foldLine("FN:"), foldLine("N:;;;;"))
	}

	for _, rf := range view.ActiveFacts {
		switch val := rf.Fact.Value.(type) {
		case fact.Name:
			lines = append(lines, foldLine("FN:"+escapeValue(val.Full)))
			lines = append(lines, foldLine(fmt.Sprintf("N:%s;%s;%s;%s;%s",
				escapeComponent(val.Family),
				escapeComponent(val.Given),
				escapeComponent(val.Additional),
				escapeComponent(val.Prefix),
				escapeComponent(val.Suffix),
			)))

		case fact.Alias:
			lines = append(lines, foldLine("NICKNAME:"+escapeValue(val.Name)))

		case fact.Photo:
			lines = append(lines, foldLine("PHOTO;VALUE=URI:"+val.Path))

		case fact.Birthday:
			lines = append(lines, foldLine("BDAY:"+val.Date.Compact()))

		case fact.Anniversary:
			prop := "ANNIVERSARY"
			if v == version30 {
				prop = "X-ANNIVERSARY"
			}
			lines = append(lines, foldLine(prop+":"+val.Date.Compact()))

		case fact.Gender:
			if v == version40 {
				lines = append(lines, foldLine("GENDER:"+escapeValue(string(val))))
			}

		case fact.Email:
			lines = append(lines, foldLine(fmt.Sprintf("EMAIL;TYPE=%s%s:%s",
				labelTypeString(val.Label), prefParam(v, val.Preference), val.Address)))

		case fact.Phone:
			lines = append(lines, foldLine(fmt.Sprintf("TEL;TYPE=%s,%s%s:%s",
				labelTypeString(val.Label), phoneKindString(val.Kind),
				prefParam(v, val.Preference), val.Number)))

		case fact.Address:
			lines = append(lines, foldLine(fmt.Sprintf("ADR;TYPE=%s:;;%s;%s;%s;%s;%s",
				labelTypeString(val.Label),
				escapeComponent(val.Street),
				escapeComponent(val.Locality),
				escapeComponent(val.Region),
				escapeComponent(val.PostalCode),
				escapeComponent(val.Country),
			)))

		case fact.URL:
			lines = append(lines, foldLine(fmt.Sprintf("URL;TYPE=%s:%s",
				urlContextType(val.Context), val.URL)))

		case fact.IM:
			if v == version40 {
				lines = append(lines, foldLine(fmt.Sprintf("IMPP:%s:%s",
					serviceToScheme(val.Service), val.Handle)))
			} else {
				lines = append(lines, foldLine(fmt.Sprintf("%s:%s",
					serviceToXProp(val.Service), escapeValue(val.Handle))))
			}

		case fact.Social:
			lines = append(lines, foldLine(fmt.Sprintf("X-KITH-SOCIAL;PLATFORM=%s:%s",
				val.Platform, escapeValue(val.Handle))))

		case fact.Relationship:
			prop := "X-KITH-RELATION;RELATION=" + val.Relation
			if val.OtherID != uuid.Nil {
				prop += ";OTHER-ID=" + val.OtherID.String()
			}
			lines = append(lines, foldLine(prop+":"+escapeValue(val.OtherName)))

		case fact.GroupMembership:
			prop := "X-KITH-GROUP"
			if val.GroupID != uuid.Nil {
				prop += ";GROUP-ID=" + val.GroupID.String()
			}
			lines = append(lines, foldLine(prop+":"+escapeValue(val.GroupName)))

		case fact.Note:
			lines = append(lines, foldLine("NOTE:"+escapeValue(string(val))))

		case fact.Meeting:
			prop := "X-KITH-MEETING"
			if val.Location != "" {
				prop += ";LOCATION=" + val.Location
			}
			lines = append(lines, foldLine(prop+":"+escapeValue(val.Summary)))

		case fact.Introduction:
			lines = append(lines, foldLine("X-KITH-INTRODUCTION:"+escapeValue(string(val))))

		case fact.Custom:
			var str string
			if err := json.Unmarshal(val.Value, &str); err != nil {
				str = string(val.Value)
			}
			prop := strings.ToUpper(val.Key)
			if !strings.HasPrefix(prop, "X-") {
				prop = "X-" + prop
			}
			lines = append(lines, foldLine(prop+":"+escapeValue(str)))

		case fact.OrgMembership:
			// emitted below with group-prefix handling
		}
	}

	multiOrg := len(orgs) > 1
	for i, org := range orgs {
		prefix := ""
		if multiOrg {
			prefix = fmt.Sprintf("ORG%d.", i+1)
		}
		lines = append(lines, foldLine(prefix+"ORG:"+escapeValue(org.OrgName)))
		if org.Title != "" {
			lines = append(lines, foldLine(prefix+"TITLE:"+escapeValue(org.Title)))
		}
		if org.Role != "" {
			lines = append(lines, foldLine(prefix+"ROLE:"+escapeValue(org.Role)))
		}
	}

	return strings.Join(lines, "")
}
