package vcard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/fact"
)

// contentLine is one unfolded logical line, split into name, parameters and
// value. Group prefixes (e.g. "ORG1.ORG") are stripped from the name.
type contentLine struct {
	name   string
	params []param
	value  string
}

type param struct {
	name  string
	value string
}

// ── Low-level helpers ──────────────────────────────────────────────────────

// unfoldLines joins CRLF+SP (or LF+SP / LF+HT) continuation lines per
// RFC 6350 §3.2. Bare LF line endings are tolerated for real-world
// robustness.
func unfoldLines(s string) []string {
	var lines []string
	for _, raw := range strings.Split(s, "\n") {
		line := strings.TrimSuffix(raw, "\r")
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if len(lines) > 0 {
				lines[len(lines)-1] += line[1:]
			}
			// leading continuation with no prior line — discard
			continue
		}
		lines = append(lines, line)
	}
	out := lines[:0]
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// findUnquotedColon returns the index of the first ':' outside double quotes,
// or -1.
func findUnquotedColon(s string) int {
	inQuotes := false
	for i, c := range s {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ':' && !inQuotes:
			return i
		}
	}
	return -1
}

// splitSemicolons splits on ';' while respecting double-quoted strings.
func splitSemicolons(s string) []string {
	var result []string
	start := 0
	inQuotes := false
	for i, c := range s {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == ';' && !inQuotes:
			result = append(result, s[start:i])
			start = i + 1
		}
	}
	return append(result, s[start:])
}

// typeValues collects all TYPE= values, handling TYPE=A,B and repeated
// TYPE= parameters. Values are uppercased.
func typeValues(params []param) []string {
	var types []string
	for _, p := range params {
		if !strings.EqualFold(p.name, "TYPE") {
			continue
		}
		for _, t := range strings.Split(p.value, ",") {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t != "" {
				types = append(types, t)
			}
		}
	}
	return types
}

// prefFromParams returns a preference in 1..=255.
// vCard 4.0 uses PREF=N; vCard 3.0 expresses PREF as a TYPE token.
func prefFromParams(params []param, types []string) int {
	for _, p := range params {
		if strings.EqualFold(p.name, "PREF") {
			if n, err := strconv.Atoi(p.value); err == nil && n >= 1 && n <= 255 {
				return n
			}
		}
	}
	for _, t := range types {
		if t == "PREF" {
			return 1
		}
	}
	return fact.PrefUnspecified
}

func labelFromTypes(types []string) fact.Label {
	for _, t := range types {
		switch t {
		case "WORK":
			return fact.LabelWork
		case "HOME":
			return fact.LabelHome
		}
	}
	return fact.LabelOther
}

func firstParam(params []param, name string) (string, bool) {
	for _, p := range params {
		if strings.EqualFold(p.name, name) {
			return p.value, true
		}
	}
	return "", false
}

// decodeQuotedPrintable is a minimal decoder for vCard 3.0
// ENCODING=QUOTED-PRINTABLE values. Invalid escapes pass through untouched.
func decodeQuotedPrintable(s string) string {
	b := []byte(s)
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		if b[i] == '=' && i+2 < len(b) {
			hi := hexDigit(b[i+1])
			lo := hexDigit(b[i+2])
			if hi >= 0 && lo >= 0 {
				out = append(out, byte(hi<<4|lo))
				i += 3
				continue
			}
		}
		out = append(out, b[i])
		i++
	}
	return string(out)
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// unescapeValue reverses RFC 6350 value escaping: \\ \, \; \n.
func unescapeValue(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			b.WriteByte('\\')
			break
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case '\\', ',', ';':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func schemeToService(scheme string) string {
	switch strings.ToLower(scheme) {
	case "xmpp", "jabber":
		return "XMPP"
	case "sip":
		return "SIP"
	case "aim":
		return "AIM"
	case "ymsgr":
		return "Yahoo"
	case "msnim":
		return "MSN"
	case "gtalk":
		return "Google Talk"
	case "skype":
		return "Skype"
	case "irc":
		return "IRC"
	case "matrix":
		return "Matrix"
	default:
		return scheme
	}
}

// ── Content-line parser ────────────────────────────────────────────────────

func parseContentLine(line string) (contentLine, error) {
	colon := findUnquotedColon(line)
	if colon < 0 {
		return contentLine{}, &ContentLineError{Line: line}
	}

	namePart := line[:colon]
	value := line[colon+1:]

	tokens := splitSemicolons(namePart)
	if len(tokens) == 0 || strings.TrimSpace(tokens[0]) == "" {
		return contentLine{}, &ContentLineError{Line: line}
	}

	// Strip group prefix ("ORG1.ORG" → "ORG").
	name := tokens[0]
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		name = name[dot+1:]
	}
	name = strings.ToUpper(name)

	var params []param
	for _, token := range tokens[1:] {
		if eq := strings.IndexByte(token, '='); eq >= 0 {
			params = append(params, param{
				name:  strings.ToUpper(strings.TrimSpace(token[:eq])),
				value: strings.Trim(strings.TrimSpace(token[eq+1:]), `"`),
			})
		} else if t := strings.TrimSpace(token); t != "" {
			// Bare token — vCard 3.0 shorthand for TYPE=value.
			params = append(params, param{name: "TYPE", value: strings.ToUpper(t)})
		}
	}

	return contentLine{name: name, params: params, value: value}, nil
}

// ── Accumulators ───────────────────────────────────────────────────────────

// nameAccum merges FN and N into a single Name fact.
type nameAccum struct {
	given, family, additional, prefix, suffix string
	full                                      string
	seen                                      bool
}

func (a *nameAccum) flush() (fact.Name, bool) {
	if !a.seen {
		return fact.Name{}, false
	}
	full := a.full
	if full == "" {
		var parts []string
		for _, p := range []string{a.prefix, a.given, a.additional, a.family, a.suffix} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			return fact.Name{}, false
		}
		full = strings.Join(parts, " ")
	}
	return fact.Name{
		Given:      a.given,
		Family:     a.family,
		Additional: a.additional,
		Prefix:     a.prefix,
		Suffix:     a.suffix,
		Full:       full,
	}, true
}

// orgGroup accumulates ORG + TITLE + ROLE. A new ORG line opens a new group;
// TITLE/ROLE attach to the most recent one.
type orgGroup struct {
	orgName string
	title   string
	role    string
}

// ── Core parser ────────────────────────────────────────────────────────────

func parseOne(input, sourceName string) (Parsed, error) {
	lines := unfoldLines(input)

	start, end := -1, -1
	for i, l := range lines {
		if strings.EqualFold(l, "BEGIN:VCARD") {
			start = i
			break
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.EqualFold(lines[i], "END:VCARD") {
			end = i
			break
		}
	}
	if start < 0 || end < 0 || end <= start {
		return Parsed{}, ErrMissingEnvelope
	}

	var (
		uid       string
		version   string
		names     nameAccum
		orgGroups []orgGroup
		values    []fact.Value
	)

	for _, line := range lines[start+1 : end] {
		cl, err := parseContentLine(line)
		if err != nil {
			continue // skip malformed lines
		}

		value := cl.value
		if enc, ok := firstParam(cl.params, "ENCODING"); ok &&
			strings.EqualFold(enc, "QUOTED-PRINTABLE") {
			value = decodeQuotedPrintable(value)
		}

		types := typeValues(cl.params)
		pref := prefFromParams(cl.params, types)
		label := labelFromTypes(types)

		switch cl.name {
		case "VERSION":
			v := strings.TrimSpace(value)
			if v != "3.0" && v != "4.0" {
				return Parsed{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, v)
			}
			version = v

		case "PRODID", "REV", "KIND", "CATEGORIES":
			// envelope / meta, not facts

		case "UID":
			uid = strings.TrimSpace(value)

		case "FN":
			if v := unescapeValue(value); v != "" {
				names.full = v
				names.seen = true
			}

		case "N":
			// family;given;additional;prefix;suffix
			parts := strings.Split(value, ";")
			get := func(i int) string {
				if i < len(parts) {
					return unescapeValue(strings.TrimSpace(parts[i]))
				}
				return ""
			}
			names.family = get(0)
			names.given = get(1)
			names.additional = get(2)
			names.prefix = get(3)
			names.suffix = get(4)
			names.seen = true

		case "NICKNAME":
			for _, token := range strings.Split(value, ",") {
				if name := unescapeValue(strings.TrimSpace(token)); name != "" {
					values = append(values, fact.Alias{Name: name})
				}
			}

		case "TEL":
			number := unescapeValue(strings.TrimSpace(value))
			if number == "" {
				continue
			}
			kind := fact.PhoneVoice
			for _, t := range types {
				switch t {
				case "CELL", "MOBILE":
					kind = fact.PhoneCell
				case "FAX":
					kind = fact.PhoneFax
				case "PAGER":
					kind = fact.PhonePager
				case "TEXT":
					kind = fact.PhoneText
				case "VIDEO":
					kind = fact.PhoneVideo
				}
			}
			values = append(values, fact.Phone{
				Number: number, Label: label, Kind: kind, Preference: pref,
			})

		case "EMAIL":
			address := unescapeValue(strings.TrimSpace(value))
			if address == "" {
				continue
			}
			values = append(values, fact.Email{
				Address: address, Label: label, Preference: pref,
			})

		case "ADR":
			// pobox;ext;street;locality;region;postal;country
			// pobox and ext are not modelled.
			parts := strings.Split(value, ";")
			get := func(i int) string {
				if i < len(parts) {
					return unescapeValue(strings.TrimSpace(parts[i]))
				}
				return ""
			}
			values = append(values, fact.Address{
				Label:      label,
				Street:     get(2),
				Locality:   get(3),
				Region:     get(4),
				PostalCode: get(5),
				Country:    get(6),
			})

		case "URL":
			url := strings.TrimSpace(value)
			if url == "" {
				continue
			}
			values = append(values, fact.URL{URL: url, Context: urlContext(url, types)})

		case "BDAY":
			if d, ok := parseVcardDate(value); ok {
				values = append(values, fact.Birthday{Date: d})
			}

		case "ANNIVERSARY", "X-ANNIVERSARY":
			if d, ok := parseVcardDate(value); ok {
				values = append(values, fact.Anniversary{Date: d})
			}

		case "GENDER":
			// 4.0 only; first component before ';'.
			if version == "3.0" {
				break
			}
			g, _, _ := strings.Cut(value, ";")
			if g = strings.TrimSpace(g); g != "" {
				values = append(values, fact.Gender(g))
			}

		case "ORG":
			first, _, _ := strings.Cut(value, ";")
			if orgName := unescapeValue(strings.TrimSpace(first)); orgName != "" {
				orgGroups = append(orgGroups, orgGroup{orgName: orgName})
			}

		case "TITLE":
			if title := unescapeValue(strings.TrimSpace(value)); title != "" {
				if len(orgGroups) == 0 {
					orgGroups = append(orgGroups, orgGroup{})
				}
				orgGroups[len(orgGroups)-1].title = title
			}

		case "ROLE":
			if role := unescapeValue(strings.TrimSpace(value)); role != "" {
				if len(orgGroups) == 0 {
					orgGroups = append(orgGroups, orgGroup{})
				}
				orgGroups[len(orgGroups)-1].role = role
			}

		case "NOTE":
			if note := unescapeValue(value); note != "" {
				values = append(values, fact.Note(note))
			}

		case "PHOTO":
			// Only URI-valued photos are mapped; embedded base64 is dropped.
			enc, _ := firstParam(cl.params, "ENCODING")
			isBase64 := strings.EqualFold(enc, "BASE64") || strings.EqualFold(enc, "b")
			uri := strings.TrimSpace(value)
			if !isBase64 && uri != "" &&
				(strings.HasPrefix(uri, "http") ||
					strings.HasPrefix(uri, "file://") ||
					strings.HasPrefix(uri, "cid:")) {
				encoded, _ := json.Marshal(uri)
				values = append(values, fact.Custom{Key: "photo_uri", Value: encoded})
			}

		case "IMPP":
			scheme, handle, found := strings.Cut(value, ":")
			if !found {
				return Parsed{}, fmt.Errorf("%w: %q", ErrInvalidImppURI, value)
			}
			values = append(values, fact.IM{
				Handle: handle, Service: schemeToService(scheme),
			})

		case "X-AIM":
			values = append(values, legacyIM(value, "AIM"))
		case "X-JABBER":
			values = append(values, legacyIM(value, "XMPP"))
		case "X-SKYPE", "X-SKYPE-USERNAME":
			values = append(values, legacyIM(value, "Skype"))
		case "X-ICQ":
			values = append(values, legacyIM(value, "ICQ"))
		case "X-MSN":
			values = append(values, legacyIM(value, "MSN"))
		case "X-YAHOO":
			values = append(values, legacyIM(value, "Yahoo"))
		case "X-GOOGLE-TALK":
			values = append(values, legacyIM(value, "Google Talk"))

		case "X-KITH-SOCIAL":
			platform, _ := firstParam(cl.params, "PLATFORM")
			handle := unescapeValue(strings.TrimSpace(value))
			if platform != "" && handle != "" {
				values = append(values, fact.Social{Platform: platform, Handle: handle})
			}

		case "X-KITH-GROUP":
			group := fact.GroupMembership{
				GroupName: unescapeValue(strings.TrimSpace(value)),
			}
			if raw, ok := firstParam(cl.params, "GROUP-ID"); ok {
				if id, err := uuid.Parse(raw); err == nil {
					group.GroupID = id
				}
			}
			values = append(values, group)

		case "X-KITH-RELATION":
			rel := fact.Relationship{
				OtherName: strings.TrimSpace(unescapeValue(value)),
			}
			rel.Relation, _ = firstParam(cl.params, "RELATION")
			if raw, ok := firstParam(cl.params, "OTHER-ID"); ok {
				if id, err := uuid.Parse(raw); err == nil {
					rel.OtherID = id
				}
			}
			values = append(values, rel)

		case "X-KITH-MEETING":
			location, _ := firstParam(cl.params, "LOCATION")
			values = append(values, fact.Meeting{
				Summary:  unescapeValue(strings.TrimSpace(value)),
				Location: location,
			})

		case "X-KITH-INTRODUCTION":
			if intro := unescapeValue(strings.TrimSpace(value)); intro != "" {
				values = append(values, fact.Introduction(intro))
			}

		default:
			if strings.HasPrefix(cl.name, "X-") {
				encoded, _ := json.Marshal(unescapeValue(value))
				values = append(values, fact.Custom{Key: cl.name, Value: encoded})
				continue
			}
			// unknown IANA properties silently skipped
		}
	}

	// Flush accumulators: Name first, then org memberships, then the rest.
	var final []fact.Value
	if name, ok := names.flush(); ok {
		final = append(final, name)
	}
	for _, g := range orgGroups {
		orgName := g.orgName
		if orgName == "" {
			orgName = "(unknown)"
		}
		final = append(final, fact.OrgMembership{
			OrgName: orgName, Title: g.title, Role: g.role,
		})
	}
	final = append(final, values...)

	ctx := fact.Imported(sourceName, uid)
	facts := make([]fact.NewFact, 0, len(final))
	for _, v := range final {
		nf := fact.New(uuid.Nil, v)
		nf.RecordingContext = ctx
		facts = append(facts, nf)
	}

	return Parsed{UID: uid, Facts: facts}, nil
}

// parseVcardDate accepts YYYYMMDD and YYYY-MM-DD. Year-omitted --MMDD values
// and anything else unparsable are silently skipped (ok == false): the parser
// stays total and a bad date never drops the whole card.
func parseVcardDate(value string) (fact.Date, bool) {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "--") {
		return fact.Date{}, false
	}
	d, err := fact.ParseDate(v)
	if err != nil {
		return fact.Date{}, false
	}
	return d, true
}

func urlContext(url string, types []string) fact.URLContext {
	hasType := func(want string) bool {
		for _, t := range types {
			if strings.EqualFold(t, want) {
				return true
			}
		}
		return false
	}
	switch {
	case hasType("LINKEDIN") || strings.Contains(url, "linkedin.com"):
		return fact.URLLinkedIn
	case hasType("GITHUB") || strings.Contains(url, "github.com"):
		return fact.URLGitHub
	case hasType("MASTODON") || strings.Contains(url, "mastodon"):
		return fact.URLMastodon
	}
	for _, t := range types {
		switch t {
		case "WORK", "HOME", "PREF", "OTHER":
		default:
			return fact.URLContext(strings.ToLower(t))
		}
	}
	return fact.URLHomepage
}

func legacyIM(value, service string) fact.IM {
	return fact.IM{Handle: strings.TrimSpace(value), Service: service}
}
