// Package vcard converts between vCard 3.0 / 4.0 text (RFC 2426, RFC 6350)
// and Kith facts.
//
// Parsing and serialization are pure and synchronous; no I/O, no database.
// Reading is uniform — both versions parse into the same fact set — while
// writing is version-parameterized via a small capability skew (KIND, GENDER,
// ANNIVERSARY, IMPP and PREF differ between 3.0 and 4.0).
package vcard

import (
	"strings"

	"github.com/johnbchron/kith/internal/fact"
)

// Parsed is the result of parsing a single vCard.
//
// Every fact's SubjectID is uuid.Nil; the caller rewrites it with the real
// subject id before persisting. Every fact carries an Imported recording
// context with the given source name and the vCard's UID (if any).
type Parsed struct {
	UID   string
	Facts []fact.NewFact
}

// Parse parses a single vCard from input. sourceName is recorded in each
// fact's provenance.
func Parse(input, sourceName string) (Parsed, error) {
	return parseOne(input, sourceName)
}

// ParseAll parses zero or more concatenated vCards. Each BEGIN:VCARD …
// END:VCARD block is parsed independently; a malformed block contributes an
// error in its position without aborting the rest.
func ParseAll(input, sourceName string) []ParseResult {
	lines := unfoldLines(input)
	var results []ParseResult

	i := 0
	for i < len(lines) {
		if !strings.EqualFold(lines[i], "BEGIN:VCARD") {
			i++
			continue
		}
		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.EqualFold(lines[j], "END:VCARD") {
				end = j
				break
			}
		}
		if end < 0 {
			results = append(results, ParseResult{Err: ErrMissingEnvelope})
			break
		}
		card := strings.Join(lines[i:end+1], "\r\n") + "\r\n"
		parsed, err := parseOne(card, sourceName)
		results = append(results, ParseResult{Card: parsed, Err: err})
		i = end + 1
	}

	return results
}

// ParseResult is one entry of ParseAll.
type ParseResult struct {
	Card Parsed
	Err  error
}

// Serialize renders view as a vCard 4.0 string: CRLF line endings, lines
// folded at 75 octets.
func Serialize(view *fact.ContactView) string {
	return serialize(view, version40)
}

// SerializeV3 renders view as a vCard 3.0 string.
func SerializeV3(view *fact.ContactView) string {
	return serialize(view, version30)
}
