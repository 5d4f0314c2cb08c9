package carddav

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/fact"
	"github.com/johnbchron/kith/internal/vcard"
)

// handleReport dispatches addressbook-multiget and addressbook-query.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, ab string, body []byte) error {
	report, err := ParseReport(body)
	if err != nil {
		return err
	}
	switch report.Kind {
	case ReportMultiget:
		return s.reportMultiget(w, r, ab, report)
	default:
		return s.reportQuery(w, r, ab, report)
	}
}

// reportMultiget fetches the requested hrefs and returns their data; hrefs
// that resolve to nothing become bare 404 response elements.
func (s *Server) reportMultiget(w http.ResponseWriter, r *http.Request, ab string, report ReportRequest) error {
	wantETag := slices.Contains(report.Props, propGetETag)
	wantData := slices.Contains(report.Props, propAddressData)

	ms := NewMultistatus()
	for _, href := range report.Hrefs {
		canonical := s.canonicalHref(ab, href)

		uid, ok := uidFromHref(href)
		if !ok {
			ms.NotFound(canonical)
			continue
		}

		view, err := s.store.Materialize(r.Context(), uid, time.Time{})
		if err != nil {
			return mapStoreErr(err)
		}
		if view == nil || len(view.ActiveFacts) == 0 {
			ms.NotFound(canonical)
			continue
		}

		ms.OK(canonical, reportProps(view, wantETag, wantData)...)
	}

	writeMultistatus(w, ms.Finish())
	return nil
}

// reportQuery returns every contact in the addressbook. Filter conditions
// are not evaluated, which is correct for the empty or always-true filters
// sync clients send.
func (s *Server) reportQuery(w http.ResponseWriter, r *http.Request, ab string, report ReportRequest) error {
	wantETag := slices.Contains(report.Props, propGetETag)
	wantData := slices.Contains(report.Props, propAddressData)

	subjects, err := s.store.ListSubjects(r.Context(), fact.KindPerson)
	if err != nil {
		return mapStoreErr(err)
	}

	ms := NewMultistatus()
	for _, subject := range subjects {
		view, err := s.store.Materialize(r.Context(), subject.SubjectID, time.Time{})
		if err != nil {
			return mapStoreErr(err)
		}
		if view == nil || len(view.ActiveFacts) == 0 {
			continue
		}
		ms.OK(s.resourceHref(ab, subject.SubjectID), reportProps(view, wantETag, wantData)...)
	}

	writeMultistatus(w, ms.Finish())
	return nil
}

func reportProps(view *fact.ContactView, wantETag, wantData bool) []Property {
	var props []Property
	if wantETag {
		props = append(props, PropGetETag(ComputeETag(view)))
	}
	if wantData {
		props = append(props, PropAddressData(vcard.Serialize(view)))
	}
	return props
}

// uidFromHref parses a UUID from a href like ".../{uuid}.vcf" or ".../{uuid}".
func uidFromHref(href string) (uuid.UUID, bool) {
	trimmed := strings.TrimSuffix(href, "/")
	last := trimmed
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		last = trimmed[i+1:]
	}
	id, err := uuid.Parse(strings.TrimSuffix(last, ".vcf"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// canonicalHref rebuilds an absolute href for a client-supplied one, which
// may be absolute already or relative to the collection.
func (s *Server) canonicalHref(ab, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	trimmed := strings.TrimSuffix(href, "/")
	last := trimmed
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		last = trimmed[i+1:]
	}
	return s.opts.BaseURL + "/dav/addressbooks/" + ab + "/" + last
}
