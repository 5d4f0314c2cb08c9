package carddav

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/johnbchron/kith/internal/fact"
)

// putSourceName is recorded as the provenance of every fact written by PUT.
const putSourceName = "carddav-put"

// handlePut creates or reconverges a vCard resource.
//
// The incoming body is diffed against the current materialized view and the
// resulting operations are applied in three phases: record, supersede,
// retract. Each phase commits independently — if a later phase fails the
// earlier commits stand, and the client's next ETag-driven sync reconverges.
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, res string, body []byte) error {
	uid, err := parseUID(res)
	if err != nil {
		return err
	}
	if !utf8.Valid(body) {
		return badRequest("body is not valid UTF-8")
	}

	ifMatch := r.Header.Get("If-Match")

	subject, err := s.store.GetSubject(r.Context(), uid)
	if err != nil {
		return mapStoreErr(err)
	}
	isNew := subject == nil

	if isNew {
		// An If-Match precondition can never hold against a resource that
		// does not exist yet.
		if ifMatch != "" {
			return errPrecondition
		}
		if _, err := s.store.AddSubjectWithID(r.Context(), uid, fact.KindPerson); err != nil {
			return mapStoreErr(err)
		}
	} else if ifMatch != "" {
		view, err := s.store.Materialize(r.Context(), uid, time.Time{})
		if err != nil {
			return mapStoreErr(err)
		}
		if view == nil {
			return errNotFound
		}
		if !etagsMatch(ComputeETag(view), ifMatch) {
			return errPrecondition
		}
	}

	currentView, err := s.store.Materialize(r.Context(), uid, time.Time{})
	if err != nil {
		return mapStoreErr(err)
	}

	result, err := Diff(string(body), uid, putSourceName, currentView)
	if err != nil {
		return mapVcardErr(err)
	}

	var stamps []FactStamp
	for _, nf := range result.NewFacts {
		recorded, err := s.store.RecordFact(r.Context(), nf)
		if err != nil {
			return mapStoreErr(err)
		}
		stamps = append(stamps, FactStamp{FactID: recorded.FactID, RecordedAt: recorded.RecordedAt})
	}
	for _, op := range result.Supersessions {
		_, newFact, err := s.store.Supersede(r.Context(), op.OldFactID, op.Replacement)
		if err != nil {
			return mapStoreErr(err)
		}
		stamps = append(stamps, FactStamp{FactID: newFact.FactID, RecordedAt: newFact.RecordedAt})
	}
	for _, factID := range result.Retractions {
		if _, err := s.store.Retract(r.Context(), factID, "Superseded by CardDAV PUT"); err != nil {
			return mapStoreErr(err)
		}
	}

	slog.Info("put applied",
		"subject", uid, "new", len(result.NewFacts),
		"superseded", len(result.Supersessions), "retracted", len(result.Retractions))

	var etag string
	newView, err := s.store.Materialize(r.Context(), uid, time.Time{})
	if err != nil {
		return mapStoreErr(err)
	}
	if newView != nil {
		etag = ComputeETag(newView)
	} else {
		etag = ETagFromStamps(stamps)
	}

	w.Header().Set("ETag", etag)
	if isNew {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
	return nil
}

// etagsMatch compares ETags ignoring the surrounding double quotes RFC 7232
// requires but some clients omit.
func etagsMatch(a, b string) bool {
	return strings.Trim(a, `"`) == strings.Trim(b, `"`)
}
