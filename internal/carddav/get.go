package carddav

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/johnbchron/kith/internal/vcard"
)

// handleGet serves GET and HEAD for a vCard resource. A subject whose view
// has no active facts is indistinguishable from an absent one.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, res string) error {
	uid, err := parseUID(res)
	if err != nil {
		return err
	}

	view, err := s.store.Materialize(r.Context(), uid, time.Time{})
	if err != nil {
		return mapStoreErr(err)
	}
	if view == nil || len(view.ActiveFacts) == 0 {
		return errNotFound
	}

	card := vcard.Serialize(view)
	w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
	w.Header().Set("ETag", ComputeETag(view))
	w.Header().Set("Content-Length", strconv.Itoa(len(card)))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := w.Write([]byte(card)); err != nil {
		slog.Debug("write vcard body", "err", err)
	}
	return nil
}
