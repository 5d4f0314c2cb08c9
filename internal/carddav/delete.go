package carddav

import (
	"log/slog"
	"net/http"
	"time"
)

// handleDelete retracts every active fact of the subject. The subject
// envelope and its history are retained: to clients the resource reads as
// gone, to the store it is a subject whose facts are all retracted.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, res string) error {
	uid, err := parseUID(res)
	if err != nil {
		return err
	}

	subject, err := s.store.GetSubject(r.Context(), uid)
	if err != nil {
		return mapStoreErr(err)
	}
	if subject == nil {
		return errNotFound
	}

	active, err := s.store.GetFacts(r.Context(), uid, time.Time{}, false)
	if err != nil {
		return mapStoreErr(err)
	}
	// All facts already inactive reads as absent via GET; keep DELETE
	// consistent with that.
	if len(active) == 0 {
		return errNotFound
	}

	for _, rf := range active {
		if _, err := s.store.Retract(r.Context(), rf.Fact.FactID, "Deleted via CardDAV"); err != nil {
			return mapStoreErr(err)
		}
	}

	slog.Info("delete applied", "subject", uid, "retracted", len(active))
	w.WriteHeader(http.StatusNoContent)
	return nil
}
