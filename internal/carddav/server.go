// Package carddav implements the CardDAV protocol layer (RFC 6352) over the
// Kith fact store: OPTIONS, PROPFIND, GET/HEAD, PUT, DELETE and REPORT on a
// single addressbook, with ETag preconditions and Basic authentication.
package carddav

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/johnbchron/kith/internal/store"
)

// Request bodies larger than this are rejected.
const maxBodyBytes = 8 << 20

// Options configure a Server.
type Options struct {
	// BaseURL prefixes every href in PROPFIND/REPORT responses.
	BaseURL string
	// Addressbook is the name of the single collection, e.g. "personal".
	Addressbook string
	Credentials Credentials
}

// Server handles the /dav/ URL space:
//
//	/dav/                                principal
//	/dav/addressbooks/                   home set
//	/dav/addressbooks/{ab}/              collection
//	/dav/addressbooks/{ab}/{uuid}.vcf    resource
//
// PROPFIND and REPORT are extension methods, so dispatch is by hand rather
// than through a method-keyed mux.
type Server struct {
	store *store.Store
	opts  Options
}

// NewServer builds a Server over an open store.
func NewServer(st *store.Store, opts Options) *Server {
	return &Server{store: st, opts: opts}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// OPTIONS is the client discovery probe and bypasses auth.
	if r.Method == http.MethodOptions {
		s.handleOptions(w)
		return
	}

	if err := checkAuth(r, s.opts.Credentials); err != nil {
		writeError(w, r, err)
		return
	}

	segs := pathSegments(r.URL.Path)
	switch {
	case len(segs) == 1 && segs[0] == "dav":
		s.dispatchPrincipal(w, r)
	case len(segs) == 2 && segs[0] == "dav" && segs[1] == "addressbooks":
		s.dispatchHomeSet(w, r)
	case len(segs) == 3 && segs[0] == "dav" && segs[1] == "addressbooks" && segs[2] == s.opts.Addressbook:
		s.dispatchCollection(w, r, segs[2])
	case len(segs) == 4 && segs[0] == "dav" && segs[1] == "addressbooks" && segs[2] == s.opts.Addressbook:
		s.dispatchResource(w, r, segs[2], segs[3])
	default:
		writeError(w, r, errNotFound)
	}
}

func (s *Server) dispatchPrincipal(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "PROPFIND":
		s.withBody(w, r, s.handlePrincipal)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) dispatchHomeSet(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "PROPFIND":
		s.withBody(w, r, s.handleHomeSet)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) dispatchCollection(w http.ResponseWriter, r *http.Request, ab string) {
	switch r.Method {
	case "PROPFIND":
		s.withBody(w, r, func(w http.ResponseWriter, r *http.Request, body []byte) error {
			return s.handleCollection(w, r, ab, body)
		})
	case "REPORT":
		s.withBody(w, r, func(w http.ResponseWriter, r *http.Request, body []byte) error {
			return s.handleReport(w, r, ab, body)
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) dispatchResource(w http.ResponseWriter, r *http.Request, ab, res string) {
	switch r.Method {
	case "PROPFIND":
		s.withBody(w, r, func(w http.ResponseWriter, r *http.Request, body []byte) error {
			return s.handleResourceProps(w, r, ab, res, body)
		})
	case http.MethodGet, http.MethodHead:
		if err := s.handleGet(w, r, res); err != nil {
			writeError(w, r, err)
		}
	case http.MethodPut:
		s.withBody(w, r, func(w http.ResponseWriter, r *http.Request, body []byte) error {
			return s.handlePut(w, r, res, body)
		})
	case http.MethodDelete:
		if err := s.handleDelete(w, r, res); err != nil {
			writeError(w, r, err)
		}
	default:
		methodNotAllowed(w)
	}
}

// handleOptions advertises the DAV capability classes and allowed methods.
func (s *Server) handleOptions(w http.ResponseWriter) {
	w.Header().Set("Allow", "OPTIONS, GET, HEAD, PUT, DELETE, PROPFIND, REPORT")
	w.Header().Set("DAV", "1, 3, addressbook")
	w.WriteHeader(http.StatusNoContent)
}

// withBody reads the capped request body and feeds it to fn.
func (s *Server) withBody(w http.ResponseWriter, r *http.Request, fn func(http.ResponseWriter, *http.Request, []byte) error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, &Error{Status: http.StatusRequestEntityTooLarge, Message: "request body too large"})
			return
		}
		writeError(w, r, internal(err))
		return
	}
	if err := fn(w, r, body); err != nil {
		writeError(w, r, err)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func pathSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// parseDepth maps the Depth header: absent means 0, "infinity" (or anything
// unrecognised) is refused.
func parseDepth(r *http.Request) (int, error) {
	switch strings.ToLower(strings.TrimSpace(r.Header.Get("Depth"))) {
	case "", "0":
		return 0, nil
	case "1":
		return 1, nil
	default:
		return 0, forbidden("Depth: infinity not supported")
	}
}

// parseUID extracts the subject UUID from a "{uuid}.vcf" path segment.
func parseUID(res string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSuffix(res, ".vcf"))
	if err != nil {
		return uuid.Nil, badRequest(fmt.Sprintf("invalid UUID in path: %q", res))
	}
	return id, nil
}

func (s *Server) collectionHref(ab string) string {
	return fmt.Sprintf("%s/dav/addressbooks/%s/", s.opts.BaseURL, ab)
}

func (s *Server) resourceHref(ab string, id uuid.UUID) string {
	return fmt.Sprintf("%s/dav/addressbooks/%s/%s.vcf", s.opts.BaseURL, ab, id)
}

func writeMultistatus(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	if _, err := w.Write(body); err != nil {
		slog.Debug("write multistatus", "err", err)
	}
}
