package carddav

import (
	"net/http"
	"time"

	"github.com/johnbchron/kith/internal/fact"
	"github.com/johnbchron/kith/internal/vcard"
)

// namedProp pairs a property local-name with its rendered form, so Prop
// requests can be filtered and unknown names routed to the 404 propstat.
type namedProp struct {
	name string
	prop Property
}

// respond writes one multistatus response for href, honouring the request
// shape: allprop/propname get every available property, an explicit prop
// list gets the intersection plus a 404 propstat for the rest.
func respond(ms *Multistatus, req PropfindRequest, href string, available []namedProp) {
	if req.Kind != PropfindProps {
		props := make([]Property, 0, len(available))
		for _, np := range available {
			props = append(props, np.prop)
		}
		ms.OK(href, props...)
		return
	}

	byName := map[string]Property{}
	for _, np := range available {
		byName[np.name] = np.prop
	}

	var found []Property
	var missing []string
	for _, name := range req.Props {
		if p, ok := byName[name]; ok {
			found = append(found, p)
		} else {
			missing = append(missing, name)
		}
	}
	ms.OKWithMissing(href, found, missing)
}

// handlePrincipal answers PROPFIND /dav/.
func (s *Server) handlePrincipal(w http.ResponseWriter, r *http.Request, body []byte) error {
	req, err := ParsePropfind(body)
	if err != nil {
		return err
	}

	href := s.opts.BaseURL + "/dav/"
	home := s.opts.BaseURL + "/dav/addressbooks/"

	ms := NewMultistatus()
	respond(ms, req, href, []namedProp{
		{propResourceType, PropResourceType(ResourcePrincipal)},
		{propDisplayName, PropDisplayName(s.opts.Credentials.Username)},
		{propCurrentUserPrincipal, PropCurrentUserPrincipal(href)},
		{propAddressbookHomeSet, PropAddressbookHomeSet(home)},
	})

	writeMultistatus(w, ms.Finish())
	return nil
}

// handleHomeSet answers PROPFIND /dav/addressbooks/.
func (s *Server) handleHomeSet(w http.ResponseWriter, r *http.Request, body []byte) error {
	req, err := ParsePropfind(body)
	if err != nil {
		return err
	}

	ms := NewMultistatus()
	respond(ms, req, s.opts.BaseURL+"/dav/addressbooks/", []namedProp{
		{propResourceType, PropResourceType(ResourceCollection)},
		{propDisplayName, PropDisplayName("Address Books")},
	})

	writeMultistatus(w, ms.Finish())
	return nil
}

// handleCollection answers PROPFIND on the addressbook collection. Depth 1
// adds one response per subject whose view has active facts.
func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request, ab string, body []byte) error {
	depth, err := parseDepth(r)
	if err != nil {
		return err
	}
	req, err := ParsePropfind(body)
	if err != nil {
		return err
	}

	ms := NewMultistatus()
	respond(ms, req, s.collectionHref(ab), []namedProp{
		{propResourceType, PropResourceType(ResourceCollection | ResourceAddressbook)},
		{propDisplayName, PropDisplayName(ab)},
		{propSupportedAddressData, PropSupportedAddressData()},
		{propAddressbookDescription, PropAddressbookDescription(ab + " address book")},
	})

	if depth >= 1 {
		subjects, err := s.store.ListSubjects(r.Context(), fact.KindPerson)
		if err != nil {
			return mapStoreErr(err)
		}
		for _, subject := range subjects {
			view, err := s.store.Materialize(r.Context(), subject.SubjectID, time.Time{})
			if err != nil {
				return mapStoreErr(err)
			}
			if view == nil || len(view.ActiveFacts) == 0 {
				continue
			}
			card := vcard.Serialize(view)
			respond(ms, req, s.resourceHref(ab, subject.SubjectID), []namedProp{
				{propGetContentType, PropGetContentType("text/vcard; charset=utf-8")},
				{propGetETag, PropGetETag(ComputeETag(view))},
				{propGetContentLength, PropGetContentLength(len(card))},
			})
		}
	}

	writeMultistatus(w, ms.Finish())
	return nil
}

// handleResourceProps answers PROPFIND on a single vCard resource.
func (s *Server) handleResourceProps(w http.ResponseWriter, r *http.Request, ab, res string, body []byte) error {
	req, err := ParsePropfind(body)
	if err != nil {
		return err
	}
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
	var lastModified time.Time
	for _, rf := range view.ActiveFacts {
		if rf.Fact.RecordedAt.After(lastModified) {
			lastModified = rf.Fact.RecordedAt
		}
	}
	if lastModified.IsZero() {
		lastModified = view.AsOf
	}

	ms := NewMultistatus()
	respond(ms, req, s.resourceHref(ab, uid), []namedProp{
		{propGetContentType, PropGetContentType("text/vcard; charset=utf-8")},
		{propGetETag, PropGetETag(ComputeETag(view))},
		{propGetContentLength, PropGetContentLength(len(card))},
		{propGetLastModified, PropGetLastModified(lastModified.UTC().Format(http.TimeFormat))},
	})

	writeMultistatus(w, ms.Finish())
	return nil
}
