package carddav

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WebDAV / CardDAV XML: PROPFIND and REPORT request parsing, multistatus
// response generation. Two namespaces matter, bound to the prefixes D and
// card in all output.
const (
	nsDAV     = "DAV:"
	nsCardDAV = "urn:ietf:params:xml:ns:carddav"
)

// ── PROPFIND request ───────────────────────────────────────────────────────

// PropfindKind discriminates the three PROPFIND request shapes.
type PropfindKind int

const (
	PropfindAllProp PropfindKind = iota
	PropfindPropNames
	PropfindProps
)

// PropfindRequest is a parsed PROPFIND body. For PropfindProps, Props holds
// the requested property local-names (lowercased); names the server does not
// recognise stay in the list and end up in the 404 propstat.
type PropfindRequest struct {
	Kind  PropfindKind
	Props []string
}

// Recognised property names, as lowercase local names.
const (
	propResourceType           = "resourcetype"
	propDisplayName            = "displayname"
	propGetContentType         = "getcontenttype"
	propGetETag                = "getetag"
	propGetContentLength       = "getcontentlength"
	propGetLastModified        = "getlastmodified"
	propCurrentUserPrincipal   = "current-user-principal"
	propAddressbookHomeSet     = "addressbook-home-set"
	propAddressbookDescription = "addressbook-description"
	propSupportedAddressData   = "supported-address-data"
	propAddressData            = "address-data"
)

// ParsePropfind parses a PROPFIND request body. An empty or missing body is
// AllProp per RFC 4918 §9.1.
func ParsePropfind(body []byte) (PropfindRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return PropfindRequest{Kind: PropfindAllProp}, nil
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	inProp := false
	var props []string

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PropfindRequest{}, fmt.Errorf("%w: %v", errMalformedXML, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch local := strings.ToLower(t.Name.Local); local {
			case "allprop":
				return PropfindRequest{Kind: PropfindAllProp}, nil
			case "propname":
				return PropfindRequest{Kind: PropfindPropNames}, nil
			case "prop":
				inProp = true
			case "propfind":
			default:
				if inProp {
					props = append(props, local)
				}
			}
		case xml.EndElement:
			if strings.ToLower(t.Name.Local) == "prop" {
				inProp = false
			}
		}
	}

	if len(props) == 0 {
		return PropfindRequest{Kind: PropfindAllProp}, nil
	}
	return PropfindRequest{Kind: PropfindProps, Props: props}, nil
}

// ── REPORT request ─────────────────────────────────────────────────────────

// ReportKind discriminates the two supported CardDAV reports.
type ReportKind int

const (
	// ReportMultiget fetches specific resources by href.
	ReportMultiget ReportKind = iota
	// ReportQuery fetches resources matching a filter.
	ReportQuery
)

// ReportRequest is a parsed addressbook-multiget or addressbook-query body.
type ReportRequest struct {
	Kind ReportKind
	// Props are the requested property local-names.
	Props []string
	// Hrefs are the resources listed by the client (Multiget only).
	Hrefs []string
}

// ParseReport parses a REPORT request body.
func ParseReport(body []byte) (ReportRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return ReportRequest{}, badRequest("empty REPORT body")
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		kind    *ReportKind
		props   []string
		hrefs   []string
		inProp  bool
		inHref  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ReportRequest{}, fmt.Errorf("%w: %v", errMalformedXML, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch local := strings.ToLower(t.Name.Local); local {
			case "addressbook-multiget":
				k := ReportMultiget
				kind = &k
			case "addressbook-query":
				k := ReportQuery
				kind = &k
			case "prop":
				inProp = true
			case "href":
				if !inProp {
					inHref = true
				}
			default:
				if inProp {
					props = append(props, local)
				}
			}
		case xml.CharData:
			if inHref {
				if href := strings.TrimSpace(string(t)); href != "" {
					hrefs = append(hrefs, href)
				}
				inHref = false
			}
		case xml.EndElement:
			switch strings.ToLower(t.Name.Local) {
			case "prop":
				inProp = false
			case "href":
				inHref = false
			}
		}
	}

	if kind == nil {
		return ReportRequest{}, badRequest("REPORT body is not a recognized CardDAV report")
	}
	if len(props) == 0 {
		// No explicit prop list: etag + address data is what sync clients want.
		props = []string{propGetETag, propAddressData}
	}

	return ReportRequest{Kind: *kind, Props: props, Hrefs: hrefs}, nil
}

// ── Multistatus response ───────────────────────────────────────────────────

// ResourceTypeFlag marks what a resource is in <D:resourcetype>.
type ResourceTypeFlag int

const (
	ResourcePrincipal ResourceTypeFlag = 1 << iota
	ResourceCollection
	ResourceAddressbook
)

// Property is one property to render inside a 200 propstat.
type Property struct {
	write func(*xmlWriter)
}

// PropResourceType renders <D:resourcetype> with the given flags.
func PropResourceType(flags ResourceTypeFlag) Property {
	return Property{write: func(w *xmlWriter) {
		w.start("D:resourcetype")
		if flags&ResourcePrincipal != 0 {
			w.empty("D:principal")
		}
		if flags&ResourceCollection != 0 {
			w.empty("D:collection")
		}
		if flags&ResourceAddressbook != 0 {
			w.empty("card:addressbook")
		}
		w.end("D:resourcetype")
	}}
}

// PropDisplayName renders <D:displayname>.
func PropDisplayName(name string) Property {
	return Property{write: func(w *xmlWriter) { w.text("D:displayname", name) }}
}

// PropGetContentType renders <D:getcontenttype>.
func PropGetContentType(ct string) Property {
	return Property{write: func(w *xmlWriter) { w.text("D:getcontenttype", ct) }}
}

// PropGetETag renders <D:getetag>.
func PropGetETag(etag string) Property {
	return Property{write: func(w *xmlWriter) { w.text("D:getetag", etag) }}
}

// PropGetContentLength renders <D:getcontentlength>.
func PropGetContentLength(n int) Property {
	return Property{write: func(w *xmlWriter) { w.text("D:getcontentlength", strconv.Itoa(n)) }}
}

// PropGetLastModified renders <D:getlastmodified>.
func PropGetLastModified(httpDate string) Property {
	return Property{write: func(w *xmlWriter) { w.text("D:getlastmodified", httpDate) }}
}

// PropCurrentUserPrincipal renders <D:current-user-principal><D:href>…
func PropCurrentUserPrincipal(href string) Property {
	return Property{write: func(w *xmlWriter) {
		w.start("D:current-user-principal")
		w.text("D:href", href)
		w.end("D:current-user-principal")
	}}
}

// PropAddressbookHomeSet renders <card:addressbook-home-set><D:href>…
func PropAddressbookHomeSet(href string) Property {
	return Property{write: func(w *xmlWriter) {
		w.start("card:addressbook-home-set")
		w.text("D:href", href)
		w.end("card:addressbook-home-set")
	}}
}

// PropAddressbookDescription renders <card:addressbook-description>.
func PropAddressbookDescription(desc string) Property {
	return Property{write: func(w *xmlWriter) { w.text("card:addressbook-description", desc) }}
}

// PropSupportedAddressData advertises vCard 3.0 and 4.0 support.
func PropSupportedAddressData() Property {
	return Property{write: func(w *xmlWriter) {
		w.start("card:supported-address-data")
		w.emptyAttrs("card:address-data-type",
			attr{"content-type", "text/vcard"}, attr{"version", "3.0"})
		w.emptyAttrs("card:address-data-type",
			attr{"content-type", "text/vcard"}, attr{"version", "4.0"})
		w.end("card:supported-address-data")
	}}
}

// PropAddressData renders <card:address-data> carrying a serialized vCard.
func PropAddressData(vcardText string) Property {
	return Property{write: func(w *xmlWriter) { w.text("card:address-data", vcardText) }}
}

// Multistatus builds a <D:multistatus> document incrementally.
type Multistatus struct {
	w *xmlWriter
}

// NewMultistatus opens the document: XML declaration plus the root element
// with both namespace bindings.
func NewMultistatus() *Multistatus {
	w := newXMLWriter()
	w.raw(xml.Header)
	w.startAttrs("D:multistatus",
		attr{"xmlns:D", nsDAV}, attr{"xmlns:card", nsCardDAV})
	return &Multistatus{w: w}
}

// OK appends a response with a single 200 propstat for href.
func (m *Multistatus) OK(href string, props ...Property) *Multistatus {
	m.w.start("D:response")
	m.w.text("D:href", href)
	m.writePropstat("HTTP/1.1 200 OK", func() {
		for _, p := range props {
			p.write(m.w)
		}
	})
	m.w.end("D:response")
	return m
}

// OKWithMissing appends a response carrying both a 200 propstat and a 404
// propstat listing the unrecognised property names.
func (m *Multistatus) OKWithMissing(href string, props []Property, missing []string) *Multistatus {
	m.w.start("D:response")
	m.w.text("D:href", href)
	m.writePropstat("HTTP/1.1 200 OK", func() {
		for _, p := range props {
			p.write(m.w)
		}
	})
	if len(missing) > 0 {
		m.writePropstat("HTTP/1.1 404 Not Found", func() {
			for _, name := range missing {
				m.w.empty(elementForProp(name))
			}
		})
	}
	m.w.end("D:response")
	return m
}

// NotFound appends a bare 404 response (no propstat) for href; used by
// addressbook-multiget when the resource does not exist at all.
func (m *Multistatus) NotFound(href string) *Multistatus {
	m.w.start("D:response")
	m.w.text("D:href", href)
	m.w.text("D:status", "HTTP/1.1 404 Not Found")
	m.w.end("D:response")
	return m
}

// Finish closes the root element and returns the document bytes.
func (m *Multistatus) Finish() []byte {
	m.w.end("D:multistatus")
	return m.w.bytes()
}

func (m *Multistatus) writePropstat(status string, body func()) {
	m.w.start("D:propstat")
	m.w.start("D:prop")
	body()
	m.w.end("D:prop")
	m.w.text("D:status", status)
	m.w.end("D:propstat")
}

// elementForProp maps a requested property local-name back to a prefixed
// element for the 404 propstat.
func elementForProp(local string) string {
	switch local {
	case propAddressbookHomeSet, propAddressbookDescription,
		propSupportedAddressData, propAddressData:
		return "card:" + local
	case propResourceType, propDisplayName, propGetContentType, propGetETag,
		propGetContentLength, propGetLastModified, propCurrentUserPrincipal:
		return "D:" + local
	default:
		// Unknown property: echo the bare local name.
		return local
	}
}

// ── Low-level writer ───────────────────────────────────────────────────────

// xmlWriter is a thin tag writer over a byte buffer. Tag names are trusted
// constants; character data is escaped.
type xmlWriter struct {
	buf bytes.Buffer
}

type attr struct {
	name  string
	value string
}

func newXMLWriter() *xmlWriter { return &xmlWriter{} }

func (w *xmlWriter) raw(s string) { w.buf.WriteString(s) }

func (w *xmlWriter) start(tag string) {
	w.buf.WriteByte('<')
	w.buf.WriteString(tag)
	w.buf.WriteByte('>')
}

func (w *xmlWriter) startAttrs(tag string, attrs ...attr) {
	w.buf.WriteByte('<')
	w.buf.WriteString(tag)
	w.writeAttrs(attrs)
	w.buf.WriteByte('>')
}

func (w *xmlWriter) end(tag string) {
	w.buf.WriteString("</")
	w.buf.WriteString(tag)
	w.buf.WriteByte('>')
}

func (w *xmlWriter) empty(tag string) {
	w.buf.WriteByte('<')
	w.buf.WriteString(tag)
	w.buf.WriteString("/>")
}

func (w *xmlWriter) emptyAttrs(tag string, attrs ...attr) {
	w.buf.WriteByte('<')
	w.buf.WriteString(tag)
	w.writeAttrs(attrs)
	w.buf.WriteString("/>")
}

func (w *xmlWriter) text(tag, value string) {
	w.start(tag)
	xml.EscapeText(&w.buf, []byte(value)) //nolint:errcheck // bytes.Buffer cannot fail
	w.end(tag)
}

func (w *xmlWriter) writeAttrs(attrs []attr) {
	for _, a := range attrs {
		w.buf.WriteByte(' ')
		w.buf.WriteString(a.name)
		w.buf.WriteString(`="`)
		xml.EscapeText(&w.buf, []byte(a.value)) //nolint:errcheck
		w.buf.WriteByte('"')
	}
}

func (w *xmlWriter) bytes() []byte { return w.buf.Bytes() }
