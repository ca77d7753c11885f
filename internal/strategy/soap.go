package strategy

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/net/html/charset"

	"catchy/internal/cache"
	"catchy/internal/exchange"
)

// SoapName is the registry name of the SOAP strategy
const SoapName = "soap"

// SoapEnvelopeNamespace is the SOAP 1.1 envelope namespace
const SoapEnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"

// SoapActionHeader marks a request as SOAP
const SoapActionHeader = "SOAPAction"

var (
	// ErrMalformedEnvelope is returned when the request body is not well-formed XML
	ErrMalformedEnvelope = errors.New("soap: malformed envelope")

	// ErrBodyNotFound is returned when the envelope has no Body element
	ErrBodyNotFound = errors.New("soap: envelope body not found")
)

// SoapStrategy caches by the content of the SOAP Body element.
// The envelope header is ignored, so requests that differ only in
// header values such as a request id share one entry.
type SoapStrategy struct {
	base
}

// NewSoapStrategy creates a SOAP strategy for the given hosts
func NewSoapStrategy(hosts []string, store cache.Store) *SoapStrategy {
	s := &SoapStrategy{}
	s.base = newBase(SoapName, hosts, store, soapKey)
	return s
}

// CanHandle matches on host and the presence of a SOAPAction header
func (s *SoapStrategy) CanHandle(r *http.Request) bool {
	if !s.handlesHost(r) {
		return false
	}
	_, ok := r.Header[http.CanonicalHeaderKey(SoapActionHeader)]
	return ok
}

func soapKey(ex *exchange.Exchange) ([]byte, error) {
	body, err := ex.RequestBody()
	if err != nil {
		return nil, err
	}
	return SoapBodyContent(body)
}

// SoapBodyContent returns the canonical form of the first envelope Body's content.
// Element and attribute names are written with their resolved namespace URI
// instead of a prefix, attributes are sorted and namespace declarations,
// comments and processing instructions are dropped. Non-UTF-8 documents are
// decoded according to their XML declaration.
func SoapBodyContent(envelope []byte) ([]byte, error) {
	d := xml.NewDecoder(bytes.NewReader(envelope))
	d.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, ErrBodyNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Space != SoapEnvelopeNamespace || start.Name.Local != "Body" {
			continue
		}

		var buf bytes.Buffer
		depth := 0
		for {
			tok, err := d.Token()
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
			}
			switch t := tok.(type) {
			case xml.StartElement:
				depth++
				writeStart(&buf, t)
			case xml.EndElement:
				if depth == 0 {
					return bytes.TrimSpace(buf.Bytes()), nil
				}
				depth--
				buf.WriteString("</")
				buf.WriteString(qualifiedName(t.Name))
				buf.WriteByte('>')
			case xml.CharData:
				textEscaper.WriteString(&buf, string(t))
			}
		}
	}
}

func writeStart(buf *bytes.Buffer, start xml.StartElement) {
	buf.WriteByte('<')
	buf.WriteString(qualifiedName(start.Name))

	attrs := make([]xml.Attr, 0, len(start.Attr))
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return qualifiedName(attrs[i].Name) < qualifiedName(attrs[j].Name)
	})

	for _, a := range attrs {
		buf.WriteByte(' ')
		buf.WriteString(qualifiedName(a.Name))
		buf.WriteString(`="`)
		attrEscaper.WriteString(buf, a.Value)
		buf.WriteByte('"')
	}
	buf.WriteByte('>')
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// qualifiedName renders a resolved name as {namespace}local
func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

var _ Strategy = (*SoapStrategy)(nil)
