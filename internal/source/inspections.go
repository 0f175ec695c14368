package source

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/couchcryptid/region-health-etl/internal/domain"
)

const establishmentElement = "ESTABLISHMENT"

var prologEncodingRe = regexp.MustCompile(`<\?xml[^>]*encoding=["']([A-Za-z0-9._-]+)["']`)

// InspectionStats counts establishments seen while reading the registry.
type InspectionStats struct {
	Establishments int
	Skipped        int // missing or unparsable coordinates
}

// node is a generic element tree; the registry nests SEVERITY at varying
// depths under each establishment.
type node struct {
	XMLName  xml.Name
	Text     string `xml:",chardata"`
	Children []node `xml:",any"`
}

// ReadInspections decodes every ESTABLISHMENT element of the registry in
// document order. The input is decoded from the charset declared in its
// prolog, ill-formed bytes are replaced, and accents are folded away.
func ReadInspections(ctx context.Context, r io.Reader) ([]domain.InspectionEntry, InspectionStats, error) {
	var stats InspectionStats

	input, err := normalizedReader(r)
	if err != nil {
		return nil, stats, err
	}
	decoder := xml.NewDecoder(input)
	// The input was already converted to UTF-8 above.
	decoder.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var entries []domain.InspectionEntry
	for {
		if ctx.Err() != nil {
			return nil, stats, eris.Wrap(ctx.Err(), "xml: context cancelled")
		}

		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return entries, stats, nil
		}
		if err != nil {
			return nil, stats, eris.Wrap(err, "xml: read token")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != establishmentElement {
			continue
		}

		var est node
		if err := decoder.DecodeElement(&est, &se); err != nil {
			return nil, stats, eris.Wrap(err, "xml: decode element")
		}
		stats.Establishments++

		entry, ok := toEntry(est)
		if !ok {
			stats.Skipped++
			continue
		}
		entries = append(entries, entry)
	}
}

func toEntry(est node) (domain.InspectionEntry, bool) {
	lat, latOK := parseCoordinate(est.first("LATITUDE"))
	lon, lonOK := parseCoordinate(est.first("LONGITUDE"))
	if !latOK || !lonOK {
		return domain.InspectionEntry{}, false
	}
	entry := domain.InspectionEntry{
		Name: strings.TrimSpace(est.first("NAME")),
		Lat:  lat,
		Lon:  lon,
	}
	est.walk(func(n node) {
		if n.XMLName.Local == "SEVERITY" {
			entry.Severities = append(entry.Severities, domain.ParseSeverity(n.Text))
		}
	})
	return entry, true
}

func parseCoordinate(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// walk visits descendants in document order, not including n itself.
func (n node) walk(fn func(node)) {
	for _, c := range n.Children {
		fn(c)
		c.walk(fn)
	}
}

// first returns the text of the first descendant named name.
func (n node) first(name string) string {
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c.Text
		}
		if s := c.first(name); s != "" {
			return s
		}
	}
	return ""
}

// normalizedReader converts r to UTF-8 using the charset named in its XML
// prolog and strips combining marks, so "Café" reads as "Cafe".
func normalizedReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(512) // a short document is not an error here

	var src io.Reader = br
	if m := prologEncodingRe.FindSubmatch(head); m != nil {
		enc, err := htmlindex.Get(string(m[1]))
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", m[1])
		}
		src = enc.NewDecoder().Reader(br)
	}

	fold := transform.Chain(
		runes.ReplaceIllFormed(),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	return transform.NewReader(src, fold), nil
}
