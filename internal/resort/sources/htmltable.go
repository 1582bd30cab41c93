package sources

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/i474232898/snow-status-aggregation/internal/common"
	"github.com/i474232898/snow-status-aggregation/internal/resort"
	"github.com/i474232898/snow-status-aggregation/internal/transport"
)

// HTMLTableAdapter scrapes server-rendered status tables. A table counts as
// a lift or slope table when its class, id or data-type says so; the first
// cell of each row is the name and the last carries the status.
type HTMLTableAdapter struct {
	http *transport.Client
}

func (a *HTMLTableAdapter) Name() string { return VendorHTMLTable }

func (a *HTMLTableAdapter) DefaultStatuses() map[string]resort.FacilityStatus {
	return htmlStatuses()
}

func (a *HTMLTableAdapter) FetchRaw(ctx context.Context, def resort.Definition) (Payload, error) {
	body, err := a.http.Get(ctx, def.URL, requestHeader(def))
	if err != nil {
		return Payload{}, err
	}
	return extractTables(def, body)
}

// htmlStatuses covers the labels German, Italian, French and English resort
// pages use.
func htmlStatuses() map[string]resort.FacilityStatus {
	return map[string]resort.FacilityStatus{
		"open":          resort.FacilityOpen,
		"geöffnet":      resort.FacilityOpen,
		"offen":         resort.FacilityOpen,
		"in betrieb":    resort.FacilityOpen,
		"aperto":        resort.FacilityOpen,
		"ouvert":        resort.FacilityOpen,
		"1":             resort.FacilityOpen,
		"closed":        resort.FacilityClosed,
		"geschlossen":   resort.FacilityClosed,
		"gesperrt":      resort.FacilityClosed,
		"außer betrieb": resort.FacilityClosed,
		"chiuso":        resort.FacilityClosed,
		"fermé":         resort.FacilityClosed,
		"ferme":         resort.FacilityClosed,
		"0":             resort.FacilityClosed,
	}
}

func extractTables(def resort.Definition, body []byte) (Payload, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Payload{}, &resort.ParseError{Source: def.URL, Reason: "parse html", Err: err}
	}

	liftHint := def.Option("liftTable", "")
	slopeHint := def.Option("slopeTable", "")

	var out Payload
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Table {
			return true
		}
		label := strings.Join([]string{attr(n, "class"), attr(n, "id"), attr(n, "data-type")}, " ")

		kind := classifyKind(label)
		switch {
		case liftHint != "" && common.HasAny(label, liftHint):
			kind = resort.KindLift
		case slopeHint != "" && common.HasAny(label, slopeHint):
			kind = resort.KindSlope
		}
		if kind == resort.KindOther {
			return true
		}

		for _, row := range rows(n) {
			// Names may sit in <th scope="row">; a row whose last cell is a
			// <th> has no status and is a header.
			cells := children(row, atom.Th, atom.Td)
			if len(cells) < 2 || cells[len(cells)-1].DataAtom != atom.Td {
				continue
			}
			name := text(cells[0])
			if name == "" {
				continue
			}
			out.Facilities = append(out.Facilities, RawFacility{
				Kind: kind,
				Name: name,
				Code: cellStatus(cells[len(cells)-1]),
			})
		}
		// nested tables belong to this one
		return false
	})
	return out, nil
}

// cellStatus prefers machine-readable markers over visible text: a
// data-status attribute, a status-* class, then an icon's alt/title.
func cellStatus(cell *html.Node) string {
	var code string
	walk(cell, func(n *html.Node) bool {
		if code != "" || n.Type != html.ElementNode {
			return code == ""
		}
		if v := attr(n, "data-status"); v != "" {
			code = v
			return false
		}
		for _, cls := range strings.Fields(attr(n, "class")) {
			if strings.HasPrefix(cls, "status-") {
				code = strings.TrimPrefix(cls, "status-")
				return false
			}
		}
		if n.DataAtom == atom.Img {
			code = common.FirstNonEmpty(attr(n, "alt"), attr(n, "title"))
			return code == ""
		}
		return true
	})
	if code != "" {
		return code
	}
	return text(cell)
}

func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func rows(table *html.Node) []*html.Node {
	var out []*html.Node
	walk(table, func(n *html.Node) bool {
		if n != table && n.Type == html.ElementNode && n.DataAtom == atom.Table {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

func children(n *html.Node, atoms ...atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for _, a := range atoms {
			if c.DataAtom == a {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
