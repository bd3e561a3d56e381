// Package svgdoc wraps an SVG element tree parsed by golang.org/x/net/html.
//
// Slides are usually read out of an HTML page, where the parser stores the
// SVG as foreign content: element names keep their SVG casing and prefixed
// attributes such as xlink:href are split into Namespace "xlink" and Key
// "href". The helpers here address attributes by their qualified name so
// callers never deal with that split.
package svgdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	SVGNamespace   = "http://www.w3.org/2000/svg"
	XLinkNamespace = "http://www.w3.org/1999/xlink"
	DataURIPrefix  = "data:"
)

var ErrNoSVG = errors.New("svgdoc: no <svg> element")

// Document is one slide's vector content rooted at an <svg> element.
type Document struct {
	root *html.Node
	// BaseURL resolves relative resource references. May be empty.
	BaseURL string
}

// New wraps an existing <svg> node. The node is used as is, not copied.
func New(root *html.Node, baseURL string) (*Document, error) {
	if root == nil || root.Type != html.ElementNode || root.Data != "svg" {
		return nil, ErrNoSVG
	}
	return &Document{root: root, BaseURL: baseURL}, nil
}

// Parse reads markup (a standalone SVG file or an HTML page) and returns the
// first <svg> element it contains.
func Parse(r io.Reader, baseURL string) (*Document, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("svgdoc: parse: %w", err)
	}
	svg := goquery.NewDocumentFromNode(node).Find("svg").First()
	if svg.Length() == 0 {
		return nil, ErrNoSVG
	}
	return New(svg.Get(0), baseURL)
}

// ParseString is Parse over an in-memory string.
func ParseString(s, baseURL string) (*Document, error) {
	return Parse(strings.NewReader(s), baseURL)
}

func (d *Document) Root() *html.Node {
	return d.root
}

// Selection exposes the document to goquery selectors.
func (d *Document) Selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Selection
}

// Images returns every <image> element in document order.
func (d *Document) Images() []*html.Node {
	return d.Selection().Find("image").Nodes
}

// Clone returns a deep copy detached from the original tree.
func (d *Document) Clone() *Document {
	return &Document{root: CloneNode(d.root, nil), BaseURL: d.BaseURL}
}

// EnsureNamespaces adds the xmlns and xmlns:xlink declarations a standalone
// SVG needs. Declarations already present are left untouched.
func (d *Document) EnsureNamespaces() {
	if _, ok := Attr(d.root, "xmlns"); !ok {
		SetAttr(d.root, "xmlns", SVGNamespace)
	}
	if _, ok := Attr(d.root, "xmlns:xlink"); !ok {
		SetAttr(d.root, "xmlns:xlink", XLinkNamespace)
	}
}

// Render writes the XML text form of the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String is the rendered markup, or "" when rendering fails. Use Render
// where the error matters.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// CloneNode deep-copies n. When keep is non-nil, any descendant for which it
// returns false is left out together with its subtree.
func CloneNode(n *html.Node, keep func(*html.Node) bool) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if keep != nil && !keep(ch) {
			continue
		}
		c.AppendChild(CloneNode(ch, keep))
	}
	return c
}

// IsDataURI reports whether a reference is already self-contained.
func IsDataURI(ref string) bool {
	return len(ref) >= len(DataURIPrefix) && strings.EqualFold(ref[:len(DataURIPrefix)], DataURIPrefix)
}

func splitName(name string) (ns, key string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func matches(a html.Attribute, ns, key string) bool {
	if a.Namespace == ns && a.Key == key {
		return true
	}
	// Nodes built outside the parser may carry the prefix inside the key.
	return ns != "" && a.Namespace == "" && a.Key == ns+":"+key
}

// Attr returns the value of the attribute with the qualified name, for
// example "href", "xlink:href" or "xmlns:xlink".
func Attr(n *html.Node, name string) (string, bool) {
	ns, key := splitName(name)
	for _, a := range n.Attr {
		if matches(a, ns, key) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr replaces the attribute value, or appends it when missing.
func SetAttr(n *html.Node, name, val string) {
	ns, key := splitName(name)
	for i, a := range n.Attr {
		if matches(a, ns, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Namespace: ns, Key: key, Val: val})
}

// RemoveAttr drops every attribute with the qualified name.
func RemoveAttr(n *html.Node, name string) {
	ns, key := splitName(name)
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !matches(a, ns, key) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// Href returns the node's resource reference and the attribute it came from.
// href wins over the legacy xlink:href.
func Href(n *html.Node) (ref, attr string) {
	if v, ok := Attr(n, "href"); ok && v != "" {
		return v, "href"
	}
	if v, ok := Attr(n, "xlink:href"); ok && v != "" {
		return v, "xlink:href"
	}
	return "", ""
}

// Box is an SVG user-space rectangle.
type Box struct {
	X, Y, W, H float64
}

// Empty reports a box with no area. Such a slide renders nothing.
func (b Box) Empty() bool {
	return b.W == 0 || b.H == 0
}

// ViewBox returns the document's user-space extent. It reads viewBox first,
// then width/height, and reports ok=false when neither is usable. A viewBox
// that does not parse or has a negative size is ignored. A zero-size viewBox
// is returned as is; callers check Empty.
func (d *Document) ViewBox() (Box, bool) {
	if raw, ok := Attr(d.root, "viewBox"); ok && strings.TrimSpace(raw) != "" {
		nums, err := ParseNumbers(raw)
		if err == nil && len(nums) == 4 && nums[2] >= 0 && nums[3] >= 0 {
			return Box{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}, true
		}
	}

	w, wok := Length(d.root, "width")
	h, hok := Length(d.root, "height")
	if wok && hok && w > 0 && h > 0 {
		return Box{W: w, H: h}, true
	}
	return Box{}, false
}

// Length parses a numeric attribute, ignoring a trailing px/pt unit.
// Percentages are not lengths here and report ok=false.
func Length(n *html.Node, name string) (float64, bool) {
	raw, ok := Attr(n, name)
	if !ok {
		return 0, false
	}
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "%") {
		return 0, false
	}
	raw = strings.TrimSuffix(strings.TrimSuffix(raw, "px"), "pt")
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseNumbers splits a whitespace and/or comma separated number list.
func ParseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("svgdoc: bad number %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}
