package czimd

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrEmptyDocument is returned when a document has no root element.
var ErrEmptyDocument = errors.New("czimd: document has no root element")

// Node is one element of a parsed metadata document.
//
// All navigation methods are safe on a nil *Node and report absence, so a
// path through optional sub-trees can be written without intermediate checks:
//
//	doc.Image().Path("Dimensions", "Channels").All("Channel")
type Node struct {
	Name     string
	Text     string
	Attrs    map[string]string
	Children []*Node
}

// Child returns the first child element with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Path follows a chain of child element names and returns the final node,
// or nil if any step is missing.
func (n *Node) Path(names ...string) *Node {
	for _, name := range names {
		n = n.Child(name)
		if n == nil {
			return nil
		}
	}
	return n
}

// All returns every child element with the given name in document order.
// An absent field yields an empty slice and a single element a one-element
// slice, so callers iterate all three cardinalities the same way.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether a child element or attribute with the given name exists.
func (n *Node) Has(name string) bool {
	if n == nil {
		return false
	}
	if n.Child(name) != nil {
		return true
	}
	_, ok := n.Attrs[name]
	return ok
}

// IsLeaf reports whether the node carries no attributes and no child elements.
func (n *Node) IsLeaf() bool {
	return n != nil && len(n.Children) == 0 && len(n.Attrs) == 0
}

// Field returns a scalar field of the node. A child element takes precedence
// over an attribute of the same name. Empty elements and container elements
// are reported as absent.
func (n *Node) Field(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	if c := n.Child(name); c != nil {
		if len(c.Children) > 0 || c.Text == "" {
			return "", false
		}
		return c.Text, true
	}
	v, ok := n.Attrs[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// IntField returns a field parsed as a base-10 integer.
// Absent and unparsable values both report false.
func (n *Node) IntField(name string) (int, bool) {
	s, ok := n.Field(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return v, true
}

// FloatField returns a field parsed as a finite 64-bit float.
// Absent, unparsable, NaN and infinite values all report false.
func (n *Node) FloatField(name string) (float64, bool) {
	s, ok := n.Field(name)
	if !ok {
		return 0, false
	}
	return ParseFinite(s)
}

// ParseFinite parses s as a float64, rejecting NaN and infinities.
func ParseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Parse reads an XML document into a Node tree and returns the root element.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)

	var (
		root  *Node
		stack []*Node
		text  []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("czimd: parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
						continue
					}
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
			text = append(text, &strings.Builder{})

		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("czimd: parse xml: unexpected end element %q", t.Name.Local)
			}
			n := stack[len(stack)-1]
			n.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}

	if root == nil {
		return nil, ErrEmptyDocument
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("czimd: parse xml: unclosed element %q", stack[len(stack)-1].Name)
	}
	return root, nil
}
