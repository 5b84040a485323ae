package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/text/encoding/htmlindex"
)

// node is a minimal XML tree. Element names keep their prefix as written
// ("atom:link"), so lookups match tag names, not local names. Text nodes
// have an empty name.
type node struct {
	name      string
	text      string
	attrs     []xml.Attr
	children  []*node
	defaultNS string
}

// parseDocument reads the whole input into a tree and returns its root element.
// The tokenizer is strict: mismatched end tags, bare ampersands, unquoted
// attributes and undeclared entities are syntax errors.
func parseDocument(r io.Reader) (*node, error) {
	p := xpp.NewXMLPullParser(r, true, charsetReader)

	var root *node
	var stack []*node

	for {
		event, err := p.Next()
		if err != nil {
			return nil, err
		}

		switch event {
		case xpp.StartTag:
			inherited := ""
			if len(stack) > 0 {
				inherited = stack[len(stack)-1].defaultNS
			}
			defaultNS := defaultNamespace(p.Attrs, inherited)
			el := &node{
				name:      qualifiedName(p, defaultNS),
				attrs:     append([]xml.Attr(nil), p.Attrs...),
				defaultNS: defaultNS,
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("unexpected second root element <%s>", el.name)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)

		case xpp.EndTag:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end tag </%s>", p.Name)
			}
			stack = stack[:len(stack)-1]

		case xpp.Text:
			if len(stack) == 0 {
				if strings.TrimSpace(p.Text) != "" {
					return nil, errors.New("character data outside the root element")
				}
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, &node{text: p.Text})

		case xpp.EndDocument:
			if root == nil {
				return nil, errors.New("document has no root element")
			}
			if len(stack) > 0 {
				return nil, fmt.Errorf("element <%s> is not closed", stack[len(stack)-1].name)
			}
			return root, nil
		}
	}
}

// qualifiedName restores the prefix of the current start tag. The decoder
// resolves prefixes to namespace URLs; goxpp maps them back in Spaces.
// Undeclared prefixes are left unresolved by the decoder. An element in the
// default namespace is unprefixed even if the same URL is also bound to a
// prefix.
func qualifiedName(p *xpp.XMLPullParser, defaultNS string) string {
	if p.Space == "" || p.Space == defaultNS {
		return p.Name
	}
	prefix, ok := p.Spaces[p.Space]
	if !ok {
		prefix = p.Space
	}
	if prefix == "" {
		return p.Name
	}
	return prefix + ":" + p.Name
}

func defaultNamespace(attrs []xml.Attr, inherited string) string {
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			return strings.TrimSpace(a.Value)
		}
	}
	return inherited
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// first returns the first descendant element named tag, in document order.
func (n *node) first(tag string) *node {
	for _, c := range n.children {
		if c.name == "" {
			continue
		}
		if c.name == tag {
			return c
		}
		if found := c.first(tag); found != nil {
			return found
		}
	}
	return nil
}

// all returns every descendant element named tag, in document order.
func (n *node) all(tag string) []*node {
	var found []*node
	n.walk(func(el *node) {
		if el.name == tag {
			found = append(found, el)
		}
	})
	return found
}

func (n *node) walk(fn func(el *node)) {
	for _, c := range n.children {
		if c.name == "" {
			continue
		}
		fn(c)
		c.walk(fn)
	}
}

// textContent concatenates all descendant text.
func (n *node) textContent() string {
	if n.name == "" {
		return n.text
	}
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n *node) writeText(sb *strings.Builder) {
	for _, c := range n.children {
		if c.name == "" {
			sb.WriteString(c.text)
			continue
		}
		c.writeText(sb)
	}
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// textOf returns the trimmed text of the first descendant named tag, or "".
func textOf(scope *node, tag string) string {
	el := scope.first(tag)
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.textContent())
}

// atomLink returns the href of the first rel="alternate" link, falling back
// to the first link of any kind.
func atomLink(scope *node) string {
	links := scope.all("link")
	if len(links) == 0 {
		return ""
	}

	chosen := links[0]
	for _, link := range links {
		if rel, ok := link.attr("rel"); ok && rel == "alternate" {
			chosen = link
			break
		}
	}

	href, _ := chosen.attr("href")
	return href
}
