package feed

import (
	"bytes"
	"cmp"
	"log/slog"
)

// dialect extracts a Feed from a document whose root element it recognises.
type dialect interface {
	name() string
	extract(root *node) (*Feed, error)
}

var dialects = map[string]dialect{
	"rss":  rssDialect{},
	"feed": atomDialect{},
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFeed normalizes RSS 2.0 or Atom text into a Feed.
func ParseFeed(xmlText string) (*Feed, error) {
	return NewParser().Run([]byte(xmlText))
}

func (p *Parser) Run(data []byte) (*Feed, error) {
	root, err := parseDocument(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Kind: ErrMalformedXML, Err: err}
	}

	d, ok := dialects[root.name]
	if !ok {
		return nil, &ParseError{Kind: ErrNotFeed}
	}

	parsed, err := d.extract(root)
	if err != nil {
		return nil, err
	}

	slog.Debug("Feed parsed", "dialect", d.name(), "title", parsed.Title, "items", len(parsed.Items))
	return parsed, nil
}

type rssDialect struct{}

func (rssDialect) name() string { return "rss" }

func (rssDialect) extract(root *node) (*Feed, error) {
	channel := root.first("channel")
	if channel == nil {
		return nil, &ParseError{Kind: ErrInvalidRSS}
	}

	elements := channel.all("item")
	items := make([]Item, 0, len(elements))
	for _, el := range elements {
		items = append(items, Item{
			Title:   textOf(el, "title"),
			Link:    textOf(el, "link"),
			Content: textOf(el, "description"),
			PubDate: textOf(el, "pubDate"),
		})
	}

	return &Feed{
		Title:       textOf(channel, "title"),
		Link:        textOf(channel, "link"),
		Description: textOf(channel, "description"),
		Items:       items,
	}, nil
}

type atomDialect struct{}

func (atomDialect) name() string { return "atom" }

func (atomDialect) extract(root *node) (*Feed, error) {
	elements := root.all("entry")
	items := make([]Item, 0, len(elements))
	for _, el := range elements {
		items = append(items, Item{
			Title:   textOf(el, "title"),
			Link:    atomLink(el),
			Content: cmp.Or(textOf(el, "content"), textOf(el, "summary")),
			PubDate: cmp.Or(textOf(el, "updated"), textOf(el, "published")),
		})
	}

	return &Feed{
		Title:       textOf(root, "title"),
		Link:        atomLink(root),
		Description: textOf(root, "subtitle"),
		Items:       items,
	}, nil
}
