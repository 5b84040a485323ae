package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/stellar-reader/app/database"
)

const opmlTitle = "Stellar Reader Subscriptions"

// OPMLGenerator renders stored subscriptions as an OPML 2.0 document.
type OPMLGenerator struct{}

func NewOPMLGenerator() *OPMLGenerator {
	return &OPMLGenerator{}
}

// Run writes one outline per category holding its feeds, followed by feeds
// without a category at the top level. A feed assigned to several categories
// appears under each of them.
func (g *OPMLGenerator) Run(feeds []database.Feed, categories []database.Category) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<opml version="2.0">`)
	buf.WriteString("\n  <head>\n")
	g.writeElement(&buf, "title", opmlTitle, 4)
	g.writeElement(&buf, "dateCreated", time.Now().UTC().Format(time.RFC1123Z), 4)
	buf.WriteString("  </head>\n  <body>\n")

	byCategory := make(map[string][]database.Feed)
	var uncategorized []database.Feed
	for _, f := range feeds {
		if len(f.CategoryIDs) == 0 {
			uncategorized = append(uncategorized, f)
			continue
		}
		for _, categoryID := range f.CategoryIDs {
			byCategory[categoryID] = append(byCategory[categoryID], f)
		}
	}

	for _, category := range categories {
		members := byCategory[category.ID]
		if len(members) == 0 {
			buf.WriteString(fmt.Sprintf("    <outline text=\"%s\" title=\"%s\" />\n",
				html.EscapeString(category.Name), html.EscapeString(category.Name)))
			continue
		}

		buf.WriteString(fmt.Sprintf("    <outline text=\"%s\" title=\"%s\">\n",
			html.EscapeString(category.Name), html.EscapeString(category.Name)))
		for _, f := range members {
			g.writeFeedOutline(&buf, f, 6)
		}
		buf.WriteString("    </outline>\n")
	}

	for _, f := range uncategorized {
		g.writeFeedOutline(&buf, f, 4)
	}

	buf.WriteString("  </body>\n</opml>\n")

	return buf.String(), nil
}

func (g *OPMLGenerator) writeFeedOutline(buf *bytes.Buffer, f database.Feed, indent int) {
	title := f.Title
	if title == "" {
		title = f.URL
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString(fmt.Sprintf("<outline type=\"rss\" text=\"%s\" title=\"%s\" xmlUrl=\"%s\"",
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(f.URL)))
	if f.Description != "" {
		buf.WriteString(fmt.Sprintf(" description=\"%s\"", html.EscapeString(f.Description)))
	}
	buf.WriteString(" />\n")
}

func (g *OPMLGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
