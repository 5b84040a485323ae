package feed

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
)

const sampleRSS = `
      <?xml version="1.0" encoding="UTF-8" ?>
      <rss version="2.0">
        <channel>
          <title>サンプルRSSフィード</title>
          <link>https://example.com/feed</link>
          <description>これはサンプルのRSSフィードです</description>
          <item>
            <title>記事タイトル1</title>
            <link>https://example.com/article1</link>
            <description>記事の内容1</description>
            <pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
          </item>
          <item>
            <title>記事タイトル2</title>
            <link>https://example.com/article2</link>
            <description>記事の内容2</description>
            <pubDate>Mon, 02 Jan 2024 00:00:00 GMT</pubDate>
          </item>
        </channel>
      </rss>
    `

const sampleAtom = `
      <?xml version="1.0" encoding="UTF-8"?>
      <feed xmlns="http://www.w3.org/2005/Atom">
        <title>サンプルAtomフィード</title>
        <link href="https://example.com/feed"/>
        <subtitle>これはサンプルのAtomフィードです</subtitle>
        <entry>
          <title>記事タイトル1</title>
          <link href="https://example.com/article1"/>
          <content>記事の内容1</content>
          <updated>2024-01-01T00:00:00Z</updated>
        </entry>
        <entry>
          <title>記事タイトル2</title>
          <link href="https://example.com/article2"/>
          <content>記事の内容2</content>
          <updated>2024-01-02T00:00:00Z</updated>
        </entry>
      </feed>
    `

func TestParseRSS2(t *testing.T) {
	expected := &Feed{
		Title:       "サンプルRSSフィード",
		Link:        "https://example.com/feed",
		Description: "これはサンプルのRSSフィードです",
		Items: []Item{
			{
				Title:   "記事タイトル1",
				Link:    "https://example.com/article1",
				Content: "記事の内容1",
				PubDate: "Mon, 01 Jan 2024 00:00:00 GMT",
			},
			{
				Title:   "記事タイトル2",
				Link:    "https://example.com/article2",
				Content: "記事の内容2",
				PubDate: "Mon, 02 Jan 2024 00:00:00 GMT",
			},
		},
	}

	result, err := ParseFeed(sampleRSS)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %+v, got %+v", expected, result)
	}
}

func TestParseAtom(t *testing.T) {
	expected := &Feed{
		Title:       "サンプルAtomフィード",
		Link:        "https://example.com/feed",
		Description: "これはサンプルのAtomフィードです",
		Items: []Item{
			{
				Title:   "記事タイトル1",
				Link:    "https://example.com/article1",
				Content: "記事の内容1",
				PubDate: "2024-01-01T00:00:00Z",
			},
			{
				Title:   "記事タイトル2",
				Link:    "https://example.com/article2",
				Content: "記事の内容2",
				PubDate: "2024-01-02T00:00:00Z",
			},
		},
	}

	result, err := ParseFeed(sampleAtom)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !reflect.DeepEqual(result, expected) {
		t.Errorf("Expected %+v, got %+v", expected, result)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind error
	}{
		{"wrong root element", `<invalid>XML</invalid>`, ErrNotFeed},
		{"plain text", `invalid xml`, ErrMalformedXML},
		{"empty input", ``, ErrMalformedXML},
		{"unclosed elements", `<rss><channel><title>Broken</title>`, ErrMalformedXML},
		{"mismatched end tag", `<rss><channel><item><title>x</item></channel></rss>`, ErrMalformedXML},
		{"missing close before parent end", `<rss><channel><title>A</title></rss>`, ErrMalformedXML},
		{"bare ampersand", `<rss><channel><title>A & B</title></channel></rss>`, ErrMalformedXML},
		{"unquoted attribute", `<feed><title>T</title><link href=foo/></feed>`, ErrMalformedXML},
		{"undeclared entity", `<feed><title>&nbsp;x</title></feed>`, ErrMalformedXML},
		{"trailing text", `<rss><channel><title>A</title></channel></rss>trailing`, ErrMalformedXML},
		{"rss without channel", `<rss version="2.0"><item><title>x</title></item></rss>`, ErrInvalidRSS},
		{"html document", `<html><body><p>hi</p></body></html>`, ErrNotFeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseFeed(tt.data)
			if err == nil {
				t.Fatalf("Expected error, got feed: %+v", result)
			}
			if result != nil {
				t.Errorf("Expected no partial feed on error, got: %+v", result)
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("Expected error kind %v, got: %v", tt.kind, err)
			}

			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("Expected *ParseError, got %T", err)
			}
		})
	}
}

func TestParseMissingOptionalFields(t *testing.T) {
	rssData := `<rss version="2.0"><channel><title>Only Title</title><item><title>A</title></item></channel></rss>`

	result, err := ParseFeed(rssData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Link != "" || result.Description != "" {
		t.Errorf("Expected empty link and description, got %q and %q", result.Link, result.Description)
	}
	if len(result.Items) != 1 {
		t.Fatalf("Expected 1 item, got: %d", len(result.Items))
	}
	item := result.Items[0]
	if item.Link != "" || item.Content != "" || item.PubDate != "" {
		t.Errorf("Expected empty optional item fields, got %+v", item)
	}

	atomData := `<feed xmlns="http://www.w3.org/2005/Atom"><title>T</title></feed>`
	result, err = ParseFeed(atomData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Description != "" || result.Link != "" {
		t.Errorf("Expected empty description and link, got %q and %q", result.Description, result.Link)
	}
}

func TestParseNoItems(t *testing.T) {
	for name, data := range map[string]string{
		"rss":  `<rss><channel><title>Empty</title></channel></rss>`,
		"atom": `<feed><title>Empty</title></feed>`,
	} {
		t.Run(name, func(t *testing.T) {
			result, err := ParseFeed(data)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if result.Items == nil {
				t.Error("Expected empty, non-nil items")
			}
			if len(result.Items) != 0 {
				t.Errorf("Expected 0 items, got: %d", len(result.Items))
			}
		})
	}
}

func TestParseItemCountAndOrder(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<rss version="2.0"><channel><title>Many</title>`)
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, `<item><title>Item %d</title><link>https://example.com/%d</link></item>`, i, i)
	}
	// Identical items are kept: no de-duplication.
	sb.WriteString(`<item><title>Item 0</title><link>https://example.com/0</link></item>`)
	sb.WriteString(`</channel></rss>`)

	result, err := ParseFeed(sb.String())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(result.Items) != 26 {
		t.Fatalf("Expected 26 items, got: %d", len(result.Items))
	}
	for i := 0; i < 25; i++ {
		expected := fmt.Sprintf("Item %d", i)
		if result.Items[i].Title != expected {
			t.Errorf("Expected item %d title %q, got %q", i, expected, result.Items[i].Title)
		}
	}
	if result.Items[25].Title != "Item 0" {
		t.Errorf("Expected duplicate item to be kept, got %q", result.Items[25].Title)
	}
}

func TestParseAtomLinkResolution(t *testing.T) {
	atomData := `<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Links</title>
  <link rel="self" href="https://example.com/atom.xml"/>
  <link rel="alternate" href="https://example.com/"/>
  <entry>
    <title>Plain first</title>
    <link href="https://example.com/plain"/>
    <link rel="alternate" href="https://example.com/alternate"/>
  </entry>
  <entry>
    <title>No alternate</title>
    <link rel="enclosure" href="https://example.com/audio.mp3"/>
    <link rel="related" href="https://example.com/related"/>
  </entry>
  <entry>
    <title>No link</title>
  </entry>
  <entry>
    <title>Link without href</title>
    <link rel="alternate"/>
  </entry>
</feed>`

	result, err := ParseFeed(atomData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Link != "https://example.com/" {
		t.Errorf("Expected feed link 'https://example.com/', got: %s", result.Link)
	}

	expected := []string{
		"https://example.com/alternate",
		"https://example.com/audio.mp3",
		"",
		"",
	}
	for i, link := range expected {
		if result.Items[i].Link != link {
			t.Errorf("Expected entry %d link %q, got %q", i, link, result.Items[i].Link)
		}
	}
}

func TestParseAtomFallbacks(t *testing.T) {
	atomData := `<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Fallbacks</title>
  <entry>
    <title>Summary only</title>
    <summary>Just a summary</summary>
    <published>2024-03-01T00:00:00Z</published>
  </entry>
  <entry>
    <title>Both</title>
    <summary>Summary</summary>
    <content type="html">Full content</content>
    <published>2024-03-01T00:00:00Z</published>
    <updated>2024-03-02T00:00:00Z</updated>
  </entry>
  <entry>
    <title>Empty content</title>
    <content>   </content>
    <summary>Used instead</summary>
  </entry>
  <entry>
    <title>Neither</title>
  </entry>
</feed>`

	result, err := ParseFeed(atomData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	tests := []struct {
		content string
		pubDate string
	}{
		{"Just a summary", "2024-03-01T00:00:00Z"},
		{"Full content", "2024-03-02T00:00:00Z"},
		{"Used instead", ""},
		{"", ""},
	}

	if len(result.Items) != len(tests) {
		t.Fatalf("Expected %d items, got: %d", len(tests), len(result.Items))
	}
	for i, tt := range tests {
		if result.Items[i].Content != tt.content {
			t.Errorf("Expected entry %d content %q, got %q", i, tt.content, result.Items[i].Content)
		}
		if result.Items[i].PubDate != tt.pubDate {
			t.Errorf("Expected entry %d pubDate %q, got %q", i, tt.pubDate, result.Items[i].PubDate)
		}
	}
}

func TestParseTextHandling(t *testing.T) {
	rssData := `<rss version="2.0">
  <channel>
    <title>
       Padded Title
    </title>
    <item>
      <title><![CDATA[CDATA <b>title</b>]]></title>
      <description>&lt;p&gt;Escaped &amp; encoded&lt;/p&gt;</description>
    </item>
    <item>
      <title>   </title>
      <description>Mixed <!-- comment -->text</description>
    </item>
  </channel>
</rss>`

	result, err := ParseFeed(rssData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Title != "Padded Title" {
		t.Errorf("Expected trimmed title 'Padded Title', got: %q", result.Title)
	}
	if result.Items[0].Title != "CDATA <b>title</b>" {
		t.Errorf("Expected CDATA title, got: %q", result.Items[0].Title)
	}
	if result.Items[0].Content != "<p>Escaped & encoded</p>" {
		t.Errorf("Expected decoded description, got: %q", result.Items[0].Content)
	}
	if result.Items[1].Title != "" {
		t.Errorf("Expected whitespace-only title to be empty, got: %q", result.Items[1].Title)
	}
	if result.Items[1].Content != "Mixed text" {
		t.Errorf("Expected 'Mixed text', got: %q", result.Items[1].Content)
	}
}

func TestParseDescendantLookup(t *testing.T) {
	// Lookups match descendants at any depth, in document order.
	rssData := `<rss version="2.0">
  <channel>
    <image>
      <url>https://example.com/logo.png</url>
      <title>Image Title</title>
    </image>
    <title>Channel Title</title>
    <item>
      <source><title>Nested</title></source>
    </item>
  </channel>
</rss>`

	result, err := ParseFeed(rssData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Title != "Image Title" {
		t.Errorf("Expected first descendant title 'Image Title', got: %q", result.Title)
	}
	if result.Items[0].Title != "Nested" {
		t.Errorf("Expected nested title 'Nested', got: %q", result.Items[0].Title)
	}
}

func TestParsePrefixedElements(t *testing.T) {
	// Tag names are matched as written, prefix included.
	rssData := `<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <atom:link href="https://example.com/feed.xml" rel="self"/>
    <title>Channel</title>
    <link>https://example.com</link>
    <item>
      <media:title>Media Title</media:title>
      <title>Item</title>
    </item>
  </channel>
</rss>`

	result, err := ParseFeed(rssData)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Link != "https://example.com" {
		t.Errorf("Expected channel link 'https://example.com', got: %q", result.Link)
	}
	if result.Items[0].Title != "Item" {
		t.Errorf("Expected item title 'Item', got: %q", result.Items[0].Title)
	}

	atomData := `<feed xmlns="http://www.w3.org/2005/Atom" xmlns:atom="http://www.w3.org/2005/Atom"><title>Default</title></feed>`
	result, err = ParseFeed(atomData)
	if err != nil {
		t.Fatalf("Expected default-namespace Atom to parse, got: %v", err)
	}
	if result.Title != "Default" {
		t.Errorf("Expected title 'Default', got: %q", result.Title)
	}

	for _, data := range []string{
		`<atom:feed xmlns:atom="http://www.w3.org/2005/Atom"><atom:title>T</atom:title></atom:feed>`,
		`<x:rss xmlns:x="urn:x"><channel><title>T</title></channel></x:rss>`,
	} {
		result, err := ParseFeed(data)
		if !errors.Is(err, ErrNotFeed) {
			t.Errorf("Expected ErrNotFeed for prefixed root, got: %v", err)
		}
		if result != nil {
			t.Errorf("Expected no feed, got: %+v", result)
		}
	}
}

func TestParseCharset(t *testing.T) {
	data := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<rss version=\"2.0\"><channel><title>Caf\xe9</title></channel></rss>")

	result, err := NewParser().Run(data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Title != "Café" {
		t.Errorf("Expected title 'Café', got: %q", result.Title)
	}
}

func TestParseUnknownCharset(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="x-no-such-charset"?><rss><channel/></rss>`)

	_, err := NewParser().Run(data)
	if !errors.Is(err, ErrMalformedXML) {
		t.Errorf("Expected ErrMalformedXML, got: %v", err)
	}
}

func TestParseIdempotent(t *testing.T) {
	parser := NewParser()

	for _, data := range []string{sampleRSS, sampleAtom} {
		first, err := parser.Run([]byte(data))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		second, err := parser.Run([]byte(data))
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if !reflect.DeepEqual(first, second) {
			t.Errorf("Expected identical results, got %+v and %+v", first, second)
		}
		if first == second {
			t.Error("Expected a fresh Feed value on every call")
		}
	}
}

func TestParseConcurrent(t *testing.T) {
	parser := NewParser()
	expected, err := parser.Run([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := parser.Run([]byte(sampleAtom))
			if err != nil {
				errs <- err
				return
			}
			if !reflect.DeepEqual(result, expected) {
				errs <- fmt.Errorf("unexpected result: %+v", result)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestParseErrorMessage(t *testing.T) {
	_, err := ParseFeed(`<invalid>XML</invalid>`)
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "not an RSS/Atom document") {
		t.Errorf("Expected error to mention format, got: %v", err)
	}

	_, err = ParseFeed(`<rss></rss>`)
	if err == nil || !strings.Contains(err.Error(), "RSS format is invalid") {
		t.Errorf("Expected invalid RSS error, got: %v", err)
	}
}
