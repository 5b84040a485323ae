package feed

import (
	"bytes"
	"strings"

	"github.com/mmcdole/gofeed"
)

// MetadataExtractor reads the channel-level fields used to populate a
// subscription: title, description and image.
type MetadataExtractor struct{}

func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{}
}

// Run rejects documents the item normalizer cannot read, such as RSS 1.0
// and JSON Feed, which gofeed alone would accept.
func (e *MetadataExtractor) Run(data []byte) (*Metadata, error) {
	if _, err := ParseFeed(string(data)); err != nil {
		return nil, &FeedError{Message: "feed is not readable as RSS or Atom", Err: err}
	}

	// gofeed parsers keep per-parse state, so each run gets its own.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &FeedError{Message: "failed to parse feed", Err: err}
	}

	metadata := &Metadata{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
	}

	if parsed.Image != nil {
		metadata.ImageURL = strings.TrimSpace(parsed.Image.URL)
	}

	if metadata.Title == "" {
		return nil, &FeedError{Message: "feed title could not be read"}
	}

	return metadata, nil
}
