package feed

// Normalized feed types. The shape is the same for RSS and Atom input.

type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
	PubDate string `json:"pubDate,omitempty"`
}

type Feed struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Items       []Item `json:"items"`
}

// Subscription metadata types

type Metadata struct {
	Title       string
	Description string
	ImageURL    string
}

// Seed configuration types

type Config struct {
	Name       string   // Derived from filename (without .yml extension)
	URL        string   `yaml:"url"`
	Title      string   `yaml:"title"`
	Categories []string `yaml:"categories"`
}
