package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBPath   string
	FeedsDir string

	// Application configuration
	Port         string
	WorkerCount  int
	FetchTimeout time.Duration
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	LogFile   string
	Debug     bool
	Version   string
}
