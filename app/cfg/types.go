package cfg

type Cfg struct {
	// Storage configuration
	DBPath      string
	MaxArticles int

	// Source configuration
	SourcesDir string
	ExportsDir string
	BotToken   string

	// Pipeline configuration
	MaxConcurrency int
	FetchTimeout   int // seconds
	ScrapeInterval int // minutes

	// HTTP server configuration
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
