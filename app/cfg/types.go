package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	ContentDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	RedisAddr         string

	// Feed viewing behavior
	VisibilityThreshold float64
	SettleDebounceMs    int
	QuizDwellMs         int
	SessionTTLMinutes   int
	RepetitionCutoffH   int

	// Content ingestion
	ImportFeeds []string
	AnalyzerURL string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
