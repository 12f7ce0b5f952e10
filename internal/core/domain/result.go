package domain

// UsageMetadata mirrors the job_metadata block returned with a parse result.
type UsageMetadata struct {
	CreditsUsed      float64 `json:"credits_used"`
	JobCreditsUsage  float64 `json:"job_credits_usage"`
	JobPages         int     `json:"job_pages"`
	JobAutoModePages int     `json:"job_auto_mode_triggered_pages"`
	JobIsCacheHit    bool    `json:"job_is_cache_hit"`
	CreditsMax       float64 `json:"credits_max"`
}

// ParseResult is the markdown rendering of a successfully parsed document.
// It is produced once and never mutated.
type ParseResult struct {
	Markdown string        `json:"markdown"`
	Usage    UsageMetadata `json:"job_metadata"`
}

// DocumentInfo is what preflight inspection learns about a source document
// before any remote credits are spent on it.
type DocumentInfo struct {
	Pages int
}
