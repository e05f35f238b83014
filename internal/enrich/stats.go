package enrich

import "go.uber.org/zap"

// Stats summarizes a run.
type Stats struct {
	Total       int  `json:"total"`
	Skipped     int  `json:"skipped_complete"`
	URLOnly     int  `json:"url_only_fetched"`
	Full        int  `json:"full_fetched"`
	Enriched    int  `json:"enriched"`
	NotFound    int  `json:"not_found"`
	Failed      int  `json:"failed"`
	Invalid     int  `json:"invalid"`
	CacheHits   int  `json:"cache_hits"`
	Found       int  `json:"search_found"`
	Appended    int  `json:"appended"`
	Interrupted bool `json:"interrupted"`

	PlacesCostUSD float64 `json:"places_cost_usd"`
	LLMCostUSD    float64 `json:"llm_cost_usd"`
}

// Add accumulates another step's counters. Total keeps the larger value
// since every step walks the same rows.
func (s *Stats) Add(o Stats) {
	s.Total = max(s.Total, o.Total)
	s.Skipped += o.Skipped
	s.URLOnly += o.URLOnly
	s.Full += o.Full
	s.Enriched += o.Enriched
	s.NotFound += o.NotFound
	s.Failed += o.Failed
	s.Invalid += o.Invalid
	s.CacheHits += o.CacheHits
	s.Found += o.Found
	s.Appended += o.Appended
	s.Interrupted = s.Interrupted || o.Interrupted
	s.PlacesCostUSD += o.PlacesCostUSD
	s.LLMCostUSD += o.LLMCostUSD
}

// Log writes the summary as one structured line.
func (s Stats) Log(step string) {
	zap.L().Info("enrich: summary",
		zap.String("step", step),
		zap.Int("total", s.Total),
		zap.Int("skipped_complete", s.Skipped),
		zap.Int("url_only_fetched", s.URLOnly),
		zap.Int("full_fetched", s.Full),
		zap.Int("enriched", s.Enriched),
		zap.Int("not_found", s.NotFound),
		zap.Int("failed", s.Failed),
		zap.Int("invalid", s.Invalid),
		zap.Int("cache_hits", s.CacheHits),
		zap.Int("appended", s.Appended),
		zap.Bool("interrupted", s.Interrupted),
		zap.Float64("places_cost_usd", s.PlacesCostUSD),
		zap.Float64("llm_cost_usd", s.LLMCostUSD),
	)
}
