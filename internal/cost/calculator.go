// Package cost estimates the USD cost of a run from request and token
// counts.
package cost

import "github.com/sells-group/lead-enricher/internal/config"

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64
	Output float64
}

// Rates holds the pricing used by a Calculator.
type Rates struct {
	// TextSearchPerK is charged per thousand searchText calls that request
	// rating or review fields.
	TextSearchPerK float64
	// TextSearchURLPerK is charged per thousand ID-only searchText calls.
	TextSearchURLPerK float64
	LLM               map[string]ModelRate
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// FromConfig builds a Calculator from configured pricing layered over
// DefaultRates: configured models override or extend the defaults.
func FromConfig(p config.PricingConfig) *Calculator {
	rates := DefaultRates()
	if p.Places.TextSearchPerK > 0 {
		rates.TextSearchPerK = p.Places.TextSearchPerK
	}
	if p.Places.TextSearchURLPerK > 0 {
		rates.TextSearchURLPerK = p.Places.TextSearchURLPerK
	}
	for model, mp := range p.LLM {
		rates.LLM[model] = ModelRate{Input: mp.Input, Output: mp.Output}
	}
	return NewCalculator(rates)
}

// Places computes the cost of directory calls. Search pages bill like full
// lookups.
func (c *Calculator) Places(fullLookups, urlOnlyLookups, searchPages int) float64 {
	full := float64(fullLookups+searchPages) / 1000 * c.rates.TextSearchPerK
	urlOnly := float64(urlOnlyLookups) / 1000 * c.rates.TextSearchURLPerK
	return full + urlOnly
}

// LLM computes the cost of a model's token usage. Unknown models cost 0.
func (c *Calculator) LLM(model string, input, output int64) float64 {
	rate, ok := c.rates.LLM[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// KnownModel reports whether the calculator has pricing for model.
func (c *Calculator) KnownModel(model string) bool {
	_, ok := c.rates.LLM[model]
	return ok
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		TextSearchPerK:    35.00,
		TextSearchURLPerK: 32.00,
		LLM: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
			"gpt-4o":                     {Input: 2.50, Output: 10.00},
			"openai/gpt-4o-mini":         {Input: 0.15, Output: 0.60},
			"sonar":                      {Input: 1.00, Output: 1.00},
			"gemini-2.0-flash":           {Input: 0.10, Output: 0.40},
		},
	}
}
