package generate

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/lead"
	"github.com/sells-group/lead-enricher/internal/resilience"
)

// maxReason bounds the error text written into the email cell.
const maxReason = 100

// ErrEmptyResponse is a model reply with no text.
var ErrEmptyResponse = eris.New("generate: empty response")

// Generator fills the prompt template for a lead and asks the provider for
// an email.
type Generator struct {
	provider Provider
	tmpl     Template
	product  string
	policy   resilience.Policy
}

// NewGenerator creates a Generator. Transient provider errors are retried
// with policy.
func NewGenerator(p Provider, tmpl Template, product string, policy resilience.Policy) *Generator {
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger("generate", "email")
	}
	return &Generator{provider: p, tmpl: tmpl, product: product, policy: policy}
}

// Prompt renders the template for rec.
func (g *Generator) Prompt(rec lead.Record) string {
	return g.tmpl.Fill(Variables(rec, g.product))
}

// Email generates an outreach email body for rec.
func (g *Generator) Email(ctx context.Context, rec lead.Record) (string, error) {
	prompt := g.Prompt(rec)

	text, err := resilience.DoVal(ctx, g.policy, func(ctx context.Context) (string, error) {
		return g.provider.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}

	zap.L().Debug("generate: email written",
		zap.String("company", rec.Name()),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

// Usage reports token usage and the model when the provider is metered.
func (g *Generator) Usage() (string, Tokens, bool) {
	m, ok := g.provider.(Metered)
	if !ok {
		return "", Tokens{}, false
	}
	return m.Model(), m.Usage(), true
}

// Reason shortens a generation error for the dataset cell.
func Reason(err error) string {
	msg := err.Error()
	if r := []rune(msg); len(r) > maxReason {
		msg = string(r[:maxReason])
	}
	return "LLM error: " + msg
}
