package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/generate"
	"github.com/sells-group/lead-enricher/internal/ratelimit"
)

var (
	emailProvider   string
	emailModel      string
	emailAPIKey     string
	emailProduct    string
	emailPromptFile string
)

var generateEmailsCmd = &cobra.Command{
	Use:   "generate-emails <input> <output>",
	Short: "Draft a personalized cold outreach email for every lead",
	Long: `Fills a prompt template with each row's enrichment data and asks an LLM for a
short outreach email. Rows that already have an email are skipped; rows whose
earlier attempt failed are tried again.

The API key comes from --api-key or <PROVIDER>_API_KEY (for example
ANTHROPIC_API_KEY). Prompt files may be plain text or YAML with "system" and
"prompt" keys. Placeholders: {company_name} {company_address} {company_phone}
{website} {rating} {review_count} {research_brief} {linkedin_url}
{facebook_url} {instagram_url} {twitter_url} {product_description}.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyEmailFlags(cmd, cfg)
		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		tmpl, err := generate.LoadTemplate(cfg.Generate.PromptFile)
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		settings := providerSettings(cfg, tmpl)
		provider, err := generate.NewProvider(ctx, settings)
		if err != nil {
			return err
		}
		gen := generate.NewGenerator(provider, tmpl, cfg.Generate.Product, retryPolicy())

		s, err := openSession(ctx, "generate-emails", args[0], args[1])
		if err != nil {
			return err
		}

		t, err := s.load(args[0])
		if err != nil {
			return s.finish(ctx, nil, err)
		}

		limiter := ratelimit.New(time.Duration(cfg.Generate.DelayMs) * time.Millisecond)
		engine := enrich.New(s.errs, enrich.WithEmails(gen, limiter))
		s.stats, err = engine.Emails(ctx, t)

		if model, tokens, ok := gen.Usage(); ok {
			calc := cost.FromConfig(cfg.Pricing)
			if !calc.KnownModel(model) {
				zap.L().Warn("no pricing for model, cost not estimated", zap.String("model", model))
			}
			s.stats.LLMCostUSD = calc.LLM(model, tokens.Input, tokens.Output)
		}

		return s.finish(ctx, t, err)
	},
}

func init() {
	f := generateEmailsCmd.Flags()
	f.StringVar(&emailProvider, "provider", "", "LLM provider: "+strings.Join(generate.Providers, ", "))
	f.StringVar(&emailModel, "model", "", "model name (default from the provider's config)")
	f.StringVar(&emailAPIKey, "api-key", "", "LLM API key (default <PROVIDER>_API_KEY)")
	f.StringVar(&emailProduct, "product", "", "description of the product or service being offered")
	f.StringVar(&emailPromptFile, "prompt-file", "", "custom prompt template (.txt, .yaml or .yml)")
	rootCmd.AddCommand(generateEmailsCmd)
}

// applyEmailFlags layers command flags over the loaded configuration.
func applyEmailFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		c.Generate.Provider = emailProvider
	}
	c.Generate.Provider = strings.ToLower(strings.TrimSpace(c.Generate.Provider))
	if flags.Changed("model") {
		c.Generate.Model = emailModel
	}
	if flags.Changed("product") {
		c.Generate.Product = emailProduct
	}
	if flags.Changed("prompt-file") {
		c.Generate.PromptFile = emailPromptFile
	}
	if flags.Changed("api-key") {
		switch c.Generate.Provider {
		case generate.ProviderAnthropic:
			c.Anthropic.Key = emailAPIKey
		case generate.ProviderOpenAI:
			c.OpenAI.Key = emailAPIKey
		case generate.ProviderOpenRouter:
			c.OpenRouter.Key = emailAPIKey
		case generate.ProviderPerplexity:
			c.Perplexity.Key = emailAPIKey
		case generate.ProviderGemini:
			c.Gemini.Key = emailAPIKey
		}
	}
}

// providerSettings resolves the provider section named by generate.provider.
// generate.model wins over the provider's default model.
func providerSettings(c *config.Config, tmpl generate.Template) generate.Settings {
	p, _ := c.Provider(c.Generate.Provider)
	model := p.Model
	if c.Generate.Model != "" {
		model = c.Generate.Model
	}
	return generate.Settings{
		Provider:    strings.ToLower(c.Generate.Provider),
		APIKey:      p.Key,
		Model:       model,
		BaseURL:     p.BaseURL,
		System:      tmpl.System,
		MaxTokens:   c.Generate.MaxTokens,
		Temperature: c.Generate.Temperature,
	}
}
