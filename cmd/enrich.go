package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/directory"
	"github.com/sells-group/lead-enricher/internal/enrich"
)

var enrichRetryNotFound bool

var enrichCmd = &cobra.Command{
	Use:   "enrich <input> <output>",
	Short: "Add Google review rating, review count and Maps URL to a lead file",
	Long: `Looks up every row that is missing review data. Complete rows are skipped and
rows that only lack the Maps URL get a cheaper URL-only lookup. Rows the
directory has no match for are marked NotFound and listed in error_log.csv.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnrich(cmd, args[0], args[1])
	},
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichRetryNotFound, "retry-not-found", false, "look up rows an earlier run marked NotFound again")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, input, output string) error {
	if err := cfg.Validate("lookup"); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	s, err := openSession(ctx, "enrich", input, output)
	if err != nil {
		return err
	}

	t, err := s.load(input)
	if err != nil {
		return s.finish(ctx, nil, err)
	}

	resolver := directory.NewResolver(placesService(), runLimiter(), retryPolicy())

	opts := append(s.engineOptions(),
		enrich.WithResolver(resolver),
		enrich.WithRetryNotFound(enrichRetryNotFound || cfg.Lookup.RetryNotFound),
	)
	engine := enrich.New(s.errs, opts...)

	s.stats, err = engine.Lookup(ctx, t)
	s.stats.PlacesCostUSD = placesCost(resolver.Usage())

	return s.finish(ctx, t, err)
}

func placesCost(u directory.Usage) float64 {
	return cost.FromConfig(cfg.Pricing).Places(u.FullLookups, u.URLOnlyLookups, u.SearchPages)
}

