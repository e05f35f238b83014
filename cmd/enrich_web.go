package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/website"
)

var enrichWebCmd = &cobra.Command{
	Use:   "enrich-web <input> <output>",
	Short: "Add social profile links and a research brief from each company website",
	Long: `Fetches the homepage in the Website column of every row and extracts LinkedIn,
Facebook, Instagram and Twitter links plus a short research brief. Rows that
already have a brief are skipped unless the earlier fetch failed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("web"); err != nil {
			return err
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		s, err := openSession(ctx, "enrich-web", args[0], args[1])
		if err != nil {
			return err
		}

		t, err := s.load(args[0])
		if err != nil {
			return s.finish(ctx, nil, err)
		}

		engine := enrich.New(s.errs, enrich.WithWebsite(website.NewFetcher(cfg.Website), runLimiter(), webLimiter()))
		s.stats, err = engine.Web(ctx, t)
		return s.finish(ctx, t, err)
	},
}

func init() {
	rootCmd.AddCommand(enrichWebCmd)
}
