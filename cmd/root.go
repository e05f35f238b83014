package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lead-enricher",
	Short: "Enrich business leads with Google Maps reviews, websites and outreach emails",
	Long: `Reconciles a CSV or XLSX of business leads against the Google Places directory.
Rows that are already enriched are skipped, so a run can be repeated or resumed.

Examples:
  lead-enricher enrich leads.csv enriched.csv
  lead-enricher search "dentists in Austin TX" dentists.csv --limit 50
  lead-enricher enrich-web enriched.csv researched.csv
  lead-enricher generate-emails researched.csv emails.csv --provider anthropic --product "bookkeeping"

The legacy form "lead-enricher input.csv output.csv" runs enrich.`,
	Args:          cobra.RangeArgs(0, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return cmd.Help()
		}
		return runEnrich(cmd, args[0], args[1])
	},
}

// signalContext cancels on SIGINT or SIGTERM so a run stops between rows
// and still writes what it has.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("lead-enricher failed", zap.Error(err))
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
