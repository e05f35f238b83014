package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/dataset"
	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/errlog"
	"github.com/sells-group/lead-enricher/internal/generate"
	"github.com/sells-group/lead-enricher/internal/lead"
	"github.com/sells-group/lead-enricher/internal/store"
)

// withStoreConfig points the store at a SQLite file in dir.
func withStoreConfig(t *testing.T, dir string) string {
	t.Helper()
	prev := cfg
	dbPath := filepath.Join(dir, "ledger.db")
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: dbPath, CacheTTLHours: 1}}
	t.Cleanup(func() { cfg = prev })
	return dbPath
}

func lastRun(t *testing.T, dbPath string) store.Run {
	t.Helper()
	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	return runs[0]
}

func TestSession_WritesOutputAndLedger(t *testing.T) {
	dir := t.TempDir()
	dbPath := withStoreConfig(t, dir)
	input := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "out", "enriched.csv")
	require.NoError(t, os.WriteFile(input, []byte("Business Name,Business Address,Notes\nAcme,1 Main St,vip\n"), 0o600))

	ctx := context.Background()
	s, err := openSession(ctx, "enrich", input, output)
	require.NoError(t, err)

	tbl, err := s.load(input)
	require.NoError(t, err)
	tbl.EnsureColumns(lead.ReviewColumns...)
	tbl.Records[0][lead.FieldLookupStatus] = lead.StatusNotFound
	s.stats = enrich.Stats{Total: 1, NotFound: 1}

	require.NoError(t, s.finish(ctx, tbl, nil))

	rows, err := dataset.ReadRows(output)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Business Name", "Business Address", "Notes", "Google Review Rating", "Google Review Count", "Google Maps URL", "Google Lookup Status"}, rows[0])
	assert.Equal(t, "NotFound", rows[1][6])

	_, err = os.Stat(errlog.PathFor(output))
	assert.True(t, os.IsNotExist(err), "empty error log is not written")

	run := lastRun(t, dbPath)
	assert.Equal(t, store.RunStatusComplete, run.Status)
	assert.Equal(t, "enrich", run.Command)
	var stats enrich.Stats
	require.NoError(t, json.Unmarshal(run.Stats, &stats))
	assert.Equal(t, 1, stats.NotFound)
}

func TestSession_SchemaErrorIsLoggedAndFatal(t *testing.T) {
	dir := t.TempDir()
	dbPath := withStoreConfig(t, dir)
	input := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "enriched.csv")
	require.NoError(t, os.WriteFile(input, []byte("Name,Addr\nAcme,1 Main St\n"), 0o600))

	ctx := context.Background()
	s, err := openSession(ctx, "enrich", input, output)
	require.NoError(t, err)

	_, loadErr := s.load(input)
	var se *lead.SchemaError
	require.ErrorAs(t, loadErr, &se)

	err = s.finish(ctx, nil, loadErr)
	require.ErrorAs(t, err, &se)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr), "no output on schema error")

	rows, err := dataset.ReadRows(errlog.PathFor(output))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, string(errlog.ReasonSchemaError), rows[1][3])

	assert.Equal(t, store.RunStatusFailed, lastRun(t, dbPath).Status)
}

func TestSession_ErrorLogWrittenLoggedOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))

	dir := t.TempDir()
	withStoreConfig(t, dir)
	input := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "enriched.csv")
	require.NoError(t, os.WriteFile(input, []byte("Name,Addr\nAcme,1 Main St\n"), 0o600))

	ctx := context.Background()
	s, err := openSession(ctx, "enrich", input, output)
	require.NoError(t, err)
	_, loadErr := s.load(input)
	_ = s.finish(ctx, nil, loadErr)

	assert.Equal(t, 1, logs.FilterMessage("error log written").Len())
}

func TestSession_OutputLocked(t *testing.T) {
	dir := t.TempDir()
	prev := cfg
	cfg = &config.Config{Store: config.StoreConfig{Driver: "none"}}
	t.Cleanup(func() { cfg = prev })
	output := filepath.Join(dir, "out.csv")

	ctx := context.Background()
	first, err := openSession(ctx, "enrich", "in.csv", output)
	require.NoError(t, err)

	_, err = openSession(ctx, "enrich", "in.csv", output)
	assert.ErrorIs(t, err, dataset.ErrLocked)

	require.NoError(t, first.finish(ctx, nil, nil))
	second, err := openSession(ctx, "enrich", "in.csv", output)
	require.NoError(t, err)
	require.NoError(t, second.finish(ctx, nil, nil))
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, store.RunStatusComplete, runStatus(nil, enrich.Stats{}))
	assert.Equal(t, store.RunStatusFailed, runStatus(errors.New("boom"), enrich.Stats{}))
	assert.Equal(t, store.RunStatusInterrupted, runStatus(context.Canceled, enrich.Stats{}))
	assert.Equal(t, store.RunStatusInterrupted, runStatus(nil, enrich.Stats{Interrupted: true}))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, enrich.Stats{
		Total: 10, Skipped: 4, URLOnly: 1, Full: 5, Enriched: 5, Failed: 1,
		PlacesCostUSD: 0.2075, Interrupted: true,
	})

	out := buf.String()
	assert.Contains(t, out, "Total rows:")
	assert.Contains(t, out, "URL-only fetched:")
	assert.Contains(t, out, "$0.2075")
	assert.Contains(t, out, "re-run to resume")
	assert.NotContains(t, out, "Appended")
	assert.NotContains(t, out, "LLM cost")
}

func TestApplyEmailFlags(t *testing.T) {
	t.Cleanup(func() { emailProvider, emailModel, emailAPIKey, emailProduct = "", "", "", "" })

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&emailProvider, "provider", "", "")
	cmd.Flags().StringVar(&emailModel, "model", "", "")
	cmd.Flags().StringVar(&emailAPIKey, "api-key", "", "")
	cmd.Flags().StringVar(&emailProduct, "product", "", "")
	require.NoError(t, cmd.Flags().Set("provider", " Anthropic "))
	require.NoError(t, cmd.Flags().Set("api-key", "flag-key"))
	require.NoError(t, cmd.Flags().Set("product", "bookkeeping"))

	c := &config.Config{}
	c.Generate.Provider = "openai"
	c.Anthropic.Key = "env-key"
	c.Anthropic.Model = "claude-haiku-4-5-20251001"
	applyEmailFlags(cmd, c)

	assert.Equal(t, "anthropic", c.Generate.Provider)
	assert.Equal(t, "flag-key", c.Anthropic.Key)
	assert.Equal(t, "bookkeeping", c.Generate.Product)
	assert.Empty(t, c.Generate.Model)

	s := providerSettings(c, generate.Template{System: "Be brief."})
	assert.Equal(t, "anthropic", s.Provider)
	assert.Equal(t, "flag-key", s.APIKey)
	assert.Equal(t, "claude-haiku-4-5-20251001", s.Model)
	assert.Equal(t, "Be brief.", s.System)
}

func TestProviderSettings_ModelOverride(t *testing.T) {
	c := &config.Config{}
	c.Generate.Provider = "openrouter"
	c.Generate.Model = "anthropic/claude-3.5-haiku"
	c.Generate.MaxTokens = 500
	c.Generate.Temperature = 0.7
	c.OpenRouter = config.ProviderConfig{Key: "or-key", BaseURL: "https://openrouter.ai/api/v1", Model: "openai/gpt-4o-mini"}

	s := providerSettings(c, generate.DefaultTemplate())
	assert.Equal(t, "anthropic/claude-3.5-haiku", s.Model)
	assert.Equal(t, "https://openrouter.ai/api/v1", s.BaseURL)
	assert.Equal(t, 500, s.MaxTokens)
	assert.InDelta(t, 0.7, s.Temperature, 1e-9)
}
