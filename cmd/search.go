package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/directory"
	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/lead"
	"github.com/sells-group/lead-enricher/internal/ratelimit"
	"github.com/sells-group/lead-enricher/internal/resilience"
	"github.com/sells-group/lead-enricher/internal/website"
	"github.com/sells-group/lead-enricher/pkg/geocode"
)

var (
	searchLimit     int
	searchAppend    bool
	searchLocation  string
	searchNear      string
	searchRadius    float64
	searchEnrichWeb bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query> <output>",
	Short: "Search Google Maps for businesses and write them as leads",
	Long: `Pages through Google Maps text search results until --limit unique places are
collected. With --append the results are added to an existing output file,
skipping businesses it already lists.

Examples:
  lead-enricher search "dentists in Austin TX" dentists.csv --limit 50
  lead-enricher search "coffee shops" coffee.csv --location 30.2672,-97.7431 --radius 5
  lead-enricher search "coffee shops" coffee.csv --near "Austin, TX" --radius 5
  lead-enricher search "plumbers in Denver" leads.csv --append --enrich-web`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("search"); err != nil {
			return err
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		limiter := runLimiter()
		req, err := searchRequest(ctx, cmd, args[0], geocode.NewClient(cfg.Google.Key), limiter)
		if err != nil {
			return err
		}

		output := args[1]
		s, err := openSession(ctx, "search", args[0], output)
		if err != nil {
			return err
		}

		existing, err := loadExisting(s, output)
		if err != nil {
			return s.finish(ctx, nil, err)
		}

		agg := directory.NewAggregator(placesService(), limiter, retryPolicy())

		opts := []enrich.Option{enrich.WithSearcher(agg)}
		if searchEnrichWeb {
			opts = append(opts, enrich.WithWebsite(website.NewFetcher(cfg.Website), limiter, webLimiter()))
		}
		engine := enrich.New(s.errs, opts...)

		t, stats, err := engine.Search(ctx, req, existing)
		stats.PlacesCostUSD = placesCost(agg.Usage())
		s.stats = stats
		if t == nil || err != nil || !searchEnrichWeb {
			return s.finish(ctx, t, err)
		}

		webStats, err := engine.Web(ctx, t)
		webStats.Total = 0
		s.stats.Add(webStats)
		return s.finish(ctx, t, err)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum number of results (default search.limit, 20)")
	searchCmd.Flags().BoolVar(&searchAppend, "append", false, "append to the output file instead of replacing it")
	searchCmd.Flags().StringVar(&searchLocation, "location", "", `bias results around "lat,lng"`)
	searchCmd.Flags().StringVar(&searchNear, "near", "", `bias results around a geocoded place, e.g. "Austin, TX"`)
	searchCmd.Flags().Float64Var(&searchRadius, "radius", 0, "search radius in miles around --location (default search.radius_miles, 10)")
	searchCmd.Flags().BoolVar(&searchEnrichWeb, "enrich-web", false, "also fetch websites for social links and a research brief")
	rootCmd.AddCommand(searchCmd)
}

// searchRequest builds and validates the request. Query and limit are checked
// before --near spends a geocoding call.
func searchRequest(ctx context.Context, cmd *cobra.Command, query string, geo geocode.Client, limiter *ratelimit.Limiter) (directory.SearchRequest, error) {
	req := directory.SearchRequest{
		Query:  strings.TrimSpace(query),
		Limit:  cfg.Search.Limit,
		Region: cfg.Google.Region,
	}
	if cmd.Flags().Changed("limit") {
		req.Limit = searchLimit
	}

	if searchLocation != "" && searchNear != "" {
		return req, &directory.ValidationError{Field: "location", Reason: "use either --location or --near"}
	}
	if err := req.Validate(); err != nil {
		return req, err
	}

	var (
		loc *directory.LatLng
		err error
	)
	switch {
	case searchLocation != "":
		loc, err = parseLatLng(searchLocation)
	case searchNear != "":
		loc, err = geocodeNear(ctx, geo, searchNear, limiter)
	}
	if err != nil {
		return req, err
	}

	if loc != nil {
		req.Location = loc

		miles := cfg.Search.RadiusMiles
		if cmd.Flags().Changed("radius") {
			miles = searchRadius
		}
		req.RadiusMeters = miles * directory.MetersPerMile
	}

	return req, req.Validate()
}

// parseLatLng reads "lat,lng".
func parseLatLng(s string) (*directory.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, &directory.ValidationError{Field: "location", Reason: `must be "lat,lng"`}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, &directory.ValidationError{Field: "location", Reason: "latitude is not a number"}
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, &directory.ValidationError{Field: "location", Reason: "longitude is not a number"}
	}
	return &directory.LatLng{Lat: lat, Lng: lng}, nil
}

// geocodeNear resolves a place name to the search center. Each attempt
// acquires the run limiter.
func geocodeNear(ctx context.Context, geo geocode.Client, place string, limiter *ratelimit.Limiter) (*directory.LatLng, error) {
	policy := retryPolicy()
	policy.BeforeAttempt = limiter.Acquire
	res, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (*geocode.Result, error) {
		return geo.Geocode(ctx, place)
	})
	if errors.Is(err, geocode.ErrNoMatch) {
		return nil, &directory.ValidationError{Field: "near", Reason: fmt.Sprintf("no location found for %q", place)}
	}
	if err != nil {
		return nil, eris.Wrap(err, "search: geocode --near")
	}
	zap.L().Info("search: centered on geocoded place",
		zap.String("near", place),
		zap.String("matched", res.FormattedAddress),
		zap.Float64("lat", res.Lat),
		zap.Float64("lng", res.Lng),
	)
	return &directory.LatLng{Lat: res.Lat, Lng: res.Lng}, nil
}

// loadExisting reads the output file for --append. Without --append, or
// when the file does not exist yet, it returns nil.
func loadExisting(s *session, output string) (*lead.Table, error) {
	if !searchAppend {
		return nil, nil
	}
	if !fileExists(output) {
		return nil, nil
	}
	t, err := s.load(output)
	return t, eris.Wrap(err, "search: read existing output")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

