package directory

import (
	"context"
	"strings"

	"github.com/sells-group/lead-enricher/pkg/google"
)

// PlacesService implements Service over the Google Places Text Search API.
// One FindPlace is one searchText call; the field mask carries the FieldSet
// so a URL-only lookup never bills for review data.
type PlacesService struct {
	client google.Client
	region string
}

// NewPlacesService wraps a Places client. Region is an optional CLDR region
// code passed as regionCode.
func NewPlacesService(client google.Client, region string) *PlacesService {
	return &PlacesService{client: client, region: region}
}

// FindPlace implements Service. Client errors are returned unwrapped so the
// retry policy can classify them.
func (s *PlacesService) FindPlace(ctx context.Context, name, address string, fields FieldSet) ([]Candidate, error) {
	mask := google.FieldMaskLookup
	if fields == FieldsURLOnly {
		mask = google.FieldMaskURLOnly
	}

	resp, err := s.client.TextSearch(ctx, google.TextSearchRequest{
		TextQuery:  Query(name, address),
		RegionCode: s.region,
		FieldMask:  mask,
	})
	if err != nil {
		return nil, err
	}
	return toCandidates(resp.Places), nil
}

// SearchPlaces implements Service.
func (s *PlacesService) SearchPlaces(ctx context.Context, req PageRequest) (*Page, error) {
	greq := google.TextSearchRequest{
		TextQuery:  req.Query,
		PageSize:   req.PageSize,
		PageToken:  req.PageToken,
		RegionCode: req.Region,
		FieldMask:  google.FieldMaskSearch,
	}
	if greq.RegionCode == "" {
		greq.RegionCode = s.region
	}
	if req.Location != nil && req.RadiusMeters > 0 {
		greq.LocationBias = &google.LocationBias{Circle: google.Circle{
			Center: google.LatLng{Latitude: req.Location.Lat, Longitude: req.Location.Lng},
			Radius: req.RadiusMeters,
		}}
	}

	resp, err := s.client.TextSearch(ctx, greq)
	if err != nil {
		return nil, err
	}
	return &Page{Candidates: toCandidates(resp.Places), NextPageToken: resp.NextPageToken}, nil
}

// Query builds the text query for a single-business lookup.
func Query(name, address string) string {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if address == "" {
		return name
	}
	return name + ", " + address
}

func toCandidates(places []google.Place) []Candidate {
	out := make([]Candidate, 0, len(places))
	for _, p := range places {
		out = append(out, Candidate{
			PlaceID:     p.ID,
			Name:        p.DisplayName.Text,
			Address:     p.FormattedAddress,
			Phone:       p.NationalPhoneNumber,
			Website:     p.WebsiteURI,
			Rating:      p.Rating,
			ReviewCount: p.UserRatingCount,
			MapsURL:     p.GoogleMapsURI,
		})
	}
	return out
}
