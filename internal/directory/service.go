// Package directory reconciles leads against an external place directory:
// single-business lookups and paged open-ended search.
package directory

import (
	"context"
	"strconv"
)

// FieldSet selects which place fields a lookup requests.
type FieldSet int

const (
	// FieldsFull requests rating, review count and Maps URL.
	FieldsFull FieldSet = iota
	// FieldsURLOnly requests the Maps URL alone.
	FieldsURLOnly
)

func (f FieldSet) String() string {
	if f == FieldsURLOnly {
		return "url_only"
	}
	return "full"
}

// Candidate is one place returned by the directory. Rating and ReviewCount
// are nil when absent, which differs from a zero value.
type Candidate struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	MapsURL     string   `json:"maps_url,omitempty"`
}

// RatingString formats the rating for a dataset cell, "" when absent.
func (c Candidate) RatingString() string {
	if c.Rating == nil {
		return ""
	}
	return strconv.FormatFloat(*c.Rating, 'f', -1, 64)
}

// ReviewCountString formats the review count for a dataset cell.
func (c Candidate) ReviewCountString() string {
	if c.ReviewCount == nil {
		return ""
	}
	return strconv.Itoa(*c.ReviewCount)
}

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// PageRequest asks for one page of an open-ended search.
type PageRequest struct {
	Query        string
	PageSize     int
	PageToken    string
	Location     *LatLng
	RadiusMeters float64
	Region       string
}

// Page is one page of search results. An empty NextPageToken means there
// are no further pages.
type Page struct {
	Candidates    []Candidate
	NextPageToken string
}

// Service is the directory lookup capability the engine depends on.
//
// FindPlace returns candidates in the directory's own ranking order; an
// empty slice means no match. Implementations report retryable failures as
// *resilience.TransientError.
type Service interface {
	FindPlace(ctx context.Context, name, address string, fields FieldSet) ([]Candidate, error)
	SearchPlaces(ctx context.Context, req PageRequest) (*Page, error)
}
