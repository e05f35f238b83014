// Package lead defines lead records and the pure reconciliation logic around
// them: header normalization, identity keys, completion classification and
// append-merge.
package lead

import "strings"

// Canonical field names.
const (
	FieldCompanyName    = "company_name"
	FieldCompanyAddress = "company_address"
	FieldPhone          = "phone"
	FieldWebsite        = "website"
	FieldRating         = "rating"
	FieldReviewCount    = "review_count"
	FieldMapsURL        = "maps_url"
	FieldLookupStatus   = "lookup_status"
	FieldLinkedInURL    = "linkedin_url"
	FieldFacebookURL    = "facebook_url"
	FieldInstagramURL   = "instagram_url"
	FieldTwitterURL     = "twitter_url"
	FieldResearchBrief  = "research_brief"
	FieldGeneratedEmail = "generated_email"
)

// Lookup status sentinel values. An empty status means the row was never
// looked up.
const (
	StatusFound    = "Found"
	StatusNotFound = "NotFound"
)

// legacyNotFound is the marker older output files used in place of a value.
const legacyNotFound = "Not Found"

// Column binds an output header to the field it carries.
type Column struct {
	Header string
	Field  string
}

// Output columns in their fixed append order.
var (
	ColCompanyName    = Column{Header: "Company Name", Field: FieldCompanyName}
	ColCompanyAddress = Column{Header: "Company Address", Field: FieldCompanyAddress}
	ColPhone          = Column{Header: "Phone Number", Field: FieldPhone}
	ColWebsite        = Column{Header: "Website", Field: FieldWebsite}
	ColRating         = Column{Header: "Google Review Rating", Field: FieldRating}
	ColReviewCount    = Column{Header: "Google Review Count", Field: FieldReviewCount}
	ColMapsURL        = Column{Header: "Google Maps URL", Field: FieldMapsURL}
	ColLookupStatus   = Column{Header: "Google Lookup Status", Field: FieldLookupStatus}
	ColLinkedInURL    = Column{Header: "LinkedIn URL", Field: FieldLinkedInURL}
	ColFacebookURL    = Column{Header: "Facebook URL", Field: FieldFacebookURL}
	ColInstagramURL   = Column{Header: "Instagram URL", Field: FieldInstagramURL}
	ColTwitterURL     = Column{Header: "Twitter URL", Field: FieldTwitterURL}
	ColResearchBrief  = Column{Header: "Research Brief", Field: FieldResearchBrief}
	ColGeneratedEmail = Column{Header: "Generated Email", Field: FieldGeneratedEmail}
)

// ReviewColumns are appended by directory enrichment.
var ReviewColumns = []Column{ColRating, ColReviewCount, ColMapsURL, ColLookupStatus}

// WebColumns are appended by website enrichment.
var WebColumns = []Column{ColLinkedInURL, ColFacebookURL, ColInstagramURL, ColTwitterURL, ColResearchBrief}

// EmailColumns are appended by email generation.
var EmailColumns = []Column{ColGeneratedEmail}

// SearchColumns is the column layout of a fresh search result file.
var SearchColumns = []Column{
	ColCompanyName, ColCompanyAddress, ColPhone, ColWebsite,
	ColRating, ColReviewCount, ColMapsURL, ColLookupStatus,
}

// Record maps field names to values. Canonical fields use the Field*
// constants; passthrough columns are keyed by their original header.
type Record map[string]string

// Get returns the trimmed value of a field.
func (r Record) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Has reports whether a field carries a usable value.
func (r Record) Has(field string) bool {
	v := r.Get(field)
	return v != "" && v != legacyNotFound
}

// Name returns the company name.
func (r Record) Name() string { return r.Get(FieldCompanyName) }

// Address returns the company address.
func (r Record) Address() string { return r.Get(FieldCompanyAddress) }

// Key returns the record's identity key.
func (r Record) Key() IdentityKey {
	return Key(r[FieldCompanyName], r[FieldCompanyAddress])
}

// Clone returns a shallow copy so enrichment of one row never aliases another.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered set of records with their output column layout.
type Table struct {
	Columns []Column
	Records []Record
}

// HasField reports whether any column carries the field.
func (t *Table) HasField(field string) bool {
	for _, c := range t.Columns {
		if c.Field == field {
			return true
		}
	}
	return false
}

// EnsureColumns appends each column whose field is not yet present.
func (t *Table) EnsureColumns(cols ...Column) {
	for _, c := range cols {
		if !t.HasField(c.Field) {
			t.Columns = append(t.Columns, c)
		}
	}
}

// Header returns the output header row.
func (t *Table) Header() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Header
	}
	return out
}

// Rows renders the header followed by one string slice per record.
func (t *Table) Rows() [][]string {
	rows := make([][]string, 0, len(t.Records)+1)
	rows = append(rows, t.Header())
	for _, r := range t.Records {
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = r[c.Field]
		}
		rows = append(rows, row)
	}
	return rows
}
