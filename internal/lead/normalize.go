package lead

import (
	"fmt"
	"strings"
)

// SchemaError reports an input whose header carries no usable identity
// columns. It is fatal for the whole run.
type SchemaError struct {
	Missing   []string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: missing %s column (available: %s)",
		strings.Join(e.Missing, " and "), strings.Join(e.Available, ", "))
}

// identity lists the header synonyms for the two identity fields. Label
// describes the field in error messages.
var identity = []struct {
	field   string
	label   string
	headers []string
}{
	{FieldCompanyName, "'Business Name' or 'Company Name'", []string{"Business Name", "Company Name"}},
	{FieldCompanyAddress, "'Business Address' or 'Company Address'", []string{"Business Address", "Company Address"}},
}

// outputs are the columns this tool writes. An input header binds to one of
// them only on an exact match, so a user's own "Rating" or "Phone" column
// passes through untouched.
var outputs = []Column{
	ColPhone, ColWebsite,
	ColRating, ColReviewCount, ColMapsURL, ColLookupStatus,
	ColLinkedInURL, ColFacebookURL, ColInstagramURL, ColTwitterURL, ColResearchBrief,
	ColGeneratedEmail,
}

// normalizeHeader lower-cases and treats '_' and '-' as spaces, so
// "Company_Name", "company-name" and " COMPANY NAME " all compare equal.
func normalizeHeader(h string) string {
	h = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(h))
	return strings.Join(strings.Fields(h), " ")
}

// ResolveColumns maps raw headers to columns. Identity synonyms match loosely,
// output headers match exactly, and the first match wins; everything else
// passes through keyed by its header. It fails with *SchemaError when no
// name or address column is present.
func ResolveColumns(header []string) ([]Column, error) {
	loose := make(map[string]string)
	for _, s := range identity {
		for _, h := range s.headers {
			loose[normalizeHeader(h)] = s.field
		}
	}
	exact := make(map[string]string, len(outputs))
	for _, c := range outputs {
		exact[c.Header] = c.Field
	}
	match := func(h string) (string, bool) {
		if field, ok := loose[normalizeHeader(h)]; ok {
			return field, true
		}
		field, ok := exact[strings.TrimSpace(h)]
		return field, ok
	}

	bound := make(map[string]bool)
	used := make(map[string]bool)
	cols := make([]Column, 0, len(header))
	for _, raw := range header {
		h := strings.TrimPrefix(raw, "\ufeff")
		if field, ok := match(h); ok && !bound[field] {
			bound[field] = true
			used[field] = true
			cols = append(cols, Column{Header: h, Field: field})
			continue
		}

		key := h
		for n := 2; used[key] || isCanonical(key); n++ {
			key = fmt.Sprintf("%s#%d", h, n)
		}
		used[key] = true
		cols = append(cols, Column{Header: h, Field: key})
	}

	var missing []string
	for _, s := range identity {
		if !bound[s.field] {
			missing = append(missing, s.label)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Available: header}
	}
	return cols, nil
}

func isCanonical(key string) bool {
	for _, s := range identity {
		if s.field == key {
			return true
		}
	}
	for _, c := range outputs {
		if c.Field == key {
			return true
		}
	}
	return false
}

// Normalize builds a Table from a header row and data rows. Short rows are
// padded, extra cells beyond the header are dropped.
func Normalize(header []string, rows [][]string) (*Table, error) {
	cols, err := ResolveColumns(header)
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: cols, Records: make([]Record, 0, len(rows))}
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			if i < len(row) {
				rec[c.Field] = row[i]
			} else {
				rec[c.Field] = ""
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
