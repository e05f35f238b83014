package lead

// Completion describes how much directory enrichment a record already has.
type Completion int

const (
	// Empty records need a full lookup.
	Empty Completion = iota
	// PartialURLOnly records have review data but no Maps URL.
	PartialURLOnly
	// Complete records are skipped.
	Complete
)

func (c Completion) String() string {
	switch c {
	case PartialURLOnly:
		return "partial_url_only"
	case Complete:
		return "complete"
	default:
		return "empty"
	}
}

// Classify inspects the enrichment fields of a record.
//
// The lookup status column separates "looked up, found nothing" from "never
// looked up": a NotFound row is complete, and a Found row whose rating and
// review count are blank is a confirmed zero-review business rather than a
// missing one.
func Classify(r Record) Completion {
	status := r.Get(FieldLookupStatus)
	if status == StatusNotFound {
		return Complete
	}

	found := status == StatusFound
	hasReviews := r.Has(FieldRating) || r.Has(FieldReviewCount)

	if r.Has(FieldMapsURL) {
		if hasReviews || found {
			return Complete
		}
		return Empty
	}

	if found || (r.Has(FieldRating) && r.Has(FieldReviewCount)) {
		return PartialURLOnly
	}
	return Empty
}
