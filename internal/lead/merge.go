package lead

// KeySet is an explicit set of identity keys.
type KeySet map[IdentityKey]struct{}

// Keys builds the identity set of a record sequence.
func Keys(records []Record) KeySet {
	set := make(KeySet, len(records))
	for _, r := range records {
		set[r.Key()] = struct{}{}
	}
	return set
}

// Has reports whether the key is in the set.
func (s KeySet) Has(k IdentityKey) bool {
	_, ok := s[k]
	return ok
}

// Merge appends each incoming record whose identity is not already present,
// keeping existing records first in their original order. Duplicates inside
// incoming are suppressed as well, so Merge(x, Merge(x, y)) == Merge(x, y).
func Merge(existing, incoming []Record) []Record {
	merged, _ := MergeCount(existing, incoming)
	return merged
}

// MergeCount is Merge that also reports how many records were appended.
func MergeCount(existing, incoming []Record) ([]Record, int) {
	seen := Keys(existing)
	out := make([]Record, 0, len(existing)+len(incoming))
	out = append(out, existing...)

	added := 0
	for _, r := range incoming {
		k := r.Key()
		if seen.Has(k) {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
		added++
	}
	return out, added
}

// MergeTables merges incoming into existing. The column layout is the
// existing columns followed by any incoming columns whose field is new.
func MergeTables(existing, incoming *Table) (*Table, int) {
	out := &Table{Columns: append([]Column(nil), existing.Columns...)}
	out.EnsureColumns(incoming.Columns...)
	records, added := MergeCount(existing.Records, incoming.Records)
	out.Records = records
	return out, added
}
