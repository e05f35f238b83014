package lead

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// IdentityKey is the normalized (name, address) pair two records must share
// to be treated as the same business.
type IdentityKey struct {
	Name    string
	Address string
}

// String renders the key for logs and the error log.
func (k IdentityKey) String() string {
	return k.Name + " | " + k.Address
}

// IsZero reports whether both parts normalized to nothing.
func (k IdentityKey) IsZero() bool {
	return k.Name == "" && k.Address == ""
}

// Key derives the identity key for a name and address.
func Key(name, address string) IdentityKey {
	return IdentityKey{Name: fold(name), Address: fold(address)}
}

// fold strips accents, lower-cases, drops punctuation and collapses
// whitespace: "  Café  Rouge, Inc." becomes "cafe rouge inc".
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	decomposed, _, err := transform.String(t, s)
	if err != nil {
		decomposed = s
	}

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range strings.ToLower(decomposed) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '&':
			b.WriteString(" and ")
		case r == '.' || r == '\'' || r == '’':
			// Dropped in place: "Pike Pl." == "Pike Pl", "O'Neil" == "ONeil".
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
