// Package featurefactory provides concrete crfmodel.FeatureFactory
// implementations — the external collaborator spec.md §6 leaves to the
// caller. WordShapeFactory is a small, dependency-free closed feature
// set; HTMLFactory (html.go) adapts the teacher's goquery-based form
// field extraction to emit the same kind of opaque feature strings.
package featurefactory

import (
	"strings"
	"unicode"

	"github.com/happyhackingspace/crftag/crfmodel"
)

// WordShapeFactory emits, at order 0, the current word, its
// lowercased form, a coarse shape class, and digit/punctuation flags,
// plus an optional gazetteer-membership flag; at order 1 it emits a
// single always-on bias feature, giving the CRF a free-floating label
// bigram bias the way NERFeatureFactory's edge clique templates do.
type WordShapeFactory struct {
	// Gazetteer, if non-nil, is consulted case-insensitively; matches
	// add an "in-gaz" feature at order 0.
	Gazetteer map[string]bool
}

func (f WordShapeFactory) Name() string { return "wordshape" }

func (f WordShapeFactory) FeaturesAt(tokens crfmodel.Document, pos, window int) [][]string {
	out := make([][]string, window)
	if window == 0 {
		return out
	}

	word := tokens[pos].Word
	order0 := []string{
		"w=" + word,
		"wl=" + strings.ToLower(word),
		"shape=" + shapeOf(word),
	}
	if hasDigit(word) {
		order0 = append(order0, "has-digit")
	}
	if hasPunct(word) {
		order0 = append(order0, "has-punct")
	}
	if f.Gazetteer != nil && f.Gazetteer[strings.ToLower(word)] {
		order0 = append(order0, "in-gaz")
	}
	out[0] = order0

	for o := 1; o < window; o++ {
		out[o] = []string{"bias"}
	}
	return out
}

// shapeOf reduces word to a coarse shape class: each letter becomes
// 'X' (upper) or 'x' (lower), each digit becomes '9', everything else
// is kept as-is — the classic word-shape feature.
func shapeOf(word string) string {
	var b strings.Builder
	for _, r := range word {
		switch {
		case unicode.IsUpper(r):
			b.WriteByte('X')
		case unicode.IsLower(r):
			b.WriteByte('x')
		case unicode.IsDigit(r):
			b.WriteByte('9')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasPunct(s string) bool {
	for _, r := range s {
		if unicode.IsPunct(r) {
			return true
		}
	}
	return false
}
