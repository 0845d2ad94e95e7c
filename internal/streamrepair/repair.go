// Package streamrepair corrects duplicated text fragments introduced by
// token-by-token generation ("aprèsaprès", "Les risLes risques") before the
// output reaches the client. The passes are heuristic: a rare legitimate
// repetition may be collapsed, which is an accepted tradeoff.
package streamrepair

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxSpan bounds, in runes, the duplicated fragment any pass will collapse.
// Generation artifacts are local; nothing observed exceeds a few words. The
// bound also lets the streaming filter hold back a fixed window, since no
// pass can rewrite text further than 2*maxSpan runes behind the stream head.
const maxSpan = 24

// Repair applies all passes, in their fixed order, to a complete string.
// Each pass is idempotent, so Repair(Repair(s)) == Repair(s).
func Repair(s string) string {
	s = CollapseWordPairs(s)
	s = CollapseCharRuns(s)
	s = CollapseBoundarySplits(s)
	s = CollapseNumberPairs(s)
	s = CollapsePhrasePairs(s)
	s = NormalizeWhitespace(s)
	return s
}

// CollapseWordPairs collapses a word immediately followed by an identical
// word into one occurrence ("the the" -> "the").
func CollapseWordPairs(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return strings.TrimSpace(s)
	}
	out := tokens[:1]
	for _, tok := range tokens[1:] {
		if tok == out[len(out)-1] && utf8.RuneCountInString(tok) <= maxSpan {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// CollapseCharRuns collapses an intra-word substring of length >= 3
// immediately followed by an identical copy ("aprèsaprès" -> "après").
func CollapseCharRuns(s string) string {
	return collapseOverlap(s, 3, func(sub []rune) bool {
		for _, r := range sub {
			if unicode.IsSpace(r) {
				return false
			}
		}
		return true
	})
}

// CollapseBoundarySplits collapses a fragment spanning a word boundary that
// is immediately repeated with a continuation
// ("Les risLes risques" -> "Les risques").
func CollapseBoundarySplits(s string) string {
	return collapseOverlap(s, 3, func(sub []rune) bool {
		for _, r := range sub {
			if unicode.IsSpace(r) {
				return true
			}
		}
		return false
	})
}

// CollapseNumberPairs collapses duplicated fragments anchored on a number
// ("15 à15 à" -> "15 à") and repeated numeric tokens ("25 25" -> "25").
func CollapseNumberPairs(s string) string {
	s = collapseOverlap(s, 2, func(sub []rune) bool {
		return unicode.IsDigit(sub[0])
	})
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return strings.TrimSpace(s)
	}
	out := tokens[:1]
	for _, tok := range tokens[1:] {
		if tok == out[len(out)-1] && isNumeric(tok) && utf8.RuneCountInString(tok) <= maxSpan {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// CollapsePhrasePairs collapses a two-word phrase immediately followed by
// itself ("dans la dans la matrice" -> "dans la matrice").
func CollapsePhrasePairs(s string) string {
	tokens := strings.Fields(s)
	changed := true
	for changed {
		changed = false
		for i := 0; i+3 < len(tokens); i++ {
			if tokens[i] == tokens[i+2] && tokens[i+1] == tokens[i+3] &&
				utf8.RuneCountInString(tokens[i])+utf8.RuneCountInString(tokens[i+1])+1 <= maxSpan {
				tokens = append(tokens[:i], tokens[i+2:]...)
				changed = true
				break
			}
		}
	}
	return strings.Join(tokens, " ")
}

// NormalizeWhitespace collapses whitespace runs to a single space and trims.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collapseOverlap drops the first copy wherever a fragment of minLen or
// more runes is immediately followed by an identical copy and the fragment
// is accepted. Longest match wins at each position; the scan restarts after
// every collapse until a fixpoint is reached.
func collapseOverlap(s string, minLen int, accept func(sub []rune) bool) string {
	runes := []rune(s)
	changed := true
	for changed {
		changed = false
	scan:
		for i := 0; i < len(runes); i++ {
			limit := maxSpan
			if rem := (len(runes) - i) / 2; rem < limit {
				limit = rem
			}
			for l := limit; l >= minLen; l-- {
				if equalRunes(runes[i:i+l], runes[i+l:i+2*l]) && accept(runes[i:i+l]) {
					runes = append(runes[:i], runes[i+l:]...)
					changed = true
					break scan
				}
			}
		}
	}
	return string(runes)
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
