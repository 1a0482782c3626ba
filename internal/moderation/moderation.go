// Package moderation classifies and redacts text against a configured list
// of disallowed terms.
package moderation

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Tyrowin/roomchat/internal/domain"
)

// DefaultMask replaces each rune of a disallowed term.
const DefaultMask = '*'

// DefaultTerms is used when no terms are configured.
var DefaultTerms = []string{"badword", "profanity", "idiot"}

// Config is the moderation section of the service configuration.
type Config struct {
	Terms []string `mapstructure:"terms"`
	Mask  string   `mapstructure:"mask"`
}

// Moderator is safe for concurrent use; it never changes after New.
type Moderator struct {
	terms [][]rune
	mask  rune
}

// New builds a Moderator. Terms are matched case-insensitively; blank terms,
// duplicates, and terms containing the mask rune are ignored.
func New(terms []string, mask rune) *Moderator {
	if mask == 0 {
		mask = DefaultMask
	}
	lowerMask := unicode.ToLower(mask)

	seen := make(map[string]struct{}, len(terms))
	folded := make([][]rune, 0, len(terms))
	for _, term := range terms {
		runes := fold(strings.TrimSpace(term))
		if len(runes) == 0 {
			continue
		}
		key := string(runes)
		if _, dup := seen[key]; dup {
			continue
		}
		if strings.ContainsRune(key, lowerMask) {
			continue
		}
		seen[key] = struct{}{}
		folded = append(folded, runes)
	}

	sort.SliceStable(folded, func(i, j int) bool {
		return len(folded[i]) > len(folded[j])
	})

	return &Moderator{terms: folded, mask: mask}
}

// FromConfig builds a Moderator, falling back to the defaults.
func FromConfig(cfg Config) *Moderator {
	terms := cfg.Terms
	if len(terms) == 0 {
		terms = DefaultTerms
	}
	mask := DefaultMask
	if r := []rune(cfg.Mask); len(r) > 0 {
		mask = r[0]
	}
	return New(terms, mask)
}

// Terms returns the number of active terms.
func (m *Moderator) Terms() int {
	return len(m.terms)
}

// Classify reports whether text contains any disallowed term.
func (m *Moderator) Classify(text string) bool {
	if len(m.terms) == 0 || text == "" {
		return false
	}
	haystack := fold(text)
	for _, term := range m.terms {
		if index(haystack, term, 0) >= 0 {
			return true
		}
	}
	return false
}

// Redact masks every occurrence of every term, including overlapping ones.
// The result has the same rune count as text.
func (m *Moderator) Redact(text string) string {
	if len(m.terms) == 0 || text == "" {
		return text
	}

	original := []rune(text)
	haystack := fold(text)
	masked := make([]bool, len(original))
	hit := false

	for _, term := range m.terms {
		for start := index(haystack, term, 0); start >= 0; start = index(haystack, term, start+1) {
			for i := start; i < start+len(term); i++ {
				masked[i] = true
			}
			hit = true
		}
	}
	if !hit {
		return text
	}

	for i := range original {
		if masked[i] {
			original[i] = m.mask
		}
	}
	return string(original)
}

// Apply moderates content of the given kind. Only text is redacted.
func (m *Moderator) Apply(content string, kind domain.Kind) string {
	if kind != domain.KindText {
		return content
	}
	return m.Redact(content)
}

// fold lower-cases rune by rune so indexes line up with the original text.
func fold(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

func index(haystack, needle []rune, from int) int {
	last := len(haystack) - len(needle)
	for i := from; i <= last; i++ {
		match := true
		for j, r := range needle {
			if haystack[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
