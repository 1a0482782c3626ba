package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/roomchat/internal/domain"
)

// TestRedactScenario masks a single configured term.
func TestRedactScenario(t *testing.T) {
	m := New([]string{"badword"}, '*')
	assert.Equal(t, "this is a ******* here", m.Redact("this is a badword here"))
}

// TestClassify reports whether any term occurs, ignoring case.
func TestClassify(t *testing.T) {
	m := New(DefaultTerms, DefaultMask)

	assert.True(t, m.Classify("You IDIOT"))
	assert.True(t, m.Classify("badwords everywhere"))
	assert.False(t, m.Classify("perfectly fine"))
	assert.False(t, m.Classify(""))
}

// TestRedactCaseInsensitiveAndRepeated masks every occurrence in any case.
func TestRedactCaseInsensitiveAndRepeated(t *testing.T) {
	m := New(DefaultTerms, DefaultMask)
	got := m.Redact("Idiot, idiot and BadWord.")
	assert.Equal(t, "*****, ***** and *******.", got)
}

// TestRedactOverlappingTerms masks the union of overlapping matches.
func TestRedactOverlappingTerms(t *testing.T) {
	m := New([]string{"abc", "bcd"}, '#')
	assert.Equal(t, "x####y", m.Redact("xabcdy"))

	m = New([]string{"aa"}, '*')
	assert.Equal(t, "***b", m.Redact("aaab"))
}

// TestRedactSubstringTerms masks terms nested inside longer words.
func TestRedactSubstringTerms(t *testing.T) {
	m := New([]string{"bad", "badword"}, '*')
	assert.Equal(t, "a ******* and ***", m.Redact("a badword and bad"))
}

// TestRedactPreservesRuneCount checks masks are as long as the text they hide.
func TestRedactPreservesRuneCount(t *testing.T) {
	m := New([]string{"ÄRGER"}, '*')
	assert.Equal(t, "kein ***** hier", m.Redact("kein ärger hier"))
}

// TestRedactIsIdempotent verifies redacting twice changes nothing more.
func TestRedactIsIdempotent(t *testing.T) {
	m := New([]string{"badword", "idiot", "bad", "dwo"}, '*')
	inputs := []string{
		"",
		"clean text",
		"this is a badword here",
		"IDIOTbadwordidiot",
		"badbadbad",
		"b a d",
	}
	for _, in := range inputs {
		once := m.Redact(in)
		assert.Equal(t, once, m.Redact(once), "input %q", in)
	}
}

// TestNewDropsUnusableTerms drops blank, duplicate and mask-containing terms.
func TestNewDropsUnusableTerms(t *testing.T) {
	m := New([]string{"", "  ", "Bad", "bad", "a*b"}, '*')
	assert.Equal(t, 1, m.Terms())
}

// TestApplySkipsImages verifies only text content is redacted.
func TestApplySkipsImages(t *testing.T) {
	m := New([]string{"badword"}, '*')
	img := "data:image/png;base64,badword"

	assert.Equal(t, img, m.Apply(img, domain.KindImage))
	assert.Equal(t, "*******", m.Apply("badword", domain.KindText))
}

// TestFromConfigDefaults falls back to the default terms and mask.
func TestFromConfigDefaults(t *testing.T) {
	m := FromConfig(Config{})
	assert.Equal(t, len(DefaultTerms), m.Terms())
	assert.Equal(t, "*****", m.Redact("idiot"))

	m = FromConfig(Config{Terms: []string{"spam"}, Mask: "#"})
	assert.Equal(t, "####", m.Redact("SPAM"))
}
