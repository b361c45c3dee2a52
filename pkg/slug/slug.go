package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Option configures slug generation.
type Option func(*config)

type config struct {
	maxLength int
	separator string
	lowercase bool
}

func defaultConfig() *config {
	return &config{
		separator: "-",
		lowercase: true,
	}
}

// MaxLength truncates the slug to n runes. Zero means no limit.
func MaxLength(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxLength = n
		}
	}
}

// Separator sets the string placed between words. Default is "-".
func Separator(s string) Option {
	return func(c *config) {
		if s != "" {
			c.separator = s
		}
	}
}

// Lowercase controls case folding. Default is true.
func Lowercase(enabled bool) Option {
	return func(c *config) {
		c.lowercase = enabled
	}
}

// letters that have no canonical decomposition and need an explicit fold.
var foldMap = map[rune]rune{
	'ß': 's', 'ø': 'o', 'Ø': 'O', 'ł': 'l', 'Ł': 'L', 'đ': 'd', 'Đ': 'D',
	'æ': 'a', 'Æ': 'A', 'œ': 'o', 'Œ': 'O',
}

// Make builds a slug from s.
func Make(s string, opts ...Option) string {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	s = foldDiacritics(s)

	var b strings.Builder
	b.Grow(len(s))

	lastWasSep := true // avoids a leading separator
	count := 0
	sepLen := len([]rune(cfg.separator))

	for _, r := range s {
		if cfg.maxLength > 0 && count >= cfg.maxLength {
			break
		}
		if folded, ok := foldMap[r]; ok {
			r = folded
		}
		if cfg.lowercase {
			r = unicode.ToLower(r)
		}

		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasSep = false
			count++
			continue
		}

		if lastWasSep {
			continue
		}
		if cfg.maxLength > 0 && count+sepLen > cfg.maxLength {
			break
		}
		b.WriteString(cfg.separator)
		lastWasSep = true
		count += sepLen
	}

	return strings.TrimSuffix(b.String(), cfg.separator)
}

// foldDiacritics decomposes s and drops combining marks, so "é" becomes "e".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
