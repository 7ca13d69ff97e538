package repository

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength = 200
	maxTagLength  = 100
	fallbackSlug  = "post"
)

// Slugify derives the URL-safe base slug of a title: accents folded to ASCII,
// lowercase, every run of other characters collapsed into a single hyphen and
// no hyphen at either end.
func Slugify(title string) string {
	slug := slugify(title)
	if slug == "" {
		return fallbackSlug
	}
	return truncateSlug(slug, maxSlugLength)
}

// TagSlug is the slug tags are filtered by. It is empty for names without a
// single letter or digit.
func TagSlug(name string) string {
	return truncateSlug(slugify(name), maxTagLength)
}

func slugify(s string) string {
	// transformers keep state, so each call builds its own chain
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	return b.String()
}

// slugCandidate returns base for n == 0 and base-n otherwise, shortening base
// so the result fits the column.
func slugCandidate(base string, n int) string {
	if n == 0 {
		return truncateSlug(base, maxSlugLength)
	}
	suffix := "-" + strconv.Itoa(n)
	return truncateSlug(base, maxSlugLength-len(suffix)) + suffix
}

func truncateSlug(slug string, max int) string {
	if len(slug) <= max {
		return slug
	}
	return strings.TrimRight(slug[:max], "-")
}
