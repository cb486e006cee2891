package scanner

import (
	"fmt"
	"time"
)

// CandidatePrefixes returns one YYYY/MM/DD/HH prefix per UTC hour from
// from's hour through now's hour, inclusive. The result is never empty; when
// from is ahead of now only from's own hour is returned.
func CandidatePrefixes(from, now time.Time) []string {
	cur := from.UTC().Truncate(time.Hour)
	last := now.UTC().Truncate(time.Hour)

	prefixes := []string{hourPrefix(cur)}
	for cur.Before(last) {
		cur = cur.Add(time.Hour)
		prefixes = append(prefixes, hourPrefix(cur))
	}
	return prefixes
}

func hourPrefix(t time.Time) string {
	return fmt.Sprintf("%d/%02d/%02d/%02d", t.Year(), int(t.Month()), t.Day(), t.Hour())
}
