package utils

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ParseID parses a platform snowflake id.
func ParseID(s string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if id.Int64() <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id.Int64(), nil
}

// FormatID renders a snowflake id the way the platform does.
func FormatID(id int64) string {
	return snowflake.ID(id).String()
}

// NormalizeName lower-cases an organization or service name so lookups are
// case-insensitive across scripts.
func NormalizeName(name string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

// SortedUnique returns ids in ascending order without duplicates.
func SortedUnique(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether id is in sorted.
func Contains(sorted []int64, id int64) bool {
	_, found := slices.BinarySearch(sorted, id)
	return found
}
