package vpk

import "strings"

// NormalizePath converts a user-provided path to the canonical entry-table
// form.
//
// It performs the following transformations:
//   - Converts backslashes to forward slashes: `scripts\items.txt` → "scripts/items.txt"
//   - Strips leading and trailing slashes: "/scripts/items.txt/" → "scripts/items.txt"
//   - Collapses consecutive slashes: "scripts//items.txt" → "scripts/items.txt"
//
// The returned path matches the keys produced by Parse.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	if !strings.Contains(p, "//") {
		return p
	}

	parts := strings.Split(p, "/")
	result := parts[:0] // reuse backing array
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	return strings.Join(result, "/")
}
