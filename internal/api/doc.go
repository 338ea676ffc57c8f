package api

import "strings"

var (
	// ReturnMarkers select return documentation lines.
	ReturnMarkers = []string{":return", ":returns"}
	// RaiseMarkers select exception documentation lines.
	RaiseMarkers = []string{":raise", ":raises"}
)

// IsDeprecatedDoc reports whether doc mentions deprecation.
func IsDeprecatedDoc(doc string) bool {
	return doc != "" && strings.Contains(strings.ToLower(doc), "deprecated")
}

// ExtractDocSection collects the trimmed doc lines containing any of the
// markers (case-insensitive). Returns nil when nothing matches.
func ExtractDocSection(doc string, markers []string) *string {
	if doc == "" {
		return nil
	}

	var matched []string
	for _, line := range strings.Split(doc, "\n") {
		lower := strings.ToLower(line)
		for _, m := range markers {
			if strings.Contains(lower, m) {
				matched = append(matched, strings.TrimSpace(line))
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	section := strings.Join(matched, "\n")
	return &section
}
