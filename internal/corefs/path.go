package corefs

import "strings"

// splitComponents splits path on '/', dropping empty components produced by
// repeated or trailing slashes.
func splitComponents(path string) []string {
	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
