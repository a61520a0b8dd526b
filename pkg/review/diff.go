package review

import "strings"

// ParseDiffStats derives objective size signals from a unified diff.
func ParseDiffStats(diff string) DiffStats {
	var stats DiffStats
	seen := make(map[string]bool)

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "--- "):
			path := strings.TrimSpace(line[4:])
			path = strings.TrimPrefix(path, "a/")
			path = strings.TrimPrefix(path, "b/")
			if path == "" || path == "/dev/null" || seen[path] {
				continue
			}
			seen[path] = true
			stats.Paths = append(stats.Paths, path)
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, "-"):
			stats.LinesChanged++
		}
	}

	stats.FilesChanged = len(stats.Paths)
	return stats
}
