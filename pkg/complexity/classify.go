package complexity

import (
	"strings"

	"github.com/zen-systems/reviewroute/pkg/review"
)

// Thresholds are the size cutoffs for the deterministic classification.
type Thresholds struct {
	HighFiles   int
	HighLines   int
	MediumFiles int
	MediumLines int
}

// DefaultThresholds returns the standard size cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighFiles:   10,
		HighLines:   500,
		MediumFiles: 3,
		MediumLines: 150,
	}
}

// sensitiveFragments marks paths whose modification always warrants the
// deepest review: credential stores, access-control configuration, and
// secret material. Matching is by path segment or filename fragment.
var sensitiveFragments = []string{
	"secrets",
	"credentials",
	"credential",
	".env",
	".pem",
	".key",
	"id_rsa",
	"htpasswd",
	"authorized_keys",
	"iam",
	"rbac",
	"permissions",
	"access-control",
	"auth/",
}

// SensitivePath returns the first path that matches the sensitivity
// denylist, if any.
func SensitivePath(paths []string) (string, bool) {
	for _, path := range paths {
		lower := strings.ToLower(path)
		for _, fragment := range sensitiveFragments {
			if strings.Contains(lower, fragment) {
				return path, true
			}
		}
	}
	return "", false
}

// Classify maps diff statistics to a complexity level using the default
// thresholds. It is a pure function of its input.
func Classify(stats review.DiffStats) Level {
	return ClassifyWith(stats, DefaultThresholds())
}

// ClassifyWith applies the rules in order: sensitive paths force High
// regardless of size, then the large cutoffs, then the moderate ones.
func ClassifyWith(stats review.DiffStats, th Thresholds) Level {
	if _, hit := SensitivePath(stats.Paths); hit {
		return High
	}
	if stats.FilesChanged > th.HighFiles || stats.LinesChanged > th.HighLines {
		return High
	}
	if stats.FilesChanged > th.MediumFiles || stats.LinesChanged > th.MediumLines {
		return Medium
	}
	return Low
}
