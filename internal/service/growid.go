package service

import (
	"regexp"
	"strings"
)

var growidPattern = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeGrowID lowercases a raw display name and strips everything
// outside [a-z0-9]. An empty result means the name is unusable.
func NormalizeGrowID(raw string) string {
	return growidPattern.ReplaceAllString(strings.ToLower(raw), "")
}
