// Package filter cleans, deduplicates, and allow/deny-filters aggregated
// channel lists before validation and catalog generation.
package filter

import (
	"regexp"
	"strings"

	"github.com/streamlens/streamlens/internal/core"
)

// Rules control which channels survive aggregation.
type Rules struct {
	// Allow keeps only channels whose cleaned name contains one of these
	// terms. Empty means allow everything.
	Allow []string
	// Deny drops channels whose cleaned name contains one of these terms.
	// Deny wins over Allow.
	Deny []string
	// DefaultGroup is assigned to channels without a group-title.
	DefaultGroup string
}

var (
	qualityPattern = regexp.MustCompile(`(?i)\b(FHD|UHD|HD|SD|4K|8K|H265|HEVC|50 FPS|60 FPS)\b`)
	bracketPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	spacePattern   = regexp.MustCompile(`\s{2,}`)
)

// CleanName strips quality markers and bracketed annotations that upstream
// playlists bolt onto channel names.
func CleanName(name string) string {
	cleaned := bracketPattern.ReplaceAllString(name, " ")
	cleaned = qualityPattern.ReplaceAllString(cleaned, " ")
	cleaned = spacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// Apply cleans names, applies the allow/deny rules, assigns default groups,
// and deduplicates by stream URL. The first occurrence of a URL wins, so
// source order expresses priority.
func Apply(channels []core.Channel, rules Rules) []core.Channel {
	out := make([]core.Channel, 0, len(channels))
	seen := make(map[string]struct{}, len(channels))

	for _, ch := range channels {
		url := strings.TrimSpace(ch.URL)
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}

		name := CleanName(ch.Name)
		if name == "" {
			continue
		}
		if !allowed(name, rules) {
			continue
		}

		seen[url] = struct{}{}
		ch.Name = name
		ch.URL = url
		if ch.Group == "" {
			ch.Group = rules.DefaultGroup
		}
		out = append(out, ch)
	}

	return out
}

// Groups returns the distinct group names in first-seen order.
func Groups(channels []core.Channel) []string {
	seen := make(map[string]struct{})
	groups := make([]string, 0)
	for _, ch := range channels {
		if ch.Group == "" {
			continue
		}
		if _, ok := seen[ch.Group]; ok {
			continue
		}
		seen[ch.Group] = struct{}{}
		groups = append(groups, ch.Group)
	}
	return groups
}

func allowed(name string, rules Rules) bool {
	lower := strings.ToLower(name)
	for _, term := range rules.Deny {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	if len(rules.Allow) == 0 {
		return true
	}
	for _, term := range rules.Allow {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
