// Package models provides codecs for the text-encoded feedback sub-fields.
//
// Category scores are stored as a minified JSON array string, strengths and
// improvement areas as newline-joined lines each prefixed with "- ". These
// exact shapes are preserved for compatibility with existing stored records,
// so readers decode defensively: a malformed or absent value degrades to an
// empty collection rather than propagating an error.
package models

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ParseCategoryScores decodes the stored categoryScores JSON string.
// Empty input yields an empty slice; malformed JSON is logged and also
// yields an empty slice.
func ParseCategoryScores(raw string) []CategoryScore {
	if strings.TrimSpace(raw) == "" {
		return []CategoryScore{}
	}
	var scores []CategoryScore
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		slog.Warn("ParseCategoryScores: malformed stored value, degrading to empty", "error", err)
		return []CategoryScore{}
	}
	if scores == nil {
		return []CategoryScore{}
	}
	return scores
}

// EncodeCategoryScores renders category scores as the minified JSON array
// shape stored on feedback records.
func EncodeCategoryScores(scores []CategoryScore) (string, error) {
	if scores == nil {
		scores = []CategoryScore{}
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseBulletList splits a "- "-prefixed newline-joined block into its items.
// Empty input yields an empty slice. Only a trailing carriage return and the
// "- " prefix are stripped from each line; lines without the prefix are kept
// as-is, matching how stored records are rendered.
func ParseBulletList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	lines := strings.Split(raw, "\n")
	items := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		line = strings.TrimPrefix(line, "- ")
		items = append(items, line)
	}
	return items
}

// FormatBulletList renders items as the "- "-prefixed newline-joined shape
// used for stored strengths/areas and for the transport question variable.
func FormatBulletList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}
