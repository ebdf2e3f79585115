package main

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of non [a-z0-9] characters into a single
// hyphen. It is lossy: "AI: Code-Gen" and "AI Code Gen" produce the same slug. Input with
// no ASCII letters or digits maps to a stable hash-based slug so it never comes back empty.
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		h := fnv.New32a()
		h.Write([]byte(strings.TrimSpace(s)))
		return fmt.Sprintf("topic-%08x", h.Sum32())
	}
	return slug
}

func hasSlugChars(s string) bool {
	return nonSlugChars.ReplaceAllString(strings.ToLower(s), "") != ""
}

// normalizeKeyword is the uniqueness key for trending topics.
func normalizeKeyword(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
}
