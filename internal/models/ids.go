package models

import "strings"

// NormalizeID returns the canonical unhyphenated, lower-case form of a record id.
// Notion hands out ids both as 8-4-4-4-12 and as 32 plain hex characters.
func NormalizeID(id string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
}

// HyphenateID returns the 8-4-4-4-12 form of an id. Ids that are not
// 32 characters long after normalization are returned normalized.
func HyphenateID(id string) string {
	n := NormalizeID(id)
	if len(n) != 32 {
		return n
	}
	return n[0:8] + "-" + n[8:12] + "-" + n[12:16] + "-" + n[16:20] + "-" + n[20:32]
}

// SameID reports whether two ids name the same record
func SameID(a, b string) bool {
	return NormalizeID(a) == NormalizeID(b)
}

// UniqueIDs normalizes ids and drops duplicates, keeping first-seen order
func UniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n := NormalizeID(id)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
