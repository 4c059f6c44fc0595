package stringslices

import "strings"

// UniqueIgnoreCase keeps the first occurrence of each case-insensitive value.
func UniqueIgnoreCase(a []string) []string {
	seen := make(map[string]struct{}, len(a))
	res := make([]string, 0, len(a))
	for _, s := range a {
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		res = append(res, s)
	}
	return res
}
