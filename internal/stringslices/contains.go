package stringslices

import "strings"

func ContainsIgnoreCase(a []string, s string) bool {
	return IndexIgnoreCase(a, s) >= 0
}

func IndexIgnoreCase(a []string, s string) int {
	for i, v := range a {
		if strings.EqualFold(v, s) {
			return i
		}
	}
	return -1
}
