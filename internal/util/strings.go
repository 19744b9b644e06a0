package util

import (
	"strconv"
	"strings"
)

// Fields splits a space-separated list into a set.
func Fields(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(s) {
		set[f] = struct{}{}
	}
	return set
}

// FormatUserID renders a numeric user ID the way it appears in JWT subjects
// and audit records.
func FormatUserID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
