package core

import (
	"strconv"
	"strings"
)

// formatInt renders an integer value for display and log messages.
func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// formatIDs renders relation ids as a comma-separated list.
func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
