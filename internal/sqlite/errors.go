package sqlite

import "strings"

func isStorageFull(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database or disk is full")
}
