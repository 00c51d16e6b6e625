package middleware

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// Page reads page/page_size query params, clamping to sane defaults
func Page(q url.Values) (page, size int) {
	page, _ = strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	size = ValidateLimit(atoi(q.Get("page_size")))
	return page, size
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateRunID checks that id is a UUID as issued for every run
func ValidateRunID(id string) error {
	if id == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid run ID format")
	}
	return nil
}
