package middleware

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage(t *testing.T) {
	tests := []struct {
		query    string
		wantPage int
		wantSize int
	}{
		{"", 1, 20},
		{"page=3&page_size=50", 3, 50},
		{"page=-1&page_size=1000", 1, 100},
		{"page=abc&page_size=xyz", 1, 20},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		page, size := Page(q)
		assert.Equal(t, tt.wantPage, page, tt.query)
		assert.Equal(t, tt.wantSize, size, tt.query)
	}
}

func TestValidateRunID(t *testing.T) {
	assert.NoError(t, ValidateRunID("6f1c3f9e-2b7a-4d0e-9a51-0c8f3d2e1b44"))
	assert.Error(t, ValidateRunID(""))
	assert.Error(t, ValidateRunID("run-1"))
}
