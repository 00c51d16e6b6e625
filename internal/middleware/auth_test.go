package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		keys    []string
		headers map[string]string
		want    int
	}{
		{"disabled without keys", nil, nil, http.StatusNoContent},
		{"missing key", []string{"k1"}, nil, http.StatusUnauthorized},
		{"bearer key", []string{"k1", "k2"}, map[string]string{"Authorization": "Bearer k2"}, http.StatusNoContent},
		{"raw key", []string{"k1"}, map[string]string{"Authorization": "k1"}, http.StatusNoContent},
		{"x-api-key header", []string{"k1"}, map[string]string{"X-API-Key": "k1"}, http.StatusNoContent},
		{"wrong key", []string{"k1"}, map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/crewai", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(tt.keys)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
