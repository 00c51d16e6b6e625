package postgres

import (
	"database/sql"
	"encoding/json"
	"strings"
)

// nullString maps nil or blank values to SQL NULL
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// resultJSON keeps the column valid JSON; empty results are stored as NULL.
func resultJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	if !json.Valid(raw) {
		b, _ := json.Marshal(map[string]string{"raw": string(raw)})
		return sql.NullString{String: string(b), Valid: true}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
