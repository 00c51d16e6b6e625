package insights

import (
	"bytes"
	"encoding/json"
	"time"
)

// Request is the product/company pair forwarded to the upstream crew.
// Values are passed through as given, whatever their JSON type; nil fields are
// sent as JSON null.
type Request struct {
	Product json.RawMessage `json:"product"`
	Company json.RawMessage `json:"company"`
}

// InputText renders one request field for logs and run history: a JSON string
// is unquoted, null or absent is nil, and any other value keeps its JSON text.
func InputText(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	return &s
}

// JobHandle identifies one upstream kickoff.
type JobHandle struct {
	KickoffID string
}

// JobState is the upstream lifecycle state, e.g. PENDING or SUCCESS.
type JobState string

const (
	StatePending JobState = "PENDING"
	StateSuccess JobState = "SUCCESS"
)

// JobStatus is one status poll response. Result is only set once the job succeeded.
type JobStatus struct {
	State  JobState
	Result json.RawMessage
}

// Result is the terminal value returned to the caller.
type Result struct {
	RunID  string          `json:"-"`
	Status JobState        `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// RunID identifier type
type RunID string

// RunStatus enum
type RunStatus string

const (
	RunSucceeded RunStatus = "SUCCESS"
	RunFailed    RunStatus = "FAILED"
)

// Run is the persisted record of one analysis, kept for auditing and retrieval.
type Run struct {
	ID          RunID           `json:"id"`
	KickoffID   string          `json:"kickoff_id"`
	Product     *string         `json:"product"`
	Company     *string         `json:"company"`
	Status      RunStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	ArtifactURL string          `json:"artifact_url,omitempty"`
	Polls       int             `json:"polls"`
	DurationMS  int64           `json:"duration_ms"`
	CreatedAt   time.Time       `json:"created_at"`
}
