package insights

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingJobHandle means the kickoff response carried no kickoff_id.
	ErrMissingJobHandle = errors.New("no kickoff_id returned from the kickoff endpoint")

	// ErrMissingResult means the job reported success without a result field.
	ErrMissingResult = errors.New("status reported success without a result")

	// ErrMalformedResponse means an upstream 2xx body was not the expected JSON.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrRunNotFound is returned by repositories when no run matches the id.
	ErrRunNotFound = errors.New("run not found")
)

// UpstreamError is a transport failure or non-2xx answer from the upstream service.
// StatusCode is zero when the request never got a response.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// HTTPStatusCode reports the upstream status, zero for transport errors.
func (e *UpstreamError) HTTPStatusCode() int { return e.StatusCode }

// JobFailedError is returned when the upstream reports a state configured as terminal failure.
type JobFailedError struct {
	KickoffID string
	State     JobState
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s finished in state %q", e.KickoffID, e.State)
}

// PollLimitError is returned when the poll policy gives up before a terminal state.
type PollLimitError struct {
	KickoffID string
	Polls     int
	Waited    time.Duration
	LastState JobState
}

func (e *PollLimitError) Error() string {
	return fmt.Sprintf("job %s still %q after %d polls (%s)", e.KickoffID, e.LastState, e.Polls, e.Waited)
}
