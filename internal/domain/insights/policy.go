package insights

import (
	"strings"
	"time"
)

const DefaultPollInterval = 2 * time.Second

// Outcome classifies a polled state.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "pending"
	}
}

// PollPolicy controls the status loop. Zero MaxPolls or MaxWait means unbounded.
type PollPolicy struct {
	Interval      time.Duration
	MaxPolls      int
	MaxWait       time.Duration
	SuccessStates []string
	FailureStates []string
}

// WithDefaults fills the interval and success set when they are unset.
func (p PollPolicy) WithDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if len(p.SuccessStates) == 0 {
		p.SuccessStates = []string{string(StateSuccess)}
	}
	return p
}

// Classify maps a state onto success, failure or pending.
// Anything not listed, including an empty state, is pending.
func (p PollPolicy) Classify(s JobState) Outcome {
	if matchState(p.SuccessStates, s) {
		return OutcomeSuccess
	}
	if matchState(p.FailureStates, s) {
		return OutcomeFailure
	}
	return OutcomePending
}

func matchState(states []string, s JobState) bool {
	for _, v := range states {
		if strings.TrimSpace(v) == string(s) {
			return true
		}
	}
	return false
}
