package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/insight-relay/internal/application"
	domain "github.com/bryanwahyu/insight-relay/internal/domain/insights"
	"github.com/bryanwahyu/insight-relay/internal/logger"
	"github.com/bryanwahyu/insight-relay/internal/metrics"
)

// ErrHistoryDisabled is returned by the history queries when no repository is configured.
var ErrHistoryDisabled = errors.New("run history is not configured")

// Service drives one upstream job from probe to a terminal state.
// Runs and Archive are optional. Service holds no per-request state and is
// safe for concurrent use.
type Service struct {
	Upstream domain.Upstream
	Runs     domain.Repository
	Archive  domain.ArtifactStore
	Clock    application.Clock
	Policy   domain.PollPolicy
	Logger   *zap.Logger
}

// RunAnalysis probes the upstream, kicks off a job for req and polls it until
// the policy classifies its state as terminal. The first error aborts the run.
func (s *Service) RunAnalysis(ctx context.Context, req domain.Request) (domain.Result, error) {
	clock := s.clock()
	start := clock.Now()
	runID := domain.RunID(uuid.New().String())
	product, company := domain.InputText(req.Product), domain.InputText(req.Company)
	log := logger.OrNop(s.Logger).With(
		zap.String("run_id", string(runID)),
		zap.Stringp("product", product),
		zap.Stringp("company", company),
	)

	metrics.AnalysisRunsActive.Inc()
	defer metrics.AnalysisRunsActive.Dec()

	if err := s.Upstream.Probe(ctx); err != nil {
		s.observe(start, err)
		log.Warn("upstream probe failed", zap.Error(err))
		return domain.Result{}, fmt.Errorf("probe: %w", err)
	}

	handle, err := s.Upstream.Kickoff(ctx, req)
	if err != nil {
		s.observe(start, err)
		log.Warn("kickoff failed", zap.Error(err))
		return domain.Result{}, fmt.Errorf("kickoff: %w", err)
	}
	log = log.With(zap.String("kickoff_id", handle.KickoffID))
	log.Info("analysis kicked off")

	status, polls, err := s.poll(ctx, handle, log)

	run := &domain.Run{
		ID:         runID,
		KickoffID:  handle.KickoffID,
		Product:    product,
		Company:    company,
		Status:     domain.RunSucceeded,
		Polls:      polls,
		DurationMS: clock.Now().Sub(start).Milliseconds(),
		CreatedAt:  start,
	}
	if err != nil {
		run.Status = domain.RunFailed
		run.Error = err.Error()
		s.record(log, run)
		s.observe(start, err)
		log.Warn("analysis failed", zap.Int("polls", polls), zap.Error(err))
		return domain.Result{}, fmt.Errorf("poll %s: %w", handle.KickoffID, err)
	}

	run.Result = status.Result
	s.archive(ctx, log, run)
	s.record(log, run)
	s.observe(start, nil)
	log.Info("analysis completed", zap.Int("polls", polls), zap.Int64("duration_ms", run.DurationMS))

	return domain.Result{
		RunID:  string(runID),
		Status: domain.StateSuccess,
		Data:   status.Result,
	}, nil
}

// poll returns the successful status and the number of status calls made.
func (s *Service) poll(ctx context.Context, h domain.JobHandle, log *zap.Logger) (domain.JobStatus, int, error) {
	clock := s.clock()
	policy := s.Policy.WithDefaults()
	start := clock.Now()

	for polls := 1; ; polls++ {
		status, err := s.Upstream.Status(ctx, h)
		if err != nil {
			return domain.JobStatus{}, polls, err
		}

		outcome := policy.Classify(status.State)
		metrics.StatusPollsTotal.WithLabelValues(outcome.String()).Inc()

		switch outcome {
		case domain.OutcomeSuccess:
			if len(status.Result) == 0 {
				return domain.JobStatus{}, polls, domain.ErrMissingResult
			}
			return status, polls, nil
		case domain.OutcomeFailure:
			return domain.JobStatus{}, polls, &domain.JobFailedError{KickoffID: h.KickoffID, State: status.State}
		}

		waited := clock.Now().Sub(start)
		if (policy.MaxPolls > 0 && polls >= policy.MaxPolls) ||
			(policy.MaxWait > 0 && waited+policy.Interval > policy.MaxWait) {
			return domain.JobStatus{}, polls, &domain.PollLimitError{
				KickoffID: h.KickoffID,
				Polls:     polls,
				Waited:    waited,
				LastState: status.State,
			}
		}

		log.Debug("job pending", zap.String("state", string(status.State)), zap.Int("poll", polls))

		select {
		case <-ctx.Done():
			return domain.JobStatus{}, polls, ctx.Err()
		case <-clock.After(policy.Interval):
		}
	}
}

// archive stores the result JSON when an artifact store is configured.
// Failures are logged; the caller still gets its result.
func (s *Service) archive(ctx context.Context, log *zap.Logger, run *domain.Run) {
	if s.Archive == nil {
		return
	}
	body, err := json.Marshal(domain.Result{Status: domain.StateSuccess, Data: run.Result})
	if err != nil {
		log.Warn("encode archive payload", zap.Error(err))
		return
	}
	key := fmt.Sprintf("runs/%s/%s.json", run.CreatedAt.UTC().Format("2006/01/02"), run.ID)
	url, err := s.Archive.PutJSON(ctx, key, body)
	if err != nil {
		log.Warn("archive result failed", zap.String("key", key), zap.Error(err))
		return
	}
	run.ArtifactURL = url
}

// record persists the run when a repository is configured. It uses a detached
// context so a client that went away still leaves an audit row behind.
func (s *Service) record(log *zap.Logger, run *domain.Run) {
	if s.Runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Runs.Save(ctx, run); err != nil {
		log.Warn("save run failed", zap.Error(err))
	}
}

func (s *Service) observe(start time.Time, err error) {
	metrics.AnalysisRunDuration.Observe(s.clock().Now().Sub(start).Seconds())
	metrics.AnalysisRunsTotal.WithLabelValues(outcomeLabel(err)).Inc()
}

// ListRuns returns a page of stored runs, newest first.
func (s *Service) ListRuns(ctx context.Context, page, pageSize int) ([]*domain.Run, error) {
	if s.Runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.Runs.Paginate(ctx, page, pageSize)
}

// GetRun returns one stored run.
func (s *Service) GetRun(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	if s.Runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.Runs.Get(ctx, id)
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

func outcomeLabel(err error) string {
	var (
		upErr    *domain.UpstreamError
		jobErr   *domain.JobFailedError
		limitErr *domain.PollLimitError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &limitErr):
		return "poll_limit"
	case errors.As(err, &jobErr):
		return "job_failed"
	case errors.Is(err, domain.ErrMissingJobHandle), errors.Is(err, domain.ErrMissingResult),
		errors.Is(err, domain.ErrMalformedResponse):
		return "protocol_error"
	case errors.As(err, &upErr):
		return "upstream_error"
	default:
		return "error"
	}
}
