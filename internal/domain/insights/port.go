package insights

import "context"

// Upstream port (interface to the asynchronous analysis service)
type Upstream interface {
	Probe(ctx context.Context) error
	Kickoff(ctx context.Context, req Request) (JobHandle, error)
	Status(ctx context.Context, h JobHandle) (JobStatus, error)
}

// Repository port for persisting and querying runs
type Repository interface {
	Save(ctx context.Context, r *Run) error
	Get(ctx context.Context, id RunID) (*Run, error)
	Paginate(ctx context.Context, page, pageSize int) ([]*Run, error)
}

// ArtifactStore port for archiving run results
type ArtifactStore interface {
	PutJSON(ctx context.Context, key string, data []byte) (string, error)
}
