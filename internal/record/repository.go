package record

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/resumer-app/resumer/internal/store"
)

// Repository reads and writes resume records through the KV store. Writers
// must always extend the latest in-memory copy they hold; the store offers no
// partial updates and the repository does not merge.
type Repository struct {
	kv store.KV
}

func NewRepository(kv store.KV) *Repository {
	return &Repository{kv: kv}
}

// Load fetches a record by id. The second return is false when the record
// does not exist yet, which readers treat as "not created" rather than an
// error.
func (r *Repository) Load(ctx context.Context, id string) (*ResumeRecord, bool, error) {
	value, ok, err := r.kv.Get(ctx, Key(id))
	if err != nil {
		return nil, false, fmt.Errorf("load record %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}

	rec, err := Unmarshal(value)
	if err != nil {
		return nil, false, err
	}

	return rec, true, nil
}

// Save persists the whole record under its key.
func (r *Repository) Save(ctx context.Context, rec *ResumeRecord) error {
	value, err := rec.Marshal()
	if err != nil {
		return err
	}

	if err := r.kv.Set(ctx, Key(rec.ID), value); err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}

	return nil
}

// View is the read surface consumed by viewers: the fields needed for
// display and nothing else.
type View struct {
	Feedback json.RawMessage `json:"feedback"`
	Jobs     []JobMatch      `json:"recommendedJobs"`
	Status   FetchStatus     `json:"jobFetchStatus,omitempty"`
}

// View returns the display projection of a record, with jobs capped.
func (r *Repository) View(ctx context.Context, id string) (*View, error) {
	rec, ok, err := r.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("record %s not found", id)
	}

	jobs := rec.Jobs
	if len(jobs) > ViewJobsCap {
		jobs = jobs[:ViewJobsCap]
	}
	if jobs == nil {
		jobs = []JobMatch{}
	}

	return &View{
		Feedback: rec.Feedback,
		Jobs:     jobs,
		Status:   rec.FetchStatus,
	}, nil
}
