package record

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/resumer-app/resumer/internal/store"
)

func TestStatusTerminal(t *testing.T) {
	cases := map[FetchStatus]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusDone:       true,
		StatusFailed:     true,
	}

	for status, expect := range cases {
		if got := status.Terminal(); got != expect {
			t.Fatalf("status %q: expected terminal=%v, got %v", status, expect, got)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Key("abc-123"); got != "resume:abc-123" {
		t.Fatalf("unexpected key: %q", got)
	}
}

func TestNewAssignsIDAndEmptyJobs(t *testing.T) {
	rec := New(NewParams{JobTitle: "SRE", CompanyName: "Acme"})

	if rec.ID == "" {
		t.Fatalf("expected id to be assigned")
	}
	if rec.FetchStatus != StatusPending {
		t.Fatalf("expected pending status, got %q", rec.FetchStatus)
	}
	if rec.Jobs == nil || len(rec.Jobs) != 0 {
		t.Fatalf("expected empty non-nil jobs, got %v", rec.Jobs)
	}

	other := New(NewParams{})
	if other.ID == rec.ID {
		t.Fatalf("expected unique ids")
	}
}

func TestPendingStatusOmittedFromBlob(t *testing.T) {
	rec := New(NewParams{JobTitle: "SRE"})
	rec.Feedback = json.RawMessage(`{}`)

	value, err := rec.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The original record starts with a null status; the empty value must not
	// serialize as an empty string.
	if strings.Contains(value, "jobFetchStatus") {
		t.Fatalf("expected pending status to be absent from blob: %s", value)
	}

	rec.FetchStatus = StatusProcessing
	value, err = rec.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(value, `"jobFetchStatus":"processing"`) {
		t.Fatalf("expected processing status in blob: %s", value)
	}
}

func TestViewCapsJobs(t *testing.T) {
	kv := store.NewMemory()
	repo := NewRepository(kv)

	rec := New(NewParams{JobTitle: "SRE"})
	rec.Feedback = json.RawMessage(`{"overallScore": 75}`)
	rec.FetchStatus = StatusDone
	for i := 0; i < ViewJobsCap+5; i++ {
		rec.Jobs = append(rec.Jobs, JobMatch{Role: "SRE"})
	}

	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("saving record: %v", err)
	}

	view, err := repo.View(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(view.Jobs) != ViewJobsCap {
		t.Fatalf("expected %d jobs, got %d", ViewJobsCap, len(view.Jobs))
	}
	if view.Status != StatusDone {
		t.Fatalf("unexpected status: %q", view.Status)
	}
	if string(view.Feedback) != `{"overallScore": 75}` {
		t.Fatalf("unexpected feedback: %s", view.Feedback)
	}
}

func TestViewMissingRecord(t *testing.T) {
	repo := NewRepository(store.NewMemory())

	if _, err := repo.View(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing record")
	}
}

func TestLoadReportsAbsence(t *testing.T) {
	repo := NewRepository(store.NewMemory())

	rec, ok, err := repo.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || rec != nil {
		t.Fatalf("expected absence, got ok=%v rec=%+v", ok, rec)
	}
}
