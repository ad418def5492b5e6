package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/resumer-app/resumer/internal/extraction"
	"github.com/resumer-app/resumer/internal/record"
	"github.com/resumer-app/resumer/internal/store"
	"go.uber.org/zap"
)

type stubAssistant struct {
	feedback    string
	feedbackErr error
}

func (s *stubAssistant) Feedback(_ context.Context, _, _ string) (string, error) {
	if s.feedbackErr != nil {
		return "", s.feedbackErr
	}
	return s.feedback, nil
}

func (s *stubAssistant) Chat(_ context.Context, _, _ string) (string, error) {
	return "", errors.New("not used")
}

type stubExtractor struct {
	info     *record.ExtractedInfo
	err      error
	panicMsg string
}

func (s *stubExtractor) Extract(_ context.Context, _, fallbackTitle string) (*record.ExtractedInfo, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return &record.ExtractedInfo{Title: fallbackTitle, Skills: []string{}}, s.err
	}
	return s.info, nil
}

type stubMatcher struct {
	matches  []record.JobMatch
	err      error
	lastRole string
}

func (s *stubMatcher) RequestMatches(_ context.Context, role string, _ []string) ([]record.JobMatch, error) {
	s.lastRole = role
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

func makeMatches(n int) []record.JobMatch {
	matches := make([]record.JobMatch, 0, n)
	for i := 0; i < n; i++ {
		matches = append(matches, record.JobMatch{
			Role:    fmt.Sprintf("Role %d", i),
			Company: "Acme",
			Score:   0.9,
		})
	}
	return matches
}

func historyStatuses(t *testing.T, kv *store.Memory, id string) []record.FetchStatus {
	t.Helper()

	writes := kv.History(record.Key(id))
	statuses := make([]record.FetchStatus, 0, len(writes))
	for _, value := range writes {
		rec, err := record.Unmarshal(value)
		if err != nil {
			t.Fatalf("unmarshal history entry: %v", err)
		}
		statuses = append(statuses, rec.FetchStatus)
	}
	return statuses
}

func newOrchestrator(kv *store.Memory, assistant *stubAssistant, ext *stubExtractor, jobs *stubMatcher) *Orchestrator {
	return New(record.NewRepository(kv), assistant, ext, jobs, zap.NewNop())
}

func TestAnalyzeRunsPipelineToDone(t *testing.T) {
	kv := store.NewMemory()
	assistant := &stubAssistant{feedback: "```json\n{\"overallScore\": 80}\n```"}
	ext := &stubExtractor{info: &record.ExtractedInfo{Title: "Backend Engineer", Skills: []string{"Go"}}}
	jobs := &stubMatcher{matches: makeMatches(45)}

	o := newOrchestrator(kv, assistant, ext, jobs)

	rec, err := o.Analyze(context.Background(), AnalyzeRequest{
		ImagePath: "storage://resume.png",
		JobTitle:  "Engineer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	statuses := historyStatuses(t, kv, rec.ID)
	expected := []record.FetchStatus{
		record.StatusPending,
		record.StatusProcessing,
		record.StatusProcessing,
		record.StatusDone,
	}
	if len(statuses) != len(expected) {
		t.Fatalf("expected %d writes, got %d (%v)", len(expected), len(statuses), statuses)
	}
	for i, status := range expected {
		if statuses[i] != status {
			t.Fatalf("write %d: expected status %q, got %q", i, status, statuses[i])
		}
	}

	final, ok, err := record.NewRepository(kv).Load(context.Background(), rec.ID)
	if err != nil || !ok {
		t.Fatalf("loading final record: ok=%v err=%v", ok, err)
	}

	if final.FetchStatus != record.StatusDone {
		t.Fatalf("expected done, got %q", final.FetchStatus)
	}
	if len(final.Jobs) != 30 {
		t.Fatalf("expected jobs capped to 30, got %d", len(final.Jobs))
	}
	if final.ExtractedInfo == nil || final.ExtractedInfo.Title != "Backend Engineer" {
		t.Fatalf("unexpected extracted info: %+v", final.ExtractedInfo)
	}
	if string(final.Feedback) != `{"overallScore": 80}` {
		t.Fatalf("unexpected feedback: %s", final.Feedback)
	}
}

func TestDoneWrittenTogetherWithJobs(t *testing.T) {
	kv := store.NewMemory()
	assistant := &stubAssistant{feedback: `{"ok": true}`}
	ext := &stubExtractor{info: &record.ExtractedInfo{Title: "SRE", Skills: []string{"K8s"}}}
	jobs := &stubMatcher{matches: makeMatches(3)}

	o := newOrchestrator(kv, assistant, ext, jobs)

	rec, err := o.Analyze(context.Background(), AnalyzeRequest{JobTitle: "SRE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	for _, value := range kv.History(record.Key(rec.ID)) {
		written, err := record.Unmarshal(value)
		if err != nil {
			t.Fatalf("unmarshal write: %v", err)
		}
		if written.FetchStatus == record.StatusDone && len(written.Jobs) == 0 {
			t.Fatalf("observed done status without jobs in the same write")
		}
		if written.FetchStatus != record.StatusDone && len(written.Jobs) != 0 {
			t.Fatalf("observed jobs before the done transition")
		}
	}
}

func TestExtractionFallbackStillRequestsMatches(t *testing.T) {
	kv := store.NewMemory()
	assistant := &stubAssistant{feedback: `{"ok": true}`}
	ext := &stubExtractor{err: extraction.ErrExtractionFailed}
	jobs := &stubMatcher{matches: makeMatches(1)}

	o := newOrchestrator(kv, assistant, ext, jobs)

	rec, err := o.Analyze(context.Background(), AnalyzeRequest{JobTitle: "Platform Engineer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	if jobs.lastRole != "Platform Engineer" {
		t.Fatalf("expected fallback role to reach the job service, got %q", jobs.lastRole)
	}

	final, _, err := record.NewRepository(kv).Load(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("loading final record: %v", err)
	}
	if final.FetchStatus != record.StatusDone {
		t.Fatalf("expected done after fallback, got %q", final.FetchStatus)
	}
	if final.ExtractedInfo == nil || final.ExtractedInfo.Title != "Platform Engineer" || len(final.ExtractedInfo.Skills) != 0 {
		t.Fatalf("unexpected fallback info: %+v", final.ExtractedInfo)
	}
}

func TestMatcherFailureWritesFailed(t *testing.T) {
	kv := store.NewMemory()
	assistant := &stubAssistant{feedback: `{"ok": true}`}
	ext := &stubExtractor{info: &record.ExtractedInfo{Title: "SRE", Skills: []string{}}}
	jobs := &stubMatcher{err: errors.New("bad status: 502 Bad Gateway")}

	o := newOrchestrator(kv, assistant, ext, jobs)

	rec, err := o.Analyze(context.Background(), AnalyzeRequest{JobTitle: "SRE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	final, _, err := record.NewRepository(kv).Load(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("loading final record: %v", err)
	}
	if final.FetchStatus != record.StatusFailed {
		t.Fatalf("expected failed, got %q", final.FetchStatus)
	}
	if len(final.Jobs) != 0 {
		t.Fatalf("expected empty jobs on failure, got %d", len(final.Jobs))
	}

	statuses := historyStatuses(t, kv, rec.ID)
	last := statuses[len(statuses)-1]
	if last != record.StatusFailed {
		t.Fatalf("expected terminal failed write, got %q", last)
	}
}

func TestPanicBecomesFailedWrite(t *testing.T) {
	kv := store.NewMemory()
	assistant := &stubAssistant{feedback: `{"ok": true}`}
	ext := &stubExtractor{panicMsg: "boom"}
	jobs := &stubMatcher{}

	o := newOrchestrator(kv, assistant, ext, jobs)

	rec, err := o.Analyze(context.Background(), AnalyzeRequest{JobTitle: "SRE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Wait()

	final, _, err := record.NewRepository(kv).Load(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("loading final record: %v", err)
	}
	if final.FetchStatus != record.StatusFailed {
		t.Fatalf("expected failed after panic, got %q", final.FetchStatus)
	}
}

func TestAnalyzeFeedbackErrorStartsNothing(t *testing.T) {
	kv := store.NewMemory()
	assistant := &stubAssistant{feedbackErr: errors.New("no response")}

	o := newOrchestrator(kv, assistant, &stubExtractor{}, &stubMatcher{})

	if _, err := o.Analyze(context.Background(), AnalyzeRequest{JobTitle: "SRE"}); err == nil {
		t.Fatalf("expected error from failed feedback")
	}
	o.Wait()

	if keys := kv.Keys(); len(keys) != 0 {
		t.Fatalf("expected no records, got %v", keys)
	}
}

func TestAnalyzeRejectsInvalidFeedbackJSON(t *testing.T) {
	kv := store.NewMemory()
	assistant := &stubAssistant{feedback: "I am sorry, I cannot help with that."}

	o := newOrchestrator(kv, assistant, &stubExtractor{}, &stubMatcher{})

	if _, err := o.Analyze(context.Background(), AnalyzeRequest{JobTitle: "SRE"}); err == nil {
		t.Fatalf("expected error for unparseable feedback")
	}
	o.Wait()
}
