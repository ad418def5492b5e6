package record

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ViewJobsCap bounds how many recommended jobs the viewer surface returns,
// regardless of what a writer managed to persist.
const ViewJobsCap = 30

// FetchStatus is the lifecycle field of the background job-matching pipeline.
// The empty value maps to the JSON null the record starts with.
type FetchStatus string

const (
	StatusPending    FetchStatus = ""
	StatusProcessing FetchStatus = "processing"
	StatusDone       FetchStatus = "done"
	StatusFailed     FetchStatus = "failed"
)

// Terminal reports whether no further transition can leave the status.
func (s FetchStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// ResumeRecord is the unit of durable state, one per analysis request. The
// whole record is serialized on every write since the store has no partial
// update primitive.
type ResumeRecord struct {
	ID             string          `json:"id"`
	ResumePath     string          `json:"resumePath"`
	ImagePath      string          `json:"imagePath"`
	CompanyName    string          `json:"companyName"`
	JobTitle       string          `json:"jobTitle"`
	JobDescription string          `json:"jobDescription"`
	Feedback       json.RawMessage `json:"feedback"`
	ExtractedInfo  *ExtractedInfo  `json:"extractedInfo,omitempty"`
	FetchStatus    FetchStatus     `json:"jobFetchStatus,omitempty"`
	Jobs           []JobMatch      `json:"recommendedJobs"`
}

// ExtractedInfo holds the signals derived from the resume by the extraction
// stage: a canonical job title and a flat, order-preserving skill list.
type ExtractedInfo struct {
	Title  string   `json:"title"`
	Skills []string `json:"skills"`
}

// JobMatch is one recommended posting as normalized by the requester.
type JobMatch struct {
	Role     string   `json:"role"`
	Company  string   `json:"company"`
	Skills   []string `json:"skills"`
	Location string   `json:"location"`
	URL      string   `json:"url"`
	Score    float64  `json:"score"`
}

// NewParams carries the user-supplied context captured at creation. All of it
// is immutable for the lifetime of the record.
type NewParams struct {
	ResumePath     string
	ImagePath      string
	CompanyName    string
	JobTitle       string
	JobDescription string
}

// New creates a record with a fresh id, pending status and no jobs.
func New(params NewParams) *ResumeRecord {
	return &ResumeRecord{
		ID:             uuid.NewString(),
		ResumePath:     params.ResumePath,
		ImagePath:      params.ImagePath,
		CompanyName:    params.CompanyName,
		JobTitle:       params.JobTitle,
		JobDescription: params.JobDescription,
		Jobs:           []JobMatch{},
	}
}

// Key returns the store key for a resume id.
func Key(id string) string {
	return fmt.Sprintf("resume:%s", id)
}

// Marshal serializes the whole record for a store write.
func (r *ResumeRecord) Marshal() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal record %s: %w", r.ID, err)
	}
	return string(data), nil
}

// Unmarshal parses a whole-record store value.
func Unmarshal(value string) (*ResumeRecord, error) {
	var rec ResumeRecord
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}
