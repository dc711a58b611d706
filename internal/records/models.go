package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents where a check record sits in the pipeline.
type Status string

const (
	StatusPending             Status = "pending"
	StatusInProgress          Status = "in_progress"
	StatusDownloaded          Status = "downloaded"
	StatusConverted           Status = "converted"
	StatusRawImageSaved       Status = "raw_image_saved"
	StatusTextExtracted       Status = "text_extracted"
	StatusPayeeMatchAttempted Status = "payee_match_attempted"
	StatusProcessed           Status = "processed"
	StatusFailed              Status = "failed"
)

// pipeline lists the forward statuses in order.
var pipeline = []Status{
	StatusPending,
	StatusInProgress,
	StatusDownloaded,
	StatusConverted,
	StatusRawImageSaved,
	StatusTextExtracted,
	StatusPayeeMatchAttempted,
	StatusProcessed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(pipeline)+1)
	for _, status := range pipeline {
		set[status] = struct{}{}
	}
	set[StatusFailed] = struct{}{}
	return set
}()

// AllStatuses returns every status in pipeline order followed by failed.
func AllStatuses() []Status {
	out := make([]Status, 0, len(pipeline)+1)
	out = append(out, pipeline...)
	return append(out, StatusFailed)
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no stage will act on the status again.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Rank is the status position along the pipeline; failed ranks -1.
func (s Status) Rank() int {
	for i, status := range pipeline {
		if status == s {
			return i
		}
	}
	return -1
}

// BatchStatus represents the lifecycle of a batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchInProgress BatchStatus = "in_progress"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	// BatchBlocked holds records no stage can move. It is only resumed on
	// request, never adopted as stale.
	BatchBlocked BatchStatus = "blocked"
)

// PayeeMatch is the outcome stored on an OCR result.
type PayeeMatch string

const (
	PayeeMatchPending PayeeMatch = "pending"
	PayeeMatchYes     PayeeMatch = "yes"
	PayeeMatchNo      PayeeMatch = "no"
)

// ProcessingRaw tags images and OCR results produced without preprocessing.
const ProcessingRaw = "raw"

// Record is one check reference moving through the pipeline.
type Record struct {
	ID            string
	Seq           int64
	AccountNumber string
	CheckNumber   string
	Amount        decimal.NullDecimal
	IssueDate     *time.Time
	Payee1        string
	Payee2        string
	Status        Status
	BatchID       string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Candidates returns the non-empty expected payee names.
func (r *Record) Candidates() []string {
	out := make([]string, 0, 2)
	for _, name := range []string{r.Payee1, r.Payee2} {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Label is a short human-readable identifier for logs and tables.
func (r *Record) Label() string {
	return fmt.Sprintf("%s/%s", r.AccountNumber, r.CheckNumber)
}

// NewRecord holds the ingestion fields of a record.
type NewRecord struct {
	AccountNumber string
	CheckNumber   string
	Amount        decimal.NullDecimal
	IssueDate     *time.Time
	Payee1        string
	Payee2        string
}

// Batch is a bounded group of records claimed together.
type Batch struct {
	ID               string
	Status           BatchStatus
	RecordCount      int
	FailedRecords    int
	ProcessedRecords int
	ErrorMessage     string
	CreatedAt        time.Time
	HeartbeatAt      *time.Time
	CompletedAt      *time.Time
}

// Document is the source PDF fetched for a record.
type Document struct {
	ID        string
	RecordID  string
	Data      []byte
	Size      int64
	Checksum  string
	CreatedAt time.Time
}

// Image is one rendered page of a record's document.
type Image struct {
	ID             string
	RecordID       string
	DocumentID     string
	Page           int
	ProcessingType string
	Data           []byte
	FilePath       string
	CreatedAt      time.Time
}

// OCRInput is the text recognized for one image.
type OCRInput struct {
	ImageID           string
	PreprocessingType string
	Text              string
}

// PossibleMatch describes the best window found for a candidate payee.
type PossibleMatch struct {
	Candidate string  `json:"candidate"`
	Score     float64 `json:"score"`
	Window    string  `json:"window"`
}

// MatchOutcome is the persisted result of payee matching for one OCR result.
type MatchOutcome struct {
	PayeeMatch PayeeMatch
	Matched    []string
	Possible   []PossibleMatch
	// Best is the highest scoring candidate regardless of classification.
	Best *PossibleMatch
}

// OCRResult is the text extracted from one image and its payee outcome.
type OCRResult struct {
	ID                string
	ImageID           string
	RecordID          string
	Page              int
	PreprocessingType string
	ExtractedText     string
	PayeeMatch        PayeeMatch
	Matched           []string
	Possible          []PossibleMatch
	Best              *PossibleMatch
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StatusCount pairs a status with the number of records in it.
type StatusCount struct {
	Status Status
	Count  int
}
