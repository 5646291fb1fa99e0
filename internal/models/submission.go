package models

// SubmissionType discriminates the originating record kind of a unified
// submission row.
type SubmissionType string

const (
	SubmissionEvent    SubmissionType = "Event"
	SubmissionTraining SubmissionType = "Training"
	SubmissionAward    SubmissionType = "Award"
	SubmissionLog      SubmissionType = "Log"
)

// ReviewStatus is the single review-state enum every source record shape is
// normalised into. Events report approval as a boolean upstream while the
// other record kinds carry a free-form status string.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "Pending"
	StatusApproved ReviewStatus = "Approved"
	StatusRejected ReviewStatus = "Rejected"
)

// Submission is the unified view model rendered by the pending-review
// surface. It is derived, never persisted, and immutable once constructed:
// approve/reject actions refetch the whole list instead of patching a row
// in place.
type Submission struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Type          SubmissionType `json:"type"`
	SubmittedBy   string         `json:"submittedBy"`
	Status        ReviewStatus   `json:"status"`
	DateSubmitted string         `json:"dateSubmitted"`
	Description   string         `json:"description,omitempty"`

	// Type-specific fields. Only the variant's own fields are populated;
	// render sites switch on Type.
	Location  string `json:"location,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`

	TrainingDate string `json:"trainingDate,omitempty"`
	AwardDate    string `json:"awardDate,omitempty"`
	LogDate      string `json:"logDate,omitempty"`

	// Evidence artifact (image or certificate). Empty means the shared
	// placeholder is shown.
	EvidenceURL string `json:"evidenceUrl,omitempty"`
}

// PendingPage is one loaded page of the unified submission list.
//
// TotalItems is the sum of the four per-type counts reported by the
// membership service and drives the pagination footer. UnifiedCount is
// the length of the concatenated array; the two only agree when every type
// is fetched un-paginated, so both are exposed rather than silently
// picking one.
type PendingPage struct {
	Submissions  []Submission `json:"submissions"`
	Page         int          `json:"page"`
	PageSize     int          `json:"pageSize"`
	TotalItems   int          `json:"totalItems"`
	UnifiedCount int          `json:"unifiedCount"`
}
