package models

// Outcome classifies the result of fetching one image
type Outcome int

const (
	OutcomeSaved    Outcome = iota + 1 // Written to the save directory
	OutcomeRejected                    // Content type not an accepted image type
	OutcomeFailed                      // Network, HTTP status or write error
)

// String implements fmt.Stringer for logging
func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// ImageStatus represents the processing status of an image in the database
type ImageStatus string

const (
	ImageStatusUnset    ImageStatus = ""          // Zero value = unset/unknown
	ImageStatusSuccess  ImageStatus = "success"   // Image downloaded successfully
	ImageStatusRejected ImageStatus = "rejected"  // Content type not accepted
	ImageStatusFailure  ImageStatus = "failure"   // Image download failed
	ImageStatusNotFound ImageStatus = "not_found" // Image not in database
	ImageStatusDBError  ImageStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s ImageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s ImageStatus) IsValid() bool {
	switch s {
	case ImageStatusSuccess, ImageStatusRejected, ImageStatusFailure:
		return true
	}
	return false
}

// StatusForOutcome maps a download outcome to the status persisted for it
func StatusForOutcome(o Outcome) ImageStatus {
	switch o {
	case OutcomeSaved:
		return ImageStatusSuccess
	case OutcomeRejected:
		return ImageStatusRejected
	case OutcomeFailed:
		return ImageStatusFailure
	}
	return ImageStatusUnset
}

// Flash categories shown to the user after a run
const (
	CategorySuccess = "success"
	CategoryWarning = "warning"
	CategoryDanger  = "danger"
)
