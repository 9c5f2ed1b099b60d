package models

import "time"

// ImageSet is an insertion-ordered set of absolute image URLs discovered on one page
type ImageSet struct {
	urls []string
	seen map[string]struct{}
}

// NewImageSet returns an empty ImageSet
func NewImageSet() *ImageSet {
	return &ImageSet{seen: make(map[string]struct{})}
}

// Add inserts u if it is not already present. Returns true if it was added.
func (s *ImageSet) Add(u string) bool {
	if _, ok := s.seen[u]; ok {
		return false
	}
	s.seen[u] = struct{}{}
	s.urls = append(s.urls, u)
	return true
}

// Contains reports whether u is in the set
func (s *ImageSet) Contains(u string) bool {
	_, ok := s.seen[u]
	return ok
}

// Len returns the number of unique URLs
func (s *ImageSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.urls)
}

// URLs returns a copy of the URLs in first-seen order
func (s *ImageSet) URLs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

// DownloadResult is the outcome of fetching a single image URL
type DownloadResult struct {
	URL          string
	Index        int // 1-based position within the page's image set
	Outcome      Outcome
	Filename     string // Set when Outcome is OutcomeSaved
	ContentType  string // Normalized (lower-case, no parameters)
	BytesWritten int64
	Reason       string // Human-readable reason for OutcomeRejected
	Err          error  // Underlying error for OutcomeFailed
}

// ImageDBEntry stores the result of processing an image URL in the database
type ImageDBEntry struct {
	Status      ImageStatus `json:"status"`
	LocalPath   string      `json:"local_path,omitempty"`   // Filename inside the save directory (on success)
	ContentType string      `json:"content_type,omitempty"` // Declared content type
	RunID       string      `json:"run_id,omitempty"`       // Run that last touched this URL
	ErrorType   string      `json:"error_type,omitempty"`   // Error category (on failure or rejection)
	LastAttempt time.Time   `json:"last_attempt"`
}

// RunRecord summarizes one pipeline run in the history store
type RunRecord struct {
	ID         string    `json:"id"`
	PageURL    string    `json:"page_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Discovered int       `json:"discovered"`
	Saved      []string  `json:"saved"`
	Rejected   int       `json:"rejected"`
	Failed     int       `json:"failed"`
	Category   string    `json:"category"` // Flash category of the final status
	Message    string    `json:"message"`
}
