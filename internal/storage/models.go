package storage

import "time"

// BatchStatus is the lifecycle state of a harvesting batch
type BatchStatus string

const (
	StatusProcessing BatchStatus = "processing"
	StatusCompleted  BatchStatus = "completed"
)

// Batch is one harvesting run over a set of job titles
type Batch struct {
	ID               string      `json:"id"`
	JobTitles        []string    `json:"jobTitles"`
	Status           BatchStatus `json:"status"`
	TotalSources     int         `json:"totalSources"`
	CompletedSources int         `json:"completedSources"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`
}

// BatchSummary is a Batch plus the number of source records it produced
type BatchSummary struct {
	Batch
	RecordCount int `json:"recordCount"`
}

// Contact is a candidate person extracted from page text
type Contact struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Position string `json:"position,omitempty"`
}

// JobPosting is a job listing extracted from page text
type JobPosting struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	Salary      string `json:"salary,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description"`
}

// SourceRecord is the result of harvesting one generated source URL
type SourceRecord struct {
	ID               string       `json:"id"`
	BatchID          string       `json:"batchId"`
	SourceURL        string       `json:"sourceUrl"`
	Domain           string       `json:"domain"`
	PageTitle        string       `json:"pageTitle"`
	Emails           []string     `json:"emails"`
	Contacts         []Contact    `json:"contacts"`
	JobPostings      []JobPosting `json:"jobPostings"`
	ExternalURLs     []string     `json:"externalUrls"`
	RedirectChain    []string     `json:"redirectChain"`
	ProcessingTimeMs int64        `json:"processingTimeMs"`
	ScrapedAt        time.Time    `json:"scrapedAt"`
}
