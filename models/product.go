// Package models defines data structures for the scraper.
package models

import "time"

// Product represents one featured launch taken from the homepage.
type Product struct {
	Name        string    `csv:"name" json:"name"`
	Description string    `csv:"description" json:"description"`
	Votes       string    `csv:"votes" json:"votes"`
	URL         string    `csv:"url" json:"url"`
	ScrapedAt   time.Time `csv:"scraped_at" json:"scraped_at"`
}

// Document is a successfully fetched page body.
type Document struct {
	URL         string
	StatusCode  int
	ContentType string
	Encoding    string
	Body        string
	Raw         []byte
	FetchedAt   time.Time
}

// Status tags a Result as success or error.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the terminal value of one scrape run.
type Result struct {
	Status  Status     `json:"status"`
	Data    []*Product `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`

	Stats RunStats `json:"-"`
}

// RunStats holds counters describing how a run went.
type RunStats struct {
	StartTime    time.Time
	EndTime      time.Time
	Attempts     int
	RateLimited  int
	Selector     string
	SkippedItems int
	ErrorsByType map[string]int
}

// Success builds a success result.
func Success(products []*Product) *Result {
	return &Result{Status: StatusSuccess, Data: products}
}

// Failure builds an error result.
func Failure(message string) *Result {
	return &Result{Status: StatusError, Message: message}
}

// OK reports whether the run produced data.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusSuccess
}
