// Package store persists legalization reports.
//
// Two backends are provided:
//   - memory: in-process storage for development and testing
//   - mongo: MongoDB-backed storage for server deployments
//
// Reports are identified by the UUID assigned at creation. List returns
// summaries only; fetch the full report by ID.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mhersch/flowlevel/pkg/report"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a report does not exist.
	ErrNotFound = errors.New("report not found")
)

// Summary is the listing view of a stored report.
type Summary struct {
	ID        string    `json:"id" bson:"_id"`
	Program   string    `json:"program" bson:"program"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Regions   int       `json:"regions" bson:"regions"`
}

// Store is the interface for report storage backends.
type Store interface {
	// Put stores a report. An existing report with the same ID is
	// overwritten.
	Put(ctx context.Context, r *report.Report) error

	// Get retrieves a report by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*report.Report, error)

	// List returns summaries of all stored reports, newest first.
	List(ctx context.Context) ([]Summary, error)

	// Delete removes a report. Deleting an absent report returns
	// ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}
