// Package storage persists finalized calotruth events.
//
// The storage package defines the Store interface and provides two
// implementations:
//   - MemoryStore: in-memory storage for tests and one-shot runs
//   - BadgerStore: persistent disk-based storage on BadgerDB
//
// Both stores are thread-safe. Outputs are stored by event id; storing an
// event again replaces the previous output.
//
// Example Usage:
//
//	store, err := storage.NewBadgerStore(storage.BadgerOptions{DataDir: "./data"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if err := store.Put(out); err != nil {
//		return err
//	}
//	summaries, _ := store.List()
//	fmt.Printf("%d events stored\n", len(summaries))
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/orneryd/calotruth/pkg/truth"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidData   = errors.New("invalid data")
	ErrStorageClosed = errors.New("storage closed")
)

// Store persists finalized event outputs.
type Store interface {
	// Put stores an output, replacing any previous output of the same event.
	// The output must be fingerprinted.
	Put(out *truth.Output) error
	// Get returns the stored output of an event.
	Get(eventID uint64) (*truth.Output, error)
	// Summary returns the summary of a stored event without loading its output.
	Summary(eventID uint64) (Summary, error)
	// List returns the summaries of all stored events, ordered by event id.
	List() ([]Summary, error)
	// Delete removes an event.
	Delete(eventID uint64) error
	// Count returns the number of stored events.
	Count() (int, error)
	Close() error
}

// Summary describes a stored event.
type Summary struct {
	EventID       uint64    `json:"eventId"`
	Fingerprint   string    `json:"fingerprint"`
	Hits          int       `json:"hits"`
	Clusters      int       `json:"clusters"`
	CaloParticles int       `json:"caloParticles"`
	SubEvents     int       `json:"subEvents"`
	Warnings      bool      `json:"warnings"`
	StoredAt      time.Time `json:"storedAt"`
}

// Summarize builds the summary of an output.
func Summarize(out *truth.Output, storedAt time.Time) Summary {
	return Summary{
		EventID:       out.EventID,
		Fingerprint:   out.Fingerprint,
		Hits:          len(out.Hits),
		Clusters:      len(out.Clusters),
		CaloParticles: len(out.CaloParticles),
		SubEvents:     len(out.Graphs),
		Warnings:      out.Diagnostics.Warnings(),
		StoredAt:      storedAt,
	}
}

func validateOutput(out *truth.Output) error {
	if out == nil {
		return fmt.Errorf("%w: nil output", ErrInvalidData)
	}
	if out.Fingerprint == "" {
		return fmt.Errorf("%w: event %d has no fingerprint", ErrInvalidData, out.EventID)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("%w: event %d: %v", ErrInvalidData, out.EventID, err)
	}
	return nil
}

func encodeOutput(out *truth.Output) ([]byte, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return data, nil
}

func decodeOutput(data []byte) (*truth.Output, error) {
	var out truth.Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &out, nil
}
