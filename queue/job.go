// Package queue provides the durable, ordered work queue of dispatch jobs,
// including delayed retry jobs.
package queue

import (
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Job is one (event, subscription) dispatch unit. First attempts are
// admitted with NotBefore = now; retries carry a future NotBefore.
type Job struct {
	entity.Entity

	// ID is the unique TypeID for this job.
	ID id.ID `json:"id"`

	// EventID references the event to deliver.
	EventID id.ID `json:"event_id"`

	// SubscriptionID references the target subscription.
	SubscriptionID id.ID `json:"subscription_id"`

	// Attempt is the 1-based attempt number this job represents.
	Attempt int `json:"attempt"`

	// NotBefore is the earliest instant the job may be claimed.
	NotBefore time.Time `json:"not_before"`
}

// NewJob builds a first-attempt job eligible immediately.
func NewJob(eventID, subID id.ID) *Job {
	return &Job{
		Entity:         entity.New(),
		ID:             id.NewJobID(),
		EventID:        eventID,
		SubscriptionID: subID,
		Attempt:        1,
		NotBefore:      time.Now().UTC(),
	}
}

// Retry builds the successor job for a failed attempt, eligible at notBefore.
func (j *Job) Retry(notBefore time.Time) *Job {
	return &Job{
		Entity:         entity.New(),
		ID:             id.NewJobID(),
		EventID:        j.EventID,
		SubscriptionID: j.SubscriptionID,
		Attempt:        j.Attempt + 1,
		NotBefore:      notBefore,
	}
}
