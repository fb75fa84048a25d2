package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/ledger"
	"github.com/hookline/hookline/queue"
	"github.com/hookline/hookline/subscription"
)

type subscriptionModel struct {
	bun.BaseModel `bun:"table:hookline_subscriptions"`

	ID        string     `bun:"id,pk"`
	TargetURL string     `bun:"target_url,notnull"`
	EventType string     `bun:"event_type,notnull"`
	Secret    string     `bun:"secret,notnull"`
	Active    bool       `bun:"active,notnull"`
	RateLimit int        `bun:"rate_limit,notnull,default:0"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
	UpdatedAt time.Time  `bun:"updated_at,notnull"`
}

type eventModel struct {
	bun.BaseModel `bun:"table:hookline_events"`

	ID        string    `bun:"id,pk"`
	Type      string    `bun:"type,notnull"`
	Payload   []byte    `bun:"payload"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type attemptModel struct {
	bun.BaseModel `bun:"table:hookline_attempts"`

	ID             string    `bun:"id,pk"`
	EventID        string    `bun:"event_id,notnull"`
	SubscriptionID string    `bun:"subscription_id,notnull"`
	Attempt        int       `bun:"attempt,notnull"`
	Status         string    `bun:"status,notnull"`
	StatusCode     int       `bun:"status_code,notnull,default:0"`
	Error          string    `bun:"error,nullzero"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

type jobModel struct {
	bun.BaseModel `bun:"table:hookline_jobs"`

	ID             string     `bun:"id,pk"`
	EventID        string     `bun:"event_id,notnull"`
	SubscriptionID string     `bun:"subscription_id,notnull"`
	Attempt        int        `bun:"attempt,notnull"`
	NotBefore      time.Time  `bun:"not_before,notnull"`
	ClaimedUntil   *time.Time `bun:"claimed_until,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:        sub.ID.String(),
		TargetURL: sub.TargetURL,
		EventType: sub.EventType,
		Secret:    sub.Secret,
		Active:    sub.Active,
		RateLimit: sub.RateLimit,
		ExpiresAt: sub.ExpiresAt,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("bunstore: subscription id: %w", err)
	}

	return &subscription.Subscription{
		Entity:    entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        subID,
		TargetURL: m.TargetURL,
		EventType: m.EventType,
		Secret:    m.Secret,
		Active:    m.Active,
		RateLimit: m.RateLimit,
		ExpiresAt: m.ExpiresAt,
	}, nil
}

func toEventModel(evt *event.Event) (*eventModel, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("bunstore: marshal payload: %w", err)
	}

	return &eventModel{
		ID:        evt.ID.String(),
		Type:      evt.Type,
		Payload:   payload,
		CreatedAt: evt.CreatedAt,
		UpdatedAt: evt.UpdatedAt,
	}, nil
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("bunstore: event id: %w", err)
	}

	var payload map[string]any
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, fmt.Errorf("bunstore: unmarshal payload: %w", err)
		}
	}

	return &event.Event{
		Entity:  entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:      evtID,
		Type:    m.Type,
		Payload: payload,
	}, nil
}

func toAttemptModel(att *ledger.Attempt) *attemptModel {
	return &attemptModel{
		ID:             att.ID.String(),
		EventID:        att.EventID.String(),
		SubscriptionID: att.SubscriptionID.String(),
		Attempt:        att.Attempt,
		Status:         string(att.Status),
		StatusCode:     att.StatusCode,
		Error:          att.Error,
		CreatedAt:      att.CreatedAt,
		UpdatedAt:      att.UpdatedAt,
	}
}

func fromAttemptModel(m *attemptModel) (*ledger.Attempt, error) {
	attID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("bunstore: attempt id: %w", err)
	}
	evtID, err := id.Parse(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("bunstore: attempt event id: %w", err)
	}
	subID, err := id.Parse(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("bunstore: attempt subscription id: %w", err)
	}

	return &ledger.Attempt{
		Entity:         entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             attID,
		EventID:        evtID,
		SubscriptionID: subID,
		Attempt:        m.Attempt,
		Status:         ledger.Status(m.Status),
		StatusCode:     m.StatusCode,
		Error:          m.Error,
	}, nil
}

func toJobModel(job *queue.Job) *jobModel {
	return &jobModel{
		ID:             job.ID.String(),
		EventID:        job.EventID.String(),
		SubscriptionID: job.SubscriptionID.String(),
		Attempt:        job.Attempt,
		NotBefore:      job.NotBefore,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*queue.Job, error) {
	jobID, err := id.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("bunstore: job id: %w", err)
	}
	evtID, err := id.Parse(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("bunstore: job event id: %w", err)
	}
	subID, err := id.Parse(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("bunstore: job subscription id: %w", err)
	}

	return &queue.Job{
		Entity:         entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             jobID,
		EventID:        evtID,
		SubscriptionID: subID,
		Attempt:        m.Attempt,
		NotBefore:      m.NotBefore,
	}, nil
}
