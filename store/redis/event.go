package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
)

type eventRecord struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func recordFromEvent(evt *event.Event) *eventRecord {
	return &eventRecord{
		ID:        evt.ID.String(),
		Type:      evt.Type,
		Payload:   evt.Payload,
		CreatedAt: evt.CreatedAt,
		UpdatedAt: evt.UpdatedAt,
	}
}

func (r *eventRecord) toEvent() (*event.Event, error) {
	eid, err := id.ParseWithPrefix(r.ID, id.PrefixEvent)
	if err != nil {
		return nil, err
	}
	evt := &event.Event{
		ID:      eid,
		Type:    r.Type,
		Payload: r.Payload,
	}
	evt.CreatedAt = r.CreatedAt
	evt.UpdatedAt = r.UpdatedAt
	return evt, nil
}

// CreateEvent appends an event to the log.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	if err := s.setJSON(ctx, prefixEvent+evt.ID.String(), recordFromEvent(evt)); err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, zsetEvents, goredis.Z{
		Score:  scoreFromTime(evt.CreatedAt),
		Member: evt.ID.String(),
	}).Err()
}

// GetEvent loads an event by id.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var rec eventRecord
	if err := s.getJSON(ctx, prefixEvent+evtID.String(), &rec); err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrEventNotFound
		}
		return nil, err
	}
	return rec.toEvent()
}

// ListEvents returns events newest first, with optional type and time
// range filters.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	min, max := "-inf", "+inf"
	if opts.From != nil {
		min = formatScore(*opts.From)
	}
	if opts.To != nil {
		max = formatScore(*opts.To)
	}
	ids, err := s.rdb.ZRevRangeByScore(ctx, zsetEvents, &goredis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*event.Event, 0, len(ids))
	for _, rawID := range ids {
		var rec eventRecord
		if err := s.getJSON(ctx, prefixEvent+rawID, &rec); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Type != "" && rec.Type != opts.Type {
			continue
		}
		evt, err := rec.toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return paginateEvents(out, opts.Offset, opts.Limit), nil
}

func paginateEvents(evts []*event.Event, offset, limit int) []*event.Event {
	if offset >= len(evts) {
		return nil
	}
	evts = evts[offset:]
	if limit > 0 && limit < len(evts) {
		evts = evts[:limit]
	}
	return evts
}
