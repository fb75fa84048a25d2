package redis

import (
	"context"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/ledger"
)

type attemptRecord struct {
	ID             string        `json:"id"`
	EventID        string        `json:"event_id"`
	SubscriptionID string        `json:"subscription_id"`
	Attempt        int           `json:"attempt"`
	Status         ledger.Status `json:"status"`
	StatusCode     int           `json:"status_code,omitempty"`
	Error          string        `json:"error,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func recordFromAttempt(att *ledger.Attempt) *attemptRecord {
	return &attemptRecord{
		ID:             att.ID.String(),
		EventID:        att.EventID.String(),
		SubscriptionID: att.SubscriptionID.String(),
		Attempt:        att.Attempt,
		Status:         att.Status,
		StatusCode:     att.StatusCode,
		Error:          att.Error,
		CreatedAt:      att.CreatedAt,
		UpdatedAt:      att.UpdatedAt,
	}
}

func (r *attemptRecord) toAttempt() (*ledger.Attempt, error) {
	aid, err := id.ParseWithPrefix(r.ID, id.PrefixAttempt)
	if err != nil {
		return nil, err
	}
	eid, err := id.ParseWithPrefix(r.EventID, id.PrefixEvent)
	if err != nil {
		return nil, err
	}
	sid, err := id.ParseWithPrefix(r.SubscriptionID, id.PrefixSubscription)
	if err != nil {
		return nil, err
	}
	att := &ledger.Attempt{
		ID:             aid,
		EventID:        eid,
		SubscriptionID: sid,
		Attempt:        r.Attempt,
		Status:         r.Status,
		StatusCode:     r.StatusCode,
		Error:          r.Error,
	}
	att.CreatedAt = r.CreatedAt
	att.UpdatedAt = r.UpdatedAt
	return att, nil
}

// AppendAttempt records a delivery attempt as a fresh row and indexes it
// by subscription and by event.
func (s *Store) AppendAttempt(ctx context.Context, att *ledger.Attempt) error {
	if err := s.setJSON(ctx, prefixAttempt+att.ID.String(), recordFromAttempt(att)); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, zsetAttemptsSub+att.SubscriptionID.String(), goredis.Z{
		Score:  scoreFromTime(att.CreatedAt),
		Member: att.ID.String(),
	})
	pipe.SAdd(ctx, setAttemptsEvent+att.EventID.String(), att.ID.String())
	pipe.Incr(ctx, keyAttemptCount)
	_, err := pipe.Exec(ctx)
	return err
}

// AttemptsBySubscription returns attempts for a subscription, most recent
// first.
func (s *Store) AttemptsBySubscription(ctx context.Context, subID id.ID, opts ledger.ListOpts) ([]*ledger.Attempt, error) {
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = int64(opts.Offset + opts.Limit - 1)
	}
	ids, err := s.rdb.ZRevRange(ctx, zsetAttemptsSub+subID.String(), int64(opts.Offset), stop).Result()
	if err != nil {
		return nil, err
	}
	return s.loadAttempts(ctx, ids)
}

// AttemptsByEvent returns every attempt for an event, grouped by
// subscription with attempt numbers ascending.
func (s *Store) AttemptsByEvent(ctx context.Context, evtID id.ID) ([]*ledger.Attempt, error) {
	ids, err := s.rdb.SMembers(ctx, setAttemptsEvent+evtID.String()).Result()
	if err != nil {
		return nil, err
	}
	atts, err := s.loadAttempts(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(atts, func(i, j int) bool {
		si, sj := atts[i].SubscriptionID.String(), atts[j].SubscriptionID.String()
		if si != sj {
			return si < sj
		}
		return atts[i].Attempt < atts[j].Attempt
	})
	return atts, nil
}

// CountAttempts returns the total number of ledger rows.
func (s *Store) CountAttempts(ctx context.Context) (int64, error) {
	n, err := s.rdb.Get(ctx, keyAttemptCount).Int64()
	if err != nil {
		if isRedisNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (s *Store) loadAttempts(ctx context.Context, ids []string) ([]*ledger.Attempt, error) {
	out := make([]*ledger.Attempt, 0, len(ids))
	for _, rawID := range ids {
		var rec attemptRecord
		if err := s.getJSON(ctx, prefixAttempt+rawID, &rec); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		att, err := rec.toAttempt()
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	return out, nil
}
