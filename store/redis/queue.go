package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/queue"
)

// claimScript atomically requeues lapsed claims, then claims the eligible
// job with the smallest NotBefore. K-sortable job ids break score ties in
// admission order.
//
// KEYS[1] = ready zset (score: not-before)
// KEYS[2] = claimed zset (score: lease expiry)
// ARGV[1] = now (unix seconds, float)
// ARGV[2] = lease expiry (unix seconds, float)
var claimScript = goredis.NewScript(`
local lapsed = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, member in ipairs(lapsed) do
	redis.call('ZREM', KEYS[2], member)
	redis.call('ZADD', KEYS[1], ARGV[1], member)
end
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #due == 0 then
	return false
end
redis.call('ZREM', KEYS[1], due[1])
redis.call('ZADD', KEYS[2], ARGV[2], due[1])
return due[1]
`)

type jobRecord struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id"`
	SubscriptionID string    `json:"subscription_id"`
	Attempt        int       `json:"attempt"`
	NotBefore      time.Time `json:"not_before"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func recordFromJob(job *queue.Job) *jobRecord {
	return &jobRecord{
		ID:             job.ID.String(),
		EventID:        job.EventID.String(),
		SubscriptionID: job.SubscriptionID.String(),
		Attempt:        job.Attempt,
		NotBefore:      job.NotBefore,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

func (r *jobRecord) toJob() (*queue.Job, error) {
	jid, err := id.ParseWithPrefix(r.ID, id.PrefixJob)
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
	job := &queue.Job{
		ID:             jid,
		EventID:        eid,
		SubscriptionID: sid,
		Attempt:        r.Attempt,
		NotBefore:      r.NotBefore,
	}
	job.CreatedAt = r.CreatedAt
	job.UpdatedAt = r.UpdatedAt
	return job, nil
}

// EnqueueJob admits a job to the ready set.
func (s *Store) EnqueueJob(ctx context.Context, job *queue.Job) error {
	if err := s.setJSON(ctx, prefixJob+job.ID.String(), recordFromJob(job)); err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, zsetJobsReady, goredis.Z{
		Score:  scoreFromTime(job.NotBefore),
		Member: job.ID.String(),
	}).Err()
}

// EnqueueJobs admits a fan-out batch in one pipeline.
func (s *Store) EnqueueJobs(ctx context.Context, jobs []*queue.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	for _, job := range jobs {
		raw, err := marshalRecord(recordFromJob(job))
		if err != nil {
			return err
		}
		pipe.Set(ctx, prefixJob+job.ID.String(), raw, 0)
		pipe.ZAdd(ctx, zsetJobsReady, goredis.Z{
			Score:  scoreFromTime(job.NotBefore),
			Member: job.ID.String(),
		})
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ClaimJob claims the eligible job with the smallest NotBefore, moving it
// to the claimed set under a lease.
func (s *Store) ClaimJob(ctx context.Context) (*queue.Job, error) {
	at := now()
	jobID, err := claimScript.Run(ctx, s.rdb,
		[]string{zsetJobsReady, zsetJobsClaimed},
		scoreFromTime(at),
		scoreFromTime(at.Add(s.claimLease)),
	).Text()
	if err != nil {
		if isRedisNil(err) {
			return nil, queue.ErrNoJob
		}
		return nil, err
	}
	var rec jobRecord
	if err := s.getJSON(ctx, prefixJob+jobID, &rec); err != nil {
		if isRedisNil(err) {
			// value expired out from under the index; drop the claim
			s.rdb.ZRem(ctx, zsetJobsClaimed, jobID)
			return nil, queue.ErrNoJob
		}
		return nil, err
	}
	return rec.toJob()
}

// AckJob removes a claimed job once its outcome is recorded.
func (s *Store) AckJob(ctx context.Context, jobID id.ID) error {
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, zsetJobsClaimed, jobID.String())
	pipe.ZRem(ctx, zsetJobsReady, jobID.String())
	pipe.Del(ctx, prefixJob+jobID.String())
	_, err := pipe.Exec(ctx)
	return err
}

// CountDueJobs counts jobs due now, claimed or not.
func (s *Store) CountDueJobs(ctx context.Context) (int64, error) {
	bound := formatScore(now())
	ready, err := s.rdb.ZCount(ctx, zsetJobsReady, "-inf", bound).Result()
	if err != nil {
		return 0, err
	}
	claimed, err := s.rdb.ZCard(ctx, zsetJobsClaimed).Result()
	if err != nil {
		return 0, err
	}
	return ready + claimed, nil
}
