// Package bunstore implements the composite store on a relational database
// via the Bun ORM. Postgres and SQLite are supported through their Bun
// dialects.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	// Database drivers for the Open* constructors.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/ledger"
	"github.com/hookline/hookline/queue"
	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/subscription"
)

// compile-time interface check.
var _ store.Store = (*Store)(nil)

// DefaultClaimLease is how long a claimed job stays invisible to other
// claimers before it is considered abandoned and redelivered.
const DefaultClaimLease = 30 * time.Second

// Store implements store.Store using the Bun ORM.
type Store struct {
	db         *bun.DB
	claimLease time.Duration
}

// New creates a Bun-backed store over an existing *bun.DB.
func New(db *bun.DB) *Store {
	return &Store{db: db, claimLease: DefaultClaimLease}
}

// OpenPostgres opens a Postgres-backed store from a lib/pq DSN.
func OpenPostgres(dsn string) (*Store, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return New(bun.NewDB(sqldb, pgdialect.New())), nil
}

// OpenSQLite opens a SQLite-backed store at the given path.
func OpenSQLite(path string) (*Store, error) {
	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return New(bun.NewDB(sqldb, sqlitedialect.New())), nil
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// SetClaimLease overrides the claim lease.
func (s *Store) SetClaimLease(d time.Duration) { s.claimLease = d }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*subscriptionModel)(nil),
		(*eventModel)(nil),
		(*attemptModel)(nil),
		(*jobModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_hookline_jobs_due ON hookline_jobs (not_before)",
		"CREATE INDEX IF NOT EXISTS idx_hookline_attempts_event ON hookline_attempts (event_id)",
		"CREATE INDEX IF NOT EXISTS idx_hookline_attempts_subscription ON hookline_attempts (subscription_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_hookline_subscriptions_type ON hookline_subscriptions (event_type)",
		"CREATE INDEX IF NOT EXISTS idx_hookline_events_type ON hookline_events (type)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== subscription.Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", subID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hookline.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*subscriptionModel)(nil)).
		Where("id = ?", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.db.NewSelect().Model(&models)

	if opts.EventType != "" {
		q = q.Where("event_type = ?", opts.EventType)
	}
	if opts.Active != nil {
		q = q.Where("active = ?", *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) FindActive(ctx context.Context, eventType string, now time.Time) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	err := s.db.NewSelect().
		Model(&models).
		Where("event_type = ?", eventType).
		Where("active = ?", true).
		Where("expires_at IS NULL OR expires_at >= ?", now).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) ([]id.ID, error) {
	var rawIDs []string
	err := s.db.NewUpdate().
		Model((*subscriptionModel)(nil)).
		Set("active = ?", false).
		Set("updated_at = ?", now).
		Where("active = ?", true).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Returning("id").
		Scan(ctx, &rawIDs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	swept := make([]id.ID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		subID, err := id.Parse(raw)
		if err != nil {
			return nil, err
		}
		swept = append(swept, subID)
	}
	return swept, nil
}

// ==================== event.Store ====================

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m, err := toEventModel(evt)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", evtID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hookline.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.db.NewSelect().Model(&models)

	if opts.Type != "" {
		q = q.Where("type = ?", opts.Type)
	}
	if opts.From != nil {
		q = q.Where("created_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("created_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

// ==================== ledger.Store ====================

func (s *Store) AppendAttempt(ctx context.Context, att *ledger.Attempt) error {
	m := toAttemptModel(att)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) AttemptsBySubscription(ctx context.Context, subID id.ID, opts ledger.ListOpts) ([]*ledger.Attempt, error) {
	var models []attemptModel
	q := s.db.NewSelect().
		Model(&models).
		Where("subscription_id = ?", subID.String()).
		Order("created_at DESC").
		OrderExpr("id DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return attemptsFromModels(models)
}

func (s *Store) AttemptsByEvent(ctx context.Context, evtID id.ID) ([]*ledger.Attempt, error) {
	var models []attemptModel
	err := s.db.NewSelect().
		Model(&models).
		Where("event_id = ?", evtID.String()).
		Order("subscription_id ASC", "attempt ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return attemptsFromModels(models)
}

func (s *Store) CountAttempts(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().
		Model((*attemptModel)(nil)).
		Count(ctx)
	return int64(n), err
}

func attemptsFromModels(models []attemptModel) ([]*ledger.Attempt, error) {
	result := make([]*ledger.Attempt, len(models))
	for i := range models {
		att, err := fromAttemptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = att
	}
	return result, nil
}

// ==================== queue.Store ====================

func (s *Store) EnqueueJob(ctx context.Context, job *queue.Job) error {
	m := toJobModel(job)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) EnqueueJobs(ctx context.Context, jobs []*queue.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	models := make([]jobModel, len(jobs))
	for i, job := range jobs {
		models[i] = *toJobModel(job)
	}
	_, err := s.db.NewInsert().Model(&models).Exec(ctx)
	return err
}

// ClaimJob atomically claims the oldest due job. Job IDs are K-sortable,
// so "id ASC" is FIFO among equal NotBefore values. The claim predicate is
// repeated on the outer UPDATE: a concurrent claimer that selected the
// same row re-evaluates it after the lock wait and comes away empty.
func (s *Store) ClaimJob(ctx context.Context) (*queue.Job, error) {
	now := time.Now().UTC()
	lease := now.Add(s.claimLease)

	var models []jobModel
	err := s.db.NewRaw(`
		UPDATE hookline_jobs
		SET claimed_until = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM hookline_jobs
			WHERE not_before <= ? AND (claimed_until IS NULL OR claimed_until <= ?)
			ORDER BY not_before ASC, id ASC
			LIMIT 1
		)
		AND (claimed_until IS NULL OR claimed_until <= ?)
		RETURNING *
	`, lease, now, now, now, now).Scan(ctx, &models)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrNoJob
		}
		return nil, err
	}
	if len(models) == 0 {
		return nil, queue.ErrNoJob
	}

	return fromJobModel(&models[0])
}

func (s *Store) AckJob(ctx context.Context, jobID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*jobModel)(nil)).
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return hookline.ErrJobNotFound
	}
	return nil
}

func (s *Store) CountDueJobs(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().
		Model((*jobModel)(nil)).
		Where("not_before <= ?", time.Now().UTC()).
		Count(ctx)
	return int64(n), err
}
