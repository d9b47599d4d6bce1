package leaselock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ravenloom/backend/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	defaultTTL     = 5 * time.Minute
	renewAttempts  = 3
	renewTimeout   = 15 * time.Second
	releaseTimeout = 5 * time.Second
)

var (
	// ErrBusy is returned by Acquire when another holder owns the key.
	ErrBusy = errors.New("lease lock busy")
	// ErrLost is the cause of a lease context cancelled because a renewal
	// found the row taken over or gone.
	ErrLost = errors.New("lease lock lost")
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client hands out leases stored in the app_locks table. A lease expires
// after its TTL unless renewed, so a crashed worker never blocks a key
// forever. Acquire never waits: a busy key is somebody else's job.
type Client struct {
	db dbConn
}

// Options configures a lease. RenewEvery defaults to half the TTL and is
// kept below it.
type Options struct {
	TTL         time.Duration
	RenewEvery  time.Duration
	TokenPrefix string
}

func (o Options) withDefaults() Options {
	if o.TTL < time.Millisecond {
		o.TTL = defaultTTL
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Second)
	}
	return o
}

type Lease struct {
	Key   string
	Token string

	// Context is cancelled on Release or, with cause ErrLost, when the
	// lease could not be renewed.
	Context context.Context

	client *Client
	ttlMs  int64
	cancel context.CancelCauseFunc
	once   sync.Once
	done   chan struct{}
}

// New accepts a pool, a single connection or a transaction.
func New(conn dbConn) *Client {
	return &Client{db: conn}
}

// DocumentKey is the lease key guarding the ingestion of one document.
func DocumentKey(teamID, documentID int64) string {
	return fmt.Sprintf("ingest:team:%d:document:%d", teamID, documentID)
}

// WithLease runs fn while holding key and releases the lease afterwards.
// An error from fn after the lease was lost also matches ErrLost.
func (c *Client) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_ = lease.Release(releaseCtx)
	}()

	err = fn(lease.Context)
	if err != nil && lease.Lost() {
		return fmt.Errorf("%w: %w", ErrLost, err)
	}
	return err
}

func (c *Client) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.withDefaults()

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := opts.TokenPrefix + id
	ttlMs := opts.TTL.Milliseconds()

	var lockedKey string
	err = c.db.QueryRow(ctx, tryAcquireSQL, key, token, ttlMs).Scan(&lockedKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		client:  c,
		ttlMs:   ttlMs,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go l.keepAlive(opts.RenewEvery)
	return l, nil
}

// Lost reports whether the lease ended because it could not be renewed.
func (l *Lease) Lost() bool {
	return errors.Is(context.Cause(l.Context), ErrLost)
}

func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		close(l.done)
		l.cancel(context.Canceled)
	})
	_, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Token)
	return err
}

func (l *Lease) keepAlive(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renew(); err != nil {
				l.cancel(fmt.Errorf("%w: %w", ErrLost, err))
				return
			}
		}
	}
}

// renew retries transient failures. A missing row means another holder
// took the key over after expiry and is not retried.
func (l *Lease) renew() error {
	return util.RetryErrWithContext(l.Context, renewAttempts, func(ctx context.Context) error {
		renewCtx, cancel := context.WithTimeout(ctx, renewTimeout)
		defer cancel()
		var key string
		err := l.client.db.QueryRow(renewCtx, renewSQL, l.Key, l.Token, l.ttlMs).Scan(&key)
		if errors.Is(err, pgx.ErrNoRows) {
			return util.Permanent(err)
		}
		return err
	})
}

// The upsert only takes over a row whose lease expired or that already
// belongs to the same token.
const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2
`
