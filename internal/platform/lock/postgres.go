package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres uses session-level advisory locks. A held lock pins one pooled
// connection until it is released. Waiters poll with pg_try_advisory_lock and
// give their connection back between attempts, so they never starve the
// holder of connections.
type Postgres struct {
	pool *pgxpool.Pool
}

const (
	pgRetryMin = 5 * time.Millisecond
	pgRetryMax = 200 * time.Millisecond
)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Backend() string { return "postgres" }

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Lock(ctx context.Context, key string) (func(), error) {
	wait := pgRetryMin
	for {
		conn, ok, err := p.tryLock(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
			}
			return nil, err
		}
		if ok {
			return p.releaser(conn, key), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-time.After(wait):
		}
		if wait *= 2; wait > pgRetryMax {
			wait = pgRetryMax
		}
	}
}

// tryLock returns the connection holding the lock when ok is true. Otherwise
// the connection has already been released.
func (p *Postgres) tryLock(ctx context.Context, key string) (*pgxpool.Conn, bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock connection: %w", err)
	}
	var ok bool
	err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&ok)
	if err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("advisory lock %s: %w", key, err)
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	return conn, true, nil
}

func (p *Postgres) releaser(conn *pgxpool.Conn, key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.Exec(uctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key); err != nil {
				// Closing the session drops every advisory lock it holds.
				_ = conn.Conn().Close(uctx)
			}
			conn.Release()
		})
	}
}
