// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package health

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pinger is satisfied by a storage.Pool-like dependency that can be
// asked to prove it still has a usable connection. sqlstore's pool
// implements it with a database/sql PingContext; the in-memory
// backend's pool trivially always succeeds.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolCheck reports the connection pool healthy as long as its last
// Ping succeeded, per spec §4.10's pool-state sampling requirement.
type PoolCheck struct {
	pool Pinger
}

// NewPoolCheck wraps pool as a Check named "pool".
func NewPoolCheck(pool Pinger) *PoolCheck {
	return &PoolCheck{pool: pool}
}

func (c *PoolCheck) Name() string { return "pool" }

func (c *PoolCheck) Healthy(ctx context.Context) bool {
	return c.pool.Ping(ctx) == nil
}

// LivenessTTLJitter wraps a Check so that, after a randomized lifetime
// has elapsed, it reports permanently unhealthy regardless of the
// wrapped check's result. This forces a rolling restart of long-lived
// instances rather than letting them accumulate unbounded pool/lock
// state, per spec §4.10's TTL-based liveness failure.
type LivenessTTLJitter struct {
	inner   Check
	expires time.Time

	mu    sync.Mutex
	dead  bool
}

// NewLivenessTTLJitter wraps inner with an expiry uniformly jittered
// within [base, base+jitter), starting from now.
func NewLivenessTTLJitter(inner Check, base, jitter time.Duration) *LivenessTTLJitter {
	lifetime := base
	if jitter > 0 {
		lifetime += time.Duration(rand.Int63n(int64(jitter)))
	}
	return &LivenessTTLJitter{
		inner:   inner,
		expires: time.Now().Add(lifetime),
	}
}

func (l *LivenessTTLJitter) Name() string { return l.inner.Name() }

func (l *LivenessTTLJitter) Healthy(ctx context.Context) bool {
	l.mu.Lock()
	if l.dead {
		l.mu.Unlock()
		return false
	}
	if time.Now().After(l.expires) {
		l.dead = true
		l.mu.Unlock()
		return false
	}
	l.mu.Unlock()
	return l.inner.Healthy(ctx)
}
