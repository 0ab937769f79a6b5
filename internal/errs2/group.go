// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package errs2 provides small error-handling helpers shared across
// the concurrent paths of the server: collecting results from worker
// goroutines (C8's storage dispatch runs on a blocking pool per §5)
// and recognising context cancellation so a client disconnect isn't
// reported as a server fault.
package errs2

import "sync"

// Group runs a set of functions concurrently and collects every
// non-nil error they return, the way health.Server fans a request out
// across its registered checks (§4.10) without letting one slow check
// block the others.
type Group struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// Go runs fn in its own goroutine and records its error, if any.
func (group *Group) Go(fn func() error) {
	group.wg.Add(1)
	go func() {
		defer group.wg.Done()
		if err := fn(); err != nil {
			group.mu.Lock()
			group.errs = append(group.errs, err)
			group.mu.Unlock()
		}
	}()
}

// Wait blocks until every fn passed to Go has returned and reports
// every error collected, in the order their goroutines finished.
func (group *Group) Wait() []error {
	group.wg.Wait()
	group.mu.Lock()
	defer group.mu.Unlock()
	return group.errs
}
