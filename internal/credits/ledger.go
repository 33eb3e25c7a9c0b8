// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credits

import (
	"context"
	"sync"
)

// Assignment identifies a (user, module) credit scope. Balances are
// tracked per assignment, not per user, because a student can hold
// different balances across modules.
type Assignment struct {
	UserID   string
	ModuleID string
}

// Key returns the ledger map key for the assignment.
func (a Assignment) Key() string {
	return a.UserID + "/" + a.ModuleID
}

// BalanceFetcher retrieves the authoritative balance for one
// assignment. *portal.Client satisfies this via StudentBalance.
type BalanceFetcher interface {
	StudentBalance(ctx context.Context, userID, moduleID string) (float64, error)
}

// Ledger is the client-side credit view. Balances go negative when the
// server allows an overdraft on a final send; the ledger never clamps,
// it reports what it knows.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]float64
	lastCost map[string]float64
	log      *SpendLog
}

// NewLedger returns an empty ledger. log may be nil.
func NewLedger(log *SpendLog) *Ledger {
	return &Ledger{
		balances: make(map[string]float64),
		lastCost: make(map[string]float64),
		log:      log,
	}
}

// Load fetches and caches the balance for a. A fetch failure leaves
// any previously cached balance in place.
func (l *Ledger) Load(ctx context.Context, f BalanceFetcher, a Assignment) error {
	bal, err := f.StudentBalance(ctx, a.UserID, a.ModuleID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.balances[a.Key()] = bal
	l.mu.Unlock()
	return nil
}

// SetBalance installs a known balance directly.
func (l *Ledger) SetBalance(a Assignment, bal float64) {
	l.mu.Lock()
	l.balances[a.Key()] = bal
	l.mu.Unlock()
}

// Balance returns the cached balance and whether one is known.
func (l *Ledger) Balance(a Assignment) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal, ok := l.balances[a.Key()]
	return bal, ok
}

// CanSend reports whether a send is permitted. Only a known negative
// balance blocks; an unknown balance permits the send and lets the
// server be the judge.
func (l *Ledger) CanSend(a Assignment) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal, ok := l.balances[a.Key()]
	return !ok || bal >= 0
}

// Charge applies one observed spend against the assignment. Negative
// costs are ignored; a zero cost still records as the last cost so the
// UI can show a free exchange.
func (l *Ledger) Charge(a Assignment, cost float64, chatID string) {
	if cost < 0 {
		return
	}
	l.mu.Lock()
	if _, ok := l.balances[a.Key()]; ok {
		l.balances[a.Key()] -= cost
	}
	l.lastCost[a.Key()] = cost
	l.mu.Unlock()

	if l.log != nil {
		l.log.Record(a, cost, chatID)
	}
}

// LastCost returns the cost of the most recent charged send for the
// assignment, and whether one has occurred.
func (l *Ledger) LastCost(a Assignment) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cost, ok := l.lastCost[a.Key()]
	return cost, ok
}

// ClearLastCost forgets the last-cost display value, used when the
// user starts a new chat.
func (l *Ledger) ClearLastCost(a Assignment) {
	l.mu.Lock()
	delete(l.lastCost, a.Key())
	l.mu.Unlock()
}
