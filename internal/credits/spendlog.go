// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credits

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/morganforge/portal-tui/internal/util"
)

// maxSpendRecords bounds in-memory spend history.
const maxSpendRecords = 200

// SpendRecord is one observed charge.
type SpendRecord struct {
	At       time.Time `json:"at"`
	UserID   string    `json:"user_id"`
	ModuleID string    `json:"module_id"`
	ChatID   string    `json:"chat_id,omitempty"`
	Cost     float64   `json:"cost"`
}

// SpendLog keeps a bounded record of charges for the credits command
// and optionally snapshots them to disk.
type SpendLog struct {
	mu      sync.Mutex
	records []SpendRecord
	path    string
}

// NewSpendLog returns a log that snapshots to path after each record.
// An empty path keeps the log memory-only.
func NewSpendLog(path string) *SpendLog {
	l := &SpendLog{path: path}
	l.loadSnapshot()
	return l
}

// Record appends one charge, evicting the oldest entry when full.
func (l *SpendLog) Record(a Assignment, cost float64, chatID string) {
	l.mu.Lock()
	l.records = append(l.records, SpendRecord{
		At:       time.Now(),
		UserID:   a.UserID,
		ModuleID: a.ModuleID,
		ChatID:   chatID,
		Cost:     cost,
	})
	if len(l.records) > maxSpendRecords {
		l.records = l.records[len(l.records)-maxSpendRecords:]
	}
	snapshot := make([]SpendRecord, len(l.records))
	copy(snapshot, l.records)
	path := l.path
	l.mu.Unlock()

	if path != "" {
		// Best effort. A failed snapshot must not break a send.
		if err := writeSnapshot(path, snapshot); err != nil {
			fmt.Fprintf(os.Stderr, "warning: spend log snapshot failed: %v\n", err)
		}
	}
}

// Recent returns up to n records, newest last.
func (l *SpendLog) Recent(n int) []SpendRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.records) {
		n = len(l.records)
	}
	out := make([]SpendRecord, n)
	copy(out, l.records[len(l.records)-n:])
	return out
}

// Total returns the summed cost of all held records for an assignment.
func (l *SpendLog) Total(a Assignment) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sum float64
	for _, r := range l.records {
		if r.UserID == a.UserID && r.ModuleID == a.ModuleID {
			sum += r.Cost
		}
	}
	return sum
}

func (l *SpendLog) loadSnapshot() {
	if l.path == "" {
		return
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	var records []SpendRecord
	if json.Unmarshal(data, &records) != nil {
		return
	}
	if len(records) > maxSpendRecords {
		records = records[len(records)-maxSpendRecords:]
	}
	l.records = records
}

func writeSnapshot(path string, records []SpendRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, data, 0o600)
}
