package inmemdb

import (
	"sync"

	"github.com/trezcool/examguard/core/attempt"
)

type (
	DB struct {
		attempt *attemptTable
	}

	attemptTable struct {
		mutex      sync.RWMutex
		table      map[string]*attempt.Attempt
		violations map[string][]attempt.Violation // {attemptID: ledger}
	}
)

func Open() *DB {
	return &DB{
		attempt: &attemptTable{
			table:      make(map[string]*attempt.Attempt),
			violations: make(map[string][]attempt.Violation),
		},
	}
}
