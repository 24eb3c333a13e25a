package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
)

type attemptRepository struct {
	db *attemptTable
}

var _ attempt.Repository = (*attemptRepository)(nil) // interface compliance check

func NewAttemptRepository(db *DB) attempt.Repository {
	return &attemptRepository{db: db.attempt}
}

func (repo *attemptRepository) CreateAttempt(ctx context.Context, a attempt.Attempt) (attempt.Attempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *attemptRepository) GetAttempt(ctx context.Context, id string) (attempt.Attempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return attempt.Attempt{}, attempt.ErrNotFound
}

func (repo *attemptRepository) QueryAttempts(ctx context.Context, filter *attempt.QueryFilter, ordering []core.DBOrdering) ([]attempt.Attempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	attempts := make([]attempt.Attempt, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		if filter.Match(*a) {
			attempts = append(attempts, *a)
		}
	}

	ordering = allowedOrderings(ordering)
	sort.SliceStable(attempts, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareField(attempts[i], attempts[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return attempts, nil
}

func allowedOrderings(ordering []core.DBOrdering) []core.DBOrdering {
	allowed := make([]core.DBOrdering, 0, len(ordering)+1)
	for _, ord := range ordering {
		if attempt.OrderingFields[ord.Field] {
			allowed = append(allowed, ord)
		}
	}
	if len(allowed) == 0 {
		allowed = append(allowed, attempt.DefaultOrdering)
	}
	// ids break ties so results are stable across calls
	return append(allowed, core.DBOrdering{Field: "id", Ascending: true})
}

func compareField(a, b attempt.Attempt, field string) int {
	switch field {
	case "created_at":
		return compareTime(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	case "updated_at":
		return compareTime(a.UpdatedAt.UnixNano(), b.UpdatedAt.UnixNano())
	case "started_at":
		return compareTime(a.StartedAt.UnixNano(), b.StartedAt.UnixNano())
	case "exam_id":
		return strings.Compare(a.ExamID, b.ExamID)
	case "candidate_id":
		return strings.Compare(a.CandidateID, b.CandidateID)
	case "status":
		return strings.Compare(a.Status, b.Status)
	case "violation_count":
		return a.ViolationCount - b.ViolationCount
	case "id":
		return strings.Compare(a.ID, b.ID)
	}
	return 0
}

func compareTime(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *attemptRepository) UpdateAttempt(ctx context.Context, a attempt.Attempt, fromStatus ...string) (attempt.Attempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[a.ID]
	if !ok {
		return attempt.Attempt{}, attempt.ErrNotFound
	}
	if len(fromStatus) > 0 {
		var allowed bool
		for _, s := range fromStatus {
			allowed = allowed || orig.Status == s
		}
		if !allowed {
			return attempt.Attempt{}, attempt.ErrStatusChanged
		}
	}
	// the ledger owns the counter
	a.ViolationCount = orig.ViolationCount
	a.CreatedAt = orig.CreatedAt
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *attemptRepository) AddViolation(ctx context.Context, v attempt.Violation) (attempt.Violation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.table[v.AttemptID]
	if !ok {
		return attempt.Violation{}, attempt.ErrNotFound
	}
	ledger := repo.db.violations[v.AttemptID]
	v.Seq = len(ledger) + 1
	repo.db.violations[v.AttemptID] = append(ledger, v)
	a.ViolationCount = v.Seq
	return v, nil
}

func (repo *attemptRepository) QueryViolations(ctx context.Context, attemptID string) ([]attempt.Violation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ledger := repo.db.violations[attemptID]
	violations := make([]attempt.Violation, len(ledger))
	copy(violations, ledger)
	return violations, nil
}

func (repo *attemptRepository) ResetViolations(ctx context.Context, attemptID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a, ok := repo.db.table[attemptID]
	if !ok {
		return attempt.ErrNotFound
	}
	delete(repo.db.violations, attemptID)
	a.ViolationCount = 0
	return nil
}
