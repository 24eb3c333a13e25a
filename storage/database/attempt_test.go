package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
	"github.com/trezcool/examguard/core/proctor"
	inmemdb "github.com/trezcool/examguard/storage/database/inmem"
	sqlxrepos "github.com/trezcool/examguard/storage/database/sqlx"
	testutil "github.com/trezcool/examguard/tests"
)

type repoFactory struct {
	name string
	new  func(t *testing.T) attempt.Repository
}

var repoFactories = []repoFactory{
	{name: "inmem", new: func(t *testing.T) attempt.Repository { return inmemdb.NewAttemptRepository(inmemdb.Open()) }},
	{name: "sqlx", new: func(t *testing.T) attempt.Repository { return sqlxrepos.NewAttemptRepository(testutil.PrepareDB(t)) }},
}

func ids(attempts []attempt.Attempt) []string {
	r := make([]string, 0, len(attempts))
	for _, a := range attempts {
		r = append(r, a.ID)
	}
	return r
}

func TestAttemptRepository_crud(t *testing.T) {
	for _, f := range repoFactories {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			repo := f.new(t)

			a := testutil.CreateAttempt(t, repo, "math-101", "cand-1", attempt.StatusPending)
			got, err := repo.GetAttempt(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, a, got)

			_, err = repo.GetAttempt(ctx, "nope")
			assert.True(t, core.IsNotFound(err), "GetAttempt(unknown) error = %v", err)

			started := time.Now().UTC().Truncate(time.Microsecond)
			got.Status = attempt.StatusActive
			got.StartedAt = started
			got.UpdatedAt = started
			got.ViolationCount = 42 // ignored: the ledger owns the counter
			updated, err := repo.UpdateAttempt(ctx, got)
			require.NoError(t, err)
			assert.Equal(t, attempt.StatusActive, updated.Status)
			assert.True(t, started.Equal(updated.StartedAt), "StartedAt = %v; want %v", updated.StartedAt, started)
			assert.Zero(t, updated.ViolationCount)
			assert.True(t, updated.StoppedAt.IsZero())

			_, err = repo.UpdateAttempt(ctx, attempt.Attempt{ID: "nope"})
			assert.True(t, core.IsNotFound(err), "UpdateAttempt(unknown) error = %v", err)
		})
	}
}

func TestAttemptRepository_conditionalUpdate(t *testing.T) {
	for _, f := range repoFactories {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			repo := f.new(t)
			a := testutil.CreateAttempt(t, repo, "math-101", "cand-1", attempt.StatusActive)

			terminated := a
			terminated.Status = attempt.StatusTerminated
			got, err := repo.UpdateAttempt(ctx, terminated, attempt.StatusPending, attempt.StatusActive)
			require.NoError(t, err)
			assert.Equal(t, attempt.StatusTerminated, got.Status)

			// a copy read before the termination cannot overwrite it
			stopped := a
			stopped.Status = attempt.StatusStopped
			stopped.StoppedAt = time.Now().UTC().Truncate(time.Microsecond)
			_, err = repo.UpdateAttempt(ctx, stopped, attempt.StatusActive)
			assert.Equal(t, attempt.ErrStatusChanged, err)

			got, err = repo.GetAttempt(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, attempt.StatusTerminated, got.Status)
			assert.True(t, got.StoppedAt.IsZero())

			_, err = repo.UpdateAttempt(ctx, attempt.Attempt{ID: "nope"}, attempt.StatusActive)
			assert.True(t, core.IsNotFound(err), "UpdateAttempt(unknown) error = %v", err)
		})
	}
}

func TestAttemptRepository_violations(t *testing.T) {
	for _, f := range repoFactories {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			repo := f.new(t)
			a := testutil.CreateAttempt(t, repo, "math-101", "cand-1", attempt.StatusActive)
			other := testutil.CreateAttempt(t, repo, "math-101", "cand-2", attempt.StatusActive)

			at := time.Date(2026, time.March, 2, 9, 0, 15, 0, time.UTC)
			kinds := []proctor.Kind{proctor.KindTabSwitch, proctor.KindRightClick, proctor.KindFullscreenExit}
			for i, k := range kinds {
				v, err := repo.AddViolation(ctx, attempt.Violation{AttemptID: a.ID, Kind: k, Description: "d", OccurredAt: at})
				require.NoError(t, err)
				assert.Equal(t, i+1, v.Seq)
			}
			_, err := repo.AddViolation(ctx, attempt.Violation{AttemptID: other.ID, Kind: proctor.KindWindowBlur, OccurredAt: at})
			require.NoError(t, err)

			_, err = repo.AddViolation(ctx, attempt.Violation{AttemptID: "nope", Kind: proctor.KindWindowBlur, OccurredAt: at})
			assert.True(t, core.IsNotFound(err), "AddViolation(unknown) error = %v", err)

			got, err := repo.GetAttempt(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, got.ViolationCount)

			ledger, err := repo.QueryViolations(ctx, a.ID)
			require.NoError(t, err)
			require.Len(t, ledger, 3)
			for i, v := range ledger {
				assert.Equal(t, kinds[i], v.Kind)
				assert.Equal(t, i+1, v.Seq)
				assert.True(t, at.Equal(v.OccurredAt))
			}

			require.NoError(t, repo.ResetViolations(ctx, a.ID))
			ledger, err = repo.QueryViolations(ctx, a.ID)
			require.NoError(t, err)
			assert.Empty(t, ledger)
			got, err = repo.GetAttempt(ctx, a.ID)
			require.NoError(t, err)
			assert.Zero(t, got.ViolationCount)

			// numbering restarts after a reset
			v, err := repo.AddViolation(ctx, attempt.Violation{AttemptID: a.ID, Kind: proctor.KindTabSwitch, OccurredAt: at})
			require.NoError(t, err)
			assert.Equal(t, 1, v.Seq)

			ledger, err = repo.QueryViolations(ctx, other.ID)
			require.NoError(t, err)
			assert.Len(t, ledger, 1, "other attempts are untouched")
		})
	}
}

func TestAttemptRepository_query(t *testing.T) {
	for _, f := range repoFactories {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			repo := f.new(t)

			now := time.Now().UTC().Truncate(time.Second)
			a1 := testutil.CreateAttempt(t, repo, "math-101", "ann", attempt.StatusActive, now.Add(1*time.Hour))
			a2 := testutil.CreateAttempt(t, repo, "math-101", "bob", attempt.StatusPending, now.Add(2*time.Hour))
			a3 := testutil.CreateAttempt(t, repo, "chem-200", "ann", attempt.StatusTerminated, now.Add(3*time.Hour))
			a4 := testutil.CreateAttempt(t, repo, "chem-200", "cid", attempt.StatusActive, now.Add(4*time.Hour))
			_, err := repo.AddViolation(ctx, attempt.Violation{AttemptID: a2.ID, Kind: proctor.KindTabSwitch, OccurredAt: now})
			require.NoError(t, err)

			tests := []struct {
				name     string
				filter   *attempt.QueryFilter
				ordering []core.DBOrdering
				want     []attempt.Attempt
			}{
				{name: "all (newest first)", want: []attempt.Attempt{a4, a3, a2, a1}},
				{name: "exam", filter: &attempt.QueryFilter{ExamID: "math-101"}, want: []attempt.Attempt{a2, a1}},
				{name: "candidate", filter: &attempt.QueryFilter{CandidateID: "ann"}, want: []attempt.Attempt{a3, a1}},
				{name: "status", filter: &attempt.QueryFilter{Statuses: []string{attempt.StatusActive}}, want: []attempt.Attempt{a4, a1}},
				{
					name:   "statuses",
					filter: &attempt.QueryFilter{Statuses: []string{attempt.StatusActive, attempt.StatusTerminated}},
					want:   []attempt.Attempt{a4, a3, a1},
				},
				{name: "combo (empty)", filter: &attempt.QueryFilter{ExamID: "chem-200", CandidateID: "bob"}, want: []attempt.Attempt{}},
				{name: "unknown status", filter: &attempt.QueryFilter{Statuses: []string{"lol"}}, want: []attempt.Attempt{}},
				{
					name:     "order by created_at",
					ordering: []core.DBOrdering{{Field: "created_at", Ascending: true}},
					want:     []attempt.Attempt{a1, a2, a3, a4},
				},
				{
					name:     "order by exam_id,-created_at",
					ordering: []core.DBOrdering{{Field: "exam_id", Ascending: true}, {Field: "created_at"}},
					want:     []attempt.Attempt{a4, a3, a2, a1},
				},
				{
					name:     "order by -violation_count",
					filter:   &attempt.QueryFilter{ExamID: "math-101"},
					ordering: []core.DBOrdering{{Field: "violation_count"}},
					want:     []attempt.Attempt{a2, a1},
				},
				{
					name:     "unknown ordering field is ignored",
					ordering: []core.DBOrdering{{Field: "lol; DROP TABLE attempt", Ascending: true}},
					want:     []attempt.Attempt{a4, a3, a2, a1},
				},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					got, err := repo.QueryAttempts(ctx, tt.filter, tt.ordering)
					require.NoError(t, err)
					assert.Equal(t, ids(tt.want), ids(got))
				})
			}
		})
	}
}
