package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
	"github.com/trezcool/examguard/core/proctor"
)

const (
	attemptColumns = "id, exam_id, candidate_id, candidate_email, invigilator_email, user_agent, touch_points, " +
		"status, max_violations, violation_count, created_at, updated_at, started_at, stopped_at, terminated_at, closed_at"
	violationColumns = "attempt_id, seq, kind, description, occurred_at"
)

type (
	attemptRow struct {
		ID               string    `db:"id"`
		ExamID           string    `db:"exam_id"`
		CandidateID      string    `db:"candidate_id"`
		CandidateEmail   string    `db:"candidate_email"`
		InvigilatorEmail string    `db:"invigilator_email"`
		UserAgent        string    `db:"user_agent"`
		TouchPoints      int       `db:"touch_points"`
		Status           string    `db:"status"`
		MaxViolations    int       `db:"max_violations"`
		ViolationCount   int       `db:"violation_count"`
		CreatedAt        time.Time `db:"created_at"`
		UpdatedAt        time.Time `db:"updated_at"`
		StartedAt        null.Time `db:"started_at"`
		StoppedAt        null.Time `db:"stopped_at"`
		TerminatedAt     null.Time `db:"terminated_at"`
		ClosedAt         null.Time `db:"closed_at"`
	}

	violationRow struct {
		AttemptID   string    `db:"attempt_id"`
		Seq         int       `db:"seq"`
		Kind        string    `db:"kind"`
		Description string    `db:"description"`
		OccurredAt  time.Time `db:"occurred_at"`
	}
)

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func timeOf(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

type attemptRepository struct {
	db *sqlx.DB
}

var _ attempt.Repository = (*attemptRepository)(nil) // interface compliance check

func NewAttemptRepository(db *sqlx.DB) *attemptRepository {
	return &attemptRepository{db: db}
}

func (repo attemptRepository) row(a attempt.Attempt) attemptRow {
	return attemptRow{
		ID:               a.ID,
		ExamID:           a.ExamID,
		CandidateID:      a.CandidateID,
		CandidateEmail:   a.CandidateEmail,
		InvigilatorEmail: a.InvigilatorEmail,
		UserAgent:        a.UserAgent,
		TouchPoints:      a.TouchPoints,
		Status:           a.Status,
		MaxViolations:    a.MaxViolations,
		ViolationCount:   a.ViolationCount,
		CreatedAt:        a.CreatedAt.UTC(),
		UpdatedAt:        a.UpdatedAt.UTC(),
		StartedAt:        nullTime(a.StartedAt),
		StoppedAt:        nullTime(a.StoppedAt),
		TerminatedAt:     nullTime(a.TerminatedAt),
		ClosedAt:         nullTime(a.ClosedAt),
	}
}

func (repo attemptRepository) unrow(r attemptRow) attempt.Attempt {
	return attempt.Attempt{
		ID:               r.ID,
		ExamID:           r.ExamID,
		CandidateID:      r.CandidateID,
		CandidateEmail:   r.CandidateEmail,
		InvigilatorEmail: r.InvigilatorEmail,
		UserAgent:        r.UserAgent,
		TouchPoints:      r.TouchPoints,
		Status:           r.Status,
		MaxViolations:    r.MaxViolations,
		ViolationCount:   r.ViolationCount,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		StartedAt:        timeOf(r.StartedAt),
		StoppedAt:        timeOf(r.StoppedAt),
		TerminatedAt:     timeOf(r.TerminatedAt),
		ClosedAt:         timeOf(r.ClosedAt),
	}
}

// trapNoRowsErr maps "no rows" err to attempt.ErrNotFound
func (repo attemptRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attempt.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo attemptRepository) CreateAttempt(ctx context.Context, a attempt.Attempt) (attempt.Attempt, error) {
	a.ViolationCount = 0
	q := "INSERT INTO attempt (" + attemptColumns + ") VALUES (" +
		":id, :exam_id, :candidate_id, :candidate_email, :invigilator_email, :user_agent, :touch_points, " +
		":status, :max_violations, :violation_count, :created_at, :updated_at, :started_at, :stopped_at, :terminated_at, :closed_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, repo.row(a)); err != nil {
		return attempt.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return repo.GetAttempt(ctx, a.ID)
}

func (repo attemptRepository) GetAttempt(ctx context.Context, id string) (attempt.Attempt, error) {
	var r attemptRow
	q := repo.db.Rebind("SELECT " + attemptColumns + " FROM attempt WHERE id = ?")
	if err := repo.db.GetContext(ctx, &r, q, id); err != nil {
		return attempt.Attempt{}, repo.trapNoRowsErr(err, "finding attempt by ID")
	}
	return repo.unrow(r), nil
}

func (repo attemptRepository) QueryAttempts(ctx context.Context, filter *attempt.QueryFilter, ordering []core.DBOrdering) ([]attempt.Attempt, error) {
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.ExamID != "" {
			where = append(where, "exam_id = ?")
			args = append(args, filter.ExamID)
		}
		if filter.CandidateID != "" {
			where = append(where, "candidate_id = ?")
			args = append(args, filter.CandidateID)
		}
		if len(filter.Statuses) > 0 {
			where = append(where, "status IN (?)")
			args = append(args, filter.Statuses)
		}
	}

	q := "SELECT " + attemptColumns + " FROM attempt"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + core.OrderBy(ordering, attempt.OrderingFields, attempt.DefaultOrdering) + ", id ASC"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding attempt query")
	}

	var rows []attemptRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	attempts := make([]attempt.Attempt, 0, len(rows))
	for _, r := range rows {
		attempts = append(attempts, repo.unrow(r))
	}
	return attempts, nil
}

// UpdateAttempt saves every field but the violation counter, which only the ledger changes.
// With fromStatus the row is only written while its stored status is one of them.
func (repo attemptRepository) UpdateAttempt(ctx context.Context, a attempt.Attempt, fromStatus ...string) (attempt.Attempt, error) {
	q := "UPDATE attempt SET exam_id = :exam_id, candidate_id = :candidate_id, candidate_email = :candidate_email, " +
		"invigilator_email = :invigilator_email, user_agent = :user_agent, touch_points = :touch_points, status = :status, " +
		"max_violations = :max_violations, updated_at = :updated_at, started_at = :started_at, stopped_at = :stopped_at, " +
		"terminated_at = :terminated_at, closed_at = :closed_at WHERE id = :id"
	q, args, err := sqlx.Named(q, repo.row(a))
	if err != nil {
		return attempt.Attempt{}, errors.Wrap(err, "binding attempt")
	}
	if len(fromStatus) > 0 {
		q += " AND status IN (?)"
		if q, args, err = sqlx.In(q, append(args, fromStatus)...); err != nil {
			return attempt.Attempt{}, errors.Wrap(err, "expanding attempt update")
		}
	}

	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return attempt.Attempt{}, errors.Wrap(err, "updating attempt")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		stored, err := repo.GetAttempt(ctx, a.ID)
		if err != nil {
			return attempt.Attempt{}, err
		}
		if len(fromStatus) > 0 && !inStatuses(stored.Status, fromStatus) {
			return attempt.Attempt{}, attempt.ErrStatusChanged
		}
		return stored, nil // nothing changed
	}
	return repo.GetAttempt(ctx, a.ID)
}

func inStatuses(status string, statuses []string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (repo attemptRepository) AddViolation(ctx context.Context, v attempt.Violation) (attempt.Violation, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return attempt.Violation{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// the counter update locks the attempt row until commit
	res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE attempt SET violation_count = violation_count + 1 WHERE id = ?"), v.AttemptID)
	if err != nil {
		return attempt.Violation{}, errors.Wrap(err, "bumping violation count")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attempt.Violation{}, attempt.ErrNotFound
	}
	if err = tx.GetContext(ctx, &v.Seq, tx.Rebind("SELECT violation_count FROM attempt WHERE id = ?"), v.AttemptID); err != nil {
		return attempt.Violation{}, errors.Wrap(err, "reading violation count")
	}

	row := violationRow{
		AttemptID:   v.AttemptID,
		Seq:         v.Seq,
		Kind:        string(v.Kind),
		Description: v.Description,
		OccurredAt:  v.OccurredAt.UTC(),
	}
	q := "INSERT INTO violation (" + violationColumns + ") VALUES (:attempt_id, :seq, :kind, :description, :occurred_at)"
	if _, err = tx.NamedExecContext(ctx, q, row); err != nil {
		return attempt.Violation{}, errors.Wrap(err, "inserting violation")
	}
	if err = tx.Commit(); err != nil {
		return attempt.Violation{}, errors.Wrap(err, "committing violation")
	}
	v.OccurredAt = row.OccurredAt
	return v, nil
}

func (repo attemptRepository) QueryViolations(ctx context.Context, attemptID string) ([]attempt.Violation, error) {
	var rows []violationRow
	q := repo.db.Rebind("SELECT " + violationColumns + " FROM violation WHERE attempt_id = ? ORDER BY seq ASC")
	if err := repo.db.SelectContext(ctx, &rows, q, attemptID); err != nil {
		return nil, errors.Wrap(err, "querying violations")
	}
	violations := make([]attempt.Violation, 0, len(rows))
	for _, r := range rows {
		violations = append(violations, attempt.Violation{
			AttemptID:   r.AttemptID,
			Seq:         r.Seq,
			Kind:        proctor.Kind(r.Kind),
			Description: r.Description,
			OccurredAt:  r.OccurredAt.UTC(),
		})
	}
	return violations, nil
}

func (repo attemptRepository) ResetViolations(ctx context.Context, attemptID string) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE attempt SET violation_count = 0 WHERE id = ?"), attemptID)
	if err != nil {
		return errors.Wrap(err, "zeroing violation count")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attempt.ErrNotFound
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind("DELETE FROM violation WHERE attempt_id = ?"), attemptID); err != nil {
		return errors.Wrap(err, "deleting violations")
	}
	return errors.Wrap(tx.Commit(), "committing reset")
}
