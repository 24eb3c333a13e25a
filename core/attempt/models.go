package attempt

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/proctor"
)

// Statuses
const (
	StatusPending    = "pending"
	StatusActive     = "active"
	StatusStopped    = "stopped"
	StatusTerminated = "terminated"
	StatusClosed     = "closed"
)

var Statuses = []string{StatusPending, StatusActive, StatusStopped, StatusTerminated, StatusClosed}

type Attempt struct {
	ID               string    `json:"id"`
	ExamID           string    `json:"exam_id"`
	CandidateID      string    `json:"candidate_id"`
	CandidateEmail   string    `json:"candidate_email"`
	InvigilatorEmail string    `json:"invigilator_email"`
	UserAgent        string    `json:"user_agent"`
	TouchPoints      int       `json:"max_touch_points"`
	Status           string    `json:"status"`
	MaxViolations    int       `json:"max_violations"`
	ViolationCount   int       `json:"violation_count"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
	StartedAt        time.Time `json:"started_at"` // UTC; zero until the first start
	StoppedAt        time.Time `json:"stopped_at"`
	TerminatedAt     time.Time `json:"terminated_at"`
	ClosedAt         time.Time `json:"closed_at"`
}

// IsOpen reports whether the attempt still has a page attached to it.
func (a Attempt) IsOpen() bool { return a.Status != StatusClosed }

func (a Attempt) CanStart() bool {
	return a.Status == StatusPending || a.Status == StatusStopped
}

func (a Attempt) IsActive() bool { return a.Status == StatusActive }

func (a Attempt) IsTerminated() bool { return a.Status == StatusTerminated }

// Violation is a persisted ledger entry. Seq restarts at 1 after a reset.
type Violation struct {
	AttemptID   string       `json:"attempt_id"`
	Seq         int          `json:"seq"`
	Kind        proctor.Kind `json:"kind"`
	Description string       `json:"description"`
	OccurredAt  time.Time    `json:"occurred_at"` // UTC
}

// Detail is an attempt together with the live state of its monitor. Monitor is nil once the attempt is closed.
type Detail struct {
	Attempt
	Monitor *proctor.Snapshot `json:"monitor"`
}

// NewAttempt contains information needed to open a new Attempt.
type NewAttempt struct {
	ExamID           string `json:"exam_id" validate:"required,max=64,slug_"`
	CandidateID      string `json:"candidate_id" validate:"required,max=64"`
	CandidateEmail   string `json:"candidate_email" validate:"omitempty,email"`
	InvigilatorEmail string `json:"invigilator_email" validate:"omitempty,email"`
	UserAgent        string `json:"user_agent" validate:"required"`
	TouchPoints      int    `json:"max_touch_points" validate:"min=0"`
	MaxViolations    int    `json:"max_violations" validate:"omitempty,min=1"`
}

func (na *NewAttempt) Validate(validate *validator.Validate) error {
	na.ExamID = core.CleanString(na.ExamID)
	na.CandidateID = core.CleanString(na.CandidateID)
	na.CandidateEmail = core.CleanString(na.CandidateEmail, true /* lower */)
	na.InvigilatorEmail = core.CleanString(na.InvigilatorEmail, true /* lower */)
	na.UserAgent = core.CleanString(na.UserAgent)
	return validate.Struct(na)
}

// ClientState is what the page reports about itself besides DOM events. Nil fields are left unchanged.
type ClientState struct {
	Fullscreen *bool   `json:"fullscreen,omitempty"`
	Width      *int    `json:"width,omitempty" validate:"omitempty,min=0"`
	Height     *int    `json:"height,omitempty" validate:"omitempty,min=0"`
	Clipboard  *string `json:"clipboard,omitempty"`
	Capturing  *bool   `json:"capturing,omitempty"`
}

// ClientMessage is one batch sent by the page, over HTTP or the stream.
type ClientMessage struct {
	State  *ClientState    `json:"state,omitempty"`
	Events []proctor.Event `json:"events" validate:"max=256,dive"`
}

func (cm *ClientMessage) Validate(validate *validator.Validate) error {
	return validate.Struct(cm)
}

type QueryFilter struct {
	ExamID      string   `query:"exam_id"`
	CandidateID string   `query:"candidate_id"`
	Statuses    []string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.ExamID == "" && qf.CandidateID == "" && qf.Statuses == nil
}

func (qf *QueryFilter) Clean() {
	qf.ExamID = core.CleanString(qf.ExamID)
	qf.CandidateID = core.CleanString(qf.CandidateID)
	statuses := qf.Statuses[:0]
	for _, s := range qf.Statuses {
		if s = core.CleanString(s, true /* lower */); s != "" {
			statuses = append(statuses, s)
		}
	}
	if len(statuses) == 0 {
		statuses = nil
	}
	qf.Statuses = statuses
}

// Match applies the filter to a, for stores that cannot filter themselves.
func (qf *QueryFilter) Match(a Attempt) bool {
	if qf == nil {
		return true
	}
	if qf.ExamID != "" && a.ExamID != qf.ExamID {
		return false
	}
	if qf.CandidateID != "" && a.CandidateID != qf.CandidateID {
		return false
	}
	if len(qf.Statuses) > 0 {
		for _, s := range qf.Statuses {
			if a.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

var (
	// OrderingFields are the fields attempts may be ordered by.
	OrderingFields = map[string]bool{
		"created_at":      true,
		"updated_at":      true,
		"started_at":      true,
		"exam_id":         true,
		"candidate_id":    true,
		"status":          true,
		"violation_count": true,
	}
	DefaultOrdering = core.DBOrdering{Field: "created_at", Ascending: false}
)
