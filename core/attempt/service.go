// Package attempt runs proctored exam attempts: one live monitor per open attempt, with the ledger
// persisted through a Repository and the invigilator notified on termination.
package attempt

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/mail"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/proctor"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError(errors.New("attempt not found"))
	ErrStatusChanged = errors.New("attempt status changed concurrently")
	ErrShutdown      = core.NewShutdownError("attempt service is shut down")

	NowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

const maxTransitionRetries = 3

// openStatuses are the statuses a page can still be attached to.
var openStatuses = []string{StatusPending, StatusActive, StatusStopped, StatusTerminated}

func errInvalidStatus(action, status string) error {
	return core.NewValidationError(fmt.Errorf("cannot %s an attempt that is %s", action, status))
}

type (
	Repository interface {
		CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		GetAttempt(ctx context.Context, id string) (Attempt, error)
		// QueryAttempts applies AND operation on available QueryFilter fields.
		QueryAttempts(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Attempt, error)
		// UpdateAttempt saves a. When fromStatus is given, a is only saved while the stored status is one of
		// them; otherwise ErrStatusChanged is returned and nothing is written.
		UpdateAttempt(ctx context.Context, a Attempt, fromStatus ...string) (Attempt, error)
		// AddViolation appends v to the ledger of its attempt, bumps the attempt counter and returns the
		// stored violation with its Seq.
		AddViolation(ctx context.Context, v Violation) (Violation, error)
		QueryViolations(ctx context.Context, attemptID string) ([]Violation, error)
		// ResetViolations empties the ledger of the attempt and zeroes its counter.
		ResetViolations(ctx context.Context, attemptID string) error
	}

	Service interface {
		Open(ctx context.Context, na NewAttempt) (Attempt, error)
		Get(ctx context.Context, id string) (Attempt, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Attempt, error)
		Start(ctx context.Context, id string) (Attempt, error)
		Stop(ctx context.Context, id string) (Attempt, error)
		Reset(ctx context.Context, id string) (Attempt, error)
		Ingest(ctx context.Context, id string, msg ClientMessage) ([]proctor.Outcome, error)
		EnterFullscreen(ctx context.Context, id string) error
		ExitFullscreen(ctx context.Context, id string) error
		Snapshot(ctx context.Context, id string) (Detail, error)
		Violations(ctx context.Context, id string) ([]Violation, error)
		Close(ctx context.Context, id string) (Attempt, error)
		Commands(ctx context.Context, id string) (<-chan Command, error)
		Shutdown()
	}

	// live is the in-memory side of an open attempt.
	live struct {
		id         string
		platform   *RemotePlatform
		sched      proctor.Scheduler
		monitor    *proctor.Monitor
		terminated bool // guarded by service.mu
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger

		newScheduler func() proctor.Scheduler
		sendMail     func(msgs ...*core.EmailMessage)

		mu       sync.RWMutex
		lives    map[string]*live
		shutDown bool
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	svc := &service{
		repo:         repo,
		mailSvc:      mailSvc,
		conf:         conf,
		logger:       logger,
		newScheduler: func() proctor.Scheduler { return proctor.NewTimerScheduler() },
		lives:        make(map[string]*live),
	}
	svc.sendMail = mailSvc.SendMessages
	return svc
}

func (svc *service) options(a Attempt) proctor.Options {
	pc := svc.conf.Proctor
	return proctor.Options{
		EnableFullscreen:         pc.EnableFullscreen,
		EnableTabSwitchDetection: pc.EnableTabSwitchDetection,
		EnableCopyCutPaste:       pc.EnableCopyCutPaste,
		EnableRightClick:         pc.EnableRightClick,
		EnableDevTools:           pc.EnableDevTools,
		EnableScreenshot:         pc.EnableScreenshot,
		EnableMobileProctoring:   pc.EnableMobileProctoring,
		MaxViolations:            a.MaxViolations,
		OnViolation: func(kind proctor.Kind, count int) {
			svc.onViolation(a.ID, kind, count)
		},
		OnMaxViolationsReached: func() {
			svc.terminate(a.ID, "violation limit reached")
		},
	}
}

// attach builds and installs the live monitor of a. The caller holds svc.mu.
func (svc *service) attach(a Attempt) *live {
	platform := NewRemotePlatform(a.UserAgent, a.TouchPoints, svc.conf.Proctor.OutboxSize)
	sched := svc.newScheduler()
	l := &live{
		id:         a.ID,
		platform:   platform,
		sched:      sched,
		monitor:    proctor.New(platform, sched, svc.logger, svc.options(a)),
		terminated: a.IsTerminated(),
	}
	l.monitor.Attach()
	svc.lives[a.ID] = l
	return l
}

func (svc *service) detach(l *live) {
	l.monitor.Detach()
	if s, ok := l.sched.(interface{ Stop() }); ok {
		s.Stop()
	}
	l.platform.Close()
}

// getLive returns the monitor of an open attempt. Monitors lost with a restart are rebuilt from the
// stored attempt; tracking resumes with a new grace period.
func (svc *service) getLive(ctx context.Context, id string) (*live, Attempt, error) {
	a, err := svc.repo.GetAttempt(ctx, id)
	if err != nil {
		return nil, Attempt{}, err
	}
	if !a.IsOpen() {
		return nil, a, errInvalidStatus("use", a.Status)
	}

	svc.mu.RLock()
	l, ok := svc.lives[id]
	svc.mu.RUnlock()
	if ok {
		return l, a, nil
	}

	svc.mu.Lock()
	if svc.shutDown {
		svc.mu.Unlock()
		return nil, a, ErrShutdown
	}
	if l, ok = svc.lives[id]; !ok {
		l = svc.attach(a)
	}
	svc.mu.Unlock()
	if !ok && a.IsActive() {
		l.monitor.StartTracking()
	}
	return l, a, nil
}

func (svc *service) Open(ctx context.Context, na NewAttempt) (Attempt, error) {
	svc.mu.RLock()
	shutDown := svc.shutDown
	svc.mu.RUnlock()
	if shutDown {
		return Attempt{}, ErrShutdown
	}

	now := NowFunc()
	a := Attempt{
		ID:               uuid.New().String(),
		ExamID:           na.ExamID,
		CandidateID:      na.CandidateID,
		CandidateEmail:   na.CandidateEmail,
		InvigilatorEmail: na.InvigilatorEmail,
		UserAgent:        na.UserAgent,
		TouchPoints:      na.TouchPoints,
		Status:           StatusPending,
		MaxViolations:    na.MaxViolations,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if a.MaxViolations < 1 {
		a.MaxViolations = svc.conf.Proctor.MaxViolations
	}
	if a.MaxViolations < 1 {
		a.MaxViolations = proctor.DefaultMaxViolations
	}
	if a.InvigilatorEmail == "" {
		a.InvigilatorEmail = svc.conf.Proctor.InvigilatorEmail
	}

	a, err := svc.repo.CreateAttempt(ctx, a)
	if err != nil {
		return Attempt{}, errors.Wrap(err, "creating attempt")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.shutDown {
		return Attempt{}, ErrShutdown
	}
	svc.attach(a)
	return a, nil
}

func (svc *service) Get(ctx context.Context, id string) (Attempt, error) {
	return svc.repo.GetAttempt(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, filter, ordering)
}

func (svc *service) isTerminated(l *live) bool {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return l.terminated
}

// Start begins or resumes tracking. The grace period runs once per attempt, from its first start.
func (svc *service) Start(ctx context.Context, id string) (Attempt, error) {
	l, a, err := svc.getLive(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if svc.isTerminated(l) {
		return Attempt{}, errInvalidStatus("start", StatusTerminated)
	}
	if !a.CanStart() {
		return Attempt{}, errInvalidStatus("start", a.Status)
	}

	now := NowFunc()
	if a.StartedAt.IsZero() {
		a.StartedAt = now
	}
	a.Status = StatusActive
	a.UpdatedAt = now
	updated, err := svc.repo.UpdateAttempt(ctx, a, StatusPending, StatusStopped)
	if errors.Cause(err) == ErrStatusChanged {
		if a, err = svc.repo.GetAttempt(ctx, id); err != nil {
			return Attempt{}, err
		}
		return Attempt{}, errInvalidStatus("start", a.Status)
	}
	if err != nil {
		return Attempt{}, errors.Wrap(err, "updating attempt")
	}

	l.monitor.ResumeTracking(a.StartedAt)
	if svc.isTerminated(l) {
		// terminated while starting
		l.monitor.StopTracking()
	}
	return updated, nil
}

// Stop ends tracking. Only an active attempt becomes stopped; a concurrent termination wins.
func (svc *service) Stop(ctx context.Context, id string) (Attempt, error) {
	l, a, err := svc.getLive(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	l.monitor.StopTracking()
	if !a.IsActive() {
		return a, nil
	}

	now := NowFunc()
	a.Status = StatusStopped
	a.StoppedAt = now
	a.UpdatedAt = now
	updated, err := svc.repo.UpdateAttempt(ctx, a, StatusActive)
	if errors.Cause(err) == ErrStatusChanged {
		return svc.repo.GetAttempt(ctx, id)
	}
	return updated, errors.Wrap(err, "updating attempt")
}

// Reset clears the ledger. A terminated attempt stays terminated.
func (svc *service) Reset(ctx context.Context, id string) (Attempt, error) {
	l, _, err := svc.getLive(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	l.monitor.ResetViolations()
	if err = svc.repo.ResetViolations(ctx, id); err != nil {
		return Attempt{}, errors.Wrap(err, "resetting violations")
	}
	return svc.repo.GetAttempt(ctx, id)
}

// Ingest applies a batch from the page and returns one outcome per event.
func (svc *service) Ingest(ctx context.Context, id string, msg ClientMessage) ([]proctor.Outcome, error) {
	l, _, err := svc.getLive(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.State != nil {
		l.platform.Update(*msg.State)
	}
	outcomes := make([]proctor.Outcome, 0, len(msg.Events))
	for _, ev := range msg.Events {
		l.platform.Observe(ev)
		outcomes = append(outcomes, l.monitor.HandleEvent(ev))
	}
	return outcomes, nil
}

func (svc *service) EnterFullscreen(ctx context.Context, id string) error {
	l, _, err := svc.getLive(ctx, id)
	if err != nil {
		return err
	}
	l.monitor.EnterFullscreen(ctx)
	return nil
}

func (svc *service) ExitFullscreen(ctx context.Context, id string) error {
	l, _, err := svc.getLive(ctx, id)
	if err != nil {
		return err
	}
	l.monitor.ExitFullscreen(ctx)
	return nil
}

func (svc *service) Snapshot(ctx context.Context, id string) (Detail, error) {
	a, err := svc.repo.GetAttempt(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !a.IsOpen() {
		return Detail{Attempt: a}, nil
	}
	l, a, err := svc.getLive(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	snap := l.monitor.Snapshot()
	return Detail{Attempt: a, Monitor: &snap}, nil
}

func (svc *service) Violations(ctx context.Context, id string) ([]Violation, error) {
	if _, err := svc.repo.GetAttempt(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryViolations(ctx, id)
}

// Close detaches the monitor and closes the command outbox. Closing twice is a no-op.
func (svc *service) Close(ctx context.Context, id string) (Attempt, error) {
	a, err := svc.repo.GetAttempt(ctx, id)
	if err != nil {
		return Attempt{}, err
	}

	svc.mu.Lock()
	l, ok := svc.lives[id]
	delete(svc.lives, id)
	svc.mu.Unlock()
	if ok {
		svc.detach(l)
	}
	if !a.IsOpen() {
		return a, nil
	}

	now := NowFunc()
	a.Status = StatusClosed
	a.ClosedAt = now
	a.UpdatedAt = now
	updated, err := svc.repo.UpdateAttempt(ctx, a, openStatuses...)
	if errors.Cause(err) == ErrStatusChanged {
		return svc.repo.GetAttempt(ctx, id) // closed concurrently
	}
	return updated, errors.Wrap(err, "updating attempt")
}

func (svc *service) Commands(ctx context.Context, id string) (<-chan Command, error) {
	l, _, err := svc.getLive(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.platform.Commands(), nil
}

// Shutdown detaches every live monitor. Attempts keep their stored status; later calls needing a
// monitor fail with ErrShutdown.
func (svc *service) Shutdown() {
	svc.mu.Lock()
	svc.shutDown = true
	lives := svc.lives
	svc.lives = make(map[string]*live)
	svc.mu.Unlock()

	for _, l := range lives {
		svc.detach(l)
	}
}

func (svc *service) lookup(id string) (*live, bool) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	l, ok := svc.lives[id]
	return l, ok
}

// onViolation persists the violation that brought the monitor count to count and notifies the page.
func (svc *service) onViolation(id string, kind proctor.Kind, count int) {
	l, ok := svc.lookup(id)
	if !ok {
		return
	}
	snap := l.monitor.Snapshot()
	if count < 1 || count > len(snap.Violations) || snap.Violations[count-1].Kind != kind {
		// the ledger was reset in between
		return
	}
	pv := snap.Violations[count-1]

	ctx := context.Background()
	_, err := svc.repo.AddViolation(ctx, Violation{
		AttemptID:   id,
		Kind:        pv.Kind,
		Description: pv.Description,
		OccurredAt:  pv.OccurredAt.UTC(),
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("attempt %s: storing violation %s: %v", id, kind, err), err)
		return
	}
	if err = l.platform.Push(Command{Name: CmdViolation, Violation: &pv, Count: count}); err != nil {
		svc.logger.Warn(fmt.Sprintf("attempt %s: notifying violation: %v", id, err), err)
	}

	// the stored ledger survives restarts while the monitor count does not
	a, err := svc.repo.GetAttempt(ctx, id)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("attempt %s: reloading: %v", id, err), err)
		return
	}
	if a.ViolationCount >= a.MaxViolations {
		svc.terminate(id, "violation limit reached")
	}
}

// terminate ends the attempt once. Later calls are only logged.
func (svc *service) terminate(id, reason string) {
	svc.mu.Lock()
	l, ok := svc.lives[id]
	first := ok && !l.terminated
	if first {
		l.terminated = true
	}
	svc.mu.Unlock()
	if !ok {
		return
	}
	if !first {
		svc.logger.Info(fmt.Sprintf("attempt %s: already terminated", id))
		return
	}

	l.monitor.StopTracking()
	ctx := context.Background()
	a, err := svc.transition(ctx, id, func(a *Attempt) {
		now := NowFunc()
		a.Status = StatusTerminated
		a.TerminatedAt = now
		a.UpdatedAt = now
	}, StatusPending, StatusActive, StatusStopped)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("attempt %s: terminating: %v", id, err), err)
		return
	}
	svc.logger.Warn(fmt.Sprintf("attempt %s: terminated (%s)", id, reason), a)

	if err = l.platform.Push(Command{Name: CmdTerminate, Count: a.ViolationCount}); err != nil {
		svc.logger.Warn(fmt.Sprintf("attempt %s: notifying termination: %v", id, err), err)
	}
	svc.sendTerminationMail(ctx, a)
}

// transition applies change to the stored attempt while its status is one of from. A write that loses
// against a concurrent stop or start is retried on the fresh copy.
func (svc *service) transition(ctx context.Context, id string, change func(a *Attempt), from ...string) (Attempt, error) {
	for retries := 0; ; retries++ {
		a, err := svc.repo.GetAttempt(ctx, id)
		if err != nil {
			return Attempt{}, err
		}
		change(&a)
		updated, err := svc.repo.UpdateAttempt(ctx, a, from...)
		if errors.Cause(err) == ErrStatusChanged && retries < maxTransitionRetries {
			continue
		}
		return updated, err
	}
}

type terminationMailData struct {
	AttemptID      string
	ExamID         string
	CandidateID    string
	CandidateEmail string
	ViolationCount int
	MaxViolations  int
	Violations     []Violation
}

func (svc *service) sendTerminationMail(ctx context.Context, a Attempt) {
	if a.InvigilatorEmail == "" {
		svc.logger.Warn(fmt.Sprintf("attempt %s: no invigilator to notify", a.ID))
		return
	}
	violations, err := svc.repo.QueryViolations(ctx, a.ID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("attempt %s: querying violations: %v", a.ID, err), err)
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: a.InvigilatorEmail}},
		Subject:      fmt.Sprintf("Attempt terminated: exam %s", a.ExamID),
		TemplateName: "attempt_terminated",
		TemplateData: terminationMailData{
			AttemptID:      a.ID,
			ExamID:         a.ExamID,
			CandidateID:    a.CandidateID,
			CandidateEmail: a.CandidateEmail,
			ViolationCount: a.ViolationCount,
			MaxViolations:  a.MaxViolations,
			Violations:     violations,
		},
	}
	if err == nil {
		ledger, err := LedgerCSV(violations)
		if err == nil {
			err = msg.Attach(bytes.NewReader(ledger), LedgerFilename(a.ID), "text/csv")
		}
		if err != nil {
			svc.logger.Error(fmt.Sprintf("attempt %s: attaching ledger: %v", a.ID, err), err)
		}
	}
	svc.sendMail(msg)
}

func LedgerFilename(attemptID string) string {
	return "violations-" + attemptID + ".csv"
}

// LedgerCSV renders the violation ledger with a header row, one violation per line.
func LedgerCSV(violations []Violation) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"seq", "kind", "occurred_at", "description"})
	for _, v := range violations {
		_ = w.Write([]string{strconv.Itoa(v.Seq), string(v.Kind), v.OccurredAt.UTC().Format(time.RFC3339), v.Description})
	}
	w.Flush()
	return buf.Bytes(), errors.Wrap(w.Error(), "writing ledger")
}
