package attempt

import (
	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/proctor"
)

type serviceMock struct {
	service
}

// NewServiceMock builds a Service driven by the given scheduler factory, so tests can fire timers by hand.
// Pair it with a synchronous mail service mock.
func NewServiceMock(
	repo Repository,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
	newScheduler func() proctor.Scheduler,
) Service {
	svc := &serviceMock{
		service: service{
			repo:         repo,
			mailSvc:      mailSvc,
			conf:         conf,
			logger:       logger,
			newScheduler: newScheduler,
			lives:        make(map[string]*live),
		},
	}
	svc.sendMail = mailSvc.SendMessages
	return svc
}
