package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/examguard/apps/api/echo"
	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
	"github.com/trezcool/examguard/core/proctor"
	"github.com/trezcool/examguard/core/proctor/proctortest"
	emailsvc "github.com/trezcool/examguard/services/email"
	sqlxrepos "github.com/trezcool/examguard/storage/database/sqlx"
	testutil "github.com/trezcool/examguard/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

type env struct {
	conf  *core.Config
	repo  attempt.Repository
	svc   attempt.Service
	clock *proctortest.Clock
	app   Server
}

func setup(t *testing.T) *env {
	t.Helper()
	e := &env{
		conf:  testutil.Config(),
		clock: proctortest.NewClock(time.Now().UTC().Truncate(time.Second)),
	}
	logger := new(proctortest.Logger)

	proctor.NowFunc = e.clock.Now
	attempt.NowFunc = e.clock.Now
	t.Cleanup(func() {
		proctor.NowFunc = time.Now
		attempt.NowFunc = func() time.Time { return time.Now().UTC() }
	})

	// set up DB & repos
	e.repo = sqlxrepos.NewAttemptRepository(testutil.PrepareDB(t))

	// set up services
	core.ParseEmailTemplates(e.conf, logger)
	e.svc = attempt.NewServiceMock(
		e.repo,
		emailsvc.NewConsoleServiceMock(e.conf),
		e.conf,
		logger,
		func() proctor.Scheduler { return proctortest.NewScheduler(e.clock) },
	)
	t.Cleanup(e.svc.Shutdown)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attempt.InitValidators(validate, translator)

	// set up server
	e.app = NewServer(ServerDeps{
		Conf:       e.conf,
		Logger:     logger,
		AttemptSvc: e.svc,
		Validate:   validate,
		Translator: translator,
	})
	return e
}

func (e *env) token(t *testing.T, subject string, roles ...string) string {
	token, err := GenerateToken(e.conf, GetClaims(e.conf, subject, subject+"@test.cd", roles...))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (e *env) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchall(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func attemptIDs(attempts []attempt.Attempt) []string {
	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.ID)
	}
	return ids
}
