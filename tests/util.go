package testutil

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/attempt"
	"github.com/trezcool/examguard/core/proctor/proctortest"
	"github.com/trezcool/examguard/storage/database"
)

var nonWord = regexp.MustCompile(`\W+`)

// Config returns the TEST profile configuration.
func Config() *core.Config {
	_ = os.Setenv("ENV", "TEST")
	return core.NewConfig()
}

// PrepareDB opens a migrated in-memory sqlite database private to t.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := Config()
	conf.Database.Engine = database.EngineSQLite
	conf.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", nonWord.ReplaceAllString(t.Name(), "_"))

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, new(proctortest.Logger)); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateAttempt(
	t *testing.T,
	repo attempt.Repository,
	examID, candidateID, status string,
	createdAt ...time.Time,
) attempt.Attempt {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	a := attempt.Attempt{
		ID:               uuid.New().String(),
		ExamID:           examID,
		CandidateID:      candidateID,
		CandidateEmail:   candidateID + "@test.cd",
		InvigilatorEmail: "invigilator@test.cd",
		UserAgent:        proctortest.DesktopUA,
		Status:           status,
		MaxViolations:    3,
		CreatedAt:        tstamp,
		UpdatedAt:        tstamp,
	}
	a, err := repo.CreateAttempt(context.Background(), a)
	if err != nil {
		t.Fatalf("CreateAttempt() failed: %v", err)
	}
	return a
}
