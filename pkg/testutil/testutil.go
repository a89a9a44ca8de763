package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/crewbase/crewbase/pkg/logger/mocklogger"
	"github.com/crewbase/crewbase/pkg/service/saccount"
	"github.com/crewbase/crewbase/pkg/service/screw"
	"github.com/crewbase/crewbase/pkg/service/sfunding"
	"github.com/crewbase/crewbase/pkg/service/snotification"
	"github.com/crewbase/crewbase/pkg/service/spost"
	"github.com/crewbase/crewbase/pkg/service/ssetting"
	"github.com/crewbase/crewbase/pkg/service/stask"
)

// BaseTestServices bundles an in-memory database with every service wired to
// it, the way cmd/serverrun wires production.
type BaseTestServices struct {
	DB            *sql.DB
	Accounts      saccount.AccountService
	Tasks         stask.TaskService
	Funding       sfunding.FundingService
	Posts         spost.PostService
	Crew          screw.CrewService
	Notifications snotification.NotificationService
	Settings      ssetting.SettingService
}

// OpenTestDB opens a fresh in-memory SQLite database with the full schema.
// The single-connection pool keeps the ":memory:" database alive and shared.
func OpenTestDB(ctx context.Context, t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Error(err)
		}
	})

	if err := CreateAllTables(ctx, db); err != nil {
		t.Fatal(err)
	}
	return db
}

// CreateAllTables runs every service's schema bootstrap.
func CreateAllTables(ctx context.Context, db *sql.DB) error {
	for _, create := range []func(context.Context, *sql.DB) error{
		saccount.CreateTables,
		stask.CreateTables,
		sfunding.CreateTables,
		spost.CreateTables,
		screw.CreateTables,
		snotification.CreateTables,
		ssetting.CreateTables,
	} {
		if err := create(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

// GetBaseServices opens a test DB and wires all services to it.
func GetBaseServices(ctx context.Context, t *testing.T) BaseTestServices {
	t.Helper()

	db := OpenTestDB(ctx, t)
	return BaseTestServices{
		DB:            db,
		Accounts:      saccount.New(db),
		Tasks:         stask.New(db),
		Funding:       sfunding.New(db),
		Posts:         spost.New(db),
		Crew:          screw.New(db),
		Notifications: snotification.New(db),
		Settings:      ssetting.New(db),
	}
}

// Logger returns a slog.Logger that records into the mock handler.
func Logger() *slog.Logger {
	return mocklogger.NewMockLogger()
}
