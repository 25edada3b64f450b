package commands

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/conduit-lang/jsonview/internal/orm/extract"
	"github.com/conduit-lang/jsonview/internal/orm/migrate"
)

func TestInstallCommand_Print(t *testing.T) {
	out, err := run(t, "install", "--print")
	if err != nil {
		t.Fatalf("install error = %v", err)
	}
	if !strings.Contains(out, "json_int") {
		t.Error("expected the core functions in the script")
	}
	if strings.Contains(out, "json_geopoint") {
		t.Error("expected no PostGIS functions without --postgis")
	}

	out, err = run(t, "install", "--print", "--postgis")
	if err != nil {
		t.Fatalf("install error = %v", err)
	}
	if !strings.Contains(out, "json_geopoint") {
		t.Error("expected the geopoint extractor with --postgis")
	}
}

func TestApplyCommand_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JSONVIEW_DATABASE_URL", "")
	path := writeProject(t, "")

	_, err := run(t, "apply", "--config", path)
	if !errors.Is(err, errNoDatabaseURL) {
		t.Errorf("expected errNoDatabaseURL, got %v", err)
	}

	_, err = run(t, "install", "--config", path)
	if !errors.Is(err, errNoDatabaseURL) {
		t.Errorf("expected errNoDatabaseURL, got %v", err)
	}
}

func TestApplyCommand_RejectsBadURL(t *testing.T) {
	path := writeProject(t, "")

	_, err := run(t, "apply", "--config", path, "--database-url", "mysql://root@localhost/forms")
	if err == nil || !strings.Contains(err.Error(), "unsupported scheme") {
		t.Errorf("expected an unsupported scheme error, got %v", err)
	}
}

func TestApplyCommand_PlanErrorsBeforeConnecting(t *testing.T) {
	path := writeProject(t, "")

	_, err := run(t, "apply", "--config", path, "--date-parts", "fortnight", "--database-url", "postgres://nobody@127.0.0.1:1/none")
	if err == nil || !strings.Contains(err.Error(), "unknown date part") {
		t.Errorf("expected the option error before connecting, got %v", err)
	}
}

func TestApplyCommand_WarnsAboutPostGISWithoutInstall(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JSONVIEW_DATABASE_URL", "")
	path := writeProject(t, "")

	var errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"apply", "--config", path, "--postgis", "--no-color"})

	if err := cmd.Execute(); !errors.Is(err, errNoDatabaseURL) {
		t.Errorf("expected errNoDatabaseURL, got %v", err)
	}
	if !strings.Contains(errOut.String(), "--postgis has no effect without --install") {
		t.Errorf("expected a warning, got %q", errOut.String())
	}
}

// mockConnect routes connect to a sqlmock database that accepts any SQL text
func mockConnect(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	anySQL := sqlmock.QueryMatcherFunc(func(expected, actual string) error { return nil })
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(anySQL))
	if err != nil {
		t.Fatal(err)
	}

	prev := connect
	connect = func(ctx context.Context, url string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() {
		connect = prev
		db.Close()
	})
	return mock
}

func TestApplyCommand_AppliesPlan(t *testing.T) {
	mock := mockConnect(t)
	path := writeProject(t, "")

	mock.ExpectQuery("installed").WithArgs("json_string").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectBegin()
	// form_7, its four indexes and form_7_order_lines
	for i := 0; i < 6; i++ {
		mock.ExpectExec("statement").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	out, err := run(t, "apply", "--config", path, "--database-url", "postgres://localhost/forms")
	if err != nil {
		t.Fatalf("apply error = %v", err)
	}
	if !strings.Contains(out, "Applied 6 statements for form_7") {
		t.Errorf("unexpected output %q", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestApplyCommand_ReportsFailingStatement(t *testing.T) {
	mock := mockConnect(t)
	path := writeProject(t, "")

	mock.ExpectQuery("installed").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectBegin()
	mock.ExpectExec("view").WillReturnError(&pgconn.PgError{Code: "42P07", Message: `relation "form_7" already exists`})
	mock.ExpectRollback()

	_, err := run(t, "apply", "--config", path, "--database-url", "postgres://localhost/forms")

	var dbErr *migrate.DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected a DatabaseError, got %v", err)
	}
	if !strings.HasPrefix(dbErr.Statement.SQL, `CREATE VIEW "form_7" AS`) {
		t.Errorf("unexpected failing statement %q", dbErr.Statement.SQL)
	}
	if !strings.Contains(renderError(err, true), "jsonview apply --replace") {
		t.Error("expected the --replace hint")
	}
}

func TestApplyCommand_DeadlockNotRetriedByDefault(t *testing.T) {
	mock := mockConnect(t)
	path := writeProject(t, "")

	mock.ExpectQuery("installed").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectBegin()
	mock.ExpectExec("view").WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	_, err := run(t, "apply", "--config", path, "--database-url", "postgres://localhost/forms")

	var dbErr *migrate.DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected a DatabaseError, got %v", err)
	}
	if err.Error() != dbErr.Error() {
		t.Errorf("error was wrapped: %q", err.Error())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInstallCommand_Installs(t *testing.T) {
	mock := mockConnect(t)

	mock.ExpectBegin()
	for range extract.Library(extract.Core) {
		mock.ExpectExec("function").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	out, err := run(t, "install", "--database-url", "postgres://localhost/forms")
	if err != nil {
		t.Fatalf("install error = %v", err)
	}
	if !strings.Contains(out, "Installed core extraction functions") {
		t.Errorf("unexpected output %q", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
