package migrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/migrator"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	apperrors "github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/testutil"
)

const testSchema = "org_acme_deadbeef"

// staticSource serves a fixed file set
type staticSource struct {
	files []migrator.File
	err   error
}

func (s *staticSource) List(ctx context.Context) ([]migrator.File, error) {
	return s.files, s.err
}

// recordingExposer counts exposure calls
type recordingExposer struct {
	calls int
	err   error
}

func (e *recordingExposer) Expose(ctx context.Context, schema string) error {
	e.calls++
	return e.err
}

func testFiles() []migrator.File {
	return []migrator.File{
		{Filename: "001_init.sql", SQL: "CREATE TABLE {{SCHEMA_NAME}}.case_types (id UUID)"},
		{Filename: "002_cases.sql", SQL: "CREATE TABLE {{SCHEMA_NAME}}.cases (id UUID)"},
	}
}

func newTestMigrator(t *testing.T, source migrator.Source, exposer migrator.SchemaExposer) (*migrator.Migrator, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewWithDB(mockDB.DB, logger.New("test", "test"))
	return migrator.New(db, source, exposer, logger.New("test", "test")), mockDB
}

func expectRunPreamble(m *testutil.MockDB, appliedRows *sqlmock.Rows) {
	m.ExpectExec("CREATE TABLE IF NOT EXISTS public.tenant_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	m.ExpectQuery("SELECT filename FROM public.tenant_migrations").
		WithArgs(testSchema).
		WillReturnRows(appliedRows)
	m.ExpectExec("CREATE SCHEMA IF NOT EXISTS " + testSchema).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectApply(m *testutil.MockDB, filename, substitutedSQL string) {
	m.ExpectBegin()
	m.ExpectExec(substitutedSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	m.ExpectExec("INSERT INTO public.tenant_migrations").
		WithArgs(testSchema, filename).
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()
}

func TestRun_FreshSchemaAppliesAllInOrder(t *testing.T) {
	exposer := &recordingExposer{}
	m, mockDB := newTestMigrator(t, &staticSource{files: testFiles()}, exposer)

	expectRunPreamble(mockDB, testutil.MockRows("filename"))
	expectApply(mockDB, "001_init.sql", "CREATE TABLE "+testSchema+".case_types (id UUID)")
	expectApply(mockDB, "002_cases.sql", "CREATE TABLE "+testSchema+".cases (id UUID)")

	applied, err := m.Run(context.Background(), testSchema)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 2, exposer.calls, "schema should be re-exposed after each file")
	mockDB.ExpectationsWereMet(t)
}

func TestRun_ResumesFromFirstUnapplied(t *testing.T) {
	exposer := &recordingExposer{}
	m, mockDB := newTestMigrator(t, &staticSource{files: testFiles()}, exposer)

	expectRunPreamble(mockDB, testutil.MockRows("filename").AddRow("001_init.sql"))
	expectApply(mockDB, "002_cases.sql", "CREATE TABLE "+testSchema+".cases (id UUID)")

	applied, err := m.Run(context.Background(), testSchema)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, exposer.calls)
	mockDB.ExpectationsWereMet(t)
}

func TestRun_FullyMigratedSchemaIsNoOp(t *testing.T) {
	exposer := &recordingExposer{}
	m, mockDB := newTestMigrator(t, &staticSource{files: testFiles()}, exposer)

	expectRunPreamble(mockDB, testutil.MockRows("filename").
		AddRow("001_init.sql").
		AddRow("002_cases.sql"))

	applied, err := m.Run(context.Background(), testSchema)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 0, exposer.calls)
	mockDB.ExpectationsWereMet(t)
}

func TestRun_FailingFileAbortsAndNamesFile(t *testing.T) {
	exposer := &recordingExposer{}
	m, mockDB := newTestMigrator(t, &staticSource{files: testFiles()}, exposer)

	expectRunPreamble(mockDB, testutil.MockRows("filename"))
	expectApply(mockDB, "001_init.sql", "CREATE TABLE "+testSchema+".case_types (id UUID)")

	mockDB.ExpectBegin()
	mockDB.ExpectExec("CREATE TABLE " + testSchema + ".cases (id UUID)").
		WillReturnError(errors.New("syntax error at or near \"UUID\""))
	mockDB.ExpectRollback()

	applied, err := m.Run(context.Background(), testSchema)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMigrationFailed))

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "002_cases.sql", appErr.Details["filename"])

	assert.Equal(t, 1, applied, "first file committed before the failure")
	assert.Equal(t, 1, exposer.calls, "exposure ran only for the committed file")
	mockDB.ExpectationsWereMet(t)
}

func TestRun_ConcurrentLedgerInsertIsSkipped(t *testing.T) {
	exposer := &recordingExposer{}
	m, mockDB := newTestMigrator(t, &staticSource{files: testFiles()}, exposer)

	expectRunPreamble(mockDB, testutil.MockRows("filename"))

	// Another run wins the race on 001: its ledger row lands first, our
	// insert hits the unique constraint, our transaction rolls back and the
	// run continues with 002.
	mockDB.ExpectBegin()
	mockDB.ExpectExec("CREATE TABLE " + testSchema + ".case_types (id UUID)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectExec("INSERT INTO public.tenant_migrations").
		WithArgs(testSchema, "001_init.sql").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tenant_migrations_schema_name_filename_key"})
	mockDB.ExpectRollback()

	expectApply(mockDB, "002_cases.sql", "CREATE TABLE "+testSchema+".cases (id UUID)")

	applied, err := m.Run(context.Background(), testSchema)
	require.NoError(t, err)
	assert.Equal(t, 1, applied, "only 002 counts toward this run")
	assert.Equal(t, 1, exposer.calls)
	mockDB.ExpectationsWereMet(t)
}

func TestRun_ExposureFailureAbortsRun(t *testing.T) {
	exposer := &recordingExposer{err: errors.New("notify failed")}
	m, mockDB := newTestMigrator(t, &staticSource{files: testFiles()}, exposer)

	expectRunPreamble(mockDB, testutil.MockRows("filename"))
	expectApply(mockDB, "001_init.sql", "CREATE TABLE "+testSchema+".case_types (id UUID)")

	applied, err := m.Run(context.Background(), testSchema)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMigrationFailed))
	assert.Equal(t, 1, applied)
	mockDB.ExpectationsWereMet(t)
}

func TestRun_RejectsInvalidSchemaName(t *testing.T) {
	m, _ := newTestMigrator(t, &staticSource{}, &recordingExposer{})

	for _, schema := range []string{"", "Org_Upper", "org;drop", "1starts_with_digit", "org name"} {
		_, err := m.Run(context.Background(), schema)
		require.Error(t, err, "schema %q must be rejected", schema)
	}
}

func TestRun_FilesAppliedInFilenameOrder(t *testing.T) {
	// Source returns files out of order; the migrator must sort by filename
	// before applying.
	files := []migrator.File{
		{Filename: "002_cases.sql", SQL: "CREATE TABLE {{SCHEMA_NAME}}.cases (id UUID)"},
		{Filename: "001_init.sql", SQL: "CREATE TABLE {{SCHEMA_NAME}}.case_types (id UUID)"},
	}
	exposer := &recordingExposer{}
	m, mockDB := newTestMigrator(t, &staticSource{files: files}, exposer)

	expectRunPreamble(mockDB, testutil.MockRows("filename"))
	expectApply(mockDB, "001_init.sql", "CREATE TABLE "+testSchema+".case_types (id UUID)")
	expectApply(mockDB, "002_cases.sql", "CREATE TABLE "+testSchema+".cases (id UUID)")

	applied, err := m.Run(context.Background(), testSchema)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	mockDB.ExpectationsWereMet(t)
}
