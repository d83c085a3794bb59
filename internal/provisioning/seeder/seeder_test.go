package seeder_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timottowitz/obelisk-backend/internal/provisioning/seeder"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/testutil"
)

const schema = "org_acme_deadbeef"

func newTestSeeder(t *testing.T) (*seeder.Seeder, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewWithDB(mockDB.DB, logger.New("test", "test"))
	return seeder.New(db, logger.New("test", "test")), mockDB
}

func TestSeed_InsertsMissingSkipsExisting(t *testing.T) {
	s, mockDB := newTestSeeder(t)

	caseTypes := []seeder.CaseTypeConfig{
		{Name: "solar", DisplayName: "Solar Litigation"},
		{Name: "IMVA", DisplayName: "Immigrant Motor Vehicle Accident"},
	}

	// "solar" already present: looked up, left alone.
	mockDB.ExpectQuery("SELECT id FROM " + schema + ".case_types").
		WithArgs("solar").
		WillReturnRows(testutil.MockRows("id").AddRow("id-solar"))
	// its folder templates still converge (none configured here)

	// "IMVA" missing: inserted.
	mockDB.ExpectQuery("SELECT id FROM " + schema + ".case_types").
		WithArgs("IMVA").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("INSERT INTO " + schema + ".case_types").
		WithArgs("IMVA", "Immigrant Motor Vehicle Accident", "", "", "").
		WillReturnRows(testutil.MockRows("id").AddRow("id-imva"))

	err := s.Seed(context.Background(), schema, caseTypes, nil)
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestSeed_FolderTemplatesFollowCaseType(t *testing.T) {
	s, mockDB := newTestSeeder(t)

	caseTypes := []seeder.CaseTypeConfig{
		{
			Name:        "general",
			DisplayName: "General Matter",
			Folders: []seeder.FolderTemplate{
				{Name: "Documents", Path: "documents", SortOrder: 1, Required: true},
				{Name: "Notes", Path: "notes", SortOrder: 2},
			},
		},
	}

	mockDB.ExpectQuery("SELECT id FROM " + schema + ".case_types").
		WithArgs("general").
		WillReturnRows(testutil.MockRows("id").AddRow("id-general"))

	// "documents" exists, "notes" is inserted.
	mockDB.ExpectQuery("SELECT id FROM " + schema + ".folder_templates").
		WithArgs("id-general", "documents").
		WillReturnRows(testutil.MockRows("id").AddRow("id-docs"))
	mockDB.ExpectQuery("SELECT id FROM " + schema + ".folder_templates").
		WithArgs("id-general", "notes").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectExec("INSERT INTO " + schema + ".folder_templates").
		WithArgs("id-general", "Notes", "notes", nil, 2, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Seed(context.Background(), schema, caseTypes, nil)
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestSeed_FailedItemIsSkippedNotFatal(t *testing.T) {
	s, mockDB := newTestSeeder(t)

	caseTypes := []seeder.CaseTypeConfig{
		{Name: "solar", DisplayName: "Solar Litigation"},
		{Name: "general", DisplayName: "General Matter"},
	}

	// First insert fails; seeding continues with the next item.
	mockDB.ExpectQuery("SELECT id FROM " + schema + ".case_types").
		WithArgs("solar").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("INSERT INTO " + schema + ".case_types").
		WithArgs("solar", "Solar Litigation", "", "", "").
		WillReturnError(errors.New("connection reset"))

	mockDB.ExpectQuery("SELECT id FROM " + schema + ".case_types").
		WithArgs("general").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("INSERT INTO " + schema + ".case_types").
		WithArgs("general", "General Matter", "", "", "").
		WillReturnRows(testutil.MockRows("id").AddRow("id-general"))

	err := s.Seed(context.Background(), schema, caseTypes, nil)
	require.NoError(t, err, "per-item failures must not abort seeding")
	mockDB.ExpectationsWereMet(t)
}

func TestSeed_TaskCategories(t *testing.T) {
	s, mockDB := newTestSeeder(t)

	cats := []seeder.TaskCategory{
		{Name: "intake", Description: "Client intake and onboarding"},
		{Name: "filing", Description: "Court filings and deadlines"},
	}

	mockDB.ExpectQuery("SELECT id FROM " + schema + ".task_categories").
		WithArgs("intake").
		WillReturnRows(testutil.MockRows("id").AddRow("id-intake"))
	mockDB.ExpectQuery("SELECT id FROM " + schema + ".task_categories").
		WithArgs("filing").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectExec("INSERT INTO " + schema + ".task_categories").
		WithArgs("filing", "Court filings and deadlines").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Seed(context.Background(), schema, nil, cats)
	require.NoError(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestSeed_RejectsInvalidSchema(t *testing.T) {
	s, _ := newTestSeeder(t)
	err := s.Seed(context.Background(), "Bad;Schema", nil, nil)
	require.Error(t, err)
}

func TestDefaults_ReturnFreshSlices(t *testing.T) {
	a := seeder.DefaultCaseTypes()
	a[0].Name = "mutated"
	b := seeder.DefaultCaseTypes()
	assert.Equal(t, "solar", b[0].Name)

	c := seeder.DefaultTaskCategories()
	c[0].Name = "mutated"
	d := seeder.DefaultTaskCategories()
	assert.Equal(t, "intake", d[0].Name)
}
