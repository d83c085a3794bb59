package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timottowitz/obelisk-backend/internal/cases/domain"
	"github.com/timottowitz/obelisk-backend/internal/cases/repository"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/tenant"
	"github.com/timottowitz/obelisk-backend/pkg/testutil"
)

const testSchema = "org_acme_deadbeef"

func newCaseRepo(t *testing.T) (*repository.CaseRepository, *testutil.MockDB, context.Context) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewWithDB(mockDB.DB, logger.New("test", "test"))
	ctx := tenant.WithTenantSchema(context.Background(), testSchema)
	return repository.NewCaseRepository(db), mockDB, ctx
}

func TestCaseCreate_ScopedToTenantSchema(t *testing.T) {
	repo, mockDB, ctx := newCaseRepo(t)
	now := time.Now()

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("INSERT INTO cases").
		WithArgs("2026-00001", "Rooftop contract dispute", "", nil, "open", nil).
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").
			AddRow("aaaa1111-0000-0000-0000-000000000000", now, now))
	mockDB.ExpectCommit()

	c := &domain.Case{
		CaseNumber: "2026-00001",
		Title:      "Rooftop contract dispute",
		Status:     domain.CaseStatusOpen,
	}
	require.NoError(t, repo.Create(ctx, c))
	assert.Equal(t, "aaaa1111-0000-0000-0000-000000000000", c.ID)
	mockDB.ExpectationsWereMet(t)
}

func TestCaseCreate_DuplicateNumberIsConflict(t *testing.T) {
	repo, mockDB, ctx := newCaseRepo(t)

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("INSERT INTO cases").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "cases_case_number_key"})
	mockDB.ExpectRollback()

	c := &domain.Case{CaseNumber: "2026-00001", Title: "Duplicate", Status: domain.CaseStatusOpen}
	err := repo.Create(ctx, c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	mockDB.ExpectationsWereMet(t)
}

func TestCaseGetByID_NotFound(t *testing.T) {
	repo, mockDB, ctx := newCaseRepo(t)

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("SELECT * FROM cases WHERE id").
		WithArgs("missing-id").
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectRollback()

	_, err := repo.GetByID(ctx, "missing-id")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestCaseRepo_RequiresTenantContext(t *testing.T) {
	repo, _, _ := newCaseRepo(t)

	// A context without a resolved tenant must never produce a query.
	_, err := repo.GetByID(context.Background(), "any-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, tenant.ErrNoTenantInContext)
}

func TestCaseList_CountsAndPaginates(t *testing.T) {
	repo, mockDB, ctx := newCaseRepo(t)
	now := time.Now()

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("SELECT COUNT(*) FROM cases").
		WithArgs("open").
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mockDB.ExpectQuery("SELECT * FROM cases").
		WithArgs("open", 20, 0).
		WillReturnRows(testutil.MockRows(
			"id", "case_number", "title", "description", "case_type_id", "status",
			"assigned_to", "created_at", "updated_at").
			AddRow("bbbb2222-0000-0000-0000-000000000000", "2026-00001", "Open case", "", nil, "open", nil, now, now))
	mockDB.ExpectCommit()

	cases, total, err := repo.List(ctx, repository.CaseFilter{Status: "open"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, cases, 1)
	assert.Equal(t, "2026-00001", cases[0].CaseNumber)
	mockDB.ExpectationsWereMet(t)
}
