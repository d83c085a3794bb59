package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timottowitz/obelisk-backend/internal/cases/domain"
	"github.com/timottowitz/obelisk-backend/internal/cases/repository"
	"github.com/timottowitz/obelisk-backend/internal/cases/service"
	"github.com/timottowitz/obelisk-backend/pkg/database"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/logger"
	"github.com/timottowitz/obelisk-backend/pkg/tenant"
	"github.com/timottowitz/obelisk-backend/pkg/testutil"
)

const testSchema = "org_acme_deadbeef"

// recordingEvents captures published event types
type recordingEvents struct {
	events []string
}

func (r *recordingEvents) CaseChanged(ctx context.Context, eventType string, c *domain.Case) {
	r.events = append(r.events, eventType)
}

func (r *recordingEvents) TaskChanged(ctx context.Context, eventType string, t *domain.Task) {
	r.events = append(r.events, eventType)
}

func newCaseService(t *testing.T) (*service.CaseService, *recordingEvents, *testutil.MockDB, context.Context) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewWithDB(mockDB.DB, logger.New("test", "test"))
	events := &recordingEvents{}
	svc := service.NewCaseService(repository.NewCaseRepository(db), events, logger.New("test", "test"))
	ctx := tenant.WithTenantSchema(context.Background(), testSchema)
	return svc, events, mockDB, ctx
}

func expectGetCase(mockDB *testutil.MockDB, id, status string) {
	now := time.Now()
	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("SELECT * FROM cases WHERE id").
		WithArgs(id).
		WillReturnRows(testutil.MockRows(
			"id", "case_number", "title", "description", "case_type_id", "status",
			"assigned_to", "created_at", "updated_at").
			AddRow(id, "2026-00001", "Contract dispute", "", nil, status, nil, now, now))
	mockDB.ExpectCommit()
}

func TestCaseUpdate_ClosingPublishesCaseClosed(t *testing.T) {
	svc, events, mockDB, ctx := newCaseService(t)
	id := "cccc3333-0000-0000-0000-000000000000"

	expectGetCase(mockDB, id, domain.CaseStatusOpen)

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("UPDATE cases").
		WithArgs("Contract dispute", "", nil, "closed", nil, id).
		WillReturnRows(testutil.MockRows("updated_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	closed := domain.CaseStatusClosed
	c, err := svc.Update(ctx, id, &service.UpdateCaseRequest{Status: &closed})
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusClosed, c.Status)
	assert.Equal(t, []string{"case.closed"}, events.events)
	mockDB.ExpectationsWereMet(t)
}

func TestCaseUpdate_TitleChangePublishesCaseUpdated(t *testing.T) {
	svc, events, mockDB, ctx := newCaseService(t)
	id := "cccc3333-0000-0000-0000-000000000001"

	expectGetCase(mockDB, id, domain.CaseStatusOpen)

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("UPDATE cases").
		WithArgs("Renamed dispute", "", nil, "open", nil, id).
		WillReturnRows(testutil.MockRows("updated_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	title := "Renamed dispute"
	_, err := svc.Update(ctx, id, &service.UpdateCaseRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, []string{"case.updated"}, events.events)
	mockDB.ExpectationsWereMet(t)
}

func TestCaseUpdate_ArchivedCaseRejected(t *testing.T) {
	svc, events, mockDB, ctx := newCaseService(t)
	id := "cccc3333-0000-0000-0000-000000000002"

	expectGetCase(mockDB, id, domain.CaseStatusArchived)

	title := "New title"
	_, err := svc.Update(ctx, id, &service.UpdateCaseRequest{Title: &title})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Empty(t, events.events, "no event for a rejected update")
	mockDB.ExpectationsWereMet(t)
}

func TestCaseCreate_AllocatesSequentialNumber(t *testing.T) {
	svc, events, mockDB, ctx := newCaseService(t)

	year := time.Now().Year()

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("SELECT COUNT(*) FROM cases WHERE case_number LIKE").
		WillReturnRows(testutil.MockRows("count").AddRow(41))
	mockDB.ExpectCommit()

	now := time.Now()
	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("INSERT INTO cases").
		WithArgs(caseNumber(year, 42), "New matter", "", nil, "open", nil).
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").
			AddRow("dddd4444-0000-0000-0000-000000000000", now, now))
	mockDB.ExpectCommit()

	c, err := svc.Create(ctx, &service.CreateCaseRequest{Title: "New matter"})
	require.NoError(t, err)
	assert.Equal(t, caseNumber(year, 42), c.CaseNumber)
	assert.Equal(t, []string{"case.created"}, events.events)
	mockDB.ExpectationsWereMet(t)
}

func TestCaseCreate_RetriesOnNumberCollision(t *testing.T) {
	svc, events, mockDB, ctx := newCaseService(t)
	year := time.Now().Year()
	now := time.Now()

	// First attempt: derives 42, loses the race to a concurrent create.
	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("SELECT COUNT(*) FROM cases WHERE case_number LIKE").
		WillReturnRows(testutil.MockRows("count").AddRow(41))
	mockDB.ExpectCommit()

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("INSERT INTO cases").
		WithArgs(caseNumber(year, 42), "Racing matter", "", nil, "open", nil).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "cases_case_number_key"})
	mockDB.ExpectRollback()

	// Second attempt: the winner's row is visible, 43 is free.
	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("SELECT COUNT(*) FROM cases WHERE case_number LIKE").
		WillReturnRows(testutil.MockRows("count").AddRow(42))
	mockDB.ExpectCommit()

	mockDB.ExpectTenantScope(testSchema)
	mockDB.ExpectQuery("INSERT INTO cases").
		WithArgs(caseNumber(year, 43), "Racing matter", "", nil, "open", nil).
		WillReturnRows(testutil.MockRows("id", "created_at", "updated_at").
			AddRow("eeee5555-0000-0000-0000-000000000000", now, now))
	mockDB.ExpectCommit()

	c, err := svc.Create(ctx, &service.CreateCaseRequest{Title: "Racing matter"})
	require.NoError(t, err)
	assert.Equal(t, caseNumber(year, 43), c.CaseNumber)
	assert.Equal(t, []string{"case.created"}, events.events, "one event for the create that landed")
	mockDB.ExpectationsWereMet(t)
}

func caseNumber(year, seq int) string {
	return fmt.Sprintf("%d-%05d", year, seq)
}
