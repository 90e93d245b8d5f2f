package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donortrack/internal/activity"
	"donortrack/internal/db"
	"donortrack/internal/domain"
	"donortrack/internal/migrate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir(), Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return New(conn)
}

func strPtr(s string) *string { return &s }

func galaDonors() []DonorInput {
	return []DonorInput{
		{FirstName: "Carlos", LastName: "Smith", PMM: "PMM123", OrganizationName: "Smith Foundation", City: "Vancouver", TotalDonations: 15000},
		{FirstName: "Maria", NickName: "Mia", LastName: "Johnson", PMM: "PMM456", OrganizationName: "Johnson LLC", City: "Victoria", TotalDonations: 8200.5},
	}
}

func TestCreateEventIDsIncrease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.CreateEvent(ctx, EventInput{Name: "Event", Location: "Vancouver"})
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
	events, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].ID, events[i].ID)
	}
}

func TestCreateEventRequiresName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateEvent(context.Background(), EventInput{Name: "  "})
	var ie *InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "name", ie.Field)
}

func TestGetEventNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEvent(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDonorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	in := DonorInput{FirstName: "Ada", NickName: "Addy", LastName: "Lovelace", PMM: "PMM1", OrganizationName: "Engines Ltd", City: "Burnaby", TotalDonations: 1234.5}
	id, err := s.CreateDonor(ctx, in)
	require.NoError(t, err)
	require.Positive(t, id)

	donors, err := s.ListDonors(ctx)
	require.NoError(t, err)
	require.Len(t, donors, 1)
	d := donors[0]
	assert.Equal(t, id, d.ID)
	assert.Equal(t, in.FirstName, d.FirstName)
	assert.Equal(t, in.NickName, d.NickName)
	assert.Equal(t, in.LastName, d.LastName)
	assert.Equal(t, in.PMM, d.PMM)
	assert.Equal(t, in.OrganizationName, d.OrganizationName)
	assert.Equal(t, in.City, d.City)
	assert.Equal(t, in.TotalDonations, d.TotalDonations)
	assert.NotEmpty(t, d.CreatedAt)

	got, err := s.GetDonor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestCreateDonorValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateDonor(ctx, DonorInput{FirstName: "No", LastName: "Manager"})
	var ie *InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "pmm", ie.Field)

}

func TestNegativeTotalDonationsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateDonor(ctx, DonorInput{FirstName: "Refund", PMM: "P", TotalDonations: -125.5})
	require.NoError(t, err)
	d, err := s.GetDonor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, -125.5, d.TotalDonations)
}

func TestFindDonorByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.FindDonorByName(ctx, "Carlos", "Smith")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := s.CreateDonorsBatch(ctx, galaDonors())
	require.NoError(t, err)

	d, err := s.FindDonorByName(ctx, "Carlos", "Smith")
	require.NoError(t, err)
	assert.Equal(t, ids[0], d.ID)
	assert.Equal(t, "PMM123", d.PMM)
}

func TestFindOrCreateDonorReusesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first, err := s.CreateDonor(ctx, DonorInput{FirstName: "Carlos", LastName: "Smith", PMM: "PMM123"})
	require.NoError(t, err)

	id, created, err := s.FindOrCreateDonor(ctx, DonorInput{FirstName: "Carlos", LastName: "Smith", PMM: "PMM999", City: "Elsewhere"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, id)

	donors, err := s.ListDonors(ctx)
	require.NoError(t, err)
	assert.Len(t, donors, 1)
}

func TestFindOrCreateDonorConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], _, errs[i] = s.FindOrCreateDonor(ctx, DonorInput{FirstName: "Maria", LastName: "Johnson", PMM: "PMM456"})
		}(i)
	}
	wg.Wait()
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	donors, err := s.ListDonors(ctx)
	require.NoError(t, err)
	assert.Len(t, donors, 1)
}

func TestCreateDonorsBatchIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.DB.ExecContext(ctx, `CREATE TRIGGER fail_donor BEFORE INSERT ON donors
WHEN NEW.first_name = 'Boom' BEGIN SELECT RAISE(ABORT, 'boom'); END`)
	require.NoError(t, err)

	batch := append(galaDonors(), DonorInput{FirstName: "Boom", LastName: "Bust", PMM: "PMM1"})
	ids, err := s.CreateDonorsBatch(ctx, batch)
	require.Error(t, err)
	assert.Nil(t, ids)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Error(), "boom")

	donors, err := s.ListDonors(ctx)
	require.NoError(t, err)
	assert.Empty(t, donors)

	entries, err := s.ListActivity(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "activity rolls back with the batch")
}

func TestCreateDonorsBatchValidatesEveryRecord(t *testing.T) {
	s := newTestStore(t)
	batch := append(galaDonors(), DonorInput{FirstName: "Missing", LastName: "PMM"})
	_, err := s.CreateDonorsBatch(context.Background(), batch)
	var ie *InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "donors[2].pmm", ie.Field)
}

func TestCreateTasksForEventRejectsUnknownReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	eventID, err := s.CreateEvent(ctx, EventInput{Name: "Gala"})
	require.NoError(t, err)
	donorIDs, err := s.CreateDonorsBatch(ctx, galaDonors())
	require.NoError(t, err)

	_, err = s.CreateTasksForEvent(ctx, eventID, append(donorIDs, 999))
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.ForeignKey(), se.Error())

	_, err = s.CreateTasksForEvent(ctx, 999, donorIDs)
	require.ErrorAs(t, err, &se)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks, "no partial task set")
}

func TestGalaScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eventID, err := s.CreateEvent(ctx, EventInput{Name: "Charity Gala", Location: "New York", Date: "2024-11-20", Description: "Annual gala"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), eventID)

	donorIDs, err := s.CreateDonorsBatch(ctx, galaDonors())
	require.NoError(t, err)
	require.Len(t, donorIDs, 2)

	taskIDs, err := s.CreateTasksForEvent(ctx, eventID, donorIDs)
	require.NoError(t, err)
	require.Len(t, taskIDs, 2)

	rows, err := s.ListTasksByEvent(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, domain.TaskPending, r.Status)
		assert.Nil(t, r.Reason)
		assert.Equal(t, eventID, r.EventID)
	}
	assert.Equal(t, "Carlos", rows[0].FirstName)
	assert.Equal(t, "Smith", rows[0].LastName)
	assert.Equal(t, "PMM123", rows[0].PMM)
	assert.Equal(t, "Smith Foundation", rows[0].OrganizationName)
	assert.Equal(t, "Vancouver", rows[0].City)
	assert.Equal(t, 15000.0, rows[0].TotalDonations)
	assert.Equal(t, "Mia", rows[1].NickName)

	other, err := s.CreateEvent(ctx, EventInput{Name: "Other"})
	require.NoError(t, err)
	empty, err := s.ListTasksByEvent(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	all, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func seedTasks(t *testing.T, s *Store) (eventID int64, taskIDs []int64) {
	t.Helper()
	ctx := context.Background()
	eventID, err := s.CreateEvent(ctx, EventInput{Name: "Charity Gala"})
	require.NoError(t, err)
	donorIDs, err := s.CreateDonorsBatch(ctx, galaDonors())
	require.NoError(t, err)
	taskIDs, err = s.CreateTasksForEvent(ctx, eventID, donorIDs)
	require.NoError(t, err)
	return eventID, taskIDs
}

func TestRejectWithReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, taskIDs := seedTasks(t, s)

	updated, err := s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskRejected, Reason: strPtr("Incomplete donor details")})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRejected, updated.Status)

	got, err := s.GetTask(ctx, taskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRejected, got.Status)
	require.NotNil(t, got.Reason)
	assert.Equal(t, "Incomplete donor details", *got.Reason)
}

func TestApproveClearsReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, taskIDs := seedTasks(t, s)

	_, err := s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskRejected, Reason: strPtr("wrong city")})
	require.NoError(t, err)
	got, err := s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskApproved, Reason: strPtr("ignored")})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskApproved, got.Status)
	assert.Nil(t, got.Reason)
}

func TestRejectWithEmptyReasonStoresNull(t *testing.T) {
	s := newTestStore(t)
	_, taskIDs := seedTasks(t, s)
	got, err := s.UpdateTaskStatus(context.Background(), TaskStatusUpdate{TaskID: taskIDs[1], Status: domain.TaskRejected, Reason: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, got.Reason)
}

func TestUpdateTaskStatusRejectsInvalidStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, taskIDs := seedTasks(t, s)

	for _, st := range []domain.TaskStatus{"", domain.TaskPending, "archived", "APPROVED"} {
		_, err := s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: st})
		var ie *InvalidInputError
		require.ErrorAs(t, err, &ie, "status %q", st)
		assert.Equal(t, "status", ie.Field)
	}
	got, err := s.GetTask(ctx, taskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, got.Status)
}

func TestUpdateTaskStatusUnknownTask(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpdateTaskStatus(context.Background(), TaskStatusUpdate{TaskID: 77, Status: domain.TaskApproved})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLockedPolicyRefusesTerminalTransitions(t *testing.T) {
	s := newTestStore(t)
	s.Policy = PolicyLocked
	ctx := context.Background()
	_, taskIDs := seedTasks(t, s)

	_, err := s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskApproved})
	require.NoError(t, err)

	_, err = s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskRejected, Reason: strPtr("changed mind")})
	assert.ErrorIs(t, err, ErrTaskFinalized)
	_, err = s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskApproved})
	assert.ErrorIs(t, err, ErrTaskFinalized)

	got, err := s.GetTask(ctx, taskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TaskApproved, got.Status)
}

func TestOpenPolicyAllowsCorrection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, taskIDs := seedTasks(t, s)
	_, err := s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskApproved})
	require.NoError(t, err)
	got, err := s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskRejected, Reason: strPtr("duplicate")})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRejected, got.Status)
}

func TestParseTransitionPolicy(t *testing.T) {
	p, err := ParseTransitionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyOpen, p)
	p, err = ParseTransitionPolicy(" Locked ")
	require.NoError(t, err)
	assert.Equal(t, PolicyLocked, p)
	_, err = ParseTransitionPolicy("strict")
	assert.Error(t, err)
}

func TestListTasksByPMM(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTasks(t, s)

	rows, err := s.ListTasksByPMM(ctx, "PMM456")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Maria", rows[0].FirstName)

	none, err := s.ListTasksByPMM(ctx, "NoSuchPMM")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	eventID, taskIDs := seedTasks(t, s)
	_, err := s.CreateDonor(ctx, DonorInput{FirstName: "Idle", LastName: "Donor", PMM: "PMM789"})
	require.NoError(t, err)
	_, err = s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskApproved})
	require.NoError(t, err)

	pmms, err := s.ListPMMs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PMM123", "PMM456", "PMM789"}, pmms)

	sums, err := s.PMMSummaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PMMSummary{
		{PMM: "PMM123", PendingCount: 0, CompletedCount: 1, ApprovedCount: 1},
		{PMM: "PMM456", PendingCount: 1},
		{PMM: "PMM789"},
	}, sums)

	counts, err := s.CountTasksByStatus(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, map[domain.TaskStatus]int{domain.TaskPending: 1, domain.TaskApproved: 1, domain.TaskRejected: 0}, counts)

	counts, err = s.CountTasksByStatus(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, 0, counts[domain.TaskPending])
}

func TestMutationsAppendActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := activity.WithActor(context.Background(), "coordinator")
	_, taskIDs := seedTasksAs(ctx, t, s)
	_, err := s.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: taskIDs[0], Status: domain.TaskApproved})
	require.NoError(t, err)

	entries, err := s.ListActivity(ctx, 0, 0)
	require.NoError(t, err)
	var types []string
	for _, e := range entries {
		types = append(types, e.Type)
		assert.Equal(t, "coordinator", e.ActorID)
	}
	assert.Equal(t, []string{
		activity.EventCreated,
		activity.DonorCreated,
		activity.DonorCreated,
		activity.TasksCreated,
		activity.TaskStatusChanged,
	}, types)

	tail, err := s.ListActivity(ctx, 2, entries[2].ID)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, activity.TasksCreated, tail[0].Type)

	_, err = s.ListActivity(ctx, -1, 0)
	assert.True(t, IsInvalidInput(err))
}

func seedTasksAs(ctx context.Context, t *testing.T, s *Store) (int64, []int64) {
	t.Helper()
	eventID, err := s.CreateEvent(ctx, EventInput{Name: "Gala"})
	require.NoError(t, err)
	donorIDs, err := s.CreateDonorsBatch(ctx, galaDonors())
	require.NoError(t, err)
	taskIDs, err := s.CreateTasksForEvent(ctx, eventID, donorIDs)
	require.NoError(t, err)
	return eventID, taskIDs
}

func TestObserveReportsOutcome(t *testing.T) {
	s := newTestStore(t)
	got := map[string]string{}
	s.Observe = func(op, outcome string, _ time.Duration) { got[op] = outcome }
	ctx := context.Background()

	_, _ = s.GetEvent(ctx, 1)
	_, _ = s.CreateEvent(ctx, EventInput{Name: "x"})
	_, _ = s.CreateDonor(ctx, DonorInput{})
	assert.Equal(t, "not_found", got["get event"])
	assert.Equal(t, "ok", got["create event"])
	assert.Equal(t, "invalid", got["create donor"])
}

func TestFaultKeepsTypedErrors(t *testing.T) {
	wrapped := fault("op", ErrNotFound)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	se := &StorageError{Op: "x", Err: errors.New("disk")}
	assert.Same(t, se, fault("op", se))
	var out *StorageError
	require.ErrorAs(t, fault("op", errors.New("boom")), &out)
	assert.Equal(t, "op", out.Op)
}
