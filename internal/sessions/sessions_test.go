package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/itsatony/recorderhub/internal/database/dbtest"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/itsatony/recorderhub/internal/registry"
	"github.com/itsatony/recorderhub/internal/repository/repotest"
	"github.com/itsatony/recorderhub/internal/tracker"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *repotest.Store
	runner *dbtest.Runner
	clock  clockwork.FakeClock
	svc    *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.NewStore()
	clock := clockwork.NewFakeClockAt(epoch)
	trk := tracker.New(store.Statuses())
	reg := registry.New(store.Devices(), trk, clock, registry.Config{
		DownThreshold:   time.Minute,
		StreamKeepAlive: 30 * time.Second,
	})
	runner := dbtest.NewRunner()
	return &fixture{
		store:  store,
		runner: runner,
		clock:  clock,
		svc:    New(runner, store.Sessions(), store.Statuses(), reg, trk, clock),
	}
}

func request(specs ...models.DeviceSpec) *models.CreateSessionRequest {
	return &models.CreateSessionRequest{
		Name:       "night shift",
		Duration:   3600,
		TargetFPS:  15,
		DeviceSpec: specs,
	}
}

func TestCreate_AssignsFreeDevices(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddDevice("cam-a", epoch)
	b := f.store.AddDevice("cam-b", epoch)

	session, err := f.svc.Create(context.Background(), request(
		models.DeviceSpec{DeviceID: b.ID, FilenamePrefix: "north"},
		models.DeviceSpec{DeviceID: a.ID},
	))
	require.NoError(t, err)

	assert.Equal(t, models.SessionInProgress, session.Status)
	assert.Equal(t, epoch, session.CreationTime)
	require.Len(t, session.DeviceStatuses, 2)
	assert.Equal(t, "north", session.DeviceStatuses[0].FilePrefix)
	assert.Equal(t, "cam-a", session.DeviceStatuses[1].FilePrefix)

	for _, id := range []int64{a.ID, b.ID} {
		stored := f.store.Status(id, session.ID)
		require.NotNil(t, stored)
		assert.Equal(t, models.StatusPending, stored.Status)
		assert.True(t, f.store.Device(id).InSession(session.ID))
	}
	assert.True(t, f.runner.Tx.Committed)
}

func TestCreate_BusyDeviceGetsFailedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.store.AddDevice("cam-a", epoch)
	b := f.store.AddDevice("cam-b", epoch)

	first, err := f.svc.Create(ctx, request(models.DeviceSpec{DeviceID: a.ID}))
	require.NoError(t, err)

	second, err := f.svc.Create(ctx, request(models.DeviceSpec{DeviceID: a.ID}, models.DeviceSpec{DeviceID: b.ID}))
	require.NoError(t, err)

	failed := f.store.Status(a.ID, second.ID)
	require.NotNil(t, failed)
	assert.Equal(t, models.StatusFailed, failed.Status)
	require.NotNil(t, failed.Message)
	assert.Equal(t, BusyMessage("cam-a", first.ID), *failed.Message)
	assert.Contains(t, *failed.Message, "already assigned")

	assert.True(t, f.store.Device(a.ID).InSession(first.ID))
	assert.True(t, f.store.Device(b.ID).InSession(second.ID))
	assert.Equal(t, models.StatusPending, f.store.Status(b.ID, second.ID).Status)
}

func TestCreate_UnknownDevicesAreRejected(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddDevice("cam-a", epoch)

	_, err := f.svc.Create(context.Background(), request(
		models.DeviceSpec{DeviceID: a.ID},
		models.DeviceSpec{DeviceID: 99},
		models.DeviceSpec{DeviceID: 42},
	))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "42, 99")

	assert.Nil(t, f.store.Device(a.ID).SessionID)
	assert.Nil(t, f.store.Session(2))
}

func TestCreate_InvalidRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &models.CreateSessionRequest{Name: "x"})
	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, f.runner.Calls)
}

func TestCreate_DatabaseFailure(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddDevice("cam-a", epoch)
	f.store.FailOn["device.lock"] = nil

	_, err := f.svc.Create(context.Background(), request(models.DeviceSpec{DeviceID: a.ID}))
	assert.True(t, errors.IsDatabase(err))
	assert.True(t, f.runner.Tx.RolledBack)
}

func TestCancel_CancelsActiveStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.store.AddDevice("cam-a", epoch)
	b := f.store.AddDevice("cam-b", epoch)
	c := f.store.AddDevice("cam-c", epoch)

	session, err := f.svc.Create(ctx, request(
		models.DeviceSpec{DeviceID: a.ID},
		models.DeviceSpec{DeviceID: b.ID},
		models.DeviceSpec{DeviceID: c.ID},
	))
	require.NoError(t, err)
	f.store.PutStatus(&models.DeviceSessionStatus{DeviceID: b.ID, SessionID: session.ID, Status: models.StatusRecording, RecordingTime: 40})
	f.store.PutStatus(&models.DeviceSessionStatus{DeviceID: c.ID, SessionID: session.ID, Status: models.StatusComplete, RecordingTime: 3600})

	canceled, err := f.svc.Cancel(ctx, session.ID, false)
	require.NoError(t, err)

	assert.Equal(t, models.SessionCanceled, canceled.Status)
	assert.False(t, canceled.Archived)
	assert.Equal(t, models.StatusCanceled, f.store.Status(a.ID, session.ID).Status)
	assert.Equal(t, models.StatusCanceled, f.store.Status(b.ID, session.ID).Status)
	assert.Equal(t, models.StatusComplete, f.store.Status(c.ID, session.ID).Status)

	// devices are released by their next heartbeat
	assert.True(t, f.store.Device(a.ID).InSession(session.ID))
}

func TestCancel_CompletedSessionKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.store.AddDevice("cam-a", epoch)

	session, err := f.svc.Create(ctx, request(models.DeviceSpec{DeviceID: a.ID}))
	require.NoError(t, err)
	f.store.PutStatus(&models.DeviceSessionStatus{DeviceID: a.ID, SessionID: session.ID, Status: models.StatusComplete})
	_, err = f.svc.CheckForComplete(ctx)
	require.NoError(t, err)

	archived, err := f.svc.Cancel(ctx, session.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.SessionComplete, archived.Status)
	assert.True(t, archived.Archived)
}

func TestCancel_UnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Cancel(context.Background(), 7, false)
	assert.True(t, errors.IsNotFound(err))
}

func TestCheckForComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.store.AddDevice("cam-a", epoch)
	b := f.store.AddDevice("cam-b", epoch)

	done, err := f.svc.Create(ctx, request(models.DeviceSpec{DeviceID: a.ID}))
	require.NoError(t, err)
	running, err := f.svc.Create(ctx, request(models.DeviceSpec{DeviceID: b.ID}))
	require.NoError(t, err)

	msg := "disk full"
	f.store.PutStatus(&models.DeviceSessionStatus{DeviceID: a.ID, SessionID: done.ID, Status: models.StatusFailed, Message: &msg})
	f.store.PutStatus(&models.DeviceSessionStatus{DeviceID: b.ID, SessionID: running.ID, Status: models.StatusRecording})

	ids, err := f.svc.CheckForComplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{done.ID}, ids)
	assert.Equal(t, models.SessionComplete, f.store.Session(done.ID).Status)
	assert.Equal(t, models.SessionInProgress, f.store.Session(running.ID).Status)
}

func TestList_RunsCompletionCheckFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.store.AddDevice("cam-a", epoch)
	b := f.store.AddDevice("cam-b", epoch)

	older, err := f.svc.Create(ctx, request(models.DeviceSpec{DeviceID: a.ID}))
	require.NoError(t, err)
	newer, err := f.svc.Create(ctx, request(models.DeviceSpec{DeviceID: b.ID}))
	require.NoError(t, err)
	f.store.PutStatus(&models.DeviceSessionStatus{DeviceID: a.ID, SessionID: older.ID, Status: models.StatusComplete})

	sessions, err := f.svc.List(ctx, models.SessionFilters{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID, sessions[0].ID)
	assert.Equal(t, models.SessionComplete, sessions[1].Status)
	require.Len(t, sessions[1].DeviceStatuses, 1)
	assert.Equal(t, "cam-a", sessions[1].DeviceStatuses[0].DeviceName)

	require.NoError(t, f.svc.Archive(ctx, older.ID))
	archived, err := f.svc.List(ctx, models.SessionFilters{Archived: true})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, older.ID, archived[0].ID)
}

func TestList_CompletionFailureDoesNotBlockListing(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddDevice("cam-a", epoch)
	_, err := f.svc.Create(context.Background(), request(models.DeviceSpec{DeviceID: a.ID}))
	require.NoError(t, err)
	f.store.FailOn["session.complete"] = nil

	sessions, err := f.svc.List(context.Background(), models.SessionFilters{})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRemoveDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.store.AddDevice("cam-a", epoch)

	session, err := f.svc.Create(ctx, request(models.DeviceSpec{DeviceID: a.ID}))
	require.NoError(t, err)

	status, err := f.svc.RemoveDevice(ctx, session.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, status.Status)

	again, err := f.svc.RemoveDevice(ctx, session.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, again.Status)

	_, err = f.svc.RemoveDevice(ctx, session.ID, 99)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeviceStatus(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddDevice("cam-a", epoch)
	session, err := f.svc.Create(context.Background(), request(models.DeviceSpec{DeviceID: a.ID}))
	require.NoError(t, err)

	status, err := f.svc.DeviceStatus(context.Background(), session.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status.Status)
	assert.Equal(t, "cam-a", status.DeviceName)

	_, err = f.svc.DeviceStatus(context.Background(), session.ID+1, a.ID)
	assert.True(t, errors.IsNotFound(err))
}
