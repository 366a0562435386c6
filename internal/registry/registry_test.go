package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/database/dbtest"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDeviceRepo struct {
	getOrCreateFn  func(name string, now time.Time) (*models.Device, bool, error)
	getForUpdateFn func(id int64) (*models.Device, error)
	lockByIDsFn    func(ids []int64) ([]*models.Device, error)
	updateFn       func(device *models.Device) error
	assignFn       func(deviceID, sessionID int64) error
	clearFn        func(deviceID int64) error
	setStreamFn    func(deviceID int64, at time.Time) error
	getFn          func(id int64) (*models.Device, error)
	getByNameFn    func(name string) (*models.Device, error)
	listFn         func(state models.DeviceState, cutoff time.Time, offset, limit int) ([]*models.Device, error)
}

func (m *mockDeviceRepo) GetOrCreateForUpdate(_ context.Context, _ database.Transaction, name string, now time.Time) (*models.Device, bool, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(name, now)
	}
	return nil, false, fmt.Errorf("not implemented")
}

func (m *mockDeviceRepo) GetForUpdate(_ context.Context, _ database.Transaction, id int64) (*models.Device, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockDeviceRepo) LockByIDs(_ context.Context, _ database.Transaction, ids []int64) ([]*models.Device, error) {
	if m.lockByIDsFn != nil {
		return m.lockByIDsFn(ids)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockDeviceRepo) UpdateFromHeartbeat(_ context.Context, _ database.Transaction, device *models.Device) error {
	if m.updateFn != nil {
		return m.updateFn(device)
	}
	return nil
}

func (m *mockDeviceRepo) AssignSession(_ context.Context, _ database.Transaction, deviceID, sessionID int64) error {
	if m.assignFn != nil {
		return m.assignFn(deviceID, sessionID)
	}
	return nil
}

func (m *mockDeviceRepo) ClearSession(_ context.Context, _ database.Transaction, deviceID int64) error {
	if m.clearFn != nil {
		return m.clearFn(deviceID)
	}
	return nil
}

func (m *mockDeviceRepo) SetStreamRequest(_ context.Context, _ database.Transaction, deviceID int64, at time.Time) error {
	if m.setStreamFn != nil {
		return m.setStreamFn(deviceID, at)
	}
	return nil
}

func (m *mockDeviceRepo) Get(_ context.Context, _ database.Transaction, id int64) (*models.Device, error) {
	if m.getFn != nil {
		return m.getFn(id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockDeviceRepo) GetByName(_ context.Context, name string) (*models.Device, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(name)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockDeviceRepo) List(_ context.Context, state models.DeviceState, cutoff time.Time, offset, limit int) ([]*models.Device, error) {
	if m.listFn != nil {
		return m.listFn(state, cutoff, offset, limit)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockStatusUpdater struct {
	calls []models.DeviceStatus
	err   error
}

func (m *mockStatusUpdater) UpdateStatus(_ context.Context, _ database.Transaction, status *models.DeviceSessionStatus, next models.DeviceStatus, _ string) error {
	m.calls = append(m.calls, next)
	if m.err != nil {
		return m.err
	}
	status.Status = next
	return nil
}

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(repo *mockDeviceRepo, statuses StatusUpdater) (*Registry, clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(epoch)
	return New(repo, statuses, clock, Config{DownThreshold: time.Minute, StreamKeepAlive: 30 * time.Second}), clock
}

func heartbeat(name string, observed time.Time, recording bool) *models.HeartbeatRequest {
	return &models.HeartbeatRequest{
		Name:         name,
		ObservedAt:   observed,
		SensorStatus: &models.SensorStatus{Camera: &models.CameraStatus{Recording: recording}},
		SystemInfo:   &models.SystemInfo{Uptime: 10, Release: "1.0"},
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		sessionID *int64
		want      models.DeviceState
	}{
		{"fresh idle", 10 * time.Second, nil, models.DeviceStateIdle},
		{"fresh busy", 10 * time.Second, int64Ptr(3), models.DeviceStateBusy},
		{"exactly at threshold", time.Minute, nil, models.DeviceStateIdle},
		{"stale idle", 61 * time.Second, nil, models.DeviceStateDown},
		{"stale busy is still down", time.Hour, int64Ptr(3), models.DeviceStateDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &models.Device{LastUpdate: epoch.Add(-tt.age), SessionID: tt.sessionID}
			assert.Equal(t, tt.want, Classify(device, epoch, time.Minute))
		})
	}
}

func TestUpsertFromHeartbeat_FirstContact(t *testing.T) {
	var stored *models.Device
	repo := &mockDeviceRepo{
		getOrCreateFn: func(name string, now time.Time) (*models.Device, bool, error) {
			return &models.Device{ID: 1, Name: name, LastUpdate: now}, true, nil
		},
		updateFn: func(device *models.Device) error {
			stored = device
			return nil
		},
	}
	reg, _ := newTestRegistry(repo, &mockStatusUpdater{})

	hb := heartbeat("cam-01", epoch.Add(-2*time.Second), true)
	device, created, err := reg.UpsertFromHeartbeat(context.Background(), &dbtest.Tx{}, hb)
	require.NoError(t, err)

	assert.True(t, created)
	assert.Same(t, stored, device)
	assert.Equal(t, epoch, device.LastUpdate)
	assert.Equal(t, hb.ObservedAt, *device.LastReportedAt)
	assert.True(t, device.IsRecording())
	assert.Equal(t, "1.0", device.Release)
	assert.Equal(t, models.DeviceStateIdle, device.State)
}

func TestUpsertFromHeartbeat_ClockSkewDoesNotAbort(t *testing.T) {
	repo := &mockDeviceRepo{
		getOrCreateFn: func(name string, now time.Time) (*models.Device, bool, error) {
			return &models.Device{ID: 1, Name: name, LastUpdate: epoch.Add(-5 * time.Second), SessionID: int64Ptr(4)}, false, nil
		},
	}
	reg, _ := newTestRegistry(repo, &mockStatusUpdater{})

	device, created, err := reg.UpsertFromHeartbeat(context.Background(), &dbtest.Tx{}, heartbeat("cam-01", epoch.Add(-time.Hour), false))
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, epoch, device.LastUpdate, "server clock is authoritative")
	assert.Equal(t, models.DeviceStateBusy, device.State)
}

func TestReportedBackwards(t *testing.T) {
	previous := epoch.Add(-150 * time.Second)
	lagging := &models.Device{LastUpdate: epoch.Add(-30 * time.Second), LastReportedAt: &previous}

	// device clock two minutes behind the server but moving forward
	assert.False(t, reportedBackwards(lagging, epoch.Add(-2*time.Minute)))
	assert.True(t, reportedBackwards(lagging, epoch.Add(-3*time.Minute)))
	assert.False(t, reportedBackwards(&models.Device{LastUpdate: epoch}, epoch.Add(-time.Hour)))
}

func TestUpsertFromHeartbeat_LaggingDeviceClock(t *testing.T) {
	previous := epoch.Add(-150 * time.Second)
	repo := &mockDeviceRepo{
		getOrCreateFn: func(name string, now time.Time) (*models.Device, bool, error) {
			return &models.Device{ID: 1, Name: name, LastUpdate: epoch.Add(-30 * time.Second), LastReportedAt: &previous}, false, nil
		},
	}
	reg, _ := newTestRegistry(repo, &mockStatusUpdater{})

	hb := heartbeat("cam-01", epoch.Add(-2*time.Minute), false)
	device, _, err := reg.UpsertFromHeartbeat(context.Background(), &dbtest.Tx{}, hb)
	require.NoError(t, err)

	assert.Equal(t, epoch, device.LastUpdate)
	assert.Equal(t, epoch.Add(-2*time.Minute), *device.LastReportedAt)
	assert.Equal(t, models.DeviceStateIdle, device.State)
}

func TestUpsertFromHeartbeat_PropagatesRepositoryErrors(t *testing.T) {
	repo := &mockDeviceRepo{
		getOrCreateFn: func(name string, now time.Time) (*models.Device, bool, error) {
			return &models.Device{ID: 1, Name: name}, false, nil
		},
		updateFn: func(*models.Device) error { return errors.NewDatabaseError("lock timeout", nil) },
	}
	reg, _ := newTestRegistry(repo, &mockStatusUpdater{})

	_, _, err := reg.UpsertFromHeartbeat(context.Background(), &dbtest.Tx{}, heartbeat("cam-01", epoch, false))
	assert.True(t, errors.IsDatabase(err))
}

func TestClearSession(t *testing.T) {
	cleared := int64(0)
	repo := &mockDeviceRepo{clearFn: func(id int64) error { cleared = id; return nil }}
	reg, _ := newTestRegistry(repo, &mockStatusUpdater{})

	device := &models.Device{ID: 9, SessionID: int64Ptr(2)}
	require.NoError(t, reg.ClearSession(context.Background(), &dbtest.Tx{}, device))
	assert.Equal(t, int64(9), cleared)
	assert.Nil(t, device.SessionID)

	repo.clearFn = func(int64) error { return errors.NewDatabaseError("down", nil) }
	device.SessionID = int64Ptr(2)
	err := reg.ClearSession(context.Background(), &dbtest.Tx{}, device)
	assert.True(t, errors.IsDatabase(err))
	assert.NotNil(t, device.SessionID)
}

func TestJoinSession(t *testing.T) {
	statuses := &mockStatusUpdater{}
	reg, _ := newTestRegistry(&mockDeviceRepo{}, statuses)

	status := &models.DeviceSessionStatus{DeviceID: 1, SessionID: 5, Status: models.StatusPending}

	t.Run("matching session transitions to recording", func(t *testing.T) {
		device := &models.Device{ID: 1, SessionID: int64Ptr(5)}
		require.NoError(t, reg.JoinSession(context.Background(), &dbtest.Tx{}, device, status))
		assert.Equal(t, models.StatusRecording, status.Status)
	})

	t.Run("other session conflicts", func(t *testing.T) {
		device := &models.Device{ID: 1, SessionID: int64Ptr(6)}
		err := reg.JoinSession(context.Background(), &dbtest.Tx{}, device, status)
		assert.True(t, errors.IsConflict(err))
	})

	t.Run("no session conflicts", func(t *testing.T) {
		device := &models.Device{ID: 1}
		err := reg.JoinSession(context.Background(), &dbtest.Tx{}, device, status)
		assert.True(t, errors.IsConflict(err))
	})

	assert.Len(t, statuses.calls, 1)
}

func TestAssignSession_RejectsBusyDevice(t *testing.T) {
	reg, _ := newTestRegistry(&mockDeviceRepo{}, &mockStatusUpdater{})

	free := &models.Device{ID: 1}
	require.NoError(t, reg.AssignSession(context.Background(), &dbtest.Tx{}, free, 3))
	assert.Equal(t, int64(3), *free.SessionID)

	err := reg.AssignSession(context.Background(), &dbtest.Tx{}, free, 4)
	assert.True(t, errors.IsConflict(err))
}

func TestLockForAssignment_ReportsMissing(t *testing.T) {
	repo := &mockDeviceRepo{lockByIDsFn: func(ids []int64) ([]*models.Device, error) {
		return []*models.Device{{ID: 1}, {ID: 3}}, nil
	}}
	reg, _ := newTestRegistry(repo, &mockStatusUpdater{})

	byID, missing, err := reg.LockForAssignment(context.Background(), &dbtest.Tx{}, []int64{3, 2, 1, 7})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, []int64{2, 7}, missing)
}

func TestRequestLiveStream(t *testing.T) {
	recording := &models.Device{ID: 1, Name: "cam", SensorStatus: models.SensorStatus{Camera: &models.CameraStatus{Recording: true}}}
	idle := &models.Device{ID: 2, Name: "idle", SensorStatus: models.SensorStatus{Camera: &models.CameraStatus{}}}

	var requestedAt time.Time
	repo := &mockDeviceRepo{
		getForUpdateFn: func(id int64) (*models.Device, error) {
			switch id {
			case 1:
				return recording, nil
			case 2:
				return idle, nil
			}
			return nil, errors.NewNotFoundError("device not found", nil)
		},
		setStreamFn: func(_ int64, at time.Time) error { requestedAt = at; return nil },
	}
	reg, clock := newTestRegistry(repo, &mockStatusUpdater{})
	ctx := context.Background()

	device, err := reg.RequestLiveStream(ctx, &dbtest.Tx{}, 1)
	require.NoError(t, err)
	assert.Equal(t, epoch, requestedAt)
	assert.True(t, reg.IsStreamActive(device))

	clock.Advance(30 * time.Second)
	assert.True(t, reg.IsStreamActive(device), "keep-alive window is inclusive")

	clock.Advance(time.Second)
	assert.False(t, reg.IsStreamActive(device), "request decays without resubmission")

	_, err = reg.RequestLiveStream(ctx, &dbtest.Tx{}, 2)
	assert.True(t, errors.IsDomain(err))

	_, err = reg.RequestLiveStream(ctx, &dbtest.Tx{}, 3)
	assert.True(t, errors.IsNotFound(err))

	assert.False(t, reg.IsStreamActive(&models.Device{}))
}

func TestList_AppliesLivenessAndDefaults(t *testing.T) {
	var gotLimit int
	var gotCutoff time.Time
	repo := &mockDeviceRepo{listFn: func(state models.DeviceState, cutoff time.Time, offset, limit int) ([]*models.Device, error) {
		gotLimit, gotCutoff = limit, cutoff
		return []*models.Device{
			{ID: 1, LastUpdate: epoch},
			{ID: 2, LastUpdate: epoch.Add(-2 * time.Minute)},
		}, nil
	}}
	reg, _ := newTestRegistry(repo, &mockStatusUpdater{})

	devices, err := reg.List(context.Background(), models.DeviceFilters{})
	require.NoError(t, err)
	assert.Equal(t, defaultListLimit, gotLimit)
	assert.Equal(t, epoch.Add(-time.Minute), gotCutoff)
	assert.Equal(t, models.DeviceStateIdle, devices[0].State)
	assert.Equal(t, models.DeviceStateDown, devices[1].State)

	_, err = reg.List(context.Background(), models.DeviceFilters{State: "ASLEEP"})
	assert.True(t, errors.IsValidation(err))
}

func TestGet_AppliesLiveness(t *testing.T) {
	repo := &mockDeviceRepo{getFn: func(id int64) (*models.Device, error) {
		return &models.Device{ID: id, LastUpdate: epoch, SessionID: int64Ptr(1)}, nil
	}}
	reg, clock := newTestRegistry(repo, &mockStatusUpdater{})

	device, err := reg.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStateBusy, device.State)

	clock.Advance(2 * time.Minute)
	device, err = reg.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceStateDown, device.State)
}
