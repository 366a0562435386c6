// Package repotest provides in-memory repositories for service level tests. Writes
// are applied immediately; transactions are not emulated.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/itsatony/recorderhub/internal/repository"
)

type statusKey struct {
	deviceID  int64
	sessionID int64
}

// Store holds the rows shared by the in-memory repositories
type Store struct {
	mu       sync.Mutex
	devices  map[int64]*models.Device
	sessions map[int64]*models.RecordingSession
	statuses map[statusKey]*models.DeviceSessionStatus
	nextID   int64

	// FailOn makes the named operation return a database error
	FailOn map[string]error
}

func NewStore() *Store {
	return &Store{
		devices:  map[int64]*models.Device{},
		sessions: map[int64]*models.RecordingSession{},
		statuses: map[statusKey]*models.DeviceSessionStatus{},
		FailOn:   map[string]error{},
	}
}

func (s *Store) fail(op string) error {
	if err, ok := s.FailOn[op]; ok {
		if err == nil {
			return errors.NewDatabaseError(op+" failed", nil)
		}
		return err
	}
	return nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func copyDevice(d *models.Device) *models.Device {
	c := *d
	if d.SessionID != nil {
		v := *d.SessionID
		c.SessionID = &v
	}
	return &c
}

func copyStatus(st *models.DeviceSessionStatus) *models.DeviceSessionStatus {
	c := *st
	return &c
}

// AddDevice inserts a device directly
func (s *Store) AddDevice(name string, lastUpdate time.Time) *models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &models.Device{ID: s.id(), Name: name, LastUpdate: lastUpdate, CreatedAt: lastUpdate}
	s.devices[d.ID] = d
	return copyDevice(d)
}

// Device returns a copy of the stored device
func (s *Store) Device(id int64) *models.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[id]; ok {
		return copyDevice(d)
	}
	return nil
}

// Status returns a copy of the stored status row
func (s *Store) Status(deviceID, sessionID int64) *models.DeviceSessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.statuses[statusKey{deviceID, sessionID}]; ok {
		return copyStatus(st)
	}
	return nil
}

// Session returns a copy of the stored session
func (s *Store) Session(id int64) *models.RecordingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		c := *sess
		return &c
	}
	return nil
}

// PutStatus writes a status row directly
func (s *Store) PutStatus(st *models.DeviceSessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[statusKey{st.DeviceID, st.SessionID}] = copyStatus(st)
}

// SetDeviceSession writes a device's session pointer directly
func (s *Store) SetDeviceSession(deviceID int64, sessionID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[deviceID].SessionID = sessionID
}

func (s *Store) Devices() repository.DeviceRepository   { return &deviceRepo{s} }
func (s *Store) Sessions() repository.SessionRepository { return &sessionRepo{s} }
func (s *Store) Statuses() repository.StatusRepository  { return &statusRepo{s} }

type deviceRepo struct{ s *Store }

func (r *deviceRepo) GetOrCreateForUpdate(_ context.Context, _ database.Transaction, name string, now time.Time) (*models.Device, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("device.get_or_create"); err != nil {
		return nil, false, err
	}
	for _, d := range s.devices {
		if d.Name == name {
			return copyDevice(d), false, nil
		}
	}
	d := &models.Device{ID: s.id(), Name: name, LastUpdate: now, CreatedAt: now}
	s.devices[d.ID] = d
	return copyDevice(d), true, nil
}

func (r *deviceRepo) GetForUpdate(ctx context.Context, tx database.Transaction, id int64) (*models.Device, error) {
	return r.Get(ctx, tx, id)
}

func (r *deviceRepo) LockByIDs(_ context.Context, _ database.Transaction, ids []int64) ([]*models.Device, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("device.lock"); err != nil {
		return nil, err
	}
	out := []*models.Device{}
	for _, id := range ids {
		if d, ok := s.devices[id]; ok {
			out = append(out, copyDevice(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *deviceRepo) UpdateFromHeartbeat(_ context.Context, _ database.Transaction, device *models.Device) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("device.update"); err != nil {
		return err
	}
	stored, ok := s.devices[device.ID]
	if !ok {
		return errors.NewNotFoundError("device not found", nil)
	}
	sessionID := stored.SessionID
	lastStream := stored.LastStreamRequest
	*stored = *copyDevice(device)
	stored.SessionID = sessionID
	stored.LastStreamRequest = lastStream
	return nil
}

func (r *deviceRepo) AssignSession(_ context.Context, _ database.Transaction, deviceID, sessionID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("device.assign"); err != nil {
		return err
	}
	d, ok := s.devices[deviceID]
	if !ok {
		return errors.NewNotFoundError("device not found", nil)
	}
	d.SessionID = &sessionID
	return nil
}

func (r *deviceRepo) ClearSession(_ context.Context, _ database.Transaction, deviceID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("device.clear"); err != nil {
		return err
	}
	d, ok := s.devices[deviceID]
	if !ok {
		return errors.NewNotFoundError("device not found", nil)
	}
	d.SessionID = nil
	return nil
}

func (r *deviceRepo) SetStreamRequest(_ context.Context, _ database.Transaction, deviceID int64, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return errors.NewNotFoundError("device not found", nil)
	}
	d.LastStreamRequest = &at
	return nil
}

func (r *deviceRepo) Get(_ context.Context, _ database.Transaction, id int64) (*models.Device, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, errors.NewNotFoundError("device not found", nil)
	}
	return copyDevice(d), nil
}

func (r *deviceRepo) GetByName(_ context.Context, name string) (*models.Device, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.Name == name {
			return copyDevice(d), nil
		}
	}
	return nil, errors.NewNotFoundError("device not found", nil)
}

func (r *deviceRepo) List(_ context.Context, state models.DeviceState, cutoff time.Time, offset, limit int) ([]*models.Device, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Device{}
	for _, d := range s.devices {
		down := d.LastUpdate.Before(cutoff)
		switch state {
		case models.DeviceStateDown:
			if !down {
				continue
			}
		case models.DeviceStateBusy:
			if down || d.SessionID == nil {
				continue
			}
		case models.DeviceStateIdle:
			if down || d.SessionID != nil {
				continue
			}
		}
		out = append(out, copyDevice(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, offset, limit), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(_ context.Context, _ database.Transaction, session *models.RecordingSession) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("session.create"); err != nil {
		return err
	}
	session.ID = s.id()
	if session.Status == "" {
		session.Status = models.SessionInProgress
	}
	c := *session
	c.DeviceStatuses = nil
	s.sessions[session.ID] = &c
	return nil
}

func (r *sessionRepo) Get(_ context.Context, _ database.Transaction, id int64) (*models.RecordingSession, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("session.get"); err != nil {
		return nil, err
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.NewNotFoundError("recording session not found", nil)
	}
	c := *sess
	return &c, nil
}

func (r *sessionRepo) GetForUpdate(ctx context.Context, tx database.Transaction, id int64) (*models.RecordingSession, error) {
	return r.Get(ctx, tx, id)
}

func (r *sessionRepo) List(_ context.Context, archived bool, offset, limit int) ([]*models.RecordingSession, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.RecordingSession{}
	for _, sess := range s.sessions {
		if sess.Archived == archived {
			c := *sess
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, offset, limit), nil
}

func (r *sessionRepo) UpdateStatus(_ context.Context, _ database.Transaction, id int64, status models.SessionStatus) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errors.NewNotFoundError("recording session not found", nil)
	}
	sess.Status = status
	return nil
}

func (r *sessionRepo) SetArchived(_ context.Context, _ database.Transaction, id int64, archived bool) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errors.NewNotFoundError("recording session not found", nil)
	}
	sess.Archived = archived
	return nil
}

func (r *sessionRepo) CompleteFinished(_ context.Context) ([]int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("session.complete"); err != nil {
		return nil, err
	}
	active := map[int64]bool{}
	for k, st := range s.statuses {
		if st.Status.Active() {
			active[k.sessionID] = true
		}
	}
	ids := []int64{}
	for id, sess := range s.sessions {
		if sess.Status == models.SessionInProgress && !active[id] {
			sess.Status = models.SessionComplete
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type statusRepo struct{ s *Store }

func (r *statusRepo) withName(st *models.DeviceSessionStatus) *models.DeviceSessionStatus {
	c := copyStatus(st)
	if d, ok := r.s.devices[st.DeviceID]; ok {
		c.DeviceName = d.Name
	}
	return c
}

func (r *statusRepo) Insert(_ context.Context, _ database.Transaction, status *models.DeviceSessionStatus) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("status.insert"); err != nil {
		return err
	}
	key := statusKey{status.DeviceID, status.SessionID}
	if _, exists := s.statuses[key]; exists {
		return errors.NewConflictError("device session status already exists", nil)
	}
	if status.Status == models.StatusFailed && status.Message == nil {
		return errors.NewDatabaseError("failed status without message", nil)
	}
	s.statuses[key] = copyStatus(status)
	return nil
}

func (r *statusRepo) Get(_ context.Context, _ database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("status.get"); err != nil {
		return nil, err
	}
	st, ok := s.statuses[statusKey{deviceID, sessionID}]
	if !ok {
		return nil, errors.NewNotFoundError("device session status not found", nil)
	}
	return r.withName(st), nil
}

func (r *statusRepo) GetForUpdate(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error) {
	return r.Get(ctx, tx, deviceID, sessionID)
}

func (r *statusRepo) list(sessionID int64, activeOnly bool) []*models.DeviceSessionStatus {
	out := []*models.DeviceSessionStatus{}
	for k, st := range r.s.statuses {
		if k.sessionID != sessionID || (activeOnly && !st.Status.Active()) {
			continue
		}
		out = append(out, r.withName(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

func (r *statusRepo) ListBySession(_ context.Context, _ database.Transaction, sessionID int64) ([]*models.DeviceSessionStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(sessionID, false), nil
}

func (r *statusRepo) ListActiveForUpdate(_ context.Context, _ database.Transaction, sessionID int64) ([]*models.DeviceSessionStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(sessionID, true), nil
}

func (r *statusRepo) UpdateStatus(_ context.Context, _ database.Transaction, deviceID, sessionID int64, from, to models.DeviceStatus, message *string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("status.update"); err != nil {
		return err
	}
	st, ok := s.statuses[statusKey{deviceID, sessionID}]
	if !ok || st.Status != from {
		return errors.NewInvalidTransitionError(fmt.Sprintf("status is no longer %s", from), nil)
	}
	st.Status = to
	st.Message = message
	return nil
}

func (r *statusRepo) UpdateRecordingTime(_ context.Context, _ database.Transaction, deviceID, sessionID int64, seconds int) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("status.recording_time"); err != nil {
		return err
	}
	st, ok := s.statuses[statusKey{deviceID, sessionID}]
	if !ok {
		return errors.NewNotFoundError("device session status not found", nil)
	}
	if st.Status == models.StatusRecording && seconds < st.RecordingTime {
		return nil
	}
	st.RecordingTime = seconds
	return nil
}
