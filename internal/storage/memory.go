package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homeguard/homeguard-server/internal/models"
	"github.com/homeguard/homeguard-server/pkg/crypto"
)

// MemoryStore implements Store with in-process maps. It backs the test
// suite and the server's --memory mode. Every call runs under one mutex,
// so each store operation is atomic; BeginTx returns the same store with
// no-op Commit/Rollback, which is sufficient because membership mutations
// write the single authoritative zone_id relation in one call.
type MemoryStore struct {
	mu sync.Mutex

	users      map[uuid.UUID]*models.User
	armState   *models.SystemArmState
	zones      map[uuid.UUID]*models.Zone
	sensors    map[uuid.UUID]*models.Sensor
	codes      map[uuid.UUID]*models.AccessCode
	locks      map[uuid.UUID]*models.SmartLock
	lockEvents []*models.LockEvent
	eventLogs  []*models.EventLog
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uuid.UUID]*models.User),
		zones:   make(map[uuid.UUID]*models.Zone),
		sensors: make(map[uuid.UUID]*models.Sensor),
		codes:   make(map[uuid.UUID]*models.AccessCode),
		locks:   make(map[uuid.UUID]*models.SmartLock),
	}
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error { return nil }

// BeginTx returns the store itself; see type comment
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) { return s, nil }

// Commit is a no-op for the memory store
func (s *MemoryStore) Commit() error { return nil }

// Rollback is a no-op for the memory store
func (s *MemoryStore) Rollback() error { return nil }

// ========== User Methods ==========

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateKey
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if pwd, ok := user.Settings["password"].(string); ok && pwd != "" {
		hash, err := crypto.HashPassword(pwd)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
		delete(user.Settings, "password")
	}

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []*models.User
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	total := int64(len(users))
	return page(users, limit, offset), total, nil
}

// ========== Arm State Methods ==========

func (s *MemoryStore) GetArmState(ctx context.Context) (*models.SystemArmState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armState == nil {
		return nil, ErrNotFound
	}
	cp := *s.armState
	return &cp, nil
}

func (s *MemoryStore) SaveArmState(ctx context.Context, state *models.SystemArmState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *state
	s.armState = &cp
	return nil
}

// ========== Zone Methods ==========

func (s *MemoryStore) CreateZone(ctx context.Context, zone *models.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}
	now := time.Now()
	zone.CreatedAt = now
	zone.UpdatedAt = now

	cp := *zone
	cp.SensorIDs = nil
	s.zones[zone.ID] = &cp
	return nil
}

func (s *MemoryStore) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	z, ok := s.zones[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *z
	return &cp, nil
}

func (s *MemoryStore) UpdateZone(ctx context.Context, zone *models.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.zones[zone.ID]; !ok {
		return ErrNotFound
	}
	zone.UpdatedAt = time.Now()
	cp := *zone
	cp.SensorIDs = nil
	s.zones[zone.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteZone(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.zones[id]; !ok {
		return ErrNotFound
	}
	delete(s.zones, id)
	return nil
}

func (s *MemoryStore) ListZones(ctx context.Context, ownerID uuid.UUID) ([]*models.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zones []*models.Zone
	for _, z := range s.zones {
		if z.OwnerID == ownerID {
			cp := *z
			zones = append(zones, &cp)
		}
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].CreatedAt.Before(zones[j].CreatedAt) })
	return zones, nil
}

// ========== Sensor Methods ==========

func (s *MemoryStore) CreateSensor(ctx context.Context, sensor *models.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sensor.ID == uuid.Nil {
		sensor.ID = uuid.New()
	}
	now := time.Now()
	sensor.CreatedAt = now
	sensor.UpdatedAt = now

	cp := *sensor
	if sensor.ZoneID != nil {
		zid := *sensor.ZoneID
		cp.ZoneID = &zid
	}
	s.sensors[sensor.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSensor(ctx context.Context, id uuid.UUID) (*models.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, ok := s.sensors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sn
	if sn.ZoneID != nil {
		zid := *sn.ZoneID
		cp.ZoneID = &zid
	}
	return &cp, nil
}

func (s *MemoryStore) UpdateSensor(ctx context.Context, sensor *models.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sensors[sensor.ID]; !ok {
		return ErrNotFound
	}
	sensor.UpdatedAt = time.Now()
	cp := *sensor
	if sensor.ZoneID != nil {
		zid := *sensor.ZoneID
		cp.ZoneID = &zid
	}
	s.sensors[sensor.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteSensor(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sensors[id]; !ok {
		return ErrNotFound
	}
	delete(s.sensors, id)
	return nil
}

func (s *MemoryStore) ListSensors(ctx context.Context, ownerID uuid.UUID) ([]*models.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sensors []*models.Sensor
	for _, sn := range s.sensors {
		if sn.OwnerID == ownerID {
			cp := *sn
			if sn.ZoneID != nil {
				zid := *sn.ZoneID
				cp.ZoneID = &zid
			}
			sensors = append(sensors, &cp)
		}
	}
	sort.Slice(sensors, func(i, j int) bool { return sensors[i].CreatedAt.Before(sensors[j].CreatedAt) })
	return sensors, nil
}

func (s *MemoryStore) ListZoneSensorIDs(ctx context.Context, zoneID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type member struct {
		id uuid.UUID
		at time.Time
	}
	var members []member
	for _, sn := range s.sensors {
		if sn.ZoneID != nil && *sn.ZoneID == zoneID {
			members = append(members, member{sn.ID, sn.CreatedAt})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].at.Before(members[j].at) })

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.id)
	}
	return ids, nil
}

func (s *MemoryStore) DetachZoneSensors(ctx context.Context, zoneID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, sn := range s.sensors {
		if sn.ZoneID != nil && *sn.ZoneID == zoneID {
			sn.ZoneID = nil
			sn.UpdatedAt = now
		}
	}
	return nil
}

// ========== Access Code Methods ==========

func (s *MemoryStore) CreateAccessCode(ctx context.Context, code *models.AccessCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.codes {
		if c.Code == code.Code {
			return ErrDuplicateKey
		}
	}

	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	now := time.Now()
	code.CreatedAt = now
	code.UpdatedAt = now

	s.codes[code.ID] = copyAccessCode(code)
	return nil
}

func (s *MemoryStore) GetAccessCode(ctx context.Context, id uuid.UUID) (*models.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAccessCode(c), nil
}

func (s *MemoryStore) GetAccessCodeByCode(ctx context.Context, code string) (*models.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.codes {
		if c.Code == code {
			return copyAccessCode(c), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateAccessCode(ctx context.Context, code *models.AccessCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.codes[code.ID]
	if !ok {
		return ErrNotFound
	}
	code.UsedCount = existing.UsedCount
	code.LastUsedAt = existing.LastUsedAt
	code.UpdatedAt = time.Now()
	s.codes[code.ID] = copyAccessCode(code)
	return nil
}

func (s *MemoryStore) DeleteAccessCode(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[id]; !ok {
		return ErrNotFound
	}
	delete(s.codes, id)
	return nil
}

func (s *MemoryStore) ListAccessCodes(ctx context.Context, ownerID uuid.UUID) ([]*models.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var codes []*models.AccessCode
	for _, c := range s.codes {
		if c.OwnerID == ownerID {
			codes = append(codes, copyAccessCode(c))
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].CreatedAt.After(codes[j].CreatedAt) })
	return codes, nil
}

func (s *MemoryStore) ConsumeAccessCode(ctx context.Context, id uuid.UUID, now time.Time) (*models.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Guard and increment under the same lock; this is the atomic
	// read-modify-write that keeps used_count <= use_limit under races.
	if c.UsedCount >= c.UseLimit {
		return nil, ErrLimitExceeded
	}
	c.UsedCount++
	used := now
	c.LastUsedAt = &used
	c.UpdatedAt = now

	return copyAccessCode(c), nil
}

// ========== Smart Lock Methods ==========

func (s *MemoryStore) CreateLock(ctx context.Context, lock *models.SmartLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock.ID == uuid.Nil {
		lock.ID = uuid.New()
	}
	now := time.Now()
	lock.CreatedAt = now
	lock.UpdatedAt = now

	s.locks[lock.ID] = copyLock(lock)
	return nil
}

func (s *MemoryStore) GetLock(ctx context.Context, id uuid.UUID) (*models.SmartLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyLock(l), nil
}

func (s *MemoryStore) UpdateLock(ctx context.Context, lock *models.SmartLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locks[lock.ID]; !ok {
		return ErrNotFound
	}
	lock.UpdatedAt = time.Now()
	s.locks[lock.ID] = copyLock(lock)
	return nil
}

func (s *MemoryStore) DeleteLock(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locks[id]; !ok {
		return ErrNotFound
	}
	delete(s.locks, id)
	return nil
}

func (s *MemoryStore) ListLocks(ctx context.Context, ownerID uuid.UUID) ([]*models.SmartLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var locks []*models.SmartLock
	for _, l := range s.locks {
		if l.OwnerID == ownerID {
			locks = append(locks, copyLock(l))
		}
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].CreatedAt.Before(locks[j].CreatedAt) })
	return locks, nil
}

// ========== Lock Event Methods ==========

func (s *MemoryStore) CreateLockEvent(ctx context.Context, event *models.LockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	cp := *event
	if event.ActorID != nil {
		aid := *event.ActorID
		cp.ActorID = &aid
	}
	s.lockEvents = append(s.lockEvents, &cp)
	return nil
}

func (s *MemoryStore) ListLockEvents(ctx context.Context, lockID uuid.UUID, limit, offset int) ([]*models.LockEvent, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*models.LockEvent
	for _, e := range s.lockEvents {
		if e.LockID == lockID {
			cp := *e
			events = append(events, &cp)
		}
	}
	// Most recent first; append order is creation order
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	total := int64(len(events))
	return page(events, limit, offset), total, nil
}

// ========== Event Log Methods ==========

func (s *MemoryStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	cp := *event
	if event.SourceID != nil {
		sid := *event.SourceID
		cp.SourceID = &sid
	}
	s.eventLogs = append(s.eventLogs, &cp)
	return nil
}

func (s *MemoryStore) GetEventLog(ctx context.Context, id uuid.UUID) (*models.EventLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.eventLogs {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*models.EventLog
	for _, e := range s.eventLogs {
		if !matchEventLog(e, filters) {
			continue
		}
		cp := *e
		events = append(events, &cp)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	total := int64(len(events))
	return page(events, limit, offset), total, nil
}

func (s *MemoryStore) MarkEventLogRead(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.eventLogs {
		if e.ID == id {
			e.Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) MarkAllEventLogsRead(ctx context.Context, actorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.eventLogs {
		if e.ActorID == actorID {
			e.Read = true
		}
	}
	return nil
}

func (s *MemoryStore) PurgeEventLogs(ctx context.Context, actorID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.EventLog
	var purged int64
	for _, e := range s.eventLogs {
		if e.ActorID == actorID {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.eventLogs = kept
	return purged, nil
}

// ========== Helpers ==========

func matchEventLog(e *models.EventLog, f EventLogFilters) bool {
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if f.SourceKind != nil && e.SourceKind != *f.SourceKind {
		return false
	}
	if f.SourceID != nil && (e.SourceID == nil || *e.SourceID != *f.SourceID) {
		return false
	}
	if f.StartTime != nil && e.CreatedAt.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.CreatedAt.After(*f.EndTime) {
		return false
	}
	if f.Search != nil && !strings.Contains(strings.ToLower(e.Description), strings.ToLower(*f.Search)) {
		return false
	}
	if f.UnreadOnly && e.Read {
		return false
	}
	return true
}

func copyAccessCode(c *models.AccessCode) *models.AccessCode {
	cp := *c
	cp.Permissions = append(models.StringArray(nil), c.Permissions...)
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		cp.LastUsedAt = &t
	}
	return &cp
}

func copyLock(l *models.SmartLock) *models.SmartLock {
	cp := *l
	if l.LastActivity != nil {
		t := *l.LastActivity
		cp.LastActivity = &t
	}
	return &cp
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
