package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

func mustDate(raw string) timeslot.Date {
	d, err := timeslot.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func strPtr(v string) *string { return &v }

type memoryRooms struct {
	items map[string]*models.Room
	err   error
}

func newMemoryRooms(rooms ...models.Room) *memoryRooms {
	m := &memoryRooms{items: make(map[string]*models.Room)}
	for i := range rooms {
		room := rooms[i]
		m.items[room.ID] = &room
	}
	return m
}

func (m *memoryRooms) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if m.err != nil {
		return nil, m.err
	}
	room, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *room
	return &cp, nil
}

type memorySchedules struct {
	items []models.ClassScheduleDetail
	err   error
}

func (m *memorySchedules) ListByRoomAndDay(ctx context.Context, roomID string, day time.Weekday) ([]models.ClassScheduleDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.ClassScheduleDetail
	for _, item := range m.items {
		if item.RoomID == roomID && item.DayOfWeek == day.String() {
			out = append(out, item)
		}
	}
	return out, nil
}

type memoryReservations struct {
	mu        sync.Mutex
	items     map[string]*models.ReservationDetail
	names     map[string]string
	seq       int
	listErr   error
	createErr error
	statusLog []models.ReservationStatus
}

func newMemoryReservations(items ...models.ReservationDetail) *memoryReservations {
	m := &memoryReservations{items: make(map[string]*models.ReservationDetail), names: make(map[string]string)}
	for i := range items {
		item := items[i]
		m.items[item.ID] = &item
	}
	return m
}

func (m *memoryReservations) sorted() []models.ReservationDetail {
	out := make([]models.ReservationDetail, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (m *memoryReservations) ListForConflict(ctx context.Context, roomID string, date timeslot.Date, statuses []models.ReservationStatus, excludeID string) ([]models.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.ReservationDetail
	for _, item := range m.sorted() {
		if item.RoomID != roomID || !item.Date.Equal(date) || item.ID == excludeID || !containsStatus(statuses, item.Status) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *memoryReservations) ListByRoomBetween(ctx context.Context, roomID string, from, to timeslot.Date) ([]models.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.ReservationDetail
	for _, item := range m.sorted() {
		if item.RoomID == roomID && !item.Date.Before(from) && !to.Before(item.Date) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memoryReservations) ListUpcomingByUser(ctx context.Context, userID string, today timeslot.Date, now timeslot.TimeOfDay, statuses []models.ReservationStatus, limit int) ([]models.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReservationDetail
	for _, item := range m.sorted() {
		if item.UserID != userID || item.Date.Before(today) || !containsStatus(statuses, item.Status) {
			continue
		}
		if item.Date.Equal(today) && item.Status != models.StatusPending && !now.Before(item.EndTime) {
			continue
		}
		if len(out) < limit {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memoryReservations) List(ctx context.Context, filter models.ReservationFilter) ([]models.ReservationDetail, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	at := filter.Today.On(filter.Now, time.UTC)
	var matched []models.ReservationDetail
	for _, item := range m.sorted() {
		if filter.UserID != "" && item.UserID != filter.UserID {
			continue
		}
		if filter.RoomID != "" && item.RoomID != filter.RoomID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ResolveStatus(item.Reservation, at)) {
			continue
		}
		matched = append(matched, item)
	}
	if !strings.EqualFold(filter.SortOrder, "asc") {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	limit, offset := models.PageBounds(filter.Page, filter.PageSize)
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], len(matched), nil
}

func (m *memoryReservations) FindByID(ctx context.Context, id string) (*models.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (m *memoryReservations) Create(ctx context.Context, res *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if res.ID == "" {
		m.seq++
		res.ID = fmt.Sprintf("res-new-%d", m.seq)
	}
	m.items[res.ID] = &models.ReservationDetail{Reservation: *res, RequesterName: m.names[res.UserID]}
	return nil
}

func (m *memoryReservations) Update(ctx context.Context, res *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[res.ID]
	if !ok || item.Status != models.StatusPending {
		return sql.ErrNoRows
	}
	item.Reservation = *res
	return nil
}

func (m *memoryReservations) UpdateStatus(ctx context.Context, id string, status models.ReservationStatus, notes *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	if notes != nil {
		item.AdminNotes = notes
	}
	m.statusLog = append(m.statusLog, status)
	return nil
}

func (m *memoryReservations) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
	// held runs once the lock is taken, before the guarded work.
	held func()
}

func (l *recordingLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	l.keys = append(l.keys, key)
	held := l.held
	l.mu.Unlock()
	if held != nil {
		held()
	}
	return fn(ctx)
}

type notice struct {
	event         models.NotificationEvent
	userID        string
	reservationID string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) NotifyAdmins(event models.NotificationEvent, reservationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{event: event, reservationID: reservationID})
}

func (n *recordingNotifier) NotifyUser(event models.NotificationEvent, userID, reservationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{event: event, userID: userID, reservationID: reservationID})
}

// campus returns one room with a Monday class and a Friday reservation.
func campus() (*memoryRooms, *memorySchedules, *memoryReservations) {
	rooms := newMemoryRooms(
		models.Room{ID: "room-1", RoomNumber: "101", Building: "Main", Capacity: 40, Type: models.RoomTypeClassroom, Available: true},
		models.Room{ID: "room-closed", RoomNumber: "102", Building: "Main", Capacity: 20, Type: models.RoomTypeLab, Available: false},
	)
	schedules := &memorySchedules{items: []models.ClassScheduleDetail{{
		ClassSchedule: models.ClassSchedule{
			ID:           "cls-1",
			RoomID:       "room-1",
			InstructorID: "inst-1",
			CourseCode:   "IT101",
			CourseName:   "Intro to Computing",
			DayOfWeek:    "Monday",
			StartTime:    timeslot.MustTime("08:00"),
			EndTime:      timeslot.MustTime("10:00"),
		},
		InstructorName: "Dr. Reyes",
	}}}
	reservations := newMemoryReservations(models.ReservationDetail{
		Reservation: models.Reservation{
			ID:        "res-a",
			RoomID:    "room-1",
			UserID:    "inst-2",
			Date:      mustDate("2025-01-10"),
			StartTime: timeslot.MustTime("13:00"),
			EndTime:   timeslot.MustTime("14:00"),
			Purpose:   "Thesis defense",
			Status:    models.StatusApproved,
		},
		RequesterName: "Prof. Santos",
	})
	reservations.names["inst-2"] = "Prof. Santos"
	reservations.names["inst-3"] = "Ms. Cruz"
	return rooms, schedules, reservations
}
