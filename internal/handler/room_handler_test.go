package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/service"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

type roomServiceMock struct {
	filter models.RoomFilter
}

func (m *roomServiceMock) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	m.filter = filter
	return []models.Room{{ID: "room-1", RoomNumber: "101", Building: "Main"}}, models.NewPagination(filter.Page, filter.PageSize, 1), nil
}

func (m *roomServiceMock) Get(ctx context.Context, id string) (*models.Room, error) {
	return &models.Room{ID: id}, nil
}

func (m *roomServiceMock) Create(ctx context.Context, req service.RoomRequest) (*models.Room, error) {
	return nil, appErrors.Clone(appErrors.ErrConflict, "room 101 already exists in Main")
}

func (m *roomServiceMock) Update(ctx context.Context, id string, req service.RoomRequest) (*models.Room, error) {
	return &models.Room{ID: id}, nil
}

func (m *roomServiceMock) SetAvailability(ctx context.Context, id string, req service.RoomAvailabilityRequest) (*models.Room, error) {
	return &models.Room{ID: id, Available: *req.Available}, nil
}

func (m *roomServiceMock) Delete(ctx context.Context, id string) error { return nil }

type calendarMock struct {
	date string
	err  error
}

func (m *calendarMock) RoomDay(ctx context.Context, roomID, date string) (*models.RoomDay, error) {
	m.date = date
	if m.err != nil {
		return nil, m.err
	}
	return &models.RoomDay{Room: models.Room{ID: roomID}, DayOfWeek: "Friday", Classes: []models.ClassScheduleDetail{}, Reservations: []models.ReservationDetail{}}, nil
}

type exporterMock struct {
	format string
	err    error
}

func (m *exporterMock) Export(ctx context.Context, roomID, from, to, format string) (*service.ExportFile, error) {
	m.format = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "main-101_2025-01-01_2025-01-31.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("Date,Start\n")}, nil
}

func TestRoomHandlerListFilters(t *testing.T) {
	rooms := &roomServiceMock{}
	h := NewRoomHandler(rooms, &calendarMock{}, &exporterMock{})

	c, w := newTestContext(http.MethodGet, "/rooms?building=Main&type=lab&available=true&min_capacity=30", nil, instructorClaims)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Main", rooms.filter.Building)
	assert.Equal(t, models.RoomTypeLab, rooms.filter.Type)
	require.NotNil(t, rooms.filter.Available)
	assert.True(t, *rooms.filter.Available)
	assert.Equal(t, 30, rooms.filter.MinSeats)
}

func TestRoomHandlerCreateDuplicate(t *testing.T) {
	h := NewRoomHandler(&roomServiceMock{}, &calendarMock{}, &exporterMock{})
	c, w := newTestContext(http.MethodPost, "/rooms", []byte(`{"room_number":"101","building":"Main","capacity":40,"type":"classroom"}`), nil)
	h.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoomHandlerCalendar(t *testing.T) {
	cal := &calendarMock{}
	h := NewRoomHandler(&roomServiceMock{}, cal, &exporterMock{})

	c, w := newTestContext(http.MethodGet, "/rooms/room-1/calendar?date=2025-01-10", nil, instructorClaims)
	c.Params = gin.Params{{Key: "id", Value: "room-1"}}
	h.Calendar(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-01-10", cal.date)
	assert.Contains(t, w.Body.String(), `"day_of_week":"Friday"`)

	cal.err = appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	c, w = newTestContext(http.MethodGet, "/rooms/room-1/calendar?date=bad", nil, instructorClaims)
	c.Params = gin.Params{{Key: "id", Value: "room-1"}}
	h.Calendar(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandlerExport(t *testing.T) {
	exp := &exporterMock{}
	h := NewRoomHandler(&roomServiceMock{}, &calendarMock{}, exp)

	c, w := newTestContext(http.MethodGet, "/rooms/room-1/export?format=csv", nil, instructorClaims)
	c.Params = gin.Params{{Key: "id", Value: "room-1"}}
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", exp.format)
	assert.Equal(t, `attachment; filename="main-101_2025-01-01_2025-01-31.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Date,Start\n", w.Body.String())

	exp.err = errors.New("boom")
	c, w = newTestContext(http.MethodGet, "/rooms/room-1/export", nil, instructorClaims)
	c.Params = gin.Params{{Key: "id", Value: "room-1"}}
	h.Export(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	c, w := newTestContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	h = NewMetricsHandler(service.NewMetricsService(), nil)
	c, w = newTestContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")
}
