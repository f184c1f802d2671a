package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/models"
	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
	"github.com/noah-isme/room-reservation-api/pkg/export"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatICS  ExportFormat = "ics"
)

const (
	defaultExportWindowDays = 30
	maxExportWindowDays     = 366
)

var exportContentTypes = map[ExportFormat]string{
	ExportFormatCSV:  "text/csv; charset=utf-8",
	ExportFormatPDF:  "application/pdf",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	ExportFormatICS:  "text/calendar; charset=utf-8",
}

var exportHeaders = []string{"Date", "Start", "End", "Purpose", "Requester", "Status", "Course", "Year Level", "Block"}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type tableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type calendarRenderer interface {
	Render(events []export.Event, name string) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders a room's reservations for download.
type ExportService struct {
	rooms        roomFinder
	reservations roomReservationReader
	csv          csvRenderer
	pdf          tableRenderer
	xlsx         tableRenderer
	ics          calendarRenderer
	clock        Clock
	logger       *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// pkg/export defaults.
func NewExportService(rooms roomFinder, reservations roomReservationReader, clock Clock, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ExportService{
		rooms:        rooms,
		reservations: reservations,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		xlsx:         export.NewXLSXExporter(),
		ics:          export.NewICSExporter(""),
		clock:        clock,
		logger:       logger,
	}
}

// Export renders reservations of roomID dated in [from, to]. Empty bounds
// default to today and thirty days later.
func (s *ExportService) Export(ctx context.Context, roomID, from, to, format string) (*ExportFile, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = ExportFormatCSV
	}
	contentType, ok := exportContentTypes[f]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be one of csv, pdf, xlsx, ics")
	}

	now := s.clock.Now()
	start, end, err := exportWindow(timeslot.DateOf(now), from, to)
	if err != nil {
		return nil, err
	}

	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	items, err := s.reservations.ListByRoomBetween(ctx, roomID, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservations")
	}
	items = ResolveAll(items, now)

	title := fmt.Sprintf("%s reservations %s to %s", room.DisplayName(), start, end)
	var body []byte
	switch f {
	case ExportFormatCSV:
		body, err = s.csv.Render(reservationDataset(items))
	case ExportFormatPDF:
		body, err = s.pdf.Render(reservationDataset(items), title)
	case ExportFormatXLSX:
		body, err = s.xlsx.Render(reservationDataset(items), room.DisplayName())
	case ExportFormatICS:
		body, err = s.ics.Render(reservationEvents(items, room, now.Location()), room.DisplayName())
	}
	if err != nil {
		s.logger.Error("render export failed", zap.String("room_id", roomID), zap.String("format", string(f)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s_%s.%s", slug(room.DisplayName()), start, end, f)
	return &ExportFile{Filename: filename, ContentType: contentType, Body: body}, nil
}

func exportWindow(today timeslot.Date, from, to string) (timeslot.Date, timeslot.Date, error) {
	start := today
	if from != "" {
		d, err := timeslot.ParseDate(from)
		if err != nil {
			return timeslot.Date{}, timeslot.Date{}, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
		}
		start = d
	}
	end := start.AddDays(defaultExportWindowDays)
	if to != "" {
		d, err := timeslot.ParseDate(to)
		if err != nil {
			return timeslot.Date{}, timeslot.Date{}, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
		}
		end = d
	}
	if end.Before(start) {
		return timeslot.Date{}, timeslot.Date{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if start.AddDays(maxExportWindowDays).Before(end) {
		return timeslot.Date{}, timeslot.Date{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export range is limited to %d days", maxExportWindowDays))
	}
	return start, end, nil
}

func reservationDataset(items []models.ReservationDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]string{
			"Date":       item.Date.String(),
			"Start":      item.StartTime.String(),
			"End":        item.EndTime.String(),
			"Purpose":    item.Purpose,
			"Requester":  item.RequesterName,
			"Status":     string(item.Status),
			"Course":     deref(item.Course),
			"Year Level": deref(item.YearLevel),
			"Block":      deref(item.Block),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

// reservationEvents maps reservations to calendar events. Rejected requests
// never held the room and are left out.
func reservationEvents(items []models.ReservationDetail, room *models.Room, loc *time.Location) []export.Event {
	events := make([]export.Event, 0, len(items))
	for _, item := range items {
		if item.Status == models.StatusRejected {
			continue
		}
		events = append(events, export.Event{
			UID:         item.ID + "@room-reservation-api",
			Summary:     item.Purpose,
			Description: fmt.Sprintf("Requested by %s (%s)", item.RequesterName, item.Status),
			Location:    room.DisplayName(),
			Start:       item.Date.On(item.StartTime, loc),
			End:         item.Date.On(item.EndTime, loc),
			Tentative:   item.Status == models.StatusPending,
			Cancelled:   item.Status == models.StatusCancelled,
		})
	}
	return events
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func slug(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
