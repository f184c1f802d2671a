package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/pkg/timeslot"
)

const reservationSelect = `SELECT rs.id, rs.room_id, rs.user_id, rs.date, rs.start_time, rs.end_time, rs.purpose, rs.status, rs.admin_notes, rs.course, rs.year_level, rs.block, rs.created_at, rs.updated_at,
	COALESCE(u.full_name, '') AS requester_name, COALESCE(r.building || ' ' || r.room_number, '') AS room_label
	FROM reservations rs
	LEFT JOIN users u ON u.id = rs.user_id
	LEFT JOIN rooms r ON r.id = rs.room_id`

// ReservationRepository provides persistence for reservations.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// ListForConflict returns reservations for a room and date whose status is one
// of statuses, skipping excludeID when set.
func (r *ReservationRepository) ListForConflict(ctx context.Context, roomID string, date timeslot.Date, statuses []models.ReservationStatus, excludeID string) ([]models.ReservationDetail, error) {
	query := reservationSelect + ` WHERE rs.room_id = $1 AND rs.date = $2 AND rs.status = ANY($3)`
	args := []interface{}{roomID, date, pq.Array(statusStrings(statuses))}
	if excludeID != "" {
		// compared as text so an id that is not a UUID simply excludes nothing
		query += ` AND rs.id::text <> $4`
		args = append(args, excludeID)
	}
	query += ` ORDER BY rs.start_time ASC`

	var reservations []models.ReservationDetail
	if err := executor(ctx, r.db).SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, fmt.Errorf("list reservations for conflict: %w", err)
	}
	return reservations, nil
}

// ListByRoomBetween returns every reservation of a room within an inclusive date range.
func (r *ReservationRepository) ListByRoomBetween(ctx context.Context, roomID string, from, to timeslot.Date) ([]models.ReservationDetail, error) {
	query := reservationSelect + ` WHERE rs.room_id = $1 AND rs.date BETWEEN $2 AND $3 ORDER BY rs.date ASC, rs.start_time ASC`
	var reservations []models.ReservationDetail
	if err := executor(ctx, r.db).SelectContext(ctx, &reservations, query, roomID, from, to); err != nil {
		return nil, fmt.Errorf("list reservations by room: %w", err)
	}
	return reservations, nil
}

// ListUpcomingByUser returns a requester's reservations from today on, in date
// order. Approved reservations dated today are kept only while they have not
// ended at now; pending ones stay until their date has passed.
func (r *ReservationRepository) ListUpcomingByUser(ctx context.Context, userID string, today timeslot.Date, now timeslot.TimeOfDay, statuses []models.ReservationStatus, limit int) ([]models.ReservationDetail, error) {
	query := reservationSelect + fmt.Sprintf(` WHERE rs.user_id = $1 AND rs.status = ANY($3)
	AND (rs.date > $2 OR (rs.date = $2 AND (rs.status = 'pending' OR rs.end_time > $4)))
	ORDER BY rs.date ASC, rs.start_time ASC LIMIT %d`, limit)
	var reservations []models.ReservationDetail
	if err := executor(ctx, r.db).SelectContext(ctx, &reservations, query, userID, today, pq.Array(statusStrings(statuses)), now); err != nil {
		if isInvalidText(err) {
			return []models.ReservationDetail{}, nil
		}
		return nil, fmt.Errorf("list upcoming reservations: %w", err)
	}
	return reservations, nil
}

// List returns reservations with optional filtering and pagination.
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.ReservationDetail, int, error) {
	where := " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("rs.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("rs.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("rs.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("rs.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(filter.Statuses) > 0 {
		var clause string
		clause, args = effectiveStatusClause(filter.Statuses, filter.Today, filter.Now, args)
		conditions = append(conditions, clause)
	}
	if filter.Course != "" {
		conditions = append(conditions, fmt.Sprintf("rs.course = $%d", len(args)+1))
		args = append(args, filter.Course)
	}
	if filter.YearLevel != "" {
		conditions = append(conditions, fmt.Sprintf("rs.year_level = $%d", len(args)+1))
		args = append(args, filter.YearLevel)
	}
	if filter.Block != "" {
		conditions = append(conditions, fmt.Sprintf("rs.block = $%d", len(args)+1))
		args = append(args, filter.Block)
	}
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	limit, offset := models.PageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY rs.date %s, rs.start_time %s LIMIT %d OFFSET %d", reservationSelect, where, order, order, limit, offset)
	var reservations []models.ReservationDetail
	if err := executor(ctx, r.db).SelectContext(ctx, &reservations, query, args...); err != nil {
		if isInvalidText(err) {
			return []models.ReservationDetail{}, 0, nil
		}
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}

	var total int
	if err := executor(ctx, r.db).GetContext(ctx, &total, "SELECT COUNT(*) FROM reservations rs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	return reservations, total, nil
}

// FindByID loads a reservation by id. It returns sql.ErrNoRows when absent.
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*models.ReservationDetail, error) {
	var res models.ReservationDetail
	if err := executor(ctx, r.db).GetContext(ctx, &res, reservationSelect+` WHERE rs.id = $1`, id); err != nil {
		return nil, lookupErr(err)
	}
	return &res, nil
}

// Create stores a new reservation record.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	const query = `INSERT INTO reservations (id, room_id, user_id, date, start_time, end_time, purpose, status, admin_notes, course, year_level, block, created_at, updated_at) VALUES (:id, :room_id, :user_id, :date, :start_time, :end_time, :purpose, :status, :admin_notes, :course, :year_level, :block, :created_at, :updated_at)`
	if _, err := executor(ctx, r.db).NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// Update modifies the requester-editable fields of a pending reservation. It
// returns sql.ErrNoRows when no pending row with that id exists.
func (r *ReservationRepository) Update(ctx context.Context, res *models.Reservation) error {
	res.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reservations SET room_id = :room_id, date = :date, start_time = :start_time, end_time = :end_time, purpose = :purpose, course = :course, year_level = :year_level, block = :block, updated_at = :updated_at WHERE id = :id AND status = 'pending'`
	result, err := executor(ctx, r.db).NamedExecContext(ctx, query, res)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus sets the stored status and, when non-nil, the admin notes.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id string, status models.ReservationStatus, notes *string) error {
	const query = `UPDATE reservations SET status = $2, admin_notes = COALESCE($3, admin_notes), updated_at = $4 WHERE id = $1`
	if _, err := executor(ctx, r.db).ExecContext(ctx, query, id, status, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	return nil
}

// Delete removes a reservation by id.
func (r *ReservationRepository) Delete(ctx context.Context, id string) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// effectiveStatusClause renders the status resolver as SQL for the requested
// effective statuses and appends the parameters it uses to args.
func effectiveStatusClause(statuses []models.ReservationStatus, today timeslot.Date, now timeslot.TimeOfDay, args []interface{}) (string, []interface{}) {
	var stored []string
	clock := false
	for _, s := range statuses {
		switch s {
		case models.StatusActive, models.StatusApproved:
			clock = true
		case models.StatusCompleted:
			clock = true
			stored = append(stored, string(s))
		default:
			stored = append(stored, string(s))
		}
	}

	var parts []string
	if clock {
		t := fmt.Sprintf("$%d", len(args)+1)
		n := fmt.Sprintf("$%d", len(args)+2)
		args = append(args, today, now)
		for _, s := range statuses {
			switch s {
			case models.StatusActive:
				parts = append(parts, fmt.Sprintf("(rs.status = 'approved' AND rs.date = %[1]s AND rs.start_time <= %[2]s AND rs.end_time > %[2]s)", t, n))
			case models.StatusApproved:
				parts = append(parts, fmt.Sprintf("(rs.status = 'approved' AND (rs.date > %[1]s OR (rs.date = %[1]s AND rs.start_time > %[2]s)))", t, n))
			case models.StatusCompleted:
				parts = append(parts, fmt.Sprintf("(rs.status = 'approved' AND (rs.date < %[1]s OR (rs.date = %[1]s AND rs.end_time <= %[2]s)))", t, n))
			}
		}
	}
	if len(stored) > 0 {
		parts = append(parts, fmt.Sprintf("rs.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(stored))
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func statusStrings(statuses []models.ReservationStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
