package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

const roomColumns = "id, room_number, building, capacity, type, equipment, available, created_at, updated_at"

// RoomRepository provides persistence for rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a new room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms with optional filtering and pagination.
func (r *RoomRepository) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error) {
	base := "FROM rooms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Building != "" {
		conditions = append(conditions, fmt.Sprintf("building = $%d", len(args)+1))
		args = append(args, filter.Building)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Available != nil {
		conditions = append(conditions, fmt.Sprintf("available = $%d", len(args)+1))
		args = append(args, *filter.Available)
	}
	if filter.MinSeats > 0 {
		conditions = append(conditions, fmt.Sprintf("capacity >= $%d", len(args)+1))
		args = append(args, filter.MinSeats)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(room_number ILIKE $%d OR building ILIKE $%d OR equipment ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"building":    true,
		"room_number": true,
		"capacity":    true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "building"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	limit, offset := models.PageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, room_number ASC LIMIT %d OFFSET %d", roomColumns, base, sortBy, order, limit, offset)
	var rooms []models.Room
	if err := executor(ctx, r.db).SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rooms: %w", err)
	}

	var total int
	if err := executor(ctx, r.db).GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}

	return rooms, total, nil
}

// FindByID loads a room by id. It returns sql.ErrNoRows when absent.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := executor(ctx, r.db).GetContext(ctx, &room, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", id); err != nil {
		return nil, lookupErr(err)
	}
	return &room, nil
}

// ExistsByNaturalKey checks the (room_number, building) uniqueness constraint.
func (r *RoomRepository) ExistsByNaturalKey(ctx context.Context, roomNumber, building, excludeID string) (bool, error) {
	query := "SELECT 1 FROM rooms WHERE LOWER(room_number) = LOWER($1) AND LOWER(building) = LOWER($2)"
	args := []interface{}{roomNumber, building}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"

	var exists int
	if err := executor(ctx, r.db).GetContext(ctx, &exists, query, args...); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check room natural key: %w", err)
	}
	return true, nil
}

// Create stores a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, room_number, building, capacity, type, equipment, available, created_at, updated_at) VALUES (:id, :room_number, :building, :capacity, :type, :equipment, :available, :created_at, :updated_at)`
	if _, err := executor(ctx, r.db).NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies a room record.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET room_number = :room_number, building = :building, capacity = :capacity, type = :type, equipment = :equipment, available = :available, updated_at = :updated_at WHERE id = :id`
	if _, err := executor(ctx, r.db).NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// SetAvailability toggles whether a room accepts new reservations.
func (r *RoomRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx, `UPDATE rooms SET available = $2, updated_at = $3 WHERE id = $1`, id, available, time.Now().UTC()); err != nil {
		return fmt.Errorf("set room availability: %w", err)
	}
	return nil
}

// Delete removes a room by id.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}
