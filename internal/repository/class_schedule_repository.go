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

const classScheduleSelect = `SELECT cs.id, cs.room_id, cs.instructor_id, cs.course_code, cs.course_name, cs.day_of_week, cs.start_time, cs.end_time, cs.created_at, cs.updated_at,
	COALESCE(u.full_name, '') AS instructor_name, COALESCE(r.building || ' ' || r.room_number, '') AS room_label
	FROM class_schedules cs
	LEFT JOIN users u ON u.id = cs.instructor_id
	LEFT JOIN rooms r ON r.id = cs.room_id`

// ClassScheduleRepository provides persistence for standing weekly class schedules.
type ClassScheduleRepository struct {
	db *sqlx.DB
}

// NewClassScheduleRepository creates a new class schedule repository.
func NewClassScheduleRepository(db *sqlx.DB) *ClassScheduleRepository {
	return &ClassScheduleRepository{db: db}
}

// ListByRoomAndDay returns the schedules occupying a room on a weekday.
func (r *ClassScheduleRepository) ListByRoomAndDay(ctx context.Context, roomID string, day time.Weekday) ([]models.ClassScheduleDetail, error) {
	query := classScheduleSelect + ` WHERE cs.room_id = $1 AND cs.day_of_week = $2 ORDER BY cs.start_time ASC`
	var schedules []models.ClassScheduleDetail
	if err := executor(ctx, r.db).SelectContext(ctx, &schedules, query, roomID, day.String()); err != nil {
		return nil, fmt.Errorf("list class schedules by room and day: %w", err)
	}
	return schedules, nil
}

// List returns class schedules with optional filtering and pagination.
func (r *ClassScheduleRepository) List(ctx context.Context, filter models.ClassScheduleFilter) ([]models.ClassScheduleDetail, int, error) {
	where := " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("cs.day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	limit, offset := models.PageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY cs.day_of_week ASC, cs.start_time ASC LIMIT %d OFFSET %d", classScheduleSelect, where, limit, offset)
	var schedules []models.ClassScheduleDetail
	if err := executor(ctx, r.db).SelectContext(ctx, &schedules, query, args...); err != nil {
		if isInvalidText(err) {
			return []models.ClassScheduleDetail{}, 0, nil
		}
		return nil, 0, fmt.Errorf("list class schedules: %w", err)
	}

	var total int
	if err := executor(ctx, r.db).GetContext(ctx, &total, "SELECT COUNT(*) FROM class_schedules cs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count class schedules: %w", err)
	}
	return schedules, total, nil
}

// FindByID loads a class schedule by id. It returns sql.ErrNoRows when absent.
func (r *ClassScheduleRepository) FindByID(ctx context.Context, id string) (*models.ClassScheduleDetail, error) {
	var sched models.ClassScheduleDetail
	if err := executor(ctx, r.db).GetContext(ctx, &sched, classScheduleSelect+` WHERE cs.id = $1`, id); err != nil {
		return nil, lookupErr(err)
	}
	return &sched, nil
}

// Create stores a new class schedule record.
func (r *ClassScheduleRepository) Create(ctx context.Context, schedule *models.ClassSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO class_schedules (id, room_id, instructor_id, course_code, course_name, day_of_week, start_time, end_time, created_at, updated_at) VALUES (:id, :room_id, :instructor_id, :course_code, :course_name, :day_of_week, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := executor(ctx, r.db).NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create class schedule: %w", err)
	}
	return nil
}

// Update modifies a class schedule record.
func (r *ClassScheduleRepository) Update(ctx context.Context, schedule *models.ClassSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_schedules SET room_id = :room_id, instructor_id = :instructor_id, course_code = :course_code, course_name = :course_name, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	if _, err := executor(ctx, r.db).NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update class schedule: %w", err)
	}
	return nil
}

// Delete removes a class schedule by id.
func (r *ClassScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx, `DELETE FROM class_schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class schedule: %w", err)
	}
	return nil
}
