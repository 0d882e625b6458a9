package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticketeer/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetEventByID retrieves an event by ID
func (s *Store) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := s.db.GetContext(ctx, &event, "SELECT * FROM events WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetTicketType retrieves a ticket type by ID
func (s *Store) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := s.db.GetContext(ctx, &tt, "SELECT * FROM ticket_types WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

// GetTicketTypeForEvent retrieves a ticket type only if it belongs to the event
func (s *Store) GetTicketTypeForEvent(ctx context.Context, id, eventID string) (*models.TicketType, error) {
	var tt models.TicketType
	err := s.db.GetContext(ctx, &tt,
		"SELECT * FROM ticket_types WHERE id = $1 AND event_id = $2", id, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

// GetTicketTypesByEvent retrieves all ticket types for an event
func (s *Store) GetTicketTypesByEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var types []models.TicketType
	err := s.db.SelectContext(ctx, &types,
		"SELECT * FROM ticket_types WHERE event_id = $1 ORDER BY created_at", eventID)
	return types, err
}

// ListTicketTypes retrieves every ticket type; used to warm the availability cache
func (s *Store) ListTicketTypes(ctx context.Context) ([]models.TicketType, error) {
	var types []models.TicketType
	err := s.db.SelectContext(ctx, &types, "SELECT * FROM ticket_types ORDER BY id")
	return types, err
}

// CountTicketTypes counts the ticket types an event already has
func (s *Store) CountTicketTypes(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM ticket_types WHERE event_id = $1", eventID)
	return count, err
}

// SumTicketQuantities sums total_quantity across an event's ticket types,
// optionally excluding one type (used when resizing that type).
func (s *Store) SumTicketQuantities(ctx context.Context, eventID, excludeID string) (int, error) {
	var sum int
	err := s.db.GetContext(ctx, &sum,
		"SELECT COALESCE(SUM(total_quantity), 0) FROM ticket_types WHERE event_id = $1 AND id <> $2",
		eventID, excludeID)
	return sum, err
}

// CreateTicketType inserts a new ticket type. A concurrent insert with the
// same name loses on the unique (event_id, lower(name)) index.
func (s *Store) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	query := `
		INSERT INTO ticket_types
			(id, event_id, name, description, price_cents, total_quantity, available_quantity, sold_quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		tt.ID, tt.EventID, tt.Name, tt.Description, tt.PriceCents,
		tt.TotalQuantity, tt.AvailableQuantity, tt.SoldQuantity, tt.Status,
	).Scan(&tt.CreatedAt, &tt.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrDuplicateTicketType
	}
	return err
}

// UpdateTicketTypeMeta updates the fields that do not touch inventory counts
func (s *Store) UpdateTicketTypeMeta(ctx context.Context, id, name, description string, priceCents int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE ticket_types SET name = $1, description = $2, price_cents = $3, updated_at = NOW() WHERE id = $4",
		name, description, priceCents, id)
	if isUniqueViolation(err) {
		return models.ErrDuplicateTicketType
	}
	return err
}

// ResizeTicketType changes total_quantity under a row lock, keeping
// available + sold == total. Shrinking below sold and growing the event's
// aggregate past its guest limit are both rejected without mutation.
func (s *Store) ResizeTicketType(ctx context.Context, id string, newTotal, guestLimit int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var tt models.TicketType
	err = tx.GetContext(ctx, &tt,
		"SELECT * FROM ticket_types WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrTicketTypeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock ticket type: %w", err)
	}

	if newTotal < tt.SoldQuantity {
		return models.ErrResizeBelowSold
	}

	var othersTotal int
	err = tx.GetContext(ctx, &othersTotal,
		"SELECT COALESCE(SUM(total_quantity), 0) FROM ticket_types WHERE event_id = $1 AND id <> $2",
		tt.EventID, tt.ID)
	if err != nil {
		return err
	}
	if othersTotal+newTotal > guestLimit {
		return models.ErrExceedsEventLimit
	}

	available := newTotal - tt.SoldQuantity
	status := tt.Status
	if status != models.TicketTypeStatusClosed {
		status = models.TicketTypeStatusAvailable
		if available == 0 {
			status = models.TicketTypeStatusSoldOut
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE ticket_types
		SET total_quantity = $1, available_quantity = $2, status = $3, updated_at = NOW()
		WHERE id = $4`,
		newTotal, available, status, id)
	if err != nil {
		return fmt.Errorf("failed to resize ticket type: %w", err)
	}

	return tx.Commit()
}

// CloseStartedTicketTypes force-closes sales for every ticket type whose
// event has started, independent of remaining availability.
func (s *Store) CloseStartedTicketTypes(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ticket_types tt
		SET status = $1, updated_at = NOW()
		FROM events e
		WHERE tt.event_id = e.id
		  AND tt.status <> $1
		  AND (e.start_date + e.start_time::time) <= $2`,
		models.TicketTypeStatusClosed, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddAttendeeTx records a user in the event's attendee set (idempotent).
// Runs inside the caller's transaction so attendee membership commits or
// rolls back with the purchase.
func (s *Store) AddAttendeeTx(ctx context.Context, tx *sqlx.Tx, eventID, userID string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		eventID, userID)
	return err
}

// GetAttendees retrieves the attendee user ids for an event
func (s *Store) GetAttendees(ctx context.Context, eventID string) ([]string, error) {
	var users []string
	err := s.db.SelectContext(ctx, &users,
		"SELECT user_id FROM event_attendees WHERE event_id = $1 ORDER BY user_id", eventID)
	return users, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
