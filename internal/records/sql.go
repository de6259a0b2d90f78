package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"line-order-intake/internal/db"
	"line-order-intake/internal/models"
)

// sqlTimeLayout is fixed width so stored timestamps sort lexically.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Schema holds the statements applied by SQLStore.Init. They are valid on
// both sqlite and postgres.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS order_records (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'Form not complete',
		pickup_date   TEXT NOT NULL DEFAULT '',
		item_type     TEXT NOT NULL DEFAULT '',
		purpose       TEXT NOT NULL DEFAULT '',
		color         TEXT NOT NULL DEFAULT '',
		budget        TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		phone_number  TEXT NOT NULL DEFAULT '',
		shop_id       TEXT NOT NULL DEFAULT '',
		shop_name     TEXT NOT NULL DEFAULT '',
		order_num     INTEGER NOT NULL,
		updated_time  TEXT NOT NULL DEFAULT '',
		created_time  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_records_user_status ON order_records (user_id, status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_order_records_order_num ON order_records (order_num)`,
}

// columns maps writable fields to their column.
var columns = map[models.Field]string{
	models.FieldStatus:       "status",
	models.FieldDate:         "pickup_date",
	models.FieldItemType:     "item_type",
	models.FieldPurpose:      "purpose",
	models.FieldColor:        "color",
	models.FieldBudget:       "budget",
	models.FieldCustomerName: "customer_name",
	models.FieldPhoneNumber:  "phone_number",
	models.FieldShopID:       "shop_id",
	models.FieldShopName:     "shop_name",
	models.FieldUpdatedTime:  "updated_time",
	models.FieldCreatedTime:  "created_time",
}

const selectColumns = `id, user_id, status, pickup_date, item_type, purpose, color, budget,
	customer_name, phone_number, shop_id, shop_name, order_num, updated_time, created_time`

type orderRow struct {
	ID           string `db:"id"`
	UserID       string `db:"user_id"`
	Status       string `db:"status"`
	PickupDate   string `db:"pickup_date"`
	ItemType     string `db:"item_type"`
	Purpose      string `db:"purpose"`
	Color        string `db:"color"`
	Budget       string `db:"budget"`
	CustomerName string `db:"customer_name"`
	PhoneNumber  string `db:"phone_number"`
	ShopID       string `db:"shop_id"`
	ShopName     string `db:"shop_name"`
	OrderNum     int64  `db:"order_num"`
	UpdatedTime  string `db:"updated_time"`
	CreatedTime  string `db:"created_time"`
}

func parseSQLTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(sqlTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatSQLTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sqlTimeLayout)
}

func (r orderRow) record() *models.OrderRecord {
	return &models.OrderRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		Status:       r.Status,
		Date:         parseSQLTime(r.PickupDate),
		ItemType:     r.ItemType,
		Purpose:      r.Purpose,
		Color:        r.Color,
		Budget:       r.Budget,
		CustomerName: r.CustomerName,
		PhoneNumber:  r.PhoneNumber,
		ShopID:       r.ShopID,
		ShopName:     r.ShopName,
		OrderNum:     strconv.FormatInt(r.OrderNum, 10),
		UpdatedTime:  parseSQLTime(r.UpdatedTime),
		CreatedTime:  parseSQLTime(r.CreatedTime),
	}
}

// maxCreateAttempts bounds retries when two inserts pick the same order number.
const maxCreateAttempts = 5

// pqUniqueViolation is the postgres SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint failure on
// either supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE constraint failed"))
	}
	return false
}

// SQLStore keeps orders in a relational table (sqlite or postgres).
type SQLStore struct {
	db   *sqlx.DB
	now  func() time.Time
	exec func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLStore creates a store over an open connection. Call Init before use.
func NewSQLStore(conn *sqlx.DB) (*SQLStore, error) {
	if conn == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	return &SQLStore{db: conn, now: time.Now, exec: conn.ExecContext}, nil
}

// Init creates the order table if it does not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	return db.Migrate(ctx, s.db, Schema...)
}

// CreateRecord inserts a new incomplete order with the next order number.
// Concurrent inserts on postgres can read the same MAX(order_num); the loser
// hits the unique index and retries with a fresh number.
func (s *SQLStore) CreateRecord(ctx context.Context, userID string, pickup time.Time, shopID, shopName string) (*models.OrderRecord, error) {
	id := uuid.NewString()
	query := s.db.Rebind(`INSERT INTO order_records
		(id, user_id, status, pickup_date, shop_id, shop_name, order_num, created_time)
		SELECT ?, ?, ?, ?, ?, ?, COALESCE(MAX(order_num), 0) + 1, ? FROM order_records`)

	for attempt := 1; ; attempt++ {
		_, err := s.exec(ctx, query,
			id, userID, models.StatusNotComplete, formatSQLTime(pickup), shopID, shopName, formatSQLTime(s.now()))
		if err == nil {
			break
		}
		if !isUniqueViolation(err) || attempt == maxCreateAttempts {
			return nil, fmt.Errorf("insert order record: %w", err)
		}
		log.Warn().Err(err).Str("userId", userID).Int("attempt", attempt).Msg("Order number taken, retrying insert")
	}

	rec, err := s.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info().Str("userId", userID).Str("recordId", id).Str("orderNum", rec.OrderNum).Msg("Created order record")
	return rec, nil
}

func (s *SQLStore) byID(ctx context.Context, id string) (*models.OrderRecord, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+selectColumns+` FROM order_records WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select order record: %w", err)
	}
	return row.record(), nil
}

// FindActiveRecord returns the user's newest incomplete order.
func (s *SQLStore) FindActiveRecord(ctx context.Context, userID string) (*models.OrderRecord, error) {
	var row orderRow
	query := s.db.Rebind(`SELECT ` + selectColumns + ` FROM order_records
		WHERE user_id = ? AND status = ? ORDER BY order_num DESC LIMIT 1`)
	err := s.db.GetContext(ctx, &row, query, userID, models.StatusNotComplete)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveRecord
	}
	if err != nil {
		return nil, fmt.Errorf("select active order record: %w", err)
	}
	return row.record(), nil
}

// UpdateField writes one column of the user's active order.
func (s *SQLStore) UpdateField(ctx context.Context, userID string, field models.Field, value string) (*models.OrderRecord, error) {
	column, ok := columns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotWritable, field)
	}
	if field.Kind() == models.KindDate {
		t, err := ParseTime(value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", field, err)
		}
		value = formatSQLTime(t)
	}

	active, err := s.FindActiveRecord(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoActiveRecord) {
			log.Info().Str("userId", userID).Str("field", string(field)).Msg("No active order record for user, update skipped")
		}
		return nil, err
	}

	// column comes from the fixed map above, never from input.
	query := s.db.Rebind(`UPDATE order_records SET ` + column + ` = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, value, active.ID); err != nil {
		return nil, fmt.Errorf("update %q: %w", field, err)
	}
	log.Debug().Str("userId", userID).Str("recordId", active.ID).Str("field", string(field)).Msg("Updated order record")
	return s.byID(ctx, active.ID)
}

// ReadSummary loads a record by id and projects it for display.
func (s *SQLStore) ReadSummary(ctx context.Context, recordID string, loc *time.Location) (*models.OrderSummary, error) {
	rec, err := s.byID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return Summarize(rec, loc), nil
}
