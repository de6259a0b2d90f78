// Package records persists customer orders. Every write targets the user's
// single active record, the one whose Status is still "Form not complete".
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"line-order-intake/internal/models"
	"line-order-intake/internal/timeutil"
)

var (
	// ErrNoActiveRecord is returned when the user has no incomplete order.
	ErrNoActiveRecord = errors.New("no active order record for user")
	// ErrRecordNotFound is returned when a record id does not exist.
	ErrRecordNotFound = errors.New("order record not found")
	// ErrFieldNotWritable is returned by UpdateField for fixed or unknown fields.
	ErrFieldNotWritable = errors.New("field is not writable")
)

// Store is the order record backend used by the conversation flow.
type Store interface {
	// CreateRecord always inserts a new incomplete record.
	CreateRecord(ctx context.Context, userID string, pickup time.Time, shopID, shopName string) (*models.OrderRecord, error)
	// FindActiveRecord returns the user's incomplete record or ErrNoActiveRecord.
	FindActiveRecord(ctx context.Context, userID string) (*models.OrderRecord, error)
	// UpdateField writes one field of the active record. Date fields take an
	// RFC 3339 value, see FormatTime.
	UpdateField(ctx context.Context, userID string, field models.Field, value string) (*models.OrderRecord, error)
	// ReadSummary projects a record for display with timestamps in loc.
	ReadSummary(ctx context.Context, recordID string, loc *time.Location) (*models.OrderSummary, error)
}

// FormatTime encodes a timestamp for a date field.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime decodes a date field value. Empty input yields the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date value %q", s)
}

// Summarize projects a record. Each timestamp is converted independently;
// unset ones render empty.
func Summarize(r *models.OrderRecord, loc *time.Location) *models.OrderSummary {
	return &models.OrderSummary{
		CustomerName:   r.CustomerName,
		PhoneNumber:    r.PhoneNumber,
		Purpose:        r.Purpose,
		Budget:         r.Budget,
		Color:          r.Color,
		ItemType:       r.ItemType,
		OrderNum:       r.OrderNum,
		HumanDate:      timeutil.Humanize(r.Date, loc),
		HumanCreatedAt: timeutil.Humanize(r.CreatedTime, loc),
		HumanPlacedAt:  timeutil.Humanize(r.UpdatedTime, loc),
	}
}
