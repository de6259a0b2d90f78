package models

import (
	"strings"
	"time"
)

// Order status values stored in the record store.
const (
	StatusNotComplete = "Form not complete"
	StatusComplete    = "Form Complete"
)

// Field names a writable column of an order record. The values are the
// property names used by the Notion orders database.
type Field string

const (
	FieldUserID       Field = "UserId"
	FieldStatus       Field = "Status"
	FieldDate         Field = "Date"
	FieldItemType     Field = "Item Type"
	FieldPurpose      Field = "Purpose"
	FieldColor        Field = "Color"
	FieldBudget       Field = "Budget"
	FieldCustomerName Field = "Customer Name"
	FieldPhoneNumber  Field = "Phone Number"
	FieldShopID       Field = "Shop Id"
	FieldShopName     Field = "Shop Name"
	FieldUpdatedTime  Field = "Updated time"
	FieldCreatedTime  Field = "Created time"
	FieldOrderNum     Field = "Order Num"
)

// FieldKind selects how a field value is encoded on write.
type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
	KindStatus
)

// Kind returns the encoding used for f.
func (f Field) Kind() FieldKind {
	switch f {
	case FieldDate, FieldUpdatedTime, FieldCreatedTime:
		return KindDate
	case FieldStatus:
		return KindStatus
	default:
		return KindText
	}
}

// Writable reports whether UpdateField may target f. UserId and the
// store-generated order number are fixed once the record exists.
func (f Field) Writable() bool {
	switch f {
	case FieldStatus, FieldDate, FieldItemType, FieldPurpose, FieldColor, FieldBudget,
		FieldCustomerName, FieldPhoneNumber, FieldShopID, FieldShopName, FieldUpdatedTime, FieldCreatedTime:
		return true
	}
	return false
}

// OrderRecord is one customer order, in progress or complete.
type OrderRecord struct {
	ID           string
	UserID       string
	Status       string
	Date         time.Time
	ItemType     string
	Purpose      string
	Color        string
	Budget       string
	CustomerName string
	PhoneNumber  string
	ShopID       string
	ShopName     string
	OrderNum     string
	UpdatedTime  time.Time
	CreatedTime  time.Time
}

// OrderSummary is the display projection of a finished order. Every field is
// a string; missing values are empty.
type OrderSummary struct {
	CustomerName   string `json:"customerName"`
	PhoneNumber    string `json:"phoneNumber"`
	Purpose        string `json:"purpose"`
	Budget         string `json:"budget"`
	Color          string `json:"color"`
	ItemType       string `json:"itemType"`
	OrderNum       string `json:"orderNum"`
	HumanDate      string `json:"humanDate"`
	HumanCreatedAt string `json:"humanCreatedAt"`
	HumanPlacedAt  string `json:"humanPlacedAt"`
}

// Option is a selectable menu value. Label is shown to the customer, Tag is
// the stable machine value.
type Option struct {
	Label string
	Tag   string
}

// String returns the composite "label-tag" form stored in order records.
func (o Option) String() string {
	if o.Tag == "" {
		return o.Label
	}
	return o.Label + "-" + o.Tag
}

// ParseOption splits a stored composite value on its first "-". Labels never
// contain "-" but tags may ("yellow-orange"). A value without a separator is
// returned as a bare label.
func ParseOption(s string) Option {
	label, tag, found := strings.Cut(s, "-")
	if !found {
		return Option{Label: s}
	}
	return Option{Label: label, Tag: tag}
}

// DisplayLabel returns the customer-facing part of a stored option value.
func DisplayLabel(s string) string {
	return ParseOption(s).Label
}
