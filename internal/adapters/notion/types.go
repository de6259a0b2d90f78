package notion

import (
	"strconv"
	"strings"
	"time"
)

// Page is a Notion page, i.e. a database row.
type Page struct {
	Object      string              `json:"object,omitempty"`
	ID          string              `json:"id"`
	CreatedTime time.Time           `json:"created_time"`
	Properties  map[string]Property `json:"properties"`
}

// Property is a page property value. Exactly one of the typed fields is set
// on write; reads carry Type plus the matching field.
type Property struct {
	ID       string     `json:"id,omitempty"`
	Type     string     `json:"type,omitempty"`
	Title    []RichText `json:"title,omitempty"`
	RichText []RichText `json:"rich_text,omitempty"`
	Date     *Date      `json:"date,omitempty"`
	Status   *Status    `json:"status,omitempty"`
	Number   *float64   `json:"number,omitempty"`
	UniqueID *UniqueID  `json:"unique_id,omitempty"`
	Formula  *Formula   `json:"formula,omitempty"`
}

// RichText is one rich text run.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

// TextContent is the content of a text run.
type TextContent struct {
	Content string `json:"content"`
}

// Date is a date property value. Start is ISO 8601.
type Date struct {
	Start    string  `json:"start"`
	End      *string `json:"end,omitempty"`
	TimeZone *string `json:"time_zone,omitempty"`
}

// Status is a status property value.
type Status struct {
	Name string `json:"name"`
}

// UniqueID is an auto-increment id property value.
type UniqueID struct {
	Prefix *string `json:"prefix"`
	Number int     `json:"number"`
}

// Formula is a computed property value.
type Formula struct {
	Type   string   `json:"type"`
	String *string  `json:"string,omitempty"`
	Number *float64 `json:"number,omitempty"`
}

// Parent addresses the database a page is created in.
type Parent struct {
	DatabaseID string `json:"database_id"`
}

// CreatePageRequest is the body of POST /v1/pages.
type CreatePageRequest struct {
	Parent     Parent              `json:"parent"`
	Properties map[string]Property `json:"properties"`
}

// UpdatePageRequest is the body of PATCH /v1/pages/{id}.
type UpdatePageRequest struct {
	Properties map[string]Property `json:"properties"`
}

// Filter is a database query filter. Compound filters use And; property
// filters set Property plus one condition.
type Filter struct {
	And      []Filter         `json:"and,omitempty"`
	Property string           `json:"property,omitempty"`
	Title    *TextCondition   `json:"title,omitempty"`
	RichText *TextCondition   `json:"rich_text,omitempty"`
	Status   *StatusCondition `json:"status,omitempty"`
}

// TextCondition matches title or rich text properties.
type TextCondition struct {
	Equals string `json:"equals"`
}

// StatusCondition matches status properties.
type StatusCondition struct {
	Equals string `json:"equals"`
}

// Sort orders query results.
type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"` // "created_time" or "last_edited_time"
	Direction string `json:"direction"`           // "ascending" or "descending"
}

// QueryRequest is the body of POST /v1/databases/{id}/query.
type QueryRequest struct {
	Filter   *Filter `json:"filter,omitempty"`
	Sorts    []Sort  `json:"sorts,omitempty"`
	PageSize int     `json:"page_size,omitempty"`
}

// QueryResponse is one page of query results.
type QueryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// TitleValue builds a title property.
func TitleValue(s string) Property {
	return Property{Title: []RichText{{Text: &TextContent{Content: s}}}}
}

// TextValue builds a rich text property.
func TextValue(s string) Property {
	return Property{RichText: []RichText{{Text: &TextContent{Content: s}}}}
}

// DateValue builds a date property.
func DateValue(start string) Property {
	return Property{Date: &Date{Start: start}}
}

// StatusValue builds a status property.
func StatusValue(name string) Property {
	return Property{Status: &Status{Name: name}}
}

func joinRichText(runs []RichText) string {
	var b strings.Builder
	for _, r := range runs {
		switch {
		case r.PlainText != "":
			b.WriteString(r.PlainText)
		case r.Text != nil:
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// PlainText flattens a property to a display string. Unset values and
// unsupported property types yield "".
func (p Property) PlainText() string {
	switch {
	case len(p.Title) > 0:
		return joinRichText(p.Title)
	case len(p.RichText) > 0:
		return joinRichText(p.RichText)
	case p.Status != nil:
		return p.Status.Name
	case p.Date != nil:
		return p.Date.Start
	case p.Number != nil:
		return formatNumber(*p.Number)
	case p.UniqueID != nil:
		n := strconv.Itoa(p.UniqueID.Number)
		if p.UniqueID.Prefix != nil && *p.UniqueID.Prefix != "" {
			return *p.UniqueID.Prefix + "-" + n
		}
		return n
	case p.Formula != nil:
		if p.Formula.String != nil {
			return *p.Formula.String
		}
		if p.Formula.Number != nil {
			return formatNumber(*p.Formula.Number)
		}
	}
	return ""
}

// Time parses a date property start. ok is false when the property is unset
// or unparseable.
func (p Property) Time() (t time.Time, ok bool) {
	if p.Date == nil || p.Date.Start == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, p.Date.Start); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
