// Package postback encodes and decodes the data string carried by LINE
// postback actions.
package postback

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"line-order-intake/internal/models"
)

// ErrUnknownAction is returned when postback data names no known action.
var ErrUnknownAction = errors.New("unknown postback action")

// Action identifies which menu produced a postback.
type Action string

const (
	ActionSelectDate    Action = "selectDate"
	ActionItemSelect    Action = "itemSelect"
	ActionPurposeSelect Action = "purposeSelect"
	ActionColorSelect   Action = "colorSelect"
)

// valueKeys maps each menu action to the query key holding its selection.
var valueKeys = map[Action]string{
	ActionItemSelect:    "itemVal",
	ActionPurposeSelect: "purposeVal",
	ActionColorSelect:   "colorVal",
}

// Data is a decoded postback payload.
type Data struct {
	Action Action
	UserID string
	// Value is the raw selection, either a bare tag or a composite
	// "label-tag". Empty for selectDate.
	Value string
}

// Encode renders the postback data string for an action. value is ignored
// for actions that carry no selection.
func Encode(action Action, userID, value string) string {
	var b strings.Builder
	b.WriteString("action=")
	b.WriteString(url.QueryEscape(string(action)))
	b.WriteString("&userId=")
	b.WriteString(url.QueryEscape(userID))
	if key, ok := valueKeys[action]; ok {
		b.WriteString("&")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(url.QueryEscape(value))
	}
	return b.String()
}

// Decode parses a postback data string. Action names must match exactly.
func Decode(data string) (Data, error) {
	q, err := url.ParseQuery(data)
	if err != nil {
		return Data{}, fmt.Errorf("parse postback data: %w", err)
	}

	action := Action(q.Get("action"))
	switch action {
	case ActionSelectDate, ActionItemSelect, ActionPurposeSelect, ActionColorSelect:
	default:
		return Data{}, fmt.Errorf("%w: %q", ErrUnknownAction, q.Get("action"))
	}

	d := Data{Action: action, UserID: q.Get("userId")}
	if key, ok := valueKeys[action]; ok {
		d.Value = q.Get(key)
	}
	return d, nil
}

// ResolveOption finds the catalog entry for a raw selection value. Both the
// bare tag and the composite "label-tag" form match.
func ResolveOption(catalog []models.Option, raw string) (models.Option, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Option{}, false
	}
	for _, o := range catalog {
		if raw == o.Tag || raw == o.String() {
			return o, true
		}
	}
	return models.Option{}, false
}
