package flow

import "line-order-intake/internal/adapters/line"

// EventKind classifies inbound events for routing.
type EventKind int

const (
	KindOther EventKind = iota
	KindText
	KindPostback
)

// Event is the part of a webhook event the engine acts on.
type Event struct {
	Kind       EventKind
	UserID     string
	ReplyToken string
	Text       string
	// PostbackData is the raw data string of a postback action.
	PostbackData string
	// PostbackParams holds datetimepicker results ("datetime", "date", "time").
	PostbackParams map[string]string
}

// FromLINE converts a webhook event. Non-text messages and unsupported event
// types become KindOther.
func FromLINE(e line.Event) Event {
	ev := Event{
		Kind:       KindOther,
		UserID:     e.Source.UserID,
		ReplyToken: e.ReplyToken,
	}
	switch {
	case e.Type == "message" && e.Message != nil && e.Message.Type == "text":
		ev.Kind = KindText
		ev.Text = e.Message.Text
	case e.Type == "postback" && e.Postback != nil:
		ev.Kind = KindPostback
		ev.PostbackData = e.Postback.Data
		ev.PostbackParams = e.Postback.Params
	}
	return ev
}
