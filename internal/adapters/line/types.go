package line

// CallbackRequest is the webhook envelope LINE posts to the bot server.
type CallbackRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one webhook event. Only message and postback events are acted on;
// other types decode with Message and Postback left nil.
type Event struct {
	Type           string        `json:"type"` // "message", "postback", "follow", ...
	Mode           string        `json:"mode,omitempty"`
	Timestamp      int64         `json:"timestamp"`
	WebhookEventID string        `json:"webhookEventId,omitempty"`
	ReplyToken     string        `json:"replyToken,omitempty"`
	Source         Source        `json:"source"`
	Message        *EventMessage `json:"message,omitempty"`
	Postback       *Postback     `json:"postback,omitempty"`
}

// Source identifies who triggered an event.
type Source struct {
	Type    string `json:"type"` // "user", "group", "room"
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// EventMessage is the message object of a message event.
type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "text", "image", "sticker", ...
	Text string `json:"text,omitempty"`
}

// Postback carries the data string of the tapped action plus, for
// datetimepicker actions, the chosen value under "datetime", "date" or "time".
type Postback struct {
	Data   string            `json:"data"`
	Params map[string]string `json:"params,omitempty"`
}

// ReplyRequest is the body of the reply message API.
type ReplyRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []Message `json:"messages"`
}

// Message is an outbound message object. Type selects which of the other
// fields are used: "text" uses Text, "template" uses AltText and Template,
// "flex" uses AltText and Contents.
type Message struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	AltText  string      `json:"altText,omitempty"`
	Template *Template   `json:"template,omitempty"`
	Contents *FlexBubble `json:"contents,omitempty"`
}

// Template is a buttons template.
type Template struct {
	Type    string   `json:"type"`
	Title   string   `json:"title,omitempty"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions"`
}

// Action is a template or flex button action.
type Action struct {
	Type        string `json:"type"` // "postback", "datetimepicker", "message", "uri"
	Label       string `json:"label,omitempty"`
	Data        string `json:"data,omitempty"`
	DisplayText string `json:"displayText,omitempty"`
	Text        string `json:"text,omitempty"`
	URI         string `json:"uri,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Initial     string `json:"initial,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// FlexBubble is a single flex bubble container.
type FlexBubble struct {
	Type   string            `json:"type"`
	Size   string            `json:"size,omitempty"`
	Body   *FlexComponent    `json:"body,omitempty"`
	Footer *FlexComponent    `json:"footer,omitempty"`
	Styles *FlexBubbleStyles `json:"styles,omitempty"`
}

// FlexBubbleStyles styles bubble blocks.
type FlexBubbleStyles struct {
	Footer *FlexBlockStyle `json:"footer,omitempty"`
}

// FlexBlockStyle is the style of one bubble block.
type FlexBlockStyle struct {
	Separator bool `json:"separator,omitempty"`
}

// FlexComponent covers the box, text, button and separator components.
type FlexComponent struct {
	Type     string          `json:"type"`
	Layout   string          `json:"layout,omitempty"`
	Contents []FlexComponent `json:"contents,omitempty"`
	Text     string          `json:"text,omitempty"`
	Weight   string          `json:"weight,omitempty"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
	Align    string          `json:"align,omitempty"`
	Margin   string          `json:"margin,omitempty"`
	Spacing  string          `json:"spacing,omitempty"`
	Style    string          `json:"style,omitempty"`
	Height   string          `json:"height,omitempty"`
	Wrap     bool            `json:"wrap,omitempty"`
	Flex     *int            `json:"flex,omitempty"`
	Action   *Action         `json:"action,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}
