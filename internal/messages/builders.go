package messages

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"line-order-intake/internal/adapters/line"
	"line-order-intake/internal/models"
	"line-order-intake/internal/postback"
	"line-order-intake/internal/timeutil"
)

// yen formats prices with Japanese digit grouping (5500 -> 5,500).
var yen = message.NewPrinter(language.Japanese)

// Picker bounds relative to now.
const (
	PickerLeadHours    = 3
	PickerWindowMonths = 6
)

// Text builds a plain text reply from the table.
func Text(id MessageID, vars map[string]string) line.Message {
	return line.TextMessage(Render(id, vars))
}

// DatePicker builds the pickup date/time picker for userID. now should
// already be in the shop time zone; the picker shows wall-clock values.
func DatePicker(userID string, now time.Time) line.Message {
	earliest := timeutil.FormatPickerDate(timeutil.AddHours(now, PickerLeadHours))
	latest := timeutil.FormatPickerDate(timeutil.AddMonths(now, PickerWindowMonths))

	title := Render(SelectDateTitle, nil)
	return line.Message{
		Type:    "template",
		AltText: title,
		Template: &line.Template{
			Type: "buttons",
			Text: title,
			Actions: []line.Action{{
				Type:    "datetimepicker",
				Label:   Render(SelectDateLabel, nil),
				Data:    postback.Encode(postback.ActionSelectDate, userID, ""),
				Mode:    "datetime",
				Initial: earliest,
				Min:     earliest,
				Max:     latest,
			}},
		},
	}
}

func optionButtons(action postback.Action, userID string, options []models.Option) []line.Action {
	actions := make([]line.Action, 0, len(options))
	for _, o := range options {
		actions = append(actions, line.Action{
			Type:        "postback",
			Label:       o.Label,
			DisplayText: o.Label,
			Data:        postback.Encode(action, userID, o.String()),
		})
	}
	return actions
}

// ItemMenu builds the item type buttons template.
func ItemMenu(userID string) line.Message {
	title := Render(PleaseSelectItem, nil)
	return line.Message{
		Type:    "template",
		AltText: title,
		Template: &line.Template{
			Type:    "buttons",
			Title:   title,
			Text:    Render(PleaseSelectItemText, nil),
			Actions: optionButtons(postback.ActionItemSelect, userID, Items),
		},
	}
}

// PurposeMenu builds the purpose buttons template.
func PurposeMenu(userID string) line.Message {
	title := Render(SelectPurposeTitle, nil)
	return line.Message{
		Type:    "template",
		AltText: title,
		Template: &line.Template{
			Type:    "buttons",
			Title:   title,
			Text:    Render(SelectPurposeText, nil),
			Actions: optionButtons(postback.ActionPurposeSelect, userID, Purposes),
		},
	}
}

func intPtr(i int) *int { return &i }

// ColorMenu builds the color selection flex bubble. Buttons templates
// allow at most four actions, so colors use a flex footer.
func ColorMenu(userID string) line.Message {
	buttons := make([]line.FlexComponent, 0, len(Colors))
	for _, a := range optionButtons(postback.ActionColorSelect, userID, Colors) {
		a := a
		buttons = append(buttons, line.FlexComponent{
			Type:   "button",
			Style:  "link",
			Height: "sm",
			Action: &a,
		})
	}

	title := Render(SelectColorTitle, nil)
	return line.Message{
		Type:    "flex",
		AltText: title,
		Contents: &line.FlexBubble{
			Type: "bubble",
			Size: "hecto",
			Body: &line.FlexComponent{
				Type:   "box",
				Layout: "vertical",
				Contents: []line.FlexComponent{
					{Type: "text", Text: title, Weight: "bold", Size: "xl", Wrap: true},
					{Type: "text", Text: Render(SelectColorText, nil), Color: "#aaaaaa", Size: "sm", Margin: "lg"},
				},
			},
			Footer: &line.FlexComponent{
				Type:     "box",
				Layout:   "vertical",
				Spacing:  "sm",
				Flex:     intPtr(0),
				Contents: buttons,
			},
		},
	}
}

// BudgetPrompt asks for the budget. Arrangements carry a minimum price.
func BudgetPrompt(itemTag string, minArrangementPrice int) line.Message {
	if itemTag == TagArrangement {
		return Text(BudgetPromptArrangement, map[string]string{"minPrice": yen.Sprintf("%d", minArrangementPrice)})
	}
	return Text(BudgetPromptBouquet, nil)
}
