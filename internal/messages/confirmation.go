package messages

import (
	"strings"

	"line-order-intake/internal/adapters/line"
	"line-order-intake/internal/models"
	"line-order-intake/internal/shop"
)

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func summaryRow(label, value string) line.FlexComponent {
	return line.FlexComponent{
		Type:   "box",
		Layout: "horizontal",
		Contents: []line.FlexComponent{
			{Type: "text", Text: label, Size: "sm", Color: "#555555", Flex: intPtr(0)},
			{Type: "text", Text: value, Size: "sm", Color: "#111111", Align: "end", Wrap: true},
		},
	}
}

// Confirmation builds the order confirmation bubble. Option values are shown
// by their display label.
func Confirmation(s *models.OrderSummary) line.Message {
	rows := []line.FlexComponent{
		summaryRow("ご来店日時", orDefault(s.HumanDate, "未定")),
		summaryRow("商品", orDefault(models.DisplayLabel(s.ItemType), "N/A")),
		summaryRow("目的", orDefault(models.DisplayLabel(s.Purpose), "N/A")),
		summaryRow("ご希望のお色", orDefault(models.DisplayLabel(s.Color), "指定なし")),
		summaryRow("お電話番号", orDefault(s.PhoneNumber, "N/A")),
		{
			Type:   "box",
			Layout: "horizontal",
			Margin: "md",
			Contents: []line.FlexComponent{
				{Type: "text", Text: "ご予算", Size: "sm", Color: "#555555", Weight: "bold"},
				{Type: "text", Text: "¥" + orDefault(s.Budget, "0"), Size: "xl", Color: "#111111", Align: "end", Weight: "bold"},
			},
		},
	}

	return line.Message{
		Type:    "flex",
		AltText: Render(ConfirmationAltText, nil),
		Contents: &line.FlexBubble{
			Type: "bubble",
			Body: &line.FlexComponent{
				Type:   "box",
				Layout: "vertical",
				Contents: []line.FlexComponent{
					{Type: "text", Text: "予約確認票", Weight: "bold", Color: "#1DB446", Size: "sm"},
					{Type: "text", Text: orDefault(s.CustomerName, "お客様") + "様", Weight: "bold", Size: "xxl", Margin: "md", Wrap: true},
					{Type: "text", Text: "以下の内容で注文を承りました。", Size: "xs", Color: "#aaaaaa", Wrap: true},
					{Type: "separator", Margin: "xxl"},
					{Type: "box", Layout: "vertical", Margin: "xxl", Spacing: "sm", Contents: rows},
					{Type: "separator", Margin: "xxl"},
					{
						Type:   "box",
						Layout: "horizontal",
						Margin: "md",
						Contents: []line.FlexComponent{
							{Type: "text", Text: "ご注文番号", Size: "xs", Color: "#aaaaaa", Flex: intPtr(0)},
							{Type: "text", Text: orDefault(s.OrderNum, "N/A"), Size: "xs", Color: "#aaaaaa", Align: "end"},
						},
					},
				},
			},
			Styles: &line.FlexBubbleStyles{Footer: &line.FlexBlockStyle{Separator: true}},
		},
	}
}

// Schedule builds the out-of-hours reply listing the shop's weekly hours.
func Schedule(cfg *shop.Config) line.Message {
	return Text(OutsideWorkingHours, map[string]string{
		"schedule": strings.Join(cfg.ScheduleLines(), "\n"),
	})
}
