// Package messages holds the customer-facing text table, the selectable
// option catalogs and the builders for LINE reply payloads.
package messages

import (
	"regexp"

	"line-order-intake/internal/models"
)

// MessageID keys the text table.
type MessageID string

const (
	CallIfWithin3Hours         MessageID = "callIfWithin3Hours"
	SelectDateTitle            MessageID = "selectDateTitle"
	SelectDateLabel            MessageID = "selectDateLabel"
	PleaseSelectItem           MessageID = "pleaseSelectItem"
	PleaseSelectItemText       MessageID = "pleaseSelectItemText"
	SelectPurposeTitle         MessageID = "selectPurposeTitle"
	SelectPurposeText          MessageID = "selectPurposeText"
	SelectColorTitle           MessageID = "selectColorTitle"
	SelectColorText            MessageID = "selectColorText"
	BudgetPromptBouquet        MessageID = "budgetPromptBouquet"
	BudgetPromptArrangement    MessageID = "budgetPromptArrangement"
	BudgetThankYou             MessageID = "budgetThankYou"
	PleaseEnterReservationName MessageID = "pleaseEnterReservationName"
	NameAcknowledgement        MessageID = "nameAcknowledgement"
	PleaseEnterPhoneNumber     MessageID = "pleaseEnterPhoneNumber"
	FinalThankYou              MessageID = "finalThankYou"
	OutsideWorkingHours        MessageID = "outsideWorkingHours"
	SessionLost                MessageID = "sessionLost"
	ConfirmationAltText        MessageID = "confirmationAltText"
)

var table = map[MessageID]string{
	CallIfWithin3Hours:         "3時間以内のご注文の場合は、{phoneNumber}までお電話ください。それ以外の方は以下より日時を選んでください。",
	SelectDateTitle:            "日付を選択してください",
	SelectDateLabel:            "日時を選ぶ",
	PleaseSelectItem:           "商品を選んでください。",
	PleaseSelectItemText:       "以下から選んでください。",
	SelectPurposeTitle:         "用途を選んでください",
	SelectPurposeText:          "以下から選んでください。",
	SelectColorTitle:           "色味を選んでください。",
	SelectColorText:            "以下から選択してください。",
	BudgetPromptBouquet:        "ご予算を入力してください。（税込み）",
	BudgetPromptArrangement:    "ご予算を入力してください。（税込み）\nアレンジメントは¥{minPrice}からご注文可能です。",
	BudgetThankYou:             "ありがとうございます！ご予算は{budget}ですね。",
	PleaseEnterReservationName: "予約のお名前を入力してください。",
	NameAcknowledgement:        "予約名{name}様で承りました。",
	PleaseEnterPhoneNumber:     "お電話番号を入力してください。",
	FinalThankYou:              "ありがとうございます！ご注文の承認後、改めてご連絡をさせていただきますので、しばらくお待ちください！",
	OutsideWorkingHours:        "申し訳ございません。ご指定の日時は営業時間外です。\n営業時間は以下の通りです。\n{schedule}\n\nお手数ですが「予約」と送信して日時を選び直してください。",
	SessionLost:                "ご注文情報が見つかりませんでした。お手数ですが「予約」と送信して最初からやり直してください。",
	ConfirmationAltText:        "ご予約内容の確認",
}

var placeholder = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// Render returns the text for id with {name} placeholders substituted from
// vars. Placeholders without a value are left as written. An unknown id
// renders as the id itself.
func Render(id MessageID, vars map[string]string) string {
	text, ok := table[id]
	if !ok {
		return string(id)
	}
	if len(vars) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// Tag values with behavior attached to them.
const (
	TagArrangement = "arrangement"
	TagBouquet     = "bouquet"
)

// Items is the item type menu.
var Items = []models.Option{
	{Label: "アレンジメント", Tag: TagArrangement},
	{Label: "花束", Tag: TagBouquet},
}

// Purposes is the purpose menu.
var Purposes = []models.Option{
	{Label: "誕生日", Tag: "birthday"},
	{Label: "お祝", Tag: "celebration"},
	{Label: "お供え", Tag: "offering"},
	{Label: "ご自宅用", Tag: "home-use"},
}

// Colors is the color menu.
var Colors = []models.Option{
	{Label: "赤系", Tag: "red"},
	{Label: "ピンク系", Tag: "pink"},
	{Label: "黄色・オレンジ系", Tag: "yellow-orange"},
	{Label: "白系", Tag: "white"},
	{Label: "ミックス", Tag: "mix"},
	{Label: "その他", Tag: "other"},
}
