package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"github.com/vincent-petithory/dataurl"

	"line-order-intake/internal/adapters/resend"
	"line-order-intake/internal/models"
	"line-order-intake/internal/shop"
)

// EmailSender is the subset of the Resend client used here.
type EmailSender interface {
	Send(ctx context.Context, email resend.Email) (*resend.SendResponse, error)
}

var emailTemplate = template.Must(template.New("order").Funcs(template.FuncMap{
	"label": models.DisplayLabel,
}).Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
  <meta charset="UTF-8">
  <title>Order Notification</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; }
    .order-summary { border: 1px solid #ddd; padding: 16px; max-width: 600px; margin: 20px auto; background-color: #f9f9f9; }
    .order-summary h2 { margin-top: 0; font-size: 20px; color: #333; }
    .order-summary table { width: 100%; border-collapse: collapse; margin-top: 10px; }
    .order-summary th, .order-summary td { padding: 8px; text-align: left; border-bottom: 1px solid #ddd; }
  </style>
</head>
<body>
  <div class="order-summary">
    <h2>お客様が注文をしました</h2>
    <p>以下は注文の詳細です：</p>
    <table>
      <tr><th>ご注文番号</th><td>{{.Order.OrderNum}}</td></tr>
      <tr><th>注文日時</th><td>{{.Order.HumanPlacedAt}}</td></tr>
      <tr><th>引き取り日時</th><td>{{.Order.HumanDate}}</td></tr>
      <tr><th>ご氏名</th><td>{{.Order.CustomerName}}</td></tr>
      <tr><th>商品</th><td>{{label .Order.ItemType}}</td></tr>
      <tr><th>目的</th><td>{{label .Order.Purpose}}</td></tr>
      <tr><th>ご予算</th><td>{{.Order.Budget}}</td></tr>
      <tr><th>ご希望の色</th><td>{{label .Order.Color}}</td></tr>
      <tr><th>電話番号</th><td>{{.Order.PhoneNumber}}</td></tr>
    </table>
    {{if .QRCode}}<p><img src="{{.QRCode}}" alt="{{.Order.OrderNum}}" width="160" height="160"></p>{{end}}
    <p>ご不明な点がございましたら、お気軽にご連絡ください。</p>
  </div>
</body>
</html>
`))

// OrderQRCode renders the order number as a PNG QR code.
func OrderQRCode(orderNum string, size int) ([]byte, error) {
	png, err := qrcode.Encode(orderNum, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode order qr code: %w", err)
	}
	return png, nil
}

// RenderEmailHTML renders the shop notification email body.
func RenderEmailHTML(summary *models.OrderSummary) (string, error) {
	data := struct {
		Order  *models.OrderSummary
		QRCode template.URL
	}{Order: summary}

	if summary.OrderNum != "" {
		png, err := OrderQRCode(summary.OrderNum, 256)
		if err != nil {
			return "", err
		}
		// data: URLs are otherwise filtered out by html/template.
		data.QRCode = template.URL(dataurl.New(png, "image/png").String())
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render order email: %w", err)
	}
	return buf.String(), nil
}

// EmailChannel notifies the shop by email through Resend.
type EmailChannel struct {
	sender EmailSender
	from   string
}

// NewEmailChannel creates the email channel.
func NewEmailChannel(sender EmailSender, from string) (*EmailChannel, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender cannot be nil")
	}
	if from == "" {
		return nil, fmt.Errorf("email from address cannot be empty")
	}
	return &EmailChannel{sender: sender, from: from}, nil
}

func (c *EmailChannel) Name() string { return "email" }

// Enabled is true for every shop with an email address.
func (c *EmailChannel) Enabled(cfg *shop.Config) bool { return cfg.Email != "" }

func (c *EmailChannel) Send(ctx context.Context, summary *models.OrderSummary, cfg *shop.Config) error {
	html, err := RenderEmailHTML(summary)
	if err != nil {
		return err
	}

	res, err := c.sender.Send(ctx, resend.Email{
		From:    c.from,
		To:      []string{cfg.Email},
		Subject: "New Order: " + summary.OrderNum,
		HTML:    html,
		Tags:    []resend.Tag{{Name: "category", Value: "order_email"}},
	})
	if err != nil {
		return fmt.Errorf("send order email: %w", err)
	}
	log.Info().Str("orderNum", summary.OrderNum).Str("shopId", cfg.ID).Str("emailId", res.ID).Msg("Order email sent")
	return nil
}
