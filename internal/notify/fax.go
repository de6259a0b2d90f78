package notify

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"

	"line-order-intake/internal/adapters/clicksend"
	"line-order-intake/internal/models"
	"line-order-intake/internal/shop"
)

// FaxSender is the subset of the ClickSend client used here.
type FaxSender interface {
	UploadFax(ctx context.Context, filename string, pdf []byte) (string, error)
	SendFax(ctx context.Context, req clicksend.FaxSendRequest) (*clicksend.FaxSendResponse, error)
}

// RenderFaxPDF lays the order out on one A4 page. fontPath names a TTF with
// Japanese glyphs; without it the core Helvetica font is used.
func RenderFaxPDF(summary *models.OrderSummary, fontPath string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Order "+summary.OrderNum, true)
	pdf.AddPage()

	if fontPath != "" {
		pdf.AddUTF8Font("jp", "", fontPath)
		pdf.SetFont("jp", "", 14)
	} else {
		pdf.SetFont("Helvetica", "", 14)
	}

	lines := []string{
		"お客様が注文をしました",
		"=============================================",
		"",
		"ご氏名: " + summary.CustomerName,
		"引き取り日時: " + summary.HumanDate,
		"目的: " + models.DisplayLabel(summary.Purpose),
		"商品: " + models.DisplayLabel(summary.ItemType),
		"ご予算: " + summary.Budget,
		"ご希望の色: " + models.DisplayLabel(summary.Color),
		"ご注文番号: " + summary.OrderNum,
		"注文日時: " + summary.HumanPlacedAt,
		"電話番号: " + summary.PhoneNumber,
		"",
		"=============================================",
		"ご不明な点がございましたら、お気軽にご連絡ください。",
	}
	for _, l := range lines {
		pdf.CellFormat(0, 9, l, "", 1, "L", false, 0, "")
	}

	if summary.OrderNum != "" {
		png, err := OrderQRCode(summary.OrderNum, 256)
		if err != nil {
			return nil, err
		}
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("order-qr", opts, bytes.NewReader(png))
		pdf.ImageOptions("order-qr", 150, 20, 40, 40, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render fax pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FaxChannel faxes the order to shops that have a fax number. Outside
// production it only logs.
type FaxChannel struct {
	sender     FaxSender
	archive    *Archive
	fontPath   string
	production bool
	now        func() time.Time
}

// NewFaxChannel creates the fax channel. archive may be nil.
func NewFaxChannel(sender FaxSender, archive *Archive, fontPath string, production bool) (*FaxChannel, error) {
	if production && sender == nil {
		return nil, fmt.Errorf("fax sender is required in production")
	}
	return &FaxChannel{
		sender:     sender,
		archive:    archive,
		fontPath:   fontPath,
		production: production,
		now:        time.Now,
	}, nil
}

func (c *FaxChannel) Name() string { return "fax" }

// Enabled is true only for shops with a fax number.
func (c *FaxChannel) Enabled(cfg *shop.Config) bool { return cfg.FaxNumber != "" }

func (c *FaxChannel) Send(ctx context.Context, summary *models.OrderSummary, cfg *shop.Config) error {
	if !c.production {
		log.Info().Str("orderNum", summary.OrderNum).Str("shopId", cfg.ID).Str("faxNumber", cfg.FaxNumber).Msg("Fax skipped outside production")
		return nil
	}

	pdf, err := RenderFaxPDF(summary, c.fontPath)
	if err != nil {
		return err
	}

	fileURL, err := c.sender.UploadFax(ctx, fmt.Sprintf("order-%s.pdf", summary.OrderNum), pdf)
	if err != nil {
		return fmt.Errorf("upload fax document: %w", err)
	}

	_, err = c.sender.SendFax(ctx, clicksend.FaxSendRequest{
		FileURL: fileURL,
		Messages: []clicksend.FaxMessage{{
			Source:       "line-order-intake",
			To:           cfg.FaxNumber,
			CustomString: summary.OrderNum,
		}},
	})
	if err != nil {
		return fmt.Errorf("send fax: %w", err)
	}
	log.Info().Str("orderNum", summary.OrderNum).Str("shopId", cfg.ID).Msg("Order fax sent")

	if c.archive != nil {
		key := FaxKey(cfg.ID, summary.OrderNum, c.now())
		if err := c.archive.Put(ctx, key, pdf, "application/pdf"); err != nil {
			// The fax already went out; a missing archive copy is not a delivery failure.
			log.Warn().Err(err).Str("orderNum", summary.OrderNum).Msg("Fax sent but archive upload failed")
		}
	}
	return nil
}
