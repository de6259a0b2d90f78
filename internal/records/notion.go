package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"line-order-intake/internal/adapters/notion"
	"line-order-intake/internal/models"
)

// NotionClient is the subset of the Notion API used by NotionStore.
type NotionClient interface {
	CreatePage(ctx context.Context, databaseID string, props map[string]notion.Property) (*notion.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, q notion.QueryRequest) (*notion.QueryResponse, error)
	UpdatePage(ctx context.Context, pageID string, props map[string]notion.Property) (*notion.Page, error)
	GetPage(ctx context.Context, pageID string) (*notion.Page, error)
}

// NotionStore keeps orders as rows of a Notion database.
type NotionStore struct {
	client     NotionClient
	databaseID string
	now        func() time.Time
}

// NewNotionStore creates a store over the given orders database.
func NewNotionStore(client NotionClient, databaseID string) (*NotionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("notion client cannot be nil")
	}
	if databaseID == "" {
		return nil, fmt.Errorf("notion database id cannot be empty")
	}
	return &NotionStore{client: client, databaseID: databaseID, now: time.Now}, nil
}

// CreateRecord inserts a new page for the user's order.
func (s *NotionStore) CreateRecord(ctx context.Context, userID string, pickup time.Time, shopID, shopName string) (*models.OrderRecord, error) {
	page, err := s.client.CreatePage(ctx, s.databaseID, map[string]notion.Property{
		string(models.FieldUserID):      notion.TitleValue(userID),
		string(models.FieldDate):        notion.DateValue(FormatTime(pickup)),
		string(models.FieldShopID):      notion.TextValue(shopID),
		string(models.FieldShopName):    notion.TextValue(shopName),
		string(models.FieldStatus):      notion.StatusValue(models.StatusNotComplete),
		string(models.FieldCreatedTime): notion.DateValue(FormatTime(s.now())),
	})
	if err != nil {
		return nil, fmt.Errorf("create order page: %w", err)
	}
	log.Info().Str("userId", userID).Str("pageId", page.ID).Str("shopId", shopID).Msg("Created order record")
	return recordFromPage(page), nil
}

// FindActiveRecord returns the newest incomplete order page of the user.
func (s *NotionStore) FindActiveRecord(ctx context.Context, userID string) (*models.OrderRecord, error) {
	res, err := s.client.QueryDatabase(ctx, s.databaseID, notion.QueryRequest{
		Filter: &notion.Filter{And: []notion.Filter{
			{Property: string(models.FieldUserID), Title: &notion.TextCondition{Equals: userID}},
			{Property: string(models.FieldStatus), Status: &notion.StatusCondition{Equals: models.StatusNotComplete}},
		}},
		Sorts:    []notion.Sort{{Timestamp: "created_time", Direction: "descending"}},
		PageSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("query active order: %w", err)
	}
	if len(res.Results) == 0 {
		return nil, ErrNoActiveRecord
	}
	return recordFromPage(&res.Results[0]), nil
}

func encodeProperty(field models.Field, value string) (notion.Property, error) {
	switch field.Kind() {
	case models.KindDate:
		if _, err := ParseTime(value); err != nil {
			return notion.Property{}, err
		}
		return notion.DateValue(value), nil
	case models.KindStatus:
		return notion.StatusValue(value), nil
	default:
		return notion.TextValue(value), nil
	}
}

// UpdateField writes one property of the user's active order page.
func (s *NotionStore) UpdateField(ctx context.Context, userID string, field models.Field, value string) (*models.OrderRecord, error) {
	if !field.Writable() {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotWritable, field)
	}
	prop, err := encodeProperty(field, value)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", field, err)
	}

	active, err := s.FindActiveRecord(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoActiveRecord) {
			log.Info().Str("userId", userID).Str("field", string(field)).Msg("No active order record for user, update skipped")
		}
		return nil, err
	}

	page, err := s.client.UpdatePage(ctx, active.ID, map[string]notion.Property{string(field): prop})
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", field, err)
	}
	log.Debug().Str("userId", userID).Str("pageId", page.ID).Str("field", string(field)).Msg("Updated order record")
	return recordFromPage(page), nil
}

// ReadSummary fetches a page and projects it for display.
func (s *NotionStore) ReadSummary(ctx context.Context, recordID string, loc *time.Location) (*models.OrderSummary, error) {
	page, err := s.client.GetPage(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("read order page: %w", err)
	}
	return Summarize(recordFromPage(page), loc), nil
}

func recordFromPage(p *notion.Page) *models.OrderRecord {
	prop := func(f models.Field) notion.Property { return p.Properties[string(f)] }
	timeOf := func(f models.Field) time.Time {
		t, _ := prop(f).Time()
		return t
	}

	r := &models.OrderRecord{
		ID:           p.ID,
		UserID:       prop(models.FieldUserID).PlainText(),
		Status:       prop(models.FieldStatus).PlainText(),
		Date:         timeOf(models.FieldDate),
		ItemType:     prop(models.FieldItemType).PlainText(),
		Purpose:      prop(models.FieldPurpose).PlainText(),
		Color:        prop(models.FieldColor).PlainText(),
		Budget:       prop(models.FieldBudget).PlainText(),
		CustomerName: prop(models.FieldCustomerName).PlainText(),
		PhoneNumber:  prop(models.FieldPhoneNumber).PlainText(),
		ShopID:       prop(models.FieldShopID).PlainText(),
		ShopName:     prop(models.FieldShopName).PlainText(),
		OrderNum:     prop(models.FieldOrderNum).PlainText(),
		UpdatedTime:  timeOf(models.FieldUpdatedTime),
		CreatedTime:  timeOf(models.FieldCreatedTime),
	}
	if r.CreatedTime.IsZero() {
		r.CreatedTime = p.CreatedTime
	}
	return r
}
