// Package flow runs the order-intake conversation: it routes each inbound
// event to a step, writes the order record, answers the customer and moves
// the conversation stage.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/width"

	"line-order-intake/internal/adapters/line"
	"line-order-intake/internal/conversation"
	"line-order-intake/internal/messages"
	"line-order-intake/internal/models"
	"line-order-intake/internal/notify"
	"line-order-intake/internal/postback"
	"line-order-intake/internal/records"
	"line-order-intake/internal/shop"
	"line-order-intake/internal/timeutil"
)

// Replier sends reply messages through the messaging platform.
type Replier interface {
	Reply(ctx context.Context, accessToken, replyToken string, msgs []line.Message) error
}

// Notifier delivers a finished order to the shop.
type Notifier interface {
	SendConfirmation(ctx context.Context, summary *models.OrderSummary, cfg *shop.Config) []notify.DeliveryResult
}

// Engine is the conversation state machine.
type Engine struct {
	records  records.Store
	states   conversation.Store
	locker   *conversation.Locker
	replier  Replier
	notifier Notifier
	now      func() time.Time
}

// NewEngine wires the engine to its collaborators.
func NewEngine(store records.Store, states conversation.Store, replier Replier, notifier Notifier) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("record store cannot be nil")
	}
	if states == nil {
		return nil, fmt.Errorf("conversation store cannot be nil")
	}
	if replier == nil {
		return nil, fmt.Errorf("replier cannot be nil")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	return &Engine{
		records:  store,
		states:   states,
		locker:   conversation.NewLocker(),
		replier:  replier,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

// IsTrigger reports whether text starts a new order.
func IsTrigger(text string) bool {
	text = strings.TrimSpace(text)
	return strings.EqualFold(text, "hello") || text == "予約"
}

// normalize folds full-width digits and latin letters to ASCII.
func normalize(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}

// Handle processes one event for cfg. Events of the same user are
// serialized. Events that match no step are dropped without error.
func (e *Engine) Handle(ctx context.Context, cfg *shop.Config, ev Event) error {
	if ev.UserID == "" {
		log.Debug().Str("shopId", cfg.ID).Msg("Event without user id, ignoring")
		return nil
	}

	unlock := e.locker.Lock(ev.UserID)
	defer unlock()

	// Any event from a user starts tracking them, even one the flow ignores.
	state, err := e.states.Ensure(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if ev.Kind == KindOther {
		return nil
	}

	t := &turn{Engine: e, cfg: cfg, ev: ev, state: state}
	switch ev.Kind {
	case KindText:
		return t.onText(ctx)
	case KindPostback:
		return t.onPostback(ctx)
	}
	return nil
}

// turn is the handling of a single event.
type turn struct {
	*Engine
	cfg   *shop.Config
	ev    Event
	state *conversation.State
}

func (t *turn) logger() *zerolog.Logger {
	l := log.With().Str("userId", t.ev.UserID).Str("shopId", t.cfg.ID).Str("stage", string(t.state.Stage)).Logger()
	return &l
}

func (t *turn) reply(ctx context.Context, msgs ...line.Message) error {
	if t.ev.ReplyToken == "" {
		t.logger().Debug().Int("messages", len(msgs)).Msg("No reply token, reply skipped")
		return nil
	}
	if err := t.replier.Reply(ctx, t.cfg.ChannelAccessToken, t.ev.ReplyToken, msgs); err != nil {
		return fmt.Errorf("reply to %s: %w", t.ev.UserID, err)
	}
	return nil
}

func (t *turn) fire(ctx context.Context, event string) error {
	if err := t.state.Fire(ctx, event); err != nil {
		return err
	}
	if err := t.states.Save(ctx, t.state); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// checkRecordErr turns a missing active record into the session-lost reply.
// handled is true when err was consumed.
func (t *turn) checkRecordErr(ctx context.Context, err error) (handled bool, out error) {
	if !errors.Is(err, records.ErrNoActiveRecord) {
		return false, err
	}
	t.logger().Warn().Msg("No active order record, asking user to start again")
	if err := t.fire(ctx, conversation.EventReset); err != nil {
		return true, err
	}
	return true, t.reply(ctx, messages.Text(messages.SessionLost, nil))
}

func (t *turn) onText(ctx context.Context) error {
	if IsTrigger(t.ev.Text) {
		return t.start(ctx)
	}

	switch t.state.Stage {
	case conversation.StageAwaitingBudget:
		return t.onBudget(ctx)
	case conversation.StageAwaitingName:
		return t.onName(ctx)
	case conversation.StageAwaitingPhoneNumber:
		return t.onPhoneNumber(ctx)
	}

	t.logger().Debug().Msg("Text outside of a flow step, dropping")
	return nil
}

func (t *turn) onPostback(ctx context.Context) error {
	data, err := postback.Decode(t.ev.PostbackData)
	if err != nil {
		t.logger().Warn().Err(err).Str("data", t.ev.PostbackData).Msg("Undecodable postback, dropping")
		return nil
	}
	if data.UserID != "" && data.UserID != t.ev.UserID {
		t.logger().Warn().Str("postbackUserId", data.UserID).Msg("Postback user id differs from event source, using source")
	}

	switch data.Action {
	case postback.ActionSelectDate:
		return t.onDateSelected(ctx)
	case postback.ActionItemSelect:
		return t.onOption(ctx, models.FieldItemType, messages.Items, data.Value, messages.PurposeMenu(t.ev.UserID))
	case postback.ActionPurposeSelect:
		return t.onOption(ctx, models.FieldPurpose, messages.Purposes, data.Value, messages.ColorMenu(t.ev.UserID))
	case postback.ActionColorSelect:
		return t.onColor(ctx, data.Value)
	}
	return nil
}

// start answers the trigger text with the date picker. A flow already in
// progress goes back to idle.
func (t *turn) start(ctx context.Context) error {
	if err := t.fire(ctx, conversation.EventReset); err != nil {
		return err
	}
	t.logger().Info().Msg("Order flow started")

	return t.reply(ctx,
		messages.Text(messages.CallIfWithin3Hours, map[string]string{"phoneNumber": t.cfg.PhoneNumber}),
		messages.DatePicker(t.ev.UserID, t.now().In(t.cfg.Loc())),
	)
}

func (t *turn) onDateSelected(ctx context.Context) error {
	raw := t.ev.PostbackParams["datetime"]
	if raw == "" {
		raw = t.ev.PostbackParams["date"]
	}
	pickup, err := timeutil.ParsePickerDate(raw, t.cfg.Loc())
	if err != nil {
		t.logger().Warn().Err(err).Msg("Date postback without a usable datetime, dropping")
		return nil
	}

	if t.cfg.IsOutsideWorkingHours(pickup) {
		t.logger().Info().Time("pickup", pickup).Msg("Pickup outside working hours")
		if err := t.fire(ctx, conversation.EventReset); err != nil {
			return err
		}
		return t.reply(ctx, messages.Schedule(t.cfg))
	}

	// A new date restarts the questions that follow it.
	if err := t.fire(ctx, conversation.EventReset); err != nil {
		return err
	}

	if _, err := t.records.FindActiveRecord(ctx, t.ev.UserID); err == nil {
		for _, w := range []struct {
			field models.Field
			value string
		}{
			{models.FieldDate, records.FormatTime(pickup)},
			{models.FieldShopID, t.cfg.ID},
			{models.FieldShopName, t.cfg.Name},
		} {
			if _, err := t.records.UpdateField(ctx, t.ev.UserID, w.field, w.value); err != nil {
				return fmt.Errorf("update %s: %w", w.field, err)
			}
		}
		t.logger().Info().Msg("Reusing active order record for new pickup date")
	} else if errors.Is(err, records.ErrNoActiveRecord) {
		if _, err := t.records.CreateRecord(ctx, t.ev.UserID, pickup, t.cfg.ID, t.cfg.Name); err != nil {
			return fmt.Errorf("create order record: %w", err)
		}
	} else {
		return fmt.Errorf("find active order record: %w", err)
	}

	return t.reply(ctx, messages.ItemMenu(t.ev.UserID))
}

// storedOption returns the value persisted for a menu selection.
func storedOption(catalog []models.Option, raw string) string {
	if o, ok := postback.ResolveOption(catalog, raw); ok {
		return o.String()
	}
	return strings.TrimSpace(raw)
}

func (t *turn) onOption(ctx context.Context, field models.Field, catalog []models.Option, raw string, next line.Message) error {
	if _, err := t.records.UpdateField(ctx, t.ev.UserID, field, storedOption(catalog, raw)); err != nil {
		if handled, err := t.checkRecordErr(ctx, err); handled {
			return err
		}
		return fmt.Errorf("update %s: %w", field, err)
	}
	return t.reply(ctx, next)
}

func (t *turn) onColor(ctx context.Context, raw string) error {
	rec, err := t.records.UpdateField(ctx, t.ev.UserID, models.FieldColor, storedOption(messages.Colors, raw))
	if err != nil {
		if handled, err := t.checkRecordErr(ctx, err); handled {
			return err
		}
		return fmt.Errorf("update %s: %w", models.FieldColor, err)
	}

	if err := t.fire(ctx, conversation.EventColorSelected); err != nil {
		return err
	}

	itemTag := models.ParseOption(rec.ItemType).Tag
	if itemTag == "" {
		itemTag = rec.ItemType
	}
	return t.reply(ctx, messages.BudgetPrompt(itemTag, t.cfg.MinArrangementPrice))
}

func (t *turn) onBudget(ctx context.Context) error {
	budget := normalize(t.ev.Text)
	if _, err := t.records.UpdateField(ctx, t.ev.UserID, models.FieldBudget, budget); err != nil {
		if handled, err := t.checkRecordErr(ctx, err); handled {
			return err
		}
		return fmt.Errorf("update %s: %w", models.FieldBudget, err)
	}

	if err := t.fire(ctx, conversation.EventBudgetEntered); err != nil {
		return err
	}
	return t.reply(ctx,
		messages.Text(messages.BudgetThankYou, map[string]string{"budget": budget}),
		messages.Text(messages.PleaseEnterReservationName, nil),
	)
}

func (t *turn) onName(ctx context.Context) error {
	name := strings.TrimSpace(t.ev.Text)
	if _, err := t.records.UpdateField(ctx, t.ev.UserID, models.FieldCustomerName, name); err != nil {
		if handled, err := t.checkRecordErr(ctx, err); handled {
			return err
		}
		return fmt.Errorf("update %s: %w", models.FieldCustomerName, err)
	}

	if err := t.fire(ctx, conversation.EventNameEntered); err != nil {
		return err
	}
	return t.reply(ctx,
		messages.Text(messages.NameAcknowledgement, map[string]string{"name": name}),
		messages.Text(messages.PleaseEnterPhoneNumber, nil),
	)
}

// onPhoneNumber is the terminal step. The order is marked complete and
// dispatched even when the confirmation reply fails; that error is returned
// afterwards.
func (t *turn) onPhoneNumber(ctx context.Context) error {
	phone := normalize(t.ev.Text)
	rec, err := t.records.UpdateField(ctx, t.ev.UserID, models.FieldPhoneNumber, phone)
	if err != nil {
		if handled, err := t.checkRecordErr(ctx, err); handled {
			return err
		}
		return fmt.Errorf("update %s: %w", models.FieldPhoneNumber, err)
	}

	if _, err := t.records.UpdateField(ctx, t.ev.UserID, models.FieldUpdatedTime, records.FormatTime(t.now())); err != nil {
		return fmt.Errorf("update %s: %w", models.FieldUpdatedTime, err)
	}

	summary, err := t.records.ReadSummary(ctx, rec.ID, t.cfg.Loc())
	if err != nil {
		return fmt.Errorf("read order summary: %w", err)
	}

	replyErr := t.reply(ctx, messages.Confirmation(summary), messages.Text(messages.FinalThankYou, nil))
	if replyErr != nil {
		t.logger().Error().Err(replyErr).Str("orderNum", summary.OrderNum).Msg("Confirmation reply failed, completing order anyway")
	}

	if _, err := t.records.UpdateField(ctx, t.ev.UserID, models.FieldStatus, models.StatusComplete); err != nil {
		return errors.Join(replyErr, fmt.Errorf("complete order: %w", err))
	}

	t.notifier.SendConfirmation(ctx, summary, t.cfg)

	if err := t.fire(ctx, conversation.EventPhoneEntered); err != nil {
		return errors.Join(replyErr, err)
	}
	if err := t.states.Delete(ctx, t.ev.UserID); err != nil {
		return errors.Join(replyErr, fmt.Errorf("delete conversation: %w", err))
	}
	t.logger().Info().Str("orderNum", summary.OrderNum).Msg("Order completed")
	return replyErr
}
