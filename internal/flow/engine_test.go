package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-order-intake/internal/adapters/line"
	"line-order-intake/internal/conversation"
	"line-order-intake/internal/db"
	"line-order-intake/internal/messages"
	"line-order-intake/internal/models"
	"line-order-intake/internal/notify"
	"line-order-intake/internal/postback"
	"line-order-intake/internal/records"
	"line-order-intake/internal/shop"
)

var jst = time.FixedZone("JST", 9*60*60)

type sentReply struct {
	token string
	msgs  []line.Message
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, _, replyToken string, msgs []line.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{token: replyToken, msgs: msgs})
	return f.err
}

func (f *fakeReplier) last(t *testing.T) sentReply {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.replies)
	return f.replies[len(f.replies)-1]
}

type fakeNotifier struct {
	summaries []*models.OrderSummary
}

func (f *fakeNotifier) SendConfirmation(_ context.Context, s *models.OrderSummary, _ *shop.Config) []notify.DeliveryResult {
	f.summaries = append(f.summaries, s)
	return []notify.DeliveryResult{{Channel: "email", Success: true}}
}

type harness struct {
	engine   *Engine
	conn     *sqlx.DB
	store    *records.SQLStore
	states   *conversation.MemoryStore
	replier  *fakeReplier
	notifier *fakeNotifier
	shop     *shop.Config
}

func clock(t *testing.T, s string) shop.Clock {
	t.Helper()
	c, err := shop.ParseClock(s)
	require.NoError(t, err)
	return c
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store, err := records.NewSQLStore(conn)
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))

	h := &harness{
		conn:     conn,
		store:    store,
		states:   conversation.NewMemoryStore(conversation.DefaultTTL),
		replier:  &fakeReplier{},
		notifier: &fakeNotifier{},
		shop: &shop.Config{
			ID:                  "@221uygiy",
			Name:                "Hanabun",
			ChannelAccessToken:  "token",
			PhoneNumber:         "055-993-1187",
			MinArrangementPrice: 5500,
			Location:            jst,
			WorkingHours: map[time.Weekday]shop.Hours{
				time.Monday:    {Open: clock(t, "09:00"), Close: clock(t, "18:00")},
				time.Tuesday:   {Open: clock(t, "09:00"), Close: clock(t, "18:00")},
				time.Wednesday: {Open: clock(t, "09:00"), Close: clock(t, "18:00")},
				time.Friday:    {Open: clock(t, "09:00"), Close: clock(t, "18:00")},
				time.Saturday:  {Open: clock(t, "10:00"), Close: clock(t, "17:00")},
			},
		},
	}
	h.engine, err = NewEngine(h.store, h.states, h.replier, h.notifier)
	require.NoError(t, err)
	h.engine.now = func() time.Time { return time.Date(2025, 3, 10, 10, 17, 42, 0, jst) }
	return h
}

func (h *harness) send(t *testing.T, ev Event) {
	t.Helper()
	if ev.UserID == "" {
		ev.UserID = "U1"
	}
	if ev.ReplyToken == "" {
		ev.ReplyToken = "reply-token"
	}
	require.NoError(t, h.engine.Handle(context.Background(), h.shop, ev))
}

func text(s string) Event { return Event{Kind: KindText, Text: s} }

func pickDate(datetime string) Event {
	return Event{
		Kind:           KindPostback,
		PostbackData:   postback.Encode(postback.ActionSelectDate, "U1", ""),
		PostbackParams: map[string]string{"datetime": datetime},
	}
}

func choose(action postback.Action, value string) Event {
	return Event{Kind: KindPostback, PostbackData: postback.Encode(action, "U1", value)}
}

// flexTexts collects every text node of a flex component tree.
func flexTexts(c line.FlexComponent) []string {
	var out []string
	if c.Text != "" {
		out = append(out, c.Text)
	}
	for _, child := range c.Contents {
		out = append(out, flexTexts(child)...)
	}
	return out
}

func (h *harness) stage(t *testing.T) (conversation.Stage, bool) {
	t.Helper()
	st, ok, err := h.states.Get(context.Background(), "U1")
	require.NoError(t, err)
	if !ok {
		return "", false
	}
	return st.Stage, true
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	h := newHarness(t)
	_, err := NewEngine(nil, h.states, h.replier, h.notifier)
	assert.Error(t, err)
	_, err = NewEngine(h.store, nil, h.replier, h.notifier)
	assert.Error(t, err)
	_, err = NewEngine(h.store, h.states, nil, h.notifier)
	assert.Error(t, err)
	_, err = NewEngine(h.store, h.states, h.replier, nil)
	assert.Error(t, err)
}

func TestIsTrigger(t *testing.T) {
	assert.True(t, IsTrigger("hello"))
	assert.True(t, IsTrigger("HeLLo "))
	assert.True(t, IsTrigger("予約"))
	assert.False(t, IsTrigger("hello there"))
	assert.False(t, IsTrigger("予約したい"))
}

func TestTriggerRepliesWithPicker(t *testing.T) {
	h := newHarness(t)
	h.send(t, text("Hello"))

	r := h.replier.last(t)
	assert.Equal(t, "reply-token", r.token)
	require.Len(t, r.msgs, 2)
	assert.Contains(t, r.msgs[0].Text, "055-993-1187")

	picker := r.msgs[1].Template.Actions[0]
	assert.Equal(t, "2025-03-10t13:17", picker.Min)
	assert.Equal(t, "2025-03-10t13:17", picker.Initial)
	assert.Equal(t, "2025-09-10t10:17", picker.Max)

	st, ok := h.stage(t)
	assert.True(t, ok)
	assert.Equal(t, conversation.StageIdle, st)
}

func TestFullOrderFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.send(t, text("hello"))
	h.send(t, pickDate("2025-03-11t14:00"))

	rec, err := h.store.FindActiveRecord(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "@221uygiy", rec.ShopID)
	assert.Equal(t, "Hanabun", rec.ShopName)
	assert.True(t, time.Date(2025, 3, 11, 14, 0, 0, 0, jst).Equal(rec.Date))
	assert.Equal(t, messages.ItemMenu("U1"), h.replier.last(t).msgs[0])

	h.send(t, choose(postback.ActionItemSelect, messages.TagBouquet))
	h.send(t, choose(postback.ActionPurposeSelect, "birthday-birthday"))
	h.send(t, choose(postback.ActionColorSelect, "赤系-red"))

	st, _ := h.stage(t)
	assert.Equal(t, conversation.StageAwaitingBudget, st)
	assert.Equal(t, messages.BudgetPrompt(messages.TagBouquet, 5500), h.replier.last(t).msgs[0])

	h.send(t, text("５０００"))
	st, _ = h.stage(t)
	assert.Equal(t, conversation.StageAwaitingName, st)

	h.send(t, text("山田"))
	st, _ = h.stage(t)
	assert.Equal(t, conversation.StageAwaitingPhoneNumber, st)
	assert.Contains(t, h.replier.last(t).msgs[0].Text, "山田")

	before, err := h.store.FindActiveRecord(ctx, "U1")
	require.NoError(t, err)

	h.send(t, text("090-0000-0000"))

	_, err = h.store.FindActiveRecord(ctx, "U1")
	assert.ErrorIs(t, err, records.ErrNoActiveRecord)

	summary, err := h.store.ReadSummary(ctx, before.ID, jst)
	require.NoError(t, err)
	assert.Equal(t, "5000", summary.Budget)
	assert.Equal(t, "山田", summary.CustomerName)
	assert.Equal(t, "090-0000-0000", summary.PhoneNumber)
	assert.Equal(t, "赤系-red", summary.Color)
	assert.Equal(t, "birthday-birthday", summary.Purpose)
	assert.NotEmpty(t, summary.HumanPlacedAt)

	_, ok := h.stage(t)
	assert.False(t, ok, "conversation state is removed at the terminal step")

	final := h.replier.last(t)
	require.Len(t, final.msgs, 2)
	assert.Equal(t, "flex", final.msgs[0].Type)
	require.NotNil(t, final.msgs[0].Contents)
	require.NotNil(t, final.msgs[0].Contents.Body)
	texts := flexTexts(*final.msgs[0].Contents.Body)
	for _, want := range []string{
		"2025/03/11 14:00",
		"花束",
		"birthday",
		"赤系",
		"¥5000",
		"山田様",
		"090-0000-0000",
		before.OrderNum,
	} {
		assert.Contains(t, texts, want)
	}
	assert.Equal(t, messages.Render(messages.FinalThankYou, nil), final.msgs[1].Text)

	require.Len(t, h.notifier.summaries, 1)
	assert.Equal(t, before.OrderNum, h.notifier.summaries[0].OrderNum)
}

func TestArrangementBudgetPromptShowsMinimum(t *testing.T) {
	h := newHarness(t)
	h.send(t, text("hello"))
	h.send(t, pickDate("2025-03-11t14:00"))
	h.send(t, choose(postback.ActionItemSelect, messages.TagArrangement))
	h.send(t, choose(postback.ActionPurposeSelect, "home-use"))
	h.send(t, choose(postback.ActionColorSelect, "mix"))

	assert.Equal(t, messages.BudgetPrompt(messages.TagArrangement, 5500), h.replier.last(t).msgs[0])
}

func TestClosedDayRepliesWithSchedule(t *testing.T) {
	h := newHarness(t)
	h.send(t, text("hello"))
	// 2025-03-13 is a Thursday.
	h.send(t, pickDate("2025-03-13t12:00"))

	assert.Equal(t, messages.Schedule(h.shop), h.replier.last(t).msgs[0])

	_, err := h.store.FindActiveRecord(context.Background(), "U1")
	assert.ErrorIs(t, err, records.ErrNoActiveRecord)

	st, _ := h.stage(t)
	assert.Equal(t, conversation.StageIdle, st)
}

func TestOutsideHoursBoundariesAreInside(t *testing.T) {
	h := newHarness(t)
	h.send(t, pickDate("2025-03-11t18:00"))
	_, err := h.store.FindActiveRecord(context.Background(), "U1")
	assert.NoError(t, err)

	h2 := newHarness(t)
	h2.send(t, pickDate("2025-03-11t18:01"))
	_, err = h2.store.FindActiveRecord(context.Background(), "U1")
	assert.ErrorIs(t, err, records.ErrNoActiveRecord)
}

func TestRestartKeepsOneActiveRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.send(t, text("hello"))
	h.send(t, pickDate("2025-03-11t14:00"))
	h.send(t, choose(postback.ActionItemSelect, messages.TagBouquet))
	h.send(t, choose(postback.ActionPurposeSelect, "offering"))
	h.send(t, choose(postback.ActionColorSelect, "white"))

	first, err := h.store.FindActiveRecord(ctx, "U1")
	require.NoError(t, err)

	h.send(t, text("予約"))
	st, _ := h.stage(t)
	assert.Equal(t, conversation.StageIdle, st)

	h.send(t, pickDate("2025-03-12t10:30"))
	again, err := h.store.FindActiveRecord(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, time.Date(2025, 3, 12, 10, 30, 0, 0, jst).Equal(again.Date))

	var count int
	require.NoError(t, h.conn.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM order_records WHERE user_id = ? AND status = ?`, "U1", models.StatusNotComplete))
	assert.Equal(t, 1, count)
}

func TestSessionLostWhenNoActiveRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Stage survives, record does not.
	st := conversation.NewState("U1")
	require.NoError(t, st.Fire(ctx, conversation.EventColorSelected))
	require.NoError(t, h.states.Save(ctx, st))

	h.send(t, text("5000"))

	r := h.replier.last(t)
	require.Len(t, r.msgs, 1)
	assert.Equal(t, messages.Render(messages.SessionLost, nil), r.msgs[0].Text)

	stage, _ := h.stage(t)
	assert.Equal(t, conversation.StageIdle, stage)
}

func TestSessionLostOnMenuPostback(t *testing.T) {
	h := newHarness(t)
	h.send(t, choose(postback.ActionPurposeSelect, "birthday"))
	assert.Equal(t, messages.Render(messages.SessionLost, nil), h.replier.last(t).msgs[0].Text)
}

func TestUnmatchedEventsAreDropped(t *testing.T) {
	h := newHarness(t)

	h.send(t, text("just chatting"))
	h.send(t, Event{Kind: KindPostback, PostbackData: "action=somethingElse&userId=U1"})
	h.send(t, Event{Kind: KindOther})
	h.send(t, pickDate(""))

	assert.Empty(t, h.replier.replies)
}

func TestFirstEventCreatesState(t *testing.T) {
	h := newHarness(t)
	_, ok := h.stage(t)
	require.False(t, ok)

	// A follow or sticker event is not part of the flow but still registers the user.
	h.send(t, Event{Kind: KindOther})

	st, ok := h.stage(t)
	assert.True(t, ok)
	assert.Equal(t, conversation.StageIdle, st)
	assert.Empty(t, h.replier.replies)
}

func TestNoReplyTokenStillAdvances(t *testing.T) {
	h := newHarness(t)
	ev := pickDate("2025-03-11t14:00")
	ev.UserID = "U1"
	require.NoError(t, h.engine.Handle(context.Background(), h.shop, ev))

	assert.Empty(t, h.replier.replies)
	_, err := h.store.FindActiveRecord(context.Background(), "U1")
	assert.NoError(t, err)
}

func TestReplyFailureStillCompletesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.send(t, pickDate("2025-03-11t14:00"))
	h.send(t, choose(postback.ActionItemSelect, messages.TagBouquet))
	h.send(t, choose(postback.ActionPurposeSelect, "birthday"))
	h.send(t, choose(postback.ActionColorSelect, "red"))
	h.send(t, text("3000"))
	h.send(t, text("佐藤"))

	h.replier.err = errors.New("line down")
	err := h.engine.Handle(ctx, h.shop, Event{Kind: KindText, UserID: "U1", ReplyToken: "t", Text: "０９０１２３４５６７８"})
	assert.Error(t, err)

	_, err = h.store.FindActiveRecord(ctx, "U1")
	assert.ErrorIs(t, err, records.ErrNoActiveRecord)
	require.Len(t, h.notifier.summaries, 1)
	assert.Equal(t, "09012345678", h.notifier.summaries[0].PhoneNumber)
}

// stageRecorder keeps every stage saved through it.
type stageRecorder struct {
	*conversation.MemoryStore
	saved []conversation.Stage
}

func (r *stageRecorder) Save(ctx context.Context, st *conversation.State) error {
	r.saved = append(r.saved, st.Stage)
	return r.MemoryStore.Save(ctx, st)
}

func TestPhoneStepReturnsToIdleBeforeDelete(t *testing.T) {
	h := newHarness(t)
	rec := &stageRecorder{MemoryStore: h.states}
	engine, err := NewEngine(h.store, rec, h.replier, h.notifier)
	require.NoError(t, err)
	engine.now = h.engine.now
	h.engine = engine

	h.send(t, pickDate("2025-03-11t14:00"))
	h.send(t, choose(postback.ActionItemSelect, messages.TagBouquet))
	h.send(t, choose(postback.ActionPurposeSelect, "birthday"))
	h.send(t, choose(postback.ActionColorSelect, "red"))
	h.send(t, text("3000"))
	h.send(t, text("佐藤"))
	h.send(t, text("090-1111-2222"))

	require.NotEmpty(t, rec.saved)
	assert.Equal(t, []conversation.Stage{
		conversation.StageAwaitingBudget,
		conversation.StageAwaitingName,
		conversation.StageAwaitingPhoneNumber,
		conversation.StageIdle,
	}, rec.saved[len(rec.saved)-4:])

	_, ok := h.stage(t)
	assert.False(t, ok)
}

func TestFromLINE(t *testing.T) {
	ev := FromLINE(line.Event{
		Type:       "message",
		ReplyToken: "r",
		Source:     line.Source{Type: "user", UserID: "U1"},
		Message:    &line.EventMessage{Type: "text", Text: "hello"},
	})
	assert.Equal(t, Event{Kind: KindText, UserID: "U1", ReplyToken: "r", Text: "hello"}, ev)

	ev = FromLINE(line.Event{
		Type:     "postback",
		Source:   line.Source{UserID: "U1"},
		Postback: &line.Postback{Data: "action=selectDate&userId=U1", Params: map[string]string{"datetime": "2025-03-11T14:00"}},
	})
	assert.Equal(t, KindPostback, ev.Kind)
	assert.Equal(t, "2025-03-11T14:00", ev.PostbackParams["datetime"])

	ev = FromLINE(line.Event{Type: "message", Source: line.Source{UserID: "U1"}, Message: &line.EventMessage{Type: "sticker"}})
	assert.Equal(t, KindOther, ev.Kind)
}
