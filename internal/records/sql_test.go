package records

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-order-intake/internal/db"
	"line-order-intake/internal/models"
)

var jst = time.FixedZone("JST", 9*60*60)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store, err := NewSQLStore(conn)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestSQLStoreCreateAndFind(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	_, err := store.FindActiveRecord(ctx, "U1")
	assert.ErrorIs(t, err, ErrNoActiveRecord)

	pickup := time.Date(2025, 3, 10, 13, 0, 0, 0, jst)
	rec, err := store.CreateRecord(ctx, "U1", pickup, "@shop", "Hanabun")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotComplete, rec.Status)
	assert.Equal(t, "1", rec.OrderNum)
	assert.True(t, pickup.Equal(rec.Date))

	found, err := store.FindActiveRecord(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	assert.Equal(t, "Hanabun", found.ShopName)

	second, err := store.CreateRecord(ctx, "U2", pickup, "@shop", "Hanabun")
	require.NoError(t, err)
	assert.Equal(t, "2", second.OrderNum)
}

func TestSQLStoreUpdateFieldIsIdempotent(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	_, err := store.CreateRecord(ctx, "U1", time.Now(), "@shop", "Hanabun")
	require.NoError(t, err)

	first, err := store.UpdateField(ctx, "U1", models.FieldColor, "赤系-red")
	require.NoError(t, err)
	second, err := store.UpdateField(ctx, "U1", models.FieldColor, "赤系-red")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "赤系-red", second.Color)
}

func TestSQLStoreUpdateFieldWithoutActiveRecord(t *testing.T) {
	store := newSQLStore(t)

	_, err := store.UpdateField(context.Background(), "nobody", models.FieldBudget, "5000")
	assert.ErrorIs(t, err, ErrNoActiveRecord)
}

func TestSQLStoreRejectsFixedFields(t *testing.T) {
	store := newSQLStore(t)

	_, err := store.UpdateField(context.Background(), "U1", models.FieldUserID, "U2")
	assert.ErrorIs(t, err, ErrFieldNotWritable)
	_, err = store.UpdateField(context.Background(), "U1", models.Field("id = id; --"), "x")
	assert.ErrorIs(t, err, ErrFieldNotWritable)
}

func TestSQLStoreCompletedRecordIsNoLongerActive(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	rec, err := store.CreateRecord(ctx, "U1", time.Now(), "@shop", "Hanabun")
	require.NoError(t, err)
	_, err = store.UpdateField(ctx, "U1", models.FieldStatus, models.StatusComplete)
	require.NoError(t, err)

	_, err = store.FindActiveRecord(ctx, "U1")
	assert.ErrorIs(t, err, ErrNoActiveRecord)

	// The completed record is still readable by id.
	summary, err := store.ReadSummary(ctx, rec.ID, jst)
	require.NoError(t, err)
	assert.Equal(t, rec.OrderNum, summary.OrderNum)
}

func TestSQLStoreReadSummary(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	pickup := time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)
	rec, err := store.CreateRecord(ctx, "U1", pickup, "@shop", "Hanabun")
	require.NoError(t, err)

	updates := map[models.Field]string{
		models.FieldItemType:     "花束-bouquet",
		models.FieldPurpose:      "誕生日-birthday",
		models.FieldColor:        "赤系-red",
		models.FieldBudget:       "5000",
		models.FieldCustomerName: "山田",
		models.FieldPhoneNumber:  "090-0000-0000",
		models.FieldUpdatedTime:  FormatTime(time.Date(2025, 3, 2, 3, 4, 0, 0, time.UTC)),
	}
	for f, v := range updates {
		_, err := store.UpdateField(ctx, "U1", f, v)
		require.NoError(t, err, f)
	}

	s, err := store.ReadSummary(ctx, rec.ID, jst)
	require.NoError(t, err)
	assert.Equal(t, &models.OrderSummary{
		CustomerName:   "山田",
		PhoneNumber:    "090-0000-0000",
		Purpose:        "誕生日-birthday",
		Budget:         "5000",
		Color:          "赤系-red",
		ItemType:       "花束-bouquet",
		OrderNum:       "1",
		HumanDate:      "2025/03/10 13:00",
		HumanCreatedAt: "2025/03/01 09:00",
		HumanPlacedAt:  "2025/03/02 12:04",
	}, s)

	_, err = store.ReadSummary(ctx, "missing", jst)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSQLStoreRejectsBadDate(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	_, err := store.CreateRecord(ctx, "U1", time.Now(), "@shop", "Hanabun")
	require.NoError(t, err)

	_, err = store.UpdateField(ctx, "U1", models.FieldUpdatedTime, "yesterday")
	assert.Error(t, err)
}

func TestSQLStoreCreateRetriesOnOrderNumberConflict(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	calls := 0
	store.exec = func(ctx context.Context, query string, args ...any) (sql.Result, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("exec: %w", &pq.Error{Code: pqUniqueViolation})
		}
		return store.db.ExecContext(ctx, query, args...)
	}

	rec, err := store.CreateRecord(ctx, "U1", time.Now(), "@shop", "Hanabun")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "1", rec.OrderNum)
}

func TestSQLStoreCreateGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := newSQLStore(t)
	calls := 0
	store.exec = func(context.Context, string, ...any) (sql.Result, error) {
		calls++
		return nil, &pq.Error{Code: pqUniqueViolation}
	}

	_, err := store.CreateRecord(context.Background(), "U1", time.Now(), "@shop", "Hanabun")
	assert.Error(t, err)
	assert.Equal(t, maxCreateAttempts, calls)
}

func TestSQLStoreCreateDoesNotRetryOtherErrors(t *testing.T) {
	store := newSQLStore(t)
	calls := 0
	store.exec = func(context.Context, string, ...any) (sql.Result, error) {
		calls++
		return nil, &pq.Error{Code: "23502"}
	}

	_, err := store.CreateRecord(context.Background(), "U1", time.Now(), "@shop", "Hanabun")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsUniqueViolation(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	rec, err := store.CreateRecord(ctx, "U1", time.Now(), "@shop", "Hanabun")
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx,
		`INSERT INTO order_records (id, user_id, order_num) VALUES (?, ?, ?)`, "other-id", "U2", rec.OrderNum)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: pqUniqueViolation})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "40001"}))
	assert.False(t, isUniqueViolation(sql.ErrNoRows))
}

func TestSQLStoreConcurrentCreatesGetDistinctOrderNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	ctx := context.Background()

	// Two pools on one file, so inserts really contend.
	var stores []*SQLStore
	for i := 0; i < 2; i++ {
		conn, err := db.Open(db.DriverSQLite, path)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		store, err := NewSQLStore(conn)
		require.NoError(t, err)
		require.NoError(t, store.Init(ctx))
		stores = append(stores, store)
	}

	const n = 20
	nums := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := stores[i%2].CreateRecord(ctx, fmt.Sprintf("U%d", i), time.Now(), "@shop", "Hanabun")
			errs[i] = err
			if err == nil {
				nums[i] = rec.OrderNum
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[nums[i]], "order number %s issued twice", nums[i])
		seen[nums[i]] = true
	}
	assert.Len(t, seen, n)
}
