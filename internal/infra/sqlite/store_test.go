package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/finance-dashboard-bfa/internal/domain"
	"github.com/boddenberg/finance-dashboard-bfa/internal/infra/sqlite"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "data", "dashboard.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insert(t *testing.T, store *sqlite.Store, userID string, typ domain.RecordType, amount string, date time.Time, categoryID string) string {
	t.Helper()
	id, err := store.InsertRecord(context.Background(), domain.Record{
		UserID: userID,
		Amount: decimal.RequireFromString(amount),
		Date:   date,
		Type:   typ,
	}, categoryID)
	require.NoError(t, err)
	return id
}

func TestOpen_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.db")

	first, err := sqlite.Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sqlite.Open(path, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	assert.NoError(t, second.Ping(context.Background()))
}

func TestSumAmount(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	insert(t, store, "u1", domain.RecordExpense, "0.10", now, "")
	insert(t, store, "u1", domain.RecordExpense, "0.20", now, "")
	insert(t, store, "u1", domain.RecordIncome, "1000", now, "")
	insert(t, store, "u2", domain.RecordExpense, "99", now, "")

	total, err := store.SumAmount(ctx, "u1", domain.RecordExpense)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.30")), "got %s", total)

	income, err := store.SumAmount(ctx, "u1", domain.RecordIncome)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), income.IntPart())

	empty, err := store.SumAmount(ctx, "nobody", domain.RecordIncome)
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestFindInWindow(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	since := now.Add(-30 * 24 * time.Hour)

	catID, err := store.InsertCategory(ctx, "u1", domain.Category{Name: "Food", Icon: "🍔", Type: "expense"})
	require.NoError(t, err)

	insert(t, store, "u1", domain.RecordExpense, "10", since, catID)
	insert(t, store, "u1", domain.RecordExpense, "20", since.Add(-time.Nanosecond), catID)
	insert(t, store, "u1", domain.RecordExpense, "30", now.Add(-time.Hour), "")

	records, err := store.FindInWindow(ctx, "u1", domain.RecordExpense, since)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "30", records[0].Amount.String())
	assert.Nil(t, records[0].Category)
	assert.Equal(t, domain.DefaultCategoryLabel, records[0].CategoryName())

	assert.Equal(t, "10", records[1].Amount.String())
	require.NotNil(t, records[1].Category)
	assert.Equal(t, "Food", records[1].Category.Name)
	assert.True(t, records[1].Date.Equal(since))
	assert.Equal(t, domain.RecordExpense, records[1].Type)
}

func TestFindRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		insert(t, store, "u1", domain.RecordIncome, "1", now.Add(-time.Duration(i)*time.Hour), "")
	}

	records, err := store.FindRecent(ctx, "u1", domain.RecordIncome, 5)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].Date.After(records[i-1].Date), "records not newest first at %d", i)
	}
	assert.True(t, records[0].Date.Equal(now))

	none, err := store.FindRecent(ctx, "u1", domain.RecordExpense, 5)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestInsertRecord_UnknownType(t *testing.T) {
	store := openStore(t)

	_, err := store.InsertRecord(context.Background(), domain.Record{UserID: "u1", Amount: decimal.NewFromInt(1), Date: now}, "")

	var validation *domain.ErrValidation
	assert.ErrorAs(t, err, &validation)
}
