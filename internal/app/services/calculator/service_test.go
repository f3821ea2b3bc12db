package calculator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/calc"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage/memory"
	"github.com/Razlynski/calculator-mvc-isaac/pkg/logger"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.New()
	return New(store, store, logger.NewDefault("test")), store
}

func digit(d int) calc.Event {
	return calc.Event{Kind: calc.EventDigit, Digit: d}
}

func operator(op calc.Operator) calc.Event {
	return calc.Event{Kind: calc.EventOperator, Operator: op}
}

func equals() calc.Event {
	return calc.Event{Kind: calc.EventEquals}
}

// =============================================================================
// Open / Get / Close Tests
// =============================================================================

func TestOpenCreatesFreshWindow(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.Open(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, w.ID)

	assert.Equal(t, calc.NewState(), w.State)
	assert.False(t, w.CreatedAt.IsZero())

	got, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)
}

func TestGetUnknownWindow(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrWindowNotFound)
}

func TestCloseKeepsHistory(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	w, err := svc.Open(ctx)
	require.NoError(t, err)

	for _, ev := range []calc.Event{digit(8), operator(calc.OpAdd), digit(1), equals()} {
		_, _, err := svc.Press(ctx, w.ID, ev)
		require.NoError(t, err)
	}

	require.NoError(t, svc.Close(ctx, w.ID))

	_, err = svc.Get(ctx, w.ID)
	assert.ErrorIs(t, err, storage.ErrWindowNotFound)

	records, err := store.ListRecordsByWindow(ctx, w.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "8 + 1", records[0].Expression)
	assert.Equal(t, float64(9), records[0].Result)
}

// =============================================================================
// Press Tests
// =============================================================================

func TestPressDigitsAccumulate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.Open(ctx)
	require.NoError(t, err)

	w, rec, err := svc.Press(ctx, w.ID, digit(1))
	require.NoError(t, err)
	assert.Nil(t, rec)

	w, rec, err = svc.Press(ctx, w.ID, digit(2))
	require.NoError(t, err)
	assert.Nil(t, rec)

	assert.Equal(t, float64(12), w.State.Current)
	assert.Equal(t, "12", w.State.Expression)
}

func TestPressCompletesCalculation(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	w, err := svc.Open(ctx)
	require.NoError(t, err)

	for _, ev := range []calc.Event{digit(7), operator(calc.OpMultiply), digit(6)} {
		w, _, err = svc.Press(ctx, w.ID, ev)
		require.NoError(t, err)
	}

	w, rec, err := svc.Press(ctx, w.ID, equals())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "7 * 6", rec.Expression)
	assert.Equal(t, float64(42), rec.Result)
	assert.Equal(t, w.ID, rec.WindowID)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, float64(42), w.State.Current)

	records, err := store.ListRecordsByWindow(ctx, w.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
}

func TestPressUnknownWindow(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.Press(context.Background(), "missing", digit(1))
	assert.ErrorIs(t, err, storage.ErrWindowNotFound)
}

func TestPressDivisionByZeroPreservesState(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.Open(ctx)
	require.NoError(t, err)

	for _, ev := range []calc.Event{digit(5), operator(calc.OpDivide), digit(0)} {
		w, _, err = svc.Press(ctx, w.ID, ev)
		require.NoError(t, err)
	}

	got, rec, err := svc.Press(ctx, w.ID, equals())
	require.ErrorIs(t, err, calc.ErrDivisionByZero)
	assert.Nil(t, rec)

	// The returned window and the stored snapshot both keep the state
	// from before the failed evaluation.
	assert.Equal(t, float64(5), got.State.Stored)
	assert.Equal(t, calc.OpDivide, got.State.Pending)
	assert.Equal(t, "5 / 0", got.State.Expression)

	stored, err := svc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, got.State, stored.State)
}

func TestPressRejectsInvalidDigit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.Open(ctx)
	require.NoError(t, err)

	got, rec, err := svc.Press(ctx, w.ID, digit(12))
	require.ErrorIs(t, err, calc.ErrInvalidDigit)
	assert.Nil(t, rec)
	assert.Equal(t, calc.NewState(), got.State)
}

func TestPressClearResets(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	w, err := svc.Open(ctx)
	require.NoError(t, err)

	for _, ev := range []calc.Event{digit(9), operator(calc.OpAdd), digit(9)} {
		_, _, err = svc.Press(ctx, w.ID, ev)
		require.NoError(t, err)
	}

	w, _, err = svc.Press(ctx, w.ID, calc.Event{Kind: calc.EventClear})
	require.NoError(t, err)
	assert.Equal(t, calc.NewState(), w.State)
}
