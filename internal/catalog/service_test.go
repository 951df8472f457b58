package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catsync/internal/eventlog"
)

const testStream = "catalog"

func newTestService(t *testing.T) (*Service, *eventlog.MemoryLog) {
	t.Helper()
	log := eventlog.NewMemoryLog()
	return NewService(NewMemoryStore(), log, testStream), log
}

// drainEvents reads every appended envelope from the start of the stream.
func drainEvents(t *testing.T, log *eventlog.MemoryLog) []map[string]json.RawMessage {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, log.CreateGroup(ctx, testStream, "inspect", eventlog.StartBeginning))
	defer log.DestroyGroup(ctx, testStream, "inspect")

	entries, err := log.ReadNew(ctx, testStream, "inspect", "c", 100, 0)
	require.NoError(t, err)

	var out []map[string]json.RawMessage
	for _, e := range entries {
		var env map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(e.Payload, &env))
		out = append(out, env)
	}
	return out
}

func eventType(t *testing.T, env map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	require.NoError(t, json.Unmarshal(env["type"], &typ))
	return typ
}

func TestServiceCreateEmitsEvent(t *testing.T) {
	svc, log := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, ProductInput{SKU: "A-1", Name: "Widget", Price: "19.99", Stock: 3, Category: "tools"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)
	assert.NotZero(t, p.CreatedAt)

	events := drainEvents(t, log)
	require.Len(t, events, 1)
	assert.Equal(t, EventCreated, eventType(t, events[0]))

	var data Product
	require.NoError(t, json.Unmarshal(events[0]["data"], &data))
	assert.Equal(t, "A-1", data.SKU)
	assert.Equal(t, "19.99", data.Price)
}

func TestServiceCreateValidation(t *testing.T) {
	svc, log := newTestService(t)
	ctx := context.Background()

	cases := []ProductInput{
		{Name: "no sku", Price: "1.00"},
		{SKU: "A-1", Price: "1.00"},
		{SKU: "A-1", Name: "bad price", Price: "1,00"},
		{SKU: "A-1", Name: "bad price", Price: "1.999"},
		{SKU: "A-1", Name: "negative", Price: "1.00", Stock: -1},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, in)
		assert.Error(t, err, "input %+v should be rejected", in)
	}
	assert.Empty(t, drainEvents(t, log), "rejected inputs must not emit events")
}

func TestServiceCreateDuplicate(t *testing.T) {
	svc, log := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductInput{SKU: "A-1", Name: "Widget", Price: "19.99"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, ProductInput{SKU: "A-1", Name: "Widget", Price: "19.99"})
	assert.ErrorIs(t, err, ErrExists)

	assert.Len(t, drainEvents(t, log), 1, "failed create must not emit")
}

func TestServiceUpdateEmitsEvent(t *testing.T) {
	svc, log := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductInput{SKU: "A-1", Name: "Widget", Price: "19.99"})
	require.NoError(t, err)

	price := "24.99"
	p, err := svc.Update(ctx, "A-1", UpdateInput{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "24.99", p.Price)
	assert.Equal(t, int64(2), p.Version)

	events := drainEvents(t, log)
	require.Len(t, events, 2)
	assert.Equal(t, EventUpdated, eventType(t, events[1]))
}

func TestServiceUpdateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "A-1", UpdateInput{})
	assert.Error(t, err, "empty update is rejected")

	bad := "not-a-price"
	_, err = svc.Update(ctx, "A-1", UpdateInput{Price: &bad})
	assert.Error(t, err)

	name := "Widget"
	_, err = svc.Update(ctx, "missing", UpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteRestoreLifecycle(t *testing.T) {
	svc, log := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductInput{SKU: "A-1", Name: "Widget", Price: "19.99"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "A-1"))

	_, err = svc.Get(ctx, "A-1")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := svc.Restore(ctx, "A-1")
	require.NoError(t, err)
	assert.False(t, p.Deleted)

	events := drainEvents(t, log)
	require.Len(t, events, 3)
	assert.Equal(t, EventCreated, eventType(t, events[0]))
	assert.Equal(t, EventDeleted, eventType(t, events[1]))
	assert.Equal(t, EventRestored, eventType(t, events[2]))
}

func TestServiceImport(t *testing.T) {
	svc, log := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductInput{SKU: "A-1", Name: "Old", Price: "10.00"})
	require.NoError(t, err)

	result, err := svc.Import(ctx, []ProductInput{
		{SKU: "A-1", Name: "New", Price: "12.00", Stock: 4},
		{SKU: "B-2", Name: "Fresh", Price: "5.50"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, []string{"A-1", "B-2"}, result.SKUs)

	got, err := svc.Get(ctx, "A-1")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, "12.00", got.Price)

	// One summary event for the whole batch, after the create event.
	events := drainEvents(t, log)
	require.Len(t, events, 2)
	assert.Equal(t, EventImported, eventType(t, events[1]))

	var summary ImportResult
	require.NoError(t, json.Unmarshal(events[1]["data"], &summary))
	assert.Equal(t, 2, len(summary.SKUs))
}

func TestServiceImportValidatesBeforeWriting(t *testing.T) {
	svc, log := newTestService(t)
	ctx := context.Background()

	_, err := svc.Import(ctx, []ProductInput{
		{SKU: "A-1", Name: "OK", Price: "1.00"},
		{SKU: "B-2", Name: "", Price: "1.00"},
	})
	require.Error(t, err)

	// The invalid batch must not have written anything.
	all, err := svc.List(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, drainEvents(t, log))
}
