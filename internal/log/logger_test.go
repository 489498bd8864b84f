package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	buf.Reset()
	return rec
}

func TestComponentAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentBudget})

	l.Info("plain")
	rec := decode(t, &buf)
	assert.Equal(t, ComponentBudget, rec[FieldComponent])
	assert.NotContains(t, rec, FieldRequestID)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.With(FieldMonth, "2024-03").WithComponent(ComponentHTTP).InfoContext(ctx, "tagged")
	rec = decode(t, &buf)
	assert.Equal(t, ComponentHTTP, rec[FieldComponent])
	assert.Equal(t, "req-1", rec[FieldRequestID])
	assert.Equal(t, "2024-03", rec[FieldMonth])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestFields(t *testing.T) {
	args := Attrs().Op(OpAssign).Assignment("2024-03", 7, 2500).Err(nil).Args()
	assert.Equal(t, []any{FieldOperation, OpAssign, FieldMonth, "2024-03", FieldCategoryID, int64(7), FieldAmountCents, int64(2500)}, args)

	args = Attrs().Err(errors.New("boom")).Args()
	assert.Equal(t, []any{FieldError, "boom"}, args)
}

func TestHTTPCompletedLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})
	r := httptest.NewRequest("GET", "/budget?month=2024-03", nil)

	HTTPCompleted(context.Background(), l, r, 502, 12*time.Millisecond, "10.0.0.1")
	rec := decode(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "/budget", rec[FieldPath])
	assert.Equal(t, "month=2024-03", rec[FieldQuery])
	assert.EqualValues(t, 12, rec[FieldDuration])

	assert.Equal(t, slog.LevelWarn, StatusLevel(404))
	assert.Equal(t, slog.LevelInfo, StatusLevel(204))
}
