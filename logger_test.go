package emoteline

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_SilentByDefault(t *testing.T) {
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}

func TestLogger_ReportsAttempts(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	_, err := (&BudgetedEncoder{}).Encode(solidAnimation(1, 8, 40))
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "gif attempt")
	assert.Contains(t, buf.String(), "step=")

	SetLogger(nil)
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}
