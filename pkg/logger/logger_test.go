package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

// capture redirects the global logger into a buffer for the test.
func capture(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestMiddleware_LevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusInternalServerError, "error"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			buf := capture(t)
			r := gin.New()
			r.Use(Middleware())
			r.GET("/orders", func(c *gin.Context) { c.Status(tt.status) })

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders?status=ready", nil))

			entry := lastEntry(t, buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "/orders?status=ready", entry["path"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestGormLogger_Trace(t *testing.T) {
	sql := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("error", func(t *testing.T) {
		buf := capture(t)
		NewGormLogger().Trace(context.Background(), time.Now(), sql, errors.New("boom"))
		entry := lastEntry(t, buf)
		assert.Equal(t, "error", entry["level"])
		assert.Equal(t, "SELECT 1", entry["sql"])
	})

	t.Run("record not found is quiet", func(t *testing.T) {
		buf := capture(t)
		NewGormLogger().Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
		assert.Empty(t, buf.String())
	})

	t.Run("slow query", func(t *testing.T) {
		buf := capture(t)
		NewGormLogger().Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
		assert.Equal(t, "warn", lastEntry(t, buf)["level"])
	})

	t.Run("silent", func(t *testing.T) {
		buf := capture(t)
		NewGormLogger().LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("boom"))
		assert.Empty(t, buf.String())
	})
}
