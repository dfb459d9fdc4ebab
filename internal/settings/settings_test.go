package settings

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/database/dbtest"
)

func fixedCalendar(t *testing.T, zone string, now time.Time) *Calendar {
	cal := NewCalendar(dbtest.Open(t), zone)
	cal.now = func() time.Time { return now }
	return cal
}

func TestCalendar_TodayUsesDefaultZone(t *testing.T) {
	// 20:00 UTC is already the next day in India.
	now := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)
	cal := fixedCalendar(t, "IST", now)

	assert.Equal(t, "2026-03-10", cal.Today(context.Background()))
}

func TestCalendar_StoredSettingWins(t *testing.T) {
	now := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)
	cal := fixedCalendar(t, "Asia/Kolkata", now)
	require.NoError(t, cal.db.Create(&database.SystemSetting{SettingName: TimezoneKey, SettingValue: "PST"}).Error)

	assert.Equal(t, "2026-03-09", cal.Today(context.Background()))
}

func TestCalendar_InvalidStoredSettingFallsBack(t *testing.T) {
	now := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)
	cal := fixedCalendar(t, "Asia/Kolkata", now)
	require.NoError(t, cal.db.Create(&database.SystemSetting{SettingName: TimezoneKey, SettingValue: "Mars/Base"}).Error)

	assert.Equal(t, "2026-03-10", cal.Today(context.Background()))
}

func TestLoadZone(t *testing.T) {
	loc, err := LoadZone("ist")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	_, err = LoadZone("")
	assert.Error(t, err)
}

func TestHandler_Update(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	h := NewHandler(db)
	r := gin.New()
	r.PUT("/api/settings/:name", h.Update)
	r.GET("/api/settings", h.List)

	put := func(name, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/settings/"+name, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusBadRequest, put("timezone", `{"value":"Nowhere/Land"}`).Code)
	assert.Equal(t, http.StatusOK, put("timezone", `{"value":"UTC"}`).Code)
	assert.Equal(t, http.StatusOK, put("timezone", `{"value":"CET"}`).Code)

	var stored database.SystemSetting
	require.NoError(t, db.Where("setting_name = ?", "timezone").Take(&stored).Error)
	assert.Equal(t, "CET", stored.SettingValue)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"setting_value":"CET"`)
}
