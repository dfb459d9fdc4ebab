package sales

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/database/dbtest"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	svc := NewService(db, fixedCalendar("2026-05-02"))
	h := NewHandler(svc, activitylog.NewLogger(db))

	r := gin.New()
	r.GET("/api/daily-sales", h.List)
	r.GET("/api/daily-sales/today", h.Today)
	r.POST("/api/daily-sales/reset", h.Reset)
	r.GET("/api/sales-report", h.Report)
	r.GET("/api/sales-report/export", h.Export)
	return r, svc, db
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestHandler_Today(t *testing.T) {
	r, svc, db := newTestRouter(t)

	rr := serve(r, http.MethodGet, "/api/daily-sales/today")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"sale_date":"2026-05-02","total_orders":0,"total_revenue":0}`, rr.Body.String())

	require.NoError(t, svc.RecordServedOrder(db, "2026-05-02", dec("40")))
	rr = serve(r, http.MethodGet, "/api/daily-sales/today")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"sale_date":"2026-05-02","total_orders":1,"total_revenue":40}`, rr.Body.String())
}

func TestHandler_Reset_Audited(t *testing.T) {
	r, svc, db := newTestRouter(t)
	require.NoError(t, svc.RecordServedOrder(db, "2026-05-02", dec("40")))

	rr := serve(r, http.MethodPost, "/api/daily-sales/reset")
	require.Equal(t, http.StatusOK, rr.Code)

	row, err := svc.Day(context.Background(), "2026-05-02")
	require.NoError(t, err)
	assert.Equal(t, 0, row.TotalOrders)

	var entry database.ActivityLog
	require.NoError(t, db.Where("action = ?", "reset").Take(&entry).Error)
	assert.Equal(t, "daily_sales", entry.EntityType)
	assert.Contains(t, entry.Details, `"previous_orders":1`)
}

func TestHandler_Report(t *testing.T) {
	r, svc, db := newTestRouter(t)
	require.NoError(t, svc.RecordServedOrder(db, "2026-05-01", dec("40")))

	rr := serve(r, http.MethodGet, "/api/sales-report")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "startDate and endDate parameters are required")

	rr = serve(r, http.MethodGet, "/api/sales-report?startDate=2026-05-03&endDate=2026-05-01")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(r, http.MethodGet, "/api/sales-report?startDate=2026-05-01&endDate=2026-05-02")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		TotalRevenue float64 `json:"total_revenue"`
		TotalOrders  int     `json:"total_orders"`
		DailySales   []struct {
			Date    string  `json:"date"`
			Revenue float64 `json:"revenue"`
			Orders  int     `json:"orders"`
		} `json:"daily_sales"`
		TopItems []TopItem `json:"top_items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 40.0, body.TotalRevenue)
	assert.Equal(t, 1, body.TotalOrders)
	require.Len(t, body.DailySales, 1)
	assert.Equal(t, "2026-05-01", body.DailySales[0].Date)
	assert.Empty(t, body.TopItems)
}

func TestHandler_List_InvalidRange(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rr := serve(r, http.MethodGet, "/api/daily-sales?startDate=yesterday&endDate=2026-05-01")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(r, http.MethodGet, "/api/daily-sales")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestHandler_Export(t *testing.T) {
	r, svc, db := newTestRouter(t)
	require.NoError(t, svc.RecordServedOrder(db, "2026-05-01", dec("40")))

	rr := serve(r, http.MethodGet, "/api/sales-report/export?startDate=2026-05-01&endDate=2026-05-02")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "sales_2026-05-01_2026-05-02.xlsx")

	f, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Daily", "Top Items"}, f.GetSheetList())
	rows, err := f.GetRows("Daily")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2026-05-01", "1", "40"}, rows[1])
}

func TestBuildWorkbook_ColumnWidths(t *testing.T) {
	f, err := buildWorkbook(&Report{
		StartDate:    "2026-05-01",
		EndDate:      "2026-05-01",
		TotalRevenue: dec("40"),
		TotalOrders:  1,
		DailySales:   []DayTotal{{Date: "2026-05-01", Revenue: dec("40"), Orders: 1}},
		TopItems:     []TopItem{{ID: 1, Name: "Tea", Quantity: 2, Revenue: dec("40")}},
	})
	require.NoError(t, err)
	defer f.Close()

	for _, w := range columnWidths {
		got, err := f.GetColWidth(w.sheet, w.start)
		require.NoError(t, err)
		assert.Equal(t, w.width, got, w.sheet)
	}
	got, err := f.GetColWidth(dailySheet, "C")
	require.NoError(t, err)
	assert.Equal(t, 14.0, got)

	rows, err := f.GetRows(itemsSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tea", "2", "40"}, rows[1])
}
