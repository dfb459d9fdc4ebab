package menu

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/database/dbtest"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	h := NewHandler(db, activitylog.NewLogger(db))

	r := gin.New()
	r.GET("/api/menu", h.List)
	r.GET("/api/menu/all", h.ListAll)
	r.PUT("/api/menu/position", h.Reorder)
	r.GET("/api/menu/:id", h.Get)
	r.POST("/api/menu", h.Create)
	r.PUT("/api/menu/:id", h.Update)
	r.DELETE("/api/menu/:id", h.Delete)
	return r, db
}

func doJSON(r http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func seed(t *testing.T, db *gorm.DB, name, category string, position *int, available bool) database.MenuItem {
	item := database.MenuItem{
		Name: name, Price: decimal.NewFromInt(20), Category: category,
		IsAvailable: true, Position: position,
	}
	require.NoError(t, db.Create(&item).Error)
	if !available {
		require.NoError(t, db.Model(&item).Update("is_available", false).Error)
	}
	return item
}

func intPtr(i int) *int { return &i }

func names(t *testing.T, rr *httptest.ResponseRecorder) []string {
	var items []database.MenuItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestHandler_List_DisplayOrder(t *testing.T) {
	r, db := newTestRouter(t)
	seed(t, db, "Scone", "Bakery", nil, true)
	seed(t, db, "Latte", "Drinks", intPtr(1), true)
	seed(t, db, "Tea", "Drinks", intPtr(0), true)
	seed(t, db, "Bagel", "Bakery", nil, true)
	seed(t, db, "Soup", "Kitchen", intPtr(2), false)

	rr := doJSON(r, http.MethodGet, "/api/menu", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	if diff := cmp.Diff([]string{"Tea", "Latte", "Bagel", "Scone"}, names(t, rr)); diff != "" {
		t.Errorf("menu order mismatch (-want +got):\n%s", diff)
	}

	rr = doJSON(r, http.MethodGet, "/api/menu/all", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Tea", "Latte", "Soup", "Bagel", "Scone"}, names(t, rr))
}

func TestHandler_Create(t *testing.T) {
	r, db := newTestRouter(t)
	seed(t, db, "Tea", "Drinks", intPtr(4), true)

	rr := doJSON(r, http.MethodPost, "/api/menu", gin.H{"name": "Mocha", "price": 4.5, "category": "Drinks"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var item database.MenuItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	assert.True(t, item.IsAvailable)
	require.NotNil(t, item.Position)
	assert.Equal(t, 5, *item.Position)
	assert.Equal(t, "4.5", item.Price.String())

	rr = doJSON(r, http.MethodPost, "/api/menu", gin.H{"name": "Free", "price": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodPost, "/api/menu", gin.H{"price": 3})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Update(t *testing.T) {
	r, db := newTestRouter(t)
	tea := seed(t, db, "Tea", "Drinks", intPtr(0), true)

	rr := doJSON(r, http.MethodPut, "/api/menu/99", gin.H{"price": 1})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(r, http.MethodPut, "/api/menu/1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodPut, "/api/menu/1", gin.H{"price": 25, "is_available": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var stored database.MenuItem
	require.NoError(t, db.Take(&stored, tea.ID).Error)
	assert.Equal(t, "Tea", stored.Name)
	assert.True(t, decimal.NewFromInt(25).Equal(stored.Price))
	assert.False(t, stored.IsAvailable)
}

func TestHandler_Delete_RemovesLinks(t *testing.T) {
	r, db := newTestRouter(t)
	tea := seed(t, db, "Tea", "Drinks", nil, true)
	leaves := database.RawMaterial{Name: "Leaves", UnitType: "kg"}
	require.NoError(t, db.Create(&leaves).Error)
	require.NoError(t, db.Create(&database.DishRawMaterial{
		DishID: tea.ID, RawMaterialID: leaves.ID, QuantityRequired: decimal.RequireFromString("0.01"),
	}).Error)

	rr := doJSON(r, http.MethodDelete, "/api/menu/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var links int64
	require.NoError(t, db.Model(&database.DishRawMaterial{}).Count(&links).Error)
	assert.Zero(t, links)

	var entry database.ActivityLog
	require.NoError(t, db.Where("action = ? AND entity_type = ?", "delete", "menu_item").Take(&entry).Error)
	assert.Equal(t, "1", entry.EntityID)

	rr = doJSON(r, http.MethodDelete, "/api/menu/1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Reorder(t *testing.T) {
	r, db := newTestRouter(t)
	a := seed(t, db, "Tea", "Drinks", intPtr(0), true)
	b := seed(t, db, "Latte", "Drinks", intPtr(1), true)
	c := seed(t, db, "Scone", "Bakery", intPtr(2), true)

	rr := doJSON(r, http.MethodPut, "/api/menu/position", gin.H{"menuItems": []gin.H{
		{"id": c.ID}, {"id": a.ID}, {"id": b.ID},
	}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSON(r, http.MethodGet, "/api/menu", nil)
	assert.Equal(t, []string{"Scone", "Tea", "Latte"}, names(t, rr))

	rr = doJSON(r, http.MethodPut, "/api/menu/position", gin.H{"menuItems": []gin.H{
		{"id": a.ID, "position": 10}, {"id": 404, "position": 0},
	}})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var stored database.MenuItem
	require.NoError(t, db.Take(&stored, a.ID).Error)
	require.NotNil(t, stored.Position)
	assert.Equal(t, 1, *stored.Position)

	rr = doJSON(r, http.MethodPut, "/api/menu/position", gin.H{"menuItems": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Create_Defaults(t *testing.T) {
	r, db := newTestRouter(t)

	rr := doJSON(r, http.MethodPost, "/api/menu", gin.H{"name": "Tea", "price": 20})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var tea database.MenuItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tea))
	assert.Equal(t, 10, tea.LowStockThreshold)
	assert.Equal(t, "pcs", tea.UnitType)
	assert.True(t, tea.IsAvailable)

	var stored database.MenuItem
	require.NoError(t, db.Take(&stored, tea.ID).Error)
	assert.Equal(t, 10, stored.LowStockThreshold)
	assert.Equal(t, "pcs", stored.UnitType)

	rr = doJSON(r, http.MethodPost, "/api/menu", gin.H{
		"name": "Cake", "price": 50, "low_stock_threshold": 0, "unit_type": "slices",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var cake database.MenuItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cake))
	assert.Equal(t, 0, cake.LowStockThreshold)
	assert.Equal(t, "slices", cake.UnitType)

	rr = doJSON(r, http.MethodPost, "/api/menu", gin.H{"name": "Bun", "price": 10, "low_stock_threshold": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_Update_Audited(t *testing.T) {
	r, db := newTestRouter(t)
	tea := seed(t, db, "Tea", "Drinks", intPtr(0), true)

	rr := doJSON(r, http.MethodPut, "/api/menu/1", gin.H{"name": "Masala Tea", "price": 25})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var entry database.ActivityLog
	require.NoError(t, db.Where("action = ? AND entity_type = ?", "update", "menu_item").Take(&entry).Error)
	assert.Equal(t, "1", entry.EntityID)

	type snapshot struct {
		Name        string          `json:"name"`
		Price       decimal.Decimal `json:"price"`
		Category    string          `json:"category"`
		IsAvailable bool            `json:"is_available"`
	}
	var details struct {
		Old snapshot `json:"old"`
		New snapshot `json:"new"`
	}
	require.NoError(t, json.Unmarshal([]byte(entry.Details), &details))
	assert.Equal(t, tea.Name, details.Old.Name)
	assert.True(t, decimal.NewFromInt(20).Equal(details.Old.Price), details.Old.Price.String())
	assert.Equal(t, "Masala Tea", details.New.Name)
	assert.True(t, decimal.NewFromInt(25).Equal(details.New.Price), details.New.Price.String())
	assert.Equal(t, "Drinks", details.New.Category)
	assert.True(t, details.New.IsAvailable)

	// Rejected updates leave no trail.
	rr = doJSON(r, http.MethodPut, "/api/menu/1", gin.H{})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var count int64
	require.NoError(t, db.Model(&database.ActivityLog{}).Where("action = ?", "update").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
