package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/database"
	"github.com/yuditriaji/cafe-backend/pkg/database/dbtest"
	"github.com/yuditriaji/cafe-backend/pkg/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T, signedIn *session.Session) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	require.NoError(t, database.Seed(db, "", ""))
	h := NewHandler(db, activitylog.NewLogger(db))

	r := gin.New()
	if signedIn != nil {
		r.Use(func(c *gin.Context) { session.Set(c, *signedIn) })
	}
	r.GET("/api/users", h.ListUsers)
	r.POST("/api/users", h.CreateUser)
	r.PUT("/api/users/:id", h.UpdateUser)
	r.DELETE("/api/users/:id", h.DeleteUser)
	r.GET("/api/user-roles", h.ListRoles)
	r.POST("/api/user-roles", h.CreateRole)
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

func roleID(t *testing.T, db *gorm.DB, name string) uint {
	var role database.Role
	require.NoError(t, db.Where("role_name = ?", name).Take(&role).Error)
	return role.ID
}

func TestHandler_CreateUser(t *testing.T) {
	r, db := newTestRouter(t, nil)
	chef := roleID(t, db, "chef")

	rr := doJSON(r, http.MethodPost, "/api/users", gin.H{"username": "ravi", "password": "secret1", "role_id": chef})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")

	var created database.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "chef", created.RoleName)

	var stored database.User
	require.NoError(t, db.Take(&stored, created.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))

	rr = doJSON(r, http.MethodPost, "/api/users", gin.H{"username": "ravi", "password": "secret2", "role_id": chef})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(r, http.MethodPost, "/api/users", gin.H{"username": "anu", "password": "123", "role_id": chef})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodPost, "/api/users", gin.H{"username": "anu", "password": "secret1", "role_id": 99})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var users []database.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "chef", users[0].RoleName)
}

func TestHandler_UpdateUser(t *testing.T) {
	r, db := newTestRouter(t, nil)
	staff := roleID(t, db, "staff")
	admin := roleID(t, db, "admin")
	require.NoError(t, db.Create(&database.User{Username: "anu", PasswordHash: "x", RoleID: staff}).Error)
	require.NoError(t, db.Create(&database.User{Username: "ravi", PasswordHash: "x", RoleID: staff}).Error)

	rr := doJSON(r, http.MethodPut, "/api/users/1", gin.H{"role_id": admin, "password": "newpass"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated database.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "admin", updated.RoleName)

	var stored database.User
	require.NoError(t, db.Take(&stored, 1).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpass")))

	rr = doJSON(r, http.MethodPut, "/api/users/1", gin.H{"username": "ravi"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(r, http.MethodPut, "/api/users/1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodPut, "/api/users/42", gin.H{"username": "nobody"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_DeleteUser(t *testing.T) {
	admin := session.Session{UserID: 1, Username: "boss", Role: session.RoleAdmin}
	r, db := newTestRouter(t, &admin)
	adminRole := roleID(t, db, "admin")
	require.NoError(t, db.Create(&database.User{Username: "boss", PasswordHash: "x", RoleID: adminRole}).Error)
	require.NoError(t, db.Create(&database.User{Username: "anu", PasswordHash: "x", RoleID: adminRole}).Error)

	rr := doJSON(r, http.MethodDelete, "/api/users/1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(r, http.MethodDelete, "/api/users/2", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var entry database.ActivityLog
	require.NoError(t, db.Where("action = ? AND entity_type = ?", "delete", "user").Take(&entry).Error)
	assert.Equal(t, "2", entry.EntityID)
	assert.Equal(t, uint(1), entry.UserID)
	assert.Equal(t, "boss", entry.Username)

	rr = doJSON(r, http.MethodDelete, "/api/users/2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Roles(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rr := doJSON(r, http.MethodGet, "/api/user-roles", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var roles []database.Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &roles))
	require.Len(t, roles, len(database.DefaultRoles))
	assert.Equal(t, "admin", roles[0].RoleName)
	assert.True(t, roles[0].Permissions["users"])

	rr = doJSON(r, http.MethodPost, "/api/user-roles", gin.H{"role_name": "cashier", "permissions": gin.H{"orders": true}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doJSON(r, http.MethodPost, "/api/user-roles", gin.H{"role_name": "cashier"})
	assert.Equal(t, http.StatusConflict, rr.Code, fmt.Sprintf("body: %s", rr.Body.String()))
}

func TestHandler_UpdateUser_ChangesStoredRole(t *testing.T) {
	r, db := newTestRouter(t, nil)
	staff := roleID(t, db, "staff")
	chef := roleID(t, db, "chef")
	require.NoError(t, db.Create(&database.User{Username: "anu", PasswordHash: "x", RoleID: staff}).Error)

	rr := doJSON(r, http.MethodPut, "/api/users/1", gin.H{"role_id": chef})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated database.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, chef, updated.RoleID)
	assert.Equal(t, "chef", updated.RoleName)

	var stored database.User
	require.NoError(t, db.Take(&stored, 1).Error)
	assert.Equal(t, chef, stored.RoleID)

	rr = doJSON(r, http.MethodPut, "/api/users/1", gin.H{"role_id": staff, "username": "anu2"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, db.Take(&stored, 1).Error)
	assert.Equal(t, staff, stored.RoleID)
	assert.Equal(t, "anu2", stored.Username)
}

func TestHandler_DuplicateCheckFailure(t *testing.T) {
	r, db := newTestRouter(t, nil)
	chef := roleID(t, db, "chef")
	require.NoError(t, db.Migrator().DropTable(&database.User{}))

	rr := doJSON(r, http.MethodPost, "/api/users", gin.H{"username": "ravi", "password": "secret1", "role_id": chef})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Failed to create user"}`, rr.Body.String())
}
