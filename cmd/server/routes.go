package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yuditriaji/cafe-backend/internal/auth"
	"github.com/yuditriaji/cafe-backend/internal/inventory"
	"github.com/yuditriaji/cafe-backend/internal/material"
	"github.com/yuditriaji/cafe-backend/internal/menu"
	"github.com/yuditriaji/cafe-backend/internal/order"
	"github.com/yuditriaji/cafe-backend/internal/sales"
	"github.com/yuditriaji/cafe-backend/internal/settings"
	"github.com/yuditriaji/cafe-backend/internal/user"
	"github.com/yuditriaji/cafe-backend/pkg/activitylog"
	"github.com/yuditriaji/cafe-backend/pkg/config"
	"github.com/yuditriaji/cafe-backend/pkg/events"
	"github.com/yuditriaji/cafe-backend/pkg/logger"
	"github.com/yuditriaji/cafe-backend/pkg/middleware"
	"github.com/yuditriaji/cafe-backend/pkg/session"
	"gorm.io/gorm"
)

// deps are the shared services every handler is built from
type deps struct {
	cfg       *config.Config
	db        *gorm.DB
	calendar  *settings.Calendar
	sales     *sales.Service
	tokens    *session.Manager
	publisher events.Publisher
}

func setupRouter(d deps) *gin.Engine {
	r := gin.New()
	r.Use(logger.Middleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(d.cfg.CORSOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	audit := activitylog.NewLogger(d.db)
	authHandler := auth.NewHandler(d.db, d.tokens)
	menuHandler := menu.NewHandler(d.db, audit)
	orderHandler := order.NewHandler(order.NewService(d.db, d.sales, d.calendar, d.publisher), audit)
	salesHandler := sales.NewHandler(d.sales, audit)
	inventoryHandler := inventory.NewHandler(d.db, audit)
	importHandler := inventory.NewImportHandler(d.db, audit)
	materialHandler := material.NewHandler(d.db, audit)
	userHandler := user.NewHandler(d.db, audit)
	settingsHandler := settings.NewHandler(d.db)
	activityHandler := activitylog.NewHandler(audit)
	limitChecker := middleware.NewLimitChecker(d.db, d.calendar, d.cfg.OrderDailyLimit)

	api := r.Group("/api")
	{
		// Public routes
		api.GET("/menu", menuHandler.List)
		api.POST("/orders", limitChecker.CheckDailyOrderLimit(), orderHandler.Create)
		api.GET("/orders/queue", orderHandler.Queue)
		api.GET("/orders/:id/status", orderHandler.Status)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.RefreshToken)

		// Any signed-in role
		staff := api.Group("")
		staff.Use(middleware.AuthRequired(d.tokens))
		{
			staff.GET("/auth/me", authHandler.GetMe)

			staff.GET("/orders", orderHandler.List)
			staff.GET("/orders/:id", orderHandler.Get)
			staff.PUT("/orders/:id", orderHandler.Update)
			staff.DELETE("/orders/:id", orderHandler.Delete)

			staff.GET("/daily-sales/today", salesHandler.Today)
		}

		// Admin only
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(d.tokens), middleware.RequireRole(session.RoleAdmin))
		{
			// Menu
			admin.GET("/menu/all", menuHandler.ListAll)
			admin.PUT("/menu/position", menuHandler.Reorder)
			admin.GET("/menu/:id", menuHandler.Get)
			admin.POST("/menu", menuHandler.Create)
			admin.PUT("/menu/:id", menuHandler.Update)
			admin.DELETE("/menu/:id", menuHandler.Delete)

			// Inventory
			admin.GET("/inventory", inventoryHandler.GetInventory)
			admin.GET("/inventory/alerts", inventoryHandler.GetAlerts)
			admin.POST("/inventory", inventoryHandler.UpdateInventory)
			admin.PATCH("/inventory", inventoryHandler.AdjustStock)
			admin.POST("/inventory/import", importHandler.ImportStock)
			admin.GET("/inventory/import/template", importHandler.DownloadTemplate)

			// Raw materials
			admin.GET("/raw-materials", materialHandler.List)
			admin.POST("/raw-materials", materialHandler.Create)
			admin.PATCH("/raw-materials", materialHandler.BatchUpdate)
			admin.GET("/raw-materials/alerts", materialHandler.GetAlerts)
			admin.GET("/raw-materials/:id", materialHandler.Get)
			admin.PUT("/raw-materials/:id", materialHandler.Update)
			admin.DELETE("/raw-materials/:id", materialHandler.Delete)

			// Dish / raw material links
			admin.GET("/dish-raw-materials/:dish_id", materialHandler.GetDishMaterials)
			admin.POST("/dish-raw-materials", materialHandler.LinkMaterial)
			admin.DELETE("/dish-raw-materials/:dish_id/:raw_material_id", materialHandler.UnlinkMaterial)

			// Users and roles
			admin.GET("/users", userHandler.ListUsers)
			admin.POST("/users", userHandler.CreateUser)
			admin.PUT("/users/:id", userHandler.UpdateUser)
			admin.DELETE("/users/:id", userHandler.DeleteUser)
			admin.GET("/user-roles", userHandler.ListRoles)
			admin.POST("/user-roles", userHandler.CreateRole)

			// Sales
			admin.GET("/daily-sales", salesHandler.List)
			admin.POST("/daily-sales/reset", salesHandler.Reset)
			admin.GET("/sales-report", salesHandler.Report)
			admin.GET("/sales-report/export", salesHandler.Export)

			// Settings and audit
			admin.GET("/settings", settingsHandler.List)
			admin.PUT("/settings/:name", settingsHandler.Update)
			admin.GET("/activity-logs", activityHandler.List)
		}
	}

	return r
}
