package router

import (
	"github.com/gin-gonic/gin"
	"github.com/returnflow/backend/internal/interfaces/http/handler"
)

// Handlers bundles everything the API mounts
type Handlers struct {
	Records *handler.ReturnRecordHandler
	Reports *handler.NCRReportHandler
	Admin   *handler.AdminHandler
	Health  *handler.HealthHandler
	// Maintenance is optional; its routes are mounted only when set
	Maintenance *handler.MaintenanceHandler
}

// APIVersion is the path segment every resource route is mounted under
const APIVersion = "v1"

// RegisterAPI mounts /health and the /api/v1 resource groups on engine and
// returns the mounted resource routes. adminGuard runs in front of undo,
// purge and every /admin route.
func RegisterAPI(engine *gin.Engine, h Handlers, adminGuard gin.HandlerFunc) []Route {
	engine.GET("/health", h.Health.Check)

	records := NewDomainGroup("return-records", "/return-records").
		GET("", h.Records.List).
		GET("/:id", h.Records.GetByID).
		POST("", h.Records.Create).
		PUT("/:id", h.Records.Update).
		POST("/:id/transitions", h.Records.Transition).
		POST("/:id/undo", adminGuard, h.Records.Undo).
		POST("/:id/disposition", h.Records.SetDisposition).
		POST("/:id/split", h.Records.Split).
		DELETE("/:id", adminGuard, h.Records.Purge)

	collections := NewDomainGroup("collection-orders", "/collection-orders").
		POST("", h.Records.ScheduleCollection)

	reports := NewDomainGroup("ncr-reports", "/ncr-reports").
		GET("", h.Reports.List).
		GET("/:id", h.Reports.GetByID).
		POST("", h.Reports.Submit).
		PATCH("/:id", h.Reports.Update).
		POST("/:id/cancel", h.Reports.Cancel)

	admin := NewDomainGroup("admin", "/admin").Use(adminGuard)
	admin.Group("reconcile", "/reconcile").
		POST("/orphans", h.Admin.ReconcileOrphans).
		POST("/missing", h.Admin.ReconcileMissing)
	admin.Group("counters", "/counters").
		GET("/:family", h.Admin.GetCounter).
		POST("/:family/rollback", h.Admin.RollbackCounter)
	if h.Maintenance != nil {
		admin.Group("maintenance", "/maintenance").
			GET("", h.Maintenance.Status).
			POST("/run", h.Maintenance.Run)
	}

	groups := []*DomainGroup{records, collections, reports, admin}
	Mount(engine, APIVersion, groups...)

	var routes []Route
	for _, g := range groups {
		routes = append(routes, g.Routes(apiBase(APIVersion))...)
	}
	return routes
}
