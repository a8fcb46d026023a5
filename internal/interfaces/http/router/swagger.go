package router

import (
	"github.com/gin-gonic/gin"
	_ "github.com/returnflow/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// MountDocs serves the Swagger UI and doc.json under /swagger behind access
func MountDocs(engine *gin.Engine, access gin.HandlerFunc) {
	engine.GET("/swagger/*any", access, ginSwagger.WrapHandler(swaggerFiles.Handler))
}
