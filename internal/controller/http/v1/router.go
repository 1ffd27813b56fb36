// Package v1 implements routing paths. Each services in own file.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"waveconv/entity"
	"waveconv/internal/auth"
	"waveconv/pkg/logger"
)

const traceName = "HTTP-V1"

// Deps are the collaborators the routes need.
type Deps struct {
	Conversion    entity.ConversionUsecase
	Download      entity.DownloadUsecase
	Authorizer    auth.Authorizer
	Gatherer      prometheus.Gatherer
	MaxUploadSize int64
	Development   bool
}

// NewRouter -.
// Swagger spec:
// @title       WaveConv API
// @description Converts uploaded audio and video into Telegram-compatible voice messages.
// @version     1.0
// @host        localhost:3000
// @BasePath    /
func NewRouter(handler *gin.Engine, l logger.Interface, deps Deps) {
	// Options
	handler.Use(gin.Logger())
	handler.Use(gin.Recovery())

	// Swagger
	swaggerHandler := ginSwagger.DisablingWrapHandler(swaggerFiles.Handler, "DISABLE_SWAGGER_HTTP_HANDLER")
	handler.GET("/swagger/*any", swaggerHandler)

	// K8s probe
	handler.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Prometheus metrics
	if deps.Gatherer != nil {
		handler.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Routers
	newConversionRoutes(&handler.RouterGroup, deps, l)
	newConversionRoutes(handler.Group("/api"), deps, l)
	handler.GET("/converted/:filename", newDownloadHandler(deps, l))
}
