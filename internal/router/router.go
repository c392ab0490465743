package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/handler"
	"github.com/noah-isme/survey-review-api/internal/middleware"
	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/service"
	"github.com/noah-isme/survey-review-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/survey-review-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/survey-review-api/pkg/middleware/requestid"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Surveys  *handler.SurveyHandler
	Evidence *handler.EvidenceHandler
	Feedback *handler.FeedbackHandler
	Reports  *handler.ReportHandler
	Exports  *handler.ExportHandler
	Metrics  *handler.MetricsHandler
}

// Options configures the engine.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	Tokens         middleware.TokenValidator
	Audit          middleware.AuditWriter
	Metrics        *service.MetricsService
	Logger         *zap.Logger
}

// New builds the gin engine with every route mounted.
func New(h Handlers, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	admin := string(models.RoleAdmin)
	advisor := string(models.RoleAdvisor)
	student := string(models.RoleStudent)

	api := r.Group(opts.APIPrefix)
	api.GET("/reports/shared/:token", h.Reports.Shared)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))

	secured.GET("/auth/me", h.Auth.Me)
	secured.GET("/evidence/check-access", h.Evidence.CheckAccess)

	secured.GET("/surveys/:id/form", middleware.RBAC(student), h.Surveys.Form)
	secured.POST("/surveys/:id/submit", middleware.RBAC(student), h.Surveys.Submit)
	secured.POST("/surveys/:id/questions", middleware.RBAC(admin), h.Surveys.CreateQuestion)
	secured.PUT("/questions/:id", middleware.RBAC(admin), h.Surveys.UpdateQuestion)

	secured.POST("/feedback", middleware.RBAC(admin, advisor), h.Feedback.Create)
	secured.PUT("/feedback/:id", middleware.RBAC(admin, advisor), h.Feedback.Update)
	secured.GET("/surveys/:id/students/:studentId/feedback", middleware.RBAC(admin, advisor, "SELF"), h.Feedback.ListForStudent)

	secured.GET("/surveys/:id/responses/export", middleware.RBAC(admin, advisor), middleware.Audit(opts.Audit, models.AuditActionExport, log), h.Exports.Responses)

	secured.GET("/reports/responses/:id", middleware.RBAC(admin, advisor, student), h.Reports.Composite)
	secured.POST("/reports/responses/:id/share", middleware.RBAC(admin, advisor), h.Reports.Share)

	secured.POST("/admin/reports/cache/reset", middleware.RBAC(admin), middleware.Audit(opts.Audit, models.AuditActionCacheReset, log), h.Reports.ResetCache)

	return r
}
