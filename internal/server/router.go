package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Reports    *ReportHandler
	Metrics    *MetricsHandler
	Moderation *ModerationHandler
	Scoring    *ScoringHandler
	Export     *ExportHandler
	// MaxUploadBytes bounds multipart memory; 0 keeps gin's default.
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	if cfg.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	}))

	router.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Reports and extraction
		api.POST("/participants/:participantID/reports", cfg.Reports.Upload)
		api.GET("/participants/:participantID/reports", cfg.Reports.ListByParticipant)
		api.GET("/reports/:reportID", cfg.Reports.Get)
		api.POST("/reports/:reportID/extract", cfg.Reports.ReExtract)
		api.GET("/reports/:reportID/task", cfg.Reports.TaskStatus)
		api.POST("/tasks/:taskID/cancel", cfg.Reports.CancelTask)

		// Metric sheet
		api.GET("/reports/:reportID/metrics", cfg.Metrics.Template)
		api.PUT("/reports/:reportID/metrics/:metricID", cfg.Metrics.SetManual)
		api.DELETE("/reports/:reportID/metrics/:metricID", cfg.Metrics.Clear)

		// Vocabulary administration
		api.POST("/metric-defs", cfg.Metrics.CreateDef)
		api.GET("/metric-defs", cfg.Metrics.ListDefs)
		api.POST("/metric-defs/:metricID/synonyms", cfg.Metrics.CreateSynonym)

		// Moderation
		api.GET("/moderation/pending", cfg.Moderation.ListPending)
		api.POST("/moderation/:metricID/approve", cfg.Moderation.Approve)
		api.POST("/moderation/:metricID/reject", cfg.Moderation.Reject)

		// Scoring and recommendations
		api.POST("/participants/:participantID/score", cfg.Scoring.Score)
		api.GET("/participants/:participantID/scores", cfg.Scoring.History)
		api.GET("/scores/:resultID", cfg.Scoring.Get)
		api.GET("/scores/:resultID/export", cfg.Export.ResultXLSX)

		// Weight tables
		api.PUT("/weights/:activityCode", cfg.Scoring.UpsertWeights)
		api.GET("/weights", cfg.Scoring.ListWeights)
	}

	return router
}
