package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pulseboard/internal/credentials"
	"pulseboard/internal/etl"
	"pulseboard/internal/storage"
)

// Handler serves the reporting read path, credential management, and
// on-demand collection triggers.
type Handler struct {
	store        storage.Store
	creds        credentials.Store
	orchestrator *etl.Orchestrator
	logger       *logrus.Entry
}

func New(store storage.Store, creds credentials.Store, orchestrator *etl.Orchestrator, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		store:        store,
		creds:        creds,
		orchestrator: orchestrator,
		logger:       logger.WithField("component", "handlers"),
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/readyz", h.Ready)

	metrics := r.Group("/metrics")
	{
		metrics.GET("/keyed", h.KeyedMetrics)
		metrics.GET("/named", h.NamedMetrics)
		metrics.GET("/series", h.SeriesMetrics)
	}

	collect := r.Group("/collect")
	{
		collect.POST("/run", h.RunAll)
		collect.POST("/run/:platform", h.RunPlatform)
	}

	creds := r.Group("/credentials")
	{
		creds.GET("", h.ListCredentials)
		creds.POST("/:platform", h.SaveCredentials)
		creds.DELETE("/:platform", h.DeleteCredentials)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks that the metric store answers a cheap read.
func (h *Handler) Ready(c *gin.Context) {
	if _, err := h.store.NamedMetrics(c.Request.Context(), ""); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) KeyedMetrics(c *gin.Context) {
	metrics, err := h.store.KeyedMetrics(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.logger.WithError(err).Error("Keyed metrics query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(metrics), "metrics": metrics})
}

func (h *Handler) NamedMetrics(c *gin.Context) {
	metrics, err := h.store.NamedMetrics(c.Request.Context(), c.Query("type"))
	if err != nil {
		h.logger.WithError(err).Error("Named metrics query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(metrics), "metrics": metrics})
}

func (h *Handler) SeriesMetrics(c *gin.Context) {
	metrics, err := h.store.SeriesMetrics(c.Request.Context(), c.Query("type"))
	if err != nil {
		h.logger.WithError(err).Error("Series metrics query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(metrics), "metrics": metrics})
}

// RunAll triggers a synchronous collection run across every configured
// platform and reports the per-platform outcome.
func (h *Handler) RunAll(c *gin.Context) {
	summary, err := h.orchestrator.RunAll(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Collection run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	failed := make(map[string]string, len(summary.Failed))
	for name, ferr := range summary.Failed {
		failed[name] = ferr.Error()
	}
	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    failed,
	})
}

// ListCredentials reports which platforms have stored credentials. Secret
// values never leave the store.
func (h *Handler) ListCredentials(c *gin.Context) {
	platforms, err := h.creds.Platforms()
	if err != nil {
		h.logger.WithError(err).Error("Credential listing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(platforms), "platforms": platforms})
}

// SaveCredentials validates the submitted credentials against the platform
// API and persists them only when the validation call succeeds.
func (h *Handler) SaveCredentials(c *gin.Context) {
	platform := c.Param("platform")

	var creds credentials.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"platform": platform, "error": err.Error()})
		return
	}

	if err := h.orchestrator.TestCredentials(c.Request.Context(), platform, creds); err != nil {
		h.logger.WithError(err).WithField("platform", platform).Warn("Credential validation failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"platform": platform, "error": err.Error()})
		return
	}

	if err := h.creds.Save(platform, creds); err != nil {
		h.logger.WithError(err).WithField("platform", platform).Error("Credential save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"platform": platform, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"platform": platform, "status": "saved"})
}

func (h *Handler) DeleteCredentials(c *gin.Context) {
	platform := c.Param("platform")
	if err := h.creds.Delete(platform); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"platform": platform, "error": err.Error()})
			return
		}
		h.logger.WithError(err).WithField("platform", platform).Error("Credential delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"platform": platform, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"platform": platform, "status": "deleted"})
}

func (h *Handler) RunPlatform(c *gin.Context) {
	platform := c.Param("platform")
	if err := h.orchestrator.Run(c.Request.Context(), platform); err != nil {
		h.logger.WithError(err).WithField("platform", platform).Error("Collection failed")
		c.JSON(http.StatusInternalServerError, gin.H{"platform": platform, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"platform": platform, "status": "completed"})
}
