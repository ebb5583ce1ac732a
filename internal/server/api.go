// Package server provides the sysreport read-only report viewer.
//
//	Public:    GET /healthz, GET /metrics
//	Protected: GET /api/* (JWT, only when report.jwt_secret is set)
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vesaa/sysreport/internal/models"
	"github.com/vesaa/sysreport/internal/store"
)

// Reader is the read side of the report database.
type Reader interface {
	LoadStore(ctx context.Context) ([]models.Sample, error)
	LoadArchive(ctx context.Context) ([]models.Sample, error)
	CountArchive(ctx context.Context) (int64, error)
	LoadDomains(ctx context.Context) ([]models.DomainRecord, error)
}

type reportAPI struct {
	reader Reader
	logger *slog.Logger
}

// RegisterReportRoutes wires up the viewer on the given engine.
// auth may be nil to serve /api/* without authentication.
func RegisterReportRoutes(r *gin.Engine, reader Reader, auth *TokenAuth, logger *slog.Logger) {
	h := &reportAPI{reader: reader, logger: logger.With("component", "api")}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(NewRegistry(reader, h.logger), promhttp.HandlerOpts{})))

	api := r.Group("/api", auth.Middleware())
	{
		api.GET("/schema", h.handleSchema)
		api.GET("/store", h.handleStore)
		api.GET("/archive", h.handleArchive)
		api.GET("/domains", h.handleDomains)
	}
}

// tableView is a rendered sample table: formatted cells plus the
// classification of each numeric cell against its column mean.
type tableView struct {
	Columns []string           `json:"columns"`
	Means   map[string]float64 `json:"means"`
	Total   int                `json:"total"`
	Rows    []rowView          `json:"rows"`
}

type rowView struct {
	Cells []string             `json:"cells"`
	Tags  map[string]store.Tag `json:"tags"`
}

// renderTable classifies all rows, then renders the last limit of them
// (limit <= 0 renders everything). Means always cover every row.
func renderTable(rows []models.Sample, limit int) tableView {
	class := store.ClassifyRows(rows, models.SampleSchema)
	view := tableView{
		Columns: models.SampleSchema.Names(),
		Means:   make(map[string]float64, len(class.Columns)),
		Total:   len(rows),
		Rows:    []rowView{},
	}
	for _, cs := range class.Columns {
		view.Means[cs.Name] = cs.Mean
	}

	start := 0
	if limit > 0 && limit < len(rows) {
		start = len(rows) - limit
	}
	for i := start; i < len(rows); i++ {
		view.Rows = append(view.Rows, rowView{
			Cells: models.SampleSchema.Render(rows[i]),
			Tags:  class.RowTags(i),
		})
	}
	return view
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// handleSchema returns the column descriptors of both report tables.
func (h *reportAPI) handleSchema(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"samples": models.SampleSchema,
		"domains": models.DomainSchema,
	})
}

// handleStore returns the rolling store classified against its own means.
func (h *reportAPI) handleStore(c *gin.Context) {
	rows, err := h.reader.LoadStore(c.Request.Context())
	if err != nil {
		h.fail(c, "load store", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": renderTable(rows, 0)})
}

// handleArchive returns archived rows classified against the mean of the
// whole archive.
//
//	GET /api/archive?limit=100
func (h *reportAPI) handleArchive(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	rows, err := h.reader.LoadArchive(c.Request.Context())
	if err != nil {
		h.fail(c, "load archive", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": renderTable(rows, limit)})
}

// handleDomains returns the latest domain snapshot.
func (h *reportAPI) handleDomains(c *gin.Context) {
	records, err := h.reader.LoadDomains(c.Request.Context())
	if err != nil {
		h.fail(c, "load domains", err)
		return
	}
	if records == nil {
		records = []models.DomainRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (h *reportAPI) fail(c *gin.Context, what string, err error) {
	h.logger.Error(what, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
