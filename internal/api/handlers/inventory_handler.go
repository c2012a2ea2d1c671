package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/domain"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/ingest"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/policy"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/service"
)

// Units of the dashboard figures.
var units = map[string]string{
	"stock":             "tons",
	"consumption":       "tons/day",
	"days_of_inventory": "days",
	"runway":            "days",
	"lead_time":         "days",
}

type InventoryHandler struct {
	service *service.InventoryService
}

func NewInventoryHandler(service *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

type dashboardResponse struct {
	*policy.Snapshot
	StatusLabel  string            `json:"status_label"`
	AlertMessage string            `json:"alert_message"`
	Units        map[string]string `json:"units"`
}

type recordRequest struct {
	Date         string          `json:"date"`
	Material     string          `json:"material"`
	OpeningStock decimal.Decimal `json:"opening_stock"`
	Inflow       decimal.Decimal `json:"inflow"`
	Consumption  decimal.Decimal `json:"consumption"`
}

func (r recordRequest) toDomain() (domain.StockRecord, error) {
	rec := domain.StockRecord{
		Material:     r.Material,
		OpeningStock: r.OpeningStock,
		Inflow:       r.Inflow,
		Consumption:  r.Consumption,
	}
	if strings.TrimSpace(r.Date) != "" {
		d, err := ingest.ParseDate(r.Date)
		if err != nil {
			return rec, &domain.MalformedRecordError{Fields: map[string]string{"date": "cannot parse " + strconv.Quote(r.Date)}}
		}
		rec.Date = d
	}
	return rec, nil
}

// parseParameters reads lead_time and window, falling back to the defaults.
func (h *InventoryHandler) parseParameters(c *gin.Context) (policy.Parameters, bool) {
	params := h.service.DefaultParameters()

	if raw := strings.TrimSpace(c.Query("lead_time")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{Error: string(policy.KindInvalidParameters), Message: "lead_time must be an integer"})
			return params, false
		}
		params.LeadTimeDays = v
	}

	if raw := strings.TrimSpace(c.Query("window")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody{Error: string(policy.KindInvalidParameters), Message: "window must be an integer"})
			return params, false
		}
		// Parameters treats 0 as "use the default", so reject it here.
		if v < 1 {
			c.JSON(http.StatusBadRequest, errorBody{Error: string(policy.KindInvalidParameters), Message: "window must be at least 1"})
			return params, false
		}
		params.ForecastWindow = v
	}

	return params, true
}

// Health reports liveness.
func (h *InventoryHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// GetMaterials lists known materials and the lead-time control settings.
func (h *InventoryHandler) GetMaterials(c *gin.Context) {
	materials, err := h.service.ListMaterials(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if materials == nil {
		materials = make([]string, 0)
	}

	c.JSON(http.StatusOK, gin.H{
		"materials":       materials,
		"lead_time":       h.service.LeadTimeOptions(),
		"forecast_window": h.service.DefaultParameters().ForecastWindow,
	})
}

// GetDashboard returns the KPI snapshot, closing series and forecast.
func (h *InventoryHandler) GetDashboard(c *gin.Context) {
	material := strings.TrimSpace(c.Param("material"))
	if material == "" {
		badRequest(c, "material is required")
		return
	}

	params, ok := h.parseParameters(c)
	if !ok {
		return
	}

	snap, err := h.service.Dashboard(c.Request.Context(), material, params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboardResponse{
		Snapshot:     snap,
		StatusLabel:  snap.Status.Label(),
		AlertMessage: domain.AlertMessage(snap.ReorderAlert),
		Units:        units,
	})
}

// GetOverview summarises every material.
func (h *InventoryHandler) GetOverview(c *gin.Context) {
	params, ok := h.parseParameters(c)
	if !ok {
		return
	}

	summaries, err := h.service.Overview(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"parameters": params,
		"materials":  summaries,
		"units":      units,
	})
}

// GetRecords lists records, optionally by material and date range.
func (h *InventoryHandler) GetRecords(c *gin.Context) {
	filter := domain.RecordFilter{Material: strings.TrimSpace(c.Query("material"))}

	for _, bound := range []struct {
		param string
		dst   **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(c.Query(bound.param))
		if raw == "" {
			continue
		}
		d, err := ingest.ParseDate(raw)
		if err != nil {
			badRequest(c, bound.param+" must be a date (YYYY-MM-DD)")
			return
		}
		*bound.dst = &d
	}

	records, err := h.service.ListRecords(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// CreateRecord appends a single record.
func (h *InventoryHandler) CreateRecord(c *gin.Context) {
	rec, ok := bindRecord(c)
	if !ok {
		return
	}

	stored, err := h.service.Append(c.Request.Context(), rec)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, stored)
}

// UpdateRecord replaces the record identified by :id.
func (h *InventoryHandler) UpdateRecord(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		badRequest(c, "id is required")
		return
	}

	rec, ok := bindRecord(c)
	if !ok {
		return
	}

	updated, err := h.service.Update(c.Request.Context(), id, rec)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// UploadRecords bulk-appends a CSV or XLSX sheet sent as the "file" field.
func (h *InventoryHandler) UploadRecords(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}
	defer f.Close()

	result, err := h.service.Upload(c.Request.Context(), fileHeader.Filename, f)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ReloadSource re-reads a file-backed data source.
func (h *InventoryHandler) ReloadSource(c *gin.Context) {
	if err := h.service.Reload(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func bindRecord(c *gin.Context) (domain.StockRecord, bool) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return domain.StockRecord{}, false
	}

	rec, err := req.toDomain()
	if err != nil {
		respondError(c, err)
		return domain.StockRecord{}, false
	}
	return rec, true
}
