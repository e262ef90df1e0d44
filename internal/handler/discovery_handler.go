// internal/handler/discovery_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bt-discovery/internal/model"
	"bt-discovery/internal/repository"
	"bt-discovery/internal/service"
	"bt-discovery/internal/utils"
)

// OutcomeHeader carries the scan outcome on the bare JSON endpoint
const OutcomeHeader = "X-Scan-Outcome"

// DiscoveryHandler handles device discovery requests
type DiscoveryHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// ScanDevices runs one discovery pass
// @Summary Scan for devices
// @Description Run one discovery pass. A failed pass is still a 200 response with outcome FAILED and a diagnostic.
// @Tags Discovery
// @Accept json
// @Produce json
// @Param type query string false "Scan type" Enums(bluetooth, ble, serial, usb, all)
// @Success 200 {object} utils.APIResponse{data=service.ScanReport} "Scan completed"
// @Failure 400 {object} utils.APIResponse "Unknown or disabled scan type"
// @Failure 409 {object} utils.APIResponse "A scan is already in progress"
// @Router /discovery/scan [get]
func (h *DiscoveryHandler) ScanDevices(c *gin.Context) {
	report, ok := h.scan(c)
	if !ok {
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device scan completed", report)
}

// ScanDevicesJSON runs one discovery pass and returns the bare device array
// @Summary Scan for devices (bare JSON)
// @Description Run one discovery pass and return a JSON array of device info records. The outcome is reported in the X-Scan-Outcome header.
// @Tags Discovery
// @Produce json
// @Param type query string false "Scan type" Enums(bluetooth, ble, serial, usb, all)
// @Success 200 {array} model.DeviceInfo "Discovered devices"
// @Failure 400 {object} utils.APIResponse "Unknown or disabled scan type"
// @Failure 409 {object} utils.APIResponse "A scan is already in progress"
// @Router /discovery/scan/json [get]
func (h *DiscoveryHandler) ScanDevicesJSON(c *gin.Context) {
	report, ok := h.scan(c)
	if !ok {
		return
	}

	body, err := model.EncodeList(report.Devices)
	if err != nil {
		requestLogger(c, h.logger).Error("Failed to encode device list", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to encode devices", err)
		return
	}

	c.Header(OutcomeHeader, string(report.Outcome))
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *DiscoveryHandler) scan(c *gin.Context) (*service.ScanReport, bool) {
	var req service.ScanRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters", err)
		return nil, false
	}

	report, err := h.discoveryService.ScanDevices(c.Request.Context(), &req)
	if err != nil {
		h.respondScanError(c, err)
		return nil, false
	}
	return report, true
}

// StartScan starts a discovery pass in the background
// @Summary Start a background scan
// @Description Start a discovery pass and return immediately. Results are published on /ws/events and recorded in the scan history.
// @Tags Discovery
// @Accept json
// @Produce json
// @Param request body service.ScanRequest false "Scan request"
// @Success 202 {object} utils.APIResponse{data=service.ScanStarted} "Scan started"
// @Failure 400 {object} utils.APIResponse "Unknown or disabled scan type"
// @Failure 409 {object} utils.APIResponse "A scan is already in progress"
// @Router /discovery/scan/start [post]
func (h *DiscoveryHandler) StartScan(c *gin.Context) {
	var req service.ScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.ScanType == "" {
		req.ScanType = c.Query("type")
	}

	started, err := h.discoveryService.StartScan(&req)
	if err != nil {
		h.respondScanError(c, err)
		return
	}

	utils.AcceptedResponse(c, "Scan started", started)
}

func (h *DiscoveryHandler) respondScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownScanType), errors.Is(err, service.ErrScannerNotEnabled):
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid scan type", err)
	case errors.Is(err, service.ErrScanInProgress):
		utils.ErrorResponse(c, http.StatusConflict, "Scan already in progress", err)
	default:
		requestLogger(c, h.logger).Error("Failed to scan devices", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to scan devices", err)
	}
}

// ListScans lists recorded scans
// @Summary List scan history
// @Description List recorded discovery passes, newest first
// @Tags Discovery
// @Produce json
// @Param scan_type query string false "Filter by scan type"
// @Param outcome query string false "Filter by outcome" Enums(DEVICES_FOUND, NO_DEVICES, FAILED)
// @Param since query string false "Only scans started at or after this RFC3339 time"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} utils.APIResponse{data=object{scans=[]service.ScanReport,total=int,limit=int,offset=int}} "Scan history"
// @Failure 400 {object} utils.APIResponse "Invalid filter"
// @Failure 500 {object} utils.APIResponse "Failed to list scans"
// @Router /discovery/scans [get]
func (h *DiscoveryHandler) ListScans(c *gin.Context) {
	filter, invalid := parseScanFilter(c)
	if invalid != nil {
		utils.ValidationErrorResponse(c, invalid)
		return
	}

	scans, total, err := h.discoveryService.History(c.Request.Context(), filter)
	if err != nil {
		requestLogger(c, h.logger).Error("Failed to list scans", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list scans", err)
		return
	}

	reports := make([]*service.ScanReport, 0, len(scans))
	for _, scan := range scans {
		reports = append(reports, service.NewScanReport(scan))
	}

	utils.SuccessResponse(c, http.StatusOK, "Scans retrieved", gin.H{
		"scans":  reports,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// parseScanFilter reads the history query; invalid fields are collected
// per query key
func parseScanFilter(c *gin.Context) (*repository.ScanFilter, map[string]string) {
	filter := &repository.ScanFilter{
		ScanType: strings.ToLower(c.Query("scan_type")),
		Outcome:  model.Outcome(strings.ToUpper(c.Query("outcome"))),
	}
	invalid := make(map[string]string)

	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			invalid["since"] = "must be an RFC 3339 timestamp"
		} else {
			filter.Since = &since
		}
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			invalid["limit"] = "must be a non-negative integer"
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			invalid["offset"] = "must be a non-negative integer"
		}
		filter.Offset = offset
	}

	if len(invalid) > 0 {
		return nil, invalid
	}
	return filter, nil
}

// GetScan returns one recorded scan
// @Summary Get a recorded scan
// @Tags Discovery
// @Produce json
// @Param scan_id path string true "Scan ID"
// @Success 200 {object} utils.APIResponse{data=service.ScanReport} "Scan retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid scan ID"
// @Failure 404 {object} utils.APIResponse "Scan not found"
// @Router /discovery/scans/{scan_id} [get]
func (h *DiscoveryHandler) GetScan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("scan_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid scan ID", err)
		return
	}

	scan, err := h.discoveryService.GetScan(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Scan not found", err)
			return
		}
		requestLogger(c, h.logger).Error("Failed to get scan", zap.Error(err), zap.String("scan_id", id.String()))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get scan", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Scan retrieved", service.NewScanReport(scan))
}

// GetScanners lists the registered discovery sources
// @Summary List scanners
// @Description List registered discovery sources and whether they can scan on this host
// @Tags Discovery
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{scanners=[]discovery.ScannerInfo,can_connect=bool}} "Scanners"
// @Router /discovery/scanners [get]
func (h *DiscoveryHandler) GetScanners(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Scanners retrieved", gin.H{
		"scanners":    h.discoveryService.Scanners(),
		"scan_types":  service.ScanTypes,
		"can_connect": h.discoveryService.CanConnect(),
	})
}

func requestLogger(c *gin.Context, logger *utils.ServiceLogger) *zap.Logger {
	return utils.LoggerWithRequestID(logger.Logger, c.GetString(utils.RequestIDKey))
}
