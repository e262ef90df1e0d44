// internal/handler/device_handler.go
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bt-discovery/internal/bluetooth"
	"bt-discovery/internal/model"
	"bt-discovery/internal/service"
	"bt-discovery/internal/utils"
)

// maxDecodeBody bounds the device info payload accepted by the decoder
const maxDecodeBody = 64 << 10

// DeviceHandler handles device info decoding and connection requests
type DeviceHandler struct {
	discoveryService *service.DiscoveryService
	logger           *utils.ServiceLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(discoveryService *service.DiscoveryService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		discoveryService: discoveryService,
		logger:           utils.NewServiceLogger(logger, "device-handler"),
	}
}

// DecodeResponse is the result of a lenient device info decode
type DecodeResponse struct {
	Device    model.DeviceInfo `json:"device"`
	Fallbacks []string         `json:"fallbacks"`
}

// DecodeDeviceInfo decodes a device info document
// @Summary Decode device info
// @Description Decode a device info JSON document. Decoding never fails: missing, mistyped or out-of-range fields take their defaults and are listed in fallbacks.
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body model.DeviceInfo true "Device info document"
// @Success 200 {object} utils.APIResponse{data=DecodeResponse} "Decoded"
// @Failure 400 {object} utils.APIResponse "Unreadable body"
// @Failure 413 {object} utils.APIResponse "Body too large"
// @Router /device-info/decode [post]
func (h *DeviceHandler) DecodeDeviceInfo(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxDecodeBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	device, fallbacks := model.Inspect(body)
	if fallbacks == nil {
		fallbacks = []string{}
	}

	utils.SuccessResponse(c, http.StatusOK, "Device info decoded", &DecodeResponse{
		Device:    device,
		Fallbacks: fallbacks,
	})
}

// ConnectDevice initiates a connection to a device
// @Summary Connect to a device
// @Description Initiate a connection to a device identified by a peripheral UUID or a MAC address
// @Tags Devices
// @Produce json
// @Param identifier path string true "Peripheral UUID or MAC address"
// @Success 200 {object} utils.APIResponse{data=service.ConnectResult} "Connected"
// @Failure 400 {object} utils.APIResponse "Invalid identifier"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 501 {object} utils.APIResponse "Backend cannot connect"
// @Failure 504 {object} utils.APIResponse "Connection timed out"
// @Router /devices/{identifier}/connect [post]
func (h *DeviceHandler) ConnectDevice(c *gin.Context) {
	identifier := c.Param("identifier")

	normalized, err := h.discoveryService.Connect(c.Request.Context(), identifier)
	if err != nil {
		h.respondConnectError(c, "Failed to connect device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device connected", &service.ConnectResult{
		Identifier: normalized,
		Status:     "connected",
	})
}

// DisconnectDevice drops the current connection
// @Summary Disconnect the connected device
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse "Disconnected"
// @Failure 409 {object} utils.APIResponse "No connected device"
// @Failure 501 {object} utils.APIResponse "Backend cannot connect"
// @Router /devices/disconnect [post]
func (h *DeviceHandler) DisconnectDevice(c *gin.Context) {
	if err := h.discoveryService.Disconnect(c.Request.Context()); err != nil {
		h.respondConnectError(c, "Failed to disconnect device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device disconnected", &service.ConnectResult{
		Status: "disconnected",
	})
}

func (h *DeviceHandler) respondConnectError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, bluetooth.ErrInvalidIdentifier):
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid device identifier", err)
	case errors.Is(err, service.ErrConnectorMissing):
		utils.ErrorResponse(c, http.StatusNotImplemented, message, err)
	case errors.Is(err, bluetooth.ErrDeviceNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
	case errors.Is(err, bluetooth.ErrNotConnected):
		utils.ErrorResponse(c, http.StatusConflict, message, err)
	case errors.Is(err, context.DeadlineExceeded):
		utils.ErrorResponse(c, http.StatusGatewayTimeout, message, err)
	default:
		requestLogger(c, h.logger).Error(message, zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, message, err)
	}
}
