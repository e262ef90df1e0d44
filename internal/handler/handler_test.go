package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bt-discovery/internal/bluetooth"
	"bt-discovery/internal/config"
	"bt-discovery/internal/discovery"
	"bt-discovery/internal/events"
	"bt-discovery/internal/model"
	"bt-discovery/internal/repository"
	"bt-discovery/internal/service"
	"bt-discovery/internal/utils"
)

type testServer struct {
	engine *gin.Engine
	svc    *service.DiscoveryService
	bus    *events.EventBus
	ws     *WebSocketHandler
}

func newTestServer(t *testing.T, backend bluetooth.Backend) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	cfg := config.Default()
	cfg.Discovery.ScanTimeout = 0

	manager := discovery.NewScannerManager(logger)
	manager.RegisterScanner(bluetooth.NewScanner(backend, bluetooth.WithLogger(logger)))

	bus := events.NewEventBus(logger)
	go bus.Start()
	t.Cleanup(bus.Stop)

	scanners := &service.Scanners{
		Manager:   manager,
		Connector: bluetooth.NewFakeConnector("00:11:22:33:44:55"),
		Backend:   backend.Name(),
	}
	svc := service.NewDiscoveryService(scanners, repository.NewMemoryScanRepository(logger), bus, cfg, logger)

	discoveryHandler := NewDiscoveryHandler(svc, logger)
	deviceHandler := NewDeviceHandler(svc, logger)
	wsHandler := NewWebSocketHandler(bus, nil, logger)

	engine := gin.New()
	NewHealthHandler(nil, svc, cfg, logger).RegisterRoutes(engine)
	api := engine.Group("/api/v1")
	api.GET("/discovery/scan", discoveryHandler.ScanDevices)
	api.GET("/discovery/scan/json", discoveryHandler.ScanDevicesJSON)
	api.POST("/discovery/scan/start", discoveryHandler.StartScan)
	api.GET("/discovery/scans", discoveryHandler.ListScans)
	api.GET("/discovery/scans/:scan_id", discoveryHandler.GetScan)
	api.GET("/discovery/scanners", discoveryHandler.GetScanners)
	api.POST("/device-info/decode", deviceHandler.DecodeDeviceInfo)
	api.POST("/devices/disconnect", deviceHandler.DisconnectDevice)
	api.POST("/devices/:identifier/connect", deviceHandler.ConnectDevice)
	engine.GET("/ws/events", wsHandler.HandleEventConnection)

	return &testServer{engine: engine, svc: svc, bus: bus, ws: wsHandler}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// envelope decodes the standard response with a typed payload
func envelope[T any](t *testing.T, w *httptest.ResponseRecorder) (utils.APIResponse, T) {
	t.Helper()
	var raw struct {
		utils.APIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))

	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data))
	}
	return raw.APIResponse, data
}

func printerBackend() *bluetooth.FakeBackend {
	return bluetooth.NewFakeBackend("").AddPass(
		bluetooth.Record{Address: "00:11:22:33:44:55", Name: "Printer"},
	)
}

func TestScanDevices(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodGet, "/api/v1/discovery/scan?type=bluetooth", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp, report := envelope[service.ScanReport](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, model.OutcomeDevicesFound, report.Outcome)
	require.Len(t, report.Devices, 1)
	assert.Equal(t, "Printer", report.Devices[0].BTFriendlyName)
	assert.Equal(t, model.InterfaceBT, report.Devices[0].InterfaceType)
}

func TestScanDevices_FailureIsStillOK(t *testing.T) {
	s := newTestServer(t, bluetooth.NewFakeBackend("").AddFailure(bluetooth.ErrAdapterUnavailable))

	w := s.do(t, http.MethodGet, "/api/v1/discovery/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, report := envelope[service.ScanReport](t, w)
	assert.Equal(t, model.OutcomeFailed, report.Outcome)
	assert.Equal(t, "bluetooth not available or no adapter found", report.Diagnostic)
	assert.Empty(t, report.Devices)
}

func TestScanDevices_BadType(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodGet, "/api/v1/discovery/scan?type=wifi", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/discovery/scan?type=usb", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanDevicesJSON(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodGet, "/api/v1/discovery/scan/json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(model.OutcomeDevicesFound), w.Header().Get(OutcomeHeader))

	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Len(t, items[0], 5)
	assert.Equal(t, "Printer", items[0]["BTFriendlyName"])
}

func TestScanDevicesJSON_EmptyIsArray(t *testing.T) {
	s := newTestServer(t, bluetooth.NewFakeBackend(""))

	w := s.do(t, http.MethodGet, "/api/v1/discovery/scan/json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	assert.Equal(t, string(model.OutcomeNoDevices), w.Header().Get(OutcomeHeader))
}

func TestStartScanAndHistory(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodPost, "/api/v1/discovery/scan/start", []byte(`{"scan_type":"bluetooth"}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	_, started := envelope[service.ScanStarted](t, w)
	require.NotEqual(t, uuid.Nil, started.ScanID)

	s.svc.Wait()

	w = s.do(t, http.MethodGet, "/api/v1/discovery/scans/"+started.ScanID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, report := envelope[service.ScanReport](t, w)
	assert.Equal(t, started.ScanID, report.ScanID)
	assert.Len(t, report.Devices, 1)

	w = s.do(t, http.MethodGet, "/api/v1/discovery/scans?outcome=devices_found&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, page := envelope[struct {
		Scans []service.ScanReport `json:"scans"`
		Total int                  `json:"total"`
	}](t, w)
	assert.Equal(t, 1, page.Total)
	assert.Len(t, page.Scans, 1)

	w = s.do(t, http.MethodGet, "/api/v1/discovery/scans?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartScan_DefaultTypeIsReported(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodPost, "/api/v1/discovery/scan/start", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	_, started := envelope[service.ScanStarted](t, w)
	assert.Equal(t, "bluetooth", started.ScanType)
	s.svc.Wait()

	w = s.do(t, http.MethodPost, "/api/v1/discovery/scan/start?type=BLUETOOTH", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	_, started = envelope[service.ScanStarted](t, w)
	assert.Equal(t, "bluetooth", started.ScanType)
	s.svc.Wait()
}

func TestGetScan_Errors(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodGet, "/api/v1/discovery/scans/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/discovery/scans/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp, _ := envelope[struct{}](t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestGetScanners(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodGet, "/api/v1/discovery/scanners", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data := envelope[struct {
		Scanners   []discovery.ScannerInfo `json:"scanners"`
		CanConnect bool                    `json:"can_connect"`
	}](t, w)
	assert.True(t, data.CanConnect)
	require.Len(t, data.Scanners, 1)
	assert.Equal(t, "bluetooth", data.Scanners[0].Type)
}

func TestDecodeDeviceInfo(t *testing.T) {
	s := newTestServer(t, printerBackend())

	body := []byte(`{"comPortName":"COM3","interfaceType":"x","machineType":99,"extra":true}`)
	w := s.do(t, http.MethodPost, "/api/v1/device-info/decode", body)
	require.Equal(t, http.StatusOK, w.Code)

	_, decoded := envelope[DecodeResponse](t, w)
	assert.Equal(t, "COM3", decoded.Device.ComPortName)
	assert.Equal(t, model.InterfaceUnknown, decoded.Device.InterfaceType)
	assert.Equal(t, model.MachineUnknown, decoded.Device.MachineType)
	assert.ElementsMatch(t, []string{"interfaceType", "machineType"}, decoded.Fallbacks)

	w = s.do(t, http.MethodPost, "/api/v1/device-info/decode", []byte(`[1,2]`))
	require.Equal(t, http.StatusOK, w.Code)
	_, decoded = envelope[DecodeResponse](t, w)
	assert.Equal(t, model.NewDeviceInfo(), decoded.Device)
}

func TestDecodeDeviceInfo_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, printerBackend())

	body := []byte(`{"comPortName":"` + strings.Repeat("x", maxDecodeBody) + `"}`)
	w := s.do(t, http.MethodPost, "/api/v1/device-info/decode", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	resp, _ := envelope[struct{}](t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", resp.Error.Code)

	padded := []byte(`{"comPortName":"COM3"}` + strings.Repeat(" ", maxDecodeBody-22))
	require.Len(t, padded, maxDecodeBody)
	w = s.do(t, http.MethodPost, "/api/v1/device-info/decode", padded)
	require.Equal(t, http.StatusOK, w.Code)
	_, decoded := envelope[DecodeResponse](t, w)
	assert.Equal(t, "COM3", decoded.Device.ComPortName)
}

func TestConnectAndDisconnect(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodPost, "/api/v1/devices/00-11-22-33-44-55/connect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, result := envelope[service.ConnectResult](t, w)
	assert.Equal(t, "00:11:22:33:44:55", result.Identifier)
	assert.Equal(t, "connected", result.Status)

	w = s.do(t, http.MethodPost, "/api/v1/devices/bogus/connect", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/devices/AA:AA:AA:AA:AA:AA/connect", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/devices/disconnect", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/devices/disconnect", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHealth_InMemory(t *testing.T) {
	s := newTestServer(t, printerBackend())

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Checks["bluetooth"].Status)
	assert.Equal(t, "In-memory scan history", health.Checks["database"].Message)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/live", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/db", nil).Code)
}

func TestWebSocketEvents(t *testing.T) {
	s := newTestServer(t, printerBackend())
	go s.ws.Run()
	require.Eventually(t, func() bool { return s.bus.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	server := httptest.NewServer(s.engine)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events?topics=" + events.ScanCompleted
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome WebSocketMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)

	require.NoError(t, conn.WriteJSON(&WebSocketMessage{Type: "ping", RequestID: "r1"}))
	var pong WebSocketMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
	assert.Equal(t, "r1", pong.RequestID)

	w := s.do(t, http.MethodGet, "/api/v1/discovery/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// scan.started is filtered out by the topic subscription
	var msg struct {
		Type string       `json:"type"`
		Data events.Event `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.ScanCompleted, msg.Type)
	assert.Equal(t, string(model.OutcomeDevicesFound), msg.Data.Data["outcome"])

	assert.Equal(t, 1, s.ws.GetConnectionStats().TotalConnections)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

func TestConnectionManager_UnregisterThenBroadcast(t *testing.T) {
	cm := NewConnectionManager()
	client := &Client{ID: "c1", Send: make(chan []byte, 1)}
	cm.Register(client)

	assert.Empty(t, cm.Broadcast(events.ScanStarted, []byte("a")))
	assert.Equal(t, []string{"c1"}, cm.Broadcast(events.ScanStarted, []byte("b")))

	cm.Unregister(client)
	cm.Unregister(client)
	assert.Empty(t, cm.Broadcast(events.ScanStarted, []byte("c")))
	assert.False(t, cm.Send(client, []byte("d")))

	client.Subscribe(events.ScanFailed)
	assert.False(t, client.Wants(events.ScanStarted))
	assert.True(t, client.Wants(events.ScanFailed))
}
