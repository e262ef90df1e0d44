// internal/mdns/advertiser.go
package mdns

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"bt-discovery/internal/config"
)

// Advertiser announces the HTTP API on the local network via DNS-SD
type Advertiser struct {
	cfg    *config.MDNSConfig
	logger *zap.Logger
}

// NewAdvertiser creates a new advertiser
func NewAdvertiser(cfg *config.MDNSConfig, logger *zap.Logger) *Advertiser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advertiser{cfg: cfg, logger: logger.With(zap.String("component", "mdns"))}
}

// Advertise registers the service and blocks until ctx is cancelled
func (a *Advertiser) Advertise(ctx context.Context, port string, metadata map[string]string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum <= 0 || portNum > 65535 {
		return fmt.Errorf("mdns: invalid port %q", port)
	}

	server, err := zeroconf.Register(a.cfg.Instance, a.cfg.Service, a.cfg.Domain, portNum, TXTRecords(metadata), nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	defer server.Shutdown()

	a.logger.Info("mDNS advertising",
		zap.String("instance", a.cfg.Instance),
		zap.String("service", a.cfg.Service),
		zap.Int("port", portNum),
	)

	<-ctx.Done()
	a.logger.Info("mDNS advertisement stopped")
	return nil
}

// TXTRecords renders metadata as sorted key=value records
func TXTRecords(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	txt := make([]string, 0, len(keys))
	for _, k := range keys {
		txt = append(txt, k+"="+metadata[k])
	}
	return txt
}
