package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_pcan-server._tcp"
	mdnsDomain      = "local."
)

// mdnsRegister is a hook for tests.
var mdnsRegister = zeroconf.Register

// mdnsMeta builds the TXT records advertised next to the service.
func mdnsMeta(cfg *appConfig) []string {
	meta := []string{
		"backend=" + cfg.backend,
		"fd=" + strconv.FormatBool(cfg.fd),
		"version=" + version,
		"commit=" + commit,
	}
	switch cfg.backend {
	case backendPCAN:
		meta = append(meta, "channel="+cfg.pcanChannel)
	case backendSocketCAN:
		meta = append(meta, "channel="+cfg.canIf)
	}
	return meta
}

// mdnsInstance returns the configured instance name or one derived from
// the host name.
func mdnsInstance(cfg *appConfig) string {
	if cfg.mdnsName != "" {
		return cfg.mdnsName
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return "pcan-server-" + host
}

// startMDNS advertises the gateway on port until ctx is done.
func startMDNS(ctx context.Context, cfg *appConfig, port int) (string, error) {
	name := mdnsInstance(cfg)
	svc, err := mdnsRegister(name, mdnsServiceType, mdnsDomain, port, mdnsMeta(cfg), nil)
	if err != nil {
		return "", fmt.Errorf("mdns register: %w", err)
	}
	context.AfterFunc(ctx, svc.Shutdown)
	return name, nil
}
