package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kstaniek/go-pcan-server/internal/bittiming"
	"github.com/kstaniek/go-pcan-server/internal/hub"
	"github.com/kstaniek/go-pcan-server/internal/logging"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
	"github.com/kstaniek/go-pcan-server/internal/peak"
)

const envPrefix = "PCAN_SERVER_"

type appConfig struct {
	configFile string
	backend    string

	pcanChannel  string
	bitrate      string
	timing       string
	fd           bool
	fdClock      int
	fdTiming     string
	hwType       uint
	ioPort       uint
	irq          uint
	pollInterval time.Duration

	canIf     string
	canReadTO time.Duration

	serialDev    string
	baud         int
	serialReadTO time.Duration

	listenAddr      string
	logFormat       string
	logLevel        string
	metricsAddr     string
	hubBuffer       int
	hubPolicy       string
	logMetricsEvery time.Duration
	maxClients      int
	handshakeTO     time.Duration
	clientReadTO    time.Duration
	mdnsEnable      bool
	mdnsName        string
	traceFile       string
}

func newFlagSet(c *appConfig) *flag.FlagSet {
	fs := flag.NewFlagSet("pcan-server", flag.ContinueOnError)
	fs.StringVar(&c.configFile, "config", "", "YAML config file; keys are flag names")
	fs.StringVar(&c.backend, "backend", backendPCAN, "CAN backend: pcan|socketcan|serial")

	fs.StringVar(&c.pcanChannel, "pcan-channel", "usb1", "PCAN channel: usb1..usb16, pci1..pci16, lan1..lan16, isa1..isa8, dng1, pcc1..pcc2")
	fs.StringVar(&c.bitrate, "bitrate", "500k", "Classic CAN bit rate (1M, 800K, 500K, 250K, 125K, 100K, 95K, 83K, 50K, 47K, 33K, 20K, 10K, 5K)")
	fs.StringVar(&c.timing, "timing", "", "Custom classic timing brp,sjw,tseg1,tseg2 (overrides -bitrate)")
	fs.BoolVar(&c.fd, "fd", false, "Open the channel in CAN-FD mode")
	fs.IntVar(&c.fdClock, "fd-clock", bittiming.FDClock, "CAN-FD controller clock in Hz")
	fs.StringVar(&c.fdTiming, "fd-timing", "2,16,63,16,2,4,15,4", "CAN-FD timing nom_brp,nom_sjw,nom_tseg1,nom_tseg2,data_brp,data_sjw,data_tseg1,data_tseg2")
	fs.UintVar(&c.hwType, "hw-type", 0, "Hardware type for ISA/Dongle channels")
	fs.UintVar(&c.ioPort, "io-port", 0, "I/O port for ISA/Dongle channels (e.g. 0x378)")
	fs.UintVar(&c.irq, "irq", 0, "Interrupt for ISA/Dongle channels")
	fs.DurationVar(&c.pollInterval, "poll-interval", time.Millisecond, "Idle delay between PCAN reads when the receive queue is empty")

	fs.StringVar(&c.canIf, "can-if", "can0", "SocketCAN interface (when -backend=socketcan)")
	fs.DurationVar(&c.canReadTO, "can-read-timeout", 100*time.Millisecond, "SocketCAN read timeout")

	fs.StringVar(&c.serialDev, "serial", "/dev/ttyUSB0", "Serial device path")
	fs.IntVar(&c.baud, "baud", 115200, "Serial baud rate")
	fs.DurationVar(&c.serialReadTO, "serial-read-timeout", 50*time.Millisecond, "Serial read timeout")

	fs.StringVar(&c.listenAddr, "listen", ":20000", "TCP listen address")
	fs.StringVar(&c.logFormat, "log-format", "text", "Log format: text|json")
	fs.StringVar(&c.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	fs.IntVar(&c.hubBuffer, "hub-buffer", 512, "Per-client hub buffer (frames)")
	fs.StringVar(&c.hubPolicy, "hub-policy", "drop", "Backpressure policy: drop|kick")
	fs.DurationVar(&c.logMetricsEvery, "log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	fs.IntVar(&c.maxClients, "max-clients", 0, "Maximum simultaneous TCP clients (0 = unlimited)")
	fs.DurationVar(&c.handshakeTO, "handshake-timeout", 3*time.Second, "Client handshake timeout")
	fs.DurationVar(&c.clientReadTO, "client-read-timeout", 60*time.Second, "Per-connection read deadline")
	fs.BoolVar(&c.mdnsEnable, "mdns-enable", false, "Enable mDNS/Avahi advertisement")
	fs.StringVar(&c.mdnsName, "mdns-name", "", "mDNS instance name (default pcan-server-<hostname>)")
	fs.StringVar(&c.traceFile, "trace-file", "", "Record every RX/TX frame to this file; empty disables")
	return fs
}

func parseFlags() (*appConfig, bool) {
	cfg, showVersion, err := loadConfig(os.Args[1:], os.LookupEnv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	return cfg, showVersion
}

// loadConfig parses args and fills every flag not given on the command line
// from the config file and then the environment. Precedence is
// flags > env > file > defaults.
func loadConfig(args []string, lookupEnv func(string) (string, bool), out io.Writer) (*appConfig, bool, error) {
	cfg := &appConfig{}
	fs := newFlagSet(cfg)
	fs.SetOutput(out)
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if *showVersion {
		return cfg, true, nil
	}
	set := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = struct{}{} })

	// The file path itself may come from the environment.
	if _, ok := set["config"]; !ok {
		if v, ok := lookupEnv(envName("config")); ok && strings.TrimSpace(v) != "" {
			cfg.configFile = strings.TrimSpace(v)
		}
	}
	var file map[string]string
	if cfg.configFile != "" {
		var err error
		if file, err = readConfigFile(cfg.configFile); err != nil {
			return nil, false, err
		}
		for k := range file {
			if fs.Lookup(k) == nil || !overridable(k) {
				return nil, false, fmt.Errorf("config file %s: unknown key %q", cfg.configFile, k)
			}
		}
	}
	if err := applyOverrides(fs, set, file, lookupEnv); err != nil {
		return nil, false, err
	}
	if err := cfg.validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func overridable(name string) bool { return name != "config" && name != "version" }

// envName maps a flag name to its variable, e.g. can-if -> PCAN_SERVER_CAN_IF.
func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func applyOverrides(fs *flag.FlagSet, set map[string]struct{}, file map[string]string, lookupEnv func(string) (string, bool)) error {
	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if _, ok := set[f.Name]; ok || !overridable(f.Name) {
			return
		}
		if v, ok := file[f.Name]; ok {
			if err := setFlag(f, v); err != nil {
				errs = append(errs, fmt.Errorf("config file key %s: %w", f.Name, err))
			}
		}
		// Empty variables are ignored.
		if v, ok := lookupEnv(envName(f.Name)); ok && strings.TrimSpace(v) != "" {
			if err := setFlag(f, strings.TrimSpace(v)); err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", envName(f.Name), err))
			}
		}
	})
	return errors.Join(errs...)
}

func setFlag(f *flag.Flag, v string) error {
	if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
		switch strings.ToLower(v) {
		case "yes", "on":
			v = "true"
		case "no", "off":
			v = "false"
		}
	}
	return f.Value.Set(v)
}

// readConfigFile loads a flat YAML mapping of flag names to scalar values.
func readConfigFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case nil:
			continue
		case map[string]any, []any:
			return nil, fmt.Errorf("config file %s: %s must be a scalar", path, k)
		}
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

// validate performs semantic validation of the parsed configuration.
// It does not open devices or listeners.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	if _, err := logging.ParseLevel(c.logLevel); err != nil {
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if _, ok := hub.ParsePolicy(c.hubPolicy); !ok {
		return fmt.Errorf("invalid hub-policy: %s", c.hubPolicy)
	}
	switch c.backend {
	case backendPCAN:
		if _, err := c.peakConfig(); err != nil {
			return err
		}
		if c.pollInterval <= 0 {
			return errors.New("poll-interval must be > 0")
		}
	case backendSocketCAN:
		if c.canIf == "" {
			return errors.New("can-if must not be empty")
		}
		if c.canReadTO <= 0 {
			return errors.New("can-read-timeout must be > 0")
		}
	case backendSerial:
		if c.fd {
			return errors.New("fd is not supported by the serial backend")
		}
		if c.baud <= 0 {
			return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
		}
		if c.serialReadTO <= 0 {
			return errors.New("serial-read-timeout must be > 0")
		}
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	if c.hubBuffer <= 0 {
		return fmt.Errorf("hub-buffer must be > 0 (got %d)", c.hubBuffer)
	}
	if c.handshakeTO <= 0 {
		return errors.New("handshake-timeout must be > 0")
	}
	if c.clientReadTO <= 0 {
		return errors.New("client-read-timeout must be > 0")
	}
	if c.maxClients < 0 {
		return errors.New("max-clients must be >= 0")
	}
	if c.logMetricsEvery < 0 {
		return errors.New("log-metrics-interval must be >= 0")
	}
	return nil
}

// peakConfig resolves the PCAN channel and timing options. FD mode uses
// -fd-timing, otherwise -timing wins over the -bitrate catalog entry.
func (c *appConfig) peakConfig() (peak.Config, error) {
	if _, _, err := peak.ParseChannel(c.pcanChannel); err != nil {
		return peak.Config{}, err
	}
	if c.hwType > 0xFF || c.irq > 0xFFFF || uint64(c.ioPort) > 0xFFFFFFFF {
		return peak.Config{}, errors.New("hw-type, io-port or irq out of range")
	}
	pc := peak.Config{
		Channel: c.pcanChannel,
		FD:      c.fd,
		HWType:  pcan.HardwareType(c.hwType),
		IOPort:  uint32(c.ioPort),
		IRQ:     uint16(c.irq),
	}
	if c.fd {
		if c.fdClock <= 0 {
			return peak.Config{}, fmt.Errorf("fd-clock must be > 0 (got %d)", c.fdClock)
		}
		bt, err := parseFDTiming(c.fdTiming)
		if err != nil {
			return peak.Config{}, fmt.Errorf("invalid fd-timing: %w", err)
		}
		pc.BitrateFD = bt.BitrateString(c.fdClock)
		return pc, nil
	}
	if c.timing != "" {
		bt, err := parseTiming(c.timing)
		if err != nil {
			return peak.Config{}, fmt.Errorf("invalid timing: %w", err)
		}
		pc.Baudrate = bt.BTR0BTR1()
		return pc, nil
	}
	b, err := pcan.ParseBaudrate(c.bitrate)
	if err != nil {
		return peak.Config{}, err
	}
	pc.Baudrate = b.BTR0BTR1()
	return pc, nil
}

func parseTiming(s string) (bittiming.BitTiming, error) {
	v, err := parseUints(s, 16, 8, 8, 8)
	if err != nil {
		return bittiming.BitTiming{}, err
	}
	return bittiming.New(uint16(v[0]), uint8(v[1]), uint8(v[2]), uint8(v[3]))
}

func parseFDTiming(s string) (bittiming.FDBitTiming, error) {
	v, err := parseUints(s, 16, 8, 16, 8, 16, 8, 8, 8)
	if err != nil {
		return bittiming.FDBitTiming{}, err
	}
	return bittiming.NewFD(uint16(v[0]), uint8(v[1]), uint16(v[2]), uint8(v[3]),
		uint16(v[4]), uint8(v[5]), uint8(v[6]), uint8(v[7]))
}

// parseUints splits a comma-separated list, checking each value against the
// bit size at the same position.
func parseUints(s string, bits ...int) ([]uint64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != len(bits) {
		return nil, fmt.Errorf("want %d comma-separated values, got %d", len(bits), len(parts))
	}
	out := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, bits[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
