// Package metrics exposes Prometheus counters for the gateway and mirrors
// them in process so they can be logged without a scraper.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors.
var (
	BackendFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_frames_total",
		Help: "CAN frames moved through a backend, by backend (pcan, serial, socketcan) and direction.",
	}, []string{"backend", "dir"})
	FDFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fd_frames_total",
		Help: "CAN-FD frames carried, by direction.",
	}, []string{"dir"})
	BusStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_status_total",
		Help: "Driver bus status reports (bus light, heavy, passive, off) by status.",
	}, []string{"status"})
	TCPFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tcp_frames_total",
		Help: "CAN frames exchanged with TCP clients, by direction.",
	}, []string{"dir"})
	HubDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_dropped_frames_total",
		Help: "Total CAN frames dropped by hub due to slow clients.",
	})
	HubKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_kicked_clients_total",
		Help: "Total clients disconnected due to backpressure kick policy.",
	})
	HubRejectedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_rejected_clients_total",
		Help: "Total client connection attempts rejected (e.g., max-clients).",
	})
	HubActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_clients",
		Help: "Current number of active connected clients.",
	})
	HubBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_broadcast_fanout",
		Help: "Number of clients targeted in the most recent broadcast.",
	})
	HubQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_max",
		Help: "Observed max queued frames among clients in the last broadcast.",
	})
	HubQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_queue_depth_avg",
		Help: "Approximate average queued frames per client in the last broadcast.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Rejected malformed frames (protocol violations, invalid length, truncated).",
	})
)

// Error label values. The set is fixed to bound cardinality.
const (
	ErrTCPRead        = "tcp_read"
	ErrTCPWrite       = "tcp_write"
	ErrHandshake      = "handshake"
	ErrSerialWrite    = "serial_write"
	ErrSerialOverflow = "serial_tx_overflow"
	ErrSerialRead     = "serial_read"
	ErrSocketCANWrite = "socketcan_write"
	ErrSocketCANOver  = "socketcan_tx_overflow"
	ErrSocketCANRead  = "socketcan_read"
	ErrPCANWrite      = "pcan_write"
	ErrPCANOverflow   = "pcan_tx_overflow"
	ErrPCANRead       = "pcan_read"
	ErrTrace          = "trace"
	ErrBackendWrite   = "backend_write"
)

var errorLabels = []string{
	ErrTCPRead, ErrTCPWrite, ErrHandshake,
	ErrSerialWrite, ErrSerialOverflow, ErrSerialRead,
	ErrSocketCANWrite, ErrSocketCANOver, ErrSocketCANRead,
	ErrPCANWrite, ErrPCANOverflow, ErrPCANRead,
	ErrTrace, ErrBackendWrite,
}

// mirrored pairs a Prometheus counter with a local copy for Snap.
type mirrored struct {
	c prometheus.Counter
	n atomic.Uint64
}

func mirror(c prometheus.Counter) *mirrored { return &mirrored{c: c} }

func (m *mirrored) add(n uint64) {
	m.c.Add(float64(n))
	m.n.Add(n)
}

func (m *mirrored) load() uint64 { return m.n.Load() }

var (
	pcanRx      = mirror(BackendFrames.WithLabelValues("pcan", "rx"))
	pcanTx      = mirror(BackendFrames.WithLabelValues("pcan", "tx"))
	serialRx    = mirror(BackendFrames.WithLabelValues("serial", "rx"))
	serialTx    = mirror(BackendFrames.WithLabelValues("serial", "tx"))
	socketCANRx = mirror(BackendFrames.WithLabelValues("socketcan", "rx"))
	socketCANTx = mirror(BackendFrames.WithLabelValues("socketcan", "tx"))
	fdRx        = mirror(FDFrames.WithLabelValues("rx"))
	fdTx        = mirror(FDFrames.WithLabelValues("tx"))
	tcpRx       = mirror(TCPFrames.WithLabelValues("rx"))
	tcpTx       = mirror(TCPFrames.WithLabelValues("tx"))
	hubDrop     = mirror(HubDroppedFrames)
	hubKick     = mirror(HubKickedClients)
	hubReject   = mirror(HubRejectedClients)
	malformed   = mirror(MalformedFrames)

	// Label-keyed counters sum into a single local value.
	busStatusTotal atomic.Uint64
	errorsTotal    atomic.Uint64

	hubClients atomic.Uint64
	fanout     atomic.Uint64
	qdMax      atomic.Uint64
	qdAvg      atomic.Uint64
)

// Snapshot is a copy of the local counters.
type Snapshot struct {
	PCANRx        uint64
	PCANTx        uint64
	FDRx          uint64
	FDTx          uint64
	BusStatus     uint64 // sum across statuses
	SerialRx      uint64
	SerialTx      uint64
	SocketCANRx   uint64
	SocketCANTx   uint64
	TCPRx         uint64
	TCPTx         uint64
	HubDrops      uint64
	HubKicks      uint64
	HubRejects    uint64
	Errors        uint64 // sum across error labels
	HubClients    uint64
	Fanout        uint64
	Malformed     uint64
	QueueDepthMax uint64
	QueueDepthAvg uint64
}

func Snap() Snapshot {
	return Snapshot{
		PCANRx:        pcanRx.load(),
		PCANTx:        pcanTx.load(),
		FDRx:          fdRx.load(),
		FDTx:          fdTx.load(),
		BusStatus:     busStatusTotal.Load(),
		SerialRx:      serialRx.load(),
		SerialTx:      serialTx.load(),
		SocketCANRx:   socketCANRx.load(),
		SocketCANTx:   socketCANTx.load(),
		TCPRx:         tcpRx.load(),
		TCPTx:         tcpTx.load(),
		HubDrops:      hubDrop.load(),
		HubKicks:      hubKick.load(),
		HubRejects:    hubReject.load(),
		Errors:        errorsTotal.Load(),
		HubClients:    hubClients.Load(),
		Fanout:        fanout.Load(),
		Malformed:     malformed.load(),
		QueueDepthMax: qdMax.Load(),
		QueueDepthAvg: qdAvg.Load(),
	}
}

func IncPCANRx()      { pcanRx.add(1) }
func IncPCANTx()      { pcanTx.add(1) }
func IncSerialRx()    { serialRx.add(1) }
func IncSerialTx()    { serialTx.add(1) }
func IncSocketCANRx() { socketCANRx.add(1) }
func IncSocketCANTx() { socketCANTx.add(1) }

// IncFDRx and IncFDTx count FD frames on top of the per-backend counters.
func IncFDRx() { fdRx.add(1) }
func IncFDTx() { fdTx.add(1) }

func IncTCPRx()        { tcpRx.add(1) }
func AddTCPTx(n int)   { tcpTx.add(uint64(n)) }
func IncHubDrop()      { hubDrop.add(1) }
func IncHubKick()      { hubKick.add(1) }
func IncHubReject()    { hubReject.add(1) }
func IncMalformed()    { malformed.add(1) }

// IncBusStatus counts a bus status report, e.g. "bus_off".
func IncBusStatus(status string) {
	BusStatus.WithLabelValues(status).Inc()
	busStatusTotal.Add(1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	errorsTotal.Add(1)
}

func SetHubClients(n int) {
	HubActiveClients.Set(float64(n))
	hubClients.Store(uint64(n))
}

func SetBroadcastFanout(n int) {
	HubBroadcastFanout.Set(float64(n))
	fanout.Store(uint64(n))
}

// SetQueueDepth records the max and average client queue depth.
func SetQueueDepth(max, avg int) {
	HubQueueDepthMax.Set(float64(max))
	HubQueueDepthAvg.Set(float64(avg))
	qdMax.Store(uint64(max))
	qdAvg.Store(uint64(avg))
}

// InitBuildInfo sets the build info gauge and pre-registers the error series
// so they are exported at zero. Call once at startup.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range errorLabels {
		Errors.WithLabelValues(lbl).Add(0)
	}
}
