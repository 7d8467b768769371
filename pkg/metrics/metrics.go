// Package metrics provides observability primitives for the chat client.
//
// The package includes:
//   - Counter, Gauge, and Histogram metric types
//   - OpenTelemetry tracing support
//   - Structured logging with levels
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics from the server session, peer handshakes, and talks.
type Collector struct {
	// Server-session metrics
	loginsActive   atomic.Uint64
	loginsTotal    atomic.Uint64
	loginsFailed   atomic.Uint64
	handshakeLatency *Histogram

	// Talk metrics
	talksStarted        atomic.Uint64
	talksEnded           atomic.Uint64
	requestsRejected     atomic.Uint64

	// Traffic metrics
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	packetsSent   atomic.Uint64
	packetsRecv   atomic.Uint64

	// Security metrics
	replayAttacksBlocked atomic.Uint64
	authFailures         atomic.Uint64

	// Error metrics
	encryptErrors  atomic.Uint64
	decryptErrors  atomic.Uint64
	protocolErrors atomic.Uint64

	// Performance histograms
	encryptLatency *Histogram
	decryptLatency *Histogram

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		encryptLatency:   NewHistogram(LatencyBuckets),
		decryptLatency:   NewHistogram(LatencyBuckets),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// Default bucket configurations for histograms.
var (
	// HandshakeLatencyBuckets for handshake duration (milliseconds).
	HandshakeLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	// LatencyBuckets for encrypt/decrypt operations (microseconds).
	LatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
)

// --- Session Metrics ---

// SessionStarted increments active and total login counters.
func (c *Collector) SessionStarted() {
	c.loginsActive.Add(1)
	c.loginsTotal.Add(1)
}

// SessionEnded decrements the active login counter.
func (c *Collector) SessionEnded() {
	for {
		current := c.loginsActive.Load()
		if current == 0 {
			return
		}
		if c.loginsActive.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// SessionFailed records a failed login attempt.
func (c *Collector) SessionFailed() {
	c.loginsFailed.Add(1)
}

// TalkStarted records a talk session successfully entering state YES.
func (c *Collector) TalkStarted() {
	c.talksStarted.Add(1)
}

// TalkEnded records a talk session returning to state NO.
func (c *Collector) TalkEnded() {
	c.talksEnded.Add(1)
}

// RequestRejected records a peer talk request rejected per P6 (at-most-one pending).
func (c *Collector) RequestRejected() {
	c.requestsRejected.Add(1)
}

// RecordHandshakeLatency records a handshake duration.
func (c *Collector) RecordHandshakeLatency(d time.Duration) {
	c.handshakeLatency.Observe(float64(d.Milliseconds()))
}

// --- Traffic Metrics ---

// RecordBytesSent adds to the bytes sent counter.
func (c *Collector) RecordBytesSent(n uint64) {
	c.bytesSent.Add(n)
}

// RecordBytesReceived adds to the bytes received counter.
func (c *Collector) RecordBytesReceived(n uint64) {
	c.bytesReceived.Add(n)
}

// RecordPacketSent increments packets sent counter.
func (c *Collector) RecordPacketSent() {
	c.packetsSent.Add(1)
}

// RecordPacketReceived increments packets received counter.
func (c *Collector) RecordPacketReceived() {
	c.packetsRecv.Add(1)
}

// --- Security Metrics ---

// RecordReplayBlocked increments the replay attack counter.
func (c *Collector) RecordReplayBlocked() {
	c.replayAttacksBlocked.Add(1)
}

// RecordAuthFailure increments the authentication failure counter.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Add(1)
}

// --- Error Metrics ---

// RecordEncryptError increments encryption error counter.
func (c *Collector) RecordEncryptError() {
	c.encryptErrors.Add(1)
}

// RecordDecryptError increments decryption error counter.
func (c *Collector) RecordDecryptError() {
	c.decryptErrors.Add(1)
}

// RecordProtocolError increments protocol error counter.
func (c *Collector) RecordProtocolError() {
	c.protocolErrors.Add(1)
}

// --- Performance Metrics ---

// RecordEncryptLatency records encryption operation latency.
func (c *Collector) RecordEncryptLatency(d time.Duration) {
	c.encryptLatency.Observe(float64(d.Microseconds()))
}

// RecordDecryptLatency records decryption operation latency.
func (c *Collector) RecordDecryptLatency(d time.Duration) {
	c.decryptLatency.Observe(float64(d.Microseconds()))
}

// --- Snapshot ---

// Snapshot returns a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since collector creation
	Uptime time.Duration

	// Session metrics
	SessionsActive uint64
	SessionsTotal  uint64
	SessionsFailed uint64

	// Talk metrics
	TalksStarted     uint64
	TalksEnded       uint64
	RequestsRejected uint64

	// Traffic metrics
	BytesSent     uint64
	BytesReceived uint64
	PacketsSent   uint64
	PacketsRecv   uint64

	// Security metrics
	ReplayAttacksBlocked uint64
	AuthFailures         uint64

	// Error metrics
	EncryptErrors  uint64
	DecryptErrors  uint64
	ProtocolErrors uint64

	// Histogram summaries
	HandshakeLatency HistogramSummary
	EncryptLatency   HistogramSummary
	DecryptLatency   HistogramSummary

	// Labels
	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:            time.Now(),
		Uptime:               time.Since(c.createdAt),
		SessionsActive:       c.loginsActive.Load(),
		SessionsTotal:        c.loginsTotal.Load(),
		SessionsFailed:       c.loginsFailed.Load(),
		TalksStarted:         c.talksStarted.Load(),
		TalksEnded:           c.talksEnded.Load(),
		RequestsRejected:     c.requestsRejected.Load(),
		BytesSent:            c.bytesSent.Load(),
		BytesReceived:        c.bytesReceived.Load(),
		PacketsSent:          c.packetsSent.Load(),
		PacketsRecv:          c.packetsRecv.Load(),
		ReplayAttacksBlocked: c.replayAttacksBlocked.Load(),
		AuthFailures:         c.authFailures.Load(),
		EncryptErrors:        c.encryptErrors.Load(),
		DecryptErrors:        c.decryptErrors.Load(),
		ProtocolErrors:       c.protocolErrors.Load(),
		HandshakeLatency:     c.handshakeLatency.Summary(),
		EncryptLatency:       c.encryptLatency.Summary(),
		DecryptLatency:       c.decryptLatency.Summary(),
		Labels:               c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.loginsActive.Store(0)
	c.loginsTotal.Store(0)
	c.loginsFailed.Store(0)
	c.talksStarted.Store(0)
	c.talksEnded.Store(0)
	c.requestsRejected.Store(0)
	c.bytesSent.Store(0)
	c.bytesReceived.Store(0)
	c.packetsSent.Store(0)
	c.packetsRecv.Store(0)
	c.replayAttacksBlocked.Store(0)
	c.authFailures.Store(0)
	c.encryptErrors.Store(0)
	c.decryptErrors.Store(0)
	c.protocolErrors.Store(0)
	c.handshakeLatency.Reset()
	c.encryptLatency.Reset()
	c.decryptLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}
