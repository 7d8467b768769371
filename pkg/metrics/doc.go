// Package metrics provides observability primitives for the stschat client.
//
// # Overview
//
// The metrics package offers:
//   - Metrics collection (counters, gauges, histograms)
//   - Distributed tracing support (OpenTelemetry-compatible interface)
//   - Structured logging with levels
//
// # Quick Start
//
// Basic usage with the global collector:
//
//	import "github.com/sts-chat/go-client/pkg/metrics"
//
//	metrics.Global().SessionStarted()
//	metrics.Global().RecordHandshakeLatency(150 * time.Millisecond)
//	metrics.Global().RecordBytesSent(1024)
//
// # Metrics Collection
//
//	collector := metrics.NewCollector(metrics.Labels{
//		"instance": "laptop-1",
//	})
//
//	collector.SessionStarted()
//	collector.SessionEnded()
//	collector.RecordHandshakeLatency(d)
//	collector.RecordBytesSent(n)
//	collector.RecordBytesReceived(n)
//	collector.RecordReplayBlocked()
//	collector.RecordAuthFailure()
//	collector.TalkStarted()
//	collector.TalkEnded()
//
//	snap := collector.Snapshot()
//
// # Tracing
//
// The package provides a Tracer interface compatible with OpenTelemetry:
//
//	tracer := metrics.NewSimpleTracer()
//	metrics.SetTracer(tracer)
//
//	// OpenTelemetry adapter (uses the global provider); build with -tags otel.
//	otelTracer := metrics.NewOTelTracer("stschat-client")
//	metrics.SetTracer(otelTracer)
//
//	ctx, end := metrics.StartSpan(ctx, metrics.SpanHandshakeInitiator)
//	defer end(nil) // or end(err) on error
//
// # Structured Logging
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//		metrics.WithFields(metrics.Fields{"service": "stschat-client"}),
//	)
//
//	logger.Info("talk established", metrics.Fields{
//		"peer":   peerUsername,
//		"cipher": "AES-256-GCM",
//	})
//
//	talkLog := logger.Named("talk").With(metrics.Fields{"peer": peerUsername})
//	talkLog.Debug("encrypting outgoing line")
package metrics
