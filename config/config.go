// Package config holds imageflow's top-level configuration, following the
// shape of the teacher's config.Config: a single struct with safe zero
// values, a Default() constructor, and a Validate() function.
package config

import (
	"errors"
	"time"
)

// DecoderName identifies a registered codec backend, used to build the
// named-decoder priority list that resolves spec.md's Open Question about
// multiple parallel codec implementations (e.g. vips vs stdlib/x-image).
type DecoderName string

const (
	DecoderVips   DecoderName = "vips"
	DecoderStdlib DecoderName = "stdlib"
)

// SizeLimit bounds a decode/frame/encode operation per spec §6's
// builder_config.security object.
type SizeLimit struct {
	MaxWidth      int
	MaxHeight     int
	MaxMegapixels float64
}

// Exceeds reports whether w x h violates the limit. A zero-value SizeLimit
// never triggers (no limit configured).
func (s SizeLimit) Exceeds(w, h int) bool {
	if s.MaxWidth > 0 && w > s.MaxWidth {
		return true
	}
	if s.MaxHeight > 0 && h > s.MaxHeight {
		return true
	}
	if s.MaxMegapixels > 0 && float64(w)*float64(h) > s.MaxMegapixels*1_000_000 {
		return true
	}
	return false
}

// Security mirrors builder_config.security from spec §6.
type Security struct {
	MaxDecodeSize SizeLimit
	MaxFrameSize  SizeLimit
	MaxEncodeSize SizeLimit
}

// GraphRecording mirrors builder_config.graph_recording from spec §6; it
// controls whether the engine keeps graphviz snapshots after each pass for
// diagnostics (see graph.(*Graph).DOT()).
type GraphRecording struct {
	RecordGraphVersions     bool
	RecordPreOptimizeGraph  bool
	RecordPostOptimizeGraph bool
}

// BuilderConfig is the per-request override of engine behavior, carried in
// the JSON build request (spec §6).
type BuilderConfig struct {
	GraphRecording GraphRecording
	Security       Security
}

// Config is the top-level, process-wide configuration. All fields have safe
// defaults, so callers can start from Config{} and override only what they
// need, exactly as the teacher's config.Config documents.
type Config struct {
	// Worker pool controls (async Job submission path, §5).
	WorkerCount int
	QueueSize   int
	JobTimeout  time.Duration

	// Retry.
	MaxRetries int
	RetryDelay time.Duration

	// Graph engine controls.
	MaxPlanningPasses int // default 6, per spec §4.H

	// Default per-request security limits; a request's own builder_config
	// overrides these per-field.
	Security Security

	// Codec enablement (§4.I "enabled-codec allowlist per direction").
	DisabledDecoders map[string]bool
	DisabledEncoders map[string]bool

	// DecoderPriority lists codec backends in order of preference. Nothing
	// in this module reads it: codec.Registry resolves each format to the
	// decoder factory registered for it last.
	DecoderPriority []DecoderName

	// Streaming / memory limits.
	MaxImageBytes int64
	ChunkSize     int

	// Local filesystem root for Filename-backed I/O handles (§3's "seekable
	// file" source / "sequentially-written file" sink). Empty means file
	// I/O is not permitted (NullArgument on Filename io).
	LocalRootDir string

	// Logging.
	LogLevel string
}

// Default returns a Config with imageflow's production defaults.
func Default() Config {
	return Config{
		WorkerCount:       0, // resolved to runtime.NumCPU()
		QueueSize:         256,
		JobTimeout:        30 * time.Second,
		MaxRetries:        0, // no automatic retry of node execute, per spec §4.H
		RetryDelay:        200 * time.Millisecond,
		MaxPlanningPasses: 6,
		DecoderPriority:   []DecoderName{DecoderStdlib},
		ChunkSize:         32 * 1024,
		LogLevel:          "info",
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if c.ChunkSize <= 0 {
		return errors.New("config: ChunkSize must be positive")
	}
	if c.MaxPlanningPasses <= 0 {
		return errors.New("config: MaxPlanningPasses must be positive")
	}
	return nil
}
