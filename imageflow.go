// Package imageflow is the root facade: a fully wired Processor exposing
// the Job Context lifecycle, the graph engine, and the JSON method
// interface as one entry point, the counterpart of the teacher's
// top-level imageprocessor.Processor facade.
package imageflow

import (
	"context"
	"net/http"

	"github.com/imazen-go/imageflow/codec"
	codecdecoder "github.com/imazen-go/imageflow/codec/decoder"
	codecencoder "github.com/imazen-go/imageflow/codec/encoder"
	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/engine"
	"github.com/imazen-go/imageflow/job"
	"github.com/imazen-go/imageflow/request"

	_ "github.com/imazen-go/imageflow/riapi" // registers nodes.CommandStringParser
)

// Re-export Format constants for convenience, the same re-export the
// teacher's imageprocessor.go does for core.Format.
const (
	JPEG = codec.JPEG
	PNG  = codec.PNG
	WebP = codec.WebP
	GIF  = codec.GIF
	BMP  = codec.BMP
	AVIF = codec.AVIF
)

// Processor is the primary entry point: a codec registry plus the async
// worker pool that runs graphs against Job Contexts built from it.
type Processor struct {
	cfg    config.Config
	codecs *codec.Registry
	mgr    *job.Manager
}

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// New creates a fully wired Processor with the standard-library JPEG,
// PNG, GIF, BMP, and WebP codecs registered (spec §4.F), mirroring the
// teacher's New(cfg) wiring every built-in codec into a fresh registry
// before constructing the Processor around it.
func New(cfg config.Config) *Processor {
	reg := codec.NewRegistry()
	reg.RegisterDecoder(codec.JPEG, codecdecoder.NewJPEG)
	reg.RegisterDecoder(codec.PNG, codecdecoder.NewPNG)
	reg.RegisterDecoder(codec.GIF, codecdecoder.NewGIF)
	reg.RegisterDecoder(codec.BMP, codecdecoder.NewBMP)
	reg.RegisterDecoder(codec.WebP, codecdecoder.NewWebP)
	reg.RegisterEncoder(codec.JPEG, codecencoder.JPEG{})
	reg.RegisterEncoder(codec.PNG, codecencoder.PNG{})
	reg.RegisterEncoder(codec.WebP, codecencoder.WebP{})

	return &Processor{cfg: cfg, codecs: reg, mgr: job.NewManager(cfg)}
}

// Codecs exposes the underlying registry so a caller can layer in the
// govips-backed codec/vips.Backend or a custom format before Start.
func (p *Processor) Codecs() *codec.Registry { return p.codecs }

// AddHooks attaches engine.Hook observers (e.g. hooks.LoggingHook,
// hooks.MetricsHook) fired around every node's Execute call.
func (p *Processor) AddHooks(h ...engine.Hook) *Processor {
	p.mgr.WithHooks(h...)
	return p
}

// Start launches the background worker pool (spec §5).
func (p *Processor) Start() { p.mgr.Start() }

// Stop drains and joins the worker pool.
func (p *Processor) Stop() { p.mgr.Stop() }

// NewJobContext creates a Job Context bound to this Processor's codec
// registry and configuration (spec §4.I "create" lifecycle step). The
// caller must call Close when done with it.
func (p *Processor) NewJobContext(ctx context.Context) *job.Context {
	return job.NewContext(ctx, p.cfg, p.codecs)
}

// NewServer binds the default JSON method table (spec §6) to a fresh Job
// Context owned by this Processor. Pass a non-nil httpClient to allow
// IoUrl inputs to be fetched.
func (p *Processor) NewServer(ctx context.Context, version request.VersionInfo, httpClient *http.Client) *request.Server {
	return request.NewServer(p.NewJobContext(ctx), p.mgr, version, httpClient)
}

// NewServerFromContext binds the default JSON method table to a caller-
// supplied Job Context, letting a caller control that Context's lifetime
// independently of the Server (useful when a single build needs a
// throwaway Context closed right after Invoke returns).
func (p *Processor) NewServerFromContext(jobCtx *job.Context, version request.VersionInfo, httpClient *http.Client) *request.Server {
	return request.NewServer(jobCtx, p.mgr, version, httpClient)
}

// Stats returns lightweight processing statistics (spec §4.I
// diagnostics, process-wide rather than per-Context).
func (p *Processor) Stats() (processed, errors int64) {
	return p.mgr.ProcessedCount(), p.mgr.ErrorCount()
}
