// Package job implements the Job Context (spec §4.I): the per-request
// owner of I/O handles, the bitmap store, the codec registry, the error
// sink, and the diagnostic collector, plus the async worker pool (spec
// §5) that schedules graph builds across a fixed pool of goroutines.
//
// Context plays the role the teacher's core.Processor + core.ImageData
// play combined: one bitmap.Store per Context (not one per image), one
// codec.Registry shared across nodes, and an io_id-keyed handle table
// instead of the teacher's single Source/Sink pair, since a graph build
// can reference many inputs and outputs in one execute call.
package job

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/ferr"
)

// Context is one Job Context (spec §4.I). It implements nodes.ExecEnv so
// it can be handed directly to engine.Engine.Run.
type Context struct {
	ctx    context.Context
	cfg    config.Config
	store  *bitmap.Store
	codecs *codec.Registry

	mu      sync.Mutex
	handles map[string]*handle

	errs *ErrorSink
	diag *Diagnostics
}

// NewContext creates a Job Context bound to ctx, using cfg for security
// and codec-enablement limits and codecs as the shared format registry
// (spec §4.I "create" lifecycle step).
func NewContext(ctx context.Context, cfg config.Config, codecs *codec.Registry) *Context {
	return &Context{
		ctx:     ctx,
		cfg:     cfg,
		store:   bitmap.NewStore(),
		codecs:  codecs,
		handles: make(map[string]*handle),
		errs:    newErrorSink(),
		diag:    &Diagnostics{},
	}
}

// Context implements nodes.ExecEnv.
func (c *Context) Context() context.Context { return c.ctx }

// Store implements nodes.ExecEnv.
func (c *Context) Store() *bitmap.Store { return c.store }

// Errors returns the context's deduplicating error sink (spec §7, "the
// error sink deduplicates by hashed message").
func (c *Context) Errors() *ErrorSink { return c.errs }

// Diagnostics returns the context's diagnostic collector.
func (c *Context) Diagnostics() *Diagnostics { return c.diag }

// SecurityLimits implements nodes.ExecEnv: exposes the configured
// decode/frame/encode size bounds (spec §6 builder_config.security) so
// Decode's Estimate can reject an over-limit image before any pixel is
// allocated.
func (c *Context) SecurityLimits() config.Security { return c.cfg.Security }

// Close releases file-backed I/O handles and the bitmap store, the
// "destroy" step of spec §4.I's Job Context lifecycle.
func (c *Context) Close() {
	c.closeAll()
	c.diag.recordPeakBitmaps(c.store.Len())
}

// formatDisabled reports whether f is disabled for dir by the allowlist
// (spec §4.I "enabled-codec allowlist per direction").
func formatDisabled(m map[string]bool, f codec.Format) bool {
	return m != nil && m[string(f)]
}

// DecoderFor implements nodes.ExecEnv: sniffs hint from r's header when
// hint is empty, then resolves a Decoder from the shared registry,
// respecting config.DisabledDecoders.
func (c *Context) DecoderFor(r io.Reader, hint codec.Format) (codec.Decoder, error) {
	format := hint
	br := bufio.NewReader(r)
	if format == "" {
		header, _ := br.Peek(32)
		format = sniffFormat(header)
		if format == "" {
			return nil, ferr.New(ferr.ImageDecodingError, "job.DecoderFor", fmt.Errorf("unrecognized image format"))
		}
	}
	if formatDisabled(c.cfg.DisabledDecoders, format) {
		return nil, ferr.New(ferr.CodecDisabledError, "job.DecoderFor", fmt.Errorf("decoder for %q is disabled", format))
	}
	dec, ok, err := c.codecs.NewDecoder(format, br)
	if err != nil {
		return nil, ferr.Wrap(ferr.ImageDecodingError, "job.DecoderFor", err)
	}
	if !ok {
		return nil, ferr.New(ferr.UnsupportedPixelFormat, "job.DecoderFor", fmt.Errorf("no decoder registered for %q", format))
	}
	c.diag.incr(&c.diag.DecodeCount)
	return dec, nil
}

// EncoderFor implements nodes.ExecEnv, respecting config.DisabledEncoders.
func (c *Context) EncoderFor(format codec.Format) (codec.Encoder, error) {
	if formatDisabled(c.cfg.DisabledEncoders, format) {
		return nil, ferr.New(ferr.CodecDisabledError, "job.EncoderFor", fmt.Errorf("encoder for %q is disabled", format))
	}
	enc, ok := c.codecs.Encoder(format)
	if !ok {
		return nil, ferr.New(ferr.UnsupportedPixelFormat, "job.EncoderFor", fmt.Errorf("no encoder registered for %q", format))
	}
	c.diag.incr(&c.diag.EncodeCount)
	return enc, nil
}
