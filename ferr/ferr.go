// Package ferr defines the structured error type used across imageflow.
//
// It plays the role the teacher's errors.ProcessingError plays in
// Skryldev-image-processor, generalized to the full error taxonomy of
// imageflow's core (spec §7), and to the at()/nerror! call-site decorator
// pattern used throughout imageflow_core in the original Rust source.
package ferr

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind is the exhaustive error taxonomy from spec §7.
type Kind string

const (
	OutOfMemory             Kind = "out_of_memory"
	InvalidArgument         Kind = "invalid_argument"
	NullArgument            Kind = "null_argument"
	InvalidDimensions       Kind = "invalid_dimensions"
	SizeLimitExceeded       Kind = "size_limit_exceeded"
	DuplicateIoId           Kind = "duplicate_io_id"
	GraphCyclic             Kind = "graph_cyclic"
	InvalidNodeConnections  Kind = "invalid_node_connections"
	NodeParamsMismatch      Kind = "node_params_mismatch"
	InvalidState            Kind = "invalid_state"
	UnsupportedPixelFormat  Kind = "unsupported_pixel_format"
	ImageDecodingError      Kind = "image_decoding_error"
	ImageEncodingError      Kind = "image_encoding_error"
	EncodingIoError         Kind = "encoding_io_error"
	CodecDisabledError      Kind = "codec_disabled_error"
	BitmapBorrowConflict    Kind = "bitmap_borrow_conflict"
	OperationCancelled      Kind = "operation_cancelled"
)

// Category is the HTTP-style status category from spec §7's table.
type Category int

var categories = map[Kind]Category{
	OutOfMemory:            500,
	InvalidArgument:        400,
	NullArgument:           400,
	InvalidDimensions:      400,
	SizeLimitExceeded:      400,
	DuplicateIoId:          400,
	GraphCyclic:            400,
	InvalidNodeConnections: 400,
	NodeParamsMismatch:     500,
	InvalidState:           500,
	UnsupportedPixelFormat: 400,
	ImageDecodingError:     400,
	ImageEncodingError:     500,
	EncodingIoError:        500,
	CodecDisabledError:     400,
	BitmapBorrowConflict:   500,
	OperationCancelled:     499,
}

var retryable = map[Kind]bool{
	EncodingIoError: true,
}

// FlowError is the structured error type returned throughout imageflow.
// It records the operation name, the call-site location (mirroring the
// Rust source's at(here!()) decorator), and the wrapped cause.
type FlowError struct {
	Kind Kind
	Op   string
	Err  error
	loc  string
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v (%s)", e.Kind, e.Op, e.Err, e.loc)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Op, e.loc)
}

func (e *FlowError) Unwrap() error { return e.Err }

// Category returns the HTTP-style category code for this error's Kind.
func (e *FlowError) Category() Category { return categories[e.Kind] }

// Retryable reports whether this error represents a transient failure.
func (e *FlowError) Retryable() bool { return retryable[e.Kind] }

// New creates a FlowError, capturing the caller's location via at().
func New(kind Kind, op string, err error) *FlowError {
	return &FlowError{Kind: kind, Op: op, Err: err, loc: at(2)}
}

// Wrap wraps err with a Kind and operation name. Returns nil if err is nil.
// If err already contains a *FlowError, that FlowError is returned
// unchanged and kind and op are ignored.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe
	}
	return &FlowError{Kind: kind, Op: op, Err: err, loc: at(2)}
}

// at() captures "file:line:function", mirroring the here!() macro in the
// original Rust source's nerror!/at() decorator chain.
func at(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s:%d:%s", file, line, name)
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}

// CategoryOf returns the HTTP-style category code for err, or 500 if err
// does not carry a FlowError.
func CategoryOf(err error) Category {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Category()
	}
	return 500
}
