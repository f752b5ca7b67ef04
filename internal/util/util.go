// Package util holds small I/O helpers merged and adapted from the
// teacher's utils/helpers.go and utils/streaming.go. No other package of
// this module imports it.
package util

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/imazen-go/imageflow/codec"
)

// bufPool reuses byte buffers to reduce GC pressure for AcquireBuffer and
// DrainReader callers.
var bufPool = sync.Pool{New: func() interface{} { return new(bytes.Buffer) }}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool, declining to pool oversized buffers
// so one large job doesn't pin memory for every future job.
func ReleaseBuffer(b *bytes.Buffer) {
	if b.Cap() > 8*1024*1024 {
		return
	}
	bufPool.Put(b)
}

// DrainReader reads all of r into a pooled buffer, honoring ctx
// cancellation between chunks.
func DrainReader(ctx context.Context, r io.Reader, chunkSize int) (*bytes.Buffer, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := AcquireBuffer()
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
	}
	return buf, nil
}

// CloneBytes returns a copy of b, safe to retain after the source buffer
// is released back to bufPool.
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// DetectFormat sniffs data's magic bytes, falling back to
// http.DetectContentType, exactly as the teacher's utils.DetectFormat
// does, generalized to return a codec.Format.
func DetectFormat(data []byte) codec.Format {
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return codec.JPEG
	}
	if len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return codec.PNG
	}
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return codec.WebP
	}
	if len(data) >= 6 && (string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a") {
		return codec.GIF
	}
	if len(data) >= 2 && data[0] == 'B' && data[1] == 'M' {
		return codec.BMP
	}
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "avif" || brand == "avis" {
			return codec.AVIF
		}
	}
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return codec.JPEG
	case "image/png":
		return codec.PNG
	case "image/webp":
		return codec.WebP
	case "image/gif":
		return codec.GIF
	case "image/bmp":
		return codec.BMP
	}
	return ""
}

// LimitedReader wraps r and fails with io.ErrUnexpectedEOF once r turns
// out to hold more than Max bytes; a source of exactly Max bytes reads
// through to its own EOF. Max <= 0 disables the ceiling. No package of
// this module uses it.
type LimitedReader struct {
	R   io.Reader
	Max int64
	n   int64
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Max > 0 && l.n >= l.Max {
		var probe [1]byte
		n, err := l.R.Read(probe[:])
		if n > 0 {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	if l.Max > 0 {
		if remain := l.Max - l.n; int64(len(p)) > remain {
			p = p[:remain]
		}
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	return n, err
}
