package job

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
)

// Direction distinguishes an input I/O handle from an output one (spec
// §4.I's io_id, direction pair).
type Direction int

const (
	In Direction = iota
	Out
)

// handle backs one io_id: either a readable source (direction In) or a
// writable sink (direction Out), bound once and consumed at most once,
// mirroring the teacher's Source (a plain io.Reader wrapper) generalized
// to imageflow's richer in/out, buffer/file handle set (spec §4.I).
type handle struct {
	direction Direction
	reader    io.Reader
	closer    io.Closer
	writer    io.WriteCloser
	taken     bool
}

// AddInputBytes registers ioID as an in-memory input source (spec §4.I
// add_input_bytes). Returns DuplicateIoId if ioID is already registered.
func (c *Context) AddInputBytes(ioID string, data []byte) error {
	return c.addInput(ioID, bytes.NewReader(data), nil)
}

// AddInputReader registers ioID as a streaming input source backed by r.
func (c *Context) AddInputReader(ioID string, r io.Reader) error {
	closer, _ := r.(io.Closer)
	return c.addInput(ioID, r, closer)
}

// AddInputFile registers ioID as a seekable file input, rooted under the
// context's config.LocalRootDir (spec §4.I add_input_file). Returns
// NullArgument if no root directory was configured, refusing file I/O by
// default the way the teacher's config.Config.LocalRootDir comment
// documents.
func (c *Context) AddInputFile(ioID, path string) error {
	full, err := c.resolveLocalPath(path)
	if err != nil {
		return err
	}
	f, err := os.Open(full)
	if err != nil {
		return ferr.Wrap(ferr.InvalidArgument, "job.AddInputFile", err)
	}
	return c.addInput(ioID, f, f)
}

func (c *Context) addInput(ioID string, r io.Reader, closer io.Closer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handles[ioID]; exists {
		return ferr.New(ferr.DuplicateIoId, "job.AddInput", fmt.Errorf("io_id %q already registered", ioID))
	}
	c.handles[ioID] = &handle{direction: In, reader: r, closer: closer}
	return nil
}

// AddOutputBuffer registers ioID as a growing in-memory output sink (spec
// §4.I add_output_buffer) and returns the buffer so callers can read it
// back directly instead of going through TakeOutputBuffer.
func (c *Context) AddOutputBuffer(ioID string) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	if err := c.addOutput(ioID, nopWriteCloser{buf}); err != nil {
		return nil, err
	}
	return buf, nil
}

// AddOutputFile registers ioID as a sequentially-written file output (spec
// §4.I add_output_file), rooted under config.LocalRootDir.
func (c *Context) AddOutputFile(ioID, path string) error {
	full, err := c.resolveLocalPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ferr.Wrap(ferr.EncodingIoError, "job.AddOutputFile", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return ferr.Wrap(ferr.EncodingIoError, "job.AddOutputFile", err)
	}
	return c.addOutput(ioID, f)
}

func (c *Context) addOutput(ioID string, w io.WriteCloser) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handles[ioID]; exists {
		return ferr.New(ferr.DuplicateIoId, "job.AddOutput", fmt.Errorf("io_id %q already registered", ioID))
	}
	c.handles[ioID] = &handle{direction: Out, writer: w}
	return nil
}

// TakeOutputBuffer returns the bytes written to a buffer-backed output
// io_id (spec §4.I take_output_buffer). Only valid for io_ids registered
// via AddOutputBuffer.
func (c *Context) TakeOutputBuffer(ioID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[ioID]
	if !ok || h.direction != Out {
		return nil, ferr.New(ferr.InvalidArgument, "job.TakeOutputBuffer", fmt.Errorf("io_id %q is not a registered output", ioID))
	}
	buf, ok := h.writer.(nopWriteCloser)
	if !ok {
		return nil, ferr.New(ferr.InvalidArgument, "job.TakeOutputBuffer", fmt.Errorf("io_id %q is not buffer-backed", ioID))
	}
	return buf.Bytes(), nil
}

// resolveLocalPath joins path under LocalRootDir and rejects any result
// that escapes it, refusing path traversal the way imageflow_core's
// io_util path joining is documented to.
func (c *Context) resolveLocalPath(path string) (string, error) {
	if c.cfg.LocalRootDir == "" {
		return "", ferr.New(ferr.NullArgument, "job.resolveLocalPath", fmt.Errorf("file I/O disabled: config.LocalRootDir is empty"))
	}
	full := filepath.Join(c.cfg.LocalRootDir, path)
	rel, err := filepath.Rel(c.cfg.LocalRootDir, full)
	if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)) {
		return "", ferr.New(ferr.InvalidArgument, "job.resolveLocalPath", fmt.Errorf("path %q escapes LocalRootDir", path))
	}
	return full, nil
}

// OpenInput implements nodes.ExecEnv: returns the reader bound to ioID,
// marking it taken so a second open fails instead of silently re-reading.
func (c *Context) OpenInput(ioID string) (io.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[ioID]
	if !ok || h.direction != In {
		return nil, ferr.New(ferr.InvalidArgument, "job.OpenInput", fmt.Errorf("io_id %q is not a registered input", ioID))
	}
	if h.taken {
		return nil, ferr.New(ferr.InvalidState, "job.OpenInput", fmt.Errorf("io_id %q already consumed", ioID))
	}
	h.taken = true
	return h.reader, nil
}

// OpenOutput implements nodes.ExecEnv: returns the writer bound to ioID.
func (c *Context) OpenOutput(ioID string) (io.WriteCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[ioID]
	if !ok || h.direction != Out {
		return nil, ferr.New(ferr.InvalidArgument, "job.OpenOutput", fmt.Errorf("io_id %q is not a registered output", ioID))
	}
	if h.taken {
		return nil, ferr.New(ferr.InvalidState, "job.OpenOutput", fmt.Errorf("io_id %q already consumed", ioID))
	}
	h.taken = true
	return h.writer, nil
}

// closeAll releases any file-backed handles; called once the context is
// done executing (mirroring the "destroy" step of spec §4.I's Job Context
// lifecycle).
func (c *Context) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.handles {
		if h.closer != nil {
			_ = h.closer.Close()
		}
	}
}

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

// sniffFormat inspects a small header buffer and guesses the container
// format, generalizing the teacher's utils.DetectFormat (magic-byte
// checks plus an http.DetectContentType fallback) to the full format set
// codec.Format enumerates.
func sniffFormat(header []byte) codec.Format {
	if len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF {
		return codec.JPEG
	}
	if len(header) >= 8 && bytes.Equal(header[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}) {
		return codec.PNG
	}
	if len(header) >= 6 && (bytes.Equal(header[:6], []byte("GIF87a")) || bytes.Equal(header[:6], []byte("GIF89a"))) {
		return codec.GIF
	}
	if len(header) >= 2 && header[0] == 'B' && header[1] == 'M' {
		return codec.BMP
	}
	if len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")) {
		return codec.WebP
	}
	if len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")) {
		brand := string(header[8:12])
		if brand == "avif" || brand == "avis" {
			return codec.AVIF
		}
	}
	switch http.DetectContentType(header) {
	case "image/jpeg":
		return codec.JPEG
	case "image/png":
		return codec.PNG
	case "image/gif":
		return codec.GIF
	case "image/bmp", "image/x-ms-bmp":
		return codec.BMP
	case "image/webp":
		return codec.WebP
	}
	return ""
}
