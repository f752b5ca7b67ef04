package request

import (
	"encoding/json"
	"net/http"

	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/job"
)

// Server binds the default method table (spec §6) to one long-lived Job
// Context and the Manager that runs graphs against it, the same Context
// lifecycle spec §4.I describes: I/O handles are added once, one or more
// graph builds execute against them, then the Context is destroyed. This
// plays the role imageflow_core's Context struct plus its v1/* method
// registrations play combined.
type Server struct {
	jobCtx  *job.Context
	mgr     *job.Manager
	http    *http.Client // nil disables Url input fetching
	version VersionInfo
	router  *MethodRouter[*Server]
}

// NewServer binds router to jobCtx/mgr. Pass a non-nil httpClient to
// allow IoUrl inputs to be fetched; pass nil to reject them (the default
// posture for an untrusted caller).
func NewServer(jobCtx *job.Context, mgr *job.Manager, version VersionInfo, httpClient *http.Client) *Server {
	return &Server{jobCtx: jobCtx, mgr: mgr, http: httpClient, version: version, router: defaultRouter()}
}

// Invoke dispatches one method call by name (spec §6's method namespace).
func (s *Server) Invoke(method string, body []byte) Response {
	return s.router.Invoke(s, method, body)
}

// Methods lists every registered method name, backing
// v1/schema/openapi/latest/get's method index.
func (s *Server) Methods() []string {
	return s.router.List()
}

func defaultRouter() *MethodRouter[*Server] {
	r := NewMethodRouter[*Server]()

	AddJSON(r, "v1/build", func(s *Server, req BuildRequest) (interface{}, error) {
		return s.build(req)
	})
	AddJSON(r, "v1/execute", func(s *Server, req BuildRequest) (interface{}, error) {
		return s.build(req)
	})
	AddJSON(r, "v1/get_image_info", func(s *Server, req GetImageInfoRequest) (interface{}, error) {
		return BindInputImageInfo(s.jobCtx, req.IoID, false)
	})
	AddJSON(r, "v1/get_scaled_image_info", func(s *Server, req GetImageInfoRequest) (interface{}, error) {
		return BindInputImageInfo(s.jobCtx, req.IoID, true)
	})
	AddJSON(r, "v1/tell_decoder", func(s *Server, req TellDecoderRequest) (interface{}, error) {
		return nil, tellDecoder(s.jobCtx, req)
	})
	AddJSON(r, "v1/get_version_info", func(s *Server, _ struct{}) (interface{}, error) {
		return s.version, nil
	})
	r.Add("v1/schema/openapi/latest/get", func(_ *Server, _ []byte) Response {
		return ok(openAPIStub)
	})
	r.Add("brew_coffee", func(_ *Server, _ []byte) Response {
		return teapot()
	})
	return r
}

// build runs a BuildRequest end to end (spec §6 v1/build and v1/execute
// are the same operation under two names, matching job_methods.rs's
// v0.1/execute and context_methods.rs's v1/build sharing one handler):
// bind every IoObject onto the Server's Job Context, translate Framewise
// into a graph, run it, and collect every buffer-backed output.
func (s *Server) build(req BuildRequest) (interface{}, error) {
	if err := BindIO(s.jobCtx, req.Io, s.http); err != nil {
		return nil, err
	}
	g, err := BuildGraph(req.Framewise)
	if err != nil {
		return nil, err
	}
	if err := s.mgr.Run(s.jobCtx, g); err != nil {
		return nil, err
	}

	result := JobResult{}
	for _, o := range req.Io {
		if o.Direction != DirOut {
			continue
		}
		data, err := s.jobCtx.TakeOutputBuffer(o.IoID)
		if err != nil {
			continue // file-backed outputs have nothing to report inline
		}
		result.Encodes = append(result.Encodes, EncodeResult{IoID: o.IoID, Bytes: encodeBytesField(data)})
	}
	return result, nil
}

// tellDecoder applies a decode-time hint to ioID's decoder (spec §4.I
// tell_decoder). Since OpenInput consumes an io_id's reader on first use,
// this must run before any Decode node in the graph opens the same
// io_id; a TellDecoder call issued after the input has already been
// consumed returns InvalidState by way of OpenInput's own single-take
// check.
func tellDecoder(jobCtx *job.Context, req TellDecoderRequest) error {
	r, err := jobCtx.OpenInput(req.IoID)
	if err != nil {
		return err
	}
	dec, err := jobCtx.DecoderFor(r, "")
	if err != nil {
		return err
	}
	var hint struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	var cmd codec.DecoderCommand
	if err := json.Unmarshal(req.Command, &hint); err == nil && hint.Width > 0 && hint.Height > 0 {
		cmd.JpegDownscaleHint = &struct{ Width, Height int }{hint.Width, hint.Height}
	}
	dec.TellDecoder(cmd)
	return nil
}

// BindInputImageInfo opens ioID (consuming it, the same single-take
// contract every input handle is bound by), sniffs its decoder, and
// reports the Decoder's unscaled or scaled ImageInfo (spec §6
// "Response payloads").
func BindInputImageInfo(jobCtx *job.Context, ioID string, scaled bool) (ImageInfo, error) {
	r, err := jobCtx.OpenInput(ioID)
	if err != nil {
		return ImageInfo{}, err
	}
	dec, err := jobCtx.DecoderFor(r, "")
	if err != nil {
		return ImageInfo{}, err
	}
	var info codec.ImageInfo
	if scaled {
		info, err = dec.GetScaledImageInfo(jobCtx.Context())
	} else {
		info, err = dec.GetUnscaledImageInfo(jobCtx.Context())
	}
	if err != nil {
		return ImageInfo{}, err
	}
	return ImageInfo{
		ImageWidth:         info.Width,
		ImageHeight:        info.Height,
		FrameDecodesInto:   "Bgra32",
		PreferredMimeType:  info.PreferredMimeType,
		PreferredExtension: string(info.Format),
		MultipleFrames:     info.FrameCount > 1,
	}, nil
}

// openAPIStub is a minimal machine-readable method index, standing in for
// a full OpenAPI document generator: this package routes methods, it
// doesn't generate API documentation.
var openAPIStub = map[string]interface{}{
	"openapi": "3.0.0",
	"info":    map[string]string{"title": "imageflow JSON API", "version": "1"},
}

func encodeBytesField(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return "elsewhere"
}
