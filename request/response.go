package request

// Response is the envelope every method response is wrapped in (spec §6:
// "{ success, code, message, data }"), mirroring imageflow_core's
// Response001.
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ImageInfo is the v1/get_image_info and v1/get_scaled_image_info
// response payload (spec §6 "Response payloads").
type ImageInfo struct {
	ImageWidth        int    `json:"image_width"`
	ImageHeight       int    `json:"image_height"`
	FrameDecodesInto  string `json:"frame_decodes_into"`
	PreferredMimeType string `json:"preferred_mime_type"`
	PreferredExtension string `json:"preferred_extension"`
	Lossless          bool   `json:"lossless"`
	MultipleFrames    bool   `json:"multiple_frames"`
}

// EncodeResult is one Encode node's outcome (spec §6).
type EncodeResult struct {
	IoID               string `json:"io_id"`
	W                  int    `json:"w"`
	H                  int    `json:"h"`
	PreferredMimeType  string `json:"preferred_mime_type"`
	PreferredExtension string `json:"preferred_extension"`
	Bytes              string `json:"bytes"` // "elsewhere" when the bytes stay in the Job Context's output buffer; "" when it is empty
}

// JobResult is the v1/execute response payload (spec §6).
type JobResult struct {
	Encodes []EncodeResult `json:"encodes"`
}

// VersionInfo is the v1/get_version_info response payload.
type VersionInfo struct {
	LongVersionString string `json:"long_version_string"`
	BuildDate         string `json:"build_date,omitempty"`
}

func ok(data interface{}) Response {
	return Response{Success: true, Code: 200, Message: "OK", Data: data}
}

func fail(code int, message string) Response {
	return Response{Success: false, Code: code, Message: message}
}

func teapot() Response {
	return Response{Success: false, Code: 418, Message: "I'm a little teapot, short and stout..."}
}

func methodNotUnderstood() Response {
	return Response{Success: false, Code: 404, Message: "Endpoint name not understood"}
}
