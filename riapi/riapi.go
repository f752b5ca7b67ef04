// Package riapi implements the ImageResizer4-compatible querystring
// sub-interface (spec §6): parsing a legacy `key=value&key=value` string
// into the primitive node chain a CommandString node splices into the
// graph. It registers itself against nodes.CommandStringParser in its own
// init(), the dependency-inversion seam nodes/command_string.go documents
// so that package nodes never has to import riapi.
package riapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/imazen-go/imageflow/nodes"
)

func init() {
	nodes.CommandStringParser = Parse
}

// Warning is a non-fatal parse note (spec §6: "Unknown keys produce
// UnrecognizedKey warnings but do not fail the request").
type Warning struct {
	Key     string
	Message string
}

// ParseResult carries the parsed node chain plus any warnings collected
// along the way.
type ParseResult struct {
	Steps    []nodes.Step
	Warnings []Warning
}

// recognizedKeys is the key inventory spec §6 names explicitly. Keys
// outside this set are accepted but reported as UnrecognizedKey
// warnings rather than rejected outright.
var recognizedKeys = map[string]bool{
	"w": true, "h": true, "width": true, "height": true,
	"mode": true, "quality": true, "format": true, "fit": true,
	"crop": true, "autorotate": true,
	"down.filter": true, "up.filter": true,
	"dpr": true, "qp": true, "qp.dpr": true,
	"webp.quality": true, "webp.lossless": true,
	"png.quality": true, "png.min_quality": true,
	"jpeg.progressive": true, "jpeg.quality": true,
	"bgcolor": true, "watermark": true,
	"trim.threshold": true,
	"accept.webp": true, "accept.avif": true, "accept.jxl": true,
	"sepia": true, "grayscale": true, "s.invert": true,
}

// Parse is the CommandStringParser hook (nodes.CommandStringParser):
// parses qs into a Step chain. It discards warnings since
// nodes.CommandStringParser's signature has no channel for them; callers
// that need the warnings should call ParseWithWarnings directly.
func Parse(qs string) ([]nodes.Step, error) {
	res, err := ParseWithWarnings(qs)
	if err != nil {
		return nil, err
	}
	return res.Steps, nil
}

// ParseWithWarnings parses an ImageResizer4-style querystring value
// (spec §6's "Querystring sub-interface") into an ordered Step chain:
// Constrain (for every mode) first when w/width or h/height is positive,
// then Crop, then the grayscale and sepia color filters; no flip or
// Resample2D steps are produced. The order mirrors the fixed processing order
// imageflow's classic API applies regardless of key order in the
// querystring.
func ParseWithWarnings(qs string) (ParseResult, error) {
	values, err := url.ParseQuery(qs)
	if err != nil {
		return ParseResult{}, fmt.Errorf("riapi: invalid querystring: %w", err)
	}

	get := func(keys ...string) string {
		for _, k := range keys {
			if v := values.Get(k); v != "" {
				return v
			}
		}
		return ""
	}

	var res ParseResult
	for key := range values {
		if !recognizedKeys[key] {
			res.Warnings = append(res.Warnings, Warning{Key: key, Message: "UnrecognizedKey"})
		}
	}

	width := parseIntOr(get("w", "width"), 0)
	height := parseIntOr(get("h", "height"), 0)
	if width > 0 || height > 0 {
		mode := constrainModeFor(get("mode", "fit"))
		res.Steps = append(res.Steps, nodes.Step{
			TypeName: "Constrain",
			Params: map[string]interface{}{
				"width":  width,
				"height": height,
				"mode":   mode,
			},
		})
	}

	if cropStr := get("crop"); cropStr != "" {
		if x1, y1, x2, y2, ok := parseCrop(cropStr); ok {
			res.Steps = append(res.Steps, nodes.Step{
				TypeName: "Crop",
				Params: map[string]interface{}{
					"x1": x1, "y1": y1, "x2": x2, "y2": y2,
				},
			})
		} else {
			res.Warnings = append(res.Warnings, Warning{Key: "crop", Message: "malformed crop value"})
		}
	}

	if parseBoolOr(get("grayscale"), false) {
		res.Steps = append(res.Steps, nodes.Step{
			TypeName: "ColorFilterSrgb",
			Params:   map[string]interface{}{"preset": "grayscale"},
		})
	}
	if parseBoolOr(get("sepia"), false) {
		res.Steps = append(res.Steps, nodes.Step{
			TypeName: "ColorFilterSrgb",
			Params:   map[string]interface{}{"preset": "sepia"},
		})
	}

	return res, nil
}

func constrainModeFor(mode string) string {
	switch strings.ToLower(mode) {
	case "max", "within":
		return "within"
	case "crop":
		return "fit_crop"
	case "pad":
		return "pad"
	case "stretch", "distort":
		return "distort"
	default:
		return "fit"
	}
}

func parseCrop(s string) (x1, y1, x2, y2 int, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, false
	}
	vals := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, 0, false
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], vals[3], true
}

func parseIntOr(s string, def int) int {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return def
}

func parseBoolOr(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
