package request

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/job"
)

// BindIO registers every IoObject in req against jobCtx, resolving each
// IoEnum variant to the matching job.Context method (spec §6 "IoEnum
// variants"). httpClient is used only for the Url variant; pass nil to
// reject Url handles outright (the default for a context that hasn't
// opted into outbound fetches).
func BindIO(jobCtx *job.Context, ios []IoObject, httpClient *http.Client) error {
	for _, o := range ios {
		if err := bindOne(jobCtx, o, httpClient); err != nil {
			return err
		}
	}
	return nil
}

func bindOne(jobCtx *job.Context, o IoObject, httpClient *http.Client) error {
	switch o.Direction {
	case DirIn:
		return bindInput(jobCtx, o, httpClient)
	case DirOut:
		return bindOutput(jobCtx, o)
	default:
		return ferr.New(ferr.InvalidArgument, "request.BindIO", fmt.Errorf("io_id %q has unknown direction %q", o.IoID, o.Direction))
	}
}

func bindInput(jobCtx *job.Context, o IoObject, httpClient *http.Client) error {
	switch o.Io.Type {
	case IoByteArray:
		return jobCtx.AddInputBytes(o.IoID, o.Io.Bytes)
	case IoBase64:
		data, err := base64.StdEncoding.DecodeString(o.Io.Base64)
		if err != nil {
			return ferr.Wrap(ferr.InvalidArgument, "request.BindIO", err)
		}
		return jobCtx.AddInputBytes(o.IoID, data)
	case IoBytesHex:
		data, err := hex.DecodeString(o.Io.Hex)
		if err != nil {
			return ferr.Wrap(ferr.InvalidArgument, "request.BindIO", err)
		}
		return jobCtx.AddInputBytes(o.IoID, data)
	case IoFilename:
		return jobCtx.AddInputFile(o.IoID, o.Io.Filename)
	case IoUrl:
		return bindURLInput(jobCtx, o, httpClient)
	case IoPlaceholder:
		return ferr.New(ferr.InvalidArgument, "request.BindIO", fmt.Errorf("io_id %q is a Placeholder and must be substituted before execute", o.IoID))
	default:
		return ferr.New(ferr.InvalidArgument, "request.BindIO", fmt.Errorf("io_id %q has unrecognized input io type %q", o.IoID, o.Io.Type))
	}
}

func bindURLInput(jobCtx *job.Context, o IoObject, httpClient *http.Client) error {
	if httpClient == nil {
		return ferr.New(ferr.InvalidArgument, "request.BindIO", fmt.Errorf("io_id %q: Url inputs are disabled for this context", o.IoID))
	}
	resp, err := httpClient.Get(o.Io.Url)
	if err != nil {
		return ferr.Wrap(ferr.InvalidArgument, "request.BindIO", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ferr.New(ferr.InvalidArgument, "request.BindIO", fmt.Errorf("io_id %q: fetching %q returned status %d", o.IoID, o.Io.Url, resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ferr.Wrap(ferr.InvalidArgument, "request.BindIO", err)
	}
	return jobCtx.AddInputBytes(o.IoID, data)
}

func bindOutput(jobCtx *job.Context, o IoObject) error {
	switch o.Io.Type {
	case IoOutputBuf, IoBase64, "":
		_, err := jobCtx.AddOutputBuffer(o.IoID)
		return err
	case IoFilename:
		return jobCtx.AddOutputFile(o.IoID, o.Io.Filename)
	default:
		return ferr.New(ferr.InvalidArgument, "request.BindIO", fmt.Errorf("io_id %q has unrecognized output io type %q", o.IoID, o.Io.Type))
	}
}
