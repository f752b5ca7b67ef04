package nodes

import (
	"fmt"

	"github.com/imazen-go/imageflow/bitmap"
	"github.com/imazen-go/imageflow/codec"
	"github.com/imazen-go/imageflow/ferr"
	"github.com/imazen-go/imageflow/graph"
)

func init() {
	Register(&Def{
		TypeName: "Decode",
		Estimate: decodeEstimate,
		Execute:  decodeExecute,
	})
	Register(&Def{
		TypeName: "Encode",
		Estimate: encodeEstimate,
		Execute:  encodeExecute,
	})
}

func decodeParams(g *graph.Graph, id graph.NodeID) (*DecodeParams, error) {
	p, ok := g.Node(id).Params.(*DecodeParams)
	if !ok {
		return nil, ferr.New(ferr.NodeParamsMismatch, "nodes.Decode", fmt.Errorf("node %s missing DecodeParams", id))
	}
	return p, nil
}

func decodeEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := decodeParams(g, id)
	if err != nil {
		return err
	}
	r, err := env.OpenInput(p.IoID)
	if err != nil {
		return err
	}
	dec, err := env.DecoderFor(r, "")
	if err != nil {
		return ferr.Wrap(ferr.ImageDecodingError, "nodes.Decode.Estimate", err)
	}
	if p.DownscaleHint != nil {
		dec.TellDecoder(codec.DecoderCommand{JpegDownscaleHint: p.DownscaleHint})
	}
	info, err := dec.GetScaledImageInfo(env.Context())
	if err != nil {
		return ferr.Wrap(ferr.ImageDecodingError, "nodes.Decode.Estimate", err)
	}
	if limit := env.SecurityLimits().MaxDecodeSize; limit.Exceeds(info.Width, info.Height) {
		return ferr.New(ferr.SizeLimitExceeded, "nodes.Decode.Estimate",
			fmt.Errorf("decoded size %dx%d exceeds configured max_decode_size", info.Width, info.Height))
	}
	g.Node(id).Estimate = graph.FrameEstimate{
		Width: info.Width, Height: info.Height,
		Layout: bitmap.BGRA, AlphaMeaningful: info.HasAlpha, Known: true,
	}
	return nil
}

func decodeExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := decodeParams(g, id)
	if err != nil {
		return err
	}
	r, err := env.OpenInput(p.IoID)
	if err != nil {
		return err
	}
	dec, err := env.DecoderFor(r, "")
	if err != nil {
		return ferr.Wrap(ferr.ImageDecodingError, "nodes.Decode.Execute", err)
	}
	if p.DownscaleHint != nil {
		dec.TellDecoder(codec.DecoderCommand{JpegDownscaleHint: p.DownscaleHint})
	}
	key, err := dec.ReadFrame(env.Context(), env.Store())
	if err != nil {
		return ferr.Wrap(ferr.ImageDecodingError, "nodes.Decode.Execute", err)
	}
	if !p.IgnoreColorProfile {
		if rot, rerr := dec.GetExifRotationFlag(env.Context()); rerr == nil && rot > 1 {
			key, err = applyExifRotation(env, key, rot)
			if err != nil {
				return err
			}
		}
	}
	n := g.Node(id)
	n.Result = graph.NodeResult{Kind: graph.ResultFrame, BitmapKey: key}
	return nil
}

func encodeParams(g *graph.Graph, id graph.NodeID) (*EncodeParams, error) {
	p, ok := g.Node(id).Params.(*EncodeParams)
	if !ok {
		return nil, ferr.New(ferr.NodeParamsMismatch, "nodes.Encode", fmt.Errorf("node %s missing EncodeParams", id))
	}
	return p, nil
}

func encodeEstimate(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	return copyEstimateFromParent(env, g, id)
}

func encodeExecute(env ExecEnv, g *graph.Graph, id graph.NodeID) error {
	p, err := encodeParams(g, id)
	if err != nil {
		return err
	}
	parent, ok := singleParent(g, id)
	if !ok {
		return ferr.New(ferr.InvalidNodeConnections, "nodes.Encode.Execute", fmt.Errorf("node %s has no input", id))
	}
	key := g.Node(parent).Result.BitmapKey
	enc, err := env.EncoderFor(p.Format)
	if err != nil {
		return ferr.New(ferr.CodecDisabledError, "nodes.Encode.Execute", err)
	}
	w, err := env.OpenOutput(p.IoID)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := enc.WriteFrame(env.Context(), w, env.Store(), key, p.Options); err != nil {
		return ferr.Wrap(ferr.ImageEncodingError, "nodes.Encode.Execute", err)
	}
	n := g.Node(id)
	n.Result = graph.NodeResult{Kind: graph.ResultNone}
	return nil
}
