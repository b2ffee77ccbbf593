package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote Simulator.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) Run(ctx context.Context, req Request, opts ...grpc.CallOption) (*Frame, error) {
	in, err := encode(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return decodeFrame(out)
}

// Watch calls onProgress for each progress frame and returns the result frame.
func (c *Client) Watch(ctx context.Context, req Request, onProgress func(float64), opts ...grpc.CallOption) (*Frame, error) {
	in, err := encode(req)
	if err != nil {
		return nil, err
	}
	stream, err := c.cc.NewStream(ctx, &SimulatorServiceDesc.Streams[0], WatchFullMethod, opts...)
	if err != nil {
		return nil, err
	}
	s := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := s.SendMsg(in); err != nil {
		return nil, err
	}
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	for {
		msg, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("stream ended without a result")
		}
		if err != nil {
			return nil, err
		}
		f, err := decodeFrame(msg)
		if err != nil {
			return nil, err
		}
		if f.Type == "result" {
			return f, nil
		}
		if onProgress != nil {
			onProgress(f.Fraction)
		}
	}
}

func decodeFrame(msg *structpb.Struct) (*Frame, error) {
	b, err := protojson.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Result != nil && f.Seed != "" {
		seed, err := strconv.ParseUint(f.Seed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode seed: %w", err)
		}
		f.Result.Seed = seed
	}
	return &f, nil
}
