package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/wishsim/internal/cache"
	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/sim"
)

// Request is the JSON shape of a Run or Watch request.
type Request struct {
	Session   string     `json:"session"` // empty gets a session of its own
	TimeoutMs int64      `json:"timeoutMs,omitempty"`
	Input     *sim.Input `json:"input"`
}

// Frame is the JSON shape of every response message.
type Frame struct {
	Type     string      `json:"type"` // progress or result
	Fraction float64     `json:"fraction,omitempty"`
	JobID    string      `json:"jobId,omitempty"`
	State    string      `json:"state,omitempty"`
	Cached   bool        `json:"cached,omitempty"`
	Result   *sim.Result `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
	// Seed carries Result.Seed as a decimal string; Struct numbers are
	// doubles and would round a 64-bit seed.
	Seed string `json:"seed,omitempty"`
}

func (f Frame) wire() Frame {
	if f.Result != nil {
		res := *f.Result
		f.Seed = strconv.FormatUint(res.Seed, 10)
		res.Seed = 0
		f.Result = &res
	}
	return f
}

// Server implements SimulatorServer on top of a host.
type Server struct {
	Host    *host.Host
	Results *cache.Results     // optional
	Rules   func() gacha.Table // table used for cache keys; nil means gacha.DefaultTable
	Logger  *slog.Logger
}

var _ SimulatorServer = (*Server)(nil)

func (s *Server) Run(ctx context.Context, msg *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRequest(msg)
	if err != nil {
		return nil, err
	}
	key, hit := s.lookup(ctx, req.Input)
	if hit != nil {
		return encode(Frame{Type: "result", State: host.StateCompleted.String(), Cached: true, Result: hit})
	}

	job, err := s.Host.Submit(ctx, req.Session, req.Input, host.Options{Timeout: time.Duration(req.TimeoutMs) * time.Millisecond})
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := job.Wait(ctx)
	if ctx.Err() != nil {
		job.Cancel()
		return nil, status.FromContextError(ctx.Err()).Err()
	}
	return s.finish(ctx, key, job, res, err)
}

func (s *Server) Watch(msg *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	req, err := decodeRequest(msg)
	if err != nil {
		return err
	}
	key, hit := s.lookup(ctx, req.Input)
	if hit != nil {
		out, err := encode(Frame{Type: "result", State: host.StateCompleted.String(), Cached: true, Result: hit})
		if err != nil {
			return err
		}
		return stream.Send(out)
	}

	job, err := s.Host.Submit(ctx, req.Session, req.Input, host.Options{Timeout: time.Duration(req.TimeoutMs) * time.Millisecond})
	if err != nil {
		return toStatus(err)
	}
	for {
		select {
		case <-ctx.Done():
			job.Cancel()
			return status.FromContextError(ctx.Err()).Err()
		case f, ok := <-job.Progress():
			if !ok {
				res, err := job.Result()
				out, ferr := s.finish(ctx, key, job, res, err)
				if ferr != nil {
					return ferr
				}
				return stream.Send(out)
			}
			out, err := encode(Frame{Type: "progress", JobID: job.ID, Fraction: f})
			if err != nil {
				return err
			}
			if err := stream.Send(out); err != nil {
				job.Cancel()
				return err
			}
		}
	}
}

func (s *Server) lookup(ctx context.Context, in *sim.Input) (string, *sim.Result) {
	if s.Results == nil {
		return "", nil
	}
	table := gacha.DefaultTable()
	if s.Rules != nil {
		table = s.Rules()
	}
	key, ok := cache.Key(in, table)
	if !ok {
		return "", nil
	}
	res, _ := s.Results.Get(ctx, key)
	return key, res
}

// finish maps a finished job to a result frame. Failures become gRPC
// errors; cancellation is reported in the frame with its partial result.
func (s *Server) finish(ctx context.Context, key string, job *host.Job, res *sim.Result, err error) (*structpb.Struct, error) {
	st := job.State()
	if st == host.StateFailed {
		s.log().Warn("rpc simulation failed", "job_id", job.ID, "err", err)
		return nil, toStatus(err)
	}
	if st == host.StateCompleted {
		s.Results.Put(ctx, key, res)
	}
	f := Frame{Type: "result", JobID: job.ID, State: st.String(), Result: res}
	if err != nil {
		f.Error = err.Error()
	}
	return encode(f)
}

func (s *Server) log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func decodeRequest(msg *structpb.Struct) (*Request, error) {
	b, err := protojson.Marshal(msg)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	var req Request
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if req.Input == nil {
		return nil, status.Error(codes.InvalidArgument, "input is required")
	}
	if req.Session == "" {
		req.Session = uuid.NewString()
	}
	return &req, nil
}

func encode(v any) (*structpb.Struct, error) {
	if f, ok := v.(Frame); ok {
		v = f.wire()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, sim.ErrInvalidInput), errors.Is(err, gacha.ErrConfig):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, host.ErrCancelled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, host.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
