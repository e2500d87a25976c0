package simd

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// CalibrationServiceName is the fully qualified gRPC service name
const CalibrationServiceName = "pvcal.v1.CalibrationService"

// CalibrationServiceServer is the gRPC surface. Messages are google.protobuf.Struct
// values carrying the same JSON documents as the HTTP API.
type CalibrationServiceServer interface {
	Calibrate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopCalibration(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchCalibration(*structpb.Struct, grpc.ServerStream) error
}

type unaryMethod func(CalibrationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + CalibrationServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CalibrationServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CalibrationServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CalibrationServiceDesc describes the service for grpc.Server.RegisterService
var CalibrationServiceDesc = grpc.ServiceDesc{
	ServiceName: CalibrationServiceName,
	HandlerType: (*CalibrationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Calibrate", CalibrationServiceServer.Calibrate),
		unaryHandler("CreateCalibration", CalibrationServiceServer.CreateCalibration),
		unaryHandler("GetCalibration", CalibrationServiceServer.GetCalibration),
		unaryHandler("StopCalibration", CalibrationServiceServer.StopCalibration),
		unaryHandler("Evaluate", CalibrationServiceServer.Evaluate),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "WatchCalibration",
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(CalibrationServiceServer).WatchCalibration(in, stream)
			},
			ServerStreams: true,
		},
	},
	Metadata: "pvcal/v1/calibration.proto",
}

// RegisterCalibrationServiceServer registers srv on s
func RegisterCalibrationServiceServer(s grpc.ServiceRegistrar, srv CalibrationServiceServer) {
	s.RegisterService(&CalibrationServiceDesc, srv)
}

// CalibrationGRPCServer implements CalibrationServiceServer on top of a Service.
type CalibrationGRPCServer struct {
	svc *Service
}

func NewCalibrationGRPCServer(svc *Service) *CalibrationGRPCServer {
	return &CalibrationGRPCServer{svc: svc}
}

func (s *CalibrationGRPCServer) Calibrate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRunStruct(in)
	if err != nil {
		return nil, grpcError(err)
	}
	res, err := s.svc.Calibrate(ctx, peerID(ctx), req.Spec)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"result": res})
}

func (s *CalibrationGRPCServer) CreateCalibration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRunStruct(in)
	if err != nil {
		return nil, grpcError(err)
	}
	rec, err := s.svc.CreateCalibration(peerID(ctx), req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"run": runToJSON(rec.Run.Snapshot())})
}

func (s *CalibrationGRPCServer) GetCalibration(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	rec, err := s.svc.GetCalibration(runIDField(in))
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"run": runToJSON(rec.Run.Snapshot())})
}

func (s *CalibrationGRPCServer) StopCalibration(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	rec, err := s.svc.StopCalibration(runIDField(in))
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"run": runToJSON(rec.Run.Snapshot())})
}

func (s *CalibrationGRPCServer) Evaluate(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	data, err := protojson.Marshal(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var req EvaluateRequest
	if err := decodeStrict(data, &req); err != nil {
		return nil, grpcError(err)
	}
	resp, err := s.svc.Evaluate(&req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(resp)
}

// WatchCalibration streams progress and status events until the run is terminal.
func (s *CalibrationGRPCServer) WatchCalibration(in *structpb.Struct, stream grpc.ServerStream) error {
	rec, err := s.svc.GetCalibration(runIDField(in))
	if err != nil {
		return grpcError(err)
	}

	interval := 500 * time.Millisecond
	if v, ok := in.GetFields()["interval_ms"]; ok && v.GetNumberValue() > 0 {
		interval = time.Duration(v.GetNumberValue()) * time.Millisecond
	}

	send := func(event string, data map[string]any) error {
		data["event"] = event
		data["run_id"] = rec.Run.ID
		data["at_unix_ms"] = time.Now().UTC().UnixMilli()
		msg, err := toStruct(data)
		if err != nil {
			return err
		}
		return stream.SendMsg(msg)
	}

	snap := rec.Run.Snapshot()
	previousStatus := snap.Status
	lastIteration := snap.Progress.Iteration
	if err := send("status_change", map[string]any{"status": snap.Status}); err != nil {
		return err
	}
	if snap.Status.Terminal() {
		return send("complete", completeEvent(snap))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
			snap := rec.Run.Snapshot()
			if snap.Progress.Iteration != lastIteration {
				if err := send("progress", map[string]any{
					"iteration":  snap.Progress.Iteration,
					"iterations": snap.Progress.Iterations,
					"best_error": snap.Progress.BestError,
				}); err != nil {
					return err
				}
				lastIteration = snap.Progress.Iteration
			}
			if snap.Status != previousStatus {
				if err := send("status_change", map[string]any{"status": snap.Status}); err != nil {
					return err
				}
				previousStatus = snap.Status
			}
			if snap.Status.Terminal() {
				return send("complete", completeEvent(snap))
			}
		}
	}
}

// CalibrationServiceClient is a thin client for CalibrationServiceDesc
type CalibrationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCalibrationServiceClient(cc grpc.ClientConnInterface) *CalibrationServiceClient {
	return &CalibrationServiceClient{cc: cc}
}

// Call invokes the unary method name with in and returns the response document
func (c *CalibrationServiceClient) Call(ctx context.Context, name string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+CalibrationServiceName+"/"+name, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens the WatchCalibration stream for runID
func (c *CalibrationServiceClient) Watch(ctx context.Context, runID string, intervalMs int, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &CalibrationServiceDesc.Streams[0], "/"+CalibrationServiceName+"/WatchCalibration", opts...)
	if err != nil {
		return nil, err
	}
	req, err := structpb.NewStruct(map[string]any{"run_id": runID, "interval_ms": float64(intervalMs)})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

// ToStruct converts any JSON-encodable document into a Struct
func ToStruct(v any) (*structpb.Struct, error) {
	return toStruct(v)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response: "+err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response: "+err.Error())
	}
	return out, nil
}

func decodeRunStruct(in *structpb.Struct) (*RunRequest, error) {
	data, err := protojson.Marshal(in)
	if err != nil {
		return nil, err
	}
	return DecodeRunRequest(data)
}

func runIDField(in *structpb.Struct) string {
	return in.GetFields()["run_id"].GetStringValue()
}

// peerID identifies the caller for rate limiting by its remote IP
func peerID(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

// grpcError maps a Service error onto a gRPC status
func grpcError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, ErrThrottled):
		code = codes.ResourceExhausted
	case errors.Is(err, ErrRunNotFound):
		code = codes.NotFound
	case errors.Is(err, ErrRunExists):
		code = codes.AlreadyExists
	case errors.Is(err, ErrRunTerminal):
		code = codes.FailedPrecondition
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrRunIDMissing),
		errors.Is(err, models.ErrMissingPrecondition),
		errors.Is(err, models.ErrInvalidConfiguration):
		code = codes.InvalidArgument
	default:
		logger.Error("calibration rpc failed", "error", err)
	}
	return status.Error(code, err.Error())
}
