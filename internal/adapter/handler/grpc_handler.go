package handler

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/paper-fulfillment/internal/core/ledger"
	"github.com/rl1809/paper-fulfillment/internal/core/service"
)

const (
	FulfillmentServiceName = "fulfillment.v1.FulfillmentService"
	JSONCodecName          = "json"
)

// jsonCodec carries the plain Go request/response types over gRPC. Clients
// select it with grpc.CallContentSubtype(JSONCodecName).
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// FulfillmentServer is the gRPC surface of the pipeline.
type FulfillmentServer interface {
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error)
}

type GRPCHandler struct {
	intake *Intake
}

func NewGRPCHandler(intake *Intake) *GRPCHandler {
	return &GRPCHandler{intake: intake}
}

func (h *GRPCHandler) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	resp, err := h.intake.Submit(ctx, *req)
	if err != nil {
		return nil, grpcError(err)
	}
	return &resp, nil
}

func (h *GRPCHandler) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	resp, err := h.intake.Refund(ctx, *req)
	if err != nil {
		return nil, grpcError(err)
	}
	return &resp, nil
}

func RegisterFulfillmentServer(s grpc.ServiceRegistrar, srv FulfillmentServer) {
	s.RegisterService(&fulfillmentServiceDesc, srv)
}

var fulfillmentServiceDesc = grpc.ServiceDesc{
	ServiceName: FulfillmentServiceName,
	HandlerType: (*FulfillmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "Refund", Handler: refundHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func submitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + FulfillmentServiceName + "/Submit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).Submit(ctx, req.(*SubmitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func refundHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RefundRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FulfillmentServer).Refund(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + FulfillmentServiceName + "/Refund"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FulfillmentServer).Refund(ctx, req.(*RefundRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, ledger.ErrUnknownTx):
		return status.Error(codes.NotFound, "transaction not found")
	case errors.Is(err, ledger.ErrAlreadyRefunded):
		return status.Error(codes.AlreadyExists, "already refunded")
	case errors.Is(err, service.ErrNotRefundable), errors.Is(err, ledger.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
