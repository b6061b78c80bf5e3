package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
	"github.com/rl1809/aircraft-assembly/internal/core/service"
)

const (
	assemblyServiceName = "assembly.v1.AssemblyService"

	// CodecName is the content-subtype clients must request.
	CodecName = "json"

	metadataMemberID  = "x-member-id"
	metadataTeam      = "x-team"
	metadataTeamType  = "x-team-type"
	metadataRequestID = "x-request-id"
	metadataPartID    = "x-part-id"
	metadataPartType  = "x-part-type"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries the handler's wire structs over gRPC without generated
// protobuf types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

type AssemblyServiceServer interface {
	CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest) (*AvailabilityResponse, error)
	Assemble(ctx context.Context, req *AssembleAircraftRequest) (*AircraftResponse, error)
	GetAircraft(ctx context.Context, req *GetAircraftRequest) (*AircraftDetailResponse, error)
	CreatePart(ctx context.Context, req *CreatePartRequest) (*PartResponse, error)
	RecyclePart(ctx context.Context, req *RecyclePartRequest) (*PartResponse, error)
}

var AssemblyServiceDesc = grpc.ServiceDesc{
	ServiceName: assemblyServiceName,
	HandlerType: (*AssemblyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: unaryHandler("CheckAvailability", AssemblyServiceServer.CheckAvailability)},
		{MethodName: "Assemble", Handler: unaryHandler("Assemble", AssemblyServiceServer.Assemble)},
		{MethodName: "GetAircraft", Handler: unaryHandler("GetAircraft", AssemblyServiceServer.GetAircraft)},
		{MethodName: "CreatePart", Handler: unaryHandler("CreatePart", AssemblyServiceServer.CreatePart)},
		{MethodName: "RecyclePart", Handler: unaryHandler("RecyclePart", AssemblyServiceServer.RecyclePart)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "assembly/v1/assembly.proto",
}

func RegisterAssemblyServiceServer(s grpc.ServiceRegistrar, srv AssemblyServiceServer) {
	s.RegisterService(&AssemblyServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(AssemblyServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + assemblyServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AssemblyServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AssemblyServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	svc    Services
	logger *zap.Logger
}

var _ AssemblyServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(svc Services, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{svc: svc, logger: logger}
}

func (h *GRPCHandler) CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest) (*AvailabilityResponse, error) {
	report, err := h.svc.Resolver.CheckAvailability(ctx, domain.NormalizeAircraftType(req.AircraftType))
	if err != nil {
		return nil, h.toStatus(ctx, req, err)
	}
	resp := toAvailabilityResponse(report)
	if req.Suggest {
		if sel, ok := report.Suggest(); ok {
			resp.Suggested = sel.Keyed()
		}
	}
	return &resp, nil
}

func (h *GRPCHandler) Assemble(ctx context.Context, req *AssembleAircraftRequest) (*AircraftResponse, error) {
	aircraftType, sel, err := parseAssemble(*req)
	if err != nil {
		return nil, h.toStatus(ctx, req, err)
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = firstMetadata(ctx, metadataRequestID)
	}

	aircraft, err := h.svc.Allocator.Assemble(ctx, service.AssembleRequest{
		RequestID:    requestID,
		Caller:       callerFromMetadata(ctx),
		AircraftType: aircraftType,
		Selection:    sel,
	})
	if err != nil {
		return nil, h.toStatus(ctx, req, err)
	}
	resp := toAircraftResponse(aircraft)
	return &resp, nil
}

func (h *GRPCHandler) GetAircraft(ctx context.Context, req *GetAircraftRequest) (*AircraftDetailResponse, error) {
	detail, err := h.svc.Aircraft.GetAircraft(ctx, req.ID)
	if err != nil {
		return nil, h.toStatus(ctx, req, err)
	}
	resp := toAircraftDetailResponse(detail)
	return &resp, nil
}

func (h *GRPCHandler) CreatePart(ctx context.Context, req *CreatePartRequest) (*PartResponse, error) {
	partType, aircraftType, err := parseCreatePart(*req)
	if err != nil {
		return nil, h.toStatus(ctx, req, err)
	}
	part, err := h.svc.Inventory.CreatePart(ctx, service.CreatePartRequest{
		Caller:       callerFromMetadata(ctx),
		Type:         partType,
		AircraftType: aircraftType,
	})
	if err != nil {
		return nil, h.toStatus(ctx, req, err)
	}
	resp := toPartResponse(part)
	return &resp, nil
}

func (h *GRPCHandler) RecyclePart(ctx context.Context, req *RecyclePartRequest) (*PartResponse, error) {
	part, err := h.svc.Inventory.RecyclePart(ctx, callerFromMetadata(ctx), req.ID)
	if err != nil {
		return nil, h.toStatus(ctx, req, err)
	}
	resp := toPartResponse(part)
	return &resp, nil
}

// toStatus keeps the domain error text, "CODE: detail", as the status
// message so clients can rebuild the typed error.
func (h *GRPCHandler) toStatus(ctx context.Context, req any, err error) error {
	code := grpcCode(err)
	if de, ok := domain.AsError(err); ok {
		if trailer := errorTrailer(de); trailer.Len() > 0 {
			_ = grpc.SetTrailer(ctx, trailer)
		}
		return status.Error(code, de.Error())
	}
	h.logger.Error("grpc request failed", zap.Any("request", req), zap.Error(err))
	return status.Error(code, code.String())
}

// UnaryLoggingInterceptor logs every unary call with its outcome.
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)))
		return resp, err
	}
}

func callerFromMetadata(ctx context.Context) domain.Caller {
	return domain.Caller{
		Member:   firstMetadata(ctx, metadataMemberID),
		Team:     firstMetadata(ctx, metadataTeam),
		TeamType: domain.ParseTeamType(firstMetadata(ctx, metadataTeamType)),
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// errorTrailer carries the offending part, which the status message alone
// does not structure.
func errorTrailer(e *domain.Error) metadata.MD {
	md := metadata.MD{}
	if e.PartID != "" {
		md.Set(metadataPartID, e.PartID)
	}
	if e.PartType != "" {
		md.Set(metadataPartType, e.PartType.String())
	}
	return md
}

// ErrorFromStatus converts a status returned by the service back into the
// typed domain error when the message carries one. Pass the call's trailer
// (grpc.Trailer) to recover the offending part id and type.
func ErrorFromStatus(err error, trailer ...metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	code, detail, found := strings.Cut(st.Message(), ": ")
	if !found {
		code = st.Message()
		detail = ""
	}
	switch domain.ErrorCode(code) {
	case domain.CodeUnknownAircraftType, domain.CodeUnknownPartType, domain.CodeCountMismatch,
		domain.CodeDuplicatePart, domain.CodePartUnavailable, domain.CodePartTypeMismatch,
		domain.CodeConcurrentConflict, domain.CodeNotFound, domain.CodeAlreadyConsumed,
		domain.CodeForbidden, domain.CodeInvalidArgument, domain.CodeDuplicateRequest:
		e := &domain.Error{Code: domain.ErrorCode(code), Detail: detail}
		for _, md := range trailer {
			if v := md.Get(metadataPartID); len(v) > 0 {
				e.PartID = v[0]
			}
			if v := md.Get(metadataPartType); len(v) > 0 {
				e.PartType = domain.PartType(v[0])
			}
		}
		return e
	}
	return err
}
