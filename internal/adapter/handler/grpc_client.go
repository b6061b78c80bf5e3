package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
)

// Client calls AssemblyService over a connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithCaller attaches the caller identity to outgoing calls.
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return metadata.AppendToOutgoingContext(ctx,
		metadataMemberID, caller.Member,
		metadataTeam, caller.Team,
		metadataTeamType, string(caller.TeamType),
	)
}

func (c *Client) CheckAvailability(ctx context.Context, in *CheckAvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error) {
	out := new(AvailabilityResponse)
	if err := c.invoke(ctx, "CheckAvailability", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Assemble(ctx context.Context, in *AssembleAircraftRequest, opts ...grpc.CallOption) (*AircraftResponse, error) {
	out := new(AircraftResponse)
	if err := c.invoke(ctx, "Assemble", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAircraft(ctx context.Context, in *GetAircraftRequest, opts ...grpc.CallOption) (*AircraftDetailResponse, error) {
	out := new(AircraftDetailResponse)
	if err := c.invoke(ctx, "GetAircraft", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePart(ctx context.Context, in *CreatePartRequest, opts ...grpc.CallOption) (*PartResponse, error) {
	out := new(PartResponse)
	if err := c.invoke(ctx, "CreatePart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RecyclePart(ctx context.Context, in *RecyclePartRequest, opts ...grpc.CallOption) (*PartResponse, error) {
	out := new(PartResponse)
	if err := c.invoke(ctx, "RecyclePart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+assemblyServiceName+"/"+method, in, out, opts...)
}
