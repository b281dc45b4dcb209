package api

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"product-variant-service/internal/domain"
	"product-variant-service/internal/variant"
)

const (
	previewServiceName = "variantsync.v1.VariantPreview"
	previewMethod      = "/" + previewServiceName + "/Preview"
)

// PreviewServer is the server API of the variant preview service. Messages are
// google.protobuf.Struct so the service needs no generated code.
type PreviewServer interface {
	Preview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// PreviewServiceDesc describes the preview service for grpc.Server.RegisterService.
var PreviewServiceDesc = grpc.ServiceDesc{
	ServiceName: previewServiceName,
	HandlerType: (*PreviewServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Preview", Handler: previewHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "variantsync/v1/preview.proto",
}

func previewHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PreviewServer).Preview(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: previewMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PreviewServer).Preview(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// PreviewClient calls the preview service.
type PreviewClient struct {
	cc grpc.ClientConnInterface
}

// NewPreviewClient creates a client on cc.
func NewPreviewClient(cc grpc.ClientConnInterface) *PreviewClient {
	return &PreviewClient{cc: cc}
}

// Preview generates the variant tree for req.
func (c *PreviewClient) Preview(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, previewMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCHandler implements PreviewServer: it runs the generation and merge of a
// fresh tree without touching any draft.
type GRPCHandler struct {
	engine *variant.Engine
	logger *zap.Logger
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(engine *variant.Engine, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{engine: engine, logger: logger}
}

// previewRequest is the expected shape of the request struct:
//
//	{"base_name": "Chair",
//	 "properties": [{"name": "Color", "values": ["Red", "Blue"]}],
//	 "options": [{"name": "Size", "values": ["S", "M"]}]}
type previewRequest struct {
	BaseName   string          `json:"base_name"`
	Properties domain.FacetSet `json:"properties"`
	Options    domain.FacetSet `json:"options"`
}

type previewResponse struct {
	Products []domain.ProductPayload `json:"products"`
	SkuCount int                     `json:"sku_count"`
}

func (s *GRPCHandler) Preview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := req.MarshalJSON()
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "Malformed request: %v", err)
	}
	var in previewRequest
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "Malformed request: %v", err)
	}
	if strings.TrimSpace(in.BaseName) == "" {
		return nil, status.Error(codes.InvalidArgument, "base_name is required")
	}
	if err := in.Properties.Validate(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "properties: %v", err)
	}
	if err := in.Options.Validate(); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "options: %v", err)
	}
	if err := s.engine.CheckSize(in.Properties, in.Options); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var candidates []domain.ProductVariant
	if in.Properties.HasValid() {
		candidates = variant.GenerateProducts(in.BaseName, in.Properties)
	} else {
		candidates = variant.BaseProduct(in.BaseName)
	}
	tree := s.engine.Merge(candidates, domain.Tree{}, in.Options)

	resp := previewResponse{Products: make([]domain.ProductPayload, 0, len(tree.Products)), SkuCount: tree.SkuCount()}
	for _, p := range tree.Products {
		resp.Products = append(resp.Products, domain.BuildPayload(p))
	}
	out, err := toStruct(resp)
	if err != nil {
		s.logger.Error("preview: encode response", zap.Error(err))
		return nil, status.Error(codes.Internal, "Failed to encode preview")
	}
	s.logger.Debug("preview generated",
		zap.String("base_name", in.BaseName),
		zap.Int("products", len(resp.Products)),
		zap.Int("skus", resp.SkuCount),
	)
	return out, nil
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return out, nil
}
