package grpc

import (
	"context"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "recommender.v1.RecommendationService"

// RecommendationServiceServer - сообщения передаются как google.protobuf.Struct,
// поэтому сервису не нужен сгенерированный код.
type RecommendationServiceServer interface {
	Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RelatedProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Status(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var RecommendationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RecommendationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: unaryHandler("Recommend", RecommendationServiceServer.Recommend)},
		{MethodName: "RelatedProducts", Handler: unaryHandler("RelatedProducts", RecommendationServiceServer.RelatedProducts)},
		{MethodName: "Status", Handler: unaryHandler("Status", RecommendationServiceServer.Status)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recommender/v1/recommendation.proto",
}

type unaryMethod func(RecommendationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + name

	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return method(srv.(RecommendationServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(srv.(RecommendationServiceServer), ctx, req.(*structpb.Struct))
		}

		return interceptor(ctx, in, info, handler)
	}
}

// RecommendationServiceClient - клиент для тех же Struct-сообщений.
type RecommendationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRecommendationServiceClient(cc grpc.ClientConnInterface) *RecommendationServiceClient {
	return &RecommendationServiceClient{cc: cc}
}

func (c *RecommendationServiceClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *RecommendationServiceClient) Recommend(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Recommend", in, opts...)
}

func (c *RecommendationServiceClient) RelatedProducts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "RelatedProducts", in, opts...)
}

func (c *RecommendationServiceClient) Status(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Status", in, opts...)
}

// Defaults - значения count, когда клиент их не передал.
type Defaults struct {
	NumRecommendations int
	TopK               int
}

type RecommendationService struct {
	recUC    usecase.RecommendationUC
	defaults Defaults
	logger   logger.Logger
}

func NewRecommendationService(recUC usecase.RecommendationUC, defaults Defaults, logger logger.Logger) *RecommendationService {
	return &RecommendationService{recUC: recUC, defaults: defaults, logger: logger}
}

func (g *RecommendationService) Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Recommend"

	userID, err := stringField(req, "user_id")
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}
	count, err := countField(req, "num_recommendations", g.defaults.NumRecommendations)
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}

	res, err := g.recUC.Recommend(ctx, &usecase.RecommendReq{UserID: userID, Count: count})
	if err != nil {
		g.logger.Debugf("%s: %v", op, err)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return toStruct(map[string]any{
		"user_id":         res.UserID,
		"version":         res.Version,
		"cached":          res.Cached,
		"recommendations": scoredList(res.Items, nil),
	})
}

func (g *RecommendationService) RelatedProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.RelatedProducts"

	productID, err := stringField(req, "product_id")
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}
	topK, err := countField(req, "top_k", g.defaults.TopK)
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}

	res, err := g.recUC.RelatedProducts(ctx, &usecase.RelatedProductsReq{ProductID: productID, TopK: topK})
	if err != nil {
		g.logger.Debugf("%s: %v", op, err)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return toStruct(map[string]any{
		"product_id":       res.ProductID,
		"version":          res.Version,
		"cached":           res.Cached,
		"related_products": scoredList(res.Items, res.Products),
	})
}

func (g *RecommendationService) Status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Status"

	res, err := g.recUC.Status(ctx)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	out := map[string]any{"loaded": res.Loaded}
	if res.Loaded {
		out["manifest_key"] = res.ManifestKey
		out["version"] = res.Stats.Version
		out["dimension"] = res.Stats.Dimension
		out["users"] = res.Stats.Users
		out["products"] = res.Stats.Products
		out["similarity_products"] = res.Stats.SimilarityProducts
		out["oov_policy"] = res.Stats.OOVPolicy
		out["loaded_at"] = res.Stats.LoadedAt.Format(time.RFC3339)
	}

	return toStruct(out)
}

// scoredList собирает элементы выдачи; products, если передан, добавляет атрибуты продукта.
func scoredList(items []domain.Scored, products []domain.Product) []any {
	out := make([]any, len(items))
	for i, it := range items {
		entry := map[string]any{
			"productId": it.ID,
			"score":     float64(it.Score),
		}

		if i < len(products) && len(products[i].Attributes) > 0 {
			attrs := make(map[string]any, len(products[i].Attributes))
			for k, v := range products[i].Attributes {
				attrs[k] = v
			}
			entry["attributes"] = attrs
		}

		out[i] = entry
	}

	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}

	return s, nil
}
