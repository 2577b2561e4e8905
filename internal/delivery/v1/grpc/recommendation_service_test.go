package grpc

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubUC struct {
	loaded    bool
	lastCount int
}

func (s *stubUC) Recommend(_ context.Context, req *usecase.RecommendReq) (*usecase.RecommendRes, error) {
	if req.UserID == "" {
		return nil, e.ErrUserIDRequired
	}
	if !s.loaded {
		return nil, e.ErrModelNotLoaded
	}
	if req.UserID == "ghost" {
		return nil, e.NewNotFoundError("User", req.UserID)
	}
	s.lastCount = req.Count

	return &usecase.RecommendRes{UserID: req.UserID, Version: "v1", Items: []domain.Scored{{ID: "P1", Score: 2.5}}}, nil
}

func (s *stubUC) RelatedProducts(_ context.Context, req *usecase.RelatedProductsReq) (*usecase.RelatedProductsRes, error) {
	if req.ProductID != "A" {
		return nil, e.NewNotFoundError("Product", req.ProductID)
	}
	s.lastCount = req.TopK

	return &usecase.RelatedProductsRes{
		ProductID: "A",
		Version:   "v1",
		Items:     []domain.Scored{{ID: "B", Score: 0.5}},
		Products:  []domain.Product{domain.NewProduct("B", map[string]string{"brand": "acme"})},
	}, nil
}

func (s *stubUC) Reload(context.Context, *usecase.ReloadReq) (*usecase.ReloadRes, error) {
	return nil, e.ErrReloadInFlight
}

func (s *stubUC) Status(context.Context) (*usecase.StatusRes, error) {
	if !s.loaded {
		return &usecase.StatusRes{}, nil
	}

	return &usecase.StatusRes{
		Loaded:      true,
		ManifestKey: "v1/manifest.json",
		Stats:       retrieval.Stats{Version: "v1", Dimension: 3, Users: 3, Products: 5, LoadedAt: time.Unix(0, 0).UTC()},
	}, nil
}

func newClient(t *testing.T, uc usecase.RecommendationUC) *RecommendationServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(&cfg.GRPCConfig{}, logger.NewNop())
	srv.RegisterServices(uc, Defaults{NumRecommendations: 10, TopK: 3})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewRecommendationServiceClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()

	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestRecommendOverGRPC(t *testing.T) {
	uc := &stubUC{loaded: true}
	client := newClient(t, uc)
	ctx := context.Background()

	res, err := client.Recommend(ctx, mustStruct(t, map[string]any{"user_id": "U1"}))
	require.NoError(t, err)
	assert.Equal(t, "U1", res.GetFields()["user_id"].GetStringValue())
	recs := res.GetFields()["recommendations"].GetListValue().GetValues()
	require.Len(t, recs, 1)
	assert.Equal(t, "P1", recs[0].GetStructValue().GetFields()["productId"].GetStringValue())
	assert.Equal(t, 10, uc.lastCount)

	_, err = client.Recommend(ctx, mustStruct(t, map[string]any{"user_id": "U1", "num_recommendations": 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, uc.lastCount)
}

func TestGRPCErrorCodes(t *testing.T) {
	client := newClient(t, &stubUC{loaded: true})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		code codes.Code
		msg  string
	}{
		{"missing user", func() error {
			_, err := client.Recommend(ctx, mustStruct(t, map[string]any{}))
			return err
		}, codes.InvalidArgument, "user_id is required"},
		{"fractional count", func() error {
			_, err := client.Recommend(ctx, mustStruct(t, map[string]any{"user_id": "U1", "num_recommendations": 1.5}))
			return err
		}, codes.InvalidArgument, e.ErrInvalidCount.Error()},
		{"unknown user", func() error {
			_, err := client.Recommend(ctx, mustStruct(t, map[string]any{"user_id": "ghost"}))
			return err
		}, codes.NotFound, "User ID ghost not found"},
		{"unknown product", func() error {
			_, err := client.RelatedProducts(ctx, mustStruct(t, map[string]any{"product_id": "Z"}))
			return err
		}, codes.NotFound, "Product ID Z not found"},
		{"wrong type", func() error {
			_, err := client.RelatedProducts(ctx, mustStruct(t, map[string]any{"product_id": 7}))
			return err
		}, codes.InvalidArgument, e.ErrStatusBadRequest.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(tt.call())
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.msg, st.Message())
		})
	}
}

func TestRelatedProductsCarriesAttributes(t *testing.T) {
	uc := &stubUC{loaded: true}
	client := newClient(t, uc)

	res, err := client.RelatedProducts(context.Background(), mustStruct(t, map[string]any{"product_id": "A", "top_k": 4}))
	require.NoError(t, err)
	assert.Equal(t, 4, uc.lastCount)

	items := res.GetFields()["related_products"].GetListValue().GetValues()
	require.Len(t, items, 1)
	fields := items[0].GetStructValue().GetFields()
	assert.Equal(t, "B", fields["productId"].GetStringValue())
	assert.Equal(t, "acme", fields["attributes"].GetStructValue().GetFields()["brand"].GetStringValue())
}

func TestStatusOverGRPC(t *testing.T) {
	notLoaded := newClient(t, &stubUC{})
	res, err := notLoaded.Status(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.False(t, res.GetFields()["loaded"].GetBoolValue())

	_, err = notLoaded.Recommend(context.Background(), mustStruct(t, map[string]any{"user_id": "U1"}))
	assert.Equal(t, codes.Unavailable, status.Code(err))

	loaded := newClient(t, &stubUC{loaded: true})
	res, err = loaded.Status(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.True(t, res.GetFields()["loaded"].GetBoolValue())
	assert.Equal(t, "v1", res.GetFields()["version"].GetStringValue())
	assert.Equal(t, float64(5), res.GetFields()["products"].GetNumberValue())
}

func TestGRPCErrorResponseUnavailable(t *testing.T) {
	tests := []struct {
		err error
		msg string
	}{
		{fmt.Errorf("reload: %w", e.ErrReloadInFlight), e.ErrReloadInFlight.Error()},
		{fmt.Errorf("recommend: %w", e.ErrModelNotLoaded), e.ErrModelNotLoaded.Error()},
	}

	for _, tt := range tests {
		st, ok := status.FromError(GRPCErrorResponse(tt.err))
		require.True(t, ok)
		assert.Equal(t, codes.Unavailable, st.Code())
		assert.Equal(t, tt.msg, st.Message())
	}
}
