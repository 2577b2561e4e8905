package grpc

import (
	"errors"
	"fmt"
	"math"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func GRPCErrorResponse(err error) error {
	if nf, ok := e.AsNotFound(err); ok {
		return status.Error(codes.NotFound, nf.Error())
	}

	switch {
	case errors.Is(err, e.ErrUserIDRequired):
		return status.Error(codes.InvalidArgument, e.ErrUserIDRequired.Error())
	case errors.Is(err, e.ErrProductIDRequired):
		return status.Error(codes.InvalidArgument, e.ErrProductIDRequired.Error())
	case errors.Is(err, e.ErrInvalidCount):
		return status.Error(codes.InvalidArgument, e.ErrInvalidCount.Error())
	case errors.Is(err, e.ErrStatusBadRequest):
		return status.Error(codes.InvalidArgument, e.ErrStatusBadRequest.Error())
	case errors.Is(err, e.ErrModelNotLoaded):
		return status.Error(codes.Unavailable, e.ErrModelNotLoaded.Error())
	case errors.Is(err, e.ErrReloadInFlight):
		return status.Error(codes.Unavailable, e.ErrReloadInFlight.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}

func stringField(in *structpb.Struct, name string) (string, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return "", nil
	}

	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%s must be a string: %w", name, e.ErrStatusBadRequest)
	}

	return s.StringValue, nil
}

// countField читает целое число; отсутствующее поле даёт def.
func countField(in *structpb.Struct, name string, def int) (int, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return def, nil
	}

	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) || n.NumberValue <= 0 || n.NumberValue > math.MaxInt32 {
		return 0, fmt.Errorf("%s: %w", name, e.ErrInvalidCount)
	}

	return int(n.NumberValue), nil
}
