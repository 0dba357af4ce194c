package service

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ufsrpc "ufsvault/pkg/api/ufsrpc/v1"
	"ufsvault/pkg/exporter"
	"ufsvault/pkg/storage"
)

// toStatus 把领域错误映射为 gRPC 状态码
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, exporter.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, exporter.ErrInvalidParams), errors.Is(err, ufsrpc.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, exporter.ErrNotFile), errors.Is(err, exporter.ErrNotDirectory):
		code = codes.FailedPrecondition
	case errors.Is(err, exporter.ErrUnsupported):
		code = codes.Unimplemented
	case errors.Is(err, exporter.ErrCorrupt):
		code = codes.DataLoss
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
