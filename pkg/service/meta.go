package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ufsrpc "ufsvault/pkg/api/ufsrpc/v1"
	"ufsvault/pkg/app"
	"ufsvault/pkg/core"
	"ufsvault/pkg/refs"
)

type MetaService struct {
	ufsrpc.UnimplementedMetaServiceServer
	app *app.App
}

func NewMetaService(application *app.App) *MetaService {
	return &MetaService{app: application}
}

// GetHead 返回当前 HEAD
func (s *MetaService) GetHead(ctx context.Context, req *ufsrpc.GetHeadRequest) (*ufsrpc.GetHeadResponse, error) {
	head, ver, err := s.app.Refs.GetHead(ctx)
	if err != nil {
		if errors.Is(err, refs.ErrNoHead) {
			return &ufsrpc.GetHeadResponse{Exists: false}, nil
		}
		return nil, status.Errorf(codes.Internal, "failed to read HEAD: %v", err)
	}

	return &ufsrpc.GetHeadResponse{
		Exists:  true,
		Cid:     head.String(),
		Version: ver,
	}, nil
}

// Snapshot 为已经上传的目录树创建快照并移动 HEAD
// Parents 为空时以当前 HEAD 为父节点
func (s *MetaService) Snapshot(ctx context.Context, req *ufsrpc.SnapshotRequest) (*ufsrpc.SnapshotResponse, error) {
	// A. 校验
	if err := req.Validate(); err != nil {
		return nil, toStatus(err)
	}
	tree, err := cid.Decode(req.Tree)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad tree cid: %v", err)
	}
	parents := make([]cid.Cid, 0, len(req.Parents))
	for _, p := range req.Parents {
		c, err := cid.Decode(p)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "bad parent cid %q: %v", p, err)
		}
		parents = append(parents, c)
	}

	// B. 目录树必须已经在存储中
	ok, err := s.app.Store.Has(ctx, tree)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "storage check failed: %v", err)
	}
	if !ok {
		return nil, status.Errorf(codes.FailedPrecondition, "tree %s has not been uploaded", tree)
	}

	// C. 当前 HEAD (为了 CAS)
	head, currentVer, err := s.app.Refs.GetHead(ctx)
	switch {
	case err == nil:
		if len(parents) == 0 {
			parents = []cid.Cid{head}
		}
	case errors.Is(err, refs.ErrNoHead):
	default:
		return nil, status.Errorf(codes.Internal, "failed to check current HEAD: %v", err)
	}

	// D. 编排
	snap, err := core.NewSnapshot(tree, parents, req.Author, req.Message)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create snapshot: %v", err)
	}
	if err := s.app.Store.Put(ctx, snap); err != nil {
		return nil, status.Errorf(codes.Internal, "storage backend failed: %v", err)
	}
	if err := s.app.Meta.IndexSnapshot(ctx, snap); err != nil {
		return nil, status.Errorf(codes.Internal, "metadata indexing failed: %v", err)
	}
	if err := s.app.Refs.UpdateHead(ctx, snap.Cid(), currentVer); err != nil {
		if errors.Is(err, refs.ErrStaleHead) {
			return nil, status.Error(codes.Aborted, err.Error())
		}
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to update HEAD: %v", err))
	}

	slog.Info("new snapshot", "cid", snap.Cid().String(), "author", req.Author)
	return &ufsrpc.SnapshotResponse{Cid: snap.Cid().String()}, nil
}
