package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ufsrpc "ufsvault/pkg/api/ufsrpc/v1"
	"ufsvault/pkg/app"
	"ufsvault/pkg/exporter"
	"ufsvault/pkg/ingester"
	"ufsvault/pkg/layout"
	"ufsvault/pkg/types"
	"ufsvault/pkg/unixfs"
)

type DataService struct {
	ufsrpc.UnimplementedDataServiceServer
	app *app.App
}

func NewDataService(application *app.App) *DataService {
	return &DataService{
		app: application,
	}
}

// =============================================================================
// 0. Pre-check (Optimistic Deduplication)
// =============================================================================

// Check 实现了"双阶段上传"的第一阶段
// 客户端提供文件的 LinearHash、Size 以及将要使用的元数据和导入参数，
// 服务端只复用参数完全相同的导入记录
func (s *DataService) Check(ctx context.Context, req *ufsrpc.CheckRequest) (*ufsrpc.CheckResponse, error) {
	// 1. 参数校验
	if err := req.Validate(); err != nil {
		return nil, toStatus(err)
	}
	linearHash := types.LinearHash(req.Sha256)

	// 与 Add 相同的方式得出生效的导入参数
	opts, err := applyOverrides(s.app.Options, req.Options)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	params := app.ImportParamsOf(opts, fileMeta("", req.Mode, req.MtimeSecs, req.MtimeNsecs))

	// 2. 查询导入记录
	rec, err := s.app.Meta.FindImportByLinearHash(ctx, linearHash, params.Key())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to query imports: %v", err)
	}
	if rec == nil {
		return &ufsrpc.CheckResponse{Exists: false}, nil
	}

	// 3. 哈希相同但大小不同：碰撞或脏数据，强制重传
	if int64(rec.FileSize) != req.Size {
		slog.Warn("linear hash matched with a different size",
			"sha256", linearHash.String(), "db_size", rec.FileSize, "req_size", req.Size)
		return &ufsrpc.CheckResponse{Exists: false}, nil
	}

	// 4. 再次确认根块仍在存储中
	root, err := cid.Decode(rec.RootCid)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "corrupted import record %d: %v", rec.ID, err)
	}
	exists, err := s.app.Store.Has(ctx, root)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "storage check failed: %v", err)
	}
	if !exists {
		slog.Warn("import record points at a missing block", "sha256", linearHash.String(), "cid", root.String())
		return &ufsrpc.CheckResponse{Exists: false}, nil
	}

	// 5. 秒传
	slog.Info("instant upload", "sha256", linearHash.String(), "cid", root.String())
	return &ufsrpc.CheckResponse{Exists: true, Cid: root.String()}, nil
}

// =============================================================================
// 1. Add (Client-Side Streaming) with Integrity Check & Recording
// =============================================================================

// Add 接收客户端的流式上传
// 协议约定：第一帧必须是 Meta (含 sha256)，后续帧是 Chunk
func (s *DataService) Add(stream grpc.ClientStreamingServer[ufsrpc.AddRequest, ufsrpc.AddResponse]) error {
	// --- Step 1: 握手 ---
	first, err := stream.Recv()
	if err == io.EOF {
		return status.Error(codes.InvalidArgument, "empty stream: expected metadata frame")
	}
	if err != nil {
		return status.Errorf(codes.Internal, "failed to receive metadata: %v", err)
	}
	fm := first.Meta
	if fm == nil {
		return status.Error(codes.InvalidArgument, "protocol violation: first frame must be FileMeta")
	}
	if err := fm.Validate(); err != nil {
		return toStatus(err)
	}
	opts, err := applyOverrides(s.app.Options, fm.Options)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	opts.OnlyHash = false
	opts.Progress = nil

	ing, err := ingester.NewIngester(s.app.Store, opts)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	claimed := types.LinearHash(fm.Sha256)
	slog.Debug("receiving upload", "path", fm.Path, "sha256", claimed.String())

	// --- Step 2: 组装 ---
	// stream -> io.Reader -> TeeReader(hasher) -> Ingester
	hasher := types.NewLinearHasher()
	reader := io.TeeReader(NewGrpcStreamReader(stream), hasher)

	// --- Step 3: 导入 ---
	ctx := stream.Context()
	meta := fileMeta(fm.Path, fm.Mode, fm.MtimeSecs, fm.MtimeNsecs)
	d, err := ing.IngestFile(ctx, reader, meta)
	if err != nil {
		if errors.Is(err, errUnexpectedMeta) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
		return toStatus(fmt.Errorf("ingestion failed: %w", err))
	}

	// --- Step 4: 完整性校验 ---
	// 数据已经进了存储，但校验失败时不记录，它不会被秒传引用
	actual := hasher.Sum()
	if actual != claimed {
		slog.Warn("upload integrity check failed", "path", fm.Path, "claimed", claimed.String(), "actual", actual.String())
		return status.Errorf(codes.DataLoss, "integrity check failed: data corruption detected")
	}

	// --- Step 5: 记录 ---
	// 记录失败不影响上传结果，只是下次无法秒传
	if err := s.app.RecordImport(ctx, fm.Path, d, actual, app.ImportParamsOf(opts, meta)); err != nil {
		slog.Warn("failed to record import", "path", fm.Path, "error", err)
	}

	// --- Step 6: 响应 ---
	return stream.SendAndClose(&ufsrpc.AddResponse{
		Cid:      d.Cid.String(),
		Size:     d.Size,
		FileSize: d.FileSize,
	})
}

func fileMeta(path string, mode *uint32, mtimeSecs *int64, mtimeNsecs uint32) ingester.FileMeta {
	m := ingester.FileMeta{Path: path, Mode: mode}
	if mtimeSecs != nil {
		m.Mtime = &unixfs.Mtime{Secs: *mtimeSecs, Nsecs: mtimeNsecs}
	}
	return m
}

// applyOverrides 客户端参数覆盖服务端默认值
func applyOverrides(base ingester.Options, o *ufsrpc.ImportOptions) (ingester.Options, error) {
	if o == nil {
		return base, nil
	}
	if o.Strategy != "" {
		st, err := layout.ParseStrategy(o.Strategy)
		if err != nil {
			return base, err
		}
		base.Strategy = st
	}
	if o.Chunker != "" {
		base.Chunker = o.Chunker
	}
	if o.MaxChildren > 0 {
		base.MaxChildrenPerNode = o.MaxChildren
	}
	if o.RawLeaves != nil {
		base.RawLeaves = *o.RawLeaves
	}
	if o.CidVersion != nil {
		base.CidVersion = *o.CidVersion
	}
	return base, nil
}

// =============================================================================
// 2. Cat (Server-Side Streaming)
// =============================================================================

// Cat 读取文件内容 (或其中一段)
func (s *DataService) Cat(req *ufsrpc.CatRequest, stream grpc.ServerStreamingServer[ufsrpc.CatResponse]) error {
	if err := req.Validate(); err != nil {
		return toStatus(err)
	}

	var opts []exporter.ContentOption
	if req.Offset != 0 {
		opts = append(opts, exporter.WithOffset(req.Offset))
	}
	if req.Length != nil {
		opts = append(opts, exporter.WithLength(*req.Length))
	}

	// gRPC 流本质上是串行的，Exporter 按顺序写入即可
	n, err := s.app.GetExporter().ExportFile(stream.Context(), req.Path, NewGrpcStreamWriter(stream), opts...)
	if err != nil {
		return toStatus(err)
	}
	slog.Debug("served", "path", req.Path, "bytes", n)
	return nil
}

// =============================================================================
// 3. Stat / Ls (Unary)
// =============================================================================

func (s *DataService) Stat(ctx context.Context, req *ufsrpc.StatRequest) (*ufsrpc.StatResponse, error) {
	en, err := s.app.GetExporter().Resolve(ctx, req.Path)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &ufsrpc.StatResponse{
		Cid:            en.Cid.String(),
		Kind:           en.Kind.String(),
		Size:           en.Size,
		CumulativeSize: en.CumulativeSize(),
		Mode:           en.Mode(),
	}
	if mt := en.Mtime(); mt != nil {
		secs := mt.Secs
		resp.MtimeSecs = &secs
	}
	if node := en.Node(); node != nil {
		resp.Links = len(node.Links)
	}
	return resp, nil
}

func (s *DataService) Ls(ctx context.Context, req *ufsrpc.LsRequest) (*ufsrpc.LsResponse, error) {
	en, err := s.app.GetExporter().Resolve(ctx, req.Path)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &ufsrpc.LsResponse{Entries: []ufsrpc.LsEntry{}}
	for child, err := range en.Entries(ctx) {
		if err != nil {
			return nil, toStatus(err)
		}
		resp.Entries = append(resp.Entries, ufsrpc.LsEntry{
			Name: child.Name,
			Cid:  child.Cid.String(),
			Kind: child.Kind.String(),
			Size: child.Size,
		})
	}
	return resp, nil
}
