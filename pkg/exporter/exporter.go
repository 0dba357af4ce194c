package exporter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"

	"ufsvault/pkg/core"
	"ufsvault/pkg/storage"
	"ufsvault/pkg/unixfs"
)

var (
	ErrNotFound      = errors.New("exporter: not found")
	ErrInvalidParams = errors.New("exporter: invalid offset or length")
	ErrNotFile       = errors.New("exporter: not a file")
	ErrNotDirectory  = errors.New("exporter: not a directory")
	ErrUnsupported   = errors.New("exporter: unsupported node")
	ErrCorrupt       = errors.New("exporter: corrupt dag")
)

// Kind 是解析后条目的类别
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindHAMTShard
	KindSymlink
	KindMetadata
	KindRaw
	KindIdentity
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindHAMTShard:
		return "hamt-sharded-directory"
	case KindSymlink:
		return "symlink"
	case KindMetadata:
		return "metadata"
	case KindRaw:
		return "raw"
	case KindIdentity:
		return "identity"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

type Exporter struct {
	store storage.Store
}

func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store}
}

// Entry 是路径解析的结果，内容和子条目都是按需读取的
type Entry struct {
	Name string
	Path string
	Cid  cid.Cid
	Kind Kind

	// Size 是逻辑字节数 (目录为 0)
	Size uint64

	// Record 仅 dag-pb 节点有值
	Record *unixfs.Record

	node   *core.ProtoNode
	data   []byte
	object any
	exp    *Exporter
}

// Node 返回 dag-pb 节点 (其它 codec 为 nil)
func (en *Entry) Node() *core.ProtoNode { return en.node }

// Object 返回 dag-cbor 条目的值
func (en *Entry) Object() any { return en.object }

// CumulativeSize 子树的累计编码大小
func (en *Entry) CumulativeSize() uint64 {
	if en.node != nil {
		return en.node.CumulativeSize()
	}
	return uint64(len(en.data))
}

// Mode 返回权限位，未设置时按类型给出默认值
func (en *Entry) Mode() uint32 {
	if en.Record != nil {
		return en.Record.Mode()
	}
	return unixfs.DefaultFileMode
}

func (en *Entry) Mtime() *unixfs.Mtime {
	if en.Record != nil {
		return en.Record.Mtime
	}
	return nil
}

// IsDir 是否是可列举的目录
func (en *Entry) IsDir() bool {
	return en.Kind == KindDirectory || en.Kind == KindHAMTShard
}

// Resolve 解析 "<cid>/a/b" 或 "/ipfs/<cid>/a/b" 形式的路径
func (e *Exporter) Resolve(ctx context.Context, path string) (*Entry, error) {
	root, segments, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return e.ResolveCid(ctx, root, segments)
}

// ParsePath 拆分路径为根 CID 和剩余的路径段
func ParsePath(path string) (cid.Cid, []string, error) {
	p := strings.TrimPrefix(path, "/ipfs/")
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return cid.Undef, nil, fmt.Errorf("%w: empty path", ErrInvalidParams)
	}
	root, err := cid.Decode(segments[0])
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("%w: bad cid %q: %v", ErrInvalidParams, segments[0], err)
	}
	return root, segments[1:], nil
}

// ResolveCid 从 root 出发逐段解析路径
func (e *Exporter) ResolveCid(ctx context.Context, root cid.Cid, segments []string) (*Entry, error) {
	en, err := e.entryFor(ctx, root, root.String(), root.String())
	if err != nil {
		return nil, err
	}

	for len(segments) > 0 {
		seg := segments[0]
		switch en.Kind {
		case KindDirectory:
			link, ok := en.node.FindLink(seg)
			if !ok {
				return nil, fmt.Errorf("%w: no link named %q under %s", ErrNotFound, seg, en.Cid)
			}
			en, err = e.entryFor(ctx, link.Cid, seg, en.Path+"/"+seg)
			if err != nil {
				return nil, err
			}
			segments = segments[1:]

		case KindHAMTShard:
			return nil, fmt.Errorf("%w: sharded directory %s", ErrUnsupported, en.Cid)

		case KindObject:
			en, segments, err = e.walkObject(ctx, en, segments)
			if err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: no link named %q in %s node %s", ErrNotFound, seg, en.Kind, en.Cid)
		}
	}
	return en, nil
}

// walkObject 在 dag-cbor 值内部按段前进，遇到链接 (Tag 42) 时切换到被链接的块
func (e *Exporter) walkObject(ctx context.Context, en *Entry, segments []string) (*Entry, []string, error) {
	val := en.object
	consumed := 0
	for consumed < len(segments) {
		next, ok := step(val, segments[consumed])
		if !ok {
			return nil, nil, fmt.Errorf("%w: no property named %q in object %s", ErrNotFound, segments[consumed], en.Cid)
		}
		consumed++
		val = next
		if tag, ok := val.(cbor.Tag); ok && tag.Number == 42 {
			break
		}
	}

	name := segments[consumed-1]
	path := en.Path + "/" + strings.Join(segments[:consumed], "/")
	rest := segments[consumed:]

	if tag, ok := val.(cbor.Tag); ok && tag.Number == 42 {
		c, err := core.LinkFromTag(tag)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, en.Cid, err)
		}
		next, err := e.entryFor(ctx, c, name, path)
		return next, rest, err
	}

	return &Entry{
		Name:   name,
		Path:   path,
		Cid:    en.Cid,
		Kind:   KindObject,
		object: val,
		exp:    e,
	}, rest, nil
}

func step(val any, seg string) (any, bool) {
	switch v := val.(type) {
	case map[string]any:
		next, ok := v[seg]
		return next, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	default:
		return nil, false
	}
}

// fetch 读取块，identity CID 直接返回内联数据
func (e *Exporter) fetch(ctx context.Context, c cid.Cid) (core.Block, error) {
	if core.IsIdentity(c) {
		data, err := core.IdentityData(c)
		if err != nil {
			return nil, err
		}
		return core.NewBlock(c, data), nil
	}
	blk, err := storage.GetBlock(ctx, e.store, c)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c, err)
	}
	return blk, nil
}

// entryFor 读取并解码一个块
func (e *Exporter) entryFor(ctx context.Context, c cid.Cid, name, path string) (*Entry, error) {
	blk, err := e.fetch(ctx, c)
	if err != nil {
		return nil, err
	}
	en := &Entry{Name: name, Path: path, Cid: c, exp: e}

	switch c.Type() {
	case cid.Raw:
		en.data = blk.RawData()
		en.Size = uint64(len(en.data))
		en.Kind = KindRaw
		if core.IsIdentity(c) {
			en.Kind = KindIdentity
		}

	case cid.DagProtobuf:
		node, err := core.DecodeProtoNode(c, blk.RawData())
		if err != nil {
			return nil, err
		}
		rec, err := node.UnixFS()
		if err != nil {
			return nil, err
		}
		en.node = node
		en.Record = rec
		en.Size = rec.FileSize()
		switch rec.Type {
		case unixfs.TFile, unixfs.TRaw:
			en.Kind = KindFile
		case unixfs.TDirectory:
			en.Kind = KindDirectory
		case unixfs.THAMTShard:
			en.Kind = KindHAMTShard
		case unixfs.TSymlink:
			en.Kind = KindSymlink
		case unixfs.TMetadata:
			en.Kind = KindMetadata
		default:
			return nil, fmt.Errorf("%w: %s", unixfs.ErrBadNodeType, c)
		}

	case cid.DagCBOR:
		v, err := core.DecodeGeneric(blk.RawData())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		en.data = blk.RawData()
		en.object = v
		en.Size = uint64(len(en.data))
		en.Kind = KindObject

	default:
		return nil, fmt.Errorf("%w: codec %s (%s)", ErrUnsupported, core.CodecName(c.Type()), c)
	}
	return en, nil
}
