package core

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// 定义符合 DAG-CBOR 规范的编码选项
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	// 保证相同的对象生成唯一的 Hash
	Sort: cbor.SortCanonical,

	// 2. 浮点数必须使用 64 位表示
	ShortestFloat: cbor.ShortestFloatNone,

	// 3. 时间格式化为 Unix 整数
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 4. 禁止不定长编码 (Indefinite Length)
	IndefLength: cbor.IndefLengthForbidden,

	// 5. 大整数使用最短编码
	BigIntConvert: cbor.BigIntConvertShortest,
}

// 全局复用的编码模式
var em, _ = encOptions.EncMode()

// 定义符合 DAG-CBOR 规范的解码选项
var decOptions = cbor.DecOptions{
	// 限制容器元素数量和嵌套深度，防止恶意构造的巨大头部耗尽内存或栈
	MaxArrayElements: 10000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  100,

	// 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,

	// DAG-CBOR 不允许重复 Key
	DupMapKey: cbor.DupMapKeyEnforcedAPF,

	BignumTag: cbor.BignumTagForbidden,
	TimeTag:   cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// 路径解析时把 map 解成 map[string]any，方便按段查找
var genericDm, _ = cbor.DecOptions{
	MaxArrayElements: decOptions.MaxArrayElements,
	MaxMapPairs:      decOptions.MaxMapPairs,
	MaxNestedLevels:  decOptions.MaxNestedLevels,
	IndefLength:      cbor.IndefLengthForbidden,
	DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
}.DecMode()

// CidBuilder 描述生成 CID 的参数 (版本 + 哈希算法)
type CidBuilder struct {
	Version uint64
	HashAlg uint64
}

// DefaultCidBuilder CIDv0 + sha2-256
var DefaultCidBuilder = CidBuilder{Version: 0, HashAlg: mh.SHA2_256}

// NewCidBuilder 按名字解析哈希算法 (如 "sha2-256", "blake3")
func NewCidBuilder(version int, hashAlg string) (CidBuilder, error) {
	if version != 0 && version != 1 {
		return CidBuilder{}, fmt.Errorf("unsupported cid version %d", version)
	}
	code, ok := mh.Names[hashAlg]
	if !ok {
		return CidBuilder{}, fmt.Errorf("unsupported hash algorithm %q", hashAlg)
	}
	return CidBuilder{Version: uint64(version), HashAlg: code}, nil
}

// Sum 计算数据的 CID
// CIDv0 只能表达 dag-pb + sha2-256，其它组合自动升级为 CIDv1
func (b CidBuilder) Sum(codec uint64, data []byte) (cid.Cid, error) {
	version := b.Version
	if codec != cid.DagProtobuf || b.HashAlg != mh.SHA2_256 {
		version = 1
	}
	c, err := cid.Prefix{
		Version:  version,
		Codec:    codec,
		MhType:   b.HashAlg,
		MhLength: -1,
	}.Sum(data)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to compute cid: %w", err)
	}
	return c, nil
}

// WithVersion 返回一个修改了版本号的副本
func (b CidBuilder) WithVersion(v uint64) CidBuilder {
	b.Version = v
	return b
}

// CalculateHash 以 DAG-CBOR 编码对象并计算 CIDv1
func CalculateHash(v any) (cid.Cid, []byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	c, err := CidBuilder{Version: 1, HashAlg: mh.SHA2_256}.Sum(cid.DagCBOR, data)
	if err != nil {
		return cid.Undef, nil, err
	}
	return c, data, nil
}

// DecodeObject 通用的 DAG-CBOR 解码函数 (供外部使用)
func DecodeObject(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}

// DecodeGeneric 把 DAG-CBOR 解码为 map[string]any / []any / cbor.Tag 的组合
func DecodeGeneric(data []byte) (any, error) {
	var v any
	if err := genericDm.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode dag-cbor: %w", err)
	}
	return v, nil
}

// IsIdentity 判断 CID 是否为 identity 哈希 (数据直接内联在 CID 中)
func IsIdentity(c cid.Cid) bool {
	return c.Prefix().MhType == mh.IDENTITY
}

// IdentityData 取出 identity CID 中内联的数据
func IdentityData(c cid.Cid) ([]byte, error) {
	dec, err := mh.Decode(c.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to decode multihash of %s: %w", c, err)
	}
	if dec.Code != mh.IDENTITY {
		return nil, fmt.Errorf("cid %s is not an identity hash", c)
	}
	return dec.Digest, nil
}

// EncodeObject 以 DAG-CBOR 规范编码任意值
func EncodeObject(v any) ([]byte, error) {
	return em.Marshal(v)
}
