package meta

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Ref 存储命名指针 (例如 "HEAD")
type Ref struct {
	// Name 是主键，例如 "HEAD"
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// Cid 指向当前的 Snapshot
	Cid string `gorm:"type:varchar(128);not null"`

	// Version 用于乐观锁并发控制 (CAS)，每次更新时 +1
	Version int64 `gorm:"default:1"`

	UpdatedAt time.Time
}

// SnapshotModel 是 core.Snapshot 在关系型数据库中的投影 (索引)
// 用于快速查询历史 (ufs log)，支持按作者、时间搜索
type SnapshotModel struct {
	Cid string `gorm:"primaryKey;type:varchar(128)"`

	Author    string `gorm:"index;type:varchar(100)"`
	Message   string `gorm:"type:text"`
	Timestamp int64  `gorm:"index"`

	TreeCid string `gorm:"type:varchar(128);not null"`

	// Parents: ["cid1", "cid2"]
	Parents datatypes.JSON

	CreatedAt time.Time
}

func (SnapshotModel) TableName() string {
	return "snapshots"
}

// ImportOptions 导入时使用的参数，随记录一起保存以便复现
type ImportOptions struct {
	Strategy    string `json:"strategy"`
	Chunker     string `json:"chunker"`
	MaxChildren int    `json:"max_children"`
	LayerRepeat int    `json:"layer_repeat"`
	RawLeaves   bool   `json:"raw_leaves"`
	LeafType    string `json:"leaf_type"`
	ReduceLeaf  bool   `json:"reduce_single_leaf"`
	CidVersion  int    `json:"cid_version"`
	HashAlg     string `json:"hash_alg"`
}

// ImportParams 内容之外决定根 CID 的全部输入：导入参数 + 写进根节点的文件元数据
type ImportParams struct {
	Options    ImportOptions `json:"options"`
	Mode       *uint32       `json:"mode,omitempty"`
	MtimeSecs  *int64        `json:"mtime,omitempty"`
	MtimeNsecs uint32        `json:"mtime_nsecs,omitempty"`
}

// Key 参数的摘要，秒传只复用 Key 相同的导入
func (p ImportParams) Key() string {
	if p.MtimeSecs == nil {
		p.MtimeNsecs = 0
	}
	b, _ := json.Marshal(p) // 只有基本类型，不会失败
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// ImportRecord 一次文件导入的结果
// (root_cid, path) 唯一：同一内容以同一路径重复导入只记一次
type ImportRecord struct {
	ID uint `gorm:"primaryKey"`

	Path    string `gorm:"uniqueIndex:idx_import_root_path;type:varchar(1024);not null"`
	RootCid string `gorm:"uniqueIndex:idx_import_root_path;type:varchar(128);not null"`

	// Size 是 DAG 的累计编码大小，FileSize 是原始字节数
	Size     uint64
	FileSize uint64

	Strategy string `gorm:"type:varchar(16)"`

	// LinearHash 原始字节的 SHA-256，用于秒传
	LinearHash string `gorm:"index;type:char(64)"`

	Options datatypes.JSON

	// 保留下来的元数据，未保留时为空
	Mode       *uint32
	MtimeSecs  *int64
	MtimeNsecs uint32

	// ParamsKey 见 ImportParams.Key
	ParamsKey string `gorm:"index;type:char(64)"`

	CreatedAt time.Time
}

func (ImportRecord) TableName() string {
	return "imports"
}

// SetOptions 序列化导入参数
func (r *ImportRecord) SetOptions(o ImportOptions) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	r.Options = datatypes.JSON(b)
	r.Strategy = o.Strategy
	return nil
}

// SetParams 写入导入参数、元数据和它们的摘要
func (r *ImportRecord) SetParams(p ImportParams) error {
	if err := r.SetOptions(p.Options); err != nil {
		return err
	}
	r.Mode = p.Mode
	r.MtimeSecs = p.MtimeSecs
	r.MtimeNsecs = 0
	if p.MtimeSecs != nil {
		r.MtimeNsecs = p.MtimeNsecs
	}
	r.ParamsKey = p.Key()
	return nil
}

// DecodeOptions 反序列化导入参数
func (r *ImportRecord) DecodeOptions() (ImportOptions, error) {
	var o ImportOptions
	if len(r.Options) == 0 {
		return o, nil
	}
	err := json.Unmarshal(r.Options, &o)
	return o, err
}
