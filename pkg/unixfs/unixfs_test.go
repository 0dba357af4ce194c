package unixfs

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func u64(v uint64) *uint64 { return &v }

// mustRoundTrip 编码后立即解码，失败直接终止测试
func mustRoundTrip(t *testing.T, r *Record) *Record {
	t.Helper()
	b, err := r.Marshal()
	require.NoError(t, err)
	out, err := Unmarshal(b)
	require.NoError(t, err)
	return out
}

func withMode(r *Record, m uint32) *Record {
	r.SetMode(m)
	return r
}

func TestRecord_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
	}{
		{"raw", &Record{Type: TRaw, Data: []byte("raw bytes")}},
		{"file leaf", NewFile([]byte("batata"))},
		{"file with blocksizes", &Record{Type: TFile, Blocksizes: []uint64{256, 256, 100}}},
		{"file with data and blocksizes", &Record{Type: TFile, Data: []byte("head"), Blocksizes: []uint64{10, 20}}},
		{"directory", New(TDirectory)},
		{"symlink", &Record{Type: TSymlink, Data: []byte("../target")}},
		{"metadata", &Record{Type: TMetadata, Data: []byte("text/plain")}},
		{"hamt", &Record{Type: THAMTShard, HashType: u64(0x22), Fanout: u64(256)}},
		{"mode", withMode(NewFile([]byte("x")), 0o555)},
		{"mtime seconds", &Record{Type: TFile, Mtime: &Mtime{Secs: 1_600_000_000}}},
		{"mtime nanos", &Record{Type: TFile, Mtime: &Mtime{Secs: 5, Nsecs: 999}}},
		{"negative mtime", &Record{Type: TFile, Mtime: &Mtime{Secs: -1, Nsecs: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustRoundTrip(t, tt.rec)
			assert.Equal(t, tt.rec, out)
			assert.Equal(t, tt.rec.FileSize(), out.FileSize())
			assert.Equal(t, tt.rec.Mode(), out.Mode())
		})
	}
}

func TestRecord_DefaultModes(t *testing.T) {
	tests := []struct {
		typ  Type
		want uint32
	}{
		{TFile, 0o644},
		{TRaw, 0o644},
		{TSymlink, 0o644},
		{TDirectory, 0o755},
		{THAMTShard, 0o755},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			r := New(tt.typ)
			assert.Equal(t, tt.want, r.Mode())
			assert.False(t, r.HasMode())

			out := mustRoundTrip(t, r)
			assert.Equal(t, tt.want, out.Mode())
			assert.False(t, out.HasMode(), "未设置的 mode 不应出现在编码里")
		})
	}
}

func TestRecord_ExplicitZeroMode(t *testing.T) {
	r := New(TFile)
	r.SetMode(0)

	out := mustRoundTrip(t, r)
	assert.True(t, out.HasMode())
	assert.Equal(t, uint32(0), out.Mode(), "显式 0 必须与默认值区分")
}

func TestRecord_ExplicitDefaultModeIsEmitted(t *testing.T) {
	plain, err := New(TFile).Marshal()
	require.NoError(t, err)

	r := New(TFile)
	r.SetMode(DefaultFileMode)
	withDefault, err := r.Marshal()
	require.NoError(t, err)

	assert.NotEqual(t, plain, withDefault)
	assert.True(t, mustRoundTrip(t, r).HasMode())
}

func TestRecord_SetModeKeepsHighBits(t *testing.T) {
	// 手工构造带文件类型位的 mode (S_IFREG | 0644)
	b := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(TFile))
	b = protowire.AppendTag(b, fieldFileSize, protowire.VarintType)
	b = protowire.AppendVarint(b, 0)
	b = protowire.AppendTag(b, fieldMode, protowire.VarintType)
	b = protowire.AppendVarint(b, 0o100644)

	r, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(0o100644), r.Mode())

	r.SetMode(0o600)
	assert.Equal(t, uint32(0o100600), r.Mode())

	r.ClearMode()
	assert.False(t, r.HasMode())
	assert.Equal(t, DefaultFileMode, r.Mode())
}

func TestRecord_MinimalEncodings(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		b, err := New(TFile).Marshal()
		require.NoError(t, err)
		// Type=2, filesize=0
		assert.Equal(t, "08021800", hex.EncodeToString(b))
		assert.Len(t, b, 4)
	})

	t.Run("directory", func(t *testing.T) {
		b, err := New(TDirectory).Marshal()
		require.NoError(t, err)
		assert.Equal(t, "0801", hex.EncodeToString(b))
	})

	t.Run("raw with data only", func(t *testing.T) {
		b, err := (&Record{Type: TRaw, Data: []byte{0xAA}}).Marshal()
		require.NoError(t, err)
		assert.Equal(t, "08001201aa", hex.EncodeToString(b))
	})

	t.Run("file leaf", func(t *testing.T) {
		b, err := NewFile([]byte("banana")).Marshal()
		require.NoError(t, err)
		assert.Equal(t, "0802120662616e616e611806", hex.EncodeToString(b))
	})
}

func TestRecord_FileSize(t *testing.T) {
	r := &Record{Type: TFile, Data: []byte("abc")}
	r.AddBlockSize(10)
	r.AddBlockSize(20)
	assert.Equal(t, uint64(33), r.FileSize())

	r.RemoveBlockSize(0)
	assert.Equal(t, []uint64{20}, r.Blocksizes)
	assert.Equal(t, uint64(23), r.FileSize())

	// 目录没有逻辑长度
	assert.Equal(t, uint64(0), New(TDirectory).FileSize())
}

func TestUnmarshal_Errors(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		b := protowire.AppendTag(nil, fieldType, protowire.VarintType)
		b = protowire.AppendVarint(b, 9)
		_, err := Unmarshal(b)
		assert.ErrorIs(t, err, ErrBadNodeType)
	})

	t.Run("marshal unknown type", func(t *testing.T) {
		_, err := (&Record{Type: Type(42)}).Marshal()
		assert.ErrorIs(t, err, ErrBadNodeType)
	})

	t.Run("missing type", func(t *testing.T) {
		b := protowire.AppendTag(nil, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte("x"))
		_, err := Unmarshal(b)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("filesize mismatch", func(t *testing.T) {
		b := protowire.AppendTag(nil, fieldType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(TFile))
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte("abc"))
		b = protowire.AppendTag(b, fieldFileSize, protowire.VarintType)
		b = protowire.AppendVarint(b, 7)
		_, err := Unmarshal(b)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Unmarshal([]byte{0x08, 0x02, 0x12, 0x05, 'a'})
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestUnmarshal_PackedBlocksizes(t *testing.T) {
	var packed []byte
	packed = protowire.AppendVarint(packed, 100)
	packed = protowire.AppendVarint(packed, 300)

	b := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(TFile))
	b = protowire.AppendTag(b, fieldBlocksizes, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)

	r, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 300}, r.Blocksizes)
	assert.Equal(t, uint64(400), r.FileSize())
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(TDirectory))
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))

	r, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, TDirectory, r.Type)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("raw")
	require.NoError(t, err)
	assert.Equal(t, TRaw, typ)

	_, err = ParseType("blob")
	assert.ErrorIs(t, err, ErrBadNodeType)
}

func TestRecord_Clone(t *testing.T) {
	r := withMode(&Record{Type: TFile, Data: []byte("abc"), Blocksizes: []uint64{1}}, 0o600)
	c := r.Clone()
	c.Data[0] = 'z'
	c.Blocksizes[0] = 9
	c.SetMode(0o700)

	assert.Equal(t, "abc", string(r.Data))
	assert.Equal(t, uint64(1), r.Blocksizes[0])
	assert.Equal(t, uint32(0o600), r.Mode())
}
