package unixfs

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// wire 字段编号
const (
	fieldType       protowire.Number = 1
	fieldData       protowire.Number = 2
	fieldFileSize   protowire.Number = 3
	fieldBlocksizes protowire.Number = 4
	fieldHashType   protowire.Number = 5
	fieldFanout     protowire.Number = 6
	fieldMode       protowire.Number = 7
	fieldMtime      protowire.Number = 8

	fieldMtimeSecs  protowire.Number = 1
	fieldMtimeNsecs protowire.Number = 2

	maxNsecs = 999_999_999
)

// Marshal 把记录编码为 protobuf 字节，未设置的可选字段不会出现在输出里
func (r *Record) Marshal() ([]byte, error) {
	if !r.Type.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrBadNodeType, r.Type)
	}
	if r.Mtime != nil && r.Mtime.Nsecs > maxNsecs {
		return nil, fmt.Errorf("%w: mtime nanoseconds %d out of range", ErrMalformed, r.Mtime.Nsecs)
	}

	b := make([]byte, 0, len(r.Data)+16+len(r.Blocksizes)*4)

	// 1. Type (required)
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Type))

	// 2. Data: 空数据不编码
	if len(r.Data) > 0 {
		b = protowire.AppendTag(b, fieldData, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Data)
	}

	// 3. filesize
	if r.hasFileSize() {
		b = protowire.AppendTag(b, fieldFileSize, protowire.VarintType)
		b = protowire.AppendVarint(b, r.FileSize())
	}

	// 4. blocksizes: proto2 repeated, 非 packed
	for _, bs := range r.Blocksizes {
		b = protowire.AppendTag(b, fieldBlocksizes, protowire.VarintType)
		b = protowire.AppendVarint(b, bs)
	}

	// 5. HAMT 参数
	if r.HashType != nil {
		b = protowire.AppendTag(b, fieldHashType, protowire.VarintType)
		b = protowire.AppendVarint(b, *r.HashType)
	}
	if r.Fanout != nil {
		b = protowire.AppendTag(b, fieldFanout, protowire.VarintType)
		b = protowire.AppendVarint(b, *r.Fanout)
	}

	// 6. mode
	if r.mode != nil {
		b = protowire.AppendTag(b, fieldMode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*r.mode))
	}

	// 7. mtime (嵌套消息)
	if r.Mtime != nil {
		var ts []byte
		ts = protowire.AppendTag(ts, fieldMtimeSecs, protowire.VarintType)
		ts = protowire.AppendVarint(ts, uint64(r.Mtime.Secs))
		if r.Mtime.Nsecs != 0 {
			ts = protowire.AppendTag(ts, fieldMtimeNsecs, protowire.Fixed32Type)
			ts = protowire.AppendFixed32(ts, r.Mtime.Nsecs)
		}
		b = protowire.AppendTag(b, fieldMtime, protowire.BytesType)
		b = protowire.AppendBytes(b, ts)
	}

	return b, nil
}

// Unmarshal 解码 protobuf 字节。未知字段被跳过，未知类型直接报错。
func Unmarshal(b []byte) (*Record, error) {
	r := &Record{}
	var (
		sawType  bool
		fileSize *uint64
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: type: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			r.Type = Type(int32(v))
			if !r.Type.Valid() {
				return nil, fmt.Errorf("%w: %d", ErrBadNodeType, v)
			}
			sawType = true

		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: data: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			r.Data = append([]byte(nil), v...)

		case num == fieldFileSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: filesize: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			fileSize = &v

		case num == fieldBlocksizes && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: blocksizes: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			r.Blocksizes = append(r.Blocksizes, v)

		case num == fieldBlocksizes && typ == protowire.BytesType:
			// 兼容 packed 编码
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: blocksizes: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, fmt.Errorf("%w: packed blocksizes: %v", ErrMalformed, protowire.ParseError(m))
				}
				packed = packed[m:]
				r.Blocksizes = append(r.Blocksizes, v)
			}

		case num == fieldHashType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: hashType: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			r.HashType = &v

		case num == fieldFanout && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: fanout: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			r.Fanout = &v

		case num == fieldMode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: mode: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			m := uint32(v)
			r.mode = &m

		case num == fieldMtime && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: mtime: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			mt, err := unmarshalMtime(v)
			if err != nil {
				return nil, err
			}
			r.Mtime = mt

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !sawType {
		return nil, fmt.Errorf("%w: missing Type field", ErrMalformed)
	}
	// 声明的 filesize 必须与 data + blocksizes 一致
	if fileSize != nil && !r.IsDirectory() && *fileSize != r.FileSize() {
		return nil, fmt.Errorf("%w: declared filesize %d, computed %d", ErrMalformed, *fileSize, r.FileSize())
	}
	return r, nil
}

func unmarshalMtime(b []byte) (*Mtime, error) {
	mt := &Mtime{}
	var sawSecs bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: mtime: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldMtimeSecs && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: mtime secs: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			mt.Secs = int64(v)
			sawSecs = true
		case num == fieldMtimeNsecs && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: mtime nsecs: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			if v > maxNsecs {
				return nil, fmt.Errorf("%w: mtime nanoseconds %d out of range", ErrMalformed, v)
			}
			mt.Nsecs = v
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: mtime field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !sawSecs {
		return nil, fmt.Errorf("%w: mtime missing seconds", ErrMalformed)
	}
	return mt, nil
}
