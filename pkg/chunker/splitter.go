package chunker

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultBlockSize 固定大小切分的默认块大小
const DefaultBlockSize = 262144

// Splitter 把字节流切成一系列块，流结束时返回 io.EOF
type Splitter interface {
	NextBytes() ([]byte, error)
}

// -----------------------------------------------------------------------------
// 固定大小切分
// -----------------------------------------------------------------------------

type sizeSplitter struct {
	r    io.Reader
	size int
	err  error
}

// NewSizeSplitter 每 size 字节切一块，最后一块可能更短
func NewSizeSplitter(r io.Reader, size int) Splitter {
	return &sizeSplitter{r: r, size: size}
}

func (s *sizeSplitter) NextBytes() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.err = io.EOF
		return buf[:n], nil
	case errors.Is(err, io.EOF):
		s.err = io.EOF
		return nil, io.EOF
	default:
		s.err = err
		return nil, err
	}
}

// -----------------------------------------------------------------------------
// 流式 FastCDC 切分
// -----------------------------------------------------------------------------

type cdcSplitter struct {
	r   io.Reader
	c   *Chunker
	buf []byte
	eof bool
}

// NewCDCSplitter 流式内容定义切分，内存占用不超过 2 * MaxSize
func NewCDCSplitter(r io.Reader, c *Chunker) Splitter {
	return &cdcSplitter{r: r, c: c, buf: make([]byte, 0, 2*c.maxSize)}
}

func (s *cdcSplitter) NextBytes() ([]byte, error) {
	// 1. 尽量把缓冲区填到 MaxSize，保证切点与一次性切分一致
	for !s.eof && len(s.buf) < s.c.maxSize {
		n, err := s.r.Read(s.buf[len(s.buf):cap(s.buf)])
		s.buf = s.buf[:len(s.buf)+n]
		if errors.Is(err, io.EOF) {
			s.eof = true
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if len(s.buf) == 0 {
		return nil, io.EOF
	}

	// 2. 切出第一个块，剩余部分移到缓冲区头部
	end := s.c.cutPoint(s.buf)
	chunk := make([]byte, end)
	copy(chunk, s.buf[:end])
	s.buf = s.buf[:copy(s.buf, s.buf[end:])]
	return chunk, nil
}

// FromString 按名字构造切分器：
//   - "size-N"   固定 N 字节
//   - "fastcdc"  默认参数的 FastCDC
//   - "fastcdc-MIN-AVG-MAX"
func FromString(r io.Reader, name string) (Splitter, error) {
	switch {
	case name == "" || name == "default":
		return NewSizeSplitter(r, DefaultBlockSize), nil

	case strings.HasPrefix(name, "size-"):
		size, err := strconv.Atoi(strings.TrimPrefix(name, "size-"))
		if err != nil {
			return nil, fmt.Errorf("bad chunker size %q: %w", name, err)
		}
		if size <= 0 {
			return nil, fmt.Errorf("chunker size must be positive, got %d", size)
		}
		return NewSizeSplitter(r, size), nil

	case name == "fastcdc":
		return NewCDCSplitter(r, NewChunker()), nil

	case strings.HasPrefix(name, "fastcdc-"):
		parts := strings.Split(strings.TrimPrefix(name, "fastcdc-"), "-")
		if len(parts) != 3 {
			return nil, fmt.Errorf("bad fastcdc chunker %q: want fastcdc-MIN-AVG-MAX", name)
		}
		var sizes [3]int
		for i, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("bad fastcdc chunker %q: %w", name, err)
			}
			sizes[i] = v
		}
		c, err := NewChunkerWithSizes(sizes[0], sizes[1], sizes[2])
		if err != nil {
			return nil, err
		}
		return NewCDCSplitter(r, c), nil

	default:
		return nil, fmt.Errorf("unrecognized chunker %q", name)
	}
}
