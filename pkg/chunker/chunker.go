package chunker

import (
	"fmt"
	"math"
)

// FastCDC 默认参数 (单位: 字节)
const (
	DefaultMinSize = 64 * 1024  // 64KB
	DefaultAvgSize = 256 * 1024 // 256KB
	DefaultMaxSize = 1024 * 1024
	NormLevel      = 2
)

// gearTable 由固定种子的 splitmix64 生成，保证跨进程确定
var gearTable = func() [256]uint64 {
	var t [256]uint64
	x := uint64(0x9E3779B97F4A7C15)
	for i := range t {
		x += 0x9E3779B97F4A7C15
		z := x
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		t[i] = z ^ (z >> 31)
	}
	return t
}()

// Chunker 是一个无状态的 FastCDC 切分工具
type Chunker struct {
	minSize int
	avgSize int
	maxSize int
	maskS   uint64
	maskL   uint64
}

// NewChunker 使用默认参数
func NewChunker() *Chunker {
	c, _ := NewChunkerWithSizes(DefaultMinSize, DefaultAvgSize, DefaultMaxSize)
	return c
}

// NewChunkerWithSizes 自定义 min/avg/max
func NewChunkerWithSizes(minSize, avgSize, maxSize int) (*Chunker, error) {
	if minSize <= 0 || minSize >= avgSize || avgSize >= maxSize {
		return nil, fmt.Errorf("invalid fastcdc sizes: need 0 < min(%d) < avg(%d) < max(%d)", minSize, avgSize, maxSize)
	}
	// 预计算掩码
	bits := int(math.Round(math.Log2(float64(avgSize))))
	return &Chunker{
		minSize: minSize,
		avgSize: avgSize,
		maxSize: maxSize,
		maskS:   uint64(1<<(bits+NormLevel)) - 1,
		maskL:   uint64(1<<(bits-NormLevel)) - 1,
	}, nil
}

func (c *Chunker) MaxSize() int { return c.maxSize }

// Cut 将数据切分成一系列的切点 (每个块的结束 offset)，最后一个切点总是 len(data)
func (c *Chunker) Cut(data []byte) []int {
	var cutPoints []int
	offset := 0
	for offset < len(data) {
		offset += c.cutPoint(data[offset:])
		cutPoints = append(cutPoints, offset)
	}
	return cutPoints
}

// cutPoint 返回 data 中第一个块的长度
func (c *Chunker) cutPoint(data []byte) int {
	n := len(data)

	// 1. 剩余不足最小块，直接收尾
	if n <= c.minSize {
		return n
	}

	// 2. 每次新块开始，fp 重置为 0
	fp := uint64(0)
	idx := c.minSize

	normLimit := min(c.avgSize, n)
	maxLimit := min(c.maxSize, n)

	scan := func(limit int, mask uint64) bool {
		for ; idx < limit; idx++ {
			fp = (fp << 1) + gearTable[data[idx]]
			if (fp & mask) == 0 {
				return true
			}
		}
		return false
	}

	// A. 归一化区域 (严掩码)
	if scan(normLimit, c.maskS) {
		return idx + 1
	}

	// B. 普通区域 (宽掩码)
	if scan(maxLimit, c.maskL) {
		return idx + 1
	}

	// C. 强制切分
	return maxLimit
}
