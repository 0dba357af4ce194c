package core

import (
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
)

const snapshotType = "snapshot"

// Snapshot 是一个 DAG-CBOR 版本快照，指向某一时刻的根目录
type Snapshot struct {
	cid      cid.Cid
	rawBytes []byte

	TypeVal string `cbor:"type"`

	Tree    Link   `cbor:"tree"`
	Parents []Link `cbor:"parents"`

	Author  string `cbor:"author"`
	Message string `cbor:"message"`

	Timestamp int64 `cbor:"timestamp"`
}

func NewSnapshot(tree cid.Cid, parents []cid.Cid, author, msg string) (*Snapshot, error) {
	parentLinks := make([]Link, len(parents))
	for i, p := range parents {
		parentLinks[i] = NewLink(p)
	}

	s := &Snapshot{
		TypeVal:   snapshotType,
		Tree:      NewLink(tree),
		Parents:   parentLinks,
		Author:    author,
		Message:   msg,
		Timestamp: time.Now().Unix(),
	}
	if err := s.seal(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) seal() error {
	c, b, err := CalculateHash(s)
	if err != nil {
		return err
	}
	s.cid = c
	s.rawBytes = b
	return nil
}

// DecodeSnapshot 从存储的字节还原快照
func DecodeSnapshot(c cid.Cid, data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := DecodeObject(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", c, err)
	}
	if s.TypeVal != snapshotType {
		return nil, fmt.Errorf("object %s is not a snapshot (type=%q)", c, s.TypeVal)
	}
	s.cid = c
	s.rawBytes = data
	return &s, nil
}

func (s *Snapshot) Cid() cid.Cid    { return s.cid }
func (s *Snapshot) RawData() []byte { return s.rawBytes }
