package core

import (
	"fmt"

	"ufsvault/pkg/unixfs"
)

// DirEntry 目录中的一个条目 (名字 + 子树的 CID 与累计大小)
type DirEntry struct {
	Name string
	Link DagLink
}

// NewDirectory 创建 UnixFS 目录节点，条目名不能为空也不能重复
func NewDirectory(entries []DirEntry, mode *uint32, mtime *unixfs.Mtime, builder CidBuilder) (*ProtoNode, error) {
	seen := make(map[string]struct{}, len(entries))
	links := make([]DagLink, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("directory entry name cannot be empty")
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("duplicate directory entry %q", e.Name)
		}
		seen[e.Name] = struct{}{}

		l := e.Link
		l.Name = e.Name
		links = append(links, l)
	}

	rec := unixfs.New(unixfs.TDirectory)
	if mode != nil {
		rec.SetMode(*mode)
	}
	rec.Mtime = mtime
	return NewUnixFSNode(rec, links, builder)
}
