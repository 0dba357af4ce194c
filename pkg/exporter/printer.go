package exporter

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"ufsvault/pkg/core"
)

// PrintObject 解析路径并打印节点结构 (类型、大小、链接、元数据)
func (e *Exporter) PrintObject(ctx context.Context, path string, w io.Writer) error {
	en, err := e.Resolve(ctx, path)
	if err != nil {
		return err
	}
	return PrintStructure(en, w)
}

// PrintStructure 打印一个已解析的条目
func PrintStructure(en *Entry, w io.Writer) error {
	fmt.Fprintf(w, "CID:     %s\n", en.Cid)
	fmt.Fprintf(w, "Type:    %s\n", en.Kind)

	switch en.Kind {
	case KindObject:
		// 块的根值是快照时按快照格式展示
		if en.data != nil {
			if s, err := core.DecodeSnapshot(en.Cid, en.data); err == nil {
				return printSnapshot(s, w)
			}
		}
		fmt.Fprintf(w, "Value:   %v\n", en.object)
		return nil
	case KindRaw, KindIdentity:
		fmt.Fprintf(w, "Size:    %s\n", fmtSize(en.Size))
		fmt.Fprintf(w, "(raw data not shown, use 'ufs cat %s > file' to save)\n", en.Cid)
		return nil
	}

	// dag-pb 节点
	if !en.IsDir() {
		fmt.Fprintf(w, "Size:    %s\n", fmtSize(en.Size))
	}
	fmt.Fprintf(w, "DagSize: %s\n", fmtSize(en.CumulativeSize()))
	fmt.Fprintf(w, "Mode:    %04o\n", en.Mode())
	if mt := en.Mtime(); mt != nil {
		fmt.Fprintf(w, "Mtime:   %s\n", time.Unix(mt.Secs, int64(mt.Nsecs)).UTC().Format(time.RFC3339Nano))
	}
	if len(en.Record.Blocksizes) > 0 {
		fmt.Fprintf(w, "Blocks:  %d\n", len(en.Record.Blocksizes))
	}

	links := en.node.Links
	if len(links) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	// 使用 tabwriter 对齐输出
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "CID\tSIZE\tNAME\n")
	for _, l := range links {
		name := l.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Cid, fmtSize(l.Tsize), name)
	}
	return tw.Flush()
}

func printSnapshot(s *core.Snapshot, w io.Writer) error {
	fmt.Fprintf(w, "Tree:    %s\n", s.Tree.Cid)
	for _, p := range s.Parents {
		fmt.Fprintf(w, "Parent:  %s\n", p.Cid)
	}
	fmt.Fprintf(w, "Author:  %s\n", s.Author)
	fmt.Fprintf(w, "Time:    %s\n", time.Unix(s.Timestamp, 0).Format(time.RFC3339))
	fmt.Fprintf(w, "\n%s\n", s.Message)
	return nil
}

func fmtSize(s uint64) string {
	return humanize.IBytes(s)
}
