package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ExportFile 解析路径并把文件内容 (或其中一段) 流式写入 writer
func (e *Exporter) ExportFile(ctx context.Context, path string, writer io.Writer, opts ...ContentOption) (int64, error) {
	en, err := e.Resolve(ctx, path)
	if err != nil {
		return 0, err
	}
	return writeContent(ctx, en, writer, opts...)
}

func writeContent(ctx context.Context, en *Entry, w io.Writer, opts ...ContentOption) (int64, error) {
	var written int64
	for chunk, err := range en.Content(ctx, opts...) {
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write %s: %w", en.Path, err)
		}
	}
	return written, nil
}

// RestoreCallback 每写完一个文件回调一次
type RestoreCallback func(path string, en *Entry)

// RestoreTree 递归地将目录 (或单个文件) 还原到目标路径
func (e *Exporter) RestoreTree(ctx context.Context, path string, target string, onRestore RestoreCallback) error {
	en, err := e.Resolve(ctx, path)
	if err != nil {
		return err
	}
	return e.restore(ctx, en, target, onRestore)
}

func (e *Exporter) restore(ctx context.Context, en *Entry, target string, onRestore RestoreCallback) error {
	switch {
	case en.IsDir():
		// A. 处理目录：创建目录 -> 递归
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create dir %s: %w", target, err)
		}
		for child, err := range en.Entries(ctx) {
			if err != nil {
				return err
			}
			if err := e.restore(ctx, child, filepath.Join(target, child.Name), onRestore); err != nil {
				return err
			}
		}

	case en.Kind == KindSymlink:
		// B. 符号链接：内容就是目标路径
		if err := os.Symlink(string(en.Record.Data), target); err != nil {
			return fmt.Errorf("failed to create symlink %s: %w", target, err)
		}
		return nil

	default:
		// C. 普通文件：流式写入
		f, err := os.Create(target)
		if err != nil {
			return fmt.Errorf("failed to create file %s: %w", target, err)
		}
		if _, err := writeContent(ctx, en, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		if onRestore != nil {
			onRestore(target, en)
		}
	}

	return applyMetadata(en, target)
}

// applyMetadata 还原显式保存的权限和修改时间
func applyMetadata(en *Entry, target string) error {
	if en.Record == nil {
		return nil
	}
	if en.Record.HasMode() {
		if err := os.Chmod(target, os.FileMode(en.Record.Mode()&0o777)); err != nil {
			return fmt.Errorf("failed to chmod %s: %w", target, err)
		}
	}
	if mt := en.Record.Mtime; mt != nil {
		t := time.Unix(mt.Secs, int64(mt.Nsecs))
		if err := os.Chtimes(target, t, t); err != nil {
			return fmt.Errorf("failed to set mtime on %s: %w", target, err)
		}
	}
	return nil
}
