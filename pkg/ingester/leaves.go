package ingester

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"ufsvault/pkg/chunker"
	"ufsvault/pkg/core"
	"ufsvault/pkg/layout"
)

type leafBuilder func(ctx context.Context, chunk []byte) (core.Descriptor, error)

type leafResult struct {
	desc core.Descriptor
	err  error
}

// leafImporter 并发地把块编码、持久化为叶子，但严格按输入顺序交付
//
// 生产者为每个块创建一个 future 并按顺序放入 pending；
// 消费者按顺序等待 future，pending 的容量就是背压上限。
type leafImporter struct {
	pending  chan chan leafResult
	cancel   context.CancelFunc
	done     chan struct{}
	eg       errgroup.Group
	progress func(core.Descriptor)
}

func newLeafImporter(parent context.Context, splitter chunker.Splitter, build leafBuilder, concurrency int, progress func(core.Descriptor)) *leafImporter {
	ctx, cancel := context.WithCancel(parent)
	li := &leafImporter{
		pending:  make(chan chan leafResult, concurrency),
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: progress,
	}
	li.eg.SetLimit(concurrency)
	go li.produce(ctx, splitter, build)
	return li
}

func (li *leafImporter) produce(ctx context.Context, splitter chunker.Splitter, build leafBuilder) {
	defer close(li.done)
	defer close(li.pending)

	for index := 0; ; index++ {
		chunk, err := splitter.NextBytes()
		last := false
		if errors.Is(err, io.EOF) {
			if index > 0 {
				return
			}
			// 空输入也要产出一个空叶子
			chunk, err, last = []byte{}, nil, true
		}

		fut := make(chan leafResult, 1)
		if err != nil {
			fut <- leafResult{err: fmt.Errorf("failed to read chunk %d: %w", index, err)}
			last = true
		}

		// 1. 先按顺序登记 future (pending 满时阻塞，形成背压)
		select {
		case li.pending <- fut:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}

		// 2. 再交给并发受限的 worker 执行
		li.eg.Go(func() error {
			d, err := build(ctx, chunk)
			if err != nil {
				err = fmt.Errorf("chunk %d: %w", index, err)
			}
			fut <- leafResult{desc: d, err: err}
			return nil
		})

		if last {
			return
		}
	}
}

// Next 实现 layout.Source
func (li *leafImporter) Next(ctx context.Context) (core.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return core.Descriptor{}, err
	}

	var fut chan leafResult
	select {
	case f, ok := <-li.pending:
		if !ok {
			// 生产者可能因取消而提前退出，不能当作正常结束
			if err := ctx.Err(); err != nil {
				return core.Descriptor{}, err
			}
			return core.Descriptor{}, io.EOF
		}
		fut = f
	case <-ctx.Done():
		return core.Descriptor{}, ctx.Err()
	}

	select {
	case r := <-fut:
		if r.err != nil {
			return core.Descriptor{}, r.err
		}
		if li.progress != nil {
			li.progress(r.desc)
		}
		return r.desc, nil
	case <-ctx.Done():
		return core.Descriptor{}, ctx.Err()
	}
}

// Close 取消未完成的工作并等待所有 goroutine 退出
func (li *leafImporter) Close() {
	li.cancel()
	for range li.pending {
	}
	<-li.done
	_ = li.eg.Wait()
}

// singleLeafSource 前瞻一个叶子：如果整个流只有一个叶子，把它标记为 Single
type singleLeafSource struct {
	src     layout.Source
	held    *core.Descriptor
	started bool
}

func (s *singleLeafSource) Next(ctx context.Context) (core.Descriptor, error) {
	if !s.started {
		s.started = true
		first, err := s.src.Next(ctx)
		if err != nil {
			return core.Descriptor{}, err
		}
		second, err := s.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			first.Single = true
			return first, nil
		}
		if err != nil {
			return core.Descriptor{}, err
		}
		s.held = &second
		return first, nil
	}

	if s.held != nil {
		d := *s.held
		s.held = nil
		return d, nil
	}
	return s.src.Next(ctx)
}
