package source

import (
	"context"
	"io"
)

// ProgressFunc 接收下载进度；total<0 表示远端未提供 Content-Length。
type ProgressFunc func(name string, done, total int64)

// progressReader 统计已读字节并回调；只影响展示，不影响控制流。
type progressReader struct {
	r     io.Reader
	name  string
	total int64
	done  int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.fn(p.name, p.done, p.total)
	}
	return n, err
}

// ctxReader 在每次 Read 前检查 ctx，使长时间解码可被中断。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
