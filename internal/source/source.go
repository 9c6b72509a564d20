// Package source 负责把远端数据集落到本地缓存，并解码为原始行。
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/infra/cache"
	"github.com/John-Robertt/IMDBX/internal/tsv"
)

// Fetcher 以 "缓存优先" 的方式获取数据集。
//
// 约束：
// - 缓存命中（非空文件）时不发起任何网络请求
// - 下载不重试、不校验完整性；任何网络错误直接返回
// - 下载内容逐字节写入 <data_dir>/<name>（原子替换）
type Fetcher struct {
	Store   cache.Store
	Client  *http.Client
	BaseURL string // 必须以 "/" 结尾

	Progress ProgressFunc
}

// URL 返回资源 name 的远端地址。
func (f *Fetcher) URL(name string) string {
	return f.BaseURL + name
}

// Ensure 保证 name 已在缓存中；必要时下载。
func (f *Fetcher) Ensure(ctx context.Context, name string) (domain.SourceResult, error) {
	st, err := f.Store.Stat(name)
	if err != nil {
		return domain.SourceResult{}, &Error{Name: name, Stage: StageStore, Err: err}
	}
	if st.Exists && st.Size > 0 {
		return domain.SourceResult{Name: name, Path: st.Path, Origin: domain.SourceCached, Bytes: st.Size}, nil
	}

	n, err := f.download(ctx, name)
	if err != nil {
		return domain.SourceResult{}, err
	}
	return domain.SourceResult{Name: name, Path: st.Path, Origin: domain.SourceDownloaded, Bytes: n}, nil
}

func (f *Fetcher) download(ctx context.Context, name string) (int64, error) {
	if f.Client == nil {
		return 0, &Error{Name: name, Stage: StageFetch, Err: errors.New("nil http client")}
	}
	u := f.URL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, &Error{Name: name, Stage: StageFetch, Err: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, &Error{Name: name, Stage: StageFetch, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return 0, &Error{Name: name, Stage: StageFetch, Err: &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}}
	}

	var body io.Reader = &transferReader{r: resp.Body}
	if f.Progress != nil {
		body = &progressReader{r: body, name: name, total: resp.ContentLength, fn: f.Progress}
	}
	n, err := f.Store.WriteFrom(name, body)
	if err != nil {
		// body 读失败属于传输中断；写盘失败属于本地 IO。
		stage := StageStore
		var te *transferError
		if errors.As(err, &te) {
			stage, err = StageFetch, te.err
		}
		return 0, &Error{Name: name, Stage: stage, Err: err}
	}
	return n, nil
}

type transferError struct{ err error }

func (e *transferError) Error() string { return e.err.Error() }
func (e *transferError) Unwrap() error { return e.err }

// transferReader 标记来自响应 body 的读错误，以便与写盘错误区分。
type transferReader struct{ r io.Reader }

func (t *transferReader) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if err != nil && err != io.EOF {
		err = &transferError{err: err}
	}
	return n, err
}

// Titles 确保 title.basics 已缓存并解码。
func (f *Fetcher) Titles(ctx context.Context, name string) ([]domain.RawTitle, domain.SourceResult, error) {
	res, err := f.Ensure(ctx, name)
	if err != nil {
		return nil, res, err
	}
	rows, err := decodeFile(ctx, f.Store, name, tsv.DecodeTitles)
	return rows, res, err
}

// Akas 确保 title.akas 已缓存并解码。
func (f *Fetcher) Akas(ctx context.Context, name string) ([]domain.RawAka, domain.SourceResult, error) {
	res, err := f.Ensure(ctx, name)
	if err != nil {
		return nil, res, err
	}
	rows, err := decodeFile(ctx, f.Store, name, tsv.DecodeAkas)
	return rows, res, err
}

// decodeFile 解码缓存文件；ctx 取消时返回 ctx 的错误（不归为解码失败）。
func decodeFile[T any](ctx context.Context, s cache.Store, name string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	fh, err := s.Open(name)
	if err != nil {
		return nil, &Error{Name: name, Stage: StageStore, Err: err}
	}
	defer fh.Close()

	rows, err := decode(ctxReader{ctx: ctx, r: fh})
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("解码 %s 已取消：%w", name, cerr)
		}
		return nil, &Error{Name: name, Stage: StageDecode, Err: err}
	}
	return rows, nil
}
