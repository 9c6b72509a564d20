// Package catalog 列出数据集索引页上发布的文件。
package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/source"
)

// 索引页只是一个小 HTML；超过上限视为异常响应。
const maxIndexBytes = 4 << 20

const datasetSuffix = ".tsv.gz"

// List 抓取 baseURL 指向的索引页并解析出数据集列表。
func List(ctx context.Context, c *http.Client, baseURL string) ([]domain.Dataset, error) {
	html, err := Fetch(ctx, c, baseURL)
	if err != nil {
		return nil, err
	}
	return Parse(html, baseURL)
}

// Fetch 读取索引页 HTML（不重试）。非 2xx 返回 *source.HTTPStatusError。
func Fetch(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &source.HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes))
}

// Parse 从索引页 HTML 中收集所有以 .tsv.gz 结尾的链接。
//
// 规则：
// - 相对链接按 pageURL 解析为绝对地址
// - 以文件名去重（先出现者优先），按文件名升序返回
// - 页面上一个数据集都没有：视为错误（通常意味着拿到的不是索引页）
func Parse(html []byte, pageURL string) ([]domain.Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	out := make([]domain.Dataset, 0, 8)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		name := path.Base(abs.Path)
		if !strings.HasSuffix(name, datasetSuffix) {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, domain.Dataset{Name: name, URL: abs.String()})
	})

	if len(out) == 0 {
		return nil, errors.New("索引页中未找到任何 .tsv.gz 数据集")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
