package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultUserAgent = "imdbx/1.0"

// Transport 把“固定 UA + 代理”固化为统一策略。
//
// 约束：不做重试、不设总超时。数据集文件可达数百 MB，传输时长由文件大小决定；
// 网络失败直接返回给上层（fetch 阶段视为致命错误）。
type Transport struct {
	Base *http.Transport

	UserAgent string
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	r := req
	if req.Header.Get("User-Agent") == "" {
		// Clone 会复制 Header 等，避免在 RoundTripper 内部“污染”调用方的 request。
		r = req.Clone(req.Context())
		r.Header.Set("User-Agent", t.UserAgent)
	}
	return t.Base.RoundTrip(r)
}

// NewClient 构造用于数据集下载与索引页抓取的 HTTP client。
//
// 规则：
// - proxyURL 非空：全部请求走代理
// - userAgent 为空：使用内置默认值
// - 只限制握手与响应头等待时间，不限制 body 传输时长
func NewClient(proxyURL, userAgent string) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		// 数据集本身已经是 gzip；禁止 Transport 透明解压，保证落盘内容与远端逐字节一致。
		DisableCompression: true,
	}

	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
	}

	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		ua = defaultUserAgent
	}

	return &http.Client{
		Transport: &Transport{Base: base, UserAgent: ua},
	}, nil
}
