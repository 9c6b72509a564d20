package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_Proxy(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080", "")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if tr.UserAgent != defaultUserAgent {
		t.Fatalf("期望默认 UA，实际 %q", tr.UserAgent)
	}
}

func TestNewClient_NoProxyNoTimeout(t *testing.T) {
	c, err := NewClient("", "ua/1")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if c.Timeout != 0 {
		t.Fatalf("不应设置总超时，实际 %s", c.Timeout)
	}
	if !tr.Base.DisableCompression {
		t.Fatalf("应禁用透明解压")
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	_, err := NewClient("http://[::1", "")
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, err := NewClient("", "imdbx-test/2")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()

	if got != "imdbx-test/2" {
		t.Fatalf("UA 不正确：%q", got)
	}
}
