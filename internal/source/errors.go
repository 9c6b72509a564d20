package source

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示远端返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	u := strings.TrimSpace(e.URL)
	if u == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d url=%s", e.StatusCode, u)
}

// Error 是数据集获取阶段的可追溯错误。
// 上层据此把失败归类为 fetch_failed / decode_failed / io_failed。
type Error struct {
	Name  string // 资源名，如 title.basics.tsv.gz
	Stage string // "fetch" / "store" / "decode"
	Err   error
}

const (
	StageFetch  = "fetch"
	StageStore  = "store"
	StageDecode = "decode"
)

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s stage=%s: %v", e.Name, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
