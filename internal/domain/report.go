package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const (
	SourceCached     = "cached"
	SourceDownloaded = "downloaded"
)

const (
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeDecodeFailed   = "decode_failed"
	ErrCodeSchemaDrift    = "schema_drift"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeLoadFailed     = "load_failed"
	ErrCodeNotifyFailed   = "notify_failed"
)

// RunReport 是对外稳定输出（stdout JSON / 通知消息）的结构。
type RunReport struct {
	RunID   string `json:"run_id"`
	DataDir string `json:"data_dir"`
	Stamp   string `json:"stamp"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Summary ReportSummary  `json:"summary"`
	Sources []SourceResult `json:"sources"`
	Outputs []OutputResult `json:"outputs"`
}

type ReportSummary struct {
	RawTitles int  `json:"raw_titles"`
	RawAkas   int  `json:"raw_akas"`
	Movies    int  `json:"movies"`
	Titles    int  `json:"titles"`
	Genres    int  `json:"genres"`
	Names     int  `json:"genres_names"`
	Loaded    bool `json:"loaded"`
	Notified  bool `json:"notified"`
}

type SourceResult struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Origin string `json:"origin"` // cached | downloaded
	Bytes  int64  `json:"bytes"`
}

type OutputResult struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// Fail 把 report 标记为失败（只记录第一个错误）。
func (r *RunReport) Fail(code, msg string) {
	if r.Status == StatusFailed {
		return
	}
	r.Status = StatusFailed
	r.ErrorCode = code
	r.ErrorMsg = msg
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) outputs 稳定排序：按 name 字典序（sources 保持配置顺序）
// 3) 未失败的 report 标记为 ok（summary 计数由调用方在各阶段填写，这里不改动）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Sources == nil {
		r.Sources = []SourceResult{}
	}
	if r.Outputs == nil {
		r.Outputs = []OutputResult{}
	}
	sort.SliceStable(r.Outputs, func(i, j int) bool { return r.Outputs[i].Name < r.Outputs[j].Name })

	if r.Status == "" {
		r.Status = StatusOK
	}
}

// Failed 报告本次运行是否失败。
func (r RunReport) Failed() bool { return r.Status == StatusFailed }

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
