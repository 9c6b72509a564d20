package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndStatusAndUTC(t *testing.T) {
	r := RunReport{
		DataDir:    "/abs/data",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Outputs: []OutputResult{
			{Name: "titles", Rows: 2},
			{Name: "genres_names", Rows: 3},
			{Name: "movies", Rows: 1},
		},
	}

	r.Finalize()

	if r.Outputs[0].Name != "genres_names" || r.Outputs[1].Name != "movies" || r.Outputs[2].Name != "titles" {
		t.Fatalf("outputs 排序不符合契约：%+v", r.Outputs)
	}
	if r.Status != StatusOK {
		t.Fatalf("未失败的 report 应为 ok，实际 %q", r.Status)
	}
	if r.Sources == nil {
		t.Fatalf("sources 不应为 nil（JSON 需输出 []）")
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	// time.Time 在 UTC 下应输出 'Z' 后缀。
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
	if !bytes.Contains(b, []byte("\"sources\":[]")) {
		t.Fatalf("sources 应序列化为 []：%s", string(b))
	}
}

func TestRunReport_FailKeepsFirstError(t *testing.T) {
	var r RunReport
	r.Fail(ErrCodeFetchFailed, "first")
	r.Fail(ErrCodeIOFailed, "second")
	r.Finalize()

	if !r.Failed() {
		t.Fatalf("期望 failed")
	}
	if r.ErrorCode != ErrCodeFetchFailed || r.ErrorMsg != "first" {
		t.Fatalf("应保留第一个错误：%s %s", r.ErrorCode, r.ErrorMsg)
	}
}

func TestRunReport_Finalize_KeepsSummary(t *testing.T) {
	// summary 与 outputs 行数故意不一致：Finalize 不应回填。
	r := RunReport{
		Summary: ReportSummary{RawTitles: 10, Movies: 5, Titles: 1},
		Outputs: []OutputResult{{Name: "movies", Rows: 7}},
	}
	want := r.Summary

	r.Finalize()

	if r.Summary != want {
		t.Fatalf("Finalize 不应修改 summary：got=%+v want=%+v", r.Summary, want)
	}
}
