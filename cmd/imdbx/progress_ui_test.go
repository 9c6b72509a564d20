package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/John-Robertt/IMDBX/internal/app/run"
	"github.com/John-Robertt/IMDBX/internal/config"
	"github.com/John-Robertt/IMDBX/internal/domain"
)

func newTestUI(buf *bytes.Buffer) *progressUI {
	color.NoColor = true
	p := newProgressUI(buf)
	p.tickerInterval = time.Hour
	return p
}

func TestProgressUI_PhaseLines(t *testing.T) {
	var buf bytes.Buffer
	p := newTestUI(&buf)

	p.OnStart(config.EffectiveConfig{BaseURL: "https://datasets.imdbws.com/", Basics: "b.tsv.gz", Akas: "a.tsv.gz", DataDir: "/data"})
	p.OnPhaseDone(run.PhaseFetch, map[string]any{"source": "b.tsv.gz", "origin": "cached", "bytes": int64(2048), "rows": 7}, time.Second)
	p.OnPhaseDone(run.PhaseMovies, map[string]any{"in": 7, "out": 3, "before_year": "2026"}, 0)
	p.OnFinish(domain.RunReport{Status: domain.StatusOK, Summary: domain.ReportSummary{Movies: 3}})

	out := buf.String()
	for _, want := range []string{
		"sources: b.tsv.gz, a.tsv.gz",
		"获取: b.tsv.gz cached 2.0KiB rows=7 (1.0s)",
		"电影: 7 -> 3 (year < 2026)",
		"完成: movies=3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if p.tickerStarted {
		t.Fatalf("OnFinish 后 ticker 应停止")
	}
}

func TestProgressUI_DownloadThrottled(t *testing.T) {
	var buf bytes.Buffer
	p := newTestUI(&buf)

	for done := int64(0); done <= 1000; done += 10 {
		p.OnDownload("b.tsv.gz", done, 1000)
	}

	lines := strings.Count(buf.String(), "下载: b.tsv.gz")
	if lines != 11 {
		t.Fatalf("期望 11 行（0%%..100%%），实际 %d：\n%s", lines, buf.String())
	}
}

func TestProgressUI_FailureLine(t *testing.T) {
	var buf bytes.Buffer
	p := newTestUI(&buf)

	p.OnFinish(domain.RunReport{Status: domain.StatusFailed, ErrorCode: domain.ErrCodeFetchFailed, ErrorMsg: "HTTP 503"})

	if !strings.Contains(buf.String(), "失败: fetch_failed HTTP 503") {
		t.Fatalf("失败行不符合预期：%q", buf.String())
	}
}

func TestTruncate_KeepsUTF8(t *testing.T) {
	s := "a" + strings.Repeat("失", 100)

	got := truncate(s, 200)

	if !utf8.ValidString(got) {
		t.Fatalf("截断结果不是合法 UTF-8：%q", got)
	}
	if !strings.HasSuffix(got, "...") || len(got) > 200 {
		t.Fatalf("截断结果不符合预期：len=%d %q", len(got), got)
	}
	if got != s[:196]+"..." {
		t.Fatalf("应退回到字符边界：%q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:       "0B",
		1023:    "1023B",
		1024:    "1.0KiB",
		1536:    "1.5KiB",
		1 << 20: "1.0MiB",
	}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d)=%q，期望 %q", in, got, want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	ca, err := parseArgs([]string{"--data", "out", "--config=imdbx.yml"}, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ca.DataDirSet || ca.DataDir != "out" || ca.ConfigPath != "imdbx.yml" {
		t.Fatalf("解析结果不符合预期：%+v", ca)
	}

	for _, args := range [][]string{
		{"--data"},
		{"--data="},
		{"--config", " "},
		{"--bogus"},
		{"extra"},
	} {
		if _, err := parseArgs(args, true); err == nil {
			t.Fatalf("期望参数错误：%v", args)
		}
	}

	if _, err := parseArgs([]string{"--data", "x"}, false); err == nil {
		t.Fatalf("datasets 不应接受 --data")
	}
}
