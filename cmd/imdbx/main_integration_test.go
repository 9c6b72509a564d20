package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/John-Robertt/IMDBX/internal/domain"
)

func gzBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip 写入失败：%v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip 关闭失败：%v", err)
	}
	return buf.Bytes()
}

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	if testing.Short() {
		t.Skip("需要 go run：-short 模式下跳过")
	}
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/日志必须走 stderr 或直接禁用）。
	files := map[string][]byte{
		"/title.basics.tsv.gz": gzBytes(t, "tconst\ttitleType\tprimaryTitle\toriginalTitle\tisAdult\tstartYear\tendYear\truntimeMinutes\tgenres\n"+
			"tt1\tmovie\tA\tAlpha\t0\t1980\t\\N\t90\tDrama\n"),
		"/title.akas.tsv.gz": gzBytes(t, "titleId\tordering\ttitle\tregion\tlanguage\ttypes\tattributes\tisOriginalTitle\n"+
			"tt1\t1\tAlfa\tES\tes\t\\N\t\\N\t0\n"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	dataDir := t.TempDir()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/imdbx", "run", "--data", dataDir)
	cmd.Dir = repoRoot
	cmd.Env = append(os.Environ(), "IMDBX_BASE_URL="+srv.URL+"/")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	// stdout 必须是单个 JSON。
	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if rr.Status != domain.StatusOK || rr.Summary.Movies != 1 || rr.Summary.Titles != 1 {
		t.Fatalf("report 不符合预期：%+v", rr)
	}
	if strings.Contains(stdout.String(), "配置（生效）") || strings.Contains(stdout.String(), "阶段完成") {
		t.Fatalf("stdout 不应包含进度/日志输出：%q", stdout.String())
	}

	// stderr 至少应包含最终摘要行。
	if !strings.Contains(stderr.String(), "完成：status=ok") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}

	for _, o := range rr.Outputs {
		if _, err := os.Stat(o.Path); err != nil {
			t.Fatalf("输出文件不存在：%s", o.Path)
		}
	}
	if _, err := os.Stat(filepath.Join(dataDir, reportFileName)); err != nil {
		t.Fatalf("report.json 不存在：%v", err)
	}
}
