package cache

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestStore_WriteThenStatAndOpen(t *testing.T) {
	s := New(t.TempDir() + "/data")

	st, err := s.Stat("title.basics.tsv.gz")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if st.Exists {
		t.Fatalf("空目录不应命中缓存")
	}

	n, err := s.WriteFrom("title.basics.tsv.gz", strings.NewReader("gzbytes"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != 7 {
		t.Fatalf("字节数不正确：%d", n)
	}

	st, err = s.Stat("title.basics.tsv.gz")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !st.Exists || st.Size != 7 {
		t.Fatalf("缓存状态不正确：%+v", st)
	}

	f, err := s.Open("title.basics.tsv.gz")
	if err != nil {
		t.Fatalf("打开缓存失败：%v", err)
	}
	defer f.Close()
	b, _ := io.ReadAll(f)
	if string(b) != "gzbytes" {
		t.Fatalf("内容不一致：%q", string(b))
	}
}

func TestStore_RejectPathTraversal(t *testing.T) {
	s := New(t.TempDir())

	for _, name := range []string{"", "..", "../x.gz", "a/b.gz"} {
		if _, err := s.Path(name); err == nil {
			t.Fatalf("期望拒绝资源名 %q", name)
		}
	}
}

func TestStore_StatDirConflict(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(root+"/title.akas.tsv.gz", 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	if _, err := New(root).Stat("title.akas.tsv.gz"); err == nil {
		t.Fatalf("缓存路径是目录时应报错")
	}
}
