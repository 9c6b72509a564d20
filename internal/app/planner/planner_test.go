package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/infra/cache"
)

func TestReadCacheState_Missing(t *testing.T) {
	root := t.TempDir()

	st, err := ReadCacheState(cache.New(root), "title.basics.tsv.gz")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if st.Exists {
		t.Fatalf("期望缓存不存在：%+v", st)
	}
	if st.Path != filepath.Join(root, "title.basics.tsv.gz") {
		t.Fatalf("缓存路径不符合预期：%q", st.Path)
	}
}

func TestPlan_CachedAndMissing(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "title.basics.tsv.gz"), "x")

	plans, err := Plan(cache.New(root), []string{"title.basics.tsv.gz", "title.akas.tsv.gz"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("期望 2 个计划，实际=%d", len(plans))
	}
	if plans[0].Name != "title.basics.tsv.gz" || plans[0].NeedDownload {
		t.Fatalf("basics 应复用缓存：%+v", plans[0])
	}
	if plans[1].Name != "title.akas.tsv.gz" || !plans[1].NeedDownload {
		t.Fatalf("akas 应下载：%+v", plans[1])
	}
}

func TestPlan_EmptyCacheFileNeedsDownload(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "title.basics.tsv.gz"), "")

	plans, err := Plan(cache.New(root), []string{"title.basics.tsv.gz"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !plans[0].NeedDownload {
		t.Fatalf("空文件应重新下载：%+v", plans[0])
	}
}

func TestPlan_DirectoryAtCachePath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "title.basics.tsv.gz"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	if _, err := Plan(cache.New(root), []string{"title.basics.tsv.gz"}); err == nil {
		t.Fatalf("期望路径类型冲突错误")
	}
}

func TestPlanSources_DuplicateName(t *testing.T) {
	states := map[string]domain.CacheState{"a.tsv.gz": {}}
	if _, err := PlanSources([]string{"a.tsv.gz", "a.tsv.gz"}, states); err == nil {
		t.Fatalf("期望重复资源名错误")
	}
}

func write(t *testing.T, p, content string) {
	t.Helper()
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}
