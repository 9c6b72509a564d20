package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/infra/fsx"
)

// Store 提供 <data_dir>/ 下的数据集文件缓存。
//
// 约束：
// - 缓存路径由资源名唯一确定：<data_dir>/<name>
// - 缓存永不过期；是否复用由 planner 根据 CacheState 决定
// - 写入是原子的：中断的下载不会在缓存路径留下半截文件
type Store struct {
	Dir string
}

func New(dir string) Store {
	return Store{Dir: filepath.Clean(strings.TrimSpace(dir))}
}

// Path 返回资源 name 的缓存绝对路径。
func (s Store) Path(name string) (string, error) {
	n, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, n), nil
}

// Stat 读取缓存现状（只做 stat，不读内容）。文件不存在不算错误。
func (s Store) Stat(name string) (domain.CacheState, error) {
	path, err := s.Path(name)
	if err != nil {
		return domain.CacheState{}, err
	}
	st := domain.CacheState{Path: path}

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return domain.CacheState{}, err
	}
	if fi.IsDir() {
		return domain.CacheState{}, &fsx.PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	}
	st.Exists = true
	st.Size = fi.Size()
	return st, nil
}

// Open 打开缓存文件用于读取；调用方负责 Close。
func (s Store) Open(name string) (*os.File, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// WriteFrom 把 r 的内容逐字节写入缓存（原子替换），返回字节数。
func (s Store) WriteFrom(name string, r io.Reader) (int64, error) {
	n, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	return fsx.WriteFileAtomicFrom(s.Dir, n, r)
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("资源名不能为空")
	}
	// 最小约束：避免路径穿越；资源名本身来自配置（如 title.basics.tsv.gz）。
	if !nameRE.MatchString(name) || name == "." || name == ".." {
		return "", fmt.Errorf("非法资源名：%q", name)
	}
	return name, nil
}
