// Package csvsink 把结果表写为 '|' 分隔的 CSV 文件。
//
// 文件名：<dir>/<YYYYMMDD>_<name>.csv；日期戳每次运行只取一次。
// 写入是原子的（同目录临时文件 + rename）；已存在的同名文件被静默覆盖。
package csvsink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/John-Robertt/IMDBX/internal/config"
	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/infra/fsx"
)

// Delimiter 是输出文件的列分隔符。
const Delimiter = '|'

// StampLayout 是文件名日期戳格式（YYYYMMDD）。
const StampLayout = "20060102"

var (
	MoviesHeader      = []string{"id_movie", "title_original", "year", "duration"}
	TitlesHeader      = []string{"id_movie", "language", "title"}
	GenresHeader      = []string{"id_movie", "id_genre"}
	GenresNamesHeader = []string{"id_genre", "genre"}
)

type Writer struct {
	Dir   string
	Stamp string
}

// NewWriter 以 now 的本地日期作为本次运行的文件名前缀。
func NewWriter(dir string, now time.Time) Writer {
	return Writer{Dir: dir, Stamp: now.Format(StampLayout)}
}

// Path 返回逻辑表 name 的输出路径。
func (w Writer) Path(name string) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%s.csv", w.Stamp, name))
}

// WriteTable 写出一张表（总是包含表头，即使没有数据行）。
func (w Writer) WriteTable(name string, header []string, rows [][]string) (domain.OutputResult, error) {
	path := w.Path(name)
	err := fsx.WriteAtomicFunc(w.Dir, filepath.Base(path), func(out io.Writer) error {
		cw := csv.NewWriter(out)
		cw.Comma = Delimiter
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	})
	if err != nil {
		return domain.OutputResult{}, fmt.Errorf("写出 %s 失败：%w", path, err)
	}
	return domain.OutputResult{Name: name, Path: path, Rows: len(rows)}, nil
}

// WriteAll 按 movies -> titles -> genres -> genres_names 的顺序写出四张表。
// 任一失败立即返回；已写出的文件保留。
func (w Writer) WriteAll(names config.Outputs, t domain.Tables) ([]domain.OutputResult, error) {
	jobs := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{names.Movies, MoviesHeader, MovieRows(t.Movies)},
		{names.Titles, TitlesHeader, TitleRows(t.Titles)},
		{names.Genres, GenresHeader, GenreRows(t.Genres)},
		{names.GenresNames, GenresNamesHeader, NameRows(t.Names)},
	}

	out := make([]domain.OutputResult, 0, len(jobs))
	for _, j := range jobs {
		res, err := w.WriteTable(j.name, j.header, j.rows)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func MovieRows(ms []domain.Movie) [][]string {
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, []string{m.IDMovie, m.TitleOriginal, m.Year.OrEmpty(), m.Duration.OrEmpty()})
	}
	return rows
}

func TitleRows(ts []domain.Title) [][]string {
	rows := make([][]string, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, []string{t.IDMovie, t.Language, t.Title})
	}
	return rows
}

func GenreRows(gs []domain.GenreAssignment) [][]string {
	rows := make([][]string, 0, len(gs))
	for _, g := range gs {
		rows = append(rows, []string{g.IDMovie, strconv.Itoa(g.IDGenre)})
	}
	return rows
}

func NameRows(ns []domain.Genre) [][]string {
	rows := make([][]string, 0, len(ns))
	for _, n := range ns {
		rows = append(rows, []string{strconv.Itoa(n.IDGenre), n.Name})
	}
	return rows
}

// ReadTable 读回一个输出文件：返回表头与数据行。
func ReadTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = Delimiter
	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("读取 %s 失败：%w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("读取 %s 失败：缺少表头", path)
	}
	return all[0], all[1:], nil
}
