// Package tsv 解码 IMDb 发布的 gzip 压缩 TSV 数据集。
//
// 格式约定：首行为表头；字段以 '\t' 分隔；不做引号处理（发布格式本身不转义引号）；
// 所有单元格保持字符串，缺失值是字面量 \N。
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/John-Robertt/IMDBX/internal/domain"
)

const maxLineBytes = 4 << 20

// SchemaError 表示表头缺少必需列（上游 schema 漂移）。
type SchemaError struct {
	Missing []string
	Header  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("缺少必需列 %v（实际表头 %v）", e.Missing, e.Header)
}

// DecodeError 表示某一行无法解码（gzip 损坏、字段数过多等）。
type DecodeError struct {
	Line int // 1-based；0 表示发生在读取表头之前
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("解码失败：%v", e.Err)
	}
	return fmt.Sprintf("第 %d 行解码失败：%v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Record 是按列名访问的一行；只在回调内有效。
type Record struct {
	cols   map[string]int
	fields []string
}

// Get 返回列 name 的原始字符串值；表头中不存在的列按缺失（\N）返回。
// 需要的列应在 Scan 的 required 中声明，由表头校验报告 *SchemaError。
func (r Record) Get(name string) string {
	i, ok := r.cols[name]
	if !ok {
		return domain.Sentinel
	}
	return r.fields[i]
}

// Opt 返回列 name 的值，\N 转为缺失。
func (r Record) Opt(name string) domain.Opt {
	return domain.ParseField(r.Get(name))
}

// ScanGzip 解压 r 后调用 Scan。
func ScanGzip(r io.Reader, required []string, fn func(Record) error) (int, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return 0, &DecodeError{Err: err}
	}
	defer zr.Close()
	return Scan(zr, required, fn)
}

// Scan 逐行读取 TSV，对每个数据行调用 fn，返回数据行数。
//
// 规则：
// - 表头必须包含 required 中的全部列，否则返回 *SchemaError
// - 字段数少于表头：缺失部分按 \N 补齐
// - 字段数多于表头：返回 *DecodeError
func Scan(r io.Reader, required []string, fn func(Record) error) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return 0, &DecodeError{Err: err}
		}
		return 0, &DecodeError{Err: io.ErrUnexpectedEOF}
	}
	header := strings.Split(trimEOL(sc.Text()), "\t")
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return 0, &SchemaError{Missing: missing, Header: header}
	}

	line := 1
	rows := 0
	for sc.Scan() {
		line++
		text := trimEOL(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) > len(header) {
			return rows, &DecodeError{Line: line, Err: fmt.Errorf("字段数 %d 超过表头 %d", len(fields), len(header))}
		}
		for len(fields) < len(header) {
			fields = append(fields, domain.Sentinel)
		}
		if err := fn(Record{cols: cols, fields: fields}); err != nil {
			return rows, err
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return rows, &DecodeError{Line: line + 1, Err: err}
	}
	return rows, nil
}

func trimEOL(s string) string {
	return strings.TrimSuffix(s, "\r")
}
