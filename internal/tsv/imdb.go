package tsv

import (
	"io"

	"github.com/John-Robertt/IMDBX/internal/domain"
)

// title.basics.tsv.gz 中流程依赖的列。
var basicsColumns = []string{
	"tconst", "titleType", "primaryTitle", "originalTitle",
	"isAdult", "startYear", "runtimeMinutes", "genres",
}

// title.akas.tsv.gz 中流程依赖的列。
var akasColumns = []string{"titleId", "ordering", "title", "region", "language"}

// DecodeTitles 把 gzip 压缩的 title.basics 解码为 RawTitle 序列（保持文件顺序）。
func DecodeTitles(r io.Reader) ([]domain.RawTitle, error) {
	out := make([]domain.RawTitle, 0, 1<<16)
	_, err := ScanGzip(r, basicsColumns, func(rec Record) error {
		out = append(out, domain.RawTitle{
			ID:             rec.Get("tconst"),
			TitleType:      rec.Get("titleType"),
			PrimaryTitle:   rec.Get("primaryTitle"),
			OriginalTitle:  rec.Get("originalTitle"),
			IsAdult:        rec.Get("isAdult"),
			StartYear:      rec.Opt("startYear"),
			RuntimeMinutes: rec.Opt("runtimeMinutes"),
			Genres:         rec.Opt("genres"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeAkas 把 gzip 压缩的 title.akas 解码为 RawAka 序列（保持文件顺序）。
func DecodeAkas(r io.Reader) ([]domain.RawAka, error) {
	out := make([]domain.RawAka, 0, 1<<16)
	_, err := ScanGzip(r, akasColumns, func(rec Record) error {
		out = append(out, domain.RawAka{
			TitleID:  rec.Get("titleId"),
			Ordering: rec.Get("ordering"),
			Title:    rec.Get("title"),
			Region:   rec.Opt("region"),
			Language: rec.Opt("language"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
