// Package transform 把原始行转换为四张规范化表。
//
// 所有函数都是输入的纯函数：相同输入得到逐字节相同的输出。
package transform

import (
	"strings"

	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/table"
)

// MovieCriteria 是电影过滤条件。
type MovieCriteria struct {
	TitleType  string // "movie"
	AdultValue string // "0"
}

// TitleCriteria 是本地化标题的过滤条件。
type TitleCriteria struct {
	Region    string   // "ES"
	Languages []string // {"ca","es"}
}

// FilterMovies 保留 titleType、isAdult 匹配且上映年份早于 currentYear 的行。
//
// 年份按字符串比较（与发布数据的 4 位年份一致）；缺失年份的行被丢弃。
func FilterMovies(raw []domain.RawTitle, c MovieCriteria, currentYear string) []domain.Movie {
	kept := table.Select(raw, func(r domain.RawTitle) bool {
		return r.TitleType == c.TitleType &&
			r.IsAdult == c.AdultValue &&
			r.StartYear.Present &&
			r.StartYear.Value < currentYear
	})
	return table.Project(kept, func(r domain.RawTitle) domain.Movie {
		return domain.Movie{
			IDMovie:       r.ID,
			TitleOriginal: r.OriginalTitle,
			Year:          r.StartYear,
			Duration:      r.RuntimeMinutes,
			Genres:        r.Genres,
		}
	})
}

type movieGenre struct {
	idMovie string
	name    string
}

// ExtractGenres 展开电影的 genres 列，返回多对多关系表与 genre 字典。
//
// 字典 id 按名字字典序从 0 连续分配；关系表按 id_movie 稳定排序。
func ExtractGenres(movies []domain.Movie) ([]domain.GenreAssignment, []domain.Genre) {
	pairs := table.Explode(movies, func(m domain.Movie) []movieGenre {
		if !m.Genres.Present {
			return nil
		}
		parts := strings.Split(m.Genres.Value, ",")
		out := make([]movieGenre, 0, len(parts))
		for _, p := range parts {
			if p == "" || p == domain.Sentinel {
				continue
			}
			out = append(out, movieGenre{idMovie: m.IDMovie, name: p})
		}
		return out
	})

	names := table.DistinctSorted(pairs, func(p movieGenre) string { return p.name })
	ids := table.Index(names)

	dict := make([]domain.Genre, 0, len(names))
	for i, n := range names {
		dict = append(dict, domain.Genre{IDGenre: i, Name: n})
	}

	pairs = table.SortStableBy(pairs, func(p movieGenre) string { return p.idMovie })
	assign := table.Project(pairs, func(p movieGenre) domain.GenreAssignment {
		return domain.GenreAssignment{IDMovie: p.idMovie, IDGenre: ids[p.name]}
	})
	return assign, dict
}

// LocalizeTitles 选出属于已保留电影、且地区与语言命中的别名标题。
//
// 不去重；按 id_movie 稳定排序。
func LocalizeTitles(akas []domain.RawAka, movies []domain.Movie, c TitleCriteria) []domain.Title {
	ids := table.KeySet(movies, func(m domain.Movie) string { return m.IDMovie })
	langs := make(map[string]struct{}, len(c.Languages))
	for _, l := range c.Languages {
		langs[l] = struct{}{}
	}

	kept := table.Select(akas, func(a domain.RawAka) bool {
		return table.In(ids, a.TitleID) &&
			a.Region.Present && a.Region.Value == c.Region &&
			a.Language.Present && table.In(langs, a.Language.Value)
	})
	titles := table.Project(kept, func(a domain.RawAka) domain.Title {
		return domain.Title{IDMovie: a.TitleID, Language: a.Language.Value, Title: a.Title}
	})
	return table.SortStableBy(titles, func(t domain.Title) string { return t.IDMovie })
}
