package domain

// RawTitle 对应 title.basics.tsv.gz 的一行（只保留流程用到的列）。
type RawTitle struct {
	ID             string // tconst
	TitleType      string
	PrimaryTitle   string
	OriginalTitle  string
	IsAdult        string // "0" / "1"，保持字符串语义
	StartYear      Opt
	RuntimeMinutes Opt
	Genres         Opt // 逗号分隔
}

// RawAka 对应 title.akas.tsv.gz 的一行。
type RawAka struct {
	TitleID  string
	Ordering string
	Title    string
	Region   Opt
	Language Opt
}

// Movie 是过滤后保留的电影。
//
// 不变量：TitleType=="movie"、IsAdult=="0"、Year < 当前年份（字符串比较）。
type Movie struct {
	IDMovie       string
	TitleOriginal string
	Year          Opt
	Duration      Opt

	// Genres 只供 genre 抽取阶段使用，不写入 movies 表。
	Genres Opt
}

// GenreAssignment 是 movie 与 genre 的多对多关系行。
type GenreAssignment struct {
	IDMovie string
	IDGenre int
}

// Genre 是 genre 字典的一项；IDGenre 按 Name 字典序从 0 连续分配。
type Genre struct {
	IDGenre int
	Name    string
}

// Title 是某部电影在目标地区/语言下的本地化标题。
type Title struct {
	IDMovie  string
	Language string
	Title    string
}

// Tables 是一次运行产出的四张表。
type Tables struct {
	Movies []Movie
	Titles []Title
	Genres []GenreAssignment
	Names  []Genre
}
