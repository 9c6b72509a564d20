package domain

// Dataset 是远端索引页上列出的一个数据集文件。
type Dataset struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CacheState 描述 <data_dir>/<name> 的现状（只做 stat，不读内容）。
type CacheState struct {
	Path   string
	Exists bool
	Size   int64
}

// SourcePlan 是对单个数据集的获取计划。
type SourcePlan struct {
	Name         string
	CachePath    string
	NeedDownload bool
}
