package planner

import (
	"fmt"

	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/infra/cache"
)

// ReadCacheState 读取 <data_dir>/<name> 的现状（只做 stat，不读文件内容）。
// 若缓存文件不存在，返回 Exists=false 且不报错。
func ReadCacheState(store cache.Store, name string) (domain.CacheState, error) {
	return store.Stat(name)
}

// PlanSources 基于 CacheState 生成确定性的获取计划（不做任何网络/写入）。
//
// 规则：
// - 顺序与 names 一致
// - 空文件视为未下载（上次写入被截断或被外部清空）
// - 同名资源只能出现一次
func PlanSources(names []string, states map[string]domain.CacheState) ([]domain.SourcePlan, error) {
	seen := make(map[string]struct{}, len(names))
	plans := make([]domain.SourcePlan, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return nil, fmt.Errorf("资源名重复：%q", n)
		}
		seen[n] = struct{}{}

		st, ok := states[n]
		if !ok {
			return nil, fmt.Errorf("缺少资源状态：%q", n)
		}
		plans = append(plans, domain.SourcePlan{
			Name:         n,
			CachePath:    st.Path,
			NeedDownload: !st.Exists || st.Size == 0,
		})
	}
	return plans, nil
}

// Plan 读取全部资源的缓存状态并生成计划。
func Plan(store cache.Store, names []string) ([]domain.SourcePlan, error) {
	states := make(map[string]domain.CacheState, len(names))
	for _, n := range names {
		st, err := ReadCacheState(store, n)
		if err != nil {
			return nil, err
		}
		states[n] = st
	}
	return PlanSources(names, states)
}
