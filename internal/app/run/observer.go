package run

import (
	"time"

	"github.com/John-Robertt/IMDBX/internal/config"
	"github.com/John-Robertt/IMDBX/internal/domain"
)

// Observer 用于把"运行进度/阶段"从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件全部来自调用 ExecuteWithObserver 的同一个 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnDownload 报告数据集下载进度；total<0 表示未知长度。
	OnDownload(name string, done, total int64)
	// OnFinish 在 report 定稿后调用（成功或失败都会调用）。
	OnFinish(rr domain.RunReport)
}

// 阶段名（OnPhaseDone 的 name）。
const (
	PhasePlan   = "plan"
	PhaseFetch  = "fetch"
	PhaseMovies = "movies"
	PhaseGenres = "genres"
	PhaseTitles = "titles"
	PhaseWrite  = "write"
	PhaseLoad   = "load"
	PhaseNotify = "notify"
)

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (nopObserver) OnDownload(string, int64, int64) {}
func (nopObserver) OnFinish(domain.RunReport) {}
