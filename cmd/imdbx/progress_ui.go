package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mitchellh/mapstructure"

	"github.com/John-Robertt/IMDBX/internal/app/run"
	"github.com/John-Robertt/IMDBX/internal/config"
	"github.com/John-Robertt/IMDBX/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

var (
	colorTitle = color.New(color.Bold)
	colorOK    = color.New(color.FgGreen)
	colorFail  = color.New(color.FgRed, color.Bold)
	colorDim   = color.New(color.Faint)
)

// progressUI 是交互终端的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：解码/过滤大表时长时间没有事件，也会定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time
	phase       string // 正在进行的阶段（上一个完成阶段的下一步）

	// 下载进度节流：每个资源只在跨过 10% 刻度时打印。
	lastPct map[string]int64

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		lastPct:            map[string]int64{},
		keepaliveThreshold: 10 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

type fetchFields struct {
	Source string `mapstructure:"source"`
	Origin string `mapstructure:"origin"`
	Bytes  int64  `mapstructure:"bytes"`
	Rows   int    `mapstructure:"rows"`
}

type planFields struct {
	Sources  int `mapstructure:"sources"`
	Download int `mapstructure:"download"`
	Cached   int `mapstructure:"cached"`
}

type inOutFields struct {
	In         int    `mapstructure:"in"`
	Out        int    `mapstructure:"out"`
	BeforeYear string `mapstructure:"before_year"`
}

type genreFields struct {
	Assignments int `mapstructure:"assignments"`
	Names       int `mapstructure:"names"`
}

type writeFields struct {
	Files int    `mapstructure:"files"`
	Rows  int    `mapstructure:"rows"`
	Stamp string `mapstructure:"stamp"`
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	colorTitle.Fprintf(p.w, "[%s] imdbx run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  base_url: %s\n", eff.BaseURL)
	fmt.Fprintf(p.w, "  sources: %s\n", strings.Join(eff.Sources(), ", "))
	fmt.Fprintf(p.w, "  filter: title_type=%s adult=%s region=%s languages=%s\n",
		eff.TitleType, eff.AdultValue, eff.Region, strings.Join(eff.Languages, ","))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  database: %s\n", onOff(eff.Database.Enabled))
	fmt.Fprintf(p.w, "  notify: %s\n", onOff(strings.TrimSpace(eff.Notify.AMQPURL) != ""))

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  data: %s\n", eff.DataDir)
	fmt.Fprintln(p.w)

	p.phase = run.PhasePlan
	p.lastPrinted = time.Now()
	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case run.PhasePlan:
		var f planFields
		decodeFields(fields, &f)
		fmt.Fprintf(p.w, "规划: sources=%d download=%d cached=%d (%s)\n", f.Sources, f.Download, f.Cached, formatShortDuration(dur))
		p.phase = run.PhaseFetch
	case run.PhaseFetch:
		var f fetchFields
		decodeFields(fields, &f)
		fmt.Fprintf(p.w, "获取: %s %s %s rows=%d (%s)\n", f.Source, f.Origin, formatBytes(f.Bytes), f.Rows, formatShortDuration(dur))
		p.phase = run.PhaseFetch
	case run.PhaseMovies:
		var f inOutFields
		decodeFields(fields, &f)
		fmt.Fprintf(p.w, "电影: %d -> %d (year < %s) (%s)\n", f.In, f.Out, f.BeforeYear, formatShortDuration(dur))
		p.phase = run.PhaseGenres
	case run.PhaseGenres:
		var f genreFields
		decodeFields(fields, &f)
		fmt.Fprintf(p.w, "类型: assignments=%d names=%d (%s)\n", f.Assignments, f.Names, formatShortDuration(dur))
		p.phase = run.PhaseTitles
	case run.PhaseTitles:
		var f inOutFields
		decodeFields(fields, &f)
		fmt.Fprintf(p.w, "标题: %d -> %d (%s)\n", f.In, f.Out, formatShortDuration(dur))
		p.phase = run.PhaseWrite
	case run.PhaseWrite:
		var f writeFields
		decodeFields(fields, &f)
		fmt.Fprintf(p.w, "写出: files=%d rows=%d stamp=%s (%s)\n", f.Files, f.Rows, f.Stamp, formatShortDuration(dur))
		p.phase = run.PhaseLoad
	case run.PhaseLoad:
		fmt.Fprintf(p.w, "装载: postgres (%s)\n", formatShortDuration(dur))
		p.phase = run.PhaseNotify
	case run.PhaseNotify:
		fmt.Fprintf(p.w, "通知: rabbitmq (%s)\n", formatShortDuration(dur))
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnDownload(name string, done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total <= 0 {
		// 未知长度：按 keepalive 节奏输出已下载字节。
		if time.Since(p.lastPrinted) < p.keepaliveThreshold {
			return
		}
		fmt.Fprintf(p.w, "下载: %s %s\n", name, formatBytes(done))
		p.lastPrinted = time.Now()
		return
	}

	pct := done * 100 / total
	step := pct / 10 * 10
	last, ok := p.lastPct[name]
	if ok && step <= last {
		return
	}
	p.lastPct[name] = step
	fmt.Fprintf(p.w, "下载: %s %3d%% %s/%s\n", name, step, formatBytes(done), formatBytes(total))
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnFinish(rr domain.RunReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTickerLocked()

	elapsed := rr.FinishedAt.Sub(rr.StartedAt)
	if rr.Failed() {
		colorFail.Fprintf(p.w, "失败: %s %s (%s)\n", rr.ErrorCode, truncate(rr.ErrorMsg, 200), formatElapsed(elapsed))
	} else {
		colorOK.Fprintf(p.w, "完成: movies=%d titles=%d genres=%d genres_names=%d (%s)\n",
			rr.Summary.Movies, rr.Summary.Titles, rr.Summary.Genres, rr.Summary.Names, formatElapsed(elapsed))
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 10 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					colorDim.Fprintf(p.w, "进行中: phase=%s elapsed=%s\n", p.phase, formatElapsed(time.Since(p.startedAt)))
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

// decodeFields 把事件字段解码到具体结构；字段缺失保持零值。
func decodeFields(fields map[string]any, out any) {
	if fields == nil {
		return
	}
	_ = mapstructure.Decode(fields, out)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:runeCut(s, max)]
	}
	return s[:runeCut(s, max-3)] + "..."
}

// runeCut 返回不超过 n 的最大切分位置，保证不切断 UTF-8 字符。
func runeCut(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
