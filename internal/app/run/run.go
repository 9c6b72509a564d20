package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/IMDBX/internal/app/planner"
	"github.com/John-Robertt/IMDBX/internal/config"
	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/infra/cache"
	"github.com/John-Robertt/IMDBX/internal/infra/fsx"
	"github.com/John-Robertt/IMDBX/internal/infra/httpx"
	"github.com/John-Robertt/IMDBX/internal/sink/csvsink"
	"github.com/John-Robertt/IMDBX/internal/source"
	"github.com/John-Robertt/IMDBX/internal/transform"
	"github.com/John-Robertt/IMDBX/internal/tsv"
)

// Loader 把结果表装载到外部存储（可选）。
type Loader interface {
	Load(ctx context.Context, runID string, t domain.Tables) error
}

// Notifier 发布运行结果（可选）。
type Notifier interface {
	Publish(ctx context.Context, rr domain.RunReport) error
}

// Deps 是运行所需的外部依赖；零值字段使用默认实现。
type Deps struct {
	Client *http.Client // nil：按配置构造（代理 + UA）
	Logger *zap.Logger  // nil：不输出日志
	Now    func() time.Time
	NewID  func() string

	Loader   Loader   // nil：不落库
	Notifier Notifier // nil：不发通知
}

// Execute 执行一次完整的抽取流程，并返回对外稳定的 RunReport。
// 任一阶段失败即中止；失败信息记录在 report 中，已写出的文件保留。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	if obs == nil {
		obs = nopObserver{}
	}
	r := &runner{eff: eff, deps: withDefaults(deps), obs: obs}
	return r.execute(ctx)
}

func withDefaults(d Deps) Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

type runner struct {
	eff  config.EffectiveConfig
	deps Deps
	obs  Observer
	log  *zap.Logger
	rr   domain.RunReport
}

func (r *runner) execute(ctx context.Context) domain.RunReport {
	started := r.deps.Now()
	r.obs.OnStart(r.eff)

	r.rr = domain.RunReport{
		RunID:     r.deps.NewID(),
		DataDir:   r.eff.DataDir,
		StartedAt: started,
		Sources:   make([]domain.SourceResult, 0, 2),
		Outputs:   make([]domain.OutputResult, 0, 4),
	}
	r.log = r.deps.Logger.With(zap.String("run_id", r.rr.RunID))
	r.log.Info("开始运行", zap.String("data_dir", r.eff.DataDir), zap.String("base_url", r.eff.BaseURL))

	if err := r.pipeline(ctx, started); err != nil {
		code := Classify(err)
		r.log.Error("运行失败", zap.String("error_code", code), zap.Error(err))
		r.rr.Fail(code, err.Error())
	}

	r.rr.FinishedAt = r.deps.Now()
	r.rr.Finalize()

	if r.deps.Notifier != nil {
		r.notify(ctx)
	}

	r.log.Info("运行结束", zap.String("status", r.rr.Status), zap.Duration("elapsed", r.rr.FinishedAt.Sub(r.rr.StartedAt)))
	r.obs.OnFinish(r.rr)
	return r.rr
}

func (r *runner) pipeline(ctx context.Context, started time.Time) error {
	client := r.deps.Client
	if client == nil {
		c, err := httpx.NewClient(r.eff.ProxyURL, r.eff.UserAgent)
		if err != nil {
			return &config.Error{Code: config.ErrCodeInvalid, Err: fmt.Errorf("proxy_url 无效：%w", err)}
		}
		client = c
	}

	if err := fsx.EnsureDir(r.eff.DataDir); err != nil {
		return &source.Error{Name: r.eff.DataDir, Stage: source.StageStore, Err: err}
	}
	store := cache.New(r.eff.DataDir)

	// plan
	t0 := time.Now()
	plans, err := planner.Plan(store, r.eff.Sources())
	if err != nil {
		return &source.Error{Name: r.eff.DataDir, Stage: source.StageStore, Err: err}
	}
	download := 0
	for _, p := range plans {
		if p.NeedDownload {
			download++
		}
	}
	r.phase(PhasePlan, map[string]any{"sources": len(plans), "download": download, "cached": len(plans) - download}, time.Since(t0))

	fetcher := &source.Fetcher{
		Store:    store,
		Client:   client,
		BaseURL:  r.eff.BaseURL,
		Progress: r.obs.OnDownload,
	}

	// fetch：先 basics 后 akas，严格串行。
	t0 = time.Now()
	raw, res, err := fetcher.Titles(ctx, r.eff.Basics)
	if err != nil {
		return err
	}
	r.rr.Sources = append(r.rr.Sources, res)
	r.rr.Summary.RawTitles = len(raw)
	r.phase(PhaseFetch, fetchFields(res, len(raw)), time.Since(t0))

	t0 = time.Now()
	akas, res, err := fetcher.Akas(ctx, r.eff.Akas)
	if err != nil {
		return err
	}
	r.rr.Sources = append(r.rr.Sources, res)
	r.rr.Summary.RawAkas = len(akas)
	r.phase(PhaseFetch, fetchFields(res, len(akas)), time.Since(t0))

	// transform
	if err := ctx.Err(); err != nil {
		return err
	}
	t0 = time.Now()
	year := started.Format("2006")
	movies := transform.FilterMovies(raw, transform.MovieCriteria{
		TitleType:  r.eff.TitleType,
		AdultValue: r.eff.AdultValue,
	}, year)
	raw = nil
	r.rr.Summary.Movies = len(movies)
	r.phase(PhaseMovies, map[string]any{"in": r.rr.Summary.RawTitles, "out": len(movies), "before_year": year}, time.Since(t0))

	if err := ctx.Err(); err != nil {
		return err
	}
	t0 = time.Now()
	assign, names := transform.ExtractGenres(movies)
	r.rr.Summary.Genres = len(assign)
	r.rr.Summary.Names = len(names)
	r.phase(PhaseGenres, map[string]any{"assignments": len(assign), "names": len(names)}, time.Since(t0))

	if err := ctx.Err(); err != nil {
		return err
	}
	t0 = time.Now()
	titles := transform.LocalizeTitles(akas, movies, transform.TitleCriteria{
		Region:    r.eff.Region,
		Languages: r.eff.Languages,
	})
	akas = nil
	r.rr.Summary.Titles = len(titles)
	r.phase(PhaseTitles, map[string]any{"in": r.rr.Summary.RawAkas, "out": len(titles)}, time.Since(t0))

	tables := domain.Tables{Movies: movies, Titles: titles, Genres: assign, Names: names}

	// write：取消后不再产出文件。
	if err := ctx.Err(); err != nil {
		return err
	}
	t0 = time.Now()
	w := csvsink.NewWriter(r.eff.DataDir, started)
	r.rr.Stamp = w.Stamp
	outs, err := w.WriteAll(r.eff.Outputs, tables)
	r.rr.Outputs = append(r.rr.Outputs, outs...)
	if err != nil {
		return &OutputError{Err: err}
	}
	rows := 0
	for _, o := range outs {
		rows += o.Rows
	}
	r.phase(PhaseWrite, map[string]any{"files": len(outs), "rows": rows, "stamp": w.Stamp}, time.Since(t0))

	// load（可选）
	if r.deps.Loader != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		t0 = time.Now()
		if err := r.deps.Loader.Load(ctx, r.rr.RunID, tables); err != nil {
			return &LoadError{Err: err}
		}
		r.rr.Summary.Loaded = true
		r.phase(PhaseLoad, map[string]any{"rows": rows}, time.Since(t0))
	}
	return nil
}

// notify 在 report 定稿之后发送；失败会把 report 标记为 notify_failed。
func (r *runner) notify(ctx context.Context) {
	t0 := time.Now()
	msg := r.rr
	msg.Summary.Notified = true
	if err := r.deps.Notifier.Publish(ctx, msg); err != nil {
		err = &NotifyError{Err: err}
		r.log.Error("发送运行通知失败", zap.Error(err))
		r.rr.Fail(Classify(err), err.Error())
		return
	}
	r.rr.Summary.Notified = true
	r.phase(PhaseNotify, map[string]any{"status": msg.Status}, time.Since(t0))
}

func (r *runner) phase(name string, fields map[string]any, dur time.Duration) {
	zf := make([]zap.Field, 0, len(fields)+2)
	zf = append(zf, zap.String("phase", name), zap.Duration("dur", dur))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	r.log.Info("阶段完成", zf...)
	r.obs.OnPhaseDone(name, fields, dur)
}

func fetchFields(res domain.SourceResult, rows int) map[string]any {
	return map[string]any{
		"source": res.Name,
		"origin": res.Origin,
		"bytes":  res.Bytes,
		"rows":   rows,
	}
}

// OutputError 表示写出 CSV 失败。
type OutputError struct{ Err error }

func (e *OutputError) Error() string { return "写出结果失败：" + e.Err.Error() }
func (e *OutputError) Unwrap() error { return e.Err }

// LoadError 表示装载到数据库失败。
type LoadError struct{ Err error }

func (e *LoadError) Error() string { return "装载数据库失败：" + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// NotifyError 表示发布运行通知失败。
type NotifyError struct{ Err error }

func (e *NotifyError) Error() string { return "发送通知失败：" + e.Err.Error() }
func (e *NotifyError) Unwrap() error { return e.Err }

// Classify 把运行错误映射为 report 的 error_code。
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if code := config.Code(err); code != "" {
		return code
	}

	var (
		le *LoadError
		ne *NotifyError
		oe *OutputError
		se *tsv.SchemaError
		de *tsv.DecodeError
		pe *source.Error
	)
	switch {
	case errors.As(err, &le):
		return domain.ErrCodeLoadFailed
	case errors.As(err, &ne):
		return domain.ErrCodeNotifyFailed
	case errors.As(err, &oe):
		return domain.ErrCodeIOFailed
	case errors.As(err, &se):
		return domain.ErrCodeSchemaDrift
	case errors.As(err, &de):
		return domain.ErrCodeDecodeFailed
	case errors.As(err, &pe):
		switch pe.Stage {
		case source.StageFetch:
			return domain.ErrCodeFetchFailed
		case source.StageDecode:
			return domain.ErrCodeDecodeFailed
		default:
			return domain.ErrCodeIOFailed
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrCodeFetchFailed
	default:
		return domain.ErrCodeIOFailed
	}
}
