package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/John-Robertt/IMDBX/internal/app/run"
	"github.com/John-Robertt/IMDBX/internal/catalog"
	"github.com/John-Robertt/IMDBX/internal/config"
	"github.com/John-Robertt/IMDBX/internal/domain"
	"github.com/John-Robertt/IMDBX/internal/infra/fsx"
	"github.com/John-Robertt/IMDBX/internal/infra/httpx"
	"github.com/John-Robertt/IMDBX/internal/infra/logx"
	"github.com/John-Robertt/IMDBX/internal/notify"
	"github.com/John-Robertt/IMDBX/internal/sink/pgsink"
)

// reportFileName 是每次 run 结束后写入 <data_dir>/ 的 report 副本。
const reportFileName = "report.json"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	case "datasets":
		if code := datasetsCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, ca)
	if err != nil {
		emitReport(reportForConfigError(cwdAbs, ca, err))
		return 1
	}

	progressW, interactive := pickProgressWriter()

	// 交互终端已有进度 UI：info 级日志只会造成重复输出。
	level := eff.LogLevel
	if interactive && level == "info" {
		level = "warn"
	}
	logger, err := logx.New(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败：%v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	deps := run.Deps{Logger: logger}
	if eff.Database.Enabled {
		deps.Loader = pgsink.New(eff.Database, logger)
	}
	if strings.TrimSpace(eff.Notify.AMQPURL) != "" {
		deps.Notifier = notify.New(eff.Notify.AMQPURL, eff.Notify.Queue, logger)
	}

	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rr := run.ExecuteWithObserver(ctx, eff, deps, obs)

	if err := writeReportFile(eff.DataDir, rr); err != nil {
		logger.Warn("写入 report.json 失败", zap.Error(err))
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, rr)
	}
	if rr.Failed() {
		return 1
	}
	return 0
}

func datasetsCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printDatasetsUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printDatasetsUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	eff, err := config.LoadEffective(cwd, ca)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	client, err := httpx.NewClient(eff.ProxyURL, eff.UserAgent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proxy_url 无效：%v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	list, err := catalog.List(ctx, client, eff.BaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取数据集索引失败：%v\n", err)
		return 1
	}

	if isTTY(os.Stdout) {
		printDatasets(os.Stdout, list, eff.Sources())
		return 0
	}
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(list)
	return 0
}

// printDatasets 以表格输出；本次配置使用的数据集用 * 标记。
func printDatasets(w io.Writer, list []domain.Dataset, used []string) {
	mark := make(map[string]struct{}, len(used))
	for _, u := range used {
		mark[u] = struct{}{}
	}
	hi := color.New(color.FgGreen, color.Bold)
	for _, d := range list {
		if _, ok := mark[d.Name]; ok {
			hi.Fprintf(w, "* %-28s %s\n", d.Name, d.URL)
			continue
		}
		fmt.Fprintf(w, "  %-28s %s\n", d.Name, d.URL)
	}
}

// parseArgs 解析 --config / --data（allowData=false 时不接受 --data）。
func parseArgs(args []string, allowData bool) (config.CLIArgs, error) {
	var ca config.CLIArgs
	configSet := false

	value := func(i *int, flag string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", flag)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config":
			v, err := value(&i, a)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ca.ConfigPath, configSet = v, true
		case strings.HasPrefix(a, "--config="):
			ca.ConfigPath, configSet = strings.TrimPrefix(a, "--config="), true
		case allowData && a == "--data":
			v, err := value(&i, a)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ca.DataDir, ca.DataDirSet = v, true
		case allowData && strings.HasPrefix(a, "--data="):
			ca.DataDir, ca.DataDirSet = strings.TrimPrefix(a, "--data="), true
		case strings.HasPrefix(a, "-"):
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			return config.CLIArgs{}, fmt.Errorf("多余的参数 %q", a)
		}
	}

	if configSet && strings.TrimSpace(ca.ConfigPath) == "" {
		return config.CLIArgs{}, fmt.Errorf("--config 不能为空")
	}
	if ca.DataDirSet && strings.TrimSpace(ca.DataDir) == "" {
		return config.CLIArgs{}, fmt.Errorf("--data 不能为空")
	}
	return ca, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  imdbx run [--data DIR] [--config FILE]
  imdbx datasets [--config FILE]

命令：
  run       下载（或复用缓存）IMDb 数据集并生成 movies/titles/genres/genres_names 四张表
  datasets  列出远端索引页上发布的数据集

使用 "imdbx <命令> --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  imdbx run [--data DIR] [--config FILE]

参数：
  --data      缓存与输出目录（覆盖配置文件与 IMDBX_DATA_DIR；默认 ./data）
  --config    配置文件路径（默认读取 ./imdbx.yml，不存在则只读环境变量）
  -h, --help  显示帮助

输出：
  <data>/title.basics.tsv.gz、<data>/title.akas.tsv.gz   数据集缓存（存在即复用）
  <data>/YYYYMMDD_<table>.csv                          '|' 分隔的结果表
  <data>/report.json                                    本次运行的 RunReport
`)
}

func printDatasetsUsage() {
	fmt.Fprint(os.Stdout, `用法：
  imdbx datasets [--config FILE]

参数：
  --config    配置文件路径（用于 base_url / proxy_url）
  -h, --help  显示帮助

stdout 为终端时输出表格（* 标记本次配置使用的数据集），否则输出 JSON 数组。
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summaryLine(rr))
		if rr.Failed() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summaryLine(rr))
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：status=%s movies=%d titles=%d genres=%d genres_names=%d",
		rr.Status, rr.Summary.Movies, rr.Summary.Titles, rr.Summary.Genres, rr.Summary.Names,
	)
}

func reportForConfigError(cwdAbs string, ca config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	dataDir := ""
	if ca.DataDirSet {
		dataDir = ca.DataDir
	}
	rr := domain.RunReport{
		DataDir:    dataDir,
		StartedAt:  now,
		FinishedAt: now,
	}
	if rr.DataDir == "" {
		rr.DataDir = cwdAbs
	}
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr.Fail(code, err.Error())
	rr.Finalize()
	return rr
}

func writeReportFile(dataDir string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(dataDir, reportFileName, b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, rr domain.RunReport) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "report: %s\n", filepath.Join(rr.DataDir, reportFileName))
	for _, o := range rr.Outputs {
		fmt.Fprintf(w, "%s: %s\n", o.Name, o.Path)
	}
}
