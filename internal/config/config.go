package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// DefaultFileName 是 cwd 下自动发现的配置文件名（可选）。
const DefaultFileName = "imdbx.yml"

// CLIArgs 只包含 CLI 暴露的入口（config/data），并保留“是否显式指定”的信息。
type CLIArgs struct {
	ConfigPath string

	DataDir    string
	DataDirSet bool
}

// FileConfig 对应 imdbx.yml 的解析结构；每个字段同时可由 IMDBX_* 环境变量覆盖。
// env-default 即参考行为中的固定常量。
type FileConfig struct {
	Source   SourceConfig   `yaml:"source"`
	Filter   FilterConfig   `yaml:"filter"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Notify   NotifyConfig   `yaml:"notify"`
	LogLevel string         `yaml:"log_level" env:"IMDBX_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
}

type SourceConfig struct {
	BaseURL   string `yaml:"base_url" env:"IMDBX_BASE_URL" env-default:"https://datasets.imdbws.com/" validate:"required,url"`
	DataDir   string `yaml:"data_dir" env:"IMDBX_DATA_DIR" env-default:"data" validate:"required"`
	Basics    string `yaml:"basics" env:"IMDBX_BASICS" env-default:"title.basics.tsv.gz" validate:"required"`
	Akas      string `yaml:"akas" env:"IMDBX_AKAS" env-default:"title.akas.tsv.gz" validate:"required"`
	ProxyURL  string `yaml:"proxy_url" env:"IMDBX_PROXY_URL" validate:"omitempty,url"`
	UserAgent string `yaml:"user_agent" env:"IMDBX_USER_AGENT" env-default:"imdbx/1.0"`
}

type FilterConfig struct {
	TitleType  string   `yaml:"title_type" env:"IMDBX_TITLE_TYPE" env-default:"movie" validate:"required"`
	AdultValue string   `yaml:"adult_value" env:"IMDBX_ADULT_VALUE" env-default:"0" validate:"required"`
	Region     string   `yaml:"region" env:"IMDBX_REGION" env-default:"ES" validate:"required"`
	Languages  []string `yaml:"languages" env:"IMDBX_LANGUAGES" env-default:"ca,es" validate:"min=1,dive,required"`
}

type OutputConfig struct {
	Movies      string `yaml:"movies" env:"IMDBX_OUT_MOVIES" env-default:"movies" validate:"required"`
	Titles      string `yaml:"titles" env:"IMDBX_OUT_TITLES" env-default:"titles" validate:"required"`
	Genres      string `yaml:"genres" env:"IMDBX_OUT_GENRES" env-default:"genres" validate:"required"`
	GenresNames string `yaml:"genres_names" env:"IMDBX_OUT_GENRES_NAMES" env-default:"genres_names" validate:"required"`
}

// DatabaseConfig 控制可选的 Postgres 落库。
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled" env:"IMDBX_DB_ENABLED" env-default:"false"`
	Host     string `yaml:"host" env:"IMDBX_DB_HOST" env-default:"127.0.0.1" validate:"required_if=Enabled true"`
	Port     string `yaml:"port" env:"IMDBX_DB_PORT" env-default:"5432" validate:"required_if=Enabled true"`
	User     string `yaml:"username" env:"IMDBX_DB_USERNAME" validate:"required_if=Enabled true"`
	Password string `yaml:"password" env:"IMDBX_DB_PASSWORD"`
	Name     string `yaml:"name" env:"IMDBX_DB_NAME" env-default:"imdbx" validate:"required_if=Enabled true"`
	SSLMode  string `yaml:"sslmode" env:"IMDBX_DB_SSLMODE" env-default:"disable"`
}

// NotifyConfig 控制可选的 RabbitMQ 运行通知；AMQPURL 为空即关闭。
type NotifyConfig struct {
	AMQPURL string `yaml:"amqp_url" env:"IMDBX_AMQP_URL" validate:"omitempty,url"`
	Queue   string `yaml:"queue" env:"IMDBX_AMQP_QUEUE" env-default:"imdbx.runs"`
}

// Outputs 是四个输出表的逻辑名。
type Outputs struct {
	Movies      string
	Titles      string
	Genres      string
	GenresNames string
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（只读；各阶段直接消费）。
type EffectiveConfig struct {
	ConfigPath string // 实际读取的配置文件；未使用文件时为空

	BaseURL   string // 保证以 '/' 结尾
	DataDir   string // clean + absolute
	Basics    string
	Akas      string
	ProxyURL  string
	UserAgent string

	TitleType  string
	AdultValue string
	Region     string
	Languages  []string

	Outputs Outputs

	Database DatabaseConfig
	Notify   NotifyConfig

	LogLevel string
}

// Sources 按固定顺序返回两个远端资源名。
func (c EffectiveConfig) Sources() []string {
	return []string{c.Basics, c.Akas}
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：配置无效：%v", e.Code, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var validate = validator.New()

// LoadEffective 发现并读取配置，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/imdbx.yml（可选）；不存在则只读环境变量
//
// 覆盖优先级（固定）：CLI --data > IMDBX_* 环境变量 > 配置文件 > 内置默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := ""
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		if _, err := os.Stat(cfgPath); err != nil {
			if os.IsNotExist(err) {
				return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
			}
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	} else {
		p := filepath.Join(cwdAbs, DefaultFileName)
		if _, err := os.Stat(p); err == nil {
			cfgPath = p
		}
	}

	var fc FileConfig
	if cfgPath != "" {
		// ReadConfig：文件 -> 环境变量覆盖 -> 默认值补齐。
		if err := cleanenv.ReadConfig(cfgPath, &fc); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	} else if err := cleanenv.ReadEnv(&fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	if cli.DataDirSet {
		fc.Source.DataDir = strings.TrimSpace(cli.DataDir)
	}

	return merge(cwdAbs, fc, cfgPath)
}

func merge(cwdAbs string, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	if err := validate.Struct(fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	basics := strings.TrimSpace(fc.Source.Basics)
	akas := strings.TrimSpace(fc.Source.Akas)
	if basics == akas {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("basics 与 akas 不能是同一个资源：%q", basics)}
	}

	dataDir, err := homedir.Expand(strings.TrimSpace(fc.Source.DataDir))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("data_dir 无效：%w", err)}
	}
	// 相对路径以 cwd 为基准（配置文件所在目录不参与）。
	dataDir = absCleanFrom(cwdAbs, dataDir)

	baseURL := strings.TrimSpace(fc.Source.BaseURL)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	langs := make([]string, 0, len(fc.Filter.Languages))
	for _, l := range fc.Filter.Languages {
		langs = append(langs, strings.TrimSpace(l))
	}

	return EffectiveConfig{
		ConfigPath: cfgPath,

		BaseURL:   baseURL,
		DataDir:   dataDir,
		Basics:    basics,
		Akas:      akas,
		ProxyURL:  strings.TrimSpace(fc.Source.ProxyURL),
		UserAgent: strings.TrimSpace(fc.Source.UserAgent),

		TitleType:  fc.Filter.TitleType,
		AdultValue: fc.Filter.AdultValue,
		Region:     fc.Filter.Region,
		Languages:  langs,

		Outputs: Outputs{
			Movies:      fc.Output.Movies,
			Titles:      fc.Output.Titles,
			Genres:      fc.Output.Genres,
			GenresNames: fc.Output.GenresNames,
		},

		Database: fc.Database,
		Notify:   fc.Notify,
		LogLevel: fc.LogLevel,
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// DSN 构造 lib/pq 的 key=value 连接串。
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}
