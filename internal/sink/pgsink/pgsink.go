// Package pgsink 把结果表装载到 PostgreSQL。
//
// 每次装载都是全量替换：在同一个事务内清空四张表、批量插入、记录 import_runs。
package pgsink

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	sqldblogger "github.com/simukti/sqldb-logger"
	"go.uber.org/zap"

	"github.com/John-Robertt/IMDBX/internal/config"
	"github.com/John-Robertt/IMDBX/internal/domain"
)

const dialect = "postgres"

// DefaultBatchSize 是单条 INSERT 的行数上限（movies 4 列 => 4000 个参数，远低于 65535）。
const DefaultBatchSize = 1000

//go:embed migrations/*.sql
var migrations embed.FS

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Sink struct {
	Config    config.DatabaseConfig
	Logger    *zap.Logger
	BatchSize int
	Now       func() time.Time
}

func New(cfg config.DatabaseConfig, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		Config:    cfg,
		Logger:    logger.Named("db"),
		BatchSize: DefaultBatchSize,
		Now:       time.Now,
	}
}

// Open 建立连接（带 SQL 日志）并执行内嵌迁移。调用方负责 Close。
func (s *Sink) Open(ctx context.Context) (*sqlx.DB, error) {
	raw := sqldblogger.OpenDriver(
		s.Config.DSN(),
		&pq.Driver{},
		sqlLogger{l: s.Logger},
		sqldblogger.WithLogArguments(false),
	)
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("连接数据库失败：%w", err)
	}
	if err := Migrate(raw, s.Logger); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return sqlx.NewDb(raw, dialect), nil
}

// Migrate 执行 migrations/ 下的全部待执行迁移。
func Migrate(db *sql.DB, logger *zap.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{l: logger})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("设置迁移方言失败：%w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("数据库迁移失败：%w", err)
	}
	return nil
}

// Load 连接数据库并在一个事务内全量替换四张表。
func (s *Sink) Load(ctx context.Context, runID string, t domain.Tables) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("run_id 不是合法 UUID：%w", err)
	}

	db, err := s.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	started := time.Now()
	err = WrapTx(ctx, db, func(tx *sqlx.Tx) error {
		return s.replace(ctx, tx, id, t)
	})
	if err != nil {
		return err
	}
	s.Logger.Info("装载完成",
		zap.String("run_id", id.String()),
		zap.Int("movies", len(t.Movies)),
		zap.Int("titles", len(t.Titles)),
		zap.Int("genres", len(t.Genres)),
		zap.Int("genres_names", len(t.Names)),
		zap.Duration("dur", time.Since(started)),
	)
	return nil
}

func (s *Sink) replace(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, t domain.Tables) error {
	if _, err := tx.ExecContext(ctx, `TRUNCATE genres, titles, movies, genres_names`); err != nil {
		return fmt.Errorf("清空表失败：%w", err)
	}

	// 插入顺序满足外键：movies/genres_names 先于 genres/titles。
	if err := insertBatched(ctx, tx, "movies", []string{"id_movie", "title_original", "year", "duration"}, len(t.Movies), s.BatchSize, func(i int) []any {
		m := t.Movies[i]
		return []any{m.IDMovie, m.TitleOriginal, nullable(m.Year), nullable(m.Duration)}
	}); err != nil {
		return err
	}
	if err := insertBatched(ctx, tx, "genres_names", []string{"id_genre", "genre"}, len(t.Names), s.BatchSize, func(i int) []any {
		return []any{t.Names[i].IDGenre, t.Names[i].Name}
	}); err != nil {
		return err
	}
	if err := insertBatched(ctx, tx, "genres", []string{"id_movie", "id_genre"}, len(t.Genres), s.BatchSize, func(i int) []any {
		return []any{t.Genres[i].IDMovie, t.Genres[i].IDGenre}
	}); err != nil {
		return err
	}
	if err := insertBatched(ctx, tx, "titles", []string{"id_movie", "language", "title"}, len(t.Titles), s.BatchSize, func(i int) []any {
		return []any{t.Titles[i].IDMovie, t.Titles[i].Language, t.Titles[i].Title}
	}); err != nil {
		return err
	}

	q, args, err := psql.Insert("import_runs").
		Columns("run_id", "loaded_at", "movies", "titles", "genres", "genres_names").
		Values(id, s.Now().UTC(), len(t.Movies), len(t.Titles), len(t.Genres), len(t.Names)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("写入 import_runs 失败：%w", err)
	}
	return nil
}

func insertBatched(ctx context.Context, tx *sqlx.Tx, table string, cols []string, n, batch int, row func(i int) []any) error {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	for start := 0; start < n; start += batch {
		end := start + batch
		if end > n {
			end = n
		}
		q, args, err := buildInsert(table, cols, start, end, row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("写入 %s 失败（第 %d-%d 行）：%w", table, start+1, end, err)
		}
	}
	return nil
}

func buildInsert(table string, cols []string, start, end int, row func(i int) []any) (string, []any, error) {
	b := psql.Insert(table).Columns(cols...)
	for i := start; i < end; i++ {
		b = b.Values(row(i)...)
	}
	return b.ToSql()
}

// nullable 把缺失（或空串）映射为 SQL NULL。
func nullable(o domain.Opt) any {
	if !o.Present || o.Value == "" {
		return nil
	}
	return o.Value
}

// WrapTx 开启事务并执行 f；f 返回错误则回滚，否则提交。
func WrapTx(ctx context.Context, db *sqlx.DB, f func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}
