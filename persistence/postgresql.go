// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wfunc/hexarace/models"
)

// PostgreSQL 使用 database/sql + lib/pq 的实现，表结构与 GORM 版本一致
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating match tables: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS match_records (
            id BIGSERIAL PRIMARY KEY,
            room_id TEXT NOT NULL,
            mode TEXT NOT NULL,
            circles BIGINT NOT NULL,
            winner_id TEXT NOT NULL,
            winner_name TEXT NOT NULL,
            rolls BIGINT DEFAULT 0,
            gift_stacks BIGINT DEFAULT 0,
            started_at TIMESTAMPTZ,
            finished_at TIMESTAMPTZ
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS match_players (
            id BIGSERIAL PRIMARY KEY,
            match_id BIGINT NOT NULL REFERENCES match_records(id) ON DELETE CASCADE,
            player_id TEXT NOT NULL,
            name TEXT NOT NULL,
            position BIGINT NOT NULL,
            winner BOOLEAN DEFAULT false
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_match_records_room_id ON match_records(room_id);
        CREATE INDEX IF NOT EXISTS idx_match_records_winner_name ON match_records(winner_name);
        CREATE INDEX IF NOT EXISTS idx_match_records_finished_at ON match_records(finished_at);
        CREATE INDEX IF NOT EXISTS idx_match_players_match_id ON match_players(match_id);
        CREATE INDEX IF NOT EXISTS idx_match_players_name ON match_players(name);
    `)
	return err
}

// SaveMatch 写入比赛记录，玩家行用 COPY 批量导入
func (p *PostgreSQL) SaveMatch(ctx context.Context, record *models.MatchRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
        INSERT INTO match_records
            (room_id, mode, circles, winner_id, winner_name, rolls, gift_stacks, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `,
		record.RoomID, record.Mode, record.Circles, record.WinnerID, record.WinnerName,
		record.Rolls, record.GiftStacks, pq.NullTime{Time: record.StartedAt, Valid: !record.StartedAt.IsZero()},
		record.FinishedAt,
	).Scan(&id)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("match_players", "match_id", "player_id", "name", "position", "winner"))
	if err != nil {
		return err
	}
	for _, pl := range record.Players {
		if _, err := stmt.ExecContext(ctx, id, pl.PlayerID, pl.Name, pl.Position, pl.Winner); err != nil {
			stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	record.ID = uint(id)
	return nil
}

func (p *PostgreSQL) PlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	var total, wins int
	err := p.db.QueryRowContext(ctx, `
        SELECT COUNT(*), COALESCE(SUM(CASE WHEN winner THEN 1 ELSE 0 END), 0)
        FROM match_players
        WHERE name = $1
    `, name).Scan(&total, &wins)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if total == 0 {
		return nil, ErrRecordNotFound
	}
	return &models.PlayerStats{
		Name:       name,
		TotalGames: total,
		Wins:       wins,
		Losses:     total - wins,
	}, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
