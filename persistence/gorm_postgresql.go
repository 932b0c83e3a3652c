// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/hexarace/logger"
	"github.com/wfunc/hexarace/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.Open(dsn(host, port, user, password, dbname)), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening gorm postgres: %w", err)
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.MatchRecord{}, &models.MatchPlayer{}); err != nil {
		return nil, fmt.Errorf("migrating match tables: %w", err)
	}

	return &GormPostgreSQL{db: db}, nil
}

// GORM 日志写入 zap，只记录慢查询和错误
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(
		zap.NewStdLog(logger.Log.Desugar()),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// SaveMatch 在一个事务里写入比赛及其玩家
func (p *GormPostgreSQL) SaveMatch(ctx context.Context, record *models.MatchRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(record).Error
	})
}

func (p *GormPostgreSQL) PlayerStats(ctx context.Context, name string) (*models.PlayerStats, error) {
	var row struct {
		Total int
		Wins  int
	}
	err := p.db.WithContext(ctx).
		Model(&models.MatchPlayer{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN winner THEN 1 ELSE 0 END), 0) AS wins").
		Where("name = ?", name).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Total == 0 {
		return nil, ErrRecordNotFound
	}
	return &models.PlayerStats{
		Name:       name,
		TotalGames: row.Total,
		Wins:       row.Wins,
		Losses:     row.Total - row.Wins,
	}, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dsn(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}
