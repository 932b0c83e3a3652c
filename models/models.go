// models/models.go
package models

import (
	"time"
)

// MatchRecord 一局已结束比赛的归档
type MatchRecord struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	RoomID     string        `gorm:"index;not null" json:"room_id"`
	Mode       string        `gorm:"not null" json:"mode"`
	Circles    int           `gorm:"not null" json:"circles"`
	WinnerID   string        `gorm:"not null" json:"winner_id"`
	WinnerName string        `gorm:"index;not null" json:"winner_name"`
	Rolls      int           `gorm:"default:0" json:"rolls"`
	GiftStacks int           `gorm:"default:0" json:"gift_stacks"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `gorm:"index" json:"finished_at"`
	Players    []MatchPlayer `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"players"`
}

// MatchPlayer 比赛中一名玩家的最终位置
type MatchPlayer struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	MatchID  uint   `gorm:"index;not null" json:"-"`
	PlayerID string `gorm:"not null" json:"player_id"`
	Name     string `gorm:"index;not null" json:"name"`
	Position int    `gorm:"not null" json:"position"`
	Winner   bool   `gorm:"default:false" json:"winner"`
}

// PlayerStats 玩家统计信息（按名字聚合，玩家ID只在一次连接内有效）
type PlayerStats struct {
	Name       string `json:"name"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
}

// Duration 比赛时长
func (m *MatchRecord) Duration() time.Duration {
	if m.StartedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}
