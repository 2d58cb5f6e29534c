package store

import (
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StrategyRecord is the persisted form of a deployed strategy.
type StrategyRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:128"`
	Type      string `gorm:"size:32"`
	Status    string `gorm:"size:16;index"`
	Config    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StrategyRecord) TableName() string { return "strategies" }

// PositionLink is one persisted position-to-strategy edge.
type PositionLink struct {
	PositionID string `gorm:"primaryKey;size:64"`
	StrategyID string `gorm:"primaryKey;size:36"`
	CreatedAt  time.Time
}

func (PositionLink) TableName() string { return "position_links" }

// Repository reads and writes strategy and position-link rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository migrates the schema and returns a repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&StrategyRecord{}, &PositionLink{}); err != nil {
		return nil, errors.Wrap(err, "migrate store schema")
	}
	return &Repository{db: db}, nil
}

// SaveStrategy upserts a strategy row.
func (r *Repository) SaveStrategy(rec StrategyRecord) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	return errors.Wrap(err, "save strategy")
}

// SaveStatus updates only the lifecycle status column. Satisfies the
// engine's StatusStore.
func (r *Repository) SaveStatus(id, status string) error {
	err := r.db.Model(&StrategyRecord{}).
		Where("id = ?", id).
		Update("status", status).Error
	return errors.Wrap(err, "save strategy status")
}

// ListByStatus returns strategy rows in any of the given statuses.
func (r *Repository) ListByStatus(statuses ...string) ([]StrategyRecord, error) {
	var out []StrategyRecord
	err := r.db.Where("status IN ?", statuses).Find(&out).Error
	return out, errors.Wrap(err, "list strategies by status")
}

// SavePositionLink upserts one link edge.
func (r *Repository) SavePositionLink(positionID, strategyID string) error {
	link := PositionLink{PositionID: positionID, StrategyID: strategyID}
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	return errors.Wrap(err, "save position link")
}

// DeletePositionLink removes one link edge.
func (r *Repository) DeletePositionLink(positionID, strategyID string) error {
	err := r.db.
		Where("position_id = ? AND strategy_id = ?", positionID, strategyID).
		Delete(&PositionLink{}).Error
	return errors.Wrap(err, "delete position link")
}

// ListPositionLinks returns every persisted link, for index rebuild.
func (r *Repository) ListPositionLinks() ([]PositionLink, error) {
	var out []PositionLink
	err := r.db.Find(&out).Error
	return out, errors.Wrap(err, "list position links")
}
