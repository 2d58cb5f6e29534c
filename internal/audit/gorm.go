package audit

import (
	"time"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// Record is the persisted form of an audit entry.
type Record struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Source    string `gorm:"size:64;index"`
	SourceID  string `gorm:"size:64;index"`
	Kind      string `gorm:"size:64"`
	Outcome   string `gorm:"size:64"`
	Reasoning string
	Context   string
	Severity  string `gorm:"size:16"`
	At        time.Time
}

func (Record) TableName() string { return "decision_audits" }

// GormRecorder writes audit entries to the database. Failures are
// logged and swallowed so a dead audit store never blocks trading.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder migrates the audit table and returns a recorder.
func NewGormRecorder(db *gorm.DB) (*GormRecorder, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &GormRecorder{db: db}, nil
}

func (r *GormRecorder) Record(e Entry) {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	rec := Record{
		Source:    e.Source,
		SourceID:  e.SourceID,
		Kind:      e.Kind,
		Outcome:   e.Outcome,
		Reasoning: e.Reasoning,
		Context:   e.Context,
		Severity:  e.Severity.String(),
		At:        at,
	}
	if err := r.db.Create(&rec).Error; err != nil {
		logs.Errorf("record audit entry %s/%s, err: %+v", e.Source, e.Kind, err)
	}
}
