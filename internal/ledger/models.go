// Package ledger provides an embedded-SQLite record of conversion runs.
package ledger

import (
	"time"
)

// RunStatus is the lifecycle state of a conversion run, mirroring the
// driver's state machine (index load, extraction, merge, metadata copy).
type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusIndexed   RunStatus = "indexed"
	RunStatusExtracted RunStatus = "extracted"
	RunStatusMerged    RunStatus = "merged"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ConversionRun represents the conversion_runs table: one row per invocation
// of the convert command.
type ConversionRun struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID        string     `gorm:"column:run_uuid;type:varchar(64);uniqueIndex"`
	InputFolder    string     `gorm:"column:input_folder;type:varchar(1024)"`
	OutputFolder   string     `gorm:"column:output_folder;type:varchar(1024)"`
	ExtractWorkers int        `gorm:"column:extract_workers"`
	MergeWorkers   int        `gorm:"column:merge_workers"`
	PipelineDegree int        `gorm:"column:pipeline_degree"`
	TensorDegree   int        `gorm:"column:tensor_degree"`
	DataDegree     int        `gorm:"column:data_degree"`
	Status         RunStatus  `gorm:"column:status;type:varchar(32)"`
	FailureMessage string     `gorm:"column:failure_message;type:text"`
	StartTime      time.Time  `gorm:"column:start_time"`
	EndTime        *time.Time `gorm:"column:end_time"`
}

// TableName returns the table name for ConversionRun.
func (ConversionRun) TableName() string {
	return "conversion_runs"
}
