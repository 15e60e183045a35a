package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ucp-transcoder/pkg/utils"
)

// GormLedger implements Ledger on top of an embedded SQLite database opened
// via gorm.io/driver/sqlite.
type GormLedger struct {
	db    *gorm.DB
	clock utils.Clock
}

// NewGormLedger creates a GormLedger, auto-migrating the conversion_runs
// table if it does not already exist.
func NewGormLedger(db *gorm.DB, clock utils.Clock) (*GormLedger, error) {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	if err := db.AutoMigrate(&ConversionRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate conversion_runs: %w", err)
	}
	return &GormLedger{db: db, clock: clock}, nil
}

// StartRun inserts a new run row in RunStatusStarted and returns its UUID.
func (l *GormLedger) StartRun(ctx context.Context, inputFolder, outputFolder string, extractWorkers, mergeWorkers int) (string, error) {
	run := &ConversionRun{
		RunUUID:        uuid.NewString(),
		InputFolder:    inputFolder,
		OutputFolder:   outputFolder,
		ExtractWorkers: extractWorkers,
		MergeWorkers:   mergeWorkers,
		Status:         RunStatusStarted,
		StartTime:      l.clock.Now(),
	}

	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}

	return run.RunUUID, nil
}

// RecordTopology updates a run with the topology C1 detected.
func (l *GormLedger) RecordTopology(ctx context.Context, runUUID string, topo Topology) error {
	result := l.db.WithContext(ctx).
		Model(&ConversionRun{}).
		Where("run_uuid = ?", runUUID).
		Updates(map[string]interface{}{
			"pipeline_degree": topo.PipelineDegree,
			"tensor_degree":   topo.TensorDegree,
			"data_degree":     topo.DataDegree,
			"status":          RunStatusIndexed,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to record topology: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found: %s", runUUID)
	}

	return nil
}

// AdvancePhase moves a run to a new non-terminal status.
func (l *GormLedger) AdvancePhase(ctx context.Context, runUUID string, status RunStatus) error {
	result := l.db.WithContext(ctx).
		Model(&ConversionRun{}).
		Where("run_uuid = ?", runUUID).
		Update("status", status)

	if result.Error != nil {
		return fmt.Errorf("failed to advance run phase: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found: %s", runUUID)
	}

	return nil
}

// CompleteRun marks a run as completed with an end time.
func (l *GormLedger) CompleteRun(ctx context.Context, runUUID string) error {
	now := l.clock.Now()
	result := l.db.WithContext(ctx).
		Model(&ConversionRun{}).
		Where("run_uuid = ?", runUUID).
		Updates(map[string]interface{}{
			"status":   RunStatusCompleted,
			"end_time": &now,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to complete run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found: %s", runUUID)
	}

	return nil
}

// FailRun marks a run as failed, recording the cause.
func (l *GormLedger) FailRun(ctx context.Context, runUUID string, cause error) error {
	now := l.clock.Now()
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	result := l.db.WithContext(ctx).
		Model(&ConversionRun{}).
		Where("run_uuid = ?", runUUID).
		Updates(map[string]interface{}{
			"status":          RunStatusFailed,
			"failure_message": message,
			"end_time":        &now,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to fail run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found: %s", runUUID)
	}

	return nil
}

// GetRun fetches a single run by UUID.
func (l *GormLedger) GetRun(ctx context.Context, runUUID string) (*ConversionRun, error) {
	var run ConversionRun

	err := l.db.WithContext(ctx).Where("run_uuid = ?", runUUID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run not found: %s", runUUID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (l *GormLedger) ListRuns(ctx context.Context, limit int) ([]*ConversionRun, error) {
	if limit <= 0 {
		limit = 50
	}

	var runs []*ConversionRun
	err := l.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}
