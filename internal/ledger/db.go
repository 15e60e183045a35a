package ledger

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/ucp-transcoder/pkg/telemetry"
)

// OpenDB opens the embedded-SQLite run ledger at path, enabling OpenTelemetry
// tracing on the connection when OTEL_ENABLED=true.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger %s: %w", path, err)
	}

	if telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to enable ledger telemetry: %w", err)
		}
	}

	return db, nil
}
