package telemetry

import (
	"context"

	"shiftledger/internal/telemetry/domain"
)

// EventEmitter emits shift events (e.g. to OTel Logs or Kafka). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.ShiftEvent) error
}
