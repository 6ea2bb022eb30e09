package scheduler

import (
	"context"
	"fmt"

	appdues "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MonthlyGenerator is the bulk operation a job runs
type MonthlyGenerator interface {
	GenerateMonthlyDues(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req appdues.GenerateMonthlyDuesRequest) (*appdues.BulkResult, error)
}

// MonthlyDuesExecutor runs monthly generation as the system actor. Rows
// that failed make the job fail so it is retried; generation skips owners
// already billed, so a retry only touches the remainder.
type MonthlyDuesExecutor struct {
	generator MonthlyGenerator
	logger    *zap.Logger
}

// NewMonthlyDuesExecutor creates a new MonthlyDuesExecutor
func NewMonthlyDuesExecutor(generator MonthlyGenerator, logger *zap.Logger) *MonthlyDuesExecutor {
	return &MonthlyDuesExecutor{generator: generator, logger: logger}
}

// Execute implements JobExecutor
func (e *MonthlyDuesExecutor) Execute(ctx context.Context, job *Job) error {
	result, err := e.generator.GenerateMonthlyDues(ctx, job.TenantID, dues.SystemActor(), appdues.GenerateMonthlyDuesRequest{
		Period: job.Period,
	})
	if err != nil {
		return err
	}

	e.logger.Info("monthly dues generated",
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("period", job.Period.String()),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	if result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d owners", ErrPartialGeneration, result.Failed, result.Created+result.Failed)
	}
	return nil
}

var _ JobExecutor = (*MonthlyDuesExecutor)(nil)
