package consistency

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/logging"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/metrics"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/retry"
)

// Side is one of the two data sets being compared.
type Side struct {
	DatabaseType models.DatabaseType
	DataSource   datasource.Connector
}

// TableCheck describes one table comparison. Checkpoint resumes after a
// previously verified unique-key value; nil starts from the beginning.
type TableCheck struct {
	Table      string
	UniqueKey  string
	Source     Side
	Target     Side
	Checkpoint any
	// OnChunk is called after each matching chunk pair with the new checkpoint
	// and the number of records in that chunk.
	OnChunk func(ctx context.Context, checkpoint any, chunkRecords int) error
}

// TableCheckResult summarizes a finished or interrupted table comparison.
type TableCheckResult struct {
	Table        string
	Matched      bool
	ChunkCount   int
	RecordsCount int
	Mismatch     *Mismatch
	Checkpoint   any
}

// TableChecker drives the source and target calculations in lockstep.
// Transient chunk fetch failures are retried per retryCfg.
type TableChecker struct {
	calculator *DataMatchCalculator
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewTableChecker creates a checker. A nil retryCfg means retry.DefaultConfig.
func NewTableChecker(calculator *DataMatchCalculator, retryCfg *retry.Config, logger *zap.Logger) *TableChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &TableChecker{calculator: calculator, retryCfg: retryCfg, logger: logger.Named("checker")}
}

// Check compares the table chunk by chunk until both sides are exhausted or a
// chunk pair differs. Cancellation is honored between chunks; the returned
// result then carries the last verified checkpoint alongside ctx's error.
func (tc *TableChecker) Check(ctx context.Context, check TableCheck) (*TableCheckResult, error) {
	result := &TableCheckResult{Table: check.Table, Checkpoint: check.Checkpoint}
	logger := tc.logger.With(zap.String("table", check.Table), zap.String("unique_key", check.UniqueKey))

	var previous *CalculatedResult
	if check.Checkpoint != nil {
		previous = &CalculatedResult{MaxUniqueKeyValue: check.Checkpoint}
		logger.Info("resuming table check", zap.String("checkpoint", logging.SanitizeValue(check.Checkpoint)))
	}
	sourcePrev, targetPrev := previous, previous

	for {
		if err := ctx.Err(); err != nil {
			metrics.TableCheckTotal.WithLabelValues("interrupted").Inc()
			return result, err
		}

		source, err := tc.fetchChunk(ctx, logger, CalculateParameter{
			LogicTableName: check.Table,
			DatabaseType:   check.Source.DatabaseType,
			UniqueKey:      check.UniqueKey,
			DataSource:     check.Source.DataSource,
			Previous:       sourcePrev,
		})
		if err != nil {
			metrics.TableCheckTotal.WithLabelValues("error").Inc()
			return result, fmt.Errorf("source: %w", err)
		}
		target, err := tc.fetchChunk(ctx, logger, CalculateParameter{
			LogicTableName: check.Table,
			DatabaseType:   check.Target.DatabaseType,
			UniqueKey:      check.UniqueKey,
			DataSource:     check.Target.DataSource,
			Previous:       targetPrev,
		})
		if err != nil {
			metrics.TableCheckTotal.WithLabelValues("error").Inc()
			return result, fmt.Errorf("target: %w", err)
		}

		if source == nil && target == nil {
			result.Matched = true
			metrics.TableCheckTotal.WithLabelValues("matched").Inc()
			logger.Info("table check matched",
				zap.Int("chunks", result.ChunkCount),
				zap.Int("records", result.RecordsCount),
			)
			return result, nil
		}

		if mismatch := source.Diff(target); mismatch != nil {
			result.Mismatch = mismatch
			metrics.TableCheckTotal.WithLabelValues("mismatched").Inc()
			logger.Warn("table check mismatch",
				zap.Int("chunk", result.ChunkCount+1),
				zap.String("mismatch", mismatch.String()),
			)
			return result, nil
		}

		result.ChunkCount++
		result.RecordsCount += source.RecordsCount
		result.Checkpoint = source.MaxUniqueKeyValue
		if check.OnChunk != nil {
			if err := check.OnChunk(ctx, result.Checkpoint, source.RecordsCount); err != nil {
				metrics.TableCheckTotal.WithLabelValues("error").Inc()
				return result, fmt.Errorf("save checkpoint: %w", err)
			}
		}
		sourcePrev, targetPrev = source, target
	}
}

// fetchChunk retries transient failures such as deadlocks or dropped
// connections. Other errors return on the first attempt.
func (tc *TableChecker) fetchChunk(ctx context.Context, logger *zap.Logger, p CalculateParameter) (*CalculatedResult, error) {
	return retry.DoIfRetryable(ctx, tc.retryCfg, func() (*CalculatedResult, error) {
		result, err := tc.calculator.CalculateChunk(ctx, p)
		if err != nil && retry.IsRetryable(err) {
			logger.Warn("transient chunk fetch failure",
				zap.Stringer("database_type", p.DatabaseType),
				zap.String("error", logging.SanitizeError(err)),
			)
		}
		return result, err
	})
}
