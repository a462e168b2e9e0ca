package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/consistency"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/logging"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/repositories"
)

// CheckpointStore is the subset of the checkpoint repository the service needs.
type CheckpointStore interface {
	Get(ctx context.Context, jobID uuid.UUID, table string) (*repositories.Checkpoint, error)
	Save(ctx context.Context, cp *repositories.Checkpoint) error
}

// TableSpec names a table to verify. An empty UniqueKey means the table's
// single-column primary key on the source side.
type TableSpec struct {
	Name      string
	UniqueKey string
}

// VerificationJob compares Tables between Source and Target.
type VerificationJob struct {
	// ID identifies persisted checkpoints; uuid.Nil starts a new job.
	ID     uuid.UUID
	Source *datasource.DataSource
	Target *datasource.DataSource
	Tables []TableSpec
	// Resume continues each table from its persisted checkpoint.
	Resume bool
}

// TableReport is the outcome for one table.
type TableReport struct {
	Table        string `yaml:"table" json:"table"`
	UniqueKey    string `yaml:"unique_key" json:"unique_key"`
	Matched      bool   `yaml:"matched" json:"matched"`
	Resumed      bool   `yaml:"resumed,omitempty" json:"resumed,omitempty"`
	ChunkCount   int    `yaml:"chunk_count" json:"chunk_count"`
	RecordsCount int64  `yaml:"records_count" json:"records_count"`
	Mismatch     string `yaml:"mismatch,omitempty" json:"mismatch,omitempty"`
	Error        string `yaml:"error,omitempty" json:"error,omitempty"`
}

// VerificationReport is the outcome of a job, with tables in job order.
type VerificationReport struct {
	JobID      uuid.UUID     `yaml:"job_id" json:"job_id"`
	Matched    bool          `yaml:"matched" json:"matched"`
	Tables     []TableReport `yaml:"tables" json:"tables"`
	StartedAt  time.Time     `yaml:"started_at" json:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at" json:"finished_at"`
}

// VerificationService runs table consistency checks for a job.
type VerificationService interface {
	// Run checks every table, at most parallelism at a time. A failing table
	// is reported and does not stop the others; the returned error is only
	// for job-level failures such as cancellation.
	Run(ctx context.Context, job VerificationJob) (*VerificationReport, error)
}

type verificationService struct {
	dialects    datasource.DialectFactory
	checker     *consistency.TableChecker
	checkpoints CheckpointStore
	parallelism int
	logger      *zap.Logger
}

// NewVerificationService creates the service. checkpoints may be nil, in
// which case progress is not persisted and jobs cannot resume.
func NewVerificationService(
	dialects datasource.DialectFactory,
	checker *consistency.TableChecker,
	checkpoints CheckpointStore,
	parallelism int,
	logger *zap.Logger,
) VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	if dialects == nil {
		dialects = datasource.NewDialectFactory(logger)
	}
	return &verificationService{
		dialects:    dialects,
		checker:     checker,
		checkpoints: checkpoints,
		parallelism: parallelism,
		logger:      logger.Named("verification"),
	}
}

func (s *verificationService) Run(ctx context.Context, job VerificationJob) (*VerificationReport, error) {
	if job.Source == nil || job.Target == nil {
		return nil, fmt.Errorf("%w: verification needs a source and a target", apperrors.ErrInvalidConfig)
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	report := &VerificationReport{
		JobID:     job.ID,
		Tables:    make([]TableReport, len(job.Tables)),
		StartedAt: time.Now(),
	}
	logger := s.logger.With(zap.Stringer("job_id", job.ID))
	logger.Info("verification started",
		zap.String("source", job.Source.Name),
		zap.String("target", job.Target.Name),
		zap.Int("tables", len(job.Tables)),
	)

	keys, keyErrs := s.resolveUniqueKeys(ctx, job)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, tbl := range job.Tables {
		report.Tables[i] = TableReport{Table: tbl.Name, UniqueKey: keys[tbl.Name]}
		if err := keyErrs[tbl.Name]; err != nil {
			report.Tables[i].Error = err.Error()
			continue
		}
		g.Go(func() error {
			report.Tables[i] = s.checkTable(gctx, logger, job, tbl.Name, keys[tbl.Name])
			return gctx.Err()
		})
	}
	err := g.Wait()
	report.FinishedAt = time.Now()

	report.Matched = true
	for _, t := range report.Tables {
		if !t.Matched {
			report.Matched = false
		}
	}
	logger.Info("verification finished",
		zap.Bool("matched", report.Matched),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	if err != nil {
		return report, err
	}
	return report, ctx.Err()
}

func (s *verificationService) checkTable(ctx context.Context, logger *zap.Logger, job VerificationJob, table, uniqueKey string) TableReport {
	tr := TableReport{Table: table, UniqueKey: uniqueKey}

	var checkpoint any
	chunkBase, recordsBase := 0, int64(0)
	if job.Resume && s.checkpoints != nil {
		cp, err := s.checkpoints.Get(ctx, job.ID, table)
		switch {
		case err == nil:
			checkpoint, chunkBase, recordsBase, tr.Resumed = cp.MaxKey, cp.ChunkCount, cp.RecordsCount, true
		case !errors.Is(err, apperrors.ErrNotFound):
			tr.Error = err.Error()
			return tr
		}
	}

	check := consistency.TableCheck{
		Table:      table,
		UniqueKey:  uniqueKey,
		Source:     consistency.Side{DatabaseType: job.Source.Type, DataSource: job.Source},
		Target:     consistency.Side{DatabaseType: job.Target.Type, DataSource: job.Target},
		Checkpoint: checkpoint,
	}
	if s.checkpoints != nil {
		chunks, records := chunkBase, recordsBase
		check.OnChunk = func(ctx context.Context, key any, chunkRecords int) error {
			chunks++
			records += int64(chunkRecords)
			return s.checkpoints.Save(ctx, &repositories.Checkpoint{
				JobID:        job.ID,
				TableName:    table,
				MaxKey:       key,
				ChunkCount:   chunks,
				RecordsCount: records,
			})
		}
	}

	result, err := s.checker.Check(ctx, check)
	if result != nil {
		tr.Matched = result.Matched
		tr.ChunkCount = chunkBase + result.ChunkCount
		tr.RecordsCount = recordsBase + int64(result.RecordsCount)
		if result.Mismatch != nil {
			tr.Mismatch = result.Mismatch.String()
		}
	}
	if err != nil {
		tr.Matched = false
		tr.Error = err.Error()
		logger.Error("table check failed",
			zap.String("table", table),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
	return tr
}

// resolveUniqueKeys fills in primary keys for tables without a configured
// key, loading the source schema once for all of them.
func (s *verificationService) resolveUniqueKeys(ctx context.Context, job VerificationJob) (map[string]string, map[string]error) {
	keys := make(map[string]string, len(job.Tables))
	errs := make(map[string]error)

	var missing []string
	for _, tbl := range job.Tables {
		if tbl.UniqueKey != "" {
			keys[tbl.Name] = tbl.UniqueKey
			continue
		}
		missing = append(missing, tbl.Name)
	}
	if len(missing) == 0 {
		return keys, errs
	}

	schemas, err := s.loadSourceSchemas(ctx, job.Source, missing)
	if err != nil {
		for _, name := range missing {
			errs[name] = fmt.Errorf("load source schema: %w", err)
		}
		return keys, errs
	}

	for _, name := range missing {
		table := findTable(schemas, name)
		if table == nil {
			errs[name] = fmt.Errorf("table %s: %w", name, apperrors.ErrNotFound)
			continue
		}
		pk := table.PrimaryKeyColumns()
		if len(pk) != 1 {
			errs[name] = fmt.Errorf("table %s has %d primary key columns; configure unique_key", name, len(pk))
			continue
		}
		keys[name] = pk[0]
	}
	return keys, errs
}

func (s *verificationService) loadSourceSchemas(ctx context.Context, source *datasource.DataSource, tables []string) ([]*models.SchemaMetaData, error) {
	dialect, err := s.dialects.Dialect(source.Type)
	if err != nil {
		return nil, err
	}
	filter := make([]string, len(tables))
	for i, name := range tables {
		filter[i] = bareTableName(name)
	}
	return dialect.SchemaLoader.Load(ctx, source, filter, source.Name)
}

func findTable(schemas []*models.SchemaMetaData, name string) *models.TableMetaData {
	schemaName, tableName, qualified := strings.Cut(name, ".")
	if !qualified {
		tableName = name
	}
	for _, schema := range schemas {
		if qualified && schema.Name != schemaName {
			continue
		}
		if t := schema.Table(tableName); t != nil {
			return t
		}
	}
	return nil
}

func bareTableName(name string) string {
	if _, table, ok := strings.Cut(name, "."); ok {
		return table
	}
	return name
}
