package consistency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/logging"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/metrics"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// DefaultChunkSize is used when the configured chunk size is not positive.
const DefaultChunkSize = 1000

// Config is validated once by NewDataMatchCalculator.
type Config struct {
	ChunkSize int
}

// CalculateParameter identifies one chunk request for one side. Previous is
// nil for the first chunk.
type CalculateParameter struct {
	LogicTableName string
	DatabaseType   models.DatabaseType
	UniqueKey      string
	DataSource     datasource.Connector
	Previous       *CalculatedResult
}

// DataMatchCalculator reads a table in unique-key order, one chunk per call.
// It keeps no state between calls; the caller threads Previous through.
type DataMatchCalculator struct {
	chunkSize int
	dialects  datasource.DialectFactory
	logger    *zap.Logger
}

// NewDataMatchCalculator creates a calculator. A non-positive chunk size is
// replaced by DefaultChunkSize with a warning.
func NewDataMatchCalculator(cfg Config, dialects datasource.DialectFactory, logger *zap.Logger) *DataMatchCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("consistency")

	if cfg.ChunkSize <= 0 {
		logger.Warn("invalid chunk size, using default",
			zap.Int("chunk_size", cfg.ChunkSize),
			zap.Int("default", DefaultChunkSize),
		)
		cfg.ChunkSize = DefaultChunkSize
	}
	if dialects == nil {
		dialects = datasource.NewDialectFactory(logger)
	}

	return &DataMatchCalculator{
		chunkSize: cfg.ChunkSize,
		dialects:  dialects,
		logger:    logger,
	}
}

// ChunkSize returns the effective chunk size.
func (c *DataMatchCalculator) ChunkSize() int {
	return c.chunkSize
}

// CalculateChunk fetches the chunk after p.Previous. A nil result with a nil
// error means the table is exhausted. Failures are *apperrors.ConsistencyCheckError.
func (c *DataMatchCalculator) CalculateChunk(ctx context.Context, p CalculateParameter) (*CalculatedResult, error) {
	dbType := p.DatabaseType.String()
	start := time.Now()

	result, err := c.fetchChunk(ctx, p)
	metrics.ChunkFetchDuration.WithLabelValues(dbType).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChunkFetchTotal.WithLabelValues(dbType, "error").Inc()
		c.logger.Error("chunk fetch failed",
			zap.String("table", p.LogicTableName),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, &apperrors.ConsistencyCheckError{Table: p.LogicTableName, Err: err}
	}

	metrics.ChunkFetchTotal.WithLabelValues(dbType, "success").Inc()
	if result != nil {
		metrics.ChunkRecordsTotal.WithLabelValues(dbType).Add(float64(result.RecordsCount))
	}
	return result, nil
}

// Calculate yields every chunk of the table starting after p.Previous. It
// stops after the last chunk, on the first error, or when ctx is done
// between chunks.
func (c *DataMatchCalculator) Calculate(ctx context.Context, p CalculateParameter) iter.Seq2[*CalculatedResult, error] {
	return func(yield func(*CalculatedResult, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			result, err := c.CalculateChunk(ctx, p)
			if err != nil {
				yield(nil, err)
				return
			}
			if result == nil {
				return
			}
			if !yield(result, nil) {
				return
			}
			p.Previous = result
		}
	}
}

func (c *DataMatchCalculator) fetchChunk(ctx context.Context, p CalculateParameter) (*CalculatedResult, error) {
	if p.DataSource == nil {
		return nil, errors.New("no data source")
	}
	if p.UniqueKey == "" {
		return nil, errors.New("no unique key")
	}
	dialect, err := c.dialects.Dialect(p.DatabaseType)
	if err != nil {
		return nil, err
	}

	firstQuery := p.Previous == nil
	query := dialect.SQLBuilder.BuildChunkedQuerySQL(p.LogicTableName, p.UniqueKey, firstQuery)
	args := []any{c.chunkSize}
	if !firstQuery {
		args = []any{p.Previous.MaxUniqueKeyValue, c.chunkSize}
	}

	conn, err := p.DataSource.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	c.logger.Debug("fetching chunk",
		zap.String("table", p.LogicTableName),
		zap.String("query", logging.SanitizeQuery(query)),
		zap.Bool("first", firstQuery),
	)

	scanner := &chunkScanner{uniqueKey: p.UniqueKey}
	if err := datasource.QueryConnRows(ctx, conn, "chunk", query, args, scanner.scan); err != nil {
		return nil, err
	}
	if len(scanner.records) == 0 {
		return nil, nil
	}

	return &CalculatedResult{
		MaxUniqueKeyValue: scanner.maxKey,
		RecordsCount:      len(scanner.records),
		Records:           scanner.records,
		Columns:           scanner.columns,
	}, nil
}

// chunkScanner reads rows of one chunk and tracks the greatest unique key.
// Numeric keys are compared on every row, not just the last one.
type chunkScanner struct {
	uniqueKey string

	columns   []string
	types     []string
	keyIndex  int
	keyIsDec  bool
	records   [][]any
	maxKey    any
	hasMaxKey bool
}

func (s *chunkScanner) init(rows *sql.Rows) error {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	s.columns = make([]string, len(colTypes))
	s.types = make([]string, len(colTypes))
	s.keyIndex = -1
	for i, ct := range colTypes {
		s.columns[i] = ct.Name()
		s.types[i] = ct.DatabaseTypeName()
		if s.keyIndex < 0 && strings.EqualFold(ct.Name(), s.uniqueKey) {
			s.keyIndex = i
		}
	}
	if s.keyIndex < 0 {
		return fmt.Errorf("unique key %q not in result columns", s.uniqueKey)
	}
	s.keyIsDec = isDecimalType(s.types[s.keyIndex])
	return nil
}

func (s *chunkScanner) scan(rows *sql.Rows) error {
	if s.columns == nil {
		if err := s.init(rows); err != nil {
			return err
		}
	}

	values := make([]any, len(s.columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}

	for i, v := range values {
		if v != nil && isLargeObjectType(s.types[i]) {
			values[i] = NewLargeObject(s.types[i], v)
		}
	}
	s.records = append(s.records, values)

	key := s.keyValue(values[s.keyIndex])
	if key == nil {
		return fmt.Errorf("unique key %q is NULL", s.uniqueKey)
	}
	if !s.hasMaxKey || !s.numericKey(key) {
		// Non-numeric keys follow the database collation, which ORDER BY
		// already applied: the last row holds the greatest key.
		s.maxKey, s.hasMaxKey = key, true
		return nil
	}
	cmp, err := compareKeys(key, s.maxKey, s.keyIsDec)
	if err != nil {
		return err
	}
	if cmp > 0 {
		s.maxKey = key
	}
	return nil
}

func (s *chunkScanner) numericKey(key any) bool {
	if s.keyIsDec {
		return true
	}
	if _, ok := toInt64(key); ok {
		return true
	}
	_, ok := toFloat64(key)
	return ok
}

// keyValue normalizes a scanned key for binding into the next chunk query.
// Text keys some drivers return as bytes are bound back as strings.
func (s *chunkScanner) keyValue(v any) any {
	b, ok := v.([]byte)
	if !ok || isBinaryType(s.types[s.keyIndex]) {
		return v
	}
	return string(b)
}
