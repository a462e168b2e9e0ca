package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource/all"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/config"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/consistency"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/database"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/discovery"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/handlers"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/logging"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/metrics"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/repositories"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/retry"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", config.DefaultConfigPath, "Path to the YAML configuration file")
	modeFlag := flag.String("mode", "verify", "What to run: schema, verify or heartbeat")
	outputFlag := flag.String("output", "yaml", "Output format for schema and verify results (yaml)")
	dataSourceFlag := flag.String("data-source", "", "Data source to introspect in schema mode (default: all)")
	tablesFlag := flag.StringSlice("tables", nil, "Restrict schema mode to these tables")
	defaultSchemaFlag := flag.String("default-schema", "logic_db", "Schema name reported by single-schema dialects")
	noCheckpointsFlag := flag.Bool("no-checkpoints", false, "Verify without the engine database; progress is not persisted")
	migrationsFlag := flag.String("migrations", database.DefaultMigrationsPath, "Engine database migrations directory")
	flag.Parse()

	if *outputFlag != "yaml" {
		return fmt.Errorf("unsupported --output %q", *outputFlag)
	}

	cfg, err := config.Load(*configFlag, Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LoggerOptions())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.BuildInfo.WithLabelValues(cfg.Version).Set(1)

	types := make([]models.DatabaseType, 0, len(cfg.DataSources))
	for _, ds := range cfg.DataSources {
		t, _ := ds.DatabaseType()
		types = append(types, t)
	}
	if err := datasource.EnsureRegistered(types...); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connManager := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:   cfg.Datasource.ConnectionTTLMinutes,
		PoolMaxConns: cfg.Datasource.PoolMaxConns,
		PoolMinConns: cfg.Datasource.PoolMinConns,
	}, logger)
	defer connManager.Close()

	dialects := datasource.NewDialectFactory(logger)

	logger.Info("starting ekaya-pipeline",
		zap.String("version", cfg.Version),
		zap.String("mode", *modeFlag),
		zap.Int("data_sources", len(cfg.DataSources)),
	)

	switch *modeFlag {
	case "schema":
		return runSchema(ctx, os.Stdout, cfg, connManager, dialects, *dataSourceFlag, *tablesFlag, *defaultSchemaFlag)
	case "verify":
		srv := startMetricsServer(cfg, handlers.NewHealthHandler(cfg, connManager, nil, logger), logger)
		defer shutdown(srv, logger)
		return runVerify(ctx, os.Stdout, cfg, connManager, dialects, !*noCheckpointsFlag, *migrationsFlag, logger)
	case "heartbeat":
		return runHeartbeat(ctx, cfg, connManager, dialects, logger)
	default:
		return fmt.Errorf("unknown --mode %q", *modeFlag)
	}
}

func runSchema(ctx context.Context, out io.Writer, cfg *config.Config, connManager *datasource.ConnectionManager, dialects datasource.DialectFactory, only string, tables []string, defaultSchema string) error {
	result := make(map[string][]*models.SchemaMetaData)
	for _, dsCfg := range cfg.DataSources {
		if only != "" && dsCfg.Name != only {
			continue
		}
		ds, err := connManager.GetOrCreate(ctx, dsCfg)
		if err != nil {
			return err
		}
		dialect, err := dialects.Dialect(ds.Type)
		if err != nil {
			return err
		}
		schemas, err := dialect.SchemaLoader.Load(ctx, ds, tables, defaultSchema)
		if err != nil {
			return fmt.Errorf("load schema of %s: %w", ds.Name, err)
		}
		result[ds.Name] = schemas
	}
	if only != "" && len(result) == 0 {
		return fmt.Errorf("data source %q: %w", only, errNotConfigured)
	}
	return writeYAML(out, result)
}

var errNotConfigured = errors.New("not configured")

func runVerify(ctx context.Context, out io.Writer, cfg *config.Config, connManager *datasource.ConnectionManager, dialects datasource.DialectFactory, persist bool, migrationsPath string, logger *zap.Logger) error {
	v := cfg.Verification
	if v.Source == "" || v.Target == "" {
		return fmt.Errorf("verification.source and verification.target are required: %w", errNotConfigured)
	}

	source, err := openNamed(ctx, cfg, connManager, v.Source)
	if err != nil {
		return err
	}
	target, err := openNamed(ctx, cfg, connManager, v.Target)
	if err != nil {
		return err
	}

	var store services.CheckpointStore
	if persist {
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		sqlDB := db.SQL()
		err = database.RunMigrations(sqlDB, migrationsPath, logger)
		_ = sqlDB.Close()
		if err != nil {
			return err
		}
		store = repositories.NewCheckpointRepository(db)
	}

	job := services.VerificationJob{Source: source, Target: target, Resume: v.Resume}
	if v.JobID != "" {
		if job.ID, err = uuid.Parse(v.JobID); err != nil {
			return fmt.Errorf("verification.job_id: %w", err)
		}
	}
	for _, tbl := range v.Tables {
		job.Tables = append(job.Tables, services.TableSpec{Name: tbl.Name, UniqueKey: tbl.UniqueKey})
	}

	calc := consistency.NewDataMatchCalculator(consistency.Config{ChunkSize: cfg.Pipeline.ChunkSize}, dialects, logger)
	svc := services.NewVerificationService(dialects, consistency.NewTableChecker(calc, retry.DefaultConfig(), logger), store, cfg.Pipeline.Parallelism, logger)

	report, runErr := svc.Run(ctx, job)
	if report != nil {
		if err := writeYAML(out, report); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if !report.Matched {
		return errors.New("verification found inconsistent tables")
	}
	return nil
}

func runHeartbeat(ctx context.Context, cfg *config.Config, connManager *datasource.ConnectionManager, dialects datasource.DialectFactory, logger *zap.Logger) error {
	if len(cfg.Discovery.Groups) == 0 {
		return fmt.Errorf("discovery.groups: %w", errNotConfigured)
	}

	sinks := discovery.MultiSink{discovery.NewLogSink(logger.Named("events"))}
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sinks = append(sinks, discovery.NewRedisSink(redisClient, cfg.Redis.Channel))
	}

	discoverers := make(map[string]*discovery.Discoverer, len(cfg.Discovery.Groups))
	jobs := make([]*discovery.HeartbeatJob, 0, len(cfg.Discovery.Groups))
	for _, group := range cfg.Discovery.Groups {
		members := make(map[string]*datasource.DataSource, len(group.DataSources))
		var groupType models.DatabaseType
		for _, name := range group.DataSources {
			ds, err := openNamed(ctx, cfg, connManager, name)
			if err != nil {
				return err
			}
			if groupType != "" && ds.Type != groupType {
				return fmt.Errorf("discovery group %q mixes %s and %s", group.Name, groupType, ds.Type)
			}
			groupType = ds.Type
			members[name] = ds
		}
		dialect, err := dialects.Dialect(groupType)
		if err != nil {
			return fmt.Errorf("discovery group %q: %w", group.Name, err)
		}

		d := discovery.NewDiscoverer(dialect.ReplicationProbe, discovery.Config{
			DelayMillisecondsThreshold: cfg.Discovery.DelayMillisecondsThreshold,
		}, sinks, nil, logger.With(zap.String("group", group.Name)))
		discoverers[group.Name] = d
		jobs = append(jobs, discovery.NewHeartbeatJob(d, members, discovery.HeartbeatConfig{
			DatabaseName:            cfg.Discovery.DatabaseName,
			GroupName:               group.Name,
			Interval:                cfg.Discovery.HeartbeatInterval,
			DisabledDataSourceNames: group.DisabledDataSources,
		}, nil, logger))
	}

	srv := startMetricsServer(cfg, handlers.NewHealthHandler(cfg, connManager, discoverers, logger), logger)
	defer shutdown(srv, logger)

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error { return job.Run(gctx) })
	}
	return g.Wait()
}

func openNamed(ctx context.Context, cfg *config.Config, connManager *datasource.ConnectionManager, name string) (*datasource.DataSource, error) {
	dsCfg, ok := cfg.DataSource(name)
	if !ok {
		return nil, fmt.Errorf("data source %q: %w", name, errNotConfigured)
	}
	return connManager.GetOrCreate(ctx, dsCfg)
}

func startMetricsServer(cfg *config.Config, health *handlers.HealthHandler, logger *zap.Logger) *http.Server {
	if strings.TrimSpace(cfg.MetricsAddr) == "" {
		return nil
	}
	mux := http.NewServeMux()
	health.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func shutdown(srv *http.Server, logger *zap.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
