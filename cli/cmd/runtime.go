package cmd

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/michalshavit1/salto/config"
	"github.com/michalshavit1/salto/deploy"
	"github.com/michalshavit1/salto/fetch"
	"github.com/michalshavit1/salto/metrics"
	"github.com/michalshavit1/salto/orchestrator"
	"github.com/michalshavit1/salto/resolve"
	"github.com/michalshavit1/salto/schema"
	"github.com/michalshavit1/salto/service"
)

// runtime carries the wired pipeline for one command invocation.
type runtime struct {
	cfg          *config.Config
	log          logr.Logger
	registry     *schema.Registry
	client       *service.HTTPClient
	mapper       *deploy.Mapper
	fetchMapper  *fetch.Mapper
	orchestrator *orchestrator.Orchestrator
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetCount("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Verbosity > verbose {
		verbose = cfg.Verbosity
	}
	log := newLogger(verbose)

	schemaPath, err := config.ExpandHome(cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	registry, err := schema.LoadFile(schemaPath)
	if err != nil {
		return nil, err
	}

	client, err := service.NewHTTPClient(cfg.Service, log)
	if err != nil {
		return nil, err
	}

	typeAnnotations := make([]resolve.TypeAnnotation, 0, len(cfg.Resolve.TypeAnnotations))
	for _, ta := range cfg.Resolve.TypeAnnotations {
		typeAnnotations = append(typeAnnotations, resolve.TypeAnnotation{Name: ta.Name, Kind: ta.Kind})
	}
	fieldAnnotations := make([]resolve.FieldAnnotation, 0, len(cfg.Resolve.FieldAnnotations))
	for _, fa := range cfg.Resolve.FieldAnnotations {
		fieldAnnotations = append(fieldAnnotations, resolve.FieldAnnotation{Name: fa.Name, TargetKind: fa.TargetKind})
	}
	resolver := resolve.NewResolver(cfg.Adapter, typeAnnotations, fieldAnnotations,
		cfg.Resolve.GenericKind, registry.IsConfigurationObject, log)

	m := metrics.New(nil)
	mapper := deploy.NewMapper(registry, resolver, client, log)
	order := deploy.NewOrderDeployer(registry, client, log)
	coordinator := deploy.NewCoordinator(registry, mapper, order, cfg.Deploy.Concurrency, m, log)

	return &runtime{
		cfg:         cfg,
		log:         log,
		registry:    registry,
		client:      client,
		mapper:      mapper,
		fetchMapper: fetch.NewMapper(registry, cfg.Adapter, log),
		orchestrator: orchestrator.New(orchestrator.Options{
			Adapter:     cfg.Adapter,
			Registry:    registry,
			Client:      client,
			Resolver:    resolver,
			Coordinator: coordinator,
			Metrics:     m,
			Log:         log,
		}),
	}, nil
}

func (r *runtime) Close() {
	if r != nil && r.client != nil {
		r.client.Close()
	}
}

func newLogger(verbosity int) logr.Logger {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Encoding = "console"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbosity > 0 {
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	}
	logger, err := zapConfig.Build()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(logger)
}
