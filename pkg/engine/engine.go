// Package engine coordinates one analysis run: sanitizer placement and the
// six STRIDE classification workers run concurrently over a shared,
// read-only graph, and the risk index is computed once all of them finish.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dubhe-dev/dubhe/pkg/analysis/corruption"
	"github.com/dubhe-dev/dubhe/pkg/analysis/matching"
	"github.com/dubhe-dev/dubhe/pkg/analysis/paths"
	"github.com/dubhe-dev/dubhe/pkg/analysis/rules"
	"github.com/dubhe-dev/dubhe/pkg/analysis/threat"
	"github.com/dubhe-dev/dubhe/pkg/config"
	"github.com/dubhe-dev/dubhe/pkg/diagram"
	"github.com/dubhe-dev/dubhe/pkg/graph"
	"github.com/dubhe-dev/dubhe/pkg/models"
	"github.com/dubhe-dev/dubhe/pkg/observability"
	"github.com/dubhe-dev/dubhe/pkg/patterns"
	"github.com/dubhe-dev/dubhe/pkg/version"
)

const instrumentationName = "github.com/dubhe-dev/dubhe/pkg/engine"

// Engine runs analyses. It is safe for concurrent use; every call to Analyze
// builds its own per-run state.
type Engine struct {
	config *config.Config
	logger *zap.Logger

	scorer          matching.Scorer
	store           patterns.Source
	classifications []models.Classification
	policy          *rules.RiskPolicy
	reader          *diagram.Reader

	tracer   trace.Tracer
	meter    metric.Meter
	counters *counters
}

// New creates an engine. A nil cfg uses the embedded defaults.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.DefaultConfig(); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		config:          cfg,
		logger:          zap.NewNop(),
		classifications: models.Classifications(),
		tracer:          tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:           metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.scorer == nil {
		e.scorer = matching.NewLexicalScorer()
	}
	if e.store == nil {
		store, err := defaultStore(cfg.Patterns, e.logger)
		if err != nil {
			return nil, err
		}
		e.store = store
	}

	policy, err := rules.NewRiskPolicy(cfg.Risk.Policy)
	if err != nil {
		return nil, fmt.Errorf("failed to compile risk policy: %w", err)
	}
	e.policy = policy

	if e.counters, err = newCounters(e.meter); err != nil {
		return nil, err
	}
	e.reader = diagram.NewReader(e.logger)
	return e, nil
}

func defaultStore(cfg config.PatternsConfig, logger *zap.Logger) (*patterns.Store, error) {
	if cfg.Dir == "" {
		return patterns.NewDefaultStore(logger, cfg.MinVersion), nil
	}
	return patterns.NewDirStore(cfg.Dir, logger, cfg.MinVersion)
}

// AnalyzeFile reads the diagram at path and analyzes it.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) (*models.Report, error) {
	g, err := e.reader.Load(path)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, g, path)
}

// AnalyzeReader reads a diagram in the given format from r and analyzes it.
func (e *Engine) AnalyzeReader(ctx context.Context, r io.Reader, format diagram.Format) (*models.Report, error) {
	g, err := e.reader.Read(r, format)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, g, "")
}

// Analyze runs placement and threat analysis over g. Any worker failure
// fails the whole run; no partial report is returned.
func (e *Engine) Analyze(ctx context.Context, g *graph.Graph) (*models.Report, error) {
	return e.run(ctx, g, "")
}

func (e *Engine) run(ctx context.Context, g *graph.Graph, source string) (*models.Report, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()
	logger := e.logger.With(zap.String("run_id", runID))
	inst := observability.NewInstrumentation(logger, e.tracer)
	tracker := inst.NewPhaseTracker("analyze")

	ctx, span := e.tracer.Start(ctx, "dubhe.analyze", trace.WithAttributes(
		attribute.String("dubhe.run_id", runID),
		attribute.Int("dubhe.elements", g.Len()),
	))
	defer span.End()

	logger.Info("Starting analysis",
		zap.String("source", source),
		zap.Int("elements", g.Len()),
		zap.Int("dropped_edges", g.DroppedEdges()),
		zap.Int("classifications", len(e.classifications)))

	opts := paths.Options{MaxPaths: e.config.Analysis.MaxPaths}
	classifier := threat.NewClassifier(g, matching.NewMatcher(e.scorer), logger, opts)
	aggregate := threat.NewAggregate()
	analyzer := corruption.NewAnalyzer(logger, &corruption.Config{MaxPaths: opts.MaxPaths})

	var propagation *corruption.Result
	var loaded atomic.Int64

	tracker.StartPhase("workers")
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return inst.TimedOperation(egCtx, "dubhe.propagation", func(ctx context.Context) error {
			res, err := analyzer.Analyze(ctx, g)
			if err != nil {
				return fmt.Errorf("failed to analyze propagation: %w", err)
			}
			propagation = res
			return nil
		})
	})
	for _, class := range e.classifications {
		eg.Go(func() error {
			return inst.TimedOperation(egCtx, "dubhe.classify", func(ctx context.Context) error {
				n, err := e.classify(ctx, classifier, aggregate, class)
				loaded.Add(int64(n))
				return err
			}, attribute.String("dubhe.classification", class.String()))
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	tracker.StartPhase("scoring")
	index := aggregate.Index()
	if err := e.policy.Apply(index); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	unmitigated, potential, confirmed := aggregate.Detections()

	report := &models.Report{
		RunInfo: models.RunInfo{
			RunID:           runID,
			ToolVersion:     version.GetVersion(),
			Source:          source,
			StartedAt:       started,
			ElementCount:    g.Len(),
			DroppedEdges:    g.DroppedEdges(),
			PatternsLoaded:  int(loaded.Load()),
			Classifications: classNames(e.classifications),
		},
		DetectedThreats:             unmitigated,
		PotentiallyMitigatedThreats: potential,
		ConfirmedMitigatedThreats:   confirmed,
		RiskIndex:                   index,
		AlreadyProtected:            propagation.AlreadyProtected,
		ProtectStores:               propagation.ProtectStores,
		ProtectEntry:                propagation.ProtectEntry,
		ProtectWhole:                propagation.ProtectWhole,
		LongestPath:                 propagation.Longest.Refs(),
		AllPaths:                    make([][]models.ElementRef, len(propagation.Paths)),
		CPP:                         propagation.CPP,
	}
	for i, p := range propagation.Paths {
		report.AllPaths[i] = p.Refs()
	}
	if avg, ok := threat.Averages(index); ok {
		report.RiskAverage = &avg
	}
	report.RunInfo.FinishedAt = time.Now().UTC()

	tracker.Complete(len(index))
	span.SetStatus(codes.Ok, "")
	logger.Info("Analysis complete",
		zap.Int("detected", len(unmitigated)),
		zap.Int("potentially_mitigated", len(potential)),
		zap.Int("mitigated", len(confirmed)),
		zap.Int("critical_elements", len(index)),
		zap.Bool("already_protected", report.AlreadyProtected))
	return report, nil
}

// classify is one classification worker. It returns the number of threat
// definitions it loaded.
func (e *Engine) classify(ctx context.Context, classifier *threat.Classifier, aggregate *threat.Aggregate, class models.Classification) (int, error) {
	if timeout := e.config.Analysis.WorkerTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	threats, err := e.store.Load(ctx, class)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s patterns: %w", class, err)
	}

	out, err := classifier.Classify(ctx, class, threats)
	if err != nil {
		return len(threats), fmt.Errorf("failed to classify %s threats: %w", class, err)
	}

	aggregate.Merge(out)
	e.counters.record(ctx, out)
	return len(threats), nil
}

func classNames(classes []models.Classification) []string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.String()
	}
	return names
}
