package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/dubhe-dev/dubhe/pkg/analysis/paths"
	"github.com/dubhe-dev/dubhe/pkg/config"
	"github.com/dubhe-dev/dubhe/pkg/diagram"
	"github.com/dubhe-dev/dubhe/pkg/graph"
	"github.com/dubhe-dev/dubhe/pkg/models"
)

var (
	lit  = models.LiteralToken
	sem  = models.SemanticToken
	skip = models.WildcardToken
)

// staticStore serves fixed threats per classification.
type staticStore map[models.Classification][]models.ThreatInfo

func (s staticStore) Load(ctx context.Context, c models.Classification) ([]models.ThreatInfo, error) {
	return s[c], ctx.Err()
}

type failingStore struct {
	class models.Classification
	err   error
}

func (s failingStore) Load(ctx context.Context, c models.Classification) ([]models.ThreatInfo, error) {
	if c == s.class {
		return nil, s.err
	}
	return nil, nil
}

type blockingStore struct{}

func (blockingStore) Load(ctx context.Context, c models.Classification) ([]models.ThreatInfo, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func orderFlow(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Build(
		[]*models.Element{
			{ID: "i", UMLType: "InitialNode", Name: "Start"},
			{ID: "r", UMLType: "AcceptEventAction", Name: "Receive Input"},
			{ID: "v", UMLType: "OpaqueAction", Name: "Validate Input"},
			{ID: "s", UMLType: "DataStoreNode", Name: "Orders DB"},
		},
		[]graph.Edge{{Source: "i", Target: "r"}, {Source: "r", Target: "v"}, {Source: "v", Target: "s"}},
	)
	require.NoError(t, err)
	return g
}

func tamperingStore() staticStore {
	return staticStore{
		models.Tampering: {
			{
				Technique:          "Stored Data Manipulation",
				TechniqueID:        "T1565.001",
				DetectPattern:      []models.Token{lit("AcceptEventAction"), skip(), lit("DataStoreNode")},
				MitigationPatterns: [][]models.Token{{sem("OpaqueAction", "Validate Input")}},
				MitigationAnchor:   0,
			},
			{
				Technique:          "Adversary-in-the-Middle",
				TechniqueID:        "T1557",
				DetectPattern:      []models.Token{lit("InitialNode"), lit("AcceptEventAction")},
				MitigationPatterns: [][]models.Token{{sem("OpaqueAction", "Encrypt Data")}},
				MitigationAnchor:   models.AnchorAfterPath,
			},
			{
				Technique:          "Data Destruction",
				TechniqueID:        "T1485",
				DetectPattern:      []models.Token{lit("DataStoreNode")},
				MitigationPatterns: [][]models.Token{{lit("DataSanitizer")}},
				MitigationAnchor:   models.AnchorAfterPath,
			},
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.DefaultConfig()
	require.NoError(t, err)
	cfg.Risk.Policy = "hits > 1"
	return cfg
}

func techniqueIDs(ds []models.Detection) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Classification.String()+"/"+d.Threat.TechniqueID)
	}
	sort.Strings(out)
	return out
}

func TestAnalyze(t *testing.T) {
	e, err := New(testConfig(t), WithLogger(zaptest.NewLogger(t)), WithPatternStore(tamperingStore()))
	require.NoError(t, err)

	report, err := e.Analyze(context.Background(), orderFlow(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"tampering/T1485"}, techniqueIDs(report.DetectedThreats))
	assert.Equal(t, []string{"tampering/T1557"}, techniqueIDs(report.PotentiallyMitigatedThreats))
	assert.Equal(t, []string{"tampering/T1565.001"}, techniqueIDs(report.ConfirmedMitigatedThreats))

	require.Len(t, report.RiskIndex, 4)
	byID := make(map[string]models.RiskEntry)
	for _, entry := range report.RiskIndex {
		byID[entry.ElementID] = entry
	}
	assert.InDelta(t, 1.0, byID["r"].Worst, 1e-9)
	assert.InDelta(t, 0.0, byID["r"].Best, 1e-9)
	assert.InDelta(t, 1.0, byID["s"].Best, 1e-9)
	assert.True(t, byID["r"].Flagged)
	assert.True(t, byID["s"].Flagged)
	assert.False(t, byID["v"].Flagged)

	require.NotNil(t, report.RiskAverage)
	assert.InDelta(t, 0.75, report.RiskAverage.Worst, 1e-9)
	assert.InDelta(t, 0.25, report.RiskAverage.Best, 1e-9)

	assert.False(t, report.AlreadyProtected)
	assert.Equal(t, []string{"Validate Input", "Orders DB"}, pointNames(report.ProtectStores))
	assert.Equal(t, []string{"Start", "Receive Input"}, pointNames(report.ProtectEntry))
	assert.Equal(t, []string{"Start", "Receive Input"}, pointNames(report.ProtectWhole))
	assert.Len(t, report.LongestPath, 4)
	require.Len(t, report.AllPaths, 1)
	require.NotNil(t, report.CPP.Aggregate)
	assert.Equal(t, 4.0, *report.CPP.Aggregate)

	info := report.RunInfo
	assert.NotEmpty(t, info.RunID)
	assert.Equal(t, 4, info.ElementCount)
	assert.Equal(t, 3, info.PatternsLoaded)
	assert.Len(t, info.Classifications, 6)
	assert.False(t, info.FinishedAt.Before(info.StartedAt))
}

func pointNames(points []models.PlacementPoint) []string {
	var names []string
	for _, p := range points {
		names = append(names, p.Name)
	}
	return names
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	e, err := New(testConfig(t), WithPatternStore(tamperingStore()))
	require.NoError(t, err)
	g := orderFlow(t)

	first, err := e.Analyze(context.Background(), g)
	require.NoError(t, err)
	second, err := e.Analyze(context.Background(), g)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunInfo.RunID, second.RunInfo.RunID)
	assert.Equal(t, techniqueIDs(first.DetectedThreats), techniqueIDs(second.DetectedThreats))
	assert.Equal(t, techniqueIDs(first.PotentiallyMitigatedThreats), techniqueIDs(second.PotentiallyMitigatedThreats))
	assert.Equal(t, techniqueIDs(first.ConfirmedMitigatedThreats), techniqueIDs(second.ConfirmedMitigatedThreats))
	assert.ElementsMatch(t, first.RiskIndex, second.RiskIndex)
	assert.Equal(t, first.ProtectStores, second.ProtectStores)
	assert.Equal(t, first.CPP, second.CPP)
}

func TestAnalyzeEmptyGraph(t *testing.T) {
	e, err := New(testConfig(t), WithPatternStore(tamperingStore()))
	require.NoError(t, err)

	report, err := e.Analyze(context.Background(), graph.New())
	require.NoError(t, err)
	assert.Empty(t, report.DetectedThreats)
	assert.NotNil(t, report.DetectedThreats, "empty sets encode as []")
	assert.Empty(t, report.RiskIndex)
	assert.Nil(t, report.RiskAverage, "undefined average is not zero")
	assert.Nil(t, report.CPP.Aggregate)
	assert.Empty(t, report.ProtectEntry)
}

func TestAnalyzeAlreadyProtected(t *testing.T) {
	g, err := graph.Build(
		[]*models.Element{
			{ID: "i", UMLType: "InitialNode", Name: "Start"},
			{ID: "c", UMLType: "OpaqueAction", Name: "Clean", Parent: "DataSanitizer"},
			{ID: "s", UMLType: "DataStoreNode", Name: "Store"},
		},
		[]graph.Edge{{Source: "i", Target: "c"}, {Source: "c", Target: "s"}},
	)
	require.NoError(t, err)

	e, err := New(testConfig(t), WithPatternStore(staticStore{}))
	require.NoError(t, err)
	report, err := e.Analyze(context.Background(), g)
	require.NoError(t, err)
	assert.True(t, report.AlreadyProtected)
	assert.Empty(t, report.ProtectStores)
	assert.Empty(t, report.ProtectEntry)
	assert.Empty(t, report.ProtectWhole)
}

func TestAnalyzeWorkerError(t *testing.T) {
	boom := errors.New("disk on fire")
	e, err := New(testConfig(t), WithPatternStore(failingStore{class: models.Repudiation, err: boom}))
	require.NoError(t, err)

	report, err := e.Analyze(context.Background(), orderFlow(t))
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failed to load repudiation patterns")
	assert.Nil(t, report, "no partial report")
}

func TestAnalyzeCycle(t *testing.T) {
	g, err := graph.Build(
		[]*models.Element{
			{ID: "i", UMLType: "InitialNode", Name: "Start"},
			{ID: "a", UMLType: "OpaqueAction", Name: "Retry"},
			{ID: "b", UMLType: "DecisionNode", Name: "Ok?"},
		},
		[]graph.Edge{{Source: "i", Target: "a"}, {Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
	)
	require.NoError(t, err)

	e, err := New(testConfig(t), WithPatternStore(tamperingStore()))
	require.NoError(t, err)
	_, err = e.Analyze(context.Background(), g)
	assert.ErrorIs(t, err, paths.ErrCycleDetected)
}

func TestAnalyzeWorkerTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.WorkerTimeout = 20 * time.Millisecond

	e, err := New(cfg, WithPatternStore(blockingStore{}))
	require.NoError(t, err)
	_, err = e.Analyze(context.Background(), orderFlow(t))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalyzeCancelled(t *testing.T) {
	e, err := New(testConfig(t), WithPatternStore(blockingStore{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Analyze(ctx, orderFlow(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithClassifications(t *testing.T) {
	e, err := New(testConfig(t), WithPatternStore(tamperingStore()), WithClassifications(models.Spoofing))
	require.NoError(t, err)

	report, err := e.Analyze(context.Background(), orderFlow(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"spoofing"}, report.RunInfo.Classifications)
	assert.Empty(t, report.ConfirmedMitigatedThreats)
	assert.Zero(t, report.RunInfo.PatternsLoaded)
}

func TestAnalyzeSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	e, err := New(testConfig(t), WithPatternStore(tamperingStore()), WithTracerProvider(tp))
	require.NoError(t, err)
	_, err = e.Analyze(context.Background(), orderFlow(t))
	require.NoError(t, err)

	counts := make(map[string]int)
	var root sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		counts[span.Name()]++
		if span.Name() == "dubhe.analyze" {
			root = span
		}
	}
	assert.Equal(t, map[string]int{"dubhe.analyze": 1, "dubhe.propagation": 1, "dubhe.classify": 6}, counts)

	require.NotNil(t, root)
	for _, span := range recorder.Ended() {
		if span.Name() != "dubhe.analyze" {
			assert.Equal(t, root.SpanContext().SpanID(), span.Parent().SpanID(), "workers are children of the run span")
		}
	}
}

type recordingMeterProvider struct {
	noop.MeterProvider
	meter *recordingMeter
}

func (p recordingMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter { return p.meter }

type recordingMeter struct {
	noop.Meter
	mu     sync.Mutex
	totals map[string]int64
}

func (m *recordingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return &recordingCounter{name: name, meter: m}, nil
}

type recordingCounter struct {
	noop.Int64Counter
	name  string
	meter *recordingMeter
}

func (c *recordingCounter) Add(_ context.Context, incr int64, _ ...metric.AddOption) {
	c.meter.mu.Lock()
	defer c.meter.mu.Unlock()
	c.meter.totals[c.name] += incr
}

func TestAnalyzeCounters(t *testing.T) {
	meter := &recordingMeter{totals: make(map[string]int64)}
	e, err := New(testConfig(t), WithPatternStore(tamperingStore()), WithMeterProvider(recordingMeterProvider{meter: meter}))
	require.NoError(t, err)

	_, err = e.Analyze(context.Background(), orderFlow(t))
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{
		"dubhe.threats.detected":  3,
		"dubhe.threats.mitigated": 1,
		"dubhe.threats.potential": 1,
	}, meter.totals)
}

func TestAnalyzeFileWithDefaultLibrary(t *testing.T) {
	e, err := New(nil, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	report, err := e.AnalyzeFile(context.Background(), "../diagram/testdata/order_flow.xmi")
	require.NoError(t, err)
	assert.Equal(t, "../diagram/testdata/order_flow.xmi", report.RunInfo.Source)
	assert.Equal(t, 6, report.RunInfo.ElementCount)
	assert.Equal(t, 1, report.RunInfo.DroppedEdges)
	assert.Equal(t, 12, report.RunInfo.PatternsLoaded)
}

func TestAnalyzeReader(t *testing.T) {
	e, err := New(testConfig(t), WithPatternStore(staticStore{}))
	require.NoError(t, err)

	_, err = e.AnalyzeReader(context.Background(), strings.NewReader("{not json"), diagram.FormatJSON)
	assert.ErrorIs(t, err, diagram.ErrMalformedInput)

	doc := `{"nodes":[{"id":"i","type":"InitialNode","name":"Start"},{"id":"a","type":"OpaqueAction","name":"Go"}],"edges":[{"source":"i","target":"a"}]}`
	report, err := e.AnalyzeReader(context.Background(), strings.NewReader(doc), diagram.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RunInfo.ElementCount)
	assert.Empty(t, report.RunInfo.Source)
}

func TestNewRejectsBadPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Risk.Policy = "worst +"
	_, err := New(cfg, WithPatternStore(staticStore{}))
	assert.ErrorContains(t, err, "failed to compile risk policy")
}

func TestNewMissingPatternDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Patterns.Dir = t.TempDir() + "/missing"
	_, err := New(cfg)
	assert.Error(t, err)
}
