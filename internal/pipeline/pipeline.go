// Package pipeline runs the CLTV stages in order: load, country
// distribution, filter, aggregate, estimate, pivot and regression. Every
// failure is returned as a StageError naming the stage.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/paveg/cltv/internal/cltv"
	"github.com/paveg/cltv/internal/config"
	"github.com/paveg/cltv/internal/dataframe"
	cio "github.com/paveg/cltv/internal/io"
	"github.com/paveg/cltv/internal/monitoring"
	"github.com/paveg/cltv/internal/observability"
	"github.com/paveg/cltv/internal/report"
)

// Stage names
const (
	StageLoad         = "load"
	StageDistribution = "distribution"
	StageFilter       = "filter"
	StageAggregate    = "aggregate"
	StageEstimate     = "estimate"
	StagePivot        = "pivot"
	StageRegression   = "regression"
	StageExport       = "export"
)

// textChartWidth is the length of the longest console bar
const textChartWidth = 50

// StageError wraps the error of the stage that failed
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result holds everything one run computed
type Result struct {
	RunID        string
	Rows         int
	FilteredRows int
	Countries    []cltv.CountryCount
	Valuation    *cltv.Valuation
	Spend        *cltv.SpendMatrix
	Regression   *cltv.RegressionResult
}

// Score returns the R² of the regression on the test partition
func (r *Result) Score() float64 {
	return r.Regression.Score
}

// Pipeline runs the stages with one configuration
type Pipeline struct {
	cfg         config.Config
	logger      *slog.Logger
	mem         memory.Allocator
	metrics     *monitoring.MetricsCollector
	diagnostics io.Writer
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithAllocator sets the arrow allocator of every table the run builds
func WithAllocator(mem memory.Allocator) Option {
	return func(p *Pipeline) { p.mem = mem }
}

// WithMetrics records stage metrics into collector
func WithMetrics(collector *monitoring.MetricsCollector) Option {
	return func(p *Pipeline) { p.metrics = collector }
}

// WithDiagnostics writes the console country chart and the top customer
// table to w
func WithDiagnostics(w io.Writer) Option {
	return func(p *Pipeline) { p.diagnostics = w }
}

// New validates cfg and returns a pipeline
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		logger:  slog.New(slog.DiscardHandler),
		mem:     memory.NewGoAllocator(),
		metrics: monitoring.NewMetricsCollector(true),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Metrics returns the collector the stages record into
func (p *Pipeline) Metrics() *monitoring.MetricsCollector {
	return p.metrics
}

// Run executes every stage. ctx is checked before each stage starts. The
// metrics collector is cleared first, so it holds the stages of the latest
// run only.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.metrics.Clear()
	result := &Result{RunID: uuid.NewString()}
	ctx = observability.WithRunID(ctx, result.RunID)
	logger := p.logger.With("run_id", result.RunID)

	logger.InfoContext(ctx, "pipeline started", "input", p.cfg.Input, "country", p.cfg.Country)
	started := time.Now()

	var raw *dataframe.DataFrame
	err := p.stage(ctx, logger, StageLoad, func() (int, error) {
		var opts []cio.Option
		if p.cfg.Sheet != "" {
			opts = append(opts, cio.WithSheet(p.cfg.Sheet))
		}
		df, err := cio.ReadTransactions(p.cfg.Input, p.mem, opts...)
		if err != nil {
			return 0, err
		}
		raw = df
		result.Rows = df.Len()
		return df.Len(), nil
	})
	if err != nil {
		return nil, err
	}
	defer raw.Release()

	err = p.stage(ctx, logger, StageDistribution, func() (int, error) {
		counts, err := cltv.CountryDistribution(raw, p.cfg.TopCountries)
		if err != nil {
			return 0, err
		}
		result.Countries = counts
		p.renderCountries(ctx, logger, counts)
		return len(counts), nil
	})
	if err != nil {
		return nil, err
	}

	var filtered *dataframe.DataFrame
	err = p.stage(ctx, logger, StageFilter, func() (int, error) {
		df, err := cltv.FilterCountry(raw, p.cfg.Country)
		if err != nil {
			return 0, err
		}
		filtered = df
		result.FilteredRows = df.Len()
		return df.Len(), nil
	})
	if err != nil {
		return nil, err
	}
	defer filtered.Release()

	var aggs []cltv.CustomerAggregate
	err = p.stage(ctx, logger, StageAggregate, func() (int, error) {
		a, err := cltv.Aggregate(filtered)
		aggs = a
		return len(a), err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, logger, StageEstimate, func() (int, error) {
		v, err := cltv.Estimate(aggs, p.cfg.ProfitMargin)
		if err != nil {
			return 0, err
		}
		result.Valuation = v
		logger.DebugContext(ctx, "population rates",
			"purchase_frequency", v.PurchaseFrequency,
			"repeat_rate", v.RepeatRate,
			"churn_rate", v.ChurnRate)
		return len(v.Customers), nil
	})
	if err != nil {
		return nil, err
	}
	p.renderCustomers(ctx, logger, result.Valuation)

	err = p.stage(ctx, logger, StagePivot, func() (int, error) {
		m, err := cltv.PivotMonthlySpend(filtered)
		if err != nil {
			return 0, err
		}
		result.Spend = m
		return m.Len(), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, logger, StageRegression, func() (int, error) {
		r, err := cltv.FitMonthlyModel(result.Spend, p.cfg.RegressionOptions())
		if err != nil {
			return 0, err
		}
		result.Regression = r
		return r.TestRows, nil
	})
	if err != nil {
		return nil, err
	}

	if p.cfg.ExportPath != "" {
		err = p.stage(ctx, logger, StageExport, func() (int, error) {
			scored := result.Valuation.Frame(p.mem)
			defer scored.Release()
			return scored.Len(), cio.WriteFile(p.cfg.ExportPath, scored)
		})
		if err != nil {
			return nil, err
		}
	}

	logger.InfoContext(ctx, "pipeline finished",
		"customers", len(result.Valuation.Customers),
		"score", result.Score(),
		"duration", time.Since(started))
	logger.DebugContext(ctx, "stage metrics", "summary", p.metrics.GetSummary())
	return result, nil
}

// stage runs fn as the named stage, timing and logging it
func (p *Pipeline) stage(ctx context.Context, logger *slog.Logger, name string, fn func() (int, error)) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: err}
	}

	start := time.Now()
	rows := 0
	err := p.metrics.RecordStage(name, func() (int, error) {
		n, err := fn()
		rows = n
		return n, err
	})
	if err != nil {
		logger.ErrorContext(ctx, "stage failed", "stage", name, "error", err)
		return &StageError{Stage: name, Err: err}
	}

	logger.InfoContext(ctx, "stage done", "stage", name, "rows", rows, "duration", time.Since(start))
	return nil
}

// renderCountries draws the country chart. Failures are warnings only.
func (p *Pipeline) renderCountries(ctx context.Context, logger *slog.Logger, counts []cltv.CountryCount) {
	bars := report.CountryBars(counts)

	if p.cfg.ChartPath != "" && len(bars) > 0 {
		title := fmt.Sprintf("Top %d countries by customers", len(bars))
		if err := report.BarChart(bars, title, p.cfg.ChartPath); err != nil {
			logger.WarnContext(ctx, "country chart not written", "path", p.cfg.ChartPath, "error", err)
		} else {
			logger.InfoContext(ctx, "country chart written", "path", p.cfg.ChartPath)
		}
	}

	if p.diagnostics != nil {
		if err := report.TextChart(p.diagnostics, bars, textChartWidth); err != nil {
			logger.WarnContext(ctx, "console chart not written", "error", err)
		}
	}
}

// renderCustomers prints the highest value customers when configured
func (p *Pipeline) renderCustomers(ctx context.Context, logger *slog.Logger, v *cltv.Valuation) {
	if p.diagnostics == nil || p.cfg.TopCustomers == 0 {
		return
	}
	if err := report.WriteCustomerTable(p.diagnostics, v.Top(p.cfg.TopCustomers)); err != nil {
		logger.WarnContext(ctx, "customer table not written", "error", err)
	}
}
