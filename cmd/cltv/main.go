// Command cltv estimates customer lifetime value from a retail transactions
// file and prints the R² of the monthly-spend regression.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/paveg/cltv/internal/config"
	"github.com/paveg/cltv/internal/observability"
	"github.com/paveg/cltv/internal/pipeline"
	"github.com/paveg/cltv/internal/version"
	"github.com/spf13/cobra"
)

type flags struct {
	configPath string
	input      string
	sheet      string
	country    string
	margin     float64
	months     string
	testSize   float64
	seed       uint64
	top        int
	topCust    int
	chart      string
	chartText  bool
	export     string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr, os.LookupEnv).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) *cobra.Command {
	var args flags
	defaults := config.NewConfig()

	cmd := &cobra.Command{
		Use:   "cltv",
		Short: "Estimate customer lifetime value from retail transactions",
		Long: "cltv loads a transactions file, scores every customer of one country with a heuristic\n" +
			"lifetime value and fits a regression of lifetime value on monthly spend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &args, lookupEnv)
			if err != nil {
				fmt.Fprintln(stderr, "cltv:", err)
				return err
			}

			logger := observability.NewLogger(cfg.Log, stderr)

			opts := []pipeline.Option{pipeline.WithLogger(logger)}
			if args.chartText {
				opts = append(opts, pipeline.WithDiagnostics(stderr))
			}
			p, err := pipeline.New(cfg, opts...)
			if err != nil {
				logger.Error("invalid configuration", "error", err)
				return err
			}

			result, err := p.Run(cmd.Context())
			if err != nil {
				logger.Error("pipeline failed", "error", err)
				return err
			}

			_, err = fmt.Fprintf(stdout, "Prediction score is: %s\n", strconv.FormatFloat(result.Score(), 'g', -1, 64))
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&args.configPath, "config", "", "configuration file (.yaml, .yml or .json)")
	f.StringVar(&args.input, "input", defaults.Input, "transactions file (.xlsx, .csv or .parquet)")
	f.StringVar(&args.sheet, "sheet", defaults.Sheet, "worksheet to read, first sheet when empty")
	f.StringVar(&args.country, "country", defaults.Country, "country to analyse")
	f.Float64Var(&args.margin, "margin", defaults.ProfitMargin, "share of spend counted as profit")
	f.StringVar(&args.months, "months", "", "comma separated feature months (default Dec-2011,...,Jul-2011)")
	f.Float64Var(&args.testSize, "test-size", defaults.TestSize, "share of customers held out for scoring")
	f.Uint64Var(&args.seed, "seed", defaults.RandomSeed, "seed of the train/test shuffle")
	f.IntVar(&args.top, "top-countries", defaults.TopCountries, "countries shown in the distribution chart")
	f.IntVar(&args.topCust, "top-customers", defaults.TopCustomers, "highest value customers printed with --chart-text")
	f.StringVar(&args.chart, "chart", defaults.ChartPath, "country chart image, disabled when empty")
	f.BoolVar(&args.chartText, "chart-text", false, "print the country chart and customer table to stderr")
	f.StringVar(&args.export, "export", defaults.ExportPath, "write scored customers to a .csv or .parquet file")
	f.StringVar(&args.logLevel, "log-level", defaults.Log.Level, "debug, info, warn or error")
	f.StringVar(&args.logFormat, "log-format", defaults.Log.Format, "text or json")

	cmd.AddCommand(newVersionCmd(stdout))
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprint(stdout, version.Info().String())
			return err
		},
	}
}

// loadConfig layers defaults, the config file, the environment and the
// flags the user set, in that order
func loadConfig(cmd *cobra.Command, args *flags, lookupEnv func(string) (string, bool)) (config.Config, error) {
	cfg := config.NewConfig()
	if args.configPath != "" {
		loaded, err := config.LoadFromFile(args.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("input") {
		cfg.Input = args.input
	}
	if changed("sheet") {
		cfg.Sheet = args.sheet
	}
	if changed("country") {
		cfg.Country = args.country
	}
	if changed("margin") {
		cfg.ProfitMargin = args.margin
	}
	if changed("months") {
		cfg.FeatureMonths = config.SplitList(args.months)
	}
	if changed("test-size") {
		cfg.TestSize = args.testSize
	}
	if changed("seed") {
		cfg.RandomSeed = args.seed
	}
	if changed("top-countries") {
		cfg.TopCountries = args.top
	}
	if changed("top-customers") {
		cfg.TopCustomers = args.topCust
	}
	if changed("chart") {
		cfg.ChartPath = args.chart
	}
	if changed("export") {
		cfg.ExportPath = args.export
	}
	if changed("log-level") {
		cfg.Log.Level = args.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = args.logFormat
	}

	return cfg, cfg.Validate()
}
