package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgefn/routeprobe/internal/config"
	"github.com/edgefn/routeprobe/internal/logx"
	"github.com/edgefn/routeprobe/pkg/bench"
	"github.com/edgefn/routeprobe/pkg/plan"
)

type benchOptions struct {
	samples     int
	concurrency int
	output      string
	alias       string
}

func newBenchCmd() *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the plan endpoint and write a JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.samples > 0 {
				cfg.Bench.Samples = opts.samples
			}
			if opts.concurrency > 0 {
				cfg.Bench.Concurrency = opts.concurrency
			}
			if strings.TrimSpace(opts.output) != "" {
				cfg.Bench.OutputPath = strings.TrimSpace(opts.output)
			}
			if strings.TrimSpace(opts.alias) != "" {
				cfg.Router.Alias = strings.TrimSpace(opts.alias)
			}
			return runBench(cmd, cfg)
		},
	}
	fs := cmd.Flags()
	fs.IntVarP(&opts.samples, "samples", "n", 0, "number of plan requests (default SAMPLE_REQUESTS)")
	fs.IntVarP(&opts.concurrency, "concurrency", "c", 0, "worker pool size (default CONCURRENCY)")
	fs.StringVarP(&opts.output, "output", "o", "", "report file path (default OUTPUT_PATH)")
	fs.StringVar(&opts.alias, "alias", "", "routing alias (overrides ROUTER_ALIAS)")
	return cmd
}

func runBench(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "benchmarking %s alias=%s samples=%d concurrency=%d\n",
		cfg.Router.URL, cfg.Router.Alias, cfg.Bench.Samples, cfg.Bench.Concurrency)

	h := &bench.Harness{
		Client: &plan.Client{
			BaseURL: cfg.Router.URL,
			Timeout: cfg.RequestTimeout,
		},
		Input: plan.FetchInput{
			Alias:       cfg.Router.Alias,
			PrivacyMode: cfg.Router.PrivacyMode,
			Caps:        cfg.Router.Caps,
		},
		Samples:     cfg.Bench.Samples,
		Concurrency: cfg.Bench.Concurrency,
		OnSample: func(s bench.Sample) {
			fields := map[string]any{}
			if s.Succeeded() {
				fields["cache"] = s.CacheState
				fields["route"] = s.RouteID
				fields["tier"] = s.Tier
			} else {
				fields["code"] = s.ErrorCode
			}
			fmt.Fprintln(out, logx.FormatCallLine(
				time.Now(), s.Status,
				time.Duration(s.LatencyMs*float64(time.Millisecond)),
				"POST", "/route/plan", fields,
			))
		},
	}

	sum, err := h.Run(cmd.Context())
	if err != nil {
		return err
	}

	doc := bench.Document{
		RouterURL:   cfg.Router.URL,
		IssuerURL:   cfg.Issuer.URL,
		Samples:     cfg.Bench.Samples,
		Concurrency: cfg.Bench.Concurrency,
		Report:      sum,
	}
	if err := bench.WriteReport(cfg.Bench.OutputPath, doc); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	printSummary(out, sum, cfg.Bench.OutputPath)

	if sum.Failed() {
		return fmt.Errorf("%d of %d samples failed", sum.Errors, sum.Samples)
	}
	return nil
}

func printSummary(out io.Writer, sum *bench.Summary, reportPath string) {
	fmt.Fprintf(out, "\nsamples: %d  ok: %d  errors: %d\n", sum.Samples, sum.Successes, sum.Errors)
	if sum.Latency != nil {
		fmt.Fprintf(out, "latency ms: min=%.1f avg=%.1f p95=%.1f max=%.1f\n",
			sum.Latency.Min, sum.Latency.Avg, sum.Latency.P95, sum.Latency.Max)
	}
	if len(sum.CacheStates) > 0 {
		fmt.Fprintf(out, "cache states: %v\n", sum.CacheStates)
	}
	if len(sum.ErrorBreakdown) > 0 {
		fmt.Fprintf(out, "error breakdown: %v\n", sum.ErrorBreakdown)
	}
	if sum.RepresentativeError != nil {
		fmt.Fprintf(out, "first error: [%d] %s %s\n",
			sum.RepresentativeError.Status, sum.RepresentativeError.ErrorCode, sum.RepresentativeError.ErrorMessage)
	}
	fmt.Fprintf(out, "report written to %s\n", reportPath)
}
