// Package cli is the submerge command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/morikuni/failure/v2"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/submerge/internal/config"
	"github.com/John-Robertt/submerge/internal/dispatch"
	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/harvest"
	"github.com/John-Robertt/submerge/internal/log"
	"github.com/John-Robertt/submerge/internal/merge"
	"github.com/John-Robertt/submerge/internal/metrics"
	"github.com/John-Robertt/submerge/internal/pipeline"
	"github.com/John-Robertt/submerge/internal/worker"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCmd builds the submerge command tree.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "submerge",
		Short: "Merge proxy subscriptions into one Clash proxies file",
		Long: `submerge collects subscription URLs from a primary feed, an optional
manual list and an optional page index, converts every subscription into
proxy nodes and writes one deduplicated proxies file with unique names.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return failure.Wrap(err, failure.WithCode(InvalidConfig), failure.Message(err.Error()))
			}
			if err := cfg.Validate(); err != nil {
				return failure.New(InvalidConfig,
					failure.Message(err.Error()),
					failure.Context{"config": configFile},
				)
			}
			log.Init(cmd.ErrOrStderr(), cfg.LogLevel)
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringP("filename", "f", config.DefaultFilename, "output file path")
	f.IntP("num", "n", config.DefaultNum, "number of concurrent conversion tasks")
	f.StringP("url", "u", "", "primary feed listing subscription urls (env EXISTS_LINK)")
	f.StringP("manual-url", "m", "", "manually curated subscription list (env MANUAL_EXISTS_LINK)")
	f.StringP("page-url", "p", "", "index of pages listing subscription urls (env PAGE_EXISTS_LINK)")
	f.BoolP("special-protocols", "s", true, "keep protocols that need a Clash.Meta core")
	f.StringP("bin", "b", "", "external subconverter binary; builtin converter when empty")
	f.Duration("fetch-timeout", config.DefaultFetchTimeout, "timeout of one subscription fetch or conversion")
	f.String("metrics-file", "", "write run metrics to this Prometheus textfile")
	f.String("log-level", config.DefaultLogLevel, "debug, info, warn or error")
	f.StringVarP(&configFile, "config", "c", "", "optional YAML config file")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "submerge version %s\n", Version)
			fmt.Fprintf(out, "  commit: %s\n", Commit)
			fmt.Fprintf(out, "  built:  %s\n", Date)
		},
	}
}

// Run executes the command line with os.Args.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func run(ctx context.Context, cfg *config.Config) error {
	fetcher := fetch.NewHTTPFetcher(fetch.Options{Transport: log.Transport()})

	var w dispatch.Worker
	if cfg.Bin != "" {
		w = worker.NewSubconverter(cfg.FetchTimeout)
	} else {
		w = worker.NewBuiltin(fetch.NewHTTPFetcher(fetch.Options{
			Timeout:   cfg.FetchTimeout,
			Transport: log.Transport(),
		}))
	}

	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
		defer func() {
			if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
				log.Warn("write metrics failed", "path", cfg.MetricsFile, "error", err)
			}
		}()
	}

	p := &pipeline.Pipeline{Fetcher: fetcher, Worker: w, Metrics: m}
	_, err := p.Run(ctx, pipeline.Options{
		Sources: harvest.Sources{
			Primary:   cfg.URL,
			Manual:    cfg.ManualURL,
			PageIndex: cfg.PageURL,
		},
		Output:           cfg.Filename,
		Concurrency:      cfg.Num,
		BinPath:          cfg.Bin,
		SpecialProtocols: cfg.SpecialProtocols,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pipeline.ErrNothingToDo), errors.Is(err, merge.ErrNoNodes):
		// Already logged; an empty run is not a failure.
		return nil
	case errors.Is(err, pipeline.ErrMissingURL), errors.Is(err, pipeline.ErrMissingOutput):
		return failure.Wrap(err, failure.WithCode(InvalidConfig), failure.Message(err.Error()))
	default:
		if ae, ok := pipeline.AppErrorOf(err); ok {
			return failure.Wrap(err, failure.WithCode(RunFailed), failure.Message(ae.Message))
		}
		return failure.Wrap(err, failure.WithCode(WriteFailed), failure.Message(err.Error()))
	}
}
