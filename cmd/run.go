package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gherkit/gherkit/internal/artifacts"
	"github.com/gherkit/gherkit/internal/browser"
	"github.com/gherkit/gherkit/internal/harness"
	"github.com/gherkit/gherkit/internal/observability"
	"github.com/gherkit/gherkit/internal/report"
	"github.com/gherkit/gherkit/internal/steps"
	"github.com/gherkit/gherkit/internal/testsite"
	"github.com/gherkit/gherkit/internal/triage"
)

const engineStopTimeout = time.Minute

var runCmd = &cobra.Command{
	Use:   "run [feature paths...]",
	Short: "Run the feature suite against a browser.",
	Long: `Run executes the Gherkin features against a real browser. Without a
configured base URL the embedded demo site is started for the run.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		bindings := map[string]string{
			"run.base_url":        "base-url",
			"run.tags":            "tags",
			"run.format":          "format",
			"run.workers":         "workers",
			"run.stop_on_failure": "stop-on-failure",
			"run.environment":     "environment",
			"browser.engine":      "engine",
			"browser.headless":    "headless",
		}
		for key, flag := range bindings {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			cfg.Run.Features = args
		}
		return executeRun(cmd.Context())
	},
}

func init() {
	runCmd.Flags().String("base-url", "", "base URL of the site under test (empty starts the embedded demo site)")
	runCmd.Flags().String("tags", "", "tag expression selecting scenarios, e.g. \"@smoke && !@wip\"")
	runCmd.Flags().String("format", "pretty", "godog output format")
	runCmd.Flags().Int("workers", 1, "number of scenarios to run concurrently")
	runCmd.Flags().Bool("stop-on-failure", false, "stop the run at the first failing scenario")
	runCmd.Flags().String("environment", "", "named environment profile to run against")
	runCmd.Flags().String("engine", "playwright", "browser engine: playwright or chromedp")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	rootCmd.AddCommand(runCmd)
}

func executeRun(ctx context.Context) error {
	logger := observability.GetLogger()

	if _, err := cfg.ApplyProfile(); err != nil {
		return err
	}

	runID := uuid.New().String()
	logger.Info("Run starting.",
		zap.String("run_id", runID),
		zap.Strings("features", cfg.Run.Features),
		zap.String("engine", cfg.Browser.Engine))

	baseURL := cfg.Run.BaseURL
	var site *testsite.Server
	if baseURL == "" {
		var err error
		site, err = testsite.New(logger)
		if err != nil {
			return err
		}
		baseURL, err = site.Start()
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := site.Close(closeCtx); err != nil {
				logger.Warn("Failed to close demo site.", zap.Error(err))
			}
		}()
	}

	engine, err := browser.NewEngine(cfg.Browser, logger)
	if err != nil {
		return err
	}
	store, err := artifacts.New(cfg.Artifacts, runID, logger)
	if err != nil {
		return err
	}
	collector := report.NewCollector(runID)
	h := harness.New(cfg, engine, store, collector, logger)

	if err := h.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), engineStopTimeout)
		defer cancel()
		if err := h.Stop(stopCtx); err != nil {
			logger.Warn("Failed to stop browser engine.", zap.Error(err))
		}
	}()

	stepSuite := steps.NewSuite(baseURL, site)
	status := godog.TestSuite{
		Name: "gherkit",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			h.Attach(sc)
			stepSuite.Register(sc)
		},
		Options: &godog.Options{
			Format:        runFormat(cfg.Run.Format, cfg.Run.Workers, logger),
			Paths:         cfg.Run.Features,
			Tags:          cfg.Run.Tags,
			Concurrency:   cfg.Run.Workers,
			StopOnFailure: cfg.Run.StopOnFailure,
			Strict:        cfg.Run.Strict,
			Randomize:     cfg.Run.Randomize,
			DefaultContext: ctx,
		},
	}.Run()

	run := finalizeRun(ctx, collector, logger)
	summary := report.Summarize(run)
	logger.Info("Run finished.", zap.String("summary", summary.Line()))

	if status != 0 || run.Failed() {
		return fmt.Errorf("run failed: %s", summary.Line())
	}
	return nil
}

// finalizeRun stamps git metadata, attaches triage notes and writes every
// configured report sink. Sink failures are logged, never fatal; the run
// outcome stays the scenarios' outcome.
func finalizeRun(ctx context.Context, collector *report.Collector, logger *zap.Logger) *report.Run {
	if meta, err := report.GitMetadata("."); err != nil {
		logger.Warn("Failed to read git metadata.", zap.Error(err))
	} else if meta != nil {
		collector.SetGit(meta)
	}

	run := collector.Finalize()

	if cfg.Triage.Enabled {
		if t, err := triage.New(ctx, cfg.Triage, logger); err != nil {
			logger.Warn("Triage unavailable.", zap.Error(err))
		} else {
			t.Annotate(ctx, run, collector)
			run = collector.Finalize()
		}
	}

	if cfg.Report.JSONFile != "" {
		if err := report.WriteJSON(run, cfg.Report.JSONFile); err != nil {
			logger.Error("Failed to write JSON report.", zap.Error(err))
		}
	}
	if cfg.Report.JUnitFile != "" {
		if err := report.WriteJUnit(run, cfg.Report.JUnitFile); err != nil {
			logger.Error("Failed to write JUnit report.", zap.Error(err))
		}
	}
	if cfg.Report.HTMLFile != "" {
		if err := report.WriteHTML(run, cfg.Report.HTMLFile); err != nil {
			logger.Error("Failed to write HTML report.", zap.Error(err))
		}
	}
	if cfg.Report.DatabaseURL != "" {
		if sink, err := report.NewPGSink(ctx, cfg.Report.DatabaseURL, logger); err != nil {
			logger.Error("Failed to connect results database.", zap.Error(err))
		} else {
			if err := sink.Persist(ctx, run); err != nil {
				logger.Error("Failed to persist run to database.", zap.Error(err))
			}
			sink.Close()
		}
	}
	if err := report.PublishCommitStatus(ctx, cfg.Report.GitHub, run); err != nil {
		logger.Error("Failed to publish commit status.", zap.Error(err))
	}
	return run
}

// runFormat downgrades pretty output under concurrency; godog's pretty
// formatter interleaves unreadably across workers.
func runFormat(format string, workers int, logger *zap.Logger) string {
	if workers > 1 && format == "pretty" {
		logger.Warn("Pretty output is unreadable with concurrent workers; using progress.",
			zap.Int("workers", workers))
		return "progress"
	}
	return format
}
