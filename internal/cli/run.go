package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luckeyseven/dashload/internal/history"
	"github.com/luckeyseven/dashload/internal/logger"
	"github.com/luckeyseven/dashload/internal/performance"
	"github.com/luckeyseven/dashload/internal/performance/config"
	"github.com/luckeyseven/dashload/internal/performance/engine"
	"github.com/luckeyseven/dashload/internal/performance/executor"
	"github.com/luckeyseven/dashload/internal/performance/output"
)

const (
	defaultCLIScenario = "dashboard"
	defaultCLIDuration = "30s"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a dashboard load test",
		Long: `Run a dashboard load test from a configuration file or from flags.

Config file mode (flags override every scenario):
  dashload run --config dashboard.yaml --team-id 42

Quick mode (single scenario):
  dashload run --base-url http://localhost:8080 --vus 10 --duration 1m

One user, one task (exactly batch-size requests):
  dashload run --base-url http://localhost:8080 --iterations 1`,
		Args: cobra.NoArgs,
		RunE: runLoadTest,
	}

	f := cmd.Flags()
	f.StringP("config", "c", "", "Configuration file (YAML or JSON)")
	f.String("base-url", "", "Target base URL, e.g. http://localhost:8080")
	f.Int("team-id", performance.DefaultTeamID, "Team whose dashboard is requested")
	f.Int("batch-size", performance.DefaultBatchSize, "GET requests per task")
	f.Duration("think-min", performance.DefaultThinkTimeMin, "Minimum think time between tasks")
	f.Duration("think-max", performance.DefaultThinkTimeMax, "Maximum think time between tasks")
	f.Int("vus", 1, "Number of simulated users")
	f.String("duration", "", "Run length for constant-vus (e.g. 30s, 5m)")
	f.Int64("iterations", 0, "Tasks per user; switches to the per-vu-iterations executor")
	f.Duration("timeout", 30*time.Second, "HTTP request timeout")
	f.Int64("seed", 0, "Think time random seed (0 = from clock)")
	f.String("history", "", "Save the run summary to this history database")
	f.Bool("json", false, "Print the result as JSON instead of the console summary")
	f.BoolP("quiet", "q", false, "Disable live progress output, print a one-line summary")
	f.Bool("no-color", false, "Disable colored output")
	return cmd
}

func runLoadTest(cmd *cobra.Command, args []string) error {
	testConfig, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")
	historyPath, _ := cmd.Flags().GetString("history")

	eng, err := engine.NewEngine(testConfig, engine.WithLogger(logger.GetLogger()))
	if err != nil {
		return err
	}

	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		TestName:  testConfig.Name,
		Scenarios: scenarioInfos(testConfig),
		Writer:    cmd.OutOrStdout(),
		Quiet:     quiet || jsonOut,
		NoColor:   noColor,
	})
	console.PrintHeader()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := runWithProgress(ctx, eng, console, quiet || jsonOut)
	if result == nil {
		return runErr
	}

	if jsonOut {
		if err := output.WriteJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		console.PrintSummary(result)
	}

	if historyPath != "" {
		if err := saveHistory(historyPath, result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s to %s\n", result.ID, historyPath)
	}

	if runErr == nil && result.Error != "" {
		return errors.New(result.Error)
	}
	return runErr
}

// runWithProgress runs eng and prints a status update every second until it
// finishes.
func runWithProgress(ctx context.Context, eng *engine.Engine, console *output.ConsoleOutput, silent bool) (*engine.TestResult, error) {
	type outcome struct {
		result *engine.TestResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := eng.Run(ctx)
		done <- outcome{r, err}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	cfg := eng.GetConfig()
	totalDuration := calculateTotalDuration(cfg)
	targetVUs := getTargetVUs(cfg)

	for {
		select {
		case o := <-done:
			return o.result, o.err
		case <-ticker.C:
			if silent || !eng.IsRunning() {
				continue
			}
			stats := output.StatsFromMetrics(eng.GetMetrics(), eng.GetProgress(), totalDuration, targetVUs)
			for _, sc := range eng.GetScenarioStats() {
				stats.Tasks += sc.Iterations
			}
			if console.IsTTY() {
				console.Update(stats)
			} else {
				console.PrintNonInteractiveUpdate(stats)
			}
		}
	}
}

// loadRunConfig reads --config when given and applies flag overrides, or
// builds a single-scenario config from flags alone.
func loadRunConfig(cmd *cobra.Command) (*config.TestConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return buildConfigFromFlags(cmd)
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildConfigFromFlags(cmd *cobra.Command) (*config.TestConfig, error) {
	f := cmd.Flags()
	baseURL, _ := f.GetString("base-url")
	if baseURL == "" {
		return nil, fmt.Errorf("either --config or --base-url is required")
	}

	vus, _ := f.GetInt("vus")
	duration, _ := f.GetString("duration")
	iterations, _ := f.GetInt64("iterations")

	scenario := &config.ScenarioConfig{VUs: vus}
	if iterations > 0 {
		scenario.Executor = config.ExecutorPerVUIterations
		scenario.Iterations = iterations
		scenario.MaxDuration = duration
	} else {
		if duration == "" {
			duration = defaultCLIDuration
		}
		scenario.Executor = config.ExecutorConstantVUs
		scenario.Duration = duration
	}

	cfg := &config.TestConfig{
		Name:      config.DefaultTestName,
		Settings:  config.GlobalSettings{BaseURL: baseURL},
		Scenarios: map[string]*config.ScenarioConfig{defaultCLIScenario: scenario},
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides copies every explicitly set flag into cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.TestConfig) error {
	f := cmd.Flags()

	if f.Changed("base-url") {
		cfg.Settings.BaseURL, _ = f.GetString("base-url")
	}
	if f.Changed("timeout") {
		timeout, _ := f.GetDuration("timeout")
		cfg.Settings.Timeout = timeout.String()
	}

	thinkMinSet, thinkMaxSet := f.Changed("think-min"), f.Changed("think-max")

	for _, sc := range cfg.Scenarios {
		if sc == nil {
			continue
		}
		if f.Changed("team-id") {
			id, _ := f.GetInt("team-id")
			sc.User.TeamID = &id
		}
		if f.Changed("batch-size") {
			sc.User.BatchSize, _ = f.GetInt("batch-size")
		}
		if thinkMinSet || thinkMaxSet {
			current, err := sc.User.ParsedThinkTime()
			if err != nil {
				return err
			}
			if thinkMinSet {
				current.Min, _ = f.GetDuration("think-min")
			}
			if thinkMaxSet {
				current.Max, _ = f.GetDuration("think-max")
			}
			sc.User.ThinkTime = &config.ThinkTimeConfig{Min: current.Min.String(), Max: current.Max.String()}
		}
		if f.Changed("vus") {
			sc.VUs, _ = f.GetInt("vus")
		}
		if f.Changed("duration") {
			d, _ := f.GetString("duration")
			if sc.Executor == config.ExecutorPerVUIterations {
				sc.MaxDuration = d
			} else {
				sc.Duration = d
			}
		}
		if f.Changed("iterations") {
			sc.Iterations, _ = f.GetInt64("iterations")
			sc.Executor = config.ExecutorPerVUIterations
		}
		if f.Changed("seed") {
			sc.Seed, _ = f.GetInt64("seed")
		}
	}
	return nil
}

func scenarioInfos(cfg *config.TestConfig) []output.ScenarioInfo {
	var infos []output.ScenarioInfo
	for _, name := range sortedScenarioNames(cfg) {
		sc := cfg.Scenarios[name]
		url := ""
		if pc, err := engine.PatternConfig(name, cfg.Settings, &sc.User); err == nil {
			if p, err := performance.NewDashboardLoadPattern(pc); err == nil {
				url = p.URL()
			}
		}
		infos = append(infos, output.ScenarioInfo{Name: name, Executor: sc.Executor, URL: url, VUs: sc.VUs})
	}
	return infos
}

// calculateTotalDuration is the longest planned scenario duration.
func calculateTotalDuration(cfg *config.TestConfig) time.Duration {
	var longest time.Duration
	for name, sc := range cfg.Scenarios {
		execCfg, err := scenarioExecutorConfig(name, sc)
		if err != nil {
			continue
		}
		longest = max(longest, execCfg.TotalDuration())
	}
	return longest
}

func scenarioExecutorConfig(name string, sc *config.ScenarioConfig) (*executor.Config, error) {
	_, execCfg, err := executor.CreateExecutorFromScenarioConfig(context.Background(), name, sc)
	return execCfg, err
}

// getTargetVUs is the total VU count across scenarios.
func getTargetVUs(cfg *config.TestConfig) int {
	total := 0
	for _, sc := range cfg.Scenarios {
		if sc != nil {
			total += sc.VUs
		}
	}
	return total
}

func saveHistory(path string, result *engine.TestResult) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Save(history.FromResult(result))
	return err
}
