// Package cli wires the cobra command tree. Configuration is resolved by
// viper from a config file, environment variables and flags, in that
// ascending order of precedence.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	internal_http "github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/http"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/log"
	internal_storage "github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/storage"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/agent"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/broadcast"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/engine"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/github"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/memory"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/session"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/storage"
)

var cfgFile string

func SetupCLI(rootCmd *cobra.Command) {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.analyzer.yaml)")
	rootCmd.PersistentFlags().String("db", "", "PostgreSQL connection string for the session archive (optional)")
	rootCmd.PersistentFlags().String("memory-dir", "", "Badger directory for cross-session repository memory (optional)")
	rootCmd.PersistentFlags().String("github-token", "", "GitHub API token")
	rootCmd.PersistentFlags().Bool("demo", false, "run against fixture data instead of the GitHub API")
	rootCmd.PersistentFlags().Float64("quality-threshold", engine.DefaultQualityThreshold, "quality gate threshold")
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("memory-dir", rootCmd.PersistentFlags().Lookup("memory-dir"))
	_ = viper.BindPFlag("github-token", rootCmd.PersistentFlags().Lookup("github-token"))
	_ = viper.BindPFlag("demo", rootCmd.PersistentFlags().Lookup("demo"))
	_ = viper.BindPFlag("quality-threshold", rootCmd.PersistentFlags().Lookup("quality-threshold"))

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis API server",
		Run: func(cmd *cobra.Command, args []string) {
			port, _ := cmd.Flags().GetString("port")
			app := buildApp()
			defer app.close()
			if err := internal_http.StartServer(port, app.mgr, viper.GetBool("demo")); err != nil {
				log.GetLogger().Errorf("Server stopped: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8000", "listen port")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [owner/repo]",
		Short: "Run one analysis session and print the result",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			days, _ := cmd.Flags().GetInt("days")
			app := buildApp()
			defer app.close()
			runOnce(app.mgr, args[0], days)
		},
	}
	analyzeCmd.Flags().Int("days", models.DefaultAnalysisPeriodDays, "analysis period in days")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions",
		Run: func(cmd *cobra.Command, args []string) {
			app := buildApp()
			defer app.close()
			listSessions(app.mgr)
		},
	}

	rootCmd.AddCommand(serveCmd, analyzeCmd, listCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".analyzer")
		}
	}
	viper.SetEnvPrefix("analyzer")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.GetLogger().Infof("Using config file %s", viper.ConfigFileUsed())
	}
}

// app holds the assembled service plus the resources it owns.
type app struct {
	mgr   *session.Manager
	mem   memory.Store
	store storage.Store
}

func (a *app) close() {
	a.mgr.Close()
	if err := a.mem.Close(); err != nil {
		log.GetLogger().Errorf("Failed to close memory store: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.GetLogger().Errorf("Failed to close archive store: %v", err)
	}
}

// buildApp assembles the full pipeline from the resolved configuration.
func buildApp() *app {
	logger := log.GetLogger()
	demo := viper.GetBool("demo")

	var mem memory.Store
	if dir := viper.GetString("memory-dir"); dir != "" {
		var err error
		mem, err = memory.NewBadgerStore(dir)
		if err != nil {
			logger.Errorf("Failed to open memory store at %s: %v", dir, err)
			os.Exit(1)
		}
	} else {
		mem = memory.NewInMemoryStore()
	}

	var fetcher github.Fetcher
	if demo {
		fetcher = &github.FixtureFetcher{Data: github.DemoFixture(time.Now())}
	} else {
		fetcher = github.NewClient(context.Background(), viper.GetString("github-token"))
	}

	var store storage.Store
	if connStr := viper.GetString("db"); connStr != "" {
		pg, err := internal_storage.NewPostgresStore(connStr)
		if err != nil {
			logger.Errorf("Failed to initialize archive store: %v", err)
			os.Exit(1)
		}
		store = pg
	} else {
		store = storage.NewMockStore()
	}

	cfg := engine.DefaultConfig()
	cfg.QualityThreshold = viper.GetFloat64("quality-threshold")
	cfg.DemoMode = demo

	agents := engine.Agents{
		Retrieval: agent.NewDataRetrievalAgent(fetcher, mem, logger),
		Analysis:  agent.NewTrendAnalysisAgent(mem, logger),
		Insight:   agent.NewInsightAgent(mem, logger),
		Report:    agent.NewReportAgent(mem, logger, demo),
	}
	bc := broadcast.New(broadcast.DefaultQueueCapacity, logger)
	eng := engine.New(cfg, agents, bc, logger)
	mgr := session.NewManager(eng, bc, store, logger)

	return &app{mgr: mgr, mem: mem, store: store}
}

func runOnce(mgr *session.Manager, repo string, days int) {
	sess, err := mgr.Create(models.AnalysisRequest{Repository: repo, AnalysisPeriodDays: days})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Session %s started for %s\n", sess.ID, sess.Request.Repository)

	for {
		state, err := mgr.GetStatus(sess.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if state.LatestProgress != nil {
			fmt.Fprintf(os.Stdout, "[%3.0f%%] %s: %s\n",
				state.CompletionPercentage, state.CurrentStep, state.LatestProgress.Message)
		}
		if state.CurrentStep.Terminal() {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	res, err := mgr.GetResult(sess.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "\n%s\n", res.FinalReport.ExecutiveSummary.Overview)
	for _, rec := range res.FinalReport.Recommendations {
		fmt.Fprintf(os.Stdout, "- [%s] %s\n", rec.Priority, rec.Recommendation)
	}
}

func listSessions(mgr *session.Manager) {
	recs, err := mgr.ListSessions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list sessions: %v\n", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Fprintf(os.Stdout, "No sessions found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Sessions:\n")
	for _, rec := range recs {
		fmt.Fprintf(os.Stdout, "- ID: %s, Repo: %s, Step: %s, Completion: %.0f%%, Created: %s\n",
			rec.ID, rec.Repository, rec.Step, rec.Completion, rec.CreatedAt.Format(time.RFC3339))
	}
}
