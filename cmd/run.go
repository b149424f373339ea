package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tutorloop/internal/agent"
	"tutorloop/internal/catalog"
	"tutorloop/internal/config"
	"tutorloop/internal/journal"
	"tutorloop/internal/logging"
	"tutorloop/internal/records"
	"tutorloop/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start or resume a practice session",
	Long: "Runs one session lifecycle: resolves the resume position, attaches or\n" +
		"creates a thread, dispatches the kickoff if this session has never\n" +
		"started, then polls the agent until progress is ready and saved.",
	RunE: runSession,
}

func init() {
	runCmd.Flags().String("student", "", "Student id (required)")
	runCmd.Flags().String("lesson", "", "Lesson id (required)")
	runCmd.Flags().String("session", "", "Session id (generated when omitted)")
	runCmd.Flags().String("thread", "", "Existing thread id to resume")
	_ = runCmd.MarkFlagRequired("student")
	_ = runCmd.MarkFlagRequired("lesson")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	jnl, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	agentClient, err := buildAgentClient(cfg, jnl.EventRepo(), log)
	if err != nil {
		return err
	}

	if _, err := agent.CheckVersion(ctx, agentClient, cfg.Agent.MinVersion); err != nil {
		return fmt.Errorf("agent service: %w", err)
	}

	storeClient, err := buildStoreClient(cfg)
	if err != nil {
		return err
	}
	if storeClient == nil {
		fmt.Fprintln(os.Stderr, "No session store configured; progress will not be persisted.")
	}

	var catalogClient catalog.Client
	if cfg.Catalog.BaseURL != "" {
		catalogClient, err = catalog.NewHTTPClient(catalog.HTTPConfig{BaseURL: cfg.Catalog.BaseURL})
		if err != nil {
			return err
		}
	}

	studentID, _ := cmd.Flags().GetString("student")
	lessonID, _ := cmd.Flags().GetString("lesson")
	sessionID, _ := cmd.Flags().GetString("session")
	threadID, _ := cmd.Flags().GetString("thread")

	runner, err := session.NewRunner(session.Options{
		SessionID:        sessionID,
		StudentID:        studentID,
		LessonID:         lessonID,
		ExistingThreadID: threadID,
		KickoffDelay:     cfg.KickoffDelay,
		Poll: session.PollConfig{
			WarmUp:      cfg.PollWarmUp,
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollMaxAttempts,
		},
		Agent:       agentClient,
		Store:       storeClient,
		Catalog:     catalogClient,
		Coordinator: session.NewCoordinator(),
		Events:      jnl.EventRepo(),
		Snapshots:   jnl.SessionRepo(),
		Logger:      log,
	})
	if err != nil {
		return err
	}

	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	pos := runner.Position()
	fmt.Printf("session %s on thread %s\n", runner.SessionID(), runner.ThreadID())
	if pos.BlockID != "" {
		fmt.Printf("resuming at block %s (%s)\n", pos.BlockID, pos.Difficulty)
	}

	if err := runner.Wait(); err != nil {
		return err
	}

	printLatestSnapshot(cmd, jnl, runner.SessionID())
	return nil
}

func buildAgentClient(cfg config.Config, events journal.EventRepo, log *zap.Logger) (agent.Client, error) {
	base, err := agent.NewHTTPClient(agent.HTTPConfig{
		BaseURL: cfg.Agent.BaseURL,
		APIKey:  cfg.Agent.APIKey,
		Timeout: cfg.Agent.Timeout,
	})
	if err != nil {
		return nil, err
	}

	// Wrap with middleware: caller -> retry -> journal -> base
	journaled := agent.WithJournal(base, events, log)
	return agent.WithRetry(journaled, agent.DefaultRetryConfig()), nil
}

func buildStoreClient(cfg config.Config) (records.Client, error) {
	if cfg.Store.Endpoint == "" {
		return nil, nil
	}
	return records.NewHTTPClient(records.HTTPConfig{
		Endpoint:     cfg.Store.Endpoint,
		ProjectID:    cfg.Store.ProjectID,
		APIKey:       cfg.Store.APIKey,
		DatabaseID:   cfg.Store.DatabaseID,
		CollectionID: cfg.Store.CollectionID,
	})
}

func printLatestSnapshot(cmd *cobra.Command, jnl *journal.Journal, sessionID string) {
	snap, err := jnl.SessionRepo().Get(cmd.Context(), sessionID)
	if err != nil || snap == nil {
		return
	}
	fmt.Printf("progress: block %d/%d, %d attempted, mastery %.2f, status %s\n",
		snap.BlockIndex, snap.TotalBlocks, snap.Attempted, snap.Mastery, snap.Status)
}
