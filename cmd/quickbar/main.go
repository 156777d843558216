package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"quickbar/internal/app"
	"quickbar/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	repoURL = "https://github.com/quickbar/quickbar"
)

func loadConfig() (app.Config, error) {
	cfg, err := app.LoadConfig(app.DefaultConfigPath())
	if err != nil {
		return app.Config{}, err
	}
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.ElevenLabsAPIKey == "" {
		cfg.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if v := os.Getenv("QUICKBAR_AGENT_URL"); v != "" {
		cfg.AgentBaseURL = v
	}
	return cfg, nil
}

func main() {
	var mockFlag bool

	root := &cobra.Command{
		Use:     "quickbar",
		Short:   "Quickbar - floating AI command bar",
		Long:    "Quickbar is a keyboard-first AI assistant panel with voice dictation,\nstreaming chat, and an external agent runner.\n\nRun without arguments to open the panel.\n\nFor more information, visit: " + repoURL,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			mockMode := mockFlag || cfg.OpenAIAPIKey == ""
			application, err := app.NewApplication(cfg, mockMode)
			if err != nil {
				return err
			}
			defer application.Close()

			if mockMode {
				fmt.Fprintln(os.Stderr, "OPENAI_API_KEY not set; running with mock providers")
			}

			p := tea.NewProgram(tui.New(application), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return err
			}
			return nil
		},
	}
	root.Flags().BoolVarP(&mockFlag, "mock", "m", false, "Use mock chat and speech providers")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := app.NewFileStore(cfg.StorageRoot)
			if err != nil {
				return err
			}
			summaries, err := store.List()
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No conversations stored.")
				return nil
			}
			for _, s := range summaries {
				fmt.Printf("%s  %-50s  %3d messages  %s\n",
					s.ID, s.Title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	root.AddCommand(sessionsCmd)

	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect or stop the external agent server",
	}

	agentStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the agent server's current task",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := agentClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			status, err := client.Status(ctx)
			if err != nil {
				return err
			}
			if !status.Running {
				fmt.Println("Agent is idle.")
				if status.Error != "" {
					fmt.Printf("Last error: %s\n", status.Error)
				}
				return nil
			}
			fmt.Printf("Agent is running: %s\n", status.Goal)
			return nil
		},
	}

	agentStopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the agent server's current task",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := agentClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Stop(ctx); err != nil {
				return err
			}
			fmt.Println("Stop requested.")
			return nil
		},
	}

	agentHealthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check whether the agent server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := agentClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			healthy, err := client.Health(ctx)
			if err != nil {
				return fmt.Errorf("agent server unreachable: %w", err)
			}
			if !healthy {
				return fmt.Errorf("agent server reported unhealthy")
			}
			fmt.Println("Agent server is healthy.")
			return nil
		},
	}

	agentCmd.AddCommand(agentStatusCmd, agentStopCmd, agentHealthCmd)
	root.AddCommand(agentCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func agentClient() (*app.HTTPAgentClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewHTTPAgentClient(cfg.AgentBaseURL), nil
}
