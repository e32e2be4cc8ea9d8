package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/careerforge/careerforge/internal/config"
	"github.com/careerforge/careerforge/internal/gateway"
	"github.com/careerforge/careerforge/internal/routing"
	"github.com/careerforge/careerforge/internal/sandbox"
	"github.com/careerforge/careerforge/internal/session"
	"github.com/careerforge/careerforge/internal/store"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "careerforge %s\n", version)
		},
	}
}

func newGatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			printHeader(out, "🌐 CareerForge Gateway")
			addr := fmt.Sprintf("%s:%d", a.cfg.Gateway.Host, a.cfg.Gateway.Port)
			fmt.Fprintf(out, "Model:   %s\n", a.cfg.Model.Name)
			fmt.Fprintf(out, "Store:   %s\n", a.cfg.Store.Backend)
			fmt.Fprintf(out, "📡 API Server listening on http://%s\n", addr)

			srv := gateway.New(gateway.Deps{
				Store:        a.store,
				Chat:         a.engine,
				Tasks:        a.tasks,
				Sandbox:      a.sandbox,
				Sessions:     a.sessions,
				AllowOrigins: a.cfg.Gateway.AllowOrigins,
			})
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}
}

func newChatCmd() *cobra.Command {
	var topicID string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message through the router and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.engine.Chat(commandContext(cmd), routing.Request{
				TopicID: topicID,
				Message: strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.CyanString("[%s]", res.AgentType), res.Response)
			return nil
		},
	}
	cmd.Flags().StringVarP(&topicID, "topic", "t", store.DefaultTopicID, "Topic ID")
	return cmd
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <file|->",
		Short: "Run Python code through the sandbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			out := newSandbox(cfg).Execute(commandContext(cmd), code).String()
			if sandbox.IsFailureText(out) {
				fmt.Fprintln(cmd.ErrOrStderr(), color.RedString(out))
				return fmt.Errorf("execution failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func readSource(stdin io.Reader, arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", arg, err)
	}
	return string(data), nil
}

func newTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List conversation topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			topics, err := st.GetTopics()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range store.SortedTopics(topics) {
				history, err := st.GetHistory(t.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-38s %-30s %d messages\n", t.ID, t.Title, len(history))
			}
			return nil
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List model sessions and their sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sessions, err := session.NewManager(cfg.Paths.Resolve(cfg.Paths.SessionsDir))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			infos := sessions.List()
			if len(infos) == 0 {
				fmt.Fprintln(out, "No sessions yet.")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(out, "%-46s %4d messages  updated %s\n",
					info.Key, info.Messages, info.UpdatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}
			if err := config.Save(config.DefaultConfig()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", okMark, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

// commandContext returns cmd's context, or Background when run outside
// cobra's ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
