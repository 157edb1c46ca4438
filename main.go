package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"interview-engine/internal/interviewer"
	"interview-engine/internal/ledger"
	"interview-engine/internal/server"
	"interview-engine/internal/session"
	"interview-engine/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "interview-engine",
		Short:        "Voice-driven interview session engine",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newRunCmd(), newExportCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve interview sessions over HTTP and websockets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println("🚀 Starting Interview Engine...")

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			settings := session.SettingsFromConfig(a.interview)
			manager := server.NewManager(func(remote *server.Remote) (*session.Controller, error) {
				return a.newController(devices{
					Recognizer: remote,
					Player:     remote,
					Camera:     remote,
					Recorder:   remote,
					Synthesis:  true,
				}, settings)
			}, server.ManagerOptions{
				IdleTTL: a.cfg.Server.SessionIdleTTL,
				Remote: server.RemoteOptions{
					PlaybackTimeout: a.interview.Voice.PlaybackTimeout,
				},
				Logger: a.log,
			})
			srv := server.New(a.cfg.Server, manager, a.metrics, a.log)

			printConfig(a)
			fmt.Printf("\n🌐 Listening on :%d\n", a.cfg.Server.Port)
			fmt.Println("⏳ Waiting for sessions...")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}

func newRunCmd() *cobra.Command {
	var candidateID string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an interview in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			console := interviewer.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
			settings := session.SettingsFromConfig(a.interview)
			settings.AutoMode = false
			settings.SpeakQuestions = true

			ctrl, err := a.newController(devices{Recognizer: console, Player: console}, settings)
			if err != nil {
				return err
			}
			ctrl.Subscribe(session.ObserverFunc(console.OnEvent))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printConfig(a)
			fmt.Println("\n🎤 Interview starting, type your answers and press Enter.")
			if err := ctrl.Setup(ctx, candidateID); err != nil {
				return err
			}
			if err := ctrl.Start(ctx); err != nil {
				return err
			}

			runErr := console.Run(ctx, ctrl)
			if runErr != nil || ctrl.Snapshot().Session.State.Active() {
				cause := runErr
				if cause == nil {
					cause = errors.New("input ended before the interview was completed")
				}
				_ = ctrl.Abort(context.WithoutCancel(ctx), cause)
			}
			ctrl.Wait()

			snap := ctrl.Snapshot()
			fmt.Printf("\n💾 Session %s saved to %s\n", snap.Session.SessionID, a.cfg.Storage.ResultsDir)
			if errors.Is(runErr, context.Canceled) {
				return nil
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&candidateID, "candidate", "c", "local-candidate", "candidate ID passed to setup")
	return cmd
}

func newExportCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "export [session-id]",
		Short: "Print a stored export record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if list || len(args) == 0 {
				ids, err := a.results.ListResults()
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			rec, err := loadExport(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list stored sessions")
	return cmd
}

// loadExport prefers the KV store and falls back to the results directory.
func loadExport(ctx context.Context, a *app, sessionID string) (*storage.ExportRecord, error) {
	rec, err := ledger.Load(ctx, a.store, sessionID)
	if err == nil {
		return rec, nil
	}
	a.log.Debugf("Export %s not in store: %v", sessionID, err)
	return a.results.LoadResult(sessionID)
}

func printConfig(a *app) {
	fmt.Println("\n📋 Configuration:")
	fmt.Printf("• Questions in bank: %d\n", a.interview.GetTotalQuestions())
	fmt.Printf("• Score threshold: %d\n", a.interview.GetScoreThreshold())
	fmt.Printf("• Follow-ups per question: up to %d\n", a.interview.GetMaxFollowUps())
	if a.cfg.LocalMode() {
		info := a.cfg.OpenAI.GetModelInfo()
		fmt.Printf("• Evaluation: local 🧠 (%s %v, temperature %v)\n", info["provider"], info["model"], info["temperature"])
	} else {
		fmt.Println("• Evaluation: backend 🌐")
	}
}
