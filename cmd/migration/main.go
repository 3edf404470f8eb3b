// Package main はマイグレーション管理CLIのエントリポイント。
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"chatbot-api/config"
	"chatbot-api/internal/bootstrap"
	"chatbot-api/internal/infra"
	"chatbot-api/internal/usecase"

	_ "chatbot-api/migrations"
)

var (
	engine *bootstrap.Engine
	tp     *sdktrace.TracerProvider
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "migration",
		Short:         "Chatbot API database migration CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("missing subcommand: create, migrate or status")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd == cmd.Root() {
				return nil
			}
			return setup(cmd.Context())
		},
	}

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exit(1)
	}
	exit(0)
}

// setup はCLIモードでマイグレーションエンジンを組み立てて起動する。
func setup(ctx context.Context) error {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	cfg := config.Load()

	var err error
	tp, err = infra.InitTracer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	infra.SetupLogger(cfg)

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	db, err := infra.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}

	engine, err = bootstrap.NewEngine(ctx, cfg, db, bootstrap.Options{
		Mode: usecase.ModeCLI,
		Exit: exit,
	})
	if err != nil {
		return err
	}
	return engine.Service.Bootstrap(ctx)
}

// exit はトレースを送信し外部クライアントを閉じてからプロセスを終了する。
func exit(code int) {
	if engine != nil {
		if err := engine.Close(); err != nil {
			slog.Error("failed to close clients", "error", err)
		}
		engine = nil
	}
	if tp != nil {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shutdown tracer", "error", err)
		}
		tp = nil
	}
	os.Exit(code)
}
