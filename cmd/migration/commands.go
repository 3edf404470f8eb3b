package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chatbot-api/internal/usecase"
)

// createCmd は定義ファイルの雛形を作成するコマンド。
func createCmd() *cobra.Command {
	var useSQL bool
	cmd := &cobra.Command{
		Use:   "create <version>",
		Short: "Create a migration file for the given version (e.g. v3.0.1)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := usecase.MigrationKindGo
			if useSQL {
				kind = usecase.MigrationKindSQL
			}
			return engine.Service.Create(args[0], kind)
		},
	}
	cmd.Flags().BoolVar(&useSQL, "sql", false, "Create a plain SQL migration instead of a Go migration")
	return cmd
}

// migrateCmd はマイグレーションを実行するコマンド。
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down> [version]",
		Short: "Run all migrations, or a single version, in the given direction",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			return engine.Service.Migrate(cmd.Context(), args[0], version)
		},
	}
}

// statusCmd は定義ファイルごとの適用状態を表示するコマンド。
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrations, current, err := engine.Service.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			// テーブル形式で出力
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintf(w, "db-version: %s\n\n", current)
			fmt.Fprintln(w, "VERSION\tFILE\tSTATUS\tUPDATED AT")
			fmt.Fprintln(w, "-------\t----\t------\t----------")
			for _, m := range migrations {
				updatedAt := "-"
				if m.UpdatedAt != nil {
					updatedAt = m.UpdatedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Version, m.Name, m.Status, updatedAt)
			}
			return w.Flush()
		},
	}
}
