package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"initium-core/services"
	"initium-core/store"
	"initium-core/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backupOut     string
	backupConfirm bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export, import or wipe the local store",
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a backup file (stdout unless --out is given)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackups(cmd.Context(), func(ctx context.Context, b *services.BackupService) error {
			backup, err := b.Export(ctx)
			if err != nil {
				return err
			}
			if backupOut == "" {
				_, err := backup.WriteTo(cmd.OutOrStdout())
				return err
			}
			var buf bytes.Buffer
			if _, err := backup.WriteTo(&buf); err != nil {
				return err
			}
			if err := utils.WriteFileAtomic(backupOut, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✅ backup written to %s\n", backupOut)
			return nil
		})
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the backed-up tables with the contents of a backup file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return withBackups(cmd.Context(), func(ctx context.Context, b *services.BackupService) error {
			if err := b.Import(ctx, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✅ imported %s\n", args[0])
			return nil
		})
	},
}

var backupResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every record, settings included",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !backupConfirm {
			return fmt.Errorf("factory reset deletes everything; pass --yes to confirm")
		}
		return withBackups(cmd.Context(), func(ctx context.Context, b *services.BackupService) error {
			return b.FactoryReset(ctx)
		})
	},
}

func init() {
	backupExportCmd.Flags().StringVarP(&backupOut, "out", "o", "", "file to write the backup to")
	backupResetCmd.Flags().BoolVar(&backupConfirm, "yes", false, "confirm the factory reset")
	backupCmd.AddCommand(backupExportCmd, backupImportCmd, backupResetCmd)
}

// withBackups opens the local store (failing if a node already holds it) and runs fn.
func withBackups(ctx context.Context, fn func(context.Context, *services.BackupService) error) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(store.Config{
		DataDir: utils.GetEnv("DATA_DIR", "data"),
		DSN:     os.Getenv("LOCAL_DSN"),
		Logger:  log,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := fn(ctx, services.NewBackupService(st.DB, nil, log)); err != nil {
		log.Error("❌ [BACKUP] failed", zap.Error(err))
		return err
	}
	return nil
}
