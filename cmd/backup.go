package cmd

import (
	"fmt"

	"github.com/gradebook/apiserver/internal/storage"
	"github.com/spf13/cobra"
)

var backupPrefix string

// backupCmd uploads the persistence root to object storage.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Uploads DATA_DIR to the configured object storage",
	Long: `Uploads every document under DATA_DIR to the bucket selected by
STORAGE_BACKEND (minio, gcs or s3). Usage:

	gradebook backup --prefix nightly/2026-10-15
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		backend, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}

		result, err := storage.Backup(cmd.Context(), backend, cfg.DataDir, backupPrefix, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d objects (%d bytes) to %s/%s\n",
			result.Objects, result.Bytes, backend.Bucket(), result.Prefix)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringVar(&backupPrefix, "prefix", "", "object key prefix (default backups/<timestamp>)")
}
