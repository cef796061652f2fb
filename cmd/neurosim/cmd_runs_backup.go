package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/neurosim/internal/backup"
	"github.com/nvandessel/neurosim/internal/store"
)

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write archived runs to a compressed backup file",
		Long: `Export archived runs to a checksummed, gzip-compressed backup file.

Default location: ~/.neurosim/backups/neurosim-runs-YYYYMMDD-HHMMSS.json.gz
Exports in the default directory are pruned by the backup.retention
settings (default: keep the last 10).

Examples:
  neurosim runs export
  neurosim runs export --output brain-runs.json.gz --fingerprint 9c1e...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")
			fingerprint, _ := cmd.Flags().GetString("fingerprint")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			retention, err := cfg.Retention()
			if err != nil {
				return fmt.Errorf("backup retention: %w", err)
			}

			prune := outputPath == ""
			if prune {
				dir, err := cfg.BackupDir()
				if err != nil {
					return fmt.Errorf("failed to get backup directory: %w", err)
				}
				outputPath = backup.GenerateBackupPath(dir, time.Now())
			}

			rs, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			bundle, err := backup.Export(cmd.Context(), rs, outputPath, store.ListOptions{Fingerprint: fingerprint})
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			var pruned []string
			if prune {
				if pruned, err = backup.ApplyRetention(filepath.Dir(outputPath), retention); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
				}
			}

			var size int64
			if info, err := os.Stat(outputPath); err == nil {
				size = info.Size()
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"path":       outputPath,
					"run_count":  len(bundle.Runs),
					"size_bytes": size,
					"pruned":     len(pruned),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exported %s runs (%s)\n", humanize.Comma(int64(len(bundle.Runs))), humanize.Bytes(uint64(size)))
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			if len(pruned) > 0 {
				fmt.Fprintf(out, "  Removed %d old exports\n", len(pruned))
			}
			return nil
		},
	}
	cmd.Flags().String("output", "", "Output file path (default: auto-generated in ~/.neurosim/backups/)")
	cmd.Flags().String("fingerprint", "", "Only export runs of the graph with this fingerprint")
	return cmd
}

func newRunsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore runs from a backup file into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeName, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseImportMode(modeName)
			if err != nil {
				return err
			}

			rs, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer rs.Close()

			result, err := backup.Import(cmd.Context(), rs, args[0], mode)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"file":     args[0],
					"mode":     mode,
					"restored": result.Restored,
					"skipped":  result.Skipped,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs, skipped %d already archived\n", result.Restored, result.Skipped)
			return nil
		},
	}
	cmd.Flags().String("mode", string(backup.ImportMerge), "merge keeps archived runs, replace overwrites them")
	return cmd
}

func newRunsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check a backup file's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path := args[0]

			header, err := backup.ReadHeader(path)
			if err == nil {
				err = backup.VerifyChecksum(path)
			}
			if jsonOut {
				res := map[string]any{"file": path, "valid": err == nil}
				if err != nil {
					res["error"] = err.Error()
				} else {
					res["run_count"] = header.RunCount
					res["created_at"] = header.CreatedAt
				}
				if encErr := writeJSON(cmd, res); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			if !jsonOut {
				fmt.Fprintf(cmd.OutOrStdout(), "OK: checksum verified, %d runs from %s\n",
					header.RunCount, humanize.Time(header.CreatedAt))
			}
			return nil
		},
	}
}
