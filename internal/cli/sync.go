package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BartekS5/tablesync/internal/config"
	"github.com/BartekS5/tablesync/internal/watermark"
)

type SyncOptions struct {
	ConfigFile string
	StagingDir string
	Pipeline   bool
	Tables     []string
}

func NewSyncCmd() *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the configured table syncs",
		RunE: func(c *cobra.Command, args []string) error {
			return runSync(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "configs/sync.yaml", "Path to sync config file")
	cmd.Flags().StringVar(&opts.StagingDir, "staging-dir", "", "Directory for staging files (default: system temp dir)")
	cmd.Flags().BoolVar(&opts.Pipeline, "pipeline", false, "Overlap source extraction with target loading across tables")
	cmd.Flags().StringSliceVarP(&opts.Tables, "tables", "t", nil, "Only sync these tables")

	return cmd
}

func NewStatusCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored watermarks",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			store, err := watermark.NewSQLiteStore(cfg.Watermark.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.EnsureStorageExists(); err != nil {
				return err
			}

			recs, err := store.All()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tLAST SYNCED\tLAST ROW\tLAST BATCH")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.TableName,
					formatWhen(r.LastSyncedAt), formatWhen(r.LastRowAt), formatWhen(r.LastBatchSyncedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "configs/sync.yaml", "Path to sync config file")

	return cmd
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
