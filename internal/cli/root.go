package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tablesync",
		Short: "tablesync - staged table replication from SQL sources to MongoDB",
		Long: `tablesync replicates tables from a SQL Server or MySQL source into
MongoDB on a recurring basis, either as incremental watermark-driven
syncs or full batch reloads.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewStatusCmd())

	return rootCmd
}
