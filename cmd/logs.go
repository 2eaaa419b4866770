package cmd

import (
	"fmt"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

var followLogs bool

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the run log file, optionally following it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Logger.LogFile
		if path == "" {
			return fmt.Errorf("no log file configured (logger.log_file)")
		}

		t, err := tail.TailFile(path, tail.Config{
			Follow:    followLogs,
			ReOpen:    followLogs,
			MustExist: true,
			Logger:    tail.DiscardingLogger,
		})
		if err != nil {
			return fmt.Errorf("tail %s: %w", path, err)
		}
		defer t.Cleanup()

		for line := range t.Lines {
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line.Text)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&followLogs, "follow", "f", false, "keep the log open and stream new entries")
	rootCmd.AddCommand(logsCmd)
}
