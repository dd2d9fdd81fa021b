package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adslot/leasekeeper/internal/journal"
	"github.com/adslot/leasekeeper/pkg/color"
	"github.com/adslot/leasekeeper/pkg/model"
)

var journalTail int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the hash-chained event journal",
}

// journalPath returns the configured journal path or an error when the
// journal is disabled.
func journalPath() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Journal.Path == "" {
		return "", errors.New("journal is disabled (set journal.path)")
	}
	return cfg.Journal.Path, nil
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every record's hash and chain link",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := journalPath()
		if err != nil {
			return err
		}
		rep, err := journal.Verify(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := outputJSON(out, rep); err != nil {
				return err
			}
		} else if rep.OK() {
			framed(out, model.FramingSuccess, printer.Sprintf("journal intact: %d records", rep.Records))
		} else {
			framed(out, model.FramingError, fmt.Sprintf("journal broken at line %d: %s", rep.Broken, rep.Reason))
		}
		if !rep.OK() {
			return fmt.Errorf("journal verification failed")
		}
		return nil
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print journal records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := journalPath()
		if err != nil {
			return err
		}
		records, err := journal.Read(path)
		if err != nil {
			return err
		}
		if journalTail > 0 && len(records) > journalTail {
			records = records[len(records)-journalTail:]
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, records)
		}
		for _, r := range records {
			line := fmt.Sprintf("%6d  %s  %-20s", r.Seq, r.Recorded.UTC().Format("2006-01-02T15:04:05Z"), r.Event.Type)
			if r.Event.LeaseID != "" {
				line += " lease=" + r.Event.LeaseID
			}
			if r.Event.State != "" {
				line += " state=" + r.Event.State
			}
			if r.Event.Error != "" {
				line += " " + color.Dim("error="+r.Event.Error)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	journalShowCmd.Flags().IntVar(&journalTail, "tail", 0, "show only the last N records")
	journalCmd.AddCommand(journalVerifyCmd, journalShowCmd)
	rootCmd.AddCommand(journalCmd)
}
