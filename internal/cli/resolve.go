package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adslot/leasekeeper/internal/objectid"
	"github.com/adslot/leasekeeper/pkg/model"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Extract the storage object id from a content URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := objectid.MustResolve(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"url": args[0], "object_id": id})
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var urlAggregator string

var urlCmd = &cobra.Command{
	Use:   "url <object-id>",
	Short: "Print the display URL of a storage object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, ok := model.NormalizeObjectID(args[0])
		if !ok {
			return fmt.Errorf("not an object id: %q", args[0])
		}
		base := urlAggregator
		if base == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			base = cfg.AggregatorURL()
		}
		u := objectid.DisplayURL(base, id)
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]any{"object_id": id, "url": u})
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	},
}

func init() {
	urlCmd.Flags().StringVar(&urlAggregator, "aggregator", "", "aggregator base URL (default from config)")
	rootCmd.AddCommand(resolveCmd, urlCmd)
}
