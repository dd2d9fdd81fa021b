package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adslot/leasekeeper/internal/epoch"
	"github.com/adslot/leasekeeper/pkg/model"
)

var epochsNetwork string

var epochsCmd = &cobra.Command{
	Use:   "epochs <duration>",
	Short: "Convert a wall-clock duration to storage epochs",
	Long: `Convert a wall-clock duration to the number of storage epochs that covers it.
Durations are Go durations (36h, 90m) or whole days (30d). Any positive
duration needs at least one epoch.

Examples:
  leasekeeper epochs 30d
  leasekeeper epochs 36h --network mainnet`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := parseDuration(args[0])
		if err != nil {
			return err
		}
		policy, err := policyFor(epochsNetwork)
		if err != nil {
			return err
		}
		n := epoch.DurationToEpochs(d, policy)
		covers := time.Duration(epoch.EpochsToSeconds(n, policy)) * time.Second

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{
				"network":        policy.Network,
				"duration_secs":  uint64(d / time.Second),
				"epoch_length":   policy.EpochLength.String(),
				"epochs":         n,
				"covers_seconds": uint64(covers / time.Second),
			})
		}
		printer.Fprintf(out, "%s on %s: %d epochs (covers %s)\n", args[0], policy.Network, n, covers)
		return nil
	},
}

// parseDuration accepts Go durations and a whole-day "Nd" form.
func parseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseUint(days, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return d, nil
}

// policyFor returns the named built-in policy, or the configured network's
// policy when name is empty.
func policyFor(name string) (model.EpochPolicy, error) {
	if name == "" {
		cfg, err := loadConfig()
		if err != nil {
			return model.EpochPolicy{}, err
		}
		return cfg.EpochPolicy(), nil
	}
	p, ok := epoch.PolicyFor(model.NetworkName(name))
	if !ok {
		return model.EpochPolicy{}, fmt.Errorf("unknown network %q", name)
	}
	return p, nil
}

func init() {
	epochsCmd.Flags().StringVar(&epochsNetwork, "network", "", "network profile (default from config)")
	rootCmd.AddCommand(epochsCmd)
}
