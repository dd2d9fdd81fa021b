package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adslot/leasekeeper/internal/confirm"
	"github.com/adslot/leasekeeper/internal/lifecycle"
	"github.com/adslot/leasekeeper/pkg/model"
)

var (
	planNetwork    string
	planCurrent    uint64
	planEnd        uint64
	planLeaseLeft  string
	planExtendDays uint64
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute the storage extension a lease renewal needs",
	Long: `Compute how many epochs a blob must be extended by so that it outlives a
renewed lease. Nothing is submitted.

The renewed lease end is the current lease end plus --extend-days; the blob
covers (end-epoch - current-epoch) epochs from now.

Examples:
  leasekeeper plan --current-epoch 100 --end-epoch 105 --lease-left 2d --extend-days 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := policyFor(planNetwork)
		if err != nil {
			return err
		}
		left, err := parseDuration(planLeaseLeft)
		if err != nil {
			return err
		}
		if planEnd == 0 {
			return fmt.Errorf("--end-epoch is required")
		}

		current := model.BlobExpiration{CurrentEpoch: planCurrent, EndEpoch: planEnd}
		now := uint64(time.Now().Unix())
		extension := planExtendDays * 86400
		newEnd := now + uint64(left/time.Second) + extension
		plan := lifecycle.PlanExtension(current, policy, now, newEnd, extension)

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, plan)
		}
		printer.Fprintf(out, "coverage: %d s (%d epochs left)\n", plan.CoverageSeconds, current.RemainingEpochs())
		printer.Fprintf(out, "required: %d s\n", plan.RequiredSeconds)
		if !plan.NeedExtend {
			framed(out, model.FramingSuccess, "storage already covers the renewed lease")
			return nil
		}
		framed(out, model.FramingInfo, printer.Sprintf("extend by %d epochs: end epoch %d -> %d",
			plan.EpochsToAdd, plan.CurrentEndEpoch, plan.TargetEndEpoch))
		return nil
	},
}

var (
	scheduleAttempts int
	scheduleDelay    time.Duration
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the confirmation polling schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		attempts, delay := scheduleAttempts, scheduleDelay
		if attempts == 0 || delay == 0 {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if attempts == 0 {
				attempts = cfg.Confirm.MaxAttempts
			}
			if delay == 0 {
				delay = cfg.Confirm.BaseDelay
			}
		}
		waits := confirm.Schedule(attempts, delay)
		total := confirm.TotalWait(attempts, delay)

		out := cmd.OutOrStdout()
		if jsonOutput {
			ms := make([]int64, len(waits))
			for i, w := range waits {
				ms[i] = w.Milliseconds()
			}
			return outputJSON(out, map[string]any{"delays_ms": ms, "total_ms": total.Milliseconds()})
		}
		for i, w := range waits {
			fmt.Fprintf(out, "attempt %d: wait %s\n", i+1, w)
		}
		fmt.Fprintf(out, "total: %s\n", total)
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planNetwork, "network", "", "network profile (default from config)")
	planCmd.Flags().Uint64Var(&planCurrent, "current-epoch", 0, "current storage epoch")
	planCmd.Flags().Uint64Var(&planEnd, "end-epoch", 0, "blob end epoch")
	planCmd.Flags().StringVar(&planLeaseLeft, "lease-left", "0s", "time left on the lease")
	planCmd.Flags().Uint64Var(&planExtendDays, "extend-days", 30, "renewal length in days")
	scheduleCmd.Flags().IntVar(&scheduleAttempts, "attempts", 0, "attempt limit (default from config)")
	scheduleCmd.Flags().DurationVar(&scheduleDelay, "base-delay", 0, "base delay (default from config)")
	rootCmd.AddCommand(planCmd, scheduleCmd)
}
