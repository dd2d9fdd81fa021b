package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adslot/leasekeeper/internal/leasecache"
	"github.com/adslot/leasekeeper/pkg/color"
)

var cacheExpiring time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the local lease cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List cached leases by lease end",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Cache.Path == "" {
			return errors.New("lease cache is disabled (set cache.path)")
		}
		c, err := leasecache.Open(cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer c.Close()

		var entries []leasecache.Entry
		now := time.Now()
		if cacheExpiring > 0 {
			entries, err = c.Expiring(now, cacheExpiring)
		} else {
			entries, err = c.List()
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "no cached leases")
			return nil
		}
		for _, e := range entries {
			left := e.Lease.Remaining(now).Truncate(time.Minute)
			status := color.Success(left.String() + " left")
			if left == 0 {
				status = color.Warning("expired")
			}
			fmt.Fprintf(out, "%s  ends %s  %s  %s\n", e.Lease.ID,
				e.Lease.LeaseEnd.UTC().Format(time.RFC3339), status, color.Dim(e.Lease.Content.URL))
		}
		return nil
	},
}

func init() {
	cacheShowCmd.Flags().DurationVar(&cacheExpiring, "expiring", 0, "only leases ending within this window")
	cacheCmd.AddCommand(cacheShowCmd)
	rootCmd.AddCommand(cacheCmd)
}
