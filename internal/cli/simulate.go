package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/adslot/leasekeeper/internal/confirm"
	"github.com/adslot/leasekeeper/internal/ledger"
	"github.com/adslot/leasekeeper/internal/memnet"
	"github.com/adslot/leasekeeper/pkg/config"
	"github.com/adslot/leasekeeper/pkg/leasekeeper"
	"github.com/adslot/leasekeeper/pkg/model"
	"github.com/adslot/leasekeeper/pkg/progress"
)

const simOwner = "0xsim-owner"

var (
	simLag        int
	simBlobEpochs uint64
	simLeaseLeft  time.Duration
	simDays       uint64
	simReject     string
	simExternal   bool
	simNewURL     string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a renewal or content update against an in-memory network",
	Long: `Run a renewal or content update end to end against an in-memory ledger and
storage network. Waits between confirmation attempts are recorded instead of
slept, so a full schedule finishes immediately.

Examples:
  leasekeeper simulate renew --days 30 --blob-epochs 3 --lag 2
  leasekeeper simulate renew --reject renew_lease
  leasekeeper simulate update --new-url https://cdn.example/banner.png`,
}

// simulation is one seeded in-memory scenario.
type simulation struct {
	net     *memnet.Network
	client  *leasekeeper.Client
	sleeper *confirm.FakeSleeper
	signer  *memnet.Signer
	leaseID string
	blob    model.ObjectID
}

func newSimulation(cmd *cobra.Command) (*simulation, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	simConfig(cfg)
	log := newLogger(cmd, cfg)

	net := memnet.New(ledger.Contract{
		PackageID: cfg.Contract.PackageID,
		Module:    cfg.Contract.Module,
		FactoryID: cfg.Contract.FactoryID,
		ClockID:   cfg.Contract.ClockID,
	})
	net.SetEpoch(100)
	net.SetLag(simLag)

	s := &simulation{net: net, sleeper: &confirm.FakeSleeper{}, signer: net.NewSigner(simOwner)}
	seed := memnet.LeaseSeed{
		Owner:      simOwner,
		AdSpaceID:  "0xsim-space",
		BrandName:  "Simulated",
		ContentURL: "https://cdn.example/banner.png",
		Source:     model.StorageExternal,
		Start:      time.Now().Add(-24 * time.Hour),
		End:        time.Now().Add(simLeaseLeft),
	}
	if !simExternal {
		blob, blobID := net.SeedBlob(simOwner, []byte("simulated banner"), 100+simBlobEpochs)
		s.blob = blob
		seed.ContentURL = cfg.AggregatorURL() + blob.String()
		seed.BlobID = blobID
		seed.Source = model.StorageDecentralized
	}
	s.leaseID = net.SeedLease(seed)
	if simReject != "" {
		s.signer.RejectNext(simReject, 1)
	}

	term := progress.NewTerminal(cmd.ErrOrStderr(), !jsonOutput)
	s.client, err = leasekeeper.New(cfg, leasekeeper.Backends{Ledger: net, Storage: net},
		leasekeeper.WithLogger(log),
		leasekeeper.WithSleeper(s.sleeper),
		leasekeeper.WithProgress(term.Callback()),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// simConfig strips the persistent parts of cfg so a simulation never
// touches the real cache, journal, or webhooks.
func simConfig(cfg *config.Config) {
	if cfg.Contract.PackageID == "" {
		cfg.Contract.PackageID = "0xsim"
	}
	if cfg.Contract.FactoryID == "" {
		cfg.Contract.FactoryID = "0xsim-factory"
	}
	cfg.Cache.Path = ""
	cfg.Journal.Path = ""
	cfg.Webhook.Enabled = false
}

var simulateRenewCmd = &cobra.Command{
	Use:   "renew",
	Short: "Simulate a lease renewal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSimulation(cmd)
		if err != nil {
			return err
		}
		defer s.client.Close()

		res, runErr := s.client.Renew(context.Background(), leasekeeper.RenewRequest{LeaseID: s.leaseID, Days: simDays}, s.signer)
		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := outputJSON(out, map[string]any{
				"result":     res,
				"outcome":    res.Outcome(),
				"framing":    res.Framing(),
				"error":      errString(runErr),
				"waited_ms":  s.sleeper.Total().Milliseconds(),
				"blob_epoch": s.blobEnd(),
			}); err != nil {
				return err
			}
			return failure(res.Framing(), runErr)
		}

		fmt.Fprintf(out, "lease %s\n", s.leaseID)
		fmt.Fprintf(out, "states: %v\n", res.Transitions)
		switch {
		case res.Plan != nil && res.Plan.NeedExtend:
			printer.Fprintf(out, "storage: %d epochs added, end epoch %d -> %d\n",
				res.Plan.EpochsToAdd, res.Plan.CurrentEndEpoch, res.Plan.TargetEndEpoch)
		case res.Plan != nil:
			printer.Fprintf(out, "storage: end epoch %d already covers the renewal\n", res.Plan.CurrentEndEpoch)
		}
		s.printWaits(out, res.Attempts)
		framed(out, res.Framing(), res.Message())
		return failure(res.Framing(), runErr)
	},
}

var simulateUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Simulate a content update",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSimulation(cmd)
		if err != nil {
			return err
		}
		defer s.client.Close()

		res, runErr := s.client.UpdateContent(context.Background(), leasekeeper.ContentRequest{
			LeaseID: s.leaseID,
			NewURL:  simNewURL,
			NewKind: model.StorageExternal,
		}, s.signer)
		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := outputJSON(out, map[string]any{
				"result":       res,
				"framing":      res.Framing(),
				"error":        errString(runErr),
				"retire_error": errString(res.RetireErr),
				"waited_ms":    s.sleeper.Total().Milliseconds(),
			}); err != nil {
				return err
			}
			return failure(res.Framing(), runErr)
		}

		fmt.Fprintf(out, "lease %s\n", s.leaseID)
		s.printWaits(out, res.Attempts)
		switch {
		case res.Retired != "":
			fmt.Fprintf(out, "retired blob %s\n", res.Retired)
		case res.RetireErr != nil:
			framed(out, model.FramingInfo, "old blob kept: "+res.RetireErr.Error())
		}
		msg := string(res.Outcome)
		if runErr != nil {
			msg = runErr.Error()
		}
		framed(out, res.Framing(), "content update: "+msg)
		return failure(res.Framing(), runErr)
	},
}

func (s *simulation) blobEnd() uint64 {
	if s.blob == "" {
		return 0
	}
	end, _ := s.net.BlobEndEpoch(s.blob)
	return end
}

func (s *simulation) printWaits(w io.Writer, attempts int) {
	if attempts == 0 {
		return
	}
	fmt.Fprintf(w, "confirmation: %d attempts, waited %s\n", attempts, s.sleeper.Total())
}

// failure turns a failed run into the command error. Informational
// failures were already printed and exit cleanly.
func failure(f model.Framing, err error) error {
	if err == nil || f == model.FramingInfo {
		return nil
	}
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func init() {
	for _, c := range []*cobra.Command{simulateRenewCmd, simulateUpdateCmd} {
		c.Flags().IntVar(&simLag, "lag", 1, "reads before a write becomes visible")
		c.Flags().DurationVar(&simLeaseLeft, "lease-left", 48*time.Hour, "time left on the seeded lease")
		c.Flags().StringVar(&simReject, "reject", "", "signer rejects the next call to this function")
		c.Flags().BoolVar(&simExternal, "external", false, "seed the lease with external content")
		c.Flags().Uint64Var(&simBlobEpochs, "blob-epochs", 3, "epochs left on the seeded blob")
	}
	simulateRenewCmd.Flags().Uint64Var(&simDays, "days", 30, "renewal length in days")
	simulateUpdateCmd.Flags().StringVar(&simNewURL, "new-url", "https://cdn.example/banner-v2.png", "new content URL")
	simulateCmd.AddCommand(simulateRenewCmd, simulateUpdateCmd)
	rootCmd.AddCommand(simulateCmd)
}
