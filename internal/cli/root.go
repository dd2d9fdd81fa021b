package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/adslot/leasekeeper/pkg/color"
	"github.com/adslot/leasekeeper/pkg/config"
	"github.com/adslot/leasekeeper/pkg/logging"
	"github.com/adslot/leasekeeper/pkg/model"
)

var (
	jsonOutput bool
	configPath string
	noColor    bool
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "leasekeeper",
		Short: "leasekeeper - keep ad-slot leases and their stored content alive together",
		Long: `leasekeeper keeps a ledger lease and the storage blob holding its content
expiring together. It converts wall-clock periods to storage epochs, plans the
minimal blob extension a renewal needs, and confirms each ledger change with a
bounded poll.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmtErr(rootCmd.ErrOrStderr(), "%v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// newLogger builds the CLI logger from config, writing to stderr so stdout
// stays parseable.
func newLogger(cmd *cobra.Command, cfg *config.Config) *logging.Logger {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log := logging.NewLogger(logging.ParseLevel(level))
	log.SetOutput(cmd.ErrOrStderr())
	if cfg.Logging.Format == string(logging.FormatText) {
		log.SetFormat(logging.FormatText)
	}
	logging.SetDefault(log)
	return log
}

// outputJSON prints v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(w io.Writer, format string, args ...any) {
	prefix := "leasekeeper: "
	if color.Enabled() {
		prefix = color.Error("leasekeeper:") + " "
	}
	fmt.Fprintf(w, prefix+format+"\n", args...)
}

// printer formats numbers with digit grouping.
var printer = message.NewPrinter(language.English)

// framed prints msg colored for f.
func framed(w io.Writer, f model.Framing, msg string) {
	fmt.Fprintln(w, color.Framed(f, msg))
}
