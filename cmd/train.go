package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	noResume   bool
	noPlayback bool
	statsDir   string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train an agent",
	Long: `Train a Deep Q-learning agent. Training can be interrupted with
Ctrl-C, after which the current episode finishes and a final checkpoint
is saved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("no-resume") {
			c.Experiment.Resume = !noResume
		}
		if flags.Changed("stats") {
			c.Experiment.StatsDir = statsDir
		}

		var sink io.Writer = os.Stdout
		if noPlayback {
			sink = nil
		}

		exp, err := c.CreateExp(logger, sink)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
			syscall.SIGTERM)
		defer stop()
		return exp.Run(ctx)
	},
}

func init() {
	flags := trainCmd.Flags()
	flags.BoolVar(&noResume, "no-resume", false, "Start from fresh weights "+
		"even if a checkpoint exists")
	flags.BoolVar(&noPlayback, "no-playback", false, "Do not render "+
		"playback episodes")
	flags.StringVar(&statsDir, "stats", "", "Directory to save episode "+
		"statistics and learning curves to")
}
