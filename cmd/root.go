// Package cmd implements the sweeper command line interface
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samuelfneumann/sweeper/experiment"
)

var (
	configPath string
	logLevel   string
	logJSON    bool

	// Overrides of the configuration file
	episodes   int
	seed       uint64
	checkpoint string
)

var rootCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Train and watch a Deep Q-learning agent play Minesweeper",
	Long: `sweeper trains a Deep Q-learning agent to play Minesweeper.

Train an agent with the default configuration, resuming from the last
checkpoint if one exists
	sweeper train

Train with a configuration file for 500 episodes
	sweeper train --config sweeper.yaml --episodes 500

Watch the trained agent play a single game
	sweeper play

Print the default configuration
	sweeper config
`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration "+
		"file, missing fields take their default values")
	flags.StringVar(&logLevel, "log-level", "info", "Logging level, one of "+
		"panic, fatal, error, warn, info, debug, trace")
	flags.BoolVar(&logJSON, "log-json", false, "Log in JSON format")
	flags.IntVarP(&episodes, "episodes", "n", experiment.DefaultEpisodes,
		"Number of training episodes")
	flags.Uint64VarP(&seed, "seed", "s", 1, "Random seed")
	flags.StringVar(&checkpoint, "checkpoint", experiment.DefaultCheckpointPath,
		"Checkpoint file, empty to disable checkpointing")

	rootCmd.AddCommand(trainCmd, playCmd, configCmd)
}

// newLogger returns the logger configured by the logging flags
func newLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// loadConfig loads the configuration file, if any, and applies the
// flags which were set on the command line
func loadConfig(cmd *cobra.Command) (experiment.Config, error) {
	c := experiment.DefaultConfig()
	if configPath != "" {
		var err error
		if c, err = experiment.LoadConfig(configPath); err != nil {
			return c, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("episodes") {
		c.Experiment.Episodes = episodes
	}
	if flags.Changed("seed") {
		c.Experiment.Seed = seed
	}
	if flags.Changed("checkpoint") {
		c.Experiment.CheckpointPath = checkpoint
	}
	return c, c.Validate()
}
