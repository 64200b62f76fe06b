package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samuelfneumann/sweeper/experiment"
)

var delay time.Duration

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Watch a trained agent play a single game",
	Long: `Play a single game of Minesweeper with the agent restored from its
checkpoint. The agent acts greedily and does not learn from the game.`,
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
		c.Experiment.Resume = true

		env, agent, err := c.CreateAgent(logger)
		if err != nil {
			return err
		}
		defer agent.Close()

		outcome, steps, err := experiment.Play(env, agent, os.Stdout, delay)
		if err != nil {
			return err
		}
		safe := c.Environment.Cells() - env.Mines()
		logger.WithFields(logrus.Fields{
			"outcome": outcome.String(),
			"steps":   steps,
			"opened":  fmt.Sprintf("%d/%d", env.Opened(), safe),
		}).Info("game finished")
		return nil
	},
}

func init() {
	playCmd.Flags().DurationVar(&delay, "delay",
		experiment.DefaultPlaybackDelay, "Delay between rendered frames")
}
