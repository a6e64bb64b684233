package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrennanTM/vacraft/internal/browse"
)

var browseCmd = &cobra.Command{
	Use:   "browse [number|id]",
	Short: "Browse stored runs in a terminal UI",
	Long:  "Without an argument, lists every stored run. With a run number or id prefix, opens that run's user table.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		repo := s.RunRepo()
		if len(args) == 1 {
			run, err := lookupRun(cmd, repo, args)
			if err != nil {
				return err
			}
			users, err := repo.Users(ctx, run.ID)
			if err != nil {
				return fmt.Errorf("load users: %w", err)
			}
			return browse.Run(browse.NewForRun(ctx, repo, *run, users))
		}

		runs, err := repo.List(ctx, 0)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		return browse.Run(browse.New(ctx, repo, runs))
	},
}
