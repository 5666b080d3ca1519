package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitdiag/bitdiag/pkg/course"
)

func newDiveCmd() *cobra.Command {
	var (
		aim    bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "dive [file]",
		Short: "Plot a submarine course and print horizontal × depth",
		Args:  inputArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			cmds, err := course.Parse(text)
			if err != nil {
				return err
			}
			pos := course.Plot(cmds)
			if aim {
				pos = course.PlotWithAim(cmds)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, struct {
					course.Position
					Product int64 `json:"product"`
				}{pos, pos.Product()})
			}
			fmt.Fprintf(out, "horizontal: %d\n", pos.Horizontal)
			fmt.Fprintf(out, "depth:      %d\n", pos.Depth)
			fmt.Fprintf(out, "product:    %d\n", pos.Product())
			return nil
		},
	}
	cmd.Flags().BoolVar(&aim, "aim", false, "interpret up/down as aim changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}
