package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itohio/godaq/pkg/core"
	"github.com/itohio/godaq/pkg/daq"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := daq.Ports()
		if err != nil {
			return fmt.Errorf("failed to list serial ports: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, p := range ports {
			if p.Description != "" {
				fmt.Fprintf(out, "%s\t%s\n", p.Name, p.Description)
			} else {
				fmt.Fprintln(out, p.Name)
			}
		}
		fmt.Fprintf(out, "%s\t%s\n", daq.MockPort, core.MockDescription)
		return nil
	},
}
