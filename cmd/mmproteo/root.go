package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mmproteo/internal/commands"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "mmproteo",
		Short:         "Retrieve and convert mass spectrometry files from PRIDE",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand(&configFlag, &verbose))
	rootCmd.AddCommand(newCommandsCommand())
	rootCmd.AddCommand(newConfigCommand(&configFlag))

	return rootCmd
}

func newCommandsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the commands accepted by run",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), commands.Default().Describe())
			return err
		},
	}
}
