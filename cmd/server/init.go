package main

import (
	"fmt"
	"path/filepath"
	"proof_bridge/internal/config"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long:  `Create a configuration file with local defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")

		conf := config.Default()
		conf.Path = filepath.Join(dir, config.DefaultFile)
		if err := conf.Save(); err != nil {
			return err
		}
		fmt.Println("wrote", conf.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("dir", "d", ".", "Location of directory for storing generated files")
}
