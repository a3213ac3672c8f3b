// Command client is the developer console: one browser tab's page-side
// contexts attached to a running background server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"proof_bridge/internal/config"
	"proof_bridge/internal/service/app"
	"proof_bridge/internal/utils/log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "client [page-url]",
	Short: "Developer console for the proof bridge",
	Long:  `Hosts content, injected, popup and widget contexts for one page and connects them to the background server.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		conf, err := config.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			conf, err = config.Default(), nil
		}
		if err != nil {
			return err
		}

		conf.Logger.Quiet = true
		if err := log.Init(&conf.Logger); err != nil {
			return err
		}
		defer log.Sync()

		pageURL := "https://www.linkedin.com/feed/"
		if len(args) == 1 {
			pageURL = args[0]
		}

		ctx := context.Background()
		c := app.NewApp(conf, pageURL)
		if err := c.Connect(ctx); err != nil {
			return err
		}
		defer c.Stop()

		c.Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.Flags().StringP("config", "c", config.DefaultFile, "Path to configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
