// Command server runs the background context: the authoritative store behind
// the privileged port endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Background context of the proof bridge",
	Long:  `Serves the background store and operations to content contexts over websocket ports.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
