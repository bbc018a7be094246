package cmd

import (
	"TrackTalk/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the TrackTalk HTTP server",
	Long:  `Start the TrackTalk HTTP server, serving the playlist comment and sharing API.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
