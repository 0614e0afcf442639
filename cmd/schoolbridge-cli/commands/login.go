package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Runs the login handshake and prints the session token.",
	Run: func(cmd *cobra.Command, args []string) {
		_, token := createSession(cmd.Context())
		fmt.Println(token)
	},
}
