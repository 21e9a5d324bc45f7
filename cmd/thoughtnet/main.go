package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "thoughtnet",
		Short: "Command-line client for the ThoughtNet social backend",
		Long: `thoughtnet is a terminal client for the ThoughtNet social network.

It talks to the managed backend the same way the apps do: optimistic
mutations with rollback, realtime change-feed subscriptions, and
RPC side effects.

Configuration comes from thoughtnet.json in the working directory or
THOUGHTNET_* environment variables; the signed-in identity from
THOUGHTNET_USER_ID, THOUGHTNET_USERNAME and THOUGHTNET_ACCESS_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		feedCmd(),
		likeCmd(),
		commentCmd(),
		watchCmd(),
		msgCmd(),
		demoCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
