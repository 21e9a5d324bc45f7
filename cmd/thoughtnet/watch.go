package main

import (
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/thoughtnet/thoughtnet-go/pkg/social"
)

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream your notifications until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, session, err := newAPI()
			if err != nil {
				return err
			}
			feed := api.Notifications(session)
			defer feed.Close()
			if err := feed.Open(cmd.Context()); err != nil {
				return err
			}

			info("watching notifications for @%s (ctrl-c to stop)", session.Username)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt)

			warned := false
			seen := make(map[string]bool)
			for _, n := range feed.List() {
				seen[n.ID] = true
				printNotification(n)
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return nil
				case <-ticker.C:
					for _, n := range feed.List() {
						if !seen[n.ID] {
							seen[n.ID] = true
							printNotification(n)
						}
					}
					if feed.Degraded() && !warned {
						warned = true
						warn("realtime degraded; showing last known state")
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "render interval")
	return cmd
}

func printNotification(n social.Notification) {
	read := " "
	if !n.Read {
		read = "●"
	}
	info("%s [%s] %s %s", read, n.Type, n.CreatedAt.Local().Format("15:04:05"), n.Title)
}
