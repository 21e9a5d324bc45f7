package main

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thoughtnet/thoughtnet-go/internal/stubserver"
	"github.com/thoughtnet/thoughtnet-go/pkg/backend"
	"github.com/thoughtnet/thoughtnet-go/pkg/realtime"
	"github.com/thoughtnet/thoughtnet-go/pkg/social"
)

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the sync engine against an in-process stub backend",
		Long: `demo seeds an in-memory backend stub with two users and a thought,
then walks the whole optimistic path: like with rollback-free commit,
double-click conflict swallowing, comment with realtime convergence,
and the resulting notification arriving on the author's feed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			stub := stubserver.New()
			srv := httptest.NewServer(stub.Handler())
			defer srv.Close()
			wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime"

			stub.Seed(social.TableProfiles,
				stubserver.Row{"id": "u1", "username": "ada"},
				stubserver.Row{"id": "u2", "username": "lin"},
			)
			stub.Seed(social.TableThoughts,
				stubserver.Row{"id": "p1", "user_id": "u1", "content": "hello, network", "likes_count": 0, "visibility": "public"},
			)

			b := backend.New(srv.URL, "demo-key", backend.WithHTTPClient(http.DefaultClient))
			rt := realtime.New(wsURL, "demo-key")
			api := social.NewAPI(b,
				social.WithRealtime(rt),
				social.WithAlerter(terminalAlerter()),
			)

			viewer := social.NewSession("u2", "lin", "demo-token")
			author := social.NewSession("u1", "ada", "demo-token")

			likes := api.Likes(viewer, []string{"p1"})
			defer likes.Close()
			if err := likes.Open(ctx); err != nil {
				return err
			}
			authorFeed := api.Notifications(author)
			defer authorFeed.Close()
			if err := authorFeed.Open(ctx); err != nil {
				return err
			}

			info("lin double-clicks like on ada's thought")
			first := likes.Toggle(ctx, "p1")
			if err := first.Wait(); err != nil {
				return err
			}
			state := likes.State("p1")
			success("liked: count=%d liked=%v (second click would conflict and be swallowed)", state.Count, state.Liked)

			thread := api.Comments(viewer, "p1", "u1")
			defer thread.Close()
			if err := thread.Open(ctx); err != nil {
				return err
			}
			info("lin comments")
			if err := thread.Post(ctx, "love this").Wait(); err != nil {
				return err
			}
			success("thread has %d comment(s), none duplicated", len(thread.List()))

			if err := authorFeed.LoadMore(ctx, 10); err != nil {
				return err
			}
			for _, n := range authorFeed.List() {
				printNotification(n)
			}
			success("ada has %d unread notification(s)", authorFeed.UnreadCount())
			return nil
		},
	}
}
