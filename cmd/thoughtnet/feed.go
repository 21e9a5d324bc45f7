package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thoughtnet/thoughtnet-go/pkg/social"
)

func feedCmd() *cobra.Command {
	var community string
	var limit int

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the thought feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, session, err := newAPI()
			if err != nil {
				return err
			}
			feed := api.Feed(session, social.FeedFilter{CommunityID: community})
			defer feed.Close()
			if err := feed.Open(cmd.Context()); err != nil {
				return err
			}
			if limit > social.DefaultFeedLimit {
				if err := feed.LoadMore(cmd.Context(), limit); err != nil {
					return err
				}
			}

			likes := api.Likes(session, feed.ThoughtIDs())
			defer likes.Close()
			if err := likes.Open(cmd.Context()); err != nil {
				return err
			}

			for _, t := range feed.List() {
				printThought(t, likes.State(t.ID))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&community, "community", "", "restrict to one community")
	cmd.Flags().IntVar(&limit, "limit", social.DefaultFeedLimit, "number of thoughts to load")
	return cmd
}

func printThought(t social.Thought, likes social.LikeState) {
	liked := " "
	if likes.Liked {
		liked = "♥"
	}
	fmt.Printf("%s  @%-16s %s %d likes, %d comments\n", t.ID, t.Author.Username, liked, likes.Count, t.CommentsCount)
	for _, line := range strings.Split(t.Content, "\n") {
		fmt.Printf("    %s\n", line)
	}
}

func likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <thought-id>",
		Short: "Toggle your like on a thought",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, session, err := newAPI()
			if err != nil {
				return err
			}
			likes := api.Likes(session, []string{args[0]})
			defer likes.Close()
			if err := likes.Open(cmd.Context()); err != nil {
				return err
			}

			commit := likes.Toggle(cmd.Context(), args[0])
			if err := commit.Wait(); err != nil {
				return err
			}
			state := likes.State(args[0])
			if state.Liked {
				success("liked %s (%d likes)", args[0], state.Count)
			} else {
				success("unliked %s (%d likes)", args[0], state.Count)
			}
			return nil
		},
	}
}

func commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <thought-id> <text>",
		Short: "Comment on a thought",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, session, err := newAPI()
			if err != nil {
				return err
			}
			thread := api.Comments(session, args[0], "")
			defer thread.Close()
			if err := thread.Open(cmd.Context()); err != nil {
				return err
			}

			commit := thread.Post(cmd.Context(), strings.Join(args[1:], " "))
			if err := commit.Wait(); err != nil {
				return err
			}
			success("comment posted (%d in thread)", len(thread.List()))
			return nil
		},
	}
}

func msgCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "msg <user-id> <text>",
		Short: "Send a direct message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, session, err := newAPI()
			if err != nil {
				return err
			}
			conv := api.Conversation(session, args[0])
			defer conv.Close()
			if err := conv.Open(cmd.Context()); err != nil {
				return err
			}

			commit := conv.Send(cmd.Context(), strings.Join(args[1:], " "), "", "")
			if err := commit.Wait(); err != nil {
				return err
			}
			success("sent")
			return nil
		},
	}
}
