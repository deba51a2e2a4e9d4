package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedtools/readersync/internal/feedlist"
)

const settleTimeout = 2 * time.Minute

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a full subscription list merge and item sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, cleanup, err := openAccount(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			acct.source.Update()
			if err := waitSettled(acct.source, settleTimeout); err != nil {
				return err
			}
			printTree(cmd, acct.source.Tree())
			return nil
		},
	}
}

func newQuickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quick",
		Short: "Run an incremental update, skipping unchanged feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, cleanup, err := openAccount(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			acct.source.Login(0)
			if err := waitSettled(acct.source, settleTimeout); err != nil {
				return err
			}
			acct.source.QuickUpdate()
			return waitSettled(acct.source, settleTimeout)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the local subscription tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, cleanup, err := openAccount(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			printTree(cmd, acct.source.Tree())
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <feed-url>",
		Short: "Subscribe to a feed on the remote account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, cleanup, err := openAccount(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			acct.source.AddSubscription(args[0])
			if err := waitSettled(acct.source, settleTimeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subscribed to %s\n", args[0])
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <feed-url>",
		Short: "Unsubscribe from a feed on the remote account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, cleanup, err := openAccount(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			node := acct.source.Tree().FindBySource(args[0])
			if node == nil {
				return fmt.Errorf("no local feed with source %s", args[0])
			}
			acct.source.RemoveNode(node)
			if err := waitSettled(acct.source, settleTimeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unsubscribed from %s\n", args[0])
			return nil
		},
	}
}

func newReadCmd() *cobra.Command {
	return markCmd("read", "Mark an item read on the remote account", true, false)
}

func newUnreadCmd() *cobra.Command {
	return markCmd("unread", "Mark an item unread on the remote account", false, false)
}

func newStarCmd() *cobra.Command {
	return markCmd("star", "Star an item on the remote account", true, true)
}

func newUnstarCmd() *cobra.Command {
	return markCmd("unstar", "Unstar an item on the remote account", false, true)
}

func markCmd(use, short string, state, starred bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <item-guid> <feed-url>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, cleanup, err := openAccount(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			if starred {
				acct.source.MarkItemStarred(args[0], args[1], state)
			} else {
				acct.source.MarkItemRead(args[0], args[1], state)
			}
			return waitSettled(acct.source, settleTimeout)
		},
	}
}

func printTree(cmd *cobra.Command, tree *feedlist.Tree) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tree.Root.Title)
	printChildren(cmd, tree.Root, 1)
}

func printChildren(cmd *cobra.Command, n *feedlist.Node, depth int) {
	out := cmd.OutOrStdout()
	indent := strings.Repeat("  ", depth)
	for _, child := range n.Children {
		marker := ""
		if !child.Available {
			marker = " [unavailable: " + child.UpdateError + "]"
		}
		if child.Folder {
			fmt.Fprintf(out, "%s%s/%s\n", indent, child.Title, marker)
			printChildren(cmd, child, depth+1)
			continue
		}
		fmt.Fprintf(out, "%s%s (%s)%s\n", indent, child.Title, child.Subscription.Source, marker)
	}
}
