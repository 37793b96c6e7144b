package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/tree"
)

// ConversationsOptions holds flags for the conversations command.
type ConversationsOptions struct {
	*RootOptions
	All bool
}

// NewConversationsCommand creates the conversations command.
func NewConversationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConversationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "conversations",
		Short:         "List conversations, most recently modified first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConversations(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "include hidden conversations")

	return cmd
}

type conversationRow struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Modified time.Time `json:"modified"`
	Hidden   bool      `json:"hidden"`
	LLMs     []string  `json:"llms"`
}

type conversationList struct {
	Conversations     []conversationRow `json:"conversations"`
	DailyLLMResponses int               `json:"daily_llm_responses"`
}

func runConversations(opts *ConversationsOptions, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	userID, err := s.requireUser()
	if err != nil {
		return err
	}

	list := conversationList{
		Conversations:     []conversationRow{},
		DailyLLMResponses: s.root.DailyLLMResponseCount(userID),
	}
	for _, c := range s.root.ConversationsForUser(userID) {
		if c.Hidden && !opts.All {
			continue
		}
		llms := c.LLMsSelected
		if llms == nil {
			llms = []string{}
		}
		list.Conversations = append(list.Conversations, conversationRow{
			ID:       c.ID,
			Title:    c.Title,
			Modified: c.Modified,
			Hidden:   c.Hidden,
			LLMs:     llms,
		})
	}

	return s.out.Emit(list, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, c := range list.Conversations {
			flag := ""
			if c.Hidden {
				flag = " (hidden)"
			}
			fmt.Fprintf(tw, "%s\t%s%s\t%s\t%s\n", c.ID, c.Title, flag,
				c.Modified.UTC().Format(time.RFC3339), strings.Join(c.LLMs, ","))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "Model replies to you in the last 24h: %d\n", list.DailyLLMResponses)
		return err
	})
}

// TreeOptions holds flags for the tree command.
type TreeOptions struct {
	*RootOptions
	Thread bool
}

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TreeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tree <conversation-id>",
		Short: "Show the message tree of a conversation",
		Long: `Show the reply tree of a conversation with your branch selections.

Reply groups with more than one sibling are marked [shown], [hidden] or
[choice] when no single branch is selected. --thread prints only the path
you see.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Thread, "thread", false, "show only the visible thread")

	return cmd
}

type treeNode struct {
	ID      string     `json:"id"`
	Author  string     `json:"author"`
	Content string     `json:"content"`
	Created time.Time  `json:"created"`
	Shown   *bool      `json:"shown,omitempty"`
	Replies []treeNode `json:"replies,omitempty"`
}

type threadStep struct {
	ID           string   `json:"id"`
	Depth        int      `json:"depth"`
	Author       string   `json:"author"`
	Content      string   `json:"content"`
	Alternatives int      `json:"alternatives"`
	Pending      []string `json:"pending,omitempty"`
}

func runTree(opts *TreeOptions, conversationID string, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	if _, ok := s.root.Conversations().Get(conversationID); !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("unknown conversation %q", conversationID))
	}

	var branches map[string]bool
	if mc, ok := s.root.MyConversation(conversationID, userID); ok {
		branches = mc.MessageBranches
	}
	roots := s.root.MessageTree(conversationID)

	if opts.Thread {
		steps := threadSteps(s.root.VisibleThread(conversationID, userID))
		return s.out.Emit(steps, func(w io.Writer) error {
			for _, st := range steps {
				line := fmt.Sprintf("%s%s %s: %s", strings.Repeat("  ", st.Depth), st.ID, st.Author, tree.Preview(st.Content))
				if st.Alternatives > 1 {
					line += fmt.Sprintf(" (1 of %d)", st.Alternatives)
				}
				if len(st.Pending) > 0 {
					line += fmt.Sprintf(" [choose: %s]", strings.Join(st.Pending, ", "))
				}
				if _, err := fmt.Fprintln(w, line); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return s.out.Emit(treeNodes(roots, branches, false), func(w io.Writer) error {
		return tree.Render(w, roots, branches)
	})
}

func treeNodes(group []*tree.Node, branches map[string]bool, marked bool) []treeNode {
	marked = marked && len(group) > 1
	out := make([]treeNode, 0, len(group))
	for _, n := range group {
		tn := treeNode{
			ID:      n.ID(),
			Author:  tree.Author(n.Message),
			Content: n.Message.Content,
			Created: n.Message.Created,
			Replies: treeNodes(n.Replies, branches, true),
		}
		if shown, ok := branches[n.ID()]; ok && marked {
			tn.Shown = &shown
		}
		out = append(out, tn)
	}
	return out
}

func threadSteps(steps []tree.Step) []threadStep {
	out := make([]threadStep, 0, len(steps))
	for _, st := range steps {
		ts := threadStep{
			ID:           st.Node.ID(),
			Depth:        st.Depth,
			Author:       tree.Author(st.Node.Message),
			Content:      st.Node.Message.Content,
			Alternatives: st.Alternatives,
		}
		for _, p := range st.Pending {
			ts.Pending = append(ts.Pending, p.ID())
		}
		out = append(out, ts)
	}
	return out
}

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	ConversationID string
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "search <query>",
		Short:         "Search users, conversation titles and messages",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConversationID, "conversation", "", "limit message matches to one conversation")

	return cmd
}

type searchHit struct {
	Kind           model.Kind `json:"kind"`
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Text           string     `json:"text"`
}

func runSearch(opts *SearchOptions, query string, cmd *cobra.Command) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	hits := []searchHit{}
	if opts.ConversationID == "" {
		for _, u := range s.root.Users().Search(query) {
			hits = append(hits, searchHit{Kind: model.KindUser, ID: u.ID, Text: u.Name})
		}
		for _, c := range s.root.Conversations().Search(query) {
			hits = append(hits, searchHit{Kind: model.KindConversation, ID: c.ID, ConversationID: c.ID, Text: c.Title})
		}
		for _, tag := range s.root.Tags().Search(query) {
			hits = append(hits, searchHit{Kind: model.KindTag, ID: tag.ID, Text: tag.Title})
		}
	}
	for _, m := range s.root.Messages().Search(query, opts.ConversationID) {
		hits = append(hits, searchHit{Kind: model.KindMessage, ID: m.ID, ConversationID: m.ConversationID, Text: m.Content})
	}

	return s.out.Emit(hits, func(w io.Writer) error {
		if len(hits) == 0 {
			_, err := fmt.Fprintln(w, "No matches.")
			return err
		}
		for _, h := range hits {
			where := ""
			if h.Kind == model.KindMessage {
				where = " in " + h.ConversationID
			}
			if _, err := fmt.Fprintf(w, "%s %s%s: %s\n", h.Kind, h.ID, where, tree.Preview(h.Text)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Yes bool
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the local replica and sync cursor",
		Long: `Delete every cached entity and the sync cursor, as on sign-out.

The next sync fetches a full snapshot from the server.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm deletion")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "reset deletes the local replica; pass --yes to confirm")
	}
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.root.ClearAll(cmd.Context()); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear replica", err)
	}
	return s.out.Success("Local replica cleared.")
}
