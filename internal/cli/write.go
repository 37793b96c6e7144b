package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/threadkeep/internal/root"
)

// NewNewCommand creates the new command.
func NewNewCommand(rootOpts *RootOptions) *cobra.Command {
	var llms []string

	cmd := &cobra.Command{
		Use:           "new <title>",
		Short:         "Start a conversation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			userID, err := s.requireUser()
			if err != nil {
				return err
			}
			conv, member, err := s.root.CreateConversation(cmd.Context(), root.CreateConversationInput{
				Title:        args[0],
				OwnerID:      userID,
				LLMsSelected: llms,
			})
			if err != nil {
				return s.txError(err)
			}
			return s.out.Emit(map[string]string{"conversation_id": conv.ID, "member_id": member.ID}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created conversation %s\n", conv.ID)
				return err
			})
		},
	}

	cmd.Flags().StringSliceVar(&llms, "llm", nil, "model to enable (repeatable)")

	return cmd
}

// NewReplyCommand creates the reply command.
func NewReplyCommand(rootOpts *RootOptions) *cobra.Command {
	var replyTo string

	cmd := &cobra.Command{
		Use:   "reply <conversation-id> <content>",
		Short: "Post a message",
		Long: `Post a message to a conversation, as a root or as a reply.

Replying next to an existing reply forks the thread; the new message becomes
your shown branch.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			userID, err := s.requireUser()
			if err != nil {
				return err
			}
			in := root.CreateMessageInput{
				ConversationID: args[0],
				AuthorID:       userID,
				ReplyToID:      replyTo,
				Content:        args[1],
			}
			msg, err := s.root.CreateMessage(cmd.Context(), in)
			if err != nil {
				return s.txError(err)
			}
			return s.out.Emit(map[string]string{"message_id": msg.ID}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Posted message %s\n", msg.ID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&replyTo, "to", "", "message id to reply to")

	return cmd
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "select <conversation-id> <message-id>",
		Short:         "Show one branch and hide its siblings",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			userID, err := s.requireUser()
			if err != nil {
				return err
			}
			member, err := s.root.SelectBranch(cmd.Context(), args[0], userID, args[1])
			if err != nil {
				return s.txError(err)
			}
			return s.out.Emit(member.MessageBranches, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Selected %s\n", args[1])
				return err
			})
		},
	}
}

// NewHideCommand creates the hide command, or the show command when hide
// is false.
func NewHideCommand(rootOpts *RootOptions, hide bool) *cobra.Command {
	use, short, verb := "show", "Show a hidden conversation in your list", "Shown"
	if hide {
		use, short, verb = "hide", "Hide a conversation from your list", "Hidden"
	}

	return &cobra.Command{
		Use:           use + " <conversation-id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			userID, err := s.requireUser()
			if err != nil {
				return err
			}
			toggle := s.root.ShowConversation
			if hide {
				toggle = s.root.HideConversation
			}
			member, err := toggle(cmd.Context(), args[0], userID)
			if err != nil {
				return s.txError(err)
			}
			return s.out.Emit(map[string]bool{"hidden": member.Hidden}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s %s\n", verb, args[0])
				return err
			})
		},
	}
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "models <conversation-id> [model...]",
		Short:         "Set the models that answer you in a conversation",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			userID, err := s.requireUser()
			if err != nil {
				return err
			}
			member, err := s.root.SetConversationLLMs(cmd.Context(), args[0], userID, args[1:])
			if err != nil {
				return s.txError(err)
			}
			return s.out.Emit(member.LLMsSelected, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Models for %s: %v\n", args[0], member.LLMsSelected)
				return err
			})
		},
	}
}
