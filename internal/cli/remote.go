package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type remoteRow struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	ServerMessages int    `json:"server_messages"`
	LocalMessages  int    `json:"local_messages"`
	Local          bool   `json:"local"`
}

type remoteReport struct {
	Conversations []remoteRow `json:"conversations"`
	InSync        bool        `json:"in_sync"`
}

// NewRemoteCommand creates the remote command.
func NewRemoteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remote",
		Short: "Compare the local replica with the server",
		Long: `List the conversations the server holds for you next to what the
local replica has cached. The replica is not modified; run sync to
converge it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.cfg.RequireServer(); err != nil {
				return WrapExitError(ExitCommandError, "remote needs a server", err)
			}

			convs, err := s.client.ListConversations(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "list server conversations", err)
			}
			msgs, err := s.client.ListMessages(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "list server messages", err)
			}
			perConversation := make(map[string]int, len(convs))
			for _, m := range msgs {
				perConversation[m.ConversationID]++
			}

			report := remoteReport{Conversations: []remoteRow{}, InSync: true}
			for _, c := range convs {
				_, local := s.root.Conversations().Get(c.ID)
				row := remoteRow{
					ID:             c.ID,
					Title:          c.Title,
					ServerMessages: perConversation[c.ID],
					LocalMessages:  len(s.root.Messages().ByConversation(c.ID)),
					Local:          local,
				}
				if !row.Local || row.LocalMessages != row.ServerMessages {
					report.InSync = false
				}
				report.Conversations = append(report.Conversations, row)
			}

			return s.out.Emit(report, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, r := range report.Conversations {
					flag := ""
					if !r.Local {
						flag = " (missing locally)"
					}
					fmt.Fprintf(tw, "%s\t%s\tserver %d\tlocal %d%s\n", r.ID, r.Title, r.ServerMessages, r.LocalMessages, flag)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if report.InSync {
					_, err := fmt.Fprintln(w, "Replica matches the server.")
					return err
				}
				_, err := fmt.Fprintln(w, "Replica differs from the server; run sync.")
				return err
			})
		},
	}
}
