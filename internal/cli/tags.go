package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/threadkeep/internal/model"
	"github.com/roach88/threadkeep/internal/root"
)

// NewTagCommand creates the tag command and its subcommands. Tags are
// local labels; they are never sent to the server.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage local tags",
	}
	cmd.AddCommand(newTagListCommand(rootOpts))
	cmd.AddCommand(newTagAddCommand(rootOpts))
	cmd.AddCommand(newTagEditCommand(rootOpts))
	cmd.AddCommand(newTagRemoveCommand(rootOpts))
	return cmd
}

func newTagListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list [query]",
		Short:         "List tags, optionally filtered by title",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			tags := s.root.Tags().Search(query)
			if tags == nil {
				tags = []model.Tag{}
			}
			return s.out.Emit(tags, func(w io.Writer) error {
				if len(tags) == 0 {
					_, err := fmt.Fprintln(w, "No tags.")
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, t := range tags {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Color, t.Title)
				}
				return tw.Flush()
			})
		},
	}
}

func newTagAddCommand(rootOpts *RootOptions) *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:           "add <title>",
		Short:         "Create a tag",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			tag, err := s.root.CreateTag(root.TagInput{Title: args[0], Color: color})
			if err != nil {
				return s.txError(err)
			}
			return s.out.Emit(tag, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created tag %s\n", tag.ID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&color, "color", "#808080", "tag color, #rgb or #rrggbb")

	return cmd
}

func newTagEditCommand(rootOpts *RootOptions) *cobra.Command {
	var title, color string

	cmd := &cobra.Command{
		Use:           "edit <tag-id>",
		Short:         "Change a tag's title or color",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			// Unset flags keep the current value.
			in := root.TagInput{Title: title, Color: color}
			if cur, ok := s.root.Tags().Get(args[0]); ok {
				if !cmd.Flags().Changed("title") {
					in.Title = cur.Title
				}
				if !cmd.Flags().Changed("color") {
					in.Color = cur.Color
				}
			}
			tag, err := s.root.UpdateTag(args[0], in)
			if err != nil {
				return s.txError(err)
			}
			return s.out.Emit(tag, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Updated tag %s\n", tag.ID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&color, "color", "", "new color, #rgb or #rrggbb")

	return cmd
}

func newTagRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <tag-id>",
		Short:         "Delete a tag",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.root.DeleteTag(args[0]); err != nil {
				return s.txError(err)
			}
			return s.out.Emit(map[string]string{"tag_id": args[0]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted tag %s\n", args[0])
				return err
			})
		},
	}
}
