package cli

import (
	"github.com/dannyrandall/movies-realtime/internal/movies"
	"github.com/spf13/cobra"
)

func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := opts.client().List(cmd.Context())
			if err != nil {
				return err
			}
			return newOutput(cmd, opts).movies(list)
		},
	}
}

func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			m, err := opts.client().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return newOutput(cmd, opts).movie(m)
		},
	}
}

// movieFlags registers the --title and --year flags shared by create and
// update. Both are required.
func movieFlags(cmd *cobra.Command, title *string, year *int) {
	cmd.Flags().StringVar(title, "title", "", "movie title")
	cmd.Flags().IntVar(year, "year", 0, "release year")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("year")
}

func NewCreateCommand(opts *RootOptions) *cobra.Command {
	var title string
	var year int

	cmd := &cobra.Command{
		Use:   "create --title <title> --year <year>",
		Short: "Create a movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.client().Create(cmd.Context(), movies.Input{Title: &title, Year: &year})
			if err != nil {
				return err
			}
			return newOutput(cmd, opts).movie(m)
		},
	}
	movieFlags(cmd, &title, &year)
	return cmd
}

func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	var title string
	var year int

	cmd := &cobra.Command{
		Use:   "update <id> --title <title> --year <year>",
		Short: "Replace a movie's title and year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			m, err := opts.client().Update(cmd.Context(), id, movies.Input{Title: &title, Year: &year})
			if err != nil {
				return err
			}
			return newOutput(cmd, opts).movie(m)
		},
	}
	movieFlags(cmd, &title, &year)
	return cmd
}

func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			m, err := opts.client().Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			return newOutput(cmd, opts).movie(m)
		},
	}
}

func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print movie events as they happen",
		Long:  "Subscribe to the realtime event stream and print every create, update and delete until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(cmd, opts)
			return opts.client().Watch(cmd.Context(), func(ev movies.Event) {
				out.event(ev)
			})
		},
	}
}
