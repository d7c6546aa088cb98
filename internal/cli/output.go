package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dannyrandall/movies-realtime/internal/movies"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// output writes command results as a table or as JSON.
type output struct {
	format string
	w      io.Writer
}

func newOutput(cmd *cobra.Command, opts *RootOptions) *output {
	return &output{format: opts.Format, w: cmd.OutOrStdout()}
}

func (o *output) movies(list []movies.Movie) error {
	if o.format == "json" {
		return o.json(list)
	}

	table := tablewriter.NewWriter(o.w)
	table.SetHeader([]string{"ID", "Title", "Year"})
	for _, m := range list {
		table.Append([]string{strconv.FormatInt(m.ID, 10), m.Title, strconv.Itoa(m.Year)})
	}
	table.Render()
	return nil
}

func (o *output) movie(m movies.Movie) error {
	if o.format == "json" {
		return o.json(m)
	}
	return o.movies([]movies.Movie{m})
}

// event prints one line per event so watch output can be piped.
func (o *output) event(ev movies.Event) {
	if o.format == "json" {
		json.NewEncoder(o.w).Encode(ev)
		return
	}
	fmt.Fprintf(o.w, "%s\t%d\t%s (%d)\n", ev.Type, ev.Data.ID, ev.Data.Title, ev.Data.Year)
}

func (o *output) json(v interface{}) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
