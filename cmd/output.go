package main

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// now is the clock used by commands; tests replace it.
var now = func() time.Time { return time.Now().UTC() }

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

// filterFlagNames are the list filters shared by leads list and export.
// Each maps onto the query parameter of the same name with "-" as "_".
var filterFlagNames = []string{"search", "city", "sector", "status", "priority", "has-website", "min-score", "max-score"}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "match name or city")
	cmd.Flags().String("city", "", "exact city")
	cmd.Flags().String("sector", "", "sector code")
	cmd.Flags().String("status", "", "pipeline status")
	cmd.Flags().String("priority", "", "hot, warm or cold")
	cmd.Flags().String("has-website", "", "true or false")
	cmd.Flags().String("min-score", "", "minimum prospect score")
	cmd.Flags().String("max-score", "", "maximum prospect score")
}

// filterValues turns the changed filter flags into query values so the CLI
// parses filters exactly like the API does.
func filterValues(cmd *cobra.Command) url.Values {
	v := url.Values{}
	for _, name := range append(filterFlagNames, "page", "per-page") {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		v.Set(strings.ReplaceAll(name, "-", "_"), f.Value.String())
	}
	return v
}
