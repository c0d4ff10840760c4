package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/bryanchriswhite/TaskGroups/internal/tasks"
	"github.com/bryanchriswhite/TaskGroups/internal/window"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the current window groups once",
	Long: `Query the window system once and print the windows grouped by
application class.

With --from-stdin, the last feed line read from stdin is decoded and printed
instead, which makes it easy to inspect the output of a running watch.`,
	Example: `  # Same JSON line the watch command prints
  taskgroups list

  # Human-readable table
  taskgroups list --format table

  # Pretty-print a captured feed
  taskgroups watch | head -n 1 | taskgroups list --from-stdin --format yaml`,
	RunE: runList,
}

var (
	listFormat    string
	listFromStdin bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "json", "output format (json, yaml or table)")
	listCmd.Flags().BoolVar(&listFromStdin, "from-stdin", false, "decode a feed line from stdin instead of querying the window system")
}

func runList(cmd *cobra.Command, args []string) error {
	switch listFormat {
	case "json", "yaml", "table":
	default:
		return fmt.Errorf("unsupported format: %s (use 'json', 'yaml' or 'table')", listFormat)
	}

	var (
		registry *tasks.Registry
		err      error
	)
	if listFromStdin {
		registry, err = readFeed(cmd.InOrStdin())
	} else {
		registry, err = queryRegistry(cmd)
	}
	if err != nil {
		return err
	}

	return printRegistry(cmd.OutOrStdout(), registry, listFormat)
}

// queryRegistry builds a registry from one listing of the configured backend
func queryRegistry(cmd *cobra.Command) (*tasks.Registry, error) {
	configMgr, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := configMgr.Get()
	ctx := cmd.Context()

	backend, err := window.NewBackend(cfg.Backend, time.Duration(cfg.PollIntervalMs)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to open window system: %w", err)
	}
	defer backend.Close()

	if err := backend.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", backend.Name(), err)
	}

	windows, err := backend.ListWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}

	registry := tasks.New()
	for _, w := range windows {
		registry.AddTitled(w.ID, w.Class, w.Title, w.InitialTitle)
	}
	return registry, nil
}

// readFeed decodes the last non-empty line of a feed
func readFeed(r io.Reader) (*tasks.Registry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var last []byte
	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if last == nil {
		return nil, errors.New("no feed line on stdin")
	}
	return tasks.Decode(last)
}

func printRegistry(w io.Writer, registry *tasks.Registry, format string) error {
	switch format {
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		groups := registry.Groups()
		if len(groups) == 0 {
			// yaml encodes an empty slice as [] but a nil one as null
			groups = []tasks.Group{}
		}
		if err := encoder.Encode(groups); err != nil {
			return err
		}
		return encoder.Close()
	case "table":
		return printGroupsTable(w, registry.Groups())
	default:
		data, err := registry.Encode()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err = buf.WriteTo(w)
		return err
	}
}

func printGroupsTable(out io.Writer, groups []tasks.Group) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "CLASS\tGROUP\tID\tTITLE")
	fmt.Fprintln(w, "-----\t-----\t--\t-----")

	for _, g := range groups {
		for _, t := range g.Tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Class, g.Title, t.ID, t.Title)
		}
	}

	return nil
}
