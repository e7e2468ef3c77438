package main

import (
	"chat-live/infrastructure/storage"
	"chat-live/internal"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type options struct {
	dbPath string
	limit  int
	plain  bool
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "inspect",
		Short:         "Read-only view of the chat-live BadgerDB",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB (defaults to BADGER_FILEPATH)")
	root.PersistentFlags().IntVar(&opts.limit, "limit", 100, "Maximum number of rows")
	root.PersistentFlags().BoolVar(&opts.plain, "plain", false, "Disable colours")

	var room int64
	messages := &cobra.Command{
		Use:   "messages",
		Short: "List the messages of a room, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return scan(out, opts, fmt.Sprintf("msg:%d:", room))
		},
	}
	messages.Flags().Int64Var(&room, "room", 0, "Room id")
	_ = messages.MarkFlagRequired("room")

	users := &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listUsers(out, opts)
		},
	}

	rooms := &cobra.Command{
		Use:   "rooms",
		Short: "Count stored messages per room",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return countRooms(out, opts)
		},
	}

	var prefix string
	raw := &cobra.Command{
		Use:   "raw",
		Short: "List any key by prefix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return scan(out, opts, prefix)
		},
	}
	raw.Flags().StringVar(&prefix, "prefix", "", "Key prefix")

	root.AddCommand(messages, users, rooms, raw)
	return root
}

func openDB(path string) (*badger.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("no database path, use --db or BADGER_FILEPATH")
	}
	// BypassLockGuard allows reading while the server holds the lock
	return badger.Open(badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
}

func scan(out io.Writer, opts *options, prefix string) error {
	db, err := openDB(opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := internal.Scan(db, prefix, opts.limit, storage.MapRow)
	if err != nil {
		return err
	}
	render(out, rows, opts.plain)
	return nil
}

func listUsers(out io.Writer, opts *options) error {
	db, err := openDB(opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := storage.ListUsers(db)
	if err != nil {
		return err
	}
	if opts.limit > 0 && len(users) > opts.limit {
		users = users[:opts.limit]
	}
	if len(users) == 0 {
		fmt.Fprintln(out, paint(opts.plain, color.Yellow, "No rows"))
		return nil
	}

	table := newTable(out, []string{"ID", "Name", "Email", "Status", "Status message", "Created"})
	for _, u := range users {
		table.Append([]string{
			strconv.FormatInt(int64(u.ID), 10),
			paint(opts.plain, color.Cyan, u.Name),
			u.Email,
			u.Status.String(),
			u.StatusMessage,
			u.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
	fmt.Fprintln(out, paint(opts.plain, color.Green, fmt.Sprintf("%d users", len(users))))
	return nil
}

func countRooms(out io.Writer, opts *options) error {
	db, err := openDB(opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := storage.CountMessages(db)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintln(out, paint(opts.plain, color.Yellow, "No rows"))
		return nil
	}

	rooms := lo.Keys(counts)
	slices.Sort(rooms)
	table := newTable(out, []string{"Room", "Messages"})
	for _, room := range rooms {
		table.Append([]string{strconv.FormatInt(int64(room), 10), strconv.Itoa(counts[room])})
	}
	table.Render()
	fmt.Fprintln(out, paint(opts.plain, color.Green, fmt.Sprintf("%d rooms", len(rooms))))
	return nil
}

func newTable(out io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func render(out io.Writer, rows []internal.InspectRow, plain bool) {
	if len(rows) == 0 {
		fmt.Fprintln(out, paint(plain, color.Yellow, "No rows"))
		return
	}

	table := newTable(out, []string{"Key", "Type", "Timestamp", "Entity ID", "Namespace", "Detail"})
	for _, row := range rows {
		detail := row.Detail
		if strings.HasPrefix(detail, "corrupted") {
			detail = paint(plain, color.Red, detail)
		}
		table.Append([]string{row.Key, paint(plain, color.Cyan, row.Type), row.Timestamp, row.EntityID, row.Namespace, detail})
	}
	table.Render()
	fmt.Fprintln(out, paint(plain, color.Green, fmt.Sprintf("%d rows", len(rows))))
}

func paint(plain bool, c color.Color, s string) string {
	if plain {
		return s
	}
	return c.Render(s)
}
