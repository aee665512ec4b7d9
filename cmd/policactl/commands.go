package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/erazemk/polica/internal/batch"
	"github.com/erazemk/polica/internal/client"
	"github.com/erazemk/polica/internal/model"
)

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}

func parseIDs(args []string, what string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, raw := range args {
		id, err := parseID(raw, what)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func optional(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and keep the session token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) == 1 {
				username = args[0]
			} else {
				fmt.Fprint(os.Stderr, "Username: ")
				sc := bufio.NewScanner(os.Stdin)
				if !sc.Scan() {
					return errors.New("no username given")
				}
				username = strings.TrimSpace(sc.Text())
			}

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			u, err := a.api.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := a.saveToken(a.api.Token()); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (%s)\n", u.Username, u.Role)
			return nil
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.api.Logout(cmd.Context())
			if saveErr := a.saveToken(""); saveErr != nil {
				return saveErr
			}
			if err != nil && !errors.Is(err, client.ErrSessionInvalid) {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func (a *app) passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, err := readPassword("Current password: ")
			if err != nil {
				return err
			}
			next, err := readPassword("New password: ")
			if err != nil {
				return err
			}
			again, err := readPassword("Repeat new password: ")
			if err != nil {
				return err
			}
			if next != again {
				return errors.New("passwords do not match")
			}
			if err := a.api.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Println("Password changed")
			return nil
		},
	}
}

func (a *app) shelvesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shelves",
		Short: "List shelves with their slot counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.api.ShelfStats(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable()
			fmt.Fprintln(tw, "ID\tCABINET\tSHELF\tTOTAL\tFREE\tOCCUPIED")
			for _, s := range stats {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n", s.ID, s.CabinetName, s.Code, s.Total, s.Free, s.Occupied)
			}
			return tw.Flush()
		},
	}
}

func (a *app) freeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free [shelf-id...]",
		Short: "List free locations, optionally of given shelves",
		RunE: func(cmd *cobra.Command, args []string) error {
			shelfIDs, err := parseIDs(args, "shelf")
			if err != nil {
				return err
			}
			if len(shelfIDs) == 0 {
				shelfIDs = []int64{0}
			}

			tw := newTable()
			fmt.Fprintln(tw, "LOCATION\tSHELF")
			for _, shelfID := range shelfIDs {
				locations, err := a.api.ListLocations(cmd.Context(), client.LocationQuery{ShelfID: shelfID, FreeOnly: true})
				if err != nil {
					return err
				}
				for _, l := range locations {
					fmt.Fprintf(tw, "%d\t%d\n", l.ID, l.ShelfID)
				}
			}
			return tw.Flush()
		},
	}
}

func (a *app) addSlotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-slots <shelf-id> <quantity>",
		Short: "Add empty locations to a shelf",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shelfID, err := parseID(args[0], "shelf")
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			locations, err := a.api.CreateLocations(cmd.Context(), shelfID, quantity)
			if err != nil {
				return err
			}
			fmt.Printf("Added %d locations to shelf %d\n", len(locations), shelfID)
			return nil
		},
	}
}

func (a *app) stockCmd() *cobra.Command {
	var (
		editionID   int64
		quantity    int
		shelfIDs    []int64
		status      string
		local       bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Create copies of an edition spread over shelves",
		Long: `Create copies of an edition and place them round-robin over the given
shelves in order. Copies that find no free location are created unplaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := model.ParseStatus(status)
			if err != nil {
				return err
			}
			req := batch.CopiesRequest{EditionID: editionID, Status: st, Quantity: quantity, ShelfIDs: shelfIDs}

			var report batch.Report[batch.CopyResult]
			if local {
				report, err = batch.CreateCopies(cmd.Context(), a.api, req, concurrency)
			} else {
				report, err = a.api.CreateCopies(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			printReport(report)
			if report.Failed > 0 {
				return fmt.Errorf("%d copies failed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&editionID, "edition", "e", 0, "edition id")
	cmd.Flags().IntVarP(&quantity, "quantity", "n", 1, "number of copies")
	cmd.Flags().Int64SliceVar(&shelfIDs, "shelf", nil, "shelf id, repeat or comma-separate for several")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default available)")
	cmd.Flags().BoolVar(&local, "local", false, "create copies one request at a time from this machine")
	cmd.Flags().IntVar(&concurrency, "concurrency", batch.DefaultConcurrency, "requests in flight with --local")
	cmd.MarkFlagRequired("edition")
	return cmd
}

func printReport(report batch.Report[batch.CopyResult]) {
	tw := newTable()
	fmt.Fprintln(tw, "#\tCOPY\tSHELF\tLOCATION\tRESULT")
	for _, it := range report.Items {
		result, copyID := "ok", "-"
		if !it.OK() {
			result = it.Error
		} else if it.Value.Copybook != nil {
			copyID = strconv.FormatInt(it.Value.Copybook.ID, 10)
		}
		a := it.Value.Assignment
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.Index+1, copyID, optional(a.ShelfID), optional(a.LocationID), result)
	}
	tw.Flush()
	fmt.Printf("Batch %s: %s\n", report.ID, report)
}

func (a *app) copiesCmd() *cobra.Command {
	var q client.CopybookQuery
	var status string
	cmd := &cobra.Command{
		Use:   "copies",
		Short: "List copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				st, err := model.ParseStatus(status)
				if err != nil {
					return err
				}
				q.Status = st
			}
			copies, err := a.api.ListCopybooks(cmd.Context(), q)
			if err != nil {
				return err
			}
			tw := newTable()
			fmt.Fprintln(tw, "ID\tEDITION\tSTATUS\tLOCATION")
			for _, cb := range copies {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", cb.ID, cb.EditionTitle, cb.Status, optional(cb.LocationID))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only copies with this status")
	cmd.Flags().Int64Var(&q.EditionID, "edition", 0, "only copies of this edition")
	cmd.Flags().Int64Var(&q.ShelfID, "shelf", 0, "only copies on this shelf")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <copy-id> <available|restoring|written-off>",
		Short: "Change a copy's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "copy")
			if err != nil {
				return err
			}
			st, err := model.ParseStatus(args[1])
			if err != nil {
				return err
			}
			cb, err := a.api.SetStatus(cmd.Context(), id, st)
			if err != nil {
				return err
			}
			fmt.Printf("Copy %d is %s, location %s\n", cb.ID, cb.Status, optional(cb.LocationID))
			return nil
		},
	}
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <copy-id> <location-id|none>",
		Short: "Move a copy to another location or off the shelves",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "copy")
			if err != nil {
				return err
			}
			var target *int64
			if args[1] != "none" {
				locationID, err := parseID(args[1], "location")
				if err != nil {
					return err
				}
				target = &locationID
			}
			cb, err := a.api.Relocate(cmd.Context(), id, target)
			if err != nil {
				return err
			}
			fmt.Printf("Copy %d is on location %s\n", cb.ID, optional(cb.LocationID))
			return nil
		},
	}
}

func (a *app) lendCmd() *cobra.Command {
	var (
		in  client.NewLending
		due string
		on  string
	)
	cmd := &cobra.Command{
		Use:   "lend <copy-id...>",
		Short: "Check copies out to a reader",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "copy")
			if err != nil {
				return err
			}
			in.CopybookIDs = ids
			if in.DateReturnPlanned, err = model.ParseDate(due); err != nil {
				return err
			}
			if on != "" {
				d, err := model.ParseDate(on)
				if err != nil {
					return err
				}
				in.DateLending = &d
			}
			l, err := a.api.CreateLending(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("Lending %d: %d copies to reader %d, due %s\n", l.ID, len(l.Items), l.ReaderID, l.DateReturnPlanned)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&in.ReaderID, "reader", "r", 0, "reader id")
	cmd.Flags().Int64Var(&in.EmployeeID, "employee", 0, "employee id (default: the one linked to your account)")
	cmd.Flags().StringVar(&due, "due", "", "planned return date, YYYY-MM-DD")
	cmd.Flags().StringVar(&on, "date", "", "lending date, YYYY-MM-DD (default today)")
	cmd.MarkFlagRequired("reader")
	cmd.MarkFlagRequired("due")
	return cmd
}

func (a *app) returnCmd() *cobra.Command {
	var on string
	cmd := &cobra.Command{
		Use:   "return <lending-id>",
		Short: "Record the return of a lending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "lending")
			if err != nil {
				return err
			}
			var returned *model.Date
			if on != "" {
				d, err := model.ParseDate(on)
				if err != nil {
					return err
				}
				returned = &d
			}
			l, err := a.api.CloseLending(cmd.Context(), id, returned)
			if err != nil {
				return err
			}
			fmt.Printf("Lending %d returned on %s\n", l.ID, l.DateReturn)
			return nil
		},
	}
	cmd.Flags().StringVar(&on, "date", "", "return date, YYYY-MM-DD (default today)")
	return cmd
}

func (a *app) lendingsCmd() *cobra.Command {
	var (
		q    client.LendingQuery
		open bool
	)
	cmd := &cobra.Command{
		Use:   "lendings",
		Short: "List lendings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if open {
				q.Status = "open"
			}
			return a.printLendings(cmd.Context(), q)
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "only lendings not yet returned")
	cmd.Flags().Int64Var(&q.ReaderID, "reader", 0, "only lendings of this reader")
	return cmd
}

func (a *app) overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List open lendings past their planned return date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.printLendings(cmd.Context(), client.LendingQuery{Status: "overdue"})
		},
	}
}

func (a *app) printLendings(ctx context.Context, q client.LendingQuery) error {
	lendings, err := a.api.ListLendings(ctx, q)
	if err != nil {
		return err
	}
	tw := newTable()
	fmt.Fprintln(tw, "ID\tREADER\tLENT\tDUE\tRETURNED\tCOPIES")
	for _, l := range lendings {
		returned := "-"
		if l.DateReturn != nil {
			returned = l.DateReturn.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n", l.ID, l.ReaderName, l.DateLending, l.DateReturnPlanned, returned, len(l.Items))
	}
	return tw.Flush()
}
