package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cmsconsultores/cmsweb/internal/contacts"
)

func newContactsCmd() *cobra.Command {
	contactsCmd := &cobra.Command{
		Use:   "contacts",
		Short: "Inspect and manage the contact ledger",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print every stored submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContactStore(cmd.Context(), func(s *contacts.Store) error {
				snap, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				if snap.Corrupt {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is corrupt; it will be reset on the next submission\n", s.Key())
				}
				records, skipped := snap.Ledger.Records()
				if skipped > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped %d non-object entries\n", skipped)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), records)
				}
				return printTable(cmd.OutOrStdout(), records)
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print as a JSON array")

	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export submissions as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContactStore(cmd.Context(), func(s *contacts.Store) error {
				snap, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				records, _ := snap.Ledger.Records()
				if out == "" || out == "-" {
					return contacts.WriteCSV(cmd.OutOrStdout(), records)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := contacts.WriteCSV(f, records); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d contacts to %s\n", len(records), out)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")

	var data string
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Store one submission, as the contact endpoint would",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := []byte(data)
			if data == "" || data == "-" {
				var err error
				if body, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			return withContactStore(cmd.Context(), func(s *contacts.Store) error {
				rec, err := s.Submit(cmd.Context(), body)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved contact at %s\n", rec.Timestamp())
				return nil
			})
		},
	}
	submitCmd.Flags().StringVar(&data, "data", "", "JSON object to store (default: read stdin)")

	quarantinedCmd := &cobra.Command{
		Use:   "quarantined",
		Short: "List corrupt ledgers that were set aside",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContactStore(cmd.Context(), func(s *contacts.Store) error {
				objs, err := s.Quarantined(cmd.Context())
				if err != nil {
					return err
				}
				if len(objs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No quarantined ledgers.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tSIZE\tLAST MODIFIED")
				for _, o := range objs {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.UTC().Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			})
		},
	}

	contactsCmd.AddCommand(listCmd, exportCmd, submitCmd, quarantinedCmd)
	return contactsCmd
}

func printJSON(w io.Writer, records []contacts.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func printTable(w io.Writer, records []contacts.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No contacts.")
		return nil
	}
	cols := contacts.Columns(records)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
	row := make([]string, len(cols))
	for _, rec := range records {
		for i, col := range cols {
			row[i] = strings.ReplaceAll(rec.String(col), "\n", " ")
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
