package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func newCreateAdminCommand(ctx *commandContext) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long:  "Create an administrator account. When --password is omitted the password is read from the first line of stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = line
			}

			db, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			admin, err := auth.NewAdmins(db.Gorm).CreateAdmin(cmd.Context(), username, password)
			if errors.Is(err, auth.ErrDuplicate) {
				return fmt.Errorf("admin %q already exists", strings.TrimSpace(username))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (id %d)\n", admin.Username, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Admin password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var from, to, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export attendance between two dates as CSV",
		Long:  "Export attendance between --from and --to (YYYY-MM-DD, both inclusive). Writes to stdout unless --out is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			db, err := ctx.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			svc := attendance.NewService(attendance.NewRepository(db.Gorm), loc, nil)
			start, err := svc.ParseDay(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := svc.ParseDay(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			rows, err := svc.Between(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := attendance.WriteCSV(w, rows, loc); err != nil {
				return err
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", len(rows), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, or - for stdout")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
