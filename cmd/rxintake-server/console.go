package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rxintake/rxintake/internal/domain/admin"
	"github.com/rxintake/rxintake/internal/domain/intake"
	"github.com/rxintake/rxintake/internal/domain/review"
	"github.com/rxintake/rxintake/internal/platform/session"
)

// console is one process-wide session manager plus the services the
// console commands drive.
type console struct {
	manager   *session.Manager
	intake    *intake.Service
	review    *review.Service
	directory *admin.Directory

	in  io.Reader
	out io.Writer
	err io.Writer
}

// levelFor keeps console output quiet outside development.
func levelFor(dev bool) zerolog.Level {
	if dev {
		return zerolog.InfoLevel
	}
	return zerolog.WarnLevel
}

// ctx carries the restored session, if any.
func (c *console) ctx(parent context.Context) context.Context {
	return c.manager.Context(parent)
}

func consoleCmd() *cobra.Command {
	var con *console

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Staff console backed by the persisted session",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env, cmd.ErrOrStderr()).Level(levelFor(cfg.IsDev()))

			d, err := openDeps(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			deferClose(d.Close)

			slot, closeSlot, err := buildSlot(cfg)
			if err != nil {
				return err
			}
			deferClose(closeSlot)

			con = &console{
				manager:   session.NewManager(d.authn, slot, logger),
				intake:    d.intake,
				review:    d.review,
				directory: d.directory,
				in:        cmd.InOrStdin(),
				out:       cmd.OutOrStdout(),
				err:       cmd.ErrOrStderr(),
			}
			con.manager.Restore(cmd.Context())
			return nil
		},
	}

	get := func() *console { return con }
	cmd.AddCommand(
		loginCmd(get),
		logoutCmd(get),
		whoamiCmd(get),
		submissionsCmd(get),
		statusCmd(get),
		usersCmd(get),
		submitCmd(get),
	)
	return cmd
}

func loginCmd(get func() *console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			if password == "" {
				p, err := readSecret(c.in, c.err, "Password: ")
				if err != nil {
					return err
				}
				password = p
			}

			s, err := c.manager.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Signed in as %s (%s)\n", s.Username, displayName(s.FullName))
			return nil
		},
	}
	cmd.Flags().String("username", "", "Username")
	cmd.Flags().String("password", "", "Password (read from stdin when omitted)")
	return cmd
}

func logoutCmd(get func() *console) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			if err := c.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Signed out")
			return nil
		},
	}
}

func whoamiCmd(get func() *console) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			s, ok := c.manager.Current()
			if !ok {
				return session.ErrNoSession
			}
			return writeJSON(c.out, s)
		},
	}
}

func submissionsCmd(get func() *console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List submissions, or show one with --id",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			ctx := c.ctx(cmd.Context())

			if raw, _ := cmd.Flags().GetString("id"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid --id: %w", err)
				}
				sub, err := c.review.Get(ctx, id)
				if err != nil {
					return err
				}
				return writeJSON(c.out, sub)
			}

			subs, err := c.review.List(ctx)
			if err != nil {
				return err
			}
			printSubmissions(c.out, subs)
			return nil
		},
	}
	cmd.Flags().String("id", "", "Submission id")
	return cmd
}

func statusCmd(get func() *console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Move a submission forward to a new status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			raw, _ := cmd.Flags().GetString("id")
			to, _ := cmd.Flags().GetString("to")
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			next, ok := intake.ParseStatus(to)
			if !ok {
				return fmt.Errorf("--to must be one of pending, processing, completed")
			}

			sub, err := c.review.Transition(c.ctx(cmd.Context()), id, next)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Submission %s is now %s\n", sub.ID, sub.Status)
			return nil
		},
	}
	cmd.Flags().String("id", "", "Submission id")
	cmd.Flags().String("to", "", "Target status")
	return cmd
}

func usersCmd(get func() *console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage staff accounts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List staff accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			accts, err := c.directory.List(c.ctx(cmd.Context()))
			if err != nil {
				return err
			}
			printAccounts(c.out, accts)
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			fullName, _ := cmd.Flags().GetString("full-name")
			inactive, _ := cmd.Flags().GetBool("inactive")

			acct, err := c.directory.Create(c.ctx(cmd.Context()), admin.NewAccount{
				Username: username,
				Password: password,
				FullName: fullName,
				Active:   !inactive,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Created account %s (%s)\n", acct.Username, acct.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Username")
	createCmd.Flags().String("password", "", "Password")
	createCmd.Flags().String("full-name", "", "Display name")
	createCmd.Flags().Bool("inactive", false, "Create the account deactivated")

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Edit a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			raw, _ := cmd.Flags().GetString("id")
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			in, err := accountUpdateFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := c.directory.Update(c.ctx(cmd.Context()), id, in); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Updated account %s\n", id)
			return nil
		},
	}
	updateCmd.Flags().String("id", "", "Account id")
	updateCmd.Flags().String("full-name", "", "New display name")
	updateCmd.Flags().String("active", "", "true or false")
	updateCmd.Flags().String("password", "", "New password")

	cmd.AddCommand(listCmd, createCmd, updateCmd)
	return cmd
}

// accountUpdateFromFlags sets only the fields whose flags were given.
func accountUpdateFromFlags(cmd *cobra.Command) (admin.AccountUpdate, error) {
	var in admin.AccountUpdate
	flags := cmd.Flags()
	if flags.Changed("full-name") {
		v, _ := flags.GetString("full-name")
		in.FullName = &v
	}
	if flags.Changed("active") {
		raw, _ := flags.GetString("active")
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return admin.AccountUpdate{}, fmt.Errorf("--active must be true or false")
		}
		in.Active = &v
	}
	if flags.Changed("password") {
		v, _ := flags.GetString("password")
		in.Password = &v
	}
	return in, nil
}

func submitCmd(get func() *console) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a prescription file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := get()
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				return intake.ErrMissingArtifact
			}
			artifact, err := readArtifact(path)
			if err != nil {
				return err
			}
			if ct, _ := cmd.Flags().GetString("content-type"); ct != "" {
				artifact.ContentType = ct
			}

			var form intake.Form
			form.PatientName, _ = cmd.Flags().GetString("patient-name")
			form.Gender, _ = cmd.Flags().GetString("gender")
			form.Age, _ = cmd.Flags().GetString("age")
			form.PhoneNumber, _ = cmd.Flags().GetString("phone")
			form.ReferringDoctor, _ = cmd.Flags().GetString("referring-doctor")
			form.PrimaryQuestion, _ = cmd.Flags().GetString("question")

			flow := intake.NewFlow(c.intake, func(s intake.State) {
				fmt.Fprintf(c.err, "state: %s\n", s)
			})
			id, err := flow.Submit(cmd.Context(), form, artifact)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Submitted %s (status pending)\n", id)
			return nil
		},
	}
	cmd.Flags().String("file", "", "Prescription file (image, PDF or audio)")
	cmd.Flags().String("content-type", "", "Override the detected content type")
	cmd.Flags().String("patient-name", "", "Patient name")
	cmd.Flags().String("gender", "", "male, female or other")
	cmd.Flags().String("age", "", "Age in years")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("referring-doctor", "", "Referring doctor (optional)")
	cmd.Flags().String("question", "", "Primary question for the pharmacist")
	return cmd
}

// readArtifact loads path and guesses its content type from the extension,
// falling back to sniffing the bytes.
func readArtifact(path string) (*intake.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &intake.Artifact{FileName: filepath.Base(path), ContentType: ct, Data: data}, nil
}

// readSecret prompts on w and reads one line from r. When r is a terminal
// the input is not echoed.
func readSecret(r io.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printSubmissions(w io.Writer, subs []*intake.Submission) {
	sum := review.Summarize(subs)
	fmt.Fprintf(w, "Total: %d  Pending: %d  Completed: %d\n", sum.Total, sum.PendingCount, sum.CompletedCount)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPATIENT\tAGE\tMETHOD\tSTATUS")
	for _, s := range subs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.PatientName, s.Age, s.UploadMethod, s.Status)
	}
	tw.Flush()
}

func printAccounts(w io.Writer, accts []*admin.Account) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tACTIVE\tLAST LOGIN")
	for _, a := range accts {
		last := "never"
		if a.LastLoginAt != nil {
			last = a.LastLoginAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", a.ID, a.Username, displayName(a.FullName), a.IsActive, last)
	}
	tw.Flush()
}

func displayName(name string) string {
	if name == "" {
		return "-"
	}
	return name
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
