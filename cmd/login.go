package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/boya-scheduler/internal/errs"
)

func newLoginCmd() *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "login",
		Short: "Sign in through SSO and store a Boya token",
		Long: `Sign in through SSO and store a Boya token.
Username and password are kept in the config file; flags override them.
Tokens expire quickly, so log in again when a query fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			rc := a.runContext()
			defer a.close(rc)

			if u := strings.TrimSpace(username); u != "" {
				rc.Username = u
			}
			if password != "" {
				rc.Password = password
			}
			if rc.Password == "" {
				pw, err := promptPassword(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					if ctx.Err() != nil {
						return errs.Mark(errs.Wrap(err, "login"), errs.ErrInterrupted)
					}
					return err
				}
				rc.Password = pw
			}

			if _, err := a.orchestrator().Login(ctx, rc); err != nil {
				return errs.Wrap(err, "login")
			}
			info(cmd.OutOrStdout(), "Login successfully")
			return nil
		},
	}

	c.Flags().StringVarP(&username, "username", "u", "", "SSO username")
	c.Flags().StringVarP(&password, "password", "p", "", "SSO password (prompted when unknown)")
	return c
}

// promptPassword reads a password without echo when in is a terminal and a
// plain line otherwise. Cancelling ctx abandons the read and restores the
// terminal.
func promptPassword(ctx context.Context, in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		line, err := readLine(ctx, in)
		if err != nil {
			return "", errs.Wrap(err, "read password")
		}
		return line, nil
	}

	fd := int(f.Fd())
	state, err := term.GetState(fd)
	if err != nil {
		return "", errs.Wrap(err, "read password")
	}
	type result struct {
		pw  []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pw, err := term.ReadPassword(fd)
		ch <- result{pw: pw, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = term.Restore(fd, state)
		fmt.Fprint(out, "\n")
		return "", ctx.Err()
	case r := <-ch:
		fmt.Fprint(out, "\n")
		if r.err != nil {
			return "", errs.Wrap(r.err, "read password")
		}
		return string(r.pw), nil
	}
}
