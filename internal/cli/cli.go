// Package cli implements the medrec command: sign in, sign out and read or
// edit the signed-in patient's profile from a terminal.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/aussiebroadwan/medrec/pkg/authsdk"
)

const usage = `usage: medrec <command> [flags]

commands:
  login -email <address>      sign in; the password is read from stdin
  logout                      sign out and forget the stored session
  whoami                      show the signed-in user
  profile                     print the profile as JSON
  profile update              apply a JSON profile update read from stdin
  reset-password -email <a>   mail a password reset link
`

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// ServiceFactory opens the auth service. The returned func releases it.
type ServiceFactory func(ctx context.Context) (*authsdk.Service, func(), error)

type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, stdio IO, open ServiceFactory) int {
	if len(args) == 0 {
		fmt.Fprint(stdio.Stderr, usage)
		return ExitUsage
	}

	cmd, rest := args[0], args[1:]
	var run func(context.Context, *authsdk.Service, []string, IO) error
	switch cmd {
	case "login":
		run = login
	case "logout":
		run = logout
	case "whoami":
		run = whoami
	case "profile":
		run = profile
	case "reset-password":
		run = resetPassword
	case "help", "-h", "--help":
		fmt.Fprint(stdio.Stdout, usage)
		return ExitOK
	default:
		fmt.Fprintf(stdio.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return ExitUsage
	}

	svc, release, err := open(ctx)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "error: %v\n", err)
		return ExitError
	}
	defer release()

	if err := run(ctx, svc, rest, stdio); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stdio.Stderr, "%s\n\n%s", ue, usage)
			return ExitUsage
		}
		printError(stdio.Stderr, err)
		return ExitError
	}
	return ExitOK
}

type usageError string

func (e usageError) Error() string { return string(e) }

func printError(w io.Writer, err error) {
	e := authsdk.TranslateError(err)
	if e.Field != "" {
		fmt.Fprintf(w, "error: %s: %s (%s)\n", e.Field, e.Message, e.Code)
		return
	}
	fmt.Fprintf(w, "error: %s (%s)\n", e.Message, e.Code)
}

func emailFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "account e-mail address")
	if err := fs.Parse(args); err != nil {
		return "", usageError(err.Error())
	}
	if *email == "" {
		return "", usageError(name + ": -email is required")
	}
	return *email, nil
}

func login(ctx context.Context, svc *authsdk.Service, args []string, stdio IO) error {
	email, err := emailFlag("login", args)
	if err != nil {
		return err
	}

	password, err := bufio.NewReader(stdio.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")

	sess, err := svc.SignIn(ctx, authsdk.SignInInput{Email: email, Password: password})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdio.Stdout, "signed in as %s\n", sess.User.Email)
	return nil
}

func logout(ctx context.Context, svc *authsdk.Service, _ []string, stdio IO) error {
	if err := svc.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdio.Stdout, "signed out")
	return nil
}

func whoami(ctx context.Context, svc *authsdk.Service, _ []string, stdio IO) error {
	st, err := svc.Restore(ctx)
	if err != nil {
		return err
	}
	if st.Status != authsdk.StatusSignedIn || st.User == nil {
		return authsdk.NewError(authsdk.CodeNoSession)
	}

	name := st.User.Email
	if st.Profile != nil && st.Profile.FullName != "" {
		name = fmt.Sprintf("%s <%s>", st.Profile.FullName, st.User.Email)
	}
	fmt.Fprintf(stdio.Stdout, "%s\nid: %s\n", name, st.User.ID)
	if st.Session != nil && !st.Session.ExpiresAt.IsZero() {
		fmt.Fprintf(stdio.Stdout, "session expires: %s\n", st.Session.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func profile(ctx context.Context, svc *authsdk.Service, args []string, stdio IO) error {
	var (
		p   *authsdk.Profile
		err error
	)
	switch {
	case len(args) == 0:
		p, err = svc.GetProfile(ctx)
	case args[0] == "update":
		var u authsdk.ProfileUpdate
		dec := json.NewDecoder(stdio.Stdin)
		dec.DisallowUnknownFields()
		if derr := dec.Decode(&u); derr != nil {
			return usageError("profile update: invalid JSON on stdin: " + derr.Error())
		}
		p, err = svc.UpdateProfile(ctx, u)
	default:
		return usageError(fmt.Sprintf("profile: unknown subcommand %q", args[0]))
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdio.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

func resetPassword(ctx context.Context, svc *authsdk.Service, args []string, stdio IO) error {
	email, err := emailFlag("reset-password", args)
	if err != nil {
		return err
	}
	if err := svc.RequestPasswordReset(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(stdio.Stdout, "if the address has an account, a reset link is on its way")
	return nil
}
