package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/noah-isme/edupoint-api/internal/models"
)

var (
	readPasswordFunc = term.ReadPassword

	errHelp = errors.New("help provided")
)

type reconciler interface {
	ReconcileAll(ctx context.Context, actor *models.JWTClaims) (*models.ReconcileReport, error)
}

type adminCreator interface {
	CreateAdmin(ctx context.Context, username, password string) (*models.UserInfo, error)
}

type commandLine struct {
	balances reconciler
	accounts adminCreator
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  reconcile                        - rewrite drifted stored balances from history")
	fmt.Fprintln(cli.out, "  create-admin -username USERNAME  - create an admin account, the password is prompted next")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	createAdminCmd.SetOutput(cli.out)
	username := createAdminCmd.String("username", "", "Login name of the new admin.")

	switch args[1] {
	case "reconcile":
		return cli.reconcile(ctx)
	case "create-admin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *username == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			createAdminCmd.Usage()
			return errHelp
		}
		return cli.createAdmin(ctx, *username, string(pwd))
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) reconcile(ctx context.Context) error {
	report, err := cli.balances.ReconcileAll(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "checked %d students, corrected %d\n", report.Checked, report.Corrected)
	for _, d := range report.Drifts {
		line := fmt.Sprintf("  %s stored=%d derived=%d delta=%+d", d.StudentID, d.Stored, d.Derived, d.Delta)
		if d.Negative {
			line += " NEGATIVE"
		}
		fmt.Fprintln(cli.out, line)
	}
	return nil
}

func (cli *commandLine) createAdmin(ctx context.Context, username, password string) error {
	user, err := cli.accounts.CreateAdmin(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created admin %s (%s)\n", user.Username, user.ID)
	return nil
}
