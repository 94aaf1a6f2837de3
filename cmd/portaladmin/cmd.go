package main

import (
	"context"
	"flag"
	"fmt"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"elearning/internal/auth"
	"elearning/internal/coursework"
	"elearning/internal/qerrors"
	"elearning/internal/repository"
	"elearning/internal/validation"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	gateway    *auth.Gateway
	repo       *repository.Repository
	coursework *coursework.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  bootstrap - create the administrator account if the directory is empty")
	fmt.Println("  seed - write sample classes, materials and tasks")
	fmt.Println("  resetpassword -username USERNAME - set a user's password")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username. The password will be prompted next.")

	switch args[1] {
	case "bootstrap":
		return cli.bootstrap(ctx)
	case "seed":
		return cli.coursework.SeedSampleData(ctx)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordUname, string(pwd))
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) bootstrap(ctx context.Context) error {
	admin, err := cli.gateway.BootstrapAdmin(ctx)
	if err != nil {
		return err
	}
	if admin == nil {
		fmt.Println("directory already has users, nothing to do")
		return nil
	}
	fmt.Printf("created administrator %q\n", admin.Username)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, username, password string) error {
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}

	username = validation.NormalizeUsername(username)
	users := cli.repo.ListUserProfilesWhere(ctx, "username", username)
	if len(users) == 0 {
		return qerrors.UserNotFoundError
	}

	if err := cli.gateway.Backend().SetPassword(ctx, users[0].ID, password); err != nil {
		return errors.Wrapf(err, "setting password of %q", username)
	}
	fmt.Printf("password of %q updated\n", username)
	return nil
}
