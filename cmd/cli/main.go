package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/amirasaad/bankcards/infra/initializer"
	"github.com/amirasaad/bankcards/pkg/app"
	"github.com/amirasaad/bankcards/pkg/commands"
	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/fatih/color"
	"golang.org/x/term"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  create-admin <email> <name>   create an administrator, the password is read from the terminal
  expire-cards                  mark every card past its expiry date as expired`

var (
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}
	if err := run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, failure("error:"), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close() //nolint: errcheck
	a := app.New(deps, cfg)

	switch cmd {
	case "create-admin":
		if len(args) < 2 {
			return errors.New("usage: create-admin <email> <name>")
		}
		password, err := readPassword(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		c, err := a.AuthService.CreateAdmin(ctx, commands.Register{
			Email:    args[0],
			Name:     strings.Join(args[1:], " "),
			Password: password,
		})
		if err != nil {
			return err
		}
		fmt.Println(success("Administrator created:"), c.Email)
	case "expire-cards":
		n, err := a.CardService.ExpireCards(ctx, time.Now())
		if err != nil {
			return err
		}
		fmt.Println(success("Cards expired:"), n)
	default:
		fmt.Println(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// readPassword prompts without echo on a terminal and reads a plain line otherwise.
func readPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
