// Command jokbo is a terminal client for the jokbo course-material marketplace.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/jokbo/internal/errs"
	"github.com/and161185/jokbo/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintf(w, `jokbo CLI
Usage:
  jokbo [-config file] [-json] [-yes] <cmd> [args]

Commands:
  version
  login      -cookie <value>                      (saves session)
  logout
  gate                                            (where a fresh login lands)
  onboard    -major <major> [-minor <minor>]
  me                                              (profile, balance, history)
  me-edit    [-nickname n] [-major m] [-minor m]
  points     [-history]
  list       [-q kw] [-sort 최신순|추천순|다운로드순] [-semester YYYY-S]
             [-grade g] [-major m] [-professor p] [-category c] [-page n]
  browse                                          (interactive)
  show       -id <material>
  buy        -id <material>
  download   -id <material> [-dir d]
  review     add|edit -id <material> -rating r -comment c
  review     rm -id <material>
  upload     -title t -year y -semester s -professor p -grade g
             -category c -course c [-desc d] -file a.pdf [-file b.pdf ...]
  edit       -id <material> [same fields as upload, no -file]
  rm         -id <material>
  mine       [-tab purchased|uploaded] [-all]
  remove     -id <material>                       (hide a purchase locally)
`)
}

// main dispatches subcommands.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fail(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses the global flags and runs one command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("jokbo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "config file (default: config.yaml in the config dir or .)")
	asJSON := fs.Bool("json", false, "print JSON")
	yes := fs.Bool("yes", false, "answer yes to every confirmation")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return errUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "jokbo %s (%s)\n", version, buildDate)
		return nil
	}

	a, err := newApp(*cfgPath, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()
	a.json = *asJSON
	a.prompt.AssumeYes = *yes

	h, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return errUsage
	}
	return h(ctx, a, rest)
}

func fail(w io.Writer, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, errs.ErrUnauthorized):
		fmt.Fprintln(w, "login required: run `jokbo login -cookie <value>`")
	case errors.Is(err, errs.ErrCanceled):
		fmt.Fprintln(w, "canceled")
	default:
		var ae *errs.APIError
		if errors.As(err, &ae) {
			fmt.Fprintf(w, "api error: status=%d msg=%s\n", ae.Status, ae.Message)
			return
		}
		fmt.Fprintln(w, err)
	}
}
