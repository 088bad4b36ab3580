// Command financectl is the command-line client of the association's books.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sas-finance/service_layer/internal/cli"
	"github.com/sas-finance/service_layer/internal/config"
	"github.com/sas-finance/service_layer/internal/domain"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("SAS_CONFIG"), "Path to YAML configuration")
		envFile    = flag.String("env", ".env", "Path to .env with SUPABASE_URL and SUPABASE_ANON_KEY")
	)
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()

	out := cli.NewPrinter()
	args := flag.Args()
	if len(args) == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}

	if args[0] == "completion" {
		shell := "bash"
		if len(args) > 1 {
			shell = args[1]
		}
		if err := cli.GenerateCompletion(os.Stdout, shell, "financectl", completionCommands()); err != nil {
			out.Error(err.Error())
			os.Exit(2)
		}
		return
	}

	cmd, ok := findCommand(args[0])
	if !ok {
		out.Error(fmt.Sprintf("unknown command %q", args[0]))
		usage(os.Stderr)
		os.Exit(2)
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		out.Error(err.Error())
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		out.Error(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, out)
	if err != nil {
		out.Error(err.Error())
		os.Exit(1)
	}
	defer a.Close()

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			out.Error(describe(err))
		}
		a.Close()
		os.Exit(exitCode(err))
	}
}

// describe turns service errors into the message shown to the member.
func describe(err error) string {
	var authErr *domain.AuthError
	switch {
	case errors.As(err, &authErr):
		return authErr.Reason
	case errors.Is(err, domain.ErrSessionExpired):
		return "Session expirée, reconnectez-vous avec « financectl login »."
	case errors.Is(err, domain.ErrNotAuthenticated):
		return "Vous n'êtes pas connecté."
	case errors.Is(err, domain.ErrForbidden):
		return "Action réservée au bureau."
	default:
		return err.Error()
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrForbidden):
		return 3
	default:
		return 1
	}
}
