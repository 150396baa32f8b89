// Command lvcs is the version control client. It keeps a working tree in
// step with a ledger of commits and a content-addressed blob store.
package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ledgervcs/internal/app"
	"ledgervcs/internal/config"
	"ledgervcs/internal/errors"
	"ledgervcs/internal/logging"
	"ledgervcs/internal/repository"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	configPath string
	logLevel   string

	application *app.App
	logger      *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lvcs",
	Short: "lvcs keeps a working tree in step with a commit ledger",
	Long: `lvcs records snapshots of a directory as commits on a ledger and stores
file contents in a content-addressed blob store. Branches, three-way merges
and squash merges work against the ledger directly.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $LVCS_CONFIG or ~/.config/lvcs/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func setup(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	l, err := logging.NewConsoleLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	logger = logging.WithOperation(l.Logger, cmd.Name())

	if cfg.Ledger.Type == config.LedgerHTTP && cfg.Ledger.Token == "" {
		if cfg.Ledger.Token, err = promptToken(); err != nil {
			return err
		}
	}

	application = app.New(cfg, logger)
	return nil
}

// promptToken reads an access token without echo when stdin is a terminal.
// An empty answer means no token.
func promptToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, "Ledger access token (empty for none): ")
	token, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(string(token)), nil
}

// openSession opens the repository containing the working directory.
func openSession(ctx context.Context) (*repository.Session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	return application.OpenSession(ctx, cwd)
}

// confirm asks a yes/no question on stdin.
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// exitCode maps an error to the process status: 2 for merge conflicts, 1
// otherwise.
func exitCode(err error) int {
	if stderrors.Is(err, errors.ErrConflict) {
		return 2
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if application != nil {
		application.Close()
	}
	if logger != nil {
		logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(exitCode(err))
	}
}
