package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jo-hoe/skinscan/internal/core"
)

const usage = `usage: skinscan [global flags] <command> [flags]

commands:
  scan <image>...   submit up to 3 images and print the prediction
  history           print the scan history of the current subject
  report            write the PDF report of a history entry
  logout            forget the stored session

global flags:
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "skinscan: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := pflag.NewFlagSet("skinscan", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	configPath := global.StringP("config", "c", "", "path to the YAML config (default $CONFIG_PATH or ./config.yaml)")
	name := global.StringP("name", "n", "", "display name stored with a new session")
	verbose := global.BoolP("verbose", "v", false, "log debug output")
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errUsage
	}

	command, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		global.Usage()
		return errUsage
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *name != "" {
		config.Session.DisplayName = *name
	}

	service, err := core.NewCoreService(ctx, config, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := service.Close(); cerr != nil {
			slog.Error("failed to close core service", "error", cerr)
		}
	}()

	return command(ctx, service, config, rest[1:], stdout, stderr)
}

// loadConfig reads an explicit path strictly. The implicit default location
// may be missing, in which case the defaults apply.
func loadConfig(explicit string) (*core.ServiceConfig, error) {
	if explicit != "" {
		return core.LoadConfig(explicit)
	}
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(cwd, "config.yaml")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return core.ParseConfig(nil)
	}
	return core.LoadConfig(path)
}
