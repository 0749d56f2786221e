// Command qutest is the CLI entry point (spec.md §4.7 "CLI surface"): it
// wires the Link Layer, Command API, Expectation Matcher, Script Runner,
// and optional Host-Executable Supervisor together, runs every script
// passed on the command line, and falls into the interactive loop when
// asked or when no scripts were given.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qutest-go/qutest/internal/banner"
	"github.com/qutest-go/qutest/internal/config"
	"github.com/qutest-go/qutest/internal/dsl"
	"github.com/qutest-go/qutest/internal/history"
	"github.com/qutest-go/qutest/internal/logger"
	"github.com/qutest-go/qutest/internal/qscmd"
	"github.com/qutest-go/qutest/internal/qsinfo"
	"github.com/qutest-go/qutest/internal/qslink"
	"github.com/qutest-go/qutest/internal/qsmatch"
	"github.com/qutest-go/qutest/internal/replio"
	"github.com/qutest-go/qutest/internal/runner"
	"github.com/qutest-go/qutest/internal/supervisor"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	var (
		exeFlag  string
		qspyFlag string
		logFlag  string
		optFlag  string
	)

	root := &cobra.Command{
		Use:     "qutest [script ...]",
		Short:   "qutest — UDP test harness for QP/QS-instrumented targets",
		Long:    "Drives a QS/Spy back end over UDP: attaches to the target, runs .qutest.yaml scripts against it, and reports pass/fail/skip results.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args, exeFlag, qspyFlag, logFlag, optFlag)
		},
	}
	root.Flags().StringVar(&exeFlag, "exe", "", "host executable path, or \"debug\" to attach without spawning one")
	root.Flags().StringVar(&qspyFlag, "qspy", "localhost", "back end address: host[:udp_port][:tcp_port]")
	root.Flags().StringVar(&logFlag, "log", "", "directory to write the run log to")
	root.Flags().StringVar(&optFlag, "opt", "", "option letters: subset of t,x,i,c,o,b")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qutest:", err)
		os.Exit(1)
	}
}

// run wires every component together and returns the process-level error;
// the actual script-failure exit code is reported via os.Exit inside this
// function, since it must reflect the runner's failed-test count, not
// merely "did an error occur" (spec.md §6 "Exit code is the number of
// failed tests").
func run(ctx context.Context, scriptArgs []string, exeFlag, qspyFlag, logFlag, optFlag string) error {
	opts := strings.ToLower(optFlag)
	hasOpt := func(c byte) bool { return strings.IndexByte(opts, c) >= 0 }

	level := "info"
	if hasOpt('t') {
		level = "trace"
	}
	var logPath string
	if logFlag != "" {
		if err := os.MkdirAll(logFlag, 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		logPath = filepath.Join(logFlag, "qutest.log")
	}
	if err := logger.Init(level, logPath); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	settingsPath, err := config.SettingsPath()
	if err != nil {
		return fmt.Errorf("resolve settings path: %w", err)
	}
	cfgMgr, err := config.NewManager(settingsPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := cfgMgr.Get()

	host, udpPort, tcpPort, err := parseQSpyAddr(qspyFlag, cfg.QSpyUDPPort, cfg.QSpyTCPPort)
	if err != nil {
		return fmt.Errorf("parse --qspy: %w", err)
	}

	info := qsinfo.New()
	link, err := qslink.Dial(host, udpPort, cfg.LocalUDPPort, info)
	if err != nil {
		return fmt.Errorf("dial back end: %w", err)
	}
	defer link.Detach()

	if err := link.Attach(ctx, qslink.ChannelBoth); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	cmd := qscmd.New(link, info)
	match := qsmatch.New()
	out := banner.New(os.Stdout)

	var sup *supervisor.Supervisor
	if exeFlag != "" && exeFlag != "debug" {
		sup = supervisor.New(exeFlag, fmt.Sprintf("%s:%d", host, tcpPort))
		if err := sup.Spawn(ctx); err != nil {
			return fmt.Errorf("spawn host executable: %w", err)
		}
		defer sup.Teardown()
	}

	var hist *history.Store
	if dbPath, err := config.HistoryDBPath(); err == nil {
		hist, err = history.Open(dbPath)
		if err != nil {
			logger.Warn("qutest: run history disabled", "error", err)
			hist = nil
		} else {
			defer hist.Close()
		}
	}

	r := runner.New(cmd, link, info, match, out)
	r.Sup = sup
	r.Hist = hist
	r.ExitOnFail = hasOpt('x')
	r.LogPath = logPath

	if hasOpt('c') {
		if err := cmd.ClearScreen(); err != nil {
			logger.Warn("qutest: clear screen failed", "error", err)
		}
	}
	if hasOpt('o') || hasOpt('b') {
		if err := cmd.SaveDict(); err != nil {
			logger.Warn("qutest: save dict failed", "error", err)
		}
	}

	exec := dsl.NewExecutor(r, cmd, info, out)

	var scripts []string
	for _, pattern := range scriptArgs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("glob %q: %w", pattern, err)
		}
		if matches == nil {
			scripts = append(scripts, pattern) // let Load report the missing file
			continue
		}
		scripts = append(scripts, matches...)
	}

	for _, path := range scripts {
		s, err := dsl.Load(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		r.StartGroup(filepath.Base(path))
		if err := exec.RunScript(ctx, s); err != nil {
			logger.Warn("qutest: script aborted", "script", path, "error", err)
		}
		r.EndGroup()
	}

	if hasOpt('i') || len(scripts) == 0 {
		runInteractive(ctx, exec, out)
	}

	os.Exit(clampExitCode(r.Finish()))
	return nil
}

// runInteractive drives the post-script REPL (spec.md §4.9): one line at a
// time, each parsed as a single DSL step and executed immediately. An
// empty line or EOF ends the loop.
func runInteractive(ctx context.Context, exec *dsl.Executor, out *banner.Printer) {
	repl := replio.NewREPL(os.Stdin, os.Stdout)
	for {
		line, ok := repl.ReadLine()
		if !ok {
			return
		}
		if err := exec.RunLine(ctx, line); err != nil {
			out.Note(fmt.Sprintf("error: %v", err))
		}
	}
}

// parseQSpyAddr parses "host[:udp_port][:tcp_port]" (spec.md §4.7), falling
// back to defUDP/defTCP for any port left unspecified.
func parseQSpyAddr(s string, defUDP, defTCP int) (host string, udpPort, tcpPort int, err error) {
	parts := strings.Split(s, ":")
	host = parts[0]
	udpPort, tcpPort = defUDP, defTCP
	if len(parts) >= 2 && parts[1] != "" {
		udpPort, err = strconv.Atoi(parts[1])
		if err != nil {
			return "", 0, 0, fmt.Errorf("invalid udp_port %q", parts[1])
		}
	}
	if len(parts) >= 3 && parts[2] != "" {
		tcpPort, err = strconv.Atoi(parts[2])
		if err != nil {
			return "", 0, 0, fmt.Errorf("invalid tcp_port %q", parts[2])
		}
	}
	return host, udpPort, tcpPort, nil
}

// clampExitCode keeps the failed-test count within a valid process exit
// code range (spec.md §6 "clamped for the OS").
func clampExitCode(n int) int {
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return n
}
