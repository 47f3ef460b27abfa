package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"net"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/funvibe/funcell/internal/config"
	"github.com/funvibe/funcell/internal/core"
	"github.com/funvibe/funcell/internal/heapdump"
	"github.com/funvibe/funcell/internal/monitor"
	"github.com/funvibe/funcell/internal/node"
	"github.com/funvibe/funcell/internal/runtime"
	"github.com/funvibe/funcell/internal/torture"
	"github.com/mattn/go-isatty"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const usage = `Usage: funcell <command> [flags]

Commands:
  torture   run a randomized workload against a fresh runtime
  scenario  run the built-in scenarios
  dumps     list heap dumps stored in a database
  probe     query a running monitor
  help      show this message
`

// exitFatal is the status for an unrecoverable runtime panic, as opposed to
// 1 for ordinary errors.
const exitFatal = 2

type cli struct {
	stdout io.Writer
	stderr io.Writer
	color  bool
}

func main() {
	c := &cli{stdout: os.Stdout, stderr: os.Stderr, color: colorEnabled(os.Stdout)}
	os.Exit(c.run(os.Args[1:]))
}

func colorEnabled(f *os.File) bool {
	if os.Getenv("TERM") == "dumb" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *cli) paint(code, s string) string {
	if !c.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (c *cli) run(args []string) (status int) {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, usage)
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch args[0] {
	case "help", "-help", "--help", "-h":
		fmt.Fprint(c.stdout, usage)
		return 0
	case "torture":
		err = c.handleTorture(ctx, args[1:])
	case "scenario":
		err = c.handleScenario(args[1:])
	case "dumps":
		err = c.handleDumps(ctx, args[1:])
	case "probe":
		err = c.handleProbe(ctx, args[1:])
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}

	var p *node.Panic
	switch {
	case err == nil:
		return 0
	case errors.As(err, &p):
		fmt.Fprintf(c.stderr, "%s %v\n", c.paint("31", "fatal:"), p)
		return exitFatal
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		fmt.Fprintf(c.stderr, "%s %v\n", c.paint("31", "error:"), err)
		return 1
	}
}

// loadTuning resolves the tuning: an explicit path, else funcell.yaml found
// from the working directory upward, else the defaults.
func loadTuning(path string) (config.Tuning, error) {
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			return config.Tuning{}, err
		}
		path = found
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Tuning{}, err
	}
	return *cfg, nil
}

// guard runs fn and turns a fatal runtime panic into an error so the
// command can report it. Any other panic is left alone.
func guard(r *runtime.Runtime, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p, ok := rec.(*node.Panic)
			if !ok {
				panic(rec)
			}
			err = fmt.Errorf("runtime %s: %w", r.ID(), p)
		}
	}()
	return fn()
}

func (c *cli) newRuntime(cfgPath string, verify, verbose bool) (*runtime.Runtime, error) {
	cfg, err := loadTuning(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg.Verify = cfg.Verify || verify
	cfg.Verbose = cfg.Verbose || verbose
	return runtime.New(cfg, runtime.WithLogger(log.New(c.stderr, "", log.LstdFlags)))
}

func (c *cli) handleTorture(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("torture", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	n := fs.Int("n", 100000, "number of operations")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	cfgPath := fs.String("config", "", "tuning file (default: funcell.yaml found upward)")
	verify := fs.Bool("verify", false, "verify the graph on every collection")
	verbose := fs.Bool("v", false, "log every collection")
	dumpPath := fs.String("dump", "", "save a heap dump to this SQLite file when done")
	asJSON := fs.Bool("json", false, "print final heap statistics as JSON")
	serve := fs.String("serve", "", "serve health and reflection on this address while running")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := c.newRuntime(*cfgPath, *verify, *verbose)
	if err != nil {
		return err
	}
	defer r.Shutdown()

	var mon *monitor.Server
	if *serve != "" {
		lis, err := net.Listen("tcp", *serve)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", *serve, err)
		}
		mon = monitor.NewServer(r.Logger())
		go func() {
			if err := mon.Serve(lis); err != nil {
				r.Logger().Printf("monitor: %v", err)
			}
		}()
		defer mon.Stop()
		fmt.Fprintf(c.stdout, "monitor listening on %s\n", lis.Addr())
	}

	var rep *torture.Report
	err = guard(r, func() error {
		var err error
		rep, err = torture.Run(ctx, r, torture.Options{
			Iterations: *n,
			Seed:       *seed,
			OnCycle: func(st core.Stats) {
				if mon != nil {
					mon.Report(st, nil)
				}
			},
		})
		return err
	})
	if err != nil {
		if mon != nil {
			mon.Report(r.Heap().Stats(), err)
		}
		return err
	}

	fmt.Fprintf(c.stdout, "%s runtime %s seed %d: %d ops in %s, %d cycles, %d rescued, max quote depth %d\n",
		c.paint("32", "ok"), r.ID(), *seed, rep.Iterations, rep.Elapsed.Round(time.Millisecond),
		rep.Cycles, rep.Rescued, rep.MaxQuoteDepth)
	for _, name := range slices.Sorted(maps.Keys(rep.Ops)) {
		fmt.Fprintf(c.stdout, "  %-8s %d\n", name, rep.Ops[name])
	}

	if *asJSON {
		out, err := monitor.StatsJSON(rep.Stats)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s\n", out)
	}
	if *dumpPath != "" {
		return c.saveDump(ctx, r, *dumpPath, fmt.Sprintf("torture seed=%d", *seed))
	}
	return nil
}

func (c *cli) saveDump(ctx context.Context, r *runtime.Runtime, path, label string) error {
	store, err := heapdump.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	d := heapdump.Capture(r.Heap(), r.ID(), label)
	if err := store.Save(ctx, d); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "saved dump %s (%d nodes) to %s\n", d.ID, len(d.Nodes), path)
	return nil
}

func (c *cli) handleScenario(args []string) error {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	cfgPath := fs.String("config", "", "tuning file")
	match := fs.String("run", "", "only run scenarios whose name contains this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	failed := 0
	for _, sc := range runtime.Scenarios() {
		if !strings.Contains(sc.Name, *match) {
			continue
		}
		r, err := c.newRuntime(*cfgPath, true, false)
		if err != nil {
			return err
		}
		err = guard(r, func() error { return sc.Run(r) })
		r.Shutdown()
		if err != nil {
			failed++
			fmt.Fprintf(c.stdout, "%s %s: %v\n", c.paint("31", "FAIL"), sc.Name, err)
			continue
		}
		fmt.Fprintf(c.stdout, "%s %s\n", c.paint("32", "ok  "), sc.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}

func (c *cli) handleDumps(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dumps", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: funcell dumps <file.db>")
	}
	store, err := heapdump.Open(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer store.Close()
	list, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Fprintf(c.stdout, "%s  %s  tick %-8d managed %-6d manual %-6d %s\n",
			s.ID, s.Taken.Format(time.RFC3339), s.Tick, s.Managed, s.Manual, s.Label)
	}
	return nil
}

func (c *cli) handleProbe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	timeout := fs.Duration("timeout", 5*time.Second, "give up after this long")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: funcell probe <host:port>")
	}
	conn, err := grpc.NewClient(fs.Arg(0), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	res, err := monitor.Probe(ctx, conn)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "status: %s\n", res.Status)
	for _, svc := range res.Services {
		fmt.Fprintf(c.stdout, "%s\n", svc)
		for _, m := range res.Methods[svc] {
			fmt.Fprintf(c.stdout, "  %s\n", m)
		}
	}
	return nil
}
