package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"spikenet/internal/config"
	"spikenet/internal/domain"
	"spikenet/internal/model"
	"spikenet/internal/network"
	"spikenet/internal/storage"
	api "spikenet/pkg/spikenet"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	case "deploy":
		return runDeploy(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "snapshot":
		return runSnapshot(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// storeFlags registers the store selection flags shared by every command
// that opens a client.
type storeFlags struct {
	kind    *string
	dbPath  *string
	verbose *bool
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:    fs.String("store", storage.DefaultStoreKind(), "store backend: "+strings.Join(storage.Kinds(), "|")),
		dbPath:  fs.String("db-path", "spikenet.db", "sqlite database path"),
		verbose: fs.Bool("verbose", false, "log deployment and run progress to stderr"),
	}
}

func (f storeFlags) client(ctx context.Context, reg prometheus.Registerer) (*api.Client, error) {
	client, err := api.New(api.Options{
		StoreKind:  *f.kind,
		DBPath:     *f.dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
		Logger:     newLogger(*f.verbose),
		Registerer: reg,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fmt.Printf("initialized store=%s\n", *store.kind)
	return nil
}

func runValidate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configPath := fs.String("config", "", "network config file (yaml or json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	layers, neurons := 0, 0
	for _, d := range cfg.Domains {
		layers += len(d.Layers)
		for _, l := range d.Layers {
			neurons += l.Size()
		}
	}
	fmt.Printf("config ok network=%s domains=%d layers=%d neurons=%s\n", cfg.Name, len(cfg.Domains), layers, humanize.Comma(int64(neurons)))
	return nil
}

func runDeploy(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	configPath := fs.String("config", "", "network config file (yaml or json)")
	showProgress := fs.Bool("progress", false, "print connect progress")
	verbose := fs.Bool("verbose", false, "log deployment stages to stderr")
	jsonOut := fs.Bool("json", false, "emit domain statuses as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir, Logger: newLogger(*verbose)})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	var progress domain.ProgressFunc
	if *showProgress {
		progress = printProgress
	}
	n, err := client.Deploy(ctx, cfg, progress)
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(n.Statuses())
	}
	for _, d := range n.Domains() {
		printStatus(d.Status())
		for _, line := range strings.Split(strings.TrimRight(d.SizeReport(), "\n"), "\n") {
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}

type stimulusFlags []config.Stimulus

func (s *stimulusFlags) String() string {
	parts := make([]string, 0, len(*s))
	for _, st := range *s {
		parts = append(parts, fmt.Sprintf("%s/%s:%d,%d=%g", st.Domain, st.Layer, st.X, st.Y, st.Amount))
	}
	return strings.Join(parts, " ")
}

func (s *stimulusFlags) Set(raw string) error {
	st, err := config.ParseStimulus(raw)
	if err != nil {
		return err
	}
	*s = append(*s, st)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "network config file (yaml or json)")
	runID := fs.String("run-id", "", "explicit run id (default random uuid)")
	ticks := fs.Int("ticks", 0, "number of ticks (overrides config)")
	snapshotEvery := fs.Int("snapshot-every", 0, "snapshot all domains every n ticks (overrides config)")
	metricsAddr := fs.String("metrics-addr", "", "serve /metrics and /domains on this address while running")
	showProgress := fs.Bool("progress", false, "print connect progress")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	var stimuli stimulusFlags
	fs.Var(&stimuli, "stimulus", "inject potential before the first tick: domain/layer:x,y[=amount] (repeatable)")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ticks < 0 || *snapshotEvery < 0 {
		return errors.New("ticks and snapshot-every must be >= 0")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	client, err := store.client(ctx, registry)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	var current atomic.Pointer[network.Network]
	if *metricsAddr != "" {
		statuses := func() []domain.Status {
			n := current.Load()
			if n == nil {
				return []domain.Status{}
			}
			return n.Statuses()
		}
		srv, err := serve(*metricsAddr, newRouter(statuses, registry))
		if err != nil {
			return err
		}
		defer shutdown(srv)
		fmt.Fprintf(os.Stderr, "serving metrics on %s\n", srv.Addr)
	}

	req := api.RunRequest{
		RunID:         *runID,
		Config:        cfg,
		Ticks:         *ticks,
		SnapshotEvery: *snapshotEvery,
		Stimuli:       stimuli,
		Attach:        func(n *network.Network) { current.Store(n) },
	}
	if *showProgress {
		req.Progress = printProgress
	}
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Printf("run_id=%s ticks=%d snapshots=%d deploy=%s run=%s artifacts=%s\n",
		summary.RunID,
		summary.Ticks,
		summary.Snapshots,
		summary.DeployTime.Round(time.Microsecond),
		summary.RunTime.Round(time.Microsecond),
		summary.ArtifactsDir,
	)
	for _, d := range summary.Domains {
		fmt.Printf("domain=%s neurons=%s receivers=%s transmitters=%s synapses=%s spiked=%s sent=%s received=%s mean_spiked=%.3f\n",
			d.Name,
			humanize.Comma(int64(d.Neurons)),
			humanize.Comma(int64(d.Receivers)),
			humanize.Comma(int64(d.Transmitters)),
			humanize.Comma(int64(d.Synapses)),
			humanize.Comma(int64(d.Activity.TotalSpiked)),
			humanize.Comma(d.Stats.SpikesSent),
			humanize.Comma(d.Stats.SpikesReceived),
			d.Activity.MeanSpiked,
		)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := api.New(api.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	items, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s network=%s device=%s domains=%s seed=%d ticks=%d neurons=%s synapses=%s\n",
			item.RunID,
			item.CreatedAtUTC,
			item.Network,
			item.Device,
			strings.Join(item.Domains, ","),
			item.Seed,
			item.Ticks,
			humanize.Comma(int64(item.Neurons)),
			humanize.Comma(int64(item.Synapses)),
		)
	}
	return nil
}

func runSnapshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	domainName := fs.String("domain", "", "domain name (omit to list snapshots)")
	ticks := fs.Int64("ticks", 0, "snapshot tick (0 selects the latest)")
	jsonOut := fs.Bool("json", false, "emit the full snapshot as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *domainName == "" {
		keys, err := client.Snapshots(ctx, api.SnapshotsRequest{RunID: *runID, Latest: *latest})
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return errors.New("no snapshots found")
		}
		for _, key := range keys {
			fmt.Printf("run_id=%s domain=%s ticks=%d\n", key.RunID, key.Domain, key.Ticks)
		}
		return nil
	}

	snap, err := client.Snapshot(ctx, api.SnapshotRequest{RunID: *runID, Latest: *latest, Domain: *domainName, Ticks: *ticks})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	var spiked, dead, receivers int
	for _, f := range snap.Neurons.Flags {
		if f.Has(model.FlagSpiked) {
			spiked++
		}
		if f.Has(model.FlagDead) {
			dead++
		}
		if f.Has(model.FlagReceiver) {
			receivers++
		}
	}
	live := 0
	for _, level := range snap.Synapses.Levels {
		if level != 0 {
			live++
		}
	}
	fmt.Printf("run_id=%s domain=%s ticks=%d neurons=%s receivers=%s spiked=%d dead=%d synapses=%s live_synapses=%s\n",
		snap.RunID,
		snap.Domain,
		snap.Ticks,
		humanize.Comma(int64(len(snap.Neurons.Levels))),
		humanize.Comma(int64(receivers)),
		spiked,
		dead,
		humanize.Comma(int64(len(snap.Synapses.Levels))),
		humanize.Comma(int64(live)),
	)
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	domainName := fs.String("domain", "", "domain name")
	limit := fs.Int("limit", 0, "show only the last n ticks (0 shows all)")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" || *domainName == "" {
		return errors.New("history requires --run-id and --domain")
	}
	if *limit < 0 {
		return errors.New("limit must be >= 0")
	}

	client, err := store.client(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.TickHistory(ctx, *runID, *domainName)
	if err != nil {
		return err
	}
	if *limit > 0 && len(history) > *limit {
		history = history[len(history)-*limit:]
	}
	for _, st := range history {
		fmt.Printf("tick=%d spiked=%d received=%d transmitted=%d dead=%d live_synapses=%d elapsed_us=%d\n",
			st.Tick, st.Spiked, st.Received, st.Transmitted, st.DeadNeurons, st.LiveSynapses, st.ElapsedMicros)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := api.New(api.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, errors.New("--config is required")
	}
	return config.Load(path)
}

func printStatus(st domain.Status) {
	peers := make([]string, 0, len(st.Peers))
	for _, p := range st.Peers {
		peers = append(peers, strconv.Itoa(int(p)))
	}
	fmt.Printf("domain=%s stage=%s peers=%s neurons=%s receivers=%s transmitters=%s synapses=%s remote_sent=%s receiver_again=%s\n",
		st.Name,
		st.Stage,
		strings.Join(peers, ","),
		humanize.Comma(int64(st.Neurons)),
		humanize.Comma(int64(st.Receivers)),
		humanize.Comma(int64(st.Transmitters)),
		humanize.Comma(int64(st.Synapses)),
		humanize.Comma(st.Stats.RemoteSynapsesSent),
		humanize.Comma(st.Stats.ReceiverIndexAgain),
	)
}

func printProgress(p domain.Progress) {
	fmt.Fprintf(os.Stderr, "connect domain=%s %s->%s row %d/%d width=%d\n", p.Domain, p.Layer, p.Rule, p.Row, p.Rows, p.Width)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: spikenetctl <init|validate|deploy|run|runs|snapshot|history|export> [flags]", msg)
}
