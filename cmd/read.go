package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/hdrstack/internal/config"
	"firestige.xyz/hdrstack/internal/core/decoder"
	"firestige.xyz/hdrstack/internal/filter"
	"firestige.xyz/hdrstack/internal/metrics"
	"firestige.xyz/hdrstack/internal/pipeline"
	"firestige.xyz/hdrstack/internal/render"
	"firestige.xyz/hdrstack/internal/source/file"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Decode every packet of a pcap or pcapng file",
	Long: `Decode every packet of a capture file over a pool of workers and print one
summary per packet in file order, followed by run statistics.

The entry point is picked from the capture link type unless --entry is set.
An optional classic BPF program (tcpdump -ddd output) drops packets before
decoding.

Examples:
  hdrstack read -f trace.pcap
  hdrstack read -f trace.pcapng --format json --workers 4
  hdrstack read -f trace.pcap --bpf udp.bpf --quiet --metrics :9091`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		applyReadFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if _, err := runRead(ctx, cfg, readOpts, cmd.OutOrStdout()); err != nil {
			exitWithError("read failed", err)
		}
	},
}

type readOptions struct {
	file     string
	format   string
	quiet    bool
	hexBytes int

	// Overrides for the decode and metrics config sections
	workers       int
	bpfFile       string
	entry         string
	metricsListen string
}

var readOpts readOptions

func init() {
	readCmd.Flags().StringVarP(&readOpts.file, "file", "f", "",
		"capture file to read (required)")
	readCmd.Flags().StringVarP(&readOpts.format, "format", "o", "text",
		"output format: text, json or yaml")
	readCmd.Flags().BoolVarP(&readOpts.quiet, "quiet", "q", false,
		"print statistics only")
	readCmd.Flags().IntVar(&readOpts.hexBytes, "payload-bytes", 0,
		"payload bytes to dump as hex (0 disables)")
	readCmd.Flags().IntVarP(&readOpts.workers, "workers", "w", 0,
		"decode workers (default from config, 0 = one per CPU)")
	readCmd.Flags().StringVar(&readOpts.bpfFile, "bpf", "",
		"BPF program file in tcpdump -ddd format")
	readCmd.Flags().StringVarP(&readOpts.entry, "entry", "e", "",
		"where packets start: auto, link or network (default from config)")
	readCmd.Flags().StringVar(&readOpts.metricsListen, "metrics", "",
		"serve Prometheus metrics on this address while reading")
	readCmd.MarkFlagRequired("file")
}

// applyReadFlags lets explicitly set flags override the config file.
func applyReadFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Decode.Workers = readOpts.workers
	}
	if flags.Changed("bpf") {
		cfg.Decode.BPFFile = readOpts.bpfFile
	}
	if flags.Changed("entry") {
		cfg.Decode.Entry = readOpts.entry
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = readOpts.metricsListen
	}
}

// runRead decodes the capture file and writes results and statistics to out.
func runRead(ctx context.Context, cfg *config.Config, opts readOptions, out io.Writer) (pipeline.Snapshot, error) {
	format, err := render.ParseFormat(opts.format)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	entry, err := decoder.ParseEntry(cfg.Decode.Entry)
	if err != nil {
		return pipeline.Snapshot{}, err
	}

	var flt filter.Filter
	if cfg.Decode.BPFFile != "" {
		prog, err := filter.LoadFile(cfg.Decode.BPFFile)
		if err != nil {
			return pipeline.Snapshot{}, err
		}
		slog.Info("bpf filter loaded", "file", cfg.Decode.BPFFile, "instructions", prog.Len())
		flt = prog
	}

	src, err := file.NewSource(opts.file)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	if err := src.Start(ctx); err != nil {
		return pipeline.Snapshot{}, err
	}
	defer src.Stop()
	slog.Info("capture file opened", "file", opts.file, "format", src.Format(), "link_type", src.LinkType().String())

	p, err := pipeline.NewBuilder().
		WithEntry(entry).
		WithLinkType(src.LinkType()).
		WithWorkers(cfg.Decode.Workers).
		WithQueueSize(cfg.Decode.QueueSize).
		WithMaxPacketBytes(cfg.Decode.MaxPacketBytes).
		WithFilter(flt).
		Build()
	if err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("failed to build pipeline: %w", err)
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return pipeline.Snapshot{}, err
		}
		defer srv.Stop(context.Background())
	}

	w := render.NewWriter(out, format)
	sink := pipeline.Sink(pipeline.SinkFunc(func(pipeline.Result) error { return nil }))
	if !opts.quiet {
		sink = pipeline.Ordered(w.Sink(opts.hexBytes))
	}

	runErr := p.Run(ctx, src, sink)

	snap := p.Stats().Snapshot()
	if err := w.WriteStats(snap); err != nil {
		return snap, err
	}
	if err := w.Close(); err != nil {
		return snap, err
	}
	return snap, runErr
}
