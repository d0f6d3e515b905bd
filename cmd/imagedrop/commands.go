package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dshills/imagedrop/internal/event"
	"github.com/dshills/imagedrop/internal/imagedrop"
	"github.com/dshills/imagedrop/internal/platform"
)

func newDropCommand(c *cli) *cobra.Command {
	var at int

	cmd := &cobra.Command{
		Use:   "drop [--at N] FILE...",
		Short: "Drop files onto the document",
		Long: `Dispatch one drop event carrying every FILE. Non-image files are skipped.
Without --at images go to the end of the document; with --at the drop point
selects offset N first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := openBlobs(args)
			if err != nil {
				return err
			}
			entries := make([]event.Entry, len(files))
			for i, f := range files {
				entries[i] = f
			}

			editor := platform.NewScratchEditor(c.stdout)
			var opts []imagedrop.Option
			x := 0
			if at >= 0 {
				x = at
				opts = append(opts, imagedrop.WithPointSelector(editor))
			}
			s, err := c.openSession(cmd.Context(), editor, opts...)
			if err != nil {
				return err
			}

			derr := s.dispatch(cmd.Context(), event.EventDrop, event.NewDropEvent(x, 0, entries...))
			return errors.Join(derr, s.close())
		},
	}
	cmd.Flags().IntVar(&at, "at", -1, "Document offset of the drop point")
	return cmd
}

func newPasteCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paste FILE...",
		Short: "Paste files as clipboard items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := openBlobs(args)
			if err != nil {
				return err
			}
			items := make([]event.Entry, len(files))
			for i, f := range files {
				items[i] = platform.ClipboardItem{Blob: f}
			}

			s, err := c.openSession(cmd.Context(), platform.NewScratchEditor(c.stdout))
			if err != nil {
				return err
			}
			derr := s.dispatch(cmd.Context(), event.EventPaste, event.NewPasteEvent(items...))
			return errors.Join(derr, s.close())
		},
	}
}

func newWatchCommand(c *cli) *cobra.Command {
	var (
		metricsAddr string
		settle      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Drop every file that appears in DIR",
		Long: `Watch DIR and dispatch a single-file drop event for each file created in it,
once writes to the file have settled. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			// In-flight images finish after an interrupt.
			work := context.WithoutCancel(ctx)

			var opts []imagedrop.Option
			var metrics *metricsServer
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				obs, err := imagedrop.NewPrometheusObserver("imagedrop", reg)
				if err != nil {
					return err
				}
				opts = append(opts, imagedrop.WithObserver(obs))
				metrics, err = startMetricsServer(metricsAddr, reg, c.logger)
				if err != nil {
					return err
				}
				defer metrics.shutdown()
			}

			s, err := c.openSession(work, platform.NewScratchEditor(c.stdout), opts...)
			if err != nil {
				return err
			}

			folder, err := platform.NewDropFolder(work, args[0], s.surface, s.loop,
				platform.WithSettleDelay(settle),
				platform.WithFolderLogger(c.logger),
			)
			if err != nil {
				return errors.Join(err, s.close())
			}
			c.logger.Info("watching", slog.String("dir", folder.Dir()))

			<-ctx.Done()

			ferr := folder.Close()
			c.logger.Info("stopped watching", slog.Int64("dropped", folder.Dropped()))
			serr := s.close()
			if errors.Is(serr, errNotInserted) {
				// Already logged per image.
				serr = nil
			}
			return errors.Join(ferr, serr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&settle, "settle", platform.DefaultSettleDelay, "How long a file must stay unchanged before it is dropped")
	return cmd
}

func openBlobs(paths []string) ([]*platform.FileBlob, error) {
	blobs := make([]*platform.FileBlob, 0, len(paths))
	for _, p := range paths {
		b, err := platform.NewFileBlob(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}

type metricsServer struct {
	server *http.Server
	addr   string
	logger *slog.Logger
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *slog.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	m := &metricsServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr:   ln.Addr().String(),
		logger: logger,
	}
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", m.addr))
	return m, nil
}

func (m *metricsServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
}
