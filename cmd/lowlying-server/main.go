package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/twpayne/go-lowlying"
	"github.com/twpayne/go-lowlying/internal/config"
	"github.com/twpayne/go-lowlying/internal/history"
	"github.com/twpayne/go-lowlying/internal/logger"
	"github.com/twpayne/go-lowlying/internal/server"
	"github.com/twpayne/go-lowlying/internal/village"
)

const targetCRS = "epsg:4326"

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	listenAddr := flag.String("listen", cfg.ListenAddr, "listen address")
	method := flag.String("method", cfg.SegmentationMethod, "segmentation method ("+strings.Join(lowlying.SegmenterMethods(), ", ")+")")
	lowPointsPath := flag.String("low-points", cfg.LowPointsPath, "path to precomputed low-lying points")
	dtmPath := flag.String("dtm", cfg.DTMPath, "path to DTM GeoTIFF")
	sourceCRS := flag.String("source-crs", cfg.SourceCRS, "CRS of the low-lying points, if the DTM does not declare one")
	villagesPath := flag.String("villages", cfg.VillagesPath, "path to village boundaries GeoJSON")
	flag.Parse()

	l := logger.Setup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	historyStore, err := history.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer historyStore.Close()
	l.Info("history_open_ok", "backend", cfg.HistoryBackend)

	path := *lowPointsPath
	if *method == "raster" {
		// Raster segmentation is slow, so precomputed points are the default.
		path = *dtmPath
	}
	segmenter, err := lowlying.NewSegmenter(*method, lowlying.SegmenterConfig{
		FS:         os.DirFS(filepath.Dir(path)),
		Path:       filepath.Base(path),
		Workers:    cfg.SegmentWorkers,
		NoDataFill: cfg.DTMNoDataFill,
	})
	if err != nil {
		return err
	}
	pointsCRS := lowlying.SegmenterCRS(segmenter, *sourceCRS)
	l.Info("segmenter_crs", "method", *method, "crs", pointsCRS)
	if !strings.EqualFold(pointsCRS, targetCRS) {
		reprojector, err := lowlying.NewReprojector(pointsCRS, targetCRS)
		if err != nil {
			return err
		}
		segmenter = &lowlying.ReprojectingSegmenter{
			Segmenter:   segmenter,
			Reprojector: reprojector,
		}
	}
	start := time.Now()
	points, err := segmenter.Segment(ctx)
	if err != nil {
		return err
	}
	l.Info("segment_done", "method", *method, "points", len(points), "duration_ms", time.Since(start).Milliseconds())

	boundaries, err := village.LoadBoundaries(os.DirFS(filepath.Dir(*villagesPath)), filepath.Base(*villagesPath), cfg.VillageNameProperty)
	if err != nil {
		return err
	}
	l.Info("villages_load_ok", "villages", len(boundaries.Names()))

	handler, err := server.New(server.Options{
		Points:         points,
		Boundaries:     boundaries,
		History:        historyStore,
		Logger:         l,
		PointCacheSize: cfg.PointCacheSize,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		l.Info("http_listen", "addr", *listenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	l.Info("http_shutdown")
	return httpServer.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
