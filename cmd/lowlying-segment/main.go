package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/twpayne/go-lowlying"
	"github.com/twpayne/go-lowlying/internal/logger"
)

func run() error {
	dtmPath := flag.String("dtm", os.Getenv("DTM_PATH"), "path to DTM GeoTIFF")
	output := flag.String("o", "low_lying_pts.csv", "output file (.csv or .geojson)")
	workers := flag.Int("workers", 1, "number of segmentation workers")
	noDataFill := flag.Float64("nodata-fill", 0, "value for missing samples")
	fillNoData := flag.Bool("fill-nodata", false, "replace missing samples with -nodata-fill")
	targetCRS := flag.String("target-crs", "", "reproject points to this CRS")
	flag.Parse()

	if *dtmPath == "" {
		return errors.New("syntax: lowlying-segment -dtm path [-o output]")
	}

	l := logger.Setup()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var geoTIFFOptions []lowlying.GeoTIFFOption
	if *fillNoData {
		geoTIFFOptions = append(geoTIFFOptions, lowlying.WithNoDataFill(*noDataFill))
	}
	geoTIFF, err := lowlying.LoadGeoTIFF(os.DirFS(filepath.Dir(*dtmPath)), filepath.Base(*dtmPath), geoTIFFOptions...)
	if err != nil {
		return err
	}
	l.Info("dtm_load_ok", "rows", geoTIFF.Grid.Rows(), "cols", geoTIFF.Grid.Cols(), "crs", geoTIFF.CRS())

	segmenter, err := lowlying.LoadRasterSegmenter(geoTIFF.Grid, lowlying.WithWorkers(*workers))
	if err != nil {
		return err
	}
	start := time.Now()
	points, err := segmenter.Segment(ctx)
	if err != nil {
		return err
	}
	l.Info("segment_done", "points", len(points), "duration_ms", time.Since(start).Milliseconds())

	if *targetCRS != "" {
		sourceCRS := geoTIFF.CRS()
		if sourceCRS == "" {
			return errors.New("DTM has no EPSG CRS")
		}
		reprojector, err := lowlying.NewReprojector(sourceCRS, *targetCRS)
		if err != nil {
			return err
		}
		if points, err = reprojector.Reproject(points); err != nil {
			return err
		}
	}

	file, err := os.Create(*output)
	if err != nil {
		return err
	}
	defer file.Close()
	switch strings.ToLower(filepath.Ext(*output)) {
	case ".geojson", ".json":
		err = json.NewEncoder(file).Encode(lowlying.PointsFeatureCollection(points))
	default:
		err = lowlying.WritePointsCSV(file, points)
	}
	if err != nil {
		return err
	}
	return file.Close()
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
