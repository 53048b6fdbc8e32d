package lowlying

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	errMissingColumn     = errors.New("missing column")
)

// A PrecomputedPointLoader is a Segmenter that reads low-lying points that
// were segmented earlier from a CSV or GeoJSON file.
type PrecomputedPointLoader struct {
	fsys     fs.FS
	filename string
}

// NewPrecomputedPointLoader returns a new PrecomputedPointLoader that reads
// filename from fsys. The format is chosen by filename's extension.
func NewPrecomputedPointLoader(fsys fs.FS, filename string) *PrecomputedPointLoader {
	return &PrecomputedPointLoader{
		fsys:     fsys,
		filename: filename,
	}
}

// Segment reads the points from l's file.
func (l *PrecomputedPointLoader) Segment(ctx context.Context) ([]Point, error) {
	var readPoints func(io.Reader) ([]Point, error)
	switch strings.ToLower(path.Ext(l.filename)) {
	case ".csv":
		readPoints = readCSVPoints
	case ".geojson", ".json":
		readPoints = readGeoJSONPoints
	default:
		return nil, fmt.Errorf("%s: %w", l.filename, ErrUnsupportedFormat)
	}

	file, err := l.fsys.Open(l.filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	points, err := readPoints(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.filename, err)
	}
	return points, nil
}

// readCSVPoints reads points from the x and y columns of a CSV file with a
// header. If there is a label column then only rows labeled as depressions
// are returned.
func readCSVPoints(r io.Reader) ([]Point, error) {
	csvReader := csv.NewReader(r)
	csvReader.ReuseRecord = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, err
	}
	xIndex, yIndex, labelIndex := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "x":
			xIndex = i
		case "y":
			yIndex = i
		case "label":
			labelIndex = i
		}
	}
	switch {
	case xIndex == -1:
		return nil, fmt.Errorf("x: %w", errMissingColumn)
	case yIndex == -1:
		return nil, fmt.Errorf("y: %w", errMissingColumn)
	}

	var points []Point
	for {
		record, err := csvReader.Read()
		switch {
		case errors.Is(err, io.EOF):
			return points, nil
		case err != nil:
			return nil, err
		}
		line, _ := csvReader.FieldPos(0)
		if labelIndex != -1 {
			label, err := strconv.ParseFloat(record[labelIndex], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: label: %w", line, err)
			}
			if label != float64(Depression) {
				continue
			}
		}
		x, err := strconv.ParseFloat(record[xIndex], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: x: %w", line, err)
		}
		y, err := strconv.ParseFloat(record[yIndex], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: y: %w", line, err)
		}
		points = append(points, Point{X: x, Y: y})
	}
}

// readGeoJSONPoints reads the Point features of a GeoJSON
// FeatureCollection. Features with other geometries are ignored.
func readGeoJSONPoints(r io.Reader) ([]Point, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	featureCollection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, len(featureCollection.Features))
	for _, feature := range featureCollection.Features {
		if point, ok := feature.Geometry.(orb.Point); ok {
			points = append(points, Point{X: point.X(), Y: point.Y()})
		}
	}
	return points, nil
}

// WritePointsCSV writes points to w in the format read by
// PrecomputedPointLoader.
func WritePointsCSV(w io.Writer, points []Point) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{"label", "x", "y"}); err != nil {
		return err
	}
	label := strconv.Itoa(int(Depression))
	for _, point := range points {
		if err := csvWriter.Write([]string{
			label,
			strconv.FormatFloat(point.X, 'f', -1, 64),
			strconv.FormatFloat(point.Y, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// PointsFeatureCollection returns points as a GeoJSON FeatureCollection.
func PointsFeatureCollection(points []Point) *geojson.FeatureCollection {
	featureCollection := geojson.NewFeatureCollection()
	for _, point := range points {
		featureCollection.Append(geojson.NewFeature(orb.Point{point.X, point.Y}))
	}
	return featureCollection
}
