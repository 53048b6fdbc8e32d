package lowlying

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/image/tiff/lzw"
)

// ErrNoData is returned when a GeoTIFF contains missing samples and no fill
// value is set.
var ErrNoData = errors.New("missing sample")

var geoTIFFChunksDecoded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "lowlying_geotiff_chunks_decoded_total",
	Help: "The total number of GeoTIFF tiles and strips decoded",
})

const (
	compressionNone = 1
	compressionLZW  = 5

	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// A GeoTIFF is a single-band GeoTIFF digital terrain model loaded into
// memory.
type GeoTIFF struct {
	Grid    *ElevationGrid
	GeoKeys *ParsedGeoKeys
	NoData  float64 // NaN if the file does not declare a no data value.
}

// A GeoTIFFOption sets an option on a GeoTIFF loader.
type GeoTIFFOption func(*geoTIFFLoader)

type geoTIFFLoader struct {
	noDataFill        float64
	noDataFillEnabled bool
}

// WithNoDataFill replaces missing samples with value.
func WithNoDataFill(value float64) GeoTIFFOption {
	return func(l *geoTIFFLoader) {
		l.noDataFill = value
		l.noDataFillEnabled = true
	}
}

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint16    `tiff:"field,tag=256"`
	ImageLength               uint16    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	StripOffsets              []uint64  `tiff:"field,tag=273"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	RowsPerStrip              uint16    `tiff:"field,tag=278"`
	StripByteCounts           []uint64  `tiff:"field,tag=279"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// A chunkLayout describes how an image is split into tiles or strips.
type chunkLayout struct {
	chunkWidth  int
	chunkLength int
	across      int
	down        int
	offsets     []uint64
	byteCounts  []uint64
	tiled       bool
}

// LoadGeoTIFF reads filename from fsys into memory. Only the first IFD is
// read, so overviews are ignored.
func LoadGeoTIFF(fsys fs.FS, filename string, options ...GeoTIFFOption) (*GeoTIFF, error) {
	l := &geoTIFFLoader{}
	for _, option := range options {
		option(l)
	}

	data, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return nil, err
	}
	geoTIFF, err := l.load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return geoTIFF, nil
}

func (l *geoTIFFLoader) load(data []byte) (*GeoTIFF, error) {
	tiffTIFF, err := tiff.Parse(bytes.NewReader(data), tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}
	if len(tiffTIFF.IFDs()) == 0 {
		return nil, errors.New("no IFDs")
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if ifd.SamplesPerPixel > 1 ||
		ifd.PlanarConfiguration > 1 ||
		ifd.Predictor > 1 ||
		(ifd.Compression != compressionNone && ifd.Compression != compressionLZW) ||
		len(ifd.ModelPixelScaleTag) != 3 ||
		len(ifd.ModelTiepointTag) != 6 {
		return nil, errors.ErrUnsupported
	}
	decodeSample, err := sampleDecoder(ifd.SampleFormat, ifd.BitsPerSample, byteOrder(data))
	if err != nil {
		return nil, err
	}
	bytesPerSample := int(ifd.BitsPerSample) / 8

	imageWidth := int(ifd.ImageWidth)
	imageLength := int(ifd.ImageLength)
	if imageWidth == 0 || imageLength == 0 {
		return nil, &InvalidGridError{Reason: "empty image"}
	}

	layout, err := newChunkLayout(&ifd, imageWidth, imageLength)
	if err != nil {
		return nil, err
	}

	noData := math.NaN()
	if s := strings.TrimSpace(strings.TrimRight(ifd.GDALNoData, "\x00")); s != "" {
		noData, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("GDAL_NODATA: %w", err)
		}
	}

	elevations := make([][]float64, imageLength)
	for i := range elevations {
		elevations[i] = make([]float64, imageWidth)
	}

	for r := range layout.down {
		for c := range layout.across {
			chunkIndex := c + layout.across*r
			rows := layout.chunkLength
			if !layout.tiled {
				rows = min(rows, imageLength-r*layout.chunkLength)
			}
			chunkData, err := decompressChunk(
				data,
				layout.offsets[chunkIndex],
				layout.byteCounts[chunkIndex],
				ifd.Compression,
				layout.chunkWidth*rows*bytesPerSample,
			)
			if err != nil {
				return nil, fmt.Errorf("chunk %d: %w", chunkIndex, err)
			}
			geoTIFFChunksDecoded.Inc()

			for y := range rows {
				i := r*layout.chunkLength + y
				if i >= imageLength {
					break
				}
				for x := range layout.chunkWidth {
					j := c*layout.chunkWidth + x
					if j >= imageWidth {
						break
					}
					offset := (y*layout.chunkWidth + x) * bytesPerSample
					sample := decodeSample(chunkData[offset : offset+bytesPerSample])
					if math.IsNaN(sample) || sample == noData {
						if !l.noDataFillEnabled {
							return nil, fmt.Errorf("row %d, column %d: %w", i, j, ErrNoData)
						}
						sample = l.noDataFill
					}
					elevations[i][j] = sample
				}
			}
		}
	}

	geoKeys := &ParsedGeoKeys{}
	if len(ifd.GeoKeyDirectoryTag) != 0 {
		geoKeys, err = ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
		if err != nil {
			return nil, err
		}
	}

	grid := &ElevationGrid{
		Elevations:   elevations,
		XCoordinates: make([]float64, imageWidth),
		YCoordinates: make([]float64, imageLength),
	}
	scaleX, scaleY := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1]
	tiepointI, tiepointJ := ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1]
	x0, y0 := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]
	// Coordinates are pixel centers.
	center := 0.5
	if geoKeys.RasterType() == RasterPixelIsPoint {
		center = 0
	}
	for j := range grid.XCoordinates {
		grid.XCoordinates[j] = x0 + (float64(j)-tiepointI+center)*scaleX
	}
	for i := range grid.YCoordinates {
		grid.YCoordinates[i] = y0 - (float64(i)-tiepointJ+center)*scaleY
	}

	return &GeoTIFF{
		Grid:    grid,
		GeoKeys: geoKeys,
		NoData:  noData,
	}, nil
}

// EPSG returns the EPSG code of g's CRS.
func (g *GeoTIFF) EPSG() (int, bool) {
	return g.GeoKeys.EPSG()
}

// CRS returns g's CRS in a form accepted by PROJ, or an empty string if it
// is unknown.
func (g *GeoTIFF) CRS() string {
	epsg, ok := g.EPSG()
	if !ok {
		return ""
	}
	return "epsg:" + strconv.Itoa(epsg)
}

func newChunkLayout(ifd *geoTIFFIFD, imageWidth, imageLength int) (*chunkLayout, error) {
	var layout chunkLayout
	switch {
	case ifd.TileWidth != 0 && ifd.TileLength != 0:
		layout = chunkLayout{
			chunkWidth:  int(ifd.TileWidth),
			chunkLength: int(ifd.TileLength),
			offsets:     ifd.TileOffsets,
			byteCounts:  ifd.TileByteCounts,
			tiled:       true,
		}
	case len(ifd.StripOffsets) != 0:
		rowsPerStrip := int(ifd.RowsPerStrip)
		if rowsPerStrip == 0 || rowsPerStrip > imageLength {
			rowsPerStrip = imageLength
		}
		layout = chunkLayout{
			chunkWidth:  imageWidth,
			chunkLength: rowsPerStrip,
			offsets:     ifd.StripOffsets,
			byteCounts:  ifd.StripByteCounts,
		}
	default:
		return nil, errors.ErrUnsupported
	}
	layout.across = (imageWidth + layout.chunkWidth - 1) / layout.chunkWidth
	layout.down = (imageLength + layout.chunkLength - 1) / layout.chunkLength
	chunks := layout.across * layout.down
	if len(layout.offsets) != chunks || len(layout.byteCounts) != chunks {
		return nil, errors.New("incorrect number of chunk byte counts or offsets")
	}
	return &layout, nil
}

// decompressChunk returns the size bytes of uncompressed chunk data stored
// at offset in data.
func decompressChunk(data []byte, offset, byteCount uint64, compression uint16, size int) ([]byte, error) {
	if offset+byteCount > uint64(len(data)) {
		return nil, io.ErrUnexpectedEOF
	}
	compressedData := data[offset : offset+byteCount]
	switch compression {
	case compressionNone:
		if len(compressedData) < size {
			return nil, io.ErrUnexpectedEOF
		}
		return compressedData[:size], nil
	case compressionLZW:
		chunkData := make([]byte, size)
		r := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer r.Close()
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return nil, err
		}
		return chunkData, nil
	default:
		return nil, errors.ErrUnsupported
	}
}

func byteOrder(data []byte) binary.ByteOrder {
	if len(data) >= 2 && data[0] == 'M' && data[1] == 'M' {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func sampleDecoder(sampleFormat, bitsPerSample uint16, order binary.ByteOrder) (func([]byte) float64, error) {
	if sampleFormat == 0 {
		sampleFormat = sampleFormatUint
	}
	switch {
	case sampleFormat == sampleFormatInt && bitsPerSample == 16:
		return func(b []byte) float64 {
			return float64(int16(order.Uint16(b)))
		}, nil
	case sampleFormat == sampleFormatUint && bitsPerSample == 16:
		return func(b []byte) float64 {
			return float64(order.Uint16(b))
		}, nil
	case sampleFormat == sampleFormatInt && bitsPerSample == 32:
		return func(b []byte) float64 {
			return float64(int32(order.Uint32(b)))
		}, nil
	case sampleFormat == sampleFormatFloat && bitsPerSample == 32:
		return func(b []byte) float64 {
			return float64(math.Float32frombits(order.Uint32(b)))
		}, nil
	case sampleFormat == sampleFormatFloat && bitsPerSample == 64:
		return func(b []byte) float64 {
			return math.Float64frombits(order.Uint64(b))
		}, nil
	default:
		return nil, errors.ErrUnsupported
	}
}
