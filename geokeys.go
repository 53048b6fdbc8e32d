package lowlying

import (
	"errors"
	"fmt"
)

var errParse = errors.New("parse error")

type GeoKey uint16

const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS         GeoKey = 2048
	GeoKeyGeogCitation        GeoKey = 2049
	GeoKeyGeodeticDatum       GeoKey = 2050
	GeoKeyGeogLinearUnits     GeoKey = 2052
	GeoKeyAngularUnits        GeoKey = 2054
	GeoKeyGeogAngularUnitSize GeoKey = 2055
	GeoKeyEllipsoid           GeoKey = 2056

	GeoKeyProjectedCRS    GeoKey = 3072
	GeoKeyPCSCitation     GeoKey = 3073
	GeoKeyProjLinearUnits GeoKey = 3076

	GeoKeyVertical GeoKey = 4096
)

// Values of GeoKeyGTModelType.
const (
	ModelTypeProjected  = 1
	ModelTypeGeographic = 2
)

// Values of GeoKeyGTRasterType.
const (
	RasterPixelIsArea  = 1
	RasterPixelIsPoint = 2
)

// userDefined is the GeoKey value for a user-defined CRS.
const userDefined = 32767

// tiffTagLocation values in the GeoKeyDirectory.
const (
	geoDoubleParamsTag = 34736
	geoASCIIParamsTag  = 34737
)

type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errParse
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, errParse
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		numberOfValues := int(keyValues[2])
		switch tiffTagLocation {
		case 0:
			if numberOfValues != 1 {
				return nil, errParse
			}
			parsedGeoKeys.Params[key] = int(keyValues[3])
		case geoDoubleParamsTag:
			index := int(keyValues[3])
			if numberOfValues != 1 {
				return nil, errors.ErrUnsupported
			}
			if index >= len(doubleParams) {
				return nil, fmt.Errorf("geokey %d: %w", key, errParse)
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[index]
		case geoASCIIParamsTag:
			index := int(keyValues[3])
			if index+numberOfValues > len(asciiParams) {
				return nil, fmt.Errorf("geokey %d: %w", key, errParse)
			}
			parsedGeoKeys.ASCIIParams[key] = string(asciiParams[index : index+numberOfValues])
		default:
			return nil, errors.ErrUnsupported
		}
	}
	return parsedGeoKeys, nil
}

// EPSG returns the EPSG code of k's CRS, preferring the projected CRS over
// the geodetic CRS. It returns false if the CRS is missing or user-defined.
func (k *ParsedGeoKeys) EPSG() (int, bool) {
	for _, key := range []GeoKey{GeoKeyProjectedCRS, GeoKeyGeodeticCRS} {
		if code, ok := k.Params[key]; ok && code != 0 && code != userDefined {
			return code, true
		}
	}
	return 0, false
}

// RasterType returns k's raster type, defaulting to RasterPixelIsArea.
func (k *ParsedGeoKeys) RasterType() int {
	if rasterType, ok := k.Params[GeoKeyGTRasterType]; ok {
		return rasterType
	}
	return RasterPixelIsArea
}
