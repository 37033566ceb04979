package crs

import (
	"embed"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-spatial/geom"
	"github.com/perimeterx/marshmallow"

	"github.com/kaart/tegel/plane"
)

var (
	//go:embed crsdefs/*.json
	embeddedDefinitionsFS    embed.FS
	embeddedDefinitionsCache = make(map[string]*CRS)
)

// Definition is the JSON-configurable surface of a CRS, for grids that are
// not built in. Unknown keys are tolerated so definitions can carry
// documentation fields.
type Definition struct {
	Code string `validate:"required" json:"code"`
	// Projection names one of the registered projections.
	Projection string `default:"sphericalMercator" validate:"oneof=sphericalMercator lonlat" json:"projection"`
	// Transformation holds the linear coefficients a, b, c, d.
	Transformation [4]float64 `validate:"required" json:"transformation"`
	// Resolutions, optional, in projected units per pixel, finest last.
	Resolutions []float64 `validate:"omitempty,min=1,dive,gt=0" json:"resolutions,omitempty"`
	// Extent optionally overrides the projection's valid area, as
	// minx, miny, maxx, maxy in projected units.
	Extent  *[4]float64 `json:"extent,omitempty"`
	WrapLng *[2]float64 `json:"wrapLng,omitempty"`
	WrapLat *[2]float64 `json:"wrapLat,omitempty"`
	// Infinite marks a boundless plane; mutually exclusive with Extent.
	Infinite bool `validate:"excluded_with=Extent" json:"infinite,omitempty"`
}

func (def *Definition) UnmarshalJSON(data []byte) error {
	err := defaults.Set(def)
	if err != nil {
		return err
	}
	_, err = marshmallow.Unmarshal(data, def, marshmallow.WithExcludeKnownFieldsFromMap(true))
	if err != nil {
		return err
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	return validate.Struct(def)
}

// boundedProjection overrides the valid area of a base projection with the
// extent from a Definition.
type boundedProjection struct {
	Projection
	bounds plane.Bounds
}

func (p boundedProjection) Bounds() plane.Bounds {
	return p.bounds
}

var projectionsByName = map[string]Projection{
	"sphericalMercator": SphericalMercator{},
	"lonlat":            LonLat{},
}

// FromDefinition builds a usable CRS out of a parsed Definition.
func FromDefinition(def Definition) (*CRS, error) {
	projection, ok := projectionsByName[def.Projection]
	if !ok {
		return nil, fmt.Errorf("unknown projection %q in definition %q", def.Projection, def.Code)
	}
	if def.Extent != nil {
		extent := geom.Extent(*def.Extent)
		projection = boundedProjection{
			Projection: projection,
			bounds:     plane.FromGeomExtent(extent),
		}
	}
	return &CRS{
		Code:       def.Code,
		Projection: projection,
		Transformation: Transformation{
			A: def.Transformation[0], B: def.Transformation[1],
			C: def.Transformation[2], D: def.Transformation[3],
		},
		WrapLng:     def.WrapLng,
		WrapLat:     def.WrapLat,
		Infinite:    def.Infinite,
		Resolutions: def.Resolutions,
	}, nil
}

// LoadJSONDefinition parses a definition document into a CRS.
func LoadJSONDefinition(data []byte) (*CRS, error) {
	var def Definition
	err := def.UnmarshalJSON(data)
	if err != nil {
		return nil, err
	}
	return FromDefinition(def)
}

// LoadEmbeddedDefinition loads one of the definitions shipped with the
// package, by code (the file name without extension).
func LoadEmbeddedDefinition(id string) (*CRS, error) {
	cached, ok := embeddedDefinitionsCache[id]
	if ok {
		return cached, nil
	}
	data, err := embeddedDefinitionsFS.ReadFile("crsdefs/" + id + ".json")
	if err != nil {
		return nil, err
	}
	c, err := LoadJSONDefinition(data)
	if err != nil {
		return nil, err
	}
	embeddedDefinitionsCache[id] = c
	return c, nil
}
