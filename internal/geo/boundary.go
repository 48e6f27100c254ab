package geo

import (
	"math"
	"os"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"gopkg.in/yaml.v3"
)

// Boundary is the service-area polygon within which scoring is defined.
// When no polygon is configured the bounding box alone decides coverage.
type Boundary struct {
	name string
	bbox BBox
	poly *geom.MultiPolygon
}

// FromBBox builds a rectangular boundary from a bounding box.
func FromBBox(name string, bbox BBox) *Boundary {
	return &Boundary{name: name, bbox: bbox}
}

// Name returns the boundary label (e.g. the city name).
func (b *Boundary) Name() string { return b.name }

// BBox returns the bounding box enclosing the boundary.
func (b *Boundary) BBox() BBox { return b.bbox }

// Contains reports whether the coordinate lies inside the service area.
// Polygon holes are respected; the bbox is checked first as a cheap reject.
func (b *Boundary) Contains(lat, lon float64) bool {
	if !b.bbox.Contains(lat, lon) {
		return false
	}
	if b.poly == nil {
		return true
	}
	pt := geom.Coord{lon, lat}
	for i := 0; i < b.poly.NumPolygons(); i++ {
		p := b.poly.Polygon(i)
		if p.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < p.NumLinearRings(); r++ {
			if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(r).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// boundaryFile is the on-disk YAML schema for a service-area polygon.
// Each polygon is a list of rings; each ring a list of [lon, lat] pairs.
// The first ring is the shell, the rest are holes.
type boundaryFile struct {
	Name     string           `yaml:"name"`
	Polygons [][][][2]float64 `yaml:"polygons"`
}

// LoadYAML reads a service-area polygon from a YAML boundary file.
func LoadYAML(path string) (*Boundary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: read boundary file")
	}

	var bf boundaryFile
	if err := yaml.Unmarshal(raw, &bf); err != nil {
		return nil, eris.Wrap(err, "geo: parse boundary file")
	}
	if len(bf.Polygons) == 0 {
		return nil, eris.New("geo: boundary file has no polygons")
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, rings := range bf.Polygons {
		poly := geom.NewPolygon(geom.XY)
		for _, ring := range rings {
			coords := make([]geom.Coord, 0, len(ring)+1)
			for _, pt := range ring {
				coords = append(coords, geom.Coord{pt[0], pt[1]})
			}
			// Close the ring if the file left it open.
			if len(coords) > 0 && (coords[0][0] != coords[len(coords)-1][0] || coords[0][1] != coords[len(coords)-1][1]) {
				coords = append(coords, coords[0])
			}
			lr := geom.NewLinearRing(geom.XY)
			if _, err := lr.SetCoords(coords); err != nil {
				return nil, eris.Wrap(err, "geo: build boundary ring")
			}
			if err := poly.Push(lr); err != nil {
				return nil, eris.Wrap(err, "geo: push boundary ring")
			}
		}
		if err := mp.Push(poly); err != nil {
			return nil, eris.Wrap(err, "geo: push boundary polygon")
		}
	}

	return &Boundary{name: bf.Name, bbox: multiPolygonBBox(mp), poly: mp}, nil
}

// LoadShapefile reads the first polygon shape from a city boundary shapefile.
func LoadShapefile(path, name string) (*Boundary, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "geo: open boundary shapefile")
	}
	defer func() { _ = reader.Close() }()

	mp := geom.NewMultiPolygon(geom.XY)
	for reader.Next() {
		_, shape := reader.Shape()
		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		if err := appendShpPolygon(mp, polygon); err != nil {
			return nil, err
		}
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.New("geo: boundary shapefile has no polygon shapes")
	}

	return &Boundary{name: name, bbox: multiPolygonBBox(mp), poly: mp}, nil
}

func appendShpPolygon(mp *geom.MultiPolygon, polygon *shp.Polygon) error {
	parts := polygon.Parts
	points := polygon.Points

	poly := geom.NewPolygon(geom.XY)
	for p := 0; p < len(parts); p++ {
		start := int(parts[p])
		end := len(points)
		if p+1 < len(parts) {
			end = int(parts[p+1])
		}
		coords := make([]geom.Coord, 0, end-start)
		for i := start; i < end; i++ {
			coords = append(coords, geom.Coord{points[i].X, points[i].Y})
		}
		if len(coords) < 4 {
			continue
		}
		lr := geom.NewLinearRing(geom.XY)
		if _, err := lr.SetCoords(coords); err != nil {
			return eris.Wrap(err, "geo: build shapefile ring")
		}
		if err := poly.Push(lr); err != nil {
			return eris.Wrap(err, "geo: push shapefile ring")
		}
	}
	if poly.NumLinearRings() == 0 {
		return nil
	}
	return eris.Wrap(mp.Push(poly), "geo: push shapefile polygon")
}

func multiPolygonBBox(mp *geom.MultiPolygon) BBox {
	bbox := BBox{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLon: math.Inf(1), MaxLon: math.Inf(-1),
	}
	flat := mp.FlatCoords()
	for i := 0; i+1 < len(flat); i += mp.Stride() {
		lon, lat := flat[i], flat[i+1]
		bbox.MinLon = math.Min(bbox.MinLon, lon)
		bbox.MaxLon = math.Max(bbox.MaxLon, lon)
		bbox.MinLat = math.Min(bbox.MinLat, lat)
		bbox.MaxLat = math.Max(bbox.MaxLat, lat)
	}
	return bbox
}
