package wld

import (
	"fmt"
	"math"

	"github.com/ossyrian/pfsparse/internal/bin"
)

// meshCounts are the element counts of the attribute streams following the mesh header.
type meshCounts struct {
	vertices     uint16
	texCoords    uint16
	normals      uint16
	colors       uint16
	polygons     uint16
	vertexPieces uint16
	polygonTex   uint16
	vertexTex    uint16
	meshOps      uint16
}

// decodeMesh decodes a 0x36 record. legacy selects fixed-point texture coordinates.
//
// The texture coordinate, normal and color streams may be longer than the vertex
// list; surplus entries are read and dropped.
func (d *Decoder) decodeMesh(r *bin.Reader, legacy bool) (*Mesh, error) {
	m := &Mesh{}
	var err error

	if m.Flags, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	if m.MaterialListRef, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read material list reference: %w", err)
	}
	if m.AnimatedVerticesRef, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read animation reference: %w", err)
	}
	if err := r.Skip(8); err != nil {
		return nil, fmt.Errorf("failed to read mesh header: %w", err)
	}

	var center [3]float32
	if err := r.Float32s(center[:]); err != nil {
		return nil, fmt.Errorf("failed to read center: %w", err)
	}
	m.Center = Vec3{X: center[0], Y: center[1], Z: center[2]}
	if err := r.Skip(12); err != nil {
		return nil, fmt.Errorf("failed to read mesh header: %w", err)
	}
	if m.MaxDistance, err = r.Float32(); err != nil {
		return nil, fmt.Errorf("failed to read max distance: %w", err)
	}
	var bounds [6]float32
	if err := r.Float32s(bounds[:]); err != nil {
		return nil, fmt.Errorf("failed to read bounds: %w", err)
	}
	m.Min = Vec3{X: bounds[0], Y: bounds[1], Z: bounds[2]}
	m.Max = Vec3{X: bounds[3], Y: bounds[4], Z: bounds[5]}

	var c meshCounts
	for _, f := range []*uint16{
		&c.vertices, &c.texCoords, &c.normals, &c.colors, &c.polygons,
		&c.vertexPieces, &c.polygonTex, &c.vertexTex, &c.meshOps,
	} {
		if *f, err = r.Uint16(); err != nil {
			return nil, fmt.Errorf("failed to read mesh counts: %w", err)
		}
	}
	if m.ScaleExponent, err = r.Int16(); err != nil {
		return nil, fmt.Errorf("failed to read scale: %w", err)
	}

	if err := readVertices(r, m, int(c.vertices)); err != nil {
		return nil, err
	}
	if err := readTexCoords(r, m, int(c.texCoords), legacy); err != nil {
		return nil, err
	}
	if err := readNormals(r, m, int(c.normals)); err != nil {
		return nil, err
	}
	if err := readColors(r, m, int(c.colors)); err != nil {
		return nil, err
	}
	if err := readPolygons(r, m, int(c.polygons)); err != nil {
		return nil, err
	}
	if err := readVertexPieces(r, m, int(c.vertexPieces)); err != nil {
		return nil, err
	}
	if err := readPolygonMaterials(r, m, int(c.polygonTex)); err != nil {
		return nil, err
	}
	if err := r.Skip(4 * int(c.vertexTex)); err != nil {
		return nil, fmt.Errorf("failed to read vertex materials: %w", err)
	}

	if dropped := max(0, int(c.texCoords)-len(m.Vertices)) +
		max(0, int(c.normals)-len(m.Vertices)) +
		max(0, int(c.colors)-len(m.Vertices)); dropped > 0 {
		d.logger.Debug("dropped surplus vertex attributes",
			"index", len(d.out),
			"vertex_count", len(m.Vertices),
			"dropped", dropped,
		)
	}

	frag, err := resolve(d.out, m.MaterialListRef)
	if err != nil {
		return nil, err
	}
	if set, ok := payloadAs[*TextureBrushSet](frag); ok {
		m.Materials = *set
	} else if m.MaterialListRef != 0 {
		d.logger.Debug("mesh material list is not a material list",
			"index", len(d.out),
			"ref", m.MaterialListRef,
		)
	}

	return m, nil
}

func readVertices(r *bin.Reader, m *Mesh, n int) error {
	if n > r.Remaining()/6 {
		return fmt.Errorf("%w: %d vertices in %d bytes", ErrTruncated, n, r.Remaining())
	}
	scale := float32(math.Ldexp(1, -int(m.ScaleExponent)))
	m.Vertices = make([]Vertex, n)
	for i := range m.Vertices {
		var p [3]int16
		for j := range p {
			v, err := r.Int16()
			if err != nil {
				return fmt.Errorf("failed to read vertex: %w", err)
			}
			p[j] = v
		}
		m.Vertices[i].Position = Vec3{
			X: m.Center.X + float32(p[0])*scale,
			Y: m.Center.Y + float32(p[1])*scale,
			Z: m.Center.Z + float32(p[2])*scale,
		}
	}
	return nil
}

func readTexCoords(r *bin.Reader, m *Mesh, n int, legacy bool) error {
	for i := 0; i < n; i++ {
		var uv Vec2
		if legacy {
			u, err := r.Uint16()
			if err != nil {
				return fmt.Errorf("failed to read texture coordinate: %w", err)
			}
			v, err := r.Uint16()
			if err != nil {
				return fmt.Errorf("failed to read texture coordinate: %w", err)
			}
			uv = Vec2{U: float32(u) * legacyTexCoordScale, V: float32(v) * legacyTexCoordScale}
		} else {
			var f [2]float32
			if err := r.Float32s(f[:]); err != nil {
				return fmt.Errorf("failed to read texture coordinate: %w", err)
			}
			uv = Vec2{U: f[0], V: f[1]}
		}
		if i < len(m.Vertices) {
			m.Vertices[i].TexCoord = uv
		}
	}
	return nil
}

func readNormals(r *bin.Reader, m *Mesh, n int) error {
	for i := 0; i < n; i++ {
		var c [3]int8
		for j := range c {
			v, err := r.Int8()
			if err != nil {
				return fmt.Errorf("failed to read normal: %w", err)
			}
			c[j] = v
		}
		if i < len(m.Vertices) {
			m.Vertices[i].Normal = Vec3{
				X: float32(c[0]) / normalDivisor,
				Y: float32(c[1]) / normalDivisor,
				Z: float32(c[2]) / normalDivisor,
			}
		}
	}
	return nil
}

func readColors(r *bin.Reader, m *Mesh, n int) error {
	for i := 0; i < n; i++ {
		c, err := r.Uint32()
		if err != nil {
			return fmt.Errorf("failed to read vertex color: %w", err)
		}
		if i < len(m.Vertices) {
			m.Vertices[i].Color = c
		}
	}
	return nil
}

func readPolygons(r *bin.Reader, m *Mesh, n int) error {
	if n > r.Remaining()/8 {
		return fmt.Errorf("%w: %d polygons in %d bytes", ErrTruncated, n, r.Remaining())
	}
	m.Polygons = make([]Polygon, n)
	for i := range m.Polygons {
		flags, err := r.Uint16()
		if err != nil {
			return fmt.Errorf("failed to read polygon: %w", err)
		}
		m.Polygons[i].Flags = flags
		for j := range m.Polygons[i].Indices {
			if m.Polygons[i].Indices[j], err = r.Uint16(); err != nil {
				return fmt.Errorf("failed to read polygon: %w", err)
			}
		}
	}
	return nil
}

func readVertexPieces(r *bin.Reader, m *Mesh, n int) error {
	if n > r.Remaining()/4 {
		return fmt.Errorf("%w: %d vertex pieces in %d bytes", ErrTruncated, n, r.Remaining())
	}
	m.VertexPieces = make([]VertexPiece, n)
	for i := range m.VertexPieces {
		count, err := r.Uint16()
		if err != nil {
			return fmt.Errorf("failed to read vertex piece: %w", err)
		}
		bone, err := r.Uint16()
		if err != nil {
			return fmt.Errorf("failed to read vertex piece: %w", err)
		}
		m.VertexPieces[i] = VertexPiece{Count: count, Bone: bone}
	}
	return nil
}

// readPolygonMaterials assigns material indices to runs of consecutive polygons.
// Runs reaching past the polygon list are clipped.
func readPolygonMaterials(r *bin.Reader, m *Mesh, n int) error {
	next := 0
	for i := 0; i < n; i++ {
		count, err := r.Uint16()
		if err != nil {
			return fmt.Errorf("failed to read polygon materials: %w", err)
		}
		material, err := r.Uint16()
		if err != nil {
			return fmt.Errorf("failed to read polygon materials: %w", err)
		}
		for j := 0; j < int(count) && next < len(m.Polygons); j++ {
			m.Polygons[next].Material = material
			next++
		}
	}
	return nil
}
