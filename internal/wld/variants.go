package wld

import (
	"fmt"

	"github.com/ossyrian/pfsparse/internal/bin"
	"github.com/ossyrian/pfsparse/internal/strhash"
)

func decodeTexture(r *bin.Reader) (*Texture, error) {
	count, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read name count: %w", err)
	}
	if count == 0 {
		count = 1
	}
	// every name needs at least its length prefix
	if uint64(count) > uint64(r.Remaining()/2) {
		return nil, fmt.Errorf("%w: %d texture names in %d bytes", ErrTruncated, count, r.Remaining())
	}

	t := &Texture{Names: make([]string, 0, count)}
	for i := uint32(0); i < count; i++ {
		n, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("failed to read name length: %w", err)
		}
		raw, err := r.Bytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("failed to read texture name: %w", err)
		}
		t.Names = append(t.Names, strhash.String(raw))
	}
	return t, nil
}

func (d *Decoder) decodeTextureBrush(r *bin.Reader) (*TextureBrush, error) {
	b := &TextureBrush{}
	var err error

	if b.Flags, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	count, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame count: %w", err)
	}
	if b.Flags&brushHasCurrentFrame != 0 {
		if b.CurrentFrame, err = r.Uint32(); err != nil {
			return nil, fmt.Errorf("failed to read current frame: %w", err)
		}
	}
	if b.Flags&brushHasSleep != 0 {
		if b.Sleep, err = r.Uint32(); err != nil {
			return nil, fmt.Errorf("failed to read sleep: %w", err)
		}
	}
	if b.FrameRefs, err = r.Uint32Slice(int(count)); err != nil {
		return nil, fmt.Errorf("failed to read frame references: %w", err)
	}

	b.Frames = make([]Texture, 0, len(b.FrameRefs))
	for _, ref := range b.FrameRefs {
		frag, err := resolve(d.out, ref)
		if err != nil {
			return nil, err
		}
		tex, ok := payloadAs[*Texture](frag)
		if !ok {
			d.logger.Debug("texture brush frame is not a texture",
				"index", len(d.out),
				"ref", ref,
			)
			b.Frames = append(b.Frames, Texture{})
			continue
		}
		b.Frames = append(b.Frames, *tex)
	}
	return b, nil
}

func decodeModelRef(r *bin.Reader) (*ModelRef, error) {
	ref, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read reference: %w", err)
	}
	flags, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	return &ModelRef{Ref: ref, Flags: flags}, nil
}

func (d *Decoder) decodePlaceable(r *bin.Reader) (Payload, error) {
	p := &Placeable{}
	var err error

	if p.ModelRef, err = r.Int32(); err != nil {
		return nil, fmt.Errorf("failed to read model name: %w", err)
	}
	if p.Flags, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	if p.Flags == placeableSkipFlags {
		d.logger.Debug("skipping placeable", "index", len(d.out), "flags", p.Flags)
		return nil, nil
	}
	if p.SphereRef, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read sphere reference: %w", err)
	}

	var v [9]float32
	if err := r.Float32s(v[:]); err != nil {
		return nil, fmt.Errorf("failed to read placement: %w", err)
	}
	p.Location = Vec3{X: v[0], Y: v[1], Z: v[2]}
	// stored as z, y, x in 1/512ths of a turn
	p.Rotation = Vec3{
		X: v[5] / 512 * 360,
		Y: v[4] / 512 * 360,
		Z: v[3] / 512 * 360,
	}
	// v[6] is unused
	p.ScaleY = v[7]
	p.ScaleX = v[8]

	p.ModelName, _ = poolString(d.pool, p.ModelRef)
	return p, nil
}

func decodeLight(r *bin.Reader) (*Light, error) {
	l := &Light{}
	var err error

	if l.Flags, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	if l.FrameCount, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read frame count: %w", err)
	}
	if l.Flags&lightHasCurrentFrame != 0 {
		if l.CurrentFrame, err = r.Uint32(); err != nil {
			return nil, fmt.Errorf("failed to read current frame: %w", err)
		}
	}
	if l.Flags&lightHasSleep != 0 {
		if l.Sleep, err = r.Uint32(); err != nil {
			return nil, fmt.Errorf("failed to read sleep: %w", err)
		}
	}
	if l.Flags&lightHasLevels != 0 {
		if l.Levels, err = r.Float32Slice(int(l.FrameCount)); err != nil {
			return nil, fmt.Errorf("failed to read light levels: %w", err)
		}
	}
	if l.Flags&lightHasColors != 0 {
		if uint64(l.FrameCount) > uint64(r.Remaining()/12) {
			return nil, fmt.Errorf("%w: %d light colors in %d bytes", ErrTruncated, l.FrameCount, r.Remaining())
		}
		l.Colors = make([]Vec3, l.FrameCount)
		for i := range l.Colors {
			var c [3]float32
			if err := r.Float32s(c[:]); err != nil {
				return nil, fmt.Errorf("failed to read light color: %w", err)
			}
			l.Colors[i] = Vec3{X: c[0], Y: c[1], Z: c[2]}
		}
	}
	return l, nil
}

func (d *Decoder) decodeLightInstance(r *bin.Reader) (*Light, error) {
	ref, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read light reference: %w", err)
	}
	flags, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	var v [4]float32
	if err := r.Float32s(v[:]); err != nil {
		return nil, fmt.Errorf("failed to read placement: %w", err)
	}

	l := &Light{}
	def, err := d.follow(ref, KindLightRef)
	if err != nil {
		return nil, err
	}
	if src, ok := payloadAs[*Light](def); ok {
		*l = *src
	} else {
		d.logger.Debug("light instance does not reach a light definition",
			"index", len(d.out),
			"ref", ref,
		)
	}

	l.Instance = true
	l.DefRef = ref
	l.Flags = flags
	l.Location = Vec3{X: v[0], Y: v[1], Z: v[2]}
	l.Radius = v[3]
	return l, nil
}

func decodeBSPTree(r *bin.Reader) (*BSPTree, error) {
	count, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read node count: %w", err)
	}
	const nodeSize = 28
	if uint64(count) > uint64(r.Remaining()/nodeSize) {
		return nil, fmt.Errorf("%w: %d BSP nodes in %d bytes", ErrTruncated, count, r.Remaining())
	}

	t := &BSPTree{Nodes: make([]BSPNode, count)}
	for i := range t.Nodes {
		var plane [4]float32
		if err := r.Float32s(plane[:]); err != nil {
			return nil, fmt.Errorf("failed to read node plane: %w", err)
		}
		ids, err := r.Uint32Slice(3)
		if err != nil {
			return nil, fmt.Errorf("failed to read node links: %w", err)
		}
		t.Nodes[i] = BSPNode{
			Normal:   Vec3{X: plane[0], Y: plane[1], Z: plane[2]},
			Distance: plane[3],
			Region:   ids[0],
			Left:     ids[1],
			Right:    ids[2],
		}
	}
	return t, nil
}

func (d *Decoder) decodeBSPRegion(name string, r *bin.Reader) (*BSPRegion, error) {
	reg := &BSPRegion{Name: name}
	var err error

	if reg.Flags, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	count, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read region count: %w", err)
	}
	if reg.Regions, err = r.Uint32Slice(int(count)); err != nil {
		return nil, fmt.Errorf("failed to read region ids: %w", err)
	}
	if r.Remaining() >= 4 {
		n, _ := r.Uint32()
		raw, err := r.Bytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("failed to read user data: %w", err)
		}
		reg.UserData = strhash.String(raw)
	}

	d.markRegions(reg)
	return reg, nil
}

// markRegions tags the nodes of the most recent BSP tree that fall in one of reg's
// regions. Node region ids are 1-based, region record ids 0-based.
func (d *Decoder) markRegions(reg *BSPRegion) {
	var tree *BSPTree
	for i := len(d.out) - 1; i >= 0; i-- {
		if t, ok := d.out[i].Payload.(*BSPTree); ok {
			tree = t
			break
		}
	}
	if tree == nil {
		d.logger.Debug("BSP region without a preceding tree", "index", len(d.out), "name", reg.Name)
		return
	}

	claimed := make(map[uint32]struct{}, len(reg.Regions))
	for _, id := range reg.Regions {
		claimed[id+1] = struct{}{}
	}
	for i := range tree.Nodes {
		if _, ok := claimed[tree.Nodes[i].Region]; ok && tree.Nodes[i].Region != 0 {
			tree.Nodes[i].Special = reg.Name
		}
	}
}

func (d *Decoder) decodeTextureBrushRef(r *bin.Reader) (*TextureBrush, error) {
	var (
		flags, method, pen uint32
		light              [2]float32
		err                error
	)
	if flags, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	if method, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read render method: %w", err)
	}
	if pen, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read RGB pen: %w", err)
	}
	if err := r.Float32s(light[:]); err != nil {
		return nil, fmt.Errorf("failed to read brightness: %w", err)
	}
	if flags == 0 {
		if err := r.Skip(8); err != nil {
			return nil, fmt.Errorf("failed to skip padding: %w", err)
		}
	}
	ref, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read brush reference: %w", err)
	}

	b := &TextureBrush{}
	target, err := d.follow(ref, KindTextureBrushModel)
	if err != nil {
		return nil, err
	}
	if src, ok := payloadAs[*TextureBrush](target); ok {
		*b = *src
	} else if ref != 0 {
		d.logger.Debug("material does not reach a texture brush",
			"index", len(d.out),
			"ref", ref,
		)
	}

	b.RenderMethod = method
	b.RGBPen = pen
	b.Brightness = light[0]
	b.ScaledAmbient = light[1]
	return b, nil
}

func (d *Decoder) decodeTextureBrushSet(r *bin.Reader) (*TextureBrushSet, error) {
	s := &TextureBrushSet{}
	var err error

	if s.Flags, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	count, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("failed to read material count: %w", err)
	}
	if s.Refs, err = r.Uint32Slice(int(count)); err != nil {
		return nil, fmt.Errorf("failed to read material references: %w", err)
	}

	s.Brushes = make([]TextureBrush, 0, len(s.Refs))
	for _, ref := range s.Refs {
		frag, err := resolve(d.out, ref)
		if err != nil {
			return nil, err
		}
		b, ok := payloadAs[*TextureBrush](frag)
		if !ok {
			d.logger.Debug("material list entry is not a material",
				"index", len(d.out),
				"ref", ref,
			)
			s.Brushes = append(s.Brushes, TextureBrush{})
			continue
		}
		s.Brushes = append(s.Brushes, *b)
	}
	return s, nil
}

// follow resolves ref and, if it lands on a record of kind via, resolves that
// record's ModelRef once more. Only out-of-range references are errors.
func (d *Decoder) follow(ref uint32, via Kind) (*Fragment, error) {
	frag, err := resolve(d.out, ref)
	if err != nil || frag == nil || frag.Kind != via {
		return frag, err
	}
	m, ok := frag.Payload.(*ModelRef)
	if !ok {
		return frag, nil
	}
	next, err := resolve(d.out, m.Ref)
	if err != nil {
		d.logger.Debug("dangling model reference", "index", len(d.out), "ref", m.Ref)
		return nil, nil
	}
	return next, nil
}

// payloadAs returns frag's payload as T. It reports false for a nil fragment or
// a payload of another variant.
func payloadAs[T Payload](frag *Fragment) (T, bool) {
	var zero T
	if frag == nil {
		return zero, false
	}
	p, ok := frag.Payload.(T)
	return p, ok
}
