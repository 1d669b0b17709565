package spine

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/colorm"
)

var (
	BlendMap = map[uint8]ebiten.Blend{
		BlendNormal:   ebiten.BlendSourceOver,
		BlendAdditive: ebiten.BlendLighter,
		BlendMultiply: {
			// 源颜色乘以背景颜色
			BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
			BlendFactorSourceAlpha:      ebiten.BlendFactorDestinationAlpha,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		},
		BlendScreen: {
			// 背景颜色乘以 (1 - 前景颜色)
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceColor,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		},
	}
	quadIndices = []uint16{0, 1, 2, 0, 2, 3}
)

func NewVertex(dx, dy, sx, sy float32) ebiten.Vertex {
	return ebiten.Vertex{
		DstX:   dx,
		DstY:   dy,
		SrcX:   sx,
		SrcY:   sy,
		ColorR: 1,
		ColorG: 1,
		ColorB: 1,
		ColorA: 1,
	}
}

// Renderer draws posed skeletons with ebiten. Page textures are uploaded on
// first use and kept until Dispose.
type Renderer struct {
	textures map[*AtlasPage]*ebiten.Image
	vertices []ebiten.Vertex
	world    []mgl32.Vec2
	option   colorm.DrawTrianglesOptions
}

func NewRenderer() *Renderer {
	return &Renderer{textures: make(map[*AtlasPage]*ebiten.Image)}
}

// Draw renders the skeleton in draw order. geoM maps skeleton coordinates to
// dst pixels.
func (r *Renderer) Draw(dst *ebiten.Image, skel *Skeleton, geoM ebiten.GeoM) error {
	for _, slot := range skel.DrawOrder {
		if err := r.drawSlot(dst, skel, slot, geoM); err != nil {
			return fmt.Errorf("spine: draw slot %s: %w", slot.Data.Name, err)
		}
	}
	return nil
}

func (r *Renderer) drawSlot(dst *ebiten.Image, skel *Skeleton, slot *Slot, geoM ebiten.GeoM) error {
	attachment := slot.Attachment
	if attachment == nil || attachment.Region == nil {
		return nil // 只有 region 与 mesh 需要绘制
	}
	var indices []uint16
	switch attachment.Type {
	case AttachmentRegion:
		r.world = r.world[:0]
		for _, offset := range attachment.Offsets {
			r.world = append(r.world, slot.Bone.LocalToWorld(offset))
		}
		indices = quadIndices
	case AttachmentMesh:
		r.world = meshWorldVertices(r.world[:0], skel, slot, attachment)
		indices = attachment.Indices
	default:
		return nil
	}
	if len(r.world) != len(attachment.UVs) {
		return fmt.Errorf("attachment %s has %d vertices and %d uvs", attachment.Name, len(r.world), len(attachment.UVs))
	}
	texture, err := r.texture(attachment.Region.Page)
	if err != nil {
		return err
	}
	r.vertices = r.vertices[:0]
	for i, pos := range r.world {
		x, y := geoM.Apply(float64(pos.X()), float64(pos.Y()))
		uv := attachment.UVs[i]
		r.vertices = append(r.vertices, NewVertex(float32(x), float32(y), uv.X(), uv.Y()))
	}
	clr := Vec4Mul(Vec4Mul(skel.Color, slot.Color), attachment.Color)
	if clr.W() <= 0 {
		return nil
	}
	var colorM colorm.ColorM
	colorM.Scale(float64(clr[0]), float64(clr[1]), float64(clr[2]), float64(clr[3]))
	r.option.Blend = BlendMap[slot.Data.BlendMode]
	colorm.DrawTriangles(dst, r.vertices, indices, texture, colorM, &r.option)
	return nil
}

func meshWorldVertices(res []mgl32.Vec2, skel *Skeleton, slot *Slot, attachment *Attachment) []mgl32.Vec2 {
	deform := slot.Deform
	if len(deform) != attachment.WorldVertexCount() {
		deform = nil
	}
	if !attachment.Weight {
		for i, vertex := range attachment.Vertices {
			if deform != nil {
				vertex = vertex.Add(deform[i])
			}
			res = append(res, slot.Bone.LocalToWorld(vertex))
		}
		return res
	}
	k := 0
	for _, items := range attachment.WeightVertices {
		pos := mgl32.Vec2{}
		for _, item := range items {
			offset := item.Offset
			if deform != nil {
				offset = offset.Add(deform[k])
			}
			k++
			pos = pos.Add(skel.Bones[item.Bone].LocalToWorld(offset).Mul(item.Weight))
		}
		res = append(res, pos)
	}
	return res
}

func (r *Renderer) texture(page *AtlasPage) (*ebiten.Image, error) {
	if res, ok := r.textures[page]; ok {
		return res, nil
	}
	if page.Image == nil {
		return nil, fmt.Errorf("atlas page %s has no image", page.Name)
	}
	res := ebiten.NewImageFromImage(page.Image)
	r.textures[page] = res
	return res, nil
}

// Dispose releases the uploaded page textures.
func (r *Renderer) Dispose() {
	for page, texture := range r.textures {
		texture.Deallocate()
		delete(r.textures, page)
	}
}
