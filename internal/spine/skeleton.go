package spine

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Bone struct {
	Data     *BoneData
	Parent   *Bone
	Children []*Bone
	// local pose
	Rotate float32
	Pos    mgl32.Vec2
	Scale  mgl32.Vec2
	Shear  mgl32.Vec2
	// world transform
	Mat2     mgl32.Mat2
	WorldPos mgl32.Vec2
}

func (b *Bone) SetToSetupPose() {
	b.Rotate = b.Data.Rotate
	b.Pos = b.Data.Pos
	b.Scale = b.Data.Scale
	b.Shear = b.Data.Shear
}

// LocalToWorld transforms a point from bone space.
func (b *Bone) LocalToWorld(pos mgl32.Vec2) mgl32.Vec2 {
	return b.Mat2.Mul2x1(pos).Add(b.WorldPos)
}

type Slot struct {
	Data       *SlotData
	Bone       *Bone
	Color      mgl32.Vec4
	DarkColor  mgl32.Vec4
	Attachment *Attachment
	Deform     []mgl32.Vec2
}

type Skeleton struct {
	Data      *SkeletonData
	Bones     []*Bone
	Slots     []*Slot
	DrawOrder []*Slot
	Skin      *Skin
	Color     mgl32.Vec4
	X, Y      float32
	ScaleX    float32
	ScaleY    float32
	// YDown flips the y axis for screens whose origin is the top left corner.
	YDown bool
}

func NewSkeleton(data *SkeletonData) *Skeleton {
	res := &Skeleton{
		Data:   data,
		Skin:   data.DefaultSkin,
		Color:  mgl32.Vec4{1, 1, 1, 1},
		ScaleX: 1,
		ScaleY: 1,
		YDown:  true,
	}
	for _, item := range data.Bones {
		bone := &Bone{Data: item}
		if item.Parent >= 0 {
			bone.Parent = res.Bones[item.Parent]
			bone.Parent.Children = append(bone.Parent.Children, bone)
		}
		res.Bones = append(res.Bones, bone)
	}
	for _, item := range data.Slots {
		res.Slots = append(res.Slots, &Slot{Data: item, Bone: res.Bones[item.Bone]})
	}
	res.DrawOrder = make([]*Slot, len(res.Slots))
	res.SetToSetupPose()
	return res
}

func (s *Skeleton) RootBone() *Bone {
	if len(s.Bones) == 0 {
		return nil
	}
	return s.Bones[0]
}

func (s *Skeleton) FindBone(name string) *Bone {
	for _, bone := range s.Bones {
		if bone.Data.Name == name {
			return bone
		}
	}
	return nil
}

func (s *Skeleton) SetToSetupPose() {
	s.SetBonesToSetupPose()
	s.SetSlotsToSetupPose()
}

func (s *Skeleton) SetBonesToSetupPose() {
	for _, bone := range s.Bones {
		bone.SetToSetupPose()
	}
}

func (s *Skeleton) SetSlotsToSetupPose() {
	copy(s.DrawOrder, s.Slots)
	for i, slot := range s.Slots {
		slot.Color = slot.Data.Color
		slot.DarkColor = slot.Data.DarkColor
		s.SetAttachment(i, slot.Data.Attachment)
	}
}

// SetAttachment looks name up in the current skin, then the default skin.
// An empty name clears the slot.
func (s *Skeleton) SetAttachment(slot int, name string) {
	item := s.Slots[slot]
	var attachment *Attachment
	if name != "" {
		attachment = s.Skin.Attachment(slot, name)
		if attachment == nil && s.Skin != s.Data.DefaultSkin {
			attachment = s.Data.DefaultSkin.Attachment(slot, name)
		}
	}
	if item.Attachment != attachment {
		item.Deform = item.Deform[:0]
	}
	item.Attachment = attachment
}

// UpdateWorldTransform computes every bone matrix from the local pose.
// Bones are stored parent first, so one pass is enough.
func (s *Skeleton) UpdateWorldTransform() {
	sx, sy := s.ScaleX, s.ScaleY
	if s.YDown {
		sy = -sy
	}
	for _, bone := range s.Bones {
		updateBone(bone, s.X, s.Y, sx, sy)
	}
}

func updateBone(bone *Bone, x, y, sx, sy float32) {
	rotate, scale, shear := bone.Rotate, bone.Scale, bone.Shear
	parent := bone.Parent
	if parent == nil { // 根骨骼只受骨架缩放与位置影响
		rotationY := rotate + 90 + shear.Y()
		la := cosDeg(rotate+shear.X()) * scale.X() * sx
		lb := cosDeg(rotationY) * scale.Y() * sx
		lc := sinDeg(rotate+shear.X()) * scale.X() * sy
		ld := sinDeg(rotationY) * scale.Y() * sy
		bone.Mat2 = newMat2(la, lb, lc, ld)
		bone.WorldPos = mgl32.Vec2{bone.Pos.X()*sx + x, bone.Pos.Y()*sy + y}
		return
	}
	pa, pc, pb, pd := parent.Mat2[0], parent.Mat2[1], parent.Mat2[2], parent.Mat2[3]
	bone.WorldPos = parent.LocalToWorld(bone.Pos)
	var a, b, c, d float32
	switch bone.Data.TransformMode {
	case TransformOnlyTranslation:
		rotationY := rotate + 90 + shear.Y()
		a = cosDeg(rotate+shear.X()) * scale.X()
		b = cosDeg(rotationY) * scale.Y()
		c = sinDeg(rotate+shear.X()) * scale.X()
		d = sinDeg(rotationY) * scale.Y()
	case TransformNoRotationOrReflection:
		s := pa*pa + pc*pc
		var prx float32
		if s > 0.0001 {
			s = float32(math.Abs(float64(pa*pd-pb*pc))) / s
			pa /= sx
			pc /= sy
			pb = pc * s
			pd = pa * s
			prx = atan2Deg(pc, pa)
		} else {
			pa = 0
			pc = 0
			prx = 90 - atan2Deg(pd, pb)
		}
		rx := rotate + shear.X() - prx
		ry := rotate + shear.Y() - prx + 90
		la := cosDeg(rx) * scale.X()
		lb := cosDeg(ry) * scale.Y()
		lc := sinDeg(rx) * scale.X()
		ld := sinDeg(ry) * scale.Y()
		a = pa*la - pb*lc
		b = pa*lb - pb*ld
		c = pc*la + pd*lc
		d = pc*lb + pd*ld
	case TransformNoScale, TransformNoScaleOrReflection:
		cos, sin := cosDeg(rotate), sinDeg(rotate)
		za := (pa*cos + pb*sin) / sx
		zc := (pc*cos + pd*sin) / sy
		s := float32(math.Sqrt(float64(za*za + zc*zc)))
		if s > 0.00001 {
			s = 1 / s
		}
		za *= s
		zc *= s
		s = float32(math.Sqrt(float64(za*za + zc*zc)))
		if bone.Data.TransformMode == TransformNoScale && (pa*pd-pb*pc < 0) != ((sx < 0) != (sy < 0)) {
			s = -s
		}
		r := math.Pi/2 + math.Atan2(float64(zc), float64(za))
		zb := float32(math.Cos(r)) * s
		zd := float32(math.Sin(r)) * s
		la := cosDeg(shear.X()) * scale.X()
		lb := cosDeg(90+shear.Y()) * scale.Y()
		lc := sinDeg(shear.X()) * scale.X()
		ld := sinDeg(90+shear.Y()) * scale.Y()
		a = za*la + zb*lc
		b = za*lb + zb*ld
		c = zc*la + zd*lc
		d = zc*lb + zd*ld
	default: // TransformNormal
		rotationY := rotate + 90 + shear.Y()
		la := cosDeg(rotate+shear.X()) * scale.X()
		lb := cosDeg(rotationY) * scale.Y()
		lc := sinDeg(rotate+shear.X()) * scale.X()
		ld := sinDeg(rotationY) * scale.Y()
		bone.Mat2 = newMat2(pa*la+pb*lc, pa*lb+pb*ld, pc*la+pd*lc, pc*lb+pd*ld)
		return
	}
	// 非继承模式需要重新乘上骨架缩放
	bone.Mat2 = newMat2(a*sx, b*sx, c*sy, d*sy)
}
