package spine

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	TransformNormal                 = 0
	TransformOnlyTranslation        = 1
	TransformNoRotationOrReflection = 2
	TransformNoScale                = 3
	TransformNoScaleOrReflection    = 4
)

type BoneData struct {
	Index         int
	Name          string
	Parent        int // -1 for the root
	Rotate        float32
	Pos           mgl32.Vec2
	Scale         mgl32.Vec2
	Shear         mgl32.Vec2
	Length        float32
	TransformMode uint8
	SkinRequire   bool
}

const (
	BlendNormal   = 0
	BlendAdditive = 1
	BlendMultiply = 2
	BlendScreen   = 3
)

type SlotData struct {
	Index      int
	Name       string
	Bone       int
	Color      mgl32.Vec4
	DarkColor  mgl32.Vec4
	HasDark    bool
	Attachment string
	BlendMode  uint8
}

type WeightVertex struct {
	Bone   int        // 受那个骨骼影响
	Offset mgl32.Vec2 // 相对于骨骼位置偏移的大小
	Weight float32
}

const (
	AttachmentRegion   = 0
	AttachmentBoundBox = 1
	AttachmentMesh     = 2
	AttachmentLinkMesh = 3
	AttachmentPath     = 4
	AttachmentPoint    = 5
	AttachmentClip     = 6
)

type Attachment struct {
	Name           string
	Slot           int // name + slot 才是唯一的
	Type           uint8
	Path           string
	Color          mgl32.Vec4
	Weight         bool
	Vertices       []mgl32.Vec2
	WeightVertices [][]*WeightVertex
	// AttachmentRegion AttachmentPoint
	Rotate float32
	Pos    mgl32.Vec2
	Scale  mgl32.Vec2
	Size   mgl32.Vec2
	// AttachmentMesh
	RegionUVs  []mgl32.Vec2
	Indices    []uint16
	HullLength int
	// AttachmentLinkMesh
	ParentSkin    string
	ParentMesh    string
	InheritDeform bool
	// AttachmentPath
	Close         bool
	ConstantSpeed bool
	Lengths       []float32
	// AttachmentClip
	EndSlot int
	// resolved against the atlas
	Region  *AtlasRegion
	Offsets [4]mgl32.Vec2 // region quad BL UL UR BR in bone space
	UVs     []mgl32.Vec2  // page pixel coordinates
}

// WorldVertexCount is the number of deformable vertices.
func (a *Attachment) WorldVertexCount() int {
	if a.Weight {
		res := 0
		for _, items := range a.WeightVertices {
			res += len(items)
		}
		return res
	}
	return len(a.Vertices)
}

type attachmentKey struct {
	Slot int
	Name string
}

type Skin struct {
	Name        string
	Attachments []*Attachment
	index       map[attachmentKey]*Attachment
}

func newSkin(name string) *Skin {
	return &Skin{Name: name, index: make(map[attachmentKey]*Attachment)}
}

func (s *Skin) add(attachment *Attachment) {
	s.Attachments = append(s.Attachments, attachment)
	s.index[attachmentKey{Slot: attachment.Slot, Name: attachment.Name}] = attachment
}

func (s *Skin) Attachment(slot int, name string) *Attachment {
	if s == nil {
		return nil
	}
	return s.index[attachmentKey{Slot: slot, Name: name}]
}

type EventData struct {
	Name      string
	Int       int
	Float     float32
	String    string
	AudioPath string
	Volume    float32
	Balance   float32
}

type Event struct {
	Data   *EventData
	Time   float32
	Int    int
	Float  float32
	String string
}

type SkelHeader struct {
	Hash    string
	Version string
	Pos     mgl32.Vec2
	Size    mgl32.Vec2
	// nonessential
	FPS        float32
	ImagesPath string
	AudioPath  string
}

type SkeletonData struct {
	Header      *SkelHeader
	Bones       []*BoneData
	Slots       []*SlotData
	DefaultSkin *Skin
	Skins       []*Skin
	Events      []*EventData
	Animations  []*Animation
	// constraints are parsed for their names only
	IkConstraints        []string
	TransformConstraints []string
	PathConstraints      []string
}

func (d *SkeletonData) FindAnimation(name string) *Animation {
	for _, anim := range d.Animations {
		if anim.Name == name {
			return anim
		}
	}
	return nil
}

func (d *SkeletonData) FindSkin(name string) *Skin {
	if name == "" || name == "default" {
		return d.DefaultSkin
	}
	for _, skin := range d.Skins {
		if skin.Name == name {
			return skin
		}
	}
	return nil
}

// AnimationNames lists animations in declaration order.
func (d *SkeletonData) AnimationNames() []string {
	res := make([]string, 0, len(d.Animations))
	for _, anim := range d.Animations {
		res = append(res, anim.Name)
	}
	return res
}

// ParseSkeletonData decodes a Spine 3.8 binary skeleton. When atlas is not nil
// region and mesh attachments are bound to their atlas regions.
func ParseSkeletonData(data []byte, atlas *Atlas) (*SkeletonData, error) {
	r := newReader(data)
	res := &SkeletonData{}
	nonessential := false
	res.Header, nonessential = parseSkelHeader(r)
	r.strings = parseStrings(r)
	res.Bones = parseBones(r, nonessential)
	res.Slots = parseSlots(r, len(res.Bones))
	res.IkConstraints, res.TransformConstraints, res.PathConstraints = skipConstraints(r)
	res.DefaultSkin = parseSkin(r, res, true, nonessential)
	count := r.readCount()
	for i := 0; i < count && r.err == nil; i++ {
		res.Skins = append(res.Skins, parseSkin(r, res, false, nonessential))
	}
	res.Events = parseEvents(r)
	if r.err != nil {
		return nil, r.err
	}
	if err := res.linkMeshes(); err != nil {
		return nil, err
	}
	res.Animations = parseAnimations(r, res)
	if r.err != nil {
		return nil, r.err
	}
	if atlas != nil {
		if err := res.bindAtlas(atlas); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func parseSkelHeader(r *reader) (*SkelHeader, bool) {
	res := &SkelHeader{}
	res.Hash = r.readString()
	res.Version = r.readString()
	res.Pos = r.readVec2()
	res.Size = r.readVec2()
	nonessential := r.readBool()
	if nonessential {
		res.FPS = r.readF4()
		res.ImagesPath = r.readString()
		res.AudioPath = r.readString()
	}
	return res, nonessential
}

func parseStrings(r *reader) []string {
	count := r.readCount()
	res := make([]string, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		res = append(res, r.readString())
	}
	return res
}

func parseBones(r *reader, nonessential bool) []*BoneData {
	count := r.readCount()
	res := make([]*BoneData, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		bone := &BoneData{Index: i, Name: r.readString(), Parent: -1}
		if i > 0 {
			bone.Parent = r.readIndex(i, "parent bone")
		}
		bone.Rotate = r.readF4()
		bone.Pos = r.readVec2()
		bone.Scale = r.readVec2()
		bone.Shear = r.readVec2()
		bone.Length = r.readF4()
		bone.TransformMode = uint8(r.readInt())
		bone.SkinRequire = r.readBool()
		if nonessential {
			r.readI32() // editor color
		}
		res = append(res, bone)
	}
	return res
}

func parseSlots(r *reader, boneCount int) []*SlotData {
	count := r.readCount()
	res := make([]*SlotData, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		slot := &SlotData{Index: i, Name: r.readString()}
		slot.Bone = r.readIndex(boneCount, "slot bone")
		slot.Color = r.readClr()
		dark := r.readByte(4)
		if !(dark[0] == 0xFF && dark[1] == 0xFF && dark[2] == 0xFF && dark[3] == 0xFF) {
			slot.HasDark = true
			slot.DarkColor = mgl32.Vec4{float32(dark[1]) / 0xFF, float32(dark[2]) / 0xFF, float32(dark[3]) / 0xFF, 1}
		}
		slot.Attachment = r.readRefStr()
		slot.BlendMode = uint8(r.readInt())
		res = append(res, slot)
	}
	return res
}

func skipBoneList(r *reader) {
	count := r.readCount()
	for j := 0; j < count && r.err == nil; j++ {
		r.readInt()
	}
}

// skipConstraints reads ik, transform and path constraints and keeps their names.
func skipConstraints(r *reader) (ik, transform, path []string) {
	count := r.readCount()
	for i := 0; i < count && r.err == nil; i++ {
		ik = append(ik, r.readString())
		r.readInt()  // order
		r.readBool() // skin required
		skipBoneList(r)
		r.readInt()         // target
		r.readByte(4*2 + 4) // mix softness bend compress stretch uniform
	}
	count = r.readCount()
	for i := 0; i < count && r.err == nil; i++ {
		transform = append(transform, r.readString())
		r.readInt()
		r.readBool()
		skipBoneList(r)
		r.readInt()
		r.readByte(2 + 10*4) // local relative offsets mixes
	}
	count = r.readCount()
	for i := 0; i < count && r.err == nil; i++ {
		path = append(path, r.readString())
		r.readInt()
		r.readBool()
		skipBoneList(r)
		r.readInt()
		r.readInt() // position mode
		r.readInt() // spacing mode
		r.readInt() // rotate mode
		r.readByte(5 * 4)
	}
	return ik, transform, path
}

func parseSkin(r *reader, data *SkeletonData, defaultSkin bool, nonessential bool) *Skin {
	var skin *Skin
	if defaultSkin {
		skin = newSkin("default")
	} else {
		skin = newSkin(r.readRefStr())
		skipBoneList(r) // bones
		skipBoneList(r) // ik
		skipBoneList(r) // transform
		skipBoneList(r) // path
	}
	slotCount := r.readCount()
	for i := 0; i < slotCount && r.err == nil; i++ {
		slot := r.readIndex(len(data.Slots), "skin slot")
		count := r.readCount()
		for j := 0; j < count && r.err == nil; j++ {
			if attachment := parseAttachment(r, slot, len(data.Bones), nonessential); attachment != nil {
				skin.add(attachment)
			}
		}
	}
	return skin
}

func parseAttachment(r *reader, slot, boneCount int, nonessential bool) *Attachment {
	defaultName := r.readRefStr()
	name := r.readRefStr()
	if len(name) == 0 {
		name = defaultName
	}
	res := &Attachment{
		Name:  name,
		Slot:  slot,
		Type:  r.readU8(),
		Color: mgl32.Vec4{1, 1, 1, 1},
		Scale: mgl32.Vec2{1, 1},
	}
	switch res.Type {
	case AttachmentRegion:
		res.Path = r.readRefStr()
		if len(res.Path) == 0 {
			res.Path = name
		}
		res.Rotate = r.readF4()
		res.Pos = r.readVec2()
		res.Scale = r.readVec2()
		res.Size = r.readVec2()
		res.Color = r.readClr()
	case AttachmentBoundBox:
		count := r.readCount()
		res.Weight = r.readBool()
		res.Vertices, res.WeightVertices = parseVertices(r, count, boneCount, res.Weight)
		if nonessential {
			r.readI32()
		}
	case AttachmentMesh:
		res.Path = r.readRefStr()
		if len(res.Path) == 0 {
			res.Path = name
		}
		res.Color = r.readClr()
		count := r.readCount()
		res.RegionUVs = make([]mgl32.Vec2, 0, count)
		for i := 0; i < count && r.err == nil; i++ {
			res.RegionUVs = append(res.RegionUVs, r.readVec2())
		}
		iCount := r.readCount()
		res.Indices = make([]uint16, 0, iCount)
		for i := 0; i < iCount && r.err == nil; i++ {
			res.Indices = append(res.Indices, r.readU16())
		}
		res.Weight = r.readBool()
		res.Vertices, res.WeightVertices = parseVertices(r, count, boneCount, res.Weight)
		res.HullLength = r.readInt()
		if nonessential {
			edges := r.readCount()
			r.readByte(edges * 2)
			res.Size = r.readVec2()
		}
	case AttachmentLinkMesh:
		res.Path = r.readRefStr()
		if len(res.Path) == 0 {
			res.Path = name
		}
		res.Color = r.readClr()
		res.ParentSkin = r.readRefStr()
		res.ParentMesh = r.readRefStr()
		res.InheritDeform = r.readBool()
		if nonessential {
			res.Size = r.readVec2()
		}
	case AttachmentPath:
		res.Close = r.readBool()
		res.ConstantSpeed = r.readBool()
		count := r.readCount()
		res.Weight = r.readBool()
		res.Vertices, res.WeightVertices = parseVertices(r, count, boneCount, res.Weight)
		for i := 0; i < count/3 && r.err == nil; i++ {
			res.Lengths = append(res.Lengths, r.readF4())
		}
		if nonessential {
			r.readI32()
		}
	case AttachmentPoint:
		res.Rotate = r.readF4()
		res.Pos = r.readVec2()
		if nonessential {
			r.readI32()
		}
	case AttachmentClip:
		res.EndSlot = r.readInt()
		count := r.readCount()
		res.Weight = r.readBool()
		res.Vertices, res.WeightVertices = parseVertices(r, count, boneCount, res.Weight)
		if nonessential {
			r.readI32()
		}
	default:
		r.fail(fmt.Errorf("spine: unknown attachment type %d for %q", res.Type, name))
		return nil
	}
	return res
}

func parseVertices(r *reader, count, boneCount int, weight bool) ([]mgl32.Vec2, [][]*WeightVertex) {
	if !weight {
		vertices := make([]mgl32.Vec2, 0, count)
		for i := 0; i < count && r.err == nil; i++ {
			vertices = append(vertices, r.readVec2())
		}
		return vertices, nil
	}
	weightVertices := make([][]*WeightVertex, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		influences := r.readCount()
		temp := make([]*WeightVertex, 0, influences)
		for j := 0; j < influences && r.err == nil; j++ {
			temp = append(temp, &WeightVertex{
				Bone:   r.readIndex(boneCount, "weight bone"),
				Offset: r.readVec2(),
				Weight: r.readF4(),
			})
		}
		weightVertices = append(weightVertices, temp)
	}
	return nil, weightVertices
}

func parseEvents(r *reader) []*EventData {
	count := r.readCount()
	res := make([]*EventData, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		event := &EventData{
			Name:      r.readRefStr(),
			Int:       r.readVarint(false),
			Float:     r.readF4(),
			String:    r.readString(),
			AudioPath: r.readString(),
		}
		if len(event.AudioPath) > 0 {
			event.Volume = r.readF4()
			event.Balance = r.readF4()
		}
		res = append(res, event)
	}
	return res
}

// linkMeshes copies the geometry of parent meshes into linked meshes.
func (d *SkeletonData) linkMeshes() error {
	skins := append([]*Skin{d.DefaultSkin}, d.Skins...)
	for _, skin := range skins {
		for _, attachment := range skin.Attachments {
			if attachment.Type != AttachmentLinkMesh {
				continue
			}
			parentSkin := d.FindSkin(attachment.ParentSkin)
			if parentSkin == nil {
				parentSkin = skin
			}
			parent := parentSkin.Attachment(attachment.Slot, attachment.ParentMesh)
			if parent == nil || parent.Type != AttachmentMesh {
				return fmt.Errorf("spine: parent mesh %q not found for %q", attachment.ParentMesh, attachment.Name)
			}
			attachment.Type = AttachmentMesh
			attachment.RegionUVs = parent.RegionUVs
			attachment.Indices = parent.Indices
			attachment.Weight = parent.Weight
			attachment.Vertices = parent.Vertices
			attachment.WeightVertices = parent.WeightVertices
			attachment.HullLength = parent.HullLength
		}
	}
	return nil
}

func parseAnimations(r *reader, data *SkeletonData) []*Animation {
	count := r.readCount()
	res := make([]*Animation, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		res = append(res, parseAnimation(r, data))
	}
	return res
}

const (
	slotAttachment = 0
	slotColor      = 1
	slotTwoColor   = 2
)

const (
	boneRotate    = 0
	boneTranslate = 1
	boneScale     = 2
	boneShear     = 3
)

func readCurveFrames(r *reader, count int, read func(frame *KeyFrame)) []*KeyFrame {
	res := make([]*KeyFrame, 0, count)
	for k := 0; k < count && r.err == nil; k++ {
		frame := &KeyFrame{Time: r.readF4()}
		read(frame)
		if k < count-1 {
			frame.Curve = r.readCurve()
		}
		res = append(res, frame)
	}
	return res
}

func parseAnimation(r *reader, data *SkeletonData) *Animation {
	name := r.readString()
	timelines := make([]*Timeline, 0)
	// slot
	sCount := r.readCount()
	for i := 0; i < sCount && r.err == nil; i++ {
		slot := r.readIndex(len(data.Slots), "slot timeline")
		tCount := r.readCount()
		for j := 0; j < tCount && r.err == nil; j++ {
			temp := &Timeline{Slot: slot}
			type0 := r.readU8()
			fCount := r.readCount()
			switch type0 {
			case slotAttachment:
				temp.Type = TimelineAttachment
				for k := 0; k < fCount && r.err == nil; k++ {
					temp.KeyFrames = append(temp.KeyFrames, &KeyFrame{
						Time:       r.readF4(),
						Attachment: r.readRefStr(),
					})
				}
			case slotColor:
				temp.Type = TimelineColor
				temp.KeyFrames = readCurveFrames(r, fCount, func(frame *KeyFrame) {
					frame.Color = r.readClr()
				})
			case slotTwoColor:
				temp.Type = TimelineTwoColor
				temp.KeyFrames = readCurveFrames(r, fCount, func(frame *KeyFrame) {
					frame.Color = r.readClr()
					dark := r.readClr()
					frame.DarkColor = mgl32.Vec4{dark[1], dark[2], dark[3], 1}
				})
			default:
				r.fail(fmt.Errorf("spine: unknown slot timeline type %d", type0))
			}
			timelines = append(timelines, temp)
		}
	}
	// bone
	bCount := r.readCount()
	for i := 0; i < bCount && r.err == nil; i++ {
		bone := r.readIndex(len(data.Bones), "bone timeline")
		tCount := r.readCount()
		for j := 0; j < tCount && r.err == nil; j++ {
			temp := &Timeline{Bone: bone}
			type0 := r.readU8()
			fCount := r.readCount()
			switch type0 {
			case boneRotate:
				temp.Type = TimelineRotate
				temp.KeyFrames = readCurveFrames(r, fCount, func(frame *KeyFrame) {
					frame.Rotate = r.readF4()
				})
			case boneTranslate:
				temp.Type = TimelineTranslate
				temp.KeyFrames = readCurveFrames(r, fCount, func(frame *KeyFrame) {
					frame.Offset = r.readVec2()
				})
			case boneScale:
				temp.Type = TimelineScale
				temp.KeyFrames = readCurveFrames(r, fCount, func(frame *KeyFrame) {
					frame.Scale = r.readVec2()
				})
			case boneShear:
				temp.Type = TimelineShear
				temp.KeyFrames = readCurveFrames(r, fCount, func(frame *KeyFrame) {
					frame.Shear = r.readVec2()
				})
			default:
				r.fail(fmt.Errorf("spine: unknown bone timeline type %d", type0))
			}
			timelines = append(timelines, temp)
		}
	}
	// ik constraint
	count := r.readCount()
	for i := 0; i < count && r.err == nil; i++ {
		temp := &Timeline{Type: TimelineIkConstraint, Constraint: r.readInt()}
		temp.KeyFrames = readCurveFrames(r, r.readCount(), func(frame *KeyFrame) {
			r.readByte(2*4 + 3) // mix softness bend compress stretch
		})
		timelines = append(timelines, temp)
	}
	// transform constraint
	count = r.readCount()
	for i := 0; i < count && r.err == nil; i++ {
		temp := &Timeline{Type: TimelineTransformConstraint, Constraint: r.readInt()}
		temp.KeyFrames = readCurveFrames(r, r.readCount(), func(frame *KeyFrame) {
			r.readByte(4 * 4)
		})
		timelines = append(timelines, temp)
	}
	// path constraint
	count = r.readCount()
	for i := 0; i < count && r.err == nil; i++ {
		index := r.readInt()
		tCount := r.readCount()
		for j := 0; j < tCount && r.err == nil; j++ {
			type0 := r.readU8()
			fCount := r.readCount()
			temp := &Timeline{Constraint: index}
			size := 4
			switch type0 {
			case 0:
				temp.Type = TimelinePathConstraintPosition
			case 1:
				temp.Type = TimelinePathConstraintSpacing
			case 2:
				temp.Type = TimelinePathConstraintMix
				size = 8
			default:
				r.fail(fmt.Errorf("spine: unknown path timeline type %d", type0))
			}
			temp.KeyFrames = readCurveFrames(r, fCount, func(frame *KeyFrame) {
				r.readByte(size)
			})
			timelines = append(timelines, temp)
		}
	}
	// deform
	count = r.readCount()
	for i := 0; i < count && r.err == nil; i++ {
		skinIndex := r.readInt()
		var skin *Skin
		if skinIndex == 0 {
			skin = data.DefaultSkin
		} else if skinIndex-1 < len(data.Skins) {
			skin = data.Skins[skinIndex-1]
		} else {
			r.fail(fmt.Errorf("spine: deform skin %d out of range", skinIndex))
			break
		}
		sCount = r.readCount()
		for j := 0; j < sCount && r.err == nil; j++ {
			slot := r.readIndex(len(data.Slots), "deform slot")
			aCount := r.readCount()
			for k := 0; k < aCount && r.err == nil; k++ {
				temp := &Timeline{Type: TimelineDeform, Slot: slot, Attachment: r.readRefStr()}
				attachment := skin.Attachment(temp.Slot, temp.Attachment)
				if attachment == nil {
					r.fail(fmt.Errorf("spine: deform attachment %q not found on slot %d", temp.Attachment, slot))
					break
				}
				size := attachment.WorldVertexCount()
				temp.KeyFrames = readCurveFrames(r, r.readCount(), func(frame *KeyFrame) {
					frame.Weight = attachment.Weight
					frame.Deform = make([]mgl32.Vec2, size)
					end := r.readCount()
					if end == 0 {
						return
					}
					start := r.readInt()
					if start < 0 {
						r.fail(fmt.Errorf("%w: deform offset %d", ErrCorruptData, start))
						return
					}
					end += start
					for n := start; n < end && r.err == nil; n++ {
						val := r.readF4()
						if n/2 < size {
							frame.Deform[n/2][n%2] = val
						}
					}
				})
				timelines = append(timelines, temp)
			}
		}
	}
	// draw order
	count = r.readCount()
	if count > 0 {
		temp := &Timeline{Type: TimelineDrawOrder}
		size := len(data.Slots)
		for i := 0; i < count && r.err == nil; i++ {
			frame := &KeyFrame{Time: r.readF4()}
			cCount := r.readCount()
			if cCount > 0 {
				frame.DrawOrder = readDrawOrder(r, size, cCount)
			}
			temp.KeyFrames = append(temp.KeyFrames, frame)
		}
		timelines = append(timelines, temp)
	}
	// event
	count = r.readCount()
	if count > 0 {
		temp := &Timeline{Type: TimelineEvent}
		for i := 0; i < count && r.err == nil; i++ {
			time := r.readF4()
			idx := r.readIndex(len(data.Events), "event")
			if r.err != nil {
				break
			}
			eventData := data.Events[idx]
			event := &Event{Data: eventData, Time: time}
			event.Int = r.readVarint(false)
			event.Float = r.readF4()
			event.String = eventData.String
			if r.readBool() {
				event.String = r.readString()
			}
			if len(eventData.AudioPath) > 0 {
				r.readF4() // volume
				r.readF4() // balance
			}
			temp.KeyFrames = append(temp.KeyFrames, &KeyFrame{Time: time, Event: event})
		}
		timelines = append(timelines, temp)
	}
	duration := float32(0)
	for _, timeline := range timelines {
		if len(timeline.KeyFrames) == 0 {
			continue
		}
		sort.SliceStable(timeline.KeyFrames, func(i, j int) bool {
			return timeline.KeyFrames[i].Time < timeline.KeyFrames[j].Time
		})
		duration = max(duration, timeline.KeyFrames[len(timeline.KeyFrames)-1].Time)
	}
	return &Animation{
		Name:      name,
		Timelines: timelines,
		Duration:  duration,
	}
}

// readDrawOrder returns draw position -> slot index.
func readDrawOrder(r *reader, size int, count int) []int {
	drawOrder := make([]int, size)
	for i := range drawOrder {
		drawOrder[i] = -1
	}
	unchanged := make([]int, 0, size)
	original := 0
	for j := 0; j < count && r.err == nil; j++ {
		slot := r.readInt()
		for original != slot && original < size {
			unchanged = append(unchanged, original)
			original++
		}
		pos := original + r.readVarint(true)
		if pos < 0 || pos >= size || original >= size || drawOrder[pos] != -1 {
			r.fail(fmt.Errorf("%w: draw order offset out of range for slot %d", ErrCorruptData, slot))
			return nil
		}
		drawOrder[pos] = original
		original++
	}
	for original < size {
		unchanged = append(unchanged, original)
		original++
	}
	for i := size - 1; i >= 0; i-- {
		if drawOrder[i] == -1 {
			if len(unchanged) == 0 {
				r.fail(fmt.Errorf("%w: draw order has no slot for position %d", ErrCorruptData, i))
				return nil
			}
			drawOrder[i] = unchanged[len(unchanged)-1]
			unchanged = unchanged[:len(unchanged)-1]
		}
	}
	return drawOrder
}
