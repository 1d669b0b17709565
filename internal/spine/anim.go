package spine

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	CurveLinear  = 0
	CurveStepped = 1
	CurveBezier  = 2
)

type Curve struct {
	Type uint8
	Data [2]mgl32.Vec2
}

type KeyFrame struct {
	Time  float32
	Curve *Curve // nil on the last frame
	// TimelineAttachment
	Attachment string
	// TimelineColor TimelineTwoColor
	Color     mgl32.Vec4
	DarkColor mgl32.Vec4
	// TimelineRotate
	Rotate float32
	// TimelineTranslate
	Offset mgl32.Vec2
	// TimelineScale
	Scale mgl32.Vec2
	// TimelineShear
	Shear mgl32.Vec2
	// TimelineDrawOrder, draw position -> slot index, nil means setup order
	DrawOrder []int
	// TimelineDeform
	Weight bool
	Deform []mgl32.Vec2 // offsets from the setup vertices
	// TimelineEvent
	Event *Event
}

const (
	TimelineRotate                 = 0
	TimelineTranslate              = 1
	TimelineScale                  = 2
	TimelineShear                  = 3
	TimelineAttachment             = 4
	TimelineColor                  = 5
	TimelineDeform                 = 6
	TimelineEvent                  = 7
	TimelineDrawOrder              = 8
	TimelineIkConstraint           = 9
	TimelineTransformConstraint    = 10
	TimelinePathConstraintPosition = 11
	TimelinePathConstraintSpacing  = 12
	TimelinePathConstraintMix      = 13
	TimelineTwoColor               = 14
)

type Timeline struct {
	Type       uint8
	Slot       int
	Bone       int
	Constraint int
	Attachment string
	KeyFrames  []*KeyFrame
}

type Animation struct {
	Name      string
	Timelines []*Timeline
	Duration  float32
}

// Apply poses skel at time. Events keyed in (lastTime, time] are passed to
// fire when it is not nil.
func (a *Animation) Apply(skel *Skeleton, lastTime, time float32, loop bool, fire func(*Event)) {
	if loop && a.Duration > 0 {
		time = mod(time, a.Duration)
		if lastTime > 0 {
			lastTime = mod(lastTime, a.Duration)
		}
	}
	for _, timeline := range a.Timelines {
		if len(timeline.KeyFrames) == 0 {
			continue
		}
		if timeline.Type == TimelineEvent {
			if fire != nil {
				fireEvents(timeline.KeyFrames, lastTime, time, fire)
			}
			continue
		}
		timeline.apply(skel, time)
	}
}

func mod(val, duration float32) float32 {
	return float32(math.Mod(float64(val), float64(duration)))
}

func fireEvents(frames []*KeyFrame, lastTime, time float32, fire func(*Event)) {
	if lastTime > time { // 循环回到开头
		fireEvents(frames, lastTime, math.MaxFloat32, fire)
		lastTime = -1
	}
	for _, frame := range frames {
		if frame.Time > lastTime && frame.Time <= time {
			fire(frame.Event)
		}
	}
}

func GetIndexByTime(frames []*KeyFrame, curr float32) int {
	for i := len(frames) - 1; i >= 0; i-- {
		if curr >= frames[i].Time {
			return i
		}
	}
	return -1
}

// frameRate finds the key frame pair around curr and the eased rate between
// them. next is -1 when curr is at or after the last frame.
func frameRate(frames []*KeyFrame, curr float32) (pre, next int, rate float32) {
	pre = GetIndexByTime(frames, curr)
	if pre+1 >= len(frames) {
		return pre, -1, 0
	}
	start, stop := frames[pre], frames[pre+1]
	if stop.Time <= start.Time || start.Curve == nil {
		return pre, pre + 1, 0
	}
	return pre, pre + 1, CurveVal(start.Curve, (curr-start.Time)/(stop.Time-start.Time))
}

func (t *Timeline) apply(skel *Skeleton, curr float32) {
	frames := t.KeyFrames
	before := curr < frames[0].Time
	pre, next, rate := 0, -1, float32(0)
	if !before {
		pre, next, rate = frameRate(frames, curr)
	}
	switch t.Type {
	case TimelineRotate:
		bone := skel.Bones[t.Bone]
		if before {
			bone.Rotate = bone.Data.Rotate
			return
		}
		res := frames[pre].Rotate
		if next >= 0 {
			res += wrapDegree(frames[next].Rotate-res) * rate
		}
		bone.Rotate = bone.Data.Rotate + wrapDegree(res)
	case TimelineTranslate:
		bone := skel.Bones[t.Bone]
		if before {
			bone.Pos = bone.Data.Pos
			return
		}
		res := frames[pre].Offset
		if next >= 0 {
			res = Vec2Lerp(res, frames[next].Offset, rate)
		}
		bone.Pos = bone.Data.Pos.Add(res)
	case TimelineScale:
		bone := skel.Bones[t.Bone]
		if before {
			bone.Scale = bone.Data.Scale
			return
		}
		res := frames[pre].Scale
		if next >= 0 {
			res = Vec2Lerp(res, frames[next].Scale, rate)
		}
		bone.Scale = Vec2Mul(bone.Data.Scale, res)
	case TimelineShear:
		bone := skel.Bones[t.Bone]
		if before {
			bone.Shear = bone.Data.Shear
			return
		}
		res := frames[pre].Shear
		if next >= 0 {
			res = Vec2Lerp(res, frames[next].Shear, rate)
		}
		bone.Shear = bone.Data.Shear.Add(res)
	case TimelineAttachment:
		slot := skel.Slots[t.Slot]
		if before {
			skel.SetAttachment(t.Slot, slot.Data.Attachment)
			return
		}
		skel.SetAttachment(t.Slot, frames[pre].Attachment)
	case TimelineColor:
		slot := skel.Slots[t.Slot]
		if before {
			slot.Color = slot.Data.Color
			return
		}
		res := frames[pre].Color
		if next >= 0 {
			res = Vec4Lerp(res, frames[next].Color, rate)
		}
		slot.Color = res
	case TimelineTwoColor:
		slot := skel.Slots[t.Slot]
		if before {
			slot.Color = slot.Data.Color
			slot.DarkColor = slot.Data.DarkColor
			return
		}
		light, dark := frames[pre].Color, frames[pre].DarkColor
		if next >= 0 {
			light = Vec4Lerp(light, frames[next].Color, rate)
			dark = Vec4Lerp(dark, frames[next].DarkColor, rate)
		}
		slot.Color = light
		slot.DarkColor = dark
	case TimelineDeform:
		slot := skel.Slots[t.Slot]
		if slot.Attachment == nil || slot.Attachment.Name != t.Attachment {
			return
		}
		if before {
			slot.Deform = slot.Deform[:0]
			return
		}
		src := frames[pre].Deform
		if cap(slot.Deform) < len(src) {
			slot.Deform = make([]mgl32.Vec2, len(src))
		}
		slot.Deform = slot.Deform[:len(src)]
		if next < 0 {
			copy(slot.Deform, src)
			return
		}
		dst := frames[next].Deform
		for i := range src {
			slot.Deform[i] = Vec2Lerp(src[i], dst[i], rate)
		}
	case TimelineDrawOrder:
		if before {
			copy(skel.DrawOrder, skel.Slots)
			return
		}
		order := frames[pre].DrawOrder
		if order == nil {
			copy(skel.DrawOrder, skel.Slots)
			return
		}
		for i, idx := range order {
			skel.DrawOrder[i] = skel.Slots[idx]
		}
	case TimelineIkConstraint, TimelineTransformConstraint,
		TimelinePathConstraintPosition, TimelinePathConstraintSpacing, TimelinePathConstraintMix:
		// constraints are not evaluated
	default:
		panic(fmt.Sprintf("invalid timeline type: %v", t.Type))
	}
}

func evalX(curve [2]mgl32.Vec2, rate float32) float32 {
	rate2 := rate * rate
	rate3 := rate2 * rate
	invRate := 1 - rate
	invRate2 := invRate * invRate
	return rate3 + 3*rate2*invRate*curve[1].X() + 3*rate*invRate2*curve[0].X()
}

func evalY(curve [2]mgl32.Vec2, rate float32) float32 {
	rate2 := rate * rate
	rate3 := rate2 * rate
	invRate := 1 - rate
	invRate2 := invRate * invRate
	return rate3 + 3*rate2*invRate*curve[1].Y() + 3*rate*invRate2*curve[0].Y()
}

// findX bisects the bezier parameter whose x equals rate.
func findX(curve [2]mgl32.Vec2, rate float32) float32 {
	start := float32(0.0)
	stop := float32(1.0)
	res := float32(0.5)
	for i := 0; i < 32; i++ {
		x := evalX(curve, res)
		if math.Abs(float64(rate-x)) <= 0.00001 {
			break
		}
		if rate < x {
			stop = res
		} else {
			start = res
		}
		res = (stop + start) * 0.5
	}
	return res
}

// CurveVal maps a linear rate in 0~1 through the curve.
func CurveVal(curve *Curve, rate float32) float32 {
	switch curve.Type {
	case CurveLinear:
		return rate
	case CurveStepped:
		return 0
	case CurveBezier:
		return evalY(curve.Data, findX(curve.Data, rate))
	default:
		panic(fmt.Sprintf("invalid curve type: %v", curve.Type))
	}
}
