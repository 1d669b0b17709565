package spine

// Drawable pairs a skeleton with the animation state that poses it.
type Drawable struct {
	Skeleton *Skeleton
	State    *AnimationState
}

func NewDrawable(data *SkeletonData) *Drawable {
	skel := NewSkeleton(data)
	skel.UpdateWorldTransform()
	return &Drawable{Skeleton: skel, State: NewAnimationState(data)}
}

// Update advances the animation by delta seconds and recomputes the pose.
func (d *Drawable) Update(delta float32) {
	d.State.Update(delta)
	d.State.Apply(d.Skeleton)
	d.Skeleton.UpdateWorldTransform()
}
