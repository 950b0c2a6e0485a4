package components

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/scenecull/engine/math"
)

/**
 * @brief A viewpoint the visibility-range cull runs from. Each camera owns
 * one viewport bit so range hysteresis is tracked per camera.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the basis is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll).
	 * NOTE: Do not set this directly, use SetEulerRotation() instead.
	 */
	EulerRotation math.Vec3
	/** @brief The viewport bit handed to the visibility cull. */
	ViewportMask uint64
	/** @brief Internal flag used to determine when the basis needs to be rebuilt. */
	IsDirty bool

	forward math.Vec3
	right   math.Vec3
}

type CameraLookup struct {
	ID             uint16
	ReferenceCount uint16
	Camera         *Camera
}

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

func NewCamera(viewportMask uint64) *Camera {
	camera := &Camera{ViewportMask: viewportMask}
	camera.Reset()
	return camera
}

// Reset moves the camera back to the origin looking down -Z. The viewport
// bit is kept.
func (c *Camera) Reset() {
	c.EulerRotation = math.NewVec3Zero()
	c.Position = math.NewVec3Zero()
	c.IsDirty = true
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
}

func (c *Camera) GetEulerRotation() math.Vec3 {
	return c.EulerRotation
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.IsDirty = true
}

func (c *Camera) updateBasis() {
	if !c.IsDirty {
		return
	}
	pitch, yaw := c.EulerRotation.X, c.EulerRotation.Y
	sp, cp := math32.Sincos(pitch)
	sy, cy := math32.Sincos(yaw)

	c.forward = math.NewVec3(-sy*cp, sp, -cy*cp)
	c.right = math.NewVec3(cy, 0, -sy)
	c.IsDirty = false
}

func (c *Camera) Forward() math.Vec3 {
	c.updateBasis()
	return c.forward
}

func (c *Camera) Backward() math.Vec3 {
	return c.Forward().MulScalar(-1)
}

func (c *Camera) Left() math.Vec3 {
	return c.Right().MulScalar(-1)
}

func (c *Camera) Right() math.Vec3 {
	c.updateBasis()
	return c.right
}

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.MulScalar(amount))
}

func (c *Camera) MoveForward(amount float32) {
	c.move(c.Forward(), amount)
}

func (c *Camera) MoveBackward(amount float32) {
	c.move(c.Backward(), amount)
}

func (c *Camera) MoveLeft(amount float32) {
	c.move(c.Left(), amount)
}

func (c *Camera) MoveRight(amount float32) {
	c.move(c.Right(), amount)
}

func (c *Camera) MoveUp(amount float32) {
	c.move(math.NewVec3(0, 1, 0), amount)
}

func (c *Camera) MoveDown(amount float32) {
	c.move(math.NewVec3(0, -1, 0), amount)
}

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation.Y += amount
	c.IsDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation.X += amount

	// Clamp to avoid Gimbal lock.
	limit := float32(1.55334306) // 89 degrees
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X, -limit, limit)

	c.IsDirty = true
}
