package metadata

/** @brief The kind of resource an instance places in the world. */
type InstanceType int

const (
	INSTANCE_NONE InstanceType = iota
	INSTANCE_MESH
	INSTANCE_MULTIMESH
	INSTANCE_PARTICLES
	INSTANCE_PARTICLES_COLLISION
	INSTANCE_MAX
)

/** @brief Bitmask of the instance types that are drawn as geometry. */
const INSTANCE_GEOMETRY_MASK uint32 = (1 << INSTANCE_MESH) | (1 << INSTANCE_MULTIMESH) | (1 << INSTANCE_PARTICLES)

func (t InstanceType) Mask() uint32 {
	return 1 << uint32(t)
}

func (t InstanceType) IsGeometry() bool {
	return t.Mask()&INSTANCE_GEOMETRY_MASK != 0
}

func (t InstanceType) String() string {
	switch t {
	case INSTANCE_NONE:
		return "none"
	case INSTANCE_MESH:
		return "mesh"
	case INSTANCE_MULTIMESH:
		return "multimesh"
	case INSTANCE_PARTICLES:
		return "particles"
	case INSTANCE_PARTICLES_COLLISION:
		return "particles_collision"
	}
	return "unknown"
}

type ShadowCastingSetting int

const (
	SHADOW_CASTING_SETTING_OFF ShadowCastingSetting = iota
	SHADOW_CASTING_SETTING_ON
	SHADOW_CASTING_SETTING_DOUBLE_SIDED
	SHADOW_CASTING_SETTING_SHADOWS_ONLY
)

type VisibilityRangeFadeMode int

const (
	/** @brief Instances pop in and out at the range limits. */
	VISIBILITY_RANGE_FADE_DISABLED VisibilityRangeFadeMode = iota
	/** @brief The instance fades itself across the margin band. */
	VISIBILITY_RANGE_FADE_SELF
	/** @brief The instance's visibility dependencies fade across the margin band. */
	VISIBILITY_RANGE_FADE_DEPENDENCIES
)

type InstanceFlags int

const (
	INSTANCE_FLAG_USE_BAKED_LIGHT InstanceFlags = iota
	INSTANCE_FLAG_USE_DYNAMIC_GI
	INSTANCE_FLAG_DRAW_NEXT_FRAME_IF_VISIBLE
	INSTANCE_FLAG_IGNORE_OCCLUSION_CULLING
	INSTANCE_FLAG_MAX
)

type ViewportDebugDraw int

const (
	VIEWPORT_DEBUG_DRAW_DISABLED ViewportDebugDraw = iota
	VIEWPORT_DEBUG_DRAW_UNSHADED
	VIEWPORT_DEBUG_DRAW_OVERDRAW
	VIEWPORT_DEBUG_DRAW_WIREFRAME
)

/** @brief Data type of an instance shader parameter. */
type ShaderParameterType int

const (
	SHADER_PARAMETER_TYPE_NIL ShaderParameterType = iota
	SHADER_PARAMETER_TYPE_BOOL
	SHADER_PARAMETER_TYPE_INT
	SHADER_PARAMETER_TYPE_FLOAT
	SHADER_PARAMETER_TYPE_VEC3
	SHADER_PARAMETER_TYPE_COLOR
)

/** @brief A per-instance uniform exported by a material's shader. */
type InstanceShaderParam struct {
	Name string
	Type ShaderParameterType
	/** @brief Slot in the instance's global parameter block. */
	Index int32
	/** @brief Hint string used for flag parameters, e.g. "x,y,z". */
	FlagsHint    string
	DefaultValue interface{}
}

// FlagsCount returns how many boolean flags are packed into the parameter,
// derived from its hint ("x,y" = 1, "x,y,z" = 2, "x,y,z,w" = 3).
func (p InstanceShaderParam) FlagsCount() int {
	switch len(p.FlagsHint) {
	case 3:
		return 1
	case 5:
		return 2
	case 7:
		return 3
	}
	return 0
}
