package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

func names(params []metadata.InstanceShaderParam) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		out = append(out, p.Name)
	}
	return out
}

func TestInstanceShaderUniforms(t *testing.T) {
	f := newFixture(t, nil)
	tint := metadata.InstanceShaderParam{Name: "tint", Type: metadata.SHADER_PARAMETER_TYPE_COLOR, Index: 0, DefaultValue: "red"}
	mat1 := f.storage.MaterialCreate(true, false, tint)
	mat2 := f.storage.MaterialCreate(true, false,
		// conflicts with mat1, which wins
		metadata.InstanceShaderParam{Name: "tint", Type: metadata.SHADER_PARAMETER_TYPE_INT, Index: 3, DefaultValue: 7},
		metadata.InstanceShaderParam{Name: "glow", Type: metadata.SHADER_PARAMETER_TYPE_FLOAT, Index: 1, DefaultValue: float32(0.5)},
	)
	base := f.storage.MeshCreate(unitBox(), mat1, mat2)
	rid := f.cull.InstanceCreate2(base, f.scenario)

	// set before any material exported it
	f.cull.InstanceGeometrySetShaderParameter(rid, "custom", 5)
	f.cull.Update()

	list := f.cull.InstanceGeometryGetShaderParameterList(rid)
	assert.ElementsMatch(t, []string{"tint", "glow"}, names(list))
	for _, p := range list {
		if p.Name == "tint" {
			assert.Equal(t, metadata.SHADER_PARAMETER_TYPE_COLOR, p.Type)
		}
	}

	offset := f.cull.InstanceGetShaderUniformsOffset(rid)
	require.GreaterOrEqual(t, offset, int32(0))
	assert.Equal(t, offset, f.geometry(t, rid).ShaderUniformsOffset)
	assert.Equal(t, 1, f.storage.GlobalShaderParametersAllocated())

	v, ok := f.storage.GlobalShaderParameter(rid, 0)
	require.True(t, ok)
	assert.Equal(t, "red", v)
	v, _ = f.storage.GlobalShaderParameter(rid, 1)
	assert.Equal(t, float32(0.5), v)

	assert.Equal(t, 5, f.cull.InstanceGeometryGetShaderParameter(rid, "custom"))
	assert.Equal(t, "red", f.cull.InstanceGeometryGetShaderParameterDefaultValue(rid, "tint"))

	// exported values are written through right away
	f.cull.InstanceGeometrySetShaderParameter(rid, "tint", "blue")
	v, _ = f.storage.GlobalShaderParameter(rid, 0)
	assert.Equal(t, "blue", v)

	// and survive a dependency update
	f.storage.MaterialSetCastsShadows(mat1, true)
	f.cull.Update()
	assert.Equal(t, "blue", f.cull.InstanceGeometryGetShaderParameter(rid, "tint"))
	v, _ = f.storage.GlobalShaderParameter(rid, 0)
	assert.Equal(t, "blue", v)

	// a kept value is applied once a material exports it
	f.storage.MaterialSetInstanceShaderParameters(mat2,
		metadata.InstanceShaderParam{Name: "custom", Type: metadata.SHADER_PARAMETER_TYPE_INT, Index: 2, DefaultValue: 0},
	)
	f.cull.Update()
	v, ok = f.storage.GlobalShaderParameter(rid, 2)
	require.True(t, ok)
	assert.Equal(t, 5, v)
	assert.ElementsMatch(t, []string{"tint", "custom"}, names(f.cull.InstanceGeometryGetShaderParameterList(rid)))

	// no exported uniform left: the slot is released
	f.storage.MaterialSetInstanceShaderParameters(mat1)
	f.storage.MaterialSetInstanceShaderParameters(mat2)
	f.cull.Update()
	assert.Equal(t, int32(-1), f.cull.InstanceGetShaderUniformsOffset(rid))
	assert.Equal(t, int32(-1), f.geometry(t, rid).ShaderUniformsOffset)
	assert.Equal(t, 0, f.storage.GlobalShaderParametersAllocated())
	assert.Empty(t, f.cull.InstanceGeometryGetShaderParameterList(rid))
}

func TestFreeReleasesShaderUniforms(t *testing.T) {
	f := newFixture(t, nil)
	mat := f.storage.MaterialCreate(true, false,
		metadata.InstanceShaderParam{Name: "flags", Type: metadata.SHADER_PARAMETER_TYPE_BOOL, Index: 0, FlagsHint: "x,y,z", DefaultValue: true},
	)
	rid := f.cull.InstanceCreate2(f.storage.MeshCreate(unitBox(), mat), f.scenario)
	f.cull.Update()
	require.Equal(t, 1, f.storage.GlobalShaderParametersAllocated())

	require.True(t, f.cull.Free(rid))
	assert.Equal(t, 0, f.storage.GlobalShaderParametersAllocated())
}

func TestMaterialOverrideExportsUniforms(t *testing.T) {
	f := newFixture(t, nil)
	plain := f.storage.MaterialCreate(true, false)
	override := f.storage.MaterialCreate(true, true,
		metadata.InstanceShaderParam{Name: "albedo", Type: metadata.SHADER_PARAMETER_TYPE_VEC3, Index: 4, DefaultValue: "white"},
	)
	rid := f.cull.InstanceCreate2(f.storage.MeshCreate(unitBox(), plain), f.scenario)
	f.cull.Update()
	assert.Equal(t, int32(-1), f.cull.InstanceGetShaderUniformsOffset(rid))

	f.cull.InstanceGeometrySetMaterialOverride(rid, override)
	f.cull.Update()
	assert.GreaterOrEqual(t, f.cull.InstanceGetShaderUniformsOffset(rid), int32(0))
	assert.True(t, f.cull.InstanceIsMaterialAnimated(rid))
	v, ok := f.storage.GlobalShaderParameter(rid, 4)
	require.True(t, ok)
	assert.Equal(t, "white", v)

	// deleting the override material falls back to the surfaces
	require.True(t, f.storage.Free(override))
	f.cull.Update()
	assert.Equal(t, int32(-1), f.cull.InstanceGetShaderUniformsOffset(rid))
	assert.False(t, f.cull.InstanceIsMaterialAnimated(rid))
}
