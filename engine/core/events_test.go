package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRegisterFireUnregister(t *testing.T) {
	require.True(t, EventInitialize())
	defer EventShutdown()
	assert.False(t, EventInitialize())

	type listener struct{ name string }
	first, second := &listener{"first"}, &listener{"second"}
	var calls []string

	onEvent := func(code SystemEventCode, sender, inst interface{}, data EventContext) bool {
		calls = append(calls, inst.(*listener).name)
		return data.Data.U64[0] == 1
	}
	require.True(t, EventRegister(EVENT_CODE_CONFIG_RELOADED, first, onEvent))
	require.True(t, EventRegister(EVENT_CODE_CONFIG_RELOADED, second, onEvent))
	assert.False(t, EventRegister(EVENT_CODE_CONFIG_RELOADED, first, onEvent))

	var ctx EventContext
	assert.False(t, EventFire(EVENT_CODE_CONFIG_RELOADED, nil, ctx))
	assert.Equal(t, []string{"first", "second"}, calls)

	// the first listener handles it
	calls = nil
	ctx.Data.U64[0] = 1
	assert.True(t, EventFire(EVENT_CODE_CONFIG_RELOADED, nil, ctx))
	assert.Equal(t, []string{"first"}, calls)

	require.True(t, EventUnregister(EVENT_CODE_CONFIG_RELOADED, first))
	assert.False(t, EventUnregister(EVENT_CODE_CONFIG_RELOADED, first))
	calls = nil
	EventFire(EVENT_CODE_CONFIG_RELOADED, nil, ctx)
	assert.Equal(t, []string{"second"}, calls)

	assert.False(t, EventFire(EVENT_CODE_APPLICATION_QUIT, nil, ctx))
}

func TestEventsNeedInitialize(t *testing.T) {
	assert.False(t, EventRegister(EVENT_CODE_APPLICATION_QUIT, nil, nil))
	assert.False(t, EventFire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))
}
