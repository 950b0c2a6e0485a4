//go:build release

package scene

const debugEnabled = false
