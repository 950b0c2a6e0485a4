//go:build !release

package scene

// debugEnabled turns on the extra argument checks of the instance setters.
const debugEnabled = true
