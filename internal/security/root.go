package security

import "errors"

// ErrRunningAsRoot is returned when the process effective user ID is 0 (root).
// The agent writes files and runs git on the model's behalf, so uid 0 would let
// a confined path still be owned by root.
var ErrRunningAsRoot = errors.New("refusing to run as root: run gitpilot as a non-root user")

// effectiveUIDGetter is replaced by init in root_unix.go; elsewhere defaultEUID reports "not root".
var effectiveUIDGetter func() int = defaultEUID

func defaultEUID() int { return -1 }

// EffectiveUIDGetter returns the platform effective-UID getter for use with RequireNonRoot.
func EffectiveUIDGetter() func() int {
	return effectiveUIDGetter
}

// RequireNonRoot returns ErrRunningAsRoot if the getter reports uid 0. A nil getter skips the check.
func RequireNonRoot(euidGetter func() int) error {
	if euidGetter == nil {
		return nil
	}
	if euidGetter() == 0 {
		return ErrRunningAsRoot
	}
	return nil
}
