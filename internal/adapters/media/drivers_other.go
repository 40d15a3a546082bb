//go:build !linux

package media

// No capture drivers are registered on this platform; GetUserMedia
// reports that no device matched, which surfaces to the session as a
// permission-class failure.
