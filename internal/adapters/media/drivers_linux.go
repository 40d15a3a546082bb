//go:build linux

package media

// Camera capture goes through V4L2 and microphone capture through
// malgo; both register themselves with mediadevices on import.
import (
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
)
