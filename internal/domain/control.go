package domain

// ControlState holds the local toggle flags reflected by the call UI.
// Toggles are pure transitions so they are testable without a session.
type ControlState struct {
	VideoEnabled   bool `json:"video_enabled"`
	AudioEnabled   bool `json:"audio_enabled"`
	SpeakerEnabled bool `json:"speaker_enabled"`
}

// DefaultControlState is the state a call starts in: everything on.
func DefaultControlState() ControlState {
	return ControlState{VideoEnabled: true, AudioEnabled: true, SpeakerEnabled: true}
}

func (c ControlState) WithVideoToggled() ControlState {
	c.VideoEnabled = !c.VideoEnabled
	return c
}

func (c ControlState) WithAudioToggled() ControlState {
	c.AudioEnabled = !c.AudioEnabled
	return c
}

func (c ControlState) WithSpeakerToggled() ControlState {
	c.SpeakerEnabled = !c.SpeakerEnabled
	return c
}
