// Package media opens local camera and microphone capture through
// pion/mediadevices and exposes the results as core local tracks.
package media

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
)

// Manager acquires device-backed tracks. One Manager serves the whole
// process; the codec selector it builds must also populate the
// PeerConnection media engine, so the rtc dialer takes WebRTCAPI from
// the same Manager that opened the tracks.
type Manager struct {
	selector *mediadevices.CodecSelector
}

func NewManager() (*Manager, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, err
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, err
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)
	return &Manager{selector: selector}, nil
}

// WebRTCAPI builds a webrtc.API whose media engine carries exactly the
// codecs this Manager encodes with. A PeerConnection built from any
// other engine would negotiate codecs the capture pipeline cannot
// produce.
func (m *Manager) WebRTCAPI() (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	m.selector.Populate(mediaEngine)

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, err
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	), nil
}

// RequestLocalTracks opens the requested device kinds. GetUserMedia
// fails as a unit when either kind cannot be opened, so a busy
// microphone with video+audio requested is a permission-class failure,
// same as an explicit denial.
func (m *Manager) RequestLocalTracks(ctx context.Context, opts core.MediaOptions) (*core.LocalTrackSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	constraints := mediadevices.MediaStreamConstraints{Codec: m.selector}
	if opts.Video {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			// Raw formats only. Some cameras expose an MJPEG node that
			// produces malformed JPEG frames and poisons the VP8 encoder.
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatYUYV,
				frame.FormatI420,
				frame.FormatI444,
				frame.FormatRGBA,
			}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		}
	}
	if opts.Audio {
		constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, err
	}

	tracks := make([]core.LocalTrack, 0, 2)
	for _, t := range stream.GetTracks() {
		lt := newLocalTrack(t)
		t.OnEnded(func(err error) {
			if err != nil {
				log.Warn().Err(err).
					Str("module", "media").
					Str("track_id", lt.ID()).
					Msg("local track ended")
			}
			lt.markDead()
		})
		tracks = append(tracks, lt)
		log.Info().
			Str("module", "media").
			Str("track_id", lt.ID()).
			Str("kind", string(lt.Kind())).
			Msg("local track opened")
	}
	return core.NewLocalTrackSet(tracks...), nil
}
