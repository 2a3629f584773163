package webrtc

import (
	"context"
	"fmt"
	"time"

	"huddle/internal/client"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// opusSilence is a minimal valid Opus frame (DTX comfort noise).
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SyntheticSource produces placeholder audio and video tracks so a headless
// client can hold media sessions without capture hardware.
type SyntheticSource struct{}

func (SyntheticSource) Open(ctx context.Context) (client.MediaStream, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "huddle-audio",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "huddle-video",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				audio.WriteSample(media.Sample{Data: opusSilence, Duration: 20 * time.Millisecond})
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	stream := NewLocalStream(audio, video).WithCloser(func() error {
		close(done)
		return nil
	})
	return stream, nil
}
