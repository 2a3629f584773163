package webrtc

import (
	"sync"

	"github.com/pion/webrtc/v3"
)

// LocalStream wraps the local tracks offered on outbound and answered calls.
type LocalStream struct {
	tracks []webrtc.TrackLocal
	closer func() error
}

func NewLocalStream(tracks ...webrtc.TrackLocal) *LocalStream {
	return &LocalStream{tracks: tracks}
}

// WithCloser attaches a teardown hook, used by capture sources to stop their
// sample writers.
func (s *LocalStream) WithCloser(closer func() error) *LocalStream {
	s.closer = closer
	return s
}

func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	return s.tracks
}

func (s *LocalStream) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// RemoteStream accumulates the remote tracks of one media session.
type RemoteStream struct {
	mu     sync.Mutex
	tracks []*webrtc.TrackRemote
	done   chan struct{}
	once   sync.Once
}

func newRemoteStream() *RemoteStream {
	return &RemoteStream{done: make(chan struct{})}
}

func (s *RemoteStream) addTrack(track *webrtc.TrackRemote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, track)
}

func (s *RemoteStream) Tracks() []*webrtc.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*webrtc.TrackRemote(nil), s.tracks...)
}

// Done is closed when the stream is torn down; track drain loops exit on it.
func (s *RemoteStream) Done() <-chan struct{} {
	return s.done
}

func (s *RemoteStream) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	return nil
}
