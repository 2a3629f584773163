package client

import "context"

// MediaStream is an opaque handle to a local capture stream or a remote
// media stream. The manager never inspects stream contents.
type MediaStream interface {
	Close() error
}

// MediaSource asynchronously yields the local capture stream. Capture may
// fail (permission denied); the manager then degrades to a view-only
// participant.
type MediaSource interface {
	Open(ctx context.Context) (MediaStream, error)
}

// Call is one media session with a remote participant. Callbacks fire at
// most once each and only until the call is closed.
type Call interface {
	RemoteID() string
	OnStream(fn func(MediaStream))
	OnClose(fn func())
	OnError(fn func(error))
	Close() error
}

// IncomingCall is a remote-initiated call awaiting an answer.
type IncomingCall interface {
	Call
	Answer(local MediaStream) error
}

// Transport negotiates media sessions keyed by remote participant id.
type Transport interface {
	Call(remoteID string, local MediaStream) (Call, error)
	OnIncomingCall(fn func(IncomingCall))
	Close() error
}

// Renderer binds remote streams to display surfaces keyed by remote id.
// Release of an unbound id must be a no-op.
type Renderer interface {
	Bind(remoteID string, stream MediaStream)
	Release(remoteID string)
}
