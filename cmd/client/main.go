package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"huddle/internal/client"
	clientwebrtc "huddle/internal/client/webrtc"
	"huddle/internal/core/domain"
	"huddle/pkg/logger"

	"github.com/google/uuid"
)

// signalRelay breaks the construction cycle between the media transport and
// the signaling channel: the transport is built first against the relay, the
// dialed client is plugged in before any negotiation starts.
type signalRelay struct {
	mu  sync.Mutex
	sig *client.SignalingClient
}

func (r *signalRelay) set(sig *client.SignalingClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sig = sig
}

func (r *signalRelay) SendRTC(eventType string, target string, data json.RawMessage) error {
	r.mu.Lock()
	sig := r.sig
	r.mu.Unlock()
	if sig == nil {
		return fmt.Errorf("signaling not connected")
	}
	return sig.SendRTC(eventType, target, data)
}

func main() {
	var (
		serverURL = flag.String("server", "ws://localhost:3000/ws", "coordinator websocket URL")
		roomID    = flag.String("room", "", "room id to join (required)")
		partID    = flag.String("id", "", "participant id (random when empty)")
		name      = flag.String("name", "", "display name")
		logLevel  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	if *roomID == "" {
		fmt.Fprintln(os.Stderr, "usage: client -room <room-id> [-server url] [-id participant] [-name display]")
		os.Exit(2)
	}
	if *partID == "" {
		*partID = uuid.NewString()
	}

	zapLogger := logger.NewConsole(*logLevel)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := &signalRelay{}
	transport := clientwebrtc.NewTransport(clientwebrtc.DefaultConfig(), relay, log)
	renderer := client.NewLogRenderer(log)
	manager := client.NewManager(domain.ParticipantID(*partID), transport, renderer, log)
	defer manager.Close()

	sig, err := client.DialSignaling(ctx, *serverURL, manager, log)
	if err != nil {
		log.Fatalw("failed to connect to coordinator", "url", *serverURL, "error", err)
	}
	defer sig.Close()
	relay.set(sig)
	sig.OnRTC(transport.HandleRTC)

	go func() {
		source := clientwebrtc.SyntheticSource{}
		stream, err := source.Open(ctx)
		if err != nil {
			manager.MediaFailed(err)
			return
		}
		manager.MediaReady(stream)
	}()

	if err := sig.JoinRoom(domain.RoomID(*roomID), domain.ParticipantID(*partID), *name); err != nil {
		log.Fatalw("failed to join room", "room_id", *roomID, "error", err)
	}
	log.Infow("joined room", "room_id", *roomID, "participant_id", *partID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	if err := sig.Run(ctx); err != nil && err != context.Canceled {
		log.Errorw("signaling loop ended", "error", err)
	}
}
