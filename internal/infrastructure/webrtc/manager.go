package webrtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"peercam/internal/core/domain"
	"peercam/internal/core/ports"
	"peercam/internal/infrastructure/monitoring"
	"peercam/pkg/config"
	"peercam/pkg/utils"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Manager owns every media/transport session for the run. It is
// constructed once by the orchestrator after the capture source and
// renderer, and destroyed last; signaling backends reach it only
// through a Handle.
type Manager struct {
	settings   *config.Settings
	profile    domain.MediaProfile
	iceServers []webrtc.ICEServer
	api        *webrtc.API

	source   ports.VideoSource // owned; closed with the manager
	renderer ports.Renderer    // non-owning
	bridge   ports.DataBridge  // non-owning

	registry  ports.SessionRegistry
	collector *monitoring.Collector
	bitrate   *bitrateController

	sessions map[domain.SessionID]*session
	mu       sync.RWMutex

	log *zap.SugaredLogger
}

type session struct {
	record   *domain.Session
	pc       *webrtc.PeerConnection
	opts     ports.SessionOptions
	dc       *webrtc.DataChannel
	openedAt time.Time
}

func NewManager(
	settings *config.Settings,
	iceServers []webrtc.ICEServer,
	source ports.VideoSource,
	registry ports.SessionRegistry,
	collector *monitoring.Collector,
	log *zap.SugaredLogger,
) (*Manager, error) {
	profile := mediaProfile(settings)

	api, err := buildAPI(settings, profile)
	if err != nil {
		return nil, err
	}

	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	log.Infow("media profile",
		"video_codec", profile.VideoCodec,
		"audio_codec", profile.AudioCodec,
		"video_bitrate_kbps", profile.VideoBitrate,
		"width", profile.Width,
		"height", profile.Height,
		"framerate", profile.Framerate,
		"priority", profile.Priority,
	)

	return &Manager{
		settings:   settings,
		profile:    profile,
		iceServers: iceServers,
		api:        api,
		source:     source,
		registry:   registry,
		collector:  collector,
		bitrate:    newBitrateController(profile.VideoBitrate, collector, log),
		sessions:   make(map[domain.SessionID]*session),
		log:        log,
	}, nil
}

// mediaProfile collapses the media-facing settings into the profile a
// run negotiates with: the selected codecs, the bitrate targets, and
// the pixel dimensions the resolution name maps to.
func mediaProfile(s *config.Settings) domain.MediaProfile {
	size := s.Size()
	return domain.MediaProfile{
		VideoCodec:   s.VideoCodec,
		AudioCodec:   s.AudioCodec,
		VideoBitrate: s.VideoBitrate,
		AudioBitrate: s.AudioBitrate,
		Width:        size.Width,
		Height:       size.Height,
		Framerate:    s.Framerate,
		Priority:     s.Priority,
	}
}

// SetRenderer installs the optional display sink. Called by the
// orchestrator before any backend runs.
func (m *Manager) SetRenderer(r ports.Renderer) {
	m.renderer = r
}

// AttachBridge wires the serial data bridge: bytes arriving from the
// serial port fan out to every open data channel, and data channel
// messages are written back to the port.
func (m *Manager) AttachBridge(b ports.DataBridge) {
	m.bridge = b
	b.SetSink(func(data []byte) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for _, sess := range m.sessions {
			if sess.dc != nil && sess.dc.ReadyState() == webrtc.DataChannelStateOpen {
				if err := sess.dc.Send(data); err != nil {
					m.log.Warnw("failed to send serial data", "session_id", sess.record.ID, "error", err)
				}
			}
		}
		m.collector.RecordDataMessage()
	})
}

func (m *Manager) CreateSession(ctx context.Context, opts ports.SessionOptions) (*domain.Session, error) {
	pc, err := m.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: m.iceServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	if m.source != nil {
		if _, err := pc.AddTrack(m.source.Track()); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add capture track: %w", err)
		}
	}
	if !m.settings.NoAudio {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add audio transceiver: %w", err)
		}
	}

	record := &domain.Session{
		ID:        domain.SessionID(utils.GenerateSessionID()),
		ClientID:  opts.ClientID,
		ChannelID: opts.ChannelID,
		Backend:   opts.Backend,
		State:     domain.SessionNew,
		Metadata:  opts.Metadata,
		CreatedAt: time.Now(),
		LastSeen:  time.Now(),
	}

	sess := &session{
		record:   record,
		pc:       pc,
		opts:     opts,
		openedAt: time.Now(),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || opts.OnCandidate == nil {
			return
		}
		opts.OnCandidate(c.ToJSON().Candidate)
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		m.log.Infow("ice connection state changed",
			"session_id", record.ID,
			"state", state.String(),
		)
		if opts.OnStateChange != nil {
			opts.OnStateChange(state)
		}
	})

	pc.OnTrack(m.handleRemoteTrack(record.ID))

	if m.bridge != nil {
		dc, err := pc.CreateDataChannel("serial", nil)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to create data channel: %w", err)
		}
		m.wireDataChannel(sess, dc)
	}
	// The remote side may open its own channel regardless.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if m.bridge == nil {
			return
		}
		m.mu.Lock()
		m.wireDataChannel(sess, dc)
		m.mu.Unlock()
	})

	m.mu.Lock()
	m.sessions[record.ID] = sess
	m.mu.Unlock()

	if err := m.registry.Save(ctx, record); err != nil {
		m.log.Warnw("failed to persist session", "session_id", record.ID, "error", err)
	}

	m.collector.RecordSessionOpened()
	m.log.Infow("session created",
		"session_id", record.ID,
		"client_id", record.ClientID,
		"backend", record.Backend,
	)
	return record, nil
}

func (m *Manager) wireDataChannel(sess *session, dc *webrtc.DataChannel) {
	sess.dc = dc
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if err := m.bridge.Write(msg.Data); err != nil {
			m.log.Warnw("failed to write to serial bridge", "session_id", sess.record.ID, "error", err)
			return
		}
		m.collector.RecordDataMessage()
	})
}

func (m *Manager) handleRemoteTrack(id domain.SessionID) func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {
	return func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		m.log.Infow("remote track started",
			"session_id", id,
			"track_id", track.ID(),
			"codec", track.Codec().MimeType,
		)

		m.mu.RLock()
		sess := m.sessions[id]
		m.mu.RUnlock()
		if sess == nil {
			return
		}

		if track.Kind() == webrtc.RTPCodecTypeVideo {
			m.bitrate.PushEstimate(sess.pc, track.SSRC())
		}

		if m.renderer != nil && track.Kind() == webrtc.RTPCodecTypeVideo {
			m.renderer.HandleTrack(track, receiver)
			return
		}

		// Nobody consumes this track; drain it so the interceptors keep
		// feeding back and the buffer does not grow.
		go m.drainTrack(track)
	}
}

func (m *Manager) drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			m.collector.RecordVideoPacket()
		}
	}
}

func (m *Manager) HandleOffer(ctx context.Context, id domain.SessionID, sdp string) (string, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return "", err
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := sess.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("failed to apply remote offer: %w", err)
	}

	answer, err := sess.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := sess.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to apply local answer: %w", err)
	}

	m.touch(ctx, sess, domain.SessionConnecting)
	return answer.SDP, nil
}

func (m *Manager) CreateOffer(ctx context.Context, id domain.SessionID) (string, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return "", err
	}

	offer, err := sess.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := sess.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to apply local offer: %w", err)
	}

	m.touch(ctx, sess, domain.SessionConnecting)
	return offer.SDP, nil
}

func (m *Manager) HandleAnswer(ctx context.Context, id domain.SessionID, sdp string) error {
	sess, err := m.lookup(id)
	if err != nil {
		return err
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := sess.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to apply remote answer: %w", err)
	}

	m.touch(ctx, sess, domain.SessionConnecting)
	return nil
}

func (m *Manager) AddCandidate(ctx context.Context, id domain.SessionID, candidate string) error {
	sess, err := m.lookup(id)
	if err != nil {
		return err
	}

	if err := sess.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate}); err != nil {
		return fmt.Errorf("failed to add ice candidate: %w", err)
	}
	return nil
}

func (m *Manager) CloseSession(ctx context.Context, id domain.SessionID) error {
	m.mu.Lock()
	sess, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !exists {
		return domain.ErrSessionNotFound
	}

	if err := sess.pc.Close(); err != nil {
		m.log.Warnw("failed to close peer connection", "session_id", id, "error", err)
	}

	if err := m.registry.UpdateState(ctx, id, domain.SessionClosed); err != nil {
		m.log.Warnw("failed to update session state", "session_id", id, "error", err)
	}
	if err := m.registry.Delete(ctx, id); err != nil {
		m.log.Warnw("failed to delete session record", "session_id", id, "error", err)
	}

	m.collector.RecordSessionClosed(time.Since(sess.openedAt))
	m.log.Infow("session closed", "session_id", id)

	if sess.opts.OnClose != nil {
		sess.opts.OnClose()
	}
	return nil
}

// RequestKeyframes asks every remote video sender to produce a
// keyframe. Driven by the renderer's refresh loop through the dispatch
// hook, so it always runs on the reactor.
func (m *Manager) RequestKeyframes(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.sessions {
		m.bitrate.RequestKeyframes(sess.pc)
	}
}

func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close tears down every remaining session and the owned capture
// source. Only the orchestrator calls this, after the handle has been
// closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[domain.SessionID]*session)
	m.mu.Unlock()

	for _, sess := range sessions {
		if err := sess.pc.Close(); err != nil {
			m.log.Warnw("failed to close peer connection", "session_id", sess.record.ID, "error", err)
		}
		m.collector.RecordSessionClosed(time.Since(sess.openedAt))
	}

	if m.source != nil {
		if err := m.source.Close(); err != nil {
			m.log.Warnw("failed to close capture source", "error", err)
		}
	}
	return nil
}

func (m *Manager) lookup(id domain.SessionID) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, exists := m.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (m *Manager) touch(ctx context.Context, sess *session, state domain.SessionState) {
	sess.record.State = state
	sess.record.LastSeen = time.Now()
	if err := m.registry.UpdateState(ctx, sess.record.ID, state); err != nil {
		m.log.Debugw("failed to update session state", "session_id", sess.record.ID, "error", err)
	}
}
