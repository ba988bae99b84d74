package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cinemasync/server/internal/domain"
	"github.com/cinemasync/server/internal/protocol"
	"github.com/cinemasync/server/pkg/wsrouter"
)

// Hooks are optional callbacks for events the session cannot act on itself.
// They are delivered one at a time, in arrival order, from a dedicated
// goroutine; implementations may call back into the session.
type Hooks struct {
	OnPhaseChange func(old, new Phase)
	OnChatMessage func(payload protocol.NewChatMessagePayload)
	OnReaction    func(payload protocol.NewReactionPayload)
}

// Session is the handle for one participant in one room. Lifecycle:
// Start connects the channel, Join asserts membership, Leave withdraws it,
// Close tears the whole thing down. A dropped channel is reconnected with
// backoff and, if the session had joined, membership is re-asserted because
// the coordinator forgets it on disconnect.
type Session struct {
	cfg        Config
	dialer     Dialer
	directory  Directory
	player     Player
	resolver   MediaResolver
	hooks      Hooks
	hookRunner *hookRunner
	logger     *slog.Logger

	phase atomic.Int32

	mu           sync.Mutex
	ch           Channel
	closed       bool
	joinInFlight bool
	joinAttempt  string
	joinTimer    *time.Timer
	wasJoined    bool
	password     string
	room         domain.Room
	participants []domain.Participant
	playback     domain.PlaybackState
	lastErr      error
}

func NewSession(cfg Config, dialer Dialer, directory Directory, player Player, resolver MediaResolver, hooks Hooks, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		cfg:        cfg.withDefaults(),
		dialer:     dialer,
		directory:  directory,
		player:     player,
		resolver:   resolver,
		hooks:      hooks,
		hookRunner: newHookRunner(),
		logger:     logger,
	}
}

func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Session) Room() domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) Participants() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

func (s *Session) Playback() domain.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

// LastError reports why the session most recently entered PhaseFailed.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start connects the real-time channel. It does not join; membership is a
// separate, explicit step. Directory lookup failures are not fatal because
// the join response carries the authoritative room snapshot anyway.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.Phase() != PhaseInitial || s.ch != nil {
		s.mu.Unlock()
		return nil
	}
	s.setPhaseLocked(PhaseConnecting)
	s.mu.Unlock()

	if s.directory != nil {
		if room, err := s.directory.GetRoom(ctx, s.cfg.RoomID); err != nil {
			s.logger.DebugContext(ctx, "room directory lookup failed", "error", err)
		} else {
			s.mu.Lock()
			s.room = room
			s.mu.Unlock()
		}
	}

	ch, err := s.dialer.Dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.setPhaseLocked(PhaseFailed)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.ch = ch
	s.mu.Unlock()

	go s.pump(ch)

	return nil
}

// Join asserts membership in the room. A join while another join is already
// in flight, or while the session is joined, is a no-op. Joining a private
// room without credentials short-circuits before any frame is sent.
func (s *Session) Join(ctx context.Context, password string) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.Phase() == PhaseJoined || s.joinInFlight {
		s.mu.Unlock()
		return nil
	}
	if s.ch == nil {
		s.mu.Unlock()
		return domain.NewError(domain.KindTransient, "channel is not connected")
	}

	if password != "" {
		s.password = password
	}
	if s.room.IsPrivate && s.password == "" {
		s.mu.Unlock()
		return ErrPasswordRequired
	}

	attempt := uuid.NewString()
	s.joinInFlight = true
	s.joinAttempt = attempt
	s.setPhaseLocked(PhaseJoining)
	s.stopJoinTimerLocked()
	s.joinTimer = time.AfterFunc(s.cfg.JoinTimeout, func() { s.onJoinTimeout(attempt) })

	ch := s.ch
	frame, err := s.newFrame(protocol.EventJoinRoom, attempt, protocol.JoinRoomPayload{
		RoomID:   s.cfg.RoomID,
		UserID:   s.cfg.UserID,
		Password: s.password,
	})
	if err != nil {
		s.failJoinLocked(attempt, err)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := ch.Send(ctx, frame); err != nil {
		sendErr := domain.NewError(domain.KindTransient, err.Error())
		s.mu.Lock()
		s.failJoinLocked(attempt, sendErr)
		s.mu.Unlock()
		return sendErr
	}

	return nil
}

// Leave withdraws membership. The leave frame is best-effort; the coordinator
// also reaps membership on channel teardown, so a lost frame only delays the
// roster update. The channel stays open for a later Join.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.Phase() != PhaseJoined {
		s.mu.Unlock()
		return ErrNotJoined
	}

	ch := s.ch
	s.wasJoined = false
	s.participants = nil
	s.setPhaseLocked(PhaseInitial)
	frame, err := s.newFrame(protocol.EventLeaveRoom, "", protocol.LeaveRoomPayload{
		RoomID: s.cfg.RoomID,
		UserID: s.cfg.UserID,
	})
	s.mu.Unlock()

	if err == nil && ch != nil {
		if err := ch.Send(ctx, frame); err != nil {
			s.logger.DebugContext(ctx, "failed to send leave frame", "error", err)
		}
	}

	return nil
}

// Close tears the session down for good. A closed session never reconnects.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.joinInFlight = false
	s.stopJoinTimerLocked()
	ch := s.ch
	s.ch = nil
	s.setPhaseLocked(PhaseInitial)
	s.mu.Unlock()

	s.hookRunner.close()

	if ch != nil {
		return ch.Close()
	}
	return nil
}

func (s *Session) SendChat(ctx context.Context, message string) error {
	return s.sendJoined(ctx, protocol.EventChatMessage, protocol.ChatMessagePayload{
		RoomID:  s.cfg.RoomID,
		UserID:  s.cfg.UserID,
		Message: message,
	})
}

func (s *Session) SendReaction(ctx context.Context, reaction string) error {
	return s.sendJoined(ctx, protocol.EventReaction, protocol.ReactionPayload{
		RoomID:   s.cfg.RoomID,
		UserID:   s.cfg.UserID,
		Reaction: reaction,
	})
}

func (s *Session) sendJoined(ctx context.Context, eventType string, payload any) error {
	s.mu.Lock()
	if s.Phase() != PhaseJoined {
		s.mu.Unlock()
		return ErrNotJoined
	}
	ch := s.ch
	frame, err := s.newFrame(eventType, uuid.NewString(), payload)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return ch.Send(ctx, frame)
}

func (s *Session) newFrame(eventType, id string, payload any) (*wsrouter.Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return &wsrouter.Message{Type: eventType, Id: id, Payload: raw}, nil
}

func (s *Session) pump(ch Channel) {
	ctx := context.Background()

	for msg := range ch.Recv() {
		s.dispatch(ctx, &msg)
	}

	s.onChannelDown(ch)
}

func (s *Session) dispatch(ctx context.Context, msg *wsrouter.Message) {
	switch msg.Type {
	case protocol.EventAck:
		var payload protocol.AckPayload
		if !s.decode(ctx, msg, &payload) {
			return
		}
		s.onAck(ctx, msg.Id, &payload)

	case protocol.EventRoomJoined:
		var payload protocol.RoomJoinedPayload
		if !s.decode(ctx, msg, &payload) {
			return
		}
		s.onRoomJoined(ctx, &payload)

	case protocol.EventUserJoined, protocol.EventUserLeft:
		var payload protocol.RosterPayload
		if !s.decode(ctx, msg, &payload) {
			return
		}
		s.onRoster(&payload)

	case protocol.EventRoomLeft:
		// confirmation of our own leave; the local transition already happened

	case protocol.EventPlaybackUpdated:
		var payload protocol.PlaybackUpdatedPayload
		if !s.decode(ctx, msg, &payload) {
			return
		}
		s.applyPlaybackUpdate(&payload)

	case protocol.EventVideoChanged:
		var payload protocol.VideoChangedPayload
		if !s.decode(ctx, msg, &payload) {
			return
		}
		s.applyVideoChange(ctx, &payload)

	case protocol.EventNewChatMessage:
		var payload protocol.NewChatMessagePayload
		if !s.decode(ctx, msg, &payload) {
			return
		}
		if s.hooks.OnChatMessage != nil {
			s.hookRunner.enqueue(func() { s.hooks.OnChatMessage(payload) })
		}

	case protocol.EventNewReaction:
		var payload protocol.NewReactionPayload
		if !s.decode(ctx, msg, &payload) {
			return
		}
		if s.hooks.OnReaction != nil {
			s.hookRunner.enqueue(func() { s.hooks.OnReaction(payload) })
		}

	case protocol.EventError:
		var payload protocol.ErrorPayload
		if !s.decode(ctx, msg, &payload) {
			return
		}
		s.onError(ctx, msg.Id, &payload)

	default:
		s.logger.DebugContext(ctx, "ignoring unknown frame", "type", msg.Type)
	}
}

func (s *Session) decode(ctx context.Context, msg *wsrouter.Message, dst any) bool {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		s.logger.WarnContext(ctx, "failed to decode frame", "type", msg.Type, "error", err)
		return false
	}
	return true
}

func (s *Session) onAck(ctx context.Context, id string, payload *protocol.AckPayload) {
	if payload.OK {
		return
	}

	var err error = domain.NewError(domain.KindTransient, "request rejected")
	if payload.Error != nil {
		err = domain.NewError(payload.Error.Kind, payload.Error.Message)
	}

	s.mu.Lock()
	if s.joinInFlight && id == s.joinAttempt {
		s.failJoinLocked(id, err)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "request rejected", "id", id, "error", err)
}

func (s *Session) onError(ctx context.Context, id string, payload *protocol.ErrorPayload) {
	err := domain.NewError(payload.Kind, payload.Message)

	s.mu.Lock()
	if s.joinInFlight && (id == "" || id == s.joinAttempt) {
		s.failJoinLocked(s.joinAttempt, err)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "channel error", "error", err)
}

func (s *Session) onRoomJoined(ctx context.Context, payload *protocol.RoomJoinedPayload) {
	s.mu.Lock()
	s.stopJoinTimerLocked()
	s.joinInFlight = false
	s.wasJoined = true
	s.lastErr = nil
	s.room = payload.Room
	s.participants = payload.Room.Participants
	s.playback = payload.Room.Playback
	s.setPhaseLocked(PhaseJoined)
	source := payload.Room.MovieSource
	playback := payload.Room.Playback
	s.mu.Unlock()

	s.applySnapshot(ctx, source, playback)
}

func (s *Session) onRoster(payload *protocol.RosterPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// the roster arrives whole on every membership change, never as a diff
	s.participants = payload.Participants
	s.room.Participants = payload.Participants
}

func (s *Session) onJoinTimeout(attempt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.joinInFlight || attempt != s.joinAttempt {
		return
	}

	s.failJoinLocked(attempt, ErrJoinTimeout)
}

// failJoinLocked moves an in-flight join to PhaseFailed. Callers hold s.mu.
func (s *Session) failJoinLocked(attempt string, err error) {
	if !s.joinInFlight || attempt != s.joinAttempt {
		return
	}

	s.stopJoinTimerLocked()
	s.joinInFlight = false
	s.lastErr = err
	s.setPhaseLocked(PhaseFailed)
}

func (s *Session) stopJoinTimerLocked() {
	if s.joinTimer != nil {
		s.joinTimer.Stop()
		s.joinTimer = nil
	}
}

// onChannelDown runs when a channel's read loop ends. Membership does not
// survive a disconnect, so a joined session drops back to PhaseConnecting
// and re-asserts membership after the redial.
func (s *Session) onChannelDown(ch Channel) {
	s.mu.Lock()
	if s.closed || s.ch != ch {
		s.mu.Unlock()
		return
	}

	s.ch = nil
	s.joinInFlight = false
	s.stopJoinTimerLocked()
	rejoin := s.wasJoined
	s.setPhaseLocked(PhaseConnecting)
	s.mu.Unlock()

	go s.reconnect(rejoin)
}

func (s *Session) reconnect(rejoin bool) {
	backoff := s.cfg.ReconnectBase

	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		time.Sleep(backoff)
		backoff *= 2
		if backoff > s.cfg.ReconnectMax {
			backoff = s.cfg.ReconnectMax
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JoinTimeout)
		ch, err := s.dialer.Dial(ctx)
		cancel()
		if err != nil {
			s.logger.Debug("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			ch.Close()
			return
		}
		s.ch = ch
		s.mu.Unlock()

		go s.pump(ch)

		if rejoin {
			if err := s.Join(context.Background(), ""); err != nil {
				s.logger.Warn("failed to rejoin after reconnect", "error", err)
			}
		}
		return
	}

	s.mu.Lock()
	s.lastErr = ErrReconnectFailed
	s.setPhaseLocked(PhaseFailed)
	s.mu.Unlock()
}

func (s *Session) setPhaseLocked(p Phase) {
	old := Phase(s.phase.Swap(int32(p)))
	if old == p {
		return
	}

	if s.hooks.OnPhaseChange != nil {
		s.hookRunner.enqueue(func() { s.hooks.OnPhaseChange(old, p) })
	}
}

// hookRunner delivers hooks from one goroutine so they observe events in
// arrival order. enqueue never blocks, which makes it safe to call with the
// session mutex held, and hooks are free to call back into the session.
type hookRunner struct {
	mu     sync.Mutex
	cond   *sync.Cond
	fns    []func()
	closed bool
}

func newHookRunner() *hookRunner {
	r := &hookRunner{}
	r.cond = sync.NewCond(&r.mu)
	go r.run()
	return r
}

func (r *hookRunner) enqueue(fn func()) {
	r.mu.Lock()
	if !r.closed {
		r.fns = append(r.fns, fn)
		r.cond.Signal()
	}
	r.mu.Unlock()
}

func (r *hookRunner) run() {
	for {
		r.mu.Lock()
		for len(r.fns) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.fns) == 0 {
			r.mu.Unlock()
			return
		}
		fn := r.fns[0]
		r.fns = r.fns[1:]
		r.mu.Unlock()

		fn()
	}
}

func (r *hookRunner) close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Signal()
	r.mu.Unlock()
}
