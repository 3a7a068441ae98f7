package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"social_rtc/internal/broker"
	"social_rtc/internal/domain"
	"social_rtc/internal/repository"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

// SignalingService relays peer-negotiation envelopes between call
// participants. Identities are resolved against the room registry and user
// store before anything touches the broker; resolution failures come back to
// the sender only, over their private error channel. Envelopes are never
// persisted and never retried: delivery is attempted exactly once, an
// offline subscriber is a silent drop.
//
// Each operation publishes synchronously before returning, so a sender's
// sequential calls for one (room, from, to) tuple cannot reorder. There is
// no cross-sender ordering: glare resolution is a client concern.
type SignalingService interface {
	SendOffer(ctx context.Context, roomID, from, to uuid.UUID, payload map[string]interface{}) error
	SendAnswer(ctx context.Context, roomID, from, to uuid.UUID, payload map[string]interface{}) error
	SendICECandidate(ctx context.Context, roomID, from, to uuid.UUID, payload map[string]interface{}) error
	BroadcastAnswer(ctx context.Context, roomID, from uuid.UUID, payload map[string]interface{}) error
	BroadcastICECandidate(ctx context.Context, roomID, from uuid.UUID, payload map[string]interface{}) error
	SendCallInvitation(ctx context.Context, roomID, from, to uuid.UUID, callType string) error
	SendCallResponse(ctx context.Context, roomID, from, to uuid.UUID, accepted bool) error
	UpdateCallSessionState(ctx context.Context, roomID, userID uuid.UUID, connectionState, iceState string) error
	BroadcastToRoom(ctx context.Context, roomID, from uuid.UUID, messageType string, data map[string]interface{}) error
	NotifyCallEnded(ctx context.Context, roomID, from uuid.UUID) error
}

type signalingService struct {
	roomService RoomService
	userRepo    repository.UserRepository
	broker      broker.Broker
	log         logger.Logger
}

func NewSignalingService(roomService RoomService, userRepo repository.UserRepository, b broker.Broker, log logger.Logger) SignalingService {
	return &signalingService{
		roomService: roomService,
		userRepo:    userRepo,
		broker:      b,
		log:         log,
	}
}

func (s *signalingService) SendOffer(ctx context.Context, roomID, from, to uuid.UUID, payload map[string]interface{}) error {
	if err := validateSessionDescription(payload, webrtc.SDPTypeOffer); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}
	return s.sendDirect(ctx, roomID, from, to, domain.SignalOffer, payload)
}

func (s *signalingService) SendAnswer(ctx context.Context, roomID, from, to uuid.UUID, payload map[string]interface{}) error {
	if err := validateSessionDescription(payload, webrtc.SDPTypeAnswer); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}
	return s.sendDirect(ctx, roomID, from, to, domain.SignalAnswer, payload)
}

func (s *signalingService) SendICECandidate(ctx context.Context, roomID, from, to uuid.UUID, payload map[string]interface{}) error {
	if err := validateICECandidate(payload); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}
	return s.sendDirect(ctx, roomID, from, to, domain.SignalICECandidate, payload)
}

func (s *signalingService) BroadcastAnswer(ctx context.Context, roomID, from uuid.UUID, payload map[string]interface{}) error {
	if err := validateSessionDescription(payload, webrtc.SDPTypeAnswer); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}
	return s.broadcast(ctx, roomID, from, domain.SignalAnswer, payload)
}

func (s *signalingService) BroadcastICECandidate(ctx context.Context, roomID, from uuid.UUID, payload map[string]interface{}) error {
	if err := validateICECandidate(payload); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}
	return s.broadcast(ctx, roomID, from, domain.SignalICECandidate, payload)
}

func (s *signalingService) SendCallInvitation(ctx context.Context, roomID, from, to uuid.UUID, callType string) error {
	if callType != domain.CallTypeAudio && callType != domain.CallTypeVideo {
		return s.failSender(ctx, roomID, from, apperrors.ErrInvalidPayload)
	}

	if err := s.resolve(ctx, roomID, to); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}

	envelope := s.envelope(roomID, from, &to, domain.SignalInvite, map[string]interface{}{
		"call_type": callType,
	})

	if err := s.broker.PublishToTopic(ctx, broker.UserInviteChannel(to), envelope); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}

	s.log.Info("Call invitation sent", "room_id", roomID, "from", from, "to", to, "call_type", callType)
	return nil
}

func (s *signalingService) SendCallResponse(ctx context.Context, roomID, from, to uuid.UUID, accepted bool) error {
	// Регистр комнаты не мутируется: join/end по ответу решает вызывающая
	// сторона.
	return s.sendDirect(ctx, roomID, from, to, domain.SignalResponse, map[string]interface{}{
		"accepted": accepted,
	})
}

func (s *signalingService) UpdateCallSessionState(ctx context.Context, roomID, userID uuid.UUID, connectionState, iceState string) error {
	if err := s.roomService.UpdateParticipantState(ctx, roomID, userID, connectionState, iceState); err != nil {
		return s.failSender(ctx, roomID, userID, err)
	}

	return s.broadcast(ctx, roomID, userID, domain.SignalStateUpdate, map[string]interface{}{
		"connection_state":     connectionState,
		"ice_connection_state": iceState,
	})
}

func (s *signalingService) BroadcastToRoom(ctx context.Context, roomID, from uuid.UUID, messageType string, data map[string]interface{}) error {
	if messageType == "" {
		return s.failSender(ctx, roomID, from, apperrors.ErrInvalidPayload)
	}

	// Карта вызывающего не мутируется
	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["message_type"] = messageType

	return s.broadcast(ctx, roomID, from, domain.SignalBroadcast, payload)
}

// NotifyCallEnded tells remaining subscribers the room is over, so clients
// can tear down peer connections without polling the registry.
func (s *signalingService) NotifyCallEnded(ctx context.Context, roomID, from uuid.UUID) error {
	return s.broadcast(ctx, roomID, from, domain.SignalEnd, nil)
}

// sendDirect resolves the room and target, then publishes to the target's
// private channel only.
func (s *signalingService) sendDirect(ctx context.Context, roomID, from, to uuid.UUID, kind domain.SignalKind, payload map[string]interface{}) error {
	if err := s.resolve(ctx, roomID, to); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}

	envelope := s.envelope(roomID, from, &to, kind, payload)
	if err := s.broker.PublishToUser(ctx, to, envelope); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}

	s.log.Debug("Signal relayed", "room_id", roomID, "kind", kind, "from", from, "to", to)
	return nil
}

// broadcast publishes to the room topic. Subscribers include the sender;
// clients drop self-originated echoes by from_user_id.
func (s *signalingService) broadcast(ctx context.Context, roomID, from uuid.UUID, kind domain.SignalKind, payload map[string]interface{}) error {
	if _, err := s.roomService.GetByID(ctx, roomID); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}

	envelope := s.envelope(roomID, from, nil, kind, payload)
	if err := s.broker.PublishToTopic(ctx, broker.RoomTopic(roomID), envelope); err != nil {
		return s.failSender(ctx, roomID, from, err)
	}

	s.log.Debug("Signal broadcast", "room_id", roomID, "kind", kind, "from", from)
	return nil
}

// resolve checks that the room exists and the target is a known user. The
// target does not have to be in the roster yet: invitees get offers before
// they join.
func (s *signalingService) resolve(ctx context.Context, roomID, to uuid.UUID) error {
	if _, err := s.roomService.GetByID(ctx, roomID); err != nil {
		return err
	}

	exists, err := s.userRepo.Exists(ctx, to)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrUserNotFound
	}

	return nil
}

// failSender pushes the typed error onto the sender's private error channel
// and returns it. The relay itself never aborts on a bad envelope.
func (s *signalingService) failSender(ctx context.Context, roomID, from uuid.UUID, cause error) error {
	envelope := s.envelope(roomID, from, nil, domain.SignalError, map[string]interface{}{
		"error": cause.Error(),
	})

	if err := s.broker.PublishToTopic(ctx, broker.UserErrorChannel(from), envelope); err != nil {
		s.log.Warn("Failed to notify sender of relay error", "room_id", roomID, "from", from, "error", err)
	}

	s.log.Info("Signal rejected", "room_id", roomID, "from", from, "reason", cause)
	return cause
}

func (s *signalingService) envelope(roomID, from uuid.UUID, to *uuid.UUID, kind domain.SignalKind, payload map[string]interface{}) *domain.SignalingEnvelope {
	return &domain.SignalingEnvelope{
		RoomID:     roomID,
		FromUserID: from,
		ToUserID:   to,
		Kind:       kind,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// validateSessionDescription rejects payloads that do not decode into an SDP
// of the expected type. The SDP body itself is opaque to the relay.
func validateSessionDescription(payload map[string]interface{}, want webrtc.SDPType) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.ErrInvalidPayload
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return apperrors.ErrInvalidPayload
	}
	if desc.Type != want || desc.SDP == "" {
		return apperrors.ErrInvalidPayload
	}

	return nil
}

// validateICECandidate checks the trickle-ICE shape. Candidates are never
// deduplicated or coalesced: every one is a distinct event.
func validateICECandidate(payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.ErrInvalidPayload
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &candidate); err != nil {
		return apperrors.ErrInvalidPayload
	}
	if candidate.Candidate == "" {
		return apperrors.ErrInvalidPayload
	}

	return nil
}
