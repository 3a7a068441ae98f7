package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_rtc/internal/broker"
	"social_rtc/internal/domain"
	apperrors "social_rtc/pkg/errors"
)

func offerPayload() map[string]interface{} {
	return map[string]interface{}{"type": "offer", "sdp": "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"}
}

func answerPayload() map[string]interface{} {
	return map[string]interface{}{"type": "answer", "sdp": "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"}
}

func candidatePayload() map[string]interface{} {
	return map[string]interface{}{"candidate": "candidate:1 1 udp 2130706431 192.0.2.1 54400 typ host"}
}

type signalingFixture struct {
	svc      SignalingService
	rooms    RoomService
	broker   *fakeBroker
	users    *fakeUserRepo
	roomID   uuid.UUID
	alice    uuid.UUID
	bob      uuid.UUID
	stranger uuid.UUID
}

func newSignalingFixture(t *testing.T) *signalingFixture {
	t.Helper()
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()
	stranger := uuid.New()

	roomRepo := newFakeRoomRepo()
	rooms := NewRoomService(roomRepo, &fakeEventRepo{}, testCallConfig(), testLogger())
	users := newFakeUserRepo(alice, bob)
	b := newFakeBroker()

	room, err := rooms.Create(ctx, alice, domain.RoomKindOneToOne, 0, []uuid.UUID{bob})
	require.NoError(t, err)
	_, err = rooms.Join(ctx, room.ID, bob)
	require.NoError(t, err)

	return &signalingFixture{
		svc:      NewSignalingService(rooms, users, b, testLogger()),
		rooms:    rooms,
		broker:   b,
		users:    users,
		roomID:   room.ID,
		alice:    alice,
		bob:      bob,
		stranger: stranger,
	}
}

func (f *signalingFixture) lastEnvelope(t *testing.T, channel string) *domain.SignalingEnvelope {
	t.Helper()
	messages := f.broker.channelMessages(channel)
	require.NotEmpty(t, messages, "expected a publish on %s", channel)
	envelope, ok := messages[len(messages)-1].Payload.(*domain.SignalingEnvelope)
	require.True(t, ok)
	return envelope
}

func TestSignalingOfferGoesToPrivateChannelOnly(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	require.NoError(t, f.svc.SendOffer(ctx, f.roomID, f.alice, f.bob, offerPayload()))

	envelope := f.lastEnvelope(t, broker.UserChannel(f.bob))
	assert.Equal(t, domain.SignalOffer, envelope.Kind)
	assert.Equal(t, f.alice, envelope.FromUserID)
	require.NotNil(t, envelope.ToUserID)
	assert.Equal(t, f.bob, *envelope.ToUserID)

	// Отправителю и в топик комнаты ничего не уходит
	assert.Empty(t, f.broker.channelMessages(broker.UserChannel(f.alice)))
	assert.Empty(t, f.broker.channelMessages(broker.RoomTopic(f.roomID)))
}

func TestSignalingUnknownTargetNotifiesSenderOnly(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	err := f.svc.SendOffer(ctx, f.roomID, f.alice, f.stranger, offerPayload())
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	// Ошибка уходит на приватный канал ошибок отправителя
	envelope := f.lastEnvelope(t, broker.UserErrorChannel(f.alice))
	assert.Equal(t, domain.SignalError, envelope.Kind)
	assert.Equal(t, apperrors.ErrUserNotFound.Error(), envelope.Payload["error"])

	assert.Empty(t, f.broker.channelMessages(broker.UserChannel(f.stranger)))
	assert.Empty(t, f.broker.channelMessages(broker.UserChannel(f.bob)))
}

func TestSignalingUnknownRoom(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	err := f.svc.SendAnswer(ctx, uuid.New(), f.bob, f.alice, answerPayload())
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
	assert.Empty(t, f.broker.channelMessages(broker.UserChannel(f.alice)))
}

func TestSignalingMalformedPayloads(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	cases := []struct {
		name string
		call func() error
	}{
		{"offer with answer type", func() error {
			return f.svc.SendOffer(ctx, f.roomID, f.alice, f.bob, answerPayload())
		}},
		{"offer without sdp", func() error {
			return f.svc.SendOffer(ctx, f.roomID, f.alice, f.bob, map[string]interface{}{"type": "offer"})
		}},
		{"answer with garbage type", func() error {
			return f.svc.SendAnswer(ctx, f.roomID, f.bob, f.alice, map[string]interface{}{"type": "pranswer?", "sdp": "x"})
		}},
		{"empty candidate", func() error {
			return f.svc.SendICECandidate(ctx, f.roomID, f.alice, f.bob, map[string]interface{}{"candidate": ""})
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			assert.ErrorIs(t, err, apperrors.ErrInvalidPayload)
		})
	}

	// Ничего из отклонённого не дошло до получателей
	assert.Empty(t, f.broker.channelMessages(broker.UserChannel(f.bob)))
	assert.Empty(t, f.broker.channelMessages(broker.UserChannel(f.alice)))
	assert.Len(t, f.broker.channelMessages(broker.UserErrorChannel(f.alice)), 3)
	assert.Len(t, f.broker.channelMessages(broker.UserErrorChannel(f.bob)), 1)
}

func TestSignalingICECandidateDirect(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	require.NoError(t, f.svc.SendICECandidate(ctx, f.roomID, f.bob, f.alice, candidatePayload()))

	envelope := f.lastEnvelope(t, broker.UserChannel(f.alice))
	assert.Equal(t, domain.SignalICECandidate, envelope.Kind)

	// Каждый кандидат — отдельное событие, без схлопывания
	require.NoError(t, f.svc.SendICECandidate(ctx, f.roomID, f.bob, f.alice, candidatePayload()))
	assert.Len(t, f.broker.channelMessages(broker.UserChannel(f.alice)), 2)
}

func TestSignalingBroadcastIncludesSender(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	require.NoError(t, f.svc.BroadcastAnswer(ctx, f.roomID, f.bob, answerPayload()))

	envelope := f.lastEnvelope(t, broker.RoomTopic(f.roomID))
	assert.Equal(t, domain.SignalAnswer, envelope.Kind)
	assert.Equal(t, f.bob, envelope.FromUserID)
	// Адресат не задан: топик слушают все стороны, включая отправителя
	assert.Nil(t, envelope.ToUserID)
}

func TestSignalingInvitation(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	require.NoError(t, f.svc.SendCallInvitation(ctx, f.roomID, f.alice, f.bob, domain.CallTypeVideo))

	envelope := f.lastEnvelope(t, broker.UserInviteChannel(f.bob))
	assert.Equal(t, domain.SignalInvite, envelope.Kind)
	assert.Equal(t, domain.CallTypeVideo, envelope.Payload["call_type"])

	err := f.svc.SendCallInvitation(ctx, f.roomID, f.alice, f.bob, "hologram")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPayload)
}

func TestSignalingResponseDoesNotTouchRoster(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	require.NoError(t, f.svc.SendCallResponse(ctx, f.roomID, f.bob, f.alice, false))

	envelope := f.lastEnvelope(t, broker.UserChannel(f.alice))
	assert.Equal(t, domain.SignalResponse, envelope.Kind)
	assert.Equal(t, false, envelope.Payload["accepted"])

	// Отказ не завершает комнату и не трогает ростер
	room, err := f.rooms.GetByID(ctx, f.roomID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusActive, room.Status)
	assert.Len(t, room.ActiveParticipants(), 2)
}

func TestSignalingStateUpdateBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	err := f.svc.UpdateCallSessionState(ctx, f.roomID, f.bob, domain.ConnectionStateConnected, "connected")
	require.NoError(t, err)

	envelope := f.lastEnvelope(t, broker.RoomTopic(f.roomID))
	assert.Equal(t, domain.SignalStateUpdate, envelope.Kind)
	assert.Equal(t, domain.ConnectionStateConnected, envelope.Payload["connection_state"])

	// Не-участник получает типизированную ошибку
	err = f.svc.UpdateCallSessionState(ctx, f.roomID, f.stranger, domain.ConnectionStateConnected, "connected")
	assert.ErrorIs(t, err, apperrors.ErrParticipantNotFound)
	assert.NotEmpty(t, f.broker.channelMessages(broker.UserErrorChannel(f.stranger)))
}

func TestSignalingBroadcastToRoomKeepsCallerDataIntact(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	data := map[string]interface{}{"muted": true}
	require.NoError(t, f.svc.BroadcastToRoom(ctx, f.roomID, f.bob, "mute_state", data))

	envelope := f.lastEnvelope(t, broker.RoomTopic(f.roomID))
	assert.Equal(t, domain.SignalBroadcast, envelope.Kind)
	assert.Equal(t, "mute_state", envelope.Payload["message_type"])
	assert.Equal(t, true, envelope.Payload["muted"])

	// Карта вызывающего не аннотируется
	assert.NotContains(t, data, "message_type")

	err := f.svc.BroadcastToRoom(ctx, f.roomID, f.bob, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidPayload)
}

func TestSignalingCallEndedNotification(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	require.NoError(t, f.rooms.End(ctx, f.roomID, f.alice))
	require.NoError(t, f.svc.NotifyCallEnded(ctx, f.roomID, f.alice))

	envelope := f.lastEnvelope(t, broker.RoomTopic(f.roomID))
	assert.Equal(t, domain.SignalEnd, envelope.Kind)
	assert.Equal(t, f.alice, envelope.FromUserID)
	assert.Nil(t, envelope.ToUserID)

	err := f.svc.NotifyCallEnded(ctx, uuid.New(), f.alice)
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestSignalingBrokerFailureNotifiesSender(t *testing.T) {
	ctx := context.Background()
	f := newSignalingFixture(t)

	f.broker.mu.Lock()
	f.broker.failUsers[f.bob] = assert.AnError
	f.broker.mu.Unlock()

	err := f.svc.SendOffer(ctx, f.roomID, f.alice, f.bob, offerPayload())
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotEmpty(t, f.broker.channelMessages(broker.UserErrorChannel(f.alice)))
}
