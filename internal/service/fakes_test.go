package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"social_rtc/internal/broker"
	"social_rtc/internal/domain"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.New("error")
}

// --- room repository fake ---

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*domain.Room

	// Инъекция сбоев хранилища; сбойная операция не меняет состояние,
	// как транзакционный откат
	failAdmit error
	failEnd   error
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[uuid.UUID]*domain.Room)}
}

func (f *fakeRoomRepo) Create(ctx context.Context, room *domain.Room, creator *domain.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *room
	cp := *creator
	stored.Participants = []*domain.Participant{&cp}
	f.rooms[room.ID] = &stored
	return nil
}

func (f *fakeRoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	out := *room
	out.Participants = make([]*domain.Participant, len(room.Participants))
	for i, p := range room.Participants {
		cp := *p
		out.Participants[i] = &cp
	}
	return &out, nil
}

func (f *fakeRoomRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Room
	for _, room := range f.rooms {
		if room.CreatorID == userID {
			cp := *room
			out = append(out, &cp)
			continue
		}
		for _, p := range room.Participants {
			if p.UserID == userID {
				cp := *room
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRoomRepo) AdmitParticipant(ctx context.Context, participant *domain.Participant, activate bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdmit != nil {
		return f.failAdmit
	}
	room, ok := f.rooms[participant.RoomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	cp := *participant
	room.Participants = append(room.Participants, &cp)
	if activate && room.Status == domain.RoomStatusCreated {
		room.Status = domain.RoomStatusActive
	}
	return nil
}

func (f *fakeRoomRepo) CloseParticipant(ctx context.Context, roomID, userID uuid.UUID, leftAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	for _, p := range room.Participants {
		if p.UserID == userID && p.LeftAt == nil {
			t := leftAt
			p.LeftAt = &t
			p.ConnectionState = domain.ConnectionStateClosed
			return nil
		}
	}
	return apperrors.ErrParticipantNotFound
}

func (f *fakeRoomRepo) EndRoom(ctx context.Context, roomID uuid.UUID, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEnd != nil {
		return f.failEnd
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	for _, p := range room.Participants {
		if p.LeftAt == nil {
			t := endedAt
			p.LeftAt = &t
			p.ConnectionState = domain.ConnectionStateClosed
		}
	}
	room.Status = domain.RoomStatusEnded
	t := endedAt
	room.EndedAt = &t
	return nil
}

func (f *fakeRoomRepo) UpdateParticipantState(ctx context.Context, roomID, userID uuid.UUID, connectionState, iceState string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	for _, p := range room.Participants {
		if p.UserID == userID && p.LeftAt == nil {
			p.ConnectionState = connectionState
			p.ICEConnectionState = iceState
			return nil
		}
	}
	return apperrors.ErrParticipantNotFound
}

// --- call event repository fake ---

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*domain.CallEvent
}

func (f *fakeEventRepo) Append(ctx context.Context, event *domain.CallEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.CallEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.CallEvent
	for _, e := range f.events {
		if e.RoomID == roomID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- user repository fake ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo(ids ...uuid.UUID) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
	for _, id := range ids {
		f.users[id] = &domain.User{ID: id, DisplayName: "user", CreatedAt: time.Now()}
	}
	return f
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[id]
	return ok, nil
}

// --- message repository fake ---

type receiptKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]*domain.Message
	reactions []*domain.Reaction
	receipts  map[receiptKey]*domain.ReadReceipt
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages: make(map[uuid.UUID]*domain.Message),
		receipts: make(map[receiptKey]*domain.ReadReceipt),
	}
}

func (f *fakeMessageRepo) Create(ctx context.Context, message *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *message
	f.messages[message.ID] = &cp
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[id]
	if !ok {
		return nil, apperrors.ErrMessageNotFound
	}
	cp := *message
	return &cp, nil
}

func (f *fakeMessageRepo) Update(ctx context.Context, message *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[message.ID]; !ok {
		return apperrors.ErrMessageNotFound
	}
	cp := *message
	f.messages[message.ID] = &cp
	return nil
}

func (f *fakeMessageRepo) List(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageRepo) AddReaction(ctx context.Context, reaction *domain.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reactions {
		if r.MessageID == reaction.MessageID && r.UserID == reaction.UserID && r.Emoji == reaction.Emoji {
			return nil
		}
	}
	cp := *reaction
	f.reactions = append(f.reactions, &cp)
	return nil
}

func (f *fakeMessageRepo) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.reactions[:0]
	for _, r := range f.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Emoji == emoji {
			continue
		}
		kept = append(kept, r)
	}
	f.reactions = kept
	return nil
}

func (f *fakeMessageRepo) RemoveAllReactions(ctx context.Context, messageID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.reactions[:0]
	for _, r := range f.reactions {
		if r.MessageID == messageID && r.UserID == userID {
			continue
		}
		kept = append(kept, r)
	}
	f.reactions = kept
	return nil
}

func (f *fakeMessageRepo) GetReactions(ctx context.Context, messageID uuid.UUID) ([]*domain.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Reaction
	for _, r := range f.reactions {
		if r.MessageID == messageID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) UpsertReadReceipt(ctx context.Context, receipt *domain.ReadReceipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *receipt
	f.receipts[receiptKey{receipt.MessageID, receipt.UserID}] = &cp
	return nil
}

func (f *fakeMessageRepo) LatestReadAt(ctx context.Context, conversationID, userID uuid.UUID) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *time.Time
	for key := range f.receipts {
		if key.userID != userID {
			continue
		}
		m, ok := f.messages[key.messageID]
		if !ok || m.ConversationID != conversationID {
			continue
		}
		if latest == nil || m.CreatedAt.After(*latest) {
			t := m.CreatedAt
			latest = &t
		}
	}
	return latest, nil
}

func (f *fakeMessageRepo) CountUnread(ctx context.Context, conversationID, userID uuid.UUID, after *time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.messages {
		if m.ConversationID != conversationID || m.SenderID == userID {
			continue
		}
		if after == nil || m.CreatedAt.After(*after) {
			count++
		}
	}
	return count, nil
}

// --- conversation repository fake ---

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*domain.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uuid.UUID]*domain.Conversation)}
}

func (f *fakeConversationRepo) add(kind string, members ...uuid.UUID) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.conversations[id] = &domain.Conversation{ID: id, Kind: kind, MemberIDs: members, CreatedAt: time.Now()}
	return id
}

func (f *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conversation, ok := f.conversations[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	return conversation, nil
}

func (f *fakeConversationRepo) GetMemberIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conversation, ok := f.conversations[conversationID]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	return conversation.MemberIDs, nil
}

func (f *fakeConversationRepo) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	members, err := f.GetMemberIDs(ctx, conversationID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

// --- broker fake ---

type publishedMessage struct {
	Channel string
	Payload interface{}
}

type fakeBroker struct {
	mu        sync.Mutex
	published []publishedMessage
	failUsers map[uuid.UUID]error
	slowUsers map[uuid.UUID]time.Duration
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		failUsers: make(map[uuid.UUID]error),
		slowUsers: make(map[uuid.UUID]time.Duration),
	}
}

func (f *fakeBroker) PublishToUser(ctx context.Context, userID uuid.UUID, payload interface{}) error {
	if delay, ok := f.slowUser(userID); ok {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := f.failUser(userID); err != nil {
		return err
	}
	f.record(broker.UserChannel(userID), payload)
	return nil
}

func (f *fakeBroker) PublishToTopic(ctx context.Context, topic string, payload interface{}) error {
	f.record(topic, payload)
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, channels ...string) broker.Subscription {
	return &fakeSubscription{out: make(chan []byte)}
}

func (f *fakeBroker) slowUser(userID uuid.UUID) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.slowUsers[userID]
	return d, ok
}

func (f *fakeBroker) failUser(userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failUsers[userID]
}

func (f *fakeBroker) record(channel string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{Channel: channel, Payload: payload})
}

func (f *fakeBroker) channelMessages(channel string) []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedMessage
	for _, m := range f.published {
		if m.Channel == channel {
			out = append(out, m)
		}
	}
	return out
}

type fakeSubscription struct {
	out chan []byte
}

func (s *fakeSubscription) Messages() <-chan []byte { return s.out }

func (s *fakeSubscription) AddChannels(ctx context.Context, channels ...string) error { return nil }

func (s *fakeSubscription) Close() error { return nil }
