package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"social_rtc/internal/config"
	"social_rtc/internal/domain"
	"social_rtc/internal/repository"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

// RoomService is the room registry: it owns call-room lifecycle and the
// participant roster. All mutations of one room are serialized through a
// per-room lock; different rooms never contend.
type RoomService interface {
	Create(ctx context.Context, creatorID uuid.UUID, kind string, maxParticipants int, memberHint []uuid.UUID) (*domain.Room, error)
	GetByID(ctx context.Context, roomID uuid.UUID) (*domain.Room, error)
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error)
	Join(ctx context.Context, roomID, userID uuid.UUID) (*domain.Room, error)
	Leave(ctx context.Context, roomID, userID uuid.UUID) error
	End(ctx context.Context, roomID, requesterID uuid.UUID) error
	// CanJoin is advisory only: Join re-validates under the room lock.
	CanJoin(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	UpdateParticipantState(ctx context.Context, roomID, userID uuid.UUID, connectionState, iceState string) error
}

// roomLocks hands out one mutex per room id. The outer mutex only guards the
// map; roster mutations hold the inner per-room lock.
type roomLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *roomLocks) get(roomID uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[roomID] = lock
	}
	return lock
}

// release drops the lock entry for a room that can no longer be mutated.
func (l *roomLocks) release(roomID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, roomID)
}

type roomService struct {
	roomRepo  repository.RoomRepository
	eventRepo repository.CallEventRepository
	cfg       *config.Config
	log       logger.Logger
	locks     *roomLocks
}

func NewRoomService(roomRepo repository.RoomRepository, eventRepo repository.CallEventRepository, cfg *config.Config, log logger.Logger) RoomService {
	return &roomService{
		roomRepo:  roomRepo,
		eventRepo: eventRepo,
		cfg:       cfg,
		log:       log,
		locks:     newRoomLocks(),
	}
}

func (s *roomService) Create(ctx context.Context, creatorID uuid.UUID, kind string, maxParticipants int, memberHint []uuid.UUID) (*domain.Room, error) {
	switch kind {
	case domain.RoomKindOneToOne:
		if maxParticipants == 0 {
			maxParticipants = 2
		}
		// Ровно один собеседник, кроме создателя
		others := 0
		for _, id := range memberHint {
			if id != creatorID {
				others++
			}
		}
		if others != 1 {
			return nil, apperrors.ErrBadRequest
		}
	case domain.RoomKindGroup:
		if maxParticipants == 0 {
			maxParticipants = s.cfg.Call.DefaultGroupCapacity
		}
	default:
		return nil, apperrors.ErrBadRequest
	}

	if maxParticipants < 1 {
		return nil, apperrors.ErrBadRequest
	}

	now := time.Now()
	room := &domain.Room{
		ID:              uuid.New(),
		Kind:            kind,
		CreatorID:       creatorID,
		Status:          domain.RoomStatusCreated,
		MaxParticipants: maxParticipants,
		CreatedAt:       now,
	}

	// Создатель сразу в ростере
	creator := &domain.Participant{
		ID:              uuid.New(),
		RoomID:          room.ID,
		UserID:          creatorID,
		JoinedAt:        now,
		ConnectionState: domain.ConnectionStateNew,
	}
	if err := s.roomRepo.Create(ctx, room, creator); err != nil {
		return nil, err
	}
	room.Participants = []*domain.Participant{creator}

	s.appendEvent(ctx, room.ID, &creatorID, domain.EventTypeRoomCreated, map[string]interface{}{"kind": kind})
	s.log.Info("Room created", "room_id", room.ID, "kind", kind, "creator_id", creatorID)

	return room, nil
}

func (s *roomService) GetByID(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	return s.roomRepo.GetByID(ctx, roomID)
}

func (s *roomService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.roomRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *roomService) Join(ctx context.Context, roomID, userID uuid.UUID) (*domain.Room, error) {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if room.IsEnded() {
		return nil, apperrors.ErrRoomEnded
	}

	// Повторный join активного участника — no-op
	if room.ActiveParticipant(userID) != nil {
		return room, nil
	}

	if room.IsFull() {
		return nil, apperrors.ErrRoomFull
	}

	now := time.Now()
	participant := &domain.Participant{
		ID:              uuid.New(),
		RoomID:          roomID,
		UserID:          userID,
		JoinedAt:        now,
		ConnectionState: domain.ConnectionStateNew,
	}

	// Первый join второй стороны активирует комнату; вставка и переход
	// статуса — одна транзакция
	activate := room.Status == domain.RoomStatusCreated && userID != room.CreatorID
	if err := s.roomRepo.AdmitParticipant(ctx, participant, activate); err != nil {
		return nil, err
	}
	room.Participants = append(room.Participants, participant)
	if activate {
		room.Status = domain.RoomStatusActive
	}

	s.appendEvent(ctx, roomID, &userID, domain.EventTypeParticipantJoin, nil)
	s.log.Info("Participant joined", "room_id", roomID, "user_id", userID, "status", room.Status)

	return room, nil
}

func (s *roomService) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	// Выход не-участника (или повторный выход) — no-op
	if room.ActiveParticipant(userID) == nil {
		return nil
	}

	if err := s.roomRepo.CloseParticipant(ctx, roomID, userID, time.Now()); err != nil {
		return err
	}

	s.appendEvent(ctx, roomID, &userID, domain.EventTypeParticipantLeave, nil)
	s.log.Info("Participant left", "room_id", roomID, "user_id", userID)

	return nil
}

func (s *roomService) End(ctx context.Context, roomID, requesterID uuid.UUID) error {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	if room.CreatorID != requesterID {
		return apperrors.ErrForbidden
	}

	if room.IsEnded() {
		return nil
	}

	if err := s.roomRepo.EndRoom(ctx, roomID, time.Now()); err != nil {
		return err
	}

	s.appendEvent(ctx, roomID, &requesterID, domain.EventTypeRoomEnded, nil)
	s.log.Info("Room ended", "room_id", roomID, "requester_id", requesterID)

	// Комната стала терминальной, её лок больше не нужен
	s.locks.release(roomID)

	return nil
}

func (s *roomService) CanJoin(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return false, err
	}

	if room.IsEnded() {
		return false, nil
	}
	if room.ActiveParticipant(userID) != nil {
		return true, nil
	}
	return !room.IsFull(), nil
}

func (s *roomService) UpdateParticipantState(ctx context.Context, roomID, userID uuid.UUID, connectionState, iceState string) error {
	lock := s.locks.get(roomID)
	lock.Lock()
	defer lock.Unlock()

	return s.roomRepo.UpdateParticipantState(ctx, roomID, userID, connectionState, iceState)
}

func (s *roomService) appendEvent(ctx context.Context, roomID uuid.UUID, userID *uuid.UUID, eventType string, payload map[string]interface{}) {
	event := &domain.CallEvent{
		EventTime: time.Now(),
		RoomID:    roomID,
		UserID:    userID,
		EventType: eventType,
		Payload:   payload,
	}
	if err := s.eventRepo.Append(ctx, event); err != nil {
		s.log.Warn("Failed to append call event", "room_id", roomID, "event_type", eventType, "error", err)
	}
}
