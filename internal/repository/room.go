package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"social_rtc/internal/domain"
	apperrors "social_rtc/pkg/errors"
	"social_rtc/pkg/logger"
)

// RoomRepository persists rooms and their rosters. Operations touching more
// than one row run in a single transaction, so a storage failure never leaves
// a half-applied lifecycle transition.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room, creator *domain.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error)
	AdmitParticipant(ctx context.Context, participant *domain.Participant, activate bool) error
	CloseParticipant(ctx context.Context, roomID, userID uuid.UUID, leftAt time.Time) error
	EndRoom(ctx context.Context, roomID uuid.UUID, endedAt time.Time) error
	UpdateParticipantState(ctx context.Context, roomID, userID uuid.UUID, connectionState, iceState string) error
}

type roomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomRepository(db *pgxpool.Pool, log logger.Logger) RoomRepository {
	return &roomRepository{db: db, log: log}
}

const insertParticipantQuery = `
	INSERT INTO call_participants (id, room_id, user_id, joined_at, connection_state, ice_connection_state)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// withTx runs fn in a transaction; rollback on error, commit otherwise.
func (r *roomRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room, creator *domain.Participant) error {
	query := `
		INSERT INTO call_rooms (id, kind, creator_id, status, max_participants, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	// Комната и создатель в ростере появляются атомарно
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query,
			room.ID, room.Kind, room.CreatorID, room.Status, room.MaxParticipants, room.CreatedAt,
		); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, insertParticipantQuery,
			creator.ID, creator.RoomID, creator.UserID,
			creator.JoinedAt, creator.ConnectionState, creator.ICEConnectionState,
		)
		return err
	})

	if err != nil {
		r.log.Error("Failed to create room", "room_id", room.ID, "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	query := `
		SELECT id, kind, creator_id, status, max_participants, created_at, ended_at
		FROM call_rooms
		WHERE id = $1
	`

	room := &domain.Room{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.Kind, &room.CreatorID, &room.Status,
		&room.MaxParticipants, &room.CreatedAt, &room.EndedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get room by ID", "room_id", id, "error", err)
		return nil, err
	}

	participants, err := r.getParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	room.Participants = participants

	return room, nil
}

func (r *roomRepository) getParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	query := `
		SELECT id, room_id, user_id, joined_at, left_at, connection_state, ice_connection_state
		FROM call_participants
		WHERE room_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to get participants", "room_id", roomID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		err := rows.Scan(
			&p.ID, &p.RoomID, &p.UserID, &p.JoinedAt, &p.LeftAt,
			&p.ConnectionState, &p.ICEConnectionState,
		)
		if err != nil {
			r.log.Error("Failed to scan participant", "error", err)
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (r *roomRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Room, error) {
	query := `
		SELECT DISTINCT r.id, r.kind, r.creator_id, r.status, r.max_participants, r.created_at, r.ended_at
		FROM call_rooms r
		LEFT JOIN call_participants p ON p.room_id = r.id
		WHERE r.creator_id = $1 OR p.user_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list rooms", "user_id", userID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var rooms []*domain.Room
	for rows.Next() {
		room := &domain.Room{}
		err := rows.Scan(
			&room.ID, &room.Kind, &room.CreatorID, &room.Status,
			&room.MaxParticipants, &room.CreatedAt, &room.EndedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan room", "error", err)
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// AdmitParticipant inserts a roster entry and, when activate is set, flips a
// CREATED room to ACTIVE in the same transaction.
func (r *roomRepository) AdmitParticipant(ctx context.Context, participant *domain.Participant, activate bool) error {
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertParticipantQuery,
			participant.ID, participant.RoomID, participant.UserID,
			participant.JoinedAt, participant.ConnectionState, participant.ICEConnectionState,
		); err != nil {
			return err
		}

		if !activate {
			return nil
		}

		_, err := tx.Exec(ctx,
			`UPDATE call_rooms SET status = $2 WHERE id = $1 AND status = $3`,
			participant.RoomID, domain.RoomStatusActive, domain.RoomStatusCreated,
		)
		return err
	})

	if err != nil {
		r.log.Error("Failed to admit participant", "room_id", participant.RoomID, "user_id", participant.UserID, "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) CloseParticipant(ctx context.Context, roomID, userID uuid.UUID, leftAt time.Time) error {
	query := `
		UPDATE call_participants
		SET left_at = $3, connection_state = $4
		WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, roomID, userID, leftAt, domain.ConnectionStateClosed)
	if err != nil {
		r.log.Error("Failed to close participant", "room_id", roomID, "user_id", userID, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrParticipantNotFound
	}

	return nil
}

// EndRoom closes every open roster entry and marks the room ENDED in one
// transaction.
func (r *roomRepository) EndRoom(ctx context.Context, roomID uuid.UUID, endedAt time.Time) error {
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE call_participants SET left_at = $2, connection_state = $3 WHERE room_id = $1 AND left_at IS NULL`,
			roomID, endedAt, domain.ConnectionStateClosed,
		); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE call_rooms SET status = $2, ended_at = $3 WHERE id = $1`,
			roomID, domain.RoomStatusEnded, endedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrRoomNotFound
		}
		return nil
	})

	if err != nil {
		if !errors.Is(err, apperrors.ErrRoomNotFound) {
			r.log.Error("Failed to end room", "room_id", roomID, "error", err)
		}
		return err
	}

	return nil
}

func (r *roomRepository) UpdateParticipantState(ctx context.Context, roomID, userID uuid.UUID, connectionState, iceState string) error {
	query := `
		UPDATE call_participants
		SET connection_state = $3, ice_connection_state = $4
		WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, roomID, userID, connectionState, iceState)
	if err != nil {
		r.log.Error("Failed to update participant state", "room_id", roomID, "user_id", userID, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrParticipantNotFound
	}

	return nil
}
