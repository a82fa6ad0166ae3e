package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tablematch_server/models"
	"tablematch_server/socket"
	"tablematch_server/utils"

	"github.com/google/uuid"
)

const joinCodeAttempts = 5

type SessionService struct {
	Store     Store
	Publisher socket.Publisher
	Now       func() time.Time
	NewCode   func() (string, error)
}

func NewSessionService(store Store, publisher socket.Publisher) *SessionService {
	return &SessionService{
		Store:     store,
		Publisher: publisher,
		Now:       time.Now,
		NewCode:   utils.GenerateJoinCode,
	}
}

// requireActiveMember loads the caller's membership, failing with
// ErrNotMember when it is missing or the caller has left
func requireActiveMember(ctx context.Context, store Store, sessionID, userID string) (*models.SessionMember, error) {
	member, err := store.GetMember(ctx, sessionID, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	if !member.Active() {
		return nil, ErrNotMember
	}
	return member, nil
}

func (ss *SessionService) publishUpdate(sessionID string) {
	ss.Publisher.Publish(sessionID, models.EventSessionUpdate, map[string]string{"sessionId": sessionID})
}

// CreateSession creates a session with a fresh join code and makes the
// caller its host and first member
func (ss *SessionService) CreateSession(ctx context.Context, userID string, req models.CreateSessionRequest) (*models.SessionState, error) {
	now := ss.Now().UTC()
	session := models.Session{
		ID:                uuid.New().String(),
		HostUserID:        userID,
		Name:              req.Name,
		SwipeMode:         models.SwipeModeAllMustAgree,
		AgreeThreshold:    req.AgreeThreshold,
		DefaultTravelMode: models.TravelModeAny,
		DefaultMaxMinutes: req.DefaultMaxMinutes,
		IsActive:          true,
		CreatedAt:         now,
	}
	if req.SwipeMode != nil {
		session.SwipeMode = *req.SwipeMode
	}
	if req.DefaultTravelMode != nil {
		session.DefaultTravelMode = *req.DefaultTravelMode
	}
	host := models.SessionMember{SessionID: session.ID, UserID: userID, JoinedAt: now}

	for attempt := 1; ; attempt++ {
		code, err := ss.NewCode()
		if err != nil {
			return nil, err
		}
		session.Code = code

		err = ss.Store.CreateSession(ctx, &session, &host)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrCodeTaken) || attempt == joinCodeAttempts {
			log.Printf("❌ Failed to create session for %s: %v", userID, err)
			return nil, err
		}
		log.Printf("⚠️ Join code %s already taken, retrying", code)
	}

	log.Printf("✅ Session %s created by %s with code %s", session.ID, userID, session.Code)
	session.Members = []models.SessionMember{host}
	return &models.SessionState{Session: session, ActiveMemberCount: 1}, nil
}

// JoinSessionByCode adds the caller to an active session, or reactivates a
// membership they left earlier
func (ss *SessionService) JoinSessionByCode(ctx context.Context, userID, code string) (*models.SessionState, error) {
	session, err := ss.Store.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}

	if _, err := ss.Store.JoinSession(ctx, session.ID, userID, ss.Now().UTC()); err != nil {
		log.Printf("❌ Failed to join %s to session %s: %v", userID, session.ID, err)
		return nil, err
	}
	log.Printf("✅ %s joined session %s", userID, session.ID)
	ss.publishUpdate(session.ID)
	return ss.state(ctx, session)
}

// GetSessionState returns the session and its members to an active member
func (ss *SessionService) GetSessionState(ctx context.Context, userID, sessionID string) (*models.SessionState, error) {
	if _, err := requireActiveMember(ctx, ss.Store, sessionID, userID); err != nil {
		return nil, err
	}
	session, err := ss.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ss.state(ctx, session)
}

func (ss *SessionService) state(ctx context.Context, session *models.Session) (*models.SessionState, error) {
	members, err := ss.Store.ListMembers(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Members = members
	return &models.SessionState{Session: *session, ActiveMemberCount: models.CountActive(members)}, nil
}

func (ss *SessionService) SetReady(ctx context.Context, userID, sessionID string, ready bool) error {
	if _, err := requireActiveMember(ctx, ss.Store, sessionID, userID); err != nil {
		return err
	}
	if err := ss.Store.SetMemberReady(ctx, sessionID, userID, ready); err != nil {
		return err
	}
	log.Printf("✅ %s set ready=%t in session %s", userID, ready, sessionID)
	ss.publishUpdate(sessionID)
	return nil
}

// LeaveSession marks the caller as departed. Their swipes and the snapshots
// computed from them stay as they are.
func (ss *SessionService) LeaveSession(ctx context.Context, userID, sessionID string) error {
	if _, err := requireActiveMember(ctx, ss.Store, sessionID, userID); err != nil {
		return err
	}
	if err := ss.Store.LeaveSession(ctx, sessionID, userID, ss.Now().UTC()); err != nil {
		return err
	}
	log.Printf("✅ %s left session %s", userID, sessionID)
	ss.publishUpdate(sessionID)
	return nil
}

// EndSession deactivates the session. Only the host may end it.
func (ss *SessionService) EndSession(ctx context.Context, userID, sessionID string) error {
	if _, err := requireActiveMember(ctx, ss.Store, sessionID, userID); err != nil {
		return err
	}
	session, err := ss.Store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.HostUserID != userID {
		return ErrForbidden
	}
	if err := ss.Store.EndSession(ctx, sessionID, ss.Now().UTC()); err != nil {
		return err
	}
	log.Printf("✅ Session %s ended by host %s", sessionID, userID)
	ss.publishUpdate(sessionID)
	return nil
}
