package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tablematch_server/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps sessions, decks and swipes in postgres or sqlite
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore wraps an open gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.Session, host *models.SessionMember) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(session).Error; err != nil {
			return err
		}
		return tx.Create(host).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	if err := s.DB.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, notFound(err, "session")
	}
	return &session, nil
}

func (s *GormStore) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	var session models.Session
	if err := s.DB.WithContext(ctx).First(&session, "code = ?", code).Error; err != nil {
		return nil, notFound(err, "session")
	}
	return &session, nil
}

func (s *GormStore) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{"is_active": false, "ended_at": endedAt})
	if res.Error != nil {
		return fmt.Errorf("failed to end session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session: %w", ErrNotFound)
	}
	return nil
}

func (s *GormStore) JoinSession(ctx context.Context, sessionID, userID string, now time.Time) (*models.SessionMember, error) {
	member := models.SessionMember{SessionID: sessionID, UserID: userID, JoinedAt: now}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"left_at": gorm.Expr("NULL")}),
	}).Create(&member).Error
	if err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}
	return s.GetMember(ctx, sessionID, userID)
}

func (s *GormStore) GetMember(ctx context.Context, sessionID, userID string) (*models.SessionMember, error) {
	var member models.SessionMember
	err := s.DB.WithContext(ctx).First(&member, "session_id = ? AND user_id = ?", sessionID, userID).Error
	if err != nil {
		return nil, notFound(err, "member")
	}
	return &member, nil
}

func (s *GormStore) ListMembers(ctx context.Context, sessionID string) ([]models.SessionMember, error) {
	var members []models.SessionMember
	err := s.DB.WithContext(ctx).Where("session_id = ?", sessionID).Order("joined_at asc").Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *GormStore) SetMemberReady(ctx context.Context, sessionID, userID string, ready bool) error {
	return s.updateMember(ctx, sessionID, userID, map[string]interface{}{"is_ready": ready})
}

func (s *GormStore) LeaveSession(ctx context.Context, sessionID, userID string, at time.Time) error {
	return s.updateMember(ctx, sessionID, userID, map[string]interface{}{"left_at": at, "is_ready": false})
}

func (s *GormStore) updateMember(ctx context.Context, sessionID, userID string, fields map[string]interface{}) error {
	res := s.DB.WithContext(ctx).Model(&models.SessionMember{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("member: %w", ErrNotFound)
	}
	return nil
}

func (s *GormStore) UpsertVenue(ctx context.Context, venue *models.Venue) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Venue
		err := tx.Where("provider = ? AND provider_place_id = ?", venue.Provider, venue.ProviderPlaceID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if venue.ID == "" {
				venue.ID = uuid.New().String()
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(venue)
			if res.Error != nil {
				return fmt.Errorf("failed to insert venue: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				// Lost a race with a concurrent insert of the same place.
				if err := tx.Where("provider = ? AND provider_place_id = ?", venue.Provider, venue.ProviderPlaceID).First(&existing).Error; err != nil {
					return notFound(err, "venue")
				}
				*venue = existing
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to load venue: %w", err)
		}

		// The incoming venue carries the fetch time.
		if !existing.Stale(venue.LastRefreshedAt) {
			*venue = existing
			return nil
		}
		venue.ID = existing.ID
		if err := tx.Save(venue).Error; err != nil {
			return fmt.Errorf("failed to refresh venue: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetVenue(ctx context.Context, venueID string) (*models.Venue, error) {
	var venue models.Venue
	if err := s.DB.WithContext(ctx).First(&venue, "id = ?", venueID).Error; err != nil {
		return nil, notFound(err, "venue")
	}
	return &venue, nil
}

func (s *GormStore) FindVenueByProvider(ctx context.Context, provider, providerPlaceID string) (*models.Venue, error) {
	var venue models.Venue
	err := s.DB.WithContext(ctx).First(&venue, "provider = ? AND provider_place_id = ?", provider, providerPlaceID).Error
	if err != nil {
		return nil, notFound(err, "venue")
	}
	return &venue, nil
}

func (s *GormStore) GetVenues(ctx context.Context, venueIDs []string) (map[string]models.Venue, error) {
	out := make(map[string]models.Venue, len(venueIDs))
	if len(venueIDs) == 0 {
		return out, nil
	}
	var venues []models.Venue
	if err := s.DB.WithContext(ctx).Where("id IN ?", venueIDs).Find(&venues).Error; err != nil {
		return nil, fmt.Errorf("failed to load venues: %w", err)
	}
	for _, v := range venues {
		out[v.ID] = v
	}
	return out, nil
}

func (s *GormStore) CountDeckItems(ctx context.Context, sessionID string, group models.DeckGroup) (int, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.DeckItem{}).
		Where("session_id = ? AND deck_group = ?", sessionID, group).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count deck items: %w", err)
	}
	return int(n), nil
}

func (s *GormStore) DeckVenueIDs(ctx context.Context, sessionID string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.DeckItem{}).
		Where("session_id = ?", sessionID).
		Pluck("venue_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deck venues: %w", err)
	}
	return ids, nil
}

func (s *GormStore) AppendDeckItems(ctx context.Context, items []models.DeckItem) error {
	if len(items) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(items, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to append deck items: %w", err)
	}
	return nil
}

func (s *GormStore) ListDeckItems(ctx context.Context, sessionID string, group models.DeckGroup, offset, limit int) ([]models.DeckItem, error) {
	var items []models.DeckItem
	err := s.DB.WithContext(ctx).
		Where("session_id = ? AND deck_group = ?", sessionID, group).
		Order("deck_rank asc").Order("venue_id asc").
		Offset(offset).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deck items: %w", err)
	}
	return items, nil
}

// RecordSwipe serialises writers on the snapshot row: the row is created if
// missing and locked before the swipe insert, so the counts read afterwards
// include every swipe committed before this one.
func (s *GormStore) RecordSwipe(ctx context.Context, swipe models.Swipe, quorum QuorumFunc) (*models.MatchSnapshot, error) {
	var snapshot models.MatchSnapshot
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.MatchSnapshot{
			SessionID: swipe.SessionID,
			VenueID:   swipe.VenueID,
			Status:    models.MatchStatusNone,
			UpdatedAt: swipe.CreatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to seed snapshot: %w", err)
		}

		lock := tx
		if tx.Dialector.Name() != "sqlite" {
			lock = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := lock.First(&snapshot, "session_id = ? AND venue_id = ?", swipe.SessionID, swipe.VenueID).Error; err != nil {
			return fmt.Errorf("failed to lock snapshot: %w", err)
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&swipe)
		if res.Error != nil {
			return fmt.Errorf("failed to insert swipe: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		var tally []struct {
			Decision models.SwipeDecision
			Total    int
		}
		err := tx.Model(&models.Swipe{}).
			Select("decision, count(*) as total").
			Where("session_id = ? AND venue_id = ?", swipe.SessionID, swipe.VenueID).
			Group("decision").
			Scan(&tally).Error
		if err != nil {
			return fmt.Errorf("failed to count swipes: %w", err)
		}
		yes, no := 0, 0
		for _, t := range tally {
			switch t.Decision {
			case models.DecisionYes:
				yes = t.Total
			case models.DecisionNo:
				no = t.Total
			}
		}

		var session models.Session
		if err := tx.First(&session, "id = ?", swipe.SessionID).Error; err != nil {
			return notFound(err, "session")
		}
		var active int64
		err = tx.Model(&models.SessionMember{}).
			Where("session_id = ? AND left_at IS NULL", swipe.SessionID).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}

		snapshot.YesCount = yes
		snapshot.NoCount = no
		snapshot.Status = quorum(yes, no, int(active), session)
		snapshot.Version++
		snapshot.UpdatedAt = swipe.CreatedAt
		return tx.Model(&models.MatchSnapshot{}).
			Where("session_id = ? AND venue_id = ?", swipe.SessionID, swipe.VenueID).
			Updates(map[string]interface{}{
				"yes_count":  snapshot.YesCount,
				"no_count":   snapshot.NoCount,
				"status":     snapshot.Status,
				"version":    snapshot.Version,
				"updated_at": snapshot.UpdatedAt,
			}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrNotFound) {
			log.Printf("❌ RecordSwipe failed for session %s venue %s: %v", swipe.SessionID, swipe.VenueID, err)
		}
		return nil, err
	}
	return &snapshot, nil
}

func (s *GormStore) GetSnapshot(ctx context.Context, sessionID, venueID string) (*models.MatchSnapshot, error) {
	var snapshot models.MatchSnapshot
	err := s.DB.WithContext(ctx).First(&snapshot, "session_id = ? AND venue_id = ?", sessionID, venueID).Error
	if err != nil {
		return nil, notFound(err, "snapshot")
	}
	return &snapshot, nil
}

func (s *GormStore) ListSnapshots(ctx context.Context, sessionID string, statuses ...models.MatchStatus) ([]models.MatchSnapshot, error) {
	q := s.DB.WithContext(ctx).Where("session_id = ?", sessionID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var snapshots []models.MatchSnapshot
	if err := q.Order("venue_id asc").Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
