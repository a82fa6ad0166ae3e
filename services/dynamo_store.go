package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"tablematch_server/models"
	"tablematch_server/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoTables names every table the DynamoDB store uses
type DynamoTables struct {
	Sessions     string
	SessionCodes string
	Members      string
	Venues       string
	VenueKeys    string
	DeckItems    string
	Swipes       string
	Snapshots    string
}

// NewDynamoTables prefixes the default table names, e.g. "dev-" → "dev-Sessions"
func NewDynamoTables(prefix string) DynamoTables {
	return DynamoTables{
		Sessions:     prefix + "Sessions",
		SessionCodes: prefix + "SessionCodes",
		Members:      prefix + "SessionMembers",
		Venues:       prefix + "Venues",
		VenueKeys:    prefix + "VenueProviderKeys",
		DeckItems:    prefix + "DeckItems",
		Swipes:       prefix + "Swipes",
		Snapshots:    prefix + "MatchSnapshots",
	}
}

// DeckOrderIndex is the LSI on DeckItems sorted by "GROUP#rank"
const DeckOrderIndex = "groupRank-index"

// maxWriteAttempts bounds optimistic retries on contended items
const maxWriteAttempts = 5

// DynamoStore implements Store on DynamoDB. Uniqueness is enforced with
// attribute_not_exists conditions and snapshot recomputation is guarded by a
// version number checked inside the same transaction as the swipe insert.
type DynamoStore struct {
	Dynamo *DynamoService
	Tables DynamoTables
}

func NewDynamoStore(dynamo *DynamoService, tables DynamoTables) *DynamoStore {
	return &DynamoStore{Dynamo: dynamo, Tables: tables}
}

func sessionKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"sessionId": utils.StringAttr(sessionID)}
}

func memberKey(sessionID, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"sessionId": utils.StringAttr(sessionID),
		"userId":    utils.StringAttr(userID),
	}
}

func snapshotKey(sessionID, venueID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"sessionId": utils.StringAttr(sessionID),
		"venueId":   utils.StringAttr(venueID),
	}
}

func venueKey(venueID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"venueId": utils.StringAttr(venueID)}
}

func (s *DynamoStore) getItem(ctx context.Context, table string, key map[string]types.AttributeValue, out interface{}, what string) error {
	err := s.Dynamo.GetItem(ctx, table, key, out)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func (s *DynamoStore) CreateSession(ctx context.Context, session *models.Session, host *models.SessionMember) error {
	codeItem, err := attributevalue.MarshalMap(models.SessionCode{Code: session.Code, SessionID: session.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal session code: %w", err)
	}
	sessionItem, err := attributevalue.MarshalMap(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	memberItem, err := attributevalue.MarshalMap(host)
	if err != nil {
		return fmt.Errorf("failed to marshal member: %w", err)
	}

	err = s.Dynamo.TransactWrite(ctx, []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(s.Tables.SessionCodes),
			Item:                codeItem,
			ConditionExpression: aws.String("attribute_not_exists(code)"),
		}},
		{Put: &types.Put{
			TableName:           aws.String(s.Tables.Sessions),
			Item:                sessionItem,
			ConditionExpression: aws.String("attribute_not_exists(sessionId)"),
		}},
		{Put: &types.Put{
			TableName: aws.String(s.Tables.Members),
			Item:      memberItem,
		}},
	})
	if reasons := cancellationReasons(err); len(reasons) > 0 && reasons[0] == reasonConditionFailed {
		return ErrCodeTaken
	}
	if err != nil {
		log.Printf("❌ Failed to create session %s: %v", session.ID, err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	if err := s.getItem(ctx, s.Tables.Sessions, sessionKey(sessionID), &session, "session"); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *DynamoStore) GetSessionByCode(ctx context.Context, code string) (*models.Session, error) {
	var guard models.SessionCode
	key := map[string]types.AttributeValue{"code": utils.StringAttr(code)}
	if err := s.getItem(ctx, s.Tables.SessionCodes, key, &guard, "session"); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, guard.SessionID)
}

func (s *DynamoStore) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	ended, err := attributevalue.Marshal(endedAt)
	if err != nil {
		return fmt.Errorf("failed to marshal endedAt: %w", err)
	}
	_, err = s.Dynamo.UpdateItem(ctx, s.Tables.Sessions, sessionKey(sessionID),
		"SET isActive = :inactive, endedAt = :endedAt",
		"attribute_exists(sessionId)",
		map[string]types.AttributeValue{
			":inactive": &types.AttributeValueMemberBOOL{Value: false},
			":endedAt":  ended,
		}, nil)
	if isConditionFailed(err) {
		return fmt.Errorf("session: %w", ErrNotFound)
	}
	return err
}

// JoinSession upserts the membership in one UpdateItem: joinedAt and isReady
// are only set on first join, leftAt is always removed.
func (s *DynamoStore) JoinSession(ctx context.Context, sessionID, userID string, now time.Time) (*models.SessionMember, error) {
	joined, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal joinedAt: %w", err)
	}
	attrs, err := s.Dynamo.UpdateItem(ctx, s.Tables.Members, memberKey(sessionID, userID),
		"SET joinedAt = if_not_exists(joinedAt, :now), isReady = if_not_exists(isReady, :notReady) REMOVE leftAt",
		"",
		map[string]types.AttributeValue{
			":now":      joined,
			":notReady": &types.AttributeValueMemberBOOL{Value: false},
		}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}
	var member models.SessionMember
	if err := attributevalue.UnmarshalMap(attrs, &member); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}
	return &member, nil
}

func (s *DynamoStore) GetMember(ctx context.Context, sessionID, userID string) (*models.SessionMember, error) {
	var member models.SessionMember
	if err := s.getItem(ctx, s.Tables.Members, memberKey(sessionID, userID), &member, "member"); err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *DynamoStore) ListMembers(ctx context.Context, sessionID string) ([]models.SessionMember, error) {
	items, err := s.Dynamo.QueryItems(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Members),
		KeyConditionExpression: aws.String("sessionId = :sessionId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sessionId": utils.StringAttr(sessionID),
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	var members []models.SessionMember
	if err := attributevalue.UnmarshalListOfMaps(items, &members); err != nil {
		return nil, fmt.Errorf("failed to unmarshal members: %w", err)
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (s *DynamoStore) SetMemberReady(ctx context.Context, sessionID, userID string, ready bool) error {
	_, err := s.Dynamo.UpdateItem(ctx, s.Tables.Members, memberKey(sessionID, userID),
		"SET isReady = :ready",
		"attribute_exists(userId)",
		map[string]types.AttributeValue{":ready": &types.AttributeValueMemberBOOL{Value: ready}}, nil)
	if isConditionFailed(err) {
		return fmt.Errorf("member: %w", ErrNotFound)
	}
	return err
}

func (s *DynamoStore) LeaveSession(ctx context.Context, sessionID, userID string, at time.Time) error {
	left, err := attributevalue.Marshal(at)
	if err != nil {
		return fmt.Errorf("failed to marshal leftAt: %w", err)
	}
	_, err = s.Dynamo.UpdateItem(ctx, s.Tables.Members, memberKey(sessionID, userID),
		"SET leftAt = :leftAt, isReady = :notReady",
		"attribute_exists(userId)",
		map[string]types.AttributeValue{
			":leftAt":   left,
			":notReady": &types.AttributeValueMemberBOOL{Value: false},
		}, nil)
	if isConditionFailed(err) {
		return fmt.Errorf("member: %w", ErrNotFound)
	}
	return err
}

// UpsertVenue resolves the provider key guard first. New venues are written
// together with their guard so two racing inserts converge on one id.
func (s *DynamoStore) UpsertVenue(ctx context.Context, venue *models.Venue) error {
	providerKey := map[string]types.AttributeValue{"providerKey": utils.StringAttr(venue.ProviderKey())}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		var guard models.VenueProviderKey
		err := s.Dynamo.GetItem(ctx, s.Tables.VenueKeys, providerKey, &guard)
		switch {
		case err == nil:
			var existing models.Venue
			if err := s.getItem(ctx, s.Tables.Venues, venueKey(guard.VenueID), &existing, "venue"); err != nil {
				return err
			}
			// The incoming venue carries the fetch time.
			if !existing.Stale(venue.LastRefreshedAt) {
				*venue = existing
				return nil
			}
			venue.ID = existing.ID
			return s.Dynamo.PutItem(ctx, s.Tables.Venues, venue)
		case !errors.Is(err, ErrNotFound):
			return err
		}

		if venue.ID == "" {
			venue.ID = uuid.New().String()
		}
		guardItem, err := attributevalue.MarshalMap(models.VenueProviderKey{ProviderKey: venue.ProviderKey(), VenueID: venue.ID})
		if err != nil {
			return fmt.Errorf("failed to marshal venue key: %w", err)
		}
		venueItem, err := attributevalue.MarshalMap(venue)
		if err != nil {
			return fmt.Errorf("failed to marshal venue: %w", err)
		}
		err = s.Dynamo.TransactWrite(ctx, []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.Tables.VenueKeys),
				Item:                guardItem,
				ConditionExpression: aws.String("attribute_not_exists(providerKey)"),
			}},
			{Put: &types.Put{
				TableName: aws.String(s.Tables.Venues),
				Item:      venueItem,
			}},
		})
		if err == nil {
			return nil
		}
		if cancellationReasons(err) == nil {
			return fmt.Errorf("failed to insert venue: %w", err)
		}
		// Another writer inserted the same place; read it back on the next pass.
		venue.ID = ""
	}
	return fmt.Errorf("failed to upsert venue %s: too much contention", venue.ProviderKey())
}

func (s *DynamoStore) GetVenue(ctx context.Context, venueID string) (*models.Venue, error) {
	var venue models.Venue
	if err := s.getItem(ctx, s.Tables.Venues, venueKey(venueID), &venue, "venue"); err != nil {
		return nil, err
	}
	return &venue, nil
}

func (s *DynamoStore) FindVenueByProvider(ctx context.Context, provider, providerPlaceID string) (*models.Venue, error) {
	var guard models.VenueProviderKey
	key := map[string]types.AttributeValue{
		"providerKey": utils.StringAttr(models.Venue{Provider: provider, ProviderPlaceID: providerPlaceID}.ProviderKey()),
	}
	if err := s.getItem(ctx, s.Tables.VenueKeys, key, &guard, "venue"); err != nil {
		return nil, err
	}
	return s.GetVenue(ctx, guard.VenueID)
}

func (s *DynamoStore) GetVenues(ctx context.Context, venueIDs []string) (map[string]models.Venue, error) {
	out := make(map[string]models.Venue, len(venueIDs))
	if len(venueIDs) == 0 {
		return out, nil
	}
	seen := make(map[string]bool, len(venueIDs))
	keys := make([]map[string]types.AttributeValue, 0, len(venueIDs))
	for _, id := range venueIDs {
		if !seen[id] {
			seen[id] = true
			keys = append(keys, venueKey(id))
		}
	}
	items, err := s.Dynamo.BatchGetItems(ctx, s.Tables.Venues, keys)
	if err != nil {
		return nil, err
	}
	var venues []models.Venue
	if err := attributevalue.UnmarshalListOfMaps(items, &venues); err != nil {
		return nil, fmt.Errorf("failed to unmarshal venues: %w", err)
	}
	for _, v := range venues {
		out[v.ID] = v
	}
	return out, nil
}

func (s *DynamoStore) deckGroupQuery(sessionID string, group models.DeckGroup) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.DeckItems),
		IndexName:              aws.String(DeckOrderIndex),
		KeyConditionExpression: aws.String("sessionId = :sessionId AND begins_with(groupRank, :group)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sessionId": utils.StringAttr(sessionID),
			":group":     utils.StringAttr(string(group) + "#"),
		},
		ConsistentRead:   aws.Bool(true),
		ScanIndexForward: aws.Bool(true),
	}
}

func (s *DynamoStore) CountDeckItems(ctx context.Context, sessionID string, group models.DeckGroup) (int, error) {
	return s.Dynamo.QueryCount(ctx, s.deckGroupQuery(sessionID, group))
}

func (s *DynamoStore) DeckVenueIDs(ctx context.Context, sessionID string) ([]string, error) {
	items, err := s.Dynamo.QueryItems(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.DeckItems),
		KeyConditionExpression: aws.String("sessionId = :sessionId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sessionId": utils.StringAttr(sessionID),
		},
		ProjectionExpression: aws.String("venueId"),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, utils.ExtractString(item, "venueId"))
	}
	return ids, nil
}

// AppendDeckItems writes each chunk as one transaction of conditional puts.
// Items rejected because their venue is already in the deck are dropped and
// the rest retried, so duplicates never abort the append.
func (s *DynamoStore) AppendDeckItems(ctx context.Context, items []models.DeckItem) error {
	const maxTransactItems = 100

	for start := 0; start < len(items); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(items) {
			end = len(items)
		}
		pending := append([]models.DeckItem(nil), items[start:end]...)

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxWriteAttempts {
				return fmt.Errorf("failed to append deck items: too much contention")
			}
			writes := make([]types.TransactWriteItem, 0, len(pending))
			for _, item := range pending {
				item.GroupRank = models.GroupRankKey(item.Group, item.Rank)
				av, err := attributevalue.MarshalMap(item)
				if err != nil {
					return fmt.Errorf("failed to marshal deck item: %w", err)
				}
				writes = append(writes, types.TransactWriteItem{Put: &types.Put{
					TableName:           aws.String(s.Tables.DeckItems),
					Item:                av,
					ConditionExpression: aws.String("attribute_not_exists(venueId)"),
				}})
			}

			err := s.Dynamo.TransactWrite(ctx, writes)
			if err == nil {
				break
			}
			reasons := cancellationReasons(err)
			if reasons == nil {
				return fmt.Errorf("failed to append deck items: %w", err)
			}
			kept := pending[:0]
			for i, item := range pending {
				if i < len(reasons) && reasons[i] == reasonConditionFailed {
					continue
				}
				kept = append(kept, item)
			}
			pending = kept
		}
	}
	return nil
}

func (s *DynamoStore) ListDeckItems(ctx context.Context, sessionID string, group models.DeckGroup, offset, limit int) ([]models.DeckItem, error) {
	raw, err := s.Dynamo.QueryItems(ctx, s.deckGroupQuery(sessionID, group))
	if err != nil {
		return nil, err
	}
	var items []models.DeckItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deck items: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Rank != items[j].Rank {
			return items[i].Rank < items[j].Rank
		}
		return items[i].VenueID < items[j].VenueID
	})
	if offset >= len(items) {
		return []models.DeckItem{}, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}

// RecordSwipe reads the tally with consistent reads and commits the swipe and
// the recomputed snapshot in one transaction. The snapshot put is conditioned
// on the version that was read; losing that race re-reads and retries.
func (s *DynamoStore) RecordSwipe(ctx context.Context, swipe models.Swipe, quorum QuorumFunc) (*models.MatchSnapshot, error) {
	swipe.SessionVenue = models.SessionVenueKey(swipe.SessionID, swipe.VenueID)
	swipeItem, err := attributevalue.MarshalMap(swipe)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swipe: %w", err)
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		session, err := s.GetSession(ctx, swipe.SessionID)
		if err != nil {
			return nil, err
		}
		members, err := s.ListMembers(ctx, swipe.SessionID)
		if err != nil {
			return nil, err
		}

		raw, err := s.Dynamo.QueryItems(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.Tables.Swipes),
			KeyConditionExpression: aws.String("sessionVenue = :sv"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sv": utils.StringAttr(swipe.SessionVenue),
			},
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, err
		}
		var swipes []models.Swipe
		if err := attributevalue.UnmarshalListOfMaps(raw, &swipes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal swipes: %w", err)
		}
		for _, sw := range swipes {
			if sw.UserID == swipe.UserID {
				return nil, ErrConflict
			}
		}

		yes, no := 0, 0
		for _, sw := range append(swipes, swipe) {
			if sw.Decision == models.DecisionYes {
				yes++
			} else {
				no++
			}
		}

		snapshot := models.MatchSnapshot{SessionID: swipe.SessionID, VenueID: swipe.VenueID}
		exists := true
		if err := s.Dynamo.GetItem(ctx, s.Tables.Snapshots, snapshotKey(swipe.SessionID, swipe.VenueID), &snapshot); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			exists = false
		}

		readVersion := snapshot.Version
		snapshot.YesCount = yes
		snapshot.NoCount = no
		snapshot.Status = quorum(yes, no, models.CountActive(members), *session)
		snapshot.Version = readVersion + 1
		snapshot.UpdatedAt = swipe.CreatedAt

		snapshotItem, err := attributevalue.MarshalMap(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		snapshotPut := &types.Put{
			TableName:           aws.String(s.Tables.Snapshots),
			Item:                snapshotItem,
			ConditionExpression: aws.String("attribute_not_exists(venueId)"),
		}
		if exists {
			snapshotPut.ConditionExpression = aws.String("version = :version")
			snapshotPut.ExpressionAttributeValues = map[string]types.AttributeValue{
				":version": utils.NumberAttr(readVersion),
			}
		}

		err = s.Dynamo.TransactWrite(ctx, []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.Tables.Swipes),
				Item:                swipeItem,
				ConditionExpression: aws.String("attribute_not_exists(userId)"),
			}},
			{Put: snapshotPut},
		})
		if err == nil {
			return &snapshot, nil
		}

		reasons := cancellationReasons(err)
		if reasons == nil {
			log.Printf("❌ RecordSwipe failed for session %s venue %s: %v", swipe.SessionID, swipe.VenueID, err)
			return nil, fmt.Errorf("failed to record swipe: %w", err)
		}
		if len(reasons) > 0 && reasons[0] == reasonConditionFailed {
			return nil, ErrConflict
		}
		log.Printf("⚠️ Snapshot for venue %s changed underneath swipe (attempt %d), retrying", swipe.VenueID, attempt+1)
	}
	return nil, fmt.Errorf("failed to record swipe: too much contention on venue %s", swipe.VenueID)
}

func (s *DynamoStore) GetSnapshot(ctx context.Context, sessionID, venueID string) (*models.MatchSnapshot, error) {
	var snapshot models.MatchSnapshot
	if err := s.getItem(ctx, s.Tables.Snapshots, snapshotKey(sessionID, venueID), &snapshot, "snapshot"); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *DynamoStore) ListSnapshots(ctx context.Context, sessionID string, statuses ...models.MatchStatus) ([]models.MatchSnapshot, error) {
	raw, err := s.Dynamo.QueryItems(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Snapshots),
		KeyConditionExpression: aws.String("sessionId = :sessionId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sessionId": utils.StringAttr(sessionID),
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	var all []models.MatchSnapshot
	if err := attributevalue.UnmarshalListOfMaps(raw, &all); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshots: %w", err)
	}
	if len(statuses) == 0 {
		return all, nil
	}
	wanted := make(map[models.MatchStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	out := make([]models.MatchSnapshot, 0, len(all))
	for _, snap := range all {
		if wanted[snap.Status] {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *DynamoStore) Close() error {
	return nil
}
