package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"tablematch_server/models"
)

func seedDynamoSession(t *testing.T, store *DynamoStore, users ...string) *models.Session {
	t.Helper()
	ctx := context.Background()
	session := &models.Session{
		ID:                "session-1",
		Code:              "ABC234",
		HostUserID:        users[0],
		Name:              "Friday dinner",
		SwipeMode:         models.SwipeModeAllMustAgree,
		DefaultTravelMode: models.TravelModeAny,
		IsActive:          true,
		CreatedAt:         testNow,
	}
	host := &models.SessionMember{SessionID: session.ID, UserID: users[0], JoinedAt: testNow}
	if err := store.CreateSession(ctx, session, host); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, u := range users[1:] {
		if _, err := store.JoinSession(ctx, session.ID, u, testNow); err != nil {
			t.Fatalf("JoinSession(%s): %v", u, err)
		}
	}
	return session
}

func yesSwipe(sessionID, venueID, userID string) models.Swipe {
	return models.Swipe{SessionID: sessionID, VenueID: venueID, UserID: userID, Decision: models.DecisionYes, CreatedAt: testNow}
}

func TestDynamoCreateSessionRejectsTakenCode(t *testing.T) {
	store, _ := newDynamoTestStore()
	ctx := context.Background()
	first := seedDynamoSession(t, store, "host")

	second := *first
	second.ID = "session-2"
	host := &models.SessionMember{SessionID: second.ID, UserID: "other", JoinedAt: testNow}
	if err := store.CreateSession(ctx, &second, host); !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("err = %v, want ErrCodeTaken", err)
	}

	got, err := store.GetSessionByCode(ctx, first.Code)
	if err != nil {
		t.Fatalf("GetSessionByCode: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("code resolves to %s, want %s", got.ID, first.ID)
	}
	if _, err := store.GetMember(ctx, second.ID, "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("host of the rejected session was stored: err = %v", err)
	}
}

func TestDynamoLeaveAndRejoin(t *testing.T) {
	store, _ := newDynamoTestStore()
	ctx := context.Background()
	session := seedDynamoSession(t, store, "host", "guest")

	if err := store.SetMemberReady(ctx, session.ID, "guest", true); err != nil {
		t.Fatalf("SetMemberReady: %v", err)
	}
	if err := store.LeaveSession(ctx, session.ID, "guest", testNow.Add(time.Minute)); err != nil {
		t.Fatalf("LeaveSession: %v", err)
	}
	left, err := store.GetMember(ctx, session.ID, "guest")
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if left.Active() || left.IsReady {
		t.Errorf("after leave: active=%v ready=%v, want false/false", left.Active(), left.IsReady)
	}

	rejoined, err := store.JoinSession(ctx, session.ID, "guest", testNow.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	if !rejoined.Active() {
		t.Error("rejoin did not clear leftAt")
	}
	if !rejoined.JoinedAt.Equal(testNow) {
		t.Errorf("joinedAt = %s, want original %s", rejoined.JoinedAt, testNow)
	}

	if err := store.LeaveSession(ctx, session.ID, "stranger", testNow); !errors.Is(err, ErrNotFound) {
		t.Errorf("leave by non-member: err = %v, want ErrNotFound", err)
	}
	if err := store.EndSession(ctx, "missing", testNow); !errors.Is(err, ErrNotFound) {
		t.Errorf("end missing session: err = %v, want ErrNotFound", err)
	}
}

func TestDynamoRecordSwipeComputesSnapshot(t *testing.T) {
	store, _ := newDynamoTestStore()
	ctx := context.Background()
	session := seedDynamoSession(t, store, "host", "guest")

	snap, err := store.RecordSwipe(ctx, yesSwipe(session.ID, "v1", "host"), EvaluateQuorum)
	if err != nil {
		t.Fatalf("host swipe: %v", err)
	}
	if snap.YesCount != 1 || snap.Status != models.MatchStatusNone || snap.Version != 1 {
		t.Errorf("after host: %+v", snap)
	}

	snap, err = store.RecordSwipe(ctx, yesSwipe(session.ID, "v1", "guest"), EvaluateQuorum)
	if err != nil {
		t.Fatalf("guest swipe: %v", err)
	}
	if snap.YesCount != 2 || snap.Status != models.MatchStatusMatch || snap.Version != 2 {
		t.Errorf("after guest: %+v", snap)
	}

	if _, err := store.RecordSwipe(ctx, yesSwipe(session.ID, "v1", "guest"), EvaluateQuorum); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate swipe: err = %v, want ErrConflict", err)
	}

	matches, err := store.ListSnapshots(ctx, session.ID, models.MatchStatusMatch)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(matches) != 1 || matches[0].VenueID != "v1" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestDynamoRecordSwipeRacingDuplicateIsConflict(t *testing.T) {
	store, fake := newDynamoTestStore()
	ctx := context.Background()
	session := seedDynamoSession(t, store, "host", "guest")
	swipe := yesSwipe(session.ID, "v1", "host")

	// The same swipe commits between our read and our transaction.
	fake.beforeTransact = func() {
		if _, err := store.RecordSwipe(ctx, swipe, EvaluateQuorum); err != nil {
			t.Errorf("racing swipe: %v", err)
		}
	}
	if _, err := store.RecordSwipe(ctx, swipe, EvaluateQuorum); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	snap, err := store.GetSnapshot(ctx, session.ID, "v1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.YesCount != 1 || snap.Version != 1 {
		t.Errorf("snapshot counted the duplicate: %+v", snap)
	}
}

func TestDynamoRecordSwipeRetriesOnSnapshotVersionConflict(t *testing.T) {
	store, fake := newDynamoTestStore()
	ctx := context.Background()
	session := seedDynamoSession(t, store, "host", "guest")
	fake.transactCalls = 0

	// Another member's swipe lands first, so our snapshot write loses its
	// version check and must be recomputed including that swipe.
	fake.beforeTransact = func() {
		if _, err := store.RecordSwipe(ctx, yesSwipe(session.ID, "v1", "guest"), EvaluateQuorum); err != nil {
			t.Errorf("racing swipe: %v", err)
		}
	}
	snap, err := store.RecordSwipe(ctx, yesSwipe(session.ID, "v1", "host"), EvaluateQuorum)
	if err != nil {
		t.Fatalf("RecordSwipe: %v", err)
	}
	if snap.YesCount != 2 || snap.Status != models.MatchStatusMatch || snap.Version != 2 {
		t.Errorf("snapshot = %+v, want 2 yes, MATCH, version 2", snap)
	}
	if fake.transactCalls != 3 {
		t.Errorf("transactions = %d, want 3 (racing swipe, lost attempt, retry)", fake.transactCalls)
	}
	if n := fake.count(store.Tables.Swipes); n != 2 {
		t.Errorf("stored swipes = %d, want 2", n)
	}
}

func TestDynamoAppendDeckItemsSkipsVenuesAlreadyInDeck(t *testing.T) {
	store, fake := newDynamoTestStore()
	ctx := context.Background()

	near := []models.DeckItem{
		{SessionID: "session-1", VenueID: "a", Group: models.DeckGroupNear, Rank: 0},
		{SessionID: "session-1", VenueID: "b", Group: models.DeckGroupNear, Rank: 1},
	}
	if err := store.AppendDeckItems(ctx, near); err != nil {
		t.Fatalf("append NEAR: %v", err)
	}
	far := []models.DeckItem{
		{SessionID: "session-1", VenueID: "b", Group: models.DeckGroupFar, Rank: 0},
		{SessionID: "session-1", VenueID: "c", Group: models.DeckGroupFar, Rank: 1},
	}
	if err := store.AppendDeckItems(ctx, far); err != nil {
		t.Fatalf("append FAR: %v", err)
	}

	if fake.transactCalls != 3 {
		t.Errorf("transactions = %d, want 3 (NEAR, rejected FAR, FAR retry)", fake.transactCalls)
	}
	nearCount, _ := store.CountDeckItems(ctx, "session-1", models.DeckGroupNear)
	farItems, err := store.ListDeckItems(ctx, "session-1", models.DeckGroupFar, 0, models.DeckPageSize)
	if err != nil {
		t.Fatalf("ListDeckItems: %v", err)
	}
	if nearCount != 2 || len(farItems) != 1 || farItems[0].VenueID != "c" {
		t.Errorf("NEAR count %d, FAR items %+v; want 2 and [c]", nearCount, farItems)
	}
	ids, err := store.DeckVenueIDs(ctx, "session-1")
	if err != nil {
		t.Fatalf("DeckVenueIDs: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("deck venues = %v, want 3", ids)
	}
}

func TestDynamoListDeckItemsOrdersByRankAndPages(t *testing.T) {
	store, _ := newDynamoTestStore()
	ctx := context.Background()

	items := []models.DeckItem{
		{SessionID: "session-1", VenueID: "v10", Group: models.DeckGroupNear, Rank: 10},
		{SessionID: "session-1", VenueID: "v2", Group: models.DeckGroupNear, Rank: 2},
		{SessionID: "session-1", VenueID: "v0", Group: models.DeckGroupNear, Rank: 0},
		{SessionID: "session-1", VenueID: "far", Group: models.DeckGroupFar, Rank: 0},
	}
	if err := store.AppendDeckItems(ctx, items); err != nil {
		t.Fatalf("AppendDeckItems: %v", err)
	}

	all, err := store.ListDeckItems(ctx, "session-1", models.DeckGroupNear, 0, models.DeckPageSize)
	if err != nil {
		t.Fatalf("ListDeckItems: %v", err)
	}
	want := []string{"v0", "v2", "v10"}
	if len(all) != len(want) {
		t.Fatalf("NEAR items = %+v", all)
	}
	for i, id := range want {
		if all[i].VenueID != id {
			t.Errorf("position %d = %s, want %s", i, all[i].VenueID, id)
		}
	}

	page, _ := store.ListDeckItems(ctx, "session-1", models.DeckGroupNear, 1, 1)
	if len(page) != 1 || page[0].VenueID != "v2" {
		t.Errorf("page at offset 1 = %+v, want [v2]", page)
	}
	past, _ := store.ListDeckItems(ctx, "session-1", models.DeckGroupNear, 5, 1)
	if len(past) != 0 {
		t.Errorf("page past the end = %+v, want empty", past)
	}
}

func TestDynamoUpsertVenueConvergesOnRacingInsert(t *testing.T) {
	store, fake := newDynamoTestStore()
	ctx := context.Background()
	place := func() *models.Venue {
		return &models.Venue{
			Provider:        models.ProviderGoogle,
			ProviderPlaceID: "place-1",
			Name:            "Luigi's",
			LastRefreshedAt: testNow,
		}
	}

	rival := place()
	fake.beforeTransact = func() {
		if err := store.UpsertVenue(ctx, rival); err != nil {
			t.Errorf("racing upsert: %v", err)
		}
	}
	mine := place()
	if err := store.UpsertVenue(ctx, mine); err != nil {
		t.Fatalf("UpsertVenue: %v", err)
	}

	if mine.ID == "" || mine.ID != rival.ID {
		t.Errorf("ids diverged: mine %q, rival %q", mine.ID, rival.ID)
	}
	if n := fake.count(store.Tables.Venues); n != 1 {
		t.Errorf("stored venues = %d, want 1", n)
	}
	found, err := store.FindVenueByProvider(ctx, models.ProviderGoogle, "place-1")
	if err != nil {
		t.Fatalf("FindVenueByProvider: %v", err)
	}
	if found.ID != rival.ID {
		t.Errorf("provider key resolves to %s, want %s", found.ID, rival.ID)
	}
}

func TestDynamoEnsureTablesLeavesExistingTables(t *testing.T) {
	store, _ := newDynamoTestStore()
	if err := store.EnsureTables(context.Background()); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}
}
