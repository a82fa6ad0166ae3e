package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"tablematch_server/database"
	"tablematch_server/models"

	"gorm.io/driver/sqlite"
)

var testNow = time.Date(2025, 3, 14, 19, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"), false)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := NewGormStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

type publishedEvent struct {
	SessionID string
	Event     string
	Payload   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(sessionID, event string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{sessionID, event, payload})
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last() publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return publishedEvent{}
	}
	return p.events[len(p.events)-1]
}

type fakeProvider struct {
	mu          sync.Mutex
	results     [][]models.Venue // one entry per call; the last one repeats
	err         error
	searches    int
	detailCalls int
}

func (f *fakeProvider) Name() string { return models.ProviderGoogle }

func (f *fakeProvider) NearbySearch(ctx context.Context, query PlaceQuery, radiusMeters int) ([]models.Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	i := f.searches - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return append([]models.Venue(nil), f.results[i]...), nil
}

func (f *fakeProvider) PlaceDetails(ctx context.Context, providerPlaceID string) (*models.Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	return nil, nil
}

func floatPtr(v float64) *float64 { return &v }

// placeList builds n provider results named place-<from>..place-<from+n-1>
func placeList(from, n int) []models.Venue {
	out := make([]models.Venue, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, models.Venue{
			Provider:        models.ProviderGoogle,
			ProviderPlaceID: fmt.Sprintf("place-%d", i),
			Name:            fmt.Sprintf("Venue %d", i),
			Lat:             floatPtr(40.7128 + float64(i)*0.001),
			Lng:             floatPtr(-74.0060),
		})
	}
	return out
}

type fixture struct {
	store     *GormStore
	publisher *recordingPublisher
	provider  *fakeProvider
	sessions  *SessionService
	decks     *DeckService
	swipes    *SwipeService
	shortlist *ShortlistService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newTestStore(t)
	pub := &recordingPublisher{}
	provider := &fakeProvider{}

	places := NewPlacesService(store, provider, time.Second)
	places.Now = fixedClock

	sessions := NewSessionService(store, pub)
	sessions.Now = fixedClock
	swipes := NewSwipeService(store, pub)
	swipes.Now = fixedClock

	return &fixture{
		store:     store,
		publisher: pub,
		provider:  provider,
		sessions:  sessions,
		decks:     NewDeckService(store, places, pub),
		swipes:    swipes,
		shortlist: NewShortlistService(store),
	}
}

// newSession creates a session hosted by "host" and joins the other users
func (f *fixture) newSession(t *testing.T, req models.CreateSessionRequest, others ...string) *models.Session {
	t.Helper()
	ctx := context.Background()
	if req.Name == "" {
		req.Name = "Friday dinner"
	}
	state, err := f.sessions.CreateSession(ctx, "host", req)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, u := range others {
		if _, err := f.sessions.JoinSessionByCode(ctx, u, state.Code); err != nil {
			t.Fatalf("JoinSessionByCode(%s): %v", u, err)
		}
	}
	return &state.Session
}

// addVenue stores a venue and returns its id
func (f *fixture) addVenue(t *testing.T, placeID string, rating *float64, lat, lng *float64) string {
	t.Helper()
	v := models.Venue{
		Provider:        models.ProviderGoogle,
		ProviderPlaceID: placeID,
		Name:            placeID,
		Rating:          rating,
		Lat:             lat,
		Lng:             lng,
		LastRefreshedAt: testNow,
	}
	if err := f.store.UpsertVenue(context.Background(), &v); err != nil {
		t.Fatalf("UpsertVenue: %v", err)
	}
	return v.ID
}
