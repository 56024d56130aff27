package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venispagina998/telegram-betting-app/internal/betting-api/auth"
	"github.com/venispagina998/telegram-betting-app/internal/betting-api/dto"
	"github.com/venispagina998/telegram-betting-app/internal/betting-api/repo"
)

// fakeRepo replica o contrato do repositório Postgres em memória
type fakeRepo struct {
	events      map[int64]*repo.Event
	bets        []repo.Bet
	nextEventID int64
	nextBetID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: map[int64]*repo.Event{}, nextEventID: 1, nextBetID: 1}
}

func (f *fakeRepo) CreateEvent(_ context.Context, e *repo.Event) (*repo.Event, error) {
	e.ID = f.nextEventID
	f.nextEventID++
	e.Status = "active"
	f.events[e.ID] = e
	return e, nil
}

func (f *fakeRepo) ListEvents(_ context.Context, offset, limit int) ([]repo.Event, error) {
	out := make([]repo.Event, 0)
	for id := int64(1); id < f.nextEventID; id++ {
		if e, ok := f.events[id]; ok {
			out = append(out, *e)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) GetEvent(_ context.Context, id int64) (*repo.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return e, nil
}

func (f *fakeRepo) CreateBet(_ context.Context, b *repo.Bet) (*repo.Bet, error) {
	e, ok := f.events[b.EventID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if !e.EndTime.After(time.Now()) {
		return nil, repo.ErrEventClosed
	}
	found := false
	for _, o := range e.Outcomes {
		if o == b.Outcome {
			found = true
		}
	}
	if !found {
		return nil, repo.ErrUnknownOutcome
	}
	b.ID = f.nextBetID
	f.nextBetID++
	b.PlacedAt = time.Now()
	f.bets = append(f.bets, *b)
	return b, nil
}

func (f *fakeRepo) ListBetsByUser(_ context.Context, userID int64) ([]repo.Bet, error) {
	out := make([]repo.Bet, 0)
	for _, b := range f.bets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListBetsByEventAndUser(_ context.Context, eventID, userID int64) ([]repo.Bet, error) {
	out := make([]repo.Bet, 0)
	for _, b := range f.bets {
		if b.EventID == eventID && b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetResults(_ context.Context, eventID int64) (*repo.EventResults, error) {
	if _, ok := f.events[eventID]; !ok {
		return nil, repo.ErrNotFound
	}
	res := &repo.EventResults{EventID: eventID, OutcomeCounts: map[string]int{}}
	for _, b := range f.bets {
		if b.EventID == eventID {
			res.OutcomeCounts[b.Outcome]++
			res.TotalBets++
		}
	}
	return res, nil
}

// stubVerifier mapeia tokens fixos pra identidades de teste
type stubVerifier struct{ idents map[string]*auth.Identity }

func (s *stubVerifier) Verify(initData string) (*auth.Identity, error) {
	ident, ok := s.idents[initData]
	if !ok {
		return nil, auth.ErrInvalidHash
	}
	return ident, nil
}

const (
	adminToken = "admin-token"
	userToken  = "user-token"
	otherToken = "other-token"
)

func newTestServer() (*Server, *fakeRepo) {
	f := newFakeRepo()
	v := &stubVerifier{idents: map[string]*auth.Identity{
		adminToken: {UserID: 1, Username: "admin", IsAdmin: true},
		userToken:  {UserID: 123, Username: "bettor"},
		otherToken: {UserID: 999, Username: "stranger"},
	}}
	return NewServer(zap.NewNop(), f, v, nil, nil), f
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func validEventRequest() dto.CreateEventRequest {
	now := time.Now()
	return dto.CreateEventRequest{
		Title:       "T",
		Description: "final",
		StartTime:   now,
		EndTime:     now.Add(24 * time.Hour),
		Outcomes:    []string{"Win", "Draw", "Loss"},
		Probabilities: map[string]float64{
			"Win": 50, "Draw": 30, "Loss": 20,
		},
	}
}

func seedOpenEvent(f *fakeRepo) *repo.Event {
	e, _ := f.CreateEvent(context.Background(), &repo.Event{
		Title:         "T",
		StartTime:     time.Now(),
		EndTime:       time.Now().Add(time.Hour),
		Outcomes:      []string{"Win", "Draw", "Loss"},
		Probabilities: map[string]float64{"Win": 50, "Draw": 30, "Loss": 20},
		CreatedBy:     1,
	})
	return e
}

func TestCreateEvent(t *testing.T) {
	t.Run("admin creates active event", func(t *testing.T) {
		s, _ := newTestServer()
		rec := doRequest(t, s.Router(), http.MethodPost, "/events/", adminToken, validEventRequest())

		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[dto.EventResponse](t, rec)
		assert.Equal(t, "active", got.Status)
		assert.Equal(t, int64(1), got.ID)
		assert.Equal(t, int64(1), got.CreatedBy)
		assert.Equal(t, []string{"Win", "Draw", "Loss"}, got.Outcomes)
	})

	t.Run("non admin forbidden", func(t *testing.T) {
		s, _ := newTestServer()
		rec := doRequest(t, s.Router(), http.MethodPost, "/events/", userToken, validEventRequest())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("probabilities must sum 100", func(t *testing.T) {
		s, _ := newTestServer()
		req := validEventRequest()
		req.Probabilities = map[string]float64{"Win": 50, "Draw": 30, "Loss": 30} // soma 110
		rec := doRequest(t, s.Router(), http.MethodPost, "/events/", adminToken, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("float probabilities within epsilon", func(t *testing.T) {
		s, _ := newTestServer()
		req := validEventRequest()
		req.Probabilities = map[string]float64{"Win": 33.3, "Draw": 33.3, "Loss": 33.4}
		rec := doRequest(t, s.Router(), http.MethodPost, "/events/", adminToken, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("start must precede end", func(t *testing.T) {
		s, _ := newTestServer()
		req := validEventRequest()
		req.EndTime = req.StartTime.Add(-time.Hour)
		rec := doRequest(t, s.Router(), http.MethodPost, "/events/", adminToken, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("probability for unknown outcome", func(t *testing.T) {
		s, _ := newTestServer()
		req := validEventRequest()
		req.Probabilities = map[string]float64{"Win": 50, "Draw": 30, "Empate": 20}
		rec := doRequest(t, s.Router(), http.MethodPost, "/events/", adminToken, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		s, _ := newTestServer()
		rec := doRequest(t, s.Router(), http.MethodPost, "/events/", "", validEventRequest())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = doRequest(t, s.Router(), http.MethodPost, "/events/", "garbage", validEventRequest())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetEvent(t *testing.T) {
	s, f := newTestServer()
	seedOpenEvent(f)

	rec := doRequest(t, s.Router(), http.MethodGet, "/events/1", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[dto.EventResponse](t, rec)
	assert.Equal(t, "T", got.Title)

	rec = doRequest(t, s.Router(), http.MethodGet, "/events/42", userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s.Router(), http.MethodGet, "/events/abc", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEvents(t *testing.T) {
	s, f := newTestServer()
	for i := 0; i < 5; i++ {
		seedOpenEvent(f)
	}

	rec := doRequest(t, s.Router(), http.MethodGet, "/events/", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]dto.EventResponse](t, rec), 5)

	rec = doRequest(t, s.Router(), http.MethodGet, "/events/?skip=2&limit=2", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[[]dto.EventResponse](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
}

func TestPlaceBet(t *testing.T) {
	t.Run("success and visible in user bets", func(t *testing.T) {
		s, f := newTestServer()
		e := seedOpenEvent(f)

		rec := doRequest(t, s.Router(), http.MethodPost, "/bets/", userToken, dto.PlaceBetRequest{
			EventID: e.ID, UserID: 123, Outcome: "Win", Amount: 100,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		bet := decodeBody[dto.BetResponse](t, rec)
		assert.Equal(t, int64(123), bet.UserID)
		assert.False(t, bet.PlacedAt.IsZero())

		rec = doRequest(t, s.Router(), http.MethodGet, "/bets/123", userToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]dto.BetResponse](t, rec), 1)
	})

	t.Run("cannot bet as someone else", func(t *testing.T) {
		s, f := newTestServer()
		e := seedOpenEvent(f)

		rec := doRequest(t, s.Router(), http.MethodPost, "/bets/", otherToken, dto.PlaceBetRequest{
			EventID: e.ID, UserID: 123, Outcome: "Win", Amount: 100,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("event not found", func(t *testing.T) {
		s, _ := newTestServer()
		rec := doRequest(t, s.Router(), http.MethodPost, "/bets/", userToken, dto.PlaceBetRequest{
			EventID: 42, UserID: 123, Outcome: "Win", Amount: 100,
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("event ended", func(t *testing.T) {
		s, f := newTestServer()
		e, _ := f.CreateEvent(context.Background(), &repo.Event{
			Title:     "encerrado",
			StartTime: time.Now().Add(-2 * time.Hour),
			EndTime:   time.Now().Add(-time.Hour),
			Outcomes:  []string{"Win", "Loss"},
		})

		rec := doRequest(t, s.Router(), http.MethodPost, "/bets/", userToken, dto.PlaceBetRequest{
			EventID: e.ID, UserID: 123, Outcome: "Win", Amount: 100,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown outcome", func(t *testing.T) {
		s, f := newTestServer()
		e := seedOpenEvent(f)

		rec := doRequest(t, s.Router(), http.MethodPost, "/bets/", userToken, dto.PlaceBetRequest{
			EventID: e.ID, UserID: 123, Outcome: "Empate", Amount: 100,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non positive amount", func(t *testing.T) {
		s, f := newTestServer()
		e := seedOpenEvent(f)

		rec := doRequest(t, s.Router(), http.MethodPost, "/bets/", userToken, dto.PlaceBetRequest{
			EventID: e.ID, UserID: 123, Outcome: "Win", Amount: -5,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListUserBets_Ownership(t *testing.T) {
	s, f := newTestServer()
	e := seedOpenEvent(f)
	_, err := f.CreateBet(context.Background(), &repo.Bet{EventID: e.ID, UserID: 123, Outcome: "Win", Amount: 10})
	require.NoError(t, err)

	// usuário 999 tentando ler apostas do 123
	rec := doRequest(t, s.Router(), http.MethodGet, "/bets/123", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, s.Router(), http.MethodGet, "/events/1/user-bets/123", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListEventUserBets_FiltersByEvent(t *testing.T) {
	s, f := newTestServer()
	e1 := seedOpenEvent(f)
	e2 := seedOpenEvent(f)
	ctx := context.Background()
	_, _ = f.CreateBet(ctx, &repo.Bet{EventID: e1.ID, UserID: 123, Outcome: "Win", Amount: 10})
	_, _ = f.CreateBet(ctx, &repo.Bet{EventID: e2.ID, UserID: 123, Outcome: "Draw", Amount: 20})

	rec := doRequest(t, s.Router(), http.MethodGet, "/events/2/user-bets/123", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[[]dto.BetResponse](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Draw", got[0].Outcome)
}

func TestGetResults(t *testing.T) {
	t.Run("zero bets yields empty counts", func(t *testing.T) {
		s, f := newTestServer()
		seedOpenEvent(f)

		rec := doRequest(t, s.Router(), http.MethodGet, "/events/1/results", userToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[dto.EventResultsResponse](t, rec)
		assert.Equal(t, 0, got.TotalBets)
		assert.Empty(t, got.OutcomeCounts)
	})

	t.Run("counts by outcome", func(t *testing.T) {
		s, f := newTestServer()
		e := seedOpenEvent(f)
		ctx := context.Background()
		_, _ = f.CreateBet(ctx, &repo.Bet{EventID: e.ID, UserID: 123, Outcome: "Win", Amount: 10})
		_, _ = f.CreateBet(ctx, &repo.Bet{EventID: e.ID, UserID: 999, Outcome: "Win", Amount: 10})
		_, _ = f.CreateBet(ctx, &repo.Bet{EventID: e.ID, UserID: 123, Outcome: "Draw", Amount: 10})

		rec := doRequest(t, s.Router(), http.MethodGet, "/events/1/results", userToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[dto.EventResultsResponse](t, rec)
		assert.Equal(t, 3, got.TotalBets)
		assert.Equal(t, map[string]int{"Win": 2, "Draw": 1}, got.OutcomeCounts)
	})

	t.Run("event not found", func(t *testing.T) {
		s, _ := newTestServer()
		rec := doRequest(t, s.Router(), http.MethodGet, "/events/42/results", userToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSumsTo100(t *testing.T) {
	assert.True(t, sumsTo100(map[string]float64{"a": 100}))
	assert.True(t, sumsTo100(map[string]float64{"a": 33.3, "b": 33.3, "c": 33.4}))
	assert.False(t, sumsTo100(map[string]float64{"a": 50, "b": 30, "c": 30}))
	assert.False(t, sumsTo100(map[string]float64{}))
}
