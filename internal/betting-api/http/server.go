package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/venispagina998/telegram-betting-app/internal/betting-api/auth"
	"github.com/venispagina998/telegram-betting-app/internal/betting-api/dto"
	"github.com/venispagina998/telegram-betting-app/internal/betting-api/repo"
	"github.com/venispagina998/telegram-betting-app/pkg/contracts/events"
)

// Repo define as operações de persistência usadas pelos handlers
type Repo interface {
	CreateEvent(ctx context.Context, e *repo.Event) (*repo.Event, error)
	ListEvents(ctx context.Context, offset, limit int) ([]repo.Event, error)
	GetEvent(ctx context.Context, id int64) (*repo.Event, error)
	CreateBet(ctx context.Context, b *repo.Bet) (*repo.Bet, error)
	ListBetsByUser(ctx context.Context, userID int64) ([]repo.Bet, error)
	ListBetsByEventAndUser(ctx context.Context, eventID, userID int64) ([]repo.Bet, error)
	GetResults(ctx context.Context, eventID int64) (*repo.EventResults, error)
}

// Publisher emite os eventos de domínio; publicação é best-effort,
// a resposta HTTP não depende dela
type Publisher interface {
	PublishBetPlaced(context.Context, events.BetPlaced) error
	PublishEventCreated(context.Context, events.EventCreated) error
}

// ResultsCache guarda agregados de resultados já calculados
type ResultsCache interface {
	Get(ctx context.Context, eventID int64, dst any) (bool, error)
	Set(ctx context.Context, eventID int64, v any) error
	Invalidate(ctx context.Context, eventID int64) error
}

// Verifier autentica o initData do Telegram
type Verifier interface {
	Verify(initData string) (*auth.Identity, error)
}

// Server expõe a API de eventos e apostas
type Server struct {
	log      *zap.Logger
	repo     Repo
	verifier Verifier
	cache    ResultsCache // opcional
	publ     Publisher    // opcional
	validate *validator.Validate
}

func NewServer(log *zap.Logger, r Repo, v Verifier, cache ResultsCache, publ Publisher) *Server {
	return &Server{
		log:      log,
		repo:     r,
		verifier: v,
		cache:    cache,
		publ:     publ,
		validate: validator.New(),
	}
}

// Router retorna o roteador HTTP; toda rota exige initData válido
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withAuth)

	r.Post("/events/", s.createEvent)
	r.Get("/events/", s.listEvents)
	r.Get("/events/{id}", s.getEvent)
	r.Get("/events/{id}/results", s.getResults)
	r.Get("/events/{id}/user-bets/{user_id}", s.listEventUserBets)
	r.Post("/bets/", s.placeBet)
	r.Get("/bets/{user_id}", s.listUserBets)

	return withCORS(r)
}

// createEvent cria um evento; só admins, e as probabilidades devem somar 100
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())
	if !ident.IsAdmin {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not authorized"})
		return
	}

	var req dto.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload"})
		return
	}

	if !sumsTo100(req.Probabilities) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Probabilities must sum to 100"})
		return
	}
	if !req.StartTime.Before(req.EndTime) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "start_time must be before end_time"})
		return
	}
	for outcome := range req.Probabilities {
		if !containsString(req.Outcomes, outcome) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "probability for unknown outcome: " + outcome})
			return
		}
	}

	event, err := s.repo.CreateEvent(r.Context(), &repo.Event{
		Title:         req.Title,
		Description:   req.Description,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Outcomes:      req.Outcomes,
		Probabilities: req.Probabilities,
		CreatedBy:     ident.UserID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	eventsCreated.Inc()

	if s.publ != nil {
		if err := s.publ.PublishEventCreated(r.Context(), events.EventCreated{
			EventID:   event.ID,
			Title:     event.Title,
			CreatedBy: event.CreatedBy,
			Outcomes:  event.Outcomes,
			EndTime:   event.EndTime,
		}); err != nil {
			s.log.Warn("publish event_created", zap.Int64("eventId", event.ID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// listEvents retorna eventos paginados via ?skip=&limit=
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	evs, err := s.repo.ListEvents(r.Context(), skip, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]dto.EventResponse, 0, len(evs))
	for i := range evs {
		out = append(out, toEventResponse(&evs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	event, err := s.repo.GetEvent(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// getResults retorna o agregado de apostas por resultado, preferencialmente do cache
func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	if s.cache != nil {
		var cached dto.EventResultsResponse
		if ok, _ := s.cache.Get(r.Context(), id, &cached); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	res, err := s.repo.GetResults(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := dto.EventResultsResponse{
		EventID:       res.EventID,
		TotalBets:     res.TotalBets,
		OutcomeCounts: res.OutcomeCounts,
	}
	if s.cache != nil {
		_ = s.cache.Set(r.Context(), id, out)
	}
	writeJSON(w, http.StatusOK, out)
}

// placeBet registra uma aposta; o chamador só aposta em nome próprio
func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload"})
		return
	}

	if req.UserID != ident.UserID {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not authorized"})
		return
	}

	bet, err := s.repo.CreateBet(r.Context(), &repo.Bet{
		EventID: req.EventID,
		UserID:  req.UserID,
		Outcome: req.Outcome,
		Amount:  req.Amount,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	betsPlaced.Inc()

	if s.cache != nil {
		_ = s.cache.Invalidate(r.Context(), bet.EventID)
	}
	if s.publ != nil {
		if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
			BetID:   bet.ID,
			EventID: bet.EventID,
			UserID:  bet.UserID,
			Outcome: bet.Outcome,
			Amount:  bet.Amount,
		}); err != nil {
			s.log.Warn("publish bet_placed", zap.Int64("betId", bet.ID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, toBetResponse(bet))
}

// listUserBets retorna as apostas do usuário; só as próprias
func (s *Server) listUserBets(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	userID, ok := pathInt64(w, r, "user_id")
	if !ok {
		return
	}
	if userID != ident.UserID {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not authorized"})
		return
	}

	bets, err := s.repo.ListBetsByUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponses(bets))
}

// listEventUserBets retorna as apostas do usuário num evento; só as próprias
func (s *Server) listEventUserBets(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	eventID, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathInt64(w, r, "user_id")
	if !ok {
		return
	}
	if userID != ident.UserID {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not authorized"})
		return
	}

	bets, err := s.repo.ListBetsByEventAndUser(r.Context(), eventID, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponses(bets))
}

// writeError mapeia erros do repositório pra status HTTP
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Event not found"})
	case errors.Is(err, repo.ErrEventClosed):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Event has ended"})
	case errors.Is(err, repo.ErrUnknownOutcome):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Outcome not in event outcomes"})
	default:
		s.log.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}

// sumsTo100 compara com epsilon pra não quebrar em soma de floats
func sumsTo100(probs map[string]float64) bool {
	var sum float64
	for _, v := range probs {
		sum += v
	}
	return math.Abs(sum-100) < 1e-9
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toEventResponse(e *repo.Event) dto.EventResponse {
	return dto.EventResponse{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Outcomes:      e.Outcomes,
		Probabilities: e.Probabilities,
		CreatedBy:     e.CreatedBy,
		Status:        e.Status,
	}
}

func toBetResponse(b *repo.Bet) dto.BetResponse {
	return dto.BetResponse{
		ID:       b.ID,
		EventID:  b.EventID,
		UserID:   b.UserID,
		Outcome:  b.Outcome,
		Amount:   b.Amount,
		PlacedAt: b.PlacedAt,
	}
}

func toBetResponses(bets []repo.Bet) []dto.BetResponse {
	out := make([]dto.BetResponse, 0, len(bets))
	for i := range bets {
		out = append(out, toBetResponse(&bets[i]))
	}
	return out
}

func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid " + name})
		return 0, false
	}
	return v, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
