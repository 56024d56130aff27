package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Postgres implementa a persistência de eventos e apostas
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrNotFound       = errors.New("not found")
	ErrEventClosed    = errors.New("event has ended")
	ErrUnknownOutcome = errors.New("outcome not in event outcomes")
)

// CreateEvent insere um novo evento com status 'active' e retorna o registro com id
func (p *Postgres) CreateEvent(ctx context.Context, e *Event) (*Event, error) {
	outcomesJSON, err := json.Marshal(e.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("marshal outcomes: %w", err)
	}
	probsJSON, err := json.Marshal(e.Probabilities)
	if err != nil {
		return nil, fmt.Errorf("marshal probabilities: %w", err)
	}

	row := p.db.QueryRowContext(ctx, `
		INSERT INTO events (title,description,start_time,end_time,outcomes,probabilities,created_by,status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'active')
		RETURNING id`,
		e.Title, e.Description, e.StartTime, e.EndTime, string(outcomesJSON), string(probsJSON), e.CreatedBy,
	)
	if err := row.Scan(&e.ID); err != nil {
		return nil, err
	}
	e.Status = "active"
	return e, nil
}

// ListEvents retorna eventos paginados por offset/limit, em ordem de inserção
func (p *Postgres) ListEvents(ctx context.Context, offset, limit int) ([]Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id,title,description,start_time,end_time,outcomes,probabilities,created_by,status
		FROM events ORDER BY id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetEvent busca um evento pelo id
func (p *Postgres) GetEvent(ctx context.Context, id int64) (*Event, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id,title,description,start_time,end_time,outcomes,probabilities,created_by,status
		FROM events WHERE id=$1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// CreateBet insere uma aposta validando existência e janela do evento
// dentro de uma única transação, com lock compartilhado na linha do evento
// pra fechar a corrida entre a checagem de end_time e o insert
func (p *Postgres) CreateBet(ctx context.Context, b *Bet) (*Bet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var endTime time.Time
	var outcomesJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT end_time, outcomes FROM events WHERE id=$1 FOR SHARE`, b.EventID,
	).Scan(&endTime, &outcomesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !endTime.After(time.Now()) {
		return nil, ErrEventClosed
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(outcomesJSON), &outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	if !contains(outcomes, b.Outcome) {
		return nil, ErrUnknownOutcome
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO bets (event_id,user_id,outcome,amount)
		VALUES ($1,$2,$3,$4)
		RETURNING id, placed_at`,
		b.EventID, b.UserID, b.Outcome, b.Amount,
	).Scan(&b.ID, &b.PlacedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBetsByUser retorna todas as apostas de um usuário
func (p *Postgres) ListBetsByUser(ctx context.Context, userID int64) ([]Bet, error) {
	return p.queryBets(ctx,
		`SELECT id,event_id,user_id,outcome,amount,placed_at FROM bets WHERE user_id=$1 ORDER BY id`,
		userID)
}

// ListBetsByEventAndUser retorna as apostas de um usuário num evento
func (p *Postgres) ListBetsByEventAndUser(ctx context.Context, eventID, userID int64) ([]Bet, error) {
	return p.queryBets(ctx,
		`SELECT id,event_id,user_id,outcome,amount,placed_at FROM bets WHERE event_id=$1 AND user_id=$2 ORDER BY id`,
		eventID, userID)
}

// GetResults agrega contagem de apostas por resultado de um evento.
// Evento sem apostas retorna total 0 e mapa vazio, não é erro.
func (p *Postgres) GetResults(ctx context.Context, eventID int64) (*EventResults, error) {
	var exists bool
	if err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE id=$1)`, eventID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM bets WHERE event_id=$1 GROUP BY outcome`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := &EventResults{EventID: eventID, OutcomeCounts: map[string]int{}}
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		res.OutcomeCounts[outcome] = count
		res.TotalBets += count
	}
	return res, rows.Err()
}

func (p *Postgres) queryBets(ctx context.Context, query string, args ...any) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bets := make([]Bet, 0)
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.ID, &b.EventID, &b.UserID, &b.Outcome, &b.Amount, &b.PlacedAt); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var outcomesJSON, probsJSON string
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime,
		&outcomesJSON, &probsJSON, &e.CreatedBy, &e.Status); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(outcomesJSON), &e.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	if err := json.Unmarshal([]byte(probsJSON), &e.Probabilities); err != nil {
		return nil, fmt.Errorf("unmarshal probabilities: %w", err)
	}
	return &e, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
