// Package lobby hosts many concurrent tables. Each table owns one game.Game
// behind its own mutex; every mutation of a table happens under that lock.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockmarket/internal/game"
	"stockmarket/internal/store"
)

type Options struct {
	Rules       game.Rules
	Archive     store.Archive
	Broadcaster Broadcaster
	Journal     Journal
	Logger      *slog.Logger
	Now         func() time.Time
	// NewRand seeds each new table. Defaults to a wall-clock seed.
	NewRand func() game.Rand
}

type Service struct {
	rules   game.Rules
	archive store.Archive
	bcast   Broadcaster
	journal Journal
	log     *slog.Logger
	now     func() time.Time
	newRand func() game.Rand

	mu     sync.RWMutex
	tables map[string]*table
}

type table struct {
	mu sync.Mutex
	// deliverMu is taken before mu is released so a table's events leave in
	// the order their mutations happened.
	deliverMu sync.Mutex

	id      string
	g       *game.Game
	host    string
	status  Status
	created time.Time
	touched time.Time
	final   *Final
	version uint64
}

// pending collects side effects produced under a table lock so they can be
// delivered once the lock is released.
type pending struct {
	events []Event
	result *store.Result
}

func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRand == nil {
		opts.NewRand = game.NewTimeRand
	}
	if opts.Archive == nil {
		opts.Archive = store.NewMemory()
	}
	return &Service{
		rules:   opts.Rules.WithDefaults(),
		archive: opts.Archive,
		bcast:   opts.Broadcaster,
		journal: opts.Journal,
		log:     opts.Logger,
		now:     opts.Now,
		newRand: opts.NewRand,
		tables:  make(map[string]*table),
	}
}

// SetBroadcaster swaps the event sink. The API server installs its hub here
// after both are constructed.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	s.bcast = b
	s.mu.Unlock()
}

func (s *Service) CreateGame(_ context.Context) (Lobby, error) {
	now := s.now()
	t := &table{
		id:      uuid.NewString(),
		status:  StatusLobby,
		created: now,
		touched: now,
		g: game.New(game.Options{
			Rules: s.rules,
			Rand:  s.newRand(),
			Now:   s.now,
		}),
	}
	s.mu.Lock()
	s.tables[t.id] = t
	s.mu.Unlock()

	s.log.Info("game created", "game_id", t.id)
	return t.lobby(), nil
}

// Join seats name at the table. The first player to join becomes host.
// Joining twice returns the existing seat.
func (s *Service) Join(ctx context.Context, id, name string) (Seat, error) {
	name = strings.TrimSpace(name)
	var seat Seat
	err := s.withTable(ctx, id, func(t *table, p *pending) error {
		if t.status == StatusFinished {
			return ErrGameOver
		}
		added, err := t.g.AddPlayer(name)
		if err != nil {
			return err
		}
		if t.host == "" {
			t.host = name
		}
		seat = Seat{GameID: t.id, Player: name, Host: t.host == name, Added: added}
		if added {
			p.add(s.event(t, EventActivity, name, "joined the game"))
		}
		ev := s.event(t, EventLobby, "", "")
		ev.Payload = t.lobby()
		p.add(ev)
		return nil
	})
	return seat, err
}

// Start applies the host's difficulty and target and opens trading. Zero
// values keep the rules defaults.
func (s *Service) Start(ctx context.Context, id, actor string, difficulty int, target int64) (State, error) {
	var st State
	err := s.withTable(ctx, id, func(t *table, p *pending) error {
		if err := t.requireHost(actor); err != nil {
			return err
		}
		if t.status != StatusLobby {
			return ErrAlreadyStarted
		}
		if difficulty <= 0 {
			difficulty = s.rules.DefaultDifficulty
		}
		if target <= 0 {
			target = s.rules.DefaultTarget
		}
		if err := t.g.Configure(difficulty, target); err != nil {
			return err
		}
		t.status = StatusPlaying
		p.add(s.event(t, EventStarted, actor, fmt.Sprintf("difficulty %d, target £%d", difficulty, target)))
		p.add(s.update(t))
		st = t.state()
		return nil
	})
	return st, err
}

func (s *Service) Buy(ctx context.Context, id, actor, symbol string, qty int64) (TradeOutcome, error) {
	return s.trade(ctx, id, actor, symbol, qty, true)
}

func (s *Service) Sell(ctx context.Context, id, actor, symbol string, qty int64) (TradeOutcome, error) {
	return s.trade(ctx, id, actor, symbol, qty, false)
}

// trade runs one buy or sell for the current player and then rolls for a
// newsflash whether or not the trade went through.
func (s *Service) trade(ctx context.Context, id, actor, symbol string, qty int64, buy bool) (TradeOutcome, error) {
	c, err := game.ParseCommodity(symbol)
	if err != nil {
		return TradeOutcome{}, err
	}
	var out TradeOutcome
	err = s.withTable(ctx, id, func(t *table, p *pending) error {
		if err := t.requireTurn(actor); err != nil {
			return err
		}
		var tradeErr error
		verb := "sold"
		if buy {
			verb = "bought"
			out.Receipt, tradeErr = t.g.Buy(actor, c, qty)
		} else {
			out.Receipt, tradeErr = t.g.Sell(actor, c, qty)
		}
		out.Flash = t.g.GenerateFlashNews()

		if tradeErr == nil {
			p.add(s.event(t, EventActivity, actor, fmt.Sprintf("%s %d %s shares", verb, qty, c)))
		}
		p.add(s.update(t))
		if len(out.Flash) > 0 {
			ev := s.event(t, EventFlashNews, actor, "")
			ev.Lines = out.Flash
			p.add(ev)
		}
		return tradeErr
	})
	return out, err
}

// Repay pays down the actor's loan. Any seated player may repay at any time
// during play. amount <= 0 repays as much as the balance allows.
func (s *Service) Repay(ctx context.Context, id, actor string, amount int64) (game.Receipt, error) {
	var out game.Receipt
	err := s.withTable(ctx, id, func(t *table, p *pending) error {
		if err := t.requirePlaying(); err != nil {
			return err
		}
		if err := t.requireSeated(actor); err != nil {
			return err
		}
		var err error
		out, err = t.g.RepayLoan(actor, amount)
		if err != nil {
			return err
		}
		msg := "repaid entire loan"
		if amount > 0 {
			msg = fmt.Sprintf("repaid £%d loan", out.Repaid)
		}
		p.add(s.event(t, EventActivity, actor, msg))
		p.add(s.update(t))
		return nil
	})
	return out, err
}

// EndTurn passes play on. The table finishes when someone reaches the
// target, everyone is bankrupt, or a multi-player game is down to one
// solvent player.
func (s *Service) EndTurn(ctx context.Context, id, actor string) (TurnOutcome, error) {
	var out TurnOutcome
	err := s.withTable(ctx, id, func(t *table, p *pending) error {
		if err := t.requireTurn(actor); err != nil {
			return err
		}
		res := t.g.EndTurn()
		out.TurnResult = res

		p.add(s.event(t, EventActivity, actor, "ended their turn"))
		p.add(s.update(t))
		// Round news and liquidation lines alike; a bankruptcy can land mid-round.
		if len(res.News) > 0 {
			ev := s.event(t, EventNews, "", "")
			ev.Lines = res.News
			p.add(ev)
			for _, line := range res.News {
				p.add(s.event(t, EventActivity, "", line))
			}
		}

		switch {
		case res.AllBankrupt:
			out.Final = s.finish(t, p, store.ReasonAllBankrupt, res.Winners, false)
		case len(res.Winners) > 0:
			for _, name := range t.g.CheckMillionaires() {
				p.add(s.event(t, EventMillionaire, name, name+" is a millionaire"))
			}
			out.Final = s.finish(t, p, store.ReasonWinners, res.Winners, false)
		case len(t.g.Players()) > 1:
			if name, ok := t.g.CheckLastPlayerStanding(); ok {
				out.Final = s.finish(t, p, store.ReasonLastStanding, []string{name}, false)
			}
		}
		if out.Final == nil && res.Phase == game.PhaseGameOver {
			out.Final = s.finish(t, p, store.ReasonAllBankrupt, res.Winners, false)
		}
		return nil
	})
	return out, err
}

// EndEarly stops the game at the host's request and publishes final scores
// with no winners.
func (s *Service) EndEarly(ctx context.Context, id, actor string) (Final, error) {
	var out Final
	err := s.withTable(ctx, id, func(t *table, p *pending) error {
		if err := t.requireHost(actor); err != nil {
			return err
		}
		if err := t.requirePlaying(); err != nil {
			return err
		}
		out = *s.finish(t, p, store.ReasonEndedEarly, nil, true)
		return nil
	})
	return out, err
}

// Reset clears the table for another game. The next player to join becomes host.
func (s *Service) Reset(ctx context.Context, id, actor string) error {
	return s.withTable(ctx, id, func(t *table, p *pending) error {
		if err := t.requireHost(actor); err != nil {
			return err
		}
		t.g.Reset()
		t.host = ""
		t.status = StatusLobby
		t.final = nil
		p.add(s.event(t, EventReset, actor, ""))
		return nil
	})
}

func (s *Service) State(ctx context.Context, id string) (State, error) {
	var st State
	err := s.withTable(ctx, id, func(t *table, _ *pending) error {
		st = t.state()
		return nil
	})
	return st, err
}

func (s *Service) Lobby(ctx context.Context, id string) (Lobby, error) {
	var l Lobby
	err := s.withTable(ctx, id, func(t *table, _ *pending) error {
		l = t.lobby()
		return nil
	})
	return l, err
}

// Scores ranks the table as it stands. A finished table returns its final scores.
func (s *Service) Scores(ctx context.Context, id string) ([]game.ScoreRow, error) {
	var rows []game.ScoreRow
	err := s.withTable(ctx, id, func(t *table, _ *pending) error {
		if t.final != nil {
			rows = t.final.Scores
			return nil
		}
		if len(t.g.Players()) == 0 {
			return ErrNoPlayers
		}
		rows = t.g.FinalScores()
		return nil
	})
	return rows, err
}

// ListGames returns every table, newest first.
func (s *Service) ListGames(_ context.Context) []Lobby {
	s.mu.RLock()
	tables := make([]*table, 0, len(s.tables))
	for _, t := range s.tables {
		tables = append(tables, t)
	}
	s.mu.RUnlock()

	type entry struct {
		l       Lobby
		created time.Time
	}
	entries := make([]entry, 0, len(tables))
	for _, t := range tables {
		t.mu.Lock()
		entries = append(entries, entry{l: t.lobby(), created: t.created})
		t.mu.Unlock()
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].created.After(entries[j].created) })
	out := make([]Lobby, len(entries))
	for i, e := range entries {
		out[i] = e.l
	}
	return out
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]store.LeaderRow, error) {
	return s.archive.Leaderboard(ctx, limit)
}

// Reap drops tables untouched for longer than idle and reports how many went.
func (s *Service) Reap(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.RLock()
	var stale []string
	for id, t := range s.tables {
		t.mu.Lock()
		if t.touched.Before(cutoff) {
			stale = append(stale, id)
		}
		t.mu.Unlock()
	}
	s.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}
	n := 0
	s.mu.Lock()
	for _, id := range stale {
		t, ok := s.tables[id]
		if !ok {
			continue
		}
		t.mu.Lock()
		idle := t.touched.Before(cutoff)
		t.mu.Unlock()
		if idle {
			delete(s.tables, id)
			n++
		}
	}
	s.mu.Unlock()
	if n > 0 {
		s.log.Info("idle games reaped", "count", n)
	}
	return n
}

// withTable runs fn under the table lock, then delivers whatever fn queued.
func (s *Service) withTable(ctx context.Context, id string, fn func(t *table, p *pending) error) error {
	s.mu.RLock()
	t, ok := s.tables[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}

	var p pending
	t.mu.Lock()
	err := fn(t, &p)
	t.touched = s.now()
	t.deliverMu.Lock()
	t.mu.Unlock()

	s.deliver(ctx, p)
	t.deliverMu.Unlock()
	return err
}

func (s *Service) deliver(ctx context.Context, p pending) {
	s.mu.RLock()
	b := s.bcast
	s.mu.RUnlock()
	for _, ev := range p.events {
		if b != nil {
			b.Publish(ev)
		}
		if s.journal != nil {
			if err := s.journal.Append(ev); err != nil {
				s.log.Error("journal append failed", "game_id", ev.GameID, "type", ev.Type, "err", err)
			}
		}
	}
	if p.result == nil {
		return
	}
	if err := s.archive.Record(ctx, *p.result); err != nil && !errors.Is(err, store.ErrDuplicateResult) {
		s.log.Error("archive result failed", "game_id", p.result.GameID, "err", err)
	}
}

// finish marks the table finished and queues the game_over event and the
// archive write.
func (s *Service) finish(t *table, p *pending, reason string, winners []string, early bool) *Final {
	f := &Final{
		Reason:     reason,
		Winners:    winners,
		Scores:     t.g.FinalScores(),
		EndedEarly: early,
	}
	if f.Winners == nil {
		f.Winners = []string{}
	}
	t.final = f
	t.status = StatusFinished

	ev := s.event(t, EventGameOver, "", "")
	ev.Lines = f.Winners
	ev.Payload = f
	p.add(ev)
	p.result = &store.Result{
		GameID:     t.id,
		FinishedAt: s.now(),
		Rounds:     t.g.Round(),
		Difficulty: t.g.Difficulty(),
		Target:     t.g.Target(),
		Reason:     reason,
		Winners:    f.Winners,
		Scores:     f.Scores,
	}
	s.log.Info("game finished", "game_id", t.id, "reason", reason, "round", t.g.Round())
	return f
}

func (s *Service) event(t *table, typ, actor, msg string) Event {
	return Event{Type: typ, GameID: t.id, Actor: actor, Message: msg, At: s.now()}
}

func (s *Service) update(t *table) Event {
	t.version++
	ev := s.event(t, EventUpdate, "", "")
	ev.Payload = t.state()
	return ev
}

func (p *pending) add(ev Event) { p.events = append(p.events, ev) }

func (t *table) lobby() Lobby {
	return Lobby{GameID: t.id, Host: t.host, Players: t.g.Players(), Status: t.status}
}

func (t *table) state() State {
	snap := t.g.Snapshot()
	return State{
		GameID:  t.id,
		Host:    t.host,
		Status:  t.status,
		Round:   snap.Round + 1,
		Turn:    snap.Turn + 1,
		Game:    snap,
		Final:   t.final,
		Version: t.version,
	}
}

func (t *table) requireSeated(actor string) error {
	if _, err := t.g.Player(actor); err != nil {
		return fmt.Errorf("%w: %s", ErrNotSeated, actor)
	}
	return nil
}

func (t *table) requireHost(actor string) error {
	if err := t.requireSeated(actor); err != nil {
		return err
	}
	if t.host != actor {
		return ErrUnauthorized
	}
	return nil
}

func (t *table) requirePlaying() error {
	switch t.status {
	case StatusLobby:
		return ErrNotStarted
	case StatusFinished:
		return ErrGameOver
	}
	return nil
}

func (t *table) requireTurn(actor string) error {
	if err := t.requirePlaying(); err != nil {
		return err
	}
	if err := t.requireSeated(actor); err != nil {
		return err
	}
	if cur, _ := t.g.CurrentPlayer(); cur != actor {
		return fmt.Errorf("%w: %s is playing", ErrNotYourTurn, cur)
	}
	return nil
}
