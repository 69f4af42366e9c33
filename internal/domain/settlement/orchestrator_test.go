package settlement

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/okian/funbet/internal/adapters/repository"
	"github.com/okian/funbet/internal/domain/ledger"
	"github.com/okian/funbet/internal/domain/match"
	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/wagerbook"
	"github.com/okian/funbet/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// jobSink captures the job queued by the machine so tests can run it inline.
type jobSink struct{ jobs []model.SettlementJob }

func (s *jobSink) Enqueue(_ context.Context, job model.SettlementJob) bool {
	s.jobs = append(s.jobs, job)
	return true
}

type brokenLedger struct {
	*ledger.Ledger
}

func (b brokenLedger) Credit(context.Context, string, *big.Rat) (int64, error) {
	return 0, errors.New("ledger offline")
}

type world struct {
	ctx    context.Context
	store  *repository.MemoryStore
	ledger *ledger.Ledger
	book   *wagerbook.Book
	sink   *jobSink
	m      *match.Machine
	orch   *Orchestrator
}

func newWorld(accounts map[string]int64) *world {
	w := &world{ctx: context.Background(), store: repository.NewMemoryStore(), sink: &jobSink{}}
	w.ledger = ledger.New(w.store)
	w.book = wagerbook.New(wagerbook.WithJournal(w.store))
	w.m = match.New(w.store, w.book, w.ledger, match.WithEnqueuer(w.sink))
	w.orch = New(w.store, w.book, w.ledger, w.m)
	for id, bal := range accounts {
		_, err := w.ledger.Open(w.ctx, id, id, bal)
		So(err, ShouldBeNil)
	}

	doc := model.NewMatch()
	doc.Status = model.StatusOpen
	doc.Participants["a"] = model.Participant{Name: "Alpha"}
	doc.Participants["b"] = model.Participant{Name: "Beta"}
	_, err := w.m.Propose(w.ctx, w.m.Current(), doc, true)
	So(err, ShouldBeNil)
	return w
}

func (w *world) wager(id, key string, amount int64) {
	bal, err := w.ledger.Balance(w.ctx, id)
	So(err, ShouldBeNil)
	_, err = w.book.Place(w.ctx, id, key, float64(amount), bal)
	So(err, ShouldBeNil)
}

func (w *world) advance(to model.Status, winner string) {
	cur := w.m.Current()
	next := cur.Clone()
	next.Status = to
	next.Winner = winner
	_, err := w.m.Propose(w.ctx, cur, next, true)
	So(err, ShouldBeNil)
}

// payout closes bidding, declares winner and returns the queued job.
func (w *world) payout(winner string) model.SettlementJob {
	w.advance(model.StatusInProgress, "")
	w.advance(model.StatusPayout, winner)
	So(w.sink.jobs, ShouldHaveLength, 1)
	return w.sink.jobs[0]
}

func (w *world) balance(id string) int64 {
	b, err := w.ledger.Balance(w.ctx, id)
	So(err, ShouldBeNil)
	return b
}

func TestSettlementEndToEnd(t *testing.T) {
	Convey("Given L wagering 10 on b and W wagering 1 on a", t, func() {
		w := newWorld(map[string]int64{"L": 21, "W": 10})
		w.wager("L", "b", 10)
		w.wager("W", "a", 1)

		Convey("When a wins", func() {
			job := w.payout("a")
			So(w.m.Current().Participants["a"].Odds, ShouldEqual, "1:10")
			So(w.m.Current().Participants["b"].Odds, ShouldEqual, "10:1")

			out := w.orch.Settle(w.ctx, job)

			Convey("Then the losing pool should move to the winner", func() {
				So(out.Err, ShouldBeNil)
				So(out.Settled, ShouldBeTrue)
				So(out.Credits, ShouldEqual, 1)
				So(out.Debits, ShouldEqual, 1)
				So(w.balance("L"), ShouldEqual, 11)
				So(w.balance("W"), ShouldEqual, 20)
			})

			Convey("Then the book should be empty and the match closed", func() {
				So(w.book.Len(), ShouldEqual, 0)
				doc, err := w.store.LoadMatch(w.ctx)
				So(err, ShouldBeNil)
				So(doc.Status, ShouldEqual, model.StatusClosed)
				So(w.orch.State(), ShouldEqual, Idle)
			})

			Convey("Then the closed document should keep the round's pools", func() {
				doc, err := w.store.LoadMatch(w.ctx)
				So(err, ShouldBeNil)
				So(doc.Winner, ShouldEqual, "a")
				So(doc.Participants["a"].Amount, ShouldEqual, 1)
				So(doc.Participants["b"].Amount, ShouldEqual, 10)
				So(doc.Participants["b"].Odds, ShouldEqual, "10:1")
				So(doc.Bettors["b"], ShouldHaveLength, 1)
			})

			Convey("Then waiting on the job should see the same outcome", func() {
				got, err := job.Wait(w.ctx)
				So(err, ShouldBeNil)
				So(got.Settled, ShouldBeTrue)
				So(got.JobID, ShouldEqual, job.ID)
			})

			Convey("Then a second pass should be a no-op", func() {
				again := w.orch.Settle(w.ctx, model.NewSettlementJob("a"))
				So(again.Err, ShouldBeNil)
				So(again.Settled, ShouldBeFalse)
				So(w.balance("W"), ShouldEqual, 20)
			})
		})

		Convey("When the match is a tie", func() {
			out := w.orch.Settle(w.ctx, w.payout(model.TieKey))

			Convey("Then balances should be unchanged and the match closed", func() {
				So(out.Err, ShouldBeNil)
				So(w.balance("L"), ShouldEqual, 21)
				So(w.balance("W"), ShouldEqual, 10)
				So(w.m.Current().Status, ShouldEqual, model.StatusClosed)
				So(w.book.Len(), ShouldEqual, 0)
			})
		})

		Convey("When L's balance drifts below the stake before payout", func() {
			_, err := w.ledger.Pay(w.ctx, "L", 15)
			So(err, ShouldBeNil)
			out := w.orch.Settle(w.ctx, w.payout("a"))

			Convey("Then L's wager should be skipped while W is still paid", func() {
				So(out.Skipped, ShouldEqual, 1)
				So(w.balance("L"), ShouldEqual, 6)
				So(w.balance("W"), ShouldEqual, 20)
			})
		})

		Convey("When the ledger fails mid pass", func() {
			w.orch = New(w.store, w.book, brokenLedger{w.ledger}, w.m)
			out := w.orch.Settle(w.ctx, w.payout("a"))

			Convey("Then the match should stay in payout with the book intact", func() {
				So(errors.Is(out.Err, ErrLedger), ShouldBeTrue)
				So(out.Settled, ShouldBeFalse)
				So(w.m.Current().Status, ShouldEqual, model.StatusPayout)
				So(w.book.Len(), ShouldEqual, 2)
				So(w.orch.State(), ShouldEqual, Idle)
			})

			Convey("Then a restart should not run the pass again", func() {
				l, win := w.balance("L"), w.balance("W")
				sink := &jobSink{}
				book := wagerbook.New(wagerbook.WithJournal(w.store))
				m := match.New(w.store, book, w.ledger, match.WithEnqueuer(sink))
				So(m.Load(w.ctx), ShouldBeNil)

				So(sink.jobs, ShouldBeEmpty)
				So(m.Current().Status, ShouldEqual, model.StatusPayout)
				So(w.balance("L"), ShouldEqual, l)
				So(w.balance("W"), ShouldEqual, win)
			})
		})
	})

	Convey("Given a one-sided book", t, func() {
		w := newWorld(map[string]int64{"x": 5, "y": 7})
		w.wager("x", "a", 5)
		w.wager("y", "a", 2)
		out := w.orch.Settle(w.ctx, w.payout("a"))

		Convey("Then nobody should be paid and the match should close", func() {
			So(out.Err, ShouldBeNil)
			So(out.Credits+out.Debits, ShouldEqual, 0)
			So(w.balance("x"), ShouldEqual, 5)
			So(w.balance("y"), ShouldEqual, 7)
			So(w.m.Current().Status, ShouldEqual, model.StatusClosed)
		})
	})

	Convey("Given divisible pools and no drift", t, func() {
		w := newWorld(map[string]int64{"p": 10, "q": 10, "r": 10, "s": 10})
		w.wager("p", "a", 1)
		w.wager("q", "a", 3)
		w.wager("r", "b", 6)
		w.wager("s", "b", 2)
		out := w.orch.Settle(w.ctx, w.payout("a"))

		Convey("Then total money should be conserved", func() {
			So(out.Err, ShouldBeNil)
			total := w.balance("p") + w.balance("q") + w.balance("r") + w.balance("s")
			So(total, ShouldEqual, 40)
			So(w.balance("p"), ShouldEqual, 12)
			So(w.balance("q"), ShouldEqual, 16)
		})
	})

	Convey("Given a match that is not in payout", t, func() {
		w := newWorld(map[string]int64{"x": 5})
		out := w.orch.Settle(w.ctx, model.NewSettlementJob("a"))
		So(out.Err, ShouldBeNil)
		So(out.Settled, ShouldBeFalse)
		So(w.m.Current().Status, ShouldEqual, model.StatusOpen)
		So(Running.String(), ShouldEqual, "running")
	})
}
