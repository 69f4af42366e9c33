package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/pkg/logger"
)

// plannedWager is one account's sequence of placements; the last one stands.
type plannedWager struct {
	accountID string
	balance   int64
	key       string
	amounts   []int64
	standing  int64 // last accepted amount, zero when nothing was accepted
}

// Run plays one round: open accounts, open bidding, wager concurrently,
// close bidding, pay out, wait for settlement and verify balances.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	start := time.Now()
	log := logger.Named("simulator")
	c := newClient(cfg.BaseURL, cfg.Timeout)
	rep := Report{RoundID: uuid.NewString()}

	if err := c.expect(ctx, http.StatusOK, http.MethodGet, "/healthz", "", false, nil, nil); err != nil {
		return rep, fmt.Errorf("service health check failed: %w", err)
	}
	doc, err := c.match(ctx)
	if err != nil {
		return rep, err
	}
	if doc.Status != model.StatusClosed {
		return rep, fmt.Errorf("%w: status is %s", ErrMatchBusy, doc.Status)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	plan := makePlan(rng, cfg, rep.RoundID)
	log.Info(ctx, "round planned",
		logger.String("round_id", rep.RoundID),
		logger.Int("accounts", len(plan)),
		logger.Int64("seed", int64(seed)))

	if err := openAccounts(ctx, c, cfg.AdminID, plan); err != nil {
		return rep, err
	}

	next := model.NewMatch()
	next.Status = model.StatusOpen
	for _, k := range cfg.Participants {
		next.Participants[k] = model.Participant{Name: k}
	}
	if _, err := c.propose(ctx, cfg.AdminID, next); err != nil {
		return rep, fmt.Errorf("open bidding: %w", err)
	}

	placeWagers(ctx, c, cfg, plan, &rep, log)

	doc, err = c.match(ctx)
	if err != nil {
		return rep, err
	}
	doc.Status = model.StatusInProgress
	if doc, err = c.propose(ctx, cfg.AdminID, doc); err != nil {
		return rep, fmt.Errorf("close bidding: %w", err)
	}
	rep.Pools = make(map[string]int64, len(doc.Participants))
	rep.Odds = make(map[string]string, len(doc.Participants))
	for k, p := range doc.Participants {
		rep.Pools[k] = p.Amount
		rep.Odds[k] = p.Odds
	}

	before := make(map[string]int64, len(plan))
	for _, p := range plan {
		b, err := c.balance(ctx, cfg.AdminID, p.accountID)
		if err != nil {
			return rep, err
		}
		before[p.accountID] = b
		rep.TotalBefore += b
	}

	rep.Winner = cfg.Winner
	if rep.Winner == "" {
		rep.Winner = cfg.Participants[rng.IntN(len(cfg.Participants))]
	}
	expected, err := forecast(rep.Winner, rep.Pools, plan, before)
	if err != nil {
		return rep, err
	}

	doc.Status = model.StatusPayout
	doc.Winner = rep.Winner
	payoutAt := time.Now()
	if _, err := c.propose(ctx, cfg.AdminID, doc); err != nil {
		return rep, fmt.Errorf("start payout: %w", err)
	}
	if err := waitClosed(ctx, c, cfg.PollInterval); err != nil {
		return rep, err
	}
	rep.SettlementDelay = time.Since(payoutAt)

	for _, p := range plan {
		got, err := c.balance(ctx, cfg.AdminID, p.accountID)
		if err != nil {
			return rep, err
		}
		rep.TotalAfter += got
		if got != expected[p.accountID] {
			rep.Mismatches = append(rep.Mismatches, Mismatch{AccountID: p.accountID, Expected: expected[p.accountID], Actual: got})
		}
	}
	rep.Duration = time.Since(start)

	log.Info(ctx, "round settled",
		logger.String("round_id", rep.RoundID),
		logger.String("winner", rep.Winner),
		logger.Int("placed", rep.WagersPlaced),
		logger.Int("amended", rep.WagersAmended),
		logger.Int("rejected", rep.WagersRejected),
		logger.Int64("total_before", rep.TotalBefore),
		logger.Int64("total_after", rep.TotalAfter),
		logger.Any("settlement_delay", rep.SettlementDelay.String()))

	if len(rep.Mismatches) > 0 {
		return rep, fmt.Errorf("%w: %d accounts settled differently than forecast", ErrVerification, len(rep.Mismatches))
	}
	return rep, nil
}

func makePlan(rng *rand.Rand, cfg Config, roundID string) []plannedWager {
	plan := make([]plannedWager, cfg.Accounts)
	for i := range plan {
		balance := cfg.StartingBalance + rng.Int64N(cfg.StartingBalance+1)
		p := plannedWager{
			accountID: fmt.Sprintf("sim-%s-%03d", roundID[:8], i),
			balance:   balance,
			key:       cfg.Participants[rng.IntN(len(cfg.Participants))],
		}
		if rng.Float64() < cfg.AmendRate {
			p.amounts = append(p.amounts, 1+rng.Int64N(balance))
		}
		p.amounts = append(p.amounts, 1+rng.Int64N(balance))
		plan[i] = p
	}
	return plan
}

func openAccounts(ctx context.Context, c *client, admin string, plan []plannedWager) error {
	for _, p := range plan {
		body := map[string]any{"id": p.accountID, "display_name": p.accountID, "balance": p.balance}
		if err := c.expect(ctx, http.StatusCreated, http.MethodPost, "/accounts", admin, true, body, nil); err != nil {
			return fmt.Errorf("open account %s: %w", p.accountID, err)
		}
	}
	return nil
}

// placeWagers submits each account's sequence on a pool of workers. An
// account's placements stay in order on one worker.
func placeWagers(ctx context.Context, c *client, cfg Config, plan []plannedWager, rep *Report, log logger.Logger) {
	var placed, amended, rejected int64
	work := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				p := &plan[idx]
				for n, amount := range p.amounts {
					body := map[string]any{"participant": p.key, "amount": amount}
					status, code, err := c.do(ctx, http.MethodPost, "/wagers", p.accountID, false, body, nil)
					if err != nil || status != http.StatusCreated {
						atomic.AddInt64(&rejected, 1)
						log.Warn(ctx, "wager rejected",
							logger.String("account_id", p.accountID),
							logger.Int("status", status),
							logger.String("code", code))
						continue
					}
					p.standing = amount
					if n > 0 {
						atomic.AddInt64(&amended, 1)
					} else {
						atomic.AddInt64(&placed, 1)
					}
					if cfg.Verbose {
						log.Debug(ctx, "wager placed",
							logger.String("account_id", p.accountID),
							logger.String("participant", p.key),
							logger.Int64("amount", amount))
					}
				}
			}
		}()
	}

feed:
	for i := range plan {
		select {
		case <-ctx.Done():
			break feed
		case work <- i:
		}
	}
	close(work)
	wg.Wait()

	rep.WagersPlaced = int(placed)
	rep.WagersAmended = int(amended)
	rep.WagersRejected = int(rejected)
}

// waitClosed polls the match until settlement has closed it.
func waitClosed(ctx context.Context, c *client, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		doc, err := c.match(ctx)
		if err != nil {
			return err
		}
		if doc.Status == model.StatusClosed {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for settlement: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
