// Package odds computes parimutuel odds and settlement deltas with exact
// rational arithmetic.
package odds

import (
	"math/big"
	"sort"

	"github.com/okian/funbet/internal/domain/model"
)

// Unpriced is rendered for every participant when fewer than two pools are non-zero.
const Unpriced = "0:0"

// ComputeOdds maps every pool key to the reduced ratio "pool:(total-pool)".
func ComputeOdds(pools map[string]int64) map[string]string {
	out := make(map[string]string, len(pools))

	var total int64
	nonZero := 0
	for _, p := range pools {
		if p > 0 {
			nonZero++
		}
		total += p
	}
	if nonZero < 2 {
		for k := range pools {
			out[k] = Unpriced
		}
		return out
	}

	for k, p := range pools {
		// rest > 0 is guaranteed since at least one other pool is non-zero.
		r := big.NewRat(p, total-p)
		out[k] = r.Num().String() + ":" + r.Denom().String()
	}
	return out
}

// Kind distinguishes credit from debit deltas.
type Kind int

const (
	Credit Kind = iota
	Debit
)

func (k Kind) String() string {
	if k == Credit {
		return "credit"
	}
	return "debit"
}

// Delta is one ledger mutation produced by a payout.
type Delta struct {
	AccountID string
	Kind      Kind
	Amount    int64
}

// Payout is the result of ComputePayout.
type Payout struct {
	Deltas  []Delta
	Skipped []model.Wager // wagers whose live balance drifted below the stake
}

// ComputePayout redistributes the losing pools to the winning side.
// A tie, an empty winning pool or an empty losing pool produce no deltas.
// Wagers whose account balance is now below the stake are skipped. Winner
// credits are rounded up to whole units. Deltas are ordered by account id.
func ComputePayout(winner string, pools map[string]int64, wagers []model.Wager, balances map[string]int64) Payout {
	if winner == model.TieKey {
		return Payout{}
	}
	winnerPool := pools[winner]
	var loserPool int64
	for k, p := range pools {
		if k != winner {
			loserPool += p
		}
	}
	if winnerPool == 0 || loserPool == 0 {
		return Payout{}
	}

	ratio := big.NewRat(loserPool, winnerPool)

	sorted := make([]model.Wager, len(wagers))
	copy(sorted, wagers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AccountID < sorted[j].AccountID })

	var out Payout
	for _, w := range sorted {
		if balances[w.AccountID] < w.Amount {
			out.Skipped = append(out.Skipped, w)
			continue
		}
		if w.ParticipantKey == winner {
			win := new(big.Rat).Mul(big.NewRat(w.Amount, 1), ratio)
			out.Deltas = append(out.Deltas, Delta{AccountID: w.AccountID, Kind: Credit, Amount: Ceil(win)})
			continue
		}
		out.Deltas = append(out.Deltas, Delta{AccountID: w.AccountID, Kind: Debit, Amount: w.Amount})
	}
	return out
}

// Ceil rounds r toward positive infinity.
func Ceil(r *big.Rat) int64 {
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}
