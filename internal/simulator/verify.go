package simulator

import (
	"fmt"

	"github.com/okian/funbet/internal/domain/model"
	"github.com/okian/funbet/internal/domain/odds"
)

// forecast predicts every account's balance after settlement from the
// standing wagers and the balances read at close.
func forecast(winner string, pools map[string]int64, plan []plannedWager, balances map[string]int64) (map[string]int64, error) {
	wagers := make([]model.Wager, 0, len(plan))
	var total int64
	for _, p := range plan {
		if p.standing == 0 {
			continue
		}
		wagers = append(wagers, model.Wager{AccountID: p.accountID, ParticipantKey: p.key, Amount: p.standing})
		total += p.standing
	}
	var pooled int64
	for _, v := range pools {
		pooled += v
	}
	if pooled != total {
		return nil, fmt.Errorf("%w: pools hold %d but %d was wagered", ErrVerification, pooled, total)
	}

	out := make(map[string]int64, len(balances))
	for id, b := range balances {
		out[id] = b
	}
	for _, d := range odds.ComputePayout(winner, pools, wagers, balances).Deltas {
		switch d.Kind {
		case odds.Credit:
			out[d.AccountID] += d.Amount
		case odds.Debit:
			out[d.AccountID] -= d.Amount
		}
	}
	return out, nil
}
