package simulator

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// ShowHelp writes usage for the simulate command.
func ShowHelp(w io.Writer) {
	_, _ = fmt.Fprint(w, `funbet round simulator

Plays one full round against a running server: opens accounts, opens
bidding, submits wagers concurrently, closes bidding, pays out and checks
every settled balance against a local forecast.

The match must be closed when the simulator starts.

Usage:
  simulate [flags]

Flags:
  -url string        Base URL of the service (default "http://localhost:9080")
  -admin string      Account id sent with the admin header (default "sim-admin")
  -accounts int      Accounts to open (default 50)
  -balance int       Minimum starting balance (default 20)
  -workers int       Concurrent wager submitters (default 8)
  -amend float       Share of accounts that amend once (default 0.3)
  -participants str  Comma separated roster keys (default "home,away")
  -winner string     Winner key or "tie" (default random participant)
  -seed uint         Plan seed (default time based)
  -timeout duration  HTTP request timeout (default 10s)
  -verbose           Log every wager
  -help              Show this help
`)
}

// PrintReport writes a human readable summary of rep.
func PrintReport(w io.Writer, rep Report) {
	keys := make([]string, 0, len(rep.Pools))
	for k := range rep.Pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "round %s winner=%s\n", rep.RoundID, rep.Winner)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-12s pool=%-8d odds=%s\n", k, rep.Pools[k], rep.Odds[k])
	}
	fmt.Fprintf(&b, "wagers placed=%d amended=%d rejected=%d\n", rep.WagersPlaced, rep.WagersAmended, rep.WagersRejected)
	fmt.Fprintf(&b, "balances before=%d after=%d\n", rep.TotalBefore, rep.TotalAfter)
	fmt.Fprintf(&b, "settled in %s, round took %s\n", rep.SettlementDelay, rep.Duration)
	for _, m := range rep.Mismatches {
		fmt.Fprintf(&b, "  MISMATCH %s expected=%d actual=%d\n", m.AccountID, m.Expected, m.Actual)
	}
	_, _ = io.WriteString(w, b.String())
}
