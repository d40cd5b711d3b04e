package balances

import (
	"github.com/shopspring/decimal"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/accounting/coa"
)

// GroupTotal is a group's aggregated balance with its subtree.
type GroupTotal struct {
	Group    accounting.LedgerGroup `json:"group"`
	Balance  decimal.Decimal        `json:"balance"`
	Amount   decimal.Decimal        `json:"amount"`
	Side     accounting.Side        `json:"side"`
	Children []GroupTotal           `json:"children"`
	Ledgers  []LedgerBalance        `json:"ledgers"`
}

// Raw returns the debit-positive balance of the group.
func (g GroupTotal) Raw() decimal.Decimal { return Raw(g.Group.Nature, g.Balance) }

// RollUp totals every group post-order: a group is the sum of its subgroups and
// direct ledgers. Ledgers without a balance entry count as zero.
func RollUp(chart Chart, bals []LedgerBalance) []GroupTotal {
	byLedger := Index(bals)
	var build func(n coa.GroupNode) GroupTotal
	build = func(n coa.GroupNode) GroupTotal {
		t := GroupTotal{Group: n.Group, Children: []GroupTotal{}, Ledgers: []LedgerBalance{}}
		raw := decimal.Zero
		for _, child := range n.Children {
			ct := build(child)
			raw = raw.Add(ct.Raw())
			t.Children = append(t.Children, ct)
		}
		for _, l := range n.Ledgers {
			b, ok := byLedger[l.ID]
			if !ok {
				continue
			}
			raw = raw.Add(b.Raw())
			t.Ledgers = append(t.Ledgers, b)
		}
		t.Balance = FromRaw(n.Group.Nature, raw)
		t.Amount, t.Side = Display(n.Group.Nature, t.Balance)
		return t
	}
	roots := chart.Tree()
	out := make([]GroupTotal, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

// Prune returns a copy without groups whose balance is below the tolerance and
// which have no subgroups. The input is left untouched.
func Prune(nodes []GroupTotal) []GroupTotal {
	out := make([]GroupTotal, 0, len(nodes))
	for _, n := range nodes {
		if n.Balance.Abs().LessThan(accounting.Tolerance) && len(n.Children) == 0 {
			continue
		}
		c := n
		c.Children = Prune(n.Children)
		c.Ledgers = append([]LedgerBalance{}, n.Ledgers...)
		out = append(out, c)
	}
	return out
}

// Find returns the total of the named group anywhere in the forest.
func Find(nodes []GroupTotal, name string) (GroupTotal, bool) {
	for _, n := range nodes {
		if n.Group.Name == name {
			return n, true
		}
		if found, ok := Find(n.Children, name); ok {
			return found, true
		}
	}
	return GroupTotal{}, false
}
