package vouchers

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
)

// Reverse returns a draft voucher undoing v: every entry moves to the opposite side.
// Committed vouchers are never edited; corrections are posted this way.
func Reverse(v accounting.Voucher, date time.Time) accounting.Voucher {
	out := v.Clone()
	out.ID = uuid.Nil
	out.Number = ""
	out.CreatedBy = uuid.Nil
	out.Date = accounting.TruncateDate(date)
	out.Narration = fmt.Sprintf("Reversal of %s", v.Number)
	id := v.ID
	out.ReversalOf = &id
	for i := range out.Entries {
		out.Entries[i].Side = out.Entries[i].Side.Opposite()
	}
	return out
}
