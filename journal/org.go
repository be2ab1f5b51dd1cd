package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatOrderOrg renders a closed order as an Org-mode entry. The facts go in
// a PROPERTIES drawer followed by empty Thesis/Execution/Review notes.
func FormatOrderOrg(o OrderRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Order %d: %s %s (%s)\n", o.Ticket, o.Direction, o.Symbol, shortID(o.PositionID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TICKET: %d\n", o.Ticket)
	fmt.Fprintf(&b, ":POSITION_ID: %s\n", o.PositionID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", o.Symbol)
	fmt.Fprintf(&b, ":DIRECTION: %s\n", o.Direction)
	fmt.Fprintf(&b, ":VOLUME: %g\n", o.Volume)
	fmt.Fprintf(&b, ":OPEN_PRICE: %.5f\n", o.OpenPrice)
	fmt.Fprintf(&b, ":CLOSE_PRICE: %.5f\n", o.ClosePrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", o.OpenTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", o.CloseTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":GROSS_PROFIT: %.2f\n", o.GrossProfit)
	fmt.Fprintf(&b, ":NET_PROFIT: %.2f\n", o.NetProfit)
	fmt.Fprintf(&b, ":REASON: %s\n", o.Reason)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatOrdersOrg renders multiple orders separated by blank lines.
func FormatOrdersOrg(orders []OrderRecord) string {
	var b strings.Builder
	for i, o := range orders {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatOrderOrg(o))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
