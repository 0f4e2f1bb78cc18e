// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package txpool

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// WriteReport renders the pool census and the waste-basket contents as text
// tables, newest reject last. Meant for operator forensics, not machines.
func (p *TxPool) WriteReport(w io.Writer) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	census := tablewriter.NewWriter(w)
	census.SetHeader([]string{"Pending", "Staged", "Packed", "Disposed"})
	census.Append([]string{
		fmt.Sprintf("%d", p.store.statusCount(StatusPending)),
		fmt.Sprintf("%d", p.store.statusCount(StatusStaged)),
		fmt.Sprintf("%d", p.store.statusCount(StatusPacked)),
		fmt.Sprintf("%d", p.store.basket.len()),
	})
	census.Render()

	rejects := tablewriter.NewWriter(w)
	rejects.SetHeader([]string{"Id", "Sender", "Nonce", "Reason", "Info"})
	p.store.basket.each(func(it *Item) bool {
		rejects.Append([]string{
			it.id.TerminalString(),
			it.sender.Hex(),
			fmt.Sprintf("%d", it.Nonce()),
			it.reject.String(),
			it.info,
		})
		return true
	})
	rejects.Render()
}
