// Package console renders persisted messages for terminal tools.
package console

import (
	"anonchat/domain"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// RenderHistory writes messages as a borderless table, one row per message.
func RenderHistory(out io.Writer, messages []domain.StoredMessage) {
	if len(messages) == 0 {
		_, _ = fmt.Fprintln(out, "no message yet")
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Sender", "Text"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, msg := range messages {
		table.Append([]string{strconv.FormatInt(int64(msg.ID), 10), msg.Sender, msg.Text})
	}
	table.Render()
}
