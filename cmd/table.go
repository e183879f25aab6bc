package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/encodeous/distvec/state"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func peerOn(attachments []state.Attachment, port state.Port) string {
	for _, at := range attachments {
		if at.Port == port {
			return string(at.Peer)
		}
	}
	return "?"
}

// writeRoutes prints a router's table, one destination per line.
func writeRoutes(w io.Writer, table state.Table, attachments []state.Attachment, now time.Time) {
	rows := make([][]string, 0, len(table))
	for _, dst := range table.Destinations() {
		entry := table[dst]
		expires := "never"
		if at, ok := entry.Expiry.At(); ok {
			left := at.Sub(now)
			if left <= 0 {
				expires = "expired"
			} else {
				expires = left.Round(time.Millisecond).String()
			}
		}
		rows = append(rows, []string{
			dst.String(),
			fmt.Sprint(entry.Port),
			peerOn(attachments, entry.Port),
			entry.Metric.String(),
			expires,
		})
	}
	t := newTable(w, []string{"DESTINATION", "PORT", "NEXT HOP", "METRIC", "EXPIRES"})
	t.AppendBulk(rows)
	t.Render()
}

// writePorts prints the port assignment of every router.
func writePorts(w io.Writer, cfg *state.NetworkCfg) {
	attachments := cfg.Attachments()
	rows := make([][]string, 0)
	for _, r := range cfg.Routers {
		for _, at := range attachments[r.Id] {
			kind := "router"
			if at.Host {
				kind = "host"
			}
			status := "up"
			if at.Down {
				status = "down"
			}
			rows = append(rows, []string{
				string(r.Id),
				fmt.Sprint(at.Port),
				string(at.Peer),
				kind,
				fmt.Sprint(at.Latency),
				status,
			})
		}
	}
	t := newTable(w, []string{"ROUTER", "PORT", "PEER", "KIND", "LATENCY", "STATE"})
	t.AppendBulk(rows)
	t.Render()
}
