package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/tiiuae/rmacs/internal/api"
	"github.com/tiiuae/rmacs/internal/radio"
)

const (
	formatJSON  = "json"
	formatTable = "table"
	valueNA     = "N/A"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatLedger renders the channel-quality ledger in the requested format.
func formatLedger(entries []api.LedgerEntry, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal ledger to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatLedgerTable(entries), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatStatus renders node status in the requested format.
func formatStatus(status api.StatusResponse, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal status to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatStatusTable(status), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatLedgerTable(entries []api.LedgerEntry) string {
	sorted := make([]api.LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Freq < sorted[j].Freq })

	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FREQ\tCHANNEL\tNODES\tAVG-QUALITY")

	for _, e := range sorted {
		channel := valueNA
		if ch, ok := radio.ChannelForFrequency(e.Freq); ok {
			channel = fmt.Sprintf("%d", ch)
		}

		avg := valueNA
		if e.AverageQuality != nil {
			avg = fmt.Sprintf("%.2f", *e.AverageQuality)
		}

		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", e.Freq, channel, len(e.Nodes), avg)
	}

	_ = w.Flush()
	return buf.String()
}

func formatStatusTable(s api.StatusResponse) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Client State:\t%s\n", s.ClientState)
	fmt.Fprintf(w, "Operating Frequency:\t%d\n", s.OperatingFreq)
	fmt.Fprintf(w, "Orchestrator Running:\t%t\n", s.OrchestratorRun)
	if s.OrchestratorRun {
		fmt.Fprintf(w, "Server State:\t%s\n", s.ServerState)
	}
	fmt.Fprintf(w, "Dedup Set Size:\t%d\n", s.DedupSetSize)

	_ = w.Flush()
	return buf.String()
}
