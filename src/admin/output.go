package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/stake-plus/landvote/src/api/types"
	"github.com/stake-plus/landvote/src/governance"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeProposals(w io.Writer, format string, list []governance.Proposal) error {
	if format == "json" {
		return writeJSON(w, list)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tREGION\tDEADLINE\tTITLE")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Status, p.Region, p.Deadline.Format("2006-01-02 15:04"), p.Title)
	}
	return tw.Flush()
}

func writeTally(w io.Writer, format string, s governance.TallySnapshot) error {
	if format == "json" {
		return writeJSON(w, s)
	}
	_, err := fmt.Fprintf(w, "proposal %s (%s)\nfor %d  against %d  total %d  eligible %d\nsupport %.1f%%  quorum %d met=%v  outcome %s\n",
		s.ProposalID, s.Status, s.For, s.Against, s.Total, s.EligibleVoters,
		s.ForPercentage, s.Quorum, s.QuorumMet, s.Outcome)
	return err
}

func writeSettings(w io.Writer, format string, rows []types.Setting) error {
	if format == "json" {
		out := make(map[string]string, len(rows))
		for _, r := range rows {
			out[r.Name] = r.Value
		}
		return writeJSON(w, out)
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s = %s\n", r.Name, r.Value); err != nil {
			return err
		}
	}
	return nil
}
