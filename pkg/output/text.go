package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dubhe-dev/dubhe/pkg/models"
)

// errWriter keeps the first write error so the renderer can write freely.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func writeText(w io.Writer, r *models.Report) error {
	ew := &errWriter{w: w}

	ew.printf("Dubhe analysis %s (%s)\n", r.RunInfo.RunID, r.RunInfo.ToolVersion)
	if r.RunInfo.Source != "" {
		ew.printf("Diagram: %s\n", r.RunInfo.Source)
	}
	ew.printf("Elements: %d, dropped edges: %d, threat patterns: %d\n",
		r.RunInfo.ElementCount, r.RunInfo.DroppedEdges, r.RunInfo.PatternsLoaded)

	ew.printf("\nSanitizer placement\n")
	if r.AlreadyProtected {
		ew.printf("  The diagram already contains a DataSanitizer; no placement is recommended.\n")
	} else {
		placement(ew, "Protect data stores", r.ProtectStores)
		placement(ew, "Protect entry point", r.ProtectEntry)
		placement(ew, "Protect whole system", r.ProtectWhole)
	}

	if len(r.LongestPath) > 0 {
		names := make([]string, len(r.LongestPath))
		for i, e := range r.LongestPath {
			names[i] = e.Name
		}
		ew.printf("  Longest path (%d): %s\n", len(names), strings.Join(names, " -> "))
	}
	if r.CPP.Aggregate != nil {
		ew.printf("  Corruption propagation potential: %.2f over %d paths\n", *r.CPP.Aggregate, len(r.CPP.Paths))
	}

	detections(ew, "", r.DetectedThreats)
	detections(ew, "potentially mitigated ", r.PotentiallyMitigatedThreats)
	detections(ew, "mitigated ", r.ConfirmedMitigatedThreats)

	ew.printf("\nCritical element risk index\n")
	if len(r.RiskIndex) == 0 {
		ew.printf("  No critical elements.\n")
		return ew.err
	}
	if ew.err != nil {
		return ew.err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	tew := &errWriter{w: tw}
	tew.printf("  TYPE\tNAME\tWORST\tBEST\tHITS\t\n")
	for _, e := range r.RiskIndex {
		flag := ""
		if e.Flagged {
			flag = "!"
		}
		tew.printf("  %s\t%s\t%.2f\t%.2f\t%d\t%s\n", e.UMLType, e.Name, e.Worst, e.Best, e.Stats.Hits, flag)
	}
	if tew.err != nil {
		return tew.err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.RiskAverage != nil {
		ew.printf("  Average: worst %.2f, best %.2f\n", r.RiskAverage.Worst, r.RiskAverage.Best)
	}
	return ew.err
}

func placement(ew *errWriter, label string, points []models.PlacementPoint) {
	if len(points) != 2 {
		ew.printf("  %s: not applicable\n", label)
		return
	}
	ew.printf("  %s: between %s and %s\n", label, describe(points[0]), describe(points[1]))
}

func describe(p models.PlacementPoint) string {
	s := fmt.Sprintf("%s %q", p.UMLType, p.Name)
	if p.Parent != "" {
		s += " in " + p.Parent
	}
	return s
}

func detections(ew *errWriter, qualifier string, ds []models.Detection) {
	for _, d := range ds {
		ew.printf("\nYour design may be susceptible to the following %s%s threats:\n", qualifier, d.Classification.Title())
		ew.printf("  Threat Name: %s\n  MITRE ATT&CK Reference: %s\n", d.Threat.Technique, d.Threat.TechniqueID)
		if d.Threat.Mitigation != "" {
			ew.printf("  We recommend you review the mitigations associated with the MITRE ATT&CK listing to harden your system.\n")
			ew.printf("    (E.g., %s, reference number: %s)\n", d.Threat.Mitigation, d.Threat.MitigationID)
		}
	}
}
