package corruption

import "github.com/dubhe-dev/dubhe/pkg/models"

// CPP computes the Corruption Propagation Potential of every path: its
// length less the elements already inside a DataSanitizer group. The
// aggregate is the mean over all paths and is nil when there are none.
func CPP(all []models.Path) models.CPPSummary {
	summary := models.CPPSummary{Paths: make([]models.PathPotential, 0, len(all))}
	if len(all) == 0 {
		return summary
	}

	total := 0
	for _, p := range all {
		sanitized := 0
		for _, e := range p {
			if e.Sanitized() {
				sanitized++
			}
		}
		adjusted := len(p) - sanitized
		total += adjusted
		summary.Paths = append(summary.Paths, models.PathPotential{
			Path:      p.IDs(),
			Length:    len(p),
			Sanitized: sanitized,
			Adjusted:  adjusted,
		})
	}

	aggregate := float64(total) / float64(len(all))
	summary.Aggregate = &aggregate
	return summary
}
