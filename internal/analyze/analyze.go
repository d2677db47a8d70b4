// Package analyze classifies converged plan results for one watch entry.
package analyze

import (
	"sort"
	"strings"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

// autoGroup is the remote planner's own optimization bucket. Its rows are
// informational and never acted on.
const autoGroup = "amazon optimized"

// Evaluate decides the cycle outcome for one entry. A target-warehouse hit
// wins over any mileage results in the same document: the entry is done and
// replicating it would only re-open monitoring on a resolved draft.
func Evaluate(rows []model.PlanRow, entry model.WatchEntry, tenantThreshold int) model.Verdict {
	targets := entry.TargetList()
	threshold := entry.EffectiveThreshold(tenantThreshold)
	seen := entry.FoundSet()

	var candidates []model.PlanRow
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.OptionGroup), autoGroup) {
			continue
		}
		dest := strings.ToUpper(strings.TrimSpace(row.Destination))
		if dest == "" {
			continue
		}
		for _, target := range targets {
			if strings.Contains(dest, target) {
				return model.Verdict{
					Kind: model.VerdictStop,
					Target: &model.Opportunity{
						OptionGroup: row.OptionGroup,
						Destination: dest,
						Miles:       row.Miles,
					},
				}
			}
		}
		candidates = append(candidates, model.PlanRow{
			OptionGroup: row.OptionGroup,
			Destination: dest,
			Miles:       row.Miles,
		})
	}

	newly := map[string]bool{}
	bestPerGroup := map[string]model.Opportunity{}
	var groupOrder []string
	for _, row := range candidates {
		if row.Miles >= threshold || seen[row.Destination] {
			continue
		}
		newly[row.Destination] = true
		best, ok := bestPerGroup[row.OptionGroup]
		if !ok {
			groupOrder = append(groupOrder, row.OptionGroup)
		}
		if !ok || row.Miles < best.Miles {
			bestPerGroup[row.OptionGroup] = model.Opportunity{
				OptionGroup: row.OptionGroup,
				Destination: row.Destination,
				Miles:       row.Miles,
			}
		}
	}
	if len(newly) == 0 {
		return model.Verdict{Kind: model.VerdictNone}
	}

	found := make([]string, 0, len(newly))
	for dest := range newly {
		found = append(found, dest)
	}
	sort.Strings(found)
	opportunities := make([]model.Opportunity, 0, len(bestPerGroup))
	for _, group := range groupOrder {
		opportunities = append(opportunities, bestPerGroup[group])
	}
	return model.Verdict{
		Kind:          model.VerdictReplicate,
		NewlyFound:    found,
		Opportunities: opportunities,
	}
}
