package engine

import (
	"context"
	"fmt"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/analyze"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/catalog"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

// RunCycle resolves every watched draft once. Entries are visited grouped
// by account so the session switches context once per account; a failed
// switch skips that account's entries for this cycle and the remaining
// accounts still run.
func (t *Tenant) RunCycle(ctx context.Context) {
	entries := t.watch.Snapshot()
	if len(entries) == 0 {
		return
	}
	t.log.Logf(model.SeverityInfo, "cycle started, %d entries", len(entries))

	currentAccount := ""
	accountBroken := false
	for _, entry := range entries {
		if entry.AccountID != currentAccount {
			currentAccount = entry.AccountID
			accountBroken = false
			err := t.client.WithSession(ctx, func() error {
				return catalog.Switch(ctx, t.client, entry.AccountID)
			})
			if err != nil {
				accountBroken = true
				t.log.Logf(model.SeverityError, "account switch to %s failed, skipping its drafts: %v",
					entry.AccountName, err)
			}
		}
		if accountBroken {
			continue
		}
		t.resolve(ctx, entry)
	}
	t.log.Logf(model.SeverityInfo, "cycle finished")
}

// resolve runs plan, analysis and the resulting action for one entry.
func (t *Tenant) resolve(ctx context.Context, entry model.WatchEntry) {
	if err := t.watch.MarkResolving(entry.Key); err != nil {
		t.log.Logf(model.SeverityWarning, "%v", err)
		return
	}

	var rows []model.PlanRow
	stale := false
	err := t.client.WithSession(ctx, func() error {
		drafts, _, err := catalog.Fetch(ctx, t.client, nil)
		if err != nil {
			return err
		}
		draft, ok := findDraft(drafts, entry.Key)
		if !ok {
			stale = true
			return nil
		}
		rows, err = t.poller.Plan(ctx, draft)
		return err
	})
	if err != nil {
		t.log.Logf(model.SeverityError, "plan for %s failed: %v", entry.Name, err)
		t.backToIdle(entry.Key)
		return
	}
	if stale {
		t.log.Logf(model.SeverityWarning, "%s (%s) vanished from the catalog", entry.Name, entry.Key)
		t.backToIdle(entry.Key)
		return
	}
	if rows == nil {
		t.backToIdle(entry.Key)
		return
	}

	threshold, _ := t.Settings()
	verdict := analyze.Evaluate(rows, entry, threshold)
	switch verdict.Kind {
	case model.VerdictStop:
		t.finish(ctx, entry, verdict)
	case model.VerdictReplicate:
		t.replicate(ctx, entry, verdict)
	default:
		t.log.Logf(model.SeverityInfo, "no new options for %s", entry.Name)
		t.backToIdle(entry.Key)
	}
}

// finish handles a target-warehouse hit: terminal, regardless of any mile
// matches in the same result.
func (t *Tenant) finish(ctx context.Context, entry model.WatchEntry, verdict model.Verdict) {
	target := verdict.Target
	t.log.Logf(model.SeveritySuccess, "target %s reached for %s (%d mi), monitoring ends",
		target.Destination, entry.Name, target.Miles)
	t.publish(ctx, model.Notification{
		Title:    "Target warehouse reached",
		Message:  fmt.Sprintf("%s is done: %s appeared in the plan results.", entry.Name, target.Destination),
		Severity: model.SeveritySuccess,
		Facts: []model.Fact{
			{Label: "Account", Value: entry.AccountName},
			{Label: "Destination", Value: target.Destination},
			{Label: "Distance", Value: fmt.Sprintf("%d mi", target.Miles)},
			{Label: "Option", Value: target.OptionGroup},
		},
	})
	t.history.Add(entry.AccountName, entry.Name, target.Destination)
	if err := t.watch.Retire(entry.Key); err != nil {
		t.log.Logf(model.SeverityWarning, "%v", err)
	}
}

// replicate raises one consolidated notification for the cycle's findings,
// clones the draft and re-keys the entry to the clone's identity. When the
// clone fails the findings still merge into the existing entry so the next
// cycle does not re-report them.
func (t *Tenant) replicate(ctx context.Context, entry model.WatchEntry, verdict model.Verdict) {
	facts := []model.Fact{{Label: "Account", Value: entry.AccountName}}
	for _, opp := range verdict.Opportunities {
		facts = append(facts, model.Fact{
			Label: opp.OptionGroup,
			Value: fmt.Sprintf("%s (%d mi)", opp.Destination, opp.Miles),
		})
	}
	t.publish(ctx, model.Notification{
		Title:    "New shipping opportunities",
		Message:  fmt.Sprintf("%s matched: %s", entry.Name, joinComma(verdict.NewlyFound)),
		Severity: model.SeverityWarning,
		Facts:    facts,
	})
	t.log.Logf(model.SeveritySuccess, "%s matched %s, replicating", entry.Name, joinComma(verdict.NewlyFound))

	var result model.CloneResult
	err := t.client.WithSession(ctx, func() error {
		var err error
		result, err = t.seq.Replicate(ctx, entry)
		return err
	})
	if err != nil {
		t.log.Logf(model.SeverityError, "replication of %s failed: %v", entry.Name, err)
		if mergeErr := t.watch.MergeFound(entry.Key, verdict.NewlyFound); mergeErr != nil {
			t.log.Logf(model.SeverityWarning, "%v", mergeErr)
		}
		t.backToIdle(entry.Key)
		return
	}

	err = t.watch.Replace(entry.Key, model.WatchEntry{
		Key:    result.Created,
		Name:   result.Name,
		Origin: result.Origin,
		Found:  verdict.NewlyFound,
	})
	if err != nil {
		t.log.Logf(model.SeverityError, "%v", err)
		return
	}
	t.history.Add(entry.AccountName, entry.Name, verdict.NewlyFound...)
	t.log.Logf(model.SeveritySuccess, "now watching %s under key %s", result.Name, result.Created)
}

func (t *Tenant) backToIdle(key string) {
	if err := t.watch.MarkIdle(key); err != nil {
		t.log.Logf(model.SeverityWarning, "%v", err)
	}
}

func (t *Tenant) publish(ctx context.Context, n model.Notification) {
	if t.notifier == nil {
		return
	}
	if err := t.notifier.Publish(ctx, n); err != nil {
		t.log.Logf(model.SeverityWarning, "notification failed: %v", err)
	}
}

func findDraft(drafts []model.Draft, key string) (model.Draft, bool) {
	for _, d := range drafts {
		if d.Created == key {
			return d, true
		}
	}
	return model.Draft{}, false
}
