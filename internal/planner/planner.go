// Package planner triggers the remote plan computation for one draft and
// waits for it to converge.
package planner

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/journal"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/jsf"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/scrape"
)

const (
	createPlanID = "mainForm:create_plan"
	pollSourceID = "mainForm:planingStatusDialogPoll"
	pollRender   = "mainForm:shipmentPlansPanel mainForm:a2dw_boxContentPanel mainForm:progressBarPlaning"
)

// Poller blocks the calling task until the plan converges or the poll budget
// runs out. The budget is authoritative: exhausting it is not an error, the
// cycle simply carries no new information.
type Poller struct {
	Client   *jsf.Client
	Delay    time.Duration
	MaxPolls int
	Log      *journal.Log
}

func New(c *jsf.Client, delay time.Duration, maxPolls int, log *journal.Log) *Poller {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 60
	}
	return &Poller{Client: c, Delay: delay, MaxPolls: maxPolls, Log: log}
}

// Plan opens the draft, requests a plan computation and polls until the
// progress figure falls back to zero after having run. Returns nil rows when
// the budget is exhausted before convergence.
func (p *Poller) Plan(ctx context.Context, draft model.Draft) ([]model.PlanRow, error) {
	page, err := p.Client.GetSessionPage(ctx, jsf.DraftPath, "")
	if err != nil {
		return nil, err
	}

	form := page.Doc.FormState(jsf.MainFormID)
	form.Set(jsf.ParamPartialAjax, "true")
	form.Set(jsf.ParamSource, draft.OpenHandle)
	form.Set(jsf.ParamExecute, "@all")
	form.Set(draft.OpenHandle, draft.OpenHandle)
	opened, err := p.Client.Partial(ctx, jsf.DraftPath, form, jsf.DraftPath)
	if err != nil {
		return nil, err
	}
	detailRef, ok := opened.RedirectURL()
	if !ok {
		return nil, errors.Wrapf(jsf.ErrProtocol, "opening draft %q produced no redirect", draft.Name)
	}

	detail, err := p.Client.GetSessionPage(ctx, detailRef, jsf.DraftPath)
	if err != nil {
		return nil, err
	}
	base := detail.Doc.FormState(jsf.MainFormID)
	base.Set(jsf.ParamPartialAjax, "true")
	base.Set(jsf.ParamSource, createPlanID)
	base.Set(jsf.ParamExecute, "@all")
	base.Set(jsf.ParamRender, jsf.MainFormID)
	base.Set(createPlanID, createPlanID)
	created, err := p.Client.Partial(ctx, jsf.PlanPath, base, detailRef)
	if err != nil {
		return nil, err
	}
	if created.HasErrorMarker() {
		return nil, errors.Wrapf(jsf.ErrRemote, "plan request rejected for %q", draft.Name)
	}
	if err := created.ThreadViewState(base); err != nil {
		return nil, err
	}

	base.Set(jsf.ParamSource, pollSourceID)
	base.Set(jsf.ParamRender, pollRender)
	base.Del(createPlanID)
	base.Set(pollSourceID, pollSourceID)

	lastPercent := 0
	for i := 0; i < p.MaxPolls; i++ {
		if err := sleep(ctx, p.Delay); err != nil {
			return nil, err
		}
		status, err := p.Client.Partial(ctx, jsf.PlanPath, base, detailRef)
		if err != nil {
			return nil, err
		}
		if err := status.ThreadViewState(base); err != nil {
			return nil, err
		}
		// The finished render drops the progress bar entirely, so a
		// marker-free response counts as zero.
		percent, _ := scrape.Percent(status.Raw())
		if percent == 0 && lastPercent > 50 {
			return scrape.PlanRows(status.JoinedUpdates())
		}
		if percent > lastPercent {
			lastPercent = percent
		}
	}
	if p.Log != nil {
		p.Log.Logf(model.SeverityWarning, "plan for %s did not converge within %d polls", draft.Name, p.MaxPolls)
	}
	return nil, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
