// Package catalog drives the draft-listing page: fetching the table,
// discovering the tenant's selectable accounts and switching the active one.
package catalog

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/jsf"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/scrape"
)

const (
	accountFormID   = "__my_store_form__"
	accountFilterID = "__my_store_form__:__my_stor_table__:j_idt26:filter"
)

// Fetch loads the catalog page and parses its draft rows. watched marks
// drafts already enrolled, keyed by creation stamp.
func Fetch(ctx context.Context, c *jsf.Client, watched map[string]bool) ([]model.Draft, *jsf.Page, error) {
	page, err := c.GetSessionPage(ctx, jsf.DraftPath, "")
	if err != nil {
		return nil, nil, err
	}
	return scrape.Drafts(page.Doc, watched), page, nil
}

// Accounts expands the account switcher overlay and parses the table it
// renders. The overlay is lazy: its rows exist only in the partial response,
// never in the page itself.
func Accounts(ctx context.Context, c *jsf.Client) ([]model.Account, error) {
	page, err := c.GetSessionPage(ctx, jsf.DraftPath, "")
	if err != nil {
		return nil, err
	}
	activeName := scrape.ActiveAccountName(page.Doc)
	menuBtn, _, ok := scrape.AccountMenuButtonID(page.Doc)
	if !ok {
		return nil, errors.Wrap(jsf.ErrProtocol, "account menu control not found")
	}

	form := page.Doc.FormState(jsf.MainFormID)
	form.Set(jsf.ParamPartialAjax, "true")
	form.Set(jsf.ParamSource, menuBtn)
	form.Set(jsf.ParamExecute, "@all")
	form.Set(jsf.ParamRender, scrape.AccountTableID)
	form.Set(menuBtn, menuBtn)
	form.Set("formLogo", "formLogo")
	partial, err := c.Partial(ctx, jsf.DraftPath, form, jsf.DraftPath)
	if err != nil {
		return nil, err
	}
	table, ok := partial.Update(scrape.AccountTableID)
	if !ok {
		return nil, errors.Wrap(jsf.ErrProtocol, "account table not rendered")
	}
	return scrape.Accounts(table, activeName)
}

// Switch posts a row selection on the account table and confirms the switch
// by the active-account echo being re-rendered. Every destructive operation
// downstream assumes the switch held, so an unconfirmed response is an error.
func Switch(ctx context.Context, c *jsf.Client, accountID string) error {
	page, err := c.GetSessionPage(ctx, jsf.DraftPath, "")
	if err != nil {
		return err
	}
	state := page.Doc.FormState(jsf.MainFormID)
	token := state.Get(jsf.ParamViewState)
	if token == "" {
		return errors.Wrap(jsf.ErrProtocol, "catalog page carries no view token")
	}

	form := url.Values{}
	form.Set(jsf.ParamPartialAjax, "true")
	form.Set(jsf.ParamSource, scrape.AccountTableID)
	form.Set(jsf.ParamExecute, scrape.AccountTableID)
	form.Set(jsf.ParamRender, "ccFlag contentPanel mainForm menuform")
	form.Set(jsf.ParamBehaviorEvent, "rowSelect")
	form.Set(jsf.ParamPartialEvent, "rowSelect")
	form.Set(scrape.AccountTableID+"_instantSelectedRowKey", accountID)
	form.Set(scrape.AccountTableID+"_selection", accountID)
	form.Set(scrape.AccountTableID+"_scrollState", "0,0")
	form.Set(accountFormID, accountFormID)
	form.Set(accountFilterID, "")
	form.Set(jsf.ParamViewState, token)

	partial, err := c.Partial(ctx, jsf.DraftPath, form, jsf.DraftPath)
	if err != nil {
		return err
	}
	if _, ok := partial.Update(scrape.ActiveAccountID); !ok {
		return errors.Wrapf(jsf.ErrRemote, "account switch to %s not confirmed", accountID)
	}
	return nil
}
