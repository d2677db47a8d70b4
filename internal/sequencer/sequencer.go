// Package sequencer turns one matched watch entry into a renamed clone and
// reports the clone's identity. The sequence is clone, confirm, correct the
// origin address when the remote picked a different one, then rename.
package sequencer

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/journal"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/jsf"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/scrape"
)

const (
	cloneConfirmID = "clone_draft_confirm"
	draftsTableID  = "mainForm:drafts"
	addressFormID  = "addressDialog:addressForm"

	// maxBaseName keeps renamed drafts within the remote field width once
	// the timestamp suffix is appended.
	maxBaseName = 30
)

type Sequencer struct {
	Client *jsf.Client
	Log    *journal.Log

	// Now is swappable so rename suffixes are deterministic under test.
	Now func() time.Time
}

func New(c *jsf.Client, log *journal.Log) *Sequencer {
	return &Sequencer{Client: c, Log: log, Now: time.Now}
}

// Replicate produces the replacement identity for one watch entry. The
// caller treats the result's creation stamp as the entry's next key. A
// failed rename is not fatal: the clone keeps its auto-generated name and
// the result is still valid.
func (s *Sequencer) Replicate(ctx context.Context, entry model.WatchEntry) (model.CloneResult, error) {
	var zero model.CloneResult

	page, err := s.Client.GetSessionPage(ctx, jsf.DraftPath, "")
	if err != nil {
		return zero, err
	}
	draft, ok := findByKey(scrape.Drafts(page.Doc, nil), entry.Key)
	if !ok {
		return zero, errors.Errorf("draft %q no longer listed under key %s", entry.Name, entry.Key)
	}
	if draft.CloneHandle == "" {
		return zero, errors.Wrapf(jsf.ErrProtocol, "draft %q has no clone control", draft.Name)
	}

	detail, cloneName, err := s.clone(ctx, page, draft)
	if err != nil {
		return zero, err
	}

	origin := scrape.ShipFromAddress(detail.Doc)
	if !strings.Contains(strings.ToLower(origin), strings.ToLower(entry.Origin)) {
		if corrected := s.fixAddress(ctx, detail, entry.Origin); corrected {
			origin = entry.Origin
		}
	}

	created, nameInputID, err := s.relocateClone(ctx, cloneName)
	if err != nil {
		return zero, err
	}

	finalName := s.rename(ctx, cloneName, nameInputID)
	return model.CloneResult{Name: finalName, Created: created, Origin: origin}, nil
}

func findByKey(drafts []model.Draft, key string) (model.Draft, bool) {
	for _, d := range drafts {
		if d.Created == key {
			return d, true
		}
	}
	return model.Draft{}, false
}

// clone invokes the duplicate control, accepts the confirmation modal and
// follows the redirect to the clone's detail page.
func (s *Sequencer) clone(ctx context.Context, page *jsf.Page, draft model.Draft) (*jsf.Page, string, error) {
	form := page.Doc.FormState(jsf.MainFormID)
	form.Set(jsf.ParamPartialAjax, "true")
	form.Set(jsf.ParamSource, draft.CloneHandle)
	form.Set(jsf.ParamExecute, "@all")
	form.Set(jsf.ParamRender, cloneConfirmID)
	form.Set(draft.CloneHandle, draft.CloneHandle)
	asked, err := s.Client.Partial(ctx, jsf.DraftPath, form, jsf.DraftPath)
	if err != nil {
		return nil, "", err
	}
	confirmID, ok := scrape.ConfirmButtonID(asked.JoinedUpdates())
	if !ok {
		return nil, "", errors.Wrapf(jsf.ErrProtocol, "no confirmation control for cloning %q", draft.Name)
	}
	if err := asked.ThreadViewState(form); err != nil {
		return nil, "", err
	}

	form.Set(jsf.ParamSource, confirmID)
	form.Del(jsf.ParamRender)
	form.Del(draft.CloneHandle)
	form.Set(confirmID, confirmID)
	confirmed, err := s.Client.Partial(ctx, jsf.DraftPath, form, jsf.DraftPath)
	if err != nil {
		return nil, "", err
	}
	detailRef, ok := confirmed.RedirectURL()
	if !ok {
		return nil, "", errors.Wrapf(jsf.ErrProtocol, "cloning %q produced no redirect", draft.Name)
	}
	detail, err := s.Client.GetSessionPage(ctx, detailRef, jsf.DraftPath)
	if err != nil {
		return nil, "", err
	}
	cloneName := scrape.CloneName(detail.Doc)
	if cloneName == "" {
		return nil, "", errors.Wrap(jsf.ErrProtocol, "clone detail page carries no name")
	}
	return detail, cloneName, nil
}

// fixAddress steers the clone's origin back to the wanted address through
// the picker dialog. Best-effort: a missing row is logged, not fatal.
func (s *Sequencer) fixAddress(ctx context.Context, detail *jsf.Page, origin string) bool {
	editID, _, ok := scrape.EditAddressLinkID(detail.Doc)
	if !ok {
		s.logf(model.SeverityWarning, "no address edit control, keeping clone origin")
		return false
	}
	refreshID, refreshOK := scrape.RefreshControlID(detail.Doc)

	form := detail.Doc.FormState(jsf.MainFormID)
	form.Set(jsf.ParamPartialAjax, "true")
	form.Set(jsf.ParamSource, editID)
	form.Set(jsf.ParamExecute, "@all")
	form.Set(jsf.ParamRender, scrape.AddressTableID)
	form.Set(editID, editID)
	dialog, err := s.Client.Partial(ctx, detail.URL.RequestURI(), form, detail.URL.RequestURI())
	if err != nil {
		s.logf(model.SeverityWarning, "address dialog did not open: %v", err)
		return false
	}
	markup, ok := dialog.UpdateContaining(scrape.AddressTableID)
	if !ok {
		markup = dialog.JoinedUpdates()
	}
	rowKey, selectID, ok := scrape.AddressRow(markup, origin)
	if !ok {
		s.logf(model.SeverityWarning, "address %q not in picker, keeping clone origin", origin)
		return false
	}

	pick := url.Values{}
	pick.Set(jsf.ParamPartialAjax, "true")
	pick.Set(jsf.ParamSource, selectID)
	pick.Set(jsf.ParamExecute, addressFormID)
	pick.Set(selectID, selectID)
	pick.Set(addressFormID, addressFormID)
	pick.Set(scrape.AddressTableID+"_radio", "on")
	pick.Set(scrape.AddressTableID+"_selection", rowKey)
	if token := form.Get(jsf.ParamViewState); token != "" {
		pick.Set(jsf.ParamViewState, token)
	}
	if err := dialog.ThreadViewState(pick); err != nil {
		s.logf(model.SeverityWarning, "address dialog broke the token chain: %v", err)
		return false
	}
	selected, err := s.Client.Partial(ctx, detail.URL.RequestURI(), pick, detail.URL.RequestURI())
	if err != nil {
		s.logf(model.SeverityWarning, "address selection failed: %v", err)
		return false
	}

	if !refreshOK {
		s.logf(model.SeverityWarning, "no refresh control after address change")
		return true
	}
	refresh := url.Values{}
	refresh.Set(jsf.ParamPartialAjax, "true")
	refresh.Set(jsf.ParamSource, refreshID)
	refresh.Set(jsf.ParamExecute, "@all")
	refresh.Set(jsf.ParamRender, "mainForm:draftInfo")
	refresh.Set(refreshID, refreshID)
	refresh.Set(jsf.MainFormID, jsf.MainFormID)
	if err := selected.ThreadViewState(refresh); err != nil {
		s.logf(model.SeverityWarning, "refresh skipped, token chain broken: %v", err)
		return true
	}
	if _, err := s.Client.Partial(ctx, detail.URL.RequestURI(), refresh, detail.URL.RequestURI()); err != nil {
		s.logf(model.SeverityWarning, "draft info refresh failed: %v", err)
	}
	return true
}

// relocateClone re-scans the catalog for the clone's assigned creation
// stamp. The stamp is the entry's next key and cannot be predicted.
func (s *Sequencer) relocateClone(ctx context.Context, cloneName string) (created, nameInputID string, err error) {
	page, err := s.Client.GetSessionPage(ctx, jsf.DraftPath, "")
	if err != nil {
		return "", "", err
	}
	for _, d := range scrape.Drafts(page.Doc, nil) {
		if d.Name == cloneName {
			return d.Created, d.NameInputID, nil
		}
	}
	return "", "", errors.Errorf("clone %q not found in catalog after creation", cloneName)
}

// rename issues the two dependent rename requests and returns the name the
// clone ends up with. The first request rewrites the whole table row; if it
// fails the auto-generated name stays, since retrying only the second
// request could pair a stale token with live fields.
func (s *Sequencer) rename(ctx context.Context, cloneName, nameInputID string) string {
	newName := CleanName(cloneName) + " " + s.now().Format("02/01 15:04:05")

	page, err := s.Client.GetSessionPage(ctx, jsf.DraftPath, "")
	if err != nil {
		s.logf(model.SeverityWarning, "rename skipped, catalog unavailable: %v", err)
		return cloneName
	}
	form := page.Doc.FormState(jsf.MainFormID)
	form.Set(jsf.ParamPartialAjax, "true")
	form.Set(jsf.ParamSource, draftsTableID)
	form.Set(jsf.ParamExecute, draftsTableID)
	form.Set(jsf.ParamRender, draftsTableID)
	form.Set(draftsTableID+"_encodeFeature", "true")
	form.Set(nameInputID, newName)
	updated, err := s.Client.Partial(ctx, jsf.DraftPath, form, jsf.DraftPath)
	if err != nil || updated.HasErrorMarker() {
		s.logf(model.SeverityWarning, "rename aborted for %q, keeping auto name", cloneName)
		return cloneName
	}

	change := url.Values{}
	change.Set(jsf.ParamPartialAjax, "true")
	change.Set(jsf.ParamSource, nameInputID)
	change.Set(jsf.ParamExecute, nameInputID)
	change.Set(jsf.ParamRender, "@none")
	change.Set(jsf.ParamBehaviorEvent, "change")
	change.Set(jsf.ParamPartialEvent, "change")
	change.Set(nameInputID, newName)
	change.Set(jsf.MainFormID, jsf.MainFormID)
	if err := updated.ThreadViewState(change); err != nil {
		s.logf(model.SeverityWarning, "rename half-applied for %q: %v", cloneName, err)
		return cloneName
	}
	if _, err := s.Client.Partial(ctx, jsf.DraftPath, change, jsf.DraftPath); err != nil {
		s.logf(model.SeverityWarning, "rename change event failed for %q: %v", cloneName, err)
		return cloneName
	}
	s.logf(model.SeveritySuccess, "clone renamed to %q", newName)
	return newName
}

var (
	copySuffix      = regexp.MustCompile(`(?i)(\s*-\s*copy|\s+copy|\s*-\s*clone)+\s*$`)
	timestampSuffix = regexp.MustCompile(`\s\d{2}[/.-]\d{2} \d{2}:\d{2}:\d{2}\s*$`)
)

// CleanName strips the remote's copy markers and any timestamp suffix a
// previous replication appended, then bounds the base length.
func CleanName(name string) string {
	out := strings.TrimSpace(name)
	for {
		next := timestampSuffix.ReplaceAllString(out, "")
		next = copySuffix.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == out {
			break
		}
		out = next
	}
	if runes := []rune(out); len(runes) > maxBaseName {
		out = strings.TrimSpace(string(runes[:maxBaseName]))
	}
	return out
}

func (s *Sequencer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sequencer) logf(sev model.Severity, format string, args ...any) {
	if s.Log != nil {
		s.Log.Logf(sev, format, args...)
	}
}
