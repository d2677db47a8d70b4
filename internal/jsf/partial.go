package jsf

import (
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"
)

// Faces request parameter names used across partial-update payloads.
const (
	ParamPartialAjax   = "javax.faces.partial.ajax"
	ParamSource        = "javax.faces.source"
	ParamExecute       = "javax.faces.partial.execute"
	ParamRender        = "javax.faces.partial.render"
	ParamBehaviorEvent = "javax.faces.behavior.event"
	ParamPartialEvent  = "javax.faces.partial.event"
	ParamViewState     = "javax.faces.ViewState"
)

// Partial is one parsed partial-update response: a set of <update> sections
// keyed by component id, plus an optional redirect instruction.
type Partial struct {
	raw      string
	ids      []string
	updates  map[string]string
	redirect string
}

type xmlUpdate struct {
	ID   string `xml:"id,attr"`
	Body string `xml:",chardata"`
}

type xmlRedirect struct {
	URL string `xml:"url,attr"`
}

type xmlPartialResponse struct {
	XMLName  xml.Name     `xml:"partial-response"`
	Redirect *xmlRedirect `xml:"redirect"`
	Changes  struct {
		Updates  []xmlUpdate  `xml:"update"`
		Redirect *xmlRedirect `xml:"redirect"`
	} `xml:"changes"`
}

// ParsePartial decodes a partial-response body. A body that is not a
// partial-response document (a full HTML page, typically the login screen)
// yields ErrProtocol; the caller decides whether that means expiry.
func ParsePartial(body string) (*Partial, error) {
	var decoded xmlPartialResponse
	if err := xml.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, errors.Wrap(ErrProtocol, "response is not a partial update")
	}
	p := &Partial{raw: body, updates: make(map[string]string, len(decoded.Changes.Updates))}
	for _, u := range decoded.Changes.Updates {
		p.ids = append(p.ids, u.ID)
		p.updates[u.ID] = u.Body
	}
	if decoded.Redirect != nil {
		p.redirect = decoded.Redirect.URL
	} else if decoded.Changes.Redirect != nil {
		p.redirect = decoded.Changes.Redirect.URL
	}
	return p, nil
}

func (p *Partial) Raw() string { return p.raw }

func (p *Partial) RedirectURL() (string, bool) {
	return p.redirect, p.redirect != ""
}

func (p *Partial) Update(id string) (string, bool) {
	body, ok := p.updates[id]
	return body, ok
}

// UpdateContaining returns the first update whose id contains the fragment.
func (p *Partial) UpdateContaining(fragment string) (string, bool) {
	for _, id := range p.ids {
		if strings.Contains(id, fragment) {
			return p.updates[id], true
		}
	}
	return "", false
}

// JoinedUpdates concatenates every update body in document order; plan
// results arrive split across several update sections.
func (p *Partial) JoinedUpdates() string {
	var sb strings.Builder
	for _, id := range p.ids {
		sb.WriteString(p.updates[id])
	}
	return sb.String()
}

// ViewState returns the rotated view token carried by this response.
func (p *Partial) ViewState() (string, bool) {
	body, ok := p.UpdateContaining(ParamViewState)
	if !ok || strings.TrimSpace(body) == "" {
		return "", false
	}
	return strings.TrimSpace(body), true
}

// ThreadViewState rotates the token into form, failing the chain when the
// response did not carry one.
func (p *Partial) ThreadViewState(form map[string][]string) error {
	vs, ok := p.ViewState()
	if !ok {
		return errors.Wrap(ErrProtocol, "response carried no view token")
	}
	form[ParamViewState] = []string{vs}
	return nil
}

// HasErrorMarker reports whether any update section flags a remote-side
// validation or business error.
func (p *Partial) HasErrorMarker() bool {
	return strings.Contains(p.raw, ErrorMarker)
}
