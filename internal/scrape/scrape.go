// Package scrape interprets the markup of the remote logistics pages into
// domain records. Everything here is read-only over parsed documents; the
// request choreography lives in catalog, planner and sequencer.
package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/jsf"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

const (
	openDraftTitle = "Open Draft Shipment"
	editLinkTitle  = "Change 'Ship From' address"

	// AccountTableID is the partial-update section carrying the account
	// switcher table.
	AccountTableID = "__my_store_form__:__my_stor_table__"
	// AddressTableID is the partial-update section carrying the address
	// picker rows.
	AddressTableID = "addressDialog:addressForm:addressTable"
	// ActiveAccountID is the element echoing the currently active account
	// name. An account switch is confirmed by this section being re-rendered.
	ActiveAccountID = "ccFlag"
)

// Drafts reads the catalog table into draft records. Rows that are still
// rendering, or that carry no name, creation stamp or open control, are
// skipped rather than surfaced half-empty. watched marks drafts whose
// creation stamp is an enrolled watch key.
func Drafts(doc *jsf.Document, watched map[string]bool) []model.Draft {
	if doc == nil {
		return nil
	}
	var out []model.Draft
	rows := doc.FindAll(func(n *html.Node) bool {
		return jsf.IsElement(n, "tr") && jsf.Attr(n, "role") == "row"
	})
	for _, row := range rows {
		cells := jsf.ChildElements(row, "td")
		if len(cells) < 11 {
			continue
		}
		nameInput := jsf.FindNode(cells[2], func(n *html.Node) bool {
			return jsf.IsElement(n, "input")
		})
		if nameInput == nil {
			continue
		}
		d := model.Draft{
			Name:        strings.TrimSpace(jsf.Attr(nameInput, "value")),
			NameInputID: jsf.Attr(nameInput, "id"),
			Origin:      jsf.Text(cells[3]),
			SKUs:        jsf.Text(cells[8]),
			Units:       jsf.Text(cells[9]),
			Created:     jsf.Text(cells[10]),
		}
		d.OpenHandle = openHandle(row, cells[1])
		d.CloneHandle = cloneHandle(row)
		if d.Name == "" || d.Created == "" || d.OpenHandle == "" {
			continue
		}
		d.Watched = watched[d.Created]
		out = append(out, d)
	}
	return out
}

// openHandle prefers the control carrying the canonical title attribute and
// falls back to the first link of the action cell when the title is absent.
func openHandle(row, actionCell *html.Node) string {
	if a := jsf.FindNode(row, func(n *html.Node) bool {
		return jsf.IsElement(n, "a") && jsf.Attr(n, "title") == openDraftTitle
	}); a != nil {
		return jsf.Attr(a, "id")
	}
	if a := jsf.FindNode(actionCell, func(n *html.Node) bool {
		return jsf.IsElement(n, "a")
	}); a != nil {
		return jsf.Attr(a, "id")
	}
	return ""
}

func cloneHandle(row *html.Node) string {
	if a := jsf.FindNode(row, func(n *html.Node) bool {
		if !jsf.IsElement(n, "a") {
			return false
		}
		title := strings.ToLower(jsf.Attr(n, "title"))
		return strings.Contains(title, "duplicate") || strings.Contains(title, "copy")
	}); a != nil {
		return jsf.Attr(a, "id")
	}
	if span := jsf.FindNode(row, func(n *html.Node) bool {
		return jsf.IsElement(n, "span") &&
			(jsf.ClassContains(n, "copy") || jsf.ClassContains(n, "clone"))
	}); span != nil {
		if a := jsf.Ancestor(span, "a"); a != nil {
			return jsf.Attr(a, "id")
		}
	}
	return ""
}

// Accounts reads the account switcher markup. activeName is the text of the
// active-account echo element; the matching row is flagged active.
func Accounts(tableMarkup, activeName string) ([]model.Account, error) {
	doc, err := jsf.ParseString(tableMarkup)
	if err != nil {
		return nil, err
	}
	activeName = strings.TrimSpace(activeName)
	var out []model.Account
	rows := doc.FindAll(func(n *html.Node) bool {
		return jsf.IsElement(n, "tr") && jsf.Attr(n, "data-rk") != ""
	})
	for _, row := range rows {
		name := ""
		if input := jsf.FindNode(row, func(n *html.Node) bool {
			return jsf.IsElement(n, "input") && strings.Contains(jsf.Attr(n, "id"), "store_name")
		}); input != nil {
			name = strings.TrimSpace(jsf.Attr(input, "value"))
		}
		if name == "" {
			name = jsf.Text(row)
		}
		if name == "" {
			continue
		}
		out = append(out, model.Account{
			ID:     jsf.Attr(row, "data-rk"),
			Name:   name,
			Active: name == activeName,
		})
	}
	return out, nil
}

// ActiveAccountName reads the active-account echo text from a full page.
func ActiveAccountName(doc *jsf.Document) string {
	if doc == nil {
		return ""
	}
	return jsf.Text(doc.ByID(ActiveAccountID))
}

// PlanRows reads converged plan results out of partial-update markup. Group
// header rows set the option group for the data rows that follow them; data
// rows are recognized by a mileage cell.
func PlanRows(markup string) ([]model.PlanRow, error) {
	doc, err := jsf.ParseString(markup)
	if err != nil {
		return nil, err
	}
	body := doc.Find(func(n *html.Node) bool {
		return jsf.IsElement(n, "tbody") && strings.Contains(jsf.Attr(n, "id"), "plans")
	})
	if body == nil {
		return nil, nil
	}
	var out []model.PlanRow
	group := ""
	for _, row := range jsf.FindAllNodes(body, func(n *html.Node) bool {
		return jsf.IsElement(n, "tr")
	}) {
		if jsf.ClassContains(row, "ui-rowgroup-header") {
			group = jsf.Text(row)
			continue
		}
		cells := jsf.ChildElements(row, "td")
		if len(cells) <= 3 {
			continue
		}
		milesText := jsf.Text(cells[3])
		if !strings.Contains(milesText, "mi") {
			continue
		}
		miles, ok := parseMiles(milesText)
		if !ok {
			continue
		}
		out = append(out, model.PlanRow{
			OptionGroup: group,
			Destination: strings.ToUpper(jsf.Text(cells[2])),
			Miles:       miles,
		})
	}
	return out, nil
}

func parseMiles(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "mi")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

var percentPattern = regexp.MustCompile(`>\s*(\d+)\s*%\s*<`)

// Percent extracts the planning progress figure from raw response text.
// The figure is rendered between tags, so the pattern anchors on the
// surrounding brackets rather than on any element id.
func Percent(raw string) (int, bool) {
	m := percentPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ConfirmButtonID finds the affirmative control of a confirm dialog.
func ConfirmButtonID(markup string) (string, bool) {
	doc, err := jsf.ParseString(markup)
	if err != nil {
		return "", false
	}
	btn := doc.Find(func(n *html.Node) bool {
		return jsf.IsElement(n, "button") && jsf.ClassContains(n, "ui-confirmdialog-yes")
	})
	if btn == nil {
		return "", false
	}
	return jsf.Attr(btn, "id"), true
}

// AddressRow locates the picker row whose address value matches origin
// exactly, plus the dialog's Select control. Both are required to post a
// row selection.
func AddressRow(markup, origin string) (rowKey, selectButtonID string, ok bool) {
	doc, err := jsf.ParseString(markup)
	if err != nil {
		return "", "", false
	}
	btn := doc.Find(func(n *html.Node) bool {
		if !jsf.IsElement(n, "button") {
			return false
		}
		span := jsf.FindNode(n, func(c *html.Node) bool {
			return jsf.IsElement(c, "span") && jsf.Text(c) == "Select"
		})
		return span != nil
	})
	if btn == nil {
		return "", "", false
	}
	input := doc.Find(func(n *html.Node) bool {
		return jsf.IsElement(n, "input") && jsf.Attr(n, "value") == origin
	})
	if input == nil {
		return "", "", false
	}
	row := rowWithKey(input)
	if row == nil {
		return "", "", false
	}
	return jsf.Attr(row, "data-rk"), jsf.Attr(btn, "id"), true
}

func rowWithKey(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if jsf.IsElement(p, "tr") && jsf.Attr(p, "data-rk") != "" {
			return p
		}
	}
	return nil
}

// CloneName reads the editable name of a freshly opened draft detail page.
func CloneName(doc *jsf.Document) string {
	if doc == nil {
		return ""
	}
	input := doc.Find(func(n *html.Node) bool {
		return jsf.IsElement(n, "input") && strings.Contains(jsf.Attr(n, "name"), "draft_name")
	})
	return strings.TrimSpace(jsf.Attr(input, "value"))
}

// ShipFromAddress reads the origin line of a draft detail page.
func ShipFromAddress(doc *jsf.Document) string {
	if doc == nil {
		return ""
	}
	return jsf.Text(doc.ByID("mainForm:draftInfo:0:ship_from_address"))
}

// EditAddressLinkID resolves the pencil control that opens the address
// picker. The title attribute is the stable anchor; the id and icon lookups
// cover skins that drop it.
func EditAddressLinkID(doc *jsf.Document) (string, string, bool) {
	if doc == nil {
		return "", "", false
	}
	return jsf.Locate(doc.Root(),
		jsf.Strategy{Name: "by-title", Locate: func(root *html.Node) (string, bool) {
			a := jsf.FindNode(root, func(n *html.Node) bool {
				return jsf.IsElement(n, "a") && jsf.Attr(n, "title") == editLinkTitle
			})
			return jsf.Attr(a, "id"), a != nil
		}},
		jsf.Strategy{Name: "by-id", Locate: func(root *html.Node) (string, bool) {
			a := jsf.FindNode(root, func(n *html.Node) bool {
				return jsf.IsElement(n, "a") && strings.Contains(jsf.Attr(n, "id"), "ship_from_address_edit")
			})
			return jsf.Attr(a, "id"), a != nil
		}},
		jsf.Strategy{Name: "by-icon", Locate: func(root *html.Node) (string, bool) {
			icon := jsf.FindNode(root, func(n *html.Node) bool {
				return jsf.IsElement(n, "i") && jsf.ClassContains(n, "pi-pencil")
			})
			if icon == nil {
				return "", false
			}
			a := jsf.Ancestor(icon, "a")
			return jsf.Attr(a, "id"), a != nil
		}},
	)
}

var refreshScriptPattern = regexp.MustCompile(`updateAddress\s*=`)
var remoteSourcePattern = regexp.MustCompile(`s:\s*["']([^"']+)["']`)

// RefreshControlID finds the server-side source id behind the page's
// updateAddress remote command. Posting to it re-renders the draft info
// panel after an address change.
func RefreshControlID(doc *jsf.Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	scripts := doc.FindAll(func(n *html.Node) bool {
		return jsf.IsElement(n, "script")
	})
	for _, s := range scripts {
		text := scriptText(s)
		if !refreshScriptPattern.MatchString(text) {
			continue
		}
		if m := remoteSourcePattern.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func scriptText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// AccountMenuButtonID resolves the control that expands the account
// switcher overlay.
func AccountMenuButtonID(doc *jsf.Document) (string, string, bool) {
	if doc == nil {
		return "", "", false
	}
	return jsf.Locate(doc.Root(),
		jsf.Strategy{Name: "by-icon", Locate: func(root *html.Node) (string, bool) {
			icon := jsf.FindNode(root, func(n *html.Node) bool {
				return jsf.IsElement(n, "i") && jsf.ClassContains(n, "fa-amazon")
			})
			if icon == nil {
				return "", false
			}
			a := jsf.Ancestor(icon, "a")
			return jsf.Attr(a, "id"), a != nil
		}},
		jsf.Strategy{Name: "by-onclick", Locate: func(root *html.Node) (string, bool) {
			a := jsf.FindNode(root, func(n *html.Node) bool {
				return jsf.IsElement(n, "a") && strings.Contains(jsf.Attr(n, "onclick"), "__my_store__")
			})
			return jsf.Attr(a, "id"), a != nil
		}},
	)
}
