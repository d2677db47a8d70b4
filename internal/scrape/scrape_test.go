package scrape

import (
	"fmt"
	"testing"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/jsf"
)

const catalogRow = `<tr role="row">
<td></td>
<td><a id="mainForm:drafts:%d:open" title="Open Draft Shipment"></a>
<a id="mainForm:drafts:%d:dup"><span class="ui-icon pi pi-copy"></span></a></td>
<td><input id="mainForm:drafts:%d:name" value="%s"/></td>
<td>%s</td><td></td><td></td><td></td><td></td>
<td>12</td><td>340</td><td>%s</td>
</tr>`

func catalogPage(t *testing.T) *jsf.Document {
	t.Helper()
	body := "<table><tbody>"
	body += fmt.Sprintf(catalogRow, 0, 0, 0, "FBA Jan", "Depot A, Springfield", "01/15/26 09:12:44")
	body += fmt.Sprintf(catalogRow, 1, 1, 1, "FBA Feb", "Depot B, Rivertown", "02/02/26 17:03:01")
	// still rendering, no name yet
	body += fmt.Sprintf(catalogRow, 2, 2, 2, "", "Depot C", "02/03/26 08:00:00")
	body += "</tbody></table>"
	doc, err := jsf.ParseString(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDraftsParsesCompleteRowsOnly(t *testing.T) {
	drafts := Drafts(catalogPage(t), map[string]bool{"02/02/26 17:03:01": true})
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	first := drafts[0]
	if first.Name != "FBA Jan" || first.Origin != "Depot A, Springfield" {
		t.Fatalf("unexpected first draft: %+v", first)
	}
	if first.SKUs != "12" || first.Units != "340" {
		t.Fatalf("unexpected counts: %+v", first)
	}
	if first.OpenHandle != "mainForm:drafts:0:open" {
		t.Fatalf("open handle: %q", first.OpenHandle)
	}
	if first.CloneHandle != "mainForm:drafts:0:dup" {
		t.Fatalf("clone handle: %q", first.CloneHandle)
	}
	if first.NameInputID != "mainForm:drafts:0:name" {
		t.Fatalf("name input: %q", first.NameInputID)
	}
	if first.Watched {
		t.Fatalf("first draft should not be watched")
	}
	if !drafts[1].Watched {
		t.Fatalf("second draft should be watched by creation stamp")
	}
}

func TestDraftsOpenHandleFallsBackToActionCell(t *testing.T) {
	body := `<table><tbody><tr role="row">
<td></td>
<td><a id="mainForm:drafts:0:view"></a></td>
<td><input id="mainForm:drafts:0:name" value="FBA Mar"/></td>
<td>Depot A</td><td></td><td></td><td></td><td></td>
<td>1</td><td>2</td><td>03/01/26 10:00:00</td>
</tr></tbody></table>`
	doc, err := jsf.ParseString(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	drafts := Drafts(doc, nil)
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}
	if drafts[0].OpenHandle != "mainForm:drafts:0:view" {
		t.Fatalf("open handle: %q", drafts[0].OpenHandle)
	}
	if drafts[0].CloneHandle != "" {
		t.Fatalf("clone handle should be empty, got %q", drafts[0].CloneHandle)
	}
}

func TestAccounts(t *testing.T) {
	markup := `<table><tbody>
<tr data-rk="0"><td><input id="f:0:store_name" value="Acme North"/></td></tr>
<tr data-rk="1"><td><input id="f:1:store_name" value="Acme South"/></td></tr>
<tr data-rk="2"><td>Acme Legacy</td></tr>
</tbody></table>`
	accounts, err := Accounts(markup, " Acme South ")
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	if accounts[0].ID != "0" || accounts[0].Active {
		t.Fatalf("unexpected first account: %+v", accounts[0])
	}
	if !accounts[1].Active {
		t.Fatalf("Acme South should be active")
	}
	if accounts[2].Name != "Acme Legacy" {
		t.Fatalf("row-text fallback failed: %+v", accounts[2])
	}
}

func TestPlanRowsGroupsAndMiles(t *testing.T) {
	markup := `<table><tbody id="mainForm:plans_data">
<tr class="ui-rowgroup-header"><td>Option 1</td></tr>
<tr><td></td><td></td><td>avp1</td><td>123 mi</td></tr>
<tr><td></td><td></td><td>bos3</td><td>1,042 mi</td></tr>
<tr class="ui-rowgroup-header"><td>Amazon Optimized</td></tr>
<tr><td></td><td></td><td>mdw4</td><td>88 mi</td></tr>
<tr><td></td><td></td><td>spinner</td><td>loading</td></tr>
</tbody></table>`
	rows, err := PlanRows(markup)
	if err != nil {
		t.Fatalf("plan rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].OptionGroup != "Option 1" || rows[0].Destination != "AVP1" || rows[0].Miles != 123 {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
	if rows[1].Miles != 1042 {
		t.Fatalf("thousands separator not handled: %+v", rows[1])
	}
	if rows[2].OptionGroup != "Amazon Optimized" {
		t.Fatalf("group header not applied: %+v", rows[2])
	}
}

func TestPercent(t *testing.T) {
	if p, ok := Percent(`<div class="ui-progressbar-label"> 42 % </div>`); !ok || p != 42 {
		t.Fatalf("percent = %d, %v", p, ok)
	}
	if _, ok := Percent(`<div>no figure here</div>`); ok {
		t.Fatalf("expected no percent")
	}
}

func TestConfirmButtonID(t *testing.T) {
	markup := `<div><button id="j_idt77" class="ui-button ui-confirmdialog-no">No</button>
<button id="j_idt78" class="ui-button ui-confirmdialog-yes">Yes</button></div>`
	id, ok := ConfirmButtonID(markup)
	if !ok || id != "j_idt78" {
		t.Fatalf("confirm button = %q, %v", id, ok)
	}
}

func TestAddressRowExactMatch(t *testing.T) {
	markup := `<div>
<button id="addressDialog:addressForm:select"><span>Select</span></button>
<table><tbody>
<tr data-rk="3"><td><input type="radio" value="Depot A, Springfield"/></td></tr>
<tr data-rk="4"><td><input type="radio" value="Depot B, Rivertown"/></td></tr>
</tbody></table></div>`
	rk, btn, ok := AddressRow(markup, "Depot B, Rivertown")
	if !ok {
		t.Fatalf("address row not found")
	}
	if rk != "4" || btn != "addressDialog:addressForm:select" {
		t.Fatalf("rk=%q btn=%q", rk, btn)
	}
	if _, _, ok := AddressRow(markup, "Depot B"); ok {
		t.Fatalf("partial address must not match")
	}
}

func TestEditAddressLinkStrategies(t *testing.T) {
	withTitle := `<body><a id="mainForm:edit1" title="Change 'Ship From' address"></a></body>`
	doc, _ := jsf.ParseString(withTitle)
	id, how, ok := EditAddressLinkID(doc)
	if !ok || id != "mainForm:edit1" || how != "by-title" {
		t.Fatalf("id=%q how=%q ok=%v", id, how, ok)
	}

	iconOnly := `<body><a id="mainForm:edit2"><i class="pi pi-pencil"></i></a></body>`
	doc, _ = jsf.ParseString(iconOnly)
	id, how, ok = EditAddressLinkID(doc)
	if !ok || id != "mainForm:edit2" || how != "by-icon" {
		t.Fatalf("id=%q how=%q ok=%v", id, how, ok)
	}
}

func TestRefreshControlID(t *testing.T) {
	page := `<body><script>
var updateAddress = function() {PrimeFaces.ab({s:"mainForm:j_idt140",f:"mainForm"});}
</script></body>`
	doc, _ := jsf.ParseString(page)
	id, ok := RefreshControlID(doc)
	if !ok || id != "mainForm:j_idt140" {
		t.Fatalf("refresh control = %q, %v", id, ok)
	}
}

func TestAccountMenuButtonID(t *testing.T) {
	page := `<body><a id="menuform:accountBtn"><i class="fa fa-amazon"></i></a></body>`
	doc, _ := jsf.ParseString(page)
	id, how, ok := AccountMenuButtonID(doc)
	if !ok || id != "menuform:accountBtn" || how != "by-icon" {
		t.Fatalf("id=%q how=%q ok=%v", id, how, ok)
	}

	fallback := `<body><a id="menuform:other" onclick="open('__my_store__')"></a></body>`
	doc, _ = jsf.ParseString(fallback)
	id, how, ok = AccountMenuButtonID(doc)
	if !ok || id != "menuform:other" || how != "by-onclick" {
		t.Fatalf("id=%q how=%q ok=%v", id, how, ok)
	}
}
