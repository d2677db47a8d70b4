package jsf

import (
	"testing"

	"golang.org/x/net/html"
)

const formPage = `<html><body>
<form id="mainForm" method="post">
<input type="hidden" name="mainForm" value="mainForm"/>
<input type="text" name="mainForm:q" value="hello"/>
<input type="checkbox" name="mainForm:opt_on" value="on" checked/>
<input type="checkbox" name="mainForm:opt_off" value="on"/>
<input type="radio" name="mainForm:pick" value="a"/>
<input type="radio" name="mainForm:pick" value="b" checked/>
<select name="mainForm:mode"><option value="x">X</option><option value="y" selected>Y</option></select>
<input type="hidden" name="javax.faces.ViewState" value="vs-1"/>
</form></body></html>`

func TestFormStateRoundTrip(t *testing.T) {
	doc, err := ParseString(formPage)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	values := doc.FormState(MainFormID)

	if got := values.Get("mainForm:q"); got != "hello" {
		t.Fatalf("text input: got %q", got)
	}
	if got := values.Get("mainForm:opt_on"); got != "on" {
		t.Fatalf("checked checkbox missing: %q", got)
	}
	if _, present := values["mainForm:opt_off"]; present {
		t.Fatalf("unchecked checkbox must not round-trip")
	}
	if got := values.Get("mainForm:pick"); got != "b" {
		t.Fatalf("checked radio: got %q", got)
	}
	if got := values.Get("mainForm:mode"); got != "y" {
		t.Fatalf("selected option: got %q", got)
	}
	if got := values.Get(ParamViewState); got != "vs-1" {
		t.Fatalf("view state: got %q", got)
	}
}

func TestFormStateMissingFormIsEmpty(t *testing.T) {
	doc, err := ParseString("<html><body><p>nothing here</p></body></html>")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if values := doc.FormState(MainFormID); len(values) != 0 {
		t.Fatalf("expected empty form state, got %v", values)
	}
}

func TestLocateRankedStrategies(t *testing.T) {
	doc, err := ParseString(`<html><body><a id="second" class="pi pi-copy">dup</a></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	id, name, ok := Locate(doc.Root(),
		Strategy{Name: "by-title", Locate: func(root *html.Node) (string, bool) {
			n := FindNode(root, func(n *html.Node) bool {
				return IsElement(n, "a") && Attr(n, "title") == "Duplicate"
			})
			return Attr(n, "id"), n != nil
		}},
		Strategy{Name: "by-icon", Locate: func(root *html.Node) (string, bool) {
			n := FindNode(root, func(n *html.Node) bool {
				return IsElement(n, "a") && ClassContains(n, "copy")
			})
			return Attr(n, "id"), n != nil
		}},
	)
	if !ok || id != "second" || name != "by-icon" {
		t.Fatalf("fallback strategy should win: id=%q via=%q ok=%v", id, name, ok)
	}
}

func TestTextConcatenatesTrimmedFragments(t *testing.T) {
	doc, err := ParseString(`<div id="ccFlag"> <span> Babil Design </span></div>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := doc.Find(func(n *html.Node) bool { return IsElement(n, "div") })
	if got := Text(n); got != "Babil Design" {
		t.Fatalf("unexpected text %q", got)
	}
}
