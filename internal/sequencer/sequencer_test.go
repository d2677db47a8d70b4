package sequencer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/jsf"
	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

func TestCleanName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"FBA Jan - Copy", "FBA Jan"},
		{"FBA Jan - copy - Copy", "FBA Jan"},
		{"FBA Jan Copy", "FBA Jan"},
		{"FBA Jan - Clone", "FBA Jan"},
		{"FBA Jan 02/01 15:04:05", "FBA Jan"},
		{"FBA Jan 02/01 15:04:05 - Copy", "FBA Jan"},
		{"FBA Jan", "FBA Jan"},
		{"A very long draft name that keeps going", "A very long draft name that ke"},
		{"Gönderim planı Aralık ayı için hazırlanan taslak", "Gönderim planı Aralık ayı için"},
	}
	for _, c := range cases {
		if got := CleanName(c.in); got != c.want {
			t.Fatalf("CleanName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

const (
	origKey  = "01/15/26 09:12:44"
	cloneKey = "03/01/26 11:22:33"
)

type fakeRemote struct {
	cloned        bool
	selectedRow   string
	refreshed     bool
	renamedTo     string
	changeEventTo string
}

func catalogRow(idx int, name, origin, created string) string {
	return fmt.Sprintf(`<tr role="row">
<td></td>
<td><a id="mainForm:drafts:%d:open" title="Open Draft Shipment"></a>
<a id="mainForm:drafts:%d:dup" title="Duplicate"></a></td>
<td><input id="mainForm:drafts:%d:name" value="%s"/></td>
<td>%s</td><td></td><td></td><td></td><td></td>
<td>1</td><td>2</td><td>%s</td></tr>`, idx, idx, idx, name, origin, created)
}

func (f *fakeRemote) catalogPage() string {
	rows := catalogRow(0, "FBA Jan", "Depot A, Springfield", origKey)
	if f.cloned {
		rows += catalogRow(1, "FBA Jan - Copy", "Depot X, Elsewhere", cloneKey)
	}
	return `<html><body><form id="mainForm"><input type="hidden" name="javax.faces.ViewState" value="vs-1"/><table><tbody>` +
		rows + `</tbody></table></form></body></html>`
}

const detailPage = `<html><body>
<form id="mainForm">
<input type="hidden" name="javax.faces.ViewState" value="vs-d"/>
<input name="mainForm:draft_name" value="FBA Jan - Copy"/>
<span id="mainForm:draftInfo:0:ship_from_address">Depot X, Elsewhere</span>
<a id="mainForm:editAddr" title="Change 'Ship From' address"></a>
</form>
<script>updateAddress = function() {PrimeFaces.ab({s:"mainForm:j_idt140",f:"mainForm"});}</script>
</body></html>`

const addressDialog = `<div>
<button id="addressDialog:addressForm:pick"><span>Select</span></button>
<table><tbody>
<tr data-rk="7"><td><input type="radio" value="Depot A, Springfield"/></td></tr>
<tr data-rk="8"><td><input type="radio" value="Depot X, Elsewhere"/></td></tr>
</tbody></table></div>`

func partialXML(pairs ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><partial-response><changes>`)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, `<update id="%s"><![CDATA[%s]]></update>`, pairs[i], pairs[i+1])
	}
	b.WriteString(`<update id="javax.faces.ViewState"><![CDATA[vs-next]]></update></changes></partial-response>`)
	return b.String()
}

func (f *fakeRemote) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/draft.jsf", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, f.catalogPage())
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		switch src := r.FormValue("javax.faces.source"); src {
		case "mainForm:drafts:0:dup":
			fmt.Fprint(w, partialXML("clone_draft_confirm",
				`<button id="j_idt90" class="ui-confirmdialog-yes">Yes</button>`))
		case "j_idt90":
			f.cloned = true
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><partial-response><redirect url="/draftdetail.jsf?id=9"></redirect></partial-response>`)
		case "mainForm:drafts":
			f.renamedTo = r.FormValue("mainForm:drafts:1:name")
			fmt.Fprint(w, partialXML("mainForm:drafts", "<div>ok</div>"))
		case "mainForm:drafts:1:name":
			f.changeEventTo = r.FormValue("mainForm:drafts:1:name")
			fmt.Fprint(w, partialXML())
		default:
			t.Errorf("unexpected catalog partial source %q", src)
			http.Error(w, "unexpected source", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/draftdetail.jsf", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, detailPage)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		switch src := r.FormValue("javax.faces.source"); src {
		case "mainForm:editAddr":
			fmt.Fprint(w, partialXML("addressDialog:addressForm:addressTable", addressDialog))
		case "addressDialog:addressForm:pick":
			f.selectedRow = r.FormValue("addressDialog:addressForm:addressTable_selection")
			fmt.Fprint(w, partialXML())
		case "mainForm:j_idt140":
			f.refreshed = true
			fmt.Fprint(w, partialXML("mainForm:draftInfo", "<div>Depot A, Springfield</div>"))
		default:
			t.Errorf("unexpected detail partial source %q", src)
			http.Error(w, "unexpected source", http.StatusBadRequest)
		}
	})
	return mux
}

func TestReplicateFullSequence(t *testing.T) {
	remote := &fakeRemote{}
	ts := httptest.NewServer(remote.handler(t))
	defer ts.Close()

	c, err := jsf.NewClient(ts.URL, "shipbot-test", model.Credentials{Email: "ops@example.com"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	seq := New(c, nil)
	seq.Now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }

	result, err := seq.Replicate(context.Background(), model.WatchEntry{
		Key:    origKey,
		Name:   "FBA Jan",
		Origin: "Depot A, Springfield",
	})
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}

	if result.Created != cloneKey {
		t.Fatalf("created = %q, want %q", result.Created, cloneKey)
	}
	wantName := "FBA Jan 02/01 15:04:05"
	if result.Name != wantName {
		t.Fatalf("name = %q, want %q", result.Name, wantName)
	}
	if result.Origin != "Depot A, Springfield" {
		t.Fatalf("origin = %q", result.Origin)
	}
	if remote.selectedRow != "7" {
		t.Fatalf("address row selected = %q, want 7", remote.selectedRow)
	}
	if !remote.refreshed {
		t.Fatalf("address refresh control never invoked")
	}
	if remote.renamedTo != wantName || remote.changeEventTo != wantName {
		t.Fatalf("rename requests carried %q / %q", remote.renamedTo, remote.changeEventTo)
	}
}

func TestReplicateMissingDraftFailsGracefully(t *testing.T) {
	remote := &fakeRemote{}
	ts := httptest.NewServer(remote.handler(t))
	defer ts.Close()

	c, err := jsf.NewClient(ts.URL, "shipbot-test", model.Credentials{Email: "ops@example.com"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	seq := New(c, nil)
	_, err = seq.Replicate(context.Background(), model.WatchEntry{Key: "99/99/99 00:00:00", Name: "Ghost"})
	if err == nil {
		t.Fatalf("expected stale key to fail")
	}
	if remote.cloned {
		t.Fatalf("must not clone anything for a stale key")
	}
}
