package jsf

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/strategy"
	"github.com/pkg/errors"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"

	"golang.org/x/net/html"
)

// Remote page paths.
const (
	LoginPath = "/login.jsf"
	DraftPath = "/draft.jsf"
	PlanPath  = "/draftplan.jsf"

	// MainFormID is the id of the form every full page renders; form state
	// round-trips happen against it.
	MainFormID = "mainForm"
)

const requestTimeout = 60 * time.Second

// Client is one tenant's authenticated session. It owns the cookie jar and
// threads the server view token across dependent requests. Request chains
// are not safe for concurrent use, callers serialize those per tenant;
// credential rotation and login may arrive from another goroutine and are
// synchronized here. A login that resets the jar under a running chain only
// expires that chain, which WithSession already recovers from.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	logger    *log.Logger

	credsMu sync.Mutex
	creds   model.Credentials

	// authMu keeps two logins from interleaving their jar resets.
	authMu sync.Mutex

	// OnAuthenticated runs after every successful login; the engine hooks
	// account discovery here since login repopulates the active-account view.
	OnAuthenticated func(ctx context.Context) error
}

func NewClient(baseURL, userAgent string, creds model.Credentials, logger *log.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse base url %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}
	return &Client{
		base:      base,
		http:      &http.Client{Jar: jar, Timeout: requestTimeout},
		userAgent: userAgent,
		creds:     creds,
		logger:    logger,
	}, nil
}

func (c *Client) SetPassword(password string) {
	c.credsMu.Lock()
	c.creds.Password = password
	c.credsMu.Unlock()
}

func (c *Client) Email() string {
	c.credsMu.Lock()
	defer c.credsMu.Unlock()
	return c.creds.Email
}

func (c *Client) credentials() model.Credentials {
	c.credsMu.Lock()
	defer c.credsMu.Unlock()
	return c.creds
}

// Resolve turns a page-relative reference into an absolute URL, unescaping
// the &amp; entities redirect instructions arrive with.
func (c *Client) Resolve(ref string) string {
	ref = strings.ReplaceAll(ref, "&amp;", "&")
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

type Page struct {
	URL  *url.URL
	Body string
	Doc  *Document
}

func (p *Page) OnLoginPage() bool {
	return p != nil && p.URL != nil && strings.Contains(p.URL.Path, LoginPath)
}

func (c *Client) newRequest(ctx context.Context, method, ref string, body io.Reader, referer string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.Resolve(ref), body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	if referer != "" {
		req.Header.Set("Referer", c.Resolve(referer))
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*Page, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "transport")
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	page := &Page{URL: res.Request.URL, Body: string(raw)}
	if doc, parseErr := ParseString(page.Body); parseErr == nil {
		page.Doc = doc
	}
	return page, nil
}

// GetPage fetches a page without session checking (used for the login page).
func (c *Client) GetPage(ctx context.Context, ref, referer string) (*Page, error) {
	req, err := c.newRequest(ctx, http.MethodGet, ref, nil, referer)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// GetSessionPage fetches a page that requires an authenticated session;
// landing on the login page means the session expired mid-chain.
func (c *Client) GetSessionPage(ctx context.Context, ref, referer string) (*Page, error) {
	page, err := c.GetPage(ctx, ref, referer)
	if err != nil {
		return nil, err
	}
	if page.OnLoginPage() {
		return nil, ErrSessionExpired
	}
	return page, nil
}

// PostForm issues a regular (non-ajax) form POST and follows redirects.
func (c *Client) PostForm(ctx context.Context, ref string, form url.Values, referer string) (*Page, error) {
	req, err := c.newRequest(ctx, http.MethodPost, ref, strings.NewReader(form.Encode()), referer)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// Partial issues a partial-update POST. The caller supplies the complete
// form payload including the current view token; the returned Partial
// carries the rotated token for the next request in the chain.
func (c *Client) Partial(ctx context.Context, ref string, form url.Values, referer string) (*Partial, error) {
	req, err := c.newRequest(ctx, http.MethodPost, ref, strings.NewReader(form.Encode()), referer)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Faces-Request", "partial/ajax")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	page, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if page.OnLoginPage() {
		return nil, ErrSessionExpired
	}
	return ParsePartial(page.Body)
}

// Authenticate clears the session and performs a fresh login. Success is
// judged by where the remote lands us, not by status code: it answers 200
// for both outcomes and flags failures with an error marker on the login
// page itself.
func (c *Client) Authenticate(ctx context.Context) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	creds := c.credentials()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return errors.Wrap(err, "reset cookie jar")
	}
	c.http.Jar = jar

	page, err := c.GetPage(ctx, LoginPath, "")
	if err != nil {
		return err
	}
	if page.Doc == nil {
		return errors.Wrap(ErrProtocol, "login page did not parse")
	}
	viewState := FindNode(page.Doc.Root(), func(n *html.Node) bool {
		return IsElement(n, "input") && Attr(n, "name") == ParamViewState
	})
	if viewState == nil {
		return errors.Wrap(ErrProtocol, "login page carries no view token")
	}
	submit := FindNode(page.Doc.Root(), func(n *html.Node) bool {
		return IsElement(n, "button") && Attr(n, "id") != ""
	})
	if submit == nil {
		return errors.Wrap(ErrProtocol, "login page carries no submit control")
	}

	form := url.Values{}
	form.Set(MainFormID, MainFormID)
	form.Set(MainFormID+":email", creds.Email)
	form.Set(MainFormID+":password", creds.Password)
	form.Set(Attr(submit, "id"), "")
	form.Set(ParamViewState, Attr(viewState, "value"))
	result, err := c.PostForm(ctx, LoginPath, form, LoginPath)
	if err != nil {
		return err
	}
	if result.OnLoginPage() && strings.Contains(result.Body, ErrorMarker) {
		return ErrAuth
	}
	if c.logger != nil {
		c.logger.Printf("login ok for %s (landed on %s)", creds.Email, result.URL.Path)
	}
	if c.OnAuthenticated != nil {
		if err := c.OnAuthenticated(ctx); err != nil && c.logger != nil {
			c.logger.Printf("post-login discovery: %v", err)
		}
	}
	return nil
}

// WithSession runs one logical step, re-authenticating and restarting the
// step from scratch when the session expired mid-chain. Prior handles and
// tokens are invalid after expiry, so the step is never resumed mid-way.
func (c *Client) WithSession(ctx context.Context, step func() error) error {
	var lastErr error
	_ = retry.Retry(func(attempt uint) error {
		if attempt > 0 {
			if authErr := c.Authenticate(ctx); authErr != nil {
				lastErr = authErr
				return nil
			}
		}
		lastErr = step()
		if lastErr != nil && errors.Is(lastErr, ErrSessionExpired) {
			return lastErr
		}
		return nil
	}, strategy.Limit(2))
	return lastErr
}
