package sources

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kerbaras/mangafetch/pkg/data"
	"github.com/kerbaras/mangafetch/pkg/utils"
)

// ResolutionState is the furthest step a page resolution reached.
type ResolutionState int

const (
	StateInit ResolutionState = iota
	StateAccessChecked
	StateTokenExtracted
	StateCaptchaBypassed
	StateCaptchaSkipped
	StateFormSubmitted
	StatePagesResolved
	StateFailed
)

func (s ResolutionState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAccessChecked:
		return "ACCESS_CHECKED"
	case StateTokenExtracted:
		return "TOKEN_EXTRACTED"
	case StateCaptchaBypassed:
		return "CAPTCHA_BYPASSED"
	case StateCaptchaSkipped:
		return "CAPTCHA_SKIPPED"
	case StateFormSubmitted:
		return "FORM_SUBMITTED"
	case StatePagesResolved:
		return "PAGES_RESOLVED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("ResolutionState(%d)", int(s))
	}
}

const (
	captchaNonce     = "e732af2390628a21d8b7500e621b1493c28d9330b415e88f27b8b4e2f9a440a3"
	instanceAlphabet = "234567abcdefghijklmnopqrstuvwxyz"
	instanceIDLength = 12

	accessDeniedSelector = ".story_view_permisstion p.yellowcolor"
	pageSelector         = "div.cur p[data-src]"
	imageEndpoint        = "/chaps/img"
)

var (
	expiryRe = regexp.MustCompile(`expire:(\d+)`)
	tokenRe  = regexp.MustCompile(`token:"([0-9a-f.]+)"`)
)

// Resolution records one run of the image resolution handshake.
type Resolution struct {
	State      ResolutionState
	FailedAt   ResolutionState // Last state reached before failing
	Steps      []ResolutionState
	MangaID    string
	ChapterID  string
	Expiry     string
	Token      string
	CaptchaKey string
	Form       url.Values
	Pages      []data.Page
	Err        error
}

func (r *Resolution) advance(next ResolutionState) {
	r.State = next
	r.Steps = append(r.Steps, next)
}

// Reached reports whether the resolution passed through state.
func (r *Resolution) Reached(state ResolutionState) bool {
	return slices.Contains(r.Steps, state)
}

func (r *Resolution) fail(err error) *Resolution {
	r.FailedAt = r.State
	r.State = StateFailed
	r.Steps = append(r.Steps, StateFailed)
	r.Err = err
	return r
}

// challenge resolves chapter images behind the expiry/token/captcha
// handshake. It keeps no state between calls.
type challenge struct {
	api        *utils.API
	logger     *slog.Logger
	instanceID func() (string, error)
}

func newInstanceID() (string, error) {
	buf := make([]byte, instanceIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = instanceAlphabet[int(b)%len(instanceAlphabet)]
	}
	return string(buf), nil
}

func (c *challenge) referer() string {
	return c.api.BaseURL() + "/"
}

// resolve runs every step for chapterKey. Cancellation of ctx is ignored
// once started; each request is still bounded by the client timeout.
func (c *challenge) resolve(ctx context.Context, chapterKey string) *Resolution {
	ctx = context.WithoutCancel(ctx)
	res := &Resolution{State: StateInit, Steps: []ResolutionState{StateInit}}
	log := c.logger.With("chapter", chapterKey)

	resp, err := c.api.Get(ctx, chapterKey, nil, utils.PageHeaders(c.referer()))
	if err != nil {
		return res.fail(upstreamError("load chapter", err))
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return res.fail(extraction("chapter document: %v", err))
	}
	if denied := doc.Find(accessDeniedSelector).First(); denied.Length() > 0 {
		return res.fail(fmt.Errorf("%w: %s", ErrAccessDenied, strings.TrimSpace(denied.Text())))
	}
	res.advance(StateAccessChecked)

	text := resp.Text()
	expiry := expiryRe.FindStringSubmatch(text)
	token := tokenRe.FindStringSubmatch(text)
	if expiry == nil || token == nil {
		return res.fail(extraction("expiry or token not found"))
	}
	res.Expiry, res.Token = expiry[1], token[1]

	res.MangaID, res.ChapterID, err = chapterIdentifiers(resp.URL)
	if err != nil {
		return res.fail(err)
	}

	elements := doc.Find(pageSelector)
	firstSrc := ""
	if elements.Length() > 0 {
		firstSrc, _ = elements.First().Attr("data-src")
	}
	if firstSrc == "" {
		return res.fail(extraction("filename of first image not found"))
	}
	res.advance(StateTokenExtracted)

	iid, err := c.instanceID()
	if err != nil {
		return res.fail(fmt.Errorf("failed to generate instance id: %w", err))
	}
	res.Form = url.Values{
		"iid":        {"_0_" + iid},
		"ipoi":       {"1"},
		"sid":        {res.ChapterID},
		"cid":        {res.MangaID},
		"expiry":     {res.Expiry},
		"token":      {res.Token},
		"src":        {"/" + lastSegment(firstSrc)},
		"doing_ajax": {"1"},
	}

	if key, ok := between(text, "action_ebe_captcha('", "')"); ok && key != "" {
		res.CaptchaKey = key
		if err := c.bypassCaptcha(ctx, key, res.Form); err != nil {
			log.Warn("captcha bypass failed, continuing without it", "error", err)
			res.advance(StateCaptchaSkipped)
		} else {
			res.advance(StateCaptchaBypassed)
		}
	} else {
		log.Debug("no captcha key in chapter document")
		res.advance(StateCaptchaSkipped)
	}

	imgResp, err := c.api.PostForm(ctx, imageEndpoint, res.Form, utils.AjaxHeaders(c.referer()))
	if err != nil {
		return res.fail(fmt.Errorf("%w: %w", ErrUpstreamResponse, err))
	}
	res.advance(StateFormSubmitted)

	var payload struct {
		Media string `json:"media"`
		Src   string `json:"src"`
	}
	if err := json.Unmarshal(imgResp.Body, &payload); err != nil {
		return res.fail(fmt.Errorf("%w: decode image response: %w", ErrUpstreamResponse, err))
	}
	if payload.Media == "" || payload.Src == "" {
		return res.fail(fmt.Errorf("%w: image response missing media or src", ErrUpstreamResponse))
	}

	base := imageBase(payload.Media, payload.Src)
	pages := make([]data.Page, 0, elements.Length())
	elements.Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("data-src")
		page := data.NewPage(i, src)
		page.ImageURL = base + lastSegment(src)
		page.Advance(data.PageReady)
		pages = append(pages, page)
	})
	res.Pages = pages
	res.advance(StatePagesResolved)
	log.Debug("pages resolved", "pages", len(pages), "state", res.State)
	return res
}

// bypassCaptcha posts a random nonce to the captcha endpoint and merges
// every named input of the reply into form.
func (c *challenge) bypassCaptcha(ctx context.Context, key string, form url.Values) error {
	ref := "/" + strings.TrimPrefix(key, "/") + "?_wpnonce=" + captchaNonce
	nse := strconv.FormatFloat(mathrand.Float64(), 'f', -1, 64)
	resp, err := c.api.PostForm(ctx, ref, url.Values{"nse": {nse}}, utils.AjaxHeaders(c.referer()))
	if err != nil {
		return err
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return err
	}
	doc.Find("input[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		value, _ := s.Attr("value")
		form.Set(name, value)
	})
	return nil
}

// chapterIdentifiers reads the manga id and chapter id from the final
// chapter URL, e.g. /truyen/<manga>/<chapter>-slug.
func chapterIdentifiers(u *url.URL) (string, string, error) {
	if u == nil {
		return "", "", extraction("missing chapter url")
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[len(segments)-1] == "" || segments[len(segments)-2] == "" {
		return "", "", extraction("cannot read ids from %q", u.Path)
	}
	mangaID := segments[len(segments)-2]
	chapterID, _, _ := strings.Cut(segments[len(segments)-1], "-")
	return mangaID, chapterID, nil
}

// imageBase builds https://<media>/<dir>/ where dir is the part of src
// before its last "//". Without "//" the last two components are dropped.
func imageBase(media, src string) string {
	media = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(media, "https://"), "http://"), "/")

	var dir string
	if parts := strings.Split(src, "//"); len(parts) >= 2 {
		dir = parts[len(parts)-2]
	} else {
		segments := strings.Split(strings.Trim(src, "/"), "/")
		if len(segments) > 2 {
			dir = strings.Join(segments[:len(segments)-2], "/")
		}
	}
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return "https://" + media + "/"
	}
	return "https://" + media + "/" + dir + "/"
}
