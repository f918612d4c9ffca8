// SPDX-License-Identifier: MIT

package pluto

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// AppVersion scrapes the web player page for its appVersion meta tag.
// Exactly one non-empty value must be present.
func (c *Client) AppVersion(ctx context.Context) (string, error) {
	h := http.Header{}
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("User-Agent", browserUserAgent)

	body, err := c.get(ctx, "app_version", c.cfg.SiteURL, nil, h)
	if err != nil {
		return "", err
	}

	versions := ExtractAppVersions(body)
	switch len(versions) {
	case 0:
		return "", fmt.Errorf("%w: no appVersion meta tag", ErrAppVersion)
	case 1:
		return versions[0], nil
	default:
		return "", fmt.Errorf("%w: %d appVersion values", ErrAppVersion, len(versions))
	}
}

// ExtractAppVersions returns the content of every <meta name="appVersion">
// element in page, in document order.
func ExtractAppVersions(page []byte) []string {
	var out []string
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "meta" {
				continue
			}
			var name, content string
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					name = a.Val
				case "content":
					content = strings.TrimSpace(a.Val)
				}
			}
			if name == "appVersion" && content != "" {
				out = append(out, content)
			}
		}
	}
}

type startResponse struct {
	SessionToken string `json:"sessionToken"`
}

// StartSession exchanges the app version and a client id for a session token.
func (c *Client) StartSession(ctx context.Context, appVersion, clientID string) (string, error) {
	q := c.localeParams()
	q.Set("appName", "web")
	q.Set("appVersion", appVersion)
	q.Set("clientID", clientID)
	q.Set("clientModelNumber", ClientModelNumber)

	var resp startResponse
	if err := c.getJSON(ctx, "start_session", c.cfg.BootURL, q, nil, &resp); err != nil {
		return "", err
	}
	token := strings.TrimSpace(resp.SessionToken)
	if token == "" {
		return "", wrapError("start_session", fmt.Errorf("empty sessionToken"), http.StatusOK, nil)
	}
	return token, nil
}
