package live

import (
	"fmt"
	"net/url"
)

// ResolveEndpoint derives the websocket endpoint for the live channel from the
// configured API origin and, when known, the origin the application is served
// from.
//
// The API origin's scheme is translated (http→ws, https→wss) and its host kept,
// except that a page origin differing from the API origin wins unless the API
// origin carries an explicit port. Deployments that front the API through a
// reverse proxy route /ws on the page origin; a raw host:port in the API origin
// signals a direct backend address that must be targeted as-is.
func ResolveEndpoint(apiOrigin, pageOrigin string) (string, error) {
	api, err := url.Parse(apiOrigin)
	if err != nil {
		return "", fmt.Errorf("parse api origin: %w", err)
	}
	if api.Scheme == "" || api.Host == "" {
		return "", fmt.Errorf("api origin %q is not an absolute URL", apiOrigin)
	}

	scheme, host := api.Scheme, api.Host

	if api.Port() == "" && pageOrigin != "" {
		page, err := url.Parse(pageOrigin)
		if err != nil {
			return "", fmt.Errorf("parse page origin: %w", err)
		}
		if page.Host != "" && page.Host != api.Host {
			scheme, host = page.Scheme, page.Host
		}
	}

	return fmt.Sprintf("%s://%s/ws", wsScheme(scheme), host), nil
}

func wsScheme(httpScheme string) string {
	if httpScheme == "https" {
		return "wss"
	}
	return "ws"
}
