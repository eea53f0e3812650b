package oauth2

import (
	"net/url"
	"strings"
)

// Redirect describes where the user-agent should be sent after the authorize
// or decision step. Parameters travel in the query string for the code flow
// and in the URI fragment whenever tokens are returned front-channel: the
// fragment is never sent back to servers on follow-up navigation, keeping
// tokens out of request logs.
type Redirect struct {
	TargetURI  string
	Params     url.Values
	InFragment bool
}

// URL assembles the full redirect URL.
func (r *Redirect) URL() string {
	encoded := r.Params.Encode()
	if encoded == "" {
		return r.TargetURI
	}
	sep := "?"
	if r.InFragment {
		sep = "#"
	} else if strings.Contains(r.TargetURI, "?") {
		sep = "&"
	}
	return r.TargetURI + sep + encoded
}

// ErrorRedirect builds the redirect delivering a protocol error to a client
// whose redirect_uri has already been validated. The state is echoed so the
// client can correlate the failure with its request.
func ErrorRedirect(targetURI, state string, inFragment bool, oerr *Error) *Redirect {
	params := url.Values{}
	params.Set("error", string(oerr.Code))
	if oerr.Description != "" {
		params.Set("error_description", oerr.Description)
	}
	if state != "" {
		params.Set("state", state)
	}
	return &Redirect{TargetURI: targetURI, Params: params, InFragment: inFragment}
}
