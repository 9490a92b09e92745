// Package recovery turns a password-reset link into a session that may change
// the password, and drives the password replacement.
package recovery

import (
	"net/url"
	"strings"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

const (
	paramType    = "type"
	paramAccess  = "access_token"
	paramRefresh = "refresh_token"
)

// Extract reads a recovery intent from u. Query parameters win; the fragment
// is consulted only when the query lacks any of the three fields. Sources are
// never merged.
func Extract(u *url.URL) (entity.RecoveryIntent, bool) {
	if u == nil {
		return entity.RecoveryIntent{}, false
	}
	intent := fromValues(u.Query(), entity.ProvenanceQuery)
	if !complete(intent) {
		intent = fromValues(fragmentValues(u), entity.ProvenanceFragment)
	}
	if intent.Type != entity.RecoveryType || intent.AccessToken == "" || intent.RefreshToken == "" {
		return entity.RecoveryIntent{}, false
	}
	return intent, true
}

// ExtractString is Extract for a raw link. Unparseable links carry no intent.
func ExtractString(raw string) (entity.RecoveryIntent, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return entity.RecoveryIntent{}, false
	}
	return Extract(u)
}

func fragmentValues(u *url.URL) url.Values {
	frag := strings.TrimPrefix(u.EscapedFragment(), "#")
	// Malformed pairs are dropped; the well-formed ones are still usable.
	v, _ := url.ParseQuery(frag)
	return v
}

func fromValues(v url.Values, p entity.Provenance) entity.RecoveryIntent {
	return entity.RecoveryIntent{
		Type:         v.Get(paramType),
		AccessToken:  v.Get(paramAccess),
		RefreshToken: v.Get(paramRefresh),
		Provenance:   p,
	}
}

func complete(i entity.RecoveryIntent) bool {
	return i.Type != "" && i.AccessToken != "" && i.RefreshToken != ""
}
