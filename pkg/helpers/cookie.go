package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// CookieManager writes the HttpOnly session cookies for browser clients.
type CookieManager struct {
	Domain string
	Secure bool
}

func NewCookieManager(domain string, secure bool) *CookieManager {
	return &CookieManager{Domain: domain, Secure: secure}
}

func (m *CookieManager) SetPair(c *gin.Context, access string, aexp time.Time, refresh string, rexp time.Time) {
	m.set(c, AccessCookie, access, maxAgeFrom(aexp))
	m.set(c, RefreshCookie, refresh, maxAgeFrom(rexp))
}

func (m *CookieManager) Clear(c *gin.Context) {
	m.set(c, AccessCookie, "", -1)
	m.set(c, RefreshCookie, "", -1)
}

func (m *CookieManager) set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", m.Domain, m.Secure, true)
}

func maxAgeFrom(exp time.Time) int {
	return max(int(time.Until(exp).Seconds()), 0)
}
