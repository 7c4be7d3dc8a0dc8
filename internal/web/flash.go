package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const flashCookie = "faceattend_flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// addFlash queues a message for the next page, which may be this response.
func addFlash(c *gin.Context, category, message string) {
	flashes := append(pendingFlashes(c), Flash{Category: category, Message: message})
	c.Set(flashCookie, flashes)
	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, base64.RawURLEncoding.EncodeToString(raw), 60, "/", "", false, true)
}

// popFlashes returns the pending messages and clears the cookie.
func popFlashes(c *gin.Context) []Flash {
	flashes := pendingFlashes(c)
	if len(flashes) > 0 {
		c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	}
	c.Set(flashCookie, []Flash(nil))
	return flashes
}

func pendingFlashes(c *gin.Context) []Flash {
	if v, ok := c.Get(flashCookie); ok {
		f, _ := v.([]Flash)
		return f
	}
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if json.Unmarshal(data, &flashes) != nil {
		return nil
	}
	return flashes
}
