package common

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashError   = "error"
)

var flashLevels = []string{FlashSuccess, FlashInfo, FlashError}

type FlashMessage struct {
	Level   string
	Message string
}

// Flash queues a message for the next rendered page.
func Flash(c *gin.Context, level, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, level)
	if err := session.Save(); err != nil {
		Log.WithError(err).Warn("failed to save flash message")
	}
}

// Flashes pops every queued message.
func Flashes(c *gin.Context) []FlashMessage {
	session := sessions.Default(c)
	var messages []FlashMessage
	for _, level := range flashLevels {
		for _, m := range session.Flashes(level) {
			if s, ok := m.(string); ok {
				messages = append(messages, FlashMessage{Level: level, Message: s})
			}
		}
	}
	if len(messages) > 0 {
		if err := session.Save(); err != nil {
			Log.WithError(err).Warn("failed to save session after reading flashes")
		}
	}
	return messages
}
