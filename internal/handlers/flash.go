package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

const flashCookie = "tom_messages"

// addFlash queues a message for the next response that pops messages.
func addFlash(c *gin.Context, message string) {
	messages := peekFlash(c)
	messages = append(messages, message)

	data, err := json.Marshal(messages)
	if err != nil {
		return
	}
	c.SetCookie(flashCookie, string(data), 300, "/", "", false, true)
}

// popFlash returns the queued messages and clears them.
func popFlash(c *gin.Context) []string {
	messages := peekFlash(c)
	if len(messages) > 0 {
		c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	}
	return messages
}

func peekFlash(c *gin.Context) []string {
	messages := []string{}
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return messages
	}
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return []string{}
	}
	return messages
}
