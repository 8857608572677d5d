package observability

import (
	"github.com/gin-gonic/gin"
)

// Origin identifies the client behind a request in lifecycle events.
type Origin struct {
	DeviceID  string
	RequestID string
	IP        string
}

// OriginOf reads the device header, the request id assigned by the request
// id middleware (or sent by the caller) and the client address resolved by gin.
func OriginOf(c *gin.Context) Origin {
	requestID := c.GetString("request_id")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-ID")
	}
	return Origin{
		DeviceID:  c.GetHeader("X-Device-Id"),
		RequestID: requestID,
		IP:        c.ClientIP(),
	}
}
