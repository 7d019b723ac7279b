package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Envelope wraps every JSON reply. Clients rely on the error code being
// machine-readable; the message is display copy only.
type Envelope struct {
	Data  interface{} `json:"data"`
	Error *APIError   `json:"error,omitempty"`
	Meta  Meta        `json:"metadata"`
}

// APIError carries a stable code plus optional per-field detail from
// payload validation.
type APIError struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Meta carries the request ID for log correlation.
type Meta struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Success writes data under the standard envelope.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Envelope{Data: data, Meta: meta(c)})
}

// Fail writes an error envelope for the given code.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, Envelope{
		Error: &APIError{Code: code, Message: GetMessage(code)},
		Meta:  meta(c),
	})
}

// FailWithFields is Fail plus field-level validation detail.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, Envelope{
		Error: &APIError{Code: code, Message: GetMessage(code), Fields: fields},
		Meta:  meta(c),
	})
}

// AbortFail stops the middleware chain and writes an error envelope.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, Envelope{
		Error: &APIError{Code: code, Message: GetMessage(code)},
		Meta:  meta(c),
	})
}

func meta(c *gin.Context) Meta {
	id, _ := c.Get(ContextKeyRequestID)
	reqID, ok := id.(string)
	if !ok || reqID == "" {
		// Route registered without the request-ID middleware.
		reqID = uuid.New().String()
	}
	return Meta{
		RequestID: reqID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
