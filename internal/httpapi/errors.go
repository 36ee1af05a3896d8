package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"omnichat-platform/internal/call"
	"omnichat-platform/internal/chat"
	"omnichat-platform/internal/connector"
	"omnichat-platform/internal/storage"
)

// errorBody is the uniform error payload for the staff API.
type errorBody struct {
	Timestamp      time.Time `json:"timestamp"`
	Classification string    `json:"classification"`
	Message        string    `json:"message"`
	Path           string    `json:"path"`
}

const (
	classNotFound    = "NOT_FOUND"
	classInvalid     = "INVALID_ARGUMENT"
	classConflict    = "CONFLICT"
	classTransport   = "TRANSPORT_FAILURE"
	classForbidden   = "FORBIDDEN"
	classGone        = "LINK_EXPIRED"
	classInternal    = "INTERNAL"
)

func respondError(c *gin.Context, status int, classification, msg string) {
	c.AbortWithStatusJSON(status, errorBody{
		Timestamp:      time.Now().UTC(),
		Classification: classification,
		Message:        msg,
		Path:           c.Request.URL.Path,
	})
}

// failWith maps service errors onto the error taxonomy. Unknown errors stay
// opaque: internals never leak to clients.
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound),
		errors.Is(err, call.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		respondError(c, http.StatusNotFound, classNotFound, err.Error())
	case errors.Is(err, chat.ErrInvalidArgument),
		errors.Is(err, call.ErrInvalidArgument),
		errors.Is(err, storage.ErrInvalidArgument),
		errors.Is(err, connector.ErrUnsupportedChannel),
		errors.Is(err, chat.ErrMissingRecipient):
		respondError(c, http.StatusBadRequest, classInvalid, err.Error())
	case errors.Is(err, call.ErrTerminalState):
		respondError(c, http.StatusConflict, classConflict, err.Error())
	case errors.Is(err, connector.ErrTransport):
		respondError(c, http.StatusBadGateway, classTransport, "platform delivery failed")
	case errors.Is(err, storage.ErrBadSignature):
		respondError(c, http.StatusForbidden, classForbidden, "invalid media signature")
	case errors.Is(err, storage.ErrLinkExpired):
		respondError(c, http.StatusGone, classGone, "media link expired")
	default:
		respondError(c, http.StatusInternalServerError, classInternal, "internal error")
	}
}
