package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ServeMedia streams a stored attachment. The route is public; the HMAC
// signature minted by the Signer is the access grant.
func (h Handlers) ServeMedia(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		respondError(c, http.StatusBadRequest, classInvalid, "object key required")
		return
	}
	exp, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, classInvalid, "exp required")
		return
	}

	if err := h.Signer.Verify(key, exp, c.Query("sig")); err != nil {
		failWith(c, err)
		return
	}

	blob, err := h.Blobs.Get(c.Request.Context(), key)
	if err != nil {
		failWith(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+blob.Filename+`"`)
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}
