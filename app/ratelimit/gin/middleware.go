package ginratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mpraski/quota/app/ratelimit"
	log "github.com/sirupsen/logrus"
)

// Middleware enforces rules for a gin route. Rate limit headers are set on
// every evaluated response, rejections carry Retry-After.
func Middleware(e ratelimit.Evaluator, rules ...ratelimit.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(rules) == 0 {
			c.Next()
			return
		}

		rs, err := ratelimit.Requests(c.Request, rules)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid rate limit key")
			return
		}

		d, err := e.EvaluateAll(c.Request.Context(), rs...)
		if err != nil {
			log.WithError(err).WithField("path", c.FullPath()).Error("rate limit evaluation failed")
			respondError(c, http.StatusInternalServerError, "rate limiter unavailable")

			return
		}

		ratelimit.WriteHeaders(c.Writer.Header(), d)

		if !d.Success {
			c.Header(ratelimit.HeaderRetryAfter, strconv.FormatInt(ratelimit.RetryAfterSeconds(d, time.Now()), 10))
			respondError(c, http.StatusTooManyRequests, "rate limit exceeded")

			return
		}

		c.Next()
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "timestamp": time.Now().UTC().Format(time.RFC3339)})
}
