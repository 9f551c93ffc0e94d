package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

// Meta is the per-request metadata merged into the response envelope.
type Meta map[string]interface{}

// WithResponseMeta attaches an empty Meta to every request and stamps processing_time_ms
// once the handler chain returns.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		meta := Meta{}
		c.Set(responseMetaKey, meta)
		c.Next()
		if _, ok := meta["processing_time_ms"]; !ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// SetMeta records one metadata entry for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if meta := metaFor(c, true); meta != nil {
		meta[key] = value
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// ExtractMeta returns the metadata stored on the context as a plain map.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	return metaFor(c, false)
}

func metaFor(c *gin.Context, create bool) Meta {
	if c == nil {
		return nil
	}
	if value, ok := c.Get(responseMetaKey); ok {
		if meta, ok := value.(Meta); ok {
			return meta
		}
	}
	if !create {
		return nil
	}
	meta := Meta{}
	c.Set(responseMetaKey, meta)
	return meta
}
