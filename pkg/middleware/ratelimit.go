package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/crm/pkg/config"
	"github.com/wyfcoding/crm/pkg/logger"
	"github.com/wyfcoding/crm/pkg/ratelimit"
)

// NewRateLimitPolicy 由配置构造分类限流规则，下单与其他写操作可单独配置
func NewRateLimitPolicy(cfg config.RateLimitConfig) ratelimit.Policy {
	return ratelimit.Policy{
		Default: ratelimit.PerSecond(cfg.QPS, cfg.Burst),
		Classes: map[ratelimit.Class]ratelimit.Limit{
			ratelimit.ClassOrder: ratelimit.PerSecond(cfg.Orders.QPS, cfg.Orders.Burst),
			ratelimit.ClassWrite: ratelimit.PerSecond(cfg.Writes.QPS, cfg.Writes.Burst),
		},
	}
}

// RateLimitMiddleware 按客户端 IP 与请求分类限流，限流器故障时放行。
// 需在路由匹配后执行，分类依赖 c.FullPath()。
func RateLimitMiddleware(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	policy := NewRateLimitPolicy(cfg)
	return func(c *gin.Context) {
		if !cfg.Enabled || limiter == nil {
			c.Next()
			return
		}

		class := ratelimit.Classify(c.Request.Method, c.FullPath())
		limit := policy.LimitFor(class)

		res, err := limiter.Allow(c.Request.Context(), ratelimit.Key(class, c.ClientIP()), limit)
		if err != nil {
			logger.Warn(c.Request.Context(), "Rate limiter unavailable, allowing request", "class", class, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Class", string(class))
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     "Too Many Requests",
				"retry_after": res.RetryAfter.String(),
			})
			return
		}

		c.Next()
	}
}
