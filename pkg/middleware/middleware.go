package middleware

import (
	"context"
	"net/http"

	"github.com/Maruda-Patryk/api-library/pkg/auth"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// StaffLookup resolves a card number to its staff flag. ok is false for unknown cards.
type StaffLookup func(ctx context.Context, cardNumber string) (isStaff, ok bool, err error)

// AuthContext puts the caller's card number and staff flag into the request context.
// Requests without the header pass through anonymously.
func AuthContext(lookup StaffLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			card := req.Header.Get(auth.XCardNumberHeader)
			if card == "" {
				return next(c)
			}
			isStaff, ok, err := lookup(req.Context(), card)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
			}
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown card number")
			}
			c.SetRequest(req.WithContext(auth.SetAuthContext(req.Context(), card, isStaff)))
			return next(c)
		}
	}
}

func StaffOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.GetCardNumber(ctx); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		if !auth.IsStaff(ctx) {
			return echo.NewHTTPError(http.StatusForbidden, "staff only")
		}
		return next(c)
	}
}

func NewRateLimiter(rps rate.Limit) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rps))
}

func RequestLoggerConfig(log *zap.Logger) middleware.RequestLoggerConfig {
	log = log.Named("echo")
	return middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		HandleError:  true,
		LogError:     true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			if v.Error != nil {
				level = zapcore.ErrorLevel
			}
			log.Log(level, "request",
				zap.String("URI", v.URI),
				zap.String("Method", v.Method),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}
}
