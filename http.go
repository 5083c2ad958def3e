package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-session-auth/middleware/sessionware"
)

// TextCodeInternal is sent for every error the client must not see
const TextCodeInternal = "INTERNAL_ERROR"

// TextCodeInvalidBody is sent when the request body could not be decoded
const TextCodeInvalidBody = "INVALID_BODY"

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error    string         `json:"error"`
	TextCode string         `json:"textCode,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// ProtectedRoute returns the middleware that resolves the session token
// into a Principal stored under DefaultContextKey.
func (c *Controller) ProtectedRoute() router.MiddlewareFunc {
	return sessionware.New(sessionware.Config[*Principal]{
		Authenticate:    c.service.Authenticate,
		ContextKey:      DefaultContextKey,
		TokenLookup:     c.tokenLookup(),
		ContextEnricher: WithPrincipal,
		ErrorHandler: func(ctx router.Context, err error) error {
			c.logger.Debug("request not authenticated", "path", ctx.Path(), "error", err)
			return c.renderError(ctx, ErrUnauthenticated)
		},
	})
}

func (c *Controller) tokenLookup() string {
	if c.cfg.Transport == TransportCookie {
		return "cookie:" + c.cfg.CookieName + ",header:" + router.HeaderAuthorization
	}
	return "header:" + router.HeaderAuthorization
}

func (c *Controller) setCookieToken(ctx router.Context, val string) {
	if c.cfg.Transport != TransportCookie {
		return
	}
	ctx.Cookie(&router.Cookie{
		Name:     c.cfg.CookieName,
		Value:    val,
		Expires:  c.clock().Add(c.cfg.CookieDuration),
		HTTPOnly: true,
		Secure:   c.cfg.CookieSecure,
		SameSite: "Lax",
	})
}

func (c *Controller) cookieDel(ctx router.Context) {
	if c.cfg.Transport != TransportCookie {
		return
	}
	ctx.Cookie(&router.Cookie{
		Name:     c.cfg.CookieName,
		Value:    "",
		Expires:  c.clock().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   c.cfg.CookieSecure,
		SameSite: "Lax",
	})
}

// renderError writes err as JSON. Errors without a client facing code are
// reported as a generic 500.
func (c *Controller) renderError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr.Code == 0 || richErr.Code >= http.StatusInternalServerError {
		c.logger.Error("unexpected error", "path", ctx.Path(), "method", ctx.Method(), "error", err)
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:    "internal server error",
			TextCode: TextCodeInternal,
		})
	}

	if c.Debug {
		c.logger.Debug("request error",
			"error", richErr.Message,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	}

	resp := ErrorResponse{
		Error:    richErr.Message,
		TextCode: richErr.TextCode,
	}
	if richErr.Category == errors.CategoryValidation {
		if fields, ok := richErr.Metadata["fields"].(map[string]any); ok && len(fields) > 0 {
			resp.Fields = fields
		}
	}

	return ctx.JSON(richErr.Code, resp)
}

func invalidBody(err error) error {
	return errors.Wrap(err, errors.CategoryValidation, "request body could not be decoded").
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeInvalidBody)
}

func (c *Controller) logRequest(msg string, ctx router.Context, payload LogFielder, kv ...any) {
	args := []any{"path", ctx.Path(), "method", ctx.Method()}
	if payload != nil {
		if c.Debug {
			args = append(args, "request", print.MaybePrettyJSON(payload.LogFields()))
		} else {
			args = append(args, "request", payload.LogFields())
		}
	}
	c.logger.Info(msg, append(args, kv...)...)
}
