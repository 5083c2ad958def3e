package auth

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Controller exposes the Service over go-router as a JSON API
type Controller struct {
	Debug   bool
	service *Service
	cfg     Config
	logger  Logger
	clock   Clock
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller) *Controller

// WithControllerLogger sets the request logger
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.logger = normalizeLogger(logger)
		return c
	}
}

// WithControllerDebug dumps request payloads and error details
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// WithControllerClock sets the clock used for cookie expiry
func WithControllerClock(clock Clock) ControllerOption {
	return func(c *Controller) *Controller {
		if clock != nil {
			c.clock = clock
		}
		return c
	}
}

// NewController creates the HTTP controller for service
func NewController(service *Service, opts ...ControllerOption) *Controller {
	if service == nil {
		panic("Missing Service in auth controller...")
	}

	c := &Controller{
		service: service,
		cfg:     service.Config(),
		logger:  service.logger,
		clock:   service.clock,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

// RegisterRoutes mounts the account routes on app, usually a /v1/users group
func RegisterRoutes[T any](app router.Router[T], controller *Controller) {
	protected := controller.ProtectedRoute()

	app.Post("/register", controller.Register).SetName("users.register")
	app.Post("/login", controller.Login).SetName("users.login")
	app.Patch("/token/refresh/:token", controller.Refresh).SetName("users.token.refresh")
	app.Patch("/verifyRegistration/:token", controller.VerifyRegistration).SetName("users.verify")
	app.Post("/resendVerification", controller.ResendVerification).SetName("users.verify.resend")
	app.Post("/forgotpassword", controller.ForgotPassword).SetName("users.password.forgot")
	app.Patch("/resetpassword/:token", controller.ResetPassword).SetName("users.password.reset")

	app.Post("/logout", controller.Logout, protected).SetName("users.logout")
	app.Post("/logoutAll", controller.LogoutAll, protected).SetName("users.logout.all")
	app.Get("/me", controller.Me, protected).SetName("users.me.get")
	app.Patch("/me", controller.UpdateMe, protected).SetName("users.me.patch")
	app.Get("/me/sessions", controller.Sessions, protected).SetName("users.me.sessions")
	app.Patch("/password", controller.ChangePassword, protected).SetName("users.password.change")
	app.Patch("/:id/status", controller.SetStatus, protected).SetName("users.status")
}

// Register handles POST /register
func (c *Controller) Register(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, invalidBody(err))
	}

	res, err := c.service.Register(ctx.Context(), *payload)
	if err != nil {
		c.logRequest("register failed", ctx, payload, "error", err)
		return c.renderError(ctx, err)
	}

	c.logRequest("account registered", ctx, res.Account)

	return ctx.JSON(http.StatusCreated, router.ViewContext{
		"user":                        res.Account,
		"emailRegistrationSuccessful": res.EmailSent,
	})
}

// Login handles POST /login
func (c *Controller) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, invalidBody(err))
	}

	res, err := c.service.Login(ctx.Context(), *payload)
	if err != nil {
		c.logRequest("login failed", ctx, payload, "error", err)
		return c.renderError(ctx, err)
	}

	c.setCookieToken(ctx, res.Session.Token)

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"user":  res.Account,
		"token": res.Session.Token,
	})
}

// Refresh handles PATCH /token/refresh/:token
func (c *Controller) Refresh(ctx router.Context) error {
	session, err := c.service.Refresh(ctx.Context(), ctx.Param("token", ""))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrAccountNotFound) {
			c.logger.Debug("refresh rejected", "error", err)
			return c.renderError(ctx, ErrUnauthenticated)
		}
		return c.renderError(ctx, err)
	}

	c.setCookieToken(ctx, session.Token)

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"newtoken": session.Token,
	})
}

// Logout handles POST /logout
func (c *Controller) Logout(ctx router.Context) error {
	principal, _ := GetRouterPrincipal(ctx, DefaultContextKey)
	if err := c.service.Logout(ctx.Context(), principal); err != nil {
		return c.renderError(ctx, err)
	}
	c.cookieDel(ctx)
	return ctx.Status(http.StatusOK).SendString("")
}

// LogoutAll handles POST /logoutAll
func (c *Controller) LogoutAll(ctx router.Context) error {
	principal, _ := GetRouterPrincipal(ctx, DefaultContextKey)
	if err := c.service.LogoutAll(ctx.Context(), principal); err != nil {
		return c.renderError(ctx, err)
	}
	c.cookieDel(ctx)
	return ctx.Status(http.StatusOK).SendString("")
}

// Me handles GET /me
func (c *Controller) Me(ctx router.Context) error {
	principal, _ := GetRouterPrincipal(ctx, DefaultContextKey)
	view, err := c.service.Me(ctx.Context(), principal)
	if err != nil {
		return c.renderError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, view)
}

// UpdateMe handles PATCH /me. Only name and language may be sent, any
// other field fails the request.
func (c *Controller) UpdateMe(ctx router.Context) error {
	principal, _ := GetRouterPrincipal(ctx, DefaultContextKey)

	var patch ProfilePatch
	dec := json.NewDecoder(bytes.NewReader(ctx.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		c.logger.Debug("profile update rejected", "error", err)
		return c.renderError(ctx, invalidBody(err))
	}

	view, err := c.service.UpdateProfile(ctx.Context(), principal, patch)
	if err != nil {
		c.logRequest("profile update failed", ctx, patch, "error", err)
		return c.renderError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, view)
}

// Sessions handles GET /me/sessions
func (c *Controller) Sessions(ctx router.Context) error {
	principal, _ := GetRouterPrincipal(ctx, DefaultContextKey)
	sessions, err := c.service.ListSessions(ctx.Context(), principal)
	if err != nil {
		return c.renderError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, router.ViewContext{
		"sessions": sessions,
	})
}

// VerifyRegistration handles PATCH /verifyRegistration/:token
func (c *Controller) VerifyRegistration(ctx router.Context) error {
	view, err := c.service.VerifyRegistration(ctx.Context(), ctx.Param("token", ""))
	if err != nil {
		return c.renderError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, view)
}

// ChangePassword handles PATCH /password
func (c *Controller) ChangePassword(ctx router.Context) error {
	principal, _ := GetRouterPrincipal(ctx, DefaultContextKey)

	payload := new(ChangePasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, invalidBody(err))
	}

	if err := c.service.ChangePassword(ctx.Context(), principal, *payload); err != nil {
		c.logRequest("password change failed", ctx, payload, "error", err)
		return c.renderError(ctx, err)
	}

	return ctx.Status(http.StatusOK).SendString("")
}

// ResendVerification handles POST /resendVerification
func (c *Controller) ResendVerification(ctx router.Context) error {
	payload := new(ResendVerificationRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, invalidBody(err))
	}

	sent, err := c.service.ResendVerification(ctx.Context(), *payload)
	if err != nil {
		c.logRequest("resend verification failed", ctx, payload, "error", err)
		return c.renderError(ctx, err)
	}

	status := "failed"
	if sent {
		status = "successful"
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"emailSuccessful": status,
	})
}

// ForgotPassword handles POST /forgotpassword
func (c *Controller) ForgotPassword(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, invalidBody(err))
	}

	res, err := c.service.ForgotPassword(ctx.Context(), *payload)
	if err != nil {
		c.logRequest("forgot password failed", ctx, payload, "error", err)
		return c.renderError(ctx, err)
	}

	status := "failed"
	if res.EmailSent {
		status = "successful"
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"resetPasswordToken": res.ResetPasswordToken,
		"emailSuccessful":    status,
	})
}

// ResetPassword handles PATCH /resetpassword/:token
func (c *Controller) ResetPassword(ctx router.Context) error {
	payload := new(ResetPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, invalidBody(err))
	}

	if err := c.service.ResetPassword(ctx.Context(), ctx.Param("token", ""), payload.Password); err != nil {
		c.logRequest("password reset failed", ctx, payload, "error", err)
		return c.renderError(ctx, err)
	}

	return ctx.Status(http.StatusOK).SendString("")
}

// SetStatus handles PATCH /:id/status
func (c *Controller) SetStatus(ctx router.Context) error {
	principal, _ := GetRouterPrincipal(ctx, DefaultContextKey)

	payload := new(StatusChangeRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, invalidBody(err))
	}

	view, err := c.service.SetStatus(ctx.Context(), principal, ctx.Param("id", ""), payload.Status)
	if err != nil {
		c.logRequest("status change failed", ctx, payload, "error", err, "principal", principal.LogFields())
		return c.renderError(ctx, err)
	}

	c.logRequest("account status changed", ctx, payload, "principal", principal.LogFields())
	return ctx.JSON(http.StatusOK, view)
}
