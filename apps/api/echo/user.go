package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type authApi struct {
	svc user.Service
}

func registerAuthAPI(app *echo.Echo, svc user.Service) {
	api := authApi{svc: svc}

	g := app.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	g.POST("/register", api.register)
	g.POST("/login", api.login)
	g.POST("/password-reset", api.resetPassword)
	g.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := g.Group("", authRequired())
	ag.POST("/logout", api.logout)
	ag.GET("/me", api.me)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	AuthResponse struct {
		Success bool     `json:"success"`
		User    Identity `json:"user"`
	}
)

func (r *LoginRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return core.Validate.Struct(r)
}

func (r *PasswordResetRequest) Validate() error {
	r.Email = core.CleanString(r.Email, true /* lower */)
	return core.Validate.Struct(r)
}

// Handlers

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	if err = saveIdentity(ctx, usr); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, AuthResponse{Success: true, User: newIdentity(usr)})
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := authenticate(ctx, data.Email, data.Password, api.svc)
	if err != nil {
		return err
	}
	usr, err = api.svc.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}
	if err = saveIdentity(ctx, usr); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Success: true, User: newIdentity(usr)})
}

func (api *authApi) logout(ctx echo.Context) error {
	if err := clearIdentity(ctx); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true})
}

// me reports the live user record for the current session, so approval
// changes made after login are visible immediately.
func (api *authApi) me(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), identity.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return errNotAuthenticated
		}
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, newIdentity(usr))
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
