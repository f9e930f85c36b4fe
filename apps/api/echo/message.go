package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/message"
	"github.com/trezcool/darasa/core/user"
)

type messageApi struct {
	svc     message.Service
	userSvc user.Service
}

func registerMessageAPI(app *echo.Echo, svc message.Service, usrSvc user.Service) {
	api := messageApi{svc: svc, userSvc: usrSvc}

	g := app.Group("/messages", authRequired())

	g.GET("/unread-count", api.unreadCount)
	g.GET("/conversations", api.conversations)
	g.GET("/contacts", api.contacts)
	g.GET("/conversation/:partnerID", api.conversationWith)
	g.POST("", api.send)
}

// Handlers

func (api *messageApi) unreadCount(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.UnreadCount(ctx.Request().Context(), identity.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"unread_count": count})
}

func (api *messageApi) conversations(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	conversations, err := api.svc.Conversations(ctx.Request().Context(), identity.ID)
	if err != nil {
		return errors.Wrap(err, "listing conversations")
	}
	if conversations == nil {
		conversations = []message.Conversation{}
	}
	return ctx.JSON(http.StatusOK, conversations)
}

func (api *messageApi) contacts(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	usr, err := api.userSvc.GetByID(ctx.Request().Context(), identity.ID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	contacts, err := api.svc.Contacts(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing contacts")
	}
	if contacts == nil {
		contacts = []message.Contact{}
	}
	return ctx.JSON(http.StatusOK, contacts)
}

// conversationWith marks the partner's unread messages as read as a side
// effect. Safe to repeat.
func (api *messageApi) conversationWith(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}
	messages, err := api.svc.ConversationWith(ctx.Request().Context(), identity.ID, ctx.Param("partnerID"))
	if err != nil {
		return errors.Wrap(err, "fetching conversation")
	}
	if messages == nil {
		messages = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, messages)
}

func (api *messageApi) send(ctx echo.Context) error {
	identity, err := getIdentity(ctx)
	if err != nil {
		return err
	}

	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	msg, err := api.svc.Send(ctx.Request().Context(), identity.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"success": true, "message": msg})
}
