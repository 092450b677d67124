// Package adminapi exposes the administrative surface spec.md §6
// names as callable primitives outside the core: chat/request CRUD,
// settings read/write, alert resolution, a liveness probe, and an Atom
// feed of unresolved alerts for operators who'd rather subscribe than
// poll. Routing follows the teacher's labstack/echo conventions.
package adminapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/chatsla/sentinel/internal/lifecycle"
	"github.com/chatsla/sentinel/internal/slaerr"
	"github.com/chatsla/sentinel/internal/store"
)

// Store is the subset of persistence the admin surface touches
// directly (status transitions go through the lifecycle engine).
type Store interface {
	Ping(ctx context.Context) error
	GetChat(ctx context.Context, id int64) (*store.Chat, error)
	ListChats(ctx context.Context) ([]*store.Chat, error)
	UpsertChat(ctx context.Context, c *store.Chat) error
	SoftDeleteChat(ctx context.Context, id int64) error
	GetRequest(ctx context.Context, id string) (*store.Request, error)
	ListRequests(ctx context.Context, find *store.FindRequest) ([]*store.Request, error)
	ListUnresolvedAlerts(ctx context.Context, limit int) ([]*store.Alert, error)
	ResolveAlert(ctx context.Context, alertID, action, notes, by string) error
	GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error)
	PutGlobalSettings(ctx context.Context, gs *store.GlobalSettings) error
}

// Service binds the admin HTTP surface to a Store and the C6 engine.
type Service struct {
	st      Store
	engine  *lifecycle.Engine
	feedURL string
	keyHash []byte
}

// NewService constructs the admin surface. feedURL is the externally
// visible base URL used to build the Atom feed's self link. adminKey is
// hashed once here with bcrypt so the raw key is never held or compared
// in memory past construction; incoming requests are checked against
// the hash instead.
func NewService(st Store, engine *lifecycle.Engine, feedURL, adminKey string) (*Service, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Service{st: st, engine: engine, feedURL: feedURL, keyHash: hash}, nil
}

// requireAdminKey checks the X-Admin-Token header against the hashed
// admin key, rejecting the request before any handler runs.
func (s *Service) requireAdminKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get("X-Admin-Token")
		if token == "" || bcrypt.CompareHashAndPassword(s.keyHash, []byte(token)) != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return next(c)
	}
}

// Register wires every route onto e, matching the teacher's per-group
// echo.Group convention.
func (s *Service) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.GET("/health", s.handleHealth)

	admin := e.Group("/admin", s.requireAdminKey)
	admin.GET("/chats", s.listChats)
	admin.GET("/chats/:id", s.getChat)
	admin.PUT("/chats/:id", s.upsertChat)
	admin.DELETE("/chats/:id", s.deleteChat)

	admin.GET("/requests", s.listRequests)
	admin.GET("/requests/:id", s.getRequest)
	admin.POST("/requests/:id/status", s.updateRequestStatus)

	admin.POST("/alerts/:id/resolve", s.resolveAlert)
	admin.GET("/alerts/feed.atom", s.alertsFeed)

	admin.GET("/settings", s.getSettings)
	admin.PUT("/settings", s.putSettings)
}

func (s *Service) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := s.st.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "down", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (s *Service) listChats(c echo.Context) error {
	chats, err := s.st.ListChats(c.Request().Context())
	if err != nil {
		return storeErrResponse(c, err)
	}
	return c.JSON(http.StatusOK, chats)
}

func (s *Service) getChat(c echo.Context) error {
	id, err := parseInt64(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid chat id"})
	}
	chat, err := s.st.GetChat(c.Request().Context(), id)
	if err != nil {
		return storeErrResponse(c, err)
	}
	if chat == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.JSON(http.StatusOK, chat)
}

func (s *Service) upsertChat(c echo.Context) error {
	var chat store.Chat
	if err := c.Bind(&chat); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := s.st.UpsertChat(c.Request().Context(), &chat); err != nil {
		return storeErrResponse(c, err)
	}
	return c.JSON(http.StatusOK, chat)
}

func (s *Service) deleteChat(c echo.Context) error {
	id, err := parseInt64(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid chat id"})
	}
	if err := s.st.SoftDeleteChat(c.Request().Context(), id); err != nil {
		return storeErrResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Service) listRequests(c echo.Context) error {
	find := &store.FindRequest{Order: store.OrderNewestFirst, Limit: 100}
	if v := c.QueryParam("chatId"); v != "" {
		if id, err := parseInt64(v); err == nil {
			find.ChatID = &id
		}
	}
	reqs, err := s.st.ListRequests(c.Request().Context(), find)
	if err != nil {
		return storeErrResponse(c, err)
	}
	return c.JSON(http.StatusOK, reqs)
}

func (s *Service) getRequest(c echo.Context) error {
	req, err := s.st.GetRequest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeErrResponse(c, err)
	}
	if req == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.JSON(http.StatusOK, req)
}

func (s *Service) updateRequestStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
		By     string `json:"by"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	err := s.engine.UpdateStatus(c.Request().Context(), c.Param("id"), store.RequestStatus(body.Status), store.AuditContext{
		ChangedBy: body.By,
		Reason:    body.Reason,
	})
	if err != nil {
		var invalid *slaerr.InvalidTransition
		if asInvalidTransition(err, &invalid) {
			return c.JSON(http.StatusConflict, echo.Map{"error": invalid.Error()})
		}
		return storeErrResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Service) resolveAlert(c echo.Context) error {
	var body struct {
		Action string `json:"action"`
		Notes  string `json:"notes"`
		By     string `json:"by"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := s.st.ResolveAlert(c.Request().Context(), c.Param("id"), body.Action, body.Notes, body.By); err != nil {
		return storeErrResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Service) getSettings(c echo.Context) error {
	gs, err := s.st.GetGlobalSettings(c.Request().Context())
	if err != nil {
		return storeErrResponse(c, err)
	}
	return c.JSON(http.StatusOK, gs)
}

func (s *Service) putSettings(c echo.Context) error {
	var gs store.GlobalSettings
	if err := c.Bind(&gs); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := s.st.PutGlobalSettings(c.Request().Context(), &gs); err != nil {
		return storeErrResponse(c, err)
	}
	return c.JSON(http.StatusOK, gs)
}

// alertsFeed renders an Atom feed of unresolved alerts so an operator
// can subscribe in a feed reader instead of polling /admin/requests.
func (s *Service) alertsFeed(c echo.Context) error {
	alerts, err := s.st.ListUnresolvedAlerts(c.Request().Context(), 50)
	if err != nil {
		return storeErrResponse(c, err)
	}

	feed := &feeds.Feed{
		Title:   "Unresolved SLA Alerts",
		Link:    &feeds.Link{Href: s.feedURL + "/admin/alerts/feed.atom"},
		Created: time.Now(),
	}
	for _, a := range alerts {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:      a.ID,
			Title:   string(a.AlertType) + " level " + strconv.Itoa(a.Level) + " — request " + a.RequestID,
			Link:    &feeds.Link{Href: s.feedURL + "/admin/requests/" + a.RequestID},
			Created: a.AlertSentAt,
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.Blob(http.StatusOK, "application/atom+xml", []byte(atom))
}

func storeErrResponse(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}

func asInvalidTransition(err error, target **slaerr.InvalidTransition) bool {
	if it, ok := err.(*slaerr.InvalidTransition); ok {
		*target = it
		return true
	}
	return false
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
