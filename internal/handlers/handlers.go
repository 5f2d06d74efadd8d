// Package handlers
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"

	"github.com/dkr290/genmap-web/internal/apperr"
	"github.com/dkr290/genmap-web/internal/gallery"
	"github.com/dkr290/genmap-web/internal/generation"
	"github.com/dkr290/genmap-web/internal/imageapi"
	"github.com/dkr290/genmap-web/internal/search"
	"github.com/dkr290/genmap-web/internal/session"
	"github.com/dkr290/genmap-web/internal/studio"
)

const (
	sessionCookie = "genmap_session"
	studioKey     = "studio"

	// MaxQueryImageSize bounds the uploaded search image.
	MaxQueryImageSize = 20 << 20
)

type Handler struct {
	sessions    *session.Manager
	dataBaseURL string
	logger      *log.Logger
}

func New(sessions *session.Manager, dataBaseURL string, logger *log.Logger) *Handler {
	return &Handler{
		sessions:    sessions,
		dataBaseURL: strings.TrimRight(dataBaseURL, "/"),
		logger:      logger,
	}
}

// WithStudio resolves the session cookie to a studio and stores it in Locals.
// A new session is loaded before the request continues.
func (h *Handler) WithStudio(c *fiber.Ctx) error {
	id, s, created := h.sessions.GetOrCreate(c.Cookies(sessionCookie))
	if created {
		c.Cookie(&fiber.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		s.Load(c.UserContext())
	}
	c.Locals(studioKey, s)
	return c.Next()
}

func studioFrom(c *fiber.Ctx) *studio.Studio {
	return c.Locals(studioKey).(*studio.Studio)
}

// respond writes the outcome of a command together with the fresh state.
func (h *Handler) respond(c *fiber.Ctx, err error) error {
	s := studioFrom(c)
	body := fiber.Map{
		"success": err == nil,
		"state":   s.Snapshot(),
	}
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrCancelled):
		body["cancelled"] = true
	default:
		body["error"] = apperr.Message(err)
		h.logger.Debug("command rejected", "path", c.Path(), "err", err)
	}
	return c.Status(apperr.StatusCode(err)).JSON(body)
}

func (h *Handler) HandleHome(c *fiber.Ctx) error {
	return c.Render("templates/index", newPageData(studioFrom(c).Snapshot()), "templates/base")
}

func (h *Handler) HandleState(c *fiber.Ctx) error {
	return c.JSON(studioFrom(c).Snapshot())
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "sessions": h.sessions.Count()})
}

func (h *Handler) HandleRefresh(c *fiber.Ctx) error {
	return h.respond(c, studioFrom(c).Gallery.ManualRefresh(c.UserContext()))
}

type toggleRequest struct {
	Filename string `json:"filename" form:"filename"`
}

// HandleToggle returns a handler toggling selection in the given view.
func (h *Handler) HandleToggle(view gallery.View) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(toggleRequest)
		if err := c.BodyParser(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request format: "+err.Error())
		}
		_, err := studioFrom(c).Gallery.Toggle(view, req.Filename)
		return h.respond(c, err)
	}
}

type deleteRequest struct {
	Confirm bool `json:"confirm" form:"confirm"`
}

// HandleDelete returns a handler deleting the selection of the given view.
// The browser asks the user first and sends the answer as confirm.
func (h *Handler) HandleDelete(view gallery.View) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(deleteRequest)
		if err := c.BodyParser(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request format: "+err.Error())
		}
		confirm := gallery.ConfirmFunc(func(string) bool { return req.Confirm })
		return h.respond(c, studioFrom(c).Gallery.DeleteSelected(c.UserContext(), view, confirm))
	}
}

func (h *Handler) HandleUpdateGeneration(c *fiber.Ctx) error {
	u := new(generation.Update)
	if err := c.BodyParser(u); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request format: "+err.Error())
	}
	return h.respond(c, studioFrom(c).Generation.Update(*u))
}

func (h *Handler) HandleSetControlImage(c *fiber.Ctx) error {
	slot, err := c.ParamsInt("slot")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid control image slot")
	}
	u := new(generation.ControlImageUpdate)
	if err := c.BodyParser(u); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request format: "+err.Error())
	}
	return h.respond(c, studioFrom(c).Generation.SetControlImage(slot, *u))
}

func (h *Handler) HandleResetControlImage(c *fiber.Ctx) error {
	slot, err := c.ParamsInt("slot")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid control image slot")
	}
	return h.respond(c, studioFrom(c).Generation.ResetControlImage(slot))
}

func (h *Handler) HandleReloadControlImages(c *fiber.Ctx) error {
	return h.respond(c, studioFrom(c).Generation.ReloadControlImages(c.UserContext()))
}

func (h *Handler) HandleGenerate(c *fiber.Ctx) error {
	return h.respond(c, studioFrom(c).Generation.Submit(c.UserContext()))
}

// HandleSearch applies the submitted form fields to the search form and runs
// the search. Fields that are not sent keep their previous value.
func (h *Handler) HandleSearch(c *fiber.Ctx) error {
	s := studioFrom(c)
	if err := h.applySearchForm(c, s.Search); err != nil {
		return h.respond(c, err)
	}
	return h.respond(c, s.Search.Submit(c.UserContext()))
}

// HandleSearchForm stores the submitted fields without searching.
func (h *Handler) HandleSearchForm(c *fiber.Ctx) error {
	return h.respond(c, h.applySearchForm(c, studioFrom(c).Search))
}

func (h *Handler) applySearchForm(c *fiber.Ctx, ctrl *search.Controller) error {
	if v, ok := formValue(c, "mode"); ok {
		mode, err := search.ParseMode(v)
		if err != nil {
			return err
		}
		if err := ctrl.SetMode(mode); err != nil {
			return err
		}
	}
	if v, ok := formValue(c, "text"); ok {
		if err := ctrl.SetText(v); err != nil {
			return err
		}
	}
	if v, ok := formValue(c, "topk"); ok {
		k, err := strconv.Atoi(v)
		if err != nil {
			return apperr.Validation("topk must be a number")
		}
		if err := ctrl.SetTopK(k); err != nil {
			return err
		}
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return nil
	}
	if fh.Size > MaxQueryImageSize {
		return apperr.Validation(fmt.Sprintf("image must be smaller than %d MB", MaxQueryImageSize>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Validation("could not read the uploaded image")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxQueryImageSize))
	if err != nil {
		return apperr.Validation("could not read the uploaded image")
	}
	return ctrl.SetImage(&imageapi.ImageFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
}

// formValue reports a form field and whether it was sent at all.
func formValue(c *fiber.Ctx, key string) (string, bool) {
	if form, err := c.MultipartForm(); err == nil {
		if v, ok := form.Value[key]; ok && len(v) > 0 {
			return v[0], true
		}
		return "", false
	}
	args := c.Request().PostArgs()
	if args.Has(key) {
		return string(args.Peek(key)), true
	}
	return "", false
}

func (h *Handler) HandleGeneratedImage(c *fiber.Ctx) error {
	name, err := imageName(c)
	if err != nil {
		return err
	}
	return proxy.Do(c, imageapi.GeneratedImagePath(h.dataBaseURL, name))
}

func (h *Handler) HandleControlImage(c *fiber.Ctx) error {
	name, err := imageName(c)
	if err != nil {
		return err
	}
	return proxy.Do(c, imageapi.ControlImagePath(h.dataBaseURL, name))
}

func imageName(c *fiber.Ctx) (string, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fiber.NewError(fiber.StatusBadRequest, "Invalid image name")
	}
	return name, nil
}
