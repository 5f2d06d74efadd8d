package handlers

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/dkr290/genmap-web/internal/gallery"
	"github.com/dkr290/genmap-web/web"
)

// NewApp builds the Fiber app with templates, static files and all routes.
func NewApp(h *Handler) *fiber.App {
	engine := html.NewFileSystem(http.FS(web.Files), ".html")

	app := fiber.New(fiber.Config{
		Views:                 engine,
		BodyLimit:             MaxQueryImageSize + 1<<20,
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: h.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel}).Writer(),
	}))

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:       http.FS(web.Files),
		PathPrefix: "static",
	}))
	app.Get("/healthz", h.HandleHealth)

	// Images are served by the backend data root.
	app.Get("/data/generated_images/:name", h.HandleGeneratedImage)
	app.Get("/data/control_images/:name", h.HandleControlImage)

	app.Use(h.WithStudio)
	app.Get("/", h.HandleHome)

	api := app.Group("/api")
	api.Get("/state", h.HandleState)

	api.Post("/gallery/refresh", h.HandleRefresh)
	api.Post("/gallery/toggle", h.HandleToggle(gallery.ViewGallery))
	api.Post("/gallery/delete", h.HandleDelete(gallery.ViewGallery))

	api.Patch("/generation", h.HandleUpdateGeneration)
	api.Put("/generation/control/:slot", h.HandleSetControlImage)
	api.Delete("/generation/control/:slot", h.HandleResetControlImage)
	api.Post("/generation/control-images/reload", h.HandleReloadControlImages)
	api.Post("/generate", h.HandleGenerate)

	api.Post("/search", h.HandleSearch)
	api.Post("/search/form", h.HandleSearchForm)
	api.Post("/search/results/toggle", h.HandleToggle(gallery.ViewSearch))
	api.Post("/search/results/delete", h.HandleDelete(gallery.ViewSearch))

	return app
}

func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Path(), "err", err)
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": err.Error()})
}
