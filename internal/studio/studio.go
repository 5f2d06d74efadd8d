// Package studio bundles the state one browser session works on.
package studio

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/dkr290/genmap-web/internal/gallery"
	"github.com/dkr290/genmap-web/internal/generation"
	"github.com/dkr290/genmap-web/internal/imageapi"
	"github.com/dkr290/genmap-web/internal/notify"
	"github.com/dkr290/genmap-web/internal/search"
)

// Studio wires the gallery, the generation form and the search form to one
// notification queue. A successful generation refreshes the gallery.
type Studio struct {
	Gallery    *gallery.Gallery
	Generation *generation.Controller
	Search     *search.Controller
	Notes      *notify.Queue
}

// State is everything the page renders.
type State struct {
	Gallery       gallery.State         `json:"views"`
	Generation    generation.State      `json:"generation"`
	Search        search.State          `json:"search"`
	Notifications []notify.Notification `json:"notifications"`
}

// New builds an empty studio. Call Load before first render.
func New(service imageapi.Service, logger *log.Logger) *Studio {
	notes := &notify.Queue{}
	g := gallery.New(service, notes, logger.WithPrefix("gallery"))
	return &Studio{
		Gallery: g,
		Generation: generation.New(service, notes, logger.WithPrefix("generation"),
			func(ctx context.Context) { _ = g.Refresh(ctx) }),
		Search: search.New(service, g, notes, logger.WithPrefix("search")),
		Notes:  notes,
	}
}

// Load fetches the image list and the control images. Failures are reported
// as notifications and do not stop the other call.
func (s *Studio) Load(ctx context.Context) {
	_ = s.Gallery.Refresh(ctx)
	_ = s.Generation.ReloadControlImages(ctx)
}

// Snapshot returns the render state and drains pending notifications.
func (s *Studio) Snapshot() State {
	return State{
		Gallery:       s.Gallery.Snapshot(),
		Generation:    s.Generation.Snapshot(),
		Search:        s.Search.Snapshot(),
		Notifications: s.Notes.Drain(),
	}
}
