package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dkr290/genmap-web/internal/gallery"
	"github.com/dkr290/genmap-web/internal/generation"
	"github.com/dkr290/genmap-web/internal/imageapi"
	"github.com/dkr290/genmap-web/internal/studio"
	"github.com/dkr290/genmap-web/utils"
)

// Image URLs on the page point back at this server, which proxies them.
const imageRoot = "/data"

type thumb struct {
	Filename string
	Prompt   string
	URL      string
	Selected bool
}

type controlSlot struct {
	Slot  int
	Image *generation.ControlImage
	URL   string
}

func thumbs(items []gallery.Item) []thumb {
	out := make([]thumb, 0, len(items))
	for _, it := range items {
		out = append(out, thumb{
			Filename: it.ImageFilename,
			Prompt:   it.Prompt,
			URL:      imageapi.GeneratedImagePath(imageRoot, it.ImageFilename),
			Selected: it.Selected,
		})
	}
	return out
}

func slotOf(n int, img *generation.ControlImage) controlSlot {
	s := controlSlot{Slot: n, Image: img}
	if img != nil {
		s.URL = imageapi.ControlImagePath(imageRoot, img.Filename)
	}
	return s
}

func newPageData(st studio.State) fiber.Map {
	p := st.Generation.Parameters
	return fiber.Map{
		"Title":         "Image Studio",
		"State":         st,
		"Params":        p,
		"Size":          utils.FormatDimensions(p.Width, p.Height),
		"SizePresets":   utils.SizePresets,
		"ControlSlots":  []controlSlot{slotOf(1, p.ControlImage1), slotOf(2, p.ControlImage2)},
		"ControlImages": st.Generation.ControlImages,
		"Gallery":       thumbs(st.Gallery.Gallery.Items),
		"SearchResults": thumbs(st.Gallery.Search.Items),
	}
}
