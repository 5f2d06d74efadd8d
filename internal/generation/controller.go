// Package generation holds the image generation form and submits it.
package generation

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/dkr290/genmap-web/internal/apperr"
	"github.com/dkr290/genmap-web/internal/flight"
	"github.com/dkr290/genmap-web/internal/imageapi"
	"github.com/dkr290/genmap-web/internal/notify"
)

// User-visible messages.
const (
	MsgPromptRequired       = "a prompt is required"
	MsgGenerateFailed       = "failed to generate image"
	MsgReloadControlsFailed = "failed to reload control images"
)

// Controller owns one generation form. At most one generation is in flight.
type Controller struct {
	service     imageapi.Service
	notifier    notify.Notifier
	logger      *log.Logger
	validate    *validator.Validate
	onGenerated func(context.Context)

	busy flight.Flag

	mu            sync.Mutex
	params        Parameters
	controlImages []string
}

// State is a render snapshot of the form.
type State struct {
	Parameters    Parameters `json:"parameters"`
	ControlImages []string   `json:"control_images"`
	Busy          bool       `json:"busy"`
	CanSubmit     bool       `json:"can_submit"`
}

// New creates a controller with default parameters. onGenerated runs once
// after every successful generation; it may be nil.
func New(service imageapi.Service, notifier notify.Notifier, logger *log.Logger, onGenerated func(context.Context)) *Controller {
	if onGenerated == nil {
		onGenerated = func(context.Context) {}
	}
	return &Controller{
		service:     service,
		notifier:    notifier,
		logger:      logger,
		validate:    newValidator(),
		onGenerated: onGenerated,
		params:      DefaultParameters(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Update applies a partial edit. An invalid edit leaves the form unchanged.
// Edits are refused while a generation is in flight.
func (c *Controller) Update(u Update) error {
	if c.busy.Busy() {
		return apperr.ErrBusy
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.params.clone()
	if err := u.applyTo(&next); err != nil {
		return apperr.Validation(err.Error())
	}
	if err := c.validate.Struct(next); err != nil {
		return apperr.Validation(validationMessage(err))
	}
	c.params = next
	return nil
}

// SetControlImage edits control image slot 1 or 2. The filename must be one
// of the currently loaded control images.
func (c *Controller) SetControlImage(slot int, u ControlImageUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ptr, err := c.params.slot(slot)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	next := u.applyTo(*ptr)
	if err := c.validate.Struct(next); err != nil {
		return apperr.Validation(validationMessage(err))
	}
	if !slices.Contains(c.controlImages, next.Filename) {
		return apperr.Validation(fmt.Sprintf("control image %q is not available", next.Filename))
	}
	*ptr = &next
	return nil
}

// ResetControlImage clears a slot.
func (c *Controller) ResetControlImage(slot int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ptr, err := c.params.slot(slot)
	if err != nil {
		return apperr.Validation(err.Error())
	}
	*ptr = nil
	return nil
}

// ReloadControlImages fetches the available control image filenames.
// On failure the previous list is kept.
func (c *Controller) ReloadControlImages(ctx context.Context) error {
	names, err := c.service.ListControlImages(ctx)
	if err != nil {
		c.logger.Error("reload control images failed", "err", err)
		notify.Error(c.notifier, MsgReloadControlsFailed)
		return apperr.Remote(MsgReloadControlsFailed, err)
	}

	c.mu.Lock()
	c.controlImages = names
	c.mu.Unlock()
	c.logger.Debug("control images loaded", "count", len(names))
	return nil
}

// Submit sends the current form as one generation request.
//
// A second call while one is in flight returns apperr.ErrBusy and sends
// nothing. On failure the form is kept as is so the user can retry.
func (c *Controller) Submit(ctx context.Context) error {
	if !c.busy.TryBegin() {
		return apperr.ErrBusy
	}
	defer c.busy.End()

	c.mu.Lock()
	params := c.params.clone()
	available := slices.Clone(c.controlImages)
	c.mu.Unlock()

	if strings.TrimSpace(params.Prompt) == "" {
		notify.Warn(c.notifier, MsgPromptRequired)
		return apperr.Validation(MsgPromptRequired)
	}
	for _, ci := range []*ControlImage{params.ControlImage1, params.ControlImage2} {
		if ci != nil && !slices.Contains(available, ci.Filename) {
			msg := fmt.Sprintf("control image %q is not available", ci.Filename)
			notify.Warn(c.notifier, msg)
			return apperr.Validation(msg)
		}
	}

	c.logger.Info("generating image", "prompt", params.Prompt,
		"width", params.Width, "height", params.Height, "seed", params.Seed)
	if err := c.service.Generate(ctx, params.Request()); err != nil {
		c.logger.Error("generation failed", "err", err)
		notify.Error(c.notifier, MsgGenerateFailed)
		return apperr.Remote(MsgGenerateFailed, err)
	}

	c.onGenerated(ctx)
	return nil
}

// Busy reports whether a generation is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Busy()
}

// Snapshot returns a copy of the form for rendering.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	busy := c.busy.Busy()
	return State{
		Parameters:    c.params.clone(),
		ControlImages: slices.Clone(c.controlImages),
		Busy:          busy,
		CanSubmit:     !busy && strings.TrimSpace(c.params.Prompt) != "",
	}
}
