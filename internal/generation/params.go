package generation

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dkr290/genmap-web/internal/imageapi"
	"github.com/dkr290/genmap-web/utils"
)

// Defaults for a fresh form.
const (
	DefaultWidth             = 512
	DefaultHeight            = 512
	DefaultNumInferenceSteps = 30
	DefaultGuidanceScale     = 3.5
	DefaultSeed              = 42

	DefaultConditioningScale = 1.0
	DefaultGuidanceEnd       = 1.0
)

// ControlImage steers generation with a reference image. The three fields
// always travel together; an unset slot is a nil *ControlImage.
type ControlImage struct {
	Filename          string  `json:"filename" validate:"required"`
	ConditioningScale float64 `json:"conditioning_scale" validate:"gte=0,lte=2"`
	GuidanceEnd       float64 `json:"guidance_end" validate:"gte=0,lte=1"`
}

// NewControlImage returns a control image with default strength and cutoff.
func NewControlImage(filename string) ControlImage {
	return ControlImage{
		Filename:          filename,
		ConditioningScale: DefaultConditioningScale,
		GuidanceEnd:       DefaultGuidanceEnd,
	}
}

// Parameters is the editable generation form.
type Parameters struct {
	Prompt            string        `json:"prompt"`
	Width             int           `json:"width" validate:"gte=64,lte=1024"`
	Height            int           `json:"height" validate:"gte=64,lte=1024"`
	NumInferenceSteps int           `json:"num_inference_steps" validate:"gte=10,lte=50"`
	GuidanceScale     float64       `json:"guidance_scale" validate:"gte=0,lte=10"`
	Seed              int           `json:"seed" validate:"gte=0,lte=1024"`
	ControlImage1     *ControlImage `json:"control_image_1" validate:"-"`
	ControlImage2     *ControlImage `json:"control_image_2" validate:"-"`
}

// DefaultParameters returns the form as first shown.
func DefaultParameters() Parameters {
	return Parameters{
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		NumInferenceSteps: DefaultNumInferenceSteps,
		GuidanceScale:     DefaultGuidanceScale,
		Seed:              DefaultSeed,
	}
}

// Update is a partial edit of Parameters. Nil fields are left alone.
// Size, when set, is a WIDTHxHEIGHT string and wins over Width and Height.
type Update struct {
	Prompt            *string  `json:"prompt"`
	Width             *int     `json:"width"`
	Height            *int     `json:"height"`
	Size              *string  `json:"size"`
	NumInferenceSteps *int     `json:"num_inference_steps"`
	GuidanceScale     *float64 `json:"guidance_scale"`
	Seed              *int     `json:"seed"`
}

func (u Update) applyTo(p *Parameters) error {
	if u.Prompt != nil {
		p.Prompt = *u.Prompt
	}
	if u.Width != nil {
		p.Width = *u.Width
	}
	if u.Height != nil {
		p.Height = *u.Height
	}
	if u.Size != nil {
		w, h, err := utils.ParseDimensions(*u.Size)
		if err != nil {
			return fmt.Errorf("invalid size: %w", err)
		}
		p.Width, p.Height = w, h
	}
	if u.NumInferenceSteps != nil {
		p.NumInferenceSteps = *u.NumInferenceSteps
	}
	if u.GuidanceScale != nil {
		p.GuidanceScale = *u.GuidanceScale
	}
	if u.Seed != nil {
		p.Seed = *u.Seed
	}
	return nil
}

// ControlImageUpdate is a partial edit of one control image slot.
// Editing an empty slot starts from NewControlImage defaults and needs a Filename.
type ControlImageUpdate struct {
	Filename          *string  `json:"filename"`
	ConditioningScale *float64 `json:"conditioning_scale"`
	GuidanceEnd       *float64 `json:"guidance_end"`
}

func (u ControlImageUpdate) applyTo(cur *ControlImage) ControlImage {
	var next ControlImage
	if cur != nil {
		next = *cur
	} else {
		next = NewControlImage("")
	}
	if u.Filename != nil {
		next.Filename = *u.Filename
	}
	if u.ConditioningScale != nil {
		next.ConditioningScale = *u.ConditioningScale
	}
	if u.GuidanceEnd != nil {
		next.GuidanceEnd = *u.GuidanceEnd
	}
	return next
}

func (p *Parameters) slot(n int) (**ControlImage, error) {
	switch n {
	case 1:
		return &p.ControlImage1, nil
	case 2:
		return &p.ControlImage2, nil
	default:
		return nil, fmt.Errorf("control image slot must be 1 or 2, got %d", n)
	}
}

// Request flattens p into the generate payload. Empty slots become nulls.
func (p Parameters) Request() imageapi.GenerateRequest {
	req := imageapi.GenerateRequest{
		Prompt:            p.Prompt,
		Width:             p.Width,
		Height:            p.Height,
		NumInferenceSteps: p.NumInferenceSteps,
		GuidanceScale:     p.GuidanceScale,
		Seed:              p.Seed,
	}
	if ci := p.ControlImage1; ci != nil {
		req.ControlImageFilename1 = &ci.Filename
		req.ControlnetConditioningScale1 = &ci.ConditioningScale
		req.ControlGuidanceEnd1 = &ci.GuidanceEnd
	}
	if ci := p.ControlImage2; ci != nil {
		req.ControlImageFilename2 = &ci.Filename
		req.ControlnetConditioningScale2 = &ci.ConditioningScale
		req.ControlGuidanceEnd2 = &ci.GuidanceEnd
	}
	return req
}

func (p Parameters) clone() Parameters {
	out := p
	if p.ControlImage1 != nil {
		ci := *p.ControlImage1
		out.ControlImage1 = &ci
	}
	if p.ControlImage2 != nil {
		ci := *p.ControlImage2
		out.ControlImage2 = &ci
	}
	return out
}

func validationMessage(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s is %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}
