// Package imageapi is the client for the remote image generation and search service.
package imageapi

import (
	"context"
	"fmt"
)

// Backend routes, relative to the API base URL.
const (
	EndpointAllImages        = "/image/all-simple-metadata"
	EndpointControlFilenames = "/image/all-control-image-filenames"
	EndpointGenerate         = "/image/generate"
	EndpointSearch           = "/image/search"
	EndpointDelete           = "/image/delete"
)

// ImageRecord is a generated image as reported by the backend.
type ImageRecord struct {
	ImageFilename string `json:"image_filename"`
	Prompt        string `json:"prompt"`
}

// GenerateRequest is the flattened generation payload. Optional control image
// fields are pointers without omitempty so that absent values go out as null.
type GenerateRequest struct {
	Prompt                       string   `json:"prompt"`
	Width                        int      `json:"width"`
	Height                       int      `json:"height"`
	ControlImageFilename1        *string  `json:"control_image_filename_1"`
	ControlImageFilename2        *string  `json:"control_image_filename_2"`
	ControlnetConditioningScale1 *float64 `json:"controlnet_conditioning_scale_1"`
	ControlnetConditioningScale2 *float64 `json:"controlnet_conditioning_scale_2"`
	ControlGuidanceEnd1          *float64 `json:"control_guidance_end_1"`
	ControlGuidanceEnd2          *float64 `json:"control_guidance_end_2"`
	NumInferenceSteps            int      `json:"num_inference_steps"`
	GuidanceScale                float64  `json:"guidance_scale"`
	Seed                         int      `json:"seed"`
}

// ImageFile is an uploaded query image.
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SearchRequest carries either Text or Image, never both.
type SearchRequest struct {
	Text  *string
	Image *ImageFile
	TopK  int
}

type deleteRequest struct {
	ImageFilenames []string `json:"image_filenames"`
}

// DeleteResponse reports per-file outcome of a delete call.
type DeleteResponse struct {
	Status           string   `json:"status"`
	DeletedFilenames []string `json:"deleted_filenames"`
	FailedFilenames  []string `json:"failed_filenames"`
}

// Service is the set of remote operations the front end depends on.
type Service interface {
	ListImages(ctx context.Context) ([]ImageRecord, error)
	ListControlImages(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, req GenerateRequest) error
	Search(ctx context.Context, req SearchRequest) ([]ImageRecord, error)
	Delete(ctx context.Context, filenames []string) (*DeleteResponse, error)
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("image service returned %d: %s", e.Code, e.Detail)
	}
	return fmt.Sprintf("image service returned %d", e.Code)
}
