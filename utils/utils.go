// Package utils
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDimensions reads a "WIDTHxHEIGHT" size such as "512x768".
func ParseDimensions(dimStr string) (int, int, error) {
	if dimStr == "" {
		return 0, 0, fmt.Errorf("dimension string is empty")
	}

	parts := strings.Split(strings.ToLower(dimStr), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected 'WIDTHxHEIGHT' format")
	}

	width, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	height, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("invalid dimensions")
	}

	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("dimensions must be positive")
	}

	return width, height, nil
}

// FormatDimensions is the inverse of ParseDimensions.
func FormatDimensions(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}

// SizePresets are the sizes offered next to the width and height sliders.
var SizePresets = []string{"512x512", "768x512", "512x768", "1024x1024"}
