package main

import (
	"fmt"
	"strings"

	"render-demo/core"
	"render-demo/math"
	"render-demo/text"
)

// hud collects status lines and lays them out from the top-left corner.
type hud struct {
	lines []string
	size  float32
	color math.Vec4
}

func newHUD() *hud {
	return &hud{size: 16, color: core.Color{R: 1, G: 1, B: 0.6, A: 1}.Vec4()}
}

func (h *hud) addLine(format string, args ...any) {
	h.lines = append(h.lines, fmt.Sprintf(format, args...))
}

func (h *hud) clear() { h.lines = h.lines[:0] }

// section places the lines below the top edge of a height pixel tall
// framebuffer.
func (h *hud) section(height int) text.Section {
	return text.Section{
		Text:     strings.Join(h.lines, "\n"),
		Size:     h.size,
		Color:    h.color,
		Position: math.NewVec2(10, float32(height)-10-h.size),
	}
}
