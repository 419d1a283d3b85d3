package shaders

import (
	_ "embed"
)

// DrawWGSL transforms mesh vertices by a per-draw matrix. fs_main writes
// either the draw color or the fragment depth.
//
//go:embed draw.wgsl
var DrawWGSL string

// BlitWGSL copies a texture onto a surface with a fullscreen triangle.
//
//go:embed blit.wgsl
var BlitWGSL string
