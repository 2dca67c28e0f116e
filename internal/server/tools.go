package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

var reloadProperty = map[string]interface{}{
	"type":        "boolean",
	"description": "Re-read the file from disk instead of using the cached frame. Default false",
	"default":     false,
}

// detectorProperties are accepted by every tool that runs the detector.
func detectorProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path": pathProperty,
		"config_path": map[string]interface{}{
			"type":        "string",
			"description": "Optional .json or .hujson detector configuration file",
		},
		"config": map[string]interface{}{
			"type":        "object",
			"description": "Optional configuration fields overriding config_path or the defaults, e.g. {\"shape\": \"hexagon\", \"min_area\": 900}",
		},
		"calibration_path": map[string]interface{}{
			"type":        "string",
			"description": "Optional calibration file: OpenCV FileStorage YAML (K, D, R, T) or JSON. Adds world poses to detections.",
		},
		"library_dir": map[string]interface{}{
			"type":        "string",
			"description": "Optional directory of PNG/JPEG tile templates for identification",
		},
		"labels": map[string]interface{}{
			"type":        "boolean",
			"description": "Read printed tile labels with Tesseract OCR. Default false",
			"default":     false,
		},
		"reload": reloadProperty,
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetToolDefinitions returns all available tools.
//
// The tile tools share the properties built by detectorProperties, so a
// configuration that works for tile_threshold_preview can be passed
// unchanged to tile_detect and tile_view.
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load a camera frame and return its dimensions, format and channel layout. The frame is cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty,
					"reload": reloadProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "image_sample_color",
			Description: "Get the colour at a pixel as hex, RGB and CIE Lab. Useful for building a tile palette.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate (0-based from left)",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate (0-based from top)",
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},

		// Tile Detection
		{
			Name:        "tile_detect",
			Description: "Detect tiles in an image. Returns each tile's corners, centre, rotation, scale, optional world pose and identity, mean colour and confidence, ordered by centre y then x.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": detectorProperties(map[string]interface{}{
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return a PNG with the detected outlines drawn. Default false",
						"default":     false,
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "tile_threshold_preview",
			Description: "Run only the preprocessing stage and return the binary foreground mask as PNG with the threshold applied. Use it to tune threshold settings.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": detectorProperties(nil),
				"required":   []string{"path"},
			},
		},
		{
			Name:        "tile_view",
			Description: "Detect tiles and return one of them as a PNG: rectified into a frontal, upright view, or cropped from the frame.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": detectorProperties(map[string]interface{}{
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Detection index in result order (0-based)",
					},
					"size": map[string]interface{}{
						"type":        "integer",
						"description": "Side of the rectified view in pixels. Default 128",
						"default":     128,
					},
					"rectify": map[string]interface{}{
						"type":        "boolean",
						"description": "Warp the tile into a frontal view. Default true; false crops the bounding box",
						"default":     true,
					},
					"margin": map[string]interface{}{
						"type":        "integer",
						"description": "Extra pixels around the bounding box when not rectifying. Default 0",
					},
				}),
				"required": []string{"path", "index"},
			},
		},

		// Server
		{
			Name:        "server_info",
			Description: "Report the server version, frame cache usage, OCR availability and the default detector configuration.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
				"required":   []string{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
