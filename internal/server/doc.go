// Package server implements the MCP (Model Context Protocol) server for tile
// detection.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image information:
//   - image_load: Load a frame and get metadata
//   - image_dimensions: Get width and height
//   - image_crop: Extract a rectangular region
//   - image_sample_color: Get the colour at a pixel (hex, RGB, Lab)
//
// Tile detection:
//   - tile_detect: Run the detector and return every tile's pose
//   - tile_threshold_preview: Return the binary mask the detector sees
//   - tile_view: Return one detected tile, rectified or cropped
//
// Server:
//   - server_info: Version, cache usage, OCR availability and defaults
//
// The tile tools accept a configuration file (config_path), inline overrides
// (config), a calibration file, a template library directory and an OCR flag.
// tile_detect also echoes the calibration it used.
//
// # Image Caching
//
// Images are cached by path and reused across tool calls for the lifetime of
// the process. Pass "reload": true to image_load or any tile tool to re-read
// a file that a camera overwrites in place. Close drops the whole cache.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with code
// -32000 and the Go error string as data. Malformed parameters return -32602.
//
// # Logging
//
// Logs are structured JSON written by log/slog. Use NewLogger to build one;
// the command reads its level from TD2D_LOG_LEVEL.
//
//	srv := server.New(server.NewLogger(os.Stderr, "debug"))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
