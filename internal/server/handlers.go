package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"strconv"

	"github.com/gramaziokohler/td2d"
	"github.com/gramaziokohler/td2d/internal/imaging"
	"github.com/gramaziokohler/td2d/internal/ocr"
	"github.com/gramaziokohler/td2d/pkg/calibration"
	"github.com/gramaziokohler/td2d/pkg/geometry"
	"github.com/gramaziokohler/td2d/pkg/pattern"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "tile_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Resolves the detector configuration, calibration, library and OCR
//     reader for tile tools
//  4. Loads the frame from cache, or from disk when reload is set
//  5. Returns the result or error
//
// ctx is passed to the detector, so a cancelled request stops detection
// between candidates.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_crop":
		return s.handleImageCrop(args)
	case "image_sample_color":
		return s.handleImageSampleColor(args)

	// Tile Detection
	case "tile_detect":
		return s.handleTileDetect(ctx, args)
	case "tile_threshold_preview":
		return s.handleTileThresholdPreview(args)
	case "tile_view":
		return s.handleTileView(ctx, args)

	// Server
	case "server_info":
		return s.handleServerInfo()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
	// Reload drops any cached copy so a rewritten file is read again.
	Reload bool `json:"reload"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Reload {
		s.cache.Evict(a.Path)
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

type imageCropArgs struct {
	Path  string  `json:"path"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, a.X1, a.Y1, a.X2, a.Y2, a.Scale)
}

type imageSampleColorArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func (s *Server) handleImageSampleColor(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(img, a.X, a.Y)
}

// === Tile Detection Handlers ===

// detectorArgs are shared by every tool that runs the detector.
type detectorArgs struct {
	Path string `json:"path"`
	// ConfigPath names a .json or .hujson config file.
	ConfigPath string `json:"config_path"`
	// Config overrides individual fields on top of ConfigPath or defaults.
	Config          json.RawMessage `json:"config"`
	CalibrationPath string          `json:"calibration_path"`
	LibraryDir      string          `json:"library_dir"`
	Labels          bool            `json:"labels"`
	// Reload re-reads the frame from disk, for cameras that overwrite one
	// file.
	Reload bool `json:"reload"`
}

// config resolves the detector configuration for a call.
func (a *detectorArgs) config() (td2d.Config, error) {
	cfg := td2d.DefaultConfig()
	if a.ConfigPath != "" {
		loaded, err := td2d.LoadConfig(a.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if len(a.Config) > 0 && !bytes.Equal(bytes.TrimSpace(a.Config), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(a.Config))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("invalid config override: %w", err)
		}
	}
	return cfg, nil
}

// detector builds a Detector for a call and loads its image. The
// calibration is nil unless the call names one.
func (s *Server) detector(a *detectorArgs) (*td2d.Detector, image.Image, calibration.Transform, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []td2d.Option{td2d.WithLogger(s.logger)}
	var cal calibration.Transform
	if a.CalibrationPath != "" {
		if cal, err = calibration.Load(a.CalibrationPath); err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, td2d.WithCalibration(cal))
	}
	if a.LibraryDir != "" {
		lib, err := pattern.LoadLibrary(a.LibraryDir, cfg.PatchSize)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, td2d.WithLibrary(lib))
	}
	if a.Labels {
		if s.reader == nil {
			s.reader = ocr.NewReader("eng", ocr.DefaultWhitelist)
		}
		opts = append(opts, td2d.WithLabelReader(s.reader))
	}

	d, err := td2d.New(cfg, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	if a.Reload {
		s.cache.Evict(a.Path)
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, img, cal, nil
}

type tileDetectArgs struct {
	detectorArgs
	// Overlay adds an annotated PNG of the detections.
	Overlay bool `json:"overlay"`
}

// TileDetectResult is the tile_detect response.
type TileDetectResult struct {
	*td2d.Result
	Calibration *CalibrationSummary `json:"calibration,omitempty"`
	Overlay     *imaging.CropResult `json:"overlay,omitempty"`
}

// CalibrationSummary describes the calibration world poses were mapped
// with.
type CalibrationSummary struct {
	// Kind is "homography" or "pinhole".
	Kind string `json:"kind"`
	// Homography is the pixel-to-world matrix, row-major, for planar
	// calibrations.
	Homography *geometry.Homography `json:"homography,omitempty"`
}

// summarize reports cal, or nil when there is none.
func summarize(cal calibration.Transform) *CalibrationSummary {
	switch t := cal.(type) {
	case *calibration.Homography:
		m := t.Matrix()
		return &CalibrationSummary{Kind: "homography", Homography: &m}
	case *calibration.Pinhole:
		return &CalibrationSummary{Kind: "pinhole"}
	}
	return nil
}

func (s *Server) handleTileDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a tileDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	d, img, cal, err := s.detector(&a.detectorArgs)
	if err != nil {
		return nil, err
	}
	res, err := d.Detect(ctx, img)
	if err != nil {
		return nil, err
	}

	out := &TileDetectResult{Result: res, Calibration: summarize(cal)}
	if a.Overlay {
		shapes := make([]imaging.OverlayShape, len(res.Detections))
		for i := range res.Detections {
			det := &res.Detections[i]
			// Identified tiles are outlined in green, unknown ones in amber.
			label, colour := strconv.Itoa(i), "#ffb000"
			if det.Identified() {
				label, colour = det.Identity.Label, "#00ff00"
			}
			shapes[i] = imaging.OverlayShape{Polygon: det.Corners, Label: label, Color: colour}
		}
		if out.Overlay, err = imaging.Overlay(img, shapes); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ThresholdPreview is the tile_threshold_preview response.
type ThresholdPreview struct {
	// Level is the global threshold applied, or -1 for adaptive.
	Level      int                 `json:"level"`
	Foreground int                 `json:"foreground_pixels"`
	Mask       *imaging.CropResult `json:"mask"`
}

func (s *Server) handleTileThresholdPreview(args json.RawMessage) (interface{}, error) {
	var a detectorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	d, img, _, err := s.detector(&a)
	if err != nil {
		return nil, err
	}
	pre, err := d.Preprocess(img)
	if err != nil {
		return nil, err
	}
	mask, err := imaging.Encode(pre.Mask.Gray())
	if err != nil {
		return nil, err
	}
	return &ThresholdPreview{Level: pre.Level, Foreground: pre.Mask.Count(), Mask: mask}, nil
}

type tileViewArgs struct {
	detectorArgs
	// Index selects a detection in result order.
	Index int `json:"index"`
	// Size is the side of the rectified view.
	Size int `json:"size"`
	// Rectify warps the tile into a frontal view; otherwise its bounding
	// box is cropped.
	Rectify *bool `json:"rectify"`
	Margin  int   `json:"margin"`
}

func (s *Server) handleTileView(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a tileViewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Size == 0 {
		a.Size = 128
	}
	d, img, _, err := s.detector(&a.detectorArgs)
	if err != nil {
		return nil, err
	}
	res, err := d.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	if a.Index < 0 || a.Index >= len(res.Detections) {
		return nil, fmt.Errorf("detection index %d out of range (found %d)", a.Index, len(res.Detections))
	}
	det := res.Detections[a.Index]

	if (a.Rectify == nil || *a.Rectify) && len(det.Corners) == 4 {
		// Corners already start at the content's top-left.
		return imaging.TileView(img, det.Corners, a.Size, 0)
	}
	return imaging.CropPolygon(img, det.Corners, a.Margin, 1)
}

// === Server Handlers ===

// CacheStats reports the frame cache.
type CacheStats struct {
	// Images is the number of frames held.
	Images int `json:"images"`
	// Decoded counts reads from disk since start, including reloads.
	Decoded int `json:"decoded"`
}

// ServerInfo is the server_info response.
type ServerInfo struct {
	Version  string      `json:"version"`
	Cache    CacheStats  `json:"cache"`
	OCR      ocr.Info    `json:"ocr"`
	Defaults td2d.Config `json:"defaults"`
}

func (s *Server) handleServerInfo() (interface{}, error) {
	return &ServerInfo{
		Version:  Version,
		Cache:    CacheStats{Images: s.cache.Len(), Decoded: s.cache.Decoded()},
		OCR:      ocr.GetInfo(),
		Defaults: td2d.DefaultConfig(),
	}, nil
}
