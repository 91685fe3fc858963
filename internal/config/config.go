// Package config defines the renderer configuration surface and its file,
// environment and validation plumbing. A Config is created once at setup
// time and is read-only thereafter; every pipeline component receives it
// explicitly, so multiple independent renderer instances can coexist in one
// process.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Display transfer constants for the SPI fps cap check. A pixel travels as
// two RGB565 bytes; each byte costs roughly 11 bus clock cycles including
// protocol overhead.
const (
	BytesPerPixel = 2
	BitsPerByte   = 11
)

// Config holds all runtime parameters for one renderer instance.
// Zero values mean "unspecified" and are replaced by defaults in FromEnv.
type Config struct {
	// Target display geometry; host buffers are clamped to this size.
	Width  int `json:"width" yaml:"width" toml:"width"`
	Height int `json:"height" yaml:"height" toml:"height"`

	// Bounds of the adaptive sampling rate.
	MinFPS int `json:"min_fps" yaml:"min_fps" toml:"min_fps"`
	MaxFPS int `json:"max_fps" yaml:"max_fps" toml:"max_fps"`
	// AutomaticFPS enables rate adaptation between MinFPS and MaxFPS; when
	// false the renderer is pinned to MaxFPS.
	AutomaticFPS bool `json:"automatic_fps" yaml:"automatic_fps" toml:"automatic_fps"`

	// DoubleBuffering lets frame production proceed concurrently with the
	// transmission of the previous frame.
	DoubleBuffering bool `json:"double_buffering" yaml:"double_buffering" toml:"double_buffering"`
	// SynchronousClock makes the producer wait for the transmission queue
	// instead of skipping frames when the device cannot keep up.
	SynchronousClock bool `json:"synchronous_clock" yaml:"synchronous_clock" toml:"synchronous_clock"`

	// Rotation is counterclockwise quarter turns (0..3) applied before
	// diffing; odd values swap the effective width and height.
	Rotation       int  `json:"rotation" yaml:"rotation" toml:"rotation"`
	FlipHorizontal bool `json:"flip_horizontal" yaml:"flip_horizontal" toml:"flip_horizontal"`
	FlipVertical   bool `json:"flip_vertical" yaml:"flip_vertical" toml:"flip_vertical"`

	// TileSize is the target edge length of the change-detection tiles.
	TileSize int `json:"tile_size" yaml:"tile_size" toml:"tile_size"`

	// Token-bucket parameters. BandwidthLimit is pixels/sec; 0 disables
	// limiting. BandwidthLimitWindow is seconds. BandwidthLimitOverhead is
	// the fixed pixel-equivalent cost of issuing any transmission.
	BandwidthLimit         float64 `json:"bandwidth_limit" yaml:"bandwidth_limit" toml:"bandwidth_limit"`
	BandwidthLimitWindow   float64 `json:"bandwidth_limit_window" yaml:"bandwidth_limit_window" toml:"bandwidth_limit_window"`
	BandwidthLimitOverhead int     `json:"bandwidth_limit_overhead" yaml:"bandwidth_limit_overhead" toml:"bandwidth_limit_overhead"`

	// IsDebugMode enables diagnostic output (per-second frame accounting,
	// per-dispatch region logs). No behavioral effect on the pipeline.
	IsDebugMode bool `json:"is_debug_mode" yaml:"is_debug_mode" toml:"is_debug_mode"`
	// ClearAtExit transmits a blank frame on teardown.
	ClearAtExit bool `json:"clear_at_exit" yaml:"clear_at_exit" toml:"clear_at_exit"`

	// Daemon settings.
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	// SPI sink settings; SPIDev empty means no hardware sink.
	SPIDev   string `json:"spi_dev" yaml:"spi_dev" toml:"spi_dev"`
	DCPin    string `json:"dc_pin" yaml:"dc_pin" toml:"dc_pin"`
	ResetPin string `json:"reset_pin" yaml:"reset_pin" toml:"reset_pin"`
	Baudrate int    `json:"baudrate" yaml:"baudrate" toml:"baudrate"`
}

// EffectiveSize returns the post-transform display dimensions the tile
// geometry is built from. Odd rotation swaps the axes.
func (c Config) EffectiveSize() (w, h int) {
	if c.Rotation%2 != 0 {
		return c.Height, c.Width
	}
	return c.Width, c.Height
}

// Window returns BandwidthLimitWindow as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.BandwidthLimitWindow * float64(time.Second))
}

// FromEnv returns the default configuration overlaid with DISPLAYD_*
// environment variables.
func FromEnv() Config {
	return Config{
		Width:                  envInt("DISPLAYD_WIDTH", 240),
		Height:                 envInt("DISPLAYD_HEIGHT", 240),
		MinFPS:                 envInt("DISPLAYD_MIN_FPS", 1),
		MaxFPS:                 envInt("DISPLAYD_MAX_FPS", 30),
		AutomaticFPS:           envBool("DISPLAYD_AUTOMATIC_FPS", true),
		DoubleBuffering:        envBool("DISPLAYD_DOUBLE_BUFFERING", true),
		SynchronousClock:       envBool("DISPLAYD_SYNCHRONOUS_CLOCK", true),
		Rotation:               envInt("DISPLAYD_ROTATION", 0),
		FlipHorizontal:         envBool("DISPLAYD_FLIP_HORIZONTAL", false),
		FlipVertical:           envBool("DISPLAYD_FLIP_VERTICAL", false),
		TileSize:               envInt("DISPLAYD_TILE_SIZE", 60),
		BandwidthLimit:         envFloat("DISPLAYD_BANDWIDTH_LIMIT", 0),
		BandwidthLimitWindow:   envFloat("DISPLAYD_BANDWIDTH_LIMIT_WINDOW", 1),
		BandwidthLimitOverhead: envInt("DISPLAYD_BANDWIDTH_LIMIT_OVERHEAD", 0),
		IsDebugMode:            envBool("DISPLAYD_DEBUG", false),
		ClearAtExit:            envBool("DISPLAYD_CLEAR_AT_EXIT", false),
		Addr:                   envStr("DISPLAYD_ADDR", ":8080"),
		LogLevel:               envStr("DISPLAYD_LOG_LEVEL", "info"),
		SPIDev:                 envStr("DISPLAYD_SPI_DEV", ""),
		DCPin:                  envStr("DISPLAYD_DC_PIN", "GPIO25"),
		ResetPin:               envStr("DISPLAYD_RESET_PIN", "GPIO24"),
		Baudrate:               envInt("DISPLAYD_BAUDRATE", 60000000),
	}
}

// Validate fails fast on an invalid configuration, before any frame is
// processed.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: width and height must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.MinFPS <= 0 {
		return fmt.Errorf("config: min_fps must be positive, got %d", c.MinFPS)
	}
	if c.MinFPS > c.MaxFPS {
		return fmt.Errorf("config: invalid min_fps %d, it can't be higher than max_fps %d", c.MinFPS, c.MaxFPS)
	}
	if c.Rotation < 0 || c.Rotation > 3 {
		return fmt.Errorf("config: rotation must be 0..3 quarter turns, got %d", c.Rotation)
	}
	if c.BandwidthLimit < 0 {
		return fmt.Errorf("config: bandwidth_limit must not be negative, got %v", c.BandwidthLimit)
	}
	if c.BandwidthLimit > 0 && c.BandwidthLimitWindow <= 0 {
		return fmt.Errorf("config: bandwidth_limit_window must be positive, got %v", c.BandwidthLimitWindow)
	}
	if c.BandwidthLimitOverhead < 0 {
		return fmt.Errorf("config: bandwidth_limit_overhead must not be negative, got %d", c.BandwidthLimitOverhead)
	}
	if c.SPIDev != "" && c.Baudrate > 0 {
		fpsCap := float64(c.Baudrate) / float64(c.Width*c.Height*BytesPerPixel*BitsPerByte)
		if float64(c.MaxFPS) > fpsCap {
			return fmt.Errorf(
				"config: invalid max_fps %d, it can't be higher than %.1f (baudrate=%d / (width=%d x height=%d x %d bytes x %d bits))",
				c.MaxFPS, fpsCap, c.Baudrate, c.Width, c.Height, BytesPerPixel, BitsPerByte,
			)
		}
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on", "y":
		return true
	case "0", "false", "no", "off", "n":
		return false
	}
	return def
}
