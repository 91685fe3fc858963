// Package st7789 drives an ST7789-family SPI panel. It only implements the
// subset the daemon needs: bring-up, windowed block writes and a full clear.
package st7789

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"displayd/internal/dispatch"
	"displayd/pkg/types"
)

// ST7789 command set, the handful we use.
const (
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdNORON   = 0x13
	cmdINVON   = 0x21
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3A
)

// maxTxChunk keeps each SPI transfer under the Linux spidev default
// transfer size limit.
const maxTxChunk = 4096

// Device is an initialized ST7789 panel.
type Device struct {
	conn  spi.Conn
	port  spi.PortCloser
	dc    gpio.PinOut
	reset gpio.PinOut
	w, h  int
	log   zerolog.Logger
}

// Open initializes the host, opens the SPI port and brings the panel out
// of reset. dcPin is required; resetPin may be empty when the reset line
// is tied high.
func Open(spiDev, dcPin, resetPin string, baudrate int64, w, h int, log zerolog.Logger) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", spiDev, err)
	}
	conn, err := port.Connect(physic.Frequency(baudrate)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi %q: %w", spiDev, err)
	}
	dc := gpioreg.ByName(dcPin)
	if dc == nil {
		port.Close()
		return nil, fmt.Errorf("gpio pin %q not found", dcPin)
	}
	d := &Device{conn: conn, port: port, dc: dc, w: w, h: h, log: log}
	if resetPin != "" {
		d.reset = gpioreg.ByName(resetPin)
		if d.reset == nil {
			port.Close()
			return nil, fmt.Errorf("gpio pin %q not found", resetPin)
		}
	}
	if err := d.init(); err != nil {
		port.Close()
		return nil, err
	}
	log.Info().Str("spi", spiDev).Int("width", w).Int("height", h).Msg("st7789 panel initialized")
	return d, nil
}

func (d *Device) init() error {
	if d.reset != nil {
		for _, lvl := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
			if err := d.reset.Out(lvl); err != nil {
				return fmt.Errorf("toggle reset: %w", err)
			}
			time.Sleep(50 * time.Millisecond)
		}
	} else if err := d.command(cmdSWRESET); err != nil {
		return err
	} else {
		time.Sleep(150 * time.Millisecond)
	}
	if err := d.command(cmdSLPOUT); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)
	if err := d.command(cmdCOLMOD, 0x55); err != nil { // 16 bits per pixel
		return err
	}
	if err := d.command(cmdMADCTL, 0x00); err != nil {
		return err
	}
	if err := d.command(cmdINVON); err != nil {
		return err
	}
	if err := d.command(cmdNORON); err != nil {
		return err
	}
	if err := d.command(cmdDISPON); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (d *Device) command(cmd byte, args ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("dc low: %w", err)
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("command 0x%02X: %w", cmd, err)
	}
	if len(args) == 0 {
		return nil
	}
	return d.data(args)
}

func (d *Device) data(p []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("dc high: %w", err)
	}
	for len(p) > 0 {
		n := len(p)
		if n > maxTxChunk {
			n = maxTxChunk
		}
		if err := d.conn.Tx(p[:n], nil); err != nil {
			return fmt.Errorf("data tx: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// Block writes an RGB region (3 bytes per pixel, rect.W*rect.H*3 bytes)
// to the panel window described by rect.
func (d *Device) Block(rect types.Rect, rgb []byte) error {
	x0, y0 := rect.X, rect.Y
	x1, y1 := rect.X+rect.W-1, rect.Y+rect.H-1
	if err := d.command(cmdCASET, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.command(cmdRASET, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	if err := d.command(cmdRAMWR); err != nil {
		return err
	}
	return d.data(PackRGB565(rgb))
}

// Clear blanks the whole panel.
func (d *Device) Clear() error {
	return d.Block(types.Rect{X: 0, Y: 0, W: d.w, H: d.h}, make([]byte, d.w*d.h*3))
}

// Close releases the SPI port.
func (d *Device) Close() error {
	return d.port.Close()
}

// Callback adapts the device into a dispatch callback. It waits for the
// previous job before touching the bus, keeping writes strictly ordered on
// the shared SPI connection.
func (d *Device) Callback() dispatch.Callback {
	return func(rect types.Rect, data []byte, fingerprint uint64, prev *dispatch.Job) {
		prev.Wait()
		if err := d.Block(rect, data); err != nil {
			d.log.Error().Err(err).
				Int("x", rect.X).Int("y", rect.Y).
				Int("w", rect.W).Int("h", rect.H).
				Msg("panel block write failed")
		}
	}
}
