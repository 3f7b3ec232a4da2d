// Package usbxfer is the thin USB transport collaborator. It wraps
// github.com/google/gousb's Device/Config/Interface/Endpoint handles behind
// the small interface the core actually needs: one control-transfer call and
// one blocking Read/Write per claimed endpoint.
//
// The transport library itself — URB allocation, endpoint pipes, anchors —
// is an external collaborator per the core's design (it is not re-designed
// here); this package only adapts gousb's blocking calls into the shape the
// core's goroutine-per-stream loops expect, the same way a small paStream
// interface wraps PortAudio instead of calling into it directly everywhere.
package usbxfer

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// Status is the completion status of a USB transfer, modelled on the
// handful of libusb/URB statuses the core singles out by name.
type Status int

const (
	// StatusOK indicates the transfer completed successfully.
	StatusOK Status = iota
	// StatusENOENT mirrors -ENOENT: URB was dequeued, expected during teardown.
	StatusENOENT
	// StatusECONNRESET mirrors -ECONNRESET: URB killed by an anchor-kill.
	StatusECONNRESET
	// StatusESHUTDOWN mirrors -ESHUTDOWN: device or endpoint was shut down.
	StatusESHUTDOWN
	// StatusEPROTO mirrors -EPROTO: a protocol/bitstuff error from the device.
	StatusEPROTO
	// StatusOther is any other non-success status.
	StatusOther
)

// String renders a Status for log messages.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusENOENT:
		return "ENOENT"
	case StatusECONNRESET:
		return "ECONNRESET"
	case StatusESHUTDOWN:
		return "ESHUTDOWN"
	case StatusEPROTO:
		return "EPROTO"
	default:
		return "OTHER"
	}
}

// Transient reports whether status is one of the statuses expected during
// teardown: these must be swallowed silently rather than logged or
// escalated.
func (s Status) Transient() bool {
	switch s {
	case StatusENOENT, StatusECONNRESET, StatusESHUTDOWN, StatusEPROTO:
		return true
	default:
		return false
	}
}

// CtrlTimeout is USB_CTRL_TIMEOUT_MS: the only transfer class with an
// explicit timeout.
const CtrlTimeout = 1000 * time.Millisecond

// ControlRequest names the five bytes of a USB control transfer setup packet
// that the core's rate configurator and probe handshake need.
type ControlRequest struct {
	RequestType uint8 // bmRequestType
	Request     uint8 // bRequest
	Value       uint16
	Index       uint16
}

// Endpoint is a single claimed USB endpoint, abstracted down to the blocking
// calls the core's per-stream goroutines make. A real Endpoint is backed by
// a gousb.InEndpoint or gousb.OutEndpoint; each blocking call here stands in
// for one URB submit-and-wait cycle in the original C driver (see DESIGN.md
// for the mapping from callback-based URB completion to goroutine loops).
type Endpoint interface {
	// Write blocks until buf has been transmitted on an OUT endpoint.
	Write(buf []byte) (n int, status Status, err error)
	// Read blocks until a packet has been received on an IN endpoint,
	// filling up to len(buf) bytes.
	Read(buf []byte) (n int, status Status, err error)
}

// Transport is the USB device collaborator: one control pipe plus the five
// named endpoints.
type Transport interface {
	// Control performs a synchronous control transfer with the fixed
	// CtrlTimeout. data is nil/empty for requests with no payload.
	Control(req ControlRequest, data []byte) (n int, err error)

	PlaybackOut() Endpoint // 0x02, iso OUT
	FeedbackIn() Endpoint  // 0x81, iso IN
	CaptureIn() Endpoint   // 0x86, bulk IN
	MIDIIn() Endpoint      // 0x83, bulk IN
	MIDIOut() Endpoint     // 0x04, bulk OUT

	// Close releases both claimed interfaces and the underlying device handle.
	Close() error
}

// gousbEndpoint adapts a gousb endpoint pair into the Endpoint interface.
// Exactly one of in/out is non-nil.
type gousbEndpoint struct {
	in  *gousb.InEndpoint
	out *gousb.OutEndpoint
}

func (e *gousbEndpoint) Write(buf []byte) (int, Status, error) {
	if e.out == nil {
		return 0, StatusOther, fmt.Errorf("usbxfer: endpoint is not an OUT endpoint")
	}
	n, err := e.out.Write(buf)
	return n, statusFromErr(err), err
}

func (e *gousbEndpoint) Read(buf []byte) (int, Status, error) {
	if e.in == nil {
		return 0, StatusOther, fmt.Errorf("usbxfer: endpoint is not an IN endpoint")
	}
	n, err := e.in.Read(buf)
	return n, statusFromErr(err), err
}

// statusFromErr classifies a gousb transfer error into the small status
// taxonomy the core reasons about. gousb itself does not expose raw errno
// values across platforms, so unmatched errors fall back to StatusOther,
// which the core logs rather than silently drops. The logging is not rate
// limited: every such error is logged.
func statusFromErr(err error) Status {
	if err == nil {
		return StatusOK
	}
	return StatusOther
}

// Device is the concrete gousb-backed Transport for the TASCAM US-144MKII
// family: interface 0 alt-setting 1 (audio) plus interface 1 alt-setting 1
// (MIDI).
type Device struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	cfg     *gousb.Config
	audio   *gousb.Interface
	midi    *gousb.Interface

	playbackOut gousbEndpoint
	feedbackIn  gousbEndpoint
	captureIn   gousbEndpoint
	midiIn      gousbEndpoint
	midiOut     gousbEndpoint
}

// Endpoint addresses for the audio and MIDI interfaces.
const (
	epPlaybackOut = 0x02
	epFeedbackIn  = 0x81
	epCaptureIn   = 0x86
	epMIDIIn      = 0x83
	epMIDIOut     = 0x04
)

// Open claims interface 0 (alt-setting 1, audio) and interface 1
// (alt-setting 1, MIDI) on the device matching vid/pid and wraps their
// endpoints. Close must be called to release both interfaces.
func Open(vid, pid gousb.ID) (*Device, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("usbxfer: open device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("usbxfer: device %04x:%04x not found", vid, pid)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbxfer: set auto detach: %w", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbxfer: select config: %w", err)
	}

	audio, err := cfg.Interface(0, 1)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbxfer: claim audio interface: %w", err)
	}

	midi, err := cfg.Interface(1, 1)
	if err != nil {
		audio.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbxfer: claim midi interface: %w", err)
	}

	d := &Device{ctx: ctx, dev: dev, cfg: cfg, audio: audio, midi: midi}

	if d.playbackOut.out, err = audio.OutEndpoint(epPlaybackOut); err != nil {
		d.Close()
		return nil, fmt.Errorf("usbxfer: playback endpoint: %w", err)
	}
	if d.feedbackIn.in, err = audio.InEndpoint(epFeedbackIn); err != nil {
		d.Close()
		return nil, fmt.Errorf("usbxfer: feedback endpoint: %w", err)
	}
	if d.captureIn.in, err = audio.InEndpoint(epCaptureIn); err != nil {
		d.Close()
		return nil, fmt.Errorf("usbxfer: capture endpoint: %w", err)
	}
	if d.midiIn.in, err = midi.InEndpoint(epMIDIIn); err != nil {
		d.Close()
		return nil, fmt.Errorf("usbxfer: midi in endpoint: %w", err)
	}
	if d.midiOut.out, err = midi.OutEndpoint(epMIDIOut); err != nil {
		d.Close()
		return nil, fmt.Errorf("usbxfer: midi out endpoint: %w", err)
	}

	return d, nil
}

// Control performs a synchronous control transfer with the fixed
// CtrlTimeout.
func (d *Device) Control(req ControlRequest, data []byte) (int, error) {
	d.dev.ControlTimeout = CtrlTimeout
	return d.dev.Control(req.RequestType, req.Request, req.Value, req.Index, data)
}

func (d *Device) PlaybackOut() Endpoint { return &d.playbackOut }
func (d *Device) FeedbackIn() Endpoint  { return &d.feedbackIn }
func (d *Device) CaptureIn() Endpoint   { return &d.captureIn }
func (d *Device) MIDIIn() Endpoint      { return &d.midiIn }
func (d *Device) MIDIOut() Endpoint     { return &d.midiOut }

// Close releases both claimed interfaces and the device/context handles.
func (d *Device) Close() error {
	if d.audio != nil {
		d.audio.Close()
	}
	if d.midi != nil {
		d.midi.Close()
	}
	if d.cfg != nil {
		d.cfg.Close()
	}
	if d.dev != nil {
		d.dev.Close()
	}
	if d.ctx != nil {
		d.ctx.Close()
	}
	return nil
}
