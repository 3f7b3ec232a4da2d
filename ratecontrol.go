package us144mkii

import (
	"fmt"

	"us144mkii/internal/usbxfer"
)

// Vendor request values.
const (
	reqVendorRead  uint8 = 0xC0 // D→H, vendor, device
	reqVendorWrite uint8 = 0x40 // H→D, vendor, device
	reqClassSetFreq uint8 = 0x22 // H→D, class, endpoint
	reqClassGetFreq uint8 = 0xA2 // D→H, class, endpoint

	bReqHandshake  uint8 = 0x49
	bReqMode       uint8 = 0x49
	bReqSetFreq    uint8 = 0x01
	bReqGetFreq    uint8 = 0x81
	bReqRegister   uint8 = 0x41
)

const (
	modeConfig      uint16 = 0x0010
	modeStreamStart uint16 = 0x0030

	wValueSampleFreq uint16 = 0x0100
	wIndexRegister   uint16 = 0x0101

	epAudioIn  uint16 = 0x86
	epAudioOut uint16 = 0x02
)

// Fixed vendor registers written, in order, before the rate-selecting
// register on every configure_for_rate call.
var fixedConfigRegisters = []uint16{0x0d04, 0x0e00, 0x0f00}

// finalConfigRegister is written after the rate-selecting register.
const finalConfigRegister uint16 = 0x110b

// handshakeExpected is the byte the probe-time vendor read must return.
const handshakeExpected byte = 0x12

// rateConfig pairs a sample rate with its rate-selecting register and
// 3-byte little-endian frequency payload.
type rateConfig struct {
	register uint16
	payload  [3]byte
}

var rateConfigs = map[int]rateConfig{
	44100: {register: 0x1000, payload: [3]byte{0x44, 0xac, 0x00}},
	48000: {register: 0x1002, payload: [3]byte{0x80, 0xbb, 0x00}},
	88200: {register: 0x1008, payload: [3]byte{0x88, 0x58, 0x01}},
	96000: {register: 0x100a, payload: [3]byte{0x00, 0x77, 0x01}},
}

// rateConfigurator sends the fixed control-message sequence that switches
// the device between sample rates. It keeps no rate cache; the rate that
// last succeeded is cached by Device.configureRate.
type rateConfigurator struct {
	transport usbxfer.Transport
}

func newRateConfigurator(t usbxfer.Transport) *rateConfigurator {
	return &rateConfigurator{transport: t}
}

// Probe performs the one-byte handshake read. A mismatched response is
// logged by the caller, not treated as fatal — Probe itself only reports
// the observed byte and any transport error.
func (rc *rateConfigurator) Probe() (got byte, matched bool, err error) {
	buf := make([]byte, 1)
	_, err = rc.transport.Control(usbxfer.ControlRequest{
		RequestType: reqVendorRead,
		Request:     bReqHandshake,
		Value:       0x0000,
		Index:       0x0000,
	}, buf)
	if err != nil {
		return 0, false, fmt.Errorf("us144mkii: handshake probe: %w", err)
	}
	return buf[0], buf[0] == handshakeExpected, nil
}

// ConfigureForRate runs the fixed configure_for_rate(rate) sequence. On any
// failure it returns ErrConfig wrapping the underlying transport error and
// the caller must treat current_rate as 0 (reset by Device.configureRate,
// which owns the cached value).
func (rc *rateConfigurator) ConfigureForRate(rate int) error {
	cfg, ok := rateConfigs[rate]
	if !ok {
		return fmt.Errorf("us144mkii: unsupported rate %d: %w", rate, ErrConfig)
	}

	steps := []func() error{
		func() error { return rc.mode(modeConfig) },
		func() error { return rc.setSampleFreq(epAudioIn, cfg.payload) },
		func() error { return rc.setSampleFreq(epAudioOut, cfg.payload) },
	}
	for _, reg := range fixedConfigRegisters {
		reg := reg
		steps = append(steps, func() error { return rc.writeRegister(reg) })
	}
	steps = append(steps,
		func() error { return rc.writeRegisterValue(cfg.register, cfg.payload) },
		func() error { return rc.writeRegister(finalConfigRegister) },
		func() error { return rc.mode(modeStreamStart) },
	)

	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("us144mkii: configure rate %d: %w: %v", rate, ErrConfig, err)
		}
	}
	return nil
}

func (rc *rateConfigurator) mode(m uint16) error {
	_, err := rc.transport.Control(usbxfer.ControlRequest{
		RequestType: reqVendorWrite,
		Request:     bReqMode,
		Value:       m,
		Index:       0x0000,
	}, nil)
	return err
}

func (rc *rateConfigurator) setSampleFreq(endpoint uint16, payload [3]byte) error {
	buf := payload[:]
	_, err := rc.transport.Control(usbxfer.ControlRequest{
		RequestType: reqClassSetFreq,
		Request:     bReqSetFreq,
		Value:       wValueSampleFreq,
		Index:       endpoint,
	}, buf)
	return err
}

// writeRegister writes the fixed value 0x0101 to register: the three fixed
// registers and the final 0x110b register all carry this value.
func (rc *rateConfigurator) writeRegister(register uint16) error {
	_, err := rc.transport.Control(usbxfer.ControlRequest{
		RequestType: reqVendorWrite,
		Request:     bReqRegister,
		Value:       register,
		Index:       wIndexRegister,
	}, nil)
	return err
}

// writeRegisterValue writes the rate-selecting register. Despite carrying a
// 3-byte frequency payload conceptually, the wire request is the same
// register-write shape as writeRegister (wValue = register, wIndex =
// 0x0101); the payload already went out via setSampleFreq, so no data stage
// is attached here — a register write never carries a data stage.
func (rc *rateConfigurator) writeRegisterValue(register uint16, _ [3]byte) error {
	return rc.writeRegister(register)
}
