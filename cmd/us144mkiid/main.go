// Command us144mkiid is a minimal bridge daemon: it opens a TASCAM
// US-144MKII over USB via the us144mkii driver core, opens the PC's default
// PortAudio input and output devices, and pumps audio between them —
// microphone in to the device's line/digital outputs, the device's capture
// inputs out to the speakers. It exists to exercise the driver core's
// public surface end to end, not as a production audio bridge.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"us144mkii"
	"us144mkii/internal/usbxfer"
)

const (
	ringSizeFrames   = 8192
	periodFrames     = 512
	pumpBufferFrames = periodFrames
)

func main() {
	rate := flag.Int("rate", 48000, "sample rate: 44100, 48000, 88200, or 96000")
	variantFlag := flag.String("variant", "mkii", "device variant: mkii, non-mkii, or us122mkii")
	flag.Parse()

	variant := parseVariant(*variantFlag)
	pid, ok := variant.ProductID()
	if !ok {
		log.Fatalf("us144mkiid: unknown variant %q", *variantFlag)
	}

	if !us144mkii.RateSupported(*rate) {
		log.Fatalf("us144mkiid: unsupported rate %d", *rate)
	}

	transport, err := usbxfer.Open(us144mkii.VendorID, pid)
	if err != nil {
		log.Fatalf("us144mkiid: open USB device: %v", err)
	}
	defer transport.Close()

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("us144mkiid: init portaudio: %v", err)
	}
	defer portaudio.Terminate()

	playbackRing := newByteRing(ringSizeFrames, periodFrames)
	captureRing := newByteRing(ringSizeFrames, periodFrames)
	notifier := &logNotifier{}

	dev, err := us144mkii.NewDevice(transport, variant, playbackRing, captureRing, notifier)
	if err != nil {
		log.Fatalf("us144mkiid: create device: %v", err)
	}

	if err := dev.Prepare(*rate); err != nil {
		log.Fatalf("us144mkiid: prepare rate %d: %v", *rate, err)
	}

	micStream, speakerStream, err := openPortAudioStreams(*rate)
	if err != nil {
		log.Fatalf("us144mkiid: open portaudio streams: %v", err)
	}
	defer micStream.Close()
	defer speakerStream.Close()

	if err := micStream.Start(); err != nil {
		log.Fatalf("us144mkiid: start mic stream: %v", err)
	}
	defer micStream.Stop()
	if err := speakerStream.Start(); err != nil {
		log.Fatalf("us144mkiid: start speaker stream: %v", err)
	}
	defer speakerStream.Stop()

	if err := dev.TriggerStart(); err != nil {
		log.Fatalf("us144mkiid: trigger-start: %v", err)
	}

	stopPump := make(chan struct{})
	go micToDevicePump(micStream, playbackRing, stopPump)
	go deviceToSpeakerPump(speakerStream, captureRing, stopPump)

	log.Printf("us144mkiid: running (%s, %d Hz, synced=%v)", variant, *rate, dev.Synced())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Println("us144mkiid: shutting down")
	close(stopPump)
	dev.TriggerStop()
	if err := dev.Disconnect(); err != nil {
		log.Printf("us144mkiid: disconnect: %v", err)
	}
}

func parseVariant(s string) us144mkii.DeviceVariant {
	switch s {
	case "non-mkii":
		return us144mkii.VariantNonMKII
	case "us122mkii":
		return us144mkii.VariantUS122MKII
	default:
		return us144mkii.VariantMKII
	}
}

// openPortAudioStreams opens the default input and output devices at rate
// with us144mkii.Channels channels each, a blocking []float32 buffer of
// pumpBufferFrames frames.
func openPortAudioStreams(rate int) (mic, speaker *portaudio.Stream, err error) {
	inputDev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, nil, err
	}
	outputDev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, nil, err
	}

	micBuf := make([]float32, pumpBufferFrames*us144mkii.Channels)
	mic, err = portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inputDev,
			Channels: us144mkii.Channels,
			Latency:  inputDev.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: pumpBufferFrames,
	}, micBuf)
	if err != nil {
		return nil, nil, err
	}

	speakerBuf := make([]float32, pumpBufferFrames*us144mkii.Channels)
	speaker, err = portaudio.OpenStream(portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outputDev,
			Channels: us144mkii.Channels,
			Latency:  outputDev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: pumpBufferFrames,
	}, speakerBuf)
	if err != nil {
		mic.Close()
		return nil, nil, err
	}

	return mic, speaker, nil
}

// micToDevicePump reads microphone audio and writes it into the driver's
// playback ring, which the playback engine then routes and sends to the
// device's line/digital outputs.
func micToDevicePump(stream *portaudio.Stream, ring *byteRing, stop <-chan struct{}) {
	buf := make([]float32, pumpBufferFrames*us144mkii.Channels)
	wire := make([]byte, pumpBufferFrames*us144mkii.BytesPerFrame)
	var pos uint64

	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := stream.Read(); err != nil {
			log.Printf("us144mkiid: mic read: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		floatsToWire(buf, wire)
		ring.WriteAt(pos, wire)
		pos += pumpBufferFrames
	}
}

// deviceToSpeakerPump reads captured audio out of the driver's capture ring
// and plays it on the default output device.
func deviceToSpeakerPump(stream *portaudio.Stream, ring *byteRing, stop <-chan struct{}) {
	buf := make([]float32, pumpBufferFrames*us144mkii.Channels)
	wire := make([]byte, pumpBufferFrames*us144mkii.BytesPerFrame)
	var pos uint64

	for {
		select {
		case <-stop:
			return
		default:
		}
		ring.ReadAt(pos, wire)
		pos += pumpBufferFrames
		wireToFloats(wire, buf)
		if err := stream.Write(); err != nil {
			log.Printf("us144mkiid: speaker write: %v", err)
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// floatsToWire packs interleaved [-1,1] float32 samples into the driver's
// packed 24-bit (3 bytes per sample), little-endian wire frame layout.
func floatsToWire(buf []float32, wire []byte) {
	for i, s := range buf {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int32(s * 8388607) // 2^23 - 1
		off := i * 3
		wire[off+0] = byte(v)
		wire[off+1] = byte(v >> 8)
		wire[off+2] = byte(v >> 16)
	}
}

// wireToFloats unpacks the driver's packed 24-bit wire layout back into
// interleaved [-1,1] float32 samples.
func wireToFloats(wire []byte, buf []float32) {
	for i := range buf {
		off := i * 3
		v := int32(wire[off+0]) | int32(wire[off+1])<<8 | int32(wire[off+2])<<16
		if v&0x800000 != 0 {
			v |= -1 << 24 // sign-extend 24-bit to 32-bit
		}
		buf[i] = float32(v) / 8388608.0
	}
}
