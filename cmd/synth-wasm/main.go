//go:build js && wasm

package main

import (
	"bytes"
	"syscall/js"
	"unsafe"

	"github.com/cwbudde/algo-synth/host"
	"github.com/cwbudde/algo-synth/internal/wavio"
	"github.com/cwbudde/algo-synth/session"
)

const blockFrames = 128

var (
	h            *host.Host
	outputBuffer []float32
)

type export func(args []js.Value) any

// guard drops calls made before wasmInit or with too few arguments.
func guard(n int, fail any, fn export) js.Func {
	return js.FuncOf(func(_ js.Value, args []js.Value) any {
		if h == nil || len(args) < n {
			return fail
		}
		return fn(args)
	})
}

func u32(v js.Value) uint32 { return uint32(v.Int()) }

func main() {
	c := make(chan struct{})

	js.Global().Set("wasmInit", js.FuncOf(wasmInit))
	exports := map[string]js.Func{
		"wasmAddNode": guard(3, host.InvalidID, func(a []js.Value) any {
			return h.AddNode(u32(a[0]), float32(a[1].Float()), float32(a[2].Float()))
		}),
		"wasmRemoveNode": guard(1, false, func(a []js.Value) any { return h.RemoveNode(u32(a[0])) }),
		"wasmConnect": guard(4, false, func(a []js.Value) any {
			return h.Connect(u32(a[0]), u32(a[1]), u32(a[2]), u32(a[3]))
		}),
		"wasmDisconnect": guard(4, false, func(a []js.Value) any {
			return h.Disconnect(u32(a[0]), u32(a[1]), u32(a[2]), u32(a[3]))
		}),
		"wasmSetOutput":   guard(1, false, func(a []js.Value) any { return h.SetOutput(u32(a[0])) }),
		"wasmClearOutput": guard(0, false, func([]js.Value) any { return h.ClearOutput() }),
		"wasmSetParam": guard(3, false, func(a []js.Value) any {
			return h.SetParam(u32(a[0]), u32(a[1]), float32(a[2].Float()))
		}),
		"wasmBeginGesture": guard(2, false, func(a []js.Value) any { return h.BeginGesture(u32(a[0]), u32(a[1])) }),
		"wasmEndGesture":   guard(2, false, func(a []js.Value) any { return h.EndGesture(u32(a[0]), u32(a[1])) }),
		"wasmNoteOn": guard(2, false, func(a []js.Value) any {
			return h.NoteOn(uint8(a[0].Int()), uint8(a[1].Int()))
		}),
		"wasmNoteOff": guard(1, false, func(a []js.Value) any { return h.NoteOff(uint8(a[0].Int())) }),
		"wasmMIDI": guard(1, false, func(a []js.Value) any {
			msg := make([]byte, a[0].Get("length").Int())
			js.CopyBytesToGo(msg, a[0])
			return h.MIDI(msg)
		}),
		"wasmPlay":     guard(0, nil, func([]js.Value) any { h.Play(); return nil }),
		"wasmStop":     guard(0, nil, func([]js.Value) any { h.Stop(); return nil }),
		"wasmSeek":     guard(1, nil, func(a []js.Value) any { h.Seek(a[0].Float()); return nil }),
		"wasmSetTempo": guard(1, false, func(a []js.Value) any { return h.SetTempo(a[0].Float()) }),
		"wasmCreateClip": guard(2, host.InvalidID, func(a []js.Value) any {
			return h.CreateClip(a[0].String(), a[1].Float())
		}),
		"wasmAddNote": guard(5, false, func(a []js.Value) any {
			return h.AddNote(u32(a[0]), a[1].Float(), a[2].Float(), uint8(a[3].Int()), uint8(a[4].Int()))
		}),
		"wasmLoadAudio":   guard(2, host.InvalidID, wasmLoadAudio),
		"wasmCreateTrack": guard(1, host.InvalidID, func(a []js.Value) any { return h.CreateTrack(a[0].String()) }),
		"wasmSetTrackTarget": guard(2, false, func(a []js.Value) any {
			return h.SetTrackTarget(u32(a[0]), u32(a[1]))
		}),
		"wasmCreateScene": guard(1, host.InvalidID, func(a []js.Value) any { return h.CreateScene(a[0].String()) }),
		"wasmSetClipSlot": guard(3, false, func(a []js.Value) any {
			return h.SetClipSlot(u32(a[0]), u32(a[1]), u32(a[2]))
		}),
		"wasmLaunchScene": guard(1, false, func(a []js.Value) any { return h.LaunchScene(u32(a[0])) }),
		"wasmScheduleClip": guard(3, false, func(a []js.Value) any {
			return h.ScheduleClip(u32(a[0]), u32(a[1]), a[2].Float())
		}),
		"wasmProcessBlock": guard(1, 0, wasmProcessBlock),
		"wasmPoll":         guard(0, nil, wasmPoll),
	}
	for name, fn := range exports {
		js.Global().Set(name, fn)
	}
	js.Global().Set("wasmGetMemoryBuffer", js.FuncOf(wasmGetMemoryBuffer))

	println("WASM synth module loaded")
	<-c
}

func wasmInit(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return false
	}
	cfg := session.DefaultConfig()
	cfg.SampleRate = args[0].Float()
	cfg.MaxBlock = blockFrames
	if h != nil {
		h.DestroyEngine()
		h.DestroySession()
	}
	var err error
	if h, err = host.New("", cfg); err != nil {
		println("synth init failed:", err.Error())
		return false
	}
	outputBuffer = make([]float32, 2*blockFrames)
	println("Synth initialized at", args[0].Int(), "Hz")
	return true
}

// wasmLoadAudio decodes a WAV ArrayBuffer into the audio pool.
func wasmLoadAudio(args []js.Value) any {
	data := js.Global().Get("Uint8Array").New(args[0])
	raw := make([]byte, data.Get("length").Int())
	js.CopyBytesToGo(raw, data)
	a, err := wavio.Decode(bytes.NewReader(raw))
	if err != nil {
		println("audio decode failed:", err.Error())
		return host.InvalidID
	}
	return h.AddAudio(args[1].String(), float64(a.SampleRate), a.Channels, a.Samples)
}

func wasmProcessBlock(args []js.Value) any {
	frames := min(args[0].Int(), blockFrames)
	if frames <= 0 {
		return 0
	}
	h.Engine().Render(outputBuffer[:2*frames])
	return js.ValueOf(uintptr(unsafe.Pointer(&outputBuffer[0])))
}

func wasmPoll([]js.Value) any {
	rb := h.Poll()
	return map[string]any{
		"beat":         rb.BeatPosition,
		"sample":       rb.SamplePosition,
		"tempo":        rb.Tempo,
		"playing":      rb.Playing,
		"activeVoices": rb.ActiveVoices,
		"peakLeft":     rb.PeakLeft,
		"peakRight":    rb.PeakRight,
		"cpuLoad":      rb.CPULoad,
	}
}

func wasmGetMemoryBuffer(js.Value, []js.Value) any {
	return js.Global().Get("Go").Get("_inst").Get("exports").Get("mem").Get("buffer")
}
