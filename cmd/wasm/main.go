//go:build js && wasm
// +build js,wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/PitchMatch/internal/judge"
	"github.com/himanishpuri/PitchMatch/internal/pitch"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorNoPitch
)

// detectPitch runs the pitch detector over one frame so the browser can
// post detections to a live session.
// Args: samples (Array or Float32Array), sampleRate, channels (optional)
// Returns: {error: number, data: {frequency, clarity, pitch, note, accepted} | string}
func detectPitch(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected at least 2 arguments: samples, sampleRate")
	}

	samplesJS := args[0]
	sampleRateJS := args[1]

	if samplesJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "samples must be an Array or Float32Array")
	}
	if sampleRateJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate must be a number")
	}

	sampleRate := sampleRateJS.Int()
	if sampleRate <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate))
	}

	channels := 1
	if len(args) > 2 && args[2].Type() == js.TypeNumber {
		channels = args[2].Int()
	}
	if channels < 1 || channels > 2 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels))
	}

	length := samplesJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "samples is empty")
	}

	samples := make([]float64, length)
	for i := 0; i < length; i++ {
		val := samplesJS.Index(i)
		if val.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("samples element %d is not a number", i))
		}
		samples[i] = val.Float()
	}

	if channels == 2 {
		samples = stereoToMono(samples)
	}

	freq, clarity := pitch.NewDetector(sampleRate).FindPitch(samples)
	if freq <= 0 {
		return makeErrorResponse(ErrorNoPitch, "No pitch found (frame may be silent or aperiodic)")
	}

	smp, accepted := judge.SampleFromDetection(freq, clarity, 0)
	if !accepted {
		smp.Pitch = judge.FrequencyToPitch(freq)
	}

	data := js.Global().Get("Object").New()
	data.Set("frequency", freq)
	data.Set("clarity", clarity)
	data.Set("pitch", smp.Pitch)
	data.Set("note", pitch.NearestName(smp.Pitch))
	data.Set("accepted", accepted)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

// frequencyToPitch converts Hz to a fractional MIDI note number.
func frequencyToPitch(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 1 argument: frequency")
	}
	freq := args[0].Float()
	if freq <= 0 {
		return makeErrorResponse(ErrorProcessing, fmt.Sprintf("Frequency must be positive, got: %g", freq))
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", judge.FrequencyToPitch(freq))
	return result
}

func stereoToMono(stereo []float64) []float64 {
	if len(stereo)%2 != 0 {
		stereo = stereo[:len(stereo)-1]
	}

	mono := make([]float64, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2.0
	}
	return mono
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	if !console.IsUndefined() {
		console.Call("log", "🔧 PitchMatch WASM module initializing...")
	}

	done := make(chan struct{})

	js.Global().Set("detectPitch", js.FuncOf(detectPitch))
	js.Global().Set("frequencyToPitch", js.FuncOf(frequencyToPitch))

	if !console.IsUndefined() {
		console.Call("log", "📝 detectPitch and frequencyToPitch registered")
	}

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
		if !console.IsUndefined() {
			console.Call("log", "✅ wasmReady event dispatched")
		}
	} else if !console.IsUndefined() {
		console.Call("error", "❌ window object is undefined!")
	}

	<-done
}
