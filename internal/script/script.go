// Package script runs a Lua function before every frame to animate parameters.
//
// A script defines frame(ms) and may call:
//
//	set(device, param, value)  -- value is a string or a number
//	get(device, param)         -- returns the decoded value
//	log(message)
//
// Example:
//
//	function frame(ms)
//	  set("spot1", "dimmer", (math.sin(ms / 1000) + 1) / 2)
//	end
package script

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	lua "github.com/yuin/gopher-lua"

	"dmxparams/internal/device"
	"dmxparams/internal/logger"
)

// FrameFunction is the Lua global called every frame.
const FrameFunction = "frame"

var ErrNoFrameFunction = errors.New("script does not define frame(ms)")

// Values is the part of a device group a script can use.
type Values interface {
	Get(device, param string) (string, error)
	Set(device, param, value string) error
}

var _ Values = (*device.Group)(nil)

// Engine holds one Lua state. It must only be used from one goroutine,
// normally the frame loop.
type Engine struct {
	log    *logger.Log
	values Values
	state  *lua.LState
	frame  lua.LValue
}

// New creates an engine with the set/get/log globals registered.
func New(log *logger.Log, values Values) *Engine {
	e := &Engine{
		log:    log.Module("script"),
		values: values,
		state:  lua.NewState(),
	}
	e.state.SetGlobal("set", e.state.NewFunction(e.luaSet))
	e.state.SetGlobal("get", e.state.NewFunction(e.luaGet))
	e.state.SetGlobal("log", e.state.NewFunction(e.luaLog))
	return e
}

// LoadFile runs the script at path.
func (e *Engine) LoadFile(path string) error {
	if err := e.state.DoFile(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return e.lookupFrame()
}

// LoadString runs src.
func (e *Engine) LoadString(src string) error {
	if err := e.state.DoString(src); err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	return e.lookupFrame()
}

func (e *Engine) lookupFrame() error {
	fn := e.state.GetGlobal(FrameFunction)
	if fn.Type() != lua.LTFunction {
		return ErrNoFrameFunction
	}
	e.frame = fn
	return nil
}

// Frame calls frame(ms) with the elapsed time in milliseconds.
func (e *Engine) Frame(elapsed time.Duration) error {
	if e.frame == nil {
		return ErrNoFrameFunction
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	return e.state.CallByParam(lua.P{
		Fn:      e.frame,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(ms))
}

// Close releases the Lua state.
func (e *Engine) Close() {
	e.state.Close()
}

func (e *Engine) luaSet(L *lua.LState) int {
	dev := L.CheckString(1)
	name := L.CheckString(2)

	var value string
	switch v := L.Get(3).(type) {
	case lua.LNumber:
		value = strconv.FormatFloat(float64(v), 'f', -1, 64)
	case lua.LString:
		value = string(v)
	default:
		L.ArgError(3, "string or number expected")
		return 0
	}

	if err := e.values.Set(dev, name, value); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (e *Engine) luaGet(L *lua.LState) int {
	value, err := e.values.Get(L.CheckString(1), L.CheckString(2))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lua.LString(value))
	return 1
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info(L.CheckString(1))
	return 0
}
