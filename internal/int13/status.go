// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package int13 implements the INT 13h command dispatcher and its
// per-subfunction handlers, per spec.md §4.4.
package int13

// Status is the 8-bit code a real INT 13h caller sees in AH on a
// carry-set return. Handlers return it wrapped in a Result (see OK and
// Fail); the dispatcher is the sole site that converts it to the
// carry/AH convention.
type Status uint8

const (
	StatusOK          Status = 0x00
	StatusInvalid     Status = 0x01
	StatusReadError   Status = 0x04
	StatusResetFailed Status = 0x05
	// StatusNotReady is unused by any handler today; reserved per
	// spec.md §7's error-kind table ("currently unused (future)").
	StatusNotReady Status = 0xAA
)

// Result is what every handler returns: either success (the handler has
// already written whatever success-contract fields it owns into the
// frame) or a failure status the dispatcher converts to carry+AH.
type Result struct {
	ok     bool
	status Status
}

// OK reports success; the frame's AH/other output fields must already
// reflect the handler's success contract.
func OK() Result { return Result{ok: true} }

// Fail reports the given status as the reason for failure.
func Fail(status Status) Result { return Result{status: status} }

func (r Result) IsOK() bool     { return r.ok }
func (r Result) Status() Status { return r.status }
