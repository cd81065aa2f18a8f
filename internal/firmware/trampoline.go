package firmware

// DispatchFunc is the single entry point the trampoline calls on every
// INT 13h. It receives the captured register frame and is responsible for
// filling in Carry/AH/DL and the Overflow "handled" signal described in
// spec.md §4.5. The concrete implementation lives in package int13; this
// package only knows its shape, per the source's own guidance to bind the
// assembly stub to "a single function pointer the higher-level dispatcher
// provides."
type DispatchFunc func(fw Firmware, frame *RegisterFrame)

// ChainFunc invokes the firmware's original INT 13h handler — the
// "far-call the original vector" step. It is a separate hook so tests can
// substitute a stub BIOS instead of real firmware.
type ChainFunc func(frame *RegisterFrame) error

// DLFixupFunc implements the trampoline's step 4: deciding what DL should
// read on return, given the subfunction and drive kind in effect at entry.
// It is supplied by package int13 because only the command dispatcher
// knows num_drives/num_fdds; the trampoline itself is agnostic to drive
// bookkeeping.
type DLFixupFunc func(subfunction uint8, entryDL uint8, frame *RegisterFrame) uint8

// Trampoline is the minimal leaf component standing in for the assembly
// stub installed at vector 0x13. It owns no drive state; it only
// sequences: snapshot, dispatch, chain-or-not, DL fix-up, return. A real
// firmware build would implement this sequence in real-mode assembly;
// here it is plain Go so it can be exercised by tests and the CLI
// harness without a CPU to hook.
type Trampoline struct {
	FW       Firmware
	Dispatch DispatchFunc
	Chain    ChainFunc
	FixupDL  DLFixupFunc
}

// Int13 runs one interrupt entry through the trampoline algorithm
// described in spec.md §4.5. It never fails on a "not our drive" miss —
// that is exactly the chain path — only Chain itself (simulating a
// firmware call) can return an error.
func (t *Trampoline) Int13(frame *RegisterFrame) error {
	entryAH := frame.AH
	entryDL := frame.DL()

	// "clear overflow and set carry" — defaults the dispatcher may
	// override before returning.
	frame.Overflow = false
	frame.Carry = true

	t.Dispatch(t.FW, frame)

	if !frame.Overflow {
		// Dispatcher left overflow clear: chain to the original vector.
		if t.Chain != nil {
			if err := t.Chain(frame); err != nil {
				return err
			}
		}
	}

	if t.FixupDL != nil {
		frame.SetDL(t.FixupDL(entryAH, entryDL, frame))
	} else {
		frame.SetDL(entryDL)
	}
	return nil
}
