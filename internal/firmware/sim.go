package firmware

import "fmt"

// Sim is an in-process stand-in for real-mode firmware memory: a byte
// arena addressed by segment:offset, plus the two BDA fields the
// emulator touches. It exists so the dispatcher, reconciler, and boot
// loader can be exercised without an actual IVT or real-mode memory —
// exactly the boundary spec.md §9 draws around the assembly trampoline.
type Sim struct {
	mem []byte

	equipmentWord uint16
	hardDiskCount uint8

	vector13 FarPointer
	farJump  FarJumpFunc

	// FarJumps records every FarJump call for test assertions.
	FarJumps []FarJumpCall
}

type FarJumpCall struct {
	Addr FarPointer
	DL   uint8
}

// NewSim allocates a simulated real-mode memory arena of the given size
// (1MB, the real-mode addressable range, is a reasonable default).
func NewSim(memSize int) *Sim {
	return &Sim{mem: make([]byte, memSize)}
}

func (s *Sim) EquipmentWord() uint16     { return s.equipmentWord }
func (s *Sim) SetEquipmentWord(w uint16) { s.equipmentWord = w }
func (s *Sim) HardDiskCount() uint8      { return s.hardDiskCount }
func (s *Sim) SetHardDiskCount(n uint8)  { s.hardDiskCount = n }

func (s *Sim) Vector13() FarPointer { return s.vector13 }

func (s *Sim) SetVector13(addr FarPointer) FarPointer {
	prev := s.vector13
	s.vector13 = addr
	return prev
}

func (s *Sim) CopyFromReal(dst []byte, src FarPointer) error {
	off := src.ToPhysical()
	if int(off)+len(dst) > len(s.mem) {
		return fmt.Errorf("firmware: read past end of simulated memory at %s", src)
	}
	copy(dst, s.mem[off:])
	return nil
}

func (s *Sim) CopyToReal(dst FarPointer, src []byte) error {
	off := dst.ToPhysical()
	if int(off)+len(src) > len(s.mem) {
		return fmt.Errorf("firmware: write past end of simulated memory at %s", dst)
	}
	copy(s.mem[off:], src)
	return nil
}

func (s *Sim) CopyFromPhys(dst []byte, phys uint64) error {
	if phys+uint64(len(dst)) > uint64(len(s.mem)) {
		return fmt.Errorf("firmware: read past end of simulated memory at phys 0x%X", phys)
	}
	copy(dst, s.mem[phys:])
	return nil
}

func (s *Sim) CopyToPhys(phys uint64, src []byte) error {
	if phys+uint64(len(src)) > uint64(len(s.mem)) {
		return fmt.Errorf("firmware: write past end of simulated memory at phys 0x%X", phys)
	}
	copy(s.mem[phys:], src)
	return nil
}

// SetFarJump installs the callback FarJump delegates to; tests leave it
// nil and rely on the default recorder below.
func (s *Sim) SetFarJump(fn FarJumpFunc) { s.farJump = fn }

func (s *Sim) FarJump(addr FarPointer, dl uint8) error {
	s.FarJumps = append(s.FarJumps, FarJumpCall{Addr: addr, DL: dl})
	if s.farJump != nil {
		return s.farJump(addr, dl)
	}
	return fmt.Errorf("firmware: simulated far jump to %s (dl=0x%02X)", addr, dl)
}
