package permission

// Mask64 is a set of up to 64 permission bits.
type Mask64 uint64

const rootMask = Mask64(1) << (maskBits - 1)

func bitMask(bit int) (Mask64, bool) {
	if bit < 0 || bit >= maskBits {
		return 0, false
	}
	return Mask64(1) << bit, true
}

// Has reports whether bit is set. When rootReserved is true a set root bit
// satisfies every check.
func (m Mask64) Has(bit int, rootReserved bool) bool {
	b, ok := bitMask(bit)
	if !ok {
		return false
	}
	if rootReserved && m&rootMask != 0 {
		return true
	}
	return m&b != 0
}

// Set adds bit. Out-of-range bits are ignored.
func (m *Mask64) Set(bit int) {
	if b, ok := bitMask(bit); ok {
		*m |= b
	}
}

// Clear removes bit.
func (m *Mask64) Clear(bit int) {
	if b, ok := bitMask(bit); ok {
		*m &^= b
	}
}

func (m Mask64) Raw() uint64 { return uint64(m) }
