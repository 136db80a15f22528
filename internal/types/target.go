package types

// Target describes the data model sizes are computed for.
type Target struct {
	Name     string
	PtrSize  uint32
	PtrAlign uint32
	LongSize uint32
}

// LP64 is the x86_64/aarch64 Unix data model.
func LP64() Target {
	return Target{Name: "lp64", PtrSize: 8, PtrAlign: 8, LongSize: 8}
}

// ILP32 is the 32-bit data model.
func ILP32() Target {
	return Target{Name: "ilp32", PtrSize: 4, PtrAlign: 4, LongSize: 4}
}

// TargetByPtrSize picks a data model from a pointer width in bytes.
func TargetByPtrSize(n int) (Target, bool) {
	switch n {
	case 8:
		return LP64(), true
	case 4:
		return ILP32(), true
	default:
		return Target{}, false
	}
}

func (tg Target) basicLayout(spec Spec) (size, align uint32) {
	switch spec {
	case SpecVoid:
		return 0, 1
	case SpecChar:
		return 1, 1
	case SpecShort:
		return 2, 2
	case SpecInt, SpecEnum:
		return 4, 4
	case SpecLong:
		return tg.LongSize, tg.LongSize
	case SpecLongLong:
		return 8, 8
	default:
		return 0, 1
	}
}

func alignUp(v uint64, align uint32) uint64 {
	if align <= 1 {
		return v
	}
	a := uint64(align)
	return (v + a - 1) / a * a
}
