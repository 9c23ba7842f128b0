package faultroute

import (
	"encoding/binary"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/vmem"
)

// Fault-routing record layout (x64 RUNTIME_FUNCTION, UNWIND_INFO, handler thunk).
const (
	runtimeFunctionSize = 12
	unwindInfoOffset    = runtimeFunctionSize
	thunkOffset         = unwindInfoOffset + 8
	thunkSize           = 13

	// RecordSize is the size of the record written at the start of a mapping.
	RecordSize = 36

	unwindVersion   = 1
	unwFlagEHandler = 1
	flagsBitOffset  = 3
)

// FunctionTable is the OS function-table registration interface.
type FunctionTable interface {
	// Add registers count RUNTIME_FUNCTION entries at table, with addresses
	// relative to base.
	Add(table uintptr, count uint32, base uintptr) error
	// Delete removes a table previously added.
	Delete(table uintptr) error
}

// TableConfig configures a Table strategy. Zero fields take platform defaults.
type TableConfig struct {
	// Registrar performs the OS registration.
	Registrar FunctionTable
	// Handler is the address the thunk jumps to.
	Handler uintptr
	// PageSize is the reservation at the start of each mapping.
	PageSize int
}

// Table writes a fault-routing record into the first page of each mapping and
// registers the remaining range with the OS function table.
type Table struct {
	registrar FunctionTable
	handler   uintptr
	pageSize  int
}

// NewTable creates a Table strategy. A nil config uses the platform registrar
// and handler.
func NewTable(cfg *TableConfig) *Table {
	t := &Table{}
	if cfg != nil {
		t.registrar = cfg.Registrar
		t.handler = cfg.Handler
		t.pageSize = cfg.PageSize
	}
	if t.registrar == nil {
		t.registrar = defaultRegistrar()
	}
	if t.handler == 0 {
		t.handler = defaultHandler()
	}
	if t.pageSize == 0 {
		t.pageSize = vmem.PageSize()
	}
	return t
}

func (t *Table) Name() string  { return "table" }
func (t *Table) Reserved() int { return t.pageSize }

func (t *Table) Register(m *vmem.Mapping) error {
	if m.Protection() != vmem.ReadWrite {
		return errors.RegistrationFailed(m.Base(), "mapping is no longer writable", nil)
	}
	if m.Len() <= t.pageSize {
		return errors.RegistrationFailed(m.Base(), "mapping has no room past the record page", nil)
	}
	if uint64(m.Len()) > math.MaxUint32 {
		return errors.RegistrationFailed(m.Base(), "mapping exceeds the 32-bit function table range", nil)
	}

	WriteRecord(m.Bytes(), uint32(t.pageSize), uint32(m.Len()), t.handler)

	if err := t.registrar.Add(m.Base(), 1, m.Base()); err != nil {
		return errors.RegistrationFailed(m.Base(), "add function table", err)
	}

	Logger().Debug("registered code mapping",
		zap.Uintptr("base", m.Base()),
		zap.Int("len", m.Len()),
		zap.Uintptr("handler", t.handler))
	return nil
}

func (t *Table) Unregister(m *vmem.Mapping) error {
	if m.Len() == 0 {
		return nil
	}
	if err := t.registrar.Delete(m.Base()); err != nil {
		return errors.New(errors.PhaseRelease, errors.KindRegistration).
			Addr(m.Base()).
			Detail("delete function table").
			Cause(err).
			Build()
	}
	return nil
}

// WriteRecord writes the fault-routing record into dst. The function covers
// [begin, end) relative to the start of dst and every fault inside it is
// routed through the thunk to handler.
func WriteRecord(dst []byte, begin, end uint32, handler uintptr) {
	_ = dst[RecordSize-1]

	// RUNTIME_FUNCTION
	binary.LittleEndian.PutUint32(dst[0:], begin)
	binary.LittleEndian.PutUint32(dst[4:], end)
	binary.LittleEndian.PutUint32(dst[8:], unwindInfoOffset)

	// UNWIND_INFO: no prologue, no unwind codes, no frame register.
	dst[unwindInfoOffset] = unwindVersion | unwFlagEHandler<<flagsBitOffset
	dst[unwindInfoOffset+1] = 0
	dst[unwindInfoOffset+2] = 0
	dst[unwindInfoOffset+3] = 0
	binary.LittleEndian.PutUint32(dst[unwindInfoOffset+4:], thunkOffset)

	// mov rax, imm64; nop; jmp rax
	thunk := dst[thunkOffset : thunkOffset+thunkSize]
	thunk[0] = 0x48
	thunk[1] = 0xb8
	binary.LittleEndian.PutUint64(thunk[2:], uint64(handler))
	thunk[10] = 0x90
	thunk[11] = 0xff
	thunk[12] = 0xe0

	for i := thunkOffset + thunkSize; i < RecordSize; i++ {
		dst[i] = 0
	}
}

// Record is the decoded form of a fault-routing record.
type Record struct {
	Begin      uint32
	End        uint32
	UnwindInfo uint32
	Flags      uint8
	Handler    uintptr
}

// ReadRecord decodes the record at the start of src.
func ReadRecord(src []byte) (Record, bool) {
	if len(src) < RecordSize {
		return Record{}, false
	}
	thunk := src[thunkOffset : thunkOffset+thunkSize]
	if thunk[0] != 0x48 || thunk[1] != 0xb8 || thunk[11] != 0xff || thunk[12] != 0xe0 {
		return Record{}, false
	}
	return Record{
		Begin:      binary.LittleEndian.Uint32(src[0:]),
		End:        binary.LittleEndian.Uint32(src[4:]),
		UnwindInfo: binary.LittleEndian.Uint32(src[8:]),
		Flags:      src[unwindInfoOffset] >> flagsBitOffset,
		Handler:    uintptr(binary.LittleEndian.Uint64(thunk[2:])),
	}, true
}
