package bytecode

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/0x264/charon/pkg/reader"
)

// Loader parses a serialized bytecode container into a Program.
type Loader struct {
	r *reader.Reader
}

// NewLoader wraps raw container bytes for loading.
func NewLoader(data []byte) *Loader {
	return &Loader{r: reader.New(data)}
}

// Load validates the header and reads the constant pool, classes, and
// functions in container order.
func (l *Loader) Load() (*Program, error) {
	if err := l.loadMagic(); err != nil {
		return nil, err
	}
	minor, major, err := l.loadVersion()
	if err != nil {
		return nil, err
	}

	constants, err := l.loadConstantPool()
	if err != nil {
		return nil, err
	}

	classes, err := l.loadClasses(constants)
	if err != nil {
		return nil, err
	}

	functions, err := l.loadFunctions(constants)
	if err != nil {
		return nil, err
	}

	return &Program{
		VersionMinor: minor,
		VersionMajor: major,
		Constants:    constants,
		Classes:      classes,
		Functions:    functions,
	}, nil
}

func (l *Loader) loadMagic() error {
	magic, err := l.r.ReadN(len(Magic))
	if err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != Magic {
		return fmt.Errorf("not a charon bytecode file: bad magic")
	}
	return nil
}

func (l *Loader) loadVersion() (minor, major uint8, err error) {
	minorV, err := l.r.NextU8()
	if err != nil {
		return 0, 0, fmt.Errorf("reading version minor: %w", err)
	}
	majorV, err := l.r.NextU8()
	if err != nil {
		return 0, 0, fmt.Errorf("reading version major: %w", err)
	}
	if majorV > CurrentVersionMajor ||
		(majorV == CurrentVersionMajor && minorV > CurrentVersionMinor) {
		return 0, 0, fmt.Errorf("unsupported bytecode version %d.%d (this toolchain supports up to %d.%d)",
			majorV, minorV, CurrentVersionMajor, CurrentVersionMinor)
	}
	return minorV, majorV, nil
}

func (l *Loader) loadConstantPool() ([]Constant, error) {
	count, err := l.r.NextU16()
	if err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}

	constants := make([]Constant, 0, count)
	for i := uint16(0); i < count; i++ {
		tag, err := l.r.NextU8()
		if err != nil {
			return nil, fmt.Errorf("reading constant %d tag: %w", i, err)
		}

		switch ConstantTag(tag) {
		case ConstantLong:
			v, err := l.r.NextU64()
			if err != nil {
				return nil, fmt.Errorf("reading long constant %d: %w", i, err)
			}
			constants = append(constants, Constant{Tag: ConstantLong, Long: int64(v)})
		case ConstantDouble:
			v, err := l.r.NextU64()
			if err != nil {
				return nil, fmt.Errorf("reading double constant %d: %w", i, err)
			}
			constants = append(constants, Constant{Tag: ConstantDouble, Double: math.Float64frombits(v)})
		case ConstantString:
			s, err := l.loadStringBody()
			if err != nil {
				return nil, fmt.Errorf("reading string constant %d: %w", i, err)
			}
			constants = append(constants, Constant{Tag: ConstantString, Str: s})
		default:
			return nil, fmt.Errorf("constant %d: unknown tag 0x%x", i, tag)
		}
	}
	return constants, nil
}

func (l *Loader) loadStringBody() (string, error) {
	n, err := l.r.NextU16()
	if err != nil {
		return "", err
	}
	b, err := l.r.ReadN(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("string constant is not valid utf-8")
	}
	return string(b), nil
}

// loadStringConstant resolves a constant pool index expected to hold a
// string, failing with an explicit type mismatch otherwise.
func loadStringConstant(constants []Constant, idx uint16) (string, error) {
	if int(idx) >= len(constants) {
		return "", fmt.Errorf("constant index %d out of range", idx)
	}
	c := constants[idx]
	if c.Tag != ConstantString {
		return "", fmt.Errorf("constant index %d is not a string", idx)
	}
	return c.Str, nil
}

func (l *Loader) loadClasses(constants []Constant) (map[string]*Class, error) {
	count, err := l.r.NextU16()
	if err != nil {
		return nil, fmt.Errorf("reading class count: %w", err)
	}

	classes := make(map[string]*Class, count)
	for i := uint16(0); i < count; i++ {
		nameIdx, err := l.r.NextU16()
		if err != nil {
			return nil, fmt.Errorf("reading class %d name index: %w", i, err)
		}
		name, err := loadStringConstant(constants, nameIdx)
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}

		methodCount, err := l.r.NextU16()
		if err != nil {
			return nil, fmt.Errorf("reading class %q method count: %w", name, err)
		}

		methods := make(map[string]*Method, methodCount)
		for j := uint16(0); j < methodCount; j++ {
			fn, err := l.loadFunctionRecord(constants)
			if err != nil {
				return nil, fmt.Errorf("class %q method %d: %w", name, j, err)
			}
			methods[fn.Name] = &Method{Function: *fn, ClassName: name}
		}

		classes[name] = &Class{Name: name, Methods: methods}
	}
	return classes, nil
}

func (l *Loader) loadFunctions(constants []Constant) (map[string]*Function, error) {
	count, err := l.r.NextU16()
	if err != nil {
		return nil, fmt.Errorf("reading function count: %w", err)
	}

	functions := make(map[string]*Function, count)
	for i := uint16(0); i < count; i++ {
		fn, err := l.loadFunctionRecord(constants)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		functions[fn.Name] = fn
	}
	return functions, nil
}

func (l *Loader) loadFunctionRecord(constants []Constant) (*Function, error) {
	nameIdx, err := l.r.NextU16()
	if err != nil {
		return nil, fmt.Errorf("reading name index: %w", err)
	}
	name, err := loadStringConstant(constants, nameIdx)
	if err != nil {
		return nil, err
	}

	params, err := l.r.NextU8()
	if err != nil {
		return nil, fmt.Errorf("reading param count: %w", err)
	}
	maxLocals, err := l.r.NextU8()
	if err != nil {
		return nil, fmt.Errorf("reading max locals: %w", err)
	}
	codeLen, err := l.r.NextU16()
	if err != nil {
		return nil, fmt.Errorf("reading code length: %w", err)
	}
	code, err := l.r.ReadN(int(codeLen))
	if err != nil {
		return nil, fmt.Errorf("reading code body: %w", err)
	}

	return &Function{Name: name, Params: params, MaxLocals: maxLocals, Code: code}, nil
}
