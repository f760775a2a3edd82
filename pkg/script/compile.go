package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/bitbang"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
)

// ErrCompile marks scripts that parse but cannot be turned into commands.
var ErrCompile = errors.New("script: invalid statement")

// Directive is a session setting applied between command batches.
type Directive interface {
	Apply(t Target) error
	String() string
}

// LatencyDirective carries the raw latency arguments.
type LatencyDirective struct{ Args []string }

// SpeedDirective sets the TCK byte rate in kHz.
type SpeedDirective struct{ KHz int }

// FlushDirective drains the transmit buffer.
type FlushDirective struct{}

func (d LatencyDirective) Apply(t Target) error { return t.ConfigureLatency(d.Args) }
func (d SpeedDirective) Apply(t Target) error   { return t.SetSpeed(d.KHz) }
func (FlushDirective) Apply(t Target) error     { return t.Flush() }

func (d LatencyDirective) String() string { return "latency " + strings.Join(d.Args, " ") }
func (d SpeedDirective) String() string   { return fmt.Sprintf("speed %d", d.KHz) }
func (FlushDirective) String() string     { return "flush" }

// Step is either a batch of queued commands or one directive.
type Step struct {
	Line      int
	Commands  []bitbang.Command
	Directive Directive
}

// Capture names a scan field whose TDO bits are kept. Data is filled in
// when the program runs.
type Capture struct {
	Line     int
	Register string
	Bits     int
	Data     []byte
}

// Hex renders the captured bits MSB first.
func (c Capture) Hex() string {
	var b strings.Builder
	b.WriteString("0x")
	for i := len(c.Data) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%02X", c.Data[i])
	}
	return b.String()
}

// Program is a compiled script.
type Program struct {
	Steps    []Step
	Captures []*Capture
}

// Commands returns every queued command in order, ignoring directives.
func (p *Program) Commands() []bitbang.Command {
	var out []bitbang.Command
	for _, s := range p.Steps {
		out = append(out, s.Commands...)
	}
	return out
}

// Compile turns a parsed script into a program. Consecutive commands share
// one batch.
func Compile(f *File) (*Program, error) {
	p := &Program{}
	var batch *Step
	for _, st := range f.Statements {
		line := st.Pos.Line
		cmd, dir, err := p.compileStatement(st)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if dir != nil {
			p.Steps = append(p.Steps, Step{Line: line, Directive: dir})
			batch = nil
			continue
		}
		if batch == nil {
			p.Steps = append(p.Steps, Step{Line: line})
			batch = &p.Steps[len(p.Steps)-1]
		}
		batch.Commands = append(batch.Commands, cmd)
	}
	return p, nil
}

func (p *Program) compileStatement(st *Statement) (bitbang.Command, Directive, error) {
	switch {
	case st.Reset != nil:
		trst, err := parseFlag(st.Reset.TRST)
		if err != nil {
			return nil, nil, err
		}
		srst, err := parseFlag(st.Reset.SRST)
		if err != nil {
			return nil, nil, err
		}
		return bitbang.ResetCommand{TRST: trst, SRST: srst}, nil, nil

	case st.RunTest != nil:
		cycles, err := parseCount(st.RunTest.Cycles)
		if err != nil {
			return nil, nil, err
		}
		end, err := parseEndState(st.RunTest.End, tap.StateRunTestIdle)
		if err != nil {
			return nil, nil, err
		}
		return bitbang.RunTestCommand{Cycles: cycles, EndState: end}, nil, nil

	case st.PathMove != nil:
		path := make([]tap.State, 0, len(st.PathMove.States))
		for _, name := range st.PathMove.States {
			s, err := tap.ParseState(name)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrCompile, err)
			}
			path = append(path, s)
		}
		return bitbang.PathMoveCommand{Path: path}, nil, nil

	case st.StableClocks != nil:
		cycles, err := parseCount(st.StableClocks.Cycles)
		if err != nil {
			return nil, nil, err
		}
		return bitbang.StableClocksCommand{Cycles: cycles}, nil, nil

	case st.TMS != nil:
		n, err := parseCount(st.TMS.Bits)
		if err != nil {
			return nil, nil, err
		}
		bits, err := parseBits(st.TMS.Value, n)
		if err != nil {
			return nil, nil, err
		}
		return bitbang.TMSCommand{NumBits: n, Bits: bits}, nil, nil

	case st.Sleep != nil:
		us, err := parseUint(st.Sleep.Micros, 32)
		if err != nil {
			return nil, nil, err
		}
		return bitbang.SleepCommand{Micros: uint32(us)}, nil, nil

	case st.Scan != nil:
		cmd, err := p.compileScan(st.Pos.Line, st.Scan)
		if err != nil {
			return nil, nil, err
		}
		return cmd, nil, nil

	case st.Latency != nil:
		return nil, LatencyDirective{Args: st.Latency.Args}, nil

	case st.Speed != nil:
		khz, err := parseCount(st.Speed.KHz)
		if err != nil {
			return nil, nil, err
		}
		if _, err := bitbang.KHzToSpeed(khz); err != nil {
			return nil, nil, err
		}
		return nil, SpeedDirective{KHz: khz}, nil

	case st.Flush:
		return nil, FlushDirective{}, nil
	}
	return nil, nil, fmt.Errorf("%w: empty statement", ErrCompile)
}

func (p *Program) compileScan(line int, s *Scan) (bitbang.Command, error) {
	end, err := parseEndState(s.End, tap.StateRunTestIdle)
	if err != nil {
		return nil, err
	}
	reg := strings.ToLower(s.Register)
	cmd := bitbang.ScanCommand{IR: reg == "ir", EndState: end}
	for _, f := range s.Fields {
		n, err := parseCount(f.Bits)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: zero-length scan field", ErrCompile)
		}
		field := bitbang.ScanField{Bits: n}
		if f.Value != "" {
			if field.Out, err = parseBits(f.Value, n); err != nil {
				return nil, err
			}
		}
		if f.Capture {
			field.In = make([]byte, (n+7)/8)
			p.Captures = append(p.Captures, &Capture{Line: line, Register: reg, Bits: n, Data: field.In})
		}
		cmd.Fields = append(cmd.Fields, field)
	}
	return cmd, nil
}

func parseEndState(name string, def tap.State) (tap.State, error) {
	if name == "" {
		return def, nil
	}
	s, err := tap.ParseState(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	if !tap.IsStable(s) {
		return 0, fmt.Errorf("%w: end state %s is not stable", ErrCompile, s)
	}
	return s, nil
}

func parseUint(s string, bitSize int) (uint64, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, bitSize)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q: %w", ErrCompile, s, err)
	}
	return v, nil
}

func parseCount(s string) (int, error) {
	v, err := parseUint(s, 31)
	return int(v), err
}

func parseFlag(s string) (bool, error) {
	v, err := parseUint(s, 8)
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("%w: reset level %q must be 0 or 1", ErrCompile, s)
	}
	return v == 1, nil
}

// parseBits converts a literal to n bits, LSB first. Hex and binary
// literals may be arbitrarily wide; decimal is limited to 64 bits. Set bits
// beyond n are an error.
func parseBits(s string, n int) ([]byte, error) {
	out := make([]byte, (n+7)/8)
	digits := strings.ReplaceAll(s, "_", "")
	var bitsPerDigit int
	switch {
	case strings.HasPrefix(digits, "0x"), strings.HasPrefix(digits, "0X"):
		bitsPerDigit = 4
	case strings.HasPrefix(digits, "0b"), strings.HasPrefix(digits, "0B"):
		bitsPerDigit = 1
	default:
		v, err := parseUint(s, 64)
		if err != nil {
			return nil, err
		}
		for i := 0; i < 64; i++ {
			if v&(1<<uint(i)) == 0 {
				continue
			}
			if i >= n {
				return nil, fmt.Errorf("%w: %s does not fit in %d bits", ErrCompile, s, n)
			}
			out[i/8] |= 1 << uint(i%8)
		}
		return out, nil
	}

	digits = digits[2:]
	pos := 0
	for i := len(digits) - 1; i >= 0; i-- {
		d, err := strconv.ParseUint(digits[i:i+1], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrCompile, s)
		}
		for b := 0; b < bitsPerDigit; b++ {
			if d&(1<<uint(b)) != 0 {
				if pos >= n {
					return nil, fmt.Errorf("%w: %s does not fit in %d bits", ErrCompile, s, n)
				}
				out[pos/8] |= 1 << uint(pos%8)
			}
			pos++
		}
	}
	return out, nil
}
