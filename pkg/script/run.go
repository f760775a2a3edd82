package script

import (
	"errors"
	"fmt"
	"io"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/bitbang"
	"k8s.io/klog/v2"
)

// Target is the session a program runs against. *bitbang.Driver implements
// it.
type Target interface {
	Execute(queue []bitbang.Command) error
	ConfigureLatency(args []string) error
	SetSpeed(khz int) error
	Flush() error
}

var _ Target = (*bitbang.Driver)(nil)

// Run executes the program's steps in order and stops at the first error.
// A latency directive with bad arguments is logged and skipped.
func (p *Program) Run(t Target) error {
	for _, s := range p.Steps {
		if s.Directive != nil {
			klog.V(2).Infof("script: line %d: %s", s.Line, s.Directive)
			err := s.Directive.Apply(t)
			if _, ok := s.Directive.(LatencyDirective); ok && errors.Is(err, bitbang.ErrInvalidArgs) {
				// Already logged; a bad latency leaves the setting unchanged.
				continue
			}
			if err != nil {
				return fmt.Errorf("line %d: %s: %w", s.Line, s.Directive, err)
			}
			continue
		}
		klog.V(2).Infof("script: line %d: %d commands", s.Line, len(s.Commands))
		if err := t.Execute(s.Commands); err != nil {
			return fmt.Errorf("line %d: %w", s.Line, err)
		}
	}
	return nil
}

// WriteCaptures prints one line per captured scan field.
func (p *Program) WriteCaptures(w io.Writer) {
	for _, c := range p.Captures {
		fmt.Fprintf(w, "line %d: %s[%d] = %s\n", c.Line, c.Register, c.Bits, c.Hex())
	}
}

// Load parses and compiles the script at path.
func Load(path string) (*Program, error) {
	parser, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(f)
}

// LoadString parses and compiles an in-memory script.
func LoadString(name, src string) (*Program, error) {
	parser, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := parser.ParseString(name, src)
	if err != nil {
		return nil, err
	}
	return Compile(f)
}
