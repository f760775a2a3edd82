package script

import "github.com/alecthomas/participle/v2/lexer"

// File is a parsed script.
type File struct {
	Statements []*Statement `@@*`
}

// Statement is one command or directive.
type Statement struct {
	Pos lexer.Position

	Reset        *Reset        `(  "reset" @@`
	RunTest      *RunTest      ` | "runtest" @@`
	PathMove     *PathMove     ` | "pathmove" @@`
	StableClocks *StableClocks ` | "stableclocks" @@`
	TMS          *TMS          ` | "tms" @@`
	Sleep        *Sleep        ` | "sleep" @@`
	Scan         *Scan         ` | "scan" @@`
	Latency      *Latency      ` | "latency" @@`
	Speed        *Speed        ` | "speed" @@`
	Flush        bool          ` | @"flush" )`
}

// Reset: reset <trst> <srst>, 1 asserts the line.
type Reset struct {
	TRST string `@Number`
	SRST string `@Number`
}

// RunTest: runtest <cycles> [end <state>]
type RunTest struct {
	Cycles string `@Number`
	End    string `( "end" @Ident )?`
}

// PathMove: pathmove <state>, <state>, ...
type PathMove struct {
	States []string `@Ident ( Comma @Ident )*`
}

type StableClocks struct {
	Cycles string `@Number`
}

// TMS: tms <bits> <value>, value clocked LSB first.
type TMS struct {
	Bits  string `@Number`
	Value string `@Number`
}

// Sleep: sleep <microseconds>
type Sleep struct {
	Micros string `@Number`
}

// Scan: scan ir|dr <field>, <field>... [end <state>]
type Scan struct {
	Register string   `@( "ir" | "dr" )`
	Fields   []*Field `@@ ( Comma @@ )*`
	End      string   `( "end" @Ident )?`
}

// Field: <bits> [<value>] [capture]
type Field struct {
	Bits    string `@Number`
	Value   string `@Number?`
	Capture bool   `@"capture"?`
}

// Latency keeps its raw arguments; the count is checked when it is applied.
type Latency struct {
	Args []string `@Number*`
}

type Speed struct {
	KHz string `@Number`
}
