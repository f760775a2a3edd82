package script

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes command scripts. Statements are self-delimiting, so
// newlines and semicolons are only separators for the reader.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Semicolon", Pattern: `;`},

	// Hex and binary literals may be wider than 64 bits for scan data.
	{Name: "Number", Pattern: `0[xX][0-9A-Fa-f_]+|0[bB][01_]+|[0-9]+`},

	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9_-]*`},
	{Name: "Comma", Pattern: `,`},
})
