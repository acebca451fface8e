//go:build ignore

package main

import (
	"fmt"
	"strings"

	"github.com/afobsidian/cvs2gitfi/internal/vcs/cvs"
)

func main() {
	input := `desc
@This is the file description.
It can span multiple lines.@`

	lexer := cvs.NewRCSLexer(strings.NewReader(input))

	for {
		token := lexer.NextToken()
		fmt.Printf("Token: Type=%v, Value=%q, Line=%d\n", token.Type, token.Value, token.Line)
		if token.Type == cvs.TokenEOF {
			break
		}
	}
}
