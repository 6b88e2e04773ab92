// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Command xmlwalk reads an XML document and prints its token stream
// (BeginElement/EndElement/Text/EndDocument, with depth and resolved
// namespace/prefix), demonstrating the xmlstream lexer end to end.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nishisan-dev/go-protocol-core/internal/logging"
	"github.com/nishisan-dev/go-protocol-core/xmlstream"
)

func main() {
	path := flag.String("file", "", "path to an XML file; reads stdin if omitted")
	flag.Parse()

	logger, logCloser := logging.NewLogger("info", "text", "")
	defer logCloser.Close()

	var data []byte
	var err error
	if *path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*path)
	}
	if err != nil {
		logger.Error("reading input", "error", err)
		os.Exit(1)
	}

	lexer := xmlstream.New(string(data))
	for {
		tok, err := lexer.NextToken()
		if err != nil {
			logger.Error("lexing input", "error", err)
			os.Exit(1)
		}
		printToken(tok)
		if tok.Kind == xmlstream.EndDocument {
			break
		}
	}
}

func printToken(tok xmlstream.Token) {
	indent := ""
	for i := 0; i < tok.Depth; i++ {
		indent += "  "
	}
	switch tok.Kind {
	case xmlstream.BeginElement:
		fmt.Printf("%sBeginElement depth=%d name=%s attrs=%v nsDecls=%v\n", indent, tok.Depth, tok.Name, tok.Attributes, tok.NsDeclarations)
	case xmlstream.EndElement:
		fmt.Printf("%sEndElement depth=%d name=%s\n", indent, tok.Depth, tok.Name)
	case xmlstream.Text:
		fmt.Printf("%sText depth=%d %q\n", indent, tok.Depth, tok.Text)
	case xmlstream.EndDocument:
		fmt.Println("EndDocument")
	}
}
