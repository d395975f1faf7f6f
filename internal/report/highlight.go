package report

import (
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlight writes src to w with terminal syntax colors for the named
// language ("json", "markdown"). Unknown languages are written unchanged.
func Highlight(w io.Writer, src, language string) error {
	lexer := lexers.Get(language)
	if lexer == nil {
		_, err := io.WriteString(w, src)
		return err
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("dracula")
	if style == nil {
		style = styles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, src)
	if err != nil {
		_, werr := io.WriteString(w, src)
		return werr
	}

	if err := formatter.Format(w, style, iterator); err != nil {
		return fmt.Errorf("highlighting %s: %w", language, err)
	}
	return nil
}
