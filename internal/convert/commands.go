package convert

import (
	"path/filepath"

	"git.home.luguber.info/inful/docpress/internal/config"
)

// Converter argument lists. The flag sets are fixed; only the template,
// input, output and URL vary per job.

// htmlCommand renders a staged Markdown file to HTML5 with the per-type
// template, a depth-4 table of contents, section wrapping and syntax
// highlighting disabled.
func htmlCommand(conv config.ConvertersConfig, templatesDir, typ, in, out string) Command {
	return Command{
		Name: conv.Pandoc,
		Args: []string{
			"--write=html5",
			"--template=" + filepath.Join(templatesDir, typ+".html"),
			"--toc",
			"--toc-depth=4",
			"--section-divs",
			"--no-highlight",
			"--output=" + out,
			in,
		},
	}
}

// epubCommand renders a staged Markdown file to EPUB. The working directory
// is the document's own directory: the renderer resolves image references
// relative to the invocation's working directory, not the input file.
func epubCommand(conv config.ConvertersConfig, templatesDir, typ, in, out string) Command {
	return Command{
		Name: conv.Pandoc,
		Args: []string{
			"--write=epub",
			"--template=" + filepath.Join(templatesDir, typ+".epub"),
			"--toc",
			"--toc-depth=4",
			"--section-divs",
			"--output=" + out,
			in,
		},
		Dir: filepath.Dir(in),
	}
}

// mobiCommand converts a generated EPUB into MOBI.
func mobiCommand(conv config.ConvertersConfig, in, out string) Command {
	return Command{
		Name: conv.EbookConvert,
		Args: []string{in, out},
	}
}

// pdfCommand renders generated HTML, fetched over HTTP from the ephemeral
// server, into PDF with fixed print settings. The one-second script delay
// lets client-side rendering settle before capture.
func pdfCommand(conv config.ConvertersConfig, url, out string) Command {
	return Command{
		Name: conv.WKHTMLToPDF,
		Args: []string{
			"--print-media-type",
			"--dpi", "300",
			"--javascript-delay", "1000",
			"--margin-bottom", "15",
			"--footer-spacing", "5",
			"--footer-font-size", "8",
			"--footer-font-name", conv.FooterFont,
			"--footer-right", "Page [page] of [topage]",
			"--quiet",
			url,
			out,
		},
	}
}
