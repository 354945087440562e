package parser

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"workflow-docs-rag/internal/config"
	"workflow-docs-rag/internal/models"
)

const (
	defaultChunkSize    = 5000 // chars
	defaultChunkOverlap = 200  // chars
	maxSummaryLen       = 300
)

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxTextRe      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
)

// Options controls how a file becomes stored chunks.
type Options struct {
	// Source is written to metadata.source of every chunk.
	Source string
	// SiteName is appended to page titles as "Title - SiteName".
	SiteName     string
	ChunkSize    int
	ChunkOverlap int
}

// OptionsFromConfig builds parser options from the rag section.
func OptionsFromConfig(cfg *config.RAGConfig, siteName string) Options {
	return Options{
		Source:       cfg.Source,
		SiteName:     siteName,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}
}

// document is the text pulled out of a file before chunking.
type document struct {
	title   string
	summary string
	text    string
}

// ParseFile reads a documentation file and splits it into ordered chunks of
// the page at url. Chunk numbers start at 0.
func ParseFile(filePath, url string, opts Options) ([]models.SitePage, error) {
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ChunkOverlap <= 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = min(defaultChunkOverlap, opts.ChunkSize/2)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	var (
		doc document
		err error
	)
	switch ext {
	case ".md", ".markdown":
		doc, err = parseMarkdownFile(filePath)
	case ".html", ".htm":
		doc, err = parseHTMLFile(filePath, url)
	case ".txt":
		doc, err = parseText(filePath)
	case ".pdf":
		doc, err = parsePDF(filePath)
	case ".docx":
		doc, err = parseDOCX(filePath)
	case ".xlsx":
		doc, err = parseXLSX(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	if doc.title == "" {
		doc.title = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	pages := buildPages(doc, url, filepath.Base(filePath), ext, opts)
	log.Debug().Str("file", filePath).Str("url", url).Int("chunks", len(pages)).Msg("Parsed document")
	return pages, nil
}

func buildPages(doc document, url, fileName, ext string, opts Options) []models.SitePage {
	title := doc.title
	if opts.SiteName != "" {
		title += models.TitleDelimiter + opts.SiteName
	}

	chunks := chunkContent(doc.text, opts.ChunkSize, opts.ChunkOverlap)
	pages := make([]models.SitePage, len(chunks))
	for i, c := range chunks {
		pages[i] = models.SitePage{
			URL:         url,
			ChunkNumber: i,
			Title:       title,
			Summary:     doc.summary,
			Content:     c,
			Metadata: map[string]any{
				models.MetadataSource: opts.Source,
				"file_name":           fileName,
				"format":              strings.TrimPrefix(ext, "."),
				"chunk_size":          len(c),
			},
		}
	}
	return pages
}

func parseText(filePath string) (document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return document{}, err
	}
	return document{text: string(data)}, nil
}

func parsePDF(filePath string) (document, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return document{}, err
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return document{}, fmt.Errorf("page %d: %w", i, err)
		}
		if s := strings.TrimSpace(pageText); s != "" {
			pages = append(pages, s)
		}
	}
	return document{text: strings.Join(pages, "\n\n")}, nil
}

func parseDOCX(filePath string) (document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return document{}, err
	}
	defer r.Close()

	paragraphs := extractDocxParagraphs(r.Editable().GetContent())
	doc := document{text: strings.Join(paragraphs, "\n\n")}
	if len(paragraphs) > 0 {
		doc.title = paragraphs[0]
	}
	return doc, nil
}

// extractDocxParagraphs returns the non-empty paragraph texts of a
// word/document.xml body.
func extractDocxParagraphs(xmlContent string) []string {
	var out []string
	for _, p := range docxParagraphRe.FindAllString(xmlContent, -1) {
		var text strings.Builder
		for _, m := range docxTextRe.FindAllStringSubmatch(p, -1) {
			text.WriteString(m[1])
		}
		if s := strings.TrimSpace(html.UnescapeString(text.String())); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseXLSX(filePath string) (document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return document{}, err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return document{}, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&text, "## Sheet: %s\n", sheetName)
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	return document{text: text.String()}, nil
}

// chunk content into chunks with maxChars and overlapChars
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	content = strings.TrimSpace(content)
	contentLen := len(content)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		// prefer a paragraph, line or sentence break in the last 30% of the window
		if end < contentLen {
			window := content[start:end]
			floor := maxChars * 7 / 10
			if i := strings.LastIndex(window, "\n\n"); i > floor {
				end = start + i
			} else if i := strings.LastIndex(window, "\n"); i > floor {
				end = start + i
			} else if i := strings.LastIndex(window, ". "); i > floor {
				end = start + i + 1
			}
			end = runeStart(content, start, end)
			if end == start {
				_, size := utf8.DecodeRuneInString(content[start:])
				end = start + size
			}
		}

		if chunk := strings.TrimSpace(content[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= contentLen {
			break
		}

		next := runeStart(content, start, end-overlapChars)
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// runeStart moves i back to the first byte of the rune it falls in, never
// below floor.
func runeStart(s string, floor, i int) int {
	for i > floor && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
