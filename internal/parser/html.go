package parser

import (
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// page chrome that never belongs in a documentation chunk
const htmlChromeSelector = "script, style, noscript, nav, header, footer, aside, form, .md-sidebar, .md-header, .md-footer"

func parseHTMLFile(filePath, url string) (document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return document{}, err
	}
	return parseHTML(string(data), url)
}

// parseHTML converts the main content of a documentation page to markdown.
// The first <h1> (or <title>) becomes the title.
func parseHTML(html, url string) (document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return document{}, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find(htmlChromeSelector).Remove()
	content := doc.Find("main, article").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	converter := md.NewConverter(md.DomainFromURL(url), true, nil)
	text := strings.TrimSpace(converter.Convert(content))

	parsed := parseMarkdown([]byte(text))
	parsed.title = title
	return parsed, nil
}
