package cleaner

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	spacePattern      = regexp.MustCompile(`[ \t]+`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
	htmlHint          = regexp.MustCompile(`(?i)<(html|body|div|p|li|ul|h[1-6]|br|span)[\s/>]`)
)

type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// CleanJobDescription normalises a pasted job description. HTML input (a
// saved posting page) is reduced to its text blocks.
func (c *Cleaner) CleanJobDescription(text string) string {
	if htmlHint.MatchString(text) {
		return c.CleanHTML(text)
	}
	return cleanText(text)
}

func (c *Cleaner) CleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return stripTags(html)
	}
	doc.Find("script, style, nav, header, footer, iframe, noscript").Remove()
	doc.Find(".menu, .navigation, .social, .banner, .ads, .cookie, .popup").Remove()

	var textBlocks []string
	doc.Find("p, li, h1, h2, h3, h4, h5, h6").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > 0 {
			textBlocks = append(textBlocks, text)
		}
	})
	if len(textBlocks) > 0 {
		return strings.Join(textBlocks, "\n\n")
	}

	bodyText := strings.TrimSpace(doc.Find("body").Text())
	if len(bodyText) > 0 {
		return cleanText(bodyText)
	}

	return cleanText(doc.Text())
}

// CleanLlmResponse strips code-fence wrappers (```json, ```yaml, bare ```)
// around a model reply.
func (c *Cleaner) CleanLlmResponse(response string) string {
	if !strings.Contains(response, "```") {
		return strings.TrimSpace(response)
	}

	start := strings.Index(response, "```") + 3
	// skip the info string (json, yaml, ...) up to the end of the fence line
	if nl := strings.IndexByte(response[start:], '\n'); nl != -1 && !strings.ContainsAny(response[start:start+nl], "{[") {
		start += nl + 1
	}

	end := strings.LastIndex(response, "```")
	if end > start {
		return strings.TrimSpace(response[start:end])
	}

	return strings.TrimSpace(response)
}

func stripTags(html string) string {
	return cleanText(tagPattern.ReplaceAllString(html, " "))
}

func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
