package website

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxParagraph   = 300
	maxDescription = 200
)

// Links holds the first social profile found per platform.
type Links struct {
	LinkedIn  string
	Facebook  string
	Instagram string
	Twitter   string
}

type platform struct {
	set      func(*Links, string)
	get      func(*Links) string
	patterns []*regexp.Regexp
}

// Host patterns require a boundary so "fox.com/news" is not read as x.com.
var platforms = []platform{
	{
		set:      func(l *Links, v string) { l.LinkedIn = v },
		get:      func(l *Links) string { return l.LinkedIn },
		patterns: []*regexp.Regexp{regexp.MustCompile(`(?i)(?:^|[/.])linkedin\.com/(?:company|in)/[\w-]+`)},
	},
	{
		set: func(l *Links, v string) { l.Facebook = v },
		get: func(l *Links) string { return l.Facebook },
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:^|[/.])facebook\.com/[\w.-]+`),
			regexp.MustCompile(`(?i)(?:^|[/.])fb\.com/[\w.-]+`),
		},
	},
	{
		set:      func(l *Links, v string) { l.Instagram = v },
		get:      func(l *Links) string { return l.Instagram },
		patterns: []*regexp.Regexp{regexp.MustCompile(`(?i)(?:^|[/.])instagram\.com/[\w.]+`)},
	},
	{
		set: func(l *Links, v string) { l.Twitter = v },
		get: func(l *Links) string { return l.Twitter },
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:^|[/.])twitter\.com/\w+`),
			regexp.MustCompile(`(?i)(?:^|[/.])x\.com/\w+`),
		},
	},
}

// Extract parses a homepage and builds the Result for companyName.
func Extract(body []byte, companyName string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	res := &Result{
		Title:       cleanText(doc.Find("title").First().Text()),
		Description: description(doc),
		Links:       socialLinks(doc),
	}
	res.Brief = Brief(companyName, res.Title, res.Description)
	return res, nil
}

func socialLinks(doc *goquery.Document) Links {
	var links Links
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		for _, p := range platforms {
			if p.get(&links) != "" {
				continue
			}
			for _, re := range p.patterns {
				if re.MatchString(href) {
					p.set(&links, absolute(href))
					break
				}
			}
		}
	})
	return links
}

// description prefers the meta description and falls back to the first
// paragraph.
func description(doc *goquery.Document) string {
	var desc string
	doc.Find("meta").EachWithBreak(func(_ int, m *goquery.Selection) bool {
		name, _ := m.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		content, _ := m.Attr("content")
		desc = strings.TrimSpace(content)
		return desc == ""
	})
	if desc != "" {
		return desc
	}
	return truncate(strings.TrimSpace(doc.Find("p").First().Text()), maxParagraph)
}

// Brief summarizes a company from its homepage title and description.
func Brief(companyName, title, description string) string {
	companyName = strings.TrimSpace(companyName)
	if d := cleanText(description); d != "" {
		return companyName + ": " + truncate(d, maxDescription)
	}
	if title != "" {
		return companyName + " - " + title
	}
	return companyName
}

func absolute(href string) string {
	if strings.HasPrefix(strings.ToLower(href), "http") {
		return href
	}
	return "https://" + strings.TrimLeft(href, "/")
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
