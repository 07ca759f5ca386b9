package fetcher

import (
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

var (
	rssItemPattern   = regexp.MustCompile(`(?is)<item[\s>].*?</item>`)
	atomEntryPattern = regexp.MustCompile(`(?is)<entry[\s>].*?</entry>`)
)

// salvageItems recovers entries from a feed document that failed to parse as a
// whole. Every <item> or <entry> block is wrapped in a minimal envelope and parsed
// on its own; blocks that still fail are dropped. It returns the recovered items
// and the number of blocks that were dropped.
func salvageItems(body []byte) ([]*gofeed.Item, int) {
	doc := string(body)
	var items []*gofeed.Item
	dropped := 0

	for _, block := range rssItemPattern.FindAllString(doc, -1) {
		if it := parseBlock(`<rss version="2.0"><channel>` + block + `</channel></rss>`); it != nil {
			items = append(items, it)
			continue
		}
		dropped++
	}
	for _, block := range atomEntryPattern.FindAllString(doc, -1) {
		if it := parseBlock(`<feed xmlns="http://www.w3.org/2005/Atom">` + block + `</feed>`); it != nil {
			items = append(items, it)
			continue
		}
		dropped++
	}
	return items, dropped
}

func parseBlock(envelope string) *gofeed.Item {
	feed, err := gofeed.NewParser().Parse(strings.NewReader(envelope))
	if err != nil || len(feed.Items) != 1 {
		return nil
	}
	return feed.Items[0]
}
