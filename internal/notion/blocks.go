package notion

import (
	"regexp"
	"strings"

	"github.com/jomei/notionapi"
)

// Notion rejects rich text objects longer than this.
const maxTextLen = 2000

var (
	numberedRe = regexp.MustCompile(`^\d+[.)]\s+`)
	inlineRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)|\*\*([^*]+)\*\*`)
)

// MarkdownToBlocks converts the subset of markdown the newsletter uses into
// Notion blocks: headings, bulleted and numbered items, quotes, dividers and
// paragraphs with links and bold text.
func MarkdownToBlocks(md string) []notionapi.Block {
	var blocks []notionapi.Block
	var para []string
	flush := func() {
		if len(para) == 0 {
			return
		}
		blocks = append(blocks, paragraph(richText(strings.Join(para, " "))))
		para = nil
	}

	for _, raw := range strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			flush()
		case line == "---" || line == "***":
			flush()
			blocks = append(blocks, &notionapi.DividerBlock{
				BasicBlock: basic(notionapi.BlockTypeDivider),
				Divider:    notionapi.Divider{},
			})
		case strings.HasPrefix(line, "### "):
			flush()
			blocks = append(blocks, &notionapi.Heading3Block{
				BasicBlock: basic(notionapi.BlockTypeHeading3),
				Heading3:   notionapi.Heading{RichText: richText(line[4:])},
			})
		case strings.HasPrefix(line, "## "):
			flush()
			blocks = append(blocks, heading2(line[3:]))
		case strings.HasPrefix(line, "# "):
			flush()
			blocks = append(blocks, &notionapi.Heading1Block{
				BasicBlock: basic(notionapi.BlockTypeHeading1),
				Heading1:   notionapi.Heading{RichText: richText(line[2:])},
			})
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			flush()
			blocks = append(blocks, &notionapi.BulletedListItemBlock{
				BasicBlock:       basic(notionapi.BlockTypeBulletedListItem),
				BulletedListItem: notionapi.ListItem{RichText: richText(line[2:])},
			})
		case numberedRe.MatchString(line):
			flush()
			blocks = append(blocks, &notionapi.NumberedListItemBlock{
				BasicBlock:       basic(notionapi.BlockTypeNumberedListItem),
				NumberedListItem: notionapi.ListItem{RichText: richText(numberedRe.ReplaceAllString(line, ""))},
			})
		case strings.HasPrefix(line, ">"):
			flush()
			blocks = append(blocks, &notionapi.QuoteBlock{
				BasicBlock: basic(notionapi.BlockTypeQuote),
				Quote:      notionapi.Quote{RichText: richText(strings.TrimSpace(line[1:]))},
			})
		default:
			para = append(para, line)
		}
	}
	flush()
	return blocks
}

// SourceBlocks renders the trailing "Sources" section, capped at limit links.
func SourceBlocks(urls []string, limit int) []notionapi.Block {
	if len(urls) == 0 {
		return nil
	}
	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	blocks := []notionapi.Block{heading2("Sources")}
	for _, u := range urls {
		blocks = append(blocks, paragraph([]notionapi.RichText{linkText(u, u)}))
	}
	return blocks
}

func basic(t notionapi.BlockType) notionapi.BasicBlock {
	return notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: t}
}

func heading2(s string) notionapi.Block {
	return &notionapi.Heading2Block{
		BasicBlock: basic(notionapi.BlockTypeHeading2),
		Heading2:   notionapi.Heading{RichText: richText(s)},
	}
}

func paragraph(rt []notionapi.RichText) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: basic(notionapi.BlockTypeParagraph),
		Paragraph:  notionapi.Paragraph{RichText: rt},
	}
}

// richText splits a line into plain, linked and bold segments.
func richText(s string) []notionapi.RichText {
	var out []notionapi.RichText
	last := 0
	for _, m := range inlineRe.FindAllStringSubmatchIndex(s, -1) {
		out = append(out, plainText(s[last:m[0]])...)
		if m[2] >= 0 {
			out = append(out, linkText(s[m[2]:m[3]], s[m[4]:m[5]]))
		} else {
			for _, rt := range plainText(s[m[6]:m[7]]) {
				rt.Annotations = &notionapi.Annotations{Bold: true}
				out = append(out, rt)
			}
		}
		last = m[1]
	}
	return append(out, plainText(s[last:])...)
}

func plainText(s string) []notionapi.RichText {
	var out []notionapi.RichText
	for _, chunk := range chunks(s, maxTextLen) {
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: chunk},
		})
	}
	return out
}

func linkText(label, href string) notionapi.RichText {
	r := []rune(label)
	if len(r) > maxTextLen {
		label = string(r[:maxTextLen])
	}
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: label, Link: &notionapi.Link{Url: href}},
	}
}

func chunks(s string, n int) []string {
	if s == "" {
		return nil
	}
	r := []rune(s)
	var out []string
	for len(r) > n {
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	return append(out, string(r))
}

// blocksToText flattens fetched blocks back into markdown-ish text.
func blocksToText(blocks []notionapi.Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		switch v := blk.(type) {
		case *notionapi.ParagraphBlock:
			b.WriteString(plain(v.Paragraph.RichText) + "\n\n")
		case *notionapi.Heading1Block:
			b.WriteString("# " + plain(v.Heading1.RichText) + "\n\n")
		case *notionapi.Heading2Block:
			b.WriteString("## " + plain(v.Heading2.RichText) + "\n\n")
		case *notionapi.Heading3Block:
			b.WriteString("### " + plain(v.Heading3.RichText) + "\n\n")
		case *notionapi.BulletedListItemBlock:
			b.WriteString("- " + plain(v.BulletedListItem.RichText) + "\n")
		case *notionapi.NumberedListItemBlock:
			b.WriteString("1. " + plain(v.NumberedListItem.RichText) + "\n")
		case *notionapi.QuoteBlock:
			b.WriteString("> " + plain(v.Quote.RichText) + "\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func plain(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		if r.PlainText != "" {
			b.WriteString(r.PlainText)
		} else if r.Text != nil {
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}
