// Package reply 处理导师回复的格式：正文与拼音分段、提取可朗读的中文。
package reply

import "strings"

// Delimiter 分隔正文与拼音部分的独立行。
const Delimiter = "---"

// Sections 表示一条回复被分隔符切开后的两部分。
type Sections struct {
	Main   string `json:"main"`
	Pinyin string `json:"pinyin"`
}

// HasPinyin 表示回复是否带有拼音部分。
func (s Sections) HasPinyin() bool {
	return s.Pinyin != ""
}

// Join 用分隔符行重新拼接两部分。
func (s Sections) Join() string {
	if s.Pinyin == "" {
		return s.Main
	}
	return s.Main + "\n" + Delimiter + "\n" + s.Pinyin
}

// Split 在第一条 "---" 行处切分回复。没有分隔符时整段都是正文。
func Split(text string) Sections {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != Delimiter {
			continue
		}
		return Sections{
			Main:   strings.TrimSpace(strings.Join(lines[:i], "\n")),
			Pinyin: strings.TrimSpace(strings.Join(lines[i+1:], "\n")),
		}
	}
	return Sections{Main: strings.TrimSpace(text)}
}

// ExtractChinese 取正文每一行第一个 "(" 之前的内容并以空格拼接。
// 括号后面的内容（包括括号外的表情）一律丢弃。
func ExtractChinese(main string) string {
	fragments := make([]string, 0, 4)
	for _, line := range strings.Split(main, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.Index(line, "("); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}
		fragments = append(fragments, line)
	}
	return strings.Join(fragments, " ")
}

// SpeakableText 返回整条回复中需要送去合成的中文。
func SpeakableText(text string) string {
	return ExtractChinese(Split(text).Main)
}
