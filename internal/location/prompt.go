package location

import (
	"fmt"
	"strings"
)

const systemPrompt = "你是一个校园地点识别专家。请从用户输入的文本中识别出地点名称，并返回JSON格式的结果。"

const bestMatchPrompt = `请从以下用户输入中识别出最可能的校园地点名称：
用户输入："%s"

校园中的地点包括：%s

请返回JSON格式的结果，只返回最可能的一个地点：
{
    "best_match": "地点名称",
    "confidence": 0.9,
    "reasoning": "识别理由"
}

如果没有找到匹配的地点，请返回：
{
    "best_match": null,
    "confidence": 0.0,
    "reasoning": "未找到匹配的校园地点"
}
`

const rankedPrompt = `请从以下用户输入中识别出校园地点名称，并根据用户原文的语义相关性对地点进行排序：
用户输入："%s"

校园中的地点包括：%s

如果识别出多个地点，请按照与用户原文最相关的顺序排列。
例如：如果用户说"东南门"，而你识别出了"南门"和"东南门"，那么"东南门"应该排在前面，因为它与用户原文完全匹配。

请返回JSON格式的结果：
{
    "found_locations": ["最相关地点", "次相关地点"],
    "confidence": 0.9,
    "reasoning": "识别理由和排序依据"
}

如果没有找到匹配的地点，请返回：
{
    "found_locations": [],
    "confidence": 0.0,
    "reasoning": "未找到匹配的校园地点"
}
`

// BuildPrompt renders the user instruction for mode, listing every
// vocabulary entry as a candidate.
func BuildPrompt(text string, vocabulary []string, mode Mode) string {
	list := strings.Join(vocabulary, "、")
	if mode == ModeBestMatch {
		return fmt.Sprintf(bestMatchPrompt, text, list)
	}
	return fmt.Sprintf(rankedPrompt, text, list)
}
