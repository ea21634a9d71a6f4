package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/language"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// Prompt languages the service ships. Requests in any other language fall
// back to the best match, English last.
var promptMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Chinese,
})

// MatchLang resolves a caller-supplied language tag to a shipped prompt
// language ("en" or "zh").
func MatchLang(lang string) string {
	if lang == "" {
		return "en"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "en"
	}
	_, index, _ := promptMatcher.Match(tag)
	if index == 1 {
		return "zh"
	}
	return "en"
}

type promptData struct {
	Date           string
	Tools          string
	CustomToolCall bool
	HasCitations   bool
}

var systemPromptEN = template.Must(template.New("system_en").Parse(`You are a knowledgeable assistant. Today is {{.Date}}.

Answer the user with information retrieved through the available tools. When a statement is supported by a retrieved source, cite it inline as [[citation:id]] using the id of the source.
{{- if .Tools}}

Available tools:
{{.Tools}}
{{- end}}
{{- if .CustomToolCall}}

To call a tool, output exactly one line per call inside a <tool_call> block, each line a JSON object {"name": "...", "arguments": {...}}. Think inside <think> tags before calling tools.
{{- end}}`))

var systemPromptZH = template.Must(template.New("system_zh").Parse(`你是一个知识渊博的助手。今天是 {{.Date}}。

请使用可用工具检索信息来回答用户。凡有检索来源支持的陈述，请以 [[citation:id]] 的形式在行内标注来源编号。
{{- if .Tools}}

可用工具：
{{.Tools}}
{{- end}}
{{- if .CustomToolCall}}

调用工具时，请在 <tool_call> 块内每行输出一个 JSON 对象 {"name": "...", "arguments": {...}}。调用工具前请在 <think> 标签内思考。
{{- end}}`))

// RenderSystemPrompt builds the first message of an empty transcript.
// In custom-tool-call mode the tool schemas are spelled out in the prompt
// since they are not sent through the tools field.
func RenderSystemPrompt(lang string, toolDecls []models.Tool, customToolCall bool, now time.Time) (string, error) {
	data := promptData{
		Date:           now.Format("2006-01-02"),
		CustomToolCall: customToolCall,
	}
	if customToolCall && len(toolDecls) > 0 {
		var b strings.Builder
		for _, t := range toolDecls {
			raw, err := json.Marshal(t.Function)
			if err != nil {
				return "", fmt.Errorf("marshal tool schema: %w", err)
			}
			b.Write(raw)
			b.WriteString("\n")
		}
		data.Tools = strings.TrimRight(b.String(), "\n")
	} else if len(toolDecls) > 0 {
		names := make([]string, 0, len(toolDecls))
		for _, t := range toolDecls {
			names = append(names, t.Function.Name)
		}
		data.Tools = strings.Join(names, ", ")
	}

	tmpl := systemPromptEN
	if MatchLang(lang) == "zh" {
		tmpl = systemPromptZH
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return out.String(), nil
}
