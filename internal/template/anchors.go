package template

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/loonsub/internal/model"
)

const (
	// AnchorProxies marks where the rendered node lines go. Required.
	AnchorProxies = "#@PROXIES@#"
	// AnchorNames marks where the rendered name list goes. Optional.
	AnchorNames = "#@NAMES@#"
)

type InjectOptions struct {
	TemplateURL string
}

// Inject validates the anchors and splices the rendered blocks into the
// template. #@PROXIES@# must appear exactly once, on its own line, inside
// the [Proxy] section. #@NAMES@# may appear at most once, anywhere.
// Indentation of the anchor line and the template's newline style
// (CRLF/LF) are preserved.
func Inject(templateText string, proxies string, names string, opt InjectOptions) (string, error) {
	if templateText == "" {
		return "", &TemplateError{
			AppError: model.AppError{
				Code:    "INVALID_ARGUMENT",
				Message: "template 不能为空",
				Stage:   "validate_template",
				URL:     opt.TemplateURL,
			},
		}
	}

	newline := detectNewline(templateText)
	normalized := strings.ReplaceAll(templateText, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	endsWithNewline := strings.HasSuffix(normalized, "\n")

	pos, err := findAndValidateAnchors(lines, opt.TemplateURL)
	if err != nil {
		return "", err
	}

	lines[pos.proxiesLine] = indentBlock(lines[pos.proxiesLine], proxies)
	if pos.namesLine != -1 {
		lines[pos.namesLine] = indentBlock(lines[pos.namesLine], names)
	}

	out := strings.Join(lines, "\n")
	if !endsWithNewline {
		out = strings.TrimSuffix(out, "\n")
	}
	if newline == "\r\n" {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out, nil
}

type anchorPos struct {
	proxiesLine int
	namesLine   int
}

func findAndValidateAnchors(lines []string, templateURL string) (anchorPos, error) {
	pos := anchorPos{proxiesLine: -1, namesLine: -1}
	countP, countN := 0, 0

	section := ""
	for i, line := range lines {
		// Fail fast if an anchor appears but is not standalone.
		if strings.Contains(line, AnchorProxies) && strings.TrimSpace(line) != AnchorProxies {
			return anchorPos{}, anchorNotStandalone(templateURL, line, AnchorProxies)
		}
		if strings.Contains(line, AnchorNames) && strings.TrimSpace(line) != AnchorNames {
			return anchorPos{}, anchorNotStandalone(templateURL, line, AnchorNames)
		}

		trim := strings.TrimSpace(line)
		if sec, ok := parseSectionHeader(trim); ok {
			section = sec
			continue
		}

		switch trim {
		case AnchorProxies:
			countP++
			pos.proxiesLine = i
			if section != "proxy" {
				return anchorPos{}, sectionError(templateURL, fmt.Sprintf("%s 必须位于 [Proxy] 段内", AnchorProxies))
			}
		case AnchorNames:
			countN++
			pos.namesLine = i
		}
	}

	if countP == 0 {
		return anchorPos{}, anchorMissing(templateURL, AnchorProxies)
	}
	if countP > 1 {
		return anchorPos{}, anchorDup(templateURL, AnchorProxies)
	}
	if countN > 1 {
		return anchorPos{}, anchorDup(templateURL, AnchorNames)
	}

	return pos, nil
}

func anchorMissing(templateURL, anchor string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_ANCHOR_MISSING",
			Message: fmt.Sprintf("缺少锚点 %s", anchor),
			Stage:   "validate_template",
			URL:     templateURL,
		},
	}
}

func anchorNotStandalone(templateURL, line, anchor string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_SECTION_ERROR",
			Message: "锚点必须独占一行",
			Stage:   "validate_template",
			URL:     templateURL,
			Snippet: line,
			Hint:    anchor,
		},
	}
}

func anchorDup(templateURL, anchor string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_ANCHOR_DUP",
			Message: fmt.Sprintf("锚点 %s 重复出现", anchor),
			Stage:   "validate_template",
			URL:     templateURL,
		},
	}
}

func sectionError(templateURL, msg string) error {
	return &TemplateError{
		AppError: model.AppError{
			Code:    "TEMPLATE_SECTION_ERROR",
			Message: msg,
			Stage:   "validate_template",
			URL:     templateURL,
		},
	}
}

func indentBlock(anchorLine string, block string) string {
	indent := leadingWhitespace(anchorLine)
	if block == "" {
		return ""
	}
	blockLines := strings.Split(block, "\n")
	for i := range blockLines {
		blockLines[i] = indent + blockLines[i]
	}
	return strings.Join(blockLines, "\n")
}

func parseSectionHeader(trim string) (string, bool) {
	if len(trim) < 3 {
		return "", false
	}
	if trim[0] != '[' || trim[len(trim)-1] != ']' {
		return "", false
	}
	inner := strings.ToLower(strings.TrimSpace(trim[1 : len(trim)-1]))
	return inner, true
}

func leadingWhitespace(line string) string {
	i := 0
	for i < len(line) {
		if line[i] == ' ' || line[i] == '\t' {
			i++
			continue
		}
		break
	}
	return line[:i]
}

func detectNewline(s string) string {
	if strings.Contains(s, "\r\n") {
		return "\r\n"
	}
	return "\n"
}
