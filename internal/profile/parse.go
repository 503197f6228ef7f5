package profile

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/loonsub/internal/filter"
	"github.com/John-Robertt/loonsub/internal/model"
)

// Spec is a parsed conversion profile.
type Spec struct {
	Version int

	// TemplateURL points at the Loon template document. Required for full
	// config output, unused for node/name output.
	TemplateURL string

	// Filter is filter.None() when the profile has no filter section.
	Filter filter.Filter

	// NameSeparator overrides the default ", " used by name listing.
	NameSeparator string
}

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

type rawProfile struct {
	Version       int        `yaml:"version"`
	Template      string     `yaml:"template"`
	Filter        *rawFilter `yaml:"filter"`
	NameSeparator string     `yaml:"name_separator"`
}

type rawFilter struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	Types   []string `yaml:"types"`
}

var knownTypes = map[string]struct{}{
	model.TypeSS:        {},
	model.TypeSSR:       {},
	model.TypeVMess:     {},
	model.TypeTrojan:    {},
	model.TypeHTTP:      {},
	model.TypeHTTPS:     {},
	model.TypeWireGuard: {},
}

// ParseProfileYAML parses and validates a profile document. Unknown YAML
// keys are rejected so that typos fail loudly instead of silently relaxing
// the filter.
func ParseProfileYAML(sourceURL string, content string) (*Spec, error) {
	var rp rawProfile
	if err := yamlDecodeStrict(content, &rp); err != nil {
		return nil, newProfileError(sourceURL, "PROFILE_PARSE_ERROR", "profile YAML 解析失败", truncateSnippet(content, 200), "", err)
	}

	if rp.Version != 1 {
		return nil, newProfileError(sourceURL, "PROFILE_VALIDATE_ERROR", "profile version 必须为 1", "", fmt.Sprintf("got: %d", rp.Version), nil)
	}

	spec := &Spec{
		Version:       rp.Version,
		TemplateURL:   strings.TrimSpace(rp.Template),
		Filter:        filter.None(),
		NameSeparator: rp.NameSeparator,
	}

	if rp.Filter != nil {
		crit, err := compileCriteria(sourceURL, rp.Filter)
		if err != nil {
			return nil, err
		}
		spec.Filter = filter.Match(crit)
	}

	return spec, nil
}

func compileCriteria(sourceURL string, rf *rawFilter) (filter.Criteria, error) {
	var crit filter.Criteria

	compile := func(field string, patterns []string) ([]*regexp.Regexp, error) {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			if strings.TrimSpace(p) == "" {
				return nil, newProfileError(sourceURL, "PROFILE_VALIDATE_ERROR", fmt.Sprintf("filter.%s 不能包含空白模式", field), "", "", nil)
			}
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, newProfileError(sourceURL, "PROFILE_VALIDATE_ERROR", fmt.Sprintf("filter.%s 正则不合法", field), p, "", err)
			}
			out = append(out, re)
		}
		return out, nil
	}

	var err error
	if crit.Include, err = compile("include", rf.Include); err != nil {
		return filter.Criteria{}, err
	}
	if crit.Exclude, err = compile("exclude", rf.Exclude); err != nil {
		return filter.Criteria{}, err
	}

	for _, t := range rf.Types {
		t = strings.TrimSpace(strings.ToLower(t))
		if _, ok := knownTypes[t]; !ok {
			return filter.Criteria{}, newProfileError(sourceURL, "PROFILE_VALIDATE_ERROR", fmt.Sprintf("filter.types 含未知节点类型：%s", t), "", "supported: ss/ssr/vmess/trojan/http/https/wireguard", nil)
		}
		crit.Types = append(crit.Types, t)
	}

	return crit, nil
}

func yamlDecodeStrict(content string, out any) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func newProfileError(sourceURL, code, message, snippet, hint string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_profile",
			URL:     sourceURL,
			Snippet: snippet,
			Hint:    hint,
		},
		Cause: cause,
	}
}
