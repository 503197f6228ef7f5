package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/John-Robertt/loonsub/internal/fetch"
	"github.com/John-Robertt/loonsub/internal/filter"
	"github.com/John-Robertt/loonsub/internal/model"
	"github.com/John-Robertt/loonsub/internal/normalize"
	"github.com/John-Robertt/loonsub/internal/profile"
	"github.com/John-Robertt/loonsub/internal/render"
	"github.com/John-Robertt/loonsub/internal/sub/link"
	"github.com/John-Robertt/loonsub/internal/template"
)

type convertHandler struct {
	opt Options
}

type convertRequest struct {
	Mode      string // "conf" | "nodes" | "names"
	Subs      []string
	Profile   string
	Sep       string // names mode only
	FileName  string
	isFromGET bool // picks the right field spelling in error hints; not part of API
}

type convertRequestJSON struct {
	Mode     string   `json:"mode"`
	Subs     []string `json:"subs"`
	Profile  string   `json:"profile"`
	Sep      string   `json:"sep"`
	FileName string   `json:"fileName"`
}

func (h convertHandler) handleSub(w http.ResponseWriter, r *http.Request) {
	req, err := parseConvertGET(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	h.serveConvert(w, r, req)
}

func (h convertHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, err := parseConvertPOST(r)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	h.serveConvert(w, r, req)
}

func (h convertHandler) serveConvert(w http.ResponseWriter, r *http.Request, req convertRequest) {
	out, err := h.runConvert(r.Context(), req)
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	if err := setAttachmentHeaders(w, req); err != nil {
		writeErrorFromErr(w, err)
		return
	}
	WriteText(w, http.StatusOK, out)
}

func (h convertHandler) runConvert(ctx context.Context, req convertRequest) (string, error) {
	// Keep a hard upper bound so handlers don't hang forever if upstream misbehaves.
	ctx, cancel := context.WithTimeout(ctx, h.opt.ConvertTimeout)
	defer cancel()

	raw, err := h.fetchAndParseSubs(ctx, req.Subs)
	if err != nil {
		return "", err
	}
	nodes, err := normalize.Nodes(raw)
	if err != nil {
		return "", err
	}

	f := filter.None()
	sep := req.Sep
	var spec *profile.Spec
	if strings.TrimSpace(req.Profile) != "" {
		spec, err = h.fetchAndParseProfile(ctx, req.Profile)
		if err != nil {
			return "", err
		}
		f = spec.Filter
		if sep == "" {
			sep = spec.NameSeparator
		}
	}

	switch req.Mode {
	case "nodes":
		return render.Render(render.TargetLoon, nodes, f, nil)
	case "names":
		return render.NodeNames(nodes, f, sep)
	case "conf":
		if spec.TemplateURL == "" {
			// Point the caller at the field spelling for their transport.
			hint := "add template: <url> to the YAML referenced by the profile field"
			if req.isFromGET {
				hint = "add template: <url> to the YAML referenced by the profile query parameter"
			}
			return "", apiError(http.StatusUnprocessableEntity, model.AppError{
				Code:    "PROFILE_VALIDATE_ERROR",
				Message: "mode=conf 需要 profile 提供 template",
				Stage:   "parse_profile",
				URL:     req.Profile,
				Hint:    hint,
			}, nil)
		}
		templateText, err := fetch.FetchTextWithOptions(ctx, fetch.KindTemplate, spec.TemplateURL, fetch.Options{Timeout: h.opt.FetchTimeout})
		if err != nil {
			return "", err
		}
		lines, err := render.Render(render.TargetLoon, nodes, f, nil)
		if err != nil {
			return "", err
		}
		names, err := render.NodeNames(nodes, f, sep)
		if err != nil {
			return "", err
		}
		return template.Inject(templateText, lines, names, template.InjectOptions{
			TemplateURL: spec.TemplateURL,
		})
	default:
		return "", requestError("INVALID_ARGUMENT", "不支持的 mode（仅支持 conf/nodes/names）", req.Mode)
	}
}

// fetchAndParseSubs downloads every distinct subscription URL concurrently
// and concatenates the parsed nodes in input order.
func (h convertHandler) fetchAndParseSubs(ctx context.Context, subURLs []string) ([]model.Node, error) {
	urls := make([]string, 0, len(subURLs))
	seen := make(map[string]struct{}, len(subURLs))
	for _, raw := range subURLs {
		u := strings.TrimSpace(raw)
		if u == "" {
			return nil, requestError("INVALID_ARGUMENT", "sub 不能为空", "")
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	type result struct {
		nodes []model.Node
		err   error
	}
	results := make([]result, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			text, err := fetch.FetchTextWithOptions(ctx, fetch.KindSubscription, u, fetch.Options{Timeout: h.opt.FetchTimeout})
			if err != nil {
				results[i].err = err
				return
			}
			nodes, err := link.ParseSubscriptionText(u, text)
			if err != nil {
				results[i].err = err
				return
			}
			results[i].nodes = nodes
		}(i, u)
	}
	wg.Wait()

	out := make([]model.Node, 0)
	for _, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		out = append(out, res.nodes...)
	}
	if len(out) == 0 {
		return nil, &normalize.NormalizeError{
			AppError: model.AppError{
				Code:    "SUB_PARSE_ERROR",
				Message: "订阅中没有任何可用节点",
				Stage:   "normalize",
			},
		}
	}
	return out, nil
}

func (h convertHandler) fetchAndParseProfile(ctx context.Context, profileURL string) (*profile.Spec, error) {
	profileURL = strings.TrimSpace(profileURL)
	text, err := fetch.FetchTextWithOptions(ctx, fetch.KindProfile, profileURL, fetch.Options{Timeout: h.opt.FetchTimeout})
	if err != nil {
		return nil, err
	}
	return profile.ParseProfileYAML(profileURL, text)
}

func parseConvertGET(r *http.Request) (convertRequest, error) {
	q := r.URL.Query()
	for key := range q {
		switch key {
		case "mode", "sub", "profile", "sep", "fileName":
		default:
			return convertRequest{}, requestError("INVALID_ARGUMENT", fmt.Sprintf("不支持的 query 参数：%s", key), "")
		}
	}

	mode, err := singleQuery(q, "mode", true)
	if err != nil {
		return convertRequest{}, err
	}
	mode = strings.TrimSpace(mode)
	if mode != "conf" && mode != "nodes" && mode != "names" {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "不支持的 mode（仅支持 conf/nodes/names）", mode)
	}

	subs := q["sub"]
	if len(subs) == 0 {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "缺少 sub 参数", "expected: sub=<url>")
	}
	subs2 := make([]string, 0, len(subs))
	for _, s := range subs {
		s = strings.TrimSpace(s)
		if s == "" {
			return convertRequest{}, requestError("INVALID_ARGUMENT", "sub 不能为空", "")
		}
		subs2 = append(subs2, s)
	}

	profileURL, err := singleQuery(q, "profile", false)
	if err != nil {
		return convertRequest{}, err
	}
	profileURL = strings.TrimSpace(profileURL)

	sep, err := singleQuery(q, "sep", false)
	if err != nil {
		return convertRequest{}, err
	}
	fileName, err := singleQuery(q, "fileName", false)
	if err != nil {
		return convertRequest{}, err
	}

	if mode != "names" && sep != "" {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "仅 mode=names 支持 sep", "")
	}
	if mode == "conf" && profileURL == "" {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "mode=conf 需要 profile 参数", "")
	}

	return convertRequest{
		Mode:      mode,
		Subs:      subs2,
		Profile:   profileURL,
		Sep:       sep,
		FileName:  fileName,
		isFromGET: true,
	}, nil
}

func parseConvertPOST(r *http.Request) (convertRequest, error) {
	var body convertRequestJSON
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "JSON body 不允许多段", "")
	} else if !errors.Is(err, io.EOF) {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "JSON body 解析失败", err.Error())
	}

	mode := strings.TrimSpace(body.Mode)
	if mode != "conf" && mode != "nodes" && mode != "names" {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "不支持的 mode（仅支持 conf/nodes/names）", mode)
	}
	if len(body.Subs) == 0 {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "subs 不能为空", "")
	}
	subs := make([]string, 0, len(body.Subs))
	for _, s := range body.Subs {
		s = strings.TrimSpace(s)
		if s == "" {
			return convertRequest{}, requestError("INVALID_ARGUMENT", "subs 不能为空", "")
		}
		subs = append(subs, s)
	}

	profileURL := strings.TrimSpace(body.Profile)
	if mode != "names" && strings.TrimSpace(body.Sep) != "" {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "仅 mode=names 支持 sep", "")
	}
	if mode == "conf" && profileURL == "" {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "mode=conf 需要 profile 字段", "")
	}

	return convertRequest{
		Mode:     mode,
		Subs:     subs,
		Profile:  profileURL,
		Sep:      body.Sep,
		FileName: body.FileName,
	}, nil
}

func singleQuery(q url.Values, key string, required bool) (string, error) {
	values, ok := q[key]
	if !ok || len(values) == 0 {
		if required {
			return "", requestError("INVALID_ARGUMENT", fmt.Sprintf("缺少 %s 参数", key), "")
		}
		return "", nil
	}
	if len(values) != 1 {
		return "", requestError("INVALID_ARGUMENT", fmt.Sprintf("%s 参数只能出现一次", key), "")
	}
	return values[0], nil
}

func pctEncode(s string) string {
	// RFC 3986 percent-encoding for query/fragment. Go's QueryEscape uses '+' for
	// spaces, which we rewrite to %20 for stability and to avoid ambiguity.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
