package summarizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// 线路格式: 双向均为每行一个 JSON 值.
//
// tagged: {"id":7,"items":[{"content":"..."}]}  ->  {"id":7,"summaries":["..."]}
// legacy: [{"content":"..."}]                   ->  ["..."]
//
// 不带 id 的响应匹配最早的待响应请求.
const (
	ProtocolTagged = "tagged"
	ProtocolLegacy = "legacy"
)

type Item struct {
	Content string `json:"content"`
}

type Request struct {
	ID    uint64 `json:"id"`
	Items []Item `json:"items"`
}

type Response struct {
	ID        *uint64  `json:"id,omitempty"`
	Summaries []string `json:"summaries"`
	Error     string   `json:"error,omitempty"`
}

func items(texts []string) []Item {
	out := make([]Item, len(texts))
	for i, t := range texts {
		out[i] = Item{Content: t}
	}
	return out
}

// EncodeRequest 编码一行请求(含换行符)
func EncodeRequest(protocol string, id uint64, texts []string) ([]byte, error) {
	var v any = Request{ID: id, Items: items(texts)}
	if protocol == ProtocolLegacy {
		v = items(texts)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeResponse 解析一行响应, 支持带 id 的对象和裸数组
func DecodeResponse(line []byte) (Response, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Response{}, errors.New("empty line")
	}

	var resp Response
	switch line[0] {
	case '[':
		if err := json.Unmarshal(line, &resp.Summaries); err != nil {
			return Response{}, err
		}
	case '{':
		if err := json.Unmarshal(line, &resp); err != nil {
			return Response{}, err
		}
		if resp.Summaries == nil && resp.Error == "" {
			return Response{}, errors.New("response has neither summaries nor error")
		}
	default:
		return Response{}, fmt.Errorf("unexpected leading byte %q", line[0])
	}
	return resp, nil
}

// DecodeRequest worker 端解析一行请求, 支持带 id 的对象,
// 以及字符串或 {"content": ...} 组成的裸数组(此时 id 为 nil)
func DecodeRequest(line []byte) (id *uint64, texts []string, err error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil, errors.New("empty request")
	}

	if line[0] == '{' {
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			return nil, nil, err
		}
		texts = make([]string, len(req.Items))
		for i, it := range req.Items {
			texts[i] = it.Content
		}
		return &req.ID, texts, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, nil, err
	}
	texts = make([]string, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			texts[i] = s
			continue
		}
		var it Item
		if err := json.Unmarshal(r, &it); err != nil {
			return nil, nil, fmt.Errorf("item %d: %w", i, err)
		}
		texts[i] = it.Content
	}
	return nil, texts, nil
}

// EncodeResponse 编码一行响应, id 为 nil 时输出裸数组(错误除外)
func EncodeResponse(id *uint64, summaries []string, errMsg string) []byte {
	var v any
	switch {
	case errMsg != "":
		v = Response{ID: id, Error: errMsg}
	case id == nil:
		if summaries == nil {
			summaries = []string{}
		}
		v = summaries
	default:
		if summaries == nil {
			summaries = []string{}
		}
		v = Response{ID: id, Summaries: summaries}
	}
	data, _ := json.Marshal(v)
	return append(data, '\n')
}
