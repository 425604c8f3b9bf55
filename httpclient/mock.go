package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
)

var ErrNoQueuedResponse = errors.New("mock: no queued response")

type Call struct {
	Method  string
	URL     string
	Options RequestOptions
}

type mockResult struct {
	resp *Response
	err  error
}

// Mock replays queued responses in order and records every call.
type Mock struct {
	mu      sync.Mutex
	results []mockResult
	calls   []Call
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Queue(status int, body []byte, headers http.Header) *Mock {
	if headers == nil {
		headers = http.Header{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, mockResult{resp: &Response{StatusCode: status, Headers: headers, Body: body}})
	return m
}

func (m *Mock) QueueJSON(status int, v any) *Mock {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	return m.Queue(status, body, headers)
}

func (m *Mock) QueueError(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, mockResult{err: err})
	return m
}

func (m *Mock) Request(ctx context.Context, method, rawURL string, opts RequestOptions) (*Response, error) {
	target, err := BuildURL(rawURL, opts.Query)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Method: method, URL: target, Options: opts})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.results) == 0 {
		return nil, ErrNoQueuedResponse
	}

	next := m.results[0]
	m.results = m.results[1:]
	return next.resp, next.err
}

func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *Mock) LastCall() (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Call{}, false
	}
	return m.calls[len(m.calls)-1], true
}
