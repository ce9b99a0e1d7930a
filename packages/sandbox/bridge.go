package sandbox

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/hitscript/packages/http"
)

// Sender is the HTTP collaborator used by pm.sendRequest.
type Sender interface {
	Send(ctx context.Context, url, method string, headers map[string]string, body string) (*http.Response, error)
}

// Callable is a guest callback adapted by the engine. Call receives either a
// transport error or a response, never both.
type Callable interface {
	Call(err error, resp *http.Response) error
}

// CallableFunc adapts a function to Callable.
type CallableFunc func(err error, resp *http.Response) error

func (f CallableFunc) Call(err error, resp *http.Response) error {
	return f(err, resp)
}

// OutboundRequest is an auxiliary request issued from a pre-request script.
type OutboundRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
}

// RequestBridge sends auxiliary requests and schedules their callbacks on
// the run's event loop.
type RequestBridge struct {
	ctx    context.Context
	sender Sender
	loop   *runLoop
	log    *zap.Logger
}

func newRequestBridge(ctx context.Context, sender Sender, loop *runLoop, log *zap.Logger) *RequestBridge {
	return &RequestBridge{
		ctx:    context.WithoutCancel(ctx),
		sender: sender,
		loop:   loop,
		log:    log,
	}
}

// SendRequest starts req in the background. cb may be nil. Nothing happens
// once the run has finished.
func (b *RequestBridge) SendRequest(req OutboundRequest, cb Callable) {
	hold, ok := b.loop.reserve()
	if !ok {
		b.log.Debug("sendRequest after run finished", zap.String("url", req.URL))
		return
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}

	if b.sender == nil {
		b.loop.post(hold, func() { b.deliver(req, cb, ErrNoHTTPClient, nil) })
		return
	}

	go func() {
		var (
			resp *http.Response
			err  error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("http client panic: %v", r)
				}
			}()
			resp, err = b.sender.Send(b.ctx, req.URL, method, req.Headers, req.Body)
		}()
		b.loop.post(hold, func() { b.deliver(req, cb, err, resp) })
	}()
}

func (b *RequestBridge) deliver(req OutboundRequest, cb Callable, err error, resp *http.Response) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("sendRequest callback panicked",
				zap.String("url", req.URL),
				zap.Any("panic", r))
		}
	}()
	if err == nil && resp == nil {
		resp = &http.Response{}
	}
	if cbErr := cb.Call(err, resp); cbErr != nil {
		b.log.Warn("sendRequest callback failed",
			zap.String("url", req.URL),
			zap.Error(cbErr))
	}
}
