package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/abdul-hamid-achik/hitscript/packages/assertions"
	"github.com/abdul-hamid-achik/hitscript/packages/http"
)

type gojaEngine struct{}

func newGojaEngine() (Engine, error) {
	return &gojaEngine{}, nil
}

func (e *gojaEngine) Name() string { return "goja" }

func (e *gojaEngine) Check(script string) error {
	if _, err := goja.Compile("script.js", script, false); err != nil {
		return fmt.Errorf("syntax error: %w", err)
	}
	return nil
}

func (e *gojaEngine) Evaluate(ctx context.Context, script string, b *Bindings) error {
	err := b.RunLoop(ctx, func(vm *goja.Runtime) error {
		if err := (&gojaBinder{vm: vm, b: b}).install(); err != nil {
			return fmt.Errorf("installing host api: %w", err)
		}
		_, err := vm.RunString(script)
		return err
	})
	return translateGojaError(ctx, err)
}

func translateGojaError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		switch ctxErr := ctx.Err(); {
		case errors.Is(ctxErr, context.DeadlineExceeded):
			return ErrScriptTimeout
		case ctxErr != nil:
			return ctxErr
		}
	}
	return err
}

// gojaBinder exposes Bindings as the pm and console globals of one runtime.
type gojaBinder struct {
	vm *goja.Runtime
	b  *Bindings
}

type nativeFunc = func(goja.FunctionCall) goja.Value

func (g *gojaBinder) install() error {
	pm := g.vm.NewObject()
	console, err := g.console()
	if err != nil {
		return err
	}

	props := map[string]any{"console": console}
	if props["variables"], err = g.variables(); err != nil {
		return err
	}
	if props["environment"], err = g.environment(); err != nil {
		return err
	}
	if g.b.Request != nil {
		if props["request"], err = g.request(); err != nil {
			return err
		}
	}
	if g.b.Bridge != nil {
		props["sendRequest"] = nativeFunc(g.sendRequest)
	}
	if g.b.Utils != nil {
		if props["utils"], err = g.utils(); err != nil {
			return err
		}
	}
	if g.b.Response != nil {
		if props["response"], err = g.response(g.b.Response); err != nil {
			return err
		}
	}
	if g.b.Test != nil {
		if props["test"], err = g.test(); err != nil {
			return err
		}
	}
	if err := setAll(pm, props); err != nil {
		return err
	}

	if err := g.vm.Set("pm", pm); err != nil {
		return fmt.Errorf("failed to set pm: %w", err)
	}
	if err := g.vm.Set("console", console); err != nil {
		return fmt.Errorf("failed to set console: %w", err)
	}
	return nil
}

func setAll(obj *goja.Object, props map[string]any) error {
	for name, v := range props {
		if err := obj.Set(name, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

func (g *gojaBinder) object(props map[string]any) (*goja.Object, error) {
	obj := g.vm.NewObject()
	if err := setAll(obj, props); err != nil {
		return nil, err
	}
	return obj, nil
}

// exportValue converts a guest value for the host. undefined and null stay
// distinguishable.
func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) {
		return Undefined{}
	}
	if goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func exportArgs(call goja.FunctionCall) []any {
	out := make([]any, len(call.Arguments))
	for i, a := range call.Arguments {
		out[i] = exportValue(a)
	}
	return out
}

func (g *gojaBinder) toJS(v any) goja.Value {
	switch v.(type) {
	case Undefined:
		return goja.Undefined()
	case nil:
		return goja.Null()
	}
	return g.vm.ToValue(v)
}

func (g *gojaBinder) throw(err error) {
	panic(g.vm.NewGoError(err))
}

func (g *gojaBinder) variables() (*goja.Object, error) {
	ns := g.b.Variables
	return g.object(map[string]any{
		"get": nativeFunc(func(call goja.FunctionCall) goja.Value {
			v, ok := ns.Get(call.Argument(0).String())
			if !ok {
				return goja.Undefined()
			}
			return g.toJS(v)
		}),
		"set": nativeFunc(func(call goja.FunctionCall) goja.Value {
			ns.Set(call.Argument(0).String(), exportValue(call.Argument(1)))
			return goja.Undefined()
		}),
		"has": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.Has(call.Argument(0).String()))
		}),
		"unset": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.Unset(call.Argument(0).String()))
		}),
		"toObject": nativeFunc(func(goja.FunctionCall) goja.Value {
			obj := g.vm.NewObject()
			for k, v := range ns.ToObject() {
				_ = obj.Set(k, g.toJS(v))
			}
			return obj
		}),
	})
}

func (g *gojaBinder) environment() (*goja.Object, error) {
	ns := g.b.Environment
	return g.object(map[string]any{
		"name": ns.Name(),
		"get": nativeFunc(func(call goja.FunctionCall) goja.Value {
			v, ok := ns.Get(call.Argument(0).String())
			if !ok {
				return goja.Undefined()
			}
			return g.vm.ToValue(v)
		}),
		"has": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.Has(call.Argument(0).String()))
		}),
		"toObject": nativeFunc(func(goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.ToObject())
		}),
	})
}

// headerObject is the live pm.request.headers view.
type headerObject struct {
	vm      *goja.Runtime
	headers *HeaderMap
}

func (o *headerObject) Get(key string) goja.Value {
	v, ok := o.headers.Get(key)
	if !ok {
		return nil
	}
	return o.vm.ToValue(v)
}

// Set with undefined or null removes the header.
func (o *headerObject) Set(key string, val goja.Value) bool {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		o.headers.Delete(key)
		return true
	}
	o.headers.Set(key, val.String())
	return true
}

func (o *headerObject) Has(key string) bool { return o.headers.Has(key) }

func (o *headerObject) Delete(key string) bool {
	o.headers.Delete(key)
	return true
}

func (o *headerObject) Keys() []string { return o.headers.Keys() }

func (g *gojaBinder) request() (*goja.Object, error) {
	ns := g.b.Request
	return g.object(map[string]any{
		"headers": g.vm.NewDynamicObject(&headerObject{vm: g.vm, headers: ns.Headers}),
		"addHeader": nativeFunc(func(call goja.FunctionCall) goja.Value {
			ns.AddHeader(call.Argument(0).String(), call.Argument(1).String())
			return goja.Undefined()
		}),
		"getHeader": nativeFunc(func(call goja.FunctionCall) goja.Value {
			v, ok := ns.GetHeader(call.Argument(0).String())
			if !ok {
				return goja.Undefined()
			}
			return g.vm.ToValue(v)
		}),
		"hasHeader": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.HasHeader(call.Argument(0).String()))
		}),
		"removeHeader": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.RemoveHeader(call.Argument(0).String()))
		}),
	})
}

func (g *gojaBinder) sendRequest(call goja.FunctionCall) goja.Value {
	req, err := g.outbound(call.Argument(0))
	if err != nil {
		panic(g.vm.NewTypeError(err.Error()))
	}

	var cb Callable
	if arg := call.Argument(1); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
		fn, ok := goja.AssertFunction(arg)
		if !ok {
			panic(g.vm.NewTypeError("pm.sendRequest callback must be a function"))
		}
		cb = g.callable(fn)
	}

	g.b.Bridge.SendRequest(req, cb)
	return goja.Undefined()
}

// outbound accepts a URL string or a {url, method, headers, body} object.
func (g *gojaBinder) outbound(v goja.Value) (OutboundRequest, error) {
	switch raw := exportValue(v).(type) {
	case string:
		return OutboundRequest{URL: raw, Method: "GET"}, nil
	case map[string]any:
		req := OutboundRequest{Method: "GET"}
		url, ok := raw["url"].(string)
		if !ok || url == "" {
			return req, errors.New("pm.sendRequest: request object needs a url")
		}
		req.URL = url
		if m, ok := raw["method"].(string); ok && m != "" {
			req.Method = m
		}
		if hdrs, ok := raw["headers"].(map[string]any); ok {
			req.Headers = make(map[string]string, len(hdrs))
			for k, hv := range hdrs {
				req.Headers[k] = assertions.Stringify(hv)
			}
		}
		switch body := raw["body"].(type) {
		case nil:
		case string:
			req.Body = body
		default:
			req.Body = assertions.Stringify(body)
		}
		return req, nil
	default:
		return OutboundRequest{}, errors.New("pm.sendRequest expects a url string or a request object")
	}
}

// callable adapts a guest function once. The guest sees callback(null,
// response) or callback(error, null).
func (g *gojaBinder) callable(fn goja.Callable) Callable {
	return CallableFunc(func(err error, resp *http.Response) error {
		var errVal, respVal goja.Value = goja.Null(), goja.Null()
		if err != nil {
			errVal = g.vm.NewGoError(err)
		} else {
			obj, buildErr := g.response(newResponseNamespace(resp))
			if buildErr != nil {
				return buildErr
			}
			respVal = obj
		}
		_, callErr := fn(goja.Undefined(), errVal, respVal)
		return callErr
	})
}

func (g *gojaBinder) response(ns *ResponseNamespace) (*goja.Object, error) {
	var parsed goja.Value
	return g.object(map[string]any{
		"status":       ns.Status(),
		"code":         ns.Status(),
		"body":         ns.Body(),
		"headers":      ns.Headers(),
		"contentType":  ns.ContentType(),
		"responseTime": ns.ResponseTime(),
		"json": nativeFunc(func(goja.FunctionCall) goja.Value {
			if parsed == nil {
				v, err := ns.JSON()
				if err != nil {
					g.throw(err)
				}
				parsed = g.toJS(v)
			}
			return parsed
		}),
		"text": nativeFunc(func(goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.Body())
		}),
	})
}

func (g *gojaBinder) test() (*goja.Object, error) {
	ns := g.b.Test
	ops := map[string]func(...any) bool{
		"assertEquals":      ns.AssertEquals,
		"assertTrue":        ns.AssertTrue,
		"assertFalse":       ns.AssertFalse,
		"assertContains":    ns.AssertContains,
		"assertStatusCode":  ns.AssertStatusCode,
		"assertHeader":      ns.AssertHeader,
		"assertHeaderValue": ns.AssertHeaderValue,
		"assertJsonPath":    ns.AssertJSONPath,
		"assertSchema":      ns.AssertSchema,
	}
	props := make(map[string]any, len(ops))
	for name, op := range ops {
		op := op
		props[name] = nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(op(exportArgs(call)...))
		})
	}
	return g.object(props)
}

func (g *gojaBinder) console() (*goja.Object, error) {
	sink := g.b.Console
	props := make(map[string]any)
	for _, level := range Levels() {
		level := level
		if level == LevelAssert {
			continue
		}
		props[level.String()] = nativeFunc(func(call goja.FunctionCall) goja.Value {
			sink.Emit(level, exportArgs(call)...)
			return goja.Undefined()
		})
	}
	props["assert"] = nativeFunc(func(call goja.FunctionCall) goja.Value {
		args := exportArgs(call)
		if len(args) > 0 {
			args = args[1:]
		}
		sink.Assert(call.Argument(0).ToBoolean(), args...)
		return goja.Undefined()
	})
	return g.object(props)
}

func (g *gojaBinder) utils() (*goja.Object, error) {
	ns := g.b.Utils

	jsonNS, err := g.object(map[string]any{
		"parse": nativeFunc(func(call goja.FunctionCall) goja.Value {
			v, err := ns.JSONParse(call.Argument(0).String())
			if err != nil {
				g.throw(err)
			}
			return g.toJS(v)
		}),
		"stringify": nativeFunc(func(call goja.FunctionCall) goja.Value {
			v := exportValue(call.Argument(0))
			if _, ok := v.(Undefined); ok {
				return goja.Undefined()
			}
			s, err := ns.JSONStringify(v)
			if err != nil {
				g.throw(err)
			}
			return g.vm.ToValue(s)
		}),
	})
	if err != nil {
		return nil, err
	}

	stringNS, err := g.object(map[string]any{
		"isEmpty": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.IsEmpty(exportValue(call.Argument(0))))
		}),
		"isBlank": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.IsBlank(exportValue(call.Argument(0))))
		}),
		"trim": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.Trim(exportValue(call.Argument(0))))
		}),
	})
	if err != nil {
		return nil, err
	}

	base64NS, err := g.object(map[string]any{
		"encode": nativeFunc(func(call goja.FunctionCall) goja.Value {
			return g.vm.ToValue(ns.Base64Encode(call.Argument(0).String()))
		}),
		"decode": nativeFunc(func(call goja.FunctionCall) goja.Value {
			s, err := ns.Base64Decode(call.Argument(0).String())
			if err != nil {
				g.throw(err)
			}
			return g.vm.ToValue(s)
		}),
	})
	if err != nil {
		return nil, err
	}

	fnProps := make(map[string]any)
	for _, name := range ns.Functions() {
		name := name
		fnProps[name] = nativeFunc(func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = a.String()
			}
			v, err := ns.Call(name, args...)
			if err != nil {
				g.throw(err)
			}
			return g.toJS(v)
		})
	}
	fnNS, err := g.object(fnProps)
	if err != nil {
		return nil, err
	}

	return g.object(map[string]any{
		"json":   jsonNS,
		"string": stringNS,
		"base64": base64NS,
		"fn":     fnNS,
	})
}
