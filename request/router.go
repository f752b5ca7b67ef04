package request

import "encoding/json"

// Handler answers one method call against a bound T (in this package, a
// *Server), the Go counterpart of json.rs's boxed closure
// MethodHandler<T>.
type Handler[T any] func(upon T, body []byte) Response

// MethodRouter dispatches JSON message bodies to named handlers,
// generalizing imageflow_core's MethodRouter<T> (a HashMap<&str,
// MethodHandler<T>> plus an ordered method-name list) to Go generics so
// one router can be bound to *Server without an interface{} escape
// hatch.
type MethodRouter[T any] struct {
	handlers    map[string]Handler[T]
	methodNames []string
}

// NewMethodRouter returns an empty router.
func NewMethodRouter[T any]() *MethodRouter[T] {
	return &MethodRouter[T]{handlers: make(map[string]Handler[T])}
}

// Add registers h under method, overwriting any existing handler.
func (r *MethodRouter[T]) Add(method string, h Handler[T]) {
	if _, exists := r.handlers[method]; !exists {
		r.methodNames = append(r.methodNames, method)
	}
	r.handlers[method] = h
}

// AddJSON registers a handler that first decodes body into a D value,
// responding with a 400 parse-error envelope on failure, the Go
// counterpart of json.rs's add_responder/create_handler_over_responder.
func AddJSON[T any, D any](r *MethodRouter[T], method string, responder func(upon T, parsed D) (interface{}, error)) {
	r.Add(method, func(upon T, body []byte) Response {
		var parsed D
		if len(body) > 0 {
			if err := json.Unmarshal(body, &parsed); err != nil {
				return fail(400, "parse error: "+err.Error())
			}
		}
		payload, err := responder(upon, parsed)
		if err != nil {
			return fail(500, err.Error())
		}
		return ok(payload)
	})
}

// List returns the registered method names in registration order.
func (r *MethodRouter[T]) List() []string {
	out := make([]string, len(r.methodNames))
	copy(out, r.methodNames)
	return out
}

// Invoke dispatches method against upon with the given JSON body,
// returning methodNotUnderstood for an unregistered method rather than
// an error (spec §6: 404 "unknown method" is a normal response, not a Go
// error return).
func (r *MethodRouter[T]) Invoke(upon T, method string, body []byte) Response {
	h, ok := r.handlers[method]
	if !ok {
		return methodNotUnderstood()
	}
	return h(upon, body)
}
