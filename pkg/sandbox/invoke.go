package sandbox

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/ormasoftchile/steprunner/pkg/converter"
	"github.com/ormasoftchile/steprunner/pkg/schema"
)

// InvocationError describes a failure raised by user step or hook code.
type InvocationError struct {
	Message     string
	StackTrace  string
	Source      string
	Recoverable bool
	// Err is the error returned by the function, nil for panics.
	Err error
}

func (e *InvocationError) Error() string { return e.Message }

func (e *InvocationError) Unwrap() error { return e.Err }

var (
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	hookContextType = reflect.TypeOf(schema.HookContext{})
)

// ParameterTypes returns the declared parameter types of fn, skipping the
// receiver when the step belongs to a scope.
func ParameterTypes(fn any, hasReceiver bool) ([]reflect.Type, error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil, fmt.Errorf("%T is not a function", fn)
	}
	offset := 0
	if hasReceiver {
		offset = 1
	}
	if t.NumIn() < offset {
		return nil, fmt.Errorf("%s has no receiver parameter", t)
	}
	types := make([]reflect.Type, 0, t.NumIn()-offset)
	for i := offset; i < t.NumIn(); i++ {
		types = append(types, t.In(i))
	}
	return types, nil
}

// invoke calls fn with receiver (when non-nil) prepended to the coerced
// arguments. Panics and returned errors come back as *InvocationError.
func invoke(fn any, receiver any, args []any) (err error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return &InvocationError{Message: fmt.Sprintf("%T is not a function", fn)}
	}
	types, terr := ParameterTypes(fn, receiver != nil)
	if terr != nil {
		return &InvocationError{Message: terr.Error()}
	}
	if len(args) != len(types) {
		return &InvocationError{
			Message: fmt.Sprintf("argument count mismatch calling %s: got %d, want %d", funcName(v), len(args), len(types)),
			Source:  declaredAt(v),
		}
	}

	in := make([]reflect.Value, 0, len(args)+1)
	if receiver != nil {
		rv := reflect.ValueOf(receiver)
		if want := v.Type().In(0); !rv.Type().AssignableTo(want) {
			return &InvocationError{
				Message: fmt.Sprintf("instance of type %s cannot be used as receiver %s", rv.Type(), want),
				Source:  declaredAt(v),
			}
		}
		in = append(in, rv)
	}
	for i, arg := range converter.Coerce(args, types) {
		want := types[i]
		if arg == nil {
			in = append(in, reflect.Zero(want))
			continue
		}
		av := reflect.ValueOf(arg)
		if !av.Type().AssignableTo(want) {
			return &InvocationError{
				Message: fmt.Sprintf("argument %d of %s: cannot use %q (%s) as %s", i, funcName(v), fmt.Sprint(arg), av.Type(), want),
				Source:  declaredAt(v),
			}
		}
		in = append(in, av)
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r, debug.Stack(), panicSource())
		}
	}()

	out := v.Call(in)
	if n := len(out); n > 0 && v.Type().Out(n-1).Implements(errorType) {
		if e, _ := out[n-1].Interface().(error); e != nil {
			return returnedError(e, v)
		}
	}
	return nil
}

func panicError(r any, stack []byte, source string) *InvocationError {
	ie := &InvocationError{StackTrace: string(stack), Source: source}
	switch val := r.(type) {
	case error:
		ie.Message = val.Error()
		ie.Err = val
	case string:
		ie.Message = val
	default:
		ie.Message = fmt.Sprint(val)
	}
	return ie
}

func returnedError(e error, fn reflect.Value) *InvocationError {
	var ie *InvocationError
	if errors.As(e, &ie) {
		return ie
	}
	return &InvocationError{
		Message:    e.Error(),
		StackTrace: renderTrace(e, fn),
		Source:     declaredAt(fn),
		Err:        e,
	}
}

// renderTrace renders every cause of an aggregate error, or the single
// error's detailed form.
func renderTrace(e error, fn reflect.Value) string {
	if agg, ok := e.(interface{ Unwrap() []error }); ok {
		causes := agg.Unwrap()
		var b strings.Builder
		fmt.Fprintf(&b, "%d errors occurred:\n", len(causes))
		for i, c := range causes {
			fmt.Fprintf(&b, "  [%d] %+v\n", i+1, c)
		}
		fmt.Fprintf(&b, "at %s (%s)", funcName(fn), declaredAt(fn))
		return b.String()
	}
	if detailed := fmt.Sprintf("%+v", e); detailed != e.Error() {
		return detailed
	}
	return fmt.Sprintf("%s\nat %s (%s)", e.Error(), funcName(fn), declaredAt(fn))
}

// panicSource returns the location of the frame that panicked. It must be
// called from the deferred recover function.
func panicSource() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	sawPanic := false
	for {
		f, more := frames.Next()
		if sawPanic && !strings.HasPrefix(f.Function, "runtime.") {
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if f.Function == "runtime.gopanic" {
			sawPanic = true
		}
		if !more {
			return ""
		}
	}
}

func funcName(v reflect.Value) string {
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return v.Type().String()
}

func declaredAt(v reflect.Value) string {
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	file, line := f.FileLine(f.Entry())
	return fmt.Sprintf("%s:%d", file, line)
}

// hookArgs returns the arguments a hook declares: none, or a single HookContext.
func hookArgs(fn any, hasReceiver bool, hc schema.HookContext) []any {
	types, err := ParameterTypes(fn, hasReceiver)
	if err != nil || len(types) != 1 {
		return nil
	}
	switch types[0] {
	case hookContextType:
		return []any{hc}
	case reflect.PointerTo(hookContextType):
		return []any{&hc}
	}
	return nil
}
