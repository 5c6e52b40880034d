package vm

import (
	"fmt"
	"strings"
)

// Stock queries and mutations. Instruction nodes are built from these.

// Top reads the top operand.
func Top() Query[Value] {
	return Query[Value]{Label: "top", Eval: func(e Env) (Value, error) {
		return e.Frame().Peek()
	}}
}

// Operand reads the operand depth slots below the top.
func Operand(depth int) Query[Value] {
	return Query[Value]{Label: fmt.Sprintf("operand %d", depth), Eval: func(e Env) (Value, error) {
		return e.Frame().PeekAt(depth)
	}}
}

// Local reads local slot i.
func Local(i int) Query[Value] {
	return Query[Value]{Label: fmt.Sprintf("local %d", i), Eval: func(e Env) (Value, error) {
		return e.Frame().Local(i)
	}}
}

// Field reads field offset of the object referenced by the top operand.
func Field(offset int) Query[Value] {
	return Query[Value]{Label: fmt.Sprintf("field %d", offset), Eval: func(e Env) (Value, error) {
		v, err := e.Frame().Peek()
		if err != nil {
			return nil, err
		}
		ref, err := AsRef(v)
		if err != nil {
			return nil, err
		}
		return e.Heap.Get(ref, offset)
	}}
}

// CurrentInstruction reads the top frame's instruction pointer.
func CurrentInstruction() Query[Instruction] {
	return Query[Instruction]{Label: "ip", Eval: func(e Env) (Instruction, error) {
		return e.Stack.Instruction(), nil
	}}
}

// Push pushes a constant.
func Push(v Value) Mutation {
	return Mutation{Label: fmt.Sprintf("push %v", v), Apply: func(e Env) error {
		e.Frame().Push(v)
		return nil
	}}
}

// Discard pops n operands.
func Discard(n int) Mutation {
	return Mutation{Label: fmt.Sprintf("discard %d", n), Apply: func(e Env) error {
		_, err := e.Frame().PopN(n)
		return err
	}}
}

// Dup duplicates the top operand.
func Dup() Mutation {
	return Mutation{Label: "dup", Apply: func(e Env) error {
		f := e.Frame()
		v, err := f.Peek()
		if err != nil {
			return err
		}
		f.Push(v)
		return nil
	}}
}

// LoadLocal pushes local slot i.
func LoadLocal(i int) Mutation {
	return Mutation{Label: fmt.Sprintf("load %d", i), Apply: func(e Env) error {
		f := e.Frame()
		v, err := f.Local(i)
		if err != nil {
			return err
		}
		f.Push(v)
		return nil
	}}
}

// StoreLocal pops the top operand into local slot i.
func StoreLocal(i int) Mutation {
	return Mutation{Label: fmt.Sprintf("store %d", i), Apply: func(e Env) error {
		f := e.Frame()
		if _, err := f.Local(i); err != nil {
			return err
		}
		v, err := f.Pop()
		if err != nil {
			return err
		}
		return f.SetLocal(i, v)
	}}
}

// Unary pops one operand and pushes fn of it.
func Unary(label string, fn func(Value) (Value, error)) Mutation {
	return Mutation{Label: label, Apply: func(e Env) error {
		f := e.Frame()
		v, err := f.Peek()
		if err != nil {
			return err
		}
		r, err := fn(v)
		if err != nil {
			return err
		}
		if _, err := f.Pop(); err != nil {
			return err
		}
		f.Push(r)
		return nil
	}}
}

// Binary pops two operands and pushes fn(second, top).
func Binary(label string, fn func(a, b Value) (Value, error)) Mutation {
	return Mutation{Label: label, Apply: func(e Env) error {
		f := e.Frame()
		b, err := f.PeekAt(0)
		if err != nil {
			return err
		}
		a, err := f.PeekAt(1)
		if err != nil {
			return err
		}
		r, err := fn(a, b)
		if err != nil {
			return err
		}
		if _, err := f.PopN(2); err != nil {
			return err
		}
		f.Push(r)
		return nil
	}}
}

// NewObject allocates an object with fieldCount fields and pushes its
// reference.
func NewObject(fieldCount int) Mutation {
	return Mutation{Label: fmt.Sprintf("new %d", fieldCount), Apply: func(e Env) error {
		ref, err := e.Heap.NewObject(fieldCount)
		if err != nil {
			return err
		}
		e.Frame().Push(ref)
		return nil
	}}
}

// GetField pops an object reference and pushes its field offset.
func GetField(offset int) Mutation {
	return Mutation{Label: fmt.Sprintf("getfield %d", offset), Apply: func(e Env) error {
		f := e.Frame()
		v, err := f.Peek()
		if err != nil {
			return err
		}
		ref, err := AsRef(v)
		if err != nil {
			return err
		}
		field, err := e.Heap.Get(ref, offset)
		if err != nil {
			return err
		}
		if _, err := f.Pop(); err != nil {
			return err
		}
		f.Push(field)
		return nil
	}}
}

// PutField pops a value and then an object reference, and stores the value
// in the object's field offset.
func PutField(offset int) Mutation {
	return Mutation{Label: fmt.Sprintf("putfield %d", offset), Apply: func(e Env) error {
		f := e.Frame()
		v, err := f.PeekAt(0)
		if err != nil {
			return err
		}
		r, err := f.PeekAt(1)
		if err != nil {
			return err
		}
		ref, err := AsRef(r)
		if err != nil {
			return err
		}
		if err := e.Heap.Put(ref, offset, v); err != nil {
			return err
		}
		if _, err := f.PopN(2); err != nil {
			return err
		}
		return nil
	}}
}

// GetStatic pushes static field offset of class.
func GetStatic(class string, offset int) Mutation {
	return Mutation{Label: fmt.Sprintf("getstatic %s.%d", class, offset), Apply: func(e Env) error {
		v, err := e.Statics.Get(class, offset)
		if err != nil {
			return err
		}
		e.Frame().Push(v)
		return nil
	}}
}

// PutStatic pops the top operand into static field offset of class.
func PutStatic(class string, offset int) Mutation {
	return Mutation{Label: fmt.Sprintf("putstatic %s.%d", class, offset), Apply: func(e Env) error {
		f := e.Frame()
		v, err := f.Peek()
		if err != nil {
			return err
		}
		if err := e.Statics.Put(class, offset, v); err != nil {
			return err
		}
		if _, err := f.Pop(); err != nil {
			return err
		}
		return nil
	}}
}

// Advance moves the top frame to next.
func Advance(next Instruction) Mutation {
	return Mutation{Label: fmt.Sprintf("goto %v", next), Apply: func(e Env) error {
		e.Frame().Advance(next)
		return nil
	}}
}

// Call pushes a frame for m, moving m.Args operands into its locals. The
// caller resumes at returnTo.
func Call(returnTo Instruction, m *Method) Mutation {
	return Mutation{Label: "invoke " + m.Name, Apply: func(e Env) error {
		return e.Stack.PushFrame(returnTo, m, m.Args)
	}}
}

// Return pops the top frame, handing returnCount operands to the caller.
func Return(returnCount int) Mutation {
	return Mutation{Label: fmt.Sprintf("return %d", returnCount), Apply: func(e Env) error {
		return e.Stack.PopFrame(returnCount)
	}}
}

// Seq applies ms in order, stopping at the first failure. Failures are
// labelled with the failing step.
func Seq(ms ...Mutation) Mutation {
	labels := make([]string, len(ms))
	for i, m := range ms {
		labels[i] = m.Label
	}
	return Mutation{Label: strings.Join(labels, "; "), Apply: func(e Env) error {
		for _, m := range ms {
			if err := m.Apply(e); err != nil {
				return &OpError{Op: m.Label, Err: err}
			}
		}
		return nil
	}}
}
