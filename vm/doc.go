// Package vm implements the stack-based virtual machine that executes
// compiled cathon code objects.
//
// Each activation has its own Frame with an operand stack and local
// slots; calls push frames onto an explicit stack rather than recursing
// in Go, so deep recursion in a program is bounded by memory only.
// Globals live in one map shared by every frame and every Function the
// VM creates, and they survive across Run calls.
//
// Values are dynamically typed. Lists and dicts are shared by reference:
// passing a list to a function and mutating it there is visible to the
// caller.
package vm
