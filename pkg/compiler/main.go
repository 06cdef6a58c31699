// Package compiler translates a small C-like language into Intel 8080
// assembly in a single pass.
//
// Pipeline: source → Scanner → Translator (atoms + tables) → Generate → 8080 assembly text
//
// The Translator emits atoms, a three-address intermediate form, while it
// parses. Generate lowers them using a stack calling convention: the
// caller reserves a return slot and pushes the arguments, the callee
// pushes one slot per local and temporary.
package compiler
