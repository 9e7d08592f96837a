// Package llm adapts hosted language model APIs to ports.Completer.
//
// Models are addressed as "provider:model" references (see ParseModelRef) and
// resolved through a Registry of provider factories.
package llm
