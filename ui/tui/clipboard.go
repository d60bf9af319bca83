package main

import "github.com/atotto/clipboard"

// ClipboardWriter copies text to the system clipboard.
type ClipboardWriter interface {
	WriteText(text string) error
}

type realClipboard struct{}

func (realClipboard) WriteText(text string) error {
	return clipboard.WriteAll(text)
}
