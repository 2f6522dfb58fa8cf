package assets

import "errors"

var (
	ErrInvalidShader    = errors.New("assets: invalid SPIR-V bytecode")
	ErrUnsupportedImage = errors.New("assets: unsupported image")
	ErrCompilerNotFound = errors.New("assets: shader compiler not found")
)
