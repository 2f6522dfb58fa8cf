package renderer

import "errors"

var (
	ErrDescriptorOverflow = errors.New("renderer: descriptor overflow")
	ErrUniformSize        = errors.New("renderer: uniform data size does not match binding")
	ErrUnknownBinding     = errors.New("renderer: unknown descriptor binding")
	ErrInvalidState       = errors.New("renderer: invalid command queue state")
	ErrInvalidPipeline    = errors.New("renderer: invalid pipeline configuration")
	ErrBufferOverflow     = errors.New("renderer: write past end of buffer")
	ErrFrameInProgress    = errors.New("renderer: frame already in progress")
	ErrNoFrame            = errors.New("renderer: no frame in progress")
	ErrDestroyed          = errors.New("renderer: use of destroyed resource")
	ErrPushConstantSize   = errors.New("renderer: push constant data size does not match pipeline")
)
