package core

import (
	"errors"
)

var (
	// ErrOutdated is returned when the presentable surface no longer matches
	// the swapchain. The frame is lost; resize and try again.
	ErrOutdated = errors.New("surface outdated, resize required")
	// ErrInvalidPipeline marks a render object without a resolvable pipeline.
	ErrInvalidPipeline = errors.New("invalid pipeline")
	// ErrAttachmentNotRegistered is raised when a pass references an image
	// the graph resource table does not own.
	ErrAttachmentNotRegistered = errors.New("attachment not registered")
	ErrPoolExhausted           = errors.New("binding group pool exhausted")
	ErrPassNotFound            = errors.New("render pass not found")
	ErrGraphNotFound           = errors.New("graph not found")
	ErrInvalidData             = errors.New("invalid data")
	ErrDeviceLost              = errors.New("device lost")
	ErrNoWorkers               = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize     = errors.New("attempting to create worker pool with a negative channel size")
	ErrUnknown                 = errors.New("unknown")
)
