package pass

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type AttachmentKind int

const (
	AttachmentColor AttachmentKind = iota
	AttachmentDepth
	AttachmentInput
)

func (k AttachmentKind) String() string {
	switch k {
	case AttachmentColor:
		return "color"
	case AttachmentDepth:
		return "depth"
	case AttachmentInput:
		return "input"
	}
	return "unknown"
}

func ParseAttachmentKind(s string) (AttachmentKind, error) {
	switch s {
	case "", "color":
		return AttachmentColor, nil
	case "depth":
		return AttachmentDepth, nil
	case "input":
		return AttachmentInput, nil
	}
	return AttachmentColor, fmt.Errorf("unknown attachment kind %q: %w", s, core.ErrInvalidData)
}

type AttachmentAccess int

const (
	AccessReadOnly AttachmentAccess = iota
	AccessReadWrite
)

func ParseAttachmentAccess(s string) (AttachmentAccess, error) {
	switch s {
	case "", "read_write":
		return AccessReadWrite, nil
	case "read_only", "read":
		return AccessReadOnly, nil
	}
	return AccessReadOnly, fmt.Errorf("unknown attachment access %q: %w", s, core.ErrInvalidData)
}

// Attachment is a named image used by a pass. Layout is the layout the
// image is transitioned to before the pass records; Undefined picks it
// from the kind.
type Attachment struct {
	Name   string
	Kind   AttachmentKind
	Access AttachmentAccess
	Clear  bool
	Layout gpu.ImageLayout
}

func NewAttachment(name string, kind AttachmentKind, access AttachmentAccess) Attachment {
	return Attachment{Name: name, Kind: kind, Access: access}
}

func (a Attachment) WithClear(clear bool) Attachment {
	a.Clear = clear
	return a
}

func (a Attachment) WithLayout(layout gpu.ImageLayout) Attachment {
	a.Layout = layout
	return a
}

// transition brings the attachment image in the layout the pass expects.
func (a Attachment) transition(res ResourceManager, cmd gpu.CommandList) gpu.Image {
	if a.Layout != gpu.ImageLayoutUndefined {
		img := res.Image(a.Name)
		cmd.TransitionImageLayout(img, a.Layout)
		return img
	}
	if a.Kind == AttachmentInput || a.Access == AccessReadOnly {
		return res.ImageRead(a.Name, cmd)
	}
	return res.ImageWrite(a.Name, cmd)
}
