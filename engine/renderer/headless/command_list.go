package headless

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type CommandListState int

const (
	CommandListStateReady CommandListState = iota
	CommandListStateRecording
	CommandListStateInRendering
	CommandListStateRecordingEnded
	CommandListStateSubmitted
)

// CommandList records into the device Recorder. Copies take effect at record
// time since there is no GPU timeline to defer them to.
type CommandList struct {
	name     string
	recorder *Recorder
	state    CommandListState
	labels   int
	pipeline gpu.Pipeline
}

func (c *CommandList) Name() string            { return c.name }
func (c *CommandList) State() CommandListState { return c.state }

func (c *CommandList) record(cmd Command) {
	if c.state != CommandListStateRecording && c.state != CommandListStateInRendering {
		c.recorder.violation("%s recorded on %s outside of Begin/End", cmd.Op, c.name)
	}
	cmd.List = c.name
	c.recorder.record(cmd)
}

func (c *CommandList) Begin() error {
	if c.state != CommandListStateReady {
		return fmt.Errorf("command list %s cannot begin in state %d", c.name, c.state)
	}
	c.state = CommandListStateRecording
	c.recorder.record(Command{Op: OpBegin, List: c.name})
	return nil
}

func (c *CommandList) End() error {
	if c.state != CommandListStateRecording {
		return fmt.Errorf("command list %s cannot end in state %d", c.name, c.state)
	}
	if c.labels != 0 {
		c.recorder.violation("%s ended with %d open labels", c.name, c.labels)
	}
	c.state = CommandListStateRecordingEnded
	c.recorder.record(Command{Op: OpEnd, List: c.name})
	return nil
}

func (c *CommandList) Reset() error {
	c.state = CommandListStateReady
	c.labels = 0
	c.pipeline = nil
	c.recorder.record(Command{Op: OpReset, List: c.name})
	return nil
}

func (c *CommandList) BeginLabel(label string) {
	c.labels++
	c.record(Command{Op: OpBeginLabel, Target: label})
}

func (c *CommandList) EndLabel() {
	if c.labels == 0 {
		c.recorder.violation("%s closed a label that was never opened", c.name)
	} else {
		c.labels--
	}
	c.record(Command{Op: OpEndLabel})
}

func (c *CommandList) TransitionImageLayout(img gpu.Image, layout gpu.ImageLayout) {
	c.record(Command{Op: OpTransition, Target: img.Name(), TargetID: img.ID(), Layout: layout})
	img.SetLayout(layout)
}

func (c *CommandList) BeginRendering(info gpu.RenderingInfo) {
	if c.state != CommandListStateRecording {
		c.recorder.violation("%s begins rendering in state %d", c.name, c.state)
	}
	target := ""
	if info.Color != nil {
		target = info.Color.Name()
		if info.Color.Layout() != gpu.ImageLayoutColor {
			c.recorder.violation("%s renders into %s in layout %s", c.name, info.Color.Name(), info.Color.Layout())
		}
	}
	if info.Depth != nil && info.Depth.Layout() != gpu.ImageLayoutDepth {
		c.recorder.violation("%s uses depth %s in layout %s", c.name, info.Depth.Name(), info.Depth.Layout())
	}
	c.record(Command{
		Op:     OpBeginRendering,
		Target: target,
		Values: []uint64{uint64(info.Extent.Width), uint64(info.Extent.Height), boolValue(info.ClearColor), boolValue(info.ClearDepth), boolValue(info.Depth != nil)},
	})
	c.state = CommandListStateInRendering
}

func (c *CommandList) EndRendering() {
	if c.state != CommandListStateInRendering {
		c.recorder.violation("%s ends rendering without a rendering scope", c.name)
	}
	c.record(Command{Op: OpEndRendering})
	c.state = CommandListStateRecording
}

func (c *CommandList) SetViewport(extent gpu.Extent2D) {
	c.record(Command{Op: OpSetViewport, Values: []uint64{uint64(extent.Width), uint64(extent.Height)}})
}

func (c *CommandList) BindPipeline(p gpu.Pipeline) {
	c.pipeline = p
	c.record(Command{Op: OpBindPipeline, Target: p.Name(), TargetID: p.ID()})
}

func (c *CommandList) BindResource(bg gpu.BindingGroup, p gpu.Pipeline) {
	c.checkPipeline(p)
	c.record(Command{Op: OpBindResource, Target: bg.Kind().String(), TargetID: bg.ID()})
}

func (c *CommandList) BindResourceBuffer(buf gpu.Buffer, kind gpu.BindingGroupType, p gpu.Pipeline) {
	c.checkPipeline(p)
	c.record(Command{Op: OpBindResourceBuffer, Target: kind.String(), TargetID: buf.ID()})
}

func (c *CommandList) PushConstants(p gpu.Pipeline, data []byte) {
	c.checkPipeline(p)
	c.record(Command{Op: OpPushConstants, Target: p.Name(), Values: []uint64{uint64(len(data))}})
}

func (c *CommandList) BindIndexBuffer(buf gpu.Buffer, offset uint64) {
	c.record(Command{Op: OpBindIndexBuffer, Target: buf.Name(), TargetID: buf.ID(), Values: []uint64{offset}})
}

func (c *CommandList) BindVertexBuffer(buf gpu.Buffer, offset uint64) {
	if offset >= buf.Size() {
		c.recorder.violation("%s binds %s at %d past its %d bytes", c.name, buf.Name(), offset, buf.Size())
	}
	c.record(Command{Op: OpBindVertexBuffer, Target: buf.Name(), TargetID: buf.ID(), Values: []uint64{offset}})
}

func (c *CommandList) DrawIndexed(indices, instances uint32) {
	if c.state != CommandListStateInRendering {
		c.recorder.violation("%s draws outside of a rendering scope", c.name)
	}
	if c.pipeline == nil {
		c.recorder.violation("%s draws without a pipeline", c.name)
	}
	c.record(Command{Op: OpDrawIndexed, Values: []uint64{uint64(indices), uint64(instances)}})
}

func (c *CommandList) Dispatch(x, y, z uint32) {
	if c.pipeline == nil || c.pipeline.Type() != gpu.PipelineCompute {
		c.recorder.violation("%s dispatches without a compute pipeline", c.name)
	}
	c.record(Command{Op: OpDispatch, Values: []uint64{uint64(x), uint64(y), uint64(z)}})
}

func (c *CommandList) CopyBuffer(src, dst gpu.Buffer, size, offset uint64) {
	c.record(Command{Op: OpCopyBuffer, Target: dst.Name(), TargetID: dst.ID(), Values: []uint64{size, offset}})
	data, _ := src.Read()
	if offset+size > uint64(len(data)) {
		c.recorder.violation("copy of %d bytes at %d from %s of %d bytes", size, offset, src.Name(), len(data))
		return
	}
	if err := dst.Write(data[offset:offset+size], 0); err != nil {
		c.recorder.violation("%s", err)
	}
}

func (c *CommandList) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, extent gpu.Extent2D) {
	c.record(Command{Op: OpCopyBufferToImage, Target: dst.Name(), TargetID: dst.ID()})
	if dst.Layout() != gpu.ImageLayoutTransferDst {
		c.recorder.violation("copy into %s in layout %s", dst.Name(), dst.Layout())
	}
	data, _ := src.Read()
	if img, ok := dst.(*Image); ok {
		img.mu.Lock()
		copy(img.pixels, data)
		img.mu.Unlock()
	}
}

func (c *CommandList) CopyImageToImage(src gpu.Image, srcExtent gpu.Extent2D, dst gpu.Image, dstExtent gpu.Extent2D) {
	c.record(Command{
		Op:       OpCopyImageToImage,
		Target:   src.Name() + "->" + dst.Name(),
		TargetID: dst.ID(),
		Values:   []uint64{uint64(srcExtent.Width), uint64(srcExtent.Height), uint64(dstExtent.Width), uint64(dstExtent.Height)},
	})
	if src.Layout() != gpu.ImageLayoutTransferSrc {
		c.recorder.violation("copy from %s in layout %s", src.Name(), src.Layout())
	}
	if dst.Layout() != gpu.ImageLayoutTransferDst {
		c.recorder.violation("copy into %s in layout %s", dst.Name(), dst.Layout())
	}
	s, ok1 := src.(*Image)
	d, ok2 := dst.(*Image)
	if ok1 && ok2 {
		blit(s, srcExtent, d, dstExtent)
	}
}

func (c *CommandList) CopyImageToBuffer(src gpu.Image, dst gpu.Buffer) {
	c.record(Command{Op: OpCopyImageToBuffer, Target: src.Name(), TargetID: dst.ID()})
	if src.Layout() != gpu.ImageLayoutTransferSrc {
		c.recorder.violation("copy from %s in layout %s", src.Name(), src.Layout())
	}
	if img, ok := src.(*Image); ok {
		pixels := img.Pixels()
		if uint64(len(pixels)) > dst.Size() {
			pixels = pixels[:dst.Size()]
		}
		if err := dst.Write(pixels, 0); err != nil {
			c.recorder.violation("%s", err)
		}
	}
}

func (c *CommandList) checkPipeline(p gpu.Pipeline) {
	if c.pipeline == nil || c.pipeline.ID() != p.ID() {
		c.recorder.violation("%s binds resources for %s which is not the bound pipeline", c.name, p.Name())
	}
}

// blit does a nearest neighbour scaled copy, converting between 4 and 8
// bytes per texel by keeping the high byte of each channel.
func blit(src *Image, srcExtent gpu.Extent2D, dst *Image, dstExtent gpu.Extent2D) {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src != dst {
		dst.mu.Lock()
		defer dst.mu.Unlock()
	}
	if dstExtent.IsZero() || srcExtent.IsZero() {
		return
	}
	sps, dps := src.format.PixelSize(), dst.format.PixelSize()
	for y := uint32(0); y < dstExtent.Height && y < dst.extent.Height; y++ {
		sy := y * srcExtent.Height / dstExtent.Height
		for x := uint32(0); x < dstExtent.Width && x < dst.extent.Width; x++ {
			sx := x * srcExtent.Width / dstExtent.Width
			so := (uint64(sy)*uint64(src.extent.Width) + uint64(sx)) * sps
			do := (uint64(y)*uint64(dst.extent.Width) + uint64(x)) * dps
			if so+sps > uint64(len(src.pixels)) || do+dps > uint64(len(dst.pixels)) {
				continue
			}
			for ch := uint64(0); ch < 4; ch++ {
				dst.pixels[do+ch*(dps/4)] = src.pixels[so+ch*(sps/4)+(sps/4-1)]
			}
		}
	}
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
