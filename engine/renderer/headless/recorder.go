package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type Op int

const (
	OpBegin Op = iota
	OpEnd
	OpReset
	OpBeginLabel
	OpEndLabel
	OpTransition
	OpBeginRendering
	OpEndRendering
	OpSetViewport
	OpBindPipeline
	OpBindResource
	OpBindResourceBuffer
	OpPushConstants
	OpBindIndexBuffer
	OpBindVertexBuffer
	OpDrawIndexed
	OpDispatch
	OpCopyBuffer
	OpCopyBufferToImage
	OpCopyImageToImage
	OpCopyImageToBuffer
	OpSubmit
	OpPresent
)

var opNames = [...]string{
	"begin", "end", "reset", "begin_label", "end_label", "transition",
	"begin_rendering", "end_rendering", "set_viewport", "bind_pipeline",
	"bind_resource", "bind_resource_buffer", "push_constants",
	"bind_index_buffer", "bind_vertex_buffer", "draw_indexed", "dispatch",
	"copy_buffer", "copy_buffer_to_image", "copy_image_to_image", "copy_image_to_buffer",
	"submit", "present",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Command is one recorded call.
type Command struct {
	Op   Op
	List string
	// Target names the object the command applies to (pipeline, image, label).
	Target   string
	TargetID gpu.ID
	Values   []uint64
	Layout   gpu.ImageLayout
}

func (c Command) String() string {
	return fmt.Sprintf("%s[%s] %s %v", c.Op, c.List, c.Target, c.Values)
}

// Recorder collects the commands of every command list of a device.
type Recorder struct {
	mu         sync.Mutex
	commands   []Command
	counts     map[Op]int
	violations []string
}

func newRecorder() *Recorder {
	return &Recorder{counts: map[Op]int{}}
}

func (r *Recorder) record(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, c)
	r.counts[c.Op]++
}

func (r *Recorder) violation(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, fmt.Sprintf(format, args...))
}

// Count returns how many times op was recorded since the last Clear.
func (r *Recorder) Count(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[op]
}

func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Filter returns the recorded commands matching op, in order.
func (r *Recorder) Filter(op Op) []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Command{}
	for _, c := range r.commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Violations lists misuse detected while recording, like drawing into an
// image that was not transitioned first.
func (r *Recorder) Violations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.violations))
	copy(out, r.violations)
	return out
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
	r.counts = map[Op]int{}
	r.violations = nil
}
