package vulkan

import "time"

const (
	// maxBindingsPerGroup bounds the descriptors a binding group layout
	// declares.
	maxBindingsPerGroup = 8

	// bindingGroupSets is the number of descriptor set slots a pipeline
	// layout reserves, see gpu.BindingGroupType.Set.
	bindingGroupSets = 3

	// fenceWaitSlice is how long a fence wait blocks before checking its
	// context again.
	fenceWaitSlice = 10 * time.Millisecond

	// bufferGroupsPerKind is the number of descriptor sets a pipeline keeps
	// aside per binding group kind for buffers bound directly.
	bufferGroupsPerKind = 16

	acquireTimeout = uint64(time.Second)

	engineName = "framegraph"
)
