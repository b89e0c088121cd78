package gpu

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framegraph/engine/core"
)

// ID identifies any GPU object created by a Device.
type ID uuid.UUID

func NewID() ID {
	return ID(uuid.New())
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Compare orders ids bytewise.
func (id ID) Compare(o ID) int {
	return bytes.Compare(id[:], o[:])
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

func NewExtent2D(width, height uint32) Extent2D {
	return Extent2D{Width: width, Height: height}
}

// Scale multiplies both sides by f, rounding down.
func (e Extent2D) Scale(f float32) Extent2D {
	return Extent2D{
		Width:  uint32(float32(e.Width) * f),
		Height: uint32(float32(e.Height) * f),
	}
}

func (e Extent2D) Min(o Extent2D) Extent2D {
	return Extent2D{Width: min(e.Width, o.Width), Height: min(e.Height, o.Height)}
}

func (e Extent2D) Max(o Extent2D) Extent2D {
	return Extent2D{Width: max(e.Width, o.Width), Height: max(e.Height, o.Height)}
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

type Color struct {
	R, G, B, A float32
}

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutColor
	ImageLayoutDepth
	ImageLayoutShader
	ImageLayoutTransferSrc
	ImageLayoutTransferDst
	ImageLayoutPresent
)

var imageLayoutNames = map[ImageLayout]string{
	ImageLayoutUndefined:   "undefined",
	ImageLayoutGeneral:     "general",
	ImageLayoutColor:       "color",
	ImageLayoutDepth:       "depth",
	ImageLayoutShader:      "shader",
	ImageLayoutTransferSrc: "transfer_src",
	ImageLayoutTransferDst: "transfer_dst",
	ImageLayoutPresent:     "present",
}

func (l ImageLayout) String() string {
	return imageLayoutNames[l]
}

func ParseImageLayout(s string) (ImageLayout, error) {
	return parseEnum(imageLayoutNames, s, "image layout")
}

type ImageFormat int

const (
	// ImageFormatDefault lets the backend pick the display format.
	ImageFormatDefault ImageFormat = iota
	ImageFormatR16g16b16a16Sfloat
	ImageFormatB8g8r8a8Unorm
	ImageFormatR8g8b8a8Unorm
	ImageFormatR8g8b8a8Srgb
	ImageFormatD32Sfloat
)

var imageFormatNames = map[ImageFormat]string{
	ImageFormatDefault:            "default",
	ImageFormatR16g16b16a16Sfloat: "r16g16b16a16sfloat",
	ImageFormatB8g8r8a8Unorm:      "b8g8r8a8unorm",
	ImageFormatR8g8b8a8Unorm:      "r8g8b8a8unorm",
	ImageFormatR8g8b8a8Srgb:       "r8g8b8a8srgb",
	ImageFormatD32Sfloat:          "d32sfloat",
}

func (f ImageFormat) String() string {
	return imageFormatNames[f]
}

// PixelSize is the number of bytes of one texel.
func (f ImageFormat) PixelSize() uint64 {
	switch f {
	case ImageFormatR16g16b16a16Sfloat:
		return 8
	default:
		return 4
	}
}

func ParseImageFormat(s string) (ImageFormat, error) {
	return parseEnum(imageFormatNames, strings.ReplaceAll(s, "_", ""), "image format")
}

type ImageUsage int

const (
	ImageUsageColor ImageUsage = iota
	ImageUsageDepth
	ImageUsageTexture
	ImageUsageSwapchain
	ImageUsageFile
)

var imageUsageNames = map[ImageUsage]string{
	ImageUsageColor:     "color",
	ImageUsageDepth:     "depth",
	ImageUsageTexture:   "texture",
	ImageUsageSwapchain: "swapchain",
	ImageUsageFile:      "file",
}

func (u ImageUsage) String() string {
	return imageUsageNames[u]
}

func ParseImageUsage(s string) (ImageUsage, error) {
	return parseEnum(imageUsageNames, s, "image usage")
}

type BufferUsage int

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStaging
	BufferUsageStorage
)

func (u BufferUsage) String() string {
	switch u {
	case BufferUsageVertex:
		return "vertex"
	case BufferUsageIndex:
		return "index"
	case BufferUsageUniform:
		return "uniform"
	case BufferUsageStaging:
		return "staging"
	case BufferUsageStorage:
		return "storage"
	}
	return "unknown"
}

type BindingGroupType int

const (
	BindingGroupSceneData BindingGroupType = iota
	BindingGroupMaterialData
	BindingGroupMaterialTextures
	BindingGroupComputeData
)

func (t BindingGroupType) String() string {
	switch t {
	case BindingGroupSceneData:
		return "scene_data"
	case BindingGroupMaterialData:
		return "material_data"
	case BindingGroupMaterialTextures:
		return "material_textures"
	case BindingGroupComputeData:
		return "compute_data"
	}
	return "unknown"
}

// Set is the descriptor set index used by shaders for this kind.
func (t BindingGroupType) Set() uint32 {
	switch t {
	case BindingGroupSceneData, BindingGroupComputeData:
		return 0
	case BindingGroupMaterialData:
		return 1
	default:
		return 2
	}
}

type BindingType int

const (
	BindingUniformBuffer BindingType = iota
	BindingStorageBuffer
	BindingSampledImage
	BindingStorageImage
	BindingSampler
)

type PipelineType int

const (
	PipelineGraphics PipelineType = iota
	PipelineCompute
)

var pipelineTypeNames = map[PipelineType]string{
	PipelineGraphics: "graphics",
	PipelineCompute:  "compute",
}

func (t PipelineType) String() string {
	return pipelineTypeNames[t]
}

func ParsePipelineType(s string) (PipelineType, error) {
	return parseEnum(pipelineTypeNames, s, "pipeline type")
}

type ShaderStage int

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute

	ShaderStageAll = ShaderStageVertex | ShaderStageFragment | ShaderStageCompute
)

type SamplerFilter int

const (
	SamplerFilterLinear SamplerFilter = iota
	SamplerFilterNearest
)

var samplerFilterNames = map[SamplerFilter]string{
	SamplerFilterLinear:  "linear",
	SamplerFilterNearest: "nearest",
}

func ParseSamplerFilter(s string) (SamplerFilter, error) {
	return parseEnum(samplerFilterNames, s, "sampler filter")
}

type CullMode int

const (
	CullModeBack CullMode = iota
	CullModeNone
	CullModeFront
)

var cullModeNames = map[CullMode]string{
	CullModeBack:  "back",
	CullModeNone:  "none",
	CullModeFront: "front",
}

func ParseCullMode(s string) (CullMode, error) {
	return parseEnum(cullModeNames, s, "cull mode")
}

type PolygonMode int

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
)

var polygonModeNames = map[PolygonMode]string{
	PolygonModeFill: "fill",
	PolygonModeLine: "line",
}

func ParsePolygonMode(s string) (PolygonMode, error) {
	return parseEnum(polygonModeNames, s, "polygon mode")
}

// parseEnum is case insensitive. An empty string yields the zero value.
func parseEnum[T comparable](names map[T]string, s, what string) (T, error) {
	var zero T
	if s == "" {
		return zero, nil
	}
	s = strings.ToLower(s)
	for k, v := range names {
		if v == s {
			return k, nil
		}
	}
	return zero, fmt.Errorf("unknown %s %q: %w", what, s, core.ErrInvalidData)
}
