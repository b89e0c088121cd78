package graph

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/pass"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
	"gopkg.in/yaml.v3"
)

const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// AttachmentConfig registers a named image. Width and Height default to the
// graph attachment extent.
type AttachmentConfig struct {
	Usage  string `toml:"usage" yaml:"usage"`
	Format string `toml:"format" yaml:"format"`
	Width  uint32 `toml:"width" yaml:"width"`
	Height uint32 `toml:"height" yaml:"height"`
}

type PassAttachmentConfig struct {
	Name   string `toml:"name" yaml:"name"`
	Kind   string `toml:"kind" yaml:"kind"`
	Access string `toml:"access" yaml:"access"`
	Clear  bool   `toml:"clear" yaml:"clear"`
	Layout string `toml:"layout" yaml:"layout"`
}

type PassConfig struct {
	// Kind is material, compute, present or dummy.
	Kind string `toml:"kind" yaml:"kind"`
	// Tag selects the defaults of a material pass.
	Tag         string                 `toml:"tag" yaml:"tag"`
	Pipeline    string                 `toml:"pipeline" yaml:"pipeline"`
	Attachments []PassAttachmentConfig `toml:"attachments" yaml:"attachments"`
	// nil keeps the defaults of the tag
	ObjectLayout      []string `toml:"object_layout" yaml:"object_layout"`
	SceneLayout       []string `toml:"scene_layout" yaml:"scene_layout"`
	RenderOpaque      *bool    `toml:"render_opaque" yaml:"render_opaque"`
	RenderTransparent *bool    `toml:"render_transparent" yaml:"render_transparent"`
}

type PipelineConfig struct {
	Kind             string   `toml:"kind" yaml:"kind"`
	VertexShader     string   `toml:"vertex_shader" yaml:"vertex_shader"`
	FragmentShader   string   `toml:"fragment_shader" yaml:"fragment_shader"`
	ComputeShader    string   `toml:"compute_shader" yaml:"compute_shader"`
	VertexAttributes []string `toml:"vertex_attributes" yaml:"vertex_attributes"`
	CullMode         string   `toml:"cull_mode" yaml:"cull_mode"`
	PolygonMode      string   `toml:"polygon_mode" yaml:"polygon_mode"`
	DepthTest        bool     `toml:"depth_test" yaml:"depth_test"`
	DepthWrite       bool     `toml:"depth_write" yaml:"depth_write"`
	Blending         bool     `toml:"blending" yaml:"blending"`
	MaxBindingGroups int      `toml:"max_binding_groups" yaml:"max_binding_groups"`
}

// GraphConfig is the declarative description of the pass graphs.
type GraphConfig struct {
	Graphs      map[string][]string         `toml:"graphs" yaml:"graphs"`
	Attachments map[string]AttachmentConfig `toml:"attachments" yaml:"attachments"`
	Passes      map[string]PassConfig       `toml:"passes" yaml:"passes"`
	Pipelines   map[string]PipelineConfig   `toml:"pipelines" yaml:"pipelines"`
}

// LoadConfig reads a graph description, the format follows the extension.
func LoadConfig(path string) (*GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph config %s: %w", path, err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	cfg, err := ParseConfig(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte, format string) (*GraphConfig, error) {
	cfg := &GraphConfig{}
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode graph config: %w", err)
		}
	case FormatYAML, "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode graph config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown graph config format %q: %w", format, core.ErrInvalidData)
	}
	return cfg, nil
}

// NamedPass is a pass entry of a graph, in schedule order.
type NamedPass struct {
	Name   string
	Config PassConfig
}

// Schedule returns the passes of graph name in order. A scheduled pass
// without an entry keeps a zero config, BuildPass rejects it.
func (c *GraphConfig) Schedule(name string) ([]NamedPass, error) {
	names, ok := c.Graphs[name]
	if !ok {
		return nil, fmt.Errorf("graph %q: %w", name, core.ErrGraphNotFound)
	}
	out := make([]NamedPass, 0, len(names))
	for _, n := range names {
		out = append(out, NamedPass{Name: n, Config: c.Passes[n]})
	}
	return out, nil
}

// RegisterAttachments creates the images declared in the attachments
// section that are not registered yet.
func (c *GraphConfig) RegisterAttachments(resources *GraphResourceManager, extent gpu.Extent2D) error {
	for name, a := range c.Attachments {
		usage, err := gpu.ParseImageUsage(a.Usage)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", name, err)
		}
		format, err := gpu.ParseImageFormat(a.Format)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", name, err)
		}
		if format == gpu.ImageFormatDefault {
			format = gpu.ImageFormatR16g16b16a16Sfloat
			if usage == gpu.ImageUsageDepth {
				format = gpu.ImageFormatD32Sfloat
			}
		}
		e := extent
		if a.Width > 0 && a.Height > 0 {
			e = gpu.NewExtent2D(a.Width, a.Height)
		}
		if err := resources.RegisterImage(name, format, usage, e); err != nil {
			return err
		}
	}
	return nil
}

// BuildPass creates the pass called name. It panics when the config has no
// entry for name.
func BuildPass(ctx GraphContext, cfg *GraphConfig, name string) (pass.RenderPass, error) {
	pc, ok := cfg.Passes[name]
	if !ok {
		panic(fmt.Errorf("pass %q: %w", name, core.ErrPassNotFound))
	}

	switch pc.Kind {
	case "material", "":
		mc, err := cfg.materialConfig(name, pc)
		if err != nil {
			return nil, err
		}
		return pass.NewMaterialPass(ctx.Device, ctx.FramesInFlight, mc)
	case "compute":
		var desc *gpu.PipelineDesc
		if pc.Pipeline != "" {
			d, err := cfg.pipelineDesc(pc.Pipeline)
			if err != nil {
				return nil, err
			}
			desc = d
		}
		return pass.NewComputePass(ctx.Device, ctx.FramesInFlight, name, desc)
	case "present":
		return pass.NewPresentPass(name), nil
	case "dummy":
		names := make([]string, 0, len(pc.Attachments))
		for _, a := range pc.Attachments {
			names = append(names, a.Name)
		}
		return pass.NewDummyPass(name, names...), nil
	}
	return nil, fmt.Errorf("pass %s has unknown kind %q: %w", name, pc.Kind, core.ErrInvalidData)
}

func (c *GraphConfig) materialConfig(name string, pc PassConfig) (pass.Config, error) {
	tag := pc.Tag
	if tag == "" {
		tag = name
	}
	passType, err := pass.ParsePassType(tag)
	if err != nil {
		return pass.Config{}, fmt.Errorf("pass %s: %w", name, err)
	}
	mc := pass.DefaultConfig(name, passType)

	if len(pc.Attachments) > 0 {
		mc.Attachments = mc.Attachments[:0:0]
		for _, ac := range pc.Attachments {
			a, err := parseAttachment(ac)
			if err != nil {
				return pass.Config{}, fmt.Errorf("pass %s: %w", name, err)
			}
			mc.Attachments = append(mc.Attachments, a)
		}
	}
	if pc.ObjectLayout != nil {
		props := make([]uniform.ObjectDataProp, 0, len(pc.ObjectLayout))
		for _, s := range pc.ObjectLayout {
			p, err := uniform.ParseObjectDataProp(s)
			if err != nil {
				return pass.Config{}, fmt.Errorf("pass %s: %w", name, err)
			}
			props = append(props, p)
		}
		mc.ObjectLayout = uniform.NewObjectDataLayout(props...)
	}
	if pc.SceneLayout != nil {
		props := make([]uniform.SceneDataProp, 0, len(pc.SceneLayout))
		for _, s := range pc.SceneLayout {
			p, err := uniform.ParseSceneDataProp(s)
			if err != nil {
				return pass.Config{}, fmt.Errorf("pass %s: %w", name, err)
			}
			props = append(props, p)
		}
		mc.SceneLayout = uniform.NewSceneDataLayout(props...)
	}
	if pc.RenderOpaque != nil {
		mc.RenderOpaque = *pc.RenderOpaque
	}
	if pc.RenderTransparent != nil {
		mc.RenderTransparent = *pc.RenderTransparent
	}
	if pc.Pipeline != "" {
		desc, err := c.pipelineDesc(pc.Pipeline)
		if err != nil {
			return pass.Config{}, fmt.Errorf("pass %s: %w", name, err)
		}
		mc.Pipeline = desc
	}
	return mc, nil
}

func parseAttachment(ac PassAttachmentConfig) (pass.Attachment, error) {
	if ac.Name == "" {
		return pass.Attachment{}, fmt.Errorf("attachment without a name: %w", core.ErrInvalidData)
	}
	kind, err := pass.ParseAttachmentKind(ac.Kind)
	if err != nil {
		return pass.Attachment{}, err
	}
	access, err := pass.ParseAttachmentAccess(ac.Access)
	if err != nil {
		return pass.Attachment{}, err
	}
	layout, err := gpu.ParseImageLayout(ac.Layout)
	if err != nil {
		return pass.Attachment{}, err
	}
	return pass.NewAttachment(ac.Name, kind, access).WithClear(ac.Clear).WithLayout(layout), nil
}

func (c *GraphConfig) pipelineDesc(name string) (*gpu.PipelineDesc, error) {
	pc, ok := c.Pipelines[name]
	if !ok {
		return nil, fmt.Errorf("pipeline %q is not declared: %w", name, core.ErrInvalidData)
	}
	kind, err := gpu.ParsePipelineType(pc.Kind)
	if err != nil {
		return nil, err
	}

	var desc *gpu.PipelineDesc
	if kind == gpu.PipelineCompute {
		desc = gpu.NewComputePipelineDesc(name).
			WithComputeShader(pc.ComputeShader).
			WithBindingGroup(gpu.BindingGroupComputeData, gpu.ShaderStageCompute, gpu.BindingStorageImage)
	} else {
		attrs, err := gpu.ParseVertexAttributes(pc.VertexAttributes)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", name, err)
		}
		cull, err := gpu.ParseCullMode(pc.CullMode)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", name, err)
		}
		polygon, err := gpu.ParsePolygonMode(pc.PolygonMode)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", name, err)
		}
		desc = gpu.NewGraphicsPipelineDesc(name).
			WithShaders(pc.VertexShader, pc.FragmentShader).
			WithVertexAttributes(attrs).
			WithBindingGroup(gpu.BindingGroupSceneData, gpu.ShaderStageAll, gpu.BindingUniformBuffer).
			WithRasterizer(cull, polygon).
			WithDepth(pc.DepthTest, pc.DepthWrite).
			WithBlending(pc.Blending)
	}
	if pc.MaxBindingGroups > 0 {
		desc.WithMaxBindingGroups(pc.MaxBindingGroups)
	}
	return desc, nil
}
