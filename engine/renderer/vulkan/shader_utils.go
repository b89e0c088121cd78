package vulkan

import (
	"fmt"
	"path/filepath"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/assets/loaders"
)

// shaderStage is a loaded module and the stage info that references it.
type shaderStage struct {
	module vk.ShaderModule
	info   vk.PipelineShaderStageCreateInfo
}

func (d *Device) newShaderStage(file string, stage vk.ShaderStageFlagBits) (*shaderStage, error) {
	path := file
	if d.opts.ShaderDir != "" && !filepath.IsAbs(file) {
		path = filepath.Join(d.opts.ShaderDir, file)
	}
	code, err := loaders.LoadShader(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read shader module %s: %w", path, err)
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	s := &shaderStage{}
	if err := check(vk.CreateShaderModule(d.logical, &createInfo, nil, &s.module), "vkCreateShaderModule "+file); err != nil {
		return nil, err
	}
	s.info = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: s.module,
		PName:  safeString("main"),
	}
	return s, nil
}

func (s *shaderStage) destroy(d *Device) {
	if s.module != nil {
		vk.DestroyShaderModule(d.logical, s.module, nil)
		s.module = nil
	}
}
