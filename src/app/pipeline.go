package app

import (
	"github.com/ibd1279/vks"
	"vkpresent/src/render"
)

// createShaderModule turns a loaded SPIR-V artifact into a device module.
// Modules only need to live until pipeline creation finishes.
func (b *chainBackend) createShaderModule(path string) (vks.ShaderModule, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	words, err := render.LoadShader(path)
	if err != nil {
		return vks.NullShaderModule, err
	}

	createInfo := vks.CPtr(arp, &vks.ShaderModuleCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.ShaderModuleCreateInfo) {
			in.SetCodeSize(words.Sizeof())
			in.SetPCode(words)
		},
	)

	var module vks.ShaderModule
	if result := b.device.CreateShaderModule(createInfo, nil, &module); result.IsError() {
		return module, vkErr("vkCreateShaderModule", result)
	}
	return module, nil
}

// Build compiles the fixed pipeline: vertex+fragment stages over implicit
// vertices, triangle list, one viewport/scissor matching the chain extent,
// back-face culling with clockwise front faces, no multisampling, alpha-over
// blending on the single color attachment, no depth/stencil, no dynamic
// state. Shader artifacts are re-read on every rebuild.
func (b *chainBackend) Build(extent vks.Extent2D) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	layoutInfo := vks.CPtr(arp, &vks.PipelineLayoutCreateInfo{},
		vks.SetDefaultSType,
	)
	var layout vks.PipelineLayout
	if result := b.device.CreatePipelineLayout(layoutInfo, nil, &layout); result.IsError() {
		return vkErr("vkCreatePipelineLayout", result)
	}
	b.pipelineLayout = layout

	vertModule, err := b.createShaderModule(b.vertPath)
	if err != nil {
		return err
	}
	defer b.device.DestroyShaderModule(vertModule, nil)

	fragModule, err := b.createShaderModule(b.fragPath)
	if err != nil {
		return err
	}
	defer b.device.DestroyShaderModule(fragModule, nil)

	entryPoint := vks.NewCStr(arp, "main")
	stages := vks.PipelineShaderStageCreateInfoCSlice(arp,
		vks.PipelineShaderStageCreateInfo{}.
			WithDefaultSType().
			WithStage(vks.VK_SHADER_STAGE_VERTEX_BIT).
			WithModule(vertModule).
			WithPName(entryPoint),
		vks.PipelineShaderStageCreateInfo{}.
			WithDefaultSType().
			WithStage(vks.VK_SHADER_STAGE_FRAGMENT_BIT).
			WithModule(fragModule).
			WithPName(entryPoint),
	)

	// No vertex input bindings: the triangle lives in the vertex shader.
	vertexInputState := vks.CPtr(arp, &vks.PipelineVertexInputStateCreateInfo{},
		vks.SetDefaultSType,
	)

	inputAssemblyState := vks.CPtr(arp, &vks.PipelineInputAssemblyStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineInputAssemblyStateCreateInfo) {
			in.SetTopology(vks.VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST)
			in.SetPrimitiveRestartEnable(vks.VK_FALSE)
		},
	)

	viewports := vks.ViewportCSlice(arp,
		vks.Viewport{}.
			WithWidth(float32(extent.Width())).
			WithHeight(float32(extent.Height())).
			WithMaxDepth(1.0),
	)
	scissors := vks.Rect2DCSlice(arp,
		vks.Rect2D{}.
			WithExtent(extent),
	)
	viewportState := vks.CPtr(arp, &vks.PipelineViewportStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineViewportStateCreateInfo) {
			in.SetPViewports(viewports)
			in.SetPScissors(scissors)
		},
	)

	rasterizationState := vks.CPtr(arp, &vks.PipelineRasterizationStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineRasterizationStateCreateInfo) {
			in.SetDepthClampEnable(vks.VK_FALSE)
			in.SetRasterizerDiscardEnable(vks.VK_FALSE)
			in.SetPolygonMode(vks.VK_POLYGON_MODE_FILL)
			in.SetLineWidth(1.0)
			in.SetCullMode(vks.CullModeFlags(vks.VK_CULL_MODE_BACK_BIT))
			in.SetFrontFace(vks.VK_FRONT_FACE_CLOCKWISE)
			in.SetDepthBiasEnable(vks.VK_FALSE)
		},
	)

	multisampleState := vks.CPtr(arp, &vks.PipelineMultisampleStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineMultisampleStateCreateInfo) {
			in.SetSampleShadingEnable(vks.VK_FALSE)
			in.SetRasterizationSamples(vks.VK_SAMPLE_COUNT_1_BIT)
		},
	)

	// Standard alpha-over compositing on the single color attachment.
	colorBlendAttachmentState := vks.PipelineColorBlendAttachmentStateCSlice(arp,
		vks.PipelineColorBlendAttachmentState{}.
			WithColorWriteMask(vks.ColorComponentFlags(vks.VK_COLOR_COMPONENT_R_BIT|vks.VK_COLOR_COMPONENT_G_BIT|vks.VK_COLOR_COMPONENT_B_BIT|vks.VK_COLOR_COMPONENT_A_BIT)).
			WithBlendEnable(vks.VK_TRUE).
			WithSrcColorBlendFactor(vks.VK_BLEND_FACTOR_SRC_ALPHA).
			WithDstColorBlendFactor(vks.VK_BLEND_FACTOR_ONE_MINUS_SRC_ALPHA).
			WithColorBlendOp(vks.VK_BLEND_OP_ADD).
			WithSrcAlphaBlendFactor(vks.VK_BLEND_FACTOR_ONE).
			WithDstAlphaBlendFactor(vks.VK_BLEND_FACTOR_ZERO).
			WithAlphaBlendOp(vks.VK_BLEND_OP_ADD),
	)
	colorBlendState := vks.CPtr(arp, &vks.PipelineColorBlendStateCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.PipelineColorBlendStateCreateInfo) {
			in.SetLogicOpEnable(vks.VK_FALSE)
			in.SetLogicOp(vks.VK_LOGIC_OP_COPY)
			in.SetPAttachments(colorBlendAttachmentState)
		},
	)

	pipelineCreateInfos := vks.GraphicsPipelineCreateInfoCSlice(arp,
		vks.GraphicsPipelineCreateInfo{}.
			WithDefaultSType().
			WithPStages(stages).
			WithPVertexInputState(vertexInputState).
			WithPInputAssemblyState(inputAssemblyState).
			WithPViewportState(viewportState).
			WithPRasterizationState(rasterizationState).
			WithPMultisampleState(multisampleState).
			WithPColorBlendState(colorBlendState).
			WithLayout(b.pipelineLayout).
			WithRenderPass(b.renderPass),
	)

	pipelines := make([]vks.Pipeline, len(pipelineCreateInfos))
	result := b.device.CreateGraphicsPipelines(
		vks.NullPipelineCache,
		uint32(len(pipelineCreateInfos)),
		pipelineCreateInfos,
		nil,
		pipelines)
	if result.IsError() {
		return vkErr("vkCreateGraphicsPipelines", result)
	}
	b.pipelines = pipelines
	return nil
}

// Destroy tears down the pipeline objects and then their layout.
func (b *chainBackend) Destroy() {
	for _, pipeline := range b.pipelines {
		b.device.DestroyPipeline(pipeline, nil)
	}
	b.pipelines = nil
	if b.pipelineLayout != vks.NullPipelineLayout {
		b.device.DestroyPipelineLayout(b.pipelineLayout, nil)
		b.pipelineLayout = vks.NullPipelineLayout
	}
}
