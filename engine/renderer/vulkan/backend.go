package vulkan

import (
	"errors"
	"fmt"
	gomath "math"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/strata/engine/core"
	"github.com/spaghettifunk/strata/engine/platform"
	"github.com/spaghettifunk/strata/engine/renderer"
	"github.com/spaghettifunk/strata/engine/renderer/metadata"
)

type VulkanRenderer struct {
	platform                *platform.Platform
	FrameNumber             uint64
	context                 *VulkanContext
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32
	resizePending           bool

	config        metadata.RendererBackendConfig
	initialized   bool
	frameOpen     bool
	vertexStage   *VulkanShaderStage
	fragmentStage *VulkanShaderStage
	layout        *metadata.VertexLayout
	pipeline      *VulkanPipeline
	buffers       map[*VulkanBuffer]struct{}
	// Fences inserted while a frame was recording, submitted by EndFrame.
	pendingFences []*SubmissionFence
	liveFences    map[*SubmissionFence]struct{}

	maxDrawIndirectCount uint32
}

func New(p *platform.Platform) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		context: &VulkanContext{
			Allocator: nil,
			Locks:     NewVulkanLockPool(),
		},
		buffers:    make(map[*VulkanBuffer]struct{}),
		liveFences: make(map[*SubmissionFence]struct{}),
	}
}

func (vr *VulkanRenderer) Initialize(config *metadata.RendererBackendConfig) error {
	vr.config = *config

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogFatal(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogFatal("failed to initialize vk: %s", err)
		return err
	}

	vr.context.FramebufferWidth = config.Width
	vr.context.FramebufferHeight = config.Height

	if err := vr.createInstance(config.ApplicationName); err != nil {
		return err
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.createVulkanSurface()
	if err != nil {
		return err
	}
	vr.context.Surface = surface
	core.LogDebug("Vulkan surface created.")

	// Device creation
	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}
	limits := vr.context.Device.Properties.Limits
	limits.Deref()
	vr.maxDrawIndirectCount = limits.MaxDrawIndirectCount
	core.LogInfo("Device accepts up to %d draws per indirect call.", vr.maxDrawIndirectCount)

	// Swapchain
	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height

	rp, err := RenderpassCreate(
		vr.context,
		0, 0, float32(vr.context.FramebufferWidth), float32(vr.context.FramebufferHeight),
		config.ClearColour,
		1.0,
		0)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	// Swapchain framebuffers.
	if err := vr.regenerateFramebuffers(vr.context.Swapchain, vr.context.MainRenderpass); err != nil {
		return err
	}

	if err := vr.createCommandBuffers(); err != nil {
		return err
	}

	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	// Shader stages; the pipeline is built once a vertex layout is bound.
	if vr.vertexStage, err = NewShaderStage(vr.context, config.VertexShader, vk.ShaderStageVertexBit); err != nil {
		return err
	}
	if vr.fragmentStage, err = NewShaderStage(vr.context, config.FragmentShader, vk.ShaderStageFragmentBit); err != nil {
		return err
	}

	vr.initialized = true
	core.LogInfo("Vulkan renderer initialized successfully.")

	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Strata Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := vr.platform.GetRequiredExtensionNames()
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= vk.InstanceCreateFlags(0x1)
	}

	// Validation layers.
	requiredValidationLayerNames := []string{}
	if vr.config.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}

		available, err := availableInstanceLayers()
		if err != nil {
			return err
		}
		for _, name := range requiredValidationLayerNames {
			core.LogInfo("Searching for layer: %s...", name)
			if _, ok := available[name]; !ok {
				core.LogWarn("Validation layer %s is missing, continuing without validation.", name)
				requiredValidationLayerNames = nil
				vr.config.Validation = false
				break
			}
		}
	}
	if vr.config.Validation {
		core.LogInfo("All required validation layers are present.")
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}

	core.LogInfo("Required extensions:")
	for _, ext := range requiredExtensions {
		core.LogInfo(ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	vr.context.Instance = instance
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vr.config.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}

		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func availableInstanceLayers() (map[string]struct{}, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, fmt.Errorf("vkEnumerateInstanceLayerProperties failed with %s", VulkanResultString(res, true))
	}
	layers := make([]vk.LayerProperties, count)
	if count > 0 {
		if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
			return nil, fmt.Errorf("vkEnumerateInstanceLayerProperties failed with %s", VulkanResultString(res, true))
		}
	}
	names := make(map[string]struct{}, count)
	for i := range layers {
		layers[i].Deref()
		name := vk.ToString(layers[i].LayerName[:])
		core.LogDebug("Available Layer: `%s`", name)
		names[name] = struct{}{}
	}
	return names, nil
}

func (vr *VulkanRenderer) createSyncObjects() error {
	framesInFlight := int(vr.context.Swapchain.MaxFramesInFlight)
	vr.context.ImageAvailableSemaphores = make([]vk.Semaphore, framesInFlight)
	vr.context.QueueCompleteSemaphores = make([]vk.Semaphore, framesInFlight)
	vr.context.InFlightFences = make([]*VulkanFence, framesInFlight)
	vr.context.InFlightFenceCount = uint32(framesInFlight)

	for i := 0; i < framesInFlight; i++ {
		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}

		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.ImageAvailableSemaphores[i]); res != vk.Success {
			err := fmt.Errorf("failed to create semaphore on image available")
			core.LogError(err.Error())
			return err
		}

		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.QueueCompleteSemaphores[i]); res != vk.Success {
			err := fmt.Errorf("failed to create semaphore on queue complete")
			core.LogError(err.Error())
			return err
		}

		// Create the fence in a signaled state, indicating that the first frame has already been "rendered".
		// This will prevent the application from waiting indefinitely for the first frame to render since it
		// cannot be rendered until a frame is "rendered" before it.
		f, err := NewFence(vr.context, true)
		if err != nil {
			return err
		}
		vr.context.InFlightFences[i] = f
	}

	// Actual fences are not owned by this list.
	vr.context.ImagesInFlight = make([]*VulkanFence, vr.context.Swapchain.ImageCount)
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	if !vr.initialized {
		return nil
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	// Destroy in the opposite order of creation.
	for sf := range vr.liveFences {
		sf.Destroy()
	}
	vr.pendingFences = nil

	if len(vr.buffers) > 0 {
		core.LogWarn("Vulkan renderer shut down with %d live buffers", len(vr.buffers))
		for buf := range vr.buffers {
			buf.Destroy(vr.context)
		}
		clear(vr.buffers)
	}

	if vr.pipeline != nil {
		vr.pipeline.Destroy(vr.context)
		vr.pipeline = nil
	}
	if vr.vertexStage != nil {
		vr.vertexStage.Destroy(vr.context)
	}
	if vr.fragmentStage != nil {
		vr.fragmentStage.Destroy(vr.context)
	}

	// Sync objects
	for i := 0; i < int(vr.context.InFlightFenceCount); i++ {
		if vr.context.ImageAvailableSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.ImageAvailableSemaphores[i], vr.context.Allocator)
			vr.context.ImageAvailableSemaphores[i] = vk.NullSemaphore
		}
		if vr.context.QueueCompleteSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.QueueCompleteSemaphores[i], vr.context.Allocator)
			vr.context.QueueCompleteSemaphores[i] = vk.NullSemaphore
		}
		if vr.context.InFlightFences[i] != nil {
			vr.context.InFlightFences[i].FenceDestroy(vr.context)
		}
	}
	vr.context.ImageAvailableSemaphores = nil
	vr.context.QueueCompleteSemaphores = nil
	vr.context.InFlightFences = nil
	vr.context.ImagesInFlight = nil

	vr.freeCommandBuffers()
	vr.destroyFramebuffers()

	if vr.context.MainRenderpass != nil {
		vr.context.MainRenderpass.RenderpassDestroy(vr.context)
	}
	if vr.context.Swapchain != nil {
		vr.context.Swapchain.SwapchainDestroy(vr.context)
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context)

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)

	vr.initialized = false
	return nil
}

func (vr *VulkanRenderer) Resized(width, height uint32) error {
	// Update the "framebuffer size generation", a counter which indicates when the
	// framebuffer size has been updated.
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.resizePending = true
	vr.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
	return nil
}

func (vr *VulkanRenderer) BeginFrame(deltaTime float64) error {
	if !vr.initialized {
		return core.ErrBackendNotInitialized
	}
	if vr.frameOpen {
		return fmt.Errorf("BeginFrame called while a frame is in progress")
	}
	device := vr.context.Device

	// Check if recreating swap chain and boot out.
	if vr.context.RecreatingSwapchain {
		if result := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(result) {
			err := fmt.Errorf("vulkan_renderer_backend_begin_frame vkDeviceWaitIdle (1) failed: '%s'", VulkanResultString(result, true))
			core.LogError(err.Error())
			return err
		}
		core.LogInfo("Recreating swapchain, booting.")
		return core.ErrSwapchainBooting
	}

	// Check if the framebuffer has been resized. If so, a new swapchain must be created.
	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		if result := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(result) {
			err := fmt.Errorf("vulkan_renderer_backend_begin_frame vkDeviceWaitIdle (2) failed: '%s'", VulkanResultString(result, true))
			core.LogError(err.Error())
			return err
		}

		// If the swapchain recreation failed (because, for example, the window was minimized),
		// boot out before unsetting the flag.
		if err := vr.recreateSwapchain(); err != nil {
			return err
		}

		core.LogInfo("Resized, booting.")
		return core.ErrSwapchainBooting
	}

	// Wait for the execution of the current frame to complete. The fence being free will allow this one to move on.
	signaled, err := vr.context.InFlightFences[vr.context.CurrentFrame].FenceWait(vr.context, gomath.MaxUint64)
	if err != nil {
		return err
	}
	if !signaled {
		err := fmt.Errorf("in-flight fence wait failure")
		core.LogWarn(err.Error())
		return err
	}

	// Acquire the next image from the swap chain. Pass along the semaphore that should signaled when this completes.
	// This same semaphore will later be waited on by the queue submission to ensure this image is available.
	imageIndex, ok, err := vr.context.Swapchain.SwapchainAcquireNextImageIndex(vr.context, gomath.MaxUint64, vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame], vk.NullFence)
	if err != nil {
		return err
	}
	if !ok {
		core.LogInfo("Swapchain out of date, booting.")
		return core.ErrSwapchainBooting
	}
	vr.context.ImageIndex = imageIndex

	// Make sure the previous frame is not using this image or its command buffer.
	if inFlight := vr.context.ImagesInFlight[vr.context.ImageIndex]; inFlight != nil {
		if _, err := inFlight.FenceWait(vr.context, gomath.MaxUint64); err != nil {
			return err
		}
	}

	// Begin recording commands.
	commandBuffer := vr.context.CurrentCommandBuffer()
	if err := commandBuffer.Reset(); err != nil {
		return err
	}
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}

	// Dynamic state. The vertex shader flips Y into Vulkan clip space.
	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(vr.context.FramebufferWidth),
		Height:   float32(vr.context.FramebufferHeight),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}

	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{
			Width:  vr.context.FramebufferWidth,
			Height: vr.context.FramebufferHeight,
		},
	}

	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	vr.context.MainRenderpass.W = float32(vr.context.FramebufferWidth)
	vr.context.MainRenderpass.H = float32(vr.context.FramebufferHeight)

	// Begin the render pass.
	vr.context.MainRenderpass.RenderpassBegin(commandBuffer, vr.context.Swapchain.Framebuffers[vr.context.ImageIndex].Handle)

	vr.frameOpen = true
	return nil
}

func (vr *VulkanRenderer) EndFrame(deltaTime float64) error {
	if !vr.frameOpen {
		return fmt.Errorf("EndFrame called without a frame in progress")
	}
	vr.frameOpen = false
	commandBuffer := vr.context.CurrentCommandBuffer()

	vr.context.MainRenderpass.RenderpassEnd(commandBuffer)
	if err := commandBuffer.End(); err != nil {
		return err
	}

	// Mark the image fence as in-use by this frame.
	frameFence := vr.context.InFlightFences[vr.context.CurrentFrame]
	vr.context.ImagesInFlight[vr.context.ImageIndex] = frameFence

	// Reset the fence for use on the next frame
	if err := frameFence.FenceReset(vr.context); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
		// Command buffer(s) to be executed.
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer.Handle},
		// The semaphore(s) to be signaled when the queue is complete.
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame]},
		// Wait semaphore ensures that the operation cannot begin until the image is available.
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame]},
		// VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT prevents subsequent colour attachment
		// writes from executing until the semaphore signals (i.e. one frame is presented at a time)
		PWaitDstStageMask: []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	}

	if err := vr.context.Locks.SafeQueueCall(uint32(vr.context.Device.GraphicsQueueIndex), func() error {
		return vulkanError("vkQueueSubmit", vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, frameFence.Handle))
	}); err != nil {
		core.LogError(err.Error())
		return err
	}
	commandBuffer.UpdateSubmitted()

	// Fences inserted during the frame go in behind it.
	pending := vr.pendingFences
	vr.pendingFences = nil
	if err := vr.submitFences(pending); err != nil {
		return err
	}

	// Give the image back to the swapchain.
	if err := vr.context.Swapchain.SwapchainPresent(
		vr.context,
		vr.context.Device.PresentQueue,
		vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame],
		vr.context.ImageIndex); err != nil {
		return err
	}

	vr.FrameNumber++
	return nil
}

func (vr *VulkanRenderer) RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (renderer.RenderBuffer, error) {
	if !vr.initialized {
		return nil, core.ErrBackendNotInitialized
	}
	if totalSize == 0 {
		return nil, fmt.Errorf("cannot create a zero sized %s buffer", renderbufferType)
	}
	var buf *VulkanBuffer
	if err := vr.context.Locks.SafeCall(BufferManagement, func() error {
		var err error
		buf, err = BufferCreate(vr.context, renderbufferType, totalSize)
		return err
	}); err != nil {
		return nil, err
	}
	vr.buffers[buf] = struct{}{}
	core.LogDebug("Created %s buffer of %d bytes.", renderbufferType, totalSize)
	return buf, nil
}

func (vr *VulkanRenderer) RenderBufferDestroy(buffer renderer.RenderBuffer) error {
	buf, err := vr.own(buffer)
	if err != nil {
		return err
	}
	// The device may still read it from an earlier frame.
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
	delete(vr.buffers, buf)
	return vr.context.Locks.SafeCall(BufferManagement, func() error {
		buf.Destroy(vr.context)
		return nil
	})
}

func (vr *VulkanRenderer) BindVertexLayout(layout *metadata.VertexLayout) error {
	if !vr.initialized {
		return core.ErrBackendNotInitialized
	}
	if layout == nil || len(layout.Bindings) == 0 {
		return fmt.Errorf("empty vertex layout")
	}
	if layout == vr.layout && vr.pipeline != nil {
		return nil
	}

	config := &VulkanPipelineConfig{
		Renderpass: vr.context.MainRenderpass,
		Layout:     layout,
		Stages: []vk.PipelineShaderStageCreateInfo{
			vr.vertexStage.ShaderStageCreateInfo,
			vr.fragmentStage.ShaderStageCreateInfo,
		},
		Viewport: vk.Viewport{
			Width:    float32(vr.context.FramebufferWidth),
			Height:   float32(vr.context.FramebufferHeight),
			MaxDepth: 1.0,
		},
		Scissor: vk.Rect2D{
			Extent: vk.Extent2D{Width: vr.context.FramebufferWidth, Height: vr.context.FramebufferHeight},
		},
		CullMode:   metadata.FaceCullModeNone,
		DepthTest:  true,
		DepthWrite: true,
		PushConstantRanges: []metadata.MemoryRange{
			{Offset: 0, Size: uint64(vr.config.PushConstantSize)},
		},
	}
	pipeline, err := NewGraphicsPipeline(vr.context, config)
	if err != nil {
		return err
	}

	if vr.pipeline != nil {
		// Recorded frames may still reference the old pipeline.
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
		vr.pipeline.Destroy(vr.context)
	}
	vr.pipeline = pipeline
	vr.layout = layout
	return nil
}

/**
 * @brief Records one multi-draw-indirect call into the current frame. The
 * position stream is bound at binding 0, the instance stream at binding 1
 * starting at InstanceOffset, and the frame uniforms are pushed to the
 * vertex stage.
 */
func (vr *VulkanRenderer) DrawIndexedIndirect(call *renderer.DrawIndirectCall) error {
	if !vr.initialized {
		return core.ErrBackendNotInitialized
	}
	if !vr.frameOpen {
		return fmt.Errorf("draw issued outside of a frame")
	}
	if vr.pipeline == nil {
		return fmt.Errorf("draw issued without a bound vertex layout")
	}
	vertices, err := vr.own(call.Vertices)
	if err != nil {
		return err
	}
	indices, err := vr.own(call.Indices)
	if err != nil {
		return err
	}
	instances, err := vr.own(call.Instances)
	if err != nil {
		return err
	}
	commands, err := vr.own(call.Commands)
	if err != nil {
		return err
	}
	if call.Stride != uint32(metadata.IndirectCommandStride) {
		return fmt.Errorf("unsupported indirect stride %d", call.Stride)
	}
	if call.DrawCount > vr.maxDrawIndirectCount {
		return fmt.Errorf("draw count %d exceeds the device limit of %d", call.DrawCount, vr.maxDrawIndirectCount)
	}
	table := metadata.MemoryRange{Offset: call.CommandOffset, Size: uint64(call.DrawCount) * uint64(call.Stride)}
	if table.End() > commands.Size() {
		return fmt.Errorf("command table %d..%d exceeds buffer of %d bytes", table.Offset, table.End(), commands.Size())
	}
	if call.InstanceOffset >= instances.Size() {
		return fmt.Errorf("instance offset %d outside a %d byte buffer", call.InstanceOffset, instances.Size())
	}

	commandBuffer := vr.context.CurrentCommandBuffer()
	vr.pipeline.Bind(commandBuffer, vk.PipelineBindPointGraphics)

	uniforms := metadata.EncodeFrameUniforms(call.Uniforms)
	vk.CmdPushConstants(
		commandBuffer.Handle,
		vr.pipeline.PipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		0,
		uint32(len(uniforms)),
		unsafe.Pointer(&uniforms[0]))

	if call.DrawCount == 0 {
		return nil
	}

	vk.CmdBindVertexBuffers(
		commandBuffer.Handle,
		metadata.VertexBindingPosition,
		2,
		[]vk.Buffer{vertices.Handle, instances.Handle},
		[]vk.DeviceSize{0, vk.DeviceSize(call.InstanceOffset)})
	vk.CmdBindIndexBuffer(commandBuffer.Handle, indices.Handle, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexedIndirect(commandBuffer.Handle, commands.Handle, vk.DeviceSize(call.CommandOffset), call.DrawCount, call.Stride)
	return nil
}

func (vr *VulkanRenderer) FenceInsert() (renderer.Fence, error) {
	if !vr.initialized {
		return nil, core.ErrBackendNotInitialized
	}
	var fence *VulkanFence
	if err := vr.context.Locks.SafeCall(SynchronizationManagement, func() error {
		var err error
		fence, err = NewFence(vr.context, false)
		return err
	}); err != nil {
		return nil, err
	}
	sf := &SubmissionFence{renderer: vr, fence: fence}
	vr.liveFences[sf] = struct{}{}

	if vr.frameOpen {
		vr.pendingFences = append(vr.pendingFences, sf)
		return sf, nil
	}
	if err := vr.submitFences([]*SubmissionFence{sf}); err != nil {
		sf.Destroy()
		return nil, err
	}
	return sf, nil
}

// submitFences queues one empty submission per fence on the graphics queue.
func (vr *VulkanRenderer) submitFences(fences []*SubmissionFence) error {
	for _, sf := range fences {
		if sf.submitted || sf.destroyed {
			continue
		}
		empty := vk.SubmitInfo{SType: vk.StructureTypeSubmitInfo}
		if err := vr.context.Locks.SafeQueueCall(uint32(vr.context.Device.GraphicsQueueIndex), func() error {
			return vulkanError("vkQueueSubmit", vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{empty}, sf.fence.Handle))
		}); err != nil {
			core.LogError("failed to submit fence: %s", err)
			return err
		}
		sf.submitted = true
	}
	return nil
}

func (vr *VulkanRenderer) releaseFence(sf *SubmissionFence) {
	for i, pending := range vr.pendingFences {
		if pending == sf {
			vr.pendingFences = append(vr.pendingFences[:i], vr.pendingFences[i+1:]...)
			break
		}
	}
	// A fence still owned by a queue submission cannot be destroyed.
	if sf.submitted {
		if _, err := sf.fence.FenceWait(vr.context, gomath.MaxUint64); err != nil {
			core.LogWarn("destroying fence after failed wait: %s", err)
		}
	}
	vr.context.Locks.SafeCall(SynchronizationManagement, func() error {
		sf.fence.FenceDestroy(vr.context)
		return nil
	})
	delete(vr.liveFences, sf)
}

func (vr *VulkanRenderer) own(rb renderer.RenderBuffer) (*VulkanBuffer, error) {
	buf, ok := rb.(*VulkanBuffer)
	if !ok || buf == nil {
		return nil, fmt.Errorf("buffer was not created by the Vulkan backend")
	}
	if _, live := vr.buffers[buf]; !live {
		return nil, fmt.Errorf("buffer %s was already destroyed", buf.bufferType)
	}
	return buf, nil
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	vr.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, vr.context.Swapchain.ImageCount)
	for i := range vr.context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vr.context.GraphicsCommandBuffers[i] = cb
	}

	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *VulkanRenderer) freeCommandBuffers() {
	for _, cb := range vr.context.GraphicsCommandBuffers {
		if cb != nil && cb.Handle != nil {
			cb.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		}
	}
	vr.context.GraphicsCommandBuffers = nil
}

func (vr *VulkanRenderer) regenerateFramebuffers(swapchain *VulkanSwapchain, renderpass *VulkanRenderpass) error {
	swapchain.Framebuffers = make([]*VulkanFramebuffer, swapchain.ImageCount)
	for i := range swapchain.Framebuffers {
		attachments := []vk.ImageView{
			swapchain.Views[i],
			swapchain.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(vr.context, renderpass, vr.context.FramebufferWidth, vr.context.FramebufferHeight, attachments)
		if err != nil {
			core.LogError("failed to execute framebuffer create function")
			return err
		}
		swapchain.Framebuffers[i] = fb
	}
	return nil
}

func (vr *VulkanRenderer) destroyFramebuffers() {
	if vr.context.Swapchain == nil {
		return
	}
	for _, fb := range vr.context.Swapchain.Framebuffers {
		if fb != nil {
			fb.Destroy(vr.context)
		}
	}
	vr.context.Swapchain.Framebuffers = nil
}

// recreateSwapchain returns core.ErrSwapchainBooting when the window has no area.
func (vr *VulkanRenderer) recreateSwapchain() error {
	// If already being recreated, do not try again.
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreate_swapchain called when already recreating. Booting.")
		return core.ErrSwapchainBooting
	}

	// An out of date swapchain without a window resize keeps the current size.
	width, height := vr.context.FramebufferWidth, vr.context.FramebufferHeight
	if vr.resizePending {
		width, height = vr.cachedFramebufferWidth, vr.cachedFramebufferHeight
	}
	// Detect if the window is too small to be drawn to
	if width == 0 || height == 0 {
		core.LogDebug("recreate_swapchain called when window is < 1 in a dimension. Booting.")
		return core.ErrSwapchainBooting
	}

	// Mark as recreating if the dimensions are valid.
	vr.context.RecreatingSwapchain = true
	defer func() { vr.context.RecreatingSwapchain = false }()

	// Wait for any operations to complete.
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	// Clear these out just in case.
	for i := range vr.context.ImagesInFlight {
		vr.context.ImagesInFlight[i] = nil
	}

	// Requery support
	if err := DeviceQuerySwapchainSupport(vr.context.Device.PhysicalDevice, vr.context.Surface, vr.context.Device.SwapchainSupport); err != nil {
		return err
	}
	DeviceDetectDepthFormat(vr.context.Device)

	vr.freeCommandBuffers()
	vr.destroyFramebuffers()

	sc, err := vr.context.Swapchain.SwapchainRecreate(vr.context, width, height)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	// Sync the framebuffer size with the cached sizes.
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height
	vr.context.MainRenderpass.X = 0
	vr.context.MainRenderpass.Y = 0
	vr.context.MainRenderpass.W = float32(vr.context.FramebufferWidth)
	vr.context.MainRenderpass.H = float32(vr.context.FramebufferHeight)
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0
	vr.resizePending = false

	// Update framebuffer size generation.
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	if err := vr.regenerateFramebuffers(vr.context.Swapchain, vr.context.MainRenderpass); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	vr.context.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)

	return nil
}

func (vr *VulkanRenderer) createVulkanSurface() (vk.Surface, error) {
	surface, err := vr.platform.Window.CreateWindowSurface(vr.context.Instance, nil)
	if err != nil {
		core.LogFatal("Vulkan surface creation failed: %s", err)
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

// vulkanError maps a failed result to an error; a lost device becomes core.ErrDeviceLost.
func vulkanError(call string, result vk.Result) error {
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorDeviceLost:
		return fmt.Errorf("%s: %w", call, core.ErrDeviceLost)
	default:
		return errors.New(call + " failed with " + VulkanResultString(result, true))
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
